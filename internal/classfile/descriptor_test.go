package classfile

import "testing"

func TestArgTypes(t *testing.T) {
	tests := []struct {
		desc string
		want []string
	}{
		{"()V", nil},
		{"(Ljava/lang/String;)Ljava/security/MessageDigest;", []string{"java.lang.String"}},
		{"(Ljava/lang/String;Ljava/lang/String;)V", []string{"java.lang.String", "java.lang.String"}},
		{"(IJZ)V", []string{"int", "long", "boolean"}},
		{"([B[[Ljava/lang/String;)V", []string{"byte[]", "java.lang.String[][]"}},
		{"(D)D", []string{"double"}},
	}

	for _, tt := range tests {
		got, err := ArgTypes(tt.desc)
		if err != nil {
			t.Errorf("ArgTypes(%q): unexpected error %v", tt.desc, err)
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("ArgTypes(%q) = %v, want %v", tt.desc, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ArgTypes(%q)[%d] = %q, want %q", tt.desc, i, got[i], tt.want[i])
			}
		}
	}
}

func TestArgTypesMalformed(t *testing.T) {
	for _, desc := range []string{"", "(", "(Ljava/lang/String)V", "(Q)V", "Ljava/lang/String;"} {
		if _, err := ArgTypes(desc); err == nil {
			t.Errorf("ArgTypes(%q): expected error", desc)
		}
	}
}

func TestReturnType(t *testing.T) {
	tests := []struct {
		desc string
		want string
	}{
		{"()V", "void"},
		{"(Ljava/lang/String;)Ljava/security/MessageDigest;", "java.security.MessageDigest"},
		{"()[B", "byte[]"},
		{"bogus", "?"},
	}
	for _, tt := range tests {
		if got := ReturnType(tt.desc); got != tt.want {
			t.Errorf("ReturnType(%q) = %q, want %q", tt.desc, got, tt.want)
		}
	}
}

func TestSubSignature(t *testing.T) {
	got := SubSignature("getInstance", "(Ljava/lang/String;Ljava/lang/String;)Ljavax/crypto/Cipher;")
	want := "javax.crypto.Cipher getInstance(java.lang.String,java.lang.String)"
	if got != want {
		t.Errorf("SubSignature = %q, want %q", got, want)
	}

	got = SubSignature("run", "()V")
	if got != "void run()" {
		t.Errorf("SubSignature = %q, want %q", got, "void run()")
	}
}
