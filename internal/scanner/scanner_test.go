package scanner

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/cryptoseclab/cryptoaudit/internal/catalog"
	"github.com/cryptoseclab/cryptoaudit/internal/classfile/classtest"
	"github.com/cryptoseclab/cryptoaudit/internal/corpus"
)

func testCatalog() *catalog.Catalog {
	c := &catalog.Catalog{
		CatalogID: "test-catalog",
		APIs: []catalog.ApiEntry{
			{API: catalog.ApiRef{ClassName: "java.security.MessageDigest", MethodName: "getInstance"}},
			{API: catalog.ApiRef{ClassName: "javax.crypto.Cipher", MethodName: "getInstance"}},
		},
	}
	c.Normalize()
	return c
}

func hasherClass() []byte {
	b := classtest.New("com/example/Hasher").SourceFile("Hasher.java")
	md5 := b.String("MD5")
	digest := b.MethodRef("java/security/MessageDigest", "getInstance",
		"(Ljava/lang/String;)Ljava/security/MessageDigest;")
	helper := b.MethodRef("com/example/Util", "log", "(Ljava/lang/String;)V")
	b.Method(classtest.MethodDef{
		Name:       "hash",
		Descriptor: "()V",
		Static:     true,
		Code: []byte{
			0x12, byte(md5), // ldc "MD5"
			0xb8, byte(digest >> 8), byte(digest), // invokestatic getInstance
			0x57,            // pop
			0x12, byte(md5), // ldc "MD5"
			0xb8, byte(helper >> 8), byte(helper), // uncataloged call
			0xb1, // return
		},
		Lines: []classtest.LineEntry{{StartPC: 0, Line: 42}},
	})
	return b.Build()
}

func TestScanBytes(t *testing.T) {
	sc := New(testCatalog())
	findings, err := sc.ScanBytes(hasherClass())
	if err != nil {
		t.Fatalf("ScanBytes: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1 (uncataloged call must be skipped)", len(findings))
	}

	f := findings[0]
	if f.API != "java.security.MessageDigest.getInstance" {
		t.Errorf("API = %q", f.API)
	}
	if f.DeclaringClass != "java.security.MessageDigest" || f.MethodName != "getInstance" {
		t.Errorf("target = %s.%s", f.DeclaringClass, f.MethodName)
	}
	if f.SubSignature != "java.security.MessageDigest getInstance(java.lang.String)" {
		t.Errorf("SubSignature = %q", f.SubSignature)
	}
	if len(f.Args) != 1 {
		t.Fatalf("args = %d, want 1", len(f.Args))
	}
	if !f.Args[0].Resolved || f.Args[0].Literal != "MD5" || f.Args[0].Index != 0 {
		t.Errorf("args[0] = %+v, want resolved MD5 at index 0", f.Args[0])
	}

	loc := f.Location
	if loc.ClassName != "com.example.Hasher" {
		t.Errorf("location class = %q", loc.ClassName)
	}
	if loc.MethodSignature != "<com.example.Hasher: void hash()>" {
		t.Errorf("location method = %q", loc.MethodSignature)
	}
	if loc.SourceFile != "Hasher.java" || loc.Line != 42 {
		t.Errorf("location source = %s:%d, want Hasher.java:42", loc.SourceFile, loc.Line)
	}
}

func TestScanDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "com", "example", "Hasher.class"), hasherClass())
	writeFile(t, filepath.Join(dir, "Broken.class"), []byte("not a class file"))

	var warned []string
	sc := New(testCatalog())
	sc.Warnf = func(format string, a ...any) {
		warned = append(warned, fmt.Sprintf(format, a...))
	}

	res, err := sc.Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if res.ScanID == "" {
		t.Error("missing scan id")
	}
	if res.Stats.ClassesScanned != 1 || res.Stats.ClassesSkipped != 1 {
		t.Errorf("stats = %+v, want 1 scanned, 1 skipped", res.Stats)
	}
	if len(warned) == 0 {
		t.Error("expected a warning for the malformed class")
	}

	classes := res.Classes()
	if len(classes) != 1 || classes[0] != "com.example.Hasher" {
		t.Fatalf("classes = %v", classes)
	}
	if n := len(res.Findings("com.example.Hasher")); n != 1 {
		t.Errorf("findings = %d, want 1", n)
	}
}

func TestScanArchive(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "app.jar")

	f, err := os.Create(jar)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	entry, err := zw.Create("com/example/Hasher.class")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := entry.Write(hasherClass()); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	sc := New(testCatalog())
	res, err := sc.Scan(context.Background(), jar)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Stats.ClassesScanned != 1 || res.Stats.Findings != 1 {
		t.Errorf("stats = %+v, want 1 class with 1 finding", res.Stats)
	}
}

func TestScanMissingPath(t *testing.T) {
	sc := New(testCatalog())
	_, err := sc.Scan(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, corpus.ErrCorpus) {
		t.Errorf("error = %v, want ErrCorpus", err)
	}
}

func TestScanCanceled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Hasher.class"), hasherClass())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sc := New(testCatalog())
	res, err := sc.Scan(ctx, dir)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if res == nil {
		t.Fatal("canceled scan must still return partial results")
	}
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}
