package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeAppliesDefaults(t *testing.T) {
	two := 2
	c := &Catalog{
		CatalogID: "test",
		APIs: []ApiEntry{
			{API: ApiRef{ClassName: "java.security.MessageDigest", MethodName: "getInstance"}},
			{API: ApiRef{ClassName: "javax.crypto.Cipher", MethodName: "getInstance"},
				ArgSpec: &ArgSpec{AlgorithmIndex: &two}},
		},
	}
	c.Normalize()

	spec, ok := c.ArgSpecFor("java.security.MessageDigest", "getInstance")
	if !ok {
		t.Fatal("missing catalog entry")
	}
	if *spec.AlgorithmIndex != 0 || *spec.ProviderNameIndex != 1 || *spec.ProviderObjectIndex != 1 {
		t.Errorf("defaults = %d/%d/%d, want 0/1/1",
			*spec.AlgorithmIndex, *spec.ProviderNameIndex, *spec.ProviderObjectIndex)
	}

	spec, _ = c.ArgSpecFor("javax.crypto.Cipher", "getInstance")
	if *spec.AlgorithmIndex != 2 {
		t.Errorf("explicit algorithmIndex = %d, want 2", *spec.AlgorithmIndex)
	}
	if *spec.ProviderNameIndex != 1 {
		t.Errorf("defaulted providerNameIndex = %d, want 1", *spec.ProviderNameIndex)
	}
}

func TestNormalizeDuplicateFirstWins(t *testing.T) {
	zero, three := 0, 3
	c := &Catalog{
		CatalogID: "test",
		APIs: []ApiEntry{
			{API: ApiRef{ClassName: "javax.crypto.Mac", MethodName: "getInstance"},
				ArgSpec: &ArgSpec{AlgorithmIndex: &zero}},
			{API: ApiRef{ClassName: "javax.crypto.Mac", MethodName: "getInstance"},
				ArgSpec: &ArgSpec{AlgorithmIndex: &three}},
		},
	}
	c.Normalize()

	spec, _ := c.ArgSpecFor("javax.crypto.Mac", "getInstance")
	if *spec.AlgorithmIndex != 0 {
		t.Errorf("algorithmIndex = %d, want 0 (first entry wins)", *spec.AlgorithmIndex)
	}
}

func TestArgSpecForUnknownAPI(t *testing.T) {
	c := &Catalog{CatalogID: "test"}
	c.Normalize()
	if _, ok := c.ArgSpecFor("com.example.Foo", "bar"); ok {
		t.Error("unexpected hit for uncataloged API")
	}
}

func TestKey(t *testing.T) {
	if got := Key("javax.crypto.Cipher", "getInstance"); got != "javax.crypto.Cipher#getInstance" {
		t.Errorf("Key = %q", got)
	}
}

func TestLoadFile(t *testing.T) {
	content := `
catalogId: custom
version: "2"
apis:
  - api:
      className: com.example.Crypto
      methodName: digest
    argSpec:
      algorithmIndex: 1
`
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.CatalogID != "custom" {
		t.Errorf("catalogId = %q", c.CatalogID)
	}
	spec, ok := c.ArgSpecFor("com.example.Crypto", "digest")
	if !ok {
		t.Fatal("missing loaded entry")
	}
	if *spec.AlgorithmIndex != 1 || *spec.ProviderNameIndex != 1 {
		t.Errorf("spec = %d/%d, want 1/1", *spec.AlgorithmIndex, *spec.ProviderNameIndex)
	}
}

func TestLoadRejectsMissingCatalogID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("apis: []\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a catalog without catalogId")
	}
}

func TestLoadDefault(t *testing.T) {
	c, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	if c.CatalogID != "crypto-catalog-jce" {
		t.Errorf("catalogId = %q", c.CatalogID)
	}
	for _, api := range []string{"java.security.MessageDigest", "javax.crypto.Cipher", "javax.net.ssl.SSLContext"} {
		if _, ok := c.ArgSpecFor(api, "getInstance"); !ok {
			t.Errorf("default catalog missing %s#getInstance", api)
		}
	}
}
