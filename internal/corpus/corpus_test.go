package corpus

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func writeJar(t *testing.T, path string, members map[string][]byte) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range members {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	writeFile(t, path, buf.Bytes())
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "com", "example", "Foo.class"), []byte("foo"))
	writeFile(t, filepath.Join(dir, "Bar.class"), []byte("bar"))
	writeFile(t, filepath.Join(dir, "README.md"), []byte("ignored"))

	entries, warnings, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v", warnings)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}

	// Lexical walk order: Bar.class before com/example/Foo.class.
	if entries[0].Name != "Bar" || entries[1].Name != "com.example.Foo" {
		t.Errorf("names = %q, %q", entries[0].Name, entries[1].Name)
	}
	if string(entries[1].Bytes) != "foo" {
		t.Errorf("bytes = %q", entries[1].Bytes)
	}
}

func TestLoadArchive(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "app.jar")
	writeJar(t, jar, map[string][]byte{
		"com/example/Foo.class": []byte("foo"),
		"META-INF/MANIFEST.MF":  []byte("ignored"),
	})

	entries, _, err := Load(jar)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Name != "com.example.Foo" {
		t.Errorf("name = %q", entries[0].Name)
	}
	if entries[0].Origin != jar+"!com/example/Foo.class" {
		t.Errorf("origin = %q", entries[0].Origin)
	}
}

func TestLoadMixedCorpus(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Loose.class"), []byte("loose"))
	writeJar(t, filepath.Join(dir, "lib", "dep.jar"), map[string][]byte{
		"com/dep/Dep.class": []byte("dep"),
	})

	entries, _, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	if !names["Loose"] || !names["com.dep.Dep"] {
		t.Errorf("entries = %+v", entries)
	}
}

func TestLoadSingleClassFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Foo.class")
	writeFile(t, path, []byte("foo"))

	entries, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "Foo" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestLoadMissingPath(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, ErrCorpus) {
		t.Errorf("error = %v, want ErrCorpus", err)
	}
}

func TestLoadCorruptArchive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.jar")
	writeFile(t, path, []byte("this is not a zip"))

	_, _, err := Load(path)
	if !errors.Is(err, ErrCorpus) {
		t.Errorf("error = %v, want ErrCorpus", err)
	}
}

func TestLoadCorruptArchiveInsideDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Good.class"), []byte("good"))
	writeFile(t, filepath.Join(dir, "bad.jar"), []byte("this is not a zip"))

	entries, warnings, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("entries = %d, want 1", len(entries))
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %v, want one for the bad archive", warnings)
	}
}
