// Package corpus enumerates compiled class files from a directory tree or a
// class archive, yielding raw bytes for the decoder. Unreadable individual
// entries are reported as warnings, not failures; only an unusable root path
// is fatal.
package corpus

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrCorpus marks a fatal corpus I/O failure: the input path does not exist
// or cannot be opened at all.
var ErrCorpus = errors.New("corpus unreadable")

const classExt = ".class"

// Entry is one enumerated class file.
type Entry struct {
	// Name is the class name guessed from the file path, dotted. The decoder
	// reads the authoritative name from the class bytes; this one is for
	// warnings about classes that fail to decode.
	Name string
	// Origin is the file or archive member the bytes came from.
	Origin string
	Bytes  []byte
}

// Load enumerates every class file reachable from path. A directory is
// walked recursively; archives (.jar, .war, .ear, .zip) are expanded, both
// as the root path and when found inside a directory. The returned order is
// stable for a given corpus: lexical walk order, archive members in archive
// order.
func Load(path string) ([]Entry, []string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrCorpus, path, err)
	}

	if !info.IsDir() {
		if isArchive(path) {
			return loadArchive(path)
		}
		if strings.HasSuffix(path, classExt) {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %s: %v", ErrCorpus, path, err)
			}
			return []Entry{{Name: classNameFromPath(filepath.Base(path)), Origin: path, Bytes: data}}, nil, nil
		}
		return nil, nil, fmt.Errorf("%w: %s: not a directory, class file or archive", ErrCorpus, path)
	}

	var entries []Entry
	var warnings []string
	walkErr := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping %s: %v", p, err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		switch {
		case strings.HasSuffix(p, classExt):
			data, err := os.ReadFile(p)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("skipping %s: %v", p, err))
				return nil
			}
			rel, relErr := filepath.Rel(path, p)
			if relErr != nil {
				rel = filepath.Base(p)
			}
			entries = append(entries, Entry{Name: classNameFromPath(rel), Origin: p, Bytes: data})
		case isArchive(p):
			sub, subWarn, err := loadArchive(p)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("skipping archive %s: %v", p, err))
				return nil
			}
			entries = append(entries, sub...)
			warnings = append(warnings, subWarn...)
		}
		return nil
	})
	if walkErr != nil {
		return nil, warnings, fmt.Errorf("%w: %s: %v", ErrCorpus, path, walkErr)
	}
	return entries, warnings, nil
}

func loadArchive(path string) ([]Entry, []string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrCorpus, path, err)
	}
	defer zr.Close()

	var entries []Entry
	var warnings []string
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, classExt) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping %s!%s: %v", path, f.Name, err))
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping %s!%s: %v", path, f.Name, err))
			continue
		}
		entries = append(entries, Entry{
			Name:   classNameFromPath(f.Name),
			Origin: path + "!" + f.Name,
			Bytes:  data,
		})
	}
	return entries, warnings, nil
}

func isArchive(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jar", ".war", ".ear", ".zip":
		return true
	}
	return false
}

// classNameFromPath turns "com/example/Foo.class" into "com.example.Foo".
func classNameFromPath(p string) string {
	p = strings.TrimSuffix(p, classExt)
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.ReplaceAll(p, "/", ".")
}
