package report

import (
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/cryptoseclab/cryptoaudit/internal/policy"
	"github.com/cryptoseclab/cryptoaudit/internal/scanner"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var htmlTemplates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

type indexRow struct {
	Class   string
	Total   int
	Pass    int
	Fail    int
	Unknown int
	Page    string // "" when the class has no FAIL/UNKNOWN page
}

type indexData struct {
	ScanID  string
	Input   string
	Summary Summary
	Rows    []indexRow
}

type classRow struct {
	Line      int
	Method    string
	API       string
	Algorithm string
	Provider  string
	Verdict   string
	Reason    string
	RuleID    string
}

type classData struct {
	Class      string
	SourceFile string
	ScanID     string
	Rows       []classRow
}

// WriteHTML writes index.html plus one page per class that has any FAIL or
// UNKNOWN analysis.
func WriteHTML(dir string, res *scanner.Result, analyses map[string][]policy.Analysis) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create report dir %s: %w", dir, err)
	}

	idx := indexData{
		ScanID:  res.ScanID,
		Input:   res.Input,
		Summary: Summarize(analyses),
	}

	for _, class := range res.Classes() {
		list := analyses[class]
		row := indexRow{Class: class, Total: len(list)}
		for _, a := range list {
			switch a.Verdict {
			case policy.VerdictPass:
				row.Pass++
			case policy.VerdictFail:
				row.Fail++
			default:
				row.Unknown++
			}
		}
		if row.Fail > 0 || row.Unknown > 0 {
			row.Page = class + ".html"
			if err := writeClassPage(dir, class, res, list); err != nil {
				return err
			}
		}
		idx.Rows = append(idx.Rows, row)
	}

	path := filepath.Join(dir, "index.html")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer f.Close()
	return htmlTemplates.ExecuteTemplate(f, "index.html.tmpl", idx)
}

func writeClassPage(dir, class string, res *scanner.Result, list []policy.Analysis) error {
	data := classData{Class: class, ScanID: res.ScanID}
	for _, a := range list {
		f := a.Finding
		if data.SourceFile == "" {
			data.SourceFile = f.Location.SourceFile
		}
		data.Rows = append(data.Rows, classRow{
			Line:      f.Location.Line,
			Method:    f.Location.MethodSignature,
			API:       f.API,
			Algorithm: argOrNone(f, 0),
			Provider:  argOrNone(f, 1),
			Verdict:   string(a.Verdict),
			Reason:    a.Reason,
			RuleID:    a.RuleID,
		})
	}

	path := filepath.Join(dir, class+".html")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer f.Close()
	return htmlTemplates.ExecuteTemplate(f, "class.html.tmpl", data)
}
