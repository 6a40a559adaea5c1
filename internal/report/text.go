// Package report renders scan analyses as text or HTML.
package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/cryptoseclab/cryptoaudit/internal/policy"
	"github.com/cryptoseclab/cryptoaudit/internal/scanner"
)

// Summary counts verdicts across a result set.
type Summary struct {
	Pass    int
	Fail    int
	Unknown int
}

func (s Summary) Total() int { return s.Pass + s.Fail + s.Unknown }

// Summarize tallies verdicts over all classes.
func Summarize(analyses map[string][]policy.Analysis) Summary {
	var s Summary
	for _, list := range analyses {
		for _, a := range list {
			switch a.Verdict {
			case policy.VerdictPass:
				s.Pass++
			case policy.VerdictFail:
				s.Fail++
			default:
				s.Unknown++
			}
		}
	}
	return s
}

var (
	passColor    = color.New(color.FgGreen)
	failColor    = color.New(color.FgRed, color.Bold)
	unknownColor = color.New(color.FgYellow)
)

func verdictSprint(v policy.Verdict) string {
	switch v {
	case policy.VerdictPass:
		return passColor.Sprint(string(v))
	case policy.VerdictFail:
		return failColor.Sprint(string(v))
	default:
		return unknownColor.Sprint(string(v))
	}
}

// WriteText renders one line per finding, grouped by class, followed by a
// per-class total. Color is controlled globally via color.NoColor.
func WriteText(w io.Writer, res *scanner.Result, analyses map[string][]policy.Analysis) error {
	for _, class := range res.Classes() {
		list := analyses[class]
		for _, a := range list {
			f := a.Finding
			fmt.Fprintf(w, "class=%s:%d  method=%s  api=%s  algorithm=%s  provider=%s  verdict=%s  reason=%s  rule=%s\n",
				f.Location.ClassName, f.Location.Line,
				f.Location.MethodSignature,
				f.API,
				argOrNone(f, 0), argOrNone(f, 1),
				verdictSprint(a.Verdict), a.Reason, a.RuleID)
		}
		fmt.Fprintf(w, "Total findings: %d\n", len(list))
	}
	return nil
}

func argOrNone(f scanner.Finding, idx int) string {
	arg, ok := f.Arg(idx)
	if !ok {
		return "None"
	}
	return arg.Printable
}
