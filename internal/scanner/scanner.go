// Package scanner discovers calls to cataloged cryptographic APIs in
// compiled class corpora and recovers string-literal arguments through a
// per-method constant tracker.
package scanner

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cryptoseclab/cryptoaudit/internal/catalog"
	"github.com/cryptoseclab/cryptoaudit/internal/classfile"
	"github.com/cryptoseclab/cryptoaudit/internal/corpus"
)

// Scanner drives a parallel task-per-class scan over a corpus.
type Scanner struct {
	Catalog *catalog.Catalog
	// Jobs bounds the worker pool; 0 means one worker per CPU.
	Jobs int
	// Warnf receives non-fatal per-entry problems (unreadable or malformed
	// classes). Nil discards them.
	Warnf func(format string, args ...any)
}

// Stats summarizes one scan run.
type Stats struct {
	ClassesScanned int
	ClassesSkipped int
	Findings       int
}

// Result holds all findings of one run, keyed by class name.
type Result struct {
	ScanID  string
	Input   string
	Stats   Stats
	byClass map[string][]Finding
}

// Classes returns the names of all scanned classes, including those without
// findings, sorted lexicographically.
func (r *Result) Classes() []string {
	names := make([]string, 0, len(r.byClass))
	for name := range r.byClass {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Findings returns the findings for one class, in (method, instruction)
// order.
func (r *Result) Findings(class string) []Finding {
	return r.byClass[class]
}

// NewResult assembles a result from precomputed findings, for callers that
// obtain findings outside a corpus scan.
func NewResult(scanID, input string, findings map[string][]Finding) *Result {
	res := &Result{ScanID: scanID, Input: input, byClass: findings}
	if res.byClass == nil {
		res.byClass = make(map[string][]Finding)
	}
	res.Stats.ClassesScanned = len(res.byClass)
	for _, list := range res.byClass {
		res.Stats.Findings += len(list)
	}
	return res
}

// New returns a scanner over the given catalog.
func New(cat *catalog.Catalog) *Scanner {
	return &Scanner{Catalog: cat}
}

func (s *Scanner) warnf(format string, args ...any) {
	if s.Warnf != nil {
		s.Warnf(format, args...)
	}
}

// Scan enumerates the corpus at path and scans every class. Classes run
// concurrently; findings within a class keep method and instruction order.
// Cancellation is honored at class boundaries: the returned result holds
// whatever completed, alongside ctx.Err().
func (s *Scanner) Scan(ctx context.Context, path string) (*Result, error) {
	entries, warnings, err := corpus.Load(path)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		s.warnf("%s", w)
	}

	res := &Result{
		ScanID:  uuid.NewString(),
		Input:   path,
		byClass: make(map[string][]Finding),
	}

	type classResult struct {
		name     string
		findings []Finding
		skipped  bool
	}
	perEntry := make([]classResult, len(entries))

	jobs := s.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for i := range entries {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			e := entries[i]
			cf, err := classfile.Parse(e.Bytes)
			if err != nil {
				s.warnf("skipping class %s (%s): %v", e.Name, e.Origin, err)
				perEntry[i] = classResult{skipped: true}
				return nil
			}
			perEntry[i] = classResult{
				name:     cf.Name,
				findings: s.scanClass(cf),
			}
			return nil
		})
	}
	_ = g.Wait()

	// Merge sequentially in corpus order so duplicate class names resolve
	// deterministically: the first occurrence wins.
	for _, cr := range perEntry {
		if cr.skipped {
			res.Stats.ClassesSkipped++
			continue
		}
		if cr.name == "" {
			continue // never ran: canceled before this entry
		}
		if _, dup := res.byClass[cr.name]; dup {
			s.warnf("duplicate class %s in corpus, keeping first occurrence", cr.name)
			continue
		}
		res.byClass[cr.name] = cr.findings
		res.Stats.ClassesScanned++
		res.Stats.Findings += len(cr.findings)
	}

	return res, ctx.Err()
}

// scanClass walks every method body and emits a finding for each invocation
// whose target is in the catalog.
func (s *Scanner) scanClass(cf *classfile.ClassFile) []Finding {
	var findings []Finding
	for mi := range cf.Methods {
		m := &cf.Methods[mi]
		if !m.HasCode {
			continue
		}
		var tr *tracker
		for idx, in := range m.Instructions {
			if in.Op != classfile.OpInvoke {
				continue
			}
			ref := in.Invoke
			if ref.ClassName == "" {
				continue // invokedynamic has no declaring class
			}
			if _, ok := s.Catalog.ArgSpecFor(ref.ClassName, ref.MethodName); !ok {
				continue
			}
			if tr == nil {
				tr = track(m)
			}
			findings = append(findings, Finding{
				API:            ref.ClassName + "." + ref.MethodName,
				DeclaringClass: ref.ClassName,
				MethodName:     ref.MethodName,
				SubSignature:   classfile.SubSignature(ref.MethodName, ref.Descriptor),
				Args:           tr.argsAt(idx, ref.ArgCount),
				Location: Location{
					ClassName:       cf.Name,
					MethodSignature: m.Signature(cf.Name),
					SourceFile:      cf.SourceFile,
					Line:            m.LineForPC(in.PC),
				},
			})
		}
	}
	return findings
}

// ScanBytes decodes and scans a single class given raw bytes. Used by tests.
func (s *Scanner) ScanBytes(data []byte) ([]Finding, error) {
	cf, err := classfile.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scan class: %w", err)
	}
	return s.scanClass(cf), nil
}
