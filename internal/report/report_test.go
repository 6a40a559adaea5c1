package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/cryptoseclab/cryptoaudit/internal/policy"
	"github.com/cryptoseclab/cryptoaudit/internal/scanner"
)

func testFinding(class, algorithm string) scanner.Finding {
	return scanner.Finding{
		API:            "java.security.MessageDigest.getInstance",
		DeclaringClass: "java.security.MessageDigest",
		MethodName:     "getInstance",
		SubSignature:   "java.security.MessageDigest getInstance(java.lang.String)",
		Args: []scanner.ArgumentValue{
			{Index: 0, Printable: algorithm, Literal: algorithm, Resolved: true},
		},
		Location: scanner.Location{
			ClassName:       class,
			MethodSignature: "<" + class + ": void run()>",
			SourceFile:      "Run.java",
			Line:            7,
		},
	}
}

func testResult(t *testing.T) (*scanner.Result, map[string][]policy.Analysis) {
	t.Helper()
	res := scanner.NewResult("scan-1", "app.jar", map[string][]scanner.Finding{
		"com.example.Bad":  {testFinding("com.example.Bad", "MD5")},
		"com.example.Good": {testFinding("com.example.Good", "SHA-256")},
	})
	analyses := map[string][]policy.Analysis{
		"com.example.Bad": {{
			Finding: testFinding("com.example.Bad", "MD5"),
			RuleID:  "fips-digest", Verdict: policy.VerdictFail, Reason: policy.ReasonAlgoDenied,
		}},
		"com.example.Good": {{
			Finding: testFinding("com.example.Good", "SHA-256"),
			RuleID:  "fips-digest", Verdict: policy.VerdictPass, Reason: policy.ReasonAllowedAlgo,
		}},
	}
	return res, analyses
}

func TestWriteText(t *testing.T) {
	color.NoColor = true
	res, analyses := testResult(t)

	var buf bytes.Buffer
	if err := WriteText(&buf, res, analyses); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	out := buf.String()

	wantLine := "class=com.example.Bad:7  method=<com.example.Bad: void run()>  " +
		"api=java.security.MessageDigest.getInstance  algorithm=MD5  provider=None  " +
		"verdict=FAIL  reason=ALGO_DENIED  rule=fips-digest"
	if !strings.Contains(out, wantLine) {
		t.Errorf("output missing finding line.\nwant: %s\ngot:\n%s", wantLine, out)
	}
	if strings.Count(out, "Total findings: 1") != 2 {
		t.Errorf("expected a per-class total for both classes:\n%s", out)
	}

	// Classes render in sorted order.
	bad := strings.Index(out, "com.example.Bad")
	good := strings.Index(out, "com.example.Good")
	if bad < 0 || good < 0 || bad > good {
		t.Errorf("classes out of order:\n%s", out)
	}
}

func TestSummarize(t *testing.T) {
	_, analyses := testResult(t)
	s := Summarize(analyses)
	if s.Pass != 1 || s.Fail != 1 || s.Unknown != 0 || s.Total() != 2 {
		t.Errorf("summary = %+v", s)
	}
}

func TestWriteHTML(t *testing.T) {
	res, analyses := testResult(t)
	dir := filepath.Join(t.TempDir(), "report")

	if err := WriteHTML(dir, res, analyses); err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}

	index, err := os.ReadFile(filepath.Join(dir, "index.html"))
	if err != nil {
		t.Fatalf("index.html: %v", err)
	}
	for _, want := range []string{"com.example.Bad", "com.example.Good", "scan-1"} {
		if !strings.Contains(string(index), want) {
			t.Errorf("index.html missing %q", want)
		}
	}

	// Only the failing class gets a page.
	page, err := os.ReadFile(filepath.Join(dir, "com.example.Bad.html"))
	if err != nil {
		t.Fatalf("class page: %v", err)
	}
	for _, want := range []string{"MD5", "FAIL", "ALGO_DENIED", "fips-digest"} {
		if !strings.Contains(string(page), want) {
			t.Errorf("class page missing %q", want)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "com.example.Good.html")); !os.IsNotExist(err) {
		t.Error("all-PASS class should not get a page")
	}
}
