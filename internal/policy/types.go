// Package policy models compliance policies over crypto API findings and
// evaluates findings to verdicts.
package policy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cryptoseclab/cryptoaudit/internal/scanner"
)

// Verdict is the outcome of evaluating one finding against a policy.
type Verdict string

const (
	VerdictPass    Verdict = "PASS"
	VerdictFail    Verdict = "FAIL"
	VerdictUnknown Verdict = "UNKNOWN"
)

// Synthetic rule ids used when no concrete rule produced the analysis.
const (
	RuleIDNoPolicyRule = "NO_POLICY_RULE"
	RuleIDNoDecision   = "NO_DECISION"
	ruleIDFallback     = "RULE"
)

// Reason codes carried on analyses. Provider reasons append the original
// provider name after a colon.
const (
	ReasonDefaultAlgoAllowed         = "DEFAULT_ALGO_ALLOWED"
	ReasonAlgoUnresolved             = "ALGO_UNRESOLVED"
	ReasonNoAlgorithmPolicy          = "NO_ALGORITHM_POLICY"
	ReasonAlgoDenied                 = "ALGO_DENIED"
	ReasonAlgoNotAllowed             = "ALGO_NOT_ALLOWED"
	ReasonAllowedAlgoDefaultProvider = "ALLOWED_ALGO_DEFAULT_PROVIDER"
	ReasonProviderUnresolved         = "PROVIDER_UNRESOLVED"
	ReasonProviderDenied             = "PROVIDER_DENIED"
	ReasonProviderNotAllowed         = "PROVIDER_NOT_ALLOWED"
	ReasonAllowedAlgo                = "ALLOWED_ALGO"
	ReasonNoPolicyRule               = "No rule for API"
	ReasonNoDecision                 = "NO_DECISION"
)

// Lists is the allow/deny shape shared by algorithm and provider
// constraints. Nil and empty are distinct: a nil Allow imposes nothing,
// an empty non-nil Allow permits nothing.
type Lists struct {
	Allow      []string `yaml:"allow"`
	Deny       []string `yaml:"deny"`
	AllowRegex []string `yaml:"allowRegex"`
	DenyRegex  []string `yaml:"denyRegex"`

	allowRE []*regexp.Regexp
	denyRE  []*regexp.Regexp
}

// Rule constrains one API. Its api field matches Finding.API by exact
// string equality.
type Rule struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	API         string `yaml:"api"`
	Algorithms  *Lists `yaml:"algorithms"`
	Providers   *Lists `yaml:"providers"`
}

// Policy is an ordered rule set. Evaluation order equals load order.
type Policy struct {
	PolicyID    string `yaml:"policyId"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
	Rules       []Rule `yaml:"rules"`
}

// Analysis is the verdict for one finding. RuleID is never blank: synthetic
// ids stand in when no rule matched or decided.
type Analysis struct {
	Finding  scanner.Finding
	PolicyID string
	RuleID   string
	Verdict  Verdict
	Reason   string
}

// Normalize uppercases literal lists and makes regex lists case-insensitive
// by prefixing (?i), then compiles them. It is idempotent and must run once
// after loading; malformed patterns are fatal here rather than at
// evaluation time.
func (p *Policy) Normalize() error {
	for i := range p.Rules {
		r := &p.Rules[i]
		for _, lists := range []*Lists{r.Algorithms, r.Providers} {
			if lists == nil {
				continue
			}
			if err := lists.normalize(); err != nil {
				return fmt.Errorf("policy %s rule %s: %w", p.PolicyID, r.ID, err)
			}
		}
	}
	return nil
}

func (l *Lists) normalize() error {
	upper(l.Allow)
	upper(l.Deny)
	var err error
	if l.allowRE, err = compileInsensitive(l.AllowRegex); err != nil {
		return err
	}
	if l.denyRE, err = compileInsensitive(l.DenyRegex); err != nil {
		return err
	}
	return nil
}

func upper(list []string) {
	for i := range list {
		list[i] = strings.ToUpper(list[i])
	}
}

func compileInsensitive(patterns []string) ([]*regexp.Regexp, error) {
	if patterns == nil {
		return nil, nil
	}
	res := make([]*regexp.Regexp, 0, len(patterns))
	for i, p := range patterns {
		if !strings.HasPrefix(p, "(?i)") {
			p = "(?i)" + p
			patterns[i] = p
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %v", p, err)
		}
		res = append(res, re)
	}
	return res, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func matchAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
