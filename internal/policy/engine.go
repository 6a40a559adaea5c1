package policy

import (
	"strings"

	"github.com/cryptoseclab/cryptoaudit/internal/catalog"
	"github.com/cryptoseclab/cryptoaudit/internal/scanner"
)

// Engine evaluates findings against one policy. It is pure and stateless
// after construction and safe to call from multiple goroutines.
type Engine struct {
	policy  *Policy
	catalog *catalog.Catalog
}

// NewEngine builds an engine over a normalized policy and catalog.
func NewEngine(p *Policy, cat *catalog.Catalog) *Engine {
	return &Engine{policy: p, catalog: cat}
}

// Policy returns the engine's policy.
func (e *Engine) Policy() *Policy { return e.policy }

// Evaluate computes the verdict for one finding.
//
// Rules whose api field equals the finding's API apply, in policy order.
// PASS and UNKNOWN short-circuit; the first FAIL is remembered so a later
// rule can still PASS the finding. Within a rule, deny wins over allow.
func (e *Engine) Evaluate(f scanner.Finding) Analysis {
	a := e.evaluate(f)
	a.Finding = f
	a.PolicyID = e.policy.PolicyID
	return a
}

// EvaluateAll maps every class's findings to analyses, preserving order.
func (e *Engine) EvaluateAll(res *scanner.Result) map[string][]Analysis {
	out := make(map[string][]Analysis, len(res.Classes()))
	for _, class := range res.Classes() {
		findings := res.Findings(class)
		analyses := make([]Analysis, 0, len(findings))
		for _, f := range findings {
			analyses = append(analyses, e.Evaluate(f))
		}
		out[class] = analyses
	}
	return out
}

func (e *Engine) evaluate(f scanner.Finding) Analysis {
	var applicable []*Rule
	for i := range e.policy.Rules {
		if e.policy.Rules[i].API == f.API {
			applicable = append(applicable, &e.policy.Rules[i])
		}
	}
	if len(applicable) == 0 {
		return Analysis{RuleID: RuleIDNoPolicyRule, Verdict: VerdictUnknown, Reason: ReasonNoPolicyRule}
	}

	var firstFail *Analysis
	for _, r := range applicable {
		a := e.evaluateRule(f, r)
		a.RuleID = ruleID(r)
		switch a.Verdict {
		case VerdictPass, VerdictUnknown:
			return a
		case VerdictFail:
			if firstFail == nil {
				firstFail = &a
			}
		}
	}
	if firstFail != nil {
		return *firstFail
	}
	return Analysis{RuleID: RuleIDNoDecision, Verdict: VerdictUnknown, Reason: ReasonNoDecision}
}

func ruleID(r *Rule) string {
	if strings.TrimSpace(r.ID) == "" {
		return ruleIDFallback
	}
	return r.ID
}

// evaluateRule runs the single-rule decision ladder: algorithm presence and
// resolution, deny before allow, then the same for the provider.
func (e *Engine) evaluateRule(f scanner.Finding, r *Rule) Analysis {
	spec := e.argSpec(f)

	algoArg, present := argAt(f, spec.AlgorithmIndex)
	if !present {
		return Analysis{Verdict: VerdictPass, Reason: ReasonDefaultAlgoAllowed}
	}
	if !algoArg.Resolved {
		return Analysis{Verdict: VerdictUnknown, Reason: ReasonAlgoUnresolved}
	}
	if r.Algorithms == nil {
		return Analysis{Verdict: VerdictUnknown, Reason: ReasonNoAlgorithmPolicy}
	}

	algo := strings.ToUpper(algoArg.Literal)
	if contains(r.Algorithms.Deny, algo) || matchAny(r.Algorithms.denyRE, algo) {
		return Analysis{Verdict: VerdictFail, Reason: ReasonAlgoDenied}
	}
	if r.Algorithms.Allow != nil || r.Algorithms.AllowRegex != nil {
		if !contains(r.Algorithms.Allow, algo) && !matchAny(r.Algorithms.allowRE, algo) {
			return Analysis{Verdict: VerdictFail, Reason: ReasonAlgoNotAllowed}
		}
	}

	provArg, present := argAt(f, spec.ProviderNameIndex)
	if !present {
		return Analysis{Verdict: VerdictPass, Reason: ReasonAllowedAlgoDefaultProvider}
	}
	if !provArg.Resolved {
		return Analysis{Verdict: VerdictUnknown, Reason: ReasonProviderUnresolved}
	}

	provider := strings.ToUpper(provArg.Literal)
	if r.Providers != nil && contains(r.Providers.Deny, provider) {
		return Analysis{Verdict: VerdictFail, Reason: ReasonProviderDenied + ":" + provArg.Literal}
	}
	if r.Providers != nil && r.Providers.Allow != nil && len(r.Providers.Allow) > 0 &&
		!contains(r.Providers.Allow, provider) {
		return Analysis{Verdict: VerdictFail, Reason: ReasonProviderNotAllowed + ":" + provArg.Literal}
	}
	return Analysis{Verdict: VerdictPass, Reason: ReasonAllowedAlgo}
}

// argSpec resolves the finding's argument layout, falling back to catalog
// defaults for findings whose API left the catalog since the scan.
func (e *Engine) argSpec(f scanner.Finding) catalog.ArgSpec {
	if spec, ok := e.catalog.ArgSpecFor(f.DeclaringClass, f.MethodName); ok {
		return *spec
	}
	algo := catalog.DefaultAlgorithmIndex
	prov := catalog.DefaultProviderNameIndex
	obj := catalog.DefaultProviderObjectIndex
	return catalog.ArgSpec{AlgorithmIndex: &algo, ProviderNameIndex: &prov, ProviderObjectIndex: &obj}
}

func argAt(f scanner.Finding, idx *int) (scanner.ArgumentValue, bool) {
	if idx == nil || *idx < 0 {
		return scanner.ArgumentValue{}, false
	}
	return f.Arg(*idx)
}
