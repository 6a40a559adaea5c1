package policy

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultResourceName is the bundled policy used when no path is supplied.
const DefaultResourceName = "policy-fips-140-2-l1.yaml"

//go:embed policy-fips-140-2-l1.yaml
var defaultPolicyYAML []byte

// Load reads and normalizes a policy from a YAML file. Malformed regex
// patterns fail here, with the offending pattern in the error.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load policy %s: %w", path, err)
	}
	return parse(data, path)
}

// LoadDefault returns the bundled FIPS 140-2 Level 1 policy.
func LoadDefault() (*Policy, error) {
	return parse(defaultPolicyYAML, DefaultResourceName)
}

func parse(data []byte, origin string) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse policy %s: %w", origin, err)
	}
	if p.PolicyID == "" {
		return nil, fmt.Errorf("parse policy %s: missing policyId", origin)
	}
	if err := p.Normalize(); err != nil {
		return nil, fmt.Errorf("parse policy %s: %w", origin, err)
	}
	return &p, nil
}
