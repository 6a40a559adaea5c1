package cli

import (
	"github.com/cryptoseclab/cryptoaudit/internal/catalog"
	"github.com/cryptoseclab/cryptoaudit/internal/config"
	"github.com/cryptoseclab/cryptoaudit/internal/policy"
)

// loadCatalog returns the configured catalog, falling back to the bundled
// JCE catalog when no path resolved.
func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogPath == "" {
		return catalog.LoadDefault()
	}
	return catalog.Load(cfg.CatalogPath)
}

// loadPolicy returns the configured policy, falling back to the bundled
// FIPS 140-2 Level 1 policy when no path resolved.
func loadPolicy(cfg *config.Config) (*policy.Policy, error) {
	if cfg.PolicyPath == "" {
		return policy.LoadDefault()
	}
	return policy.Load(cfg.PolicyPath)
}
