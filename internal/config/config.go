package config

import (
	"os"
	"path/filepath"
)

const (
	DefaultConfigDir   = ".cryptoaudit"
	DefaultCatalogFile = "catalog.yaml"
	DefaultPolicyFile  = "policy.yaml"
	DefaultLogFile     = "scan.jsonl"
)

// Config resolves where the catalog, policy and audit log live. An empty
// CatalogPath or PolicyPath means "use the embedded default resource".
type Config struct {
	CatalogPath string
	PolicyPath  string
	LogPath     string
	ConfigDir   string
}

// Load resolves paths: an explicit flag wins, otherwise a file in the
// config dir is used when it exists, otherwise the embedded resource
// (catalog/policy) or the config-dir default (log).
func Load(catalogPath, policyPath, logPath string) (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	configDir := filepath.Join(homeDir, DefaultConfigDir)
	if err := ensureDir(configDir); err != nil {
		return nil, err
	}

	cfg := &Config{ConfigDir: configDir}

	cfg.CatalogPath = resolve(catalogPath, filepath.Join(configDir, DefaultCatalogFile))
	cfg.PolicyPath = resolve(policyPath, filepath.Join(configDir, DefaultPolicyFile))

	if logPath != "" {
		cfg.LogPath = logPath
	} else {
		cfg.LogPath = filepath.Join(configDir, DefaultLogFile)
	}

	return cfg, nil
}

// resolve prefers the explicit path; otherwise the config-dir file when it
// exists; otherwise "" (embedded resource).
func resolve(explicit, fallback string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(fallback); err == nil {
		return fallback
	}
	return ""
}

func ensureDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0700)
	}
	return nil
}
