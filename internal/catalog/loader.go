package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultResourceName is the bundled catalog used when no path is supplied.
const DefaultResourceName = "crypto-catalog-jce.yaml"

//go:embed crypto-catalog-jce.yaml
var defaultCatalogYAML []byte

// Load reads and normalizes a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	return parse(data, path)
}

// LoadDefault returns the bundled JCE catalog.
func LoadDefault() (*Catalog, error) {
	return parse(defaultCatalogYAML, DefaultResourceName)
}

func parse(data []byte, origin string) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", origin, err)
	}
	if c.CatalogID == "" {
		return nil, fmt.Errorf("parse catalog %s: missing catalogId", origin)
	}
	c.Normalize()
	return &c, nil
}
