// Package catalog loads the versioned design-pattern catalog used to seed the registry.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry describes one catalog pattern.
type Entry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Example     string `yaml:"example"`
}

// Catalog is the parsed content of a catalog file.
type Catalog struct {
	Version  string  `yaml:"version"`
	Patterns []Entry `yaml:"patterns"`
}

// Load reads and validates the catalog at path.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes catalog YAML. Names are trimmed and must be unique ignoring case.
func Parse(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	c.Version = strings.TrimSpace(c.Version)
	if c.Version == "" {
		return nil, fmt.Errorf("catalog version is required")
	}
	if len(c.Patterns) == 0 {
		return nil, fmt.Errorf("catalog %s lists no patterns", c.Version)
	}

	seen := make(map[string]struct{}, len(c.Patterns))
	for i := range c.Patterns {
		entry := &c.Patterns[i]
		entry.Name = strings.TrimSpace(entry.Name)
		entry.Description = strings.TrimSpace(entry.Description)
		entry.Example = strings.TrimSpace(entry.Example)
		if entry.Name == "" {
			return nil, fmt.Errorf("catalog entry %d has no name", i)
		}
		key := strings.ToLower(entry.Name)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("catalog lists %q more than once", entry.Name)
		}
		seen[key] = struct{}{}
	}
	return &c, nil
}

// Names returns the pattern names in file order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.Patterns))
	for i, p := range c.Patterns {
		names[i] = p.Name
	}
	return names
}
