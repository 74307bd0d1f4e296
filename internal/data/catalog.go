package data

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"energy-net/internal/strategy"
)

// Side says which agent a catalog policy drives.
type Side string

const (
	SideISO Side = "iso"
	SidePCS Side = "pcs"
)

// CatalogEntry is a named, reusable frozen policy.
type CatalogEntry struct {
	Name        string        `json:"name"`
	Side        Side          `json:"side"`
	Description string        `json:"description,omitempty"`
	Spec        strategy.Spec `json:"spec"`
}

// Catalog is the on-disk collection of named policies served by the API.
type Catalog struct {
	UpdatedAt string         `json:"updated_at"` // RFC 3339
	Policies  []CatalogEntry `json:"policies"`
}

// LoadCatalog loads a catalog from a JSON file.
func LoadCatalog(filePath string) (*Catalog, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var c Catalog
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}
	for i, e := range c.Policies {
		if e.Name == "" {
			return nil, fmt.Errorf("catalog entry %d: name is required", i)
		}
		if e.Side != SideISO && e.Side != SidePCS {
			return nil, fmt.Errorf("catalog entry %q: side must be iso or pcs", e.Name)
		}
	}
	return &c, nil
}

// SaveCatalog writes a catalog to a JSON file.
func SaveCatalog(c *Catalog, filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	raw, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}

	if err := os.WriteFile(filePath, raw, 0644); err != nil {
		return fmt.Errorf("failed to write catalog file: %w", err)
	}
	return nil
}

// DefaultCatalogPath returns the default path for the catalog file.
func DefaultCatalogPath() string {
	if path := os.Getenv("POLICY_CATALOG"); path != "" {
		return path
	}
	return "./data/policies.json"
}

func (c *Catalog) Find(name string) (CatalogEntry, bool) {
	if c == nil {
		return CatalogEntry{}, false
	}
	for _, e := range c.Policies {
		if e.Name == name {
			return e, true
		}
	}
	return CatalogEntry{}, false
}

// BySide splits the catalog into side-keyed slices, each sorted by name.
func (c *Catalog) BySide() map[Side][]CatalogEntry {
	out := map[Side][]CatalogEntry{}
	if c == nil {
		return out
	}
	for _, e := range c.Policies {
		out[e.Side] = append(out[e.Side], e)
	}
	for _, list := range out {
		sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	}
	return out
}

// Merge adds or replaces entries by name.
func (c *Catalog) Merge(entries ...CatalogEntry) {
	for _, e := range entries {
		replaced := false
		for i := range c.Policies {
			if c.Policies[i].Name == e.Name {
				c.Policies[i] = e
				replaced = true
				break
			}
		}
		if !replaced {
			c.Policies = append(c.Policies, e)
		}
	}
}
