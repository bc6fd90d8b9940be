package canonical

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/utlib/eacli/internal/record"
)

// Lookup is an immutable department-to-category mapping. It is constructed
// once and passed into the Canonicalizer; nothing mutates it afterwards.
type Lookup struct {
	mapping map[string]string
}

// NewLookup builds a lookup from a literal map. The map is copied, so the
// caller's map can be reused freely.
func NewLookup(mapping map[string]string) *Lookup {
	m := make(map[string]string, len(mapping))
	for k, v := range mapping {
		m[k] = v
	}
	return &Lookup{mapping: m}
}

// LoadLookup reads a mapping file. The format is chosen by extension:
// .json, .yaml/.yml, or .toml. All three decode to a flat string-to-string
// map of department label to category code.
func LoadLookup(path string) (*Lookup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}

	mapping := make(map[string]string)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &mapping); err != nil {
			return nil, fmt.Errorf("failed to parse JSON mapping %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &mapping); err != nil {
			return nil, fmt.Errorf("failed to parse YAML mapping %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &mapping); err != nil {
			return nil, fmt.Errorf("failed to parse TOML mapping %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported mapping file format: %s", path)
	}

	return NewLookup(mapping), nil
}

// Category resolves a raw department label to its category code.
//
// A blank department maps to the no-category sentinel; a department missing
// from the table maps to "Unmapped". An unknown department is never an
// error: the taxonomy tolerates departments the table has not caught up
// with yet.
func (l *Lookup) Category(department string) string {
	department = strings.TrimSpace(department)
	if department == "" {
		return record.CategoryNone
	}
	category, ok := l.mapping[department]
	if !ok {
		return record.CategoryUnmapped
	}
	// Some mapping tables carry entries that intentionally map to nothing
	// (e.g. test courses). Treat those like a blank department.
	if strings.TrimSpace(category) == "" {
		return record.CategoryNone
	}
	return category
}

// Known reports whether the department appears in the table.
func (l *Lookup) Known(department string) bool {
	_, ok := l.mapping[strings.TrimSpace(department)]
	return ok
}

// Len returns the number of mapped departments.
func (l *Lookup) Len() int {
	return len(l.mapping)
}
