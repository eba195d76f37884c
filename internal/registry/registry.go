// Package registry holds the static list of intake categories. Entries are
// validated once at startup and immutable for the process lifetime.
package registry

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Category binds one intake stream to its ledger partition. All categories
// share the one booking calendar and draw from the same per-date slot pool.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Registry is the validated, ordered category list.
type Registry struct {
	categories []Category
	byID       map[string]Category
}

// DefaultCategories are the intake streams offered when no override is
// configured.
func DefaultCategories() []Category {
	return []Category{
		{ID: "medical", Name: "Medical Assistance"},
		{ID: "burial", Name: "Burial Assistance"},
		{ID: "educational", Name: "Educational Assistance"},
	}
}

// New validates and builds a registry from the given categories.
func New(categories []Category) (*Registry, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("registry: at least one category required")
	}
	byID := make(map[string]Category, len(categories))
	for i, c := range categories {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			return nil, fmt.Errorf("registry: category %d has empty id", i)
		}
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("registry: category %q has empty name", id)
		}
		if _, dup := byID[id]; dup {
			return nil, fmt.Errorf("registry: duplicate category id %q", id)
		}
		byID[id] = c
	}
	return &Registry{categories: categories, byID: byID}, nil
}

// FromJSON parses a configured category list, falling back to the defaults
// when the input is empty.
func FromJSON(raw string) (*Registry, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return New(DefaultCategories())
	}
	var categories []Category
	if err := json.Unmarshal([]byte(raw), &categories); err != nil {
		return nil, fmt.Errorf("registry: parse categories json: %w", err)
	}
	return New(categories)
}

// Categories returns the ordered category list.
func (r *Registry) Categories() []Category {
	return r.categories
}

// Lookup returns the category with the given ID.
func (r *Registry) Lookup(id string) (Category, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// Len returns the number of categories.
func (r *Registry) Len() int {
	return len(r.categories)
}
