package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/borealmotors/reconcile-cli/internal/model"
)

// ErrNotFound is returned when no base model exists for a lookup key.
var ErrNotFound = eris.New("catalog: base model not found")

// Catalog is the repository of base model templates. GetBaseModel
// returns ErrNotFound for unknown keys; any other error means the
// backing store itself is unavailable and the caller should stop rather
// than treat the row as unmatched.
type Catalog interface {
	GetBaseModel(ctx context.Context, key string) (*model.BaseModelTemplate, error)
	ListCandidates(ctx context.Context, brand string) ([]string, error)
	UpsertBaseModel(ctx context.Context, t *model.BaseModelTemplate) error
}

// MemoryCatalog is an in-memory Catalog for tests and fixture-backed
// runs.
type MemoryCatalog struct {
	mu        sync.RWMutex
	templates map[string]*model.BaseModelTemplate
}

// NewMemoryCatalog builds a catalog holding the given templates.
func NewMemoryCatalog(templates ...model.BaseModelTemplate) *MemoryCatalog {
	c := &MemoryCatalog{templates: make(map[string]*model.BaseModelTemplate, len(templates))}
	for i := range templates {
		t := templates[i]
		c.templates[TemplateKey(&t)] = &t
	}
	return c
}

// GetBaseModel returns a deep copy of the template stored under key, so
// callers can never mutate catalog state through the result.
func (c *MemoryCatalog) GetBaseModel(_ context.Context, key string) (*model.BaseModelTemplate, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.templates[key]
	if !ok {
		return nil, ErrNotFound
	}
	return t.DeepCopy(), nil
}

// ListCandidates returns the distinct model family names for a brand,
// sorted for deterministic prompts.
func (c *MemoryCatalog) ListCandidates(_ context.Context, brand string) ([]string, error) {
	want := Normalize(brand)

	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]struct{})
	var names []string
	for _, t := range c.templates {
		if Normalize(t.Brand) != want {
			continue
		}
		if _, dup := seen[t.ModelFamily]; dup {
			continue
		}
		seen[t.ModelFamily] = struct{}{}
		names = append(names, t.ModelFamily)
	}
	sort.Strings(names)
	return names, nil
}

// UpsertBaseModel stores a copy of the template under its key.
func (c *MemoryCatalog) UpsertBaseModel(_ context.Context, t *model.BaseModelTemplate) error {
	if t.Brand == "" || t.ModelFamily == "" || t.ModelYear == 0 {
		return eris.New("catalog: template missing brand, model_family or model_year")
	}
	cp := t.DeepCopy()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.templates[TemplateKey(cp)] = cp
	return nil
}
