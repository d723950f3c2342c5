// Package registry resolves option modifier tokens against the curated
// option modifier registry, and promotes externally resolved modifiers
// into it once they have proven themselves.
package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/borealmotors/reconcile-cli/internal/catalog"
	"github.com/borealmotors/reconcile-cli/internal/model"
	"github.com/borealmotors/reconcile-cli/internal/store"
)

// ErrNotFound is returned when no registry entry matches a token.
// Callers treat it as the signal to fall through to external resolution.
var ErrNotFound = eris.New("registry: modifier not found")

// Registry is the option modifier registry. Lookup matches are
// case-insensitive and diacritics-folded on brand and modifier name.
type Registry interface {
	Lookup(ctx context.Context, brand, name string) (*model.OptionModifierRecord, error)
	Upsert(ctx context.Context, m *model.OptionModifierRecord) error
	List(ctx context.Context, brand string) ([]model.OptionModifierRecord, error)
}

// MemoryRegistry keeps modifiers in memory, keyed by normalized brand
// and name. Used for fixture-driven runs and tests.
type MemoryRegistry struct {
	mu      sync.RWMutex
	entries map[string]*model.OptionModifierRecord
}

// NewMemoryRegistry builds a registry pre-populated with the given modifiers.
func NewMemoryRegistry(mods ...model.OptionModifierRecord) *MemoryRegistry {
	r := &MemoryRegistry{entries: make(map[string]*model.OptionModifierRecord, len(mods))}
	for i := range mods {
		cp := copyModifier(&mods[i])
		r.entries[entryKey(cp.Brand, cp.Name)] = cp
	}
	return r
}

func (r *MemoryRegistry) Lookup(_ context.Context, brand, name string) (*model.OptionModifierRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.entries[entryKey(brand, name)]
	if !ok {
		return nil, ErrNotFound
	}
	return copyModifier(m), nil
}

func (r *MemoryRegistry) Upsert(_ context.Context, m *model.OptionModifierRecord) error {
	if m.Brand == "" || m.Name == "" {
		return eris.New("registry: modifier missing brand or name")
	}
	cp := copyModifier(m)
	if cp.Source == "" {
		cp.Source = model.SourceRegistry
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entryKey(cp.Brand, cp.Name)] = cp
	return nil
}

func (r *MemoryRegistry) List(_ context.Context, brand string) ([]model.OptionModifierRecord, error) {
	brandKey := ""
	if brand != "" {
		brandKey = catalog.Normalize(brand)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var mods []model.OptionModifierRecord
	for _, m := range r.entries {
		if brandKey != "" && catalog.Normalize(m.Brand) != brandKey {
			continue
		}
		mods = append(mods, *copyModifier(m))
	}
	sort.Slice(mods, func(i, j int) bool {
		if mods[i].Brand != mods[j].Brand {
			return mods[i].Brand < mods[j].Brand
		}
		return mods[i].Name < mods[j].Name
	})
	return mods, nil
}

// StoreRegistry serves modifiers from a Store.
type StoreRegistry struct {
	store store.Store
}

// NewStoreRegistry wraps a Store as a Registry.
func NewStoreRegistry(s store.Store) *StoreRegistry {
	return &StoreRegistry{store: s}
}

func (r *StoreRegistry) Lookup(ctx context.Context, brand, name string) (*model.OptionModifierRecord, error) {
	m, err := r.store.GetModifier(ctx, brand, name)
	if eris.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "registry: lookup %s/%s", brand, name)
	}
	return m, nil
}

func (r *StoreRegistry) Upsert(ctx context.Context, m *model.OptionModifierRecord) error {
	if m.Brand == "" || m.Name == "" {
		return eris.New("registry: modifier missing brand or name")
	}
	if m.Source == "" {
		m.Source = model.SourceRegistry
	}
	if err := r.store.UpsertModifier(ctx, m); err != nil {
		return eris.Wrapf(err, "registry: upsert %s/%s", m.Brand, m.Name)
	}
	return nil
}

func (r *StoreRegistry) List(ctx context.Context, brand string) ([]model.OptionModifierRecord, error) {
	mods, err := r.store.ListModifiers(ctx, brand)
	if err != nil {
		return nil, eris.Wrap(err, "registry: list modifiers")
	}
	return mods, nil
}

func entryKey(brand, name string) string {
	return catalog.Normalize(brand) + "|" + catalog.Normalize(name)
}

func copyModifier(m *model.OptionModifierRecord) *model.OptionModifierRecord {
	cp := *m
	cp.Deltas = append([]model.FieldDelta(nil), m.Deltas...)
	return &cp
}
