package catalog

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/borealmotors/reconcile-cli/internal/model"
	"github.com/borealmotors/reconcile-cli/internal/store"
)

// StoreCatalog serves base models from a Store, so reconcile runs and
// catalog imports share one source of truth.
type StoreCatalog struct {
	store store.Store
}

// NewStoreCatalog wraps a Store as a Catalog.
func NewStoreCatalog(s store.Store) *StoreCatalog {
	return &StoreCatalog{store: s}
}

func (c *StoreCatalog) GetBaseModel(ctx context.Context, key string) (*model.BaseModelTemplate, error) {
	t, err := c.store.GetTemplate(ctx, key)
	if eris.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: get base model %s", key)
	}
	return t, nil
}

func (c *StoreCatalog) ListCandidates(ctx context.Context, brand string) ([]string, error) {
	families, err := c.store.ListFamilies(ctx, brand)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: list candidates for %s", brand)
	}
	return families, nil
}

func (c *StoreCatalog) UpsertBaseModel(ctx context.Context, t *model.BaseModelTemplate) error {
	if t.Brand == "" || t.ModelFamily == "" || t.ModelYear == 0 {
		return eris.New("catalog: template missing brand, model_family or model_year")
	}
	if err := c.store.UpsertTemplate(ctx, TemplateKey(t), t); err != nil {
		return eris.Wrapf(err, "catalog: upsert base model %s", TemplateKey(t))
	}
	return nil
}
