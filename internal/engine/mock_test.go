package engine

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/borealmotors/reconcile-cli/internal/model"
	"github.com/borealmotors/reconcile-cli/internal/semantic"
)

// --- Semantic Resolver Mock ---

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) MatchBaseModel(ctx context.Context, q semantic.MatchQuery) (*semantic.BaseModelMatch, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*semantic.BaseModelMatch), args.Error(1)
}

func (m *mockResolver) ResolveModifier(ctx context.Context, q semantic.ModifierQuery) (*semantic.ModifierResolution, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*semantic.ModifierResolution), args.Error(1)
}

func (m *mockResolver) CheckConsistency(ctx context.Context, spec model.SpecTree, rowText string) (float64, error) {
	args := m.Called(ctx, spec, rowText)
	return args.Get(0).(float64), args.Error(1)
}

// --- Failing Collaborator Stubs ---

type failingCatalog struct {
	err error
}

func (c *failingCatalog) GetBaseModel(context.Context, string) (*model.BaseModelTemplate, error) {
	return nil, c.err
}

func (c *failingCatalog) ListCandidates(context.Context, string) ([]string, error) {
	return nil, c.err
}

func (c *failingCatalog) UpsertBaseModel(context.Context, *model.BaseModelTemplate) error {
	return c.err
}

type failingRegistry struct {
	err error
}

func (r *failingRegistry) Lookup(context.Context, string, string) (*model.OptionModifierRecord, error) {
	return nil, r.err
}

func (r *failingRegistry) Upsert(context.Context, *model.OptionModifierRecord) error {
	return r.err
}

func (r *failingRegistry) List(context.Context, string) ([]model.OptionModifierRecord, error) {
	return nil, r.err
}
