package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/borealmotors/reconcile-cli/internal/catalog"
	"github.com/borealmotors/reconcile-cli/internal/engine"
	"github.com/borealmotors/reconcile-cli/internal/model"
	"github.com/borealmotors/reconcile-cli/internal/registry"
	"github.com/borealmotors/reconcile-cli/internal/semantic"
	"github.com/borealmotors/reconcile-cli/internal/store"
	anthropicpkg "github.com/borealmotors/reconcile-cli/pkg/anthropic"
	"github.com/borealmotors/reconcile-cli/pkg/notion"
)

// engineEnv holds the store, clients and the reconciliation engine used
// by the reconcile/batch/serve commands.
type engineEnv struct {
	Store    store.Store
	Engine   *engine.Engine
	Resolver *semantic.AnthropicResolver
	Notion   notion.Client // nil when no token is configured
}

// Close releases resources held by the environment.
func (ee *engineEnv) Close() {
	if ee.Store != nil {
		_ = ee.Store.Close()
	}
}

// initEngine sets up the store, the semantic resolver and the engine.
// Callers should defer env.Close().
func initEngine(ctx context.Context) (*engineEnv, error) {
	if err := cfg.Validate("reconcile"); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	var fields *model.SpecFieldRegistry
	if cfg.Catalog.FieldsPath != "" {
		fields, err = catalog.LoadFieldsFile(cfg.Catalog.FieldsPath)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	resolver := semantic.NewAnthropicResolver(anthropicClient, cfg.Anthropic, cfg.Resolver)

	eng := engine.New(
		catalog.NewStoreCatalog(st),
		registry.NewStoreRegistry(st),
		resolver,
		fields,
		cfg.Engine,
	)

	var notionClient notion.Client
	if cfg.Notion.Token != "" {
		notionClient = notion.NewClient(cfg.Notion.Token)
	}

	return &engineEnv{Store: st, Engine: eng, Resolver: resolver, Notion: notionClient}, nil
}

// routeRecord persists a finished record and, for failed or
// requires-review outcomes, enqueues a review item and cards it into
// Notion when a review database is configured. Notion failures are
// logged, not fatal: the store's review queue is the primary surface.
func routeRecord(ctx context.Context, env *engineEnv, rec *model.FinalProductRecord) error {
	if err := env.Store.SaveRecord(ctx, rec); err != nil {
		return eris.Wrap(err, "save record")
	}

	if rec.ValidationStatus != model.StatusFailed && rec.ValidationStatus != model.StatusRequiresReview {
		return nil
	}

	item := &model.ReviewItem{
		RecordID:   rec.ID,
		Brand:      rec.Brand,
		ModelCode:  rec.Row.ModelCode,
		Reason:     rec.FailureReason,
		Confidence: rec.Scores.Final,
		Status:     model.ReviewOpen,
	}
	if err := env.Store.EnqueueReview(ctx, item); err != nil {
		return eris.Wrap(err, "enqueue review")
	}

	if env.Notion == nil || cfg.Notion.ReviewDB == "" {
		return nil
	}

	pageID, created, err := notion.PublishCard(ctx, env.Notion, cfg.Notion.ReviewDB, rec)
	if err != nil {
		zap.L().Warn("review card publish failed",
			zap.String("record_id", rec.ID),
			zap.Error(err),
		)
		return nil
	}
	if created {
		if err := env.Store.SetReviewPage(ctx, item.ID, pageID); err != nil {
			zap.L().Warn("review page link not saved",
				zap.String("review_id", item.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}
