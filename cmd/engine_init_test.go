package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borealmotors/reconcile-cli/internal/model"
	"github.com/borealmotors/reconcile-cli/internal/store"
)

func reviewedRecord(id string, status model.ValidationStatus) *model.FinalProductRecord {
	return &model.FinalProductRecord{
		ID:               id,
		Row:              serveRow(),
		Brand:            "Lynx",
		ModelFamily:      "Rave RE",
		ModelYear:        2026,
		ValidationStatus: status,
		FailureReason:    "final score below review threshold",
		Scores:           model.ScoreBreakdown{Tech: 0.8, Business: 0.7, Semantic: 0.6, Final: 0.69},
	}
}

func TestRouteRecord_EnqueuesReview(t *testing.T) {
	ctx := context.Background()
	env := newServeEnv(t)

	rec := reviewedRecord("rec-review-1", model.StatusRequiresReview)
	require.NoError(t, routeRecord(ctx, env, rec))

	// Persisted.
	stored, err := env.Store.GetRecord(ctx, "rec-review-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRequiresReview, stored.ValidationStatus)

	// Queued for review.
	reviews, err := env.Store.ListReviews(ctx, model.ReviewOpen, 10)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, "rec-review-1", reviews[0].RecordID)
	assert.Equal(t, "LTTA", reviews[0].ModelCode)
}

func TestRouteRecord_PassedSkipsReview(t *testing.T) {
	ctx := context.Background()
	env := newServeEnv(t)

	rec := reviewedRecord("rec-pass-1", model.StatusPassed)
	rec.FailureReason = ""
	require.NoError(t, routeRecord(ctx, env, rec))

	reviews, err := env.Store.ListReviews(ctx, model.ReviewOpen, 10)
	require.NoError(t, err)
	assert.Empty(t, reviews)
}

func TestCollectExportRecords(t *testing.T) {
	ctx := context.Background()
	env := newServeEnv(t)

	require.NoError(t, env.Store.SaveRecord(ctx, reviewedRecord("exp-1", model.StatusPassed)))
	require.NoError(t, env.Store.SaveRecord(ctx, reviewedRecord("exp-2", model.StatusPassed)))
	require.NoError(t, env.Store.SaveRecord(ctx, reviewedRecord("exp-3", model.StatusRequiresReview)))
	require.NoError(t, env.Store.SaveRecord(ctx, reviewedRecord("exp-4", model.StatusFailed)))

	passed, err := collectExportRecords(ctx, env.Store, store.RecordFilter{}, false)
	require.NoError(t, err)
	assert.Len(t, passed, 2)

	withReview, err := collectExportRecords(ctx, env.Store, store.RecordFilter{}, true)
	require.NoError(t, err)
	assert.Len(t, withReview, 3)

	lynxOnly, err := collectExportRecords(ctx, env.Store, store.RecordFilter{Brand: "Polaris"}, false)
	require.NoError(t, err)
	assert.Empty(t, lynxOnly)
}
