// Package store persists the base model catalog, the option modifier
// registry, reconciled product records and the human review queue.
package store

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/rotisserie/eris"

	"github.com/borealmotors/reconcile-cli/internal/model"
)

// ErrNotFound marks key lookups that matched no stored row. Callers
// that treat a miss as a signal (catalog fallback, registry miss)
// test for it with eris.Is.
var ErrNotFound = eris.New("store: not found")

// RecordFilter specifies criteria for listing product records.
type RecordFilter struct {
	Status       model.ValidationStatus `json:"status,omitempty"`
	Brand        string                 `json:"brand,omitempty"`
	Market       string                 `json:"market,omitempty"`
	ModelYear    int                    `json:"model_year,omitempty"`
	CreatedAfter time.Time              `json:"created_after,omitempty"`
	Limit        int                    `json:"limit,omitempty"`
	Offset       int                    `json:"offset,omitempty"`
}

// TemplateEntry pairs a catalog lookup key with its template for bulk imports.
type TemplateEntry struct {
	Key      string
	Template model.BaseModelTemplate
}

// Store defines the persistence interface for the reconciliation engine.
type Store interface {
	// Base model catalog
	UpsertTemplate(ctx context.Context, key string, t *model.BaseModelTemplate) error
	GetTemplate(ctx context.Context, key string) (*model.BaseModelTemplate, error)
	ListFamilies(ctx context.Context, brand string) ([]string, error)
	ImportTemplates(ctx context.Context, entries []TemplateEntry) (int64, error)

	// Option modifier registry
	GetModifier(ctx context.Context, brand, name string) (*model.OptionModifierRecord, error)
	UpsertModifier(ctx context.Context, m *model.OptionModifierRecord) error
	ListModifiers(ctx context.Context, brand string) ([]model.OptionModifierRecord, error)
	ImportModifiers(ctx context.Context, mods []model.OptionModifierRecord) (int64, error)

	// Product records
	SaveRecord(ctx context.Context, rec *model.FinalProductRecord) error
	GetRecord(ctx context.Context, id string) (*model.FinalProductRecord, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.FinalProductRecord, error)

	// Review queue
	EnqueueReview(ctx context.Context, item *model.ReviewItem) error
	ListReviews(ctx context.Context, status model.ReviewStatus, limit int) ([]model.ReviewItem, error)
	CountReviews(ctx context.Context, status model.ReviewStatus) (int, error)
	ResolveReview(ctx context.Context, id string) error
	SetReviewPage(ctx context.Context, id, pageID string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// normKey canonicalizes brand and modifier names for key columns:
// uppercase, punctuation collapsed to single spaces. "Ski-Doo" and
// "SKI DOO" address the same row. Applied on both write and read.
func normKey(s string) string {
	var b strings.Builder
	pendingSpace := false
	for _, r := range strings.ToUpper(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		} else {
			pendingSpace = true
		}
	}
	return b.String()
}
