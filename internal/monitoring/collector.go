package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/borealmotors/reconcile-cli/internal/model"
	"github.com/borealmotors/reconcile-cli/internal/store"
)

// collectLimit caps how many records one snapshot aggregates over.
const collectLimit = 10000

// MetricsSnapshot holds a point-in-time view of reconciliation health.
type MetricsSnapshot struct {
	// Record metrics (within lookback window).
	RecordsTotal  int     `json:"records_total"`
	RecordsPassed int     `json:"records_passed"`
	RecordsFailed int     `json:"records_failed"`
	RecordsReview int     `json:"records_requires_review"`
	AutoAccepted  int     `json:"auto_accepted"`
	FailRate      float64 `json:"fail_rate"`
	AvgFinalScore float64 `json:"avg_final_score"`

	// Open review queue depth, regardless of window.
	ReviewBacklog int `json:"review_backlog"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the record store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of reconciliation metrics over the given
// lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	recs, err := c.store.ListRecords(ctx, store.RecordFilter{
		CreatedAfter: cutoff,
		Limit:        collectLimit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list records")
	}

	snap.RecordsTotal = len(recs)
	var totalScore float64
	var scored int

	for i := range recs {
		r := &recs[i]
		switch r.ValidationStatus {
		case model.StatusPassed:
			snap.RecordsPassed++
		case model.StatusFailed:
			snap.RecordsFailed++
		case model.StatusRequiresReview:
			snap.RecordsReview++
		}
		if r.AutoAccepted {
			snap.AutoAccepted++
		}
		if r.Scores.Final > 0 {
			totalScore += r.Scores.Final
			scored++
		}
	}

	finished := snap.RecordsPassed + snap.RecordsFailed + snap.RecordsReview
	if finished > 0 {
		snap.FailRate = float64(snap.RecordsFailed) / float64(finished)
	}
	if scored > 0 {
		snap.AvgFinalScore = totalScore / float64(scored)
	}

	backlog, err := c.store.CountReviews(ctx, model.ReviewOpen)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count open reviews")
	}
	snap.ReviewBacklog = backlog

	return snap, nil
}
