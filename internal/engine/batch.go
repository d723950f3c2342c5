package engine

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/borealmotors/reconcile-cli/internal/model"
)

// RowError pairs a rejected input row with the reason it never entered
// the engine.
type RowError struct {
	Index int
	Row   model.PriceListRow
	Err   error
}

// ReconcileBatch runs the engine over a batch of rows with at most
// maxConcurrent rows in flight. Rows are independent, so output order
// follows input order regardless of completion order. Malformed rows
// are reported in the RowError slice and skipped; a collaborator
// failure aborts the whole batch.
func (e *Engine) ReconcileBatch(ctx context.Context, rows []model.PriceListRow, maxConcurrent int) ([]*model.FinalProductRecord, []RowError, error) {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	var rowErrs []RowError
	records := make([]*model.FinalProductRecord, len(rows))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	scheduled := 0
	for i := range rows {
		if err := rows[i].Validate(); err != nil {
			rowErrs = append(rowErrs, RowError{Index: i, Row: rows[i], Err: err})
			continue
		}
		scheduled++
		g.Go(func() error {
			rec, err := e.Reconcile(gCtx, rows[i])
			if err != nil {
				return err
			}
			records[i] = rec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, eris.Wrap(err, "engine: batch aborted")
	}

	out := make([]*model.FinalProductRecord, 0, scheduled)
	for _, rec := range records {
		if rec != nil {
			out = append(out, rec)
		}
	}

	zap.L().Info("engine: batch complete",
		zap.Int("rows", len(rows)),
		zap.Int("reconciled", len(out)),
		zap.Int("rejected", len(rowErrs)),
	)
	return out, rowErrs, nil
}

// Summarize counts records by validation status.
func Summarize(records []*model.FinalProductRecord) map[model.ValidationStatus]int {
	counts := make(map[model.ValidationStatus]int)
	for _, rec := range records {
		counts[rec.ValidationStatus]++
	}
	return counts
}
