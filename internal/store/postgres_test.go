package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borealmotors/reconcile-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetTemplate_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM base_models WHERE key = \$1`).
		WithArgs("LYNX_XTERRAIN_2026").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetTemplate(context.Background(), "LYNX_XTERRAIN_2026")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetTemplate_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	data := []byte(`{"brand":"Lynx","model_family":"Rave","model_year":2026}`)
	mock.ExpectQuery(`SELECT data FROM base_models WHERE key = \$1`).
		WithArgs("LYNX_RAVE_RE_2026").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow(data))

	tpl, err := s.GetTemplate(context.Background(), "LYNX_RAVE_RE_2026")
	require.NoError(t, err)
	assert.Equal(t, "Lynx", tpl.Brand)
	assert.Equal(t, "Rave", tpl.ModelFamily)
	assert.Equal(t, 2026, tpl.ModelYear)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertTemplate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO base_models .* ON CONFLICT \(key\) DO UPDATE`).
		WithArgs("LYNX_RAVE_RE_2026", "Lynx", "LYNX", "Rave", 2026, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tpl := &model.BaseModelTemplate{Brand: "Lynx", ModelFamily: "Rave", ModelYear: 2026}
	err := s.UpsertTemplate(context.Background(), "LYNX_RAVE_RE_2026", tpl)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListFamilies(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT DISTINCT model_family FROM base_models WHERE brand_key = \$1`).
		WithArgs("SKI DOO").
		WillReturnRows(pgxmock.NewRows([]string{"model_family"}).AddRow("Grand Touring").AddRow("Summit"))

	families, err := s.ListFamilies(context.Background(), "Ski-Doo")
	require.NoError(t, err)
	assert.Equal(t, []string{"Grand Touring", "Summit"}, families)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetModifier_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM option_modifiers WHERE brand_key = \$1 AND name_key = \$2`).
		WithArgs("LYNX", "STUDDED TRACK").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetModifier(context.Background(), "Lynx", "Studded Track")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRecord_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO product_records .* ON CONFLICT \(id\) DO UPDATE`).
		WithArgs("rec-1", "Lynx", "LTTA", 2026, "FI", "passed", 0.97, true,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec := &model.FinalProductRecord{
		ID:               "rec-1",
		Brand:            "Lynx",
		ModelYear:        2026,
		Row:              model.PriceListRow{ModelCode: "LTTA", Market: "FI"},
		Scores:           model.ScoreBreakdown{Final: 0.97},
		ValidationStatus: model.StatusPassed,
		AutoAccepted:     true,
	}
	err := s.SaveRecord(context.Background(), rec)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRecords_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	data := []byte(`{"id":"rec-1","brand":"Lynx","model_year":2026,"validation_status":"passed"}`)
	mock.ExpectQuery(`SELECT data FROM product_records WHERE true AND status = \$1 AND upper\(brand\) = upper\(\$2\) ORDER BY created_at DESC, id LIMIT \$3`).
		WithArgs("passed", "lynx", 100).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow(data))

	recs, err := s.ListRecords(context.Background(), RecordFilter{Status: model.StatusPassed, Brand: "lynx"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "rec-1", recs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRecords_CreatedAfter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	cutoff := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	data := []byte(`{"id":"rec-1","brand":"Lynx","model_year":2026,"validation_status":"passed"}`)
	mock.ExpectQuery(`SELECT data FROM product_records WHERE true AND created_at >= \$1 ORDER BY created_at DESC, id LIMIT \$2`).
		WithArgs(cutoff, 100).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow(data))

	recs, err := s.ListRecords(context.Background(), RecordFilter{CreatedAfter: cutoff})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EnqueueReview(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO review_queue .* ON CONFLICT \(record_id\) DO UPDATE`).
		WithArgs(pgxmock.AnyArg(), "rec-1", "Lynx", "LTTA", "low_confidence", 0.83, "open", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	item := &model.ReviewItem{
		RecordID: "rec-1", Brand: "Lynx", ModelCode: "LTTA",
		Reason: "low_confidence", Confidence: 0.83,
	}
	err := s.EnqueueReview(context.Background(), item)
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ResolveReview_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE review_queue SET status = \$1 WHERE id = \$2`).
		WithArgs("resolved", "missing-id").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.ResolveReview(context.Background(), "missing-id")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountReviews(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM review_queue WHERE status = \$1`).
		WithArgs("open").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	n, err := s.CountReviews(context.Background(), model.ReviewOpen)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
