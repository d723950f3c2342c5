package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/borealmotors/reconcile-cli/internal/db"
	"github.com/borealmotors/reconcile-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot reconciliation-loop lookups.
var preparedStatements = map[string]string{
	"get_base_model": `SELECT data FROM base_models WHERE key = $1`,
	"list_families":  `SELECT DISTINCT model_family FROM base_models WHERE brand_key = $1 ORDER BY model_family`,
	"get_modifier":   `SELECT id, brand, name, model_family, model_year, category, deltas, confidence, source, sightings, created_at, updated_at FROM option_modifiers WHERE brand_key = $1 AND name_key = $2 ORDER BY model_year DESC LIMIT 1`,
	"get_record":     `SELECT data FROM product_records WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for use by subsystems
// that need direct query access (e.g., bulk catalog imports).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS base_models (
	key          TEXT PRIMARY KEY,
	brand        TEXT NOT NULL,
	brand_key    TEXT NOT NULL,
	model_family TEXT NOT NULL,
	model_year   INTEGER NOT NULL,
	data         JSONB NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_base_models_brand_key ON base_models(brand_key);
CREATE INDEX IF NOT EXISTS idx_base_models_year ON base_models(model_year);

CREATE TABLE IF NOT EXISTS option_modifiers (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	brand        TEXT NOT NULL,
	brand_key    TEXT NOT NULL,
	name         TEXT NOT NULL,
	name_key     TEXT NOT NULL,
	model_family TEXT,
	model_year   INTEGER NOT NULL DEFAULT 0,
	category     TEXT NOT NULL,
	deltas       JSONB NOT NULL,
	confidence   DOUBLE PRECISION NOT NULL,
	source       TEXT NOT NULL DEFAULT 'registry',
	sightings    INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (brand_key, name_key, model_year)
);

CREATE INDEX IF NOT EXISTS idx_option_modifiers_lookup ON option_modifiers(brand_key, name_key);

CREATE TABLE IF NOT EXISTS product_records (
	id            TEXT PRIMARY KEY,
	brand         TEXT NOT NULL,
	model_code    TEXT NOT NULL,
	model_year    INTEGER NOT NULL,
	market        TEXT NOT NULL,
	status        TEXT NOT NULL,
	confidence    DOUBLE PRECISION NOT NULL DEFAULT 0,
	auto_accepted BOOLEAN NOT NULL DEFAULT false,
	data          JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_product_records_status ON product_records(status);
CREATE INDEX IF NOT EXISTS idx_product_records_brand ON product_records(brand);
CREATE INDEX IF NOT EXISTS idx_product_records_year ON product_records(model_year);

CREATE TABLE IF NOT EXISTS review_queue (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	record_id      TEXT NOT NULL UNIQUE REFERENCES product_records(id),
	brand          TEXT NOT NULL,
	model_code     TEXT NOT NULL,
	reason         TEXT NOT NULL,
	confidence     DOUBLE PRECISION NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'open',
	notion_page_id TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_review_queue_status ON review_queue(status);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertTemplate(ctx context.Context, key string, t *model.BaseModelTemplate) error {
	data, err := json.Marshal(t)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal template")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO base_models (key, brand, brand_key, model_family, model_year, data, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (key) DO UPDATE SET
			brand = EXCLUDED.brand,
			brand_key = EXCLUDED.brand_key,
			model_family = EXCLUDED.model_family,
			model_year = EXCLUDED.model_year,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at`,
		key, t.Brand, normKey(t.Brand), t.ModelFamily, t.ModelYear, data, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert template %s", key)
}

func (s *PostgresStore) GetTemplate(ctx context.Context, key string) (*model.BaseModelTemplate, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM base_models WHERE key = $1`,
		key,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "base model %s", key)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get template %s", key)
	}

	var t model.BaseModelTemplate
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal template")
	}
	return &t, nil
}

func (s *PostgresStore) ListFamilies(ctx context.Context, brand string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT model_family FROM base_models WHERE brand_key = $1 ORDER BY model_family`,
		normKey(brand),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list families for %s", brand)
	}
	defer rows.Close()

	var families []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, eris.Wrap(err, "postgres: scan family")
		}
		families = append(families, f)
	}
	return families, eris.Wrap(rows.Err(), "postgres: list families iterate")
}

func (s *PostgresStore) ImportTemplates(ctx context.Context, entries []TemplateEntry) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(entries))
	for i := range entries {
		t := &entries[i].Template
		data, err := json.Marshal(t)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal template %s", entries[i].Key)
		}
		rows = append(rows, []any{entries[i].Key, t.Brand, normKey(t.Brand), t.ModelFamily, t.ModelYear, data, now})
	}

	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "base_models",
		Columns:      []string{"key", "brand", "brand_key", "model_family", "model_year", "data", "updated_at"},
		ConflictKeys: []string{"key"},
	}, rows)
}

func (s *PostgresStore) GetModifier(ctx context.Context, brand, name string) (*model.OptionModifierRecord, error) {
	var m model.OptionModifierRecord
	var deltas []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, brand, name, model_family, model_year, category, deltas, confidence, source, sightings, created_at, updated_at FROM option_modifiers WHERE brand_key = $1 AND name_key = $2 ORDER BY model_year DESC LIMIT 1`,
		normKey(brand), normKey(name),
	).Scan(&m.ID, &m.Brand, &m.Name, &m.ModelFamily, &m.ModelYear, &m.Category, &deltas, &m.Confidence, &m.Source, &m.Sightings, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "modifier %s/%s", brand, name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get modifier %s/%s", brand, name)
	}

	if err := json.Unmarshal(deltas, &m.Deltas); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal deltas")
	}
	return &m, nil
}

func (s *PostgresStore) UpsertModifier(ctx context.Context, m *model.OptionModifierRecord) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	created := m.CreatedAt
	if created.IsZero() {
		created = now
	}

	deltas, err := json.Marshal(m.Deltas)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal deltas")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO option_modifiers (id, brand, brand_key, name, name_key, model_family, model_year, category, deltas, confidence, source, sightings, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (brand_key, name_key, model_year) DO UPDATE SET
			category = EXCLUDED.category,
			deltas = EXCLUDED.deltas,
			confidence = EXCLUDED.confidence,
			source = EXCLUDED.source,
			sightings = EXCLUDED.sightings,
			updated_at = EXCLUDED.updated_at`,
		m.ID, m.Brand, normKey(m.Brand), m.Name, normKey(m.Name), m.ModelFamily, m.ModelYear,
		string(m.Category), deltas, m.Confidence, string(m.Source), m.Sightings, created, now,
	)
	return eris.Wrapf(err, "postgres: upsert modifier %s/%s", m.Brand, m.Name)
}

func (s *PostgresStore) ListModifiers(ctx context.Context, brand string) ([]model.OptionModifierRecord, error) {
	query := `SELECT id, brand, name, model_family, model_year, category, deltas, confidence, source, sightings, created_at, updated_at FROM option_modifiers WHERE true`
	args := []any{}
	argIdx := 1

	if brand != "" {
		query += fmt.Sprintf(` AND brand_key = $%d`, argIdx)
		args = append(args, normKey(brand))
		argIdx++
	}
	query += ` ORDER BY brand_key, name_key, model_year`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list modifiers")
	}
	defer rows.Close()

	var mods []model.OptionModifierRecord
	for rows.Next() {
		var m model.OptionModifierRecord
		var deltas []byte
		if err := rows.Scan(&m.ID, &m.Brand, &m.Name, &m.ModelFamily, &m.ModelYear, &m.Category, &deltas, &m.Confidence, &m.Source, &m.Sightings, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan modifier")
		}
		if err := json.Unmarshal(deltas, &m.Deltas); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal deltas")
		}
		mods = append(mods, m)
	}
	return mods, eris.Wrap(rows.Err(), "postgres: list modifiers iterate")
}

func (s *PostgresStore) ImportModifiers(ctx context.Context, mods []model.OptionModifierRecord) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(mods))
	for i := range mods {
		m := &mods[i]
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		deltas, err := json.Marshal(m.Deltas)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal deltas for %s", m.Name)
		}
		rows = append(rows, []any{
			m.ID, m.Brand, normKey(m.Brand), m.Name, normKey(m.Name), m.ModelFamily, m.ModelYear,
			string(m.Category), deltas, m.Confidence, string(m.Source), m.Sightings, now, now,
		})
	}

	// Existing rows keep their id and created_at so record references survive reimports.
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "option_modifiers",
		Columns:      []string{"id", "brand", "brand_key", "name", "name_key", "model_family", "model_year", "category", "deltas", "confidence", "source", "sightings", "created_at", "updated_at"},
		ConflictKeys: []string{"brand_key", "name_key", "model_year"},
		UpdateCols:   []string{"category", "deltas", "confidence", "source", "sightings", "updated_at"},
	}, rows)
}

func (s *PostgresStore) SaveRecord(ctx context.Context, rec *model.FinalProductRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal record")
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO product_records (id, brand, model_code, model_year, market, status, confidence, auto_accepted, data, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
			brand = EXCLUDED.brand,
			model_code = EXCLUDED.model_code,
			model_year = EXCLUDED.model_year,
			market = EXCLUDED.market,
			status = EXCLUDED.status,
			confidence = EXCLUDED.confidence,
			auto_accepted = EXCLUDED.auto_accepted,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at`,
		rec.ID, rec.Brand, rec.Row.ModelCode, rec.ModelYear, rec.Row.Market,
		string(rec.ValidationStatus), rec.Scores.Final, rec.AutoAccepted, data, created, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save record %s", rec.ID)
}

func (s *PostgresStore) GetRecord(ctx context.Context, id string) (*model.FinalProductRecord, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM product_records WHERE id = $1`,
		id,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "record %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get record %s", id)
	}

	var rec model.FinalProductRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal record")
	}
	return &rec, nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.FinalProductRecord, error) {
	query := `SELECT data FROM product_records WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Brand != "" {
		query += fmt.Sprintf(` AND upper(brand) = upper($%d)`, argIdx)
		args = append(args, filter.Brand)
		argIdx++
	}
	if filter.Market != "" {
		query += fmt.Sprintf(` AND upper(market) = upper($%d)`, argIdx)
		args = append(args, filter.Market)
		argIdx++
	}
	if filter.ModelYear > 0 {
		query += fmt.Sprintf(` AND model_year = $%d`, argIdx)
		args = append(args, filter.ModelYear)
		argIdx++
	}
	if !filter.CreatedAfter.IsZero() {
		query += fmt.Sprintf(` AND created_at >= $%d`, argIdx)
		args = append(args, filter.CreatedAfter.UTC())
		argIdx++
	}
	query += ` ORDER BY created_at DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var recs []model.FinalProductRecord
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		var rec model.FinalProductRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal record")
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

func (s *PostgresStore) EnqueueReview(ctx context.Context, item *model.ReviewItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	created := item.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	// A re-reconciled record reopens its existing card instead of stacking a new one.
	_, err := s.pool.Exec(ctx,
		`INSERT INTO review_queue (id, record_id, brand, model_code, reason, confidence, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (record_id) DO UPDATE SET
			reason = EXCLUDED.reason,
			confidence = EXCLUDED.confidence,
			status = EXCLUDED.status`,
		item.ID, item.RecordID, item.Brand, item.ModelCode, item.Reason, item.Confidence,
		string(model.ReviewOpen), created,
	)
	return eris.Wrapf(err, "postgres: enqueue review for %s", item.RecordID)
}

func (s *PostgresStore) ListReviews(ctx context.Context, status model.ReviewStatus, limit int) ([]model.ReviewItem, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, record_id, brand, model_code, reason, confidence, status, COALESCE(notion_page_id, ''), created_at
		 FROM review_queue WHERE status = $1 ORDER BY created_at, id LIMIT $2`,
		string(status), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reviews")
	}
	defer rows.Close()

	var items []model.ReviewItem
	for rows.Next() {
		var it model.ReviewItem
		if err := rows.Scan(&it.ID, &it.RecordID, &it.Brand, &it.ModelCode, &it.Reason, &it.Confidence, &it.Status, &it.NotionPageID, &it.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan review item")
		}
		items = append(items, it)
	}
	return items, eris.Wrap(rows.Err(), "postgres: list reviews iterate")
}

func (s *PostgresStore) CountReviews(ctx context.Context, status model.ReviewStatus) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM review_queue WHERE status = $1`,
		string(status),
	).Scan(&n)
	return n, eris.Wrap(err, "postgres: count reviews")
}

func (s *PostgresStore) ResolveReview(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE review_queue SET status = $1 WHERE id = $2`,
		string(model.ReviewResolved), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: resolve review %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "review item %s", id)
	}
	return nil
}

func (s *PostgresStore) SetReviewPage(ctx context.Context, id, pageID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE review_queue SET notion_page_id = $1 WHERE id = $2`,
		pageID, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set review page %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "review item %s", id)
	}
	return nil
}
