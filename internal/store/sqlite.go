package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/borealmotors/reconcile-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS base_models (
	key          TEXT PRIMARY KEY,
	brand        TEXT NOT NULL,
	brand_key    TEXT NOT NULL,
	model_family TEXT NOT NULL,
	model_year   INTEGER NOT NULL,
	data         TEXT NOT NULL,
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS option_modifiers (
	id           TEXT PRIMARY KEY,
	brand        TEXT NOT NULL,
	brand_key    TEXT NOT NULL,
	name         TEXT NOT NULL,
	name_key     TEXT NOT NULL,
	model_family TEXT,
	model_year   INTEGER NOT NULL DEFAULT 0,
	category     TEXT NOT NULL,
	deltas       TEXT NOT NULL,
	confidence   REAL NOT NULL,
	source       TEXT NOT NULL DEFAULT 'registry',
	sightings    INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (brand_key, name_key, model_year)
);

CREATE TABLE IF NOT EXISTS product_records (
	id            TEXT PRIMARY KEY,
	brand         TEXT NOT NULL,
	model_code    TEXT NOT NULL,
	model_year    INTEGER NOT NULL,
	market        TEXT NOT NULL,
	status        TEXT NOT NULL,
	confidence    REAL NOT NULL DEFAULT 0,
	auto_accepted INTEGER NOT NULL DEFAULT 0,
	data          TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS review_queue (
	id             TEXT PRIMARY KEY,
	record_id      TEXT NOT NULL UNIQUE REFERENCES product_records(id),
	brand          TEXT NOT NULL,
	model_code     TEXT NOT NULL,
	reason         TEXT NOT NULL,
	confidence     REAL NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'open',
	notion_page_id TEXT,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_base_models_brand_key ON base_models(brand_key);
CREATE INDEX IF NOT EXISTS idx_option_modifiers_lookup ON option_modifiers(brand_key, name_key);
CREATE INDEX IF NOT EXISTS idx_product_records_status ON product_records(status);
CREATE INDEX IF NOT EXISTS idx_product_records_brand ON product_records(brand);
CREATE INDEX IF NOT EXISTS idx_review_queue_status ON review_queue(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertTemplate(ctx context.Context, key string, t *model.BaseModelTemplate) error {
	data, err := json.Marshal(t)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal template")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO base_models (key, brand, brand_key, model_family, model_year, data, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET
			brand = excluded.brand,
			brand_key = excluded.brand_key,
			model_family = excluded.model_family,
			model_year = excluded.model_year,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		key, t.Brand, normKey(t.Brand), t.ModelFamily, t.ModelYear, string(data), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert template %s", key)
}

func (s *SQLiteStore) GetTemplate(ctx context.Context, key string) (*model.BaseModelTemplate, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM base_models WHERE key = ?`,
		key,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "base model %s", key)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get template %s", key)
	}

	var t model.BaseModelTemplate
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal template")
	}
	return &t, nil
}

func (s *SQLiteStore) ListFamilies(ctx context.Context, brand string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT model_family FROM base_models WHERE brand_key = ? ORDER BY model_family`,
		normKey(brand),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list families for %s", brand)
	}
	defer rows.Close()

	var families []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan family")
		}
		families = append(families, f)
	}
	return families, eris.Wrap(rows.Err(), "sqlite: list families iterate")
}

func (s *SQLiteStore) ImportTemplates(ctx context.Context, entries []TemplateEntry) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import templates begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	var n int64
	for i := range entries {
		t := &entries[i].Template
		data, err := json.Marshal(t)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal template %s", entries[i].Key)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO base_models (key, brand, brand_key, model_family, model_year, data, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (key) DO UPDATE SET
				brand = excluded.brand,
				brand_key = excluded.brand_key,
				model_family = excluded.model_family,
				model_year = excluded.model_year,
				data = excluded.data,
				updated_at = excluded.updated_at`,
			entries[i].Key, t.Brand, normKey(t.Brand), t.ModelFamily, t.ModelYear, string(data), now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: import template %s", entries[i].Key)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: import templates commit")
	}
	return n, nil
}

func (s *SQLiteStore) GetModifier(ctx context.Context, brand, name string) (*model.OptionModifierRecord, error) {
	var m model.OptionModifierRecord
	var family sql.NullString
	var deltas string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, brand, name, model_family, model_year, category, deltas, confidence, source, sightings, created_at, updated_at
		 FROM option_modifiers WHERE brand_key = ? AND name_key = ? ORDER BY model_year DESC LIMIT 1`,
		normKey(brand), normKey(name),
	).Scan(&m.ID, &m.Brand, &m.Name, &family, &m.ModelYear, &m.Category, &deltas, &m.Confidence, &m.Source, &m.Sightings, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "modifier %s/%s", brand, name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get modifier %s/%s", brand, name)
	}

	m.ModelFamily = family.String
	if err := json.Unmarshal([]byte(deltas), &m.Deltas); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal deltas")
	}
	return &m, nil
}

func (s *SQLiteStore) UpsertModifier(ctx context.Context, m *model.OptionModifierRecord) error {
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
		return eris.Wrap(err, "sqlite: marshal deltas")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO option_modifiers (id, brand, brand_key, name, name_key, model_family, model_year, category, deltas, confidence, source, sightings, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (brand_key, name_key, model_year) DO UPDATE SET
			category = excluded.category,
			deltas = excluded.deltas,
			confidence = excluded.confidence,
			source = excluded.source,
			sightings = excluded.sightings,
			updated_at = excluded.updated_at`,
		m.ID, m.Brand, normKey(m.Brand), m.Name, normKey(m.Name), m.ModelFamily, m.ModelYear,
		string(m.Category), string(deltas), m.Confidence, string(m.Source), m.Sightings, created, now,
	)
	return eris.Wrapf(err, "sqlite: upsert modifier %s/%s", m.Brand, m.Name)
}

func (s *SQLiteStore) ListModifiers(ctx context.Context, brand string) ([]model.OptionModifierRecord, error) {
	query := `SELECT id, brand, name, model_family, model_year, category, deltas, confidence, source, sightings, created_at, updated_at FROM option_modifiers WHERE 1=1`
	var args []any

	if brand != "" {
		query += ` AND brand_key = ?`
		args = append(args, normKey(brand))
	}
	query += ` ORDER BY brand_key, name_key, model_year`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list modifiers")
	}
	defer rows.Close()

	var mods []model.OptionModifierRecord
	for rows.Next() {
		var m model.OptionModifierRecord
		var family sql.NullString
		var deltas string
		if err := rows.Scan(&m.ID, &m.Brand, &m.Name, &family, &m.ModelYear, &m.Category, &deltas, &m.Confidence, &m.Source, &m.Sightings, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan modifier")
		}
		m.ModelFamily = family.String
		if err := json.Unmarshal([]byte(deltas), &m.Deltas); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal deltas")
		}
		mods = append(mods, m)
	}
	return mods, eris.Wrap(rows.Err(), "sqlite: list modifiers iterate")
}

func (s *SQLiteStore) ImportModifiers(ctx context.Context, mods []model.OptionModifierRecord) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import modifiers begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	var n int64
	for i := range mods {
		m := &mods[i]
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		deltas, err := json.Marshal(m.Deltas)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal deltas for %s", m.Name)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO option_modifiers (id, brand, brand_key, name, name_key, model_family, model_year, category, deltas, confidence, source, sightings, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (brand_key, name_key, model_year) DO UPDATE SET
				category = excluded.category,
				deltas = excluded.deltas,
				confidence = excluded.confidence,
				source = excluded.source,
				sightings = excluded.sightings,
				updated_at = excluded.updated_at`,
			m.ID, m.Brand, normKey(m.Brand), m.Name, normKey(m.Name), m.ModelFamily, m.ModelYear,
			string(m.Category), string(deltas), m.Confidence, string(m.Source), m.Sightings, now, now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: import modifier %s", m.Name)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: import modifiers commit")
	}
	return n, nil
}

func (s *SQLiteStore) SaveRecord(ctx context.Context, rec *model.FinalProductRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal record")
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO product_records (id, brand, model_code, model_year, market, status, confidence, auto_accepted, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			brand = excluded.brand,
			model_code = excluded.model_code,
			model_year = excluded.model_year,
			market = excluded.market,
			status = excluded.status,
			confidence = excluded.confidence,
			auto_accepted = excluded.auto_accepted,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		rec.ID, rec.Brand, rec.Row.ModelCode, rec.ModelYear, rec.Row.Market,
		string(rec.ValidationStatus), rec.Scores.Final, rec.AutoAccepted, string(data), created, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save record %s", rec.ID)
}

func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*model.FinalProductRecord, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM product_records WHERE id = ?`,
		id,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "record %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get record %s", id)
	}

	var rec model.FinalProductRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal record")
	}
	return &rec, nil
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.FinalProductRecord, error) {
	query := `SELECT data FROM product_records WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Brand != "" {
		query += ` AND upper(brand) = upper(?)`
		args = append(args, filter.Brand)
	}
	if filter.Market != "" {
		query += ` AND upper(market) = upper(?)`
		args = append(args, filter.Market)
	}
	if filter.ModelYear > 0 {
		query += ` AND model_year = ?`
		args = append(args, filter.ModelYear)
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.CreatedAfter.UTC())
	}
	query += ` ORDER BY created_at DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	var recs []model.FinalProductRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		var rec model.FinalProductRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal record")
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

func (s *SQLiteStore) EnqueueReview(ctx context.Context, item *model.ReviewItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	created := item.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO review_queue (id, record_id, brand, model_code, reason, confidence, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (record_id) DO UPDATE SET
			reason = excluded.reason,
			confidence = excluded.confidence,
			status = excluded.status`,
		item.ID, item.RecordID, item.Brand, item.ModelCode, item.Reason, item.Confidence,
		string(model.ReviewOpen), created,
	)
	return eris.Wrapf(err, "sqlite: enqueue review for %s", item.RecordID)
}

func (s *SQLiteStore) ListReviews(ctx context.Context, status model.ReviewStatus, limit int) ([]model.ReviewItem, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, record_id, brand, model_code, reason, confidence, status, COALESCE(notion_page_id, ''), created_at
		 FROM review_queue WHERE status = ? ORDER BY created_at, id LIMIT ?`,
		string(status), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reviews")
	}
	defer rows.Close()

	var items []model.ReviewItem
	for rows.Next() {
		var it model.ReviewItem
		if err := rows.Scan(&it.ID, &it.RecordID, &it.Brand, &it.ModelCode, &it.Reason, &it.Confidence, &it.Status, &it.NotionPageID, &it.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan review item")
		}
		items = append(items, it)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: list reviews iterate")
}

func (s *SQLiteStore) CountReviews(ctx context.Context, status model.ReviewStatus) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM review_queue WHERE status = ?`,
		string(status),
	).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count reviews")
}

func (s *SQLiteStore) ResolveReview(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE review_queue SET status = ? WHERE id = ?`,
		string(model.ReviewResolved), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: resolve review %s", id)
	}
	return checkRowsAffected(res, "review item", id)
}

func (s *SQLiteStore) SetReviewPage(ctx context.Context, id, pageID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE review_queue SET notion_page_id = ? WHERE id = ?`,
		pageID, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set review page %s", id)
	}
	return checkRowsAffected(res, "review item", id)
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}
