package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borealmotors/reconcile-cli/internal/catalog"
	"github.com/borealmotors/reconcile-cli/internal/config"
	"github.com/borealmotors/reconcile-cli/internal/engine"
	"github.com/borealmotors/reconcile-cli/internal/model"
	"github.com/borealmotors/reconcile-cli/internal/monitoring"
	"github.com/borealmotors/reconcile-cli/internal/registry"
	"github.com/borealmotors/reconcile-cli/internal/semantic"
	"github.com/borealmotors/reconcile-cli/internal/store"
)

// stubResolver never matches externally and reports a fixed consistency
// score, so handler tests stay offline.
type stubResolver struct {
	consistency float64
}

func (s *stubResolver) MatchBaseModel(context.Context, semantic.MatchQuery) (*semantic.BaseModelMatch, error) {
	return nil, semantic.ErrNoMatch
}

func (s *stubResolver) ResolveModifier(context.Context, semantic.ModifierQuery) (*semantic.ModifierResolution, error) {
	return nil, semantic.ErrNoMatch
}

func (s *stubResolver) CheckConsistency(context.Context, model.SpecTree, string) (float64, error) {
	return s.consistency, nil
}

func serveTemplate() model.BaseModelTemplate {
	return model.BaseModelTemplate{
		Brand:       "Lynx",
		ModelFamily: "Rave RE",
		ModelYear:   2026,
		Platform: model.SpecTree{
			"category":      "sport",
			"dry_weight_kg": 194,
			"fuel_tank_l":   37.1,
			"chassis":       model.SpecTree{"type": "Radien"},
		},
		OptionSets: map[model.Axis][]model.Option{
			model.AxisEngine: {
				{Token: "600R E-TEC", Attrs: model.SpecTree{
					"type":            "600R E-TEC",
					"displacement_cc": 599,
					"cylinders":       2,
				}},
			},
			model.AxisTrack: {
				{Token: "129in", Attrs: model.SpecTree{
					"length_mm":  3300,
					"width_mm":   381,
					"profile_mm": 38,
				}},
			},
		},
	}
}

func serveRow() model.PriceListRow {
	return model.PriceListRow{
		Brand:       "Lynx",
		ModelYear:   2026,
		ModelCode:   "LTTA",
		ModelName:   "Rave",
		Package:     "RE",
		EngineToken: "600R E-TEC",
		TrackToken:  "129in 3300mm",
		Price:       decimal.NewFromInt(189900),
		Currency:    "SEK",
		Market:      "SE",
	}
}

func newServeEnv(t *testing.T) *engineEnv {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "serve.db")
	st, err := store.NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	eng := engine.New(
		catalog.NewMemoryCatalog(serveTemplate()),
		registry.NewMemoryRegistry(),
		&stubResolver{consistency: 0.97},
		nil,
		config.EngineConfig{},
	)

	return &engineEnv{Store: st, Engine: eng}
}

func TestBuildMux_Health(t *testing.T) {
	mux := buildMux(newServeEnv(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestBuildMux_ReconcileRoundTrip(t *testing.T) {
	env := newServeEnv(t)
	mux := buildMux(env)

	payload, err := json.Marshal(serveRow())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/reconcile", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var rec model.FinalProductRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, model.StatusPassed, rec.ValidationStatus)
	assert.Equal(t, "Rave RE", rec.ModelFamily)

	// The record is persisted and readable back.
	getReq := httptest.NewRequest(http.MethodGet, "/records/"+rec.ID, nil)
	getRR := httptest.NewRecorder()
	mux.ServeHTTP(getRR, getReq)

	require.Equal(t, http.StatusOK, getRR.Code)
	var fetched model.FinalProductRecord
	require.NoError(t, json.Unmarshal(getRR.Body.Bytes(), &fetched))
	assert.Equal(t, rec.ID, fetched.ID)
}

func TestBuildMux_ReconcileBadJSON(t *testing.T) {
	mux := buildMux(newServeEnv(t))

	req := httptest.NewRequest(http.MethodPost, "/reconcile", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBuildMux_ReconcileInvalidRow(t *testing.T) {
	mux := buildMux(newServeEnv(t))

	row := serveRow()
	row.Brand = ""
	payload, err := json.Marshal(row)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/reconcile", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBuildMux_RecordNotFound(t *testing.T) {
	mux := buildMux(newServeEnv(t))

	req := httptest.NewRequest(http.MethodGet, "/records/no-such-id", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBuildMux_Metrics(t *testing.T) {
	env := newServeEnv(t)
	mux := buildMux(env)

	payload, err := json.Marshal(serveRow())
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/reconcile", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	metricsReq := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metricsRR := httptest.NewRecorder()
	mux.ServeHTTP(metricsRR, metricsReq)

	require.Equal(t, http.StatusOK, metricsRR.Code)
	var snap monitoring.MetricsSnapshot
	require.NoError(t, json.Unmarshal(metricsRR.Body.Bytes(), &snap))
	assert.Equal(t, 1, snap.RecordsTotal)
	assert.Equal(t, 1, snap.RecordsPassed)
	assert.Equal(t, 0, snap.ReviewBacklog)
	assert.Equal(t, 24, snap.LookbackHours)
}

func TestBuildMux_MetricsBadHours(t *testing.T) {
	mux := buildMux(newServeEnv(t))

	req := httptest.NewRequest(http.MethodGet, "/metrics?hours=zero", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
