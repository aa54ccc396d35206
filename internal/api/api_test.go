package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andresuchdata/stockinsight/internal/ai"
	"github.com/andresuchdata/stockinsight/internal/domain"
	"github.com/andresuchdata/stockinsight/internal/export"
	"github.com/andresuchdata/stockinsight/internal/metrics"
	"github.com/andresuchdata/stockinsight/internal/reporting"
	"github.com/andresuchdata/stockinsight/internal/scheduler"
	"github.com/andresuchdata/stockinsight/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	items []domain.InventoryItem
	err   error
}

func (s *stubRepo) List(_ context.Context, f domain.InventoryFilter, opts domain.ListOptions) ([]domain.InventoryItem, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := []domain.InventoryItem{}
	for _, item := range s.items {
		if f.QuantityBelow != nil && item.Quantity >= *f.QuantityBelow {
			continue
		}
		out = append(out, item)
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *stubRepo) LowStock(ctx context.Context, threshold int) ([]domain.InventoryItem, error) {
	below := threshold + 1
	return s.List(ctx, domain.InventoryFilter{QuantityBelow: &below}, domain.ListOptions{})
}

func (s *stubRepo) OutOfStock(ctx context.Context) ([]domain.InventoryItem, error) {
	one := 1
	return s.List(ctx, domain.InventoryFilter{QuantityBelow: &one}, domain.ListOptions{})
}

func (s *stubRepo) DailySales(context.Context, int) ([]domain.SalesPoint, error) {
	if s.err != nil {
		return nil, s.err
	}
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.SalesPoint, 14)
	for i := range out {
		out[i] = domain.SalesPoint{Date: start.AddDate(0, 0, i), Quantity: float64(5 + i), Revenue: float64(50 + i)}
	}
	return out, nil
}

func (s *stubRepo) Suppliers(context.Context) ([]domain.SupplierProfile, error) {
	return nil, s.err
}

func stockItems() []domain.InventoryItem {
	return []domain.InventoryItem{
		{ID: "1", Name: "Bolt", Quantity: 2, Price: 1, MinStockLevel: 20},
		{ID: "2", Name: "Nut", Quantity: 3, Price: 1, MinStockLevel: 20},
		{ID: "3", Name: "Washer", Quantity: 4, Price: 1, MinStockLevel: 20},
		{ID: "4", Name: "Drill", Quantity: 25, Price: 80, MinStockLevel: 5},
		{ID: "5", Name: "Saw", Quantity: 30, Price: 35, MinStockLevel: 5},
	}
}

type testEnv struct {
	router    *gin.Engine
	reporting *reporting.Service
}

func newTestEnv(t *testing.T, repo *stubRepo, withExport bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rec := metrics.New()
	aiSvc := ai.NewService(true, ai.WithMetrics(rec))
	aiSvc.Register(ai.NewLocalStrategy(true))

	opts := []reporting.Option{reporting.WithMetrics(rec)}
	var exporter *export.Exporter
	if withExport {
		exporter = export.New(t.TempDir())
		opts = append(opts, reporting.WithExporter(exporter))
	}
	reports := reporting.NewService([]reporting.Builder{
		reporting.NewInventoryBuilder(repo, aiSvc),
		reporting.NewAIPerformanceBuilder(aiSvc),
	}, opts...)
	if withExport {
		reports.AttachScheduler(scheduler.New(reports, exporter))
	}

	router := NewRouter(&Services{
		Analysis:  service.NewAnalysisService(repo, aiSvc, nil),
		AI:        aiSvc,
		Reporting: reports,
		Metrics:   rec,
	}, nil)
	return &testEnv{router: router, reporting: reports}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, &stubRepo{}, false)

	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "report_cache_hits_total")
}

func TestGenerateReportEndpoint(t *testing.T) {
	env := newTestEnv(t, &stubRepo{items: stockItems()}, false)

	w := env.do(t, http.MethodPost, "/api/v1/reports", map[string]any{
		"type":    "inventory",
		"name":    "Low stock",
		"filters": map[string]any{"stockLevel": "low"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "success", body["status"])
	summary := body["summary"].(map[string]any)
	assert.Equal(t, 3.0, summary["lowStockCount"])
}

func TestGenerateReportPagination(t *testing.T) {
	env := newTestEnv(t, &stubRepo{items: stockItems()}, false)

	w := env.do(t, http.MethodPost, "/api/v1/reports?page=2&per_page=2", map[string]any{
		"type": "inventory",
		"name": "All",
	})
	require.Equal(t, http.StatusOK, w.Code)
	page := decode(t, w)["page"].(map[string]any)
	assert.Equal(t, 2.0, page["current_page"])
	assert.Equal(t, 3.0, page["total_pages"])
	assert.Len(t, page["data"], 2)
}

func TestGenerateReportErrors(t *testing.T) {
	env := newTestEnv(t, &stubRepo{items: stockItems()}, false)

	w := env.do(t, http.MethodPost, "/api/v1/reports", map[string]any{"type": "user_activity", "name": "Users"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/reports", map[string]any{"type": "inventory", "name": ""})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["details"], "Report name cannot be empty")

	w = env.do(t, http.MethodPost, "/api/v1/reports", map[string]any{
		"type":      "inventory",
		"name":      "Backwards",
		"dateRange": map[string]any{"start": "2026-06-02T00:00:00Z", "end": "2026-06-01T00:00:00Z"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateReportBuildFailure(t *testing.T) {
	env := newTestEnv(t, &stubRepo{err: errors.New("db down")}, false)

	w := env.do(t, http.MethodPost, "/api/v1/reports", map[string]any{"type": "inventory", "name": "All"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "error", body["status"])
	assert.Contains(t, body["error_message"], "db down")
}

func TestValidateAndTypesEndpoints(t *testing.T) {
	env := newTestEnv(t, &stubRepo{}, false)

	w := env.do(t, http.MethodPost, "/api/v1/reports/validate", map[string]any{"type": "system_audit", "name": "Audit"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, []any{"Report type 'system_audit' is not supported"}, body["errors"])

	w = env.do(t, http.MethodGet, "/api/v1/reports/types", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["types"], 2)
}

func TestRealTimeAndPredictiveEndpoints(t *testing.T) {
	env := newTestEnv(t, &stubRepo{items: stockItems()}, false)

	w := env.do(t, http.MethodGet, "/api/v1/reports/realtime/inventory", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	summary := decode(t, w)["summary"].(map[string]any)
	assert.Equal(t, "low", summary["alertLevel"])

	w = env.do(t, http.MethodGet, "/api/v1/reports/predictive/inventory?days=14", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 14.0, decode(t, w)["summary"].(map[string]any)["forecastPeriod"])

	w = env.do(t, http.MethodGet, "/api/v1/reports/predictive/ai_performance", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCacheEndpoints(t *testing.T) {
	env := newTestEnv(t, &stubRepo{items: stockItems()}, false)

	w := env.do(t, http.MethodPut, "/api/v1/reports/cache/ttl", map[string]any{"ttlSeconds": 10})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 60.0, decode(t, w)["ttlSeconds"])

	w = env.do(t, http.MethodPut, "/api/v1/reports/cache/ttl", map[string]any{"ttlSeconds": -5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.do(t, http.MethodPost, "/api/v1/reports", map[string]any{"type": "inventory", "name": "All"})
	env.do(t, http.MethodPost, "/api/v1/reports", map[string]any{"type": "inventory", "name": "All"})

	w = env.do(t, http.MethodGet, "/api/v1/reports/cache/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)
	assert.Equal(t, 1.0, stats["entries"])
	assert.Equal(t, 1.0, stats["hits"])

	w = env.do(t, http.MethodDelete, "/api/v1/reports/cache", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.reporting.CacheStats().Entries)
}

func TestExportEndpoints(t *testing.T) {
	disabled := newTestEnv(t, &stubRepo{items: stockItems()}, false)
	w := disabled.do(t, http.MethodPost, "/api/v1/reports/export", map[string]any{
		"definition": map[string]any{"type": "inventory", "name": "All"},
		"format":     "csv",
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	env := newTestEnv(t, &stubRepo{items: stockItems()}, true)
	w = env.do(t, http.MethodPost, "/api/v1/reports/export", map[string]any{
		"definition": map[string]any{"type": "inventory", "name": "All"},
		"format":     "pdf",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/reports/export", map[string]any{
		"definition": map[string]any{"type": "inventory", "name": "All"},
		"format":     "csv",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	job := decode(t, w)
	assert.Equal(t, "completed", job["status"])

	w = env.do(t, http.MethodGet, "/api/v1/reports/export/"+job["id"].(string), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/reports/export/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScheduleEndpoints(t *testing.T) {
	env := newTestEnv(t, &stubRepo{items: stockItems()}, true)

	w := env.do(t, http.MethodPost, "/api/v1/reports/schedules", map[string]any{
		"definition": map[string]any{"type": "inventory", "name": "Daily"},
		"frequency":  "fortnightly",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/reports/schedules", map[string]any{
		"definition": map[string]any{"type": "inventory", "name": "Daily"},
		"frequency":  "daily",
		"formats":    []string{"csv"},
		"recipients": []map[string]string{{"email": "ops@example.com"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode(t, w)["id"].(string)

	w = env.do(t, http.MethodDelete, "/api/v1/reports/schedules/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/reports/schedules/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalysisEndpoints(t *testing.T) {
	env := newTestEnv(t, &stubRepo{items: stockItems()}, false)

	for _, path := range []string{
		"/api/v1/ai/analysis/comprehensive?category=tools,garden",
		"/api/v1/ai/analysis/weekly",
		"/api/v1/ai/analysis/monitor",
		"/api/v1/ai/analysis/predict?days=14",
		"/api/v1/ai/analysis/optimize",
		"/api/v1/ai/analysis/sales-trends?days=7",
		"/api/v1/ai/status",
	} {
		w := env.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "success", decode(t, w)["status"], path)
	}

	failing := newTestEnv(t, &stubRepo{err: errors.New("db down")}, false)
	w := failing.do(t, http.MethodGet, "/api/v1/ai/analysis/comprehensive", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "error", decode(t, w)["status"])
}

func TestSetStrategyEndpoint(t *testing.T) {
	env := newTestEnv(t, &stubRepo{}, false)

	w := env.do(t, http.MethodPut, "/api/v1/ai/strategy", map[string]any{"strategy": "gpt"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/api/v1/ai/strategy", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/api/v1/ai/strategy", map[string]any{"strategy": "local"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "local", decode(t, w)["active_strategy"])
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	origins, all := normalizeAllowedOrigins([]string{"http://a.test, http://b.test", " "})
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, origins)
	assert.False(t, all)

	_, all = normalizeAllowedOrigins([]string{"*"})
	assert.True(t, all)
}
