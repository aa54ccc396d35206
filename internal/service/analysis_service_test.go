package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/andresuchdata/stockinsight/internal/ai"
	"github.com/andresuchdata/stockinsight/internal/config"
	"github.com/andresuchdata/stockinsight/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localAI() *ai.Service {
	svc := ai.NewService(true)
	svc.Register(ai.NewLocalStrategy(true))
	return svc
}

// failingOllamaAI answers the liveness probe but fails every generation.
func failingOllamaAI(t *testing.T) *ai.Service {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	svc := ai.NewService(true)
	svc.Register(ai.NewOllamaStrategy(config.AIConfig{
		OllamaBaseURL:        srv.URL,
		OllamaModel:          "phi3",
		OllamaTimeoutSeconds: 5,
	}))
	return svc
}

func topLevelKeys(t *testing.T, v any) []string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestComprehensiveKeySetStableAcrossFallback(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{items: sampleItems(), sales: sampleSales(14)}

	primary := NewAnalysisService(repo, localAI(), nil).Comprehensive(ctx, domain.InventoryFilter{})
	degraded := NewAnalysisService(repo, failingOllamaAI(t), nil).Comprehensive(ctx, domain.InventoryFilter{})

	assert.Equal(t, StatusSuccess, primary.Status)
	assert.False(t, primary.IsFallback)
	assert.Equal(t, StatusSuccess, degraded.Status)
	assert.True(t, degraded.IsFallback)

	assert.Equal(t, topLevelKeys(t, primary), topLevelKeys(t, degraded))
	assert.Equal(t, primary.Summary, degraded.Summary)
	assert.Equal(t, 5, degraded.ItemsAnalyzed)
	assert.Len(t, degraded.CriticalItems.OutOfStock, 1)
	assert.Len(t, degraded.CriticalItems.LowStock, 2)
}

func TestComprehensiveDataSourceFailureIsReportedNotReturned(t *testing.T) {
	repo := &fakeRepo{err: errors.New("connection refused")}
	svc := NewAnalysisService(repo, localAI(), nil)

	res := svc.Comprehensive(context.Background(), domain.InventoryFilter{})
	require.NotNil(t, res)
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Error, "connection refused")
	assert.Zero(t, res.ItemsAnalyzed)

	ok := NewAnalysisService(&fakeRepo{items: sampleItems()}, localAI(), nil).Comprehensive(context.Background(), domain.InventoryFilter{})
	assert.Equal(t, topLevelKeys(t, ok), topLevelKeys(t, res))
}

func TestComprehensiveServedFromCache(t *testing.T) {
	repo := &fakeRepo{items: sampleItems(), sales: sampleSales(10)}
	svc := NewAnalysisService(repo, localAI(), newMemoryCache())
	ctx := context.Background()

	first := svc.Comprehensive(ctx, domain.InventoryFilter{Search: "ham"})
	second := svc.Comprehensive(ctx, domain.InventoryFilter{Search: "ham"})

	assert.Equal(t, int32(1), repo.listCalls.Load())
	assert.Equal(t, first.Summary, second.Summary)

	svc.Comprehensive(ctx, domain.InventoryFilter{Search: "rake"})
	assert.Equal(t, int32(2), repo.listCalls.Load())
}

func TestFallbackResultsAreNotCached(t *testing.T) {
	repo := &fakeRepo{items: sampleItems(), sales: sampleSales(10)}
	svc := NewAnalysisService(repo, failingOllamaAI(t), newMemoryCache())
	ctx := context.Background()

	svc.Comprehensive(ctx, domain.InventoryFilter{})
	svc.Comprehensive(ctx, domain.InventoryFilter{})
	assert.Equal(t, int32(2), repo.listCalls.Load())
}

func TestWeeklyReport(t *testing.T) {
	repo := &fakeRepo{items: sampleItems(), sales: sampleSales(7)}
	svc := NewAnalysisService(repo, localAI(), nil)
	svc.now = func() time.Time { return time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC) }

	res := svc.WeeklyReport(context.Background())
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "weekly", res.Period.Type)
	assert.Equal(t, 7*24*time.Hour, res.Period.End.Sub(res.Period.Start))
	assert.Equal(t, 1, res.KeyMetrics.OutOfStockCount)
	assert.Equal(t, 20.0, res.KeyMetrics.OutOfStockPercentage)
	require.NotEmpty(t, res.ActionItems)
	assert.Equal(t, "high", res.ActionItems[0].Priority)
	assert.NotNil(t, res.TrendAnalysis)
}

func TestWeeklyReportFallbackKeepsKeys(t *testing.T) {
	repo := &fakeRepo{items: sampleItems(), sales: sampleSales(7)}
	ok := NewAnalysisService(repo, localAI(), nil).WeeklyReport(context.Background())
	degraded := NewAnalysisService(repo, failingOllamaAI(t), nil).WeeklyReport(context.Background())

	assert.True(t, degraded.IsFallback)
	assert.Equal(t, topLevelKeys(t, ok), topLevelKeys(t, degraded))
}

func TestMonitorCriticalItems(t *testing.T) {
	repo := &fakeRepo{items: sampleItems()}
	res := NewAnalysisService(repo, localAI(), nil).MonitorCriticalItems(context.Background())

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 2, res.Summary.LowStockCount)
	assert.Equal(t, 1, res.Summary.OutOfStockCount)
	assert.Equal(t, 3, res.TotalCriticalItems)

	byID := map[string]Alert{}
	for _, a := range res.Alerts {
		byID[a.ItemID] = a
	}
	// 2/20 = 0.1 and 1/30 < 0.1
	assert.Equal(t, domain.UrgencyCritical, byID["1"].Urgency)
	assert.Equal(t, domain.UrgencyCritical, byID["5"].Urgency)
	assert.Equal(t, AlertOutOfStock, byID["2"].Type)
	assert.Equal(t, "Immediate restock required", byID["2"].RecommendedAction)
	assert.NotNil(t, byID["1"].PredictedOutOfStock)
	assert.Equal(t, 3, res.Summary.UrgentAlerts)
	assert.Equal(t, domain.RiskHigh, res.RiskLevel)
}

func TestMonitorWithNothingCritical(t *testing.T) {
	repo := &fakeRepo{items: []domain.InventoryItem{{ID: "1", Name: "Bolt", Quantity: 100, MinStockLevel: 10}}}
	res := NewAnalysisService(repo, localAI(), nil).MonitorCriticalItems(context.Background())

	assert.Empty(t, res.Alerts)
	assert.Equal(t, domain.RiskLow, res.RiskLevel)
	assert.False(t, res.IsFallback)
}

func TestPredictNeedsDerivesSuppliersFromItems(t *testing.T) {
	repo := &fakeRepo{items: sampleItems(), sales: sampleSales(20)}
	res := NewAnalysisService(repo, localAI(), nil).PredictNeeds(context.Background(), 0)

	assert.Equal(t, defaultForecastDays, res.ForecastPeriod)
	require.NotNil(t, res.RecommendedActions)
	assert.Len(t, res.RecommendedActions.SupplierScores, 3)
	require.NotNil(t, res.PredictionSummary)
	assert.Equal(t, res.PredictionSummary.Confidence, res.ConfidenceScore)
}

func TestOptimize(t *testing.T) {
	repo := &fakeRepo{items: sampleItems()}
	res := NewAnalysisService(repo, localAI(), nil).Optimize(context.Background())

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 5, res.TotalItemsOptimized)
	require.NotNil(t, res.OptimizationResults)
	assert.Len(t, res.OptimizationResults.Optimizations, 5)
	assert.Equal(t, "Long-term strategy adjustments", res.ImplementationPlan.Phase3)
	assert.GreaterOrEqual(t, res.SavingsAnalysis.TotalPotentialSavings, 0.0)
}

func TestSalesTrendsWithoutDataIsNotFallback(t *testing.T) {
	res := NewAnalysisService(&fakeRepo{}, localAI(), nil).SalesTrends(context.Background(), 500)

	assert.Equal(t, maxForecastDays, res.PeriodDays)
	assert.Zero(t, res.DataPoints)
	assert.Nil(t, res.Trend)
	assert.False(t, res.IsFallback)
}

func TestAIStatusReportsUnavailableAsFallback(t *testing.T) {
	disabled := ai.NewService(false)
	disabled.Register(ai.NewLocalStrategy(true))

	res := NewAnalysisService(&fakeRepo{}, disabled, nil).AIStatus(context.Background())
	assert.Equal(t, StatusSuccess, res.Status)
	assert.True(t, res.IsFallback)
	assert.False(t, res.AI.Enabled)
}

func TestSavingsPotential(t *testing.T) {
	items := []domain.InventoryItem{
		{ID: "a", Name: "A", Quantity: 50, Price: 2},
		{ID: "b", Name: "B", Quantity: 5, Price: 8},
	}
	sa := savingsPotential(items, []domain.StockOptimization{
		{ItemID: "a", OptimalStock: 30},
		{ItemID: "b", OptimalStock: 10},
	})

	assert.Equal(t, 40.0, sa.TotalPotentialSavings)
	assert.Equal(t, map[string]float64{"A": 40}, sa.ItemSavings)
	assert.Equal(t, 400.0, sa.SavingsPercentage)
}

func TestStratifiedSample(t *testing.T) {
	var items []domain.InventoryItem
	for i := 0; i < 400; i++ {
		items = append(items, domain.InventoryItem{CategoryID: "big"})
	}
	for i := 0; i < 50; i++ {
		items = append(items, domain.InventoryItem{CategoryID: "small"})
	}
	for i := 0; i < 300; i++ {
		items = append(items, domain.InventoryItem{})
	}

	sampled := stratifiedSample(items, 500)
	counts := map[string]int{}
	for _, it := range sampled {
		counts[it.CategoryID]++
	}
	// ceil(500/3) = 167 per category
	assert.Equal(t, 167, counts["big"])
	assert.Equal(t, 50, counts["small"])
	assert.Equal(t, 167, counts[""])

	assert.Len(t, stratifiedSample(items[:10], 500), 10)
}

func TestOverallRisk(t *testing.T) {
	tests := []struct {
		name string
		recs []string
		want domain.RiskLevel
	}{
		{"empty", nil, domain.RiskLow},
		{"critical wins", []string{"Critical shortage of bolts"}, domain.RiskHigh},
		{"two highs are not enough", []string{"high demand", "HIGH churn"}, domain.RiskLow},
		{"three highs", []string{"high", "high", "high"}, domain.RiskHigh},
		{"six mediums", []string{"medium", "medium", "medium", "medium", "medium", "medium"}, domain.RiskMedium},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, overallRisk(tt.recs))
		})
	}
}

func TestChunk(t *testing.T) {
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunk([]int{1, 2, 3, 4, 5}, 2))
	assert.Nil(t, chunk([]int{}, 3))
}
