package ai

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/andresuchdata/stockinsight/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func salesSeries(qty ...float64) []domain.SalesPoint {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.SalesPoint, len(qty))
	for i, q := range qty {
		out[i] = domain.SalesPoint{Date: start.AddDate(0, 0, i), Quantity: q}
	}
	return out
}

func TestLeastSquaresSlope(t *testing.T) {
	slope, r2 := leastSquaresSlope([]float64{2, 4, 6, 8, 10})
	assert.InDelta(t, 2, slope, 1e-9)
	assert.InDelta(t, 1, r2, 1e-9)

	slope, _ = leastSquaresSlope([]float64{5})
	assert.Zero(t, slope)
}

func TestLocalSalesTrends(t *testing.T) {
	l := NewLocalStrategy(true)
	ctx := context.Background()

	tests := []struct {
		name      string
		sales     []float64
		direction string
		conf      float64
	}{
		{"rising", []float64{1, 2, 3, 4}, "increasing", 0.6},
		{"falling", []float64{10, 8, 6, 4, 2, 1}, "decreasing", 0.7},
		{"flat within threshold", []float64{5, 5.05, 5, 5.05, 5, 5.05, 5, 5.05, 5, 5.05}, "stable", 0.8},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			res, err := l.Analyze(ctx, domain.AnalysisRequest{
				AnalysisType: domain.AnalysisSalesTrends,
				Sales:        salesSeries(tt.sales...),
			})
			require.NoError(t, err)
			require.NotNil(t, res.Trend)
			assert.Equal(t, tt.direction, res.Trend.Direction)
			assert.Equal(t, tt.conf, res.Confidence)
			assert.Equal(t, StrategyLocal, res.GeneratedBy)
		})
	}
}

func TestLocalRequiresSubject(t *testing.T) {
	_, err := NewLocalStrategy(true).Analyze(context.Background(), domain.AnalysisRequest{
		AnalysisType: domain.AnalysisSalesTrends,
		Items:        sampleItems(),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLocalOptimizationStaysInBounds(t *testing.T) {
	profiles := []domain.StockProfile{
		{ItemID: "a", Name: "A", CurrentStock: 500, MinStock: 10, MaxStock: 200, LeadTimeDays: 7, UnitCost: 3, DailyUsage: 4},
		{ItemID: "b", Name: "B", CurrentStock: 5, MinStock: 20, MaxStock: 100, LeadTimeDays: 14, UnitCost: 10, DailyUsage: 2},
	}

	res, err := NewLocalStrategy(true).Analyze(context.Background(), domain.AnalysisRequest{
		AnalysisType: domain.AnalysisStockOptimization,
		Stock:        profiles,
	})
	require.NoError(t, err)
	require.Len(t, res.Optimizations, 2)

	for i, o := range res.Optimizations {
		assert.GreaterOrEqual(t, o.OptimalStock, profiles[i].MinStock)
		assert.LessOrEqual(t, o.OptimalStock, profiles[i].MaxStock)
		assert.GreaterOrEqual(t, o.PotentialSavings, 0.0)
	}
	assert.Greater(t, res.Optimizations[0].PotentialSavings, 0.0, "overstocked item frees capital")
	assert.False(t, res.IsFallback)
}

func TestLocalOptimizationErrorDegrades(t *testing.T) {
	res, err := NewLocalStrategy(true).Analyze(context.Background(), domain.AnalysisRequest{
		AnalysisType: domain.AnalysisStockOptimization,
		Stock:        []domain.StockProfile{{ItemID: "x", MinStock: 50, MaxStock: 10}},
	})
	require.NoError(t, err)

	assert.True(t, res.IsFallback)
	assert.Equal(t, localFallbackConf, res.Confidence)
}

func TestLocalUnknownTypeDegrades(t *testing.T) {
	res, err := NewLocalStrategy(true).Analyze(context.Background(), domain.AnalysisRequest{
		AnalysisType: "crystal_ball",
		Items:        sampleItems(),
	})
	require.NoError(t, err)
	assert.True(t, res.IsFallback)
	assert.Equal(t, domain.AnalysisType("crystal_ball"), res.AnalysisType)
}

func TestLocalSafetyStock(t *testing.T) {
	res, err := NewLocalStrategy(true).Analyze(context.Background(), domain.AnalysisRequest{
		AnalysisType: domain.AnalysisSafetyStock,
		Sales:        salesSeries(10, 12, 8, 11, 9),
		Stock:        []domain.StockProfile{{LeadTimeDays: 4}},
	})
	require.NoError(t, err)

	want := 1.65 * stdDev([]float64{10, 12, 8, 11, 9}) * math.Sqrt(4)
	assert.InDelta(t, want, res.Metrics["safety_stock"], 0.01)
}

func TestLocalStockPrediction(t *testing.T) {
	l := NewLocalStrategy(true)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	res, err := l.Analyze(context.Background(), domain.AnalysisRequest{
		AnalysisType: domain.AnalysisStockPrediction,
		Items:        []domain.InventoryItem{{ID: "1", Name: "A", Quantity: 20, MinStockLevel: 5}},
		Sales:        salesSeries(2, 2, 2, 2),
		PeriodDays:   30,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Forecast)

	assert.Equal(t, 30, res.Forecast.Days)
	assert.InDelta(t, 60, res.Forecast.ProjectedDemand, 1e-9)
	assert.InDelta(t, 10, res.Forecast.DaysOfCover, 1e-9)
	assert.Equal(t, 40, res.Forecast.ReorderQuantity)
	require.NotNil(t, res.Forecast.DepletionDate)
	assert.Equal(t, now.AddDate(0, 0, 10), *res.Forecast.DepletionDate)
	assert.Equal(t, domain.RiskHigh, res.RiskLevel)
}

func TestLocalAnomalies(t *testing.T) {
	items := []domain.InventoryItem{
		{ID: "1", Name: "neg", Quantity: -3, Price: 1},
		{ID: "2", Name: "price", Quantity: 5, Price: -1},
		{ID: "3", Name: "huge", Quantity: 20000, Price: 1},
	}
	res, err := NewLocalStrategy(true).Analyze(context.Background(), domain.AnalysisRequest{
		AnalysisType: domain.AnalysisAnomalyDetection,
		Items:        items,
	})
	require.NoError(t, err)

	kinds := map[string]bool{}
	for _, a := range res.Anomalies {
		kinds[a.Kind] = true
	}
	assert.True(t, kinds["negative_quantity"])
	assert.True(t, kinds["negative_price"])
	assert.True(t, kinds["high_quantity"])
	assert.Equal(t, domain.RiskHigh, res.RiskLevel)
}

func TestLocalAvailability(t *testing.T) {
	assert.True(t, NewLocalStrategy(true).IsAvailable(context.Background()))
	assert.False(t, NewLocalStrategy(false).IsAvailable(context.Background()))
}

func TestLocalGenerate(t *testing.T) {
	l := NewLocalStrategy(true)

	p, err := l.Generate(context.Background(), domain.ReportRequest{ReportType: "weekly_summary", Items: sampleItems()})
	require.NoError(t, err)
	assert.Equal(t, "Weekly Inventory Summary", p.Title)
	assert.NotEmpty(t, p.KeyFindings)
	assert.Contains(t, p.Recommendations[0], "Restock Widget")
	assert.False(t, p.IsFallback)

	p, err = l.Generate(context.Background(), domain.ReportRequest{ReportType: "poem", Items: sampleItems()})
	require.NoError(t, err)
	assert.True(t, p.IsFallback)

	_, err = l.Generate(context.Background(), domain.ReportRequest{ReportType: "summary"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConfidenceAlwaysInRange(t *testing.T) {
	l := NewLocalStrategy(true)
	r := NewRuleStrategy()
	ctx := context.Background()

	req := domain.AnalysisRequest{
		Items:     append(sampleItems(), domain.InventoryItem{ID: "3", Quantity: -1, Price: -5}),
		Sales:     salesSeries(1, 50, 2, 90, 0, 3),
		Stock:     []domain.StockProfile{{ItemID: "a", CurrentStock: 10, MinStock: 1, MaxStock: 50}},
		Suppliers: []domain.SupplierProfile{{ID: "s", ReliabilityScore: 7, CostScore: 3}},
	}
	types := []domain.AnalysisType{
		domain.AnalysisSalesTrends, domain.AnalysisInventoryTurnover, domain.AnalysisStockOptimization,
		domain.AnalysisPurchaseRecommendations, domain.AnalysisSafetyStock, domain.AnalysisStockPrediction,
		domain.AnalysisAnomalyDetection, domain.AnalysisRiskAssessment, domain.AnalysisComprehensive,
	}

	for _, st := range []Strategy{l, r} {
		for _, at := range types {
			req.AnalysisType = at
			res, err := st.Analyze(ctx, req)
			require.NoError(t, err, "%s/%s", st.Name(), at)
			assert.GreaterOrEqual(t, res.Confidence, 0.0)
			assert.LessOrEqual(t, res.Confidence, 1.0)
			assert.Contains(t, []domain.RiskLevel{domain.RiskLow, domain.RiskMedium, domain.RiskHigh}, res.RiskLevel)
		}
	}
}

func TestLocalAnalyzeRecoversFromPanic(t *testing.T) {
	l := NewLocalStrategy(true)
	l.run = func(domain.AnalysisRequest) (*domain.AnalysisResult, error) {
		var weights []float64
		return &domain.AnalysisResult{Confidence: weights[3]}, nil
	}

	var (
		res *domain.AnalysisResult
		err error
	)
	require.NotPanics(t, func() {
		res, err = l.Analyze(context.Background(), domain.AnalysisRequest{
			AnalysisType: domain.AnalysisRiskAssessment,
			Items:        sampleItems(),
		})
	})
	require.NoError(t, err)
	assert.True(t, res.IsFallback)
	assert.Equal(t, 0.5, res.Confidence)
	assert.Equal(t, "fallback analysis", res.Analysis)
	assert.Equal(t, domain.RiskMedium, res.RiskLevel)
	assert.Equal(t, domain.AnalysisRiskAssessment, res.AnalysisType)
	assert.Equal(t, StrategyLocal, res.GeneratedBy)
}
