package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/andresuchdata/stockinsight/internal/ai"
	"github.com/andresuchdata/stockinsight/internal/cache"
	"github.com/andresuchdata/stockinsight/internal/domain"
	"github.com/andresuchdata/stockinsight/internal/repository"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	comprehensiveItemLimit = 1000
	optimizeItemLimit      = 2000
	sampleSize             = 500
	aiBatchSize            = 50
	optimizeBatchSize      = 100
	topInsights            = 10
	defaultForecastDays    = 30
	maxForecastDays        = 365
	monitorHorizonDays     = 7
	monitorConcurrency     = 8
)

// Analyzer is the subset of the AI dispatcher the orchestrator needs.
type Analyzer interface {
	AnalyzeOrFallback(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error)
	GenerateOrFallback(ctx context.Context, req domain.ReportRequest) (*domain.ReportPayload, error)
	Status(ctx context.Context) ai.Status
}

// AnalysisService composes inventory reads, local aggregates and AI
// enrichment. Its operations never return an error: data source failures are
// reported through ResultMeta.Status.
type AnalysisService struct {
	repo  repository.InventoryRepository
	ai    Analyzer
	cache cache.AnalysisCache
	now   func() time.Time
}

func NewAnalysisService(repo repository.InventoryRepository, analyzer Analyzer, cacheImpl cache.AnalysisCache) *AnalysisService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopAnalysisCache()
	}
	return &AnalysisService{
		repo:  repo,
		ai:    analyzer,
		cache: cacheImpl,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *AnalysisService) meta() ResultMeta {
	return ResultMeta{Status: StatusSuccess, GeneratedAt: s.now()}
}

func (s *AnalysisService) fail(m *ResultMeta, operation string, err error) {
	log.Error().Err(err).Str("operation", operation).Msg("analysis: data source failed")
	m.Status = StatusError
	m.Error = err.Error()
}

// analyze runs one AI call through the dispatcher's fallback step. Missing
// input is not a fallback; it simply yields no result.
func (s *AnalysisService) analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, bool) {
	res, err := s.ai.AnalyzeOrFallback(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return nil, false
		}
		log.Warn().Err(err).Str("analysis_type", string(req.AnalysisType)).Msg("analysis: ai enrichment failed")
		return nil, true
	}
	return res, res.IsFallback
}

func (s *AnalysisService) cached(ctx context.Context, key string, dest any) bool {
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("analysis: cache get failed")
		return false
	}
	return hit
}

func (s *AnalysisService) store(ctx context.Context, key string, m ResultMeta, value any) {
	// Degraded results are not cached so a recovered AI backend is picked up.
	if m.Status != StatusSuccess || m.IsFallback {
		return
	}
	if err := s.cache.Set(ctx, key, value); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("analysis: cache set failed")
	}
}

type inventorySnapshot struct {
	items      []domain.InventoryItem
	lowStock   []domain.InventoryItem
	outOfStock []domain.InventoryItem
	sales      []domain.SalesPoint
}

func (s *AnalysisService) fetchSnapshot(ctx context.Context, filter domain.InventoryFilter, limit, salesDays int) (*inventorySnapshot, error) {
	snap := &inventorySnapshot{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		items, err := s.repo.List(gctx, filter, domain.ListOptions{Limit: limit})
		snap.items = items
		return err
	})
	g.Go(func() error {
		items, err := s.repo.LowStock(gctx, 0)
		snap.lowStock = items
		return err
	})
	g.Go(func() error {
		items, err := s.repo.OutOfStock(gctx)
		snap.outOfStock = items
		return err
	})
	g.Go(func() error {
		sales, err := s.repo.DailySales(gctx, salesDays)
		snap.sales = sales
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

// Comprehensive analyses up to 1000 items matching filter.
func (s *AnalysisService) Comprehensive(ctx context.Context, filter domain.InventoryFilter) *ComprehensiveAnalysis {
	start := time.Now()
	filterJSON, _ := json.Marshal(filter)
	key := cache.AnalysisKey("comprehensive", string(filterJSON))

	var cachedResult ComprehensiveAnalysis
	if s.cached(ctx, key, &cachedResult) {
		log.Debug().Str("key", key).Msg("analysis: serving comprehensive analysis from cache")
		return &cachedResult
	}

	res := &ComprehensiveAnalysis{
		ResultMeta:     s.meta(),
		RiskAssessment: domain.RiskMedium,
		AIInsights:     []string{},
		StockOptimization: OptimizationBatch{
			Optimizations: []domain.StockOptimization{},
		},
		CriticalItems: CriticalItems{
			LowStock:   []domain.InventoryItem{},
			OutOfStock: []domain.InventoryItem{},
		},
	}

	snap, err := s.fetchSnapshot(ctx, filter, comprehensiveItemLimit, defaultForecastDays)
	if err != nil {
		s.fail(&res.ResultMeta, "comprehensive", err)
		res.Performance = performanceSince(start)
		return res
	}

	res.Summary = domain.Summarize(snap.items)
	res.ItemsAnalyzed = len(snap.items)
	res.CriticalItems = CriticalItems{LowStock: snap.lowStock, OutOfStock: snap.outOfStock}

	var recs []string
	for _, batch := range chunk(stratifiedSample(snap.items, sampleSize), aiBatchSize) {
		out, fellBack := s.analyze(ctx, domain.AnalysisRequest{
			AnalysisType: domain.AnalysisComprehensive,
			Items:        batch,
			PeriodDays:   defaultForecastDays,
		})
		res.IsFallback = res.IsFallback || fellBack
		if out != nil {
			recs = append(recs, out.Recommendations...)
		}
	}
	res.RiskAssessment = overallRisk(recs)
	res.AIInsights = firstN(recs, topInsights)

	trend, fellBack := s.analyze(ctx, domain.AnalysisRequest{
		AnalysisType: domain.AnalysisSalesTrends,
		Sales:        snap.sales,
		PeriodDays:   defaultForecastDays,
	})
	res.SalesTrends = trend
	res.IsFallback = res.IsFallback || fellBack

	profiles := stockProfiles(snap.items)
	for _, batch := range chunk(profiles, optimizeBatchSize) {
		out, fellBack := s.analyze(ctx, domain.AnalysisRequest{
			AnalysisType: domain.AnalysisStockOptimization,
			Stock:        batch,
		})
		res.IsFallback = res.IsFallback || fellBack
		res.StockOptimization.BatchesProcessed++
		if out == nil {
			continue
		}
		for _, o := range out.Optimizations {
			res.StockOptimization.Optimizations = append(res.StockOptimization.Optimizations, o)
			res.StockOptimization.TotalPotentialSavings += o.PotentialSavings
		}
	}
	res.StockOptimization.TotalPotentialSavings = domain.Round(res.StockOptimization.TotalPotentialSavings, 2)

	res.Performance = performanceSince(start)
	s.store(ctx, key, res.ResultMeta, res)

	log.Info().
		Int("items_analyzed", res.ItemsAnalyzed).
		Bool("is_fallback", res.IsFallback).
		Dur("elapsed", time.Since(start)).
		Msg("analysis: comprehensive analysis completed")

	return res
}

// WeeklyReport summarises the last seven days. Results are cached per ISO
// week.
func (s *AnalysisService) WeeklyReport(ctx context.Context) *WeeklyReport {
	start := time.Now()
	now := s.now()
	year, week := now.ISOWeek()
	key := cache.AnalysisKey("weekly", fmt.Sprintf("%d-W%02d", year, week))

	var cachedResult WeeklyReport
	if s.cached(ctx, key, &cachedResult) {
		return &cachedResult
	}

	res := &WeeklyReport{
		ResultMeta: s.meta(),
		Period:     Period{Start: now.AddDate(0, 0, -7), End: now, Type: "weekly"},
		ExecutiveSummary: ExecutiveSummary{
			KeyFindings:     []string{},
			Recommendations: []string{},
		},
		ActionItems: []ActionItem{},
	}

	snap, err := s.fetchSnapshot(ctx, domain.InventoryFilter{}, comprehensiveItemLimit, 7)
	if err != nil {
		s.fail(&res.ResultMeta, "weekly", err)
		res.ExecutiveSummary.Overview = "Report generation unavailable"
		res.Performance = performanceSince(start)
		return res
	}

	summary := domain.Summarize(snap.items)
	res.KeyMetrics = keyMetrics(summary, snap.sales)
	res.ExecutiveSummary = s.executiveSummary(ctx, snap.items, summary, &res.ResultMeta)
	res.ActionItems = prioritizeActions(summary, res.ExecutiveSummary.Recommendations)

	trend, fellBack := s.analyze(ctx, domain.AnalysisRequest{
		AnalysisType: domain.AnalysisSalesTrends,
		Sales:        snap.sales,
		PeriodDays:   7,
	})
	res.TrendAnalysis = trend
	res.IsFallback = res.IsFallback || fellBack

	res.Performance = performanceSince(start)
	s.store(ctx, key, res.ResultMeta, res)
	return res
}

func (s *AnalysisService) executiveSummary(ctx context.Context, items []domain.InventoryItem, summary domain.InventorySummary, m *ResultMeta) ExecutiveSummary {
	out := ExecutiveSummary{
		Overview: fmt.Sprintf("Weekly inventory report covering %d items, health %s (%.1f)",
			summary.TotalItems, summary.HealthStatus, summary.HealthScore),
		KeyFindings:     []string{},
		Recommendations: []string{"No recommendations available"},
		GeneratedBy:     "summary",
	}
	if len(items) == 0 {
		return out
	}

	payload, err := s.ai.GenerateOrFallback(ctx, domain.ReportRequest{
		ReportType: "weekly_summary",
		Items:      items,
		Summary:    summary,
		PeriodDays: 7,
	})
	if err != nil {
		log.Warn().Err(err).Msg("analysis: executive summary generation failed")
		m.IsFallback = true
		return out
	}

	if payload.Summary != "" {
		out.Overview = payload.Summary
	}
	out.KeyFindings = payload.KeyFindings
	if len(payload.Recommendations) > 0 {
		out.Recommendations = payload.Recommendations
	}
	out.GeneratedBy = payload.GeneratedBy
	m.IsFallback = m.IsFallback || payload.IsFallback
	return out
}

// MonitorCriticalItems raises an alert for every low and out-of-stock item.
// Low stock alerts carry a seven day depletion prediction.
func (s *AnalysisService) MonitorCriticalItems(ctx context.Context) *CriticalItemsReport {
	res := &CriticalItemsReport{
		ResultMeta: s.meta(),
		Alerts:     []Alert{},
		RiskLevel:  domain.RiskLow,
	}

	var low, out []domain.InventoryItem
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		low, err = s.repo.LowStock(gctx, 0)
		return err
	})
	g.Go(func() error {
		var err error
		out, err = s.repo.OutOfStock(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.fail(&res.ResultMeta, "monitor", err)
		return res
	}

	lowAlerts := make([]Alert, len(low))
	var fellBack atomic.Bool

	pg, pctx := errgroup.WithContext(ctx)
	pg.SetLimit(monitorConcurrency)
	for i, item := range low {
		i, item := i, item
		pg.Go(func() error {
			alert := Alert{
				Type:              AlertLowStock,
				ItemID:            item.ID,
				ItemName:          item.Name,
				CurrentStock:      item.Quantity,
				MinStock:          item.EffectiveMinStock(),
				Urgency:           domain.UrgencyFor(item),
				RecommendedAction: "Review stock levels",
			}
			pred, fb := s.analyze(pctx, domain.AnalysisRequest{
				AnalysisType: domain.AnalysisStockPrediction,
				Items:        []domain.InventoryItem{item},
				PeriodDays:   monitorHorizonDays,
			})
			if fb {
				fellBack.Store(true)
			}
			if pred != nil {
				if pred.Forecast != nil {
					alert.PredictedOutOfStock = pred.Forecast.DepletionDate
				}
				if len(pred.Recommendations) > 0 {
					alert.RecommendedAction = pred.Recommendations[0]
				}
			}
			lowAlerts[i] = alert
			return nil
		})
	}
	_ = pg.Wait()

	res.Alerts = append(res.Alerts, lowAlerts...)
	for _, item := range out {
		res.Alerts = append(res.Alerts, Alert{
			Type:              AlertOutOfStock,
			ItemID:            item.ID,
			ItemName:          item.Name,
			MinStock:          item.EffectiveMinStock(),
			Urgency:           domain.UrgencyCritical,
			RecommendedAction: "Immediate restock required",
		})
	}
	res.IsFallback = fellBack.Load()

	critical := append(append([]domain.InventoryItem{}, low...), out...)
	if risk, fb := s.analyze(ctx, domain.AnalysisRequest{
		AnalysisType: domain.AnalysisRiskAssessment,
		Items:        critical,
		PeriodDays:   monitorHorizonDays,
	}); risk != nil {
		res.RiskLevel = risk.RiskLevel
		res.IsFallback = res.IsFallback || fb
	} else if fb {
		res.IsFallback = true
	}

	res.TotalCriticalItems = len(res.Alerts)
	res.Summary = MonitorSummary{LowStockCount: len(low), OutOfStockCount: len(out)}
	for _, a := range res.Alerts {
		if a.Urgency == domain.UrgencyCritical || a.Urgency == domain.UrgencyHigh {
			res.Summary.UrgentAlerts++
		}
	}

	log.Info().
		Int("total_alerts", len(res.Alerts)).
		Str("risk_level", string(res.RiskLevel)).
		Msg("analysis: critical items monitoring completed")
	return res
}

// PredictNeeds forecasts demand over days (default 30, capped at 365).
func (s *AnalysisService) PredictNeeds(ctx context.Context, days int) *PredictionReport {
	days = clampDays(days)
	res := &PredictionReport{ResultMeta: s.meta(), ForecastPeriod: days}

	var (
		items     []domain.InventoryItem
		sales     []domain.SalesPoint
		suppliers []domain.SupplierProfile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.repo.List(gctx, domain.InventoryFilter{}, domain.ListOptions{Limit: comprehensiveItemLimit})
		return err
	})
	g.Go(func() error {
		var err error
		sales, err = s.repo.DailySales(gctx, defaultForecastDays)
		return err
	})
	g.Go(func() error {
		var err error
		suppliers, err = s.repo.Suppliers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.fail(&res.ResultMeta, "predict", err)
		return res
	}

	prediction, fb1 := s.analyze(ctx, domain.AnalysisRequest{
		AnalysisType: domain.AnalysisStockPrediction,
		Items:        items,
		Sales:        sales,
		PeriodDays:   days,
	})
	trends, fb2 := s.analyze(ctx, domain.AnalysisRequest{
		AnalysisType: domain.AnalysisSalesTrends,
		Sales:        sales,
		PeriodDays:   defaultForecastDays,
	})
	if len(suppliers) == 0 {
		suppliers = suppliersFromItems(items)
	}
	purchases, fb3 := s.analyze(ctx, domain.AnalysisRequest{
		AnalysisType: domain.AnalysisPurchaseRecommendations,
		Suppliers:    suppliers,
	})

	res.PredictionSummary = prediction
	res.SalesTrends = trends
	res.RecommendedActions = purchases
	res.IsFallback = fb1 || fb2 || fb3
	res.ConfidenceScore = 0.7
	if prediction != nil {
		res.ConfidenceScore = prediction.Confidence
	}

	log.Info().Int("forecast_days", days).Float64("confidence", res.ConfidenceScore).Msg("analysis: inventory needs prediction completed")
	return res
}

// Optimize computes optimal stock levels for up to 2000 items.
func (s *AnalysisService) Optimize(ctx context.Context) *OptimizationReport {
	res := &OptimizationReport{
		ResultMeta:         s.meta(),
		SavingsAnalysis:    SavingsAnalysis{ItemSavings: map[string]float64{}},
		ImplementationPlan: implementationPlan(),
	}

	items, err := s.repo.List(ctx, domain.InventoryFilter{}, domain.ListOptions{Limit: optimizeItemLimit})
	if err != nil {
		s.fail(&res.ResultMeta, "optimize", err)
		return res
	}

	opt, fellBack := s.analyze(ctx, domain.AnalysisRequest{
		AnalysisType: domain.AnalysisStockOptimization,
		Stock:        stockProfiles(items),
	})
	res.OptimizationResults = opt
	res.IsFallback = fellBack
	res.TotalItemsOptimized = len(items)

	var optimizations []domain.StockOptimization
	if opt != nil {
		optimizations = opt.Optimizations
	}
	res.SavingsAnalysis = savingsPotential(items, optimizations)

	log.Info().
		Float64("potential_savings", res.SavingsAnalysis.TotalPotentialSavings).
		Int("items_optimized", res.TotalItemsOptimized).
		Msg("analysis: inventory optimization completed")
	return res
}

// SalesTrends analyses outbound movements over the last days days.
func (s *AnalysisService) SalesTrends(ctx context.Context, days int) *SalesTrendReport {
	days = clampDays(days)
	res := &SalesTrendReport{ResultMeta: s.meta(), PeriodDays: days}

	sales, err := s.repo.DailySales(ctx, days)
	if err != nil {
		s.fail(&res.ResultMeta, "sales_trends", err)
		return res
	}

	res.DataPoints = len(sales)
	for _, p := range sales {
		res.TotalSales += p.Quantity
		res.Revenue += p.Revenue
	}
	res.Revenue = domain.Round(res.Revenue, 2)

	res.Trend, res.IsFallback = s.analyze(ctx, domain.AnalysisRequest{
		AnalysisType: domain.AnalysisSalesTrends,
		Sales:        sales,
		PeriodDays:   days,
	})
	return res
}

func (s *AnalysisService) AIStatus(ctx context.Context) *AIStatusReport {
	status := s.ai.Status(ctx)
	return &AIStatusReport{
		ResultMeta: ResultMeta{
			Status:      StatusSuccess,
			IsFallback:  !status.Available,
			GeneratedAt: s.now(),
		},
		AI: status,
	}
}

func clampDays(days int) int {
	if days <= 0 {
		return defaultForecastDays
	}
	if days > maxForecastDays {
		return maxForecastDays
	}
	return days
}

func keyMetrics(summary domain.InventorySummary, sales []domain.SalesPoint) KeyMetrics {
	km := KeyMetrics{
		TotalInventoryValue: summary.TotalValue,
		AveragePrice:        summary.AveragePrice,
		LowStockCount:       summary.LowStockCount,
		OutOfStockCount:     summary.OutOfStockCount,
		HealthScore:         summary.HealthScore,
		HealthStatus:        summary.HealthStatus,
	}
	if summary.TotalItems > 0 {
		km.OutOfStockPercentage = domain.Round(float64(summary.OutOfStockCount)/float64(summary.TotalItems)*100, 2)
	}
	for _, p := range sales {
		km.UnitsSold += p.Quantity
		km.Revenue += p.Revenue
	}
	km.Revenue = domain.Round(km.Revenue, 2)
	return km
}

var priorityRank = map[string]int{"high": 0, "medium": 1, "low": 2}

// prioritizeActions merges rule driven actions with AI recommendations,
// high priority first.
func prioritizeActions(summary domain.InventorySummary, recommendations []string) []ActionItem {
	actions := []ActionItem{}
	if summary.OutOfStockCount > 0 {
		actions = append(actions, ActionItem{Priority: "high", Action: fmt.Sprintf("Restock %d out-of-stock items immediately", summary.OutOfStockCount)})
	}
	if summary.LowStockCount > 0 {
		actions = append(actions, ActionItem{Priority: "medium", Action: fmt.Sprintf("Review %d low stock items and plan replenishment", summary.LowStockCount)})
	}
	if summary.TotalItems > 0 && summary.HealthScore < 60 {
		actions = append(actions, ActionItem{Priority: "medium", Action: "Review inventory management processes"})
	}
	for _, r := range recommendations {
		if r == "" || r == "No recommendations available" {
			continue
		}
		actions = append(actions, ActionItem{Priority: "low", Action: r})
	}

	sort.SliceStable(actions, func(i, j int) bool {
		return priorityRank[actions[i].Priority] < priorityRank[actions[j].Priority]
	})
	return actions
}
