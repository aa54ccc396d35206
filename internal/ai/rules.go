package ai

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/andresuchdata/stockinsight/internal/domain"
)

// RuleStrategy answers every request from fixed formulas. It has no
// dependencies and is always available, which makes it the dispatcher's
// secondary.
type RuleStrategy struct {
	now func() time.Time
}

func NewRuleStrategy() *RuleStrategy {
	return &RuleStrategy{now: time.Now}
}

func (r *RuleStrategy) Name() string { return StrategyRules }

func (r *RuleStrategy) IsAvailable(context.Context) bool { return true }

func (r *RuleStrategy) Analyze(_ context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var res *domain.AnalysisResult
	switch req.AnalysisType {
	case domain.AnalysisSalesTrends:
		res = r.salesTrends(req)
	case domain.AnalysisInventoryTurnover:
		res = r.turnover(req)
	case domain.AnalysisStockOptimization:
		res = r.optimize(req)
	case domain.AnalysisPurchaseRecommendations:
		res = r.suppliers(req)
	case domain.AnalysisSafetyStock:
		res = r.safetyStock(req)
	case domain.AnalysisAnomalyDetection:
		res = r.anomalies(req)
	default:
		res = r.criticalItems(req)
	}

	res.AnalysisType = req.AnalysisType
	res.GeneratedBy = StrategyRules
	res.Timestamp = r.now().UTC()
	return res.Normalize(), nil
}

func (r *RuleStrategy) Generate(_ context.Context, req domain.ReportRequest) (*domain.ReportPayload, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s := req.Summary
	if s.TotalItems == 0 {
		s = domain.Summarize(req.Items)
	}
	findings := []string{
		fmt.Sprintf("%d items tracked with a total value of %.2f", s.TotalItems, s.TotalValue),
		fmt.Sprintf("Inventory health is %s (score %.1f)", s.HealthStatus, s.HealthScore),
	}
	if s.OutOfStockCount > 0 {
		findings = append(findings, fmt.Sprintf("%d items are out of stock", s.OutOfStockCount))
	}
	if s.LowStockCount > 0 {
		findings = append(findings, fmt.Sprintf("%d items are below their minimum stock level", s.LowStockCount))
	}

	return (&domain.ReportPayload{
		ReportType:      req.ReportType,
		Title:           reportTitle(req.ReportType),
		Summary:         fmt.Sprintf("%d items, %d low stock, %d out of stock.", s.TotalItems, s.LowStockCount, s.OutOfStockCount),
		KeyFindings:     findings,
		Recommendations: restockRecommendations(req.Items),
		Confidence:      0.7,
		GeneratedBy:     StrategyRules,
		GeneratedAt:     r.now().UTC(),
	}).Normalize(), nil
}

func (r *RuleStrategy) salesTrends(req domain.AnalysisRequest) *domain.AnalysisResult {
	qty := quantities(req.Sales)
	var total float64
	for _, q := range qty {
		total += q
	}

	growth := 0.0
	if len(qty) >= 2 && qty[0] != 0 {
		growth = (qty[len(qty)-1] - qty[0]) / qty[0]
	}
	direction := "stable"
	if growth > 0 {
		direction = "increasing"
	} else if growth < 0 {
		direction = "decreasing"
	}

	return &domain.AnalysisResult{
		Analysis:   fmt.Sprintf("Sales are %s over %d data points", direction, len(qty)),
		RiskLevel:  domain.RiskMedium,
		Confidence: 0.6,
		Trend: &domain.Trend{
			Direction:         direction,
			GrowthRate:        domain.Round(growth, 4),
			AverageDailySales: domain.Round(total/math.Max(1, float64(periodOrDefault(req.PeriodDays))), 2),
			TotalSales:        total,
			DataPoints:        len(qty),
		},
		Recommendations: []string{
			"Consider manual analysis for more accurate trends",
			"Monitor sales data for pattern changes",
		},
	}
}

func (r *RuleStrategy) turnover(req domain.AnalysisRequest) *domain.AnalysisResult {
	daily := dailyUsage(req.Items, req.Sales)
	perItem := daily / float64(len(req.Items))

	var days []float64
	for _, it := range req.Items {
		if it.Quantity > 0 && perItem > 0 {
			days = append(days, float64(it.Quantity)/perItem)
		}
	}

	return &domain.AnalysisResult{
		Analysis:        "Turnover estimated from the historical average",
		RiskLevel:       domain.RiskMedium,
		Confidence:      0.5,
		Recommendations: []string{"Review slow moving items manually"},
		Metrics: map[string]float64{
			"average_turnover_days": domain.Round(mean(days), 2),
			"items_evaluated":       float64(len(days)),
		},
	}
}

func (r *RuleStrategy) optimize(req domain.AnalysisRequest) *domain.AnalysisResult {
	var (
		opts    []domain.StockOptimization
		savings float64
	)
	for _, p := range req.Stock {
		o := ruleOptimization(p)
		savings += o.PotentialSavings
		opts = append(opts, o)
	}

	return &domain.AnalysisResult{
		Analysis:        fmt.Sprintf("Rule based optimization of %d items", len(opts)),
		RiskLevel:       domain.RiskMedium,
		Confidence:      0.7,
		Optimizations:   opts,
		Recommendations: optimizationRecommendations(opts),
		Metrics: map[string]float64{
			"total_potential_savings": domain.Round(savings, 2),
			"items_processed":         float64(len(opts)),
		},
	}
}

func ruleOptimization(p domain.StockProfile) domain.StockOptimization {
	lead := float64(p.LeadTimeDays)
	if lead <= 0 {
		lead = defaultLeadTimeDays
	}
	daily := p.DailyUsage
	if daily <= 0 {
		daily = math.Max(1, float64(p.CurrentStock)/30)
	}
	maxStock := float64(p.MaxStock)
	if maxStock <= 0 {
		maxStock = math.Max(float64(p.CurrentStock*2), float64(p.MinStock+10))
	}
	unitCost := p.UnitCost
	if unitCost <= 0 {
		unitCost = 1
	}

	safety := math.Max(0, daily*lead*1.5)
	reorder := math.Max(0, daily*lead+safety)
	optimal := math.Min(maxStock, math.Max(float64(p.MinStock), reorder*1.2))
	saving := math.Max(0, (float64(p.CurrentStock)-optimal)*unitCost)

	return domain.StockOptimization{
		ItemID:           p.ItemID,
		Name:             p.Name,
		CurrentStock:     p.CurrentStock,
		OptimalStock:     int(math.Round(optimal)),
		ReorderPoint:     domain.Round(reorder, 2),
		SafetyStock:      domain.Round(safety, 2),
		PotentialSavings: domain.Round(saving, 2),
	}
}

func optimizationRecommendations(opts []domain.StockOptimization) []string {
	var recs []string
	for _, o := range opts {
		switch {
		case o.CurrentStock > o.OptimalStock:
			recs = append(recs, fmt.Sprintf("Reduce %s from %d to %d units", o.Name, o.CurrentStock, o.OptimalStock))
		case float64(o.CurrentStock) < o.ReorderPoint:
			recs = append(recs, fmt.Sprintf("Reorder %s: below reorder point %.0f", o.Name, o.ReorderPoint))
		}
	}
	return recs
}

func (r *RuleStrategy) suppliers(req domain.AnalysisRequest) *domain.AnalysisResult {
	scores := scoreSuppliers(req.Suppliers)
	var recs []string
	for _, s := range scores {
		if s.Recommendation == "highly_recommended" {
			recs = append(recs, fmt.Sprintf("Prefer %s for purchase orders (score %.2f)", s.Name, s.Score))
		}
	}

	var total float64
	for _, s := range scores {
		total += s.Score
	}
	return &domain.AnalysisResult{
		Analysis:        fmt.Sprintf("Scored %d suppliers on reliability, lead time and cost", len(scores)),
		RiskLevel:       domain.RiskMedium,
		Confidence:      0.6,
		SupplierScores:  scores,
		Recommendations: recs,
		Metrics:         map[string]float64{"average_score": domain.Round(total/float64(len(scores)), 3)},
	}
}

func (r *RuleStrategy) safetyStock(req domain.AnalysisRequest) *domain.AnalysisResult {
	demand := quantities(req.Sales)
	lead := averageLeadTime(req.Stock)
	ss := safetyStock(demand, lead)

	return &domain.AnalysisResult{
		Analysis:   fmt.Sprintf("Safety stock of %.2f units at a 95%% service level", ss),
		RiskLevel:  domain.RiskMedium,
		Confidence: 0.7,
		Metrics: map[string]float64{
			"safety_stock":      domain.Round(ss, 2),
			"average_demand":    domain.Round(mean(demand), 2),
			"demand_std_dev":    domain.Round(stdDev(demand), 2),
			"average_lead_time": domain.Round(lead, 2),
		},
	}
}

func (r *RuleStrategy) anomalies(req domain.AnalysisRequest) *domain.AnalysisResult {
	found := basicAnomalies(req.Items)
	risk := domain.RiskLow
	if len(found) > 0 {
		risk = domain.RiskHigh
	}
	return &domain.AnalysisResult{
		Analysis:   fmt.Sprintf("%d anomalies detected", len(found)),
		RiskLevel:  risk,
		Confidence: 0.7,
		Anomalies:  found,
	}
}

func (r *RuleStrategy) criticalItems(req domain.AnalysisRequest) *domain.AnalysisResult {
	critical := criticalItems(req.Items)
	var out int
	for _, it := range req.Items {
		if it.IsOutOfStock() {
			out++
		}
	}

	risk := domain.RiskLow
	if len(critical) > 0 {
		risk = domain.RiskHigh
	}
	res := &domain.AnalysisResult{
		Analysis:        "Basic inventory analysis",
		RiskLevel:       risk,
		Confidence:      0.7,
		Recommendations: restockRecommendations(req.Items),
		Metrics: map[string]float64{
			"critical_items":     float64(len(critical)),
			"out_of_stock_items": float64(out),
		},
	}
	if req.AnalysisType == domain.AnalysisStockPrediction {
		res.Forecast = forecast(req.Items, dailyUsage(req.Items, req.Sales), req.PeriodDays, r.now())
	}
	return res
}

func reportTitle(reportType string) string {
	switch reportType {
	case "weekly_summary":
		return "Weekly Inventory Summary"
	case "executive":
		return "Executive Inventory Report"
	case "detailed":
		return "Detailed Inventory Report"
	case "comprehensive":
		return "Comprehensive Inventory Report"
	default:
		return "Inventory Summary"
	}
}
