package ai

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/andresuchdata/stockinsight/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	trendThreshold      = 0.1
	optimizeGenerations = 10
	localFallbackConf   = 0.5
	slowTurnover        = 2.0
	fastTurnover        = 6.0

	// annual holding cost as a fraction of unit cost
	holdingRate = 0.25
	// cost of one unit short relative to its unit cost
	shortagePenalty = 2.0
)

// LocalStrategy runs deterministic in-process numeric models. It performs no
// I/O and is available whenever enabled.
type LocalStrategy struct {
	enabled bool
	now     func() time.Time
	// run dispatches to the model for the analysis type; replaced in tests.
	run func(domain.AnalysisRequest) (*domain.AnalysisResult, error)
}

func NewLocalStrategy(enabled bool) *LocalStrategy {
	l := &LocalStrategy{enabled: enabled, now: time.Now}
	l.run = l.analyze
	return l
}

func (l *LocalStrategy) Name() string { return StrategyLocal }

func (l *LocalStrategy) IsAvailable(context.Context) bool { return l.enabled }

func (l *LocalStrategy) Analyze(_ context.Context, req domain.AnalysisRequest) (res *domain.AnalysisResult, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Str("analysis_type", string(req.AnalysisType)).Msg("ai: local analysis panicked")
			res, err = l.canned(req.AnalysisType), nil
		}
	}()

	res, algErr := l.run(req)
	if algErr != nil {
		log.Warn().Err(algErr).Str("analysis_type", string(req.AnalysisType)).Msg("ai: local analysis failed, using canned result")
		return l.canned(req.AnalysisType), nil
	}

	res.AnalysisType = req.AnalysisType
	res.GeneratedBy = StrategyLocal
	res.Timestamp = l.now().UTC()
	return res.Normalize(), nil
}

func (l *LocalStrategy) analyze(req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	switch req.AnalysisType {
	case domain.AnalysisSalesTrends:
		return l.salesTrends(req), nil
	case domain.AnalysisInventoryTurnover:
		return l.turnover(req), nil
	case domain.AnalysisStockOptimization:
		return l.optimize(req)
	case domain.AnalysisPurchaseRecommendations:
		return l.suppliers(req), nil
	case domain.AnalysisSafetyStock:
		return l.safetyStock(req), nil
	case domain.AnalysisAnomalyDetection:
		return l.anomalies(req), nil
	case domain.AnalysisStockPrediction:
		return l.predict(req), nil
	case domain.AnalysisRiskAssessment, domain.AnalysisComprehensive:
		return l.risk(req), nil
	default:
		return nil, fmt.Errorf("unsupported analysis type %q", req.AnalysisType)
	}
}

func (l *LocalStrategy) canned(t domain.AnalysisType) *domain.AnalysisResult {
	return (&domain.AnalysisResult{
		AnalysisType:    t,
		Analysis:        "fallback analysis",
		RiskLevel:       domain.RiskMedium,
		Confidence:      localFallbackConf,
		Recommendations: []string{"Review inventory levels manually"},
		GeneratedBy:     StrategyLocal,
		IsFallback:      true,
		Timestamp:       l.now().UTC(),
	}).Normalize()
}

func (l *LocalStrategy) salesTrends(req domain.AnalysisRequest) *domain.AnalysisResult {
	qty := quantities(req.Sales)
	slope, r2 := leastSquaresSlope(qty)
	avg := mean(qty)

	direction := "stable"
	switch {
	case slope > trendThreshold:
		direction = "increasing"
	case slope < -trendThreshold:
		direction = "decreasing"
	}

	growth := 0.0
	if avg != 0 {
		growth = slope / avg
	}
	var total float64
	for _, q := range qty {
		total += q
	}

	risk := domain.RiskLow
	recs := []string{"Keep current replenishment cadence"}
	if direction == "decreasing" {
		risk = domain.RiskMedium
		recs = []string{"Reduce purchase quantities to match falling demand", "Review slow moving stock for promotions"}
	} else if direction == "increasing" {
		recs = []string{"Increase safety stock for fast growing items", "Bring forward the next purchase order"}
	}

	return &domain.AnalysisResult{
		Analysis:   fmt.Sprintf("Sales are %s (slope %.3f units/day, r² %.2f)", direction, slope, r2),
		RiskLevel:  risk,
		Confidence: confidenceForPoints(len(qty)),
		Trend: &domain.Trend{
			Direction:         direction,
			Slope:             domain.Round(slope, 4),
			GrowthRate:        domain.Round(growth, 4),
			AverageDailySales: domain.Round(avg, 2),
			TotalSales:        total,
			DataPoints:        len(qty),
		},
		Recommendations: recs,
		Metrics:         map[string]float64{"r_squared": domain.Round(r2, 4)},
	}
}

// turnover averages three independent annual turnover estimates per item.
func (l *LocalStrategy) turnover(req domain.AnalysisRequest) *domain.AnalysisResult {
	perItemDaily := dailyUsage(req.Items, req.Sales) / float64(len(req.Items))

	var (
		rates      []float64
		slow, fast int
		recs       []string
	)
	for _, it := range req.Items {
		q := math.Max(1, float64(it.Quantity))

		usage := 365 * perItemDaily / q
		// the minimum level is sized to cover about a month of demand
		cover := 365 * float64(it.EffectiveMinStock()) / 30 / q
		priced := 12 / (1 + math.Log10(1+math.Max(0, it.Price)))

		rate := (usage + cover + priced) / 3
		rates = append(rates, rate)

		switch {
		case rate < slowTurnover:
			slow++
			recs = append(recs, fmt.Sprintf("%s turns %.1f times a year: reduce stock or promote", it.Name, rate))
		case rate > fastTurnover:
			fast++
		}
	}

	risk := domain.RiskLow
	slowShare := float64(slow) / float64(len(rates))
	switch {
	case slowShare > 0.5:
		risk = domain.RiskHigh
	case slowShare > 0.2:
		risk = domain.RiskMedium
	}

	return &domain.AnalysisResult{
		Analysis:        fmt.Sprintf("Average turnover %.2f per year across %d items", mean(rates), len(rates)),
		RiskLevel:       risk,
		Confidence:      confidenceForPoints(len(req.Sales)),
		Recommendations: recs,
		Metrics: map[string]float64{
			"average_turnover":  domain.Round(mean(rates), 2),
			"slow_moving_items": float64(slow),
			"fast_moving_items": float64(fast),
		},
	}
}

func (l *LocalStrategy) optimize(req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	var (
		opts    []domain.StockOptimization
		savings float64
	)
	for _, p := range req.Stock {
		o, err := searchOptimalStock(p)
		if err != nil {
			return nil, fmt.Errorf("optimize %s: %w", p.ItemID, err)
		}
		savings += o.PotentialSavings
		opts = append(opts, o)
	}

	return &domain.AnalysisResult{
		Analysis:        fmt.Sprintf("Optimized stock levels for %d items", len(opts)),
		RiskLevel:       domain.RiskLow,
		Confidence:      0.85,
		Optimizations:   opts,
		Recommendations: optimizationRecommendations(opts),
		Metrics: map[string]float64{
			"total_potential_savings": domain.Round(savings, 2),
			"items_processed":         float64(len(opts)),
		},
	}, nil
}

// searchOptimalStock minimizes holding plus expected shortage cost over
// [min, max] with a step-halving local search.
func searchOptimalStock(p domain.StockProfile) (domain.StockOptimization, error) {
	lo := float64(p.MinStock)
	hi := float64(p.MaxStock)
	if hi <= 0 {
		hi = math.Max(float64(p.CurrentStock*2), lo+10)
	}
	if hi < lo {
		return domain.StockOptimization{}, fmt.Errorf("max stock %v below min stock %v", hi, lo)
	}

	lead := float64(p.LeadTimeDays)
	if lead <= 0 {
		lead = defaultLeadTimeDays
	}
	daily := p.DailyUsage
	if daily <= 0 {
		daily = math.Max(1, float64(p.CurrentStock)/30)
	}
	unitCost := p.UnitCost
	if unitCost <= 0 {
		unitCost = 1
	}

	// demand variance assumed poisson, so sigma per day is sqrt(daily)
	safety := serviceLevelZ * math.Sqrt(daily) * math.Sqrt(lead)
	reorder := daily*lead + safety

	cost := func(s float64) float64 {
		holding := s * unitCost * holdingRate * lead / 365
		shortage := math.Max(0, reorder-s) * unitCost * shortagePenalty
		return holding + shortage
	}

	best := (lo + hi) / 2
	bestCost := cost(best)
	step := (hi - lo) / 4
	for gen := 0; gen < optimizeGenerations && step > 0.5; gen++ {
		for _, cand := range []float64{best - step, best + step} {
			cand = math.Min(hi, math.Max(lo, cand))
			if c := cost(cand); c < bestCost {
				best, bestCost = cand, c
			}
		}
		step /= 2
	}

	optimal := math.Round(best)
	return domain.StockOptimization{
		ItemID:           p.ItemID,
		Name:             p.Name,
		CurrentStock:     p.CurrentStock,
		OptimalStock:     int(optimal),
		ReorderPoint:     domain.Round(reorder, 2),
		SafetyStock:      domain.Round(safety, 2),
		PotentialSavings: domain.Round(math.Max(0, (float64(p.CurrentStock)-optimal)*unitCost), 2),
	}, nil
}

func (l *LocalStrategy) suppliers(req domain.AnalysisRequest) *domain.AnalysisResult {
	scores := scoreSuppliers(req.Suppliers)
	recs := make([]string, 0, 3)
	for i, s := range scores {
		if i == 3 {
			break
		}
		recs = append(recs, fmt.Sprintf("Rank %d: %s (%s, score %.2f)", i+1, s.Name, s.Recommendation, s.Score))
	}

	risk := domain.RiskLow
	if scores[0].Score < 0.5 {
		risk = domain.RiskHigh
	} else if scores[0].Score < 0.7 {
		risk = domain.RiskMedium
	}

	return &domain.AnalysisResult{
		Analysis:        fmt.Sprintf("Best supplier is %s with score %.2f", scores[0].Name, scores[0].Score),
		RiskLevel:       risk,
		Confidence:      confidenceForPoints(len(scores)),
		SupplierScores:  scores,
		Recommendations: recs,
	}
}

func (l *LocalStrategy) safetyStock(req domain.AnalysisRequest) *domain.AnalysisResult {
	demand := quantities(req.Sales)
	lead := averageLeadTime(req.Stock)
	ss := safetyStock(demand, lead)
	avg := mean(demand)

	risk := domain.RiskLow
	if avg > 0 && stdDev(demand)/avg > 0.5 {
		risk = domain.RiskHigh
	}

	return &domain.AnalysisResult{
		Analysis:        fmt.Sprintf("Hold %.0f units of safety stock for a %.0f day lead time", math.Ceil(ss), lead),
		RiskLevel:       risk,
		Confidence:      confidenceForPoints(len(demand)),
		Recommendations: []string{fmt.Sprintf("Set safety stock to %.0f units", math.Ceil(ss))},
		Metrics: map[string]float64{
			"safety_stock":      domain.Round(ss, 2),
			"average_demand":    domain.Round(avg, 2),
			"demand_std_dev":    domain.Round(stdDev(demand), 2),
			"average_lead_time": domain.Round(lead, 2),
			"service_level":     0.95,
		},
	}
}

// anomalies extends the basic rules with a z-score test on quantity.
func (l *LocalStrategy) anomalies(req domain.AnalysisRequest) *domain.AnalysisResult {
	found := basicAnomalies(req.Items)

	qty := make([]float64, len(req.Items))
	for i, it := range req.Items {
		qty[i] = float64(it.Quantity)
	}
	m, sd := mean(qty), stdDev(qty)
	if sd > 0 && len(qty) >= 5 {
		for i, it := range req.Items {
			if z := (qty[i] - m) / sd; math.Abs(z) > 3 {
				found = append(found, domain.Anomaly{
					ItemID:   it.ID,
					ItemName: it.Name,
					Kind:     "outlier_quantity",
					Detail:   fmt.Sprintf("Quantity %d is %.1f standard deviations from the mean", it.Quantity, z),
				})
			}
		}
	}

	risk := domain.RiskLow
	if len(found) > 0 {
		risk = domain.RiskMedium
	}
	if len(found) > len(req.Items)/10 {
		risk = domain.RiskHigh
	}

	recs := make([]string, 0, len(found))
	for _, a := range found {
		recs = append(recs, "Verify stock record: "+a.Detail)
	}
	return &domain.AnalysisResult{
		Analysis:        fmt.Sprintf("%d anomalies across %d items", len(found), len(req.Items)),
		RiskLevel:       risk,
		Confidence:      confidenceForPoints(len(req.Items)),
		Anomalies:       found,
		Recommendations: recs,
	}
}

// predict projects demand with the sales trend over the horizon.
func (l *LocalStrategy) predict(req domain.AnalysisRequest) *domain.AnalysisResult {
	days := periodOrDefault(req.PeriodDays)
	daily := dailyUsage(req.Items, req.Sales)
	if len(req.Sales) >= 2 {
		slope, _ := leastSquaresSlope(quantities(req.Sales))
		daily = math.Max(0, daily+slope*float64(days)/2)
	}

	f := forecast(req.Items, daily, days, l.now())
	critical := criticalItems(req.Items)
	risk := riskFromCritical(len(critical), len(req.Items))
	if f.DaysOfCover > 0 && f.DaysOfCover < float64(days) {
		risk = domain.RiskHigh
	}

	recs := restockRecommendations(req.Items)
	if f.ReorderQuantity > 0 {
		recs = append(recs, fmt.Sprintf("Order %d units to cover the next %d days", f.ReorderQuantity, days))
	}

	return &domain.AnalysisResult{
		Analysis:        fmt.Sprintf("Projected demand of %.0f units over %d days", f.ProjectedDemand, days),
		RiskLevel:       risk,
		Confidence:      confidenceForPoints(len(req.Sales)),
		Forecast:        f,
		Recommendations: recs,
		Metrics: map[string]float64{
			"critical_items": float64(len(critical)),
			"daily_usage":    domain.Round(daily, 2),
		},
	}
}

func (l *LocalStrategy) risk(req domain.AnalysisRequest) *domain.AnalysisResult {
	critical := criticalItems(req.Items)
	summary := domain.Summarize(req.Items)

	return &domain.AnalysisResult{
		Analysis:        fmt.Sprintf("%d of %d items at or below minimum stock, health %s", len(critical), len(req.Items), summary.HealthStatus),
		RiskLevel:       riskFromCritical(len(critical), len(req.Items)),
		Confidence:      confidenceForPoints(len(req.Items)),
		Recommendations: restockRecommendations(req.Items),
		Anomalies:       basicAnomalies(req.Items),
		Metrics: map[string]float64{
			"critical_items":     float64(len(critical)),
			"out_of_stock_items": float64(summary.OutOfStockCount),
			"health_score":       summary.HealthScore,
		},
	}
}

func (l *LocalStrategy) Generate(_ context.Context, req domain.ReportRequest) (*domain.ReportPayload, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s := req.Summary
	if s.TotalItems == 0 {
		s = domain.Summarize(req.Items)
	}
	critical := criticalItems(req.Items)

	payload := &domain.ReportPayload{
		ReportType:  req.ReportType,
		Title:       reportTitle(req.ReportType),
		GeneratedBy: StrategyLocal,
		Confidence:  confidenceForPoints(len(req.Items)),
		GeneratedAt: l.now().UTC(),
	}

	switch req.ReportType {
	case "weekly_summary", "summary":
		payload.Summary = fmt.Sprintf("Inventory health is %s at %.1f with %d items needing attention.", s.HealthStatus, s.HealthScore, len(critical))
		payload.KeyFindings = []string{
			fmt.Sprintf("Total stock value %.2f across %d items", s.TotalValue, s.TotalItems),
			fmt.Sprintf("%d low stock and %d out of stock", s.LowStockCount, s.OutOfStockCount),
		}
		payload.Recommendations = restockRecommendations(req.Items)
	case "executive":
		payload.Summary = fmt.Sprintf("Stock worth %.2f. %d items put sales at risk.", s.TotalValue, s.OutOfStockCount+s.LowStockCount)
		payload.KeyFindings = []string{fmt.Sprintf("Health score %.1f (%s)", s.HealthScore, s.HealthStatus)}
		payload.Recommendations = topN(restockRecommendations(req.Items), 3)
	case "comprehensive", "detailed":
		payload.Summary = fmt.Sprintf("Detailed review of %d items.", s.TotalItems)
		payload.KeyFindings = []string{
			fmt.Sprintf("Average price %.2f", s.AveragePrice),
			fmt.Sprintf("Health score %.1f (%s)", s.HealthScore, s.HealthStatus),
		}
		payload.Recommendations = restockRecommendations(req.Items)
		payload.Sections = []domain.ReportSection{
			{Title: "Critical items", Content: fmt.Sprintf("%d items at or below minimum stock", len(critical))},
			{Title: "Anomalies", Content: fmt.Sprintf("%d anomalies detected", len(basicAnomalies(req.Items)))},
		}
	default:
		payload.Summary = "fallback report"
		payload.Confidence = localFallbackConf
		payload.IsFallback = true
	}

	return payload.Normalize(), nil
}

func topN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
