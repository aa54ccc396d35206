package reporting

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/andresuchdata/stockinsight/internal/domain"
	"github.com/andresuchdata/stockinsight/internal/repository"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
)

const (
	DefaultLowStockThreshold = 10
	DefaultMaxRecords        = 1000
	predictiveItemLimit      = 500
	recentlyUpdatedLimit     = 50
	defaultForecastDays      = 30
)

// Filter keys understood by the inventory builder.
const (
	FilterCategory   = "category"
	FilterSupplier   = "supplier"
	FilterStockLevel = "stockLevel"
	FilterSearch     = "search"
)

var (
	categoryAliases = []string{"category", "categoryId", "category_id"}
	supplierAliases = []string{"supplier", "supplierId", "supplier_id"}
)

type InventoryBuilder struct {
	repo              repository.InventoryRepository
	ai                AI
	lowStockThreshold int
	maxRecords        int
	requireDateRange  bool
	now               func() time.Time
}

type InventoryOption func(*InventoryBuilder)

// WithLowStockThreshold sets the quantity boundary of the stockLevel filter
// and the real-time low stock query.
func WithLowStockThreshold(n int) InventoryOption {
	return func(b *InventoryBuilder) {
		if n > 0 {
			b.lowStockThreshold = n
		}
	}
}

func WithDefaultMaxRecords(n int) InventoryOption {
	return func(b *InventoryBuilder) {
		if n > 0 {
			b.maxRecords = n
		}
	}
}

// WithDateRangeRequired makes validation reject inventory definitions
// without a date range.
func WithDateRangeRequired() InventoryOption {
	return func(b *InventoryBuilder) { b.requireDateRange = true }
}

func NewInventoryBuilder(repo repository.InventoryRepository, aiSvc AI, opts ...InventoryOption) *InventoryBuilder {
	b := &InventoryBuilder{
		repo:              repo,
		ai:                aiSvc,
		lowStockThreshold: DefaultLowStockThreshold,
		maxRecords:        DefaultMaxRecords,
		now:               func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *InventoryBuilder) Type() domain.ReportType { return domain.ReportInventory }

func (b *InventoryBuilder) RequiresDateRange() bool { return b.requireDateRange }

func (b *InventoryBuilder) Build(ctx context.Context, def *domain.ReportDefinition) (*domain.ReportResult, error) {
	filter := b.translateFilters(def)
	items, err := b.repo.List(ctx, filter, domain.ListOptions{
		Sort:  def.Sorting,
		Limit: def.MaxRecords(b.maxRecords),
	})
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}

	summary := domain.Summarize(items)
	insights, aiEnhanced := b.insights(ctx, items, summary, def)

	summaryMap := summaryToMap(summary)
	summaryMap["aiEnhanced"] = aiEnhanced

	columns := def.EffectiveColumns()
	details := make([]domain.Record, 0, len(items))
	for _, item := range items {
		details = append(details, itemRecord(item, columns))
	}

	log.Info().
		Str("report_id", def.ID).
		Int("record_count", len(items)).
		Bool("ai_enhanced", aiEnhanced).
		Msg("reporting: inventory report built")

	return domain.NewSuccessResult(def, summaryMap, details, insights, recommendations(summary)), nil
}

// translateFilters maps generic definition filters onto InventoryFilter.
// Unknown stockLevel values are ignored.
func (b *InventoryBuilder) translateFilters(def *domain.ReportDefinition) domain.InventoryFilter {
	var f domain.InventoryFilter

	if def.DateRange != nil {
		from, to := def.DateRange.Start, def.DateRange.End
		f.UpdatedFrom = &from
		f.UpdatedTo = &to
	}

	if raw, ok := firstPresent(def.Filters, categoryAliases...); ok {
		for _, c := range cast.ToStringSlice(raw) {
			if c = strings.TrimSpace(c); c != "" {
				f.CategoryIDs = append(f.CategoryIDs, c)
			}
		}
	}
	if raw, ok := firstPresent(def.Filters, supplierAliases...); ok {
		f.SupplierID = strings.TrimSpace(cast.ToString(raw))
	}

	switch strings.ToLower(cast.ToString(def.Filters[FilterStockLevel])) {
	case "":
	case "low":
		f.QuantityBelow = domain.IntPtr(b.lowStockThreshold)
	case "out":
		f.QuantityEquals = domain.IntPtr(0)
	case "healthy":
		f.QuantityMin = domain.IntPtr(b.lowStockThreshold)
	default:
		log.Warn().Interface("stock_level", def.Filters[FilterStockLevel]).Msg("reporting: unknown stock level filter ignored")
	}

	f.Search = strings.TrimSpace(cast.ToString(def.Filters[FilterSearch]))
	return f
}

func firstPresent(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// insights asks the AI for key findings and falls back to rule insights when
// it is unavailable, fails or has nothing to say.
func (b *InventoryBuilder) insights(ctx context.Context, items []domain.InventoryItem, summary domain.InventorySummary, def *domain.ReportDefinition) ([]domain.Insight, bool) {
	if len(items) == 0 || b.ai == nil || def.TestMode() || !b.ai.IsAvailable(ctx) {
		return ruleInsights(summary), false
	}

	days := defaultForecastDays
	if def.DateRange != nil {
		days = def.DateRange.Days()
	}
	payload, err := b.ai.Generate(ctx, domain.ReportRequest{
		ReportType: "summary",
		Items:      items,
		Summary:    summary,
		PeriodDays: days,
	})
	if err != nil {
		log.Warn().Err(err).Msg("reporting: ai insights failed, using rule insights")
		return ruleInsights(summary), false
	}
	if len(payload.KeyFindings) == 0 {
		return ruleInsights(summary), false
	}

	out := make([]domain.Insight, 0, len(payload.KeyFindings))
	for _, finding := range payload.KeyFindings {
		out = append(out, domain.Insight{Type: "ai", Message: finding, Priority: "medium"})
	}
	return out, true
}

func ruleInsights(summary domain.InventorySummary) []domain.Insight {
	if summary.TotalItems == 0 {
		return []domain.Insight{{Type: "info", Message: "No inventory data available for analysis", Priority: "low"}}
	}

	var out []domain.Insight
	if summary.OutOfStockCount > 0 {
		out = append(out, domain.Insight{
			Type:     "critical",
			Message:  fmt.Sprintf("%d items are out of stock", summary.OutOfStockCount),
			Priority: "high",
		})
	}
	if summary.LowStockCount > 0 {
		out = append(out, domain.Insight{
			Type:     "warning",
			Message:  fmt.Sprintf("%d items are low on stock", summary.LowStockCount),
			Priority: "medium",
		})
	}
	if summary.HealthScore >= 80 {
		out = append(out, domain.Insight{Type: "positive", Message: "Inventory health is excellent", Priority: "low"})
	}
	return out
}

func recommendations(summary domain.InventorySummary) []domain.Recommendation {
	var out []domain.Recommendation
	if summary.OutOfStockCount > 0 {
		out = append(out, domain.Recommendation{
			Type:     "restock",
			Priority: "high",
			Action:   "Immediate restock required for out-of-stock items",
			Impact:   "Prevent lost sales",
		})
	}
	if summary.LowStockCount > 0 {
		out = append(out, domain.Recommendation{
			Type:     "monitor",
			Priority: "medium",
			Action:   "Monitor low-stock items and plan restocking",
			Impact:   "Maintain optimal inventory levels",
		})
	}
	if summary.TotalItems > 0 && summary.HealthScore < 60 {
		out = append(out, domain.Recommendation{
			Type:     "optimize",
			Priority: "medium",
			Action:   "Review inventory management practices",
			Impact:   "Improve overall inventory health",
		})
	}
	return out
}

func summaryToMap(s domain.InventorySummary) map[string]any {
	return map[string]any{
		"recordCount":     s.TotalItems,
		"totalQuantity":   s.TotalQuantity,
		"totalValue":      s.TotalValue,
		"averagePrice":    s.AveragePrice,
		"lowStockCount":   s.LowStockCount,
		"outOfStockCount": s.OutOfStockCount,
		"healthScore":     s.HealthScore,
		"healthStatus":    s.HealthStatus,
	}
}

func stockStatus(item domain.InventoryItem) string {
	switch {
	case item.IsOutOfStock():
		return "out_of_stock"
	case item.IsLowStock():
		return "low_stock"
	default:
		return "in_stock"
	}
}

// itemRecord projects item onto the requested columns. Unknown columns are
// present with a nil value.
func itemRecord(item domain.InventoryItem, columns []string) domain.Record {
	rec := make(domain.Record, len(columns))
	for _, col := range columns {
		switch col {
		case "id":
			rec[col] = item.ID
		case "name":
			rec[col] = item.Name
		case "description":
			rec[col] = item.Description
		case "quantity":
			rec[col] = item.Quantity
		case "price":
			rec[col] = item.Price
		case "category", "categoryId":
			rec[col] = item.CategoryID
		case "supplier", "supplierId":
			rec[col] = item.SupplierID
		case "minStockLevel":
			rec[col] = item.MinStockLevel
		case "createdAt":
			rec[col] = item.CreatedAt
		case "updatedAt":
			rec[col] = item.UpdatedAt
		case "value":
			rec[col] = domain.Round(item.Value(), 2)
		case "status":
			rec[col] = stockStatus(item)
		default:
			rec[col] = nil
		}
	}
	return rec
}

// BuildRealTime reports current alerts: items under the low stock threshold,
// depleted items and the most recently updated items.
func (b *InventoryBuilder) BuildRealTime(ctx context.Context, def *domain.ReportDefinition) (*domain.ReportResult, error) {
	low, err := b.repo.LowStock(ctx, b.lowStockThreshold)
	if err != nil {
		return nil, fmt.Errorf("low stock items: %w", err)
	}
	out, err := b.repo.OutOfStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("out of stock items: %w", err)
	}
	recent, err := b.repo.List(ctx, b.translateFilters(def), domain.ListOptions{
		Sort:  []domain.SortField{{Field: "updatedAt", Desc: true}},
		Limit: recentlyUpdatedLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("recently updated items: %w", err)
	}

	summary := map[string]any{
		"recordCount":          len(low) + len(out),
		"lowStockCount":        len(low),
		"outOfStockCount":      len(out),
		"recentlyUpdatedCount": len(recent),
		"lastUpdated":          b.now(),
		"alertLevel":           alertLevel(len(low), len(out)),
	}

	columns := def.EffectiveColumns()
	details := make([]domain.Record, 0, len(low)+len(out)+len(recent))
	for _, group := range []struct {
		section string
		items   []domain.InventoryItem
	}{
		{"lowStockItems", low},
		{"outOfStockItems", out},
		{"recentlyUpdated", recent},
	} {
		for _, item := range group.items {
			rec := itemRecord(item, columns)
			rec["section"] = group.section
			details = append(details, rec)
		}
	}

	return domain.NewSuccessResult(def, summary, details, realTimeInsights(len(low), len(out)), realTimeRecommendations(len(low), len(out))), nil
}

func alertLevel(low, out int) string {
	switch {
	case low+out == 0:
		return "normal"
	case out > 0:
		return "high"
	case low > 5:
		return "medium"
	default:
		return "low"
	}
}

func realTimeInsights(low, out int) []domain.Insight {
	var insights []domain.Insight
	if out > 0 {
		insights = append(insights, domain.Insight{Type: "critical", Message: "Immediate attention required for out-of-stock items", Priority: "high"})
	}
	if low > 0 {
		insights = append(insights, domain.Insight{Type: "warning", Message: "Low stock items need monitoring", Priority: "medium"})
	}
	if low == 0 && out == 0 {
		insights = append(insights, domain.Insight{Type: "positive", Message: "All inventory levels are healthy", Priority: "low"})
	}
	return insights
}

func realTimeRecommendations(low, out int) []domain.Recommendation {
	var recs []domain.Recommendation
	if out > 0 {
		recs = append(recs, domain.Recommendation{
			Type:     "restock",
			Priority: "high",
			Action:   "Restock out-of-stock items immediately",
			Timeline: "within 24 hours",
		})
	}
	if low > 0 {
		recs = append(recs, domain.Recommendation{
			Type:     "review",
			Priority: "medium",
			Action:   "Review low-stock items and plan restocking",
			Timeline: "within 7 days",
		})
	}
	return recs
}

// BuildPredictive forecasts up to 500 items over forecastDays with a stock
// prediction from the AI dispatcher plus a per-item projection.
func (b *InventoryBuilder) BuildPredictive(ctx context.Context, def *domain.ReportDefinition, forecastDays int) (*domain.ReportResult, error) {
	if forecastDays <= 0 {
		forecastDays = defaultForecastDays
	}

	items, err := b.repo.List(ctx, b.translateFilters(def), domain.ListOptions{Limit: predictiveItemLimit})
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}

	var prediction *domain.AnalysisResult
	if b.ai != nil && len(items) > 0 {
		prediction, err = b.ai.AnalyzeOrFallback(ctx, domain.AnalysisRequest{
			AnalysisType: domain.AnalysisStockPrediction,
			Items:        items,
			PeriodDays:   forecastDays,
		})
		if err != nil {
			log.Warn().Err(err).Msg("reporting: stock prediction failed")
		}
	}

	details := make([]domain.Record, 0, len(items))
	reorderCount := 0
	for _, item := range items {
		rec := projectItem(item, forecastDays)
		if cast.ToInt(rec["reorderQuantity"]) > 0 {
			reorderCount++
		}
		details = append(details, rec)
	}

	summary := map[string]any{
		"recordCount":          len(details),
		"forecastPeriod":       forecastDays,
		"predictionsGenerated": len(details),
		"itemsNeedingReorder":  reorderCount,
		"confidenceLevel":      "low",
		"riskLevel":            string(domain.RiskMedium),
		"isFallback":           prediction == nil || prediction.IsFallback,
	}

	var (
		insights []domain.Insight
		recs     []domain.Recommendation
	)
	if prediction != nil {
		summary["confidenceLevel"] = confidenceLevel(prediction.Confidence)
		summary["confidence"] = prediction.Confidence
		summary["riskLevel"] = string(prediction.RiskLevel)
		if prediction.Forecast != nil {
			summary["projectedDemand"] = prediction.Forecast.ProjectedDemand
			summary["daysOfCover"] = prediction.Forecast.DaysOfCover
		}
		insights = append(insights, domain.Insight{Type: "prediction", Message: prediction.Analysis, Priority: riskPriority(prediction.RiskLevel)})
		for _, r := range prediction.Recommendations {
			recs = append(recs, domain.Recommendation{Type: "reorder", Priority: "medium", Action: r, Timeline: fmt.Sprintf("within %d days", forecastDays)})
		}
	}
	if reorderCount > 0 {
		insights = append(insights, domain.Insight{
			Type:     "warning",
			Message:  fmt.Sprintf("%d items will not cover the next %d days", reorderCount, forecastDays),
			Priority: "high",
		})
	}

	return domain.NewSuccessResult(def, summary, details, insights, recs), nil
}

// projectItem estimates per-item demand assuming weekly replenishment for
// items at or below their minimum and monthly turnover otherwise.
func projectItem(item domain.InventoryItem, days int) domain.Record {
	minStock := item.EffectiveMinStock()
	daily := math.Max(0.1, float64(item.Quantity)/30)
	if item.Quantity <= minStock {
		daily = math.Max(1, float64(minStock)/7)
	}

	demand := daily * float64(days)
	reorder := 0
	if need := demand + float64(minStock) - float64(item.Quantity); need > 0 {
		reorder = int(math.Ceil(need))
	}

	return domain.Record{
		"id":              item.ID,
		"name":            item.Name,
		"quantity":        item.Quantity,
		"minStockLevel":   minStock,
		"dailyUsage":      domain.Round(daily, 2),
		"projectedDemand": domain.Round(demand, 2),
		"daysOfCover":     domain.Round(float64(item.Quantity)/daily, 1),
		"reorderQuantity": reorder,
		"urgency":         domain.UrgencyFor(item),
	}
}

func confidenceLevel(c float64) string {
	switch {
	case c >= 0.8:
		return "high"
	case c >= 0.6:
		return "medium"
	default:
		return "low"
	}
}

func riskPriority(r domain.RiskLevel) string {
	switch r {
	case domain.RiskHigh:
		return "high"
	case domain.RiskLow:
		return "low"
	default:
		return "medium"
	}
}

// BuildComparative builds the current report and appends insights comparing
// it with previous.
func (b *InventoryBuilder) BuildComparative(ctx context.Context, def *domain.ReportDefinition, previous *domain.ReportResult) (*domain.ReportResult, error) {
	res, err := b.Build(ctx, def)
	if err != nil {
		return nil, err
	}
	res.AppendInsights(comparativeInsights(res, previous)...)
	return res, nil
}
