package service

import (
	"math"
	"runtime"
	"strings"
	"time"

	"github.com/andresuchdata/stockinsight/internal/domain"
)

const (
	defaultLeadTimeDays = 7
	unitCostRatio       = 0.6
	maxStockMultiplier  = 5
)

func chunk[T any](s []T, size int) [][]T {
	var out [][]T
	for size < len(s) {
		s, out = s[size:], append(out, s[:size])
	}
	if len(s) > 0 {
		out = append(out, s)
	}
	return out
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		s = s[:n]
	}
	return append([]string{}, s...)
}

// stratifiedSample keeps up to size items while preserving the category mix.
// Each category contributes at most ceil(size/categories) items, in the order
// categories first appear.
func stratifiedSample(items []domain.InventoryItem, size int) []domain.InventoryItem {
	if len(items) <= size {
		return items
	}

	var order []string
	byCategory := map[string][]domain.InventoryItem{}
	for _, item := range items {
		cat := item.CategoryID
		if cat == "" {
			cat = "unknown"
		}
		if _, ok := byCategory[cat]; !ok {
			order = append(order, cat)
		}
		byCategory[cat] = append(byCategory[cat], item)
	}

	perCategory := int(math.Ceil(float64(size) / float64(len(order))))
	sampled := make([]domain.InventoryItem, 0, size)
	for _, cat := range order {
		group := byCategory[cat]
		if len(group) > perCategory {
			group = group[:perCategory]
		}
		sampled = append(sampled, group...)
	}
	if len(sampled) > size {
		sampled = sampled[:size]
	}
	return sampled
}

// overallRisk grades a set of recommendations by the severity words they
// mention.
func overallRisk(recommendations []string) domain.RiskLevel {
	var critical, high, medium int
	for _, rec := range recommendations {
		r := strings.ToLower(rec)
		switch {
		case strings.Contains(r, "critical"):
			critical++
		case strings.Contains(r, "high"):
			high++
		case strings.Contains(r, "medium"):
			medium++
		}
	}

	switch {
	case critical > 0 || high > 2:
		return domain.RiskHigh
	case medium > 5:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// estimateDailyUsage assumes weekly replenishment for items at or below their
// minimum and monthly turnover otherwise.
func estimateDailyUsage(item domain.InventoryItem) float64 {
	minStock := item.MinStockLevel
	if minStock <= 0 {
		minStock = 1
	}
	if item.Quantity <= minStock {
		return math.Max(1, float64(minStock)/7)
	}
	return math.Max(0.1, float64(item.Quantity)/30)
}

func stockProfiles(items []domain.InventoryItem) []domain.StockProfile {
	profiles := make([]domain.StockProfile, 0, len(items))
	for _, item := range items {
		category := item.CategoryID
		if category == "" {
			category = "general"
		}
		profiles = append(profiles, domain.StockProfile{
			ItemID:       item.ID,
			Name:         item.Name,
			CurrentStock: item.Quantity,
			MinStock:     item.MinStockLevel,
			MaxStock:     item.MinStockLevel * maxStockMultiplier,
			LeadTimeDays: defaultLeadTimeDays,
			UnitCost:     item.Price * unitCostRatio,
			DailyUsage:   estimateDailyUsage(item),
			Category:     category,
		})
	}
	return profiles
}

// suppliersFromItems groups items by supplier when no supplier records exist.
func suppliersFromItems(items []domain.InventoryItem) []domain.SupplierProfile {
	var order []string
	counts := map[string]int{}
	for _, item := range items {
		id := item.SupplierID
		if id == "" {
			id = "default"
		}
		if _, ok := counts[id]; !ok {
			order = append(order, id)
		}
		counts[id]++
	}

	out := make([]domain.SupplierProfile, 0, len(order))
	for _, id := range order {
		out = append(out, domain.SupplierProfile{
			ID:               id,
			Name:             "Supplier " + id,
			LeadTimeDays:     defaultLeadTimeDays,
			ReliabilityScore: 0.8,
			CostScore:        0.7,
			ItemCount:        counts[id],
		})
	}
	return out
}

func savingsPotential(items []domain.InventoryItem, optimizations []domain.StockOptimization) SavingsAnalysis {
	optimal := make(map[string]int, len(optimizations))
	for _, o := range optimizations {
		optimal[o.ItemID] = o.OptimalStock
	}

	sa := SavingsAnalysis{ItemSavings: map[string]float64{}}
	var priceSum float64
	for _, item := range items {
		priceSum += item.Price
		target, ok := optimal[item.ID]
		if !ok {
			continue
		}
		if savings := float64(item.Quantity-target) * item.Price; savings > 0 {
			sa.TotalPotentialSavings += savings
			sa.ItemSavings[item.Name] += domain.Round(savings, 2)
		}
	}

	sa.TotalPotentialSavings = domain.Round(sa.TotalPotentialSavings, 2)
	if sa.TotalPotentialSavings > 0 && priceSum > 0 {
		sa.SavingsPercentage = domain.Round(sa.TotalPotentialSavings/priceSum*100, 2)
	}
	return sa
}

func implementationPlan() ImplementationPlan {
	return ImplementationPlan{
		Phase1:          "High-priority optimizations (first 30 days)",
		Phase2:          "Medium-priority optimizations (next 30 days)",
		Phase3:          "Long-term strategy adjustments",
		KeyMetrics:      []string{"inventory_turnover", "stockout_rate", "carrying_costs"},
		SuccessCriteria: "20% reduction in carrying costs within 90 days",
	}
}

func performanceSince(start time.Time) PerformanceMetrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return PerformanceMetrics{
		ExecutionTimeSeconds: domain.Round(time.Since(start).Seconds(), 3),
		HeapAllocMB:          domain.Round(float64(ms.HeapAlloc)/1024/1024, 2),
		Goroutines:           runtime.NumGoroutine(),
		GoVersion:            runtime.Version(),
	}
}
