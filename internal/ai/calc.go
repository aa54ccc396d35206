package ai

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/andresuchdata/stockinsight/internal/domain"
)

const (
	defaultLeadTimeDays = 7
	// z-score for a 95% cycle service level.
	serviceLevelZ = 1.65
)

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdDev is the sample standard deviation.
func stdDev(xs []float64) float64 {
	n := len(xs)
	if n <= 1 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(n-1))
}

// leastSquaresSlope fits y = a + b*x over x = 1..n and returns b and r².
func leastSquaresSlope(ys []float64) (slope, rSquared float64) {
	n := float64(len(ys))
	if len(ys) < 2 {
		return 0, 0
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range ys {
		x := float64(i + 1)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0, 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssTot, ssRes float64
	for i, y := range ys {
		fit := intercept + slope*float64(i+1)
		ssRes += (y - fit) * (y - fit)
		ssTot += (y - meanY) * (y - meanY)
	}
	if ssTot > 0 {
		rSquared = 1 - ssRes/ssTot
	}
	return slope, rSquared
}

func quantities(sales []domain.SalesPoint) []float64 {
	out := make([]float64, len(sales))
	for i, s := range sales {
		out[i] = s.Quantity
	}
	return out
}

// confidenceForPoints grows with the number of observations.
func confidenceForPoints(n int) float64 {
	switch {
	case n < 5:
		return 0.6
	case n < 10:
		return 0.7
	case n < 20:
		return 0.8
	default:
		return 0.9
	}
}

// averageLeadTime reads lead times from the stock profiles when present.
func averageLeadTime(stock []domain.StockProfile) float64 {
	var lt []float64
	for _, p := range stock {
		if p.LeadTimeDays > 0 {
			lt = append(lt, float64(p.LeadTimeDays))
		}
	}
	if len(lt) == 0 {
		return defaultLeadTimeDays
	}
	return mean(lt)
}

func safetyStock(demand []float64, leadTimeDays float64) float64 {
	return math.Max(0, serviceLevelZ*stdDev(demand)*math.Sqrt(leadTimeDays))
}

// criticalItems are at or below their minimum stock level.
func criticalItems(items []domain.InventoryItem) []domain.InventoryItem {
	var out []domain.InventoryItem
	for _, it := range items {
		if it.Quantity <= it.EffectiveMinStock() {
			out = append(out, it)
		}
	}
	return out
}

func restockRecommendations(items []domain.InventoryItem) []string {
	var recs []string
	for _, it := range criticalItems(items) {
		needed := it.EffectiveMinStock()*2 - it.Quantity
		if needed < 10 {
			needed = 10
		}
		recs = append(recs, fmt.Sprintf("Restock %s: %d units needed (current: %d)", it.Name, needed, it.Quantity))
	}
	if len(recs) == 0 {
		recs = append(recs, "Stock levels are adequate for all items")
	}
	return recs
}

func basicAnomalies(items []domain.InventoryItem) []domain.Anomaly {
	var out []domain.Anomaly
	for _, it := range items {
		if it.Quantity < 0 {
			out = append(out, domain.Anomaly{ItemID: it.ID, ItemName: it.Name, Kind: "negative_quantity", Detail: "Negative quantity for " + it.Name})
		}
		if it.Price < 0 {
			out = append(out, domain.Anomaly{ItemID: it.ID, ItemName: it.Name, Kind: "negative_price", Detail: "Negative price for " + it.Name})
		}
		if it.Quantity > 10000 {
			out = append(out, domain.Anomaly{ItemID: it.ID, ItemName: it.Name, Kind: "high_quantity", Detail: "Unusually high quantity for " + it.Name})
		}
	}
	return out
}

func supplierScore(s domain.SupplierProfile) float64 {
	lead := float64(s.LeadTimeDays)
	if s.LeadTimeDays <= 0 {
		lead = 30
	}
	leadScore := math.Max(0, 1-lead/60)
	return 0.5*s.ReliabilityScore + 0.3*leadScore + 0.2*s.CostScore
}

func scoreSuppliers(suppliers []domain.SupplierProfile) []domain.SupplierScore {
	out := make([]domain.SupplierScore, 0, len(suppliers))
	for _, s := range suppliers {
		score := domain.Round(supplierScore(s), 3)
		rec := "not_recommended"
		switch {
		case score >= 0.7:
			rec = "highly_recommended"
		case score >= 0.5:
			rec = "recommended"
		}
		out = append(out, domain.SupplierScore{SupplierID: s.ID, Name: s.Name, Score: score, Recommendation: rec})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// dailyUsage estimates total units consumed per day across the items.
func dailyUsage(items []domain.InventoryItem, sales []domain.SalesPoint) float64 {
	if len(sales) > 0 {
		return mean(quantities(sales))
	}
	var stock float64
	for _, it := range items {
		stock += float64(it.Quantity)
	}
	// Without history assume the current stock lasts a month.
	return stock / 30
}

func forecast(items []domain.InventoryItem, daily float64, days int, now time.Time) *domain.Forecast {
	if days <= 0 {
		days = 30
	}
	var stock float64
	for _, it := range items {
		stock += float64(it.Quantity)
	}

	f := &domain.Forecast{
		Days:            days,
		ProjectedDemand: domain.Round(daily*float64(days), 2),
	}
	if daily > 0 {
		cover := stock / daily
		f.DaysOfCover = domain.Round(cover, 1)
		depletion := now.Add(time.Duration(cover*24) * time.Hour)
		f.DepletionDate = &depletion
	}
	if need := daily*float64(days) - stock; need > 0 {
		f.ReorderQuantity = int(math.Ceil(need))
	}
	return f
}

func riskFromCritical(critical, total int) domain.RiskLevel {
	if total == 0 {
		return domain.RiskMedium
	}
	ratio := float64(critical) / float64(total)
	switch {
	case ratio > 0.3:
		return domain.RiskHigh
	case ratio > 0.1:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}
