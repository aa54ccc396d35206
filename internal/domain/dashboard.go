package domain

import "math"

// Health status buckets.
const (
	HealthExcellent = "excellent"
	HealthGood      = "good"
	HealthFair      = "fair"
	HealthPoor      = "poor"
	HealthCritical  = "critical"
)

// InventorySummary holds the deterministic aggregates computed locally for
// every analysis and report, independent of any AI strategy. AveragePrice is
// the total stock value divided by the number of items.
type InventorySummary struct {
	TotalItems      int     `json:"total_items"`
	TotalQuantity   int     `json:"total_quantity"`
	TotalValue      float64 `json:"total_value"`
	AveragePrice    float64 `json:"average_price"`
	LowStockCount   int     `json:"low_stock_count"`
	OutOfStockCount int     `json:"out_of_stock_count"`
	HealthScore     float64 `json:"health_score"`
	HealthStatus    string  `json:"health_status"`
}

// Summarize computes the summary over items.
func Summarize(items []InventoryItem) InventorySummary {
	s := InventorySummary{TotalItems: len(items)}
	for _, item := range items {
		s.TotalQuantity += item.Quantity
		s.TotalValue += item.Value()
		switch {
		case item.IsOutOfStock():
			s.OutOfStockCount++
		case item.IsLowStock():
			s.LowStockCount++
		}
	}
	if len(items) > 0 {
		s.AveragePrice = Round(s.TotalValue/float64(len(items)), 2)
	}
	s.TotalValue = Round(s.TotalValue, 2)
	s.HealthScore = HealthScore(s.LowStockCount, s.OutOfStockCount, s.TotalItems)
	s.HealthStatus = HealthStatus(s.HealthScore)
	return s
}

// HealthScore penalizes low stock by 10 and out-of-stock by 30 relative to the
// worst case of every item out of stock. Result is in [0,100], one decimal.
func HealthScore(lowStock, outOfStock, totalItems int) float64 {
	if totalItems <= 0 {
		return 0
	}
	penalty := float64(lowStock*10+outOfStock*30) / float64(totalItems*30) * 100
	return Round(math.Max(0, 100-penalty), 1)
}

func HealthStatus(score float64) string {
	switch {
	case score >= 80:
		return HealthExcellent
	case score >= 60:
		return HealthGood
	case score >= 40:
		return HealthFair
	case score >= 20:
		return HealthPoor
	default:
		return HealthCritical
	}
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
