// internal/domain/models.go
package domain

import "time"

// DefaultMinStockLevel applies to items without a configured minimum.
const DefaultMinStockLevel = 5

// InventoryItem is a single stock-keeping record.
type InventoryItem struct {
	ID            string    `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Description   string    `json:"description" db:"description"`
	Quantity      int       `json:"quantity" db:"quantity"`
	Price         float64   `json:"price" db:"price"`
	CategoryID    string    `json:"category_id" db:"category_id"`
	SupplierID    string    `json:"supplier_id" db:"supplier_id"`
	MinStockLevel int       `json:"min_stock_level" db:"min_stock_level"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// EffectiveMinStock returns the configured minimum or DefaultMinStockLevel.
func (i InventoryItem) EffectiveMinStock() int {
	if i.MinStockLevel > 0 {
		return i.MinStockLevel
	}
	return DefaultMinStockLevel
}

func (i InventoryItem) IsOutOfStock() bool {
	return i.Quantity == 0
}

// IsLowStock reports stock below the minimum but not yet depleted.
func (i InventoryItem) IsLowStock() bool {
	return i.Quantity > 0 && i.Quantity < i.EffectiveMinStock()
}

func (i InventoryItem) Value() float64 {
	return float64(i.Quantity) * i.Price
}

// InventoryFilter is the source-neutral set of predicates understood by the
// inventory data source. Nil pointers mean "no constraint".
type InventoryFilter struct {
	CategoryIDs    []string   `json:"category_ids,omitempty"`
	SupplierID     string     `json:"supplier_id,omitempty"`
	QuantityMin    *int       `json:"quantity_min,omitempty"`
	QuantityBelow  *int       `json:"quantity_below,omitempty"`
	QuantityEquals *int       `json:"quantity_equals,omitempty"`
	UpdatedFrom    *time.Time `json:"updated_from,omitempty"`
	UpdatedTo      *time.Time `json:"updated_to,omitempty"`
	Search         string     `json:"search,omitempty"`
}

// SortField orders a listing by a single column.
type SortField struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc"`
}

type ListOptions struct {
	Sort  []SortField
	Limit int
}

// SalesPoint is one day of aggregated outbound stock movement.
type SalesPoint struct {
	Date     time.Time `json:"date" db:"day"`
	Quantity float64   `json:"quantity" db:"quantity"`
	Revenue  float64   `json:"revenue" db:"revenue"`
}

// StockProfile is the per-item input to stock level optimization.
type StockProfile struct {
	ItemID       string  `json:"item_id"`
	Name         string  `json:"name"`
	CurrentStock int     `json:"current_stock"`
	MinStock     int     `json:"min_stock"`
	MaxStock     int     `json:"max_stock"`
	LeadTimeDays int     `json:"lead_time_days"`
	UnitCost     float64 `json:"unit_cost"`
	DailyUsage   float64 `json:"daily_usage"`
	Category     string  `json:"category"`
}

// SupplierProfile aggregates the items sourced from one supplier.
type SupplierProfile struct {
	ID               string  `json:"id" db:"id"`
	Name             string  `json:"name" db:"name"`
	LeadTimeDays     int     `json:"lead_time_days" db:"lead_time_days"`
	ReliabilityScore float64 `json:"reliability_score" db:"reliability_score"`
	CostScore        float64 `json:"cost_score" db:"cost_score"`
	ItemCount        int     `json:"item_count" db:"item_count"`
}

func IntPtr(v int) *int { return &v }
