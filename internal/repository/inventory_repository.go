package repository

import (
	"context"

	"github.com/andresuchdata/stockinsight/internal/domain"
)

// InventoryRepository is the read side of the inventory data source. Every
// call returns the complete result set for its arguments.
type InventoryRepository interface {
	List(ctx context.Context, filter domain.InventoryFilter, opts domain.ListOptions) ([]domain.InventoryItem, error)
	// LowStock returns in-stock items at or below threshold. A threshold of
	// zero compares each item against its own minimum stock level.
	LowStock(ctx context.Context, threshold int) ([]domain.InventoryItem, error)
	OutOfStock(ctx context.Context) ([]domain.InventoryItem, error)
	DailySales(ctx context.Context, days int) ([]domain.SalesPoint, error)
	Suppliers(ctx context.Context) ([]domain.SupplierProfile, error)
}
