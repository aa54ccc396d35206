package postgres

import (
	"context"
	"fmt"

	"github.com/andresuchdata/stockinsight/internal/domain"
	"github.com/andresuchdata/stockinsight/internal/repository"
)

const itemColumns = `
	i.id,
	i.name,
	COALESCE(i.description, '') AS description,
	i.quantity,
	i.price,
	COALESCE(i.category_id, '') AS category_id,
	COALESCE(i.supplier_id, '') AS supplier_id,
	i.min_stock_level,
	i.created_at,
	i.updated_at`

type inventoryRepository struct {
	db *DB
}

func NewInventoryRepository(db *DB) repository.InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) List(ctx context.Context, filter domain.InventoryFilter, opts domain.ListOptions) ([]domain.InventoryItem, error) {
	where, args, idx := buildInventoryFilterClause(filter, "i", 1)

	query := "SELECT" + itemColumns + "\n\tFROM inventory_items i\n\tWHERE 1=1" + where + buildOrderClause(opts.Sort, "i")
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", idx)
		args = append(args, opts.Limit)
	}

	items := []domain.InventoryItem{}
	if err := r.db.selectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("error listing inventory items: %w", err)
	}
	return items, nil
}

func (r *inventoryRepository) LowStock(ctx context.Context, threshold int) ([]domain.InventoryItem, error) {
	var (
		query string
		args  []any
	)
	if threshold > 0 {
		query = "SELECT" + itemColumns + `
	FROM inventory_items i
	WHERE i.quantity > 0 AND i.quantity <= $1
	ORDER BY i.quantity ASC, i.name ASC`
		args = append(args, threshold)
	} else {
		query = "SELECT" + itemColumns + fmt.Sprintf(`
	FROM inventory_items i
	WHERE i.quantity > 0 AND i.quantity < COALESCE(NULLIF(i.min_stock_level, 0), %d)
	ORDER BY i.quantity ASC, i.name ASC`, domain.DefaultMinStockLevel)
	}

	items := []domain.InventoryItem{}
	if err := r.db.selectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("error getting low stock items: %w", err)
	}
	return items, nil
}

func (r *inventoryRepository) OutOfStock(ctx context.Context) ([]domain.InventoryItem, error) {
	query := "SELECT" + itemColumns + `
	FROM inventory_items i
	WHERE i.quantity = 0
	ORDER BY i.updated_at DESC`

	items := []domain.InventoryItem{}
	if err := r.db.selectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("error getting out of stock items: %w", err)
	}
	return items, nil
}

// DailySales aggregates outbound movements per day, oldest first.
func (r *inventoryRepository) DailySales(ctx context.Context, days int) ([]domain.SalesPoint, error) {
	if days <= 0 {
		days = 30
	}

	query := `
	SELECT
		DATE(m.moved_at) AS day,
		COALESCE(SUM(m.quantity), 0)::float8 AS quantity,
		COALESCE(SUM(m.quantity * m.unit_price), 0)::float8 AS revenue
	FROM inventory_movements m
	WHERE m.movement_type = 'out'
	  AND m.moved_at >= NOW() - ($1 * INTERVAL '1 day')
	GROUP BY DATE(m.moved_at)
	ORDER BY day ASC`

	points := []domain.SalesPoint{}
	if err := r.db.selectContext(ctx, &points, query, days); err != nil {
		return nil, fmt.Errorf("error getting daily sales: %w", err)
	}
	return points, nil
}

func (r *inventoryRepository) Suppliers(ctx context.Context) ([]domain.SupplierProfile, error) {
	query := `
	SELECT
		s.id,
		s.name,
		s.lead_time_days,
		s.reliability_score,
		s.cost_score,
		COUNT(i.id) AS item_count
	FROM suppliers s
	LEFT JOIN inventory_items i ON i.supplier_id = s.id
	GROUP BY s.id, s.name, s.lead_time_days, s.reliability_score, s.cost_score
	ORDER BY s.name ASC`

	suppliers := []domain.SupplierProfile{}
	if err := r.db.selectContext(ctx, &suppliers, query); err != nil {
		return nil, fmt.Errorf("error getting suppliers: %w", err)
	}
	return suppliers, nil
}
