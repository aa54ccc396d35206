package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/andresuchdata/stockinsight/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS suppliers (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	lead_time_days    INTEGER NOT NULL DEFAULT 7,
	reliability_score DOUBLE PRECISION NOT NULL DEFAULT 0.5,
	cost_score        DOUBLE PRECISION NOT NULL DEFAULT 0.5,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS inventory_items (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	description     TEXT,
	quantity        INTEGER NOT NULL DEFAULT 0,
	price           DOUBLE PRECISION NOT NULL DEFAULT 0,
	category_id     TEXT,
	supplier_id     TEXT REFERENCES suppliers(id),
	min_stock_level INTEGER NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_inventory_items_quantity ON inventory_items (quantity);
CREATE INDEX IF NOT EXISTS idx_inventory_items_category ON inventory_items (category_id);

CREATE TABLE IF NOT EXISTS inventory_movements (
	id            BIGSERIAL PRIMARY KEY,
	item_id       TEXT NOT NULL REFERENCES inventory_items(id),
	movement_type TEXT NOT NULL CHECK (movement_type IN ('in', 'out', 'adjust')),
	quantity      INTEGER NOT NULL,
	unit_price    DOUBLE PRECISION NOT NULL DEFAULT 0,
	moved_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_inventory_movements_moved_at ON inventory_movements (moved_at);
`

// Movement is one stock change recorded by the seeder.
type Movement struct {
	ItemID    string
	Type      string
	Quantity  int
	UnitPrice float64
	MovedAt   time.Time
}

// Execer is the statement runner shared by *sql.DB, *sql.Tx and *sqlx.DB.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// IngestRepository is the write side used by the seed command. Bound to a
// transaction its writes commit or roll back together.
type IngestRepository struct {
	db Execer
}

func NewIngestRepository(db Execer) *IngestRepository {
	return &IngestRepository{db: db}
}

// Migrate creates the tables read by the inventory repository.
func (r *IngestRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func (r *IngestRepository) UpsertSupplier(ctx context.Context, supplier *domain.SupplierProfile) error {
	query := `
		INSERT INTO suppliers (id, name, lead_time_days, reliability_score, cost_score, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			lead_time_days = EXCLUDED.lead_time_days,
			reliability_score = EXCLUDED.reliability_score,
			cost_score = EXCLUDED.cost_score,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		supplier.ID,
		supplier.Name,
		supplier.LeadTimeDays,
		supplier.ReliabilityScore,
		supplier.CostScore,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert supplier: %w", err)
	}
	return nil
}

func (r *IngestRepository) UpsertItem(ctx context.Context, item *domain.InventoryItem) error {
	query := `
		INSERT INTO inventory_items (id, name, description, quantity, price, category_id, supplier_id, min_stock_level, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			quantity = EXCLUDED.quantity,
			price = EXCLUDED.price,
			category_id = EXCLUDED.category_id,
			supplier_id = EXCLUDED.supplier_id,
			min_stock_level = EXCLUDED.min_stock_level,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		item.ID,
		item.Name,
		nullIfEmpty(item.Description),
		item.Quantity,
		item.Price,
		nullIfEmpty(item.CategoryID),
		nullIfEmpty(item.SupplierID),
		item.MinStockLevel,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert item %s: %w", item.ID, err)
	}
	return nil
}

func (r *IngestRepository) InsertMovement(ctx context.Context, m *Movement) error {
	movedAt := m.MovedAt
	if movedAt.IsZero() {
		movedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO inventory_movements (item_id, movement_type, quantity, unit_price, moved_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.ExecContext(ctx, query, m.ItemID, m.Type, m.Quantity, m.UnitPrice, movedAt); err != nil {
		return fmt.Errorf("failed to insert movement: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
