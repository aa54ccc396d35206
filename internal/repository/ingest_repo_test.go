package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/andresuchdata/stockinsight/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIngest(t *testing.T) (*IngestRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewIngestRepository(db), mock
}

func TestMigrate(t *testing.T) {
	repo, mock := newIngest(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS suppliers").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertItemStoresNullForEmptyOptionalColumns(t *testing.T) {
	repo, mock := newIngest(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO inventory_items")).
		WithArgs("sku-1", "Bolt", sql.NullString{}, 40, 0.25, sql.NullString{String: "hardware", Valid: true}, sql.NullString{}, 10).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.UpsertItem(context.Background(), &domain.InventoryItem{
		ID:            "sku-1",
		Name:          "Bolt",
		Quantity:      40,
		Price:         0.25,
		CategoryID:    "hardware",
		MinStockLevel: 10,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSupplierWrapsError(t *testing.T) {
	repo, mock := newIngest(t)
	mock.ExpectExec("INSERT INTO suppliers").WillReturnError(errors.New("duplicate"))

	err := repo.UpsertSupplier(context.Background(), &domain.SupplierProfile{ID: "s1", Name: "Acme"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upsert supplier")
}

func TestInsertMovement(t *testing.T) {
	repo, mock := newIngest(t)
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO inventory_movements").
		WithArgs("sku-1", "out", 4, 2.5, at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.InsertMovement(context.Background(), &Movement{ItemID: "sku-1", Type: "out", Quantity: 4, UnitPrice: 2.5, MovedAt: at})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
