package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/andresuchdata/stockinsight/internal/repository/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*postgres.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return postgres.Wrap(sqlx.NewDb(raw, "pgx"), 1), mock
}

func TestTransactionalRollsBackPartialFile(t *testing.T) {
	db, mock := newMockDB(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "items.csv"), "id,name,quantity\nsku-1,Bolt,1\nsku-2,Nut,2\n")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO inventory_items").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO inventory_items").WillReturnError(errors.New("foreign key violation"))
	mock.ExpectRollback()

	n, err := seedItems(context.Background(), transactional(db), dir, "")
	assert.ErrorContains(t, err, "foreign key violation")
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionalCommitsFile(t *testing.T) {
	db, mock := newMockDB(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "suppliers.csv"), "id,name\nsup-1,Acme\n")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO suppliers").
		WithArgs("sup-1", "Acme", 7, 0.5, 0.5).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	n, err := seedSuppliers(context.Background(), transactional(db), dir, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
