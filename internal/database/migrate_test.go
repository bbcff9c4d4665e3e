package database_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/lib/pq"
	"github.com/safar/order-management-api/internal/database"
	"github.com/safar/order-management-api/internal/testutil"
	"github.com/safar/order-management-api/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateDownThenUp(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	down, err := database.Migrate(ctx, db, migrations.FS, database.Down)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"000003_create_orders.down.sql",
		"000002_create_products.down.sql",
		"000001_create_customers.down.sql",
	}, down)

	var exists bool
	require.NoError(t, db.QueryRowContext(ctx, `SELECT to_regclass('public.orders') IS NOT NULL`).Scan(&exists))
	assert.False(t, exists)

	up, err := database.Migrate(ctx, db, migrations.FS, database.Up)
	require.NoError(t, err)
	assert.Len(t, up, 3)

	require.NoError(t, db.QueryRowContext(ctx, `SELECT to_regclass('public.order_items') IS NOT NULL`).Scan(&exists))
	assert.True(t, exists)
}

func TestMigrateRejectsUnknownDirection(t *testing.T) {
	_, err := database.Migrate(context.Background(), nil, fstest.MapFS{}, database.Direction("sideways"))
	assert.Error(t, err)
}

func TestWithRetryRetriesSerializationFailures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	attempts := 0
	err := database.WithRetry(ctx, db, database.TxOptions{IsolationLevel: sql.LevelReadCommitted, MaxRetries: 3}, func(tx *sql.Tx) error {
		attempts++
		if attempts < 3 {
			return &pq.Error{Code: "40001"}
		}
		_, err := tx.ExecContext(ctx, `SELECT 1`)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryStopsOnBusinessErrors(t *testing.T) {
	db := testutil.SetupTestDB(t)

	attempts := 0
	err := database.WithRetry(context.Background(), db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		attempts++
		return database.ErrInsufficientStock
	})
	assert.True(t, errors.Is(err, database.ErrInsufficientStock))
	assert.Equal(t, 1, attempts)
}

func TestWithRetryGivesUp(t *testing.T) {
	db := testutil.SetupTestDB(t)

	attempts := 0
	err := database.WithRetry(context.Background(), db, database.TxOptions{MaxRetries: 1}, func(tx *sql.Tx) error {
		attempts++
		return &pq.Error{Code: "40P01"}
	})
	require.Error(t, err)
	assert.Equal(t, 2, attempts)
	assert.True(t, database.IsRetryable(err))
}
