package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/safar/order-management-api/internal/database"
	"github.com/safar/order-management-api/internal/models"
	"github.com/shopspring/decimal"
)

const productColumns = `id, description, unit_price, qty_on_hand, created_at, updated_at, version`

func scanProduct(row scanner, product *models.Product) error {
	return row.Scan(
		&product.ID,
		&product.Description,
		&product.UnitPrice,
		&product.QtyOnHand,
		&product.CreatedAt,
		&product.UpdatedAt,
		&product.Version,
	)
}

func CreateProduct(ctx context.Context, q Querier, description string, unitPrice decimal.Decimal, qtyOnHand int) (*models.Product, error) {
	product := &models.Product{}

	query := `
		INSERT INTO products (description, unit_price, qty_on_hand, created_at, updated_at, version)
		VALUES ($1, $2, $3, NOW(), NOW(), 1)
		RETURNING ` + productColumns

	if err := scanProduct(q.QueryRowContext(ctx, query, description, unitPrice, qtyOnHand), product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, q Querier, id int64) (*models.Product, error) {
	product := &models.Product{}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	if err := scanProduct(q.QueryRowContext(ctx, query, id), product); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

func ListProducts(ctx context.Context, q Querier) ([]models.Product, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var product models.Product
		if err := scanProduct(rows, &product); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

// LockProducts row-locks every product in ids and returns the ones that
// exist, keyed by id. Rows are locked in ascending id order so concurrent
// orders touching the same products cannot deadlock each other.
func LockProducts(ctx context.Context, tx *sql.Tx, ids []int64) (map[int64]*models.Product, error) {
	locked := make(map[int64]*models.Product, len(ids))
	if len(ids) == 0 {
		return locked, nil
	}

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`

	rows, err := tx.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		product := &models.Product{}
		if err := scanProduct(rows, product); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		locked[product.ID] = product
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return locked, nil
}

// AdjustStock applies delta to qty_on_hand: positive restores stock, negative
// reserves it. The update refuses to drive the count below zero.
func AdjustStock(ctx context.Context, q Querier, productID int64, delta int) error {
	if delta == 0 {
		return nil
	}

	result, err := q.ExecContext(ctx,
		`UPDATE products
		 SET qty_on_hand = qty_on_hand + $1,
		     version = version + 1,
		     updated_at = NOW()
		 WHERE id = $2
		   AND qty_on_hand + $1 >= 0`,
		delta, productID)
	if err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if _, err := GetProduct(ctx, q, productID); err != nil {
			return err
		}
		return database.ErrInsufficientStock
	}

	return nil
}

// UpdateProduct writes the mutable fields if the stored version still matches
// product.Version, and refreshes product from the new row.
func UpdateProduct(ctx context.Context, q Querier, product *models.Product) error {
	query := `
		UPDATE products
		SET description = $1, unit_price = $2, qty_on_hand = $3, version = version + 1, updated_at = NOW()
		WHERE id = $4 AND version = $5
		RETURNING ` + productColumns

	err := scanProduct(q.QueryRowContext(ctx, query,
		product.Description, product.UnitPrice, product.QtyOnHand, product.ID, product.Version), product)
	if err == sql.ErrNoRows {
		if _, getErr := GetProduct(ctx, q, product.ID); getErr != nil {
			return getErr
		}
		return database.ErrOptimisticLockFailed
	}
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	return nil
}

func DeleteProduct(ctx context.Context, q Querier, id int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrProductNotFound
	}

	return nil
}
