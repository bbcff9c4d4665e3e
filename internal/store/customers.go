package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/order-management-api/internal/database"
	"github.com/safar/order-management-api/internal/models"
	"github.com/shopspring/decimal"
)

const customerColumns = `id, name, address, salary, created_at, updated_at, version`

func scanCustomer(row scanner, customer *models.Customer) error {
	return row.Scan(
		&customer.ID,
		&customer.Name,
		&customer.Address,
		&customer.Salary,
		&customer.CreatedAt,
		&customer.UpdatedAt,
		&customer.Version,
	)
}

func CreateCustomer(ctx context.Context, q Querier, name, address string, salary decimal.Decimal) (*models.Customer, error) {
	customer := &models.Customer{}

	query := `
		INSERT INTO customers (name, address, salary, created_at, updated_at, version)
		VALUES ($1, $2, $3, NOW(), NOW(), 1)
		RETURNING ` + customerColumns

	if err := scanCustomer(q.QueryRowContext(ctx, query, name, address, salary), customer); err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}

	return customer, nil
}

func GetCustomer(ctx context.Context, q Querier, id int64) (*models.Customer, error) {
	customer := &models.Customer{}

	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

	if err := scanCustomer(q.QueryRowContext(ctx, query, id), customer); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}

	return customer, nil
}

// LockCustomerRef takes a share lock on the customer row so it cannot be
// deleted while an order referencing it is being written.
func LockCustomerRef(ctx context.Context, tx *sql.Tx, id int64) (*models.CustomerRef, error) {
	ref := &models.CustomerRef{}

	err := tx.QueryRowContext(ctx,
		`SELECT id, name, address FROM customers WHERE id = $1 FOR SHARE`,
		id).Scan(&ref.ID, &ref.Name, &ref.Address)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("lock customer %d: %w", id, err)
	}

	return ref, nil
}

func ListCustomers(ctx context.Context, q Querier) ([]models.Customer, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	customers := []models.Customer{}
	for rows.Next() {
		var customer models.Customer
		if err := scanCustomer(rows, &customer); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, customer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return customers, nil
}

// UpdateCustomer writes name, address and salary if the stored version still
// matches customer.Version, and refreshes customer from the new row.
func UpdateCustomer(ctx context.Context, q Querier, customer *models.Customer) error {
	query := `
		UPDATE customers
		SET name = $1, address = $2, salary = $3, version = version + 1, updated_at = NOW()
		WHERE id = $4 AND version = $5
		RETURNING ` + customerColumns

	err := scanCustomer(q.QueryRowContext(ctx, query,
		customer.Name, customer.Address, customer.Salary, customer.ID, customer.Version), customer)
	if err == sql.ErrNoRows {
		if _, getErr := GetCustomer(ctx, q, customer.ID); getErr != nil {
			return getErr
		}
		return database.ErrOptimisticLockFailed
	}
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}

	return nil
}

func DeleteCustomer(ctx context.Context, q Querier, id int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrCustomerNotFound
	}

	return nil
}
