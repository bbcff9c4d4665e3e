package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/safar/order-management-api/internal/database"
	"github.com/safar/order-management-api/internal/models"
	"github.com/shopspring/decimal"
)

// OrderRecord is the stored shape of an order, with raw references instead of
// the dereferenced customer and products.
type OrderRecord struct {
	ID          int64
	OrderNumber string
	CustomerID  *int64
	TotalAmount decimal.Decimal
	Date        time.Time
	Version     int
	Items       []LineItemRecord
}

// LineItemRecord is one stored line. ProductID is nil when the product has
// been deleted since the order was placed.
type LineItemRecord struct {
	ProductID *int64
	Quantity  int
	Price     decimal.Decimal
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func GenerateOrderNumber() string {
	return "ORD-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

func InsertOrder(ctx context.Context, tx *sql.Tx, customerID int64, total decimal.Decimal, date time.Time, items []LineItemRecord) (int64, error) {
	var orderID int64
	err := tx.QueryRowContext(ctx,
		`INSERT INTO orders (order_number, customer_id, total_amount, order_date, created_at, updated_at, version)
		 VALUES ($1, $2, $3, $4, NOW(), NOW(), 1)
		 RETURNING id`,
		GenerateOrderNumber(), customerID, total, date).Scan(&orderID)
	if err != nil {
		return 0, fmt.Errorf("create order: %w", err)
	}

	if err := insertLineItems(ctx, tx, orderID, items); err != nil {
		return 0, err
	}

	return orderID, nil
}

func insertLineItems(ctx context.Context, tx *sql.Tx, orderID int64, items []LineItemRecord) error {
	for position, item := range items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, position, product_id, quantity, price, created_at)
			 VALUES ($1, $2, $3, $4, $5, NOW())`,
			orderID, position, nullInt64(item.ProductID), item.Quantity, item.Price)
		if err != nil {
			return fmt.Errorf("create order item: %w", err)
		}
	}
	return nil
}

// LockOrder row-locks the order and returns it with its stored line items.
func LockOrder(ctx context.Context, tx *sql.Tx, id int64) (*OrderRecord, error) {
	record := &OrderRecord{ID: id}

	var customerID sql.NullInt64
	err := tx.QueryRowContext(ctx,
		`SELECT order_number, customer_id, total_amount, order_date, version
		 FROM orders
		 WHERE id = $1
		 FOR UPDATE`,
		id).Scan(&record.OrderNumber, &customerID, &record.TotalAmount, &record.Date, &record.Version)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order %d: %w", id, err)
	}
	if customerID.Valid {
		record.CustomerID = &customerID.Int64
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT product_id, quantity, price
		 FROM order_items
		 WHERE order_id = $1
		 ORDER BY position`,
		id)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item LineItemRecord
		var productID sql.NullInt64
		if err := rows.Scan(&productID, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if productID.Valid {
			pid := productID.Int64
			item.ProductID = &pid
		}
		record.Items = append(record.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return record, nil
}

// UpdateOrder rewrites the order header. When items is non-nil the stored
// line items are replaced as well.
func UpdateOrder(ctx context.Context, tx *sql.Tx, record *OrderRecord, items []LineItemRecord) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE orders
		 SET customer_id = $1, total_amount = $2, order_date = $3, version = version + 1, updated_at = NOW()
		 WHERE id = $4`,
		nullInt64(record.CustomerID), record.TotalAmount, record.Date, record.ID)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	if items == nil {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, record.ID); err != nil {
		return fmt.Errorf("delete order items: %w", err)
	}

	return insertLineItems(ctx, tx, record.ID, items)
}

func DeleteOrder(ctx context.Context, q Querier, id int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrOrderNotFound
	}

	return nil
}

const orderViewQuery = `
	SELECT o.id, o.order_number, o.total_amount, o.order_date, o.created_at, o.updated_at, o.version,
	       c.id, c.name, c.address
	FROM orders o
	LEFT JOIN customers c ON c.id = o.customer_id`

func scanOrderView(row scanner, order *models.Order) error {
	var (
		customerID      sql.NullInt64
		customerName    sql.NullString
		customerAddress sql.NullString
	)

	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.TotalAmount,
		&order.Date,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
		&customerID,
		&customerName,
		&customerAddress,
	)
	if err != nil {
		return err
	}

	if customerID.Valid {
		order.Customer = &models.CustomerRef{
			ID:      customerID.Int64,
			Name:    customerName.String,
			Address: customerAddress.String,
		}
	}
	order.ProductDetails = []models.LineItem{}

	return nil
}

// GetOrder returns the order with its customer and products dereferenced.
func GetOrder(ctx context.Context, q Querier, id int64) (*models.Order, error) {
	order := &models.Order{}

	err := scanOrderView(q.QueryRowContext(ctx, orderViewQuery+` WHERE o.id = $1`, id), order)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := attachLineItems(ctx, q, []*models.Order{order}); err != nil {
		return nil, err
	}

	return order, nil
}

func ListOrders(ctx context.Context, q Querier) ([]models.Order, error) {
	rows, err := q.QueryContext(ctx, orderViewQuery+` ORDER BY o.created_at, o.id`)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := scanOrderView(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	refs := make([]*models.Order, len(orders))
	for i := range orders {
		refs[i] = &orders[i]
	}
	if err := attachLineItems(ctx, q, refs); err != nil {
		return nil, err
	}

	return orders, nil
}

func attachLineItems(ctx context.Context, q Querier, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[int64]*models.Order, len(orders))
	ids := make([]int64, 0, len(orders))
	for _, order := range orders {
		byID[order.ID] = order
		ids = append(ids, order.ID)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT i.id, i.order_id, i.quantity, i.price, p.id, p.description, p.unit_price
		 FROM order_items i
		 LEFT JOIN products p ON p.id = i.product_id
		 WHERE i.order_id = ANY($1)
		 ORDER BY i.order_id, i.position`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item        models.LineItem
			orderID     int64
			productID   sql.NullInt64
			description sql.NullString
			unitPrice   decimal.NullDecimal
		)
		if err := rows.Scan(&item.ID, &orderID, &item.Quantity, &item.Price, &productID, &description, &unitPrice); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if productID.Valid {
			item.Product = &models.ProductRef{
				ID:          productID.Int64,
				Description: description.String,
				UnitPrice:   unitPrice.Decimal,
			}
		}
		order := byID[orderID]
		order.ProductDetails = append(order.ProductDetails, item)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	return nil
}
