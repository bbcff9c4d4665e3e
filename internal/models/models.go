package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices and totals go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

type Customer struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Address   string          `json:"address"`
	Salary    decimal.Decimal `json:"salary"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Version   int             `json:"version"`
}

type Product struct {
	ID          int64           `json:"id"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	QtyOnHand   int             `json:"qtyOnHand"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Version     int             `json:"version"`
}

// Order is the dereferenced view of an order. Customer is nil once the
// referenced customer has been deleted.
type Order struct {
	ID             int64           `json:"id"`
	OrderNumber    string          `json:"orderNumber"`
	Customer       *CustomerRef    `json:"customer"`
	ProductDetails []LineItem      `json:"productDetails"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	Date           time.Time       `json:"date"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	Version        int             `json:"version"`
}

// LineItem carries the price captured when the order was placed, not the
// product's current unit price. Product is nil once the product is deleted.
type LineItem struct {
	ID       int64           `json:"id"`
	Product  *ProductRef     `json:"product"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

type CustomerRef struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

type ProductRef struct {
	ID          int64           `json:"id"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// TotalOf sums price × quantity over items.
func TotalOf(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}
