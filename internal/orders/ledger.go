package orders

import (
	"sort"

	"github.com/safar/order-management-api/internal/apperr"
	"github.com/safar/order-management-api/internal/database"
	"github.com/safar/order-management-api/internal/events"
	"github.com/safar/order-management-api/internal/models"
	"github.com/safar/order-management-api/internal/store"
	"github.com/shopspring/decimal"
)

// maxOrderTotal is the largest total the orders.total_amount column holds.
var maxOrderTotal = decimal.RequireFromString("999999999999.99")

type LineItemInput struct {
	ProductID int64
	Quantity  int
}

// ledgerView is an in-transaction picture of the locked product rows. Every
// restoration and reservation is applied here first; nothing touches the
// database until the whole request has been validated, and then only the
// net delta per product is written.
type ledgerView struct {
	products  map[int64]*models.Product
	available map[int64]int
	deltas    map[int64]int
}

func newLedgerView(products map[int64]*models.Product) *ledgerView {
	available := make(map[int64]int, len(products))
	for id, p := range products {
		available[id] = p.QtyOnHand
	}

	return &ledgerView{
		products:  products,
		available: available,
		deltas:    make(map[int64]int),
	}
}

// restore releases the stock held by previously stored line items. Lines
// whose product no longer exists are skipped.
func (v *ledgerView) restore(items []store.LineItemRecord) {
	for _, item := range items {
		if item.ProductID == nil {
			continue
		}
		id := *item.ProductID
		if _, ok := v.products[id]; !ok {
			continue
		}
		v.available[id] += item.Quantity
		v.deltas[id] += item.Quantity
	}
}

// reserve checks the requested lines in order against what is still
// available, snapshots each product's unit price and returns the priced
// lines with their total. Repeated products draw from the same remaining
// stock.
func (v *ledgerView) reserve(items []LineItemInput) ([]store.LineItemRecord, decimal.Decimal, error) {
	records := make([]store.LineItemRecord, 0, len(items))
	total := decimal.Zero

	for _, item := range items {
		product, ok := v.products[item.ProductID]
		if !ok {
			return nil, decimal.Zero, apperr.Wrap(apperr.KindReferenceNotFound, database.ErrProductNotFound,
				"Product with ID %d not found", item.ProductID)
		}

		if v.available[product.ID] < item.Quantity {
			return nil, decimal.Zero, apperr.Wrap(apperr.KindInsufficientStock, database.ErrInsufficientStock,
				"Insufficient stock for product %s", product.Description)
		}

		v.available[product.ID] -= item.Quantity
		v.deltas[product.ID] -= item.Quantity

		productID := product.ID
		record := store.LineItemRecord{
			ProductID: &productID,
			Quantity:  item.Quantity,
			Price:     product.UnitPrice,
		}
		total = total.Add(record.Price.Mul(decimal.NewFromInt(int64(record.Quantity))))
		records = append(records, record)
	}

	if total.GreaterThan(maxOrderTotal) {
		return nil, decimal.Zero, apperr.Validation("Order total must be at most %s", maxOrderTotal)
	}

	return records, total, nil
}

// movements lists the non-zero net deltas in ascending product id order.
func (v *ledgerView) movements() []events.StockMovement {
	out := make([]events.StockMovement, 0, len(v.deltas))
	for id, delta := range v.deltas {
		if delta != 0 {
			out = append(out, events.StockMovement{ProductID: id, Delta: delta})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// productIDs returns the distinct product ids referenced by the stored and
// requested lines, ascending.
func productIDs(stored []store.LineItemRecord, requested []LineItemInput) []int64 {
	seen := make(map[int64]struct{}, len(stored)+len(requested))
	for _, item := range stored {
		if item.ProductID != nil {
			seen[*item.ProductID] = struct{}{}
		}
	}
	for _, item := range requested {
		seen[item.ProductID] = struct{}{}
	}

	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func validateLineItems(items []LineItemInput) error {
	if len(items) == 0 {
		return apperr.Validation("productDetails must contain at least one item")
	}

	for i, item := range items {
		if item.ProductID <= 0 {
			return apperr.Validation("productDetails[%d].product is required", i)
		}
		if item.Quantity <= 0 {
			return apperr.Validation("productDetails[%d].quantity must be a positive integer", i)
		}
	}

	return nil
}
