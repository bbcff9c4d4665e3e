package orders

import (
	"testing"

	"github.com/safar/order-management-api/internal/apperr"
	"github.com/safar/order-management-api/internal/database"
	"github.com/safar/order-management-api/internal/events"
	"github.com/safar/order-management-api/internal/models"
	"github.com/safar/order-management-api/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productFixture(id int64, description string, price int64, qty int) *models.Product {
	return &models.Product{
		ID:          id,
		Description: description,
		UnitPrice:   decimal.NewFromInt(price),
		QtyOnHand:   qty,
	}
}

func ptr(v int64) *int64 { return &v }

func TestReserveComputesTotalAndDeltas(t *testing.T) {
	view := newLedgerView(map[int64]*models.Product{
		1: productFixture(1, "Keyboard", 100, 50),
		2: productFixture(2, "Monitor", 200, 30),
	})

	items, total, err := view.reserve([]LineItemInput{
		{ProductID: 1, Quantity: 5},
		{ProductID: 2, Quantity: 3},
	})
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(1100).Equal(total), "total %s", total)
	require.Len(t, items, 2)
	assert.Equal(t, int64(1), *items[0].ProductID)
	assert.True(t, decimal.NewFromInt(100).Equal(items[0].Price))
	assert.Equal(t, 3, items[1].Quantity)
	assert.Equal(t, []events.StockMovement{
		{ProductID: 1, Delta: -5},
		{ProductID: 2, Delta: -3},
	}, view.movements())
}

func TestReserveScenarioFromFiveUnits(t *testing.T) {
	view := newLedgerView(map[int64]*models.Product{1: productFixture(1, "P", 10, 5)})

	_, total, err := view.reserve([]LineItemInput{{ProductID: 1, Quantity: 3}})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(30).Equal(total))
	assert.Equal(t, 2, view.available[1])

	_, _, err = view.reserve([]LineItemInput{{ProductID: 1, Quantity: 3}})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInsufficientStock, apperr.KindOf(err))
	assert.ErrorIs(t, err, database.ErrInsufficientStock)
}

func TestReserveFailsOnMissingProduct(t *testing.T) {
	view := newLedgerView(map[int64]*models.Product{1: productFixture(1, "P", 10, 5)})

	_, _, err := view.reserve([]LineItemInput{
		{ProductID: 1, Quantity: 1},
		{ProductID: 42, Quantity: 1},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindReferenceNotFound, apperr.KindOf(err))
	assert.Equal(t, "Product with ID 42 not found", err.Error())
}

func TestReserveReportsFirstFailingLineInInputOrder(t *testing.T) {
	view := newLedgerView(map[int64]*models.Product{
		1: productFixture(1, "Chair", 10, 1),
	})

	_, _, err := view.reserve([]LineItemInput{
		{ProductID: 1, Quantity: 2},
		{ProductID: 99, Quantity: 1},
	})
	assert.Equal(t, apperr.KindInsufficientStock, apperr.KindOf(err))
	assert.Equal(t, "Insufficient stock for product Chair", err.Error())
}

func TestReserveRepeatedProductIsCumulative(t *testing.T) {
	view := newLedgerView(map[int64]*models.Product{1: productFixture(1, "Lamp", 10, 5)})

	_, _, err := view.reserve([]LineItemInput{
		{ProductID: 1, Quantity: 3},
		{ProductID: 1, Quantity: 3},
	})
	assert.Equal(t, apperr.KindInsufficientStock, apperr.KindOf(err))

	view = newLedgerView(map[int64]*models.Product{1: productFixture(1, "Lamp", 10, 5)})
	items, total, err := view.reserve([]LineItemInput{
		{ProductID: 1, Quantity: 2},
		{ProductID: 1, Quantity: 3},
	})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.True(t, decimal.NewFromInt(50).Equal(total))
	assert.Equal(t, []events.StockMovement{{ProductID: 1, Delta: -5}}, view.movements())
}

func TestRestoreThenReserveNetsDeltas(t *testing.T) {
	view := newLedgerView(map[int64]*models.Product{
		1: productFixture(1, "A", 10, 2),
		2: productFixture(2, "B", 20, 10),
	})

	view.restore([]store.LineItemRecord{
		{ProductID: ptr(1), Quantity: 3, Price: decimal.NewFromInt(8)},
		{ProductID: nil, Quantity: 4, Price: decimal.NewFromInt(1)},
		{ProductID: ptr(77), Quantity: 4, Price: decimal.NewFromInt(1)},
	})
	assert.Equal(t, 5, view.available[1])

	_, total, err := view.reserve([]LineItemInput{
		{ProductID: 1, Quantity: 5},
		{ProductID: 2, Quantity: 1},
	})
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(70).Equal(total))
	assert.Equal(t, []events.StockMovement{
		{ProductID: 1, Delta: -2},
		{ProductID: 2, Delta: -1},
	}, view.movements())
}

func TestRestoreOnlyProducesPositiveMovements(t *testing.T) {
	view := newLedgerView(map[int64]*models.Product{3: productFixture(3, "C", 5, 0)})
	view.restore([]store.LineItemRecord{{ProductID: ptr(3), Quantity: 4}})

	assert.Equal(t, []events.StockMovement{{ProductID: 3, Delta: 4}}, view.movements())
}

func TestProductIDs(t *testing.T) {
	ids := productIDs(
		[]store.LineItemRecord{{ProductID: ptr(9)}, {ProductID: nil}, {ProductID: ptr(2)}},
		[]LineItemInput{{ProductID: 5}, {ProductID: 2}},
	)
	assert.Equal(t, []int64{2, 5, 9}, ids)
	assert.Empty(t, productIDs(nil, nil))
}

func TestValidateLineItems(t *testing.T) {
	assert.NoError(t, validateLineItems([]LineItemInput{{ProductID: 1, Quantity: 1}}))

	for name, items := range map[string][]LineItemInput{
		"empty":         nil,
		"zero quantity": {{ProductID: 1, Quantity: 0}},
		"negative qty":  {{ProductID: 1, Quantity: -2}},
		"no product":    {{ProductID: 0, Quantity: 1}},
	} {
		t.Run(name, func(t *testing.T) {
			err := validateLineItems(items)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}

func TestReserveRejectsTotalTooLargeToStore(t *testing.T) {
	expensive := productFixture(1, "Yacht", 0, 2_000_000_000)
	expensive.UnitPrice = decimal.RequireFromString("9999999999.99")
	view := newLedgerView(map[int64]*models.Product{1: expensive})

	_, _, err := view.reserve([]LineItemInput{{ProductID: 1, Quantity: 1000}})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, 2_000_000_000, view.products[1].QtyOnHand)

	_, total, err := newLedgerView(map[int64]*models.Product{1: expensive}).
		reserve([]LineItemInput{{ProductID: 1, Quantity: 99}})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("989999999999.01").Equal(total), "total %s", total)
}
