package directory

import (
	"context"
	"testing"

	"github.com/safar/order-management-api/internal/apperr"
	"github.com/safar/order-management-api/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func str(s string) *string { return &s }

func num(n int) *int { return &n }

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestProductInputValidation(t *testing.T) {
	products := NewProducts(nil, zap.NewNop())
	ctx := context.Background()

	cases := []struct {
		name    string
		input   ProductInput
		message string
	}{
		{
			name:    "missing description",
			input:   ProductInput{UnitPrice: dec("1"), QtyOnHand: num(1)},
			message: "description is required",
		},
		{
			name:    "blank description",
			input:   ProductInput{Description: str("   "), UnitPrice: dec("1"), QtyOnHand: num(1)},
			message: "description must not be empty",
		},
		{
			name:    "missing price",
			input:   ProductInput{Description: str("Desk"), QtyOnHand: num(1)},
			message: "unitPrice is required",
		},
		{
			name:    "negative price",
			input:   ProductInput{Description: str("Desk"), UnitPrice: dec("-0.01"), QtyOnHand: num(1)},
			message: "unitPrice must be at least 0",
		},
		{
			name:    "negative stock",
			input:   ProductInput{Description: str("Desk"), UnitPrice: dec("10"), QtyOnHand: num(-1)},
			message: "qtyOnHand must be at least 0",
		},
		{
			name:    "price wider than the column",
			input:   ProductInput{Description: str("Desk"), UnitPrice: dec("100000000000"), QtyOnHand: num(1)},
			message: "unitPrice must be at most 9999999999.99",
		},
		{
			name:    "stock beyond int32",
			input:   ProductInput{Description: str("Desk"), UnitPrice: dec("10"), QtyOnHand: num(3_000_000_000)},
			message: "qtyOnHand must be at most 2147483647",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := products.Create(ctx, tc.input)
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			assert.Equal(t, tc.message, err.Error())
		})
	}
}

func TestProductPatchValidation(t *testing.T) {
	products := NewProducts(nil, zap.NewNop())

	_, err := products.Update(context.Background(), 1, ProductPatch{UnitPrice: dec("-5")})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = products.Update(context.Background(), 1, ProductPatch{Description: str("")})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = products.Update(context.Background(), 1, ProductPatch{UnitPrice: dec("10000000000")})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCustomerInputValidation(t *testing.T) {
	customers := NewCustomers(nil, zap.NewNop())
	ctx := context.Background()

	_, err := customers.Create(ctx, CustomerInput{Address: str("x"), Salary: dec("1")})
	assert.Equal(t, "name is required", err.Error())

	_, err = customers.Create(ctx, CustomerInput{Name: str("Ada"), Salary: dec("1")})
	assert.Equal(t, "address is required", err.Error())

	_, err = customers.Create(ctx, CustomerInput{Name: str("Ada"), Address: str("x"), Salary: dec("-1")})
	assert.Equal(t, "salary must be at least 0", err.Error())
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = customers.Create(ctx, CustomerInput{Name: str("Ada"), Address: str("x"), Salary: dec("1000000000000")})
	assert.Equal(t, "salary must be at most 999999999999.99", err.Error())

	_, err = customers.Update(ctx, 1, CustomerPatch{Salary: dec("1e13")})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestProductsLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	products := NewProducts(db, zap.NewNop())
	ctx := context.Background()

	created, err := products.Create(ctx, ProductInput{
		Description: str("  Standing desk "),
		UnitPrice:   dec("249.90"),
		QtyOnHand:   num(4),
	})
	require.NoError(t, err)
	assert.Equal(t, "Standing desk", created.Description)
	assert.Equal(t, 1, created.Version)

	updated, err := products.Update(ctx, created.ID, ProductPatch{QtyOnHand: num(9)})
	require.NoError(t, err)
	assert.Equal(t, 9, updated.QtyOnHand)
	assert.Equal(t, "Standing desk", updated.Description)
	assert.True(t, decimal.RequireFromString("249.90").Equal(updated.UnitPrice))
	assert.Equal(t, 2, updated.Version)

	list, err := products.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, products.Delete(ctx, created.ID))

	_, err = products.Get(ctx, created.ID)
	assert.Equal(t, apperr.KindProductNotFound, apperr.KindOf(err))
	assert.Equal(t, "Product not found", err.Error())

	_, err = products.Update(ctx, created.ID, ProductPatch{QtyOnHand: num(1)})
	assert.Equal(t, apperr.KindProductNotFound, apperr.KindOf(err))

	err = products.Delete(ctx, created.ID)
	assert.Equal(t, apperr.KindProductNotFound, apperr.KindOf(err))
}

func TestCustomersLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	customers := NewCustomers(db, zap.NewNop())
	ctx := context.Background()

	created, err := customers.Create(ctx, CustomerInput{
		Name:    str("Grace Hopper"),
		Address: str("Arlington"),
		Salary:  dec("0"),
	})
	require.NoError(t, err)

	updated, err := customers.Update(ctx, created.ID, CustomerPatch{Salary: dec("1200.50")})
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", updated.Name)
	assert.True(t, decimal.RequireFromString("1200.50").Equal(updated.Salary))

	fetched, err := customers.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Version, fetched.Version)

	require.NoError(t, customers.Delete(ctx, created.ID))
	_, err = customers.Get(ctx, created.ID)
	assert.Equal(t, apperr.KindCustomerNotFound, apperr.KindOf(err))
}
