package directory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/safar/order-management-api/internal/apperr"
	"github.com/safar/order-management-api/internal/database"
	"github.com/safar/order-management-api/internal/models"
	"github.com/safar/order-management-api/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// updateAttempts bounds the compare-and-swap loop on concurrent edits.
const updateAttempts = 3

type ProductInput struct {
	Description *string          `json:"description" validate:"required,min=1,max=500"`
	UnitPrice   *decimal.Decimal `json:"unitPrice" validate:"required,gte=0,lte=9999999999.99"`
	QtyOnHand   *int             `json:"qtyOnHand" validate:"required,gte=0,lte=2147483647"`
}

// ProductPatch is merged over the stored product; nil fields are kept.
type ProductPatch struct {
	Description *string          `json:"description" validate:"omitempty,min=1,max=500"`
	UnitPrice   *decimal.Decimal `json:"unitPrice" validate:"omitempty,gte=0,lte=9999999999.99"`
	QtyOnHand   *int             `json:"qtyOnHand" validate:"omitempty,gte=0,lte=2147483647"`
}

type Products struct {
	db       *sql.DB
	logger   *zap.Logger
	validate *validator.Validate
}

func NewProducts(db *sql.DB, logger *zap.Logger) *Products {
	return &Products{db: db, logger: logger, validate: newValidator()}
}

func (p *Products) Create(ctx context.Context, input ProductInput) (*models.Product, error) {
	input.Description = trimmed(input.Description)
	if err := check(p.validate, input); err != nil {
		return nil, err
	}

	product, err := store.CreateProduct(ctx, p.db, *input.Description, *input.UnitPrice, *input.QtyOnHand)
	if err != nil {
		return nil, err
	}

	p.logger.Info("product created",
		zap.Int64("product_id", product.ID),
		zap.Int("qty_on_hand", product.QtyOnHand))

	return product, nil
}

func (p *Products) Get(ctx context.Context, id int64) (*models.Product, error) {
	product, err := store.GetProduct(ctx, p.db, id)
	if err != nil {
		return nil, productErr(err)
	}
	return product, nil
}

func (p *Products) List(ctx context.Context) ([]models.Product, error) {
	return store.ListProducts(ctx, p.db)
}

// Update merges patch over the current row and writes it back under the
// row's version, re-reading on a lost race.
func (p *Products) Update(ctx context.Context, id int64, patch ProductPatch) (*models.Product, error) {
	patch.Description = trimmed(patch.Description)
	if err := check(p.validate, patch); err != nil {
		return nil, err
	}

	var err error
	for attempt := 1; attempt <= updateAttempts; attempt++ {
		var product *models.Product
		product, err = store.GetProduct(ctx, p.db, id)
		if err != nil {
			return nil, productErr(err)
		}

		if patch.Description != nil {
			product.Description = *patch.Description
		}
		if patch.UnitPrice != nil {
			product.UnitPrice = *patch.UnitPrice
		}
		if patch.QtyOnHand != nil {
			product.QtyOnHand = *patch.QtyOnHand
		}

		err = store.UpdateProduct(ctx, p.db, product)
		if err == nil {
			p.logger.Info("product updated",
				zap.Int64("product_id", product.ID),
				zap.Int("version", product.Version))
			return product, nil
		}
		if !errors.Is(err, database.ErrOptimisticLockFailed) {
			return nil, productErr(err)
		}

		p.logger.Debug("product update lost race, retrying",
			zap.Int64("product_id", id),
			zap.Int("attempt", attempt))
	}

	return nil, retryConflict("Product", updateAttempts, err)
}

func (p *Products) Delete(ctx context.Context, id int64) error {
	if err := store.DeleteProduct(ctx, p.db, id); err != nil {
		return productErr(err)
	}

	p.logger.Info("product deleted", zap.Int64("product_id", id))
	return nil
}

func productErr(err error) error {
	if errors.Is(err, database.ErrProductNotFound) {
		return notFound(apperr.KindProductNotFound, "Product", err)
	}
	return err
}
