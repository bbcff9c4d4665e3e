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

type CustomerInput struct {
	Name    *string          `json:"name" validate:"required,min=1,max=200"`
	Address *string          `json:"address" validate:"required,min=1,max=500"`
	Salary  *decimal.Decimal `json:"salary" validate:"required,gte=0,lte=999999999999.99"`
}

type CustomerPatch struct {
	Name    *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Address *string          `json:"address" validate:"omitempty,min=1,max=500"`
	Salary  *decimal.Decimal `json:"salary" validate:"omitempty,gte=0,lte=999999999999.99"`
}

type Customers struct {
	db       *sql.DB
	logger   *zap.Logger
	validate *validator.Validate
}

func NewCustomers(db *sql.DB, logger *zap.Logger) *Customers {
	return &Customers{db: db, logger: logger, validate: newValidator()}
}

func (c *Customers) Create(ctx context.Context, input CustomerInput) (*models.Customer, error) {
	input.Name = trimmed(input.Name)
	input.Address = trimmed(input.Address)
	if err := check(c.validate, input); err != nil {
		return nil, err
	}

	customer, err := store.CreateCustomer(ctx, c.db, *input.Name, *input.Address, *input.Salary)
	if err != nil {
		return nil, err
	}

	c.logger.Info("customer created", zap.Int64("customer_id", customer.ID))
	return customer, nil
}

func (c *Customers) Get(ctx context.Context, id int64) (*models.Customer, error) {
	customer, err := store.GetCustomer(ctx, c.db, id)
	if err != nil {
		return nil, customerErr(err)
	}
	return customer, nil
}

func (c *Customers) List(ctx context.Context) ([]models.Customer, error) {
	return store.ListCustomers(ctx, c.db)
}

func (c *Customers) Update(ctx context.Context, id int64, patch CustomerPatch) (*models.Customer, error) {
	patch.Name = trimmed(patch.Name)
	patch.Address = trimmed(patch.Address)
	if err := check(c.validate, patch); err != nil {
		return nil, err
	}

	var err error
	for attempt := 1; attempt <= updateAttempts; attempt++ {
		var customer *models.Customer
		customer, err = store.GetCustomer(ctx, c.db, id)
		if err != nil {
			return nil, customerErr(err)
		}

		if patch.Name != nil {
			customer.Name = *patch.Name
		}
		if patch.Address != nil {
			customer.Address = *patch.Address
		}
		if patch.Salary != nil {
			customer.Salary = *patch.Salary
		}

		err = store.UpdateCustomer(ctx, c.db, customer)
		if err == nil {
			c.logger.Info("customer updated",
				zap.Int64("customer_id", customer.ID),
				zap.Int("version", customer.Version))
			return customer, nil
		}
		if !errors.Is(err, database.ErrOptimisticLockFailed) {
			return nil, customerErr(err)
		}
	}

	return nil, retryConflict("Customer", updateAttempts, err)
}

// Delete removes the customer. Orders that referenced it keep their line
// items and show a null customer.
func (c *Customers) Delete(ctx context.Context, id int64) error {
	if err := store.DeleteCustomer(ctx, c.db, id); err != nil {
		return customerErr(err)
	}

	c.logger.Info("customer deleted", zap.Int64("customer_id", id))
	return nil
}

func customerErr(err error) error {
	if errors.Is(err, database.ErrCustomerNotFound) {
		return notFound(apperr.KindCustomerNotFound, "Customer", err)
	}
	return err
}
