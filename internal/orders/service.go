// Package orders keeps product stock and order totals consistent while
// orders are placed, changed and removed.
//
// Each operation runs in one transaction: the order row (if any), the
// customer row and every product row involved are locked, the whole request
// is validated against that snapshot, and only then is stock adjusted and
// the order written. A failing line item therefore leaves stock untouched.
package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/safar/order-management-api/internal/apperr"
	"github.com/safar/order-management-api/internal/database"
	"github.com/safar/order-management-api/internal/events"
	"github.com/safar/order-management-api/internal/models"
	"github.com/safar/order-management-api/internal/store"
	"go.uber.org/zap"
)

type CreateOrderRequest struct {
	CustomerID int64
	Items      []LineItemInput
	Date       *time.Time
}

// UpdateOrderRequest is a patch: nil fields are left as stored. A non-nil
// Items replaces every line item of the order.
type UpdateOrderRequest struct {
	CustomerID *int64
	Items      *[]LineItemInput
	Date       *time.Time
}

type Service struct {
	db        *sql.DB
	publisher events.Publisher
	logger    *zap.Logger
	txOpts    database.TxOptions
	now       func() time.Time
}

func NewService(db *sql.DB, publisher events.Publisher, logger *zap.Logger, maxRetries int) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	return &Service{
		db:        db,
		publisher: publisher,
		logger:    logger,
		txOpts: database.TxOptions{
			IsolationLevel: sql.LevelReadCommitted,
			MaxRetries:     maxRetries,
		},
		now: time.Now,
	}
}

func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	if req.CustomerID <= 0 {
		return nil, apperr.Validation("customer is required")
	}
	if err := validateLineItems(req.Items); err != nil {
		return nil, err
	}

	date := s.now()
	if req.Date != nil {
		date = *req.Date
	}

	var (
		order     *models.Order
		movements []events.StockMovement
	)

	err := database.WithRetry(ctx, s.db, s.txOpts, func(tx *sql.Tx) error {
		if _, err := lockCustomer(ctx, tx, req.CustomerID); err != nil {
			return err
		}

		products, err := store.LockProducts(ctx, tx, productIDs(nil, req.Items))
		if err != nil {
			return err
		}

		view := newLedgerView(products)
		items, total, err := view.reserve(req.Items)
		if err != nil {
			return err
		}

		if err := applyStock(ctx, tx, view); err != nil {
			return err
		}

		orderID, err := store.InsertOrder(ctx, tx, req.CustomerID, total, date, items)
		if err != nil {
			return err
		}

		order, err = store.GetOrder(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("fetch created order: %w", err)
		}
		movements = view.movements()

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("total_amount", order.TotalAmount.String()),
		zap.Int("line_items", len(order.ProductDetails)))
	s.publish(ctx, events.OrderCreated, order, movements)

	return order, nil
}

func (s *Service) UpdateOrder(ctx context.Context, id int64, req UpdateOrderRequest) (*models.Order, error) {
	if req.CustomerID != nil && *req.CustomerID <= 0 {
		return nil, apperr.Validation("customer must be a valid id")
	}
	if req.Items != nil {
		if err := validateLineItems(*req.Items); err != nil {
			return nil, err
		}
	}

	var (
		order     *models.Order
		movements []events.StockMovement
	)

	err := database.WithRetry(ctx, s.db, s.txOpts, func(tx *sql.Tx) error {
		record, err := lockOrder(ctx, tx, id)
		if err != nil {
			return err
		}

		if req.CustomerID != nil {
			if _, err := lockCustomer(ctx, tx, *req.CustomerID); err != nil {
				return err
			}
			customerID := *req.CustomerID
			record.CustomerID = &customerID
		}
		if req.Date != nil {
			record.Date = *req.Date
		}

		var items []store.LineItemRecord
		var view *ledgerView
		if req.Items != nil {
			products, err := store.LockProducts(ctx, tx, productIDs(record.Items, *req.Items))
			if err != nil {
				return err
			}

			view = newLedgerView(products)
			view.restore(record.Items)

			items, record.TotalAmount, err = view.reserve(*req.Items)
			if err != nil {
				return err
			}

			if err := applyStock(ctx, tx, view); err != nil {
				return err
			}
		}

		if err := store.UpdateOrder(ctx, tx, record, items); err != nil {
			return err
		}

		order, err = store.GetOrder(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("fetch updated order: %w", err)
		}
		movements = nil
		if view != nil {
			movements = view.movements()
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order updated",
		zap.Int64("order_id", order.ID),
		zap.Bool("line_items_replaced", req.Items != nil),
		zap.String("total_amount", order.TotalAmount.String()))
	s.publish(ctx, events.OrderUpdated, order, movements)

	return order, nil
}

func (s *Service) DeleteOrder(ctx context.Context, id int64) error {
	var (
		record    *store.OrderRecord
		movements []events.StockMovement
	)

	err := database.WithRetry(ctx, s.db, s.txOpts, func(tx *sql.Tx) error {
		var err error
		record, err = lockOrder(ctx, tx, id)
		if err != nil {
			return err
		}

		products, err := store.LockProducts(ctx, tx, productIDs(record.Items, nil))
		if err != nil {
			return err
		}

		view := newLedgerView(products)
		view.restore(record.Items)

		if err := applyStock(ctx, tx, view); err != nil {
			return err
		}

		if err := store.DeleteOrder(ctx, tx, id); err != nil {
			return err
		}
		movements = view.movements()

		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("order deleted",
		zap.Int64("order_id", id),
		zap.Int("products_restored", len(movements)))
	s.publish(ctx, events.OrderDeleted, &models.Order{
		ID:          record.ID,
		OrderNumber: record.OrderNumber,
		TotalAmount: record.TotalAmount,
		Customer:    customerRefOf(record.CustomerID),
	}, movements)

	return nil
}

func (s *Service) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	order, err := store.GetOrder(ctx, s.db, id)
	if err != nil {
		return nil, orderErr(err)
	}
	return order, nil
}

func (s *Service) ListOrders(ctx context.Context) ([]models.Order, error) {
	return store.ListOrders(ctx, s.db)
}

// applyStock writes the view's net deltas, one product at a time in
// ascending id order.
func applyStock(ctx context.Context, tx *sql.Tx, view *ledgerView) error {
	ids := make([]int64, 0, len(view.deltas))
	for id, delta := range view.deltas {
		if delta != 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if err := store.AdjustStock(ctx, tx, id, view.deltas[id]); err != nil {
			return fmt.Errorf("adjust stock for product %d: %w", id, err)
		}
	}

	return nil
}

func (s *Service) publish(ctx context.Context, typ events.Type, order *models.Order, movements []events.StockMovement) {
	var customerID *int64
	if order.Customer != nil {
		id := order.Customer.ID
		customerID = &id
	}

	if len(movements) > 0 {
		s.logger.Debug("stock movements committed",
			zap.Int64("order_id", order.ID),
			zap.Any("movements", movements))
	}

	err := s.publisher.Publish(ctx, events.OrderEvent{
		Type:        typ,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  customerID,
		TotalAmount: order.TotalAmount,
		Movements:   movements,
	})
	if err != nil {
		s.logger.Warn("publish order event",
			zap.String("event_type", string(typ)),
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}
}

func lockCustomer(ctx context.Context, tx *sql.Tx, id int64) (*models.CustomerRef, error) {
	ref, err := store.LockCustomerRef(ctx, tx, id)
	if errors.Is(err, database.ErrCustomerNotFound) {
		return nil, apperr.Wrap(apperr.KindReferenceNotFound, err, "Customer with ID %d not found", id)
	}
	return ref, err
}

func lockOrder(ctx context.Context, tx *sql.Tx, id int64) (*store.OrderRecord, error) {
	record, err := store.LockOrder(ctx, tx, id)
	if err != nil {
		return nil, orderErr(err)
	}
	return record, nil
}

func orderErr(err error) error {
	if errors.Is(err, database.ErrOrderNotFound) {
		return apperr.Wrap(apperr.KindOrderNotFound, err, "Order not found")
	}
	return err
}

func customerRefOf(id *int64) *models.CustomerRef {
	if id == nil {
		return nil
	}
	return &models.CustomerRef{ID: *id}
}
