// Package events publishes order lifecycle events once the database
// transaction that produced them has committed.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Type string

const (
	OrderCreated Type = "order.created"
	OrderUpdated Type = "order.updated"
	OrderDeleted Type = "order.deleted"
)

const envelopeVersion = 1

// StockMovement is the net change applied to one product's qtyOnHand.
// Negative deltas are reservations, positive deltas restorations.
type StockMovement struct {
	ProductID int64 `json:"productId"`
	Delta     int   `json:"delta"`
}

type OrderEvent struct {
	Type        Type            `json:"-"`
	OrderID     int64           `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	CustomerID  *int64          `json:"customerId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Movements   []StockMovement `json:"movements"`
}

type Envelope struct {
	EventID       string          `json:"eventId"`
	EventType     Type            `json:"eventType"`
	EventVersion  int             `json:"eventVersion"`
	OccurredAt    time.Time       `json:"occurredAt"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlationId"`
	Payload       json.RawMessage `json:"payload"`
}

func NewEnvelope(producer string, event OrderEvent, now time.Time) (Envelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", event.Type, err)
	}

	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     event.Type,
		EventVersion:  envelopeVersion,
		OccurredAt:    now.UTC(),
		Producer:      producer,
		CorrelationID: event.OrderNumber,
		Payload:       payload,
	}, nil
}

type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	// Close flushes queued events until ctx is done and then releases the
	// broker connection.
	Close(ctx context.Context) error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, OrderEvent) error { return nil }

func (NopPublisher) Close(context.Context) error { return nil }
