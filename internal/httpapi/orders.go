package httpapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/safar/order-management-api/internal/apperr"
	"github.com/safar/order-management-api/internal/idempotency"
	"github.com/safar/order-management-api/internal/orders"
	"go.uber.org/zap"
)

const (
	idempotencyHeader   = "Idempotency-Key"
	maxIdempotencyKey   = 255
	maxRequestBodyBytes = 1 << 20
)

type lineItemRequest struct {
	Product  int64 `json:"product"`
	Quantity int   `json:"quantity"`
}

// orderRequest is shared by create and update; on update absent fields are
// left alone and a present productDetails replaces the line items.
type orderRequest struct {
	Customer       *int64             `json:"customer"`
	ProductDetails *[]lineItemRequest `json:"productDetails"`
	Date           *dateInput         `json:"date"`
}

// dateInput accepts RFC 3339 timestamps and bare YYYY-MM-DD dates.
type dateInput struct {
	time.Time
}

func (d *dateInput) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.IsZero() {
			return errors.New("date must not be the zero date")
		}
		d.Time = t
		return nil
	}
	return errors.New("date must be RFC 3339 or YYYY-MM-DD")
}

func (d *dateInput) ptr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

// fingerprint hashes the decoded create request, so a key replays only for
// the same order regardless of whitespace or field order in the body.
func fingerprint(req orders.CreateOrderRequest) (string, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

func toLineItems(in []lineItemRequest) []orders.LineItemInput {
	items := make([]orders.LineItemInput, len(in))
	for i, item := range in {
		items[i] = orders.LineItemInput{ProductID: item.Product, Quantity: item.Quantity}
	}
	return items
}

// decodeBody reads a JSON object from the request into dst.
func decodeBody(r *http.Request, dst any) error {
	body := io.LimitReader(r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("Request body is required")
		}
		return apperr.Validation("Invalid request body: %v", err)
	}
	return nil
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	list, err := s.orders.ListOrders(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondList(w, list, len(list))
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "order")
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	order, err := s.orders.GetOrder(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondData(w, http.StatusOK, order)
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req orderRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	create := orders.CreateOrderRequest{Date: req.Date.ptr()}
	if req.Customer != nil {
		create.CustomerID = *req.Customer
	}
	if req.ProductDetails != nil {
		create.Items = toLineItems(*req.ProductDetails)
	}

	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if key == "" || s.idempotency == nil {
		s.placeOrder(w, r, create)
		return
	}
	if len(key) > maxIdempotencyKey {
		s.respondError(w, r, apperr.Validation("%s must be at most %d characters", idempotencyHeader, maxIdempotencyKey))
		return
	}

	fp, err := fingerprint(create)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	existingID, err := s.idempotency.Begin(ctx, key, fp)
	switch {
	case errors.Is(err, idempotency.ErrInFlight):
		s.respondError(w, r, apperr.Wrap(apperr.KindConflict, err, "A request with this Idempotency-Key is already in progress"))
		return
	case errors.Is(err, idempotency.ErrKeyReused):
		s.respondError(w, r, apperr.Wrap(apperr.KindValidation, err, "%s was already used with a different request body", idempotencyHeader))
		return
	case err != nil:
		s.respondError(w, r, err)
		return
	}

	if existingID != 0 {
		order, err := s.orders.GetOrder(ctx, existingID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		w.Header().Set("Idempotent-Replayed", "true")
		s.respondData(w, http.StatusOK, order)
		return
	}

	order, ok := s.placeOrder(w, r, create)

	// Release and Complete must not be cut short by a cancelled request.
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if !ok {
		if err := s.idempotency.Release(bg, key); err != nil {
			s.logger.Warn("release idempotency key", zap.String("key", key), zap.Error(err))
		}
		return
	}
	if err := s.idempotency.Complete(bg, key, fp, order); err != nil {
		s.logger.Warn("complete idempotency key", zap.String("key", key), zap.Error(err))
	}
}

// placeOrder creates the order and writes the response. It reports the new
// order id and whether creation succeeded.
func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request, req orders.CreateOrderRequest) (int64, bool) {
	order, err := s.orders.CreateOrder(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return 0, false
	}

	s.respondData(w, http.StatusCreated, order)
	return order.ID, true
}

func (s *Server) updateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "order")
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var req orderRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	update := orders.UpdateOrderRequest{
		CustomerID: req.Customer,
		Date:       req.Date.ptr(),
	}
	if req.ProductDetails != nil {
		items := toLineItems(*req.ProductDetails)
		update.Items = &items
	}

	order, err := s.orders.UpdateOrder(r.Context(), id, update)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondData(w, http.StatusOK, order)
}

func (s *Server) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "order")
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := s.orders.DeleteOrder(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondDeleted(w, "Order")
}
