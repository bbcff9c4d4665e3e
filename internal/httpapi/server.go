// Package httpapi serves customers, products and orders over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/safar/order-management-api/internal/apperr"
	"github.com/safar/order-management-api/internal/directory"
	"github.com/safar/order-management-api/internal/idempotency"
	"github.com/safar/order-management-api/internal/models"
	"github.com/safar/order-management-api/internal/orders"
	"go.uber.org/zap"
)

type OrderService interface {
	CreateOrder(ctx context.Context, req orders.CreateOrderRequest) (*models.Order, error)
	UpdateOrder(ctx context.Context, id int64, req orders.UpdateOrderRequest) (*models.Order, error)
	DeleteOrder(ctx context.Context, id int64) error
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
}

type ProductService interface {
	Create(ctx context.Context, input directory.ProductInput) (*models.Product, error)
	Get(ctx context.Context, id int64) (*models.Product, error)
	List(ctx context.Context) ([]models.Product, error)
	Update(ctx context.Context, id int64, patch directory.ProductPatch) (*models.Product, error)
	Delete(ctx context.Context, id int64) error
}

type CustomerService interface {
	Create(ctx context.Context, input directory.CustomerInput) (*models.Customer, error)
	Get(ctx context.Context, id int64) (*models.Customer, error)
	List(ctx context.Context) ([]models.Customer, error)
	Update(ctx context.Context, id int64, patch directory.CustomerPatch) (*models.Customer, error)
	Delete(ctx context.Context, id int64) error
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Options struct {
	ServiceName    string
	ServiceVersion string
	RequestTimeout time.Duration
}

type Server struct {
	orders      OrderService
	products    ProductService
	customers   CustomerService
	idempotency idempotency.Store
	db          Pinger
	logger      *zap.Logger
	opts        Options
}

// NewServer wires the handlers. idem may be nil, in which case the
// Idempotency-Key header is ignored.
func NewServer(
	orderSvc OrderService,
	productSvc ProductService,
	customerSvc CustomerService,
	idem idempotency.Store,
	db Pinger,
	logger *zap.Logger,
	opts Options,
) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}

	return &Server{
		orders:      orderSvc,
		products:    productSvc,
		customers:   customerSvc,
		idempotency: idem,
		db:          db,
		logger:      logger,
		opts:        opts,
	}
}

// Routes serves every resource both at the root and under /api/v1.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(s.logger), middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.respondJSON(w, http.StatusNotFound, envelope{Message: "Route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.respondJSON(w, http.StatusMethodNotAllowed, envelope{Message: "Method not allowed"})
	})

	r.Get("/", s.root)
	r.Get("/healthz", s.health)

	s.mountResources(r)
	r.Route("/api/v1", s.mountResources)

	return r
}

func (s *Server) mountResources(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", s.listOrders)
		r.Post("/", s.createOrder)
		r.Get("/{id}", s.getOrder)
		r.Put("/{id}", s.updateOrder)
		r.Delete("/{id}", s.deleteOrder)
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", s.listProducts)
		r.Post("/", s.createProduct)
		r.Get("/{id}", s.getProduct)
		r.Put("/{id}", s.updateProduct)
		r.Delete("/{id}", s.deleteProduct)
	})

	r.Route("/customers", func(r chi.Router) {
		r.Get("/", s.listCustomers)
		r.Post("/", s.createCustomer)
		r.Get("/{id}", s.getCustomer)
		r.Put("/{id}", s.updateCustomer)
		r.Delete("/{id}", s.deleteCustomer)
	})
}

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"name":    s.opts.ServiceName,
		"version": s.opts.ServiceVersion,
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func idParam(r *http.Request, entity string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("Invalid %s ID", entity)
	}
	return id, nil
}
