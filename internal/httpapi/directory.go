package httpapi

import (
	"net/http"

	"github.com/safar/order-management-api/internal/directory"
)

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	list, err := s.products.List(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondList(w, list, len(list))
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "product")
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	product, err := s.products.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondData(w, http.StatusOK, product)
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	var input directory.ProductInput
	if err := decodeBody(r, &input); err != nil {
		s.respondError(w, r, err)
		return
	}

	product, err := s.products.Create(r.Context(), input)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondData(w, http.StatusCreated, product)
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "product")
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var patch directory.ProductPatch
	if err := decodeBody(r, &patch); err != nil {
		s.respondError(w, r, err)
		return
	}

	product, err := s.products.Update(r.Context(), id, patch)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondData(w, http.StatusOK, product)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "product")
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := s.products.Delete(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondDeleted(w, "Product")
}

func (s *Server) listCustomers(w http.ResponseWriter, r *http.Request) {
	list, err := s.customers.List(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondList(w, list, len(list))
}

func (s *Server) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "customer")
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	customer, err := s.customers.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondData(w, http.StatusOK, customer)
}

func (s *Server) createCustomer(w http.ResponseWriter, r *http.Request) {
	var input directory.CustomerInput
	if err := decodeBody(r, &input); err != nil {
		s.respondError(w, r, err)
		return
	}

	customer, err := s.customers.Create(r.Context(), input)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondData(w, http.StatusCreated, customer)
}

func (s *Server) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "customer")
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var patch directory.CustomerPatch
	if err := decodeBody(r, &patch); err != nil {
		s.respondError(w, r, err)
		return
	}

	customer, err := s.customers.Update(r.Context(), id, patch)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondData(w, http.StatusOK, customer)
}

func (s *Server) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "customer")
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := s.customers.Delete(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondDeleted(w, "Customer")
}
