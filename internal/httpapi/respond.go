package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/safar/order-management-api/internal/apperr"
	"go.uber.org/zap"
)

// envelope is the body of every resource response.
type envelope struct {
	Success bool   `json:"success"`
	Count   *int   `json:"count,omitempty"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}

func (s *Server) respondData(w http.ResponseWriter, status int, data any) {
	s.respondJSON(w, status, envelope{Success: true, Data: data})
}

func (s *Server) respondList(w http.ResponseWriter, data any, count int) {
	s.respondJSON(w, http.StatusOK, envelope{Success: true, Count: &count, Data: data})
}

func (s *Server) respondDeleted(w http.ResponseWriter, entity string) {
	s.respondJSON(w, http.StatusOK, envelope{
		Success: true,
		Data:    struct{}{},
		Message: entity + " deleted successfully",
	})
}

// respondError maps err to a status by its apperr kind. Validation failures
// carry their text in "error", other client errors in "message".
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	msg := apperr.Message(err)

	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		s.respondJSON(w, http.StatusBadRequest, envelope{Error: msg})
	case apperr.KindInsufficientStock:
		s.respondJSON(w, http.StatusBadRequest, envelope{Message: msg})
	case apperr.KindReferenceNotFound, apperr.KindOrderNotFound,
		apperr.KindProductNotFound, apperr.KindCustomerNotFound:
		s.respondJSON(w, http.StatusNotFound, envelope{Message: msg})
	case apperr.KindConflict:
		s.respondJSON(w, http.StatusConflict, envelope{Message: msg})
	default:
		s.logger.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		s.respondJSON(w, http.StatusInternalServerError, envelope{
			Message: "Internal Server Error",
			Error:   err.Error(),
		})
	}
}
