// Package apperr defines the error kinds the API reports to clients.
//
// Business failures carry a Kind and a human readable message; anything that
// cannot be classified is KindUnexpected.
package apperr

import (
	"errors"
	"fmt"

	"github.com/safar/order-management-api/internal/database"
)

type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindReferenceNotFound
	KindInsufficientStock
	KindOrderNotFound
	KindProductNotFound
	KindCustomerNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindReferenceNotFound:
		return "ReferenceNotFound"
	case KindInsufficientStock:
		return "InsufficientStock"
	case KindOrderNotFound:
		return "OrderNotFound"
	case KindProductNotFound:
		return "ProductNotFound"
	case KindCustomerNotFound:
		return "CustomerNotFound"
	case KindConflict:
		return "Conflict"
	default:
		return "UnexpectedFailure"
	}
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

// KindOf reports the kind of err. Bare store sentinels are mapped so callers
// that forget to wrap still get the right status.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnexpected
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}

	switch {
	case errors.Is(err, database.ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, database.ErrOrderNotFound):
		return KindOrderNotFound
	case errors.Is(err, database.ErrProductNotFound):
		return KindProductNotFound
	case errors.Is(err, database.ErrCustomerNotFound):
		return KindCustomerNotFound
	case errors.Is(err, database.ErrOptimisticLockFailed):
		return KindConflict
	case database.IsCheckViolation(err), database.IsOutOfRange(err):
		return KindValidation
	case database.IsForeignKeyViolation(err):
		return KindReferenceNotFound
	}

	return KindUnexpected
}

// Message returns the client facing text for err.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Error()
	}

	switch KindOf(err) {
	case KindOrderNotFound:
		return "Order not found"
	case KindProductNotFound:
		return "Product not found"
	case KindCustomerNotFound:
		return "Customer not found"
	}
	if database.IsOutOfRange(err) {
		return "Numeric value out of range"
	}

	return err.Error()
}
