package database

import (
	"errors"

	"github.com/lib/pq"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

// SQLSTATE codes the store inspects.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeNotNullViolation     = "23502"
	codeCheckViolation       = "23514"
	codeNumericOutOfRange    = "22003"
)

func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeSerializationFailure:
			return ErrorClassSerialization
		case codeDeadlockDetected:
			return ErrorClassDeadlock
		case codeLockNotAvailable:
			return ErrorClassTransient
		case codeUniqueViolation, codeForeignKeyViolation, codeNotNullViolation, codeCheckViolation, codeNumericOutOfRange:
			return ErrorClassPermanent
		}
	}

	return ErrorClassPermanent
}

func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

// IsCheckViolation reports whether err is a CHECK constraint failure, which
// the ledger hits when a stock adjustment would drive qty_on_hand negative.
func IsCheckViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeCheckViolation
}

// IsOutOfRange reports whether a value did not fit its column, such as a
// price or order total overflowing its NUMERIC precision.
func IsOutOfRange(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeNumericOutOfRange
}

func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeForeignKeyViolation
}

var (
	ErrCustomerNotFound     = errors.New("customer not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrOptimisticLockFailed = errors.New("optimistic lock failed")
)
