// Package directory manages the reference data orders point at: products and
// customers. Inputs are checked with struct tags before anything is written.
package directory

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/safar/order-management-api/internal/apperr"
	"github.com/shopspring/decimal"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Compare decimals numerically so gte/lte tags work on prices.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	return v
}

// check runs the validator and turns the first failure into a
// KindValidation error with a readable message.
func check(v *validator.Validate, input any) error {
	err := v.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.Validation("invalid input: %v", err)
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return apperr.Validation("%s is required", fe.Field())
	case "gte":
		return apperr.Validation("%s must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return apperr.Validation("%s must be at most %s", fe.Field(), fe.Param())
	case "min":
		return apperr.Validation("%s must not be empty", fe.Field())
	case "max":
		return apperr.Validation("%s must be at most %s characters", fe.Field(), fe.Param())
	}

	return apperr.Validation("%s is invalid", fe.Field())
}

func retryConflict(entity string, attempts int, err error) error {
	return apperr.Wrap(apperr.KindConflict, err,
		"%s was modified concurrently, gave up after %d attempts", entity, attempts)
}

func notFound(kind apperr.Kind, entity string, err error) error {
	return apperr.Wrap(kind, err, "%s not found", entity)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
