// Package validation checks request DTOs with go-playground/validator and
// turns failures into client-facing validation errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"carbonmarket-backend/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/shopspring/decimal"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator returns the shared validator with the decimal rules registered.
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		// Decimals are validated through their string form.
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return d.String()
			}
			return nil
		}, decimal.Decimal{})
		if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
			panic(err)
		}
		mustRegister(v, "decimal_gt", func(d, p decimal.Decimal) bool { return d.GreaterThan(p) })
		mustRegister(v, "decimal_gte", func(d, p decimal.Decimal) bool { return d.GreaterThanOrEqual(p) })
		mustRegister(v, "decimal_lte", func(d, p decimal.Decimal) bool { return d.LessThanOrEqual(p) })
		mustRegister(v, "decimal_lt", func(d, p decimal.Decimal) bool { return d.LessThan(p) })
		// decimal_scale=n allows at most n places after the point; trailing zeros don't count.
		mustRegister(v, "decimal_scale", func(d, p decimal.Decimal) bool { return d.Equal(d.Truncate(int32(p.IntPart()))) })
		instance = v
	})
	return instance
}

func mustRegister(v *validator.Validate, tag string, cmp func(d, p decimal.Decimal) bool) {
	err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		if err != nil {
			return false
		}
		p, err := decimal.NewFromString(fl.Param())
		if err != nil {
			return false
		}
		return cmp(d, p)
	})
	if err != nil {
		panic(err)
	}
}

// Struct validates s and returns a *domain.Error of kind ErrValidation
// describing the first failing field.
func Struct(s interface{}) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return domain.Validation("%s", describe(fieldErrs[0].Field(), fieldErrs[0]))
	}
	return domain.Validation("invalid request: %v", err)
}

// Var validates a single value against tag, naming it name in the error.
func Var(name string, value interface{}, tag string) error {
	err := Validator().Var(value, tag)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return domain.Validation("%s", describe(name, fieldErrs[0]))
	}
	return domain.Validation("invalid %s: %v", name, err)
}

func describe(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", field)
	case "decimal_gt", "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "decimal_gte", "gte", "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "decimal_lte", "lte", "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "decimal_lt", "lt":
		return fmt.Sprintf("%s must be less than %s", field, fe.Param())
	case "decimal_scale":
		return fmt.Sprintf("%s must have at most %s decimal places", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
