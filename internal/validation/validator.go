// Package validation wraps go-playground/validator with the rules the bot's inputs need.
package validation

import (
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"reflect"
	"strings"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	validate.RegisterValidation("money", validateMoney)
	validate.RegisterValidation("percent", validatePercent)
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("label"); name != "" {
			return name
		}
		return strings.ToLower(f.Name)
	})
}

// decimalValue lets the validator see a decimal as a float for comparisons.
func decimalValue(v reflect.Value) interface{} {
	if d, ok := v.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

func validateMoney(fl validator.FieldLevel) bool {
	return fl.Field().Float() >= 0
}

func validatePercent(fl validator.FieldLevel) bool {
	f := fl.Field().Float()
	return f >= 0 && f <= 100
}

// Error is a user-facing validation failure.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// Errorf builds an *Error.
func Errorf(format string, args ...any) error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Struct validates s and converts failures into one *Error listing every field.
func Struct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, message(e))
	}
	return &Error{Message: strings.Join(msgs, "; ")}
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", e.Field(), e.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", e.Field(), e.Param())
	case "money":
		return fmt.Sprintf("%s must be a non-negative amount", e.Field())
	case "percent":
		return fmt.Sprintf("%s must be between 0 and 100", e.Field())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", e.Field())
	default:
		return fmt.Sprintf("%s is invalid", e.Field())
	}
}
