package market

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateInput runs struct tag validation and reports the first failure.
func validateInput(in interface{}) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ValidationError{Field: fe.Field(), Message: describe(fe)}
	}
	return &ValidationError{Field: "input", Message: err.Error()}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + fe.Param()
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return fmt.Sprintf("failed on '%s'", fe.Tag())
	}
}

func requirePositive(field string, d decimal.Decimal) error {
	if !d.IsPositive() {
		return &ValidationError{Field: field, Message: "must be greater than 0"}
	}
	return nil
}

// maxMoney bounds every money column, stored as decimal(12,2).
var maxMoney = decimal.New(1, 10)

// requireMoney checks d is positive and fits a money column exactly.
func requireMoney(field string, d decimal.Decimal) error {
	if err := requirePositive(field, d); err != nil {
		return err
	}
	return checkMoneyScale(field, d)
}

func checkMoneyScale(field string, d decimal.Decimal) error {
	if !d.Equal(d.Round(2)) {
		return &ValidationError{Field: field, Message: "must have at most 2 decimal places"}
	}
	if d.Abs().GreaterThanOrEqual(maxMoney) {
		return &ValidationError{Field: field, Message: "must be less than " + maxMoney.String()}
	}
	return nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
