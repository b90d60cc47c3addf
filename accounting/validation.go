package accounting

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Decimal places accepted for each kind of number. They match the widest
// column that stores them (NUMERIC(14,2) amounts, NUMERIC(6,3) percents).
const (
	MoneyScale    = 2
	quantityScale = 3
	percentScale  = 3
)

// newValidator builds the validator used for all engine input. Decimal and
// Date fields reach the tags as strings; the money, quantity and percent
// tags parse them back and check sign and scale.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		d, ok := f.Interface().(decimal.Decimal)
		if !ok {
			return nil
		}
		return d.String()
	}, decimal.Decimal{})

	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		d, ok := f.Interface().(Date)
		if !ok {
			return nil
		}
		return d.String()
	}, Date{})

	mustRegister(v, "money", decimalRule(func(d decimal.Decimal) bool {
		return !d.IsNegative() && fitsScale(d, MoneyScale)
	}))
	mustRegister(v, "quantity", decimalRule(func(d decimal.Decimal) bool {
		return d.IsPositive() && fitsScale(d, quantityScale)
	}))
	mustRegister(v, "percent", decimalRule(func(d decimal.Decimal) bool {
		return !d.IsNegative() && d.LessThanOrEqual(hundred) && fitsScale(d, percentScale)
	}))

	v.RegisterStructValidation(validateAddresses, InvoiceInput{})
	return v
}

var hundred = decimal.NewFromInt(100)

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// decimalRule adapts check to a field holding a decimal's string form.
func decimalRule(check func(decimal.Decimal) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && check(d)
	}
}

// fitsScale reports whether d has no non-zero digit past places.
func fitsScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}

// validateAmount is the manual-entry counterpart of the money tag.
func validateAmount(field string, m Money) error {
	if m.IsNegative() {
		return &ValidationError{Field: field, Message: "amounts cannot be negative"}
	}
	if !fitsScale(m, MoneyScale) {
		return &ValidationError{Field: field, Message: fmt.Sprintf("amounts have at most %d decimal places", MoneyScale)}
	}
	return nil
}

// validateAddresses enforces the address fields an invoice cannot be
// printed without.
func validateAddresses(sl validator.StructLevel) {
	in := sl.Current().Interface().(InvoiceInput)
	if in.BillFrom.Name == "" {
		sl.ReportError(in.BillFrom.Name, "billFrom.name", "Name", "required", "")
	}
	if in.BillFrom.StreetAddress == "" {
		sl.ReportError(in.BillFrom.StreetAddress, "billFrom.streetAddress", "StreetAddress", "required", "")
	}
	if in.BillTo.StreetAddress == "" {
		sl.ReportError(in.BillTo.StreetAddress, "billTo.streetAddress", "StreetAddress", "required", "")
	}
}

// validationError turns the validator's first complaint into a
// *ValidationError naming the JSON field.
func validationError(err error) error {
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return &ValidationError{Message: err.Error()}
	}

	fe := ve[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	return &ValidationError{Field: field, Message: describe(fe)}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("needs at least %s entries", fe.Param())
	case "money":
		return fmt.Sprintf("must be a non-negative amount with at most %d decimal places", MoneyScale)
	case "quantity":
		return fmt.Sprintf("must be positive with at most %d decimal places", quantityScale)
	case "percent":
		return fmt.Sprintf("must be between 0 and 100 with at most %d decimal places", percentScale)
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
