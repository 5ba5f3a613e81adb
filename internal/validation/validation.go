package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/avstrong/hotel/internal/apperr"
	"github.com/avstrong/hotel/internal/ledger"
	"github.com/go-playground/validator/v10"
)

var (
	validate = newValidator()
	index    = regexp.MustCompile(`\[\d+\]`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Field names follow the JSON the client sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		if name == "" {
			return f.Name
		}

		return name
	})

	if err := v.RegisterValidation("payment_method", validatePaymentMethod); err != nil {
		panic(err)
	}

	return v
}

func validatePaymentMethod(fl validator.FieldLevel) bool {
	return ledger.Method(fl.Field().String()).Valid()
}

// Struct checks the validate tags of s and reports failures as an *apperr.ValidationError
// keyed by JSON path, with slice indexes dropped ("services.quantity").
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate %T: %w", s, err)
	}

	inputErr := apperr.NewValidationError()

	for _, fe := range fieldErrs {
		inputErr.Add(fieldName(fe), message(fe))
	}

	return inputErr
}

// Merge copies the fields of a validation error into into; other errors are ignored.
func Merge(into *apperr.ValidationError, err error) {
	ve := apperr.IsValidationError(err)
	if ve == nil {
		return
	}

	for field, msgs := range ve.Fields() {
		for _, msg := range msgs {
			into.Add(field, msg)
		}
	}
}

func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()

	if _, rest, ok := strings.Cut(ns, "."); ok {
		ns = rest
	}

	return index.ReplaceAllString(ns, "")
}

func message(fe validator.FieldError) string {
	name := fe.Field()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("provide %s", name)
	case "email":
		return "provide valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "payment_method":
		return "unknown payment method"
	default:
		return fmt.Sprintf("%s failed %s", name, fe.Tag())
	}
}
