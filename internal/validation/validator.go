// Package validation checks request DTOs and uploaded files before they
// reach the services.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	apierrors "borsapulse/internal/errors"
	"borsapulse/pkg/contracts/domain"
)

// Validator validates structs using `validate` tags and reports field names
// by their json tag.
type Validator struct {
	validate *validator.Validate
}

// New creates a validator with the symbol and isodate tags registered
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterValidation("symbol", isSymbol)
	v.RegisterValidation("isodate", isISODate)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validate: v}
}

// Struct validates s. Failures come back as a single 400 APIError listing
// every invalid field.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierrors.InvalidRequestWithError(err)
	}

	out := make([]apierrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: formatFieldError(fe),
		})
	}
	return apierrors.NewValidationErrors(out)
}

func formatFieldError(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "isodate":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD form", field)
	case "symbol":
		return fmt.Sprintf("%s must be 1-12 letters, digits or dots", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

// isSymbol accepts upper-case ticker symbols such as THYAO or BRK.B
func isSymbol(fl validator.FieldLevel) bool {
	return ValidSymbol(fl.Field().String())
}

// ValidSymbol reports whether s is a well-formed instrument symbol
func ValidSymbol(s string) bool {
	if len(s) < 1 || len(s) > 12 {
		return false
	}
	for _, ch := range s {
		if !((ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '.') {
			return false
		}
	}
	return true
}

func isISODate(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, err := time.Parse(domain.DateLayout, s)
	return err == nil
}
