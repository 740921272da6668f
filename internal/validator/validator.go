package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/apperrors"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// Get returns a singleton validator instance
func Get() *validator.Validate {
	once.Do(func() {
		validate = validator.New()

		// Report JSON field names instead of struct field names
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate validates a struct and returns an error wrapping apperrors.ErrValidation
func Validate(s interface{}) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, fmt.Sprintf("field '%s' %s", e.Field(), getErrorMessage(e)))
	}

	return fmt.Errorf("%w: %s", apperrors.ErrValidation, strings.Join(messages, "; "))
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	if err := Get().Var(field, tag); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	return nil
}

// getErrorMessage returns a user-friendly error message for a validation tag
func getErrorMessage(e validator.FieldError) string {
	numeric := false
	switch e.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		numeric = true
	}

	switch e.Tag() {
	case "required":
		return "is required"
	case "uuid", "uuid4":
		return "must be a valid UUID"
	case "min":
		if numeric {
			return fmt.Sprintf("must be at least %s", e.Param())
		}
		return fmt.Sprintf("must be at least %s characters long", e.Param())
	case "max":
		if numeric {
			return fmt.Sprintf("must not exceed %s", e.Param())
		}
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", e.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	default:
		return fmt.Sprintf("failed validation tag '%s' with value '%v'", e.Tag(), e.Value())
	}
}
