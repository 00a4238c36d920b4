package domain

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"pos-backoffice/internal/apperr"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("mailbox", func(fl validator.FieldLevel) bool {
		return IsValidEmail(fl.Field().String())
	})
	_ = v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		for _, r := range s {
			if r < '0' || r > '9' {
				return false
			}
		}
		return s != ""
	})

	return v
}

// IsValidEmail applies the account email rule.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidateStruct checks v's validate tags and returns a validation error
// naming entity and the offending fields.
func ValidateStruct(entity string, v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	if fields := FormatValidationErrors(err); len(fields) > 0 {
		return apperr.Validation("invalid "+entity, fields...)
	}
	return apperr.Validation("invalid " + entity + ": " + err.Error())
}

// FormatValidationErrors converts validator errors to field errors.
func FormatValidationErrors(err error) []apperr.FieldError {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}

	fields := make([]apperr.FieldError, 0, len(validationErrors))
	for _, e := range validationErrors {
		fields = append(fields, apperr.FieldError{
			Field:   e.Field(),
			Message: fieldMessage(e),
		})
	}
	return fields
}

func fieldMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "mailbox", "email":
		return "Invalid email format"
	case "len":
		return "Must be exactly " + e.Param() + " characters"
	case "digits":
		return "Must contain only digits"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "min":
		return "Value is too short"
	case "max":
		return "Value is too long"
	case "gte":
		return "Value must be greater than or equal to " + e.Param()
	case "lte":
		return "Value must be less than or equal to " + e.Param()
	case "gt":
		return "Value must be greater than " + e.Param()
	case "lt":
		return "Value must be less than " + e.Param()
	default:
		return "Invalid value"
	}
}
