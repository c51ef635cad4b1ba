package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"gatekeeper/internal/apperr"
)

var (
	personNamePattern = regexp.MustCompile(`^[\p{L} ]+$`)
	phonePattern      = regexp.MustCompile(`^[0-9+\-()]{10,15}$`)
	namePolicy        = bluemonday.StrictPolicy()
)

type inputValidator struct {
	v *validator.Validate
}

func newInputValidator() *inputValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return personNamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return &inputValidator{v: v}
}

// Struct validates in and returns an apperr validation error listing every
// failed field.
func (iv *inputValidator) Struct(in any) error {
	err := iv.v.Struct(in)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return apperr.Validation("Invalid request payload")
	}

	details := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		details = append(details, fieldMessage(fe))
	}
	return apperr.Validation(msgValidationFailed, details...)
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "Invalid email format"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "eqfield":
		return "Passwords do not match"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "personname":
		return fmt.Sprintf("%s can only contain letters and spaces", field)
	case "phone":
		return "Invalid phone number"
	default:
		return fmt.Sprintf("invalid %s", field)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// sanitizeName strips markup and collapses whitespace.
func sanitizeName(name string) string {
	return strings.Join(strings.Fields(namePolicy.Sanitize(name)), " ")
}

func normalizePhone(phone *string) *string {
	if phone == nil {
		return nil
	}
	p := strings.Join(strings.Fields(*phone), "")
	return &p
}
