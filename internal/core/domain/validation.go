// Package domain provides the value objects of the junction core and their
// validation, built on go-playground/validator/v10.
package domain

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Validator wraps go-playground/validator with junction-specific custom validators.
type Validator struct {
	validator *validator.Validate
}

// NewValidator creates a new validation instance with the custom tags registered.
func NewValidator() *Validator {
	validate := validator.New()

	_ = validate.RegisterValidation("nospace", validateNoSpace)
	_ = validate.RegisterValidation("port_uri", validatePortURI)
	_ = validate.RegisterValidation("listen_addr", validateListenAddr)
	_ = validate.RegisterValidation("hostport", validateHostPort)

	return &Validator{
		validator: validate,
	}
}

// Validate validates a struct.
func (v *Validator) Validate(s interface{}) error {
	return v.validator.Struct(s)
}

// ValidateVar validates a single variable using the specified tag.
func (v *Validator) ValidateVar(field interface{}, tag string) error {
	return v.validator.Var(field, tag)
}

func validateNoSpace(fl validator.FieldLevel) bool {
	return strings.IndexFunc(fl.Field().String(), unicode.IsSpace) < 0
}

func validatePortURI(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true // Empty values handled by 'required' tag
	}
	_, err := NewPortURI(s)
	return err == nil
}

// listen_addr accepts "host:port" and ":port"; port 0 asks the kernel for one.
func validateListenAddr(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true // Empty values handled by 'required' tag
	}
	_, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return false
	}
	port, err := strconv.Atoi(portStr)
	return err == nil && port >= 0 && port <= 65535
}

// hostport requires a dialable "host:port".
func validateHostPort(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true // Empty values handled by 'required' tag
	}
	_, err := ParseLocation(s)
	return err == nil
}

// ValidationError wraps go-playground validator errors with additional context.
type ValidationError struct {
	Field   string      `json:"field"`
	Tag     string      `json:"tag"`
	Value   interface{} `json:"value"`
	Message string      `json:"message"`
}

// Error implements the error interface.
func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s", ve.Field, ve.Message)
}

// ConvertValidationErrors converts go-playground validation errors to our custom format.
func ConvertValidationErrors(err error) []ValidationError {
	var out []ValidationError

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, fe := range validationErrors {
			out = append(out, ValidationError{
				Field:   fe.Namespace(),
				Tag:     fe.Tag(),
				Value:   fe.Value(),
				Message: getCustomErrorMessage(fe),
			})
		}
	}

	return out
}

// getCustomErrorMessage provides human-readable error messages for validation failures.
func getCustomErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "unique":
		return "must not contain duplicates"
	case "nospace":
		return "must not contain whitespace"
	case "port_uri":
		return "must be a valid port URI"
	case "listen_addr":
		return "must be a listen address such as :7500 or 0.0.0.0:7500"
	case "hostport":
		return "must be a host:port address"
	default:
		return fmt.Sprintf("validation failed for tag '%s'", fe.Tag())
	}
}

// GlobalValidator is the global validator instance for convenience.
var GlobalValidator = NewValidator()

// ValidateStruct is a convenience function using the global validator.
func ValidateStruct(s interface{}) error {
	return GlobalValidator.Validate(s)
}
