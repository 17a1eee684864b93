// Package errors defines the error taxonomy shared by the junction core.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes. A DomainError matches another under errors.Is when the codes agree.
const (
	CodeContractViolation = "CONTRACT_VIOLATION"
	CodeProtocol          = "PROTOCOL_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeAlreadyBound      = "ALREADY_BOUND"
	CodeNotBound          = "NOT_BOUND"
	CodeTransport         = "TRANSPORT_FAILURE"
	CodeMisconfigured     = "MISCONFIGURED"
)

// DomainError represents errors in the domain logic
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError carrying the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Base domain errors. Wrap them with NewDomainError or Violationf rather than
// returning them directly so callers get context.
var (
	ErrContractViolation = &DomainError{
		Code:    CodeContractViolation,
		Message: "contract violation",
	}

	ErrProtocol = &DomainError{
		Code:    CodeProtocol,
		Message: "protocol error",
	}

	ErrNotFound = &DomainError{
		Code:    CodeNotFound,
		Message: "not found",
	}

	ErrAlreadyBound = &DomainError{
		Code:    CodeAlreadyBound,
		Message: "key already bound",
	}

	ErrNotBound = &DomainError{
		Code:    CodeNotBound,
		Message: "key not bound",
	}

	ErrTransport = &DomainError{
		Code:    CodeTransport,
		Message: "transport failure",
	}

	ErrMisconfigured = &DomainError{
		Code:    CodeMisconfigured,
		Message: "deployment misconfigured",
	}
)

// NewDomainError creates a new domain error with context
func NewDomainError(base *DomainError, err error) error {
	return &DomainError{
		Code:    base.Code,
		Message: base.Message,
		Err:     err,
	}
}

// Violationf returns a contract violation with a formatted description.
func Violationf(format string, args ...any) error {
	return NewDomainError(ErrContractViolation, fmt.Errorf(format, args...))
}

// Protocolf returns a protocol error with a formatted description.
func Protocolf(format string, args ...any) error {
	return NewDomainError(ErrProtocol, fmt.Errorf(format, args...))
}

// IsContractViolation reports whether err is, or wraps, a contract violation.
func IsContractViolation(err error) bool {
	return stderrors.Is(err, ErrContractViolation)
}

// CodeOf returns the code of the outermost DomainError in err's chain, or "".
func CodeOf(err error) string {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}
