// Package domainerrors defines the coded error type used across component
// boundaries. Services translate infrastructure sentinels into coded errors;
// the transport layer maps codes to HTTP statuses. The original cause is
// always preserved via Unwrap so outer resilience wrappers can inspect it.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a failure for callers that must decide between retrying,
// surfacing, or rejecting.
type Code string

const (
	// CodeValidation covers malformed or duplicate requests and invalid
	// level/status strings.
	CodeValidation Code = "validation"

	// CodeNotFound covers missing records, sessions, and documents.
	CodeNotFound Code = "not_found"

	// CodeConflict covers state conflicts such as concurrent updates.
	CodeConflict Code = "conflict"

	// CodeDatabase covers persistence failures.
	CodeDatabase Code = "database"

	// CodeThirdParty covers verification vendor HTTP failures.
	CodeThirdParty Code = "third_party_unavailable"

	// CodeSecurity covers unauthorized access, signature failures, and
	// decryption failures. Details behind this code never reach user-facing
	// messages.
	CodeSecurity Code = "security"

	// CodeConfiguration covers missing secrets or settings.
	CodeConfiguration Code = "configuration"

	// CodeInternal is the fallback for unexpected failures.
	CodeInternal Code = "internal"
)

// Error carries a code, a caller-safe message, and the wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err yields nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err or anything it wraps carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the caller-safe message from err. Uncoded errors map to
// a generic message so internal detail does not leak.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
