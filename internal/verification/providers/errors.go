package providers

import (
	"errors"
	"fmt"
)

// ErrorCategory defines the normalized vendor failure taxonomy.
type ErrorCategory string

const (
	// ErrorTimeout indicates the vendor took too long to respond.
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorBadData indicates the vendor returned invalid/malformed data.
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorAuthentication indicates credential or permission issues.
	ErrorAuthentication ErrorCategory = "authentication"

	// ErrorVendorOutage indicates the vendor is unavailable.
	ErrorVendorOutage ErrorCategory = "vendor_outage"

	// ErrorNotFound indicates the requested applicant/session doesn't exist.
	ErrorNotFound ErrorCategory = "not_found"

	// ErrorInternal indicates an unexpected internal error.
	ErrorInternal ErrorCategory = "internal"
)

// AdapterError wraps vendor failures with normalized categorization so the
// orchestrator and any outer retry policy can discriminate without knowing
// vendor specifics.
type AdapterError struct {
	Category   ErrorCategory
	Adapter    string
	Message    string
	Underlying error
	Retryable  bool
}

func (e *AdapterError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("adapter %s [%s]: %s: %v", e.Adapter, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("adapter %s [%s]: %s", e.Adapter, e.Category, e.Message)
}

func (e *AdapterError) Unwrap() error {
	return e.Underlying
}

// NewAdapterError creates a normalized adapter error. Timeouts and outages
// are marked retryable; everything else is not.
func NewAdapterError(category ErrorCategory, adapter, message string, underlying error) *AdapterError {
	return &AdapterError{
		Category:   category,
		Adapter:    adapter,
		Message:    message,
		Underlying: underlying,
		Retryable:  category == ErrorTimeout || category == ErrorVendorOutage,
	}
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error.
func GetCategory(err error) ErrorCategory {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Category
	}
	return ErrorInternal
}

// Sentinel errors for routing failures.
var (
	ErrAdapterNotFound     = errors.New("adapter not found")
	ErrNoAdaptersAvailable = errors.New("no adapters available")
)
