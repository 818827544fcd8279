package ordering

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions with no extra payload.
var (
	// ErrEmptyAllocation is returned when no cart line resolves to a product
	// of the target bakery, which would otherwise create an order with zero
	// lines.
	ErrEmptyAllocation = errors.New("no cart line resolves to a valid bakery product")

	// ErrConflict signals a concurrent modification detected at commit time,
	// typically a duplicate payment reference racing the fast-path check.
	// Safe to retry.
	ErrConflict = errors.New("concurrent modification detected")
)

// ValidationError marks client-fixable input problems.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError marks an absent bakery, product or order.
type NotFoundError struct {
	Resource string
	Ref      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Ref)
}

// InsufficientStockError reports which item is short and how many are left,
// so the caller can refresh availability instead of blindly retrying.
type InsufficientStockError struct {
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d",
		e.ProductName, e.Requested, e.Available)
}

// ExternalServiceError wraps a failure of the payment authority or the mail
// provider.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }
