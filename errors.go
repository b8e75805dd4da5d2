package checkout

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies checkout failures
type ErrorKind string

const (
	ErrKindValidation            ErrorKind = "validation_error"
	ErrKindNetwork               ErrorKind = "network_error"
	ErrKindTimeout               ErrorKind = "timeout"
	ErrKindSessionCreationFailed ErrorKind = "session_creation_failed"
	ErrKindRuntimeLoad           ErrorKind = "runtime_load_error"
	ErrKindMount                 ErrorKind = "mount_error"
)

// User-facing messages. Session-side failures are retryable by re-triggering
// orchestration; runtime-side failures are not retried within the page lifetime.
const (
	MessageLoadFailed = "Could not load payment form."
	MessageInitFailed = "Failed to initialize payment form."
)

// ErrCancelled is returned when a caller cancels an in-flight operation.
// Cancellation is never a user-visible error.
var ErrCancelled = errors.New("checkout: operation cancelled")

// CheckoutError represents a checkout-specific failure
type CheckoutError struct {
	Kind    ErrorKind              `json:"kind"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

func (e *CheckoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CheckoutError) Unwrap() error {
	return e.Err
}

// UserMessage returns the inline message shown for this failure
func (e *CheckoutError) UserMessage() string {
	switch e.Kind {
	case ErrKindRuntimeLoad, ErrKindMount:
		return MessageInitFailed
	default:
		return MessageLoadFailed
	}
}

// Retryable reports whether re-triggering orchestration may succeed
func (e *CheckoutError) Retryable() bool {
	switch e.Kind {
	case ErrKindNetwork, ErrKindTimeout, ErrKindSessionCreationFailed:
		return true
	}
	return false
}

// NewCheckoutError creates a new checkout error
func NewCheckoutError(kind ErrorKind, message string, details map[string]interface{}) *CheckoutError {
	return &CheckoutError{
		Kind:    kind,
		Message: message,
		Details: details,
	}
}

// WrapError creates a checkout error around a cause
func WrapError(kind ErrorKind, message string, err error) *CheckoutError {
	return &CheckoutError{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// KindOf returns the kind of a checkout error, or "" for other errors
func KindOf(err error) ErrorKind {
	var ce *CheckoutError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsCancelled reports whether err stems from caller cancellation
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// UserMessage maps any orchestration failure to one of the two inline messages.
// Errors that are not checkout errors are treated as runtime failures.
func UserMessage(err error) string {
	var ce *CheckoutError
	if errors.As(err, &ce) {
		return ce.UserMessage()
	}
	return MessageInitFailed
}
