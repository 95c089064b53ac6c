package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind enumerates the failure classes a purchase or credits
// operation can surface to its caller.
type ErrorKind string

const (
	KindBadRequest          ErrorKind = "bad_request"
	KindForbidden           ErrorKind = "forbidden"
	KindNotFound            ErrorKind = "not_found"
	KindUnsupported         ErrorKind = "unsupported"
	KindInvalidPrice        ErrorKind = "invalid_price"
	KindPlanExpired         ErrorKind = "plan_expired"
	KindPlanNotYetOpen      ErrorKind = "plan_not_yet_open"
	KindMissingShippingInfo ErrorKind = "missing_shipping_info"
	KindPaymentFailed       ErrorKind = "payment_failed"
	KindInsufficientCredits ErrorKind = "insufficient_credits"
	KindPersistence         ErrorKind = "persistence_error"
	KindLedgerUnavailable   ErrorKind = "ledger_unavailable"
	KindInternal            ErrorKind = "internal"
)

// APIError is the typed failure carried across component boundaries.
// Every orchestrator transition returns one of these instead of an
// untyped error so the HTTP layer can map it to a status code.
type APIError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped error
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is matches two APIErrors by kind.
func (e *APIError) Is(target error) bool {
	var other *APIError
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// HTTPStatus maps the error kind to the status code the HTTP layer responds with.
func (e *APIError) HTTPStatus() int {
	switch e.Kind {
	case KindBadRequest, KindUnsupported, KindInvalidPrice,
		KindPlanExpired, KindPlanNotYetOpen, KindMissingShippingInfo:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindPaymentFailed, KindInsufficientCredits:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// E creates a new APIError.
func E(kind ErrorKind, message string) *APIError {
	return &APIError{Kind: kind, Message: message}
}

// Wrap creates a new APIError wrapping a cause.
func Wrap(kind ErrorKind, message string, err error) *APIError {
	return &APIError{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the ErrorKind from an error chain; unknown errors
// are classified as internal.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindInternal
}

// UserMessage returns the human-readable message for an error chain.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return "Internal server error"
}
