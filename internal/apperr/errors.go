// Package apperr defines the error kinds shared by the study and gamification
// services. Callers wrap them with fmt.Errorf("...: %w", err) and the HTTP layer
// maps them to status codes with errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound: referenced user, document, set or quiz does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAccessDenied: the resource exists but belongs to another user.
	ErrAccessDenied = errors.New("access denied")
	// ErrQuotaExceeded: daily free-tier generation limit reached.
	ErrQuotaExceeded = errors.New("daily limit reached")
	// ErrUpstreamGeneration: the AI service failed or returned malformed content.
	ErrUpstreamGeneration = errors.New("content generation failed")
	// ErrPersistenceConflict: a concurrent update won the race for the same user.
	ErrPersistenceConflict = errors.New("concurrent update conflict")
	// ErrInvalidInput: request values violate the operation's contract.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicate: a unique key (e.g. email) is already taken.
	ErrDuplicate = errors.New("already exists")
)

// QuotaError carries which resource ran out so the message is actionable.
type QuotaError struct {
	Resource string
	Limit    int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("daily %s limit reached (%d per day). Upgrade to Premium for unlimited access or try again tomorrow", e.Resource, e.Limit)
}

func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }

// Invalid builds an ErrInvalidInput with a human-readable reason.
func Invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUpstreamGeneration):
		return http.StatusBadGateway
	case errors.Is(err, ErrPersistenceConflict), errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the client may retry the same request unchanged.
func Retryable(err error) bool {
	return errors.Is(err, ErrUpstreamGeneration) || errors.Is(err, ErrPersistenceConflict)
}
