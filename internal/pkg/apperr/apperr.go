// Package apperr defines the error taxonomy shared by the gateway, cache,
// workflow and HTTP layers. Errors are plain sentinels wrapped with
// fmt.Errorf("...: %w"), so callers classify them with errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation marks malformed or missing input. Raised before any I/O.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a customer, watch, order or attachment that does not exist in the tenant.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateKey marks a unique constraint violation (customer email, order number).
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrPermissionDenied marks a tenant-scope mismatch or an insufficient role.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrConflict marks a lost concurrent status transition or a still-referenced delete.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable marks a network or backend failure. Only reads are safe to retry.
	ErrUnavailable = errors.New("backend unavailable")
)

// Validation builds an ErrValidation with a formatted reason.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound builds an ErrNotFound for the given entity kind and id.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// Conflict builds an ErrConflict with a formatted reason.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// PermissionDenied builds an ErrPermissionDenied with a formatted reason.
func PermissionDenied(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPermissionDenied, fmt.Sprintf(format, args...))
}

// HTTPStatus maps an error to the response code used by the handlers.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateKey), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
