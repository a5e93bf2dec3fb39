package gateway

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
	"github.com/lib/pq"
)

var classified = []error{
	apperr.ErrValidation,
	apperr.ErrNotFound,
	apperr.ErrDuplicateKey,
	apperr.ErrPermissionDenied,
	apperr.ErrConflict,
	apperr.ErrUnavailable,
}

// translate maps driver and database errors onto the apperr taxonomy.
func translate(kind Kind, op, id string, err error) error {
	if err == nil {
		return nil
	}
	for _, c := range classified {
		if errors.Is(err, c) {
			return err
		}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(string(kind), id)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505":
			return fmt.Errorf("%s %s: %w", kind, pqErr.Constraint, apperr.ErrDuplicateKey)
		case pqErr.Code == "23503" && op == opDelete:
			return apperr.Conflict("%s %s is still referenced", kind, id)
		case pqErr.Code == "23503":
			return fmt.Errorf("%s references a record outside this company: %w", kind, apperr.ErrNotFound)
		case pqErr.Code == "23514", pqErr.Code == "22P02":
			return apperr.Validation("%s", pqErr.Message)
		case pqErr.Code == "42501":
			return apperr.PermissionDenied("%s", pqErr.Message)
		case pqErr.Code.Class() == "08",
			pqErr.Code == "57P01", pqErr.Code == "57P02", pqErr.Code == "57P03",
			pqErr.Code == "53300":
			return fmt.Errorf("%s %s: %v: %w", kind, op, err, apperr.ErrUnavailable)
		}
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return fmt.Errorf("%s %s: %v: %w", kind, op, err, apperr.ErrUnavailable)
	}
	return fmt.Errorf("%s %s: %w", kind, op, err)
}

// outcome labels an error for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrValidation):
		return "validation"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrDuplicateKey):
		return "duplicate_key"
	case errors.Is(err, apperr.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, apperr.ErrConflict):
		return "conflict"
	case errors.Is(err, apperr.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
