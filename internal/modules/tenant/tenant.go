// Package tenant resolves the acting company for a request. Every entity
// read or write is scoped by the ID it returns; there is no fallback tenant.
package tenant

import (
	"context"
	"fmt"

	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
)

// ID is the opaque, stable company identifier.
type ID string

// Role is a staff member's role within their company.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// ErrNoTenantResolved is returned when the session carries no company claim.
var ErrNoTenantResolved = fmt.Errorf("no tenant resolved for session: %w", apperr.ErrPermissionDenied)

// Session is the authenticated caller as seen by the core.
type Session struct {
	CompanyID ID
	Subject   string
	Role      Role
}

// IsAdmin reports whether the caller may perform administrative corrections.
func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

type contextKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// SessionFromContext returns the session installed by the middleware.
func SessionFromContext(ctx context.Context) (Session, error) {
	s, ok := ctx.Value(contextKey{}).(Session)
	if !ok || s.CompanyID == "" {
		return Session{}, ErrNoTenantResolved
	}
	return s, nil
}

// FromContext returns the current tenant, or ErrNoTenantResolved.
func FromContext(ctx context.Context) (ID, error) {
	s, err := SessionFromContext(ctx)
	if err != nil {
		return "", err
	}
	return s.CompanyID, nil
}

// Require fails with ErrPermissionDenied unless ctx belongs to want.
func Require(ctx context.Context, want ID) error {
	got, err := FromContext(ctx)
	if err != nil {
		return err
	}
	if got != want {
		return apperr.PermissionDenied("session tenant %s cannot act on tenant %s", got, want)
	}
	return nil
}
