package user

import (
	"context"

	"github.com/georgemunganga/watchdealer-backend/internal/modules/tenant"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
	"github.com/google/uuid"
)

type service struct {
	repo Repository
}

// NewService creates a new user service.
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// RegisterUser adds an account to the caller's company. Only admins may do so.
func (s *service) RegisterUser(ctx context.Context, reg Registration) (*User, error) {
	sess, err := tenant.SessionFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !sess.IsAdmin() {
		return nil, apperr.PermissionDenied("only an admin can add users")
	}
	companyID, err := uuid.Parse(string(sess.CompanyID))
	if err != nil {
		return nil, apperr.Validation("invalid company id %q", sess.CompanyID)
	}

	user, err := New(companyID, reg)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *service) GetUser(ctx context.Context, id string) (*User, error) {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetUserByID(ctx, string(companyID), id)
}
