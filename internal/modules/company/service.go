package company

import (
	"context"
	"strings"

	"github.com/georgemunganga/watchdealer-backend/internal/modules/tenant"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/user"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Onboarding is the sign-up of a new dealer business and its first admin.
type Onboarding struct {
	Name  string            `json:"name"`
	Owner user.Registration `json:"owner"`
}

type Service interface {
	Onboard(ctx context.Context, req Onboarding) (*Company, *user.User, error)
	GetCompany(ctx context.Context) (*Company, error)
}

type service struct {
	db *sqlx.DB
}

func NewService(db *sqlx.DB) Service {
	return &service{db: db}
}

// Onboard creates the company and its admin account in one transaction.
func (s *service) Onboard(ctx context.Context, req Onboarding) (*Company, *user.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, nil, apperr.Validation("name is required")
	}
	owner := req.Owner
	owner.Role = tenant.RoleAdmin
	// Validate the owner before opening a transaction; the company id is filled in below.
	admin, err := user.New(uuid.Nil, owner)
	if err != nil {
		return nil, nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	company := &Company{Name: name}
	if err := NewPostgresRepository(tx).CreateCompany(ctx, company); err != nil {
		return nil, nil, err
	}
	admin.CompanyID = company.ID
	if err := user.NewPostgresRepository(tx).CreateUser(ctx, admin); err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}

	logger.FromContext(ctx).Info("Company onboarded",
		zap.String("company_id", company.ID.String()), zap.String("admin_id", admin.ID.String()))
	return company, admin, nil
}

// GetCompany returns the caller's company.
func (s *service) GetCompany(ctx context.Context) (*Company, error) {
	id, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return NewPostgresRepository(s.db).GetCompany(ctx, string(id))
}
