package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const columns = `id, company_id, email, password_hash, first_name, last_name, role, created_at, updated_at`

type postgresRepository struct {
	db sqlx.ExtContext
}

// NewPostgresRepository creates a PostgreSQL user repository over a DB or a Tx.
func NewPostgresRepository(db sqlx.ExtContext) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, company_id, email, password_hash, first_name, last_name, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := sqlx.GetContext(ctx, r.db, user, query,
		user.ID, user.CompanyID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Role)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("email %s is already registered: %w", user.Email, apperr.ErrDuplicateKey)
	}
	return err
}

func (r *postgresRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	user := &User{}
	query := `SELECT ` + columns + ` FROM users WHERE email = $1`
	err := sqlx.GetContext(ctx, r.db, user, query, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user", email)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *postgresRepository) GetUserByID(ctx context.Context, companyID, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.Validation("invalid user id %q", id)
	}
	user := &User{}
	query := `SELECT ` + columns + ` FROM users WHERE company_id = $1 AND id = $2`
	err := sqlx.GetContext(ctx, r.db, user, query, companyID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user", id)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
