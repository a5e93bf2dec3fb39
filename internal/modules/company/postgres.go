package company

import (
	"context"
	"database/sql"
	"errors"

	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
	"github.com/jmoiron/sqlx"
)

type postgresRepository struct {
	db sqlx.ExtContext
}

// NewPostgresRepository creates a PostgreSQL company repository over a DB or a Tx.
func NewPostgresRepository(db sqlx.ExtContext) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateCompany(ctx context.Context, company *Company) error {
	query := `
		INSERT INTO companies (name)
		VALUES ($1)
		RETURNING id, created_at, updated_at
	`
	return sqlx.GetContext(ctx, r.db, company, query, company.Name)
}

func (r *postgresRepository) GetCompany(ctx context.Context, id string) (*Company, error) {
	company := &Company{}
	query := `SELECT id, name, created_at, updated_at FROM companies WHERE id = $1`
	err := sqlx.GetContext(ctx, r.db, company, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("company", id)
	}
	if err != nil {
		return nil, err
	}
	return company, nil
}
