package company

import "context"

// Repository defines the interface for company data storage.
type Repository interface {
	CreateCompany(ctx context.Context, company *Company) error
	GetCompany(ctx context.Context, id string) (*Company, error)
}
