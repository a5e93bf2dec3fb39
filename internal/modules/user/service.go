package user

import "context"

// Service defines the interface for user-related business logic.
type Service interface {
	RegisterUser(ctx context.Context, reg Registration) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
}
