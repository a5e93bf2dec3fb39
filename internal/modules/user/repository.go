package user

import "context"

// Repository defines the interface for user data storage.
type Repository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, companyID, id string) (*User, error)
}
