package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgemunganga/watchdealer-backend/internal/modules/tenant"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/user"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
)

// ErrInvalidCredentials covers both an unknown email and a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

type service struct {
	userRepo   user.Repository
	signingKey []byte
	ttl        time.Duration
}

// NewService creates a new auth service issuing tokens valid for ttl.
func NewService(userRepo user.Repository, signingKey []byte, ttl time.Duration) Service {
	return &service{userRepo: userRepo, signingKey: signingKey, ttl: ttl}
}

// Login checks the credentials and returns a session token carrying the
// user's company and role.
func (s *service) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.userRepo.GetUserByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if !u.CheckPassword(password) {
		return "", ErrInvalidCredentials
	}

	token, err := tenant.IssueToken(s.signingKey, u.Session(), s.ttl)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}
