package user

import (
	"net/mail"
	"strings"
	"time"

	"github.com/georgemunganga/watchdealer-backend/internal/modules/tenant"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// User is a staff account. It belongs to exactly one company.
type User struct {
	ID           uuid.UUID   `json:"id" db:"id"`
	CompanyID    uuid.UUID   `json:"company_id" db:"company_id"`
	Email        string      `json:"email" db:"email"`
	PasswordHash string      `json:"-" db:"password_hash"`
	FirstName    string      `json:"first_name,omitempty" db:"first_name"`
	LastName     string      `json:"last_name,omitempty" db:"last_name"`
	Role         tenant.Role `json:"role" db:"role"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

// Registration is the input for a new account.
type Registration struct {
	Email     string      `json:"email"`
	Password  string      `json:"password"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Role      tenant.Role `json:"role"`
}

// New validates reg and returns an account with a bcrypt password hash.
func New(companyID uuid.UUID, reg Registration) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(reg.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.Validation("invalid email %q", reg.Email)
	}
	if len(reg.Password) < minPasswordLength {
		return nil, apperr.Validation("password must be at least %d characters", minPasswordLength)
	}
	role := reg.Role
	if role == "" {
		role = tenant.RoleStaff
	}
	if role != tenant.RoleAdmin && role != tenant.RoleStaff {
		return nil, apperr.Validation("invalid role %q", reg.Role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &User{
		ID:           uuid.New(),
		CompanyID:    companyID,
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(reg.FirstName),
		LastName:     strings.TrimSpace(reg.LastName),
		Role:         role,
	}, nil
}

// CheckPassword reports whether password matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// Session is the tenant session this account acts as.
func (u *User) Session() tenant.Session {
	return tenant.Session{
		CompanyID: tenant.ID(u.CompanyID.String()),
		Subject:   u.ID.String(),
		Role:      u.Role,
	}
}
