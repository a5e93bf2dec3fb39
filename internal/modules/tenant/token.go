package tenant

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// Claims are the session token claims. CompanyID is the tenant claim.
type Claims struct {
	CompanyID string `json:"company_id,omitempty"`
	Role      string `json:"role,omitempty"`
	jwt.StandardClaims
}

// IssueToken signs an HS256 session token for s.
func IssueToken(signingKey []byte, s Session, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		CompanyID: string(s.CompanyID),
		Role:      string(s.Role),
		StandardClaims: jwt.StandardClaims{
			Subject:   s.Subject,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingKey)
}

// ParseToken validates a session token and returns its session. A valid
// token without a company claim yields ErrNoTenantResolved.
func ParseToken(signingKey []byte, tokenString string) (Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return signingKey, nil
	})
	if err != nil {
		return Session{}, err
	}
	if !token.Valid {
		return Session{}, errors.New("invalid token")
	}
	if claims.CompanyID == "" {
		return Session{}, ErrNoTenantResolved
	}
	role := Role(claims.Role)
	if role != RoleAdmin {
		role = RoleStaff
	}
	return Session{
		CompanyID: ID(claims.CompanyID),
		Subject:   claims.Subject,
		Role:      role,
	}, nil
}
