package tenant

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/georgemunganga/watchdealer-backend/internal/pkg/logger"
	"go.uber.org/zap"
)

// Middleware validates the Bearer token and installs the caller's session.
// Requests whose token lacks a company claim are rejected.
func Middleware(signingKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logger.FromContext(r.Context())

			header := r.Header.Get("Authorization")
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				log.Warn("Missing or malformed authorization header")
				unauthorized(w, "missing authorization token")
				return
			}

			s, err := ParseToken(signingKey, parts[1])
			if err != nil {
				if errors.Is(err, ErrNoTenantResolved) {
					log.Warn("Token does not carry a company claim")
					unauthorized(w, err.Error())
					return
				}
				log.Warn("Invalid or expired token", zap.Error(err))
				unauthorized(w, "invalid or expired token")
				return
			}

			ctx := WithSession(r.Context(), s)
			ctx = logger.WithContext(ctx, log.With(
				zap.String("company_id", string(s.CompanyID)),
				zap.String("user_id", s.Subject),
			))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
