package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"caravel/pkg/domain"
	"caravel/pkg/requestcontext"
)

// JWTValidator defines the interface for validating bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator.
type JWTClaims struct {
	// Address is the caller's ledger account, from the token subject.
	Address domain.Address
}

// GetPrincipal retrieves the authenticated caller address from the context.
// Returns the zero address when the request was not authenticated.
func GetPrincipal(ctx context.Context) domain.Address {
	return requestcontext.Principal(ctx)
}

// Authenticate validates the bearer token when one is presented and stores
// the caller's ledger address in the context. Requests without a token pass
// through anonymously: public reads need no principal, and every privileged
// handler enforces a non-zero principal itself before calling the service.
// A token that is present but invalid is rejected outright.
func Authenticate(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				unauthorized(w, r, logger, "Invalid or expired token")
				return
			}

			ctx := requestcontext.WithPrincipal(r.Context(), claims.Address)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, logger *slog.Logger, description string) {
	ctx := r.Context()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if _, err := w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`)); err != nil {
		logger.ErrorContext(ctx, "failed to write unauthorized response",
			"error", err,
			"request_id", GetRequestID(ctx),
		)
	}
}
