package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"medchain/pkg/domain"
	"medchain/pkg/requestcontext"
)

// TokenValidator validates a bearer token and returns the identity it was
// issued to.
type TokenValidator interface {
	ValidateToken(tokenString string) (domain.Identity, error)
}

// Auth resolves the caller identity from an optional bearer token. A request
// without an Authorization header proceeds anonymously; handlers that need
// an identity reject it themselves. A present-but-invalid token is rejected
// here so callers never operate under a half-trusted identity.
func Auth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				unauthorized(w, ctx, logger, "malformed Authorization header")
				return
			}

			identity, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "token rejected",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				unauthorized(w, ctx, logger, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithCaller(ctx, identity)))
		})
	}
}

func unauthorized(w http.ResponseWriter, ctx context.Context, logger *slog.Logger, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if _, err := w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`)); err != nil {
		logger.ErrorContext(ctx, "failed to write unauthorized response",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}
