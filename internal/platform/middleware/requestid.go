// Package middleware holds the HTTP middleware chain: request IDs,
// panic recovery, request logging and JWT authentication.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"medchain/pkg/requestcontext"
)

const requestIDHeader = "X-Request-Id"

// RequestID assigns each request a UUID unless the client supplied one, and
// echoes it back on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(requestcontext.WithRequestID(r.Context(), id)))
	})
}
