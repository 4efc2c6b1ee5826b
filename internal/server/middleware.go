package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey int

const principalKey contextKey = iota

// requirePrincipal extracts the authenticated principal from the
// X-Principal header. Authentication itself happens upstream; by the time a
// request reaches this service the header is trusted.
func requirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := uuid.Parse(r.Header.Get("X-Principal"))
		if err != nil || principal == uuid.Nil {
			writeError(w, http.StatusUnauthorized, "missing or malformed X-Principal header")
			return
		}
		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFrom(r *http.Request) uuid.UUID {
	principal, _ := r.Context().Value(principalKey).(uuid.UUID)
	return principal
}
