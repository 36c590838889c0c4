package middleware

import (
	"net/http"

	"github.com/devilmonastery/idlink/internal/auth"
)

// UserLoader reads the authenticated user from the request's session
type UserLoader interface {
	GetUser(r *http.Request) (*auth.SessionUser, error)
}

// LoadUser attaches the session user, when there is one, to the request context.
// Handlers decide for themselves how to answer anonymous requests.
func LoadUser(sessions UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user, err := sessions.GetUser(r); err == nil {
				r = r.WithContext(auth.SetUserInContext(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}
