package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/vocaprep/accounts"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyUser stores the signed-in *accounts.AppUser
	ContextKeyUser ContextKey = "user"
)

// RequireUser rejects requests without a valid session cookie and injects the current user
// into the request context
func (s *Server) RequireUser() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			user := s.accounts.GetCurrentUser(r.Context(), s.jar(w, r))
			if user == nil {
				writeJSON(w, http.StatusUnauthorized, accounts.Result{Success: false, Message: "Please sign in to continue."})
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUser, user)
			next(w, r.WithContext(ctx))
		}
	}
}

// CurrentUser returns the user injected by RequireUser
func CurrentUser(ctx context.Context) (*accounts.AppUser, bool) {
	user, ok := ctx.Value(ContextKeyUser).(*accounts.AppUser)
	return user, ok && user != nil
}
