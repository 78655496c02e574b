package middleware

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/otpauth"
	"github.com/MrEthical07/otpauth/userstore"
)

// RequireStrict is [Guard] plus an account lookup. Missing accounts are 401,
// accounts marked deleted are 403.
func RequireStrict(v AccessValidator, users userstore.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := authenticate(w, r, v)
			if !ok {
				return
			}

			user, err := users.FindByID(r.Context(), claims.UserID)
			switch {
			case errors.Is(err, userstore.ErrNotFound):
				writeError(w, otpauth.ErrUserNotFound)
				return
			case err != nil:
				writeError(w, otpauth.ErrBackendUnavailable)
				return
			case user.Deleted():
				writeError(w, otpauth.ErrAccountDeleted)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}
