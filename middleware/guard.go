package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/otpauth"
)

// AccessValidator is satisfied by *otpauth.Engine.
type AccessValidator interface {
	ValidateAccess(ctx context.Context, token string) (*otpauth.AccessClaims, error)
}

type claimsContextKey struct{}

// ClaimsFromContext returns the claims stored by a guard.
func ClaimsFromContext(ctx context.Context) (*otpauth.AccessClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*otpauth.AccessClaims)
	return claims, ok
}

// WithClaims stores claims on ctx the way the guards do.
func WithClaims(ctx context.Context, claims *otpauth.AccessClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// Guard rejects requests without a valid access token. Backend failures
// answer 503 so clients do not drop their tokens.
func Guard(v AccessValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := authenticate(w, r, v)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func authenticate(w http.ResponseWriter, r *http.Request, v AccessValidator) (*otpauth.AccessClaims, bool) {
	if v == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}

	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}

	claims, err := v.ValidateAccess(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return claims, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, otpauth.ErrBackendUnavailable), errors.Is(err, otpauth.ErrEngineNotReady):
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, otpauth.ErrAccountDeleted):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}
	return token, true
}
