package middleware

import (
	"context"
	"net/http"

	"github.com/mcoot/fairway/internal/api/apierr"
	"github.com/mcoot/fairway/internal/services/auth"
)

type contextKey string

const principalContextKey contextKey = "principal"

// Verifier turns an Authorization header into a principal
type Verifier interface {
	VerifyHeader(header string) (*auth.Principal, error)
}

// Auth rejects requests without a valid bearer token and stores the
// principal in the request context
func Auth(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := verifier.VerifyHeader(authHeader(r))
			if err != nil {
				apierr.WriteError(w, err)
				return
			}
			ctx := WithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authHeader returns the Authorization header, falling back to the
// access_token query parameter for EventSource clients that cannot set headers
func authHeader(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return h
	}
	if token := r.URL.Query().Get("access_token"); token != "" {
		return "Bearer " + token
	}
	return ""
}

// WithPrincipal returns a context carrying the principal
func WithPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// GetPrincipal returns the authenticated principal from the request context
func GetPrincipal(ctx context.Context) *auth.Principal {
	p, _ := ctx.Value(principalContextKey).(*auth.Principal)
	return p
}

// MustGetPrincipal returns the authenticated principal or panics
func MustGetPrincipal(ctx context.Context) *auth.Principal {
	p := GetPrincipal(ctx)
	if p == nil {
		panic("no principal in context - auth middleware not applied?")
	}
	return p
}
