package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/commerce-gateway/tokens"
)

// Context key type to avoid collisions
type contextKey string

const (
	// PrincipalKey is the context key for the verified caller
	PrincipalKey contextKey = "principal"
)

// Identity headers the gateway injects after verification. Downstream
// services trust them only because the gateway strips client copies.
const (
	HeaderUsername = "X-User-Username"
	HeaderRoles    = "X-User-Roles"
)

// GetRequestIDFromContext retrieves the chi request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// GetPrincipalFromContext retrieves the verified principal from context
func GetPrincipalFromContext(ctx context.Context) *tokens.Principal {
	if val := ctx.Value(PrincipalKey); val != nil {
		if p, ok := val.(*tokens.Principal); ok {
			return p
		}
	}
	return nil
}

// WithPrincipal adds the verified principal to the context
func WithPrincipal(ctx context.Context, p *tokens.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}
