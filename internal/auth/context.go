package auth

import "context"

type contextKey string

const claimsKey contextKey = "jwt_claims"

func withClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext retrieves the JWT claims attached by Middleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}

// RoleFromContext retrieves the caller's role, used to gate mutating shim
// operations (place/cancel order, set config) to the "trader" role while
// "readonly" callers may only query state.
func RoleFromContext(ctx context.Context) (string, bool) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return "", false
	}
	return claims.Role, true
}
