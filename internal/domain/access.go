package domain

import "context"

// Principal identifies the caller of an HTTP request.
type Principal struct {
	Email  string
	UserID string
}

// Authorizer decides whether a principal may manage the agent catalog.
type Authorizer interface {
	IsAdmin(ctx context.Context, p Principal) (bool, error)
}

type principalKey struct{}

// WithPrincipal returns a child context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom extracts the principal stored by WithPrincipal.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
