package auth

import "context"

type sessionKey struct{}

// WithSession attaches verified session claims to ctx.
func WithSession(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, sessionKey{}, claims)
}

// SessionFrom reports the verified session on ctx, if any.
func SessionFrom(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(sessionKey{}).(Claims)
	if !ok || c.UserID == "" {
		return Claims{}, false
	}
	return c, true
}
