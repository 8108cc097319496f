package auth

import (
	"context"
)

type contextKey string

const contextKeySession contextKey = "session"

// WithSession binds the browser session into ctx.
func WithSession(ctx context.Context, s *BrowserSession) context.Context {
	return context.WithValue(ctx, contextKeySession, s)
}

// SessionFromContext returns the browser session bound by LoadSession.
func SessionFromContext(ctx context.Context) (*BrowserSession, bool) {
	s, ok := ctx.Value(contextKeySession).(*BrowserSession)
	return s, ok && s != nil
}
