package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// Ctx retrieves the logger from the context, falling back to the global logger.
func Ctx(ctx context.Context) zerolog.Logger {
	if ctx == nil {
		return L()
	}
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return L()
}

// ForConnection returns a child of the global logger tagged with a websocket
// client id and, once the session is authenticated, its user id.
func ForConnection(clientID, userID string) zerolog.Logger {
	lc := L().With().Str(FieldClientID, clientID)
	if userID != "" {
		lc = lc.Str(FieldUserID, userID)
	}
	return lc.Logger()
}
