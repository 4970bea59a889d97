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

// Ctx retrieves the logger from the context.
// If no logger is found, the global logger is returned.
func Ctx(ctx context.Context) zerolog.Logger {
	if ctx == nil {
		return L()
	}
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return L()
}

// WithConn returns a context whose logger carries the connection fields.
func WithConn(ctx context.Context, connID, userID, nickname string) context.Context {
	l := Ctx(ctx).With().
		Str(FieldConnID, connID).
		Str(FieldUserID, userID).
		Str(FieldNickname, nickname).
		Logger()
	return WithLogger(ctx, l)
}

// WithRoom returns a context whose logger carries the room id.
func WithRoom(ctx context.Context, roomID string) context.Context {
	return WithLogger(ctx, Ctx(ctx).With().Str(FieldRoomID, roomID).Logger())
}
