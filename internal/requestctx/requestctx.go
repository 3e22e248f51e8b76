package requestctx

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	userIDKey    ctxKey = "user_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	if value, ok := ctx.Value(requestIDKey).(string); ok {
		return value
	}
	return ""
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func GetUserID(ctx context.Context) string {
	if value, ok := ctx.Value(userIDKey).(string); ok {
		return value
	}
	return ""
}

// Logger returns base annotated with whatever request values ctx carries.
func Logger(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	lc := base.With()
	if id := GetRequestID(ctx); id != "" {
		lc = lc.Str("request_id", id)
	}
	if id := GetUserID(ctx); id != "" {
		lc = lc.Str("user_id", id)
	}
	return lc.Logger()
}
