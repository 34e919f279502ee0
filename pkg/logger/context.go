package logger

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type ctxKey int

const (
	intentIDKey ctxKey = iota
	accountKey
)

// WithIntentID returns a context carrying the intent id for log
// correlation.
func WithIntentID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, intentIDKey, id)
}

// WithAccount returns a context carrying the sending account's address.
func WithAccount(ctx context.Context, address string) context.Context {
	return context.WithValue(ctx, accountKey, address)
}

// IntentIDExtractor surfaces the intent id placed by WithIntentID.
func IntentIDExtractor(ctx context.Context) (slog.Attr, bool) {
	if id, ok := ctx.Value(intentIDKey).(uuid.UUID); ok && id != uuid.Nil {
		return slog.String("intent_id", id.String()), true
	}
	return slog.Attr{}, false
}

// AccountExtractor surfaces the account address placed by WithAccount.
func AccountExtractor(ctx context.Context) (slog.Attr, bool) {
	if addr, ok := ctx.Value(accountKey).(string); ok && addr != "" {
		return slog.String("account", addr), true
	}
	return slog.Attr{}, false
}
