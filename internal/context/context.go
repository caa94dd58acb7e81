package context

import (
	"context"
)

type contextKey string

const (
	creatorContextKey contextKey = "creator"
)

// Creator identifies the Telegram user operating the Mini App
type Creator struct {
	TelegramID int64
}

// GetCreatorFromContext returns the creator stored by the identity middleware, or nil
func GetCreatorFromContext(ctx context.Context) *Creator {
	creator, ok := ctx.Value(creatorContextKey).(*Creator)
	if !ok {
		return nil
	}
	return creator
}

// WithCreator adds the creator to the context
func WithCreator(ctx context.Context, creator *Creator) context.Context {
	return context.WithValue(ctx, creatorContextKey, creator)
}
