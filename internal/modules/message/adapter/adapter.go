package adapter

import (
	"context"

	"github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/domain"
)

// Handler receives messages pushed by an adapter
type Handler func(ctx context.Context, msg domain.InboundMessage)

// Subscription is returned by Subscribe and stops delivery when cancelled
type Subscription interface {
	Unsubscribe()
}

// Adapter is the boundary to the messaging platform client.
// Implementations must be safe for concurrent use and must return
// identifiers normalized with domain.NormalizeID.
type Adapter interface {
	Subscribe(handler Handler) Subscription
	// FetchRecent returns up to limit of the newest messages of a chat.
	FetchRecent(ctx context.Context, chatID string, limit int) ([]domain.InboundMessage, error)
	// ResolveChannel fails with ErrNotFound when the chat is inaccessible.
	ResolveChannel(ctx context.Context, chatID string) (domain.ChannelInfo, error)
	// ResolveSender fails with ErrNotFound when the user is unknown.
	ResolveSender(ctx context.Context, senderID string) (domain.SenderInfo, error)
	// Send fails with ErrDelivery.
	Send(ctx context.Context, targetID, text string) (domain.MessageRef, error)
	IsReady() bool
}
