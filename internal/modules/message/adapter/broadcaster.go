package adapter

import (
	"context"
	"sync"

	"github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/domain"
)

// Broadcaster fans pushed messages out to subscribed handlers in delivery order
type Broadcaster struct {
	mu       sync.RWMutex
	handlers map[uint64]Handler
	nextID   uint64
}

// NewBroadcaster creates an empty broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{handlers: make(map[uint64]Handler)}
}

// Subscribe registers a handler
func (b *Broadcaster) Subscribe(handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[id] = handler
	return &subscription{broadcaster: b, id: id}
}

// Publish delivers msg to every current subscriber
func (b *Broadcaster) Publish(ctx context.Context, msg domain.InboundMessage) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, msg)
	}
}

// Len returns the number of active subscriptions
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

type subscription struct {
	broadcaster *Broadcaster
	id          uint64
	once        sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.broadcaster.mu.Lock()
		defer s.broadcaster.mu.Unlock()
		delete(s.broadcaster.handlers, s.id)
	})
}
