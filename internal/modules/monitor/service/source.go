package service

import (
	"context"
	"sync"

	"github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/adapter"
	messageDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/domain"
)

// Source acquires messages and feeds them into the pipeline
type Source interface {
	Name() string
	Start(ctx context.Context) error
	Stop()
}

// pushSource handles live events from the adapter subscription.
// Private chats and chats outside the policy are dropped.
type pushSource struct {
	svc *Service
	sub adapter.Subscription
	mu  sync.Mutex
}

func newPushSource(svc *Service) *pushSource {
	return &pushSource{svc: svc}
}

func (p *pushSource) Name() string {
	return "push"
}

func (p *pushSource) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sub = p.svc.adapter.Subscribe(func(eventCtx context.Context, msg messageDomain.InboundMessage) {
		if ctx.Err() != nil {
			return
		}
		if msg.ChatKind == messageDomain.ChatKindPrivate || !p.svc.monitored(msg.ChatID) {
			return
		}
		_ = p.svc.handle(eventCtx, msg)
	})
	return nil
}

func (p *pushSource) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sub != nil {
		p.sub.Unsubscribe()
		p.sub = nil
	}
}
