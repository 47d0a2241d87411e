package service

import (
	"context"
	"sort"

	"github.com/jonboulle/clockwork"
	messageDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/domain"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

// pollSource fetches the newest messages of every available channel on a
// fixed interval and processes the unseen ones oldest first
type pollSource struct {
	svc      *Service
	channels []string
	ticker   clockwork.Ticker
}

func newPollSource(svc *Service) *pollSource {
	return &pollSource{svc: svc}
}

func (p *pollSource) Name() string {
	return "poll"
}

func (p *pollSource) Start(ctx context.Context) error {
	p.channels = p.svc.availableChannels()
	if len(p.channels) == 0 {
		p.svc.logger.Warn("No available channels to poll")
	}

	for _, channelID := range p.channels {
		if err := p.seed(ctx, channelID); err != nil {
			p.svc.logger.Warn("Failed to seed channel, will retry on next cycle", "channel_id", channelID, "error", err)
		}
	}

	p.ticker = p.svc.clock.NewTicker(p.svc.opts.PollInterval)
	p.svc.wg.Add(1)
	go p.loop(ctx)
	return nil
}

func (p *pollSource) Stop() {
	if p.ticker != nil {
		p.ticker.Stop()
	}
}

func (p *pollSource) loop(ctx context.Context) {
	defer p.svc.wg.Done()

	p.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.ticker.Chan():
			p.cycle(ctx)
		}
	}
}

// cycle polls every channel once. A failing channel does not stop the others.
func (p *pollSource) cycle(ctx context.Context) {
	for i, channelID := range p.channels {
		if ctx.Err() != nil {
			return
		}

		if err := p.pollChannel(ctx, channelID); err != nil {
			p.svc.failures.Add(1)
			p.svc.logger.Error("Error polling channel", "channel_id", channelID, "error", err)
		}

		if i < len(p.channels)-1 && p.svc.opts.ChannelDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-p.svc.clock.After(p.svc.opts.ChannelDelay):
			}
		}
	}
}

func (p *pollSource) seed(ctx context.Context, channelID string) error {
	messages, err := p.svc.adapter.FetchRecent(ctx, channelID, p.svc.opts.HistoryLimit)
	if err != nil {
		return oops.In("poll").With("channel_id", channelID).Wrap(err)
	}

	ids := lo.Map(messages, func(m messageDomain.InboundMessage, _ int) int64 { return m.ID })
	p.svc.tracker.Seed(channelID, ids)
	p.svc.logger.Info("Channel seeded", "channel_id", channelID, "messages", len(ids))
	return nil
}

func (p *pollSource) pollChannel(ctx context.Context, channelID string) error {
	if !p.svc.tracker.IsSeeded(channelID) {
		return p.seed(ctx, channelID)
	}

	messages, err := p.svc.adapter.FetchRecent(ctx, channelID, p.svc.opts.HistoryLimit)
	if err != nil {
		return oops.In("poll").With("channel_id", channelID).Wrap(err)
	}

	fresh := lo.Filter(messages, func(m messageDomain.InboundMessage, _ int) bool {
		return p.svc.tracker.IsNew(channelID, m.ID)
	})
	if len(fresh) == 0 {
		return nil
	}

	sort.SliceStable(fresh, func(i, j int) bool {
		if fresh[i].Date == fresh[j].Date {
			return fresh[i].ID < fresh[j].ID
		}
		return fresh[i].Date < fresh[j].Date
	})

	p.svc.logger.Debug("New messages", "channel_id", channelID, "count", len(fresh))

	// a fetched batch completes even when Stop cancels ctx
	batchCtx := context.WithoutCancel(ctx)
	for _, msg := range fresh {
		// a failed forward stays unseen so the next cycle retries it
		if err := p.processOne(batchCtx, msg); err != nil {
			continue
		}
		p.svc.tracker.MarkSeen(channelID, msg.ID)
	}
	return nil
}

func (p *pollSource) processOne(ctx context.Context, msg messageDomain.InboundMessage) error {
	ctx, cancel := context.WithTimeout(ctx, p.svc.opts.SendTimeout)
	defer cancel()
	return p.svc.handle(ctx, msg)
}
