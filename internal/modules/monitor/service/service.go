package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	filterDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/filter/domain"
	filterService "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/filter/service"
	forwardService "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/forward/service"
	"github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/adapter"
	messageDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/domain"
	"github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/monitor/domain"
	taskDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/task/domain"
	apperrors "github.com/reshetovitsme/telegram-keyword-monitor/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

const (
	DefaultPollInterval  = 30 * time.Second
	DefaultHistoryLimit  = 10
	DefaultChannelDelay  = time.Second
	DefaultReadyTimeout  = 60 * time.Second
	DefaultReadyInterval = time.Second
	DefaultSendTimeout   = 30 * time.Second
)

// Scheduler creates delayed follow-up tasks
type Scheduler interface {
	Schedule(req taskDomain.ScheduleRequest) (string, error)
}

// Archive records forwarded matches
type Archive interface {
	SaveMatch(match *messageDomain.Match) error
}

// Tracker remembers processed message ids for poll mode
type Tracker interface {
	Seed(channelID string, ids []int64)
	IsSeeded(channelID string) bool
	IsNew(channelID string, id int64) bool
	MarkSeen(channelID string, id int64)
	Size(channelID string) int
}

// Options tunes acquisition; zero values fall back to defaults
type Options struct {
	Mode          domain.Mode
	PollInterval  time.Duration
	HistoryLimit  int
	ChannelDelay  time.Duration
	ReadyTimeout  time.Duration
	ReadyInterval time.Duration
	SendTimeout   time.Duration
	Clock         clockwork.Clock
	Logger        *slog.Logger
}

// Service is the monitoring orchestrator. It waits for the adapter, starts
// the configured message source and runs every acquired message through
// filter, forward and scheduling.
type Service struct {
	policy    filterDomain.Policy
	opts      Options
	adapter   adapter.Adapter
	formatter *forwardService.Formatter
	scheduler Scheduler
	archive   Archive
	tracker   Tracker
	clock     clockwork.Clock
	logger    *slog.Logger

	// channels is keyed by configured id; aliases maps resolved ids back to it
	channels map[string]*domain.ChannelStatus
	aliases  map[string]string
	source   Source
	mu       sync.RWMutex

	running   atomic.Bool
	processed atomic.Int64
	forwarded atomic.Int64
	scheduled atomic.Int64
	failures  atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a monitor for policy. archive and scheduler may be nil.
func New(policy filterDomain.Policy, src adapter.Adapter, formatter *forwardService.Formatter, scheduler Scheduler, archive Archive, tracker Tracker, opts Options) *Service {
	if opts.Mode == "" {
		opts.Mode = domain.ModePush
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.ChannelDelay < 0 {
		opts.ChannelDelay = 0
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = DefaultReadyTimeout
	}
	if opts.ReadyInterval <= 0 {
		opts.ReadyInterval = DefaultReadyInterval
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		policy:    policy.Clone(),
		opts:      opts,
		adapter:   src,
		formatter: formatter,
		scheduler: scheduler,
		archive:   archive,
		tracker:   tracker,
		clock:     opts.Clock,
		logger:    opts.Logger.With("component", "monitor", "mode", opts.Mode),
		channels:  make(map[string]*domain.ChannelStatus),
		aliases:   make(map[string]string),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, id := range s.policy.TargetChats {
		s.channels[id] = &domain.ChannelStatus{ID: id, ConfiguredID: id}
		s.aliases[id] = id
	}
	return s
}

// Start waits for the adapter to become ready, validates the target channels
// and starts acquisition. It returns ErrAdapterNotReady when the adapter does
// not report ready within the configured bound.
func (s *Service) Start(ctx context.Context) error {
	if err := s.waitReady(ctx); err != nil {
		return err
	}

	s.validateChannels(ctx)

	var source Source
	switch s.opts.Mode {
	case domain.ModePoll:
		source = newPollSource(s)
	default:
		source = newPushSource(s)
	}

	s.mu.Lock()
	s.source = source
	s.mu.Unlock()

	if err := source.Start(s.ctx); err != nil {
		return oops.In("monitor").With("mode", s.opts.Mode).Wrap(err)
	}

	s.running.Store(true)
	s.logger.Info("Monitoring started",
		"source", source.Name(),
		"channels", len(s.policy.TargetChats),
		"available", len(s.availableChannels()),
		"keywords", len(s.policy.Keywords),
	)
	return nil
}

// Stop halts future acquisition. Batches already fetched finish processing.
func (s *Service) Stop() {
	s.cancel()

	s.mu.RLock()
	source := s.source
	s.mu.RUnlock()
	if source != nil {
		source.Stop()
	}

	s.wg.Wait()
	s.running.Store(false)
}

// Policy returns a copy of the active policy
func (s *Service) Policy() filterDomain.Policy {
	return s.policy.Clone()
}

// Channels returns the monitored channels in policy order
func (s *Service) Channels() []domain.ChannelStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lo.FilterMap(s.policy.TargetChats, func(id string, _ int) (domain.ChannelStatus, bool) {
		ch, ok := s.channels[id]
		if !ok {
			return domain.ChannelStatus{}, false
		}
		status := *ch
		status.Seen = s.tracker.Size(status.ID)
		return status, true
	})
}

// Stats returns pipeline counters
func (s *Service) Stats() domain.Stats {
	return domain.Stats{
		Mode:      s.opts.Mode,
		Running:   s.running.Load(),
		Processed: s.processed.Load(),
		Forwarded: s.forwarded.Load(),
		Scheduled: s.scheduled.Load(),
		Errors:    s.failures.Load(),
	}
}

// SubmitTest runs an ad-hoc message through the pipeline without touching
// acquisition or dedup state
func (s *Service) SubmitTest(ctx context.Context, msg domain.TestMessage) (domain.Outcome, error) {
	chatID := messageDomain.NormalizeID(msg.ChatID)
	if chatID == "" {
		chatID = s.policy.TargetChats[0]
	}

	inbound := messageDomain.InboundMessage{
		ID:       s.clock.Now().UnixNano(),
		ChatID:   chatID,
		ChatKind: messageDomain.ChatKindChannel,
		SenderID: messageDomain.NormalizeID(msg.SenderID),
		Text:     msg.Text,
		Date:     s.clock.Now().Unix(),
	}

	s.logger.Info("Processing test message", "chat_id", chatID, "sender_id", inbound.SenderID)
	return s.Process(ctx, inbound)
}

// Process runs one message through filter, forward and scheduling.
// Messages with empty text are ignored. Lookup failures degrade to
// placeholders; a failed forward is returned as ErrDelivery.
func (s *Service) Process(ctx context.Context, msg messageDomain.InboundMessage) (domain.Outcome, error) {
	outcome := domain.Outcome{MessageID: msg.ID, ChatID: msg.ChatID}
	if strings.TrimSpace(msg.Text) == "" {
		outcome.Verdict = filterDomain.Verdict{Reason: filterService.ReasonEmpty}
		return outcome, nil
	}

	s.processed.Add(1)
	outcome.Verdict = filterService.Evaluate(msg.Text, s.policy)
	if !outcome.Verdict.Forward {
		s.logger.Debug("Message skipped",
			"chat_id", msg.ChatID,
			"message_id", msg.ID,
			"reason", outcome.Verdict.Reason,
		)
		return outcome, nil
	}

	channel := s.channelInfo(ctx, msg.ChatID)
	sender := s.senderInfo(ctx, msg.SenderID)

	text := s.formatter.Format(forwardService.Request{
		Text:         msg.Text,
		ChannelTitle: channel.Title,
		ChannelID:    msg.ChatID,
		SenderName:   sender.DisplayName,
		SenderHandle: sender.Handle,
		Matched:      outcome.Verdict.Matched,
		MessageTime:  msg.Time(),
	})

	ref, err := s.adapter.Send(ctx, s.policy.TargetChatID, text)
	if err != nil {
		s.failures.Add(1)
		if !errors.Is(err, apperrors.ErrDelivery) {
			err = oops.Wrapf(apperrors.ErrDelivery, "%v", err)
		}
		return outcome, oops.In("monitor").
			With("chat_id", msg.ChatID, "message_id", msg.ID, "target_chat_id", s.policy.TargetChatID).
			Wrap(err)
	}
	outcome.Forwarded = true
	outcome.ForwardRef = &ref
	s.forwarded.Add(1)

	s.logger.Info("Message forwarded",
		"chat_id", msg.ChatID,
		"message_id", msg.ID,
		"matched", outcome.Verdict.Matched,
	)

	outcome.TaskID = s.scheduleReply(msg, channel, sender)
	s.archiveMatch(msg, channel, sender, outcome)

	return outcome, nil
}

func (s *Service) scheduleReply(msg messageDomain.InboundMessage, channel messageDomain.ChannelInfo, sender messageDomain.SenderInfo) string {
	replies := s.policy.DelayedReplies
	if !replies.Enabled || s.scheduler == nil || msg.SenderID == "" {
		return ""
	}

	taskID, err := s.scheduler.Schedule(taskDomain.ScheduleRequest{
		RecipientID:  msg.SenderID,
		OriginChatID: msg.ChatID,
		Payload:      replies.Text,
		Delay:        time.Duration(replies.DelayMinutes) * time.Minute,
		Origin: taskDomain.Origin{
			Text:         msg.Text,
			ChatTitle:    channel.Title,
			SenderName:   sender.DisplayName,
			SenderHandle: sender.Handle,
			MessageTime:  msg.Time(),
		},
		LogChatID: replies.LogChatID,
	})
	if err != nil {
		s.failures.Add(1)
		s.logger.Error("Failed to schedule delayed message", "chat_id", msg.ChatID, "sender_id", msg.SenderID, "error", err)
		return ""
	}

	s.scheduled.Add(1)
	return taskID
}

func (s *Service) archiveMatch(msg messageDomain.InboundMessage, channel messageDomain.ChannelInfo, sender messageDomain.SenderInfo, outcome domain.Outcome) {
	if s.archive == nil {
		return
	}

	match := &messageDomain.Match{
		ID:           msg.ID,
		ChannelID:    msg.ChatID,
		ChannelTitle: channel.Title,
		SenderID:     msg.SenderID,
		SenderName:   sender.DisplayName,
		SenderHandle: sender.Handle,
		Text:         msg.Text,
		Keywords:     outcome.Verdict.Matched,
		Date:         msg.Time(),
		ForwardedAt:  s.clock.Now(),
		TaskID:       outcome.TaskID,
	}
	if err := s.archive.SaveMatch(match); err != nil {
		s.logger.Error("Failed to archive match", "chat_id", msg.ChatID, "message_id", msg.ID, "error", err)
	}
}

func (s *Service) handle(ctx context.Context, msg messageDomain.InboundMessage) error {
	if _, err := s.Process(ctx, msg); err != nil {
		s.logger.Error("Error processing message", "chat_id", msg.ChatID, "message_id", msg.ID, "error", err)
		return err
	}
	return nil
}

func (s *Service) waitReady(ctx context.Context) error {
	if s.adapter.IsReady() {
		return nil
	}

	s.logger.Info("Waiting for message source", "timeout", s.opts.ReadyTimeout)

	ticker := s.clock.NewTicker(s.opts.ReadyInterval)
	defer ticker.Stop()
	deadline := s.clock.After(s.opts.ReadyTimeout)

	for {
		select {
		case <-ctx.Done():
			return oops.In("monitor").Wrap(ctx.Err())
		case <-s.ctx.Done():
			return oops.In("monitor").Wrap(s.ctx.Err())
		case <-deadline:
			return oops.In("monitor").With("timeout", s.opts.ReadyTimeout).Wrap(apperrors.ErrAdapterNotReady)
		case <-ticker.Chan():
			if s.adapter.IsReady() {
				return nil
			}
		}
	}
}

// validateChannels resolves every target chat once. Poll mode skips chats
// that fail here for the rest of the run.
func (s *Service) validateChannels(ctx context.Context) {
	for _, id := range s.policy.TargetChats {
		info, err := s.adapter.ResolveChannel(ctx, id)

		s.mu.Lock()
		status := s.channels[id]
		if err != nil {
			status.Available = false
			status.Error = err.Error()
		} else {
			status.Available = true
			status.Error = ""
			status.Title = info.Title
			status.Kind = info.Kind
			if resolved := messageDomain.NormalizeID(info.ID); resolved != "" {
				status.ID = resolved
				s.aliases[resolved] = id
			}
		}
		s.mu.Unlock()

		if err != nil {
			s.logger.Warn("Channel unavailable", "channel_id", id, "error", err)
			continue
		}
		s.logger.Info("Channel available", "channel_id", id, "resolved_id", info.ID, "title", info.Title)
	}
}

// availableChannels returns resolved ids of channels that passed validation
func (s *Service) availableChannels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lo.FilterMap(s.policy.TargetChats, func(id string, _ int) (string, bool) {
		ch := s.channels[id]
		return ch.ID, ch.Available
	})
}

// monitored reports whether a chat id belongs to a target channel
func (s *Service) monitored(chatID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.aliases[chatID]
	return ok
}

func (s *Service) channelInfo(ctx context.Context, chatID string) messageDomain.ChannelInfo {
	s.mu.RLock()
	if configured, ok := s.aliases[chatID]; ok {
		if ch := s.channels[configured]; ch.Title != "" {
			s.mu.RUnlock()
			return messageDomain.ChannelInfo{ID: ch.ID, Title: ch.Title, Kind: ch.Kind}
		}
	}
	s.mu.RUnlock()

	info, err := s.adapter.ResolveChannel(ctx, chatID)
	if err != nil {
		s.logger.Warn("Channel lookup failed", "chat_id", chatID, "error", oops.Wrapf(apperrors.ErrLookupFailure, "%v", err))
		return messageDomain.ChannelInfo{ID: chatID}
	}
	return info
}

func (s *Service) senderInfo(ctx context.Context, senderID string) messageDomain.SenderInfo {
	if senderID == "" {
		return messageDomain.SenderInfo{}
	}

	info, err := s.adapter.ResolveSender(ctx, senderID)
	if err != nil {
		s.logger.Warn("Sender lookup failed", "sender_id", senderID, "error", oops.Wrapf(apperrors.ErrLookupFailure, "%v", err))
		return messageDomain.SenderInfo{ID: senderID}
	}
	return info
}
