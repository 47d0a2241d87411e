package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"
	messageDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/domain"
	"github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/task/domain"
	apperrors "github.com/reshetovitsme/telegram-keyword-monitor/internal/shared/errors"
	"github.com/samber/oops"
)

const (
	DefaultRetryDelay  = 5 * time.Minute
	DefaultMaxAttempts = 3
	DefaultSendTimeout = 30 * time.Second
)

// Sender delivers text to a chat or user
type Sender interface {
	Send(ctx context.Context, targetID, text string) (messageDomain.MessageRef, error)
}

// Notices renders lifecycle notifications for the log channel
type Notices interface {
	Scheduled(task domain.DelayedTask) string
	Sent(task domain.DelayedTask) string
	Failed(task domain.DelayedTask) string
}

// Options tunes retry behaviour; zero values fall back to defaults
type Options struct {
	RetryDelay  time.Duration
	MaxAttempts int
	SendTimeout time.Duration
	Clock       clockwork.Clock
	Logger      *slog.Logger
}

type entry struct {
	task  domain.DelayedTask
	timer clockwork.Timer
}

// Scheduler owns the table of pending delayed tasks. A task leaves the
// table when it is sent, fails for the last time, or is cancelled.
type Scheduler struct {
	sender  Sender
	notices Notices
	opts    Options
	clock   clockwork.Clock
	logger  *slog.Logger

	tasks map[string]*entry
	mu    sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler sending through sender
func New(sender Sender, notices Notices, opts Options) *Scheduler {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
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
	return &Scheduler{
		sender:  sender,
		notices: notices,
		opts:    opts,
		clock:   opts.Clock,
		logger:  opts.Logger.With("component", "scheduler"),
		tasks:   make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Schedule creates a pending task and arms its timer. It returns without
// waiting for the delay; the "scheduled" notice is sent in the background.
func (s *Scheduler) Schedule(req domain.ScheduleRequest) (string, error) {
	errorBuilder := oops.In("scheduler").With("recipient_id", req.RecipientID, "origin_chat_id", req.OriginChatID)
	if strings.TrimSpace(req.RecipientID) == "" {
		return "", errorBuilder.Wrapf(apperrors.ErrConfiguration, "recipient is required")
	}
	if strings.TrimSpace(req.Payload) == "" {
		return "", errorBuilder.Wrapf(apperrors.ErrConfiguration, "payload is required")
	}
	if req.Delay < 0 {
		return "", errorBuilder.With("delay", req.Delay).Wrapf(apperrors.ErrConfiguration, "delay must not be negative")
	}

	now := s.clock.Now()
	task := domain.DelayedTask{
		ID:           s.newID(now),
		RecipientID:  req.RecipientID,
		OriginChatID: req.OriginChatID,
		Payload:      req.Payload,
		ScheduledAt:  now.Add(req.Delay),
		CreatedAt:    now,
		Origin:       req.Origin,
		Status:       domain.StatusPending,
		MaxAttempts:  s.opts.MaxAttempts,
		LogChatID:    req.LogChatID,
	}

	e := &entry{task: task}
	s.mu.Lock()
	s.tasks[task.ID] = e
	e.timer = s.clock.AfterFunc(req.Delay, func() { s.execute(task.ID, e) })
	s.mu.Unlock()

	s.logger.Info("Delayed message scheduled",
		"task_id", task.ID,
		"recipient_id", task.RecipientID,
		"scheduled_at", task.ScheduledAt,
	)

	if task.LogChatID != "" {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.notify(task, s.notices.Scheduled(task))
		}()
	}

	return task.ID, nil
}

// Cancel disarms and removes a live task. It returns false when the task is
// unknown or has already reached a terminal state.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tasks[id]
	if !ok {
		return false
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(s.tasks, id)

	s.logger.Info("Delayed message cancelled", "task_id", id, "attempts", e.task.Attempts)
	return true
}

// Get returns a snapshot of a live task
func (s *Scheduler) Get(id string) (domain.DelayedTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tasks[id]
	if !ok {
		return domain.DelayedTask{}, false
	}
	return e.task, true
}

// ListPending returns snapshots of all live tasks ordered by fire time
func (s *Scheduler) ListPending() []domain.DelayedTask {
	s.mu.Lock()
	tasks := make([]domain.DelayedTask, 0, len(s.tasks))
	for _, e := range s.tasks {
		tasks = append(tasks, e.task)
	}
	s.mu.Unlock()

	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].ScheduledAt.Equal(tasks[j].ScheduledAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].ScheduledAt.Before(tasks[j].ScheduledAt)
	})
	return tasks
}

// Shutdown stops every armed timer and waits for background notices.
// Live tasks are dropped with the process.
func (s *Scheduler) Shutdown() {
	s.cancel()

	s.mu.Lock()
	for _, e := range s.tasks {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// execute runs one delivery attempt. e identifies the table entry the timer
// was armed for, so a task cancelled while sending is left alone.
func (s *Scheduler) execute(id string, e *entry) {
	s.mu.Lock()
	if cur, ok := s.tasks[id]; !ok || cur != e {
		s.mu.Unlock()
		return
	}
	e.task.Attempts++
	attempt := e.task
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, s.opts.SendTimeout)
	_, sendErr := s.sender.Send(ctx, attempt.RecipientID, attempt.Payload)
	cancel()

	s.mu.Lock()
	if cur, ok := s.tasks[id]; !ok || cur != e {
		s.mu.Unlock()
		s.logger.Warn("Delayed message cancelled during delivery", "task_id", id, "delivered", sendErr == nil)
		return
	}

	if sendErr == nil {
		e.task.Status = domain.StatusSent
		e.task.LastError = ""
		delete(s.tasks, id)
		done := e.task
		s.mu.Unlock()

		s.logger.Info("Delayed message sent", "task_id", id, "recipient_id", done.RecipientID, "attempts", done.Attempts)
		s.notify(done, s.notices.Sent(done))
		return
	}

	e.task.LastError = sendErr.Error()
	if s.ctx.Err() != nil {
		// shutdown cut the attempt short; the task stays pending
		s.mu.Unlock()
		s.logger.Warn("Delayed message attempt interrupted by shutdown", "task_id", id, "error", sendErr)
		return
	}

	if e.task.Attempts < e.task.MaxAttempts {
		e.task.ScheduledAt = s.clock.Now().Add(s.opts.RetryDelay)
		e.timer = s.clock.AfterFunc(s.opts.RetryDelay, func() { s.execute(id, e) })
		retry := e.task
		s.mu.Unlock()

		s.logger.Warn("Delayed message attempt failed, retry armed",
			"task_id", id,
			"attempt", retry.Attempts,
			"max_attempts", retry.MaxAttempts,
			"retry_at", retry.ScheduledAt,
			"error", sendErr,
		)
		return
	}

	e.task.Status = domain.StatusFailed
	delete(s.tasks, id)
	failed := e.task
	s.mu.Unlock()

	s.logger.Error("Delayed message failed",
		"task_id", id,
		"recipient_id", failed.RecipientID,
		"attempts", failed.Attempts,
		"error", sendErr,
	)
	s.notify(failed, s.notices.Failed(failed))
}

func (s *Scheduler) notify(task domain.DelayedTask, text string) {
	if task.LogChatID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.opts.SendTimeout)
	defer cancel()

	if _, err := s.sender.Send(ctx, task.LogChatID, text); err != nil {
		s.logger.Error("Failed to send task notification",
			"task_id", task.ID,
			"status", task.Status,
			"log_chat_id", task.LogChatID,
			"error", err,
		)
	}
}

func (s *Scheduler) newID(now time.Time) string {
	return "task_" + ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}
