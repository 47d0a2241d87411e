package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	messageDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/domain"
	"github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/task/domain"
	apperrors "github.com/reshetovitsme/telegram-keyword-monitor/internal/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type sentMessage struct {
	target string
	text   string
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[string]error
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeSender) Send(_ context.Context, targetID, text string) (messageDomain.MessageRef, error) {
	f.mu.Lock()
	f.sent = append(f.sent, sentMessage{target: targetID, text: text})
	err := f.failFor[targetID]
	block, entered := f.block, f.entered
	f.mu.Unlock()

	if block != nil && targetID != "LOG" {
		entered <- struct{}{}
		<-block
	}
	if err != nil {
		return messageDomain.MessageRef{}, err
	}
	return messageDomain.MessageRef{ChatID: targetID, MessageID: 1}, nil
}

func (f *fakeSender) to(target string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var texts []string
	for _, m := range f.sent {
		if m.target == target {
			texts = append(texts, m.text)
		}
	}
	return texts
}

type fakeNotices struct{}

func (fakeNotices) Scheduled(t domain.DelayedTask) string { return "scheduled " + t.ID }
func (fakeNotices) Sent(t domain.DelayedTask) string { return "sent " + t.ID }
func (fakeNotices) Failed(t domain.DelayedTask) string { return "failed " + t.ID + ": " + t.LastError }

func newScheduler(t *testing.T, sender Sender) (*Scheduler, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	s := New(sender, fakeNotices{}, Options{Clock: clock})
	t.Cleanup(s.Shutdown)
	return s, clock
}

func request(logChat string) domain.ScheduleRequest {
	return domain.ScheduleRequest{
		RecipientID:  "S1",
		OriginChatID: "C1",
		Payload:      "Hello from the team",
		Delay:        30 * time.Minute,
		Origin:       domain.Origin{Text: "This is urgent!", ChatTitle: "Alerts", SenderName: "Sam"},
		LogChatID:    logChat,
	}
}

func TestScheduleSuccessPath(t *testing.T) {
	sender := &fakeSender{}
	s, clock := newScheduler(t, sender)

	id, err := s.Schedule(request("LOG"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "task_"))

	task, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, domain.StatusPending, task.Status)
	assert.Equal(t, 0, task.Attempts)
	assert.Equal(t, clock.Now().Add(30*time.Minute), task.ScheduledAt)

	require.Eventually(t, func() bool { return len(sender.to("LOG")) == 1 }, waitFor, tick)
	assert.Equal(t, "scheduled "+id, sender.to("LOG")[0])

	clock.Advance(29 * time.Minute)
	task, _ = s.Get(id)
	assert.Equal(t, 0, task.Attempts)

	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return len(s.ListPending()) == 0 }, waitFor, tick)

	assert.Equal(t, []string{"Hello from the team"}, sender.to("S1"))
	require.Eventually(t, func() bool { return len(sender.to("LOG")) == 2 }, waitFor, tick)
	assert.Equal(t, "sent "+id, sender.to("LOG")[1])

	_, ok = s.Get(id)
	assert.False(t, ok)
	assert.False(t, s.Cancel(id), "cancel after a terminal state is a no-op")
}

func TestScheduleRetryBound(t *testing.T) {
	sender := &fakeSender{failFor: map[string]error{"S1": errors.New("user blocked the bot")}}
	s, clock := newScheduler(t, sender)

	id, err := s.Schedule(request("LOG"))
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	for attempt := 1; attempt < DefaultMaxAttempts; attempt++ {
		require.Eventually(t, func() bool {
			task, ok := s.Get(id)
			retryAt := clock.Now().Add(DefaultRetryDelay)
			return ok && task.Attempts == attempt && task.ScheduledAt.Equal(retryAt)
		}, waitFor, tick)

		task, _ := s.Get(id)
		assert.Equal(t, domain.StatusPending, task.Status)
		assert.Len(t, s.ListPending(), 1)

		clock.Advance(DefaultRetryDelay)
	}

	require.Eventually(t, func() bool { return len(s.ListPending()) == 0 }, waitFor, tick)
	assert.Len(t, sender.to("S1"), DefaultMaxAttempts)

	require.Eventually(t, func() bool { return len(sender.to("LOG")) == 2 }, waitFor, tick)
	assert.Equal(t, "failed "+id+": user blocked the bot", sender.to("LOG")[1])

	clock.Advance(time.Hour)
	assert.Len(t, sender.to("S1"), DefaultMaxAttempts)
}

func TestCancelBeforeDelay(t *testing.T) {
	sender := &fakeSender{}
	s, clock := newScheduler(t, sender)

	id, err := s.Schedule(request(""))
	require.NoError(t, err)

	assert.True(t, s.Cancel(id))
	assert.False(t, s.Cancel(id))

	clock.Advance(2 * time.Hour)
	assert.Empty(t, sender.to("S1"))
	assert.Empty(t, s.ListPending())
}

func TestCancelDuringDelivery(t *testing.T) {
	sender := &fakeSender{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	s, clock := newScheduler(t, sender)

	id, err := s.Schedule(request(""))
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	select {
	case <-sender.entered:
	case <-time.After(waitFor):
		t.Fatal("send was not attempted")
	}

	task, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, 1, task.Attempts)

	assert.True(t, s.Cancel(id))
	close(sender.block)

	assert.Never(t, func() bool {
		_, ok := s.Get(id)
		return ok
	}, 50*time.Millisecond, tick)
	assert.Empty(t, sender.to("LOG"))
}

func TestShutdownDuringDeliveryIsNotAFailure(t *testing.T) {
	sender := &fakeSender{
		failFor: map[string]error{"S1": context.Canceled},
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	s, clock := newScheduler(t, sender)

	id, err := s.Schedule(request("LOG"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(sender.to("LOG")) == 1 }, waitFor, tick)

	clock.Advance(30 * time.Minute)
	select {
	case <-sender.entered:
	case <-time.After(waitFor):
		t.Fatal("send was not attempted")
	}

	s.Shutdown()
	close(sender.block)

	require.Eventually(t, func() bool {
		task, ok := s.Get(id)
		return ok && task.LastError != ""
	}, waitFor, tick)

	task, _ := s.Get(id)
	assert.Equal(t, domain.StatusPending, task.Status)
	assert.Equal(t, 1, task.Attempts)
	assert.Never(t, func() bool { return len(sender.to("LOG")) > 1 }, 50*time.Millisecond, tick)
}

func TestScheduleValidation(t *testing.T) {
	s, _ := newScheduler(t, &fakeSender{})

	req := request("")
	req.RecipientID = " "
	_, err := s.Schedule(req)
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)

	req = request("")
	req.Payload = ""
	_, err = s.Schedule(req)
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)

	assert.Empty(t, s.ListPending())
}

func TestListPendingOrderAndUniqueIDs(t *testing.T) {
	s, _ := newScheduler(t, &fakeSender{})

	late := request("")
	late.Delay = time.Hour
	lateID, err := s.Schedule(late)
	require.NoError(t, err)

	early := request("")
	early.Delay = time.Minute
	earlyID, err := s.Schedule(early)
	require.NoError(t, err)

	pending := s.ListPending()
	require.Len(t, pending, 2)
	assert.Equal(t, earlyID, pending[0].ID)
	assert.Equal(t, lateID, pending[1].ID)

	pending[0].Payload = "mutated"
	task, _ := s.Get(earlyID)
	assert.Equal(t, "Hello from the team", task.Payload)

	seen := map[string]struct{}{earlyID: {}, lateID: {}}
	for range 50 {
		id, err := s.Schedule(request(""))
		require.NoError(t, err)
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}
