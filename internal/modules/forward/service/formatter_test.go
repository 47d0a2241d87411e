package service

import (
	"strings"
	"testing"
	"time"

	taskDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/task/domain"
	"github.com/stretchr/testify/assert"
)

func TestFormatFullRequest(t *testing.T) {
	f := New(time.UTC)
	out := f.Format(Request{
		Text:         "  This is urgent!  ",
		ChannelTitle: "Alerts",
		ChannelID:    "-1001",
		SenderName:   "Jane Doe",
		SenderHandle: "@jdoe",
		Matched:      []string{"urgent"},
		MessageTime:  time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	})

	assert.Contains(t, out, "Channel: Alerts (-1001)")
	assert.Contains(t, out, "From: Jane Doe (@jdoe)")
	assert.Contains(t, out, "Time: 02.01.2025 03:04:05 UTC")
	assert.Contains(t, out, "Keywords: urgent")
	assert.True(t, strings.HasSuffix(out, "This is urgent!"))
}

func TestFormatMissingOptionals(t *testing.T) {
	out := New(nil).Format(Request{Text: "hello"})

	assert.Contains(t, out, "Channel: Unknown channel (?)")
	assert.Contains(t, out, "From: Unknown\n")
	assert.Contains(t, out, "Time: unknown time")
	assert.Contains(t, out, "Keywords: none")
}

func TestFormatUsesLocation(t *testing.T) {
	loc := time.FixedZone("MSK", 3*60*60)

	out := New(loc).Format(Request{Text: "x", MessageTime: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)})
	assert.Contains(t, out, "02.01.2025 06:04:05 MSK")
}

func TestFormatIsDeterministic(t *testing.T) {
	f := New(time.UTC)
	req := Request{Text: "a", Matched: []string{"a", "b"}, MessageTime: time.Unix(1700000000, 0)}
	assert.Equal(t, f.Format(req), f.Format(req))
}

func TestTaskNotices(t *testing.T) {
	f := New(time.UTC)
	task := taskDomain.DelayedTask{
		ID:           "task_1",
		RecipientID:  "42",
		OriginChatID: "-1001",
		ScheduledAt:  time.Date(2025, 1, 2, 3, 34, 5, 0, time.UTC),
		Origin: taskDomain.Origin{
			Text:       "This is urgent!",
			ChatTitle:  "Alerts",
			SenderName: "Jane",
		},
		Attempts:    3,
		MaxAttempts: 3,
		LastError:   "user blocked the bot",
	}

	scheduled := f.Scheduled(task)
	assert.Contains(t, scheduled, "Task: task_1")
	assert.Contains(t, scheduled, "Recipient: Jane (42)")
	assert.Contains(t, scheduled, "Send at: 02.01.2025 03:34:05 UTC")

	assert.Contains(t, f.Sent(task), "Delayed message sent")

	failed := f.Failed(task)
	assert.Contains(t, failed, "Attempts: 3/3")
	assert.Contains(t, failed, "Error: user blocked the bot")
}

func TestTruncateCountsRunes(t *testing.T) {
	assert.Equal(t, "абв...", truncate("абвгд", 3))
	assert.Equal(t, "abc", truncate("abc", 3))
}
