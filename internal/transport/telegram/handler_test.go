package telegram

import (
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	filterDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/filter/domain"
	messageDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/domain"
	monitorDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/monitor/domain"
	taskDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/task/domain"
	userDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/user/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToInbound(t *testing.T) {
	msg := &models.Message{
		ID:   15,
		Date: 1748772000,
		Chat: models.Chat{ID: -1001234567890, Type: "supergroup", Title: "Alerts"},
		From: &models.User{ID: 42, FirstName: "Sam", LastName: "Lee", Username: "sam"},
		Text: "This is urgent!",
	}

	inbound, ok := toInbound(msg)
	require.True(t, ok)
	assert.Equal(t, messageDomain.InboundMessage{
		ID:       15,
		ChatID:   "-1001234567890",
		ChatKind: messageDomain.ChatKindSupergroup,
		SenderID: "42",
		Text:     "This is urgent!",
		Date:     1748772000,
	}, inbound)

	sender, ok := senderFromMessage(msg)
	require.True(t, ok)
	assert.Equal(t, "Sam Lee", sender.DisplayName)
	assert.Equal(t, "sam", sender.Handle)
}

func TestToInboundChannelPostUsesCaption(t *testing.T) {
	msg := &models.Message{
		ID:         3,
		Chat:       models.Chat{ID: -100555, Type: "channel"},
		SenderChat: &models.Chat{ID: -100555, Type: "channel"},
		Caption:    "photo caption",
	}

	inbound, ok := toInbound(msg)
	require.True(t, ok)
	assert.Equal(t, messageDomain.ChatKindChannel, inbound.ChatKind)
	assert.Equal(t, "photo caption", inbound.Text)
	assert.Empty(t, inbound.SenderID)

	_, ok = senderFromMessage(msg)
	assert.False(t, ok)
}

func TestToInboundRejectsUnknownChatType(t *testing.T) {
	_, ok := toInbound(&models.Message{Chat: models.Chat{ID: 1, Type: "sender"}})
	assert.False(t, ok)
}

func TestChatIDParam(t *testing.T) {
	assert.Equal(t, int64(-1001234), chatIDParam("-1001234"))
	assert.Equal(t, "@news", chatIDParam("@news"))
}

func TestCommandArg(t *testing.T) {
	assert.Equal(t, "task_01", commandArg("/cancel   task_01 "))
	assert.Equal(t, "this is urgent", commandArg("/test this is urgent"))
	assert.Empty(t, commandArg("/cancel"))
}

func TestPrivateCommand(t *testing.T) {
	update := func(chatType models.ChatType, text string) *models.Update {
		return &models.Update{Message: &models.Message{Chat: models.Chat{ID: 1, Type: chatType}, Text: text}}
	}
	match := privateCommand("/test")

	assert.True(t, match(update(models.ChatTypePrivate, "/test this is urgent")))
	assert.True(t, match(update(models.ChatTypePrivate, "/test@keyword_bot urgent")))
	assert.True(t, match(update(models.ChatTypePrivate, "/test")))
	assert.False(t, match(update(models.ChatTypePrivate, "/testing urgent")))
	assert.False(t, match(update(models.ChatTypeSupergroup, "/test this is urgent")))
	assert.False(t, match(update(models.ChatTypeGroup, "/test")))
	assert.False(t, match(&models.Update{ChannelPost: &models.Message{Chat: models.Chat{Type: models.ChatTypeChannel}, Text: "/test"}}))
}

func TestRenderStatus(t *testing.T) {
	text := renderStatus(monitorDomain.Stats{Mode: monitorDomain.ModePoll, Running: true, Forwarded: 3}, []monitorDomain.ChannelStatus{
		{ID: "-1001", ConfiguredID: "@alerts", Title: "Alerts", Available: true},
		{ID: "C2", ConfiguredID: "C2"},
	}, 2)

	assert.Contains(t, text, "running")
	assert.Contains(t, text, "Mode: poll")
	assert.Contains(t, text, "Forwarded: 3")
	assert.Contains(t, text, "Pending tasks: 2")
	assert.Contains(t, text, "✅ Alerts (-1001)")
	assert.Contains(t, text, "⚠️ C2 (C2)")
}

func TestRenderPolicy(t *testing.T) {
	text := renderPolicy(filterDomain.Policy{
		TargetChats:  []string{"C1"},
		Keywords:     []string{"urgent", "sale"},
		TargetChatID: "OUT",
	})

	assert.Contains(t, text, "Keywords: urgent, sale")
	assert.Contains(t, text, "Exclude: none")
	assert.Contains(t, text, "Delayed replies: off")
}

func TestRenderTasks(t *testing.T) {
	assert.Contains(t, renderTasks(nil, time.UTC), "No pending")

	text := renderTasks([]taskDomain.DelayedTask{{
		ID:          "task_1",
		RecipientID: "42",
		ScheduledAt: time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC),
		MaxAttempts: 3,
	}}, time.UTC)
	assert.Contains(t, text, "1. task_1")
	assert.Contains(t, text, "At: 01.06.2025 10:30:00 UTC")
	assert.Contains(t, text, "Attempts: 0/3")
}

func TestRenderUsers(t *testing.T) {
	assert.Contains(t, renderUsers(nil, time.UTC), "No operators")

	text := renderUsers([]*userDomain.User{
		{ID: 7, Username: "alice", Commands: 3, LastCommand: "/status", Authorized: true, LastSeen: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)},
		{ID: 9, Commands: 1, LastCommand: "/start", LastSeen: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)},
	}, time.UTC)
	assert.Contains(t, text, "Operators: 2")
	assert.Contains(t, text, "✅ @alice: 3 commands, last /status at 01.06.2025 09:00:00 UTC")
	assert.Contains(t, text, "🚫 9: 1 commands, last /start")
}

func TestRenderOutcome(t *testing.T) {
	skipped := renderOutcome(monitorDomain.Outcome{Verdict: filterDomain.Verdict{Reason: "no keywords matched"}})
	assert.Equal(t, "🚫 Not forwarded: no keywords matched", skipped)

	forwarded := renderOutcome(monitorDomain.Outcome{
		ChatID:    "C1",
		Verdict:   filterDomain.Verdict{Forward: true, Matched: []string{"urgent"}},
		Forwarded: true,
		TaskID:    "task_1",
	})
	assert.Contains(t, forwarded, "Forwarded from C1")
	assert.Contains(t, forwarded, "Delayed task: task_1")
}
