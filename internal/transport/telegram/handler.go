package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	filterDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/filter/domain"
	forwardService "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/forward/service"
	messageDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/domain"
	monitorDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/monitor/domain"
	taskDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/task/domain"
	userDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/user/domain"
)

// Monitor is the part of the orchestrator exposed to bot commands
type Monitor interface {
	Policy() filterDomain.Policy
	Channels() []monitorDomain.ChannelStatus
	Stats() monitorDomain.Stats
	SubmitTest(ctx context.Context, msg monitorDomain.TestMessage) (monitorDomain.Outcome, error)
}

// Tasks is the part of the scheduler exposed to bot commands
type Tasks interface {
	ListPending() []taskDomain.DelayedTask
	Cancel(id string) bool
}

// Users authorizes command senders
type Users interface {
	Authorize(userID int64) error
	RecordCommand(userID int64, username, command string) (*userDomain.User, error)
	GetAllUsers() ([]*userDomain.User, error)
}

// Handler handles Telegram bot admin commands
type Handler struct {
	monitor Monitor
	tasks   Tasks
	users   Users
	loc     *time.Location
	logger  *slog.Logger
}

// New creates a new Telegram command handler
func New(monitor Monitor, tasks Tasks, users Users, loc *time.Location, logger *slog.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		monitor: monitor,
		tasks:   tasks,
		users:   users,
		loc:     loc,
		logger:  logger.With("component", "bot-commands"),
	}
}

// RegisterCommands registers bot commands. Commands are only accepted in
// private chats; anything else falls through to the default handler.
func (h *Handler) RegisterCommands(b *bot.Bot) {
	b.RegisterHandlerMatchFunc(privateCommand("/start"), h.handleStart)
	b.RegisterHandlerMatchFunc(privateCommand("/help"), h.handleHelp)
	b.RegisterHandlerMatchFunc(privateCommand("/status"), h.handleStatus)
	b.RegisterHandlerMatchFunc(privateCommand("/policy"), h.handlePolicy)
	b.RegisterHandlerMatchFunc(privateCommand("/tasks"), h.handleTasks)
	b.RegisterHandlerMatchFunc(privateCommand("/users"), h.handleUsers)
	b.RegisterHandlerMatchFunc(privateCommand("/cancel"), h.handleCancel)
	b.RegisterHandlerMatchFunc(privateCommand("/test"), h.handleTest)
}

// privateCommand matches a private message whose first word is name,
// with or without a "@botname" suffix
func privateCommand(name string) bot.MatchFunc {
	return func(update *models.Update) bool {
		msg := update.Message
		if msg == nil || msg.Chat.Type != models.ChatTypePrivate {
			return false
		}
		word, _, _ := strings.Cut(strings.TrimSpace(msg.Text), " ")
		word, _, _ = strings.Cut(word, "@")
		return word == name
	}
}

const helpText = `👋 Keyword monitor bot

Available commands:
/help - Show this help message
/status - Monitoring status and counters
/policy - Active keyword policy
/tasks - Pending delayed messages
/users - Known bot operators
/cancel <task_id> - Cancel a delayed message
/test <text> - Run a message through the filter

Example:
/test this is urgent`

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !h.authorize(ctx, b, update, "/start") {
		return
	}
	h.reply(ctx, b, update, helpText)
}

func (h *Handler) handleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !h.authorize(ctx, b, update, "/help") {
		return
	}
	h.reply(ctx, b, update, helpText)
}

func (h *Handler) handleStatus(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !h.authorize(ctx, b, update, "/status") {
		return
	}
	h.reply(ctx, b, update, renderStatus(h.monitor.Stats(), h.monitor.Channels(), len(h.tasks.ListPending())))
}

func (h *Handler) handlePolicy(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !h.authorize(ctx, b, update, "/policy") {
		return
	}
	h.reply(ctx, b, update, renderPolicy(h.monitor.Policy()))
}

func (h *Handler) handleTasks(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !h.authorize(ctx, b, update, "/tasks") {
		return
	}
	h.reply(ctx, b, update, renderTasks(h.tasks.ListPending(), h.loc))
}

func (h *Handler) handleUsers(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !h.authorize(ctx, b, update, "/users") {
		return
	}

	users, err := h.users.GetAllUsers()
	if err != nil {
		h.logger.Error("Failed to list users", "error", err)
		h.reply(ctx, b, update, "❌ Failed to list users")
		return
	}
	h.reply(ctx, b, update, renderUsers(users, h.loc))
}

func (h *Handler) handleCancel(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !h.authorize(ctx, b, update, "/cancel") {
		return
	}

	id := commandArg(update.Message.Text)
	if id == "" {
		h.reply(ctx, b, update, "Usage: /cancel <task_id>\nUse /tasks to list pending tasks.")
		return
	}

	if !h.tasks.Cancel(id) {
		h.reply(ctx, b, update, fmt.Sprintf("❌ Task not found: %s", id))
		return
	}

	h.logger.Info("Task cancelled from bot", "task_id", id, "user_id", update.Message.From.ID)
	h.reply(ctx, b, update, fmt.Sprintf("✅ Task %s cancelled", id))
}

func (h *Handler) handleTest(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !h.authorize(ctx, b, update, "/test") {
		return
	}

	text := commandArg(update.Message.Text)
	if text == "" {
		h.reply(ctx, b, update, "Usage: /test <text>\nExample: /test this is urgent")
		return
	}

	outcome, err := h.monitor.SubmitTest(ctx, monitorDomain.TestMessage{
		SenderID: messageDomain.NormalizeID(update.Message.From.ID),
		Text:     text,
	})
	if err != nil {
		h.reply(ctx, b, update, fmt.Sprintf("❌ Test failed: %v", err))
		return
	}
	h.reply(ctx, b, update, renderOutcome(outcome))
}

// authorize records the command and rejects users outside allowed_users
func (h *Handler) authorize(ctx context.Context, b *bot.Bot, update *models.Update, command string) bool {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return false
	}

	if _, err := h.users.RecordCommand(msg.From.ID, msg.From.Username, command); err != nil {
		h.logger.Error("Failed to record command", "user_id", msg.From.ID, "command", command, "error", err)
	}

	if err := h.users.Authorize(msg.From.ID); err != nil {
		h.logger.Warn("Unauthorized command", "command", command, "error", err)
		h.reply(ctx, b, update, "❌ You are not authorized to use this bot.")
		return false
	}
	return true
}

func (h *Handler) reply(ctx context.Context, b *bot.Bot, update *models.Update, text string) {
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   text,
	}); err != nil {
		h.logger.Error("Failed to send reply", "chat_id", update.Message.Chat.ID, "error", err)
	}
}

// commandArg returns everything after the command word
func commandArg(text string) string {
	fields := strings.SplitN(strings.TrimSpace(text), " ", 2)
	if len(fields) < 2 {
		return ""
	}
	return strings.TrimSpace(fields[1])
}

func renderStatus(stats monitorDomain.Stats, channels []monitorDomain.ChannelStatus, pending int) string {
	state := "⏸️ stopped"
	if stats.Running {
		state = "▶️ running"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Monitor Status: %s\n\n", state)
	fmt.Fprintf(&b, "Mode: %s\n", stats.Mode)
	fmt.Fprintf(&b, "Processed: %d\nForwarded: %d\nScheduled: %d\nErrors: %d\n", stats.Processed, stats.Forwarded, stats.Scheduled, stats.Errors)
	fmt.Fprintf(&b, "Pending tasks: %d\n\n", pending)

	b.WriteString("Channels:\n")
	for _, ch := range channels {
		mark := "✅"
		if !ch.Available {
			mark = "⚠️"
		}
		title := ch.Title
		if title == "" {
			title = ch.ConfiguredID
		}
		fmt.Fprintf(&b, "%s %s (%s)\n", mark, title, ch.ID)
	}
	return b.String()
}

func renderPolicy(p filterDomain.Policy) string {
	var b strings.Builder
	b.WriteString("🔑 Keyword Policy\n\n")
	fmt.Fprintf(&b, "Channels: %s\n", orNone(p.TargetChats))
	fmt.Fprintf(&b, "Keywords: %s\n", orNone(p.Keywords))
	fmt.Fprintf(&b, "Exclude: %s\n", orNone(p.ExcludeKeywords))
	fmt.Fprintf(&b, "Min length: %d\n", p.MinMessageLength)
	fmt.Fprintf(&b, "Forward to: %s\n", p.TargetChatID)
	if p.DelayedReplies.Enabled {
		fmt.Fprintf(&b, "Delayed replies: after %d min\n", p.DelayedReplies.DelayMinutes)
	} else {
		b.WriteString("Delayed replies: off\n")
	}
	return b.String()
}

func renderTasks(tasks []taskDomain.DelayedTask, loc *time.Location) string {
	if len(tasks) == 0 {
		return "📭 No pending delayed messages."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "⏰ Pending delayed messages: %d\n\n", len(tasks))
	for i, t := range tasks {
		fmt.Fprintf(&b, "%d. %s\n   To: %s\n   At: %s\n   Attempts: %d/%d\n\n",
			i+1, t.ID, t.RecipientID, t.ScheduledAt.In(loc).Format(forwardService.TimeLayout), t.Attempts, t.MaxAttempts)
	}
	return b.String()
}

func renderUsers(users []*userDomain.User, loc *time.Location) string {
	if len(users) == 0 {
		return "👤 No operators yet."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "👤 Operators: %d\n\n", len(users))
	for _, u := range users {
		name := fmt.Sprintf("%d", u.ID)
		if u.Username != "" {
			name = "@" + u.Username
		}
		mark := "✅"
		if !u.Authorized {
			mark = "🚫"
		}
		fmt.Fprintf(&b, "%s %s: %d commands, last %s at %s\n",
			mark, name, u.Commands, u.LastCommand, u.LastSeen.In(loc).Format(forwardService.TimeLayout))
	}
	return b.String()
}

func renderOutcome(o monitorDomain.Outcome) string {
	if !o.Verdict.Forward {
		return fmt.Sprintf("🚫 Not forwarded: %s", o.Verdict.Reason)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✅ Forwarded from %s\nKeywords: %s\n", o.ChatID, strings.Join(o.Verdict.Matched, ", "))
	if o.TaskID != "" {
		fmt.Fprintf(&b, "Delayed task: %s\n", o.TaskID)
	}
	return b.String()
}

func orNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
