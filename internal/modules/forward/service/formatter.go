package service

import (
	"fmt"
	"strings"
	"time"

	taskDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/task/domain"
)

const (
	TimeLayout = "02.01.2006 15:04:05 MST"

	unknownSender  = "Unknown"
	unknownChannel = "Unknown channel"
	unknownTime    = "unknown time"
	noKeywords     = "none"
)

// Request describes a matched message and where it came from
type Request struct {
	Text         string
	ChannelTitle string
	ChannelID    string
	SenderName   string
	SenderHandle string
	Matched      []string
	MessageTime  time.Time
}

// Formatter renders forwarded messages and delayed task notices.
// Output depends only on its input and the configured location.
type Formatter struct {
	loc *time.Location
}

// New creates a formatter rendering timestamps in loc (UTC when nil)
func New(loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{loc: loc}
}

// Format renders a matched message for the output channel
func (f *Formatter) Format(req Request) string {
	var b strings.Builder
	b.WriteString("🔔 Keyword match\n\n")
	fmt.Fprintf(&b, "📢 Channel: %s (%s)\n", orDefault(req.ChannelTitle, unknownChannel), orDefault(req.ChannelID, "?"))
	fmt.Fprintf(&b, "👤 From: %s\n", f.sender(req.SenderName, req.SenderHandle))
	fmt.Fprintf(&b, "🕒 Time: %s\n", f.timestamp(req.MessageTime))
	fmt.Fprintf(&b, "🔑 Keywords: %s\n\n", keywords(req.Matched))
	b.WriteString(strings.TrimSpace(req.Text))
	return b.String()
}

// Scheduled renders the notice posted when a task is created
func (f *Formatter) Scheduled(task taskDomain.DelayedTask) string {
	var b strings.Builder
	b.WriteString("⏰ Delayed message scheduled\n\n")
	f.writeTask(&b, task)
	fmt.Fprintf(&b, "Send at: %s\n", f.timestamp(task.ScheduledAt))
	return b.String()
}

// Sent renders the notice posted after a successful delivery
func (f *Formatter) Sent(task taskDomain.DelayedTask) string {
	var b strings.Builder
	b.WriteString("✅ Delayed message sent\n\n")
	f.writeTask(&b, task)
	fmt.Fprintf(&b, "Attempts: %d\n", task.Attempts)
	return b.String()
}

// Failed renders the notice posted once a task runs out of attempts
func (f *Formatter) Failed(task taskDomain.DelayedTask) string {
	var b strings.Builder
	b.WriteString("❌ Delayed message failed\n\n")
	f.writeTask(&b, task)
	fmt.Fprintf(&b, "Attempts: %d/%d\n", task.Attempts, task.MaxAttempts)
	fmt.Fprintf(&b, "Error: %s\n", orDefault(task.LastError, "unknown error"))
	return b.String()
}

func (f *Formatter) writeTask(b *strings.Builder, task taskDomain.DelayedTask) {
	fmt.Fprintf(b, "Task: %s\n", task.ID)
	fmt.Fprintf(b, "Recipient: %s (%s)\n", f.sender(task.Origin.SenderName, task.Origin.SenderHandle), task.RecipientID)
	fmt.Fprintf(b, "Channel: %s (%s)\n", orDefault(task.Origin.ChatTitle, unknownChannel), task.OriginChatID)
	fmt.Fprintf(b, "Message time: %s\n", f.timestamp(task.Origin.MessageTime))
	fmt.Fprintf(b, "Message: %s\n", truncate(strings.TrimSpace(task.Origin.Text), 200))
}

func (f *Formatter) sender(name, handle string) string {
	name = orDefault(strings.TrimSpace(name), unknownSender)
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return name
	}
	return fmt.Sprintf("%s (@%s)", name, handle)
}

func (f *Formatter) timestamp(t time.Time) string {
	if t.IsZero() {
		return unknownTime
	}
	return t.In(f.loc).Format(TimeLayout)
}

func keywords(matched []string) string {
	if len(matched) == 0 {
		return noKeywords
	}
	return strings.Join(matched, ", ")
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
