package domain

import "time"

// Origin is a snapshot of the message that triggered a task, taken when the
// task is created so later profile changes do not leak into notifications
type Origin struct {
	Text         string    `json:"text"`
	ChatTitle    string    `json:"chat_title"`
	SenderName   string    `json:"sender_name"`
	SenderHandle string    `json:"sender_handle,omitempty"`
	MessageTime  time.Time `json:"message_time"`
}

// DelayedTask is a private follow-up message waiting to be sent
type DelayedTask struct {
	ID           string    `json:"id"`
	RecipientID  string    `json:"recipient_id"`
	OriginChatID string    `json:"origin_chat_id"`
	Payload      string    `json:"payload"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	CreatedAt    time.Time `json:"created_at"`
	Origin       Origin    `json:"origin"`
	Status       Status    `json:"status"`
	Attempts     int       `json:"attempts"`
	MaxAttempts  int       `json:"max_attempts"`
	LogChatID    string    `json:"log_chat_id,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

// IsTerminal reports whether the task will never transition again
func (t DelayedTask) IsTerminal() bool {
	return t.Status == StatusSent || t.Status == StatusFailed
}

// ScheduleRequest carries everything needed to create a DelayedTask
type ScheduleRequest struct {
	RecipientID  string
	OriginChatID string
	Payload      string
	Delay        time.Duration
	Origin       Origin
	LogChatID    string
}
