package domain

import "time"

// InboundMessage is a message received from a monitored chat.
// SenderID is empty for anonymous and channel-signed posts.
type InboundMessage struct {
	ID       int64    `json:"id"`
	ChatID   string   `json:"chat_id"`
	ChatKind ChatKind `json:"chat_kind"`
	SenderID string   `json:"sender_id,omitempty"`
	Text     string   `json:"text"`
	Date     int64    `json:"date"`
}

// Time returns the message timestamp.
func (m InboundMessage) Time() time.Time {
	return time.Unix(m.Date, 0)
}

// ChannelInfo describes a chat resolved through the source adapter
type ChannelInfo struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Username string   `json:"username,omitempty"`
	Kind     ChatKind `json:"kind"`
}

// SenderInfo describes a message author
type SenderInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Handle      string `json:"handle,omitempty"`
}

// MessageRef identifies a message sent through the adapter
type MessageRef struct {
	ChatID    string `json:"chat_id"`
	MessageID int64  `json:"message_id"`
}

// Match is a forwarded message kept in the archive for feeds and listings
type Match struct {
	ID           int64     `json:"id"`
	ChannelID    string    `json:"channel_id"`
	ChannelTitle string    `json:"channel_title"`
	SenderID     string    `json:"sender_id,omitempty"`
	SenderName   string    `json:"sender_name"`
	SenderHandle string    `json:"sender_handle,omitempty"`
	Text         string    `json:"text"`
	Keywords     []string  `json:"keywords"`
	Date         time.Time `json:"date"`
	ForwardedAt  time.Time `json:"forwarded_at"`
	TaskID       string    `json:"task_id,omitempty"`
}
