package domain

import (
	filterDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/filter/domain"
	messageDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/domain"
)

// ChannelStatus describes one monitored chat.
// ID is the resolved id; ConfiguredID is how the policy names it.
type ChannelStatus struct {
	ID           string                 `json:"id"`
	ConfiguredID string                 `json:"configured_id"`
	Title        string                 `json:"title"`
	Kind         messageDomain.ChatKind `json:"kind,omitempty"`
	Available    bool                   `json:"available"`
	Error        string                 `json:"error,omitempty"`
	Seen         int                    `json:"seen"`
}

// Outcome reports what the pipeline did with one message
type Outcome struct {
	MessageID  int64                     `json:"message_id"`
	ChatID     string                    `json:"chat_id"`
	Verdict    filterDomain.Verdict      `json:"verdict"`
	Forwarded  bool                      `json:"forwarded"`
	ForwardRef *messageDomain.MessageRef `json:"forward_ref,omitempty"`
	TaskID     string                    `json:"task_id,omitempty"`
}

// Stats are counters since the monitor started
type Stats struct {
	Mode      Mode  `json:"mode"`
	Running   bool  `json:"running"`
	Processed int64 `json:"processed"`
	Forwarded int64 `json:"forwarded"`
	Scheduled int64 `json:"scheduled"`
	Errors    int64 `json:"errors"`
}

// TestMessage is an ad-hoc message submitted through the pipeline by hand
type TestMessage struct {
	ChatID   string `json:"chat_id"`
	SenderID string `json:"sender_id"`
	Text     string `json:"text"`
}
