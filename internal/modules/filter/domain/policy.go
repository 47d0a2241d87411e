package domain

import (
	"strings"

	messageDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/domain"
	apperrors "github.com/reshetovitsme/telegram-keyword-monitor/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

// Policy decides which messages are forwarded and where.
// Build it with NewPolicy and treat it as read-only afterwards.
type Policy struct {
	TargetChats      []string       `json:"target_chats"`
	Keywords         []string       `json:"keywords"`
	ExcludeKeywords  []string       `json:"exclude_keywords"`
	MinMessageLength int            `json:"min_message_length"`
	TargetChatID     string         `json:"target_chat_id"`
	DelayedReplies   DelayedReplies `json:"delayed_replies"`
}

// DelayedReplies configures the private follow-up sent to matched senders
type DelayedReplies struct {
	Enabled      bool   `json:"enabled"`
	DelayMinutes int    `json:"delay_minutes"`
	Text         string `json:"text"`
	LogChatID    string `json:"log_chat_id,omitempty"`
}

// NewPolicy normalizes identifiers and keywords and validates the result
func NewPolicy(p Policy) (Policy, error) {
	p.TargetChats = normalizeIDs(p.TargetChats)
	p.Keywords = normalizeKeywords(p.Keywords)
	p.ExcludeKeywords = normalizeKeywords(p.ExcludeKeywords)
	p.TargetChatID = messageDomain.NormalizeID(p.TargetChatID)
	p.DelayedReplies.LogChatID = messageDomain.NormalizeID(p.DelayedReplies.LogChatID)
	p.DelayedReplies.Text = strings.TrimSpace(p.DelayedReplies.Text)

	errorBuilder := oops.In("policy")
	switch {
	case len(p.TargetChats) == 0:
		return Policy{}, errorBuilder.Wrapf(apperrors.ErrConfiguration, "target chats must not be empty")
	case len(p.Keywords) == 0:
		return Policy{}, errorBuilder.Wrapf(apperrors.ErrConfiguration, "keywords must not be empty")
	case p.TargetChatID == "":
		return Policy{}, errorBuilder.Wrapf(apperrors.ErrConfiguration, "target chat id is required")
	case p.MinMessageLength < 0:
		return Policy{}, errorBuilder.With("min_message_length", p.MinMessageLength).Wrapf(apperrors.ErrConfiguration, "min message length must not be negative")
	}

	if p.DelayedReplies.Enabled {
		if p.DelayedReplies.DelayMinutes <= 0 {
			return Policy{}, errorBuilder.With("delay_minutes", p.DelayedReplies.DelayMinutes).Wrapf(apperrors.ErrConfiguration, "delayed message delay must be positive")
		}
		if p.DelayedReplies.Text == "" {
			return Policy{}, errorBuilder.Wrapf(apperrors.ErrConfiguration, "delayed message text is required when delayed messages are enabled")
		}
	}

	return p, nil
}

// Clone returns a deep copy safe to hand out to callers
func (p Policy) Clone() Policy {
	p.TargetChats = append([]string(nil), p.TargetChats...)
	p.Keywords = append([]string(nil), p.Keywords...)
	p.ExcludeKeywords = append([]string(nil), p.ExcludeKeywords...)
	return p
}

// Monitors reports whether chatID is one of the target chats
func (p Policy) Monitors(chatID string) bool {
	return lo.Contains(p.TargetChats, chatID)
}

func normalizeIDs(ids []string) []string {
	normalized := lo.FilterMap(ids, func(id string, _ int) (string, bool) {
		n := messageDomain.NormalizeID(id)
		return n, n != ""
	})
	return lo.Uniq(normalized)
}

func normalizeKeywords(keywords []string) []string {
	normalized := lo.FilterMap(keywords, func(k string, _ int) (string, bool) {
		k = strings.ToLower(strings.TrimSpace(k))
		return k, k != ""
	})
	return lo.Uniq(normalized)
}
