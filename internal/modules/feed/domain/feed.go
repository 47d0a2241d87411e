package domain

import "time"

// FeedConfig describes the header of a generated match feed
type FeedConfig struct {
	ChannelID   string    `json:"channel_id,omitempty"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description string    `json:"description"`
	Updated     time.Time `json:"updated"`
}
