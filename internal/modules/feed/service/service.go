package service

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/feed/domain"
	messageDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/domain"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

const DefaultLimit = 50

// Archive is the read side of the match archive
type Archive interface {
	RecentMatches(limit int) ([]*messageDomain.Match, error)
	ChannelMatches(channelID string, limit int) ([]*messageDomain.Match, error)
}

// Service handles RSS feed generation for forwarded matches
type Service struct {
	archive Archive
	limit   int
}

// New creates a new feed service. limit <= 0 uses DefaultLimit.
func New(archive Archive, limit int) *Service {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Service{
		archive: archive,
		limit:   limit,
	}
}

// GenerateFeed generates a feed of the newest matches across all channels
func (s *Service) GenerateFeed(baseURL string) (*feeds.Feed, error) {
	matches, err := s.archive.RecentMatches(s.limit)
	if err != nil {
		return nil, oops.In("feed").With("context", "failed to get matches").Wrap(err)
	}

	cfg := domain.FeedConfig{
		Title:       "Keyword matches",
		Link:        fmt.Sprintf("%s/rss", baseURL),
		Description: "Messages forwarded by the keyword monitor",
		Updated:     lastForwarded(matches),
	}
	return s.build(cfg, matches, baseURL), nil
}

// GenerateChannelFeed generates a feed of the newest matches of one channel
func (s *Service) GenerateChannelFeed(channelID string, baseURL string) (*feeds.Feed, error) {
	channelID = messageDomain.NormalizeID(channelID)
	matches, err := s.archive.ChannelMatches(channelID, s.limit)
	if err != nil {
		return nil, oops.In("feed").With("channel_id", channelID, "context", "failed to get matches").Wrap(err)
	}

	title := channelID
	if m, ok := lo.Find(matches, func(m *messageDomain.Match) bool { return m.ChannelTitle != "" }); ok {
		title = m.ChannelTitle
	}

	cfg := domain.FeedConfig{
		ChannelID:   channelID,
		Title:       fmt.Sprintf("%s - Keyword matches", title),
		Link:        fmt.Sprintf("%s/rss/%s", baseURL, channelID),
		Description: fmt.Sprintf("Keyword matches from Telegram channel: %s", title),
		Updated:     lastForwarded(matches),
	}
	return s.build(cfg, matches, baseURL), nil
}

func (s *Service) build(cfg domain.FeedConfig, matches []*messageDomain.Match, baseURL string) *feeds.Feed {
	feed := &feeds.Feed{
		Title:       cfg.Title,
		Link:        &feeds.Link{Href: cfg.Link},
		Description: cfg.Description,
		Updated:     cfg.Updated,
	}

	feed.Items = lo.Map(matches, func(m *messageDomain.Match, _ int) *feeds.Item {
		return s.matchToFeedItem(m, baseURL)
	})
	return feed
}

func (s *Service) matchToFeedItem(m *messageDomain.Match, baseURL string) *feeds.Item {
	description := m.Text
	if description == "" {
		description = "No text content"
	}

	content := fmt.Sprintf("<p>%s</p>", html.EscapeString(description))
	if len(m.Keywords) > 0 {
		content += fmt.Sprintf("<p><strong>Keywords:</strong> %s</p>", html.EscapeString(strings.Join(m.Keywords, ", ")))
	}

	author := m.SenderName
	if m.SenderHandle != "" {
		author = strings.TrimSpace(fmt.Sprintf("%s @%s", author, m.SenderHandle))
	}

	return &feeds.Item{
		Title:       truncate(m.Text, 100),
		Link:        &feeds.Link{Href: MessageLink(m.ChannelID, m.ID, baseURL)},
		Description: description,
		Content:     content,
		Author:      &feeds.Author{Name: author},
		Created:     m.Date,
		Updated:     m.ForwardedAt,
		Id:          fmt.Sprintf("%s-%d", m.ChannelID, m.ID),
	}
}

// MessageLink points at the original message. Supergroups and channels get a
// t.me/c link, usernames a public link, anything else the channel feed.
func MessageLink(channelID string, messageID int64, baseURL string) string {
	switch {
	case strings.HasPrefix(channelID, "-100"):
		return fmt.Sprintf("https://t.me/c/%s/%d", strings.TrimPrefix(channelID, "-100"), messageID)
	case messageDomain.IsUsername(channelID):
		return fmt.Sprintf("https://t.me/%s/%d", strings.TrimPrefix(channelID, "@"), messageID)
	default:
		return fmt.Sprintf("%s/rss/%s", baseURL, channelID)
	}
}

func lastForwarded(matches []*messageDomain.Match) time.Time {
	if len(matches) == 0 {
		return time.Time{}
	}
	return lo.MaxBy(matches, func(a, b *messageDomain.Match) bool {
		return a.ForwardedAt.After(b.ForwardedAt)
	}).ForwardedAt
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
