package service

import (
	"errors"
	"testing"
	"time"

	messageDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArchive struct {
	matches []*messageDomain.Match
	err     error
	limit   int
}

func (f *fakeArchive) RecentMatches(limit int) ([]*messageDomain.Match, error) {
	f.limit = limit
	return f.matches, f.err
}

func (f *fakeArchive) ChannelMatches(channelID string, limit int) ([]*messageDomain.Match, error) {
	f.limit = limit
	var out []*messageDomain.Match
	for _, m := range f.matches {
		if m.ChannelID == channelID {
			out = append(out, m)
		}
	}
	return out, f.err
}

func sampleMatches() []*messageDomain.Match {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return []*messageDomain.Match{
		{
			ID:           12,
			ChannelID:    "-1001234",
			ChannelTitle: "Alerts",
			SenderName:   "Sam",
			SenderHandle: "sam",
			Text:         "urgent: <b>server</b> down",
			Keywords:     []string{"urgent"},
			Date:         base,
			ForwardedAt:  base.Add(2 * time.Minute),
		},
		{
			ID:          3,
			ChannelID:   "@news",
			Text:        "sale today",
			Keywords:    []string{"sale"},
			Date:        base,
			ForwardedAt: base.Add(time.Minute),
		},
	}
}

func TestGenerateFeed(t *testing.T) {
	archive := &fakeArchive{matches: sampleMatches()}
	svc := New(archive, 0)

	feed, err := svc.GenerateFeed("http://localhost:8080")
	require.NoError(t, err)

	assert.Equal(t, DefaultLimit, archive.limit)
	assert.Equal(t, "http://localhost:8080/rss", feed.Link.Href)
	assert.Equal(t, time.Date(2025, 6, 1, 10, 2, 0, 0, time.UTC), feed.Updated)
	require.Len(t, feed.Items, 2)

	item := feed.Items[0]
	assert.Equal(t, "-1001234-12", item.Id)
	assert.Equal(t, "https://t.me/c/1234/12", item.Link.Href)
	assert.Equal(t, "Sam @sam", item.Author.Name)
	assert.Contains(t, item.Content, "&lt;b&gt;server&lt;/b&gt;")
	assert.Contains(t, item.Content, "<strong>Keywords:</strong> urgent")

	assert.Equal(t, "https://t.me/news/3", feed.Items[1].Link.Href)

	rss, err := feed.ToRss()
	require.NoError(t, err)
	assert.Contains(t, rss, "<title>Keyword matches</title>")
}

func TestGenerateChannelFeed(t *testing.T) {
	svc := New(&fakeArchive{matches: sampleMatches()}, 10)

	feed, err := svc.GenerateChannelFeed("-1001234", "http://host")
	require.NoError(t, err)
	assert.Equal(t, "Alerts - Keyword matches", feed.Title)
	assert.Equal(t, "http://host/rss/-1001234", feed.Link.Href)
	require.Len(t, feed.Items, 1)

	empty, err := svc.GenerateChannelFeed("-1009999", "http://host")
	require.NoError(t, err)
	assert.Equal(t, "-1009999 - Keyword matches", empty.Title)
	assert.Empty(t, empty.Items)
	assert.True(t, empty.Updated.IsZero())
}

func TestGenerateFeedArchiveError(t *testing.T) {
	boom := errors.New("disk failure")
	svc := New(&fakeArchive{err: boom}, 5)

	_, err := svc.GenerateFeed("http://host")
	assert.ErrorIs(t, err, boom)
}

func TestMessageLink(t *testing.T) {
	assert.Equal(t, "https://t.me/c/42/7", MessageLink("-10042", 7, "http://host"))
	assert.Equal(t, "https://t.me/chan/7", MessageLink("@chan", 7, "http://host"))
	assert.Equal(t, "http://host/rss/-42", MessageLink("-42", 7, "http://host"))
}
