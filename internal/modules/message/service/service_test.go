package service

import (
	"testing"
	"time"

	"github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/domain"
	"github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelMatchesNormalizesID(t *testing.T) {
	repo, err := repository.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	svc := New(repo)

	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, svc.SaveMatch(&domain.Match{ID: 1, ChannelID: "@news", Text: "urgent", ForwardedAt: at}))
	require.NoError(t, svc.SaveMatch(&domain.Match{ID: 2, ChannelID: "-1001", Text: "sale", ForwardedAt: at.Add(time.Minute)}))

	matches, err := svc.ChannelMatches("@News", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "urgent", matches[0].Text)

	recent, err := svc.RecentMatches(1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "sale", recent[0].Text)

	since, err := svc.MatchesSince(at)
	require.NoError(t, err)
	assert.Len(t, since, 1)
}
