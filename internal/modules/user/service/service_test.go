package service

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/user/repository"
	apperrors "github.com/reshetovitsme/telegram-keyword-monitor/internal/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, allowed []int64) (*Service, *clockwork.FakeClock) {
	t.Helper()
	repo, err := repository.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	return New(repo, allowed, clock), clock
}

func TestIsAuthorized(t *testing.T) {
	open, _ := newService(t, nil)
	assert.True(t, open.IsAuthorized(42))

	restricted, _ := newService(t, []int64{1, 2})
	assert.True(t, restricted.IsAuthorized(2))
	assert.False(t, restricted.IsAuthorized(42))
}

func TestAuthorize(t *testing.T) {
	svc, _ := newService(t, []int64{1})
	assert.NoError(t, svc.Authorize(1))
	assert.ErrorIs(t, svc.Authorize(5), apperrors.ErrUnauthorized)
}

func TestRecordCommand(t *testing.T) {
	svc, clock := newService(t, []int64{7})
	start := clock.Now()

	user, err := svc.RecordCommand(7, "alice", "/start")
	require.NoError(t, err)
	assert.Equal(t, 1, user.Commands)
	assert.True(t, user.Authorized)
	assert.True(t, user.FirstSeen.Equal(start))

	clock.Advance(time.Hour)
	user, err = svc.RecordCommand(7, "", "/status")
	require.NoError(t, err)
	assert.Equal(t, 2, user.Commands)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "/status", user.LastCommand)
	assert.True(t, user.FirstSeen.Equal(start))

	stranger, err := svc.RecordCommand(99, "mallory", "/cancel")
	require.NoError(t, err)
	assert.False(t, stranger.Authorized)

	users, err := svc.GetAllUsers()
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, int64(7), users[0].ID, "same LastSeen orders by id")
}
