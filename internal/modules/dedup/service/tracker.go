package service

import "sync"

// Tracker remembers which message ids were already processed per channel.
// Sets only grow; nothing is evicted during a run.
type Tracker struct {
	mu   sync.RWMutex
	seen map[string]map[int64]struct{}
}

// New creates an empty tracker
func New() *Tracker {
	return &Tracker{seen: make(map[string]map[int64]struct{})}
}

// Seed marks ids as already processed and activates the channel
func (t *Tracker) Seed(channelID string, ids []int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	set := t.channel(channelID)
	for _, id := range ids {
		set[id] = struct{}{}
	}
}

// IsSeeded reports whether the channel has been activated
func (t *Tracker) IsSeeded(channelID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.seen[channelID]
	return ok
}

// IsNew reports whether id has not been processed yet
func (t *Tracker) IsNew(channelID string, id int64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, seen := t.seen[channelID][id]
	return !seen
}

// MarkSeen records id as processed
func (t *Tracker) MarkSeen(channelID string, id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.channel(channelID)[id] = struct{}{}
}

// Size returns the number of ids tracked for a channel
func (t *Tracker) Size(channelID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.seen[channelID])
}

func (t *Tracker) channel(channelID string) map[int64]struct{} {
	set, ok := t.seen[channelID]
	if !ok {
		set = make(map[int64]struct{})
		t.seen[channelID] = set
	}
	return set
}
