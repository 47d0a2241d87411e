package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerSeedAndMark(t *testing.T) {
	tr := New()
	tr.Seed("C1", []int64{1, 2, 3})

	assert.True(t, tr.IsSeeded("C1"))
	assert.False(t, tr.IsNew("C1", 2))
	assert.True(t, tr.IsNew("C1", 4))

	tr.MarkSeen("C1", 4)
	assert.False(t, tr.IsNew("C1", 4))

	tr.MarkSeen("C1", 4)
	assert.Equal(t, 4, tr.Size("C1"))
}

func TestTrackerChannelsAreIndependent(t *testing.T) {
	tr := New()
	tr.Seed("C1", []int64{1})

	assert.True(t, tr.IsNew("C2", 1))
	assert.False(t, tr.IsSeeded("C2"))

	tr.Seed("C2", nil)
	assert.True(t, tr.IsSeeded("C2"))
	assert.Equal(t, 0, tr.Size("C2"))
}

func TestTrackerConcurrentUse(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for ch := range 4 {
		wg.Add(1)
		go func(ch int) {
			defer wg.Done()
			id := string(rune('A' + ch))
			for i := range int64(100) {
				if tr.IsNew(id, i) {
					tr.MarkSeen(id, i)
				}
			}
		}(ch)
	}
	wg.Wait()

	assert.Equal(t, 100, tr.Size("A"))
	assert.Equal(t, 100, tr.Size("D"))
}
