package adapter

import (
	"context"
	"testing"

	"github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/domain"
	"github.com/stretchr/testify/assert"
)

func TestBroadcasterDeliversInOrder(t *testing.T) {
	b := NewBroadcaster()

	var got []int64
	sub := b.Subscribe(func(_ context.Context, msg domain.InboundMessage) {
		got = append(got, msg.ID)
	})

	for _, id := range []int64{3, 1, 2} {
		b.Publish(context.Background(), domain.InboundMessage{ID: id})
	}
	assert.Equal(t, []int64{3, 1, 2}, got)

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, b.Len())

	b.Publish(context.Background(), domain.InboundMessage{ID: 9})
	assert.Len(t, got, 3)
}
