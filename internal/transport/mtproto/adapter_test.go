package mtproto

import (
	"testing"

	"github.com/gotd/td/tg"
	messageDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededCache() *peerCache {
	c := newPeerCache()
	c.addChats([]tg.ChatClass{
		&tg.Channel{ID: 1234, AccessHash: 99, Title: "Alerts", Username: "Alerts", Broadcast: true},
		&tg.Channel{ID: 5678, AccessHash: 77, Title: "Chat room", Megagroup: true},
		&tg.Chat{ID: 42, Title: "Old group"},
	})
	c.addUsers([]tg.UserClass{
		&tg.User{ID: 7, AccessHash: 11, FirstName: "Sam", LastName: "Lee", Username: "sam"},
		&tg.UserEmpty{ID: 8},
	})
	return c
}

func TestPeerID(t *testing.T) {
	assert.Equal(t, "-1001234", peerID(&tg.PeerChannel{ChannelID: 1234}))
	assert.Equal(t, "-42", peerID(&tg.PeerChat{ChatID: 42}))
	assert.Equal(t, "7", peerID(&tg.PeerUser{UserID: 7}))
}

func TestPeerCacheInputPeer(t *testing.T) {
	c := seededCache()

	peer, ok := c.inputPeer("-1001234")
	require.True(t, ok)
	assert.Equal(t, &tg.InputPeerChannel{ChannelID: 1234, AccessHash: 99}, peer)

	peer, ok = c.inputPeer("@alerts")
	require.True(t, ok)
	assert.Equal(t, &tg.InputPeerChannel{ChannelID: 1234, AccessHash: 99}, peer)

	peer, ok = c.inputPeer("-42")
	require.True(t, ok)
	assert.Equal(t, &tg.InputPeerChat{ChatID: 42}, peer)

	peer, ok = c.inputPeer("7")
	require.True(t, ok)
	assert.Equal(t, &tg.InputPeerUser{UserID: 7, AccessHash: 11}, peer)

	peer, ok = c.inputPeer("me")
	require.True(t, ok)
	assert.Equal(t, &tg.InputPeerSelf{}, peer)

	_, ok = c.inputPeer("-1009999")
	assert.False(t, ok)
	_, ok = c.inputPeer("8")
	assert.False(t, ok)
	_, ok = c.inputPeer("@unknown")
	assert.False(t, ok)
}

func TestPeerCacheInfo(t *testing.T) {
	c := seededCache()

	info, ok := c.channelInfo("@alerts")
	require.True(t, ok)
	assert.Equal(t, messageDomain.ChannelInfo{ID: "-1001234", Title: "Alerts", Username: "Alerts", Kind: messageDomain.ChatKindChannel}, info)

	info, ok = c.channelInfo("-1005678")
	require.True(t, ok)
	assert.Equal(t, messageDomain.ChatKindSupergroup, info.Kind)

	sender, ok := c.senderInfo("7")
	require.True(t, ok)
	assert.Equal(t, messageDomain.SenderInfo{ID: "7", DisplayName: "Sam Lee", Handle: "sam"}, sender)

	_, ok = c.senderInfo("-1001234")
	assert.False(t, ok)

	assert.Equal(t, messageDomain.ChatKindGroup, c.chatKind("-42"))
	assert.Equal(t, messageDomain.ChatKindPrivate, c.chatKind("7"))
	assert.Equal(t, messageDomain.ChatKindChannel, c.chatKind("-1000001"))
	assert.Equal(t, 4, c.size())
}

func TestPeerCacheAddEntities(t *testing.T) {
	c := newPeerCache()
	c.addEntities(tg.Entities{
		Users:    map[int64]*tg.User{3: {ID: 3, FirstName: "Ann"}},
		Channels: map[int64]*tg.Channel{10: {ID: 10, Title: "News", Broadcast: true}},
	})

	_, ok := c.senderInfo("3")
	assert.True(t, ok)
	info, ok := c.channelInfo("-10010")
	require.True(t, ok)
	assert.Equal(t, "News", info.Title)
}

func TestToInbound(t *testing.T) {
	c := seededCache()

	group := &tg.Message{ID: 5, PeerID: &tg.PeerChannel{ChannelID: 5678}, Date: 1700000000, Message: "urgent"}
	group.SetFromID(&tg.PeerUser{UserID: 7})

	inbound, ok := toInbound(group, c)
	require.True(t, ok)
	assert.Equal(t, messageDomain.InboundMessage{
		ID:       5,
		ChatID:   "-1005678",
		ChatKind: messageDomain.ChatKindSupergroup,
		SenderID: "7",
		Text:     "urgent",
		Date:     1700000000,
	}, inbound)

	post, ok := toInbound(&tg.Message{ID: 6, PeerID: &tg.PeerChannel{ChannelID: 1234}, Message: "news"}, c)
	require.True(t, ok)
	assert.Equal(t, messageDomain.ChatKindChannel, post.ChatKind)
	assert.Empty(t, post.SenderID)

	signed := &tg.Message{ID: 7, PeerID: &tg.PeerChannel{ChannelID: 5678}, Message: "as channel"}
	signed.SetFromID(&tg.PeerChannel{ChannelID: 1234})
	inbound, ok = toInbound(signed, c)
	require.True(t, ok)
	assert.Empty(t, inbound.SenderID)

	private, ok := toInbound(&tg.Message{ID: 8, PeerID: &tg.PeerUser{UserID: 7}, Message: "hi"}, c)
	require.True(t, ok)
	assert.Equal(t, messageDomain.ChatKindPrivate, private.ChatKind)
	assert.Equal(t, "7", private.SenderID)

	_, ok = toInbound(&tg.Message{ID: 9, Out: true, PeerID: &tg.PeerChannel{ChannelID: 1234}}, c)
	assert.False(t, ok)

	_, ok = toInbound(&tg.MessageService{ID: 10}, c)
	assert.False(t, ok)
}

func TestExtractMessageID(t *testing.T) {
	assert.Equal(t, int64(11), extractMessageID(&tg.UpdateShortSentMessage{ID: 11}))

	assert.Equal(t, int64(12), extractMessageID(&tg.Updates{Updates: []tg.UpdateClass{
		&tg.UpdateMessageID{ID: 12, RandomID: 1},
		&tg.UpdateNewChannelMessage{Message: &tg.Message{ID: 12}},
	}}))

	assert.Equal(t, int64(13), extractMessageID(&tg.Updates{Updates: []tg.UpdateClass{
		&tg.UpdateNewMessage{Message: &tg.Message{ID: 13}},
	}}))

	assert.Equal(t, int64(0), extractMessageID(&tg.UpdatesTooLong{}))
}
