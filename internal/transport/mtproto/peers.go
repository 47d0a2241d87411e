package mtproto

import (
	"strconv"
	"strings"
	"sync"

	"github.com/gotd/td/tg"
	messageDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/domain"
)

const channelPrefix = "-100"

// peerCache keeps the chats and users learned from dialogs, updates and
// history responses, keyed by normalized id. MTProto needs their access
// hashes to address them.
type peerCache struct {
	mu        sync.RWMutex
	channels  map[int64]*tg.Channel
	chats     map[int64]*tg.Chat
	users     map[int64]*tg.User
	usernames map[string]string
}

func newPeerCache() *peerCache {
	return &peerCache{
		channels:  make(map[int64]*tg.Channel),
		chats:     make(map[int64]*tg.Chat),
		users:     make(map[int64]*tg.User),
		usernames: make(map[string]string),
	}
}

func (c *peerCache) addChats(chats []tg.ChatClass) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, chat := range chats {
		switch v := chat.(type) {
		case *tg.Channel:
			c.channels[v.ID] = v
			if v.Username != "" {
				c.usernames["@"+strings.ToLower(v.Username)] = channelPrefix + strconv.FormatInt(v.ID, 10)
			}
		case *tg.Chat:
			c.chats[v.ID] = v
		}
	}
}

func (c *peerCache) addUsers(users []tg.UserClass) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, user := range users {
		if v, ok := user.(*tg.User); ok {
			c.users[v.ID] = v
			if v.Username != "" {
				c.usernames["@"+strings.ToLower(v.Username)] = strconv.FormatInt(v.ID, 10)
			}
		}
	}
}

func (c *peerCache) addEntities(e tg.Entities) {
	chats := make([]tg.ChatClass, 0, len(e.Chats)+len(e.Channels))
	for _, chat := range e.Chats {
		chats = append(chats, chat)
	}
	for _, channel := range e.Channels {
		chats = append(chats, channel)
	}
	c.addChats(chats)

	users := make([]tg.UserClass, 0, len(e.Users))
	for _, user := range e.Users {
		users = append(users, user)
	}
	c.addUsers(users)
}

// resolve maps a username to its numeric id; numeric ids pass through
func (c *peerCache) resolve(id string) (string, bool) {
	if !messageDomain.IsUsername(id) {
		return id, true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	resolved, ok := c.usernames[id]
	return resolved, ok
}

func (c *peerCache) inputPeer(id string) (tg.InputPeerClass, bool) {
	if id == "me" {
		return &tg.InputPeerSelf{}, true
	}

	resolved, ok := c.resolve(id)
	if !ok {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	switch kind, raw := splitID(resolved); kind {
	case peerKindChannel:
		if ch, ok := c.channels[raw]; ok {
			return &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}, true
		}
	case peerKindChat:
		if _, ok := c.chats[raw]; ok {
			return &tg.InputPeerChat{ChatID: raw}, true
		}
	case peerKindUser:
		if u, ok := c.users[raw]; ok {
			return &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash}, true
		}
	}
	return nil, false
}

func (c *peerCache) channelInfo(id string) (messageDomain.ChannelInfo, bool) {
	resolved, ok := c.resolve(id)
	if !ok {
		return messageDomain.ChannelInfo{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	switch kind, raw := splitID(resolved); kind {
	case peerKindChannel:
		if ch, ok := c.channels[raw]; ok {
			return messageDomain.ChannelInfo{
				ID:       resolved,
				Title:    ch.Title,
				Username: ch.Username,
				Kind:     channelKind(ch),
			}, true
		}
	case peerKindChat:
		if chat, ok := c.chats[raw]; ok {
			return messageDomain.ChannelInfo{ID: resolved, Title: chat.Title, Kind: messageDomain.ChatKindGroup}, true
		}
	case peerKindUser:
		if u, ok := c.users[raw]; ok {
			return messageDomain.ChannelInfo{
				ID:       resolved,
				Title:    userName(u),
				Username: u.Username,
				Kind:     messageDomain.ChatKindPrivate,
			}, true
		}
	}
	return messageDomain.ChannelInfo{}, false
}

func (c *peerCache) senderInfo(id string) (messageDomain.SenderInfo, bool) {
	resolved, ok := c.resolve(id)
	if !ok {
		return messageDomain.SenderInfo{}, false
	}
	kind, raw := splitID(resolved)
	if kind != peerKindUser {
		return messageDomain.SenderInfo{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	u, ok := c.users[raw]
	if !ok {
		return messageDomain.SenderInfo{}, false
	}
	return messageDomain.SenderInfo{ID: resolved, DisplayName: userName(u), Handle: u.Username}, true
}

// chatKind reports the kind of a chat id, defaulting to channel for
// channels not seen yet
func (c *peerCache) chatKind(id string) messageDomain.ChatKind {
	kind, raw := splitID(id)
	switch kind {
	case peerKindUser:
		return messageDomain.ChatKindPrivate
	case peerKindChat:
		return messageDomain.ChatKindGroup
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if ch, ok := c.channels[raw]; ok {
		return channelKind(ch)
	}
	return messageDomain.ChatKindChannel
}

func (c *peerCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.channels) + len(c.chats) + len(c.users)
}

type peerKind int

const (
	peerKindUnknown peerKind = iota
	peerKindUser
	peerKindChat
	peerKindChannel
)

// peerID renders a peer in the Bot API id convention: channels as
// -100<id>, basic groups as -<id>, users as <id>
func peerID(p tg.PeerClass) string {
	switch v := p.(type) {
	case *tg.PeerChannel:
		return channelPrefix + strconv.FormatInt(v.ChannelID, 10)
	case *tg.PeerChat:
		return "-" + strconv.FormatInt(v.ChatID, 10)
	case *tg.PeerUser:
		return strconv.FormatInt(v.UserID, 10)
	default:
		return ""
	}
}

func splitID(id string) (peerKind, int64) {
	switch {
	case strings.HasPrefix(id, channelPrefix):
		raw, err := strconv.ParseInt(strings.TrimPrefix(id, channelPrefix), 10, 64)
		if err == nil {
			return peerKindChannel, raw
		}
	case strings.HasPrefix(id, "-"):
		raw, err := strconv.ParseInt(strings.TrimPrefix(id, "-"), 10, 64)
		if err == nil {
			return peerKindChat, raw
		}
	default:
		raw, err := strconv.ParseInt(id, 10, 64)
		if err == nil {
			return peerKindUser, raw
		}
	}
	return peerKindUnknown, 0
}

func channelKind(ch *tg.Channel) messageDomain.ChatKind {
	if ch.Broadcast {
		return messageDomain.ChatKindChannel
	}
	return messageDomain.ChatKindSupergroup
}

func userName(u *tg.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
