package mtproto

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/tg"
	"github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/adapter"
	messageDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/domain"
	apperrors "github.com/reshetovitsme/telegram-keyword-monitor/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
	"go.uber.org/zap"
)

const DefaultDialogLimit = 200

// Config holds the user account credentials
type Config struct {
	AppID       int
	AppHash     string
	Phone       string
	Password    string
	SessionPath string
	DialogLimit int
}

// Adapter is the MTProto (user account) message source. It supports both
// live updates and history reads.
type Adapter struct {
	*adapter.Broadcaster

	cfg    Config
	client *telegram.Client
	api    *tg.Client
	sender *message.Sender
	peers  *peerCache
	logger *slog.Logger

	codes        chan string
	awaitingCode atomic.Bool
	ready        atomic.Bool
}

// NewAdapter creates the client. Internal client logs go to zapLogger.
func NewAdapter(cfg Config, logger *slog.Logger, zapLogger *zap.Logger) *Adapter {
	if cfg.DialogLimit <= 0 {
		cfg.DialogLimit = DefaultDialogLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}

	a := &Adapter{
		Broadcaster: adapter.NewBroadcaster(),
		cfg:         cfg,
		peers:       newPeerCache(),
		logger:      logger.With("component", "mtproto-adapter"),
		codes:       make(chan string),
	}

	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewMessage(a.onNewMessage)
	dispatcher.OnNewChannelMessage(a.onNewChannelMessage)

	a.client = telegram.NewClient(cfg.AppID, cfg.AppHash, telegram.Options{
		Logger:         zapLogger,
		SessionStorage: &session.FileStorage{Path: cfg.SessionPath},
		UpdateHandler:  dispatcher,
	})
	a.api = a.client.API()
	a.sender = message.NewSender(a.api)
	return a
}

// Run connects, logs in when the session is not authorized, loads dialogs
// and blocks until ctx is done
func (a *Adapter) Run(ctx context.Context) error {
	return a.client.Run(ctx, func(ctx context.Context) error {
		flow := auth.NewFlow(
			auth.Constant(a.cfg.Phone, a.cfg.Password, auth.CodeAuthenticatorFunc(a.waitCode)),
			auth.SendCodeOptions{},
		)
		if err := a.client.Auth().IfNecessary(ctx, flow); err != nil {
			return oops.In("mtproto").Wrapf(apperrors.ErrAdapterNotReady, "authentication failed: %v", err)
		}

		if err := a.loadDialogs(ctx); err != nil {
			return oops.In("mtproto").Wrapf(apperrors.ErrAdapterNotReady, "%v", err)
		}

		a.ready.Store(true)
		a.logger.Info("Telegram client started and authenticated", "peers", a.peers.size())

		<-ctx.Done()
		a.ready.Store(false)
		return ctx.Err()
	})
}

// SubmitCode passes a login code to a pending authentication
func (a *Adapter) SubmitCode(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return oops.In("mtproto").Wrapf(apperrors.ErrConfiguration, "empty login code")
	}
	if !a.awaitingCode.Load() {
		return oops.In("mtproto").Wrapf(apperrors.ErrNotFound, "no login code requested")
	}

	select {
	case a.codes <- code:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AwaitingCode reports whether the login flow waits for a code
func (a *Adapter) AwaitingCode() bool {
	return a.awaitingCode.Load()
}

func (a *Adapter) waitCode(ctx context.Context, _ *tg.AuthSentCode) (string, error) {
	a.awaitingCode.Store(true)
	defer a.awaitingCode.Store(false)

	a.logger.Warn("Waiting for authentication code via API", "endpoint", "POST /api/auth/code")
	select {
	case code := <-a.codes:
		return code, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (a *Adapter) loadDialogs(ctx context.Context) error {
	dialogs, err := a.api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      a.cfg.DialogLimit,
	})
	if err != nil {
		return oops.In("mtproto").With("context", "failed to get dialogs").Wrap(err)
	}

	if modified, ok := dialogs.AsModified(); ok {
		a.peers.addChats(modified.GetChats())
		a.peers.addUsers(modified.GetUsers())
	}
	return nil
}

func (a *Adapter) onNewMessage(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
	a.peers.addEntities(e)
	a.publish(ctx, u.Message)
	return nil
}

func (a *Adapter) onNewChannelMessage(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
	a.peers.addEntities(e)
	a.publish(ctx, u.Message)
	return nil
}

func (a *Adapter) publish(ctx context.Context, msg tg.MessageClass) {
	inbound, ok := toInbound(msg, a.peers)
	if !ok {
		return
	}
	a.Publish(ctx, inbound)
}

func (a *Adapter) FetchRecent(ctx context.Context, chatID string, limit int) ([]messageDomain.InboundMessage, error) {
	peer, err := a.inputPeer(ctx, chatID)
	if err != nil {
		return nil, err
	}

	history, err := a.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:  peer,
		Limit: limit,
	})
	if err != nil {
		return nil, oops.In("mtproto").With("chat_id", chatID).Wrapf(apperrors.ErrChannelUnavailable, "%v", err)
	}

	modified, ok := history.AsModified()
	if !ok {
		return nil, nil
	}
	a.peers.addChats(modified.GetChats())
	a.peers.addUsers(modified.GetUsers())

	return lo.FilterMap(modified.GetMessages(), func(m tg.MessageClass, _ int) (messageDomain.InboundMessage, bool) {
		return toInbound(m, a.peers)
	}), nil
}

func (a *Adapter) ResolveChannel(ctx context.Context, chatID string) (messageDomain.ChannelInfo, error) {
	if info, ok := a.peers.channelInfo(chatID); ok {
		return info, nil
	}
	if err := a.loadDialogs(ctx); err != nil {
		return messageDomain.ChannelInfo{}, err
	}
	if info, ok := a.peers.channelInfo(chatID); ok {
		return info, nil
	}
	return messageDomain.ChannelInfo{}, oops.In("mtproto").With("chat_id", chatID).Wrapf(apperrors.ErrNotFound, "chat is not among the account dialogs")
}

func (a *Adapter) ResolveSender(_ context.Context, senderID string) (messageDomain.SenderInfo, error) {
	if info, ok := a.peers.senderInfo(senderID); ok {
		return info, nil
	}
	return messageDomain.SenderInfo{}, oops.In("mtproto").With("sender_id", senderID).Wrap(apperrors.ErrNotFound)
}

func (a *Adapter) Send(ctx context.Context, targetID, text string) (messageDomain.MessageRef, error) {
	peer, err := a.inputPeer(ctx, targetID)
	if err != nil {
		return messageDomain.MessageRef{}, oops.In("mtproto").With("target_id", targetID).Wrapf(apperrors.ErrDelivery, "%v", err)
	}

	updates, err := a.sender.To(peer).Text(ctx, text)
	if err != nil {
		return messageDomain.MessageRef{}, oops.In("mtproto").With("target_id", targetID).Wrapf(apperrors.ErrDelivery, "%v", err)
	}

	return messageDomain.MessageRef{ChatID: targetID, MessageID: extractMessageID(updates)}, nil
}

func (a *Adapter) IsReady() bool {
	return a.ready.Load()
}

// inputPeer looks a chat up in the cache, reloading dialogs once on a miss
func (a *Adapter) inputPeer(ctx context.Context, chatID string) (tg.InputPeerClass, error) {
	if peer, ok := a.peers.inputPeer(chatID); ok {
		return peer, nil
	}
	if err := a.loadDialogs(ctx); err != nil {
		return nil, err
	}
	if peer, ok := a.peers.inputPeer(chatID); ok {
		return peer, nil
	}
	return nil, oops.In("mtproto").With("chat_id", chatID).Wrap(apperrors.ErrNotFound)
}

// toInbound converts an MTProto message. Outgoing and service messages are
// skipped. Private chats carry no from id; the peer is the sender.
func toInbound(msg tg.MessageClass, peers *peerCache) (messageDomain.InboundMessage, bool) {
	m, ok := msg.(*tg.Message)
	if !ok || m.Out {
		return messageDomain.InboundMessage{}, false
	}

	chatID := peerID(m.PeerID)
	if chatID == "" {
		return messageDomain.InboundMessage{}, false
	}

	var senderID string
	if from, ok := m.GetFromID(); ok {
		if user, isUser := from.(*tg.PeerUser); isUser {
			senderID = peerID(user)
		}
	} else if user, isUser := m.PeerID.(*tg.PeerUser); isUser {
		senderID = peerID(user)
	}

	return messageDomain.InboundMessage{
		ID:       int64(m.ID),
		ChatID:   chatID,
		ChatKind: peers.chatKind(chatID),
		SenderID: senderID,
		Text:     m.Message,
		Date:     int64(m.Date),
	}, true
}

// extractMessageID finds the id of a sent message in the send result
func extractMessageID(updates tg.UpdatesClass) int64 {
	switch u := updates.(type) {
	case *tg.UpdateShortSentMessage:
		return int64(u.ID)
	case *tg.Updates:
		return messageIDFrom(u.Updates)
	case *tg.UpdatesCombined:
		return messageIDFrom(u.Updates)
	}
	return 0
}

func messageIDFrom(updates []tg.UpdateClass) int64 {
	for _, update := range updates {
		switch v := update.(type) {
		case *tg.UpdateMessageID:
			return int64(v.ID)
		case *tg.UpdateNewMessage:
			return int64(v.Message.GetID())
		case *tg.UpdateNewChannelMessage:
			return int64(v.Message.GetID())
		}
	}
	return 0
}
