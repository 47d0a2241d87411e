package telegram

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/adapter"
	messageDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/domain"
	apperrors "github.com/reshetovitsme/telegram-keyword-monitor/internal/shared/errors"
	"github.com/samber/oops"
)

// Adapter is the Bot API message source. It receives updates through
// long polling and cannot read chat history.
type Adapter struct {
	*adapter.Broadcaster

	bot    *bot.Bot
	logger *slog.Logger
	ready  atomic.Bool

	// senders seen in updates; the Bot API cannot look up arbitrary users
	mu      sync.RWMutex
	senders map[string]messageDomain.SenderInfo
}

// NewAdapter creates an adapter; SetBot must be called before Run
func NewAdapter(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		Broadcaster: adapter.NewBroadcaster(),
		logger:      logger.With("component", "bot-adapter"),
		senders:     make(map[string]messageDomain.SenderInfo),
	}
}

// BotOptions returns the bot client options. With receiveUpdates the adapter
// becomes the default handler and updates are handled one at a time, in the
// order they were delivered.
func (a *Adapter) BotOptions(receiveUpdates bool) []bot.Option {
	opts := []bot.Option{
		bot.WithSkipGetMe(),
	}
	if receiveUpdates {
		opts = append(opts,
			bot.WithNotAsyncHandlers(),
			bot.WithDefaultHandler(a.HandleUpdate),
		)
	}
	return opts
}

// SetBot sets the bot client
func (a *Adapter) SetBot(b *bot.Bot) {
	a.bot = b
}

// Run verifies the token, marks the adapter ready and receives updates
// until ctx is done
func (a *Adapter) Run(ctx context.Context) error {
	me, err := a.bot.GetMe(ctx)
	if err != nil {
		return oops.In("telegram").Wrapf(apperrors.ErrAdapterNotReady, "get me: %v", err)
	}

	a.ready.Store(true)
	a.logger.Info("Bot connected", "username", me.Username, "id", me.ID)

	a.bot.Start(ctx)

	a.ready.Store(false)
	a.logger.Info("Bot stopped")
	return nil
}

// HandleUpdate is the default bot handler. Messages and channel posts are
// published to subscribers.
func (a *Adapter) HandleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil {
		msg = update.ChannelPost
	}
	if msg == nil {
		return
	}

	if sender, ok := senderFromMessage(msg); ok {
		a.mu.Lock()
		a.senders[sender.ID] = sender
		a.mu.Unlock()
	}

	inbound, ok := toInbound(msg)
	if !ok {
		a.logger.Debug("Unsupported chat type", "chat_id", msg.Chat.ID, "type", msg.Chat.Type)
		return
	}
	a.Publish(ctx, inbound)
}

func (a *Adapter) FetchRecent(_ context.Context, chatID string, _ int) ([]messageDomain.InboundMessage, error) {
	return nil, oops.In("telegram").With("chat_id", chatID).Wrap(apperrors.ErrFetchUnsupported)
}

func (a *Adapter) ResolveChannel(ctx context.Context, chatID string) (messageDomain.ChannelInfo, error) {
	chat, err := a.bot.GetChat(ctx, &bot.GetChatParams{ChatID: chatIDParam(chatID)})
	if err != nil {
		return messageDomain.ChannelInfo{}, oops.In("telegram").With("chat_id", chatID).Wrapf(apperrors.ErrNotFound, "%v", err)
	}

	kind, err := messageDomain.ParseChatKind(string(chat.Type))
	if err != nil {
		kind = messageDomain.ChatKindChannel
	}

	title := chat.Title
	if title == "" {
		title = displayName(chat.FirstName, chat.LastName)
	}

	return messageDomain.ChannelInfo{
		ID:       messageDomain.NormalizeID(chat.ID),
		Title:    title,
		Username: chat.Username,
		Kind:     kind,
	}, nil
}

func (a *Adapter) ResolveSender(ctx context.Context, senderID string) (messageDomain.SenderInfo, error) {
	a.mu.RLock()
	sender, ok := a.senders[senderID]
	a.mu.RUnlock()
	if ok {
		return sender, nil
	}

	chat, err := a.bot.GetChat(ctx, &bot.GetChatParams{ChatID: chatIDParam(senderID)})
	if err != nil {
		return messageDomain.SenderInfo{}, oops.In("telegram").With("sender_id", senderID).Wrapf(apperrors.ErrNotFound, "%v", err)
	}

	sender = messageDomain.SenderInfo{
		ID:          messageDomain.NormalizeID(chat.ID),
		DisplayName: displayName(chat.FirstName, chat.LastName),
		Handle:      chat.Username,
	}

	a.mu.Lock()
	a.senders[sender.ID] = sender
	a.mu.Unlock()
	return sender, nil
}

func (a *Adapter) Send(ctx context.Context, targetID, text string) (messageDomain.MessageRef, error) {
	msg, err := a.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatIDParam(targetID),
		Text:   text,
	})
	if err != nil {
		return messageDomain.MessageRef{}, oops.In("telegram").With("target_id", targetID).Wrapf(apperrors.ErrDelivery, "%v", err)
	}

	return messageDomain.MessageRef{
		ChatID:    messageDomain.NormalizeID(msg.Chat.ID),
		MessageID: int64(msg.ID),
	}, nil
}

func (a *Adapter) IsReady() bool {
	return a.ready.Load()
}

// toInbound converts a Bot API message. Anonymous admins and posts signed by
// a chat have no sender.
func toInbound(msg *models.Message) (messageDomain.InboundMessage, bool) {
	kind, err := messageDomain.ParseChatKind(string(msg.Chat.Type))
	if err != nil {
		return messageDomain.InboundMessage{}, false
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	var senderID string
	if msg.From != nil && msg.SenderChat == nil {
		senderID = messageDomain.NormalizeID(msg.From.ID)
	}

	return messageDomain.InboundMessage{
		ID:       int64(msg.ID),
		ChatID:   messageDomain.NormalizeID(msg.Chat.ID),
		ChatKind: kind,
		SenderID: senderID,
		Text:     text,
		Date:     int64(msg.Date),
	}, true
}

func senderFromMessage(msg *models.Message) (messageDomain.SenderInfo, bool) {
	if msg.From == nil || msg.SenderChat != nil {
		return messageDomain.SenderInfo{}, false
	}
	return messageDomain.SenderInfo{
		ID:          messageDomain.NormalizeID(msg.From.ID),
		DisplayName: displayName(msg.From.FirstName, msg.From.LastName),
		Handle:      msg.From.Username,
	}, true
}

// chatIDParam converts a normalized id to what the Bot API expects
func chatIDParam(id string) any {
	if n, ok := messageDomain.NumericID(id); ok {
		return n
	}
	return id
}

func displayName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}
