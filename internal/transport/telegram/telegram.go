// Package telegram connects the dispatcher to a Telegram bot, either by long
// polling or by decoding webhook deliveries.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/wardlog/internal/config"
	"github.com/fyrsmithlabs/wardlog/internal/dispatch"
	"github.com/fyrsmithlabs/wardlog/internal/logging"
)

// ErrNoToken is returned by New without a bot token.
var ErrNoToken = errors.New("telegram: bot token is required")

// botAPI is the subset of *tgbotapi.BotAPI wardlog uses.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Acceptor takes messages for background handling.
type Acceptor interface {
	Accept(ctx context.Context, msg dispatch.Message) bool
}

// Options configures New.
type Options struct {
	Token config.Secret
	Debug bool

	// Endpoint overrides the Bot API URL format (tgbotapi.APIEndpoint).
	Endpoint   string
	HTTPClient *http.Client

	Logger *logging.Logger
}

// Bot is an authenticated Telegram bot.
type Bot struct {
	api      botAPI
	username string
	logger   *logging.Logger
}

// New authenticates with the Bot API.
func New(ctx context.Context, opts Options) (*Bot, error) {
	if !opts.Token.IsSet() {
		return nil, ErrNoToken
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("telegram")

	api, err := tgbotapi.NewBotAPIWithClient(opts.Token.Value(), endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	api.Debug = opts.Debug

	logger.Info(ctx, "telegram bot authorized", zap.String("username", api.Self.UserName))

	return &Bot{api: api, username: api.Self.UserName, logger: logger}, nil
}

// Username returns the bot's username.
func (b *Bot) Username() string {
	return b.username
}

// Reply implements dispatch.Replier by sending a text message to chatID.
func (b *Bot) Reply(ctx context.Context, chatID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(id, text)); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

// MessageFromUpdate converts an update into a dispatch message.
// Only plain text messages that are not bot commands qualify.
func MessageFromUpdate(upd tgbotapi.Update) (dispatch.Message, bool) {
	m := upd.Message
	if m == nil || m.Chat == nil || m.Text == "" || m.IsCommand() {
		return dispatch.Message{}, false
	}
	return dispatch.Message{
		ChatID: strconv.FormatInt(m.Chat.ID, 10),
		Text:   m.Text,
		ID:     strconv.Itoa(m.MessageID),
	}, true
}

// DecodeUpdate reads one webhook update body.
func DecodeUpdate(r io.Reader) (tgbotapi.Update, error) {
	var upd tgbotapi.Update
	if err := json.NewDecoder(r).Decode(&upd); err != nil {
		return tgbotapi.Update{}, fmt.Errorf("decoding update: %w", err)
	}
	return upd, nil
}
