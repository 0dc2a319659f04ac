// Package natsbus carries chat messages over NATS subjects.
//
// Inbound messages arrive as JSON envelopes on one subject. Replies are
// published to <reply prefix>.<chat id> so each chat can subscribe to its own
// acknowledgements.
package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/wardlog/internal/dispatch"
	"github.com/fyrsmithlabs/wardlog/internal/logging"
)

const pendingMessages = 256

var (
	// ErrInvalidChatID means a chat id cannot be used as a subject token.
	ErrInvalidChatID = errors.New("natsbus: chat id is not a valid subject token")

	// ErrMalformed marks an inbound payload that is not a usable envelope.
	ErrMalformed = errors.New("natsbus: malformed message")
)

// Envelope is the JSON body of inbound messages and replies.
type Envelope struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
	ID     string `json:"id,omitempty"`
}

// Acceptor takes messages for background handling.
type Acceptor interface {
	Accept(ctx context.Context, msg dispatch.Message) bool
}

// Options configures a Transport.
type Options struct {
	Subject     string
	ReplyPrefix string
	Logger      *logging.Logger
}

// Transport subscribes to inbound messages and publishes replies.
type Transport struct {
	nc          *nats.Conn
	subject     string
	replyPrefix string
	logger      *logging.Logger
	ready       chan struct{}
}

// Connect dials the NATS server at url.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("wardlog"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return nc, nil
}

// New creates a Transport over an existing connection.
func New(nc *nats.Conn, opts Options) *Transport {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Transport{
		nc:          nc,
		subject:     opts.Subject,
		replyPrefix: opts.ReplyPrefix,
		logger:      logger.Named("natsbus"),
		ready:       make(chan struct{}),
	}
}

// Ready is closed once Run has subscribed.
func (t *Transport) Ready() <-chan struct{} {
	return t.ready
}

// Run subscribes to the inbound subject and hands messages to sink in
// arrival order until ctx is cancelled.
func (t *Transport) Run(ctx context.Context, sink Acceptor) error {
	msgs := make(chan *nats.Msg, pendingMessages)
	sub, err := t.nc.ChanSubscribe(t.subject, msgs)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", t.subject, err)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			t.logger.Warn(ctx, "unsubscribe failed", zap.Error(err))
		}
	}()

	if err := t.nc.Flush(); err != nil {
		return fmt.Errorf("flushing subscription: %w", err)
	}
	close(t.ready)
	t.logger.Info(ctx, "listening for messages", zap.String("subject", t.subject))

	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-msgs:
			msg, err := Decode(m.Data)
			if err != nil {
				t.logger.Warn(ctx, "dropping message", zap.Int("bytes", len(m.Data)), zap.Error(err))
				continue
			}
			sink.Accept(ctx, msg)
		}
	}
}

// Decode parses an inbound envelope.
func Decode(data []byte) (dispatch.Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return dispatch.Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.ChatID == "" {
		return dispatch.Message{}, fmt.Errorf("%w: chat_id is required", ErrMalformed)
	}
	return dispatch.Message{ChatID: env.ChatID, Text: env.Text, ID: env.ID}, nil
}

// ReplySubject returns the subject replies for chatID are published to.
func (t *Transport) ReplySubject(chatID string) (string, error) {
	if chatID == "" || strings.ContainsAny(chatID, ".*> \t\r\n") {
		return "", fmt.Errorf("%w: %q", ErrInvalidChatID, chatID)
	}
	return t.replyPrefix + "." + chatID, nil
}

// Reply implements dispatch.Replier.
func (t *Transport) Reply(ctx context.Context, chatID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject, err := t.ReplySubject(chatID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(Envelope{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("encoding reply: %w", err)
	}
	if err := t.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing reply: %w", err)
	}
	return nil
}
