package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Poller long-polls getUpdates and hands messages to an Acceptor in
// arrival order.
type Poller struct {
	bot     *Bot
	sink    Acceptor
	timeout int
}

// NewPoller creates a poller. timeout is the long-poll timeout in seconds.
func (b *Bot) NewPoller(sink Acceptor, timeout int) *Poller {
	return &Poller{bot: b, sink: sink, timeout: timeout}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = p.timeout
	u.AllowedUpdates = []string{"message"}

	updates := p.bot.api.GetUpdatesChan(u)
	p.bot.logger.Info(ctx, "polling for updates", zap.Int("timeout", p.timeout))

	for {
		select {
		case <-ctx.Done():
			p.bot.api.StopReceivingUpdates()
			p.bot.logger.Info(ctx, "polling stopped")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			msg, ok := MessageFromUpdate(upd)
			if !ok {
				p.bot.logger.Trace(ctx, "update skipped", zap.Int("update.id", upd.UpdateID))
				continue
			}
			p.sink.Accept(ctx, msg)
		}
	}
}
