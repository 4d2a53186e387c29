package telegram

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"freebot/internal/catalog"
	"freebot/internal/notify"
	"freebot/internal/store"
	logx "freebot/pkg/logx"
)

// Notifier delivers free-game announcements through the bot. It
// implements the sender interface used by the diff engine.
//
// The destination is the chat's configured channel; when a chat has no
// channel of its own the announcement goes to the chat directly.
type Notifier struct {
	bot     *Bot
	store   store.Store
	limiter *rate.Limiter
	log     logx.Logger
	now     func() time.Time
}

// NewNotifier wraps the bot as an announcement sender. Sends are rate
// limited to stay under Telegram's per-bot message ceiling.
func NewNotifier(b *Bot, st store.Store, log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Notifier{
		bot:   b,
		store: st,
		// Telegram allows ~30 messages/s bot-wide; one per second leaves
		// generous headroom for command replies.
		limiter: rate.NewLimiter(rate.Limit(1), 3),
		log:     log,
		now:     time.Now,
	}
}

func (n *Notifier) Send(ctx context.Context, chatID int64, g catalog.Game, kind notify.Kind) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}

	target := chatID
	if s, ok, err := n.store.GetChatSettings(ctx, chatID); err == nil && ok && s.ChannelID != 0 {
		target = s.ChannelID
	}

	text := announceText(g, kind, n.now())
	to := &tele.Chat{ID: target}

	var err error
	if g.ImageURL != "" {
		photo := &tele.Photo{File: tele.FromURL(g.ImageURL), Caption: text}
		_, err = n.bot.bot.Send(to, photo, tele.ModeHTML)
		if err != nil {
			// Bad or oversized image must not block the announcement.
			n.log.Warn("photo send failed, falling back to text",
				logx.Int64("chat", target), logx.String("game", g.ID), logx.Err(err))
			_, err = n.bot.bot.Send(to, text, tele.ModeHTML, tele.NoPreview)
		}
	} else {
		_, err = n.bot.bot.Send(to, text, tele.ModeHTML, tele.NoPreview)
	}
	if err != nil {
		return fmt.Errorf("%w: chat %d: %v", notify.ErrDelivery, target, err)
	}
	return nil
}
