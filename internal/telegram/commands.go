package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"freebot/internal/store"
	logx "freebot/pkg/logx"
	"freebot/pkg/tgui"
)

// handlerTimeout bounds the work behind a single chat command.
const handlerTimeout = 30 * time.Second

const defaultNotifyTime = "13:00"

const helpText = `<b>Free Games Notifier</b>

/freegames - show the current free games
/setchannel - announce free games in this chat
/settime HH:MM - set the daily notification time
/status - notifier health and state`

func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.handleStart)
	b.bot.Handle("/help", b.handleStart)
	b.bot.Handle("/freegames", b.handleFreeGames)
	b.bot.Handle("/setchannel", b.handleSetChannel)
	b.bot.Handle("/settime", b.handleSetTime)
	b.bot.Handle("/status", b.handleStatus)
}

func (b *Bot) handleStart(c tele.Context) error {
	return c.Send(helpText, tele.ModeHTML, tele.NoPreview)
}

func (b *Bot) handleFreeGames(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	games, err := b.cat.FreeGames(ctx)
	if err != nil {
		b.log.Warn("on-demand fetch failed", logx.Int64("chat", c.Chat().ID), logx.Err(err))
		return c.Send("Could not reach the games catalog right now, try again later.")
	}
	if len(games) == 0 {
		return c.Send("No free games at the moment.")
	}

	parts := make([]tgui.H, 0, len(games)+1)
	parts = append(parts, tgui.B("Current free games"))
	now := time.Now()
	for _, g := range games {
		line := tgui.JoinH(" ",
			tgui.Link(tgui.TruncRunes(g.Title, 80), g.URL),
			tgui.S(g.OriginalPrice),
			tgui.B("FREE"),
			tgui.I(untilPhrase(g.PromoEnd, now)),
		)
		parts = append(parts, tgui.H("• ")+line)
	}
	return c.Send(tgui.JoinH("\n", parts...).String(), tele.ModeHTML, tele.NoPreview)
}

func (b *Bot) handleSetChannel(c tele.Context) error {
	if !b.isAdmin(c) {
		return c.Send("Only chat admins can configure notifications.")
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	chatID := c.Chat().ID
	now := time.Now().UTC()
	s, ok, err := b.store.GetChatSettings(ctx, chatID)
	if err != nil {
		b.log.Error("reading chat settings failed", logx.Int64("chat", chatID), logx.Err(err))
		return c.Send("Storage error, try again later.")
	}
	if !ok {
		s = store.ChatSettings{ChatID: chatID, NotifyTime: defaultNotifyTime, CreatedAt: now}
	}
	s.ChannelID = chatID
	s.UpdatedAt = now
	if err := b.store.PutChatSettings(ctx, s); err != nil {
		b.log.Error("saving chat settings failed", logx.Int64("chat", chatID), logx.Err(err))
		return c.Send("Storage error, try again later.")
	}
	b.log.Info("chat registered", logx.Int64("chat", chatID), logx.String("time", s.NotifyTime))
	return c.Send(fmt.Sprintf("Free game announcements enabled here, daily around %s. Change with /settime HH:MM.", s.NotifyTime))
}

func (b *Bot) handleSetTime(c tele.Context) error {
	if !b.isAdmin(c) {
		return c.Send("Only chat admins can configure notifications.")
	}
	arg := strings.TrimSpace(c.Message().Payload)
	hhmm, ok := normalizeHHMM(arg)
	if !ok {
		return c.Send("Usage: /settime HH:MM (24-hour), e.g. /settime 13:00")
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	chatID := c.Chat().ID
	now := time.Now().UTC()
	s, found, err := b.store.GetChatSettings(ctx, chatID)
	if err != nil {
		b.log.Error("reading chat settings failed", logx.Int64("chat", chatID), logx.Err(err))
		return c.Send("Storage error, try again later.")
	}
	if !found {
		// Not registered yet; remember the time and point at /setchannel.
		s = store.ChatSettings{ChatID: chatID, CreatedAt: now}
	}
	s.NotifyTime = hhmm
	s.UpdatedAt = now
	if err := b.store.PutChatSettings(ctx, s); err != nil {
		b.log.Error("saving chat settings failed", logx.Int64("chat", chatID), logx.Err(err))
		return c.Send("Storage error, try again later.")
	}
	if !found || s.ChannelID == 0 {
		return c.Send(fmt.Sprintf("Notification time set to %s. Run /setchannel where the announcements should go.", hhmm))
	}
	return c.Send(fmt.Sprintf("Notification time set to %s.", hhmm))
}

func (b *Bot) handleStatus(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	chatID := c.Chat().ID
	parts := []tgui.H{tgui.B("Notifier status")}

	s, ok, err := b.store.GetChatSettings(ctx, chatID)
	switch {
	case err != nil:
		b.log.Warn("reading chat settings failed", logx.Int64("chat", chatID), logx.Err(err))
	case ok && s.ChannelID != 0:
		parts = append(parts, tgui.Esc("Announcements: enabled, daily around ")+tgui.Code(s.NotifyTime))
	default:
		parts = append(parts, tgui.H("Announcements: not configured (/setchannel)"))
	}

	if recs, err := b.store.ListAnnounced(ctx, chatID); err == nil {
		parts = append(parts, tgui.Esc(fmt.Sprintf("Tracked free games: %d", len(recs))))
	}

	if entries, err := b.store.RecentHealth(ctx, 5); err == nil && len(entries) > 0 {
		parts = append(parts, tgui.B("Recent checks"))
		for _, e := range entries {
			line := e.At.UTC().Format("Jan 02 15:04") + " " + e.Status
			if e.Message != "" {
				line += ": " + tgui.TruncRunes(e.Message, 120)
			}
			parts = append(parts, tgui.Code(line))
		}
	}

	return c.Send(tgui.JoinH("\n", parts...).String(), tele.ModeHTML, tele.NoPreview)
}

// normalizeHHMM validates a 24-hour time of day, returning it
// zero-padded ("9:5" becomes "09:05").
func normalizeHHMM(s string) (string, bool) {
	// The "15:4" layout accepts both padded and unpadded input.
	t, err := time.Parse("15:4", s)
	if err != nil {
		return "", false
	}
	return t.Format("15:04"), true
}
