// Package telegram is the bot transport: a telebot long-poll adapter,
// the chat command handlers, and the Notifier that delivers free-game
// announcements to configured chats.
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"freebot/internal/catalog"
	"freebot/internal/store"
	logx "freebot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
	// OwnerUserIDs may always run admin commands, regardless of chat role.
	OwnerUserIDs []int64
}

type Bot struct {
	cfg Config
	log logx.Logger

	bot   *tele.Bot
	store store.Store
	cat   *catalog.Client

	runMu     sync.Mutex
	running   bool
	runCancel context.CancelFunc
	runWG     sync.WaitGroup
}

func New(cfg Config, st store.Store, cat *catalog.Client, log logx.Logger) (*Bot, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Bot{cfg: cfg, log: log, bot: b, store: st, cat: cat}, nil
}

// Start registers the command handlers and begins long polling. It
// returns immediately; polling runs until Stop or ctx cancellation.
func (b *Bot) Start(ctx context.Context) error {
	b.runMu.Lock()
	if b.running {
		b.runMu.Unlock()
		return nil
	}
	b.running = true
	rctx, cancel := context.WithCancel(ctx)
	b.runCancel = cancel
	b.runWG.Add(1)
	b.runMu.Unlock()

	b.registerHandlers()

	go func() {
		defer b.runWG.Done()
		go func() {
			<-rctx.Done()
			b.bot.Stop()
		}()
		b.log.Info("polling started", logx.String("bot", b.bot.Me.Username))
		b.bot.Start() // blocks until Stop() called
	}()
	return nil
}

// Stop ends long polling. Shutdown stays snappy even when a getUpdates
// long-poll is still in flight.
func (b *Bot) Stop(ctx context.Context) error {
	b.runMu.Lock()
	cancel := b.runCancel
	b.runCancel = nil
	wasRunning := b.running
	b.running = false
	b.runMu.Unlock()

	if !wasRunning {
		return nil
	}
	if cancel != nil {
		cancel()
	}
	go b.bot.Stop()

	done := make(chan struct{})
	go func() {
		b.runWG.Wait()
		close(done)
	}()

	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	t := time.NewTimer(grace)
	defer t.Stop()

	select {
	case <-done:
		b.log.Info("polling stopped")
		return nil
	case <-ctx.Done():
		b.log.Warn("telegram stop cancelled", logx.Err(ctx.Err()))
		return ctx.Err()
	case <-t.C:
		b.log.Warn("telegram stop grace elapsed; continuing shutdown")
		return nil
	}
}

// isAdmin reports whether the sender may run configuration commands in
// this chat: configured owners always may, private chats are their own
// authority, and in groups or channels the sender must hold an admin
// role.
func (b *Bot) isAdmin(c tele.Context) bool {
	sender := c.Sender()
	chat := c.Chat()
	if sender == nil || chat == nil {
		return false
	}
	for _, id := range b.cfg.OwnerUserIDs {
		if sender.ID == id {
			return true
		}
	}
	if chat.Type == tele.ChatPrivate {
		return true
	}
	member, err := b.bot.ChatMemberOf(chat, sender)
	if err != nil {
		b.log.Warn("admin check failed", logx.Int64("chat", chat.ID), logx.Err(err))
		return false
	}
	return member.Role == tele.Creator || member.Role == tele.Administrator
}
