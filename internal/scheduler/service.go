// Package scheduler runs the periodic notification cycle for the bot.
//
// A cron ticker fires every cadence interval; each tick walks the
// configured chats and runs the notification cycle for those whose
// notification time falls within the tolerance window around now. After
// the walk it prunes aged announced records and writes a health
// heartbeat.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"freebot/internal/store"
	logx "freebot/pkg/logx"
)

// CycleFunc runs one notification cycle for one chat.
type CycleFunc func(ctx context.Context, chat store.ChatSettings) error

type Config struct {
	Cadence time.Duration
	// Window is the symmetric tolerance around a chat's notification time.
	Window    time.Duration
	Location  *time.Location
	Retention time.Duration
}

// tickTimeout bounds one full tick including all per-chat cycles.
const tickTimeout = 10 * time.Minute

type Service struct {
	store store.Store
	run   CycleFunc
	log   logx.Logger

	mu  sync.Mutex
	cfg Config
	c   *cron.Cron

	now func() time.Time // test hook
}

func New(cfg Config, st store.Store, run CycleFunc, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{cfg: cfg, store: st, run: run, log: log, now: time.Now}
}

// Start begins periodic ticking. Calling Start on a running service is a
// no-op.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	c := cron.New(cron.WithLocation(s.cfg.Location))
	spec := fmt.Sprintf("@every %s", s.cfg.Cadence)
	if _, err := c.AddFunc(spec, s.tick); err != nil {
		return fmt.Errorf("scheduler: register %q: %w", spec, err)
	}
	s.c = c
	c.Start()
	s.log.Info("scheduler started",
		logx.Duration("cadence", s.cfg.Cadence),
		logx.Duration("window", s.cfg.Window),
		logx.String("tz", s.cfg.Location.String()))
	return nil
}

// Stop halts ticking. An in-flight tick is allowed to finish, bounded by
// ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("scheduler stopped")
}

// Apply installs a new configuration. A cadence or timezone change
// restarts the ticker; window and retention changes take effect on the
// next tick.
func (s *Service) Apply(cfg Config) error {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	s.mu.Lock()
	restart := s.c != nil &&
		(cfg.Cadence != s.cfg.Cadence || cfg.Location.String() != s.cfg.Location.String())
	s.cfg = cfg
	s.mu.Unlock()

	if !restart {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.Stop(ctx)
	return s.Start()
}

func (s *Service) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()
	s.Tick(ctx)
}

// Tick runs one scheduler pass immediately, outside the cron cadence.
func (s *Service) Tick(ctx context.Context) {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	now := s.now().In(cfg.Location)

	chats, err := s.store.ListChatSettings(ctx)
	if err != nil {
		s.log.Error("listing chat settings failed", logx.Err(err))
		s.health(ctx, store.HealthError, "list chats: "+err.Error(), now)
		return
	}

	var failed int
	for _, chat := range chats {
		if err := ctx.Err(); err != nil {
			s.log.Warn("tick aborted", logx.Err(err))
			return
		}
		due, err := dueNow(now, chat.NotifyTime, cfg.Window)
		if err != nil {
			s.log.Warn("skipping chat with bad notify time",
				logx.Int64("chat", chat.ChatID), logx.String("time", chat.NotifyTime))
			continue
		}
		if !due {
			continue
		}
		if err := s.run(ctx, chat); err != nil {
			// One broken chat must not starve the others.
			failed++
			s.log.Error("notification cycle failed", logx.Int64("chat", chat.ChatID), logx.Err(err))
			s.health(ctx, store.HealthError, fmt.Sprintf("chat %d: %v", chat.ChatID, err), now)
		}
	}

	if cfg.Retention > 0 {
		if n, err := s.store.PruneAnnounced(ctx, now.Add(-cfg.Retention)); err != nil {
			s.log.Warn("pruning announced records failed", logx.Err(err))
		} else if n > 0 {
			s.log.Debug("pruned aged records", logx.Int64("count", n))
		}
	}

	if failed == 0 {
		s.health(ctx, store.HealthOK, "", now)
	}
}

func (s *Service) health(ctx context.Context, status, msg string, at time.Time) {
	if err := s.store.AppendHealth(ctx, store.HealthEntry{Status: status, Message: msg, At: at}); err != nil {
		s.log.Warn("writing health entry failed", logx.Err(err))
	}
}
