// Command bot runs the multi-chat Telegram notifier: a long-polling bot
// for chat commands plus a cron scheduler that announces new free games
// to every configured chat at its preferred time of day.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"freebot/internal/catalog"
	"freebot/internal/config"
	"freebot/internal/engine"
	"freebot/internal/scheduler"
	"freebot/internal/store"
	"freebot/internal/telegram"
	logx "freebot/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json)")
	flag.Parse()

	if err := run(cfgPath); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	config.LoadDotenv()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(config.ModeBot); err != nil {
		return err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	defer logSvc.Close()
	log = log.With(logx.String("comp", "bot"))

	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	cfgm.SetValidator(func(_ context.Context, c *config.Config) error {
		return c.Validate(config.ModeBot)
	})

	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return err
	}
	st, err := store.Open(store.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return err
	}
	defer st.Close()

	fetchTimeout, err := config.ParseDurationOrDefault("catalog.timeout", cfg.Catalog.Timeout, config.DefaultFetchTimeout)
	if err != nil {
		return err
	}
	cacheTTL, err := config.ParseDurationOrDefault("catalog.cache_ttl", cfg.Catalog.CacheTTL, config.DefaultCacheTTL)
	if err != nil {
		return err
	}
	cat := catalog.New(catalog.Config{
		URL:      cfg.Catalog.URL,
		Country:  cfg.Catalog.Country,
		Locale:   cfg.Catalog.Locale,
		Timeout:  fetchTimeout,
		CacheTTL: cacheTTL,
	}, log.With(logx.String("comp", "catalog")))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, config.DefaultPollTimeout)
	if err != nil {
		return err
	}
	bot, err := telegram.New(telegram.Config{
		Token:        cfg.Telegram.Token,
		PollTimeout:  pollTimeout,
		OwnerUserIDs: cfg.Telegram.OwnerUserIDs,
	}, st, cat, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return err
	}

	notifier := telegram.NewNotifier(bot, st, log.With(logx.String("comp", "notifier")))
	eng := engine.New(st, notifier, log.With(logx.String("comp", "engine")))

	cycle := func(ctx context.Context, chat store.ChatSettings) error {
		games, err := cat.FreeGames(ctx)
		if err != nil {
			return err
		}
		_, err = eng.Run(ctx, chat.ChatID, games)
		return err
	}

	schedCfg, err := schedulerConfig(cfg)
	if err != nil {
		return err
	}
	sched := scheduler.New(schedCfg, st, cycle, log.With(logx.String("comp", "scheduler")))

	if err := bot.Start(ctx); err != nil {
		return err
	}
	if cfg.Scheduler.Enabled {
		if err := sched.Start(); err != nil {
			return err
		}
	}

	// Hot reload: watch the config file and apply what can change at
	// runtime (log level, scheduler cadence and window).
	go func() {
		if err := cfgm.Watch(ctx); err != nil {
			log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	updates := cfgm.Subscribe(1)
	defer cfgm.Unsubscribe(updates)
	go func() {
		for next := range updates {
			logSvc.Apply(logx.Config{
				Level:   next.Logging.Level,
				Console: next.Logging.Console,
				File: logx.FileConfig{
					Enabled: next.Logging.File.Enabled,
					Path:    next.Logging.File.Path,
				},
			})
			sc, err := schedulerConfig(next)
			if err != nil {
				log.Warn("scheduler config not applied", logx.Err(err))
				continue
			}
			if err := sched.Apply(sc); err != nil {
				log.Warn("scheduler restart failed", logx.Err(err))
			}
		}
	}()

	// Under systemd Type=notify this flips the unit to active; elsewhere
	// it is a no-op.
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Debug("sd_notify skipped", logx.Err(err))
	}
	log.Info("bot running", logx.Bool("scheduler", cfg.Scheduler.Enabled))

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	sched.Stop(shutdownCtx)
	if err := bot.Stop(shutdownCtx); err != nil {
		log.Warn("bot stop", logx.Err(err))
	}
	log.Info("bye")
	return nil
}

func schedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	cadence, err := config.ParseDurationOrDefault("scheduler.cadence", cfg.Scheduler.Cadence, config.DefaultCadence)
	if err != nil {
		return scheduler.Config{}, err
	}
	window, err := config.ParseDurationOrDefault("scheduler.window", cfg.Scheduler.Window, config.DefaultWindow)
	if err != nil {
		return scheduler.Config{}, err
	}
	loc := time.UTC
	if tz := cfg.Scheduler.Timezone; tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return scheduler.Config{}, fmt.Errorf("scheduler.timezone: %w", err)
		}
	}
	return scheduler.Config{
		Cadence:   cadence,
		Window:    window,
		Location:  loc,
		Retention: cfg.Retention(),
	}, nil
}
