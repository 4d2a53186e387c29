// Command notify is the one-shot notifier: fetch the current free games,
// announce anything new or changed to the configured webhook, persist
// what was announced, and exit. Designed for cron or a systemd timer.
//
// Exit status is 0 when the cycle completed (even with nothing to send)
// and 1 on a fetch, storage or delivery failure.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"freebot/internal/catalog"
	"freebot/internal/config"
	"freebot/internal/engine"
	"freebot/internal/notify"
	"freebot/internal/store"
	logx "freebot/pkg/logx"
)

// oneShotChat is the single announced-state scope used when there are no
// per-chat destinations.
const oneShotChat int64 = 0

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

	cfg, err := config.NewManager(cfgPath).Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(config.ModeOneShot); err != nil {
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
	log = log.With(logx.String("comp", "notify"))

	st, err := store.Open(store.Config{
		Driver: cfg.Storage.Driver,
		Path:   cfg.Storage.Path,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return err
	}
	defer st.Close()

	fetchTimeout, err := config.ParseDurationOrDefault("catalog.timeout", cfg.Catalog.Timeout, config.DefaultFetchTimeout)
	if err != nil {
		return err
	}
	cat := catalog.New(catalog.Config{
		URL:     cfg.Catalog.URL,
		Country: cfg.Catalog.Country,
		Locale:  cfg.Catalog.Locale,
		Timeout: fetchTimeout,
		// A single fetch per process; caching would never hit.
		CacheTTL: -1,
	}, log.With(logx.String("comp", "catalog")))

	webhookTimeout, err := config.ParseDurationField("webhook.timeout", cfg.Webhook.Timeout)
	if err != nil {
		return err
	}
	sender := notify.NewWebhook(notify.WebhookConfig{
		URL:     cfg.Webhook.URL,
		Timeout: webhookTimeout,
	}, log.With(logx.String("comp", "webhook")))

	games, err := cat.FreeGames(ctx)
	if err != nil {
		return err
	}

	rep, err := engine.New(st, sender, log).Run(ctx, oneShotChat, games)
	if err != nil {
		return err
	}
	log.Info("cycle complete",
		logx.Int("games", len(games)),
		logx.Int("new", rep.New),
		logx.Int("updated", rep.Updated),
		logx.Int("removed", rep.Removed),
		logx.Int("failed", rep.Failed))

	if rep.Failed > 0 {
		return fmt.Errorf("%d notification(s) failed", rep.Failed)
	}
	return nil
}
