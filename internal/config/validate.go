package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Mode selects which entry point is being validated; the bot needs a token,
// the one-shot notifier needs a webhook URL.
type Mode int

const (
	ModeBot Mode = iota
	ModeOneShot
)

// Validate checks everything that should stop the process before any
// network activity happens.
func (c *Config) Validate(mode Mode) error {
	switch mode {
	case ModeBot:
		if strings.TrimSpace(c.Telegram.Token) == "" {
			return errors.New("telegram.token is required (or set FREEBOT_TELEGRAM_TOKEN)")
		}
	case ModeOneShot:
		if strings.TrimSpace(c.Webhook.URL) == "" {
			return errors.New("webhook.url is required (or set FREEBOT_WEBHOOK_URL)")
		}
	}

	if strings.TrimSpace(c.Storage.Driver) == "" {
		return errors.New("storage.driver is required")
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return errors.New("storage.path is required")
	}

	for _, f := range []struct{ path, raw string }{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"webhook.timeout", c.Webhook.Timeout},
		{"catalog.timeout", c.Catalog.Timeout},
		{"catalog.cache_ttl", c.Catalog.CacheTTL},
		{"scheduler.cadence", c.Scheduler.Cadence},
		{"scheduler.window", c.Scheduler.Window},
		{"storage.busy_timeout", c.Storage.BusyTimeout},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}

	if tz := strings.TrimSpace(c.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: %w", err)
		}
	}
	if c.Scheduler.RetentionDays < 0 {
		return errors.New("scheduler.retention_days must be >= 0")
	}
	return nil
}

// Retention returns the announced-record retention horizon.
func (c *Config) Retention() time.Duration {
	days := c.Scheduler.RetentionDays
	if days <= 0 {
		days = DefaultRetentionDays
	}
	return time.Duration(days) * 24 * time.Hour
}
