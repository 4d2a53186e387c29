package config

import "time"

// Config is the whole config file.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "30m").
// Secrets (bot token, webhook URL) can also come from the environment;
// see applyEnv.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Webhook   WebhookConfig   `json:"webhook,omitempty"`
	Catalog   CatalogConfig   `json:"catalog,omitempty"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Storage   StorageConfig   `json:"storage"`
	Logging   LoggingConfig   `json:"logging"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// OwnerUserIDs may always run admin commands, regardless of chat role.
	OwnerUserIDs []int64 `json:"owner_user_ids,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

// WebhookConfig is only used by the one-shot notifier (cmd/notify).
type WebhookConfig struct {
	URL     string `json:"url"`
	Timeout string `json:"timeout,omitempty"`
}

// CatalogConfig points at the storefront's free-games promotions endpoint.
type CatalogConfig struct {
	URL      string `json:"url,omitempty"`
	Country  string `json:"country,omitempty"` // region code, default "US"
	Locale   string `json:"locale,omitempty"`  // default "en-US"
	Timeout  string `json:"timeout,omitempty"`
	CacheTTL string `json:"cache_ttl,omitempty"` // default "1h"
}

// SchedulerConfig controls the periodic notification cycle (cmd/bot).
type SchedulerConfig struct {
	Enabled bool `json:"enabled"`
	// Cadence between ticks, default "30m".
	Cadence string `json:"cadence,omitempty"`
	// Window is the symmetric tolerance around a chat's configured
	// notification time, default "15m".
	Window   string `json:"window,omitempty"`
	Timezone string `json:"timezone,omitempty"` // IANA TZ, default UTC
	// RetentionDays bounds how long announced records are kept, default 30.
	RetentionDays int `json:"retention_days,omitempty"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/freebot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// Defaults used when the corresponding config field is omitted.
const (
	DefaultCatalogURL = "https://store-site-backend-static.ak.epicgames.com/freeGamesPromotions"
	DefaultCountry    = "US"
	DefaultLocale     = "en-US"

	DefaultFetchTimeout  = 30 * time.Second
	DefaultCacheTTL      = time.Hour
	DefaultCadence       = 30 * time.Minute
	DefaultWindow        = 15 * time.Minute
	DefaultPollTimeout   = 10 * time.Second
	DefaultRetentionDays = 30
)
