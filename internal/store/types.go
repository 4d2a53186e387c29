package store

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (snapshot + jsonl journal),
//     used by the one-shot notifier
//   - "sqlite": SQLite database file, used by the bot
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Announced marks that a game has already triggered a notification for a
// chat. One record per (chat, game); the one-shot notifier uses ChatID 0
// as its single global scope.
type Announced struct {
	ChatID int64  `json:"chat_id"`
	GameID string `json:"game_id"`
	// PromoEndMS is the promotion end in unix milliseconds, 0 = unknown.
	PromoEndMS  int64     `json:"promo_end_ms"`
	AnnouncedAt time.Time `json:"announced_at"`
}

// ChatSettings is the per-chat notification configuration.
type ChatSettings struct {
	ChatID    int64  `json:"chat_id"`
	ChannelID int64  `json:"channel_id"`
	// NotifyTime is the configured time of day, "HH:MM" in the scheduler
	// timezone.
	NotifyTime string    `json:"notify_time"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

const (
	HealthOK    = "healthy"
	HealthError = "error"
)

// HealthEntry is one heartbeat row written after each scheduler cycle.
type HealthEntry struct {
	Status  string    `json:"status"` // HealthOK or HealthError
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}
