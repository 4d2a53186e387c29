package store

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "freebot/pkg/logx"
)

// Store is the persistence API used by the engine, scheduler and bot
// commands. The store is the sole authority on what has been announced.
type Store interface {
	GetAnnounced(ctx context.Context, chatID int64, gameID string) (Announced, bool, error)
	PutAnnounced(ctx context.Context, rec Announced) error
	DeleteAnnounced(ctx context.Context, chatID int64, gameID string) error
	ListAnnounced(ctx context.Context, chatID int64) ([]Announced, error)
	// PruneAnnounced deletes records announced before the cutoff,
	// irrespective of state, and returns how many were removed.
	PruneAnnounced(ctx context.Context, before time.Time) (int64, error)

	GetChatSettings(ctx context.Context, chatID int64) (ChatSettings, bool, error)
	PutChatSettings(ctx context.Context, s ChatSettings) error
	ListChatSettings(ctx context.Context) ([]ChatSettings, error)

	AppendHealth(ctx context.Context, e HealthEntry) error
	RecentHealth(ctx context.Context, limit int) ([]HealthEntry, error)

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + cfg.Driver)
	}
}
