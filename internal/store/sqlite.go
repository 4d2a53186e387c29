package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "freebot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) GetAnnounced(ctx context.Context, chatID int64, gameID string) (Announced, bool, error) {
	var rec Announced
	var at string
	err := s.db.QueryRowContext(ctx,
		`SELECT game_id, chat_id, promo_end_ms, announced_at
		 FROM announced WHERE game_id = ? AND chat_id = ?`,
		gameID, chatID,
	).Scan(&rec.GameID, &rec.ChatID, &rec.PromoEndMS, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return Announced{}, false, nil
	}
	if err != nil {
		return Announced{}, false, err
	}
	rec.AnnouncedAt = parseTimeCol(at)
	return rec, true, nil
}

func (s *sqliteStore) PutAnnounced(ctx context.Context, rec Announced) error {
	if strings.TrimSpace(rec.GameID) == "" {
		return errors.New("announced record needs a game id")
	}
	if rec.AnnouncedAt.IsZero() {
		rec.AnnouncedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO announced(game_id, chat_id, promo_end_ms, announced_at)
		 VALUES(?,?,?,?)
		 ON CONFLICT(game_id, chat_id) DO UPDATE SET promo_end_ms = excluded.promo_end_ms`,
		rec.GameID, rec.ChatID, rec.PromoEndMS, rec.AnnouncedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) DeleteAnnounced(ctx context.Context, chatID int64, gameID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM announced WHERE game_id = ? AND chat_id = ?`, gameID, chatID)
	return err
}

func (s *sqliteStore) ListAnnounced(ctx context.Context, chatID int64) ([]Announced, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT game_id, chat_id, promo_end_ms, announced_at
		 FROM announced WHERE chat_id = ? ORDER BY game_id`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Announced
	for rows.Next() {
		var rec Announced
		var at string
		if err := rows.Scan(&rec.GameID, &rec.ChatID, &rec.PromoEndMS, &at); err != nil {
			return nil, err
		}
		rec.AnnouncedAt = parseTimeCol(at)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *sqliteStore) PruneAnnounced(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM announced WHERE announced_at < ?`, before.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *sqliteStore) GetChatSettings(ctx context.Context, chatID int64) (ChatSettings, bool, error) {
	var cs ChatSettings
	var created, updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT chat_id, channel_id, notify_time, created_at, updated_at
		 FROM chat_settings WHERE chat_id = ?`, chatID,
	).Scan(&cs.ChatID, &cs.ChannelID, &cs.NotifyTime, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return ChatSettings{}, false, nil
	}
	if err != nil {
		return ChatSettings{}, false, err
	}
	cs.CreatedAt = parseTimeCol(created)
	cs.UpdatedAt = parseTimeCol(updated)
	return cs, true, nil
}

func (s *sqliteStore) PutChatSettings(ctx context.Context, cs ChatSettings) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_settings(chat_id, channel_id, notify_time, created_at, updated_at)
		 VALUES(?,?,?,?,?)
		 ON CONFLICT(chat_id) DO UPDATE SET
		   channel_id  = excluded.channel_id,
		   notify_time = excluded.notify_time,
		   updated_at  = excluded.updated_at`,
		cs.ChatID, cs.ChannelID, cs.NotifyTime, now, now,
	)
	return err
}

func (s *sqliteStore) ListChatSettings(ctx context.Context) ([]ChatSettings, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, channel_id, notify_time, created_at, updated_at
		 FROM chat_settings ORDER BY chat_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChatSettings
	for rows.Next() {
		var cs ChatSettings
		var created, updated string
		if err := rows.Scan(&cs.ChatID, &cs.ChannelID, &cs.NotifyTime, &created, &updated); err != nil {
			return nil, err
		}
		cs.CreatedAt = parseTimeCol(created)
		cs.UpdatedAt = parseTimeCol(updated)
		out = append(out, cs)
	}
	return out, rows.Err()
}

func (s *sqliteStore) AppendHealth(ctx context.Context, e HealthEntry) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO health_log(status, message, at) VALUES(?,?,?)`,
		e.Status, nullStr(e.Message), e.At.Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) RecentHealth(ctx context.Context, limit int) ([]HealthEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COALESCE(message, ''), at
		 FROM health_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HealthEntry
	for rows.Next() {
		var e HealthEntry
		var at string
		if err := rows.Scan(&e.Status, &e.Message, &at); err != nil {
			return nil, err
		}
		e.At = parseTimeCol(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

func parseTimeCol(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
