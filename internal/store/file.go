package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	logx "freebot/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.state.json    (periodic snapshot: announced + chat settings)
//   - <prefix>.journal.jsonl (append-only journal of announced changes)
//
// The journal is periodically compacted into the snapshot. Health entries
// are kept in memory only; durable health history is a sqlite feature.
//
// A snapshot or journal that fails to load is logged and treated as empty:
// the worst case is a re-notification, never a silently lost record trail.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	snapshotPath string
	journalFile  *os.File

	announced map[string]Announced // key: chatID "/" gameID
	chats     map[int64]ChatSettings

	health []HealthEntry

	writes int
}

type snapshot struct {
	Announced map[string]Announced    `json:"announced"`
	Chats     map[string]ChatSettings `json:"chats,omitempty"`
}

type journalRecord struct {
	Key     string     `json:"key"`
	Rec     *Announced `json:"rec,omitempty"`
	Deleted bool       `json:"deleted,omitempty"`
}

const (
	compactEvery     = 1000
	healthHistoryMax = 200
)

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".state.json"
	journalPath := prefix + ".journal.jsonl"

	s := &fileStore{
		log:          log,
		snapshotPath: snapPath,
		announced:    map[string]Announced{},
		chats:        map[int64]ChatSettings{},
	}

	if err := s.loadSnapshot(snapPath); err != nil && !os.IsNotExist(err) {
		log.Warn("state snapshot unreadable; starting empty", logx.String("path", snapPath), logx.Err(err))
	}
	if err := s.replayJournal(journalPath); err != nil && !os.IsNotExist(err) {
		log.Warn("state journal unreadable; partial replay", logx.String("path", journalPath), logx.Err(err))
	}

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	s.journalFile = jf
	return s, nil
}

func announcedKey(chatID int64, gameID string) string {
	return strconv.FormatInt(chatID, 10) + "/" + gameID
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return nil
	}
	// Final compaction so a clean shutdown leaves a single snapshot.
	if err := s.compactLocked(); err != nil {
		s.log.Debug("final compact failed", logx.Err(err))
	}
	err := s.journalFile.Close()
	s.journalFile = nil
	return err
}

func (s *fileStore) GetAnnounced(ctx context.Context, chatID int64, gameID string) (Announced, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.announced[announcedKey(chatID, gameID)]
	return rec, ok, nil
}

func (s *fileStore) PutAnnounced(ctx context.Context, rec Announced) error {
	_ = ctx
	if strings.TrimSpace(rec.GameID) == "" {
		return errors.New("announced record needs a game id")
	}
	if rec.AnnouncedAt.IsZero() {
		rec.AnnouncedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return errors.New("store closed")
	}
	key := announcedKey(rec.ChatID, rec.GameID)
	s.announced[key] = rec
	return s.journalLocked(journalRecord{Key: key, Rec: &rec})
}

func (s *fileStore) DeleteAnnounced(ctx context.Context, chatID int64, gameID string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return errors.New("store closed")
	}
	key := announcedKey(chatID, gameID)
	if _, ok := s.announced[key]; !ok {
		return nil
	}
	delete(s.announced, key)
	return s.journalLocked(journalRecord{Key: key, Deleted: true})
}

func (s *fileStore) ListAnnounced(ctx context.Context, chatID int64) ([]Announced, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Announced, 0, len(s.announced))
	for _, rec := range s.announced {
		if rec.ChatID == chatID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameID < out[j].GameID })
	return out, nil
}

func (s *fileStore) PruneAnnounced(ctx context.Context, before time.Time) (int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for key, rec := range s.announced {
		if rec.AnnouncedAt.Before(before) {
			delete(s.announced, key)
			n++
		}
	}
	if n > 0 {
		if err := s.compactLocked(); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (s *fileStore) GetChatSettings(ctx context.Context, chatID int64) (ChatSettings, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.chats[chatID]
	return cs, ok, nil
}

func (s *fileStore) PutChatSettings(ctx context.Context, cs ChatSettings) error {
	_ = ctx
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.chats[cs.ChatID]; ok {
		cs.CreatedAt = prev.CreatedAt
	} else if cs.CreatedAt.IsZero() {
		cs.CreatedAt = now
	}
	cs.UpdatedAt = now
	s.chats[cs.ChatID] = cs
	// Settings changes are rare; snapshot immediately.
	return s.compactLocked()
}

func (s *fileStore) ListChatSettings(ctx context.Context) ([]ChatSettings, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatSettings, 0, len(s.chats))
	for _, cs := range s.chats {
		out = append(out, cs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out, nil
}

func (s *fileStore) AppendHealth(ctx context.Context, e HealthEntry) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health = append(s.health, e)
	if len(s.health) > healthHistoryMax {
		s.health = s.health[len(s.health)-healthHistoryMax:]
	}
	return nil
}

func (s *fileStore) RecentHealth(ctx context.Context, limit int) ([]HealthEntry, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.health) {
		limit = len(s.health)
	}
	out := make([]HealthEntry, limit)
	// newest first
	for i := 0; i < limit; i++ {
		out[i] = s.health[len(s.health)-1-i]
	}
	return out, nil
}

func (s *fileStore) journalLocked(r journalRecord) error {
	enc := json.NewEncoder(s.journalFile)
	if err := enc.Encode(r); err != nil {
		return err
	}
	s.writes++
	if s.writes%compactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("state compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) compactLocked() error {
	snap := snapshot{
		Announced: s.announced,
		Chats:     make(map[string]ChatSettings, len(s.chats)),
	}
	for id, cs := range s.chats {
		snap.Chats[strconv.FormatInt(id, 10)] = cs
	}

	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(snap); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	if s.journalFile == nil {
		return nil
	}
	// Truncate journal.
	if err := s.journalFile.Truncate(0); err != nil {
		return err
	}
	_, err = s.journalFile.Seek(0, 2)
	return err
}

func (s *fileStore) loadSnapshot(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var snap snapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return err
	}
	for k, rec := range snap.Announced {
		s.announced[k] = rec
	}
	for idStr, cs := range snap.Chats {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return fmt.Errorf("bad chat id %q: %w", idStr, err)
		}
		s.chats[id] = cs
	}
	return nil
}

func (s *fileStore) replayJournal(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r journalRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		if r.Key == "" {
			continue
		}
		if r.Deleted {
			delete(s.announced, r.Key)
			continue
		}
		if r.Rec != nil {
			s.announced[r.Key] = *r.Rec
		}
	}
	return sc.Err()
}
