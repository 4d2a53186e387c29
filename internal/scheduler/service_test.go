package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"freebot/internal/store"
	logx "freebot/pkg/logx"
)

func TestParseHHMM(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "09:30", want: 570},
		{in: "23:59", want: 1439},
		{in: " 12:00 ", want: 720},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "12", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := parseHHMM(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseHHMM(%q): want error, got %d", tc.in, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("parseHHMM(%q) = %d, %v; want %d", tc.in, got, err, tc.want)
		}
	}
}

func TestDueNow(t *testing.T) {
	t.Parallel()

	at := func(hh, mm int) time.Time {
		return time.Date(2026, 3, 10, hh, mm, 0, 0, time.UTC)
	}
	window := 15 * time.Minute

	cases := []struct {
		name string
		now  time.Time
		hhmm string
		want bool
	}{
		{name: "exact", now: at(9, 0), hhmm: "09:00", want: true},
		{name: "edge before", now: at(8, 45), hhmm: "09:00", want: true},
		{name: "edge after", now: at(9, 15), hhmm: "09:00", want: true},
		{name: "just outside", now: at(9, 16), hhmm: "09:00", want: false},
		{name: "wraps past midnight", now: at(0, 5), hhmm: "23:55", want: true},
		{name: "wraps before midnight", now: at(23, 50), hhmm: "00:04", want: true},
		{name: "opposite side of clock", now: at(12, 0), hhmm: "00:00", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := dueNow(tc.now, tc.hhmm, window)
			if err != nil {
				t.Fatalf("dueNow: %v", err)
			}
			if got != tc.want {
				t.Fatalf("dueNow(%s, %s) = %v, want %v", tc.now.Format("15:04"), tc.hhmm, got, tc.want)
			}
		})
	}

	if _, err := dueNow(at(9, 0), "9am", window); err == nil {
		t.Fatal("want error for malformed time of day")
	}
}

// tickStore is an in-memory store.Store recording what the scheduler did.
type tickStore struct {
	mu      sync.Mutex
	chats   []store.ChatSettings
	listErr error
	health  []store.HealthEntry
	pruned  []time.Time
}

func (s *tickStore) GetAnnounced(context.Context, int64, string) (store.Announced, bool, error) {
	return store.Announced{}, false, nil
}
func (s *tickStore) PutAnnounced(context.Context, store.Announced) error      { return nil }
func (s *tickStore) DeleteAnnounced(context.Context, int64, string) error     { return nil }
func (s *tickStore) ListAnnounced(context.Context, int64) ([]store.Announced, error) {
	return nil, nil
}

func (s *tickStore) PruneAnnounced(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruned = append(s.pruned, before)
	return 0, nil
}

func (s *tickStore) GetChatSettings(context.Context, int64) (store.ChatSettings, bool, error) {
	return store.ChatSettings{}, false, nil
}
func (s *tickStore) PutChatSettings(context.Context, store.ChatSettings) error { return nil }

func (s *tickStore) ListChatSettings(context.Context) ([]store.ChatSettings, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.chats, nil
}

func (s *tickStore) AppendHealth(_ context.Context, e store.HealthEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health = append(s.health, e)
	return nil
}

func (s *tickStore) RecentHealth(context.Context, int) ([]store.HealthEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.HealthEntry(nil), s.health...), nil
}

func (s *tickStore) Close() error { return nil }

func testService(st store.Store, run CycleFunc, now time.Time) *Service {
	svc := New(Config{
		Cadence:   30 * time.Minute,
		Window:    15 * time.Minute,
		Retention: 30 * 24 * time.Hour,
	}, st, run, logx.Nop())
	svc.now = func() time.Time { return now }
	return svc
}

var tickNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func TestTickRunsDueChatsOnly(t *testing.T) {
	t.Parallel()

	st := &tickStore{chats: []store.ChatSettings{
		{ChatID: 1, NotifyTime: "09:10"}, // within window
		{ChatID: 2, NotifyTime: "14:00"}, // not due
		{ChatID: 3, NotifyTime: "bogus"}, // skipped, not fatal
		{ChatID: 4, NotifyTime: "08:50"}, // within window
	}}

	var mu sync.Mutex
	var ran []int64
	svc := testService(st, func(_ context.Context, chat store.ChatSettings) error {
		mu.Lock()
		ran = append(ran, chat.ChatID)
		mu.Unlock()
		return nil
	}, tickNow)

	svc.Tick(context.Background())

	if len(ran) != 2 || ran[0] != 1 || ran[1] != 4 {
		t.Fatalf("ran chats %v, want [1 4]", ran)
	}
	if len(st.health) != 1 || st.health[0].Status != store.HealthOK {
		t.Fatalf("health = %+v, want one healthy heartbeat", st.health)
	}
	if len(st.pruned) != 1 {
		t.Fatalf("prune calls = %d, want 1", len(st.pruned))
	}
	if got, want := st.pruned[0], tickNow.Add(-30*24*time.Hour); !got.Equal(want) {
		t.Fatalf("prune cutoff = %v, want %v", got, want)
	}
}

func TestTickIsolatesChatFailures(t *testing.T) {
	t.Parallel()

	st := &tickStore{chats: []store.ChatSettings{
		{ChatID: 1, NotifyTime: "09:00"},
		{ChatID: 2, NotifyTime: "09:00"},
	}}

	var ran []int64
	svc := testService(st, func(_ context.Context, chat store.ChatSettings) error {
		ran = append(ran, chat.ChatID)
		if chat.ChatID == 1 {
			return errors.New("channel gone")
		}
		return nil
	}, tickNow)

	svc.Tick(context.Background())

	if len(ran) != 2 {
		t.Fatalf("ran %v, failure must not stop the walk", ran)
	}
	if len(st.health) != 1 || st.health[0].Status != store.HealthError {
		t.Fatalf("health = %+v, want a single error entry and no healthy heartbeat", st.health)
	}
}

func TestTickListErrorWritesErrorHealth(t *testing.T) {
	t.Parallel()

	st := &tickStore{listErr: errors.New("db locked")}
	svc := testService(st, func(context.Context, store.ChatSettings) error {
		t.Fatal("cycle must not run")
		return nil
	}, tickNow)

	svc.Tick(context.Background())

	if len(st.health) != 1 || st.health[0].Status != store.HealthError {
		t.Fatalf("health = %+v", st.health)
	}
	if len(st.pruned) != 0 {
		t.Fatal("prune must not run after a list failure")
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	svc := testService(&tickStore{}, func(context.Context, store.ChatSettings) error { return nil }, tickNow)
	if err := svc.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := svc.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	svc.Stop(ctx)
	svc.Stop(ctx) // idempotent
}

func TestApplyRestartsOnCadenceChange(t *testing.T) {
	t.Parallel()

	svc := testService(&tickStore{}, func(context.Context, store.ChatSettings) error { return nil }, tickNow)
	if err := svc.Start(); err != nil {
		t.Fatal(err)
	}
	defer svc.Stop(context.Background())

	cfg := svc.cfg
	cfg.Cadence = time.Hour
	if err := svc.Apply(cfg); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	svc.mu.Lock()
	got := svc.cfg.Cadence
	running := svc.c != nil
	svc.mu.Unlock()
	if got != time.Hour || !running {
		t.Fatalf("cadence = %v running = %v", got, running)
	}
}
