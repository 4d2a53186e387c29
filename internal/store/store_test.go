package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "freebot/pkg/logx"
)

func openTestStore(t *testing.T, driver, path string) Store {
	t.Helper()
	st, err := Open(Config{Driver: driver, Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open(%s): %v", driver, err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// Both drivers must behave the same for everything the engine relies on.
func TestDrivers(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()

			t.Run("announced roundtrip", func(t *testing.T) {
				st := openTestStore(t, driver, filepath.Join(t.TempDir(), "a.db"))
				ctx := context.Background()

				if _, ok, err := st.GetAnnounced(ctx, 1, "g1"); err != nil || ok {
					t.Fatalf("empty get = ok=%v err=%v", ok, err)
				}

				rec := Announced{ChatID: 1, GameID: "g1", PromoEndMS: 1234567890}
				if err := st.PutAnnounced(ctx, rec); err != nil {
					t.Fatalf("Put: %v", err)
				}
				got, ok, err := st.GetAnnounced(ctx, 1, "g1")
				if err != nil || !ok {
					t.Fatalf("Get = ok=%v err=%v", ok, err)
				}
				if got.PromoEndMS != 1234567890 || got.AnnouncedAt.IsZero() {
					t.Fatalf("got = %+v", got)
				}

				// Upsert with a new promo end keeps one record.
				rec.PromoEndMS = 42
				if err := st.PutAnnounced(ctx, rec); err != nil {
					t.Fatalf("Put update: %v", err)
				}
				got, _, _ = st.GetAnnounced(ctx, 1, "g1")
				if got.PromoEndMS != 42 {
					t.Fatalf("promo end after update = %d", got.PromoEndMS)
				}

				// Scoped per chat.
				if _, ok, _ := st.GetAnnounced(ctx, 2, "g1"); ok {
					t.Fatal("record leaked into another chat scope")
				}

				if err := st.DeleteAnnounced(ctx, 1, "g1"); err != nil {
					t.Fatalf("Delete: %v", err)
				}
				if _, ok, _ := st.GetAnnounced(ctx, 1, "g1"); ok {
					t.Fatal("record survived delete")
				}
				// Deleting a missing record is not an error.
				if err := st.DeleteAnnounced(ctx, 1, "g1"); err != nil {
					t.Fatalf("Delete missing: %v", err)
				}
			})

			t.Run("list is chat scoped", func(t *testing.T) {
				st := openTestStore(t, driver, filepath.Join(t.TempDir(), "b.db"))
				ctx := context.Background()
				for _, rec := range []Announced{
					{ChatID: 1, GameID: "g1"},
					{ChatID: 1, GameID: "g2"},
					{ChatID: 2, GameID: "g1"},
				} {
					if err := st.PutAnnounced(ctx, rec); err != nil {
						t.Fatal(err)
					}
				}
				got, err := st.ListAnnounced(ctx, 1)
				if err != nil {
					t.Fatal(err)
				}
				if len(got) != 2 || got[0].GameID != "g1" || got[1].GameID != "g2" {
					t.Fatalf("ListAnnounced = %+v", got)
				}
			})

			t.Run("prune by announced_at", func(t *testing.T) {
				st := openTestStore(t, driver, filepath.Join(t.TempDir(), "c.db"))
				ctx := context.Background()
				old := Announced{ChatID: 1, GameID: "old", AnnouncedAt: time.Now().UTC().Add(-40 * 24 * time.Hour)}
				fresh := Announced{ChatID: 1, GameID: "fresh", AnnouncedAt: time.Now().UTC()}
				if err := st.PutAnnounced(ctx, old); err != nil {
					t.Fatal(err)
				}
				if err := st.PutAnnounced(ctx, fresh); err != nil {
					t.Fatal(err)
				}

				n, err := st.PruneAnnounced(ctx, time.Now().UTC().Add(-30*24*time.Hour))
				if err != nil {
					t.Fatalf("Prune: %v", err)
				}
				if n != 1 {
					t.Fatalf("pruned %d, want 1", n)
				}
				if _, ok, _ := st.GetAnnounced(ctx, 1, "fresh"); !ok {
					t.Fatal("fresh record pruned")
				}
			})

			t.Run("chat settings", func(t *testing.T) {
				st := openTestStore(t, driver, filepath.Join(t.TempDir(), "d.db"))
				ctx := context.Background()

				if _, ok, err := st.GetChatSettings(ctx, 7); err != nil || ok {
					t.Fatalf("empty settings = ok=%v err=%v", ok, err)
				}
				cs := ChatSettings{ChatID: 7, ChannelID: 7, NotifyTime: "13:00"}
				if err := st.PutChatSettings(ctx, cs); err != nil {
					t.Fatalf("Put: %v", err)
				}
				cs.NotifyTime = "09:30"
				if err := st.PutChatSettings(ctx, cs); err != nil {
					t.Fatalf("Put update: %v", err)
				}
				got, ok, err := st.GetChatSettings(ctx, 7)
				if err != nil || !ok {
					t.Fatalf("Get = ok=%v err=%v", ok, err)
				}
				if got.NotifyTime != "09:30" || got.ChannelID != 7 {
					t.Fatalf("settings = %+v", got)
				}

				all, err := st.ListChatSettings(ctx)
				if err != nil || len(all) != 1 {
					t.Fatalf("List = %+v err=%v", all, err)
				}
			})

			t.Run("health log", func(t *testing.T) {
				st := openTestStore(t, driver, filepath.Join(t.TempDir(), "e.db"))
				ctx := context.Background()
				if err := st.AppendHealth(ctx, HealthEntry{Status: HealthOK}); err != nil {
					t.Fatal(err)
				}
				if err := st.AppendHealth(ctx, HealthEntry{Status: HealthError, Message: "boom"}); err != nil {
					t.Fatal(err)
				}
				got, err := st.RecentHealth(ctx, 10)
				if err != nil {
					t.Fatal(err)
				}
				if len(got) != 2 || got[0].Status != HealthError || got[0].Message != "boom" {
					t.Fatalf("RecentHealth = %+v", got)
				}
			})
		})
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := st.PutAnnounced(ctx, Announced{ChatID: 0, GameID: "g1", PromoEndMS: 99}); err != nil {
		t.Fatal(err)
	}
	if err := st.PutChatSettings(ctx, ChatSettings{ChatID: 5, ChannelID: 5, NotifyTime: "13:00"}); err != nil {
		t.Fatal(err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	st2, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st2.Close()

	rec, ok, err := st2.GetAnnounced(ctx, 0, "g1")
	if err != nil || !ok || rec.PromoEndMS != 99 {
		t.Fatalf("after reopen: rec=%+v ok=%v err=%v", rec, ok, err)
	}
	if _, ok, _ := st2.GetChatSettings(ctx, 5); !ok {
		t.Fatal("chat settings lost on reopen")
	}
}

func TestFileStoreCorruptSnapshotFailsOpen(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")
	if err := os.WriteFile(filepath.Join(dir, "state.state.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	// A broken snapshot must not be fatal: state is treated as empty and
	// the process re-notifies rather than crashing.
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open with corrupt snapshot: %v", err)
	}
	defer st.Close()

	if _, ok, err := st.GetAnnounced(context.Background(), 0, "g1"); err != nil || ok {
		t.Fatalf("expected empty state, got ok=%v err=%v", ok, err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "cassandra", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
