package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestGetMissingKey(t *testing.T) {
	t.Parallel()
	c := New[string]()
	if v, ok := c.Get("nope"); ok || v != "" {
		t.Fatalf("Get on empty cache = (%q, %v), want miss", v, ok)
	}
}

func TestSetGetRoundtrip(t *testing.T) {
	t.Parallel()
	c := New[int]()
	c.Set("answer", 42, time.Minute)
	v, ok := c.Get("answer")
	if !ok || v != 42 {
		t.Fatalf("Get = (%d, %v), want (42, true)", v, ok)
	}
}

func TestExpiredEntryIsLazilyEvicted(t *testing.T) {
	t.Parallel()
	c := New[string]()
	c.Set("k", "v", 30*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected expired entry to miss")
	}
	if n := c.Len(); n != 0 {
		t.Fatalf("Len after expired Get = %d, want 0 (lazy eviction)", n)
	}
}

func TestSetNonPositiveTTLRemoves(t *testing.T) {
	t.Parallel()
	c := New[string]()
	c.Set("k", "v", time.Minute)
	c.Set("k", "v2", 0)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected key removed by zero ttl")
	}
}

func TestOverwriteRefreshesExpiry(t *testing.T) {
	t.Parallel()
	c := New[string]()
	c.Set("k", "old", 20*time.Millisecond)
	c.Set("k", "new", time.Minute)
	time.Sleep(40 * time.Millisecond)

	v, ok := c.Get("k")
	if !ok || v != "new" {
		t.Fatalf("Get = (%q, %v), want (new, true)", v, ok)
	}
}

func TestPrune(t *testing.T) {
	t.Parallel()
	c := New[int]()
	c.Set("stale", 1, 10*time.Millisecond)
	c.Set("fresh", 2, time.Minute)
	time.Sleep(30 * time.Millisecond)

	if n := c.Prune(time.Now()); n != 1 {
		t.Fatalf("Prune = %d, want 1", n)
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Fatal("fresh entry should survive prune")
	}
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()
	c := New[int]()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("k%d", j%10)
				c.Set(key, i, time.Second)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()
}
