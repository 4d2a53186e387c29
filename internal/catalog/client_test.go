package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	logx "freebot/pkg/logx"
)

func testLogger() logx.Logger { return logx.Nop() }

const envelopeFmt = `{"data":{"Catalog":{"searchStore":{"elements":[%s]}}}}`

const alphaElement = `{
	"id": "offer-1",
	"title": "Alpha",
	"productSlug": "alpha",
	"keyImages": [{"type": "OfferImageWide", "url": "https://img.test/alpha.jpg"}],
	"price": {"totalPrice": {"originalPrice": 2999, "discountPrice": 0, "currencyCode": "USD"}},
	"promotions": {"promotionalOffers": [{"promotionalOffers": [
		{"startDate": "2030-01-01T16:00:00.000Z", "endDate": "2030-01-08T16:00:00.000Z"}
	]}]}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, ttl time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{URL: srv.URL, CacheTTL: ttl}, testLogger())
}

func TestFreeGamesHappyPath(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("country"); got != "US" {
			t.Errorf("country param = %q", got)
		}
		fmt.Fprintf(w, envelopeFmt, alphaElement)
	}, -1)

	games, err := c.FreeGames(context.Background())
	if err != nil {
		t.Fatalf("FreeGames: %v", err)
	}
	if len(games) != 1 {
		t.Fatalf("got %d games, want 1", len(games))
	}
	g := games[0]
	if g.ID != "alpha" || g.Title != "Alpha" || g.OriginalPrice != "$29.99" {
		t.Fatalf("unexpected game: %+v", g)
	}
	if g.PromoEnd.IsZero() {
		t.Fatal("promo end should be set")
	}
	if g.ImageURL != "https://img.test/alpha.jpg" {
		t.Fatalf("image = %q", g.ImageURL)
	}
}

func TestFreeGamesHTTPErrorIsFetchError(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}, -1)

	if _, err := c.FreeGames(context.Background()); !errors.Is(err, ErrFetch) {
		t.Fatalf("err = %v, want ErrFetch", err)
	}
}

func TestFreeGamesBadJSONIsParseError(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": "surprise"`)
	}, -1)

	if _, err := c.FreeGames(context.Background()); !errors.Is(err, ErrParse) {
		t.Fatalf("err = %v, want ErrParse", err)
	}
}

func TestFreeGamesMissingEnvelopeIsParseError(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": {"Catalog": {}}}`)
	}, -1)

	if _, err := c.FreeGames(context.Background()); !errors.Is(err, ErrParse) {
		t.Fatalf("err = %v, want ErrParse", err)
	}
}

func TestFreeGamesSkipsMalformedElement(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, envelopeFmt, `{"title": 42}`+","+alphaElement)
	}, -1)

	games, err := c.FreeGames(context.Background())
	if err != nil {
		t.Fatalf("FreeGames: %v", err)
	}
	if len(games) != 1 || games[0].ID != "alpha" {
		t.Fatalf("games = %+v, want only alpha", games)
	}
}

func TestFreeGamesUsesCache(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprintf(w, envelopeFmt, alphaElement)
	}, time.Minute)

	for i := 0; i < 3; i++ {
		if _, err := c.FreeGames(context.Background()); err != nil {
			t.Fatalf("FreeGames #%d: %v", i, err)
		}
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("backend hit %d times, want 1 (cache)", n)
	}
}

func TestFreeGamesDeduplicatesIDs(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, envelopeFmt, alphaElement+","+alphaElement)
	}, -1)

	games, err := c.FreeGames(context.Background())
	if err != nil {
		t.Fatalf("FreeGames: %v", err)
	}
	if len(games) != 1 {
		t.Fatalf("got %d games, want 1 after dedup", len(games))
	}
}
