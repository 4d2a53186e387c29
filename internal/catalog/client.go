// Package catalog fetches the storefront's free-promotion listings.
//
// The remote payload is a deeply nested JSON envelope whose per-element
// shape drifts between storefront rollouts; field extraction therefore runs
// through ordered fallback chains (see extract.go) and malformed elements
// are skipped rather than failing the whole fetch.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"freebot/internal/cache"
	logx "freebot/pkg/logx"
)

var (
	// ErrFetch covers network failures and non-success HTTP statuses.
	ErrFetch = errors.New("catalog fetch failed")
	// ErrParse covers a response body without the expected envelope.
	ErrParse = errors.New("catalog response malformed")
)

const userAgent = "freebot/1.0"

type Config struct {
	URL     string
	Country string // region code, e.g. "US"
	Locale  string // e.g. "en-US"

	Timeout  time.Duration // per-request, default 30s
	CacheTTL time.Duration // default 1h; 0 keeps the default, negative disables
}

type Client struct {
	cfg   Config
	http  *http.Client
	log   logx.Logger
	cache *cache.Cache[[]Game]
}

func New(cfg Config, log logx.Logger) *Client {
	if cfg.URL == "" {
		cfg.URL = "https://store-site-backend-static.ak.epicgames.com/freeGamesPromotions"
	}
	if cfg.Country == "" {
		cfg.Country = "US"
	}
	if cfg.Locale == "" {
		cfg.Locale = "en-US"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Hour
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		log:   log,
		cache: cache.New[[]Game](),
	}
}

// FreeGames returns the current free promotions, served from the in-memory
// TTL cache when fresh. Cache loss is harmless; the data is refetched.
func (c *Client) FreeGames(ctx context.Context) ([]Game, error) {
	key := "free:" + c.cfg.Country
	if games, ok := c.cache.Get(key); ok {
		c.log.Debug("serving cached free games", logx.Int("count", len(games)))
		return games, nil
	}

	games, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if c.cfg.CacheTTL > 0 {
		c.cache.Set(key, games, c.cfg.CacheTTL)
	}
	return games, nil
}

type searchEnvelope struct {
	Data *struct {
		Catalog *struct {
			SearchStore *struct {
				Elements []json.RawMessage `json:"elements"`
			} `json:"searchStore"`
		} `json:"Catalog"`
	} `json:"data"`
}

func (c *Client) fetch(ctx context.Context) ([]Game, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	q := url.Values{}
	q.Set("locale", c.cfg.Locale)
	q.Set("country", c.cfg.Country)
	q.Set("allowCountries", c.cfg.Country)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: unexpected status %s", ErrFetch, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrFetch, err)
	}

	var env searchEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if env.Data == nil || env.Data.Catalog == nil || env.Data.Catalog.SearchStore == nil {
		return nil, fmt.Errorf("%w: missing data.Catalog.searchStore", ErrParse)
	}

	raws := env.Data.Catalog.SearchStore.Elements
	games := make([]Game, 0, len(raws))
	seen := map[string]bool{}
	for i, raw := range raws {
		var el element
		if err := json.Unmarshal(raw, &el); err != nil {
			c.log.Warn("skipping malformed catalog element",
				logx.Int("index", i), logx.Err(err))
			continue
		}
		g, err := extractGame(el, c.cfg.Locale)
		if err != nil {
			switch {
			case errors.Is(err, errNotFree), errors.Is(err, errMysteryItem):
				c.log.Debug("skipping catalog element",
					logx.String("title", el.Title), logx.Err(err))
			default:
				c.log.Warn("skipping catalog element",
					logx.String("title", el.Title), logx.Err(err))
			}
			continue
		}
		if seen[g.ID] {
			continue
		}
		seen[g.ID] = true
		games = append(games, g)
	}

	c.log.Info("fetched free games",
		logx.Int("count", len(games)), logx.String("country", c.cfg.Country))
	return games, nil
}
