// Package notify renders and delivers free-game notifications.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"freebot/internal/catalog"
	logx "freebot/pkg/logx"
)

// Webhook posts embed payloads to a chat webhook URL.
// Delivery is rate limited so a cycle with several new games does not trip
// the receiving platform's flood control.
type Webhook struct {
	url     string
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger

	now func() time.Time
}

type WebhookConfig struct {
	URL        string
	Timeout    time.Duration // default 30s
	RatePerSec int           // default 1
}

func NewWebhook(cfg WebhookConfig, log logx.Logger) *Webhook {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Webhook{
		url:     cfg.URL,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
		now:     time.Now,
	}
}

// Send posts one embed. The webhook is a single global destination, so the
// chat scope is ignored. Success is exactly a 204 No Content response.
func (w *Webhook) Send(ctx context.Context, _ int64, g catalog.Game, kind Kind) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	payload := webhookPayload{Embeds: []embed{buildEmbed(g, kind, w.now())}}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %v", ErrDelivery, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %s: %s", ErrDelivery, resp.Status, snippet)
	}

	w.log.Info("notification sent",
		logx.String("title", g.Title), logx.String("kind", kind.Label()))
	return nil
}
