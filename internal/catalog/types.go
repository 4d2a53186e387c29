package catalog

import "time"

// Game is one normalized free-promotion entry from the storefront catalog.
type Game struct {
	// ID is a stable identifier, resolved through the slug fallback chain
	// and never empty for games returned by the client.
	ID    string
	Title string
	// URL is the store detail page.
	URL      string
	ImageURL string
	// OriginalPrice is the pre-discount price, already formatted for
	// display ("$59.99"). "Free" when no price could be resolved.
	OriginalPrice string
	// PromoEnd is when the free promotion ends. The zero value means the
	// duration is unknown (no active or upcoming promotion block).
	PromoEnd time.Time
}

// PromoEndMS returns the promotion end as unix milliseconds, 0 when unknown.
// This is the representation persisted in announced records.
func (g Game) PromoEndMS() int64 {
	if g.PromoEnd.IsZero() {
		return 0
	}
	return g.PromoEnd.UnixMilli()
}
