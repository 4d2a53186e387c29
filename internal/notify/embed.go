package notify

import (
	"fmt"
	"time"

	"freebot/internal/catalog"
)

const (
	embedColor = 16776960 // yellow
	footerText = "Free Games Notifier"
)

// Wire structures for the webhook payload. The receiving chat service
// renders these as a rich embed card.
type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

type embed struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Color       int         `json:"color"`
	Image       *embedImage `json:"image,omitempty"`
	Footer      embedFooter `json:"footer"`
	Timestamp   string      `json:"timestamp"`
}

type embedImage struct {
	URL string `json:"url"`
}

type embedFooter struct {
	Text string `json:"text"`
}

// buildEmbed renders one game into the outbound embed.
//
// The countdown uses the chat platform's relative-timestamp directive
// (<t:unix:R>) so the rendered message keeps counting down client-side.
func buildEmbed(g catalog.Game, kind Kind, now time.Time) embed {
	countdown := "Unknown"
	freeLine := "**FREE!**"
	if !g.PromoEnd.IsZero() {
		ts := g.PromoEnd.Unix()
		countdown = fmt.Sprintf("<t:%d:R> (<t:%d:t>)", ts, ts)
		if days := remainingDays(g.PromoEnd, now); days > 0 {
			freeLine = fmt.Sprintf("**FREE for %d days!**", days)
		}
	}

	desc := fmt.Sprintf(
		"%s (%s)\n\nOriginal Price: ~~%s~~ → **FREE**\n\n**[Claim Now](%s)**",
		freeLine, countdown, g.OriginalPrice, g.URL,
	)

	e := embed{
		Title:       fmt.Sprintf("%s (%s)", g.Title, kind.Label()),
		Description: desc,
		Color:       embedColor,
		Footer:      embedFooter{Text: footerText},
		Timestamp:   now.UTC().Format(time.RFC3339),
	}
	if g.ImageURL != "" {
		e.Image = &embedImage{URL: g.ImageURL}
	}
	return e
}

func remainingDays(end, now time.Time) int {
	d := end.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}
