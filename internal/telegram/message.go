package telegram

import (
	"fmt"
	"time"

	"freebot/internal/catalog"
	"freebot/internal/notify"
	"freebot/pkg/tgui"
)

// announceText renders the HTML body of one free-game announcement.
func announceText(g catalog.Game, kind notify.Kind, now time.Time) string {
	header := "🎮 New Free Game!"
	if kind == notify.KindUpdated {
		header = "🎮 Updated Expiration"
	}

	lines := []tgui.H{
		tgui.B(header),
		tgui.B(g.Title),
		tgui.JoinH(" ", tgui.S(g.OriginalPrice), tgui.H("&#8594;"), tgui.B("FREE")),
		tgui.Esc("Free until: " + untilPhrase(g.PromoEnd, now)),
	}
	if g.URL != "" {
		lines = append(lines, tgui.Link("Claim Now", g.URL))
	}
	return tgui.JoinH("\n", lines...).String()
}

// untilPhrase renders a promotion end for humans. The zero time means
// the storefront did not expose an end date.
func untilPhrase(end time.Time, now time.Time) string {
	if end.IsZero() {
		return "Unknown"
	}
	s := end.UTC().Format("Mon, Jan 2 15:04 UTC")
	left := end.Sub(now)
	switch {
	case left <= 0:
	case left < 24*time.Hour:
		s += fmt.Sprintf(" (%dh left)", int(left.Hours()))
	default:
		s += fmt.Sprintf(" (%dd left)", int(left.Hours()/24))
	}
	return s
}
