package notify

import (
	"context"
	"errors"

	"freebot/internal/catalog"
)

// ErrDelivery marks a failed outbound send. The engine treats it as
// per-item: the item's state stays untouched and is retried next cycle.
var ErrDelivery = errors.New("notification delivery failed")

// Kind says why a notification is being sent.
type Kind int

const (
	KindNew Kind = iota
	KindUpdated
)

// Label is the human-readable status suffix used in notification titles.
func (k Kind) Label() string {
	if k == KindUpdated {
		return "Updated Expiration"
	}
	return "New"
}

// Sender delivers one game notification to one chat scope.
// Implementations: Webhook (chatID ignored, single global destination)
// and the Telegram notifier.
type Sender interface {
	Send(ctx context.Context, chatID int64, game catalog.Game, kind Kind) error
}
