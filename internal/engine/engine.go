// Package engine compares fetched free games against announced state and
// drives outbound notifications.
//
// Per (chat, game) pair the cycle classifies the game as New, Updated,
// Unchanged or Removed. A delivery failure never touches stored state, so
// the next cycle retries; it also never stops the pass over the remaining
// games.
package engine

import (
	"context"
	"time"

	"freebot/internal/catalog"
	"freebot/internal/notify"
	"freebot/internal/store"
	logx "freebot/pkg/logx"
)

type Engine struct {
	store  store.Store
	sender notify.Sender
	log    logx.Logger

	now func() time.Time // test hook
}

// Report summarizes one cycle for one chat scope.
type Report struct {
	New       int
	Updated   int
	Unchanged int
	Removed   int
	Failed    int
}

func (r Report) Sent() int { return r.New + r.Updated }

func New(st store.Store, sender notify.Sender, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{store: st, sender: sender, log: log, now: time.Now}
}

// Run performs one full diff-and-notify pass for chatID.
//
// Promotion ends are compared as exact unix-millisecond instants; an
// unknown end (0) differing from a known one counts as a change. Records
// with an unknown end never expire by timestamp, only by vanishing from
// the feed.
func (e *Engine) Run(ctx context.Context, chatID int64, games []catalog.Game) (Report, error) {
	var rep Report
	now := e.now().UTC()
	nowMS := now.UnixMilli()
	log := e.log.With(logx.Int64("chat", chatID))

	current := make(map[string]struct{}, len(games))
	for _, g := range games {
		current[g.ID] = struct{}{}
	}

	for _, g := range games {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		end := g.PromoEndMS()
		rec, known, err := e.store.GetAnnounced(ctx, chatID, g.ID)
		if err != nil {
			// Fail open: worst case is a duplicate notification, which
			// beats silently losing track of the game.
			log.Warn("state read failed; treating as unannounced",
				logx.String("game", g.ID), logx.Err(err))
			known = false
		}

		switch {
		case end != 0 && end <= nowMS:
			// Promotion already over. Never announce; clear stale state.
			if !known {
				continue
			}
			if err := e.store.DeleteAnnounced(ctx, chatID, g.ID); err != nil {
				log.Warn("deleting expired record failed", logx.String("game", g.ID), logx.Err(err))
				continue
			}
			rep.Removed++

		case !known:
			if err := e.sender.Send(ctx, chatID, g, notify.KindNew); err != nil {
				log.Warn("notification failed", logx.String("game", g.ID), logx.Err(err))
				rep.Failed++
				continue
			}
			rec = store.Announced{ChatID: chatID, GameID: g.ID, PromoEndMS: end, AnnouncedAt: now}
			if err := e.store.PutAnnounced(ctx, rec); err != nil {
				log.Warn("recording announcement failed", logx.String("game", g.ID), logx.Err(err))
			}
			rep.New++
			log.Info("announced new free game", logx.String("game", g.ID), logx.String("title", g.Title))

		case rec.PromoEndMS != end:
			if err := e.sender.Send(ctx, chatID, g, notify.KindUpdated); err != nil {
				log.Warn("update notification failed", logx.String("game", g.ID), logx.Err(err))
				rep.Failed++
				continue
			}
			rec.PromoEndMS = end
			if err := e.store.PutAnnounced(ctx, rec); err != nil {
				log.Warn("rewriting announcement failed", logx.String("game", g.ID), logx.Err(err))
			}
			rep.Updated++
			log.Info("announced promotion change", logx.String("game", g.ID))

		default:
			rep.Unchanged++
		}
	}

	// Removal sweep: stored records whose game vanished from the feed or
	// whose stored promotion end has passed. No notification for these.
	recs, err := e.store.ListAnnounced(ctx, chatID)
	if err != nil {
		log.Warn("listing announced state failed; skipping removal sweep", logx.Err(err))
		return rep, nil
	}
	for _, rec := range recs {
		_, present := current[rec.GameID]
		expired := rec.PromoEndMS != 0 && rec.PromoEndMS <= nowMS
		if present && !expired {
			continue
		}
		if err := e.store.DeleteAnnounced(ctx, chatID, rec.GameID); err != nil {
			log.Warn("removing stale record failed", logx.String("game", rec.GameID), logx.Err(err))
			continue
		}
		rep.Removed++
		log.Debug("removed stale record", logx.String("game", rec.GameID), logx.Bool("expired", expired))
	}

	return rep, nil
}
