// Package bot connects the polling loop, the alert store and the scheduler.
package bot

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/miou/go/internal/alerts"
	"github.com/mcdev12/miou/go/internal/gamestate"
	"github.com/mcdev12/miou/go/internal/models"
	"github.com/mcdev12/miou/go/internal/scheduler"
)

// Store is the part of alerts.Store the bot uses.
type Store interface {
	ListAll() []models.Alert
	RemoveGame(ctx context.Context, gameID string) (int, error)
	OnChange(fn func(alerts.Change))
}

// Scheduler is the part of scheduler.Scheduler the bot uses.
type Scheduler interface {
	HandleSnapshot(ctx context.Context, snap gamestate.Snapshot)
	Forget(key models.AlertKey)
}

var _ Scheduler = (*scheduler.Scheduler)(nil)

// Bot keeps the latest snapshot and feeds every new one to the scheduler.
type Bot struct {
	store      Store
	sched      Scheduler
	pruneAfter int

	mu      sync.RWMutex
	latest  gamestate.Snapshot
	hasSnap bool
	misses  map[string]int
}

// New wires the bot. pruneAfter is the number of consecutive snapshots a
// game may be missing before its alerts are removed; zero disables pruning.
func New(store Store, sched Scheduler, pruneAfter int) *Bot {
	b := &Bot{
		store:      store,
		sched:      sched,
		pruneAfter: pruneAfter,
		misses:     make(map[string]int),
	}
	store.OnChange(b.onAlertChange)
	return b
}

// HandleSnapshot is the polling handler.
func (b *Bot) HandleSnapshot(ctx context.Context, snap gamestate.Snapshot) {
	b.mu.Lock()
	b.latest = snap
	b.hasSnap = true
	b.mu.Unlock()

	b.sched.HandleSnapshot(ctx, snap)
	b.prune(ctx, snap)
}

// Game returns a game from the latest snapshot.
func (b *Bot) Game(id string) (models.Game, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.hasSnap {
		return models.Game{}, false
	}
	return b.latest.Game(id)
}

// Games returns the games of the latest snapshot ordered by id.
func (b *Bot) Games() []models.Game {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.hasSnap {
		return nil
	}
	return b.latest.SortedGames()
}

// Snapshot returns the latest snapshot, if any poll has succeeded yet.
func (b *Bot) Snapshot() (gamestate.Snapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latest, b.hasSnap
}

// onAlertChange drops scheduler state that no longer matches the alert.
func (b *Bot) onAlertChange(c alerts.Change) {
	switch {
	case c.Type == alerts.ChangeUnregistered:
		b.sched.Forget(c.Key)
	case c.Previous != nil && c.Current != nil &&
		(c.Previous.PlayerName != c.Current.PlayerName || c.Previous.Delay != c.Current.Delay):
		b.sched.Forget(c.Key)
	}
}

// prune removes the alerts of games the server stopped listing.
func (b *Bot) prune(ctx context.Context, snap gamestate.Snapshot) {
	if b.pruneAfter <= 0 {
		return
	}

	referenced := make(map[string]struct{})
	for _, a := range b.store.ListAll() {
		referenced[a.GameID] = struct{}{}
	}

	var expired []string
	b.mu.Lock()
	for gameID := range b.misses {
		if _, ok := referenced[gameID]; !ok {
			delete(b.misses, gameID)
		}
	}
	for gameID := range referenced {
		if snap.Listed(gameID) {
			delete(b.misses, gameID)
			continue
		}
		b.misses[gameID]++
		if b.misses[gameID] >= b.pruneAfter {
			expired = append(expired, gameID)
			delete(b.misses, gameID)
		}
	}
	b.mu.Unlock()

	for _, gameID := range expired {
		n, err := b.store.RemoveGame(ctx, gameID)
		if err != nil {
			log.Error().Err(err).Str("game_id", gameID).Msg("failed to remove alerts of finished game")
			continue
		}
		log.Info().Str("game_id", gameID).Int("alerts", n).Msg("pruned alerts of finished game")
	}
}
