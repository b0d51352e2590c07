// Package scheduler turns game snapshots and registered alerts into delayed
// turn notifications, fired exactly once per turn activation.
package scheduler

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/miou/go/internal/gamestate"
	"github.com/mcdev12/miou/go/internal/models"
)

// AlertReader is the read side of the alert store.
type AlertReader interface {
	ListAll() []models.Alert
}

// Dispatcher takes fired events. Dispatch must not block.
type Dispatcher interface {
	Dispatch(ev FireEvent)
}

// tracked is the scheduler's working state for one subscription. A nil
// pending timer is Idle, a non-nil one is Waiting.
type tracked struct {
	alert    models.Alert
	lastTurn bool
	pending  *armedTimer
}

// Scheduler owns the per-subscription turn state and timers. It reads alerts
// but never changes them.
type Scheduler struct {
	store      AlertReader
	dispatcher Dispatcher
	clock      clockwork.Clock
	instanceID string

	mu         sync.Mutex
	tracked    map[models.AlertKey]*tracked
	generation uint64
	stopped    bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the real clock, for tests.
func WithClock(c clockwork.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

func New(store AlertReader, dispatcher Dispatcher, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:      store,
		dispatcher: dispatcher,
		clock:      clockwork.NewRealClock(),
		instanceID: uuid.New().String()[:8],
		tracked:    make(map[models.AlertKey]*tracked),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleSnapshot reconciles every registered alert against snap. Snapshots
// must be passed in the order they were taken.
func (s *Scheduler) HandleSnapshot(ctx context.Context, snap gamestate.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	alerts := s.store.ListAll()
	active := make(map[models.AlertKey]struct{}, len(alerts))

	for _, a := range alerts {
		key := a.Key()
		active[key] = struct{}{}

		if snap.IsUnknown(a.GameID) {
			continue
		}

		game, ok := snap.Game(a.GameID)
		if !ok {
			s.drop(key, "game no longer listed")
			continue
		}

		tr := s.tracked[key]
		if tr == nil || tr.alert.PlayerName != a.PlayerName || tr.alert.Delay != a.Delay {
			if tr != nil {
				s.cancel(tr)
			}
			tr = &tracked{}
			s.tracked[key] = tr
		}
		tr.alert = a

		player, found := game.FindPlayer(a.PlayerName)
		if !found {
			log.Debug().
				Str("room_id", a.RoomID).
				Str("game_id", a.GameID).
				Str("player", a.PlayerName).
				Msg("player not found in game, treating as idle")
		}
		turn := found && player.Turn

		switch {
		case turn && !tr.lastTurn:
			s.arm(tr, PendingTimer{
				Key:         key,
				Player:      a.PlayerName,
				PlayerURL:   player.URL,
				ActivatedAt: snap.TakenAt,
				FireAt:      snap.TakenAt.Add(a.Delay),
			})
		case !turn && tr.pending != nil:
			log.Debug().
				Str("room_id", a.RoomID).
				Str("game_id", a.GameID).
				Str("player", a.PlayerName).
				Msg("turn ended before alert delay, cancelling")
			s.cancel(tr)
		}
		tr.lastTurn = turn
	}

	for key := range s.tracked {
		if _, ok := active[key]; !ok {
			s.drop(key, "alert no longer registered")
		}
	}
}

// Forget cancels any timer of the subscription and drops its state. The next
// snapshot starts it from Idle.
func (s *Scheduler) Forget(key models.AlertKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drop(key, "alert changed")
}

// Pending returns the armed timers ordered by fire time.
func (s *Scheduler) Pending() []PendingTimer {
	s.mu.Lock()
	out := make([]PendingTimer, 0, len(s.tracked))
	for _, tr := range s.tracked {
		if tr.pending != nil {
			out = append(out, tr.pending.PendingTimer)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].FireAt.Before(out[j].FireAt)
		}
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}

// Tracked returns the number of subscriptions with turn state.
func (s *Scheduler) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tracked)
}

// Stop cancels every timer. Later snapshots are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, tr := range s.tracked {
		s.cancel(tr)
		delete(s.tracked, key)
	}
	s.stopped = true
	log.Info().Str("instance", s.instanceID).Msg("scheduler stopped")
}

// drop cancels and forgets a subscription. Caller holds s.mu.
func (s *Scheduler) drop(key models.AlertKey, reason string) {
	tr, ok := s.tracked[key]
	if !ok {
		return
	}
	if tr.pending != nil {
		log.Debug().
			Str("room_id", key.RoomID).
			Str("game_id", key.GameID).
			Str("reason", reason).
			Msg("cancelled pending alert")
	}
	s.cancel(tr)
	delete(s.tracked, key)
}

func (s *Scheduler) fire(at *armedTimer) {
	s.mu.Lock()
	tr := s.tracked[at.Key]
	if tr == nil || tr.pending == nil || tr.pending.generation != at.generation {
		s.mu.Unlock()
		log.Debug().Str("room_id", at.Key.RoomID).Str("game_id", at.Key.GameID).Msg("stale timer, not firing")
		return
	}
	tr.pending = nil
	ev := FireEvent{
		ID:          uuid.New(),
		Alert:       tr.alert,
		PlayerURL:   at.PlayerURL,
		ActivatedAt: at.ActivatedAt,
		FiredAt:     s.clock.Now(),
	}
	s.mu.Unlock()

	log.Info().
		Str("event_id", ev.ID.String()).
		Str("room_id", ev.Alert.RoomID).
		Str("game_id", ev.Alert.GameID).
		Str("player", ev.Alert.PlayerName).
		Str("instance", s.instanceID).
		Dur("waited", ev.FiredAt.Sub(ev.ActivatedAt)).
		Msg("alert fired")

	s.dispatcher.Dispatch(ev)
}
