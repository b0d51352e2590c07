// Package polling drives the periodic fetch of game state from the
// Terraforming Mars server.
package polling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/miou/go/internal/gamestate"
)

// State is the loop's position in its error-handling state machine.
type State int

const (
	// StateActive polls on every tick.
	StateActive State = iota
	// StateCoolingDown skips ticks until the cool-down window has elapsed.
	StateCoolingDown
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCoolingDown:
		return "cooling_down"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds the loop timings.
type Config struct {
	Interval time.Duration
	Cooldown time.Duration
	Timeout  time.Duration
}

// Stats are cumulative counters exposed on the status endpoint.
type Stats struct {
	Polls          int64     `json:"polls"`
	Failures       int64     `json:"failures"`
	HardStops      int64     `json:"hard_stops"`
	Skipped        int64     `json:"skipped"`
	Suppressed     int64     `json:"suppressed"`
	LastSuccess    time.Time `json:"last_success"`
	SuspendedUntil time.Time `json:"suspended_until,omitempty"`
	State          string    `json:"state"`
}

// Handler receives every successful snapshot, in fetch order.
type Handler func(ctx context.Context, snap gamestate.Snapshot)

// Loop polls a gamestate.Source on a fixed interval. At most one fetch is in
// flight at any time.
type Loop struct {
	source  gamestate.Source
	cfg     Config
	handler Handler
	clock   clockwork.Clock

	mu             sync.Mutex
	state          State
	suspendedUntil time.Time
	inFlight       bool
	stats          Stats

	wg sync.WaitGroup
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock replaces the real clock, for tests.
func WithClock(c clockwork.Clock) Option {
	return func(l *Loop) { l.clock = c }
}

func New(source gamestate.Source, cfg Config, handler Handler, opts ...Option) *Loop {
	l := &Loop{
		source:  source,
		cfg:     cfg,
		handler: handler,
		clock:   clockwork.NewRealClock(),
		state:   StateActive,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// PollOnce performs one bounded fetch. Errors are classified as hard-stop or
// transient; the loop state is not changed.
func (l *Loop) PollOnce(ctx context.Context) (gamestate.Snapshot, error) {
	if l.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.Timeout)
		defer cancel()
	}

	snap, err := l.source.FetchGames(ctx)
	if err != nil {
		if gamestate.IsHardStop(err) {
			return gamestate.Snapshot{}, err
		}
		return gamestate.Snapshot{}, gamestate.Transient("fetch games", err)
	}
	return snap, nil
}

// Run polls immediately and then on every interval until ctx is cancelled.
// It waits for an in-flight fetch to finish before returning.
func (l *Loop) Run(ctx context.Context) error {
	if l.cfg.Interval <= 0 {
		return errors.New("polling interval must be positive")
	}

	log.Info().
		Dur("interval", l.cfg.Interval).
		Dur("cooldown", l.cfg.Cooldown).
		Dur("timeout", l.cfg.Timeout).
		Msg("polling loop started")

	ticker := l.clock.NewTicker(l.cfg.Interval)
	defer ticker.Stop()
	defer l.wg.Wait()

	l.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("polling loop shutdown requested")
			return nil
		case <-ticker.Chan():
			l.tick(ctx)
		}
	}
}

// State returns the current loop state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Stats returns a copy of the loop counters.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.stats
	s.State = l.state.String()
	if l.state == StateCoolingDown {
		s.SuspendedUntil = l.suspendedUntil
	}
	return s
}

// tick starts a fetch unless one is already running or the loop is cooling
// down.
func (l *Loop) tick(ctx context.Context) {
	now := l.clock.Now()

	l.mu.Lock()
	if l.inFlight {
		l.stats.Skipped++
		l.mu.Unlock()
		log.Debug().Msg("previous poll still in flight, skipping tick")
		return
	}
	if l.state == StateCoolingDown {
		if now.Before(l.suspendedUntil) {
			l.stats.Suppressed++
			until := l.suspendedUntil
			l.mu.Unlock()
			log.Debug().Time("until", until).Msg("polling suspended, skipping tick")
			return
		}
		l.state = StateActive
		log.Info().Msg("cool-down elapsed, resuming polling")
	}
	l.inFlight = true
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.poll(ctx)
	}()
}

func (l *Loop) poll(ctx context.Context) {
	snap, err := l.PollOnce(ctx)

	// The handler runs before the in-flight flag clears so snapshots are
	// handed over strictly in order.
	if err == nil && l.handler != nil {
		l.handler(ctx, snap)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.inFlight = false
	l.stats.Polls++

	switch {
	case err == nil:
		l.stats.LastSuccess = snap.TakenAt
		log.Debug().
			Int("games", len(snap.Games)).
			Int("unknown", len(snap.Unknown)).
			Msg("poll succeeded")
	case gamestate.IsHardStop(err):
		l.stats.Failures++
		l.stats.HardStops++
		l.state = StateCoolingDown
		l.suspendedUntil = l.clock.Now().Add(l.cfg.Cooldown)
		log.Warn().
			Err(err).
			Time("until", l.suspendedUntil).
			Msg("game server unavailable, suspending polling")
	case ctx.Err() != nil:
		log.Debug().Err(err).Msg("poll aborted by shutdown")
	default:
		l.stats.Failures++
		log.Error().Err(err).Msg("failed to fetch games, retrying on next tick")
	}
}
