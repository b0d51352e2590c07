package scheduler

import (
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// armedTimer is the live side of a PendingTimer. generation identifies it:
// a timer goroutine may only fire while its generation is still the one
// recorded for the subscription.
type armedTimer struct {
	PendingTimer
	generation uint64
	timer      clockwork.Timer
	stop       chan struct{}
}

// arm schedules the fire for tr. Caller holds s.mu.
func (s *Scheduler) arm(tr *tracked, pt PendingTimer) {
	s.cancel(tr)

	s.generation++
	at := &armedTimer{
		PendingTimer: pt,
		generation:   s.generation,
		stop:         make(chan struct{}),
	}

	d := pt.FireAt.Sub(s.clock.Now())
	if d < 0 {
		d = 0
	}
	at.timer = s.clock.NewTimer(d)
	tr.pending = at

	go s.wait(at)

	log.Debug().
		Str("room_id", pt.Key.RoomID).
		Str("game_id", pt.Key.GameID).
		Str("player", pt.Player).
		Time("fire_at", pt.FireAt).
		Dur("duration", d).
		Msg("armed alert timer")
}

// cancel stops the pending timer of tr, if any. Caller holds s.mu.
func (s *Scheduler) cancel(tr *tracked) {
	if tr.pending == nil {
		return
	}
	close(tr.pending.stop)
	tr.pending = nil
}

func (s *Scheduler) wait(at *armedTimer) {
	select {
	case <-at.timer.Chan():
		s.fire(at)
	case <-at.stop:
		stopAndDrainTimer(at.timer)
	}
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
