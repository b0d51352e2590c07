package polling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/miou/go/internal/gamestate"
)

// scriptedSource returns the queued results in order, then empty snapshots.
type scriptedSource struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	results []error
	calls   int
	started chan struct{}
	release chan struct{}
}

func (s *scriptedSource) FetchGames(ctx context.Context) (gamestate.Snapshot, error) {
	s.mu.Lock()
	s.calls++
	var err error
	if len(s.results) > 0 {
		err = s.results[0]
		s.results = s.results[1:]
	}
	started, release := s.started, s.release
	s.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}
	if err != nil {
		return gamestate.Snapshot{}, err
	}
	return gamestate.NewSnapshot(s.clock.Now()), nil
}

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestLoop(src *scriptedSource, handler Handler) (*Loop, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC))
	src.clock = clock
	cfg := Config{Interval: 2 * time.Minute, Cooldown: 2 * time.Minute, Timeout: time.Second}
	return New(src, cfg, handler, WithClock(clock)), clock
}

// tickAndWait runs one tick and waits for the fetch it started, if any.
func tickAndWait(ctx context.Context, l *Loop) {
	l.tick(ctx)
	l.wg.Wait()
}

func TestPollOnce_ClassifiesErrors(t *testing.T) {
	ctx := context.Background()

	src := &scriptedSource{results: []error{
		&gamestate.HardStopError{Status: 503},
		errors.New("connection refused"),
	}}
	l, _ := newTestLoop(src, nil)

	_, err := l.PollOnce(ctx)
	assert.Equal(t, gamestate.ClassHardStop, gamestate.Classify(err))

	_, err = l.PollOnce(ctx)
	var te *gamestate.TransientError
	assert.ErrorAs(t, err, &te)

	snap, err := l.PollOnce(ctx)
	require.NoError(t, err)
	assert.NotNil(t, snap.Games)
}

func TestTick_HandsSnapshotToHandler(t *testing.T) {
	ctx := context.Background()
	var got []gamestate.Snapshot
	src := &scriptedSource{}
	l, clock := newTestLoop(src, func(ctx context.Context, snap gamestate.Snapshot) {
		got = append(got, snap)
	})

	tickAndWait(ctx, l)
	clock.Advance(2 * time.Minute)
	tickAndWait(ctx, l)

	require.Len(t, got, 2)
	assert.True(t, got[0].TakenAt.Before(got[1].TakenAt))
	assert.Equal(t, int64(2), l.Stats().Polls)
	assert.Equal(t, clock.Now(), l.Stats().LastSuccess)
}

func TestTick_HardStopSuppressesPollingUntilCooldownElapses(t *testing.T) {
	ctx := context.Background()
	src := &scriptedSource{results: []error{&gamestate.HardStopError{Status: 503}}}
	handled := 0
	l, clock := newTestLoop(src, func(ctx context.Context, snap gamestate.Snapshot) { handled++ })

	tickAndWait(ctx, l)
	assert.Equal(t, 1, src.Calls())
	assert.Equal(t, StateCoolingDown, l.State())
	assert.Equal(t, 0, handled)

	clock.Advance(time.Minute)
	tickAndWait(ctx, l)
	clock.Advance(59 * time.Second)
	tickAndWait(ctx, l)
	assert.Equal(t, 1, src.Calls(), "no fetch during the cool-down window")
	assert.Equal(t, int64(2), l.Stats().Suppressed)

	clock.Advance(time.Second)
	tickAndWait(ctx, l)
	assert.Equal(t, 2, src.Calls())
	assert.Equal(t, StateActive, l.State())
	assert.Equal(t, 1, handled)

	stats := l.Stats()
	assert.Equal(t, int64(1), stats.HardStops)
	assert.Equal(t, int64(1), stats.Failures)
}

func TestTick_TransientErrorRetriesOnNextTick(t *testing.T) {
	ctx := context.Background()
	src := &scriptedSource{results: []error{errors.New("timeout"), errors.New("bad payload")}}
	l, clock := newTestLoop(src, nil)

	tickAndWait(ctx, l)
	assert.Equal(t, StateActive, l.State())

	clock.Advance(2 * time.Minute)
	tickAndWait(ctx, l)
	clock.Advance(2 * time.Minute)
	tickAndWait(ctx, l)

	assert.Equal(t, 3, src.Calls())
	stats := l.Stats()
	assert.Equal(t, int64(2), stats.Failures)
	assert.Equal(t, int64(0), stats.HardStops)
	assert.Equal(t, "active", stats.State)
}

func TestTick_SkipsWhileFetchInFlight(t *testing.T) {
	ctx := context.Background()
	src := &scriptedSource{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	l, _ := newTestLoop(src, nil)

	l.tick(ctx)
	<-src.started

	l.tick(ctx)
	l.tick(ctx)
	assert.Equal(t, int64(2), l.Stats().Skipped)

	close(src.release)
	l.wg.Wait()
	assert.Equal(t, 1, src.Calls())

	src.mu.Lock()
	src.started = nil
	src.mu.Unlock()
	tickAndWait(ctx, l)
	assert.Equal(t, 2, src.Calls())
}

func TestRun_PollsImmediatelyAndOnInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	polled := make(chan struct{}, 4)
	src := &scriptedSource{}
	l, clock := newTestLoop(src, func(ctx context.Context, snap gamestate.Snapshot) {
		polled <- struct{}{}
	})

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case <-polled:
	case <-time.After(time.Second):
		t.Fatal("expected an immediate poll")
	}
	require.Eventually(t, func() bool { return l.Stats().Polls == 1 }, time.Second, time.Millisecond)

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(2 * time.Minute)

	select {
	case <-polled:
	case <-time.After(time.Second):
		t.Fatal("expected a poll after one interval")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRun_RejectsNonPositiveInterval(t *testing.T) {
	l := New(&scriptedSource{clock: clockwork.NewRealClock()}, Config{}, nil)
	assert.Error(t, l.Run(context.Background()))
}
