package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/miou/go/internal/notify"
)

const workChannelBufferSize = 256

// DispatcherConfig sizes the delivery pool.
type DispatcherConfig struct {
	Workers     int
	SendTimeout time.Duration
}

// SinkDispatcher delivers fire events to a notify.Sink from a pool of
// workers. A slow send only ever holds up its own worker.
type SinkDispatcher struct {
	sink       notify.Sink
	workers    int
	timeout    time.Duration
	instanceID string

	workCh chan FireEvent

	mu       sync.Mutex
	inflight sync.WaitGroup
	closed   bool
	sent     int64
	failed   int64
}

func NewDispatcher(sink notify.Sink, cfg DispatcherConfig) *SinkDispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &SinkDispatcher{
		sink:       sink,
		workers:    cfg.Workers,
		timeout:    cfg.SendTimeout,
		instanceID: uuid.New().String()[:8],
		workCh:     make(chan FireEvent, workChannelBufferSize),
	}
}

// Dispatch queues ev for delivery. When the queue is full the event is
// delivered from its own goroutine rather than dropped. Once Run has
// returned, events are delivered in-line.
func (d *SinkDispatcher) Dispatch(ev FireEvent) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		log.Warn().Str("event_id", ev.ID.String()).Msg("dispatcher stopped, delivering in-line")
		d.deliver(context.Background(), ev, -1)
		return
	}
	select {
	case d.workCh <- ev:
		d.mu.Unlock()
		log.Debug().Str("event_id", ev.ID.String()).Msg("fire event enqueued for delivery")
	default:
		d.inflight.Add(1)
		d.mu.Unlock()
		log.Warn().Str("event_id", ev.ID.String()).Msg("work channel full, delivering out of band")
		go func() {
			defer d.inflight.Done()
			d.deliver(context.Background(), ev, -1)
		}()
	}
}

// Run starts the workers and blocks until ctx is cancelled. Events still
// queued at shutdown are delivered before Run returns.
func (d *SinkDispatcher) Run(ctx context.Context) error {
	log.Info().
		Str("instance", d.instanceID).
		Int("workers", d.workers).
		Msg("notification dispatcher started")

	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go d.worker(ctx, &wg, i)
	}

	<-ctx.Done()
	log.Info().Str("instance", d.instanceID).Msg("shutting down workers")
	wg.Wait()

	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.drain()
	d.inflight.Wait()
	log.Info().Str("instance", d.instanceID).Msg("all workers shut down")
	return nil
}

// Stats returns the number of delivered and failed notifications.
func (d *SinkDispatcher) Stats() (sent, failed int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sent, d.failed
}

func (d *SinkDispatcher) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.workCh:
			d.deliver(context.Background(), ev, workerID)
		}
	}
}

// drain delivers whatever is left in the queue.
func (d *SinkDispatcher) drain() {
	for {
		select {
		case ev := <-d.workCh:
			d.deliver(context.Background(), ev, -1)
		default:
			return
		}
	}
}

func (d *SinkDispatcher) deliver(ctx context.Context, ev FireEvent, workerID int) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	msg := ev.Message()
	err := d.sink.Send(ctx, msg)

	d.mu.Lock()
	if err != nil {
		d.failed++
	} else {
		d.sent++
	}
	d.mu.Unlock()

	if err != nil {
		log.Error().
			Err(notify.AsDeliveryError(msg.RoomID, err)).
			Str("event_id", ev.ID.String()).
			Str("room_id", msg.RoomID).
			Str("game_id", msg.GameID).
			Int("worker_id", workerID).
			Msg("failed to deliver notification")
		return
	}

	log.Info().
		Str("event_id", ev.ID.String()).
		Str("room_id", msg.RoomID).
		Str("game_id", msg.GameID).
		Int("worker_id", workerID).
		Msg("notification delivered")
}
