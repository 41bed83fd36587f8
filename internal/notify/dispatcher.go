package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Config controls how session notifications are queued for the
// presentation layer.
type Config struct {
	Enabled bool
	// BufferSize is the number of notifications held while the sink is
	// busy.
	BufferSize int
	// DropIfFull makes Emit evict the oldest pending notification instead
	// of waiting for room. A user only acts on the latest session prompt.
	DropIfFull bool
}

// Dispatcher hands notifications to a Sink on its own goroutine so the
// session manager never waits on the UI. A nil *Dispatcher accepts and
// discards everything.
type Dispatcher struct {
	cfg   Config
	sink  Sink
	clock func() time.Time

	pending chan Event
	stop    chan struct{}
	worker  sync.WaitGroup

	evicted  atomic.Uint64
	shut     atomic.Bool
	stopOnce sync.Once
}

// NewDispatcher starts delivery to sink. It returns nil when cfg is
// disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:     cfg,
		sink:    sink,
		clock:   time.Now,
		pending: make(chan Event, cfg.BufferSize),
		stop:    make(chan struct{}),
	}
	d.worker.Add(1)
	go d.deliver()
	return d
}

func (d *Dispatcher) deliver() {
	defer d.worker.Done()

	for {
		select {
		case n := <-d.pending:
			d.sink.Emit(context.Background(), n)
		case <-d.stop:
			d.flush()
			return
		}
	}
}

// flush hands whatever is still pending to the sink.
func (d *Dispatcher) flush() {
	for {
		select {
		case n := <-d.pending:
			d.sink.Emit(context.Background(), n)
		default:
			return
		}
	}
}

// Emit queues n for the sink, stamping an ID and time when missing.
// Without DropIfFull it waits for room until ctx is done.
func (d *Dispatcher) Emit(ctx context.Context, n Event) {
	if d == nil || d.shut.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = d.clock().UTC()
	}

	if d.cfg.DropIfFull {
		d.replaceOldest(n)
		return
	}

	select {
	case d.pending <- n:
	case <-ctx.Done():
	case <-d.stop:
	}
}

// replaceOldest queues n, evicting pending notifications until it fits.
// Concurrent emitters can refill the slot, so it gives up after a few
// rounds and counts n itself as lost.
func (d *Dispatcher) replaceOldest(n Event) {
	for i := 0; i < 3; i++ {
		select {
		case d.pending <- n:
			return
		case <-d.stop:
			return
		default:
		}
		select {
		case <-d.pending:
			d.evicted.Add(1)
		default:
		}
	}
	d.evicted.Add(1)
}

// Close delivers pending notifications and stops the worker. Later Emit
// calls are ignored.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.shut.Store(true)
		close(d.stop)
		d.worker.Wait()
	})
}

// Dropped reports how many notifications never reached the sink.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.evicted.Load()
}
