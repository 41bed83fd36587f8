// Package schedule runs the periodic credential renewal timer.
//
// A [Scheduler] owns at most one repeating ticker. Starting an already
// running scheduler is a logged no-op, so the launch check and an explicit
// login can both ask for renewal without doubling the tick rate.
package schedule

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultPeriod is the fixed renewal cadence. It is deliberately not
// derived from the token expiry.
const DefaultPeriod = 15 * time.Minute

// DefaultTickTimeout bounds a single callback invocation.
const DefaultTickTimeout = time.Minute

// Ticker is the subset of [time.Ticker] the scheduler needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// NewStdTicker is the production [TickerFactory].
func NewStdTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

// Options tunes a [Scheduler].
type Options struct {
	Period      time.Duration
	TickTimeout time.Duration
	Logger      *zap.Logger
	NewTicker   TickerFactory
}

// Scheduler invokes a callback on a fixed period.
//
// Invariant: running is true exactly when handle is non-zero.
type Scheduler struct {
	mu      sync.Mutex
	running bool
	handle  uint64
	seq     uint64
	cancel  context.CancelFunc

	period      time.Duration
	tickTimeout time.Duration
	logger      *zap.Logger
	newTicker   TickerFactory
}

// New creates a stopped scheduler.
func New(opts Options) *Scheduler {
	if opts.Period <= 0 {
		opts.Period = DefaultPeriod
	}
	if opts.TickTimeout <= 0 {
		opts.TickTimeout = DefaultTickTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.NewTicker == nil {
		opts.NewTicker = NewStdTicker
	}
	return &Scheduler{
		period:      opts.Period,
		tickTimeout: opts.TickTimeout,
		logger:      opts.Logger,
		newTicker:   opts.NewTicker,
	}
}

// Start begins invoking fn every period. It returns false, without
// touching the running timer, when one is already active.
func (s *Scheduler) Start(fn func(ctx context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Debug("refresh schedule already running", zap.Uint64("handle", s.handle))
		return false
	}

	s.seq++
	handle := s.seq
	ctx, cancel := context.WithCancel(context.Background())
	ticker := s.newTicker(s.period)

	s.running = true
	s.handle = handle
	s.cancel = cancel

	go s.loop(ctx, handle, ticker, fn)

	s.logger.Debug("refresh schedule started",
		zap.Uint64("handle", handle),
		zap.Duration("period", s.period),
	)
	return true
}

// Stop cancels future ticks. A callback already in flight is not
// interrupted. Stop on a stopped scheduler does nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cancel()
	s.logger.Debug("refresh schedule stopped", zap.Uint64("handle", s.handle))

	s.running = false
	s.handle = 0
	s.cancel = nil
}

// Running reports whether a timer is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Handle identifies the active timer, or 0 when stopped.
func (s *Scheduler) Handle() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Period returns the configured tick period.
func (s *Scheduler) Period() time.Duration { return s.period }

func (s *Scheduler) loop(ctx context.Context, handle uint64, ticker Ticker, fn func(context.Context)) {
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if ctx.Err() != nil {
				return
			}
			s.invoke(ctx, handle, fn)
		}
	}
}

func (s *Scheduler) invoke(ctx context.Context, handle uint64, fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("refresh callback panicked",
				zap.Uint64("handle", handle),
				zap.Any("panic", r),
			)
		}
	}()

	// Stop must not abort a renewal that is already talking to the server.
	tickCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.tickTimeout)
	defer cancel()
	fn(tickCtx)
}
