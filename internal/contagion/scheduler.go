package contagion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidCheckPeriod = errors.New("contagion: invalid check period")
	ErrSchedulerClosed    = errors.New("contagion: scheduler closed")
	ErrSchedulerRunning   = errors.New("contagion: scheduler already running")
)

type task struct {
	fn   func(*Engine)
	done chan struct{}
}

// Scheduler is the single loop that owns an Engine. It fires the periodic sweep and runs
// work submitted through Do, one item at a time.
type Scheduler struct {
	engine *Engine

	// sweepMu is held across the generation check and the sweep itself.
	sweepMu sync.Mutex

	mu     sync.Mutex
	period time.Duration
	armed  bool
	gen    uint64

	tasks   chan task
	wake    chan struct{}
	done    chan struct{}
	running atomic.Bool
	ticks   atomic.Uint64
}

// NewScheduler builds a scheduler that sweeps every period once Run starts.
func NewScheduler(engine *Engine, period time.Duration) (*Scheduler, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCheckPeriod, period)
	}
	return &Scheduler{
		engine: engine,
		period: period,
		armed:  true,
		gen:    1,
		tasks:  make(chan task),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}, nil
}

func (s *Scheduler) Engine() *Engine {
	return s.engine
}

// Period returns the configured sweep period and whether the sweep is armed.
func (s *Scheduler) Period() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.period, s.armed
}

// Ticks returns the number of sweeps run so far.
func (s *Scheduler) Ticks() uint64 {
	return s.ticks.Load()
}

// Done is closed when Run returns.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Restart cancels the active recurring sweep and arms a new one with period. The loop sweeps
// once as soon as it picks up the new period, then every period.
func (s *Scheduler) Restart(period time.Duration) error {
	if period <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidCheckPeriod, period)
	}
	s.mu.Lock()
	s.period = period
	s.armed = true
	s.gen++
	s.mu.Unlock()
	s.notify()
	log.Info().Dur("period", period).Msg("contagion.Scheduler.Restart")
	return nil
}

// Stop disarms the recurring sweep. A sweep in flight finishes before Stop returns and no
// sweep starts afterwards; Do keeps working. Stop must not be called from an event handler
// running inside a sweep.
func (s *Scheduler) Stop() {
	s.sweepMu.Lock()
	s.mu.Lock()
	s.armed = false
	s.gen++
	s.mu.Unlock()
	s.sweepMu.Unlock()
	s.notify()
	log.Info().Msg("contagion.Scheduler.Stop")
}

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// current returns the generation and period to arm, or ok=false when disarmed.
func (s *Scheduler) current() (gen uint64, period time.Duration, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen, s.period, s.armed
}

// Do runs fn on the scheduler goroutine and waits for it to return. If ctx ends after fn
// was handed over, fn still runs.
func (s *Scheduler) Do(ctx context.Context, fn func(*Engine)) error {
	t := task{fn: fn, done: make(chan struct{})}
	select {
	case s.tasks <- t:
	case <-s.done:
		return ErrSchedulerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run blocks until ctx is done, sweeping on every tick and executing submitted work.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrSchedulerRunning
	}
	defer close(s.done)

	var (
		ticker   *time.Ticker
		tickC    <-chan time.Time
		armedGen uint64
	)
	disarm := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			tickC = nil
		}
	}
	// rearm sweeps right away when it arms a new generation
	rearm := func() {
		disarm()
		gen, period, ok := s.current()
		fresh := gen != armedGen
		armedGen = gen
		if !ok {
			return
		}
		ticker = time.NewTicker(period)
		tickC = ticker.C
		if fresh {
			s.sweep(ctx, gen)
		}
	}
	defer disarm()

	rearm()
	for {
		select {
		case <-ctx.Done():
			log.Info().Uint64("ticks", s.ticks.Load()).Msg("contagion.Scheduler.Run shutdown")
			return nil
		case <-s.wake:
			rearm()
		case t := <-s.tasks:
			s.runTask(t)
		case <-tickC:
			// a Restart or Stop may not have been picked up yet
			if !s.sweep(ctx, armedGen) {
				rearm()
			}
		}
	}
}

// sweep runs one pass if gen is still the armed generation.
func (s *Scheduler) sweep(ctx context.Context, gen uint64) bool {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()
	if cur, _, ok := s.current(); !ok || cur != gen {
		return false
	}
	report := s.engine.Sweep(ctx)
	n := s.ticks.Add(1)
	log.Trace().
		Uint64("tick", n).
		Int("checked", report.InfectedChecked).
		Int("expired", report.Expired).
		Int("spread", report.Spread).
		Int("protection_expired", report.ProtectionExpired).
		Dur("took", report.Duration).
		Msg("contagion.Scheduler.sweep")
	return true
}

func (s *Scheduler) runTask(t task) {
	defer close(t.done)
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("contagion.Scheduler.runTask recovered")
		}
	}()
	t.fn(s.engine)
}
