// Package scheduler drives the recurring campaign sweep on a fixed
// interval.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// TickFunc runs one sweep. The context is cancelled when the scheduler
// stops.
type TickFunc func(context.Context)

type Scheduler struct {
	interval time.Duration
	tick     TickFunc

	running  atomic.Bool
	lastTick atomic.Int64 // unix nanos of the last completed tick

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Status is the scheduler's externally visible state.
type Status struct {
	Running  bool       `json:"running"`
	Interval string     `json:"interval"`
	LastTick *time.Time `json:"last_tick,omitempty"`
}

func New(interval time.Duration, tick TickFunc) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if tick == nil {
		return nil, errors.New("tick must not be nil")
	}
	return &Scheduler{
		interval: interval,
		tick:     tick,
		done:     make(chan struct{}),
	}, nil
}

// Start launches the sweep loop. The first sweep runs immediately; later
// ones follow the interval. Returns false if already running.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		slog.Info("sweep scheduler started", "interval", s.interval.String())

		s.safeTick(ctx)

		for {
			select {
			case <-ctx.Done():
				slog.Info("sweep scheduler stopping")
				return
			case <-ticker.C:
				s.safeTick(ctx)
			}
		}
	}()

	return true
}

// Stop cancels the loop and waits for an in-flight sweep to return.
// Returns false if not running.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.done
	s.running.Store(false)

	slog.Info("sweep scheduler stopped")
	return true
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

func (s *Scheduler) Status() Status {
	st := Status{
		Running:  s.running.Load(),
		Interval: s.interval.String(),
	}
	if n := s.lastTick.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTick = &t
	}
	return st
}

// safeTick shields the loop from a panicking sweep so one bad cycle never
// kills the driver.
func (s *Scheduler) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("sweep tick panic recovered", "panic", r)
		}
	}()

	start := time.Now()
	s.tick(ctx)
	s.lastTick.Store(time.Now().UnixNano())
	slog.Info("sweep tick completed", "duration_ms", time.Since(start).Milliseconds())
}
