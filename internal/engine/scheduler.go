package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler runs a task at a fixed interval until stopped. A tick that fires
// while the previous run is still active is skipped, never queued.
type Scheduler struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	running atomic.Bool
	runs    atomic.Int64
	skipped atomic.Int64
}

// Start begins invoking fn every interval. The context passed to fn is
// cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrSchedulerRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// Stop may have raced with the tick.
				if ctx.Err() != nil {
					return
				}
				s.fire(ctx, fn)
			}
		}
	}()

	return nil
}

func (s *Scheduler) fire(ctx context.Context, fn func(ctx context.Context)) {
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		return
	}
	s.runs.Add(1)
	go func() {
		defer s.running.Store(false)
		fn(ctx)
	}()
}

// Stop cancels the schedule and waits until no further tick can fire.
// A run already in progress is not waited for.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Active reports whether the schedule is running.
func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// InFlight reports whether a run is currently executing.
func (s *Scheduler) InFlight() bool {
	return s.running.Load()
}

// Runs returns how many times the task was started.
func (s *Scheduler) Runs() int64 {
	return s.runs.Load()
}

// Skipped returns how many ticks were dropped because a run was still active.
func (s *Scheduler) Skipped() int64 {
	return s.skipped.Load()
}
