// Package scheduler runs named periodic tasks on independent intervals from a
// single Start/Stop lifecycle.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type task struct {
	name     string
	interval time.Duration
	run      func(context.Context)
}

type Scheduler struct {
	tasks []task

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New() *Scheduler {
	return &Scheduler{}
}

// Add registers a task. Tasks cannot be added while the scheduler is running.
func (s *Scheduler) Add(name string, interval time.Duration, run func(context.Context)) error {
	if interval <= 0 {
		return errors.New("interval must be > 0")
	}
	if run == nil {
		return errors.New("run must not be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return errors.New("scheduler already running")
	}
	s.tasks = append(s.tasks, task{name: name, interval: interval, run: run})
	return nil
}

// Start launches one ticker goroutine per task, each ticking immediately
// once. Returns false if already running.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running.Store(true)

	for _, t := range s.tasks {
		s.wg.Add(1)
		go func(t task) {
			defer s.wg.Done()

			ticker := time.NewTicker(t.interval)
			defer ticker.Stop()

			slog.Info("scheduler task started", "task", t.name, "interval", t.interval.String())

			s.safeRun(ctx, t)

			for {
				select {
				case <-ctx.Done():
					slog.Info("scheduler task stopping", "task", t.name)
					return
				case <-ticker.C:
					s.safeRun(ctx, t)
				}
			}
		}(t)
	}

	return true
}

// Stop cancels the task contexts and waits for every task goroutine to exit.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	s.wg.Wait()
	s.running.Store(false)

	slog.Info("scheduler stopped")
	return true
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

func (s *Scheduler) safeRun(ctx context.Context, t task) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduler task panic recovered", "task", t.name, "panic", r)
		}
	}()

	t.run(ctx)
}
