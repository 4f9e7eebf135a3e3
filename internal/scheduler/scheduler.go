package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"kitchen-sync/internal/logger"
)

// ErrShutdown is returned by Schedule once Shutdown has been called
var ErrShutdown = errors.New("scheduler is shut down")

// Scheduler runs delayed one-shot tasks. It is owned by the process and
// passed to whatever needs delayed execution.
type Scheduler struct {
	mu     sync.Mutex
	timers map[uint64]*time.Timer
	nextID uint64
	closed bool
	wg     sync.WaitGroup
	logger *logger.Logger
}

// New creates a new scheduler
func New(log *logger.Logger) *Scheduler {
	return &Scheduler{
		timers: make(map[uint64]*time.Timer),
		logger: log,
	}
}

// Schedule runs fn once after delay. A panic in fn is recovered and logged.
func (s *Scheduler) Schedule(name string, delay time.Duration, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrShutdown
	}

	id := s.nextID
	s.nextID++
	s.wg.Add(1)
	s.timers[id] = time.AfterFunc(delay, func() {
		defer s.wg.Done()

		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()

		s.run(name, fn)
	})
	return nil
}

func (s *Scheduler) run(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled_task_panic", "Scheduled task panicked", "", fmt.Errorf("panic: %v", r), map[string]interface{}{
				"task": name,
			})
		}
	}()
	fn()
}

// Pending returns the number of tasks that have not started yet
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Shutdown drops pending tasks and waits for running ones until ctx is done.
// It is safe to call more than once.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	dropped := 0
	for id, t := range s.timers {
		if t.Stop() {
			s.wg.Done()
			dropped++
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()

	if dropped > 0 {
		s.logger.Info("scheduler_shutdown", "Dropped pending scheduled tasks", "", map[string]interface{}{
			"dropped": dropped,
		})
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running tasks: %w", ctx.Err())
	}
}
