package kitchen

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"kitchen-sync/internal/logger"
	"kitchen-sync/internal/models"
)

const (
	timerChangedBy = "kitchen-timer"
	fireTimeout    = 15 * time.Second
)

// Scheduler runs delayed one-shot tasks
type Scheduler interface {
	Schedule(name string, delay time.Duration, fn func()) error
	Shutdown(ctx context.Context) error
}

// TimerConfig controls timer-driven progress of kitchen orders
type TimerConfig struct {
	Enabled   bool
	PrepDelay time.Duration
	CookDelay time.Duration
	// CookDelayMax > CookDelay draws each cook delay uniformly from the range.
	CookDelayMax time.Duration
}

type stage string

const (
	stagePrep stage = "prep"
	stageCook stage = "cook"
)

// Timer advances a kitchen order to READY without outside input. Each order
// has at most one pending task; the prep stage arms the cook stage when it fires.
// With no prep delay a single cook task walks the order through PREPARING to READY.
type Timer struct {
	cfg       TimerConfig
	scheduler Scheduler
	repo      Repository
	writer    *statusWriter
	notifier  Notifier
	logger    *logger.Logger
	int64N    func(n int64) int64
}

func newTimer(cfg TimerConfig, scheduler Scheduler, repo Repository, writer *statusWriter, notifier Notifier, log *logger.Logger) *Timer {
	return &Timer{
		cfg:       cfg,
		scheduler: scheduler,
		repo:      repo,
		writer:    writer,
		notifier:  notifier,
		logger:    log,
		int64N:    rand.Int63n,
	}
}

// Arm schedules the first stage for a freshly created order
func (t *Timer) Arm(order *models.KitchenOrder) {
	if !t.cfg.Enabled {
		return
	}
	if t.cfg.PrepDelay > 0 {
		t.schedule(order.ID, stagePrep, t.cfg.PrepDelay)
		return
	}
	t.schedule(order.ID, stageCook, t.cookDelay())
}

func (t *Timer) schedule(id string, st stage, delay time.Duration) {
	fields := map[string]interface{}{
		"kitchen_order_id": id,
		"stage":            string(st),
		"delay_ms":         delay.Milliseconds(),
	}

	name := fmt.Sprintf("kitchen-%s:%s", st, id)
	if err := t.scheduler.Schedule(name, delay, func() { t.fire(id, st) }); err != nil {
		t.logger.Error("timer_schedule_failed", "Failed to schedule kitchen timer", "", err, fields)
		return
	}
	t.logger.Debug("timer_armed", fmt.Sprintf("Kitchen %s timer armed", st), "", fields)
}

func (t *Timer) cookDelay() time.Duration {
	lo, hi := t.cfg.CookDelay, t.cfg.CookDelayMax
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(t.int64N(int64(hi-lo)+1))
}

// fire never panics and never returns an error; every failure is logged and the task ends.
func (t *Timer) fire(id string, st stage) {
	requestID := logger.GenerateRequestID()
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("timer_failed", "Kitchen timer panicked", requestID, fmt.Errorf("panic: %v", r), map[string]interface{}{
				"kitchen_order_id": id,
				"stage":            string(st),
			})
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	order, err := t.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		t.skip(id, st, "order_missing", "", requestID)
		return
	}
	if err != nil {
		t.logger.Error("timer_failed", "Failed to load kitchen order", requestID, err, map[string]interface{}{
			"kitchen_order_id": id,
			"stage":            string(st),
		})
		return
	}
	if order.Status.IsTerminal() {
		t.skip(id, st, "terminal_status", order.Status, requestID)
		return
	}

	switch st {
	case stagePrep:
		if order.Status == models.KitchenNew {
			if order, err = t.advance(ctx, order, models.KitchenPreparing, st, requestID); err != nil {
				return
			}
		}
		if order.Status != models.KitchenPreparing && order.Status != models.KitchenInProgress {
			t.skip(id, st, "already_past_preparation", order.Status, requestID)
			return
		}
		t.schedule(id, stageCook, t.cookDelay())

	case stageCook:
		if order.Status == models.KitchenNew {
			if order, err = t.advance(ctx, order, models.KitchenPreparing, st, requestID); err != nil {
				return
			}
		}
		if order, err = t.advance(ctx, order, models.KitchenReady, st, requestID); err != nil {
			return
		}
		t.notifier.Notify(context.Background(), order.SourceOrderID, order.ID)
	}
}

// advance persists one transition. Rejected or raced transitions are logged and skipped.
func (t *Timer) advance(ctx context.Context, order *models.KitchenOrder, to models.KitchenStatus, st stage, requestID string) (*models.KitchenOrder, error) {
	updated, err := t.writer.write(ctx, order, to, timerChangedBy, requestID)
	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, ErrInvalidTransition):
		t.skip(order.ID, st, "invalid_transition", order.Status, requestID)
	case errors.Is(err, ErrStatusConflict), errors.Is(err, ErrNotFound):
		t.skip(order.ID, st, "status_changed", order.Status, requestID)
	default:
		t.logger.Error("timer_failed", "Failed to persist timer transition", requestID, err, map[string]interface{}{
			"kitchen_order_id": order.ID,
			"stage":            string(st),
			"to":               string(to),
		})
	}
	return nil, err
}

func (t *Timer) skip(id string, st stage, reason string, status models.KitchenStatus, requestID string) {
	t.logger.Info("timer_skipped", "Kitchen timer fired without changing the order", requestID, map[string]interface{}{
		"kitchen_order_id": id,
		"stage":            string(st),
		"reason":           reason,
		"status":           string(status),
	})
}
