package kitchen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"kitchen-sync/internal/logger"
	"kitchen-sync/internal/models"
)

const (
	apiChangedBy     = "kitchen-api"
	maxWriteAttempts = 3
)

// EventPublisher receives every persisted kitchen status change
type EventPublisher interface {
	PublishStatusEvent(ctx context.Context, msg *models.KitchenStatusMessage) error
}

// Outcome of an UpdateStatus call
type Outcome string

const (
	OutcomeUpdated  Outcome = "updated"
	OutcomeNoop     Outcome = "noop"
	OutcomeNotFound Outcome = "not_found"
)

type UpdateResult struct {
	Outcome Outcome              `json:"outcome"`
	Order   *models.KitchenOrder `json:"order,omitempty"`
}

// Service drives kitchen orders through their status machine
type Service struct {
	repo      Repository
	writer    *statusWriter
	timer     *Timer
	scheduler Scheduler
	notifier  Notifier
	logger    *logger.Logger

	// mu guards closed so no callback joins inflight once Shutdown waits on it
	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// NewService wires the service. notifier and events may be nil.
func NewService(repo Repository, scheduler Scheduler, notifier Notifier, events EventPublisher, cfg TimerConfig, log *logger.Logger) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	writer := &statusWriter{repo: repo, events: events, logger: log}
	return &Service{
		repo:      repo,
		writer:    writer,
		timer:     newTimer(cfg, scheduler, repo, writer, notifier, log),
		scheduler: scheduler,
		notifier:  notifier,
		logger:    log,
	}
}

// CreateOrder stores a new order at NEW and arms its timer
func (s *Service) CreateOrder(ctx context.Context, sourceOrderID, itemsJSON string) (*models.KitchenOrder, error) {
	requestID := logger.GenerateRequestID()

	if strings.TrimSpace(sourceOrderID) == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrInvalidRequest)
	}
	items, err := parseItems(itemsJSON)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &models.KitchenOrder{
		ID:            uuid.NewString(),
		SourceOrderID: sourceOrderID,
		Items:         items,
		Status:        models.KitchenNew,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, order, apiChangedBy); err != nil {
		return nil, fmt.Errorf("failed to create kitchen order: %w", err)
	}

	s.logger.Info("kitchen_order_created", "Kitchen order created", requestID, map[string]interface{}{
		"kitchen_order_id": order.ID,
		"order_id":         order.SourceOrderID,
		"item_count":       len(order.Items),
	})
	s.writer.publish(ctx, order, "", apiChangedBy, requestID)

	s.timer.Arm(order)
	return order, nil
}

// UpdateStatus applies an explicit status change. Unknown orders, terminal
// orders and repeats of the current status are no-ops, not errors.
func (s *Service) UpdateStatus(ctx context.Context, id string, status models.KitchenStatus) (UpdateResult, error) {
	requestID := logger.GenerateRequestID()

	for attempt := 1; ; attempt++ {
		order, err := s.repo.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			s.logger.Info("kitchen_status_noop", "Status update for unknown kitchen order", requestID, map[string]interface{}{
				"kitchen_order_id": id,
				"status":           string(status),
			})
			return UpdateResult{Outcome: OutcomeNotFound}, nil
		}
		if err != nil {
			return UpdateResult{}, fmt.Errorf("failed to load kitchen order: %w", err)
		}

		if order.Status.IsTerminal() || order.Status == status {
			s.logger.Debug("kitchen_status_noop", "Status update left kitchen order unchanged", requestID, map[string]interface{}{
				"kitchen_order_id": id,
				"current":          string(order.Status),
				"requested":        string(status),
			})
			return UpdateResult{Outcome: OutcomeNoop, Order: order}, nil
		}

		updated, err := s.writer.write(ctx, order, status, apiChangedBy, requestID)
		if errors.Is(err, ErrStatusConflict) && attempt < maxWriteAttempts {
			continue
		}
		if errors.Is(err, ErrNotFound) {
			return UpdateResult{Outcome: OutcomeNotFound}, nil
		}
		if err != nil {
			return UpdateResult{}, err
		}

		if updated.Status == models.KitchenReady {
			s.notifyAsync(updated)
		}
		return UpdateResult{Outcome: OutcomeUpdated, Order: updated}, nil
	}
}

// Cancel moves an order to CANCELLED. Finished orders yield ErrAlreadyTerminal
// and READY orders yield ErrInvalidTransition.
func (s *Service) Cancel(ctx context.Context, id string) (*models.KitchenOrder, error) {
	requestID := logger.GenerateRequestID()

	for attempt := 1; ; attempt++ {
		order, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if order.Status.IsTerminal() {
			return nil, fmt.Errorf("%w: %s is %s", ErrAlreadyTerminal, id, order.Status)
		}

		updated, err := s.writer.write(ctx, order, models.KitchenCancelled, apiChangedBy, requestID)
		if errors.Is(err, ErrStatusConflict) && attempt < maxWriteAttempts {
			continue
		}
		return updated, err
	}
}

func (s *Service) Get(ctx context.Context, id string) (*models.KitchenOrder, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListBySourceOrder(ctx context.Context, sourceOrderID string) ([]*models.KitchenOrder, error) {
	return s.repo.ListBySourceOrder(ctx, sourceOrderID)
}

func (s *Service) History(ctx context.Context, id string) ([]models.KitchenStatusLogEntry, error) {
	return s.repo.History(ctx, id)
}

// notifyAsync sends the ready callback off the caller's path
func (s *Service) notifyAsync(order *models.KitchenOrder) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Warn("callback_skipped", "Service is shutting down; ready callback not sent", "", map[string]interface{}{
			"kitchen_order_id": order.ID,
			"order_id":         order.SourceOrderID,
		})
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("callback_failed", "Ready callback panicked", "", fmt.Errorf("panic: %v", r), map[string]interface{}{
					"kitchen_order_id": order.ID,
				})
			}
		}()
		s.notifier.Notify(context.Background(), order.SourceOrderID, order.ID)
	}()
}

// Shutdown stops pending timers and waits for in-flight callbacks until ctx is done.
// Failures are logged, never returned.
func (s *Service) Shutdown(ctx context.Context) {
	requestID := logger.GenerateRequestID()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if err := s.shutdownScheduler(ctx); err != nil {
		s.logger.Error("scheduler_shutdown_failed", "Kitchen scheduler did not shut down cleanly", requestID, err, nil)
	}

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("kitchen_shutdown", "Kitchen service stopped", requestID, nil)
	case <-ctx.Done():
		s.logger.Error("kitchen_shutdown", "Gave up waiting for ready callbacks", requestID, ctx.Err(), nil)
	}
}

func (s *Service) shutdownScheduler(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduler shutdown panicked: %v", r)
		}
	}()
	return s.scheduler.Shutdown(ctx)
}

// parseItems decodes [{menuItemName, quantity}]. An empty payload means no items.
func parseItems(itemsJSON string) ([]models.KitchenItem, error) {
	items := []models.KitchenItem{}
	if strings.TrimSpace(itemsJSON) == "" {
		return items, nil
	}
	if err := json.Unmarshal([]byte(itemsJSON), &items); err != nil {
		return nil, fmt.Errorf("%w: items are not valid JSON: %v", ErrInvalidRequest, err)
	}
	for i, item := range items {
		if strings.TrimSpace(item.MenuItemName) == "" {
			return nil, fmt.Errorf("%w: items[%d].menuItemName is required", ErrInvalidRequest, i)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: items[%d].quantity must be positive", ErrInvalidRequest, i)
		}
	}
	if items == nil {
		items = []models.KitchenItem{}
	}
	return items, nil
}

// statusWriter validates, persists and publishes single transitions
type statusWriter struct {
	repo   Repository
	events EventPublisher
	logger *logger.Logger
}

func (w *statusWriter) write(ctx context.Context, order *models.KitchenOrder, to models.KitchenStatus, changedBy, requestID string) (*models.KitchenOrder, error) {
	if !models.IsValidTransition(order.Status, to) {
		return nil, &TransitionError{From: order.Status, To: to}
	}

	updated, err := w.repo.UpdateStatus(ctx, order.ID, order.Status, to, changedBy)
	if err != nil {
		return nil, err
	}

	w.logger.Info("kitchen_status_changed", fmt.Sprintf("Kitchen order moved from %s to %s", order.Status, to), requestID, map[string]interface{}{
		"kitchen_order_id": updated.ID,
		"order_id":         updated.SourceOrderID,
		"from":             string(order.Status),
		"to":               string(to),
		"changed_by":       changedBy,
	})
	w.publish(ctx, updated, order.Status, changedBy, requestID)
	return updated, nil
}

// publish is best effort; a broker failure never undoes a persisted change
func (w *statusWriter) publish(ctx context.Context, order *models.KitchenOrder, from models.KitchenStatus, changedBy, requestID string) {
	if w.events == nil {
		return
	}
	if err := w.events.PublishStatusEvent(ctx, models.NewKitchenStatusMessage(order, from, changedBy)); err != nil {
		w.logger.Error("event_publish_failed", "Failed to publish kitchen status event", requestID, err, map[string]interface{}{
			"kitchen_order_id": order.ID,
			"status":           string(order.Status),
		})
	}
}
