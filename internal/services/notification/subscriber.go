package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"kitchen-sync/internal/logger"
	"kitchen-sync/internal/messaging"
	"kitchen-sync/internal/models"
)

// Source delivers raw kitchen status events
type Source interface {
	StartConsuming(ctx context.Context, handler messaging.MessageHandler) error
	Close() error
}

// Subscriber prints kitchen status events for staff
type Subscriber struct {
	source Source
	out    io.Writer
	logger *logger.Logger
}

// NewSubscriber creates a subscriber writing to stdout
func NewSubscriber(source Source, log *logger.Logger) *Subscriber {
	return &Subscriber{
		source: source,
		out:    os.Stdout,
		logger: log,
	}
}

// Run consumes until ctx is cancelled
func (s *Subscriber) Run(ctx context.Context) error {
	requestID := logger.GenerateRequestID()
	s.logger.Info("service_started", "Notification subscriber started", requestID, nil)

	err := s.source.StartConsuming(ctx, s.handleNotification)

	if closeErr := s.source.Close(); closeErr != nil {
		s.logger.Error("graceful_shutdown", "Failed to close consumer", requestID, closeErr, nil)
	}
	if err != nil {
		return fmt.Errorf("notification consumer failed: %w", err)
	}
	s.logger.Info("graceful_shutdown", "Notification subscriber stopped", requestID, nil)
	return nil
}

func (s *Subscriber) handleNotification(_ context.Context, body []byte) error {
	requestID := logger.GenerateRequestID()

	var msg models.KitchenStatusMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		s.logger.Error("message_parsing_failed", "Failed to parse kitchen status event", requestID, err, nil)
		return fmt.Errorf("%w: %v", messaging.ErrDiscard, err)
	}
	if msg.KitchenOrderID == "" || msg.NewStatus == "" {
		return fmt.Errorf("%w: kitchen status event without order or status", messaging.ErrDiscard)
	}

	fmt.Fprintln(s.out, formatNotification(&msg))

	s.logger.Info("notification_displayed", "Kitchen status event displayed", requestID, map[string]interface{}{
		"kitchen_order_id": msg.KitchenOrderID,
		"order_id":         msg.OrderID,
		"old_status":       msg.OldStatus,
		"new_status":       msg.NewStatus,
		"changed_by":       msg.ChangedBy,
	})
	return nil
}

func formatNotification(msg *models.KitchenStatusMessage) string {
	timestamp := msg.Timestamp.Format("2006-01-02 15:04:05")

	switch models.KitchenStatus(msg.NewStatus) {
	case models.KitchenNew:
		return fmt.Sprintf("🧾 [%s] Kitchen order %s received for order %s.", timestamp, msg.KitchenOrderID, msg.OrderID)
	case models.KitchenPreparing, models.KitchenInProgress:
		return fmt.Sprintf("🍳 [%s] Order %s is now being prepared (%s).", timestamp, msg.OrderID, msg.ChangedBy)
	case models.KitchenReady:
		return fmt.Sprintf("✅ [%s] Order %s is ready! Prepared by %s.", timestamp, msg.OrderID, msg.ChangedBy)
	case models.KitchenServed, models.KitchenCompleted:
		return fmt.Sprintf("🎉 [%s] Order %s has been served.", timestamp, msg.OrderID)
	case models.KitchenCancelled:
		return fmt.Sprintf("❌ [%s] Kitchen order %s for order %s has been cancelled.", timestamp, msg.KitchenOrderID, msg.OrderID)
	default:
		return fmt.Sprintf("📋 [%s] Order %s kitchen status changed from '%s' to '%s' by %s.",
			timestamp, msg.OrderID, msg.OldStatus, msg.NewStatus, msg.ChangedBy)
	}
}
