package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"kitchen-sync/internal/logger"
	"kitchen-sync/internal/models"
)

// Publisher publishes kitchen status events to the status exchange
type Publisher struct {
	conn   *Connection
	logger *logger.Logger
}

// NewPublisher creates a new message publisher
func NewPublisher(conn *Connection, log *logger.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: log,
	}
}

// PublishStatusEvent fans a kitchen status change out to every bound queue
func (p *Publisher) PublishStatusEvent(ctx context.Context, msg *models.KitchenStatusMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	channel, err := p.conn.Channel(ctx)
	if err != nil {
		return err
	}

	err = channel.PublishWithContext(
		ctx,
		StatusExchange, // exchange
		"",             // routing key, ignored by fanout
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Transient,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug("message_published", "Published kitchen status event", "", map[string]interface{}{
		"exchange":         StatusExchange,
		"kitchen_order_id": msg.KitchenOrderID,
		"new_status":       msg.NewStatus,
		"message_size":     len(body),
	})
	return nil
}
