package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"kitchen-sync/internal/logger"
)

// ErrDiscard marks a message that can never be processed; it is dropped instead of requeued.
var ErrDiscard = errors.New("discard message")

// MessageHandler processes one message body
type MessageHandler func(ctx context.Context, body []byte) error

// Consumer handles message consumption from one queue
type Consumer struct {
	conn        *Connection
	logger      *logger.Logger
	queueName   string
	consumerTag string
	prefetch    int
}

// NewConsumer creates a new message consumer
func NewConsumer(conn *Connection, log *logger.Logger, queueName, consumerTag string, prefetch int) *Consumer {
	return &Consumer{
		conn:        conn,
		logger:      log,
		queueName:   queueName,
		consumerTag: consumerTag,
		prefetch:    prefetch,
	}
}

// StartConsuming blocks, handing deliveries to handler until ctx is cancelled
func (c *Consumer) StartConsuming(ctx context.Context, handler MessageHandler) error {
	for {
		err := c.consume(ctx, handler)
		if ctx.Err() != nil {
			c.logger.Info("consumer_stopped", "Consumer stopped by context", "", nil)
			return nil
		}
		if err != nil {
			return err
		}
		c.logger.Error("consumer_channel_closed", "Delivery channel closed, reconnecting", "", nil, map[string]interface{}{
			"queue": c.queueName,
		})
	}
}

// consume returns nil when the delivery channel closes
func (c *Consumer) consume(ctx context.Context, handler MessageHandler) error {
	channel, err := c.conn.Channel(ctx)
	if err != nil {
		return err
	}

	if err := channel.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := channel.Consume(
		c.queueName,   // queue
		c.consumerTag, // consumer
		false,         // auto-ack
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("consumer_started", fmt.Sprintf("Started consuming from queue %s", c.queueName), "", map[string]interface{}{
		"queue":    c.queueName,
		"consumer": c.consumerTag,
		"prefetch": c.prefetch,
	})

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			c.processMessage(ctx, d, handler)
		}
	}
}

// processMessage acks on success, drops on ErrDiscard and requeues otherwise
func (c *Consumer) processMessage(ctx context.Context, delivery amqp091.Delivery, handler MessageHandler) {
	start := time.Now()

	processingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := handler(processingCtx, delivery.Body)

	fields := map[string]interface{}{
		"queue":        c.queueName,
		"duration_ms":  time.Since(start).Milliseconds(),
		"delivery_tag": delivery.DeliveryTag,
	}

	switch {
	case err == nil:
		if ackErr := delivery.Ack(false); ackErr != nil {
			c.logger.Error("message_ack_failed", "Failed to ack message", "", ackErr, fields)
		}
	case errors.Is(err, ErrDiscard):
		c.logger.Error("message_discarded", "Dropping unprocessable message", "", err, fields)
		if nackErr := delivery.Nack(false, false); nackErr != nil {
			c.logger.Error("message_nack_failed", "Failed to nack message", "", nackErr, fields)
		}
	default:
		c.logger.Error("message_processing_failed", "Failed to process message", "", err, fields)
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			c.logger.Error("message_nack_failed", "Failed to nack message", "", nackErr, fields)
		}
	}
}

// Close closes the connection, which also cancels the consumer
func (c *Consumer) Close() error {
	return c.conn.Close()
}
