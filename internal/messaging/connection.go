package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"kitchen-sync/internal/logger"
)

// Exchange and queue carrying kitchen status events
const (
	StatusExchange = "notifications_fanout"
	StatusQueue    = "notifications_queue"
)

const connectAttempts = 5

// Connection wraps a RabbitMQ connection and channel with reconnection logic
type Connection struct {
	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
	logger  *logger.Logger
	url     string
}

// New dials RabbitMQ and declares the status topology
func New(ctx context.Context, url string, log *logger.Logger) (*Connection, error) {
	c := &Connection{
		logger: log,
		url:    url,
	}

	if err := c.connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to establish initial connection: %w", err)
	}
	return c, nil
}

// connect must be called with mu held or before the connection is shared
func (c *Connection) connect(ctx context.Context) error {
	var err error

	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if err = c.dial(); err == nil {
			return nil
		}

		if attempt == connectAttempts {
			break
		}
		wait := time.Duration(attempt) * 2 * time.Second
		c.logger.Error("rabbitmq_connection_failed",
			fmt.Sprintf("Failed to connect to RabbitMQ, retrying in %v", wait),
			"startup", err, map[string]interface{}{"attempt": attempt})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", connectAttempts, err)
}

func (c *Connection) dial() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return err
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	if err := setupTopology(channel); err != nil {
		channel.Close()
		conn.Close()
		return err
	}

	c.conn = conn
	c.channel = channel
	return nil
}

// setupTopology declares the status fanout exchange and its display queue
func setupTopology(ch *amqp091.Channel) error {
	err := ch.ExchangeDeclare(
		StatusExchange, // name
		"fanout",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare %s exchange: %w", StatusExchange, err)
	}

	_, err = ch.QueueDeclare(
		StatusQueue, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		amqp091.Table{
			"x-message-ttl": int32(300000),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare %s queue: %w", StatusQueue, err)
	}

	if err := ch.QueueBind(StatusQueue, "", StatusExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind %s queue: %w", StatusQueue, err)
	}
	return nil
}

// Channel returns a live channel, reconnecting first if the connection dropped
func (c *Connection) Channel(ctx context.Context) (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.conn.IsClosed() || c.channel == nil || c.channel.IsClosed() {
		c.closeLocked()
		if err := c.connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to reconnect: %w", err)
		}
	}
	return c.channel, nil
}

// Close closes the channel and the connection
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Connection) closeLocked() error {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		if err != nil && err != amqp091.ErrClosed {
			return err
		}
	}
	return nil
}
