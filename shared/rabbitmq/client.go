package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNotConnected is returned when an operation needs an open channel
var ErrNotConnected = errors.New("not connected to RabbitMQ")

// Config holds RabbitMQ connection configuration
type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	VHost              string
	ExchangeName       string
	ExchangeType       string
	ExchangeDurable    bool
	QueueName          string
	QueueDurable       bool
	DeadLetterExchange string
	RoutingKey         string
	PrefetchCount      int
	RetryAttempts      int
	RetryInterval      time.Duration
	Heartbeat          time.Duration
	PublishRetries     int
	PublishRetryDelay  time.Duration
	PublishBackoffMult float64
}

// URL builds the AMQP connection URL
func (c *Config) URL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.VHost,
	}
	return u.String()
}

// Client owns a connection and channel bound to the retry request queue
type Client struct {
	config      *Config
	conn        *amqp.Connection
	channel     *amqp.Channel
	logger      *slog.Logger
	closeChan   chan *amqp.Error
	isConnected bool
}

// NewClient connects to RabbitMQ and declares the exchange and queue
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	client := &Client{
		config: config,
		logger: logger,
	}

	if err := client.connect(); err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ client: %w", err)
	}

	return client, nil
}

func (c *Client) connect() error {
	attempts := c.config.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	amqpConfig := amqp.Config{
		Heartbeat: c.config.Heartbeat,
		Locale:    "en_US",
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		c.logger.Info("Connecting to RabbitMQ",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
		)

		c.conn, err = amqp.DialConfig(c.config.URL(), amqpConfig)
		if err == nil {
			break
		}

		c.logger.Error("Failed to connect to RabbitMQ",
			slog.Any("error", err),
			slog.Int("attempt", attempt),
		)

		if attempt < attempts {
			time.Sleep(c.config.RetryInterval)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, err)
	}

	c.channel, err = c.conn.Channel()
	if err != nil {
		_ = c.conn.Close()
		return fmt.Errorf("failed to create channel: %w", err)
	}

	if err := c.setup(); err != nil {
		_ = c.channel.Close()
		_ = c.conn.Close()
		return fmt.Errorf("failed to setup exchange and queue: %w", err)
	}

	c.closeChan = make(chan *amqp.Error, 1)
	c.channel.NotifyClose(c.closeChan)
	c.isConnected = true

	c.logger.Info("RabbitMQ client initialized",
		slog.String("exchange", c.config.ExchangeName),
		slog.String("queue", c.config.QueueName),
	)

	return nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.config.ExchangeName,    // name
		c.config.ExchangeType,    // type
		c.config.ExchangeDurable, // durable
		false,                    // auto-deleted
		false,                    // internal
		false,                    // no-wait
		nil,                      // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.config.QueueName,    // name
		c.config.QueueDurable, // durable
		false,                 // auto-delete
		false,                 // exclusive
		false,                 // no-wait
		queueArgs(c.config),   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.config.QueueName,    // queue name
		c.config.RoutingKey,   // routing key
		c.config.ExchangeName, // exchange
		false,                 // no-wait
		nil,                   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	return nil
}

// queueArgs routes rejected retry requests to the dead-letter exchange when one is configured
func queueArgs(cfg *Config) amqp.Table {
	if cfg.DeadLetterExchange == "" {
		return nil
	}
	return amqp.Table{"x-dead-letter-exchange": cfg.DeadLetterExchange}
}

// PublishWithRetry publishes a persistent message, backing off exponentially between attempts
func (c *Client) PublishWithRetry(ctx context.Context, body []byte, contentType string) error {
	if !c.isConnected {
		return ErrNotConnected
	}

	maxRetries := c.config.PublishRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := c.channel.PublishWithContext(
			ctx,
			c.config.ExchangeName, // exchange
			c.config.RoutingKey,   // routing key
			false,                 // mandatory
			false,                 // immediate
			amqp.Publishing{
				ContentType:  contentType,
				Body:         body,
				DeliveryMode: amqp.Persistent,
				Timestamp:    time.Now(),
			},
		)
		if err == nil {
			c.logger.Debug("Message published to RabbitMQ",
				slog.Int("attempt", attempt+1),
				slog.Int("body_size", len(body)),
				slog.String("content_type", contentType),
			)
			return nil
		}

		lastErr = err
		if attempt == maxRetries {
			break
		}

		delay := backoffDelay(c.config.PublishRetryDelay, c.config.PublishBackoffMult, attempt)
		c.logger.Warn("Failed to publish message to RabbitMQ, retrying...",
			slog.Int("attempt", attempt+1),
			slog.Int("max_retries", maxRetries),
			slog.Duration("retry_after", delay),
			slog.Any("error", err),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to publish message: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	c.logger.Error("Failed to publish message to RabbitMQ after all retries",
		slog.Int("attempts", maxRetries+1),
		slog.Any("error", lastErr),
	)
	return fmt.Errorf("failed to publish message after %d attempts: %w", maxRetries+1, lastErr)
}

// backoffDelay returns base * mult^attempt with defaults of 100ms and 2.0
func backoffDelay(base time.Duration, mult float64, attempt int) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if mult <= 0 {
		mult = 2.0
	}
	delay := float64(base)
	for i := 0; i < attempt; i++ {
		delay *= mult
	}
	return time.Duration(delay)
}

// Consume applies the prefetch limit and starts a manual-ack consumer on the queue
func (c *Client) Consume(consumerTag string) (<-chan amqp.Delivery, error) {
	if !c.isConnected {
		return nil, ErrNotConnected
	}

	if c.config.PrefetchCount > 0 {
		if err := c.channel.Qos(c.config.PrefetchCount, 0, false); err != nil {
			return nil, fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	messages, err := c.channel.Consume(
		c.config.QueueName, // queue
		consumerTag,        // consumer tag
		false,              // auto-ack
		false,              // exclusive
		false,              // no-local
		false,              // no-wait
		nil,                // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to consume messages: %w", err)
	}

	c.logger.Info("Started consuming messages from RabbitMQ",
		slog.String("queue", c.config.QueueName),
		slog.String("consumer_tag", consumerTag),
		slog.Int("prefetch_count", c.config.PrefetchCount),
	)

	return messages, nil
}

// NotifyClose returns the channel that receives the broker close reason
func (c *Client) NotifyClose() <-chan *amqp.Error {
	return c.closeChan
}

// IsConnected returns the connection status
func (c *Client) IsConnected() bool {
	return c.isConnected && c.conn != nil && !c.conn.IsClosed()
}

// Close closes the RabbitMQ connection
func (c *Client) Close() error {
	c.logger.Info("Closing RabbitMQ connection")

	c.isConnected = false

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.Error("Failed to close RabbitMQ channel",
				slog.Any("error", err),
			)
		}
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error("Failed to close RabbitMQ connection",
				slog.Any("error", err),
			)
			return err
		}
	}

	c.logger.Info("RabbitMQ connection closed successfully")
	return nil
}
