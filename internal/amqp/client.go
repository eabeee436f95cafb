// Package amqp publishes and consumes ledger events over RabbitMQ.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
	prefetchCount  = 10
)

var (
	ErrCircuitOpen   = errors.New("circuit breaker is open")
	errChannelClosed = errors.New("delivery channel closed")
)

// Client owns one connection and channel, re-dialled on demand after
// connection failures. Publishing is guarded by a circuit breaker so a
// broker outage does not slow every request down.
type Client struct {
	url          string
	exchangeName string
	queueName    string
	logger       *slog.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  time.Time
}

// NewClient dials url and declares the exchange, queue and binding.
func NewClient(url, exchangeName, queueName string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger.With("component", "amqp"),
	}
	if _, err := c.ensureChannel(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) ensureChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil && !c.channel.IsClosed() {
		return c.channel, nil
	}
	c.closeLocked()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := setup(channel, c.exchangeName, c.queueName); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	c.conn, c.channel = conn, channel
	return channel, nil
}

func setup(ch *amqp091.Channel, exchangeName, queueName string) error {
	err := ch.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Direct exchange: the queue name doubles as the routing key.
	if err := ch.QueueBind(queueName, queueName, exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// Publish sends a persistent event. It fails fast while the circuit is open.
func (c *Client) Publish(ctx context.Context, event *LedgerEvent) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish %s: %w", event.Type, ErrCircuitOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ch, err := c.ensureChannel()
	if err != nil {
		c.recordFailure()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    event.Timestamp,
			Type:         string(event.Type),
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.resetConnection()
		}
		return fmt.Errorf("publish event: %w", err)
	}
	c.recordSuccess()

	c.logger.DebugContext(ctx, "Published ledger event",
		"event", event.Type,
		"entity_id", event.EntityID,
		"exchange", c.exchangeName)
	return nil
}

// Consume delivers events to handler until ctx is cancelled, reconnecting
// with exponential backoff when the broker goes away. Malformed messages
// are dropped; handler failures are requeued.
func (c *Client) Consume(ctx context.Context, handler func(context.Context, *LedgerEvent) error) error {
	attempt := 0
	for {
		err := c.consumeOnce(ctx, handler, func() { attempt = 0 })
		if ctx.Err() != nil {
			c.logger.InfoContext(ctx, "Stopping event consumption", "reason", ctx.Err())
			return ctx.Err()
		}

		delay := exponentialBackoff(attempt)
		c.logger.WarnContext(ctx, "Event consumer disconnected, retrying",
			"error", err,
			"attempt", attempt+1,
			"retry_in", delay)
		c.resetConnection()
		attempt++

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (c *Client) consumeOnce(ctx context.Context, handler func(context.Context, *LedgerEvent) error, connected func()) error {
	ch, err := c.ensureChannel()
	if err != nil {
		return err
	}
	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	msgs, err := ch.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	connected()
	c.logger.InfoContext(ctx, "Consuming ledger events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errChannelClosed
			}
			dispatch(ctx, c.logger, delivery.Body, delivery, handler)
		}
	}
}

// acknowledger is the part of amqp091.Delivery dispatch needs.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func dispatch(ctx context.Context, logger *slog.Logger, body []byte, ack acknowledger, handler func(context.Context, *LedgerEvent) error) {
	event, err := LedgerEventFromJSON(body)
	if err != nil {
		logger.ErrorContext(ctx, "Dropping malformed event", "error", err)
		_ = ack.Nack(false, false)
		return
	}

	if err := handler(ctx, event); err != nil {
		logger.ErrorContext(ctx, "Event handler failed, requeueing",
			"event", event.Type,
			"entity_id", event.EntityID,
			"error", err)
		_ = ack.Nack(false, true)
		return
	}
	_ = ack.Ack(false)
	logger.DebugContext(ctx, "Event processed", "event", event.Type, "entity_id", event.EntityID)
}

func (c *Client) isCircuitOpen() bool {
	switch atomic.LoadInt32(&c.state) {
	case StateOpen:
		c.mu.Lock()
		last := c.lastFailure
		c.mu.Unlock()
		if time.Since(last) > openTimeout {
			atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
			return false
		}
		return true
	default:
		return false
	}
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()

	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		if atomic.SwapInt32(&c.state, StateOpen) != StateOpen {
			c.logger.Warn("Circuit breaker opened", "failures", atomic.LoadInt64(&c.failureCount))
		}
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) resetConnection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

// exponentialBackoff returns 1s, 2s, 4s, ... capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << uint(attempt)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
