// Package amqp publishes and consumes roomsplit background messages over
// RabbitMQ.
package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	c := &Client{url: url, exchangeName: exchangeName, queueName: queueName}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := setup(channel, c.exchangeName, c.queueName); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}

	c.mu.Lock()
	c.conn, c.channel = conn, channel
	c.mu.Unlock()
	return nil
}

func setup(ch *amqp091.Channel, exchange, queue string) error {
	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	// routing key is the queue name on the direct exchange
	if err := ch.QueueBind(queue, queue, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

func (c *Client) currentChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel == nil || c.channel.IsClosed() {
		return nil, errors.New("channel closed")
	}
	return c.channel, nil
}

// PublishExpenseEvent publishes a change notification for an expense
func (c *Client) PublishExpenseEvent(ctx context.Context, ev *ExpenseEvent) error {
	if err := c.publish(ctx, TypeExpenseEvent, ev); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published expense event",
		"kind", ev.Kind, "expense_id", ev.ExpenseID, "room_id", ev.RoomID, "queue", c.queueName)
	return nil
}

// PublishReceiptOrphan asks the worker to delete an unreferenced receipt
func (c *Client) PublishReceiptOrphan(ctx context.Context, o *ReceiptOrphan) error {
	if err := c.publish(ctx, TypeReceiptOrphan, o); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published receipt orphan", "path", o.Path, "queue", c.queueName)
	return nil
}

func (c *Client) publish(ctx context.Context, typ string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	ch, err := c.currentChannel()
	if err != nil {
		return fmt.Errorf("publish %s: %w", typ, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(ctx, c.exchangeName, c.queueName, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Type:         typ,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", typ, err)
	}
	return nil
}

// Handlers process decoded messages. A nil handler acks and drops its
// message type.
type Handlers struct {
	ExpenseEvent  func(context.Context, *ExpenseEvent) error
	ReceiptOrphan func(context.Context, *ReceiptOrphan) error
}

type outcome int

const (
	outcomeAck outcome = iota
	outcomeReject
	outcomeRequeue
)

// handleDelivery decodes a message and runs its handler. Undecodable or
// unknown messages are rejected without requeue; handler failures are
// requeued.
func handleDelivery(ctx context.Context, typProperty string, body []byte, h Handlers) outcome {
	switch messageType(typProperty, body) {
	case TypeExpenseEvent:
		var ev ExpenseEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			slog.ErrorContext(ctx, "Failed to unmarshal expense event", "error", err)
			return outcomeReject
		}
		if h.ExpenseEvent == nil {
			return outcomeAck
		}
		if err := h.ExpenseEvent(ctx, &ev); err != nil {
			slog.ErrorContext(ctx, "Failed to handle expense event",
				"error", err, "expense_id", ev.ExpenseID, "room_id", ev.RoomID)
			return outcomeRequeue
		}
		return outcomeAck
	case TypeReceiptOrphan:
		var o ReceiptOrphan
		if err := json.Unmarshal(body, &o); err != nil || o.Path == "" {
			slog.ErrorContext(ctx, "Invalid receipt orphan message", "error", err)
			return outcomeReject
		}
		if h.ReceiptOrphan == nil {
			return outcomeAck
		}
		if err := h.ReceiptOrphan(ctx, &o); err != nil {
			slog.ErrorContext(ctx, "Failed to handle receipt orphan", "error", err, "path", o.Path)
			return outcomeRequeue
		}
		return outcomeAck
	default:
		slog.WarnContext(ctx, "Dropping message of unknown type", "type", typProperty)
		return outcomeReject
	}
}

// Consume processes deliveries until ctx is cancelled or the channel
// closes.
func (c *Client) Consume(ctx context.Context, h Handlers) error {
	ch, err := c.currentChannel()
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	msgs, err := ch.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			switch handleDelivery(ctx, d.Type, d.Body, h) {
			case outcomeAck:
				_ = d.Ack(false)
			case outcomeReject:
				_ = d.Nack(false, false)
			case outcomeRequeue:
				_ = d.Nack(false, true)
			}
		}
	}
}

// ConsumeWithReconnect runs Consume and re-dials with exponential backoff
// whenever the broker connection drops.
func (c *Client) ConsumeWithReconnect(ctx context.Context, h Handlers) error {
	attempt := 0
	for {
		err := c.Consume(ctx, h)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}
		wait := exponentialBackoff(attempt)
		slog.WarnContext(ctx, "AMQP connection lost, reconnecting", "error", err, "attempt", attempt+1, "backoff", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		c.closeConn()
		if err := c.connect(); err != nil {
			slog.ErrorContext(ctx, "AMQP reconnect failed", "error", err)
			attempt++
			continue
		}
		attempt = 0
	}
}

func exponentialBackoff(attempt int) time.Duration {
	const maxBackoff = 30 * time.Second
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << attempt
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
	for _, s := range []string{"connection", "channel closed", "eof", "broken pipe", "message channel closed"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
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
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
