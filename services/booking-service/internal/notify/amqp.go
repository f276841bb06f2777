package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	otelx "github.com/md-rashed-zaman/sevabook/libs/otel"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/model"
	amqp "github.com/rabbitmq/amqp091-go"
)

const DefaultQueue = "booking.confirmed"

// Publisher is the slice of *amqp.Channel this channel uses.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPChannel puts a persistent booking.confirmed message on a durable queue. The broker
// connection is opened on first use and reopened after a publish error.
type AMQPChannel struct {
	url   string
	queue string
	dial  func(url, queue string) (Publisher, func() error, error)

	mu    sync.Mutex
	pub   Publisher
	close func() error
}

func NewAMQPChannel(url, queue string) *AMQPChannel {
	queue = strings.TrimSpace(queue)
	if queue == "" {
		queue = DefaultQueue
	}
	return &AMQPChannel{url: strings.TrimSpace(url), queue: queue, dial: dialQueue}
}

func (c *AMQPChannel) Name() string       { return "amqp" }
func (c *AMQPChannel) Audience() Audience { return AudienceOperator }

func (c *AMQPChannel) Send(ctx context.Context, s model.Summary) error {
	if c.url == "" {
		return fmt.Errorf("%w: amqp url", ErrNotConfigured)
	}
	body, err := marshalEvent(s, time.Now())
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pub == nil {
		pub, closeFn, err := c.dial(c.url, c.queue)
		if err != nil {
			return fmt.Errorf("amqp connect: %w", err)
		}
		c.pub, c.close = pub, closeFn
	}

	headers := amqp.Table{"event_type": EventTypePaymentSucceeded}
	for k, v := range otelx.TraceHeaders(ctx) {
		headers[k] = v
	}
	err = c.pub.PublishWithContext(ctx, "", c.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    s.BookingID,
		Timestamp:    time.Now().UTC(),
		Type:         EventTypePaymentSucceeded,
		Headers:      headers,
		Body:         body,
	})
	if err != nil {
		c.resetLocked()
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

// Close releases the broker connection, if one is open.
func (c *AMQPChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resetLocked()
}

func (c *AMQPChannel) resetLocked() error {
	var err error
	if c.close != nil {
		err = c.close()
	}
	c.pub, c.close = nil, nil
	return err
}

func dialQueue(url, queue string) (Publisher, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	closeFn := func() error {
		_ = ch.Close()
		return conn.Close()
	}
	return ch, closeFn, nil
}
