package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/sevabook/libs/kafkax"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/model"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaChannel publishes a booking.payment.succeeded.v1 event keyed by booking id,
// for downstream operator tooling.
type KafkaChannel struct {
	w MessageWriter
}

// NewKafkaChannel accepts a nil writer, in which case every send reports not configured.
func NewKafkaChannel(w MessageWriter) *KafkaChannel {
	return &KafkaChannel{w: w}
}

func (c *KafkaChannel) Name() string       { return "kafka" }
func (c *KafkaChannel) Audience() Audience { return AudienceOperator }

func (c *KafkaChannel) Send(ctx context.Context, s model.Summary) error {
	if c.w == nil {
		return fmt.Errorf("%w: kafka brokers", ErrNotConfigured)
	}
	payload, err := marshalEvent(s, time.Now())
	if err != nil {
		return err
	}
	headers := kafkax.EventHeaders(s.BookingID, EventTypePaymentSucceeded)
	return c.w.WriteMessages(ctx, kafka.Message{
		Key:     []byte(s.BookingID),
		Value:   payload,
		Headers: kafkax.InjectTraceHeaders(ctx, headers),
		Time:    time.Now().UTC(),
	})
}
