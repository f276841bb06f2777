package notify

import (
	"encoding/json"
	"time"

	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/model"
)

// EventTypePaymentSucceeded is published on brokers once a booking is paid.
const EventTypePaymentSucceeded = "booking.payment.succeeded.v1"

type bookingEvent struct {
	EventType  string        `json:"event_type"`
	OccurredAt time.Time     `json:"occurred_at"`
	Booking    model.Summary `json:"booking"`
}

func marshalEvent(s model.Summary, now time.Time) ([]byte, error) {
	return json.Marshal(bookingEvent{
		EventType:  EventTypePaymentSucceeded,
		OccurredAt: now.UTC(),
		Booking:    s,
	})
}
