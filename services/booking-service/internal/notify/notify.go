package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/model"
)

// ErrNotConfigured is reported by a channel whose credentials or destination are missing.
var ErrNotConfigured = errors.New("not configured")

type Audience string

const (
	AudienceOperator Audience = "operator"
	AudienceCustomer Audience = "customer"
)

// Channel is one outbound messaging integration.
type Channel interface {
	Name() string
	Audience() Audience
	Send(ctx context.Context, s model.Summary) error
}

type Result struct {
	Channel  string   `json:"channel"`
	Audience Audience `json:"audience"`
	Success  bool     `json:"success"`
	Error    string   `json:"error,omitempty"`
}

type Report struct {
	BookingID string   `json:"bookingId"`
	Results   []Result `json:"results"`
}

func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Success {
			out = append(out, res)
		}
	}
	return out
}

// Dispatcher fans a paid booking out to every channel. Channels run independently: one failing,
// hanging or panicking never stops the others, and nothing here reports back into the booking.
type Dispatcher struct {
	channels []Channel
	logger   *slog.Logger
	timeout  time.Duration
	observe  func(Result)
}

type Option func(*Dispatcher)

// WithTimeout bounds each channel send. Defaults to 15s.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithObserver is called once per channel result, e.g. to count deliveries.
func WithObserver(fn func(Result)) Option {
	return func(d *Dispatcher) { d.observe = fn }
}

func NewDispatcher(logger *slog.Logger, channels []Channel, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		channels: channels,
		logger:   logger,
		timeout:  15 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for _, ch := range d.channels {
		names = append(names, ch.Name())
	}
	return names
}

// Notify sends rec's summary on every channel and waits for all of them.
func (d *Dispatcher) Notify(ctx context.Context, rec model.BookingRecord) Report {
	summary := rec.Summary()
	report := Report{BookingID: rec.BookingID, Results: make([]Result, len(d.channels))}

	var wg sync.WaitGroup
	for i, ch := range d.channels {
		wg.Add(1)
		go func(i int, ch Channel) {
			defer wg.Done()
			report.Results[i] = d.send(ctx, ch, summary)
		}(i, ch)
	}
	wg.Wait()

	for _, res := range report.Results {
		if d.observe != nil {
			d.observe(res)
		}
		switch {
		case res.Success:
			d.logger.Info("notification sent", "channel", res.Channel, "booking_id", rec.BookingID)
		case res.Error == ErrNotConfigured.Error():
			d.logger.Debug("notification channel not configured", "channel", res.Channel)
		default:
			d.logger.Warn("notification failed", "channel", res.Channel, "booking_id", rec.BookingID, "err", res.Error)
		}
	}
	return report
}

// Go runs Notify in the background, detached from ctx's cancellation so a finished HTTP
// request does not abort delivery. The channel receives exactly one Report.
func (d *Dispatcher) Go(ctx context.Context, rec model.BookingRecord) <-chan Report {
	out := make(chan Report, 1)
	bg := context.WithoutCancel(ctx)
	go func() {
		out <- d.Notify(bg, rec)
		close(out)
	}()
	return out
}

func (d *Dispatcher) send(ctx context.Context, ch Channel, s model.Summary) (res Result) {
	res = Result{Channel: ch.Name(), Audience: ch.Audience()}
	defer func() {
		if p := recover(); p != nil {
			res.Success = false
			res.Error = fmt.Sprintf("panic: %v", p)
		}
	}()

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := ch.Send(sendCtx, s); err != nil {
		if errors.Is(err, ErrNotConfigured) {
			res.Error = ErrNotConfigured.Error()
		} else {
			res.Error = err.Error()
		}
		return res
	}
	res.Success = true
	return res
}
