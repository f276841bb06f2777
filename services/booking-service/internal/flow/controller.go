package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/payment"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/validation"
)

var (
	ErrInvalidState  = errors.New("flow: action not allowed in current state")
	ErrNoBooking     = errors.New("flow: no pending booking")
	ErrBookingClosed = errors.New("flow: booking is closed")
	ErrUnknownEntry  = errors.New("flow: unknown catalog entry")
)

// Recorder receives flow counters. *metrics.Metrics satisfies it.
type Recorder interface {
	Transition(from, to string)
	BookingCreated(service string)
	PaymentOutcome(provider, state, reason string)
}

type nopRecorder struct{}

func (nopRecorder) Transition(string, string)             {}
func (nopRecorder) BookingCreated(string)                 {}
func (nopRecorder) PaymentOutcome(string, string, string) {}

// Controller drives sessions through selection, payment, success and failure.
type Controller struct {
	validator *validation.Validator
	catalog   *catalog.Catalog
	store     *storage.Store
	payments  *payment.Orchestrator
	notifier  *notify.Dispatcher
	logger    *slog.Logger
	recorder  Recorder
	tracer    trace.Tracer
	sessions  *Sessions
	now       func() time.Time
}

type Option func(*Controller)

func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		if r != nil {
			c.recorder = r
		}
	}
}

func WithSessions(s *Sessions) Option {
	return func(c *Controller) { c.sessions = s }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func NewController(
	v *validation.Validator,
	cat *catalog.Catalog,
	store *storage.Store,
	payments *payment.Orchestrator,
	notifier *notify.Dispatcher,
	logger *slog.Logger,
	opts ...Option,
) *Controller {
	c := &Controller{
		validator: v,
		catalog:   cat,
		store:     store,
		payments:  payments,
		notifier:  notifier,
		logger:    logger,
		recorder:  nopRecorder{},
		tracer:    otel.Tracer("sevabook/flow"),
		sessions:  NewSessions(0),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Sessions() *Sessions { return c.sessions }

func (c *Controller) start(ctx context.Context, name string, s *Session) (context.Context, trace.Span) {
	ctx, span := c.tracer.Start(ctx, "flow."+name)
	span.SetAttributes(
		attribute.String("flow.state", string(s.state)),
		attribute.String("booking.token", s.token),
	)
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// moveLocked changes s's state and records the transition. Callers hold s.mu.
func (c *Controller) moveLocked(ctx context.Context, s *Session, next State) {
	prev := s.state
	s.state = next
	s.touchedAt = c.now()
	if next != StateFailure {
		s.reason, s.message = "", ""
	}
	trace.SpanFromContext(ctx).AddEvent("flow.transition", trace.WithAttributes(
		attribute.String("from", string(prev)),
		attribute.String("to", string(next)),
	))
	c.recorder.Transition(string(prev), string(next))
	c.logger.Info("booking flow transition",
		"token", s.token,
		"booking_id", s.record.BookingID,
		"from", string(prev),
		"to", string(next),
	)
}

// Submit validates in and, when it passes, creates a payment_pending booking priced from the
// catalog and moves s to payment. A failed validation leaves s in selection with no side effects.
func (c *Controller) Submit(ctx context.Context, s *Session, in validation.Input, lang string) (result validation.Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, span := c.start(ctx, "Submit", s)
	defer func() { endSpan(span, err) }()

	if s.state != StateSelection {
		return validation.Result{}, fmt.Errorf("%w: submit in %s", ErrInvalidState, s.state)
	}
	in = in.Normalized()
	result = c.validator.Validate(in, lang)
	if !result.Valid {
		span.SetAttributes(attribute.Int("validation.errors", len(result.Errors)))
		return result, nil
	}
	entry, ok := c.catalog.Lookup(in.Service)
	if !ok {
		return validation.Result{}, fmt.Errorf("%w: %s", ErrUnknownEntry, in.Service)
	}

	rec := c.store.Create(ctx, recordFrom(in, entry))
	c.recorder.BookingCreated(entry.ID)

	s.token = rec.Token
	s.record = rec
	s.order = nil
	s.attempt = nil
	s.notifications = nil
	span.SetAttributes(attribute.String("booking.token", rec.Token), attribute.String("booking.id", rec.BookingID))
	c.moveLocked(ctx, s, StatePayment)
	c.sessions.Put(rec.Token, s)
	return result, nil
}

func recordFrom(in validation.Input, entry catalog.Entry) model.NewRecord {
	nr := model.NewRecord{
		Contact:      model.Contact{Name: in.Name, Phone: in.Phone, Email: in.Email},
		Service:      entry.ID,
		ServiceLabel: entry.Label,
		Schedule: model.Schedule{
			Date:            in.Date,
			Time:            in.Time,
			Address:         in.Address,
			SpecialRequests: in.SpecialRequests,
		},
		Amount: entry.Price,
	}
	if entry.RequiresBirthDetails && in.BirthHours != nil && in.BirthMinutes != nil {
		nr.BirthDetails = &model.BirthDetails{
			Date: in.BirthDate,
			Time: model.BirthTime{
				Hours:   *in.BirthHours,
				Minutes: *in.BirthMinutes,
				Period:  in.BirthPeriod,
			},
			Place: in.BirthPlace,
		}
	}
	return nr
}

// StartPayment opens a checkout for the session's pending booking. From failure it first
// retries. The payment order is reused across retries of the same booking.
func (c *Controller) StartPayment(ctx context.Context, s *Session, mode payment.Mode) (co payment.Checkout, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, span := c.start(ctx, "StartPayment", s)
	defer func() { endSpan(span, err) }()

	switch s.state {
	case StatePayment:
	case StateFailure:
		c.moveLocked(ctx, s, StatePayment)
	default:
		return payment.Checkout{}, fmt.Errorf("%w: pay in %s", ErrInvalidState, s.state)
	}

	rec, err := c.pendingRecordLocked(ctx, s)
	if err != nil {
		return payment.Checkout{}, err
	}
	meta := payment.Metadata{
		Token:       rec.Token,
		BookingID:   rec.BookingID,
		Name:        rec.Contact.Name,
		Email:       rec.Contact.Email,
		Phone:       rec.Contact.Phone,
		Description: rec.ServiceLabel,
		Mode:        mode,
	}
	if s.order == nil || s.order.Amount != rec.Amount {
		order, err := c.payments.CreateOrder(rec.Amount, meta)
		if err != nil {
			return payment.Checkout{}, err
		}
		s.order = &order
	}

	attempt, err := c.payments.Initiate(ctx, *s.order, meta)
	if err != nil {
		outcome, _ := attempt.Wait(context.Background())
		c.recorder.PaymentOutcome(c.payments.ProviderName(), string(outcome.State), outcome.Reason)
		c.failLocked(ctx, s, outcome)
		return payment.Checkout{}, err
	}
	if s.attempt != nil && s.attempt.Checkout.OrderID != attempt.Checkout.OrderID {
		c.payments.Forget(s.attempt.Checkout.OrderID)
	}
	s.attempt = attempt
	span.SetAttributes(attribute.String("payment.order_id", attempt.Checkout.OrderID))
	return attempt.Checkout, nil
}

// pendingRecordLocked returns the stored record for s, which must still be awaiting payment.
// A record that is no longer readable falls back to the session's own copy.
func (c *Controller) pendingRecordLocked(ctx context.Context, s *Session) (model.BookingRecord, error) {
	if s.token == "" {
		return model.BookingRecord{}, ErrNoBooking
	}
	rec, ok := c.store.GetByToken(ctx, s.token)
	if !ok {
		c.logger.Warn("booking not readable, using session copy", "token", s.token)
		rec = s.record
	}
	switch rec.Status {
	case model.StatusPaymentPending:
	case model.StatusPaymentFailed:
		updated, err := c.store.Transition(ctx, s.token, model.Patch{Status: model.StatusPtr(model.StatusPaymentPending)})
		if err != nil {
			return model.BookingRecord{}, err
		}
		rec = updated
	case model.StatusPaymentSuccess, model.StatusCancelled:
		return model.BookingRecord{}, fmt.Errorf("%w: %s", ErrBookingClosed, rec.Status)
	default:
		return model.BookingRecord{}, ErrNoBooking
	}
	s.record = rec
	return rec, nil
}

// Resolve feeds a provider callback for the session's open attempt and applies the outcome.
func (c *Controller) Resolve(ctx context.Context, s *Session, cb payment.Callback) (v View, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, span := c.start(ctx, "Resolve", s)
	defer func() { endSpan(span, err) }()

	// A verified success can still land after the customer saw a failure; the money has moved.
	if s.state == StateFailure && cb.Verified && cb.Event == payment.EventSuccess {
		c.moveLocked(ctx, s, StatePayment)
	}
	if s.state != StatePayment {
		return s.viewLocked(), fmt.Errorf("%w: callback in %s", ErrInvalidState, s.state)
	}
	outcome, err := c.outcomeLocked(ctx, s, cb)
	if err != nil {
		return s.viewLocked(), err
	}
	if err := c.completeLocked(ctx, s, outcome); err != nil {
		return s.viewLocked(), err
	}
	return s.viewLocked(), nil
}

func (c *Controller) outcomeLocked(ctx context.Context, s *Session, cb payment.Callback) (payment.Outcome, error) {
	if s.attempt != nil {
		orderID := s.attempt.Checkout.OrderID
		if cb.Verified && cb.OrderID != "" && cb.OrderID != orderID {
			return payment.Outcome{}, fmt.Errorf("%w: %s is not the open checkout", payment.ErrUnknownOrder, cb.OrderID)
		}
		return c.payments.Resolve(ctx, orderID, cb)
	}
	// No attempt in this process, e.g. after a restart. Only an already verified success can
	// still be applied, and only if it pays the stored amount.
	if !cb.Verified || cb.Event != payment.EventSuccess {
		return payment.Outcome{}, fmt.Errorf("%w: no open checkout", payment.ErrUnknownOrder)
	}
	if cb.Amount != s.record.Amount*100 || cb.PaymentID == "" {
		return payment.Outcome{State: payment.StateFailed, Reason: payment.ReasonAmountMismatch, Message: "payment does not match the booking"}, nil
	}
	return payment.Outcome{
		State: payment.StateSucceeded,
		Payment: &payment.Success{
			PaymentID: cb.PaymentID,
			OrderID:   cb.OrderID,
			Amount:    cb.Amount,
			Currency:  cb.Currency,
			Provider:  c.payments.ProviderName(),
		},
	}, nil
}

// CompletePayment applies an attempt outcome to s.
func (c *Controller) CompletePayment(ctx context.Context, s *Session, outcome payment.Outcome) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, span := c.start(ctx, "CompletePayment", s)
	defer func() { endSpan(span, err) }()

	if s.state != StatePayment {
		return fmt.Errorf("%w: complete in %s", ErrInvalidState, s.state)
	}
	return c.completeLocked(ctx, s, outcome)
}

func (c *Controller) completeLocked(ctx context.Context, s *Session, outcome payment.Outcome) error {
	c.recorder.PaymentOutcome(c.payments.ProviderName(), string(outcome.State), outcome.Reason)
	if !outcome.Succeeded() {
		c.failLocked(ctx, s, outcome)
		return nil
	}

	paidAt := c.now().UTC()
	p := outcome.Payment
	patch := model.Patch{
		Status: model.StatusPtr(model.StatusPaymentSuccess),
		PaidAt: &paidAt,
		Payment: &model.PaymentDetails{
			PaymentID: p.PaymentID,
			OrderID:   p.OrderID,
			Signature: p.Signature,
			Amount:    p.Amount,
			Currency:  p.Currency,
			Provider:  p.Provider,
		},
	}
	rec, err := c.store.Transition(ctx, s.token, patch)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		// The money has moved; confirm from the session copy rather than lose the booking.
		c.logger.Error("paid booking missing from store", "token", s.token, "payment_id", p.PaymentID)
		rec = patch.Apply(s.record)
	default:
		return err
	}

	s.record = rec
	s.attempt = nil
	s.order = nil
	s.notifications = c.notifier.Go(ctx, rec)
	c.moveLocked(ctx, s, StateSuccess)
	return nil
}

// failLocked moves s to failure. The booking stays payment_pending so it can be retried.
func (c *Controller) failLocked(ctx context.Context, s *Session, outcome payment.Outcome) {
	s.attempt = nil
	if s.state != StateFailure {
		c.moveLocked(ctx, s, StateFailure)
	}
	s.reason = outcome.Reason
	s.message = outcome.Message
	count := s.record.FailureCount + 1
	if rec, ok := c.store.Update(ctx, s.token, model.Patch{FailureCount: &count}); ok {
		s.record = rec
	}
}

// Retry returns a failed session to payment.
func (c *Controller) Retry(ctx context.Context, s *Session) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, span := c.start(ctx, "Retry", s)
	defer func() { endSpan(span, err) }()

	if s.state != StateFailure {
		return fmt.Errorf("%w: retry in %s", ErrInvalidState, s.state)
	}
	c.moveLocked(ctx, s, StatePayment)
	return nil
}

// Back returns s to selection, abandoning any open checkout. The stored booking is not touched.
func (c *Controller) Back(ctx context.Context, s *Session) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, span := c.start(ctx, "Back", s)
	defer func() { endSpan(span, err) }()

	if s.state != StatePayment && s.state != StateFailure {
		return fmt.Errorf("%w: back in %s", ErrInvalidState, s.state)
	}
	if s.attempt != nil {
		c.payments.Forget(s.attempt.Checkout.OrderID)
		s.attempt = nil
	}
	c.moveLocked(ctx, s, StateSelection)
	return nil
}

// Resume returns the live session for token, rebuilding it from the stored booking when
// this process has none.
func (c *Controller) Resume(ctx context.Context, token string) (*Session, error) {
	if s, ok := c.sessions.Get(token); ok {
		return s, nil
	}
	rec, ok := c.store.GetByToken(ctx, token)
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, token)
	}
	s := &Session{token: rec.Token, record: rec, touchedAt: c.now()}
	switch rec.Status {
	case model.StatusPaymentPending:
		s.state = StatePayment
	case model.StatusPaymentFailed:
		s.state = StateFailure
		s.reason = payment.ReasonPaymentFailed
	case model.StatusPaymentSuccess:
		s.state = StateSuccess
	default:
		return nil, fmt.Errorf("%w: %s", ErrBookingClosed, rec.Status)
	}
	if cur := c.sessions.LoadOrStore(token, s); cur != s {
		return cur, nil
	}
	c.logger.Info("booking flow resumed", "token", token, "state", string(s.state))
	return s, nil
}
