package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Config struct {
	Currency     string
	MerchantName string
	// MaxAmount is the ceiling for a single order in whole currency units.
	MaxAmount   int64
	LoadTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Currency) == "" {
		c.Currency = "INR"
	}
	c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
	if c.MaxAmount <= 0 {
		c.MaxAmount = 100000
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = 10 * time.Second
	}
	return c
}

// Orchestrator wraps a Provider: it loads it, builds orders, opens checkouts and maps
// provider callbacks to Outcomes. It never retries on its own.
type Orchestrator struct {
	provider Provider
	cfg      Config
	logger   *slog.Logger

	loadMu sync.Mutex
	loaded bool

	mu       sync.Mutex
	attempts map[string]*Attempt

	newOrderID func() string
}

type Option func(*Orchestrator)

// WithOrderIDs replaces the generator for locally assigned order ids.
func WithOrderIDs(gen func() string) Option {
	return func(o *Orchestrator) { o.newOrderID = gen }
}

func NewOrchestrator(provider Provider, cfg Config, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:   provider,
		cfg:        cfg.withDefaults(),
		logger:     logger,
		attempts:   map[string]*Attempt{},
		newOrderID: newOrderID,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func newOrderID() string {
	return "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func (o *Orchestrator) ProviderName() string {
	if o.provider == nil {
		return ""
	}
	return o.provider.Name()
}

// LoadProvider returns immediately once the provider has loaded. Failures are not remembered,
// so the next call tries again.
func (o *Orchestrator) LoadProvider(ctx context.Context) error {
	if o.provider == nil {
		return ErrNotConfigured
	}
	o.loadMu.Lock()
	defer o.loadMu.Unlock()
	if o.loaded {
		return nil
	}

	loadCtx, cancel := context.WithTimeout(ctx, o.cfg.LoadTimeout)
	defer cancel()
	if err := o.provider.Load(loadCtx); err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return err
		}
		if errors.Is(loadCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s after %s", ErrLoadTimeout, o.provider.Name(), o.cfg.LoadTimeout)
		}
		return fmt.Errorf("%w: %s: %v", ErrLoadFailed, o.provider.Name(), err)
	}
	o.loaded = true
	return nil
}

// CreateOrder validates amount against the configured ceiling and derives the receipt from the booking id.
func (o *Orchestrator) CreateOrder(amount int64, meta Metadata) (Order, error) {
	if amount <= 0 {
		return Order{}, fmt.Errorf("%w: %d must be positive", ErrInvalidAmount, amount)
	}
	if amount > o.cfg.MaxAmount {
		return Order{}, fmt.Errorf("%w: %d exceeds ceiling %d", ErrInvalidAmount, amount, o.cfg.MaxAmount)
	}
	mode := meta.Mode
	if !mode.Valid() {
		mode = ModeAll
	}
	return Order{
		ID:           o.newOrderID(),
		Receipt:      "rcpt_" + meta.BookingID,
		Amount:       amount,
		AmountMinor:  amount * 100,
		Currency:     o.cfg.Currency,
		MerchantName: o.cfg.MerchantName,
		Description:  meta.Description,
		Mode:         mode,
		Prefill: Prefill{
			Name:    meta.Name,
			Email:   meta.Email,
			Contact: meta.Phone,
		},
		Notes: map[string]string{
			"token":     meta.Token,
			"bookingId": meta.BookingID,
		},
	}, nil
}

// Initiate starts a new attempt for order. The returned Attempt carries the checkout
// descriptor and resolves through Resolve. On error the attempt is already failed.
func (o *Orchestrator) Initiate(ctx context.Context, order Order, meta Metadata) (*Attempt, error) {
	if meta.Mode.Valid() {
		order.Mode = meta.Mode
	}
	attempt := newAttempt(order)

	attempt.advance(StateScriptLoading)
	if err := o.LoadProvider(ctx); err != nil {
		_ = attempt.finish(Outcome{State: StateFailed, Reason: ReasonProviderUnavailable, Message: err.Error()})
		return attempt, err
	}
	attempt.advance(StateReady)

	checkout, err := o.provider.Open(ctx, order)
	if err != nil {
		_ = attempt.finish(Outcome{State: StateFailed, Reason: ReasonProviderUnavailable, Message: err.Error()})
		return attempt, fmt.Errorf("payment: open checkout: %w", err)
	}
	attempt.Checkout = checkout
	attempt.advance(StateAwaitingUserAction)

	o.mu.Lock()
	if prev, ok := o.attempts[checkout.OrderID]; ok {
		_ = prev.finish(Outcome{State: StateCancelled, Reason: ReasonSuperseded})
	}
	o.attempts[checkout.OrderID] = attempt
	o.mu.Unlock()

	o.logger.Info("payment attempt opened",
		"provider", o.provider.Name(),
		"order_id", checkout.OrderID,
		"booking_id", meta.BookingID,
		"amount", order.AmountMinor,
		"mode", string(order.Mode),
	)
	return attempt, nil
}

// Pending returns the open attempt for orderID, if any.
func (o *Orchestrator) Pending(orderID string) (*Attempt, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	a, ok := o.attempts[orderID]
	return a, ok
}

// Forget drops the open attempt for orderID, cancelling it.
func (o *Orchestrator) Forget(orderID string) {
	o.mu.Lock()
	a, ok := o.attempts[orderID]
	delete(o.attempts, orderID)
	o.mu.Unlock()
	if ok {
		_ = a.finish(Outcome{State: StateCancelled, Reason: ReasonDismissed})
	}
}

// Resolve maps a provider callback onto the pending attempt for orderID and finishes it.
// A dismissal and a provider-reported failure stay distinguishable through Outcome.Reason.
func (o *Orchestrator) Resolve(ctx context.Context, orderID string, cb Callback) (Outcome, error) {
	o.mu.Lock()
	attempt, ok := o.attempts[orderID]
	o.mu.Unlock()
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}

	outcome, err := o.outcomeFor(ctx, attempt, cb)
	if err != nil {
		return Outcome{}, err
	}
	if err := attempt.finish(outcome); err != nil {
		return Outcome{}, err
	}

	o.mu.Lock()
	if o.attempts[orderID] == attempt {
		delete(o.attempts, orderID)
	}
	o.mu.Unlock()

	o.logger.Info("payment attempt resolved",
		"provider", o.provider.Name(),
		"order_id", orderID,
		"state", string(outcome.State),
		"reason", outcome.Reason,
	)
	return outcome, nil
}

func (o *Orchestrator) outcomeFor(ctx context.Context, attempt *Attempt, cb Callback) (Outcome, error) {
	switch cb.Event {
	case EventDismissed:
		return Outcome{State: StateCancelled, Reason: ReasonDismissed, Message: "checkout closed before payment"}, nil
	case EventFailed:
		msg := strings.TrimSpace(cb.Reason)
		if msg == "" {
			msg = "payment attempt failed"
		}
		return Outcome{State: StateFailed, Reason: ReasonPaymentFailed, Message: msg}, nil
	case EventSuccess:
	default:
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownEvent, cb.Event)
	}

	if cb.OrderID == "" {
		cb.OrderID = attempt.Checkout.OrderID
	}
	if cb.Amount == 0 {
		cb.Amount = attempt.Order.AmountMinor
	}
	if cb.Currency == "" {
		cb.Currency = attempt.Order.Currency
	}
	if cb.OrderID != attempt.Checkout.OrderID || cb.Amount != attempt.Order.AmountMinor ||
		!strings.EqualFold(cb.Currency, attempt.Order.Currency) {
		return Outcome{State: StateFailed, Reason: ReasonAmountMismatch, Message: "payment does not match the order"}, nil
	}
	if strings.TrimSpace(cb.PaymentID) == "" {
		return Outcome{State: StateFailed, Reason: ReasonVerificationFailed, Message: "missing payment id"}, nil
	}
	if !cb.Verified {
		if err := o.provider.Verify(ctx, cb); err != nil {
			o.logger.Warn("payment callback verification failed", "provider", o.provider.Name(), "order_id", cb.OrderID, "err", err)
			return Outcome{State: StateFailed, Reason: ReasonVerificationFailed, Message: "payment could not be verified"}, nil
		}
	}
	return Outcome{
		State: StateSucceeded,
		Payment: &Success{
			PaymentID: cb.PaymentID,
			OrderID:   cb.OrderID,
			Signature: cb.Signature,
			Amount:    cb.Amount,
			Currency:  strings.ToUpper(cb.Currency),
			Provider:  o.provider.Name(),
		},
	}, nil
}
