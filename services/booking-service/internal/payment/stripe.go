package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

const stripeMaxIntentGenerations = 8

type StripeConfig struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
	Tolerance      time.Duration
	// Backends overrides the Stripe API endpoints; nil means the live API.
	Backends *stripe.Backends
}

// StripeProvider creates one PaymentIntent per attempt. The browser confirms it with Stripe.js;
// success is checked against the PaymentIntent itself or reported by a signed webhook.
type StripeProvider struct {
	cfg StripeConfig
	sc  *client.API
}

func NewStripeProvider(cfg StripeConfig) *StripeProvider {
	cfg.SecretKey = strings.TrimSpace(cfg.SecretKey)
	cfg.PublishableKey = strings.TrimSpace(cfg.PublishableKey)
	cfg.WebhookSecret = strings.TrimSpace(cfg.WebhookSecret)
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 5 * time.Minute
	}
	sc := &client.API{}
	sc.Init(cfg.SecretKey, cfg.Backends)
	return &StripeProvider{cfg: cfg, sc: sc}
}

func (p *StripeProvider) Name() string { return "stripe" }

// Load only checks configuration; Stripe.js is loaded by the browser from js.stripe.com.
func (p *StripeProvider) Load(context.Context) error {
	if p.cfg.SecretKey == "" || p.cfg.PublishableKey == "" {
		return fmt.Errorf("%w: stripe keys missing", ErrNotConfigured)
	}
	return nil
}

func (p *StripeProvider) Open(ctx context.Context, order Order) (Checkout, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(order.AmountMinor),
		Currency:    stripe.String(strings.ToLower(order.Currency)),
		Description: stripe.String(order.Description),
	}
	params.Context = ctx
	method := MethodConfig{Mode: ModeAll}
	if order.Mode == ModeSingle {
		params.PaymentMethodTypes = stripe.StringSlice([]string{"card"})
		method = MethodConfig{Mode: ModeSingle, Methods: []string{"card"}}
	} else {
		params.AutomaticPaymentMethods = &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		}
	}
	if order.Prefill.Email != "" {
		params.ReceiptEmail = stripe.String(order.Prefill.Email)
	}
	params.AddMetadata("receipt", order.Receipt)
	params.AddMetadata("local_order_id", order.ID)
	for k, v := range order.Notes {
		params.AddMetadata(k, v)
	}
	pi, err := p.newIntent(params, order.ID+":"+string(method.Mode))
	if err != nil {
		return Checkout{}, err
	}
	return Checkout{
		Provider:     p.Name(),
		Key:          p.cfg.PublishableKey,
		OrderID:      pi.ID,
		Amount:       order.AmountMinor,
		Currency:     order.Currency,
		MerchantName: order.MerchantName,
		Description:  order.Description,
		Receipt:      order.Receipt,
		Prefill:      order.Prefill,
		Method:       method,
		ClientSecret: pi.ClientSecret,
	}, nil
}

// newIntent creates the PaymentIntent idempotently. A replayed intent that was cancelled in
// the meantime cannot be paid, so the key is extended with a generation suffix until Stripe
// hands back a live intent. The suffix sequence is deterministic and later retries replay it.
func (p *StripeProvider) newIntent(params *stripe.PaymentIntentParams, key string) (*stripe.PaymentIntent, error) {
	for gen := 0; gen < stripeMaxIntentGenerations; gen++ {
		params.IdempotencyKey = stripe.String(key)
		if gen > 0 {
			params.IdempotencyKey = stripe.String(key + ":" + strconv.Itoa(gen))
		}
		pi, err := p.sc.PaymentIntents.New(params)
		if err != nil {
			return nil, err
		}
		if pi.Status != stripe.PaymentIntentStatusCanceled {
			return pi, nil
		}
	}
	return nil, fmt.Errorf("payment: every payment intent for %s is cancelled", key)
}

// Verify confirms with Stripe that the PaymentIntent actually succeeded for the reported amount.
func (p *StripeProvider) Verify(ctx context.Context, cb Callback) error {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := p.sc.PaymentIntents.Get(cb.OrderID, params)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerification, err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return fmt.Errorf("%w: payment intent status %s", ErrVerification, pi.Status)
	}
	if pi.AmountReceived != 0 && pi.AmountReceived != cb.Amount {
		return fmt.Errorf("%w: received %d, expected %d", ErrVerification, pi.AmountReceived, cb.Amount)
	}
	return nil
}

// WebhookEvent is a verified Stripe event translated into a payment callback.
type WebhookEvent struct {
	EventID  string
	Token    string
	Callback Callback
}

// ParseWebhook verifies the Stripe-Signature header and maps PaymentIntent events to callbacks.
// Events that do not concern a booking return ErrIgnoredWebhook.
func (p *StripeProvider) ParseWebhook(payload []byte, sigHeader string) (WebhookEvent, error) {
	if p.cfg.WebhookSecret == "" {
		return WebhookEvent{}, fmt.Errorf("%w: webhook secret missing", ErrNotConfigured)
	}
	evt, err := webhook.ConstructEventWithOptions(payload, sigHeader, p.cfg.WebhookSecret, webhook.ConstructEventOptions{
		Tolerance:                p.cfg.Tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrVerification, err)
	}

	var event CallbackEvent
	switch evt.Type {
	case "payment_intent.succeeded":
		event = EventSuccess
	case "payment_intent.payment_failed":
		event = EventFailed
	case "payment_intent.canceled":
		event = EventDismissed
	default:
		return WebhookEvent{EventID: evt.ID}, ErrIgnoredWebhook
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
		return WebhookEvent{}, fmt.Errorf("payment: invalid payment intent payload: %w", err)
	}
	token := strings.TrimSpace(pi.Metadata["token"])
	if token == "" {
		return WebhookEvent{EventID: evt.ID}, ErrIgnoredWebhook
	}

	cb := Callback{
		Event:    event,
		OrderID:  pi.ID,
		Amount:   pi.Amount,
		Currency: strings.ToUpper(string(pi.Currency)),
		Verified: true,
	}
	if event == EventSuccess {
		cb.PaymentID = pi.ID
		if pi.LatestCharge != nil && pi.LatestCharge.ID != "" {
			cb.PaymentID = pi.LatestCharge.ID
		}
		if pi.AmountReceived != 0 {
			cb.Amount = pi.AmountReceived
		}
	}
	if pi.LastPaymentError != nil {
		cb.Reason = pi.LastPaymentError.Msg
	}
	return WebhookEvent{EventID: evt.ID, Token: token, Callback: cb}, nil
}
