package payment

import (
	"context"
	"errors"
)

var (
	ErrNotConfigured  = errors.New("payment: provider not configured")
	ErrInvalidAmount  = errors.New("payment: invalid amount")
	ErrLoadTimeout    = errors.New("payment: provider load timed out")
	ErrLoadFailed     = errors.New("payment: provider failed to load")
	ErrUnknownOrder   = errors.New("payment: no pending attempt for order")
	ErrAttemptClosed  = errors.New("payment: attempt already resolved")
	ErrVerification   = errors.New("payment: callback verification failed")
	ErrUnknownEvent   = errors.New("payment: unknown callback event")
	ErrIgnoredWebhook = errors.New("payment: webhook event not handled")
)

// Mode selects which payment methods the checkout offers.
type Mode string

const (
	ModeAll    Mode = "all"
	ModeSingle Mode = "single"
)

func (m Mode) Valid() bool { return m == ModeAll || m == ModeSingle }

// Metadata is what the orchestrator needs to know about the booking being paid for.
type Metadata struct {
	Token       string
	BookingID   string
	Name        string
	Email       string
	Phone       string
	Description string
	Mode        Mode
}

type Prefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

type MethodConfig struct {
	Mode    Mode     `json:"mode"`
	Methods []string `json:"methods,omitempty"`
}

// Order is built server side from the catalog price. Amount is in whole units, AmountMinor in paise/cents.
type Order struct {
	ID           string            `json:"orderId"`
	Receipt      string            `json:"receipt"`
	Amount       int64             `json:"amount"`
	AmountMinor  int64             `json:"amountMinor"`
	Currency     string            `json:"currency"`
	MerchantName string            `json:"merchantName"`
	Description  string            `json:"description"`
	Mode         Mode              `json:"mode"`
	Prefill      Prefill           `json:"prefill"`
	Notes        map[string]string `json:"notes,omitempty"`
}

// Checkout is everything a browser needs to open the provider's hosted checkout.
type Checkout struct {
	Provider     string       `json:"provider"`
	Key          string       `json:"key"`
	ScriptURL    string       `json:"scriptUrl,omitempty"`
	OrderID      string       `json:"orderId"`
	Amount       int64        `json:"amount"`
	Currency     string       `json:"currency"`
	MerchantName string       `json:"name"`
	Description  string       `json:"description"`
	Receipt      string       `json:"receipt"`
	Prefill      Prefill      `json:"prefill"`
	Method       MethodConfig `json:"method"`
	ClientSecret string       `json:"clientSecret,omitempty"`
}

// CallbackEvent distinguishes the three ways a checkout can end.
type CallbackEvent string

const (
	EventSuccess   CallbackEvent = "success"
	EventDismissed CallbackEvent = "dismissed"
	EventFailed    CallbackEvent = "failed"
)

// Callback is the raw report from the provider, relayed by the browser or a webhook.
type Callback struct {
	Event     CallbackEvent `json:"event"`
	PaymentID string        `json:"paymentId,omitempty"`
	OrderID   string        `json:"orderId,omitempty"`
	Signature string        `json:"signature,omitempty"`
	Amount    int64         `json:"amount,omitempty"`
	Currency  string        `json:"currency,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	// Verified is set when the callback arrived through an authenticated channel such as a signed webhook.
	Verified bool `json:"-"`
}

// State of a single payment attempt.
type State string

const (
	StateNotStarted         State = "not_started"
	StateScriptLoading      State = "script_loading"
	StateReady              State = "ready"
	StateAwaitingUserAction State = "awaiting_user_action"
	StateSucceeded          State = "succeeded"
	StateFailed             State = "failed"
	StateCancelled          State = "cancelled"
)

func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// Reason codes carried by failed and cancelled outcomes.
const (
	ReasonDismissed           = "dismissed"
	ReasonPaymentFailed       = "payment_failed"
	ReasonVerificationFailed  = "verification_failed"
	ReasonAmountMismatch      = "amount_mismatch"
	ReasonProviderUnavailable = "provider_unavailable"
	ReasonSuperseded          = "superseded"
)

// Success is the normalized provider success payload.
type Success struct {
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
	Signature string `json:"signature,omitempty"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Provider  string `json:"provider"`
}

// Outcome is the single tagged result of an attempt: Payment is set only when State is StateSucceeded.
type Outcome struct {
	State   State    `json:"state"`
	Payment *Success `json:"payment,omitempty"`
	Reason  string   `json:"reason,omitempty"`
	Message string   `json:"message,omitempty"`
}

func (o Outcome) Succeeded() bool { return o.State == StateSucceeded && o.Payment != nil }

// Provider is an external hosted checkout.
type Provider interface {
	Name() string
	// Load makes sure the provider's client library is reachable. It is called at most
	// until it first succeeds.
	Load(ctx context.Context) error
	Open(ctx context.Context, order Order) (Checkout, error)
	Verify(ctx context.Context, cb Callback) error
}
