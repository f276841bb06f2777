package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const DefaultScriptURL = "https://checkout.razorpay.com/v1/checkout.js"

type HostedConfig struct {
	KeyID     string
	KeySecret string
	ScriptURL string
	// SingleMethod is offered when the checkout runs in single-method mode.
	SingleMethod string
	HTTPClient   *http.Client
}

// HostedProvider drives a checkout.js style gateway: the browser loads the provider script and
// opens the dialog with the descriptor returned by Open. Signature verification only runs when
// a key secret is configured.
type HostedProvider struct {
	cfg HostedConfig
}

func NewHostedProvider(cfg HostedConfig) *HostedProvider {
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	cfg.KeySecret = strings.TrimSpace(cfg.KeySecret)
	if cfg.ScriptURL == "" {
		cfg.ScriptURL = DefaultScriptURL
	}
	if cfg.SingleMethod == "" {
		cfg.SingleMethod = "upi"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HostedProvider{cfg: cfg}
}

func (p *HostedProvider) Name() string { return "hosted" }

// Load checks that the checkout script is being served.
func (p *HostedProvider) Load(ctx context.Context) error {
	if p.cfg.KeyID == "" {
		return fmt.Errorf("%w: missing publishable key", ErrNotConfigured)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.cfg.ScriptURL, nil)
	if err != nil {
		return err
	}
	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("checkout script returned status %d", resp.StatusCode)
	}
	return nil
}

func (p *HostedProvider) Open(_ context.Context, order Order) (Checkout, error) {
	if p.cfg.KeyID == "" {
		return Checkout{}, fmt.Errorf("%w: missing publishable key", ErrNotConfigured)
	}
	method := MethodConfig{Mode: ModeAll}
	if order.Mode == ModeSingle {
		method = MethodConfig{Mode: ModeSingle, Methods: []string{p.cfg.SingleMethod}}
	}
	return Checkout{
		Provider:     p.Name(),
		Key:          p.cfg.KeyID,
		ScriptURL:    p.cfg.ScriptURL,
		OrderID:      order.ID,
		Amount:       order.AmountMinor,
		Currency:     order.Currency,
		MerchantName: order.MerchantName,
		Description:  order.Description,
		Receipt:      order.Receipt,
		Prefill:      order.Prefill,
		Method:       method,
	}, nil
}

func (p *HostedProvider) Verify(_ context.Context, cb Callback) error {
	if p.cfg.KeySecret == "" {
		return nil
	}
	if !hmac.Equal([]byte(Sign(p.cfg.KeySecret, cb.OrderID, cb.PaymentID)), []byte(cb.Signature)) {
		return ErrVerification
	}
	return nil
}

// Sign computes the hex HMAC-SHA256 of "orderID|paymentID" the way the gateway signs success callbacks.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
