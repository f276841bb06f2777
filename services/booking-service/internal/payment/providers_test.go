package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

func TestHostedProvider(t *testing.T) {
	script := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer script.Close()

	p := NewHostedProvider(HostedConfig{KeyID: "rzp_test_key", KeySecret: "shh", ScriptURL: script.URL})
	require.NoError(t, p.Load(context.Background()))

	co, err := p.Open(context.Background(), Order{ID: "order_9", AmountMinor: 25100, Currency: "INR", Mode: ModeSingle, Receipt: "rcpt_BK1"})
	require.NoError(t, err)
	assert.Equal(t, "rzp_test_key", co.Key)
	assert.Equal(t, script.URL, co.ScriptURL)
	assert.Equal(t, MethodConfig{Mode: ModeSingle, Methods: []string{"upi"}}, co.Method)

	good := Callback{OrderID: "order_9", PaymentID: "pay_1", Signature: Sign("shh", "order_9", "pay_1")}
	assert.NoError(t, p.Verify(context.Background(), good))
	bad := good
	bad.Signature = "deadbeef"
	assert.ErrorIs(t, p.Verify(context.Background(), bad), ErrVerification)
}

func TestHostedProviderWithoutSecretSkipsVerification(t *testing.T) {
	p := NewHostedProvider(HostedConfig{KeyID: "rzp_test_key"})
	assert.NoError(t, p.Verify(context.Background(), Callback{Signature: "anything"}))
}

func TestHostedProviderNotConfigured(t *testing.T) {
	p := NewHostedProvider(HostedConfig{})
	assert.ErrorIs(t, p.Load(context.Background()), ErrNotConfigured)
}

func TestHostedProviderScriptMissing(t *testing.T) {
	script := httptest.NewServer(http.NotFoundHandler())
	defer script.Close()
	p := NewHostedProvider(HostedConfig{KeyID: "k", ScriptURL: script.URL})
	assert.Error(t, p.Load(context.Background()))
}

func fakeStripe(t *testing.T) *stripe.Backends {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/payment_intents":
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "25100", r.PostForm.Get("amount"))
			assert.Equal(t, "inr", r.PostForm.Get("currency"))
			assert.Equal(t, "tok", r.PostForm.Get("metadata[token]"))
			_, _ = w.Write([]byte(`{"id":"pi_123","object":"payment_intent","amount":25100,"currency":"inr","client_secret":"pi_123_secret_x","status":"requires_payment_method"}`))
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/payment_intents/pi_123"):
			_, _ = w.Write([]byte(`{"id":"pi_123","object":"payment_intent","amount":25100,"amount_received":25100,"currency":"inr","status":"succeeded"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"not found"}}`))
		}
	}))
	t.Cleanup(srv.Close)

	cfg := &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	}
	api := stripe.GetBackendWithConfig(stripe.APIBackend, cfg)
	return &stripe.Backends{API: api, Connect: api, Uploads: api}
}

func TestStripeProviderOpenAndVerify(t *testing.T) {
	backends := fakeStripe(t)
	p := NewStripeProvider(StripeConfig{SecretKey: "sk_test_x", PublishableKey: "pk_test_x", Backends: backends})
	require.NoError(t, p.Load(context.Background()))

	co, err := p.Open(context.Background(), Order{
		ID: "order_1", AmountMinor: 25100, Currency: "INR", Mode: ModeAll,
		Notes: map[string]string{"token": "tok", "bookingId": "BK1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_123", co.OrderID)
	assert.Equal(t, "pi_123_secret_x", co.ClientSecret)
	assert.Equal(t, "pk_test_x", co.Key)

	require.NoError(t, p.Verify(context.Background(), Callback{OrderID: "pi_123", Amount: 25100}))
	assert.ErrorIs(t, p.Verify(context.Background(), Callback{OrderID: "pi_123", Amount: 100}), ErrVerification)
}

func TestStripeProviderSkipsCancelledIntent(t *testing.T) {
	var keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		key := r.Header.Get("Idempotency-Key")
		keys = append(keys, key)
		if key == "order_1:all" {
			_, _ = w.Write([]byte(`{"id":"pi_old","object":"payment_intent","amount":25100,"currency":"inr","status":"canceled"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"pi_new","object":"payment_intent","amount":25100,"currency":"inr","client_secret":"pi_new_secret","status":"requires_payment_method"}`))
	}))
	defer srv.Close()

	api := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	p := NewStripeProvider(StripeConfig{
		SecretKey:      "sk_test_x",
		PublishableKey: "pk_test_x",
		Backends:       &stripe.Backends{API: api, Connect: api, Uploads: api},
	})

	co, err := p.Open(context.Background(), Order{ID: "order_1", AmountMinor: 25100, Currency: "INR", Mode: ModeAll})
	require.NoError(t, err)
	assert.Equal(t, "pi_new", co.OrderID)
	assert.Equal(t, "pi_new_secret", co.ClientSecret)
	assert.Equal(t, []string{"order_1:all", "order_1:all:1"}, keys)
}

func TestStripeProviderNotConfigured(t *testing.T) {
	p := NewStripeProvider(StripeConfig{})
	assert.ErrorIs(t, p.Load(context.Background()), ErrNotConfigured)
	_, err := p.ParseWebhook([]byte("{}"), "t=1,v1=x")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func signedStripeEvent(t *testing.T, secret, eventType string, object map[string]any) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_test_1",
		"object":      "event",
		"type":        eventType,
		"created":     time.Now().Unix(),
		"api_version": "2020-08-27",
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return payload, signed.Header
}

func TestStripeParseWebhook(t *testing.T) {
	p := NewStripeProvider(StripeConfig{SecretKey: "sk", PublishableKey: "pk", WebhookSecret: "whsec_test"})

	payload, header := signedStripeEvent(t, "whsec_test", "payment_intent.succeeded", map[string]any{
		"id":              "pi_123",
		"object":          "payment_intent",
		"amount":          25100,
		"amount_received": 25100,
		"currency":        "inr",
		"status":          "succeeded",
		"latest_charge":   "ch_9",
		"metadata":        map[string]any{"token": "tok"},
	})
	evt, err := p.ParseWebhook(payload, header)
	require.NoError(t, err)
	assert.Equal(t, "tok", evt.Token)
	assert.Equal(t, Callback{
		Event: EventSuccess, PaymentID: "ch_9", OrderID: "pi_123", Amount: 25100, Currency: "INR", Verified: true,
	}, evt.Callback)

	payload, header = signedStripeEvent(t, "whsec_test", "payment_intent.payment_failed", map[string]any{
		"id":                 "pi_123",
		"object":             "payment_intent",
		"amount":             25100,
		"currency":           "inr",
		"metadata":           map[string]any{"token": "tok"},
		"last_payment_error": map[string]any{"message": "Your card was declined."},
	})
	evt, err = p.ParseWebhook(payload, header)
	require.NoError(t, err)
	assert.Equal(t, EventFailed, evt.Callback.Event)
	assert.Equal(t, "Your card was declined.", evt.Callback.Reason)

	payload, header = signedStripeEvent(t, "whsec_test", "charge.refunded", map[string]any{"id": "ch_1", "object": "charge"})
	_, err = p.ParseWebhook(payload, header)
	assert.ErrorIs(t, err, ErrIgnoredWebhook)

	_, header = signedStripeEvent(t, "wrong_secret", "payment_intent.succeeded", map[string]any{"id": "pi_1"})
	_, err = p.ParseWebhook(payload, header)
	assert.ErrorIs(t, err, ErrVerification)
}
