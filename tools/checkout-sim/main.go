package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79/webhook"
)

func main() {
	var (
		baseURL   = flag.String("base-url", getenv("BASE_URL", "http://localhost:8080"), "booking service base url")
		mode      = flag.String("mode", getenv("SIM_MODE", "hosted"), "hosted or stripe")
		token     = flag.String("token", getenv("BOOKING_TOKEN", ""), "booking token")
		event     = flag.String("event", getenv("SIM_EVENT", "success"), "success, dismissed or failed")
		paymentID = flag.String("payment-id", getenv("PAYMENT_ID", ""), "provider payment id (default generated)")
		secret    = flag.String("secret", getenv("PAYMENT_KEY_SECRET", ""), "hosted key secret, or stripe webhook secret (whsec_...)")
		amount    = flag.Int64("amount", 0, "stripe mode: amount in minor units")
		currency  = flag.String("currency", getenv("PAYMENT_CURRENCY", "inr"), "stripe mode: currency")
	)
	flag.Parse()

	if strings.TrimSpace(*token) == "" {
		fatal("BOOKING_TOKEN is required")
	}
	now := time.Now().UTC()
	if *paymentID == "" {
		*paymentID = fmt.Sprintf("pay_sim_%d", now.UnixNano())
	}
	base := strings.TrimRight(*baseURL, "/")

	switch *mode {
	case "hosted":
		orderID, err := openCheckout(base, *token)
		if err != nil {
			fatal(err.Error())
		}
		body := callbackBody(*event, orderID, *paymentID, *secret)
		status, out, err := post(base+"/api/v1/bookings/"+*token+"/payment/callback", body, nil)
		if err != nil {
			fatal(err.Error())
		}
		fmt.Printf("status=%d order=%s\n%s\n", status, orderID, out)
	case "stripe":
		if strings.TrimSpace(*secret) == "" {
			fatal("STRIPE webhook secret is required")
		}
		if *amount <= 0 {
			fatal("-amount is required in stripe mode")
		}
		payload, err := stripeEvent(fmt.Sprintf("evt_sim_%d", now.UnixNano()), *event, now, *token, *paymentID, *amount, *currency)
		if err != nil {
			fatal(err.Error())
		}
		signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
			Payload:   payload,
			Secret:    *secret,
			Timestamp: now,
			Scheme:    "v1",
		})
		status, out, err := post(base+"/api/v1/payments/stripe/webhook", payload, map[string]string{"Stripe-Signature": signed.Header})
		if err != nil {
			fatal(err.Error())
		}
		fmt.Printf("status=%d\n%s\n", status, out)
	default:
		fatal("unsupported mode: " + *mode)
	}
}

// openCheckout starts a payment for token and returns its order id.
func openCheckout(base, token string) (string, error) {
	status, out, err := post(base+"/api/v1/bookings/"+token+"/payment", []byte(`{"mode":"all"}`), nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("start payment: status=%d %s", status, out)
	}
	var co struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(out, &co); err != nil {
		return "", fmt.Errorf("decode checkout: %w", err)
	}
	return co.OrderID, nil
}

// callbackBody mirrors what checkout.js hands the page: a success carries the HMAC-SHA256 of
// "orderId|paymentId" under the key secret.
func callbackBody(event, orderID, paymentID, secret string) []byte {
	body := map[string]any{"event": event, "orderId": orderID}
	switch event {
	case "success":
		body["paymentId"] = paymentID
		if secret != "" {
			mac := hmac.New(sha256.New, []byte(secret))
			mac.Write([]byte(orderID + "|" + paymentID))
			body["signature"] = hex.EncodeToString(mac.Sum(nil))
		}
	case "failed":
		body["reason"] = "simulated decline"
	}
	raw, _ := json.Marshal(body)
	return raw
}

func stripeEvent(eventID, event string, t time.Time, token, paymentID string, amount int64, currency string) ([]byte, error) {
	var eventType, status string
	switch event {
	case "success":
		eventType, status = "payment_intent.succeeded", "succeeded"
	case "failed":
		eventType, status = "payment_intent.payment_failed", "requires_payment_method"
	case "dismissed":
		eventType, status = "payment_intent.canceled", "canceled"
	default:
		return nil, fmt.Errorf("unsupported event: %s", event)
	}
	intent := map[string]any{
		"id":       "pi_sim_" + token,
		"object":   "payment_intent",
		"amount":   amount,
		"currency": strings.ToLower(currency),
		"status":   status,
		"metadata": map[string]any{"token": token},
	}
	if event == "success" {
		intent["amount_received"] = amount
		intent["latest_charge"] = paymentID
	}
	return json.Marshal(map[string]any{
		"id":          eventID,
		"object":      "event",
		"created":     t.Unix(),
		"type":        eventType,
		"api_version": "2020-08-27",
		"data":        map[string]any{"object": intent},
	})
}

func post(url string, body []byte, headers map[string]string) (int, []byte, error) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, out, err
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
