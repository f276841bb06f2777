package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/model"
)

// WebhookChannel posts {to, body} to a messaging gateway (WhatsApp/SMS). Operator alerts go to
// the configured operator number, customer confirmations to the phone on the booking.
type WebhookChannel struct {
	url      string
	token    string
	audience Audience
	operator string
	http     *http.Client
}

func NewWebhookChannel(url, token string, audience Audience, operatorPhone string) *WebhookChannel {
	return &WebhookChannel{
		url:      strings.TrimSpace(url),
		token:    strings.TrimSpace(token),
		audience: audience,
		operator: strings.TrimSpace(operatorPhone),
		http:     &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *WebhookChannel) Name() string       { return "whatsapp-" + string(c.audience) }
func (c *WebhookChannel) Audience() Audience { return c.audience }

func (c *WebhookChannel) Send(ctx context.Context, s model.Summary) error {
	if c.url == "" {
		return fmt.Errorf("%w: webhook url", ErrNotConfigured)
	}
	to, body := s.Phone, customerText(s)
	if c.audience == AudienceOperator {
		to, body = c.operator, operatorText(s)
	}
	if to == "" {
		return fmt.Errorf("%w: recipient", ErrNotConfigured)
	}

	raw, err := json.Marshal(map[string]string{
		"to":        to,
		"body":      body,
		"bookingId": s.BookingID,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
