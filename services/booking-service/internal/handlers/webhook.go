package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/flow"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/payment"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/storage"
)

// WebhookParser verifies a provider webhook and translates it. *payment.StripeProvider satisfies it.
type WebhookParser interface {
	ParseWebhook(payload []byte, sigHeader string) (payment.WebhookEvent, error)
}

type WebhookHandler struct {
	parser WebhookParser
	flow   *flow.Controller
	logger *slog.Logger
}

func NewWebhookHandler(parser WebhookParser, ctrl *flow.Controller, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{parser: parser, flow: ctrl, logger: logger}
}

type webhookResponse struct {
	Received bool   `json:"received"`
	Applied  bool   `json:"applied"`
	Note     string `json:"note,omitempty"`
}

// Stripe acknowledges every authentic event it cannot act on with 200 so Stripe stops
// redelivering it. Only storage trouble is reported as a 5xx.
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		return
	}

	evt, err := h.parser.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
	case errors.Is(err, payment.ErrIgnoredWebhook):
		writeJSON(w, http.StatusOK, webhookResponse{Received: true, Note: "ignored"})
		return
	case errors.Is(err, payment.ErrNotConfigured):
		http.Error(w, "webhooks not configured", http.StatusServiceUnavailable)
		return
	default:
		h.logger.Warn("stripe webhook rejected", "err", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	log := h.logger.With("event_id", evt.EventID, "token", evt.Token, "event", string(evt.Callback.Event))
	sess, err := h.flow.Resume(r.Context(), evt.Token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, flow.ErrBookingClosed) {
			log.Warn("stripe webhook for unknown booking", "err", err)
			writeJSON(w, http.StatusOK, webhookResponse{Received: true, Note: "unknown booking"})
			return
		}
		log.Error("stripe webhook resume failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	v, err := h.flow.Resolve(r.Context(), sess, evt.Callback)
	switch {
	case err == nil:
		log.Info("stripe webhook applied", "state", string(v.State))
		writeJSON(w, http.StatusOK, webhookResponse{Received: true, Applied: true})
	case errors.Is(err, flow.ErrInvalidState), errors.Is(err, payment.ErrUnknownOrder), errors.Is(err, payment.ErrAttemptClosed):
		log.Info("stripe webhook already settled", "state", string(v.State), "err", err)
		writeJSON(w, http.StatusOK, webhookResponse{Received: true, Note: "already settled"})
	default:
		log.Error("stripe webhook apply failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
