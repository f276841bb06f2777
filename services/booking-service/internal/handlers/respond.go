package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/flow"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/payment"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/storage"
)

const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return false
	}
	return true
}

// statusFor maps flow and payment errors onto HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "booking not found"
	case errors.Is(err, flow.ErrInvalidState), errors.Is(err, flow.ErrNoBooking),
		errors.Is(err, payment.ErrUnknownOrder), errors.Is(err, payment.ErrAttemptClosed):
		return http.StatusConflict, err.Error()
	case errors.Is(err, flow.ErrBookingClosed):
		return http.StatusGone, err.Error()
	case errors.Is(err, payment.ErrNotConfigured), errors.Is(err, payment.ErrLoadTimeout), errors.Is(err, payment.ErrLoadFailed):
		return http.StatusServiceUnavailable, "payment provider unavailable"
	case errors.Is(err, payment.ErrInvalidAmount), errors.Is(err, flow.ErrUnknownEntry):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, payment.ErrUnknownEvent):
		return http.StatusBadRequest, err.Error()
	}
	return http.StatusInternalServerError, "internal error"
}
