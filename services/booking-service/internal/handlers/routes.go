package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Routes mounts the public API on r. webhooks and assist may be nil.
func Routes(r *mux.Router, bookings *BookingHandler, webhooks *WebhookHandler, assist *AssistantHandler) {
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/catalog", bookings.Catalog).Methods(http.MethodGet)
	api.HandleFunc("/bookings", bookings.Create).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{token}", bookings.Get).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{token}/payment", bookings.StartPayment).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{token}/payment/callback", bookings.Callback).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{token}/retry", bookings.Retry).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{token}/back", bookings.Back).Methods(http.MethodPost)

	if webhooks != nil {
		api.HandleFunc("/payments/stripe/webhook", webhooks.Stripe).Methods(http.MethodPost)
	}
	if assist != nil {
		api.HandleFunc("/assistant", assist.Generate).Methods(http.MethodPost)
	}
}
