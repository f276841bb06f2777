package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New("seva")
	m.BookingCreated("rudrabhishek")
	m.Transition("selection", "payment")
	m.Transition("selection", "payment")
	m.PaymentOutcome("hosted", "cancelled", "dismissed")
	m.Notification("email-customer", true)
	m.Notification("kafka", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BookingsCreated.WithLabelValues("rudrabhishek")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FlowTransitions.WithLabelValues("selection", "payment")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PaymentOutcomes.WithLabelValues("hosted", "cancelled", "dismissed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationResults.WithLabelValues("kafka", "failure")))
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	m := New("seva")
	r := mux.NewRouter()
	r.Use(m.Middleware)
	r.HandleFunc("/api/v1/bookings/{token}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodGet)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/bookings/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/bookings/def", nil))

	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPDuration))

	rw := httptest.NewRecorder()
	m.Handler().ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rw.Code)
	assert.True(t, strings.Contains(rw.Body.String(), `route="/api/v1/bookings/{token}"`))
}
