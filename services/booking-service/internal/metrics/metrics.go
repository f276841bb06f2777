package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/md-rashed-zaman/sevabook/libs/httpx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the service's collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	BookingsCreated     *prometheus.CounterVec
	FlowTransitions     *prometheus.CounterVec
	PaymentOutcomes     *prometheus.CounterVec
	NotificationResults *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
}

func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		BookingsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "Booking records created, by service.",
		}, []string{"service"}),
		FlowTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_transitions_total",
			Help:      "Booking flow state transitions.",
		}, []string{"from", "to"}),
		PaymentOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_outcomes_total",
			Help:      "Resolved payment attempts, by provider, state and reason.",
		}, []string{"provider", "state", "reason"}),
		NotificationResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_results_total",
			Help:      "Notification deliveries, by channel and result.",
		}, []string{"channel", "result"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route template and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}
	m.registry.MustRegister(
		m.BookingsCreated,
		m.FlowTransitions,
		m.PaymentOutcomes,
		m.NotificationResults,
		m.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Transition counts a flow state change.
func (m *Metrics) Transition(from, to string) {
	m.FlowTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) BookingCreated(service string) {
	m.BookingsCreated.WithLabelValues(service).Inc()
}

func (m *Metrics) PaymentOutcome(provider, state, reason string) {
	m.PaymentOutcomes.WithLabelValues(provider, state, reason).Inc()
}

func (m *Metrics) Notification(channel string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	m.NotificationResults.WithLabelValues(channel, result).Inc()
}

// Middleware observes request latency labelled with the matched gorilla/mux route template,
// so per-token paths do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := httpx.NewStatusRecorder(w)
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		m.HTTPDuration.WithLabelValues(r.Method, route, strconv.Itoa(sw.Code())).Observe(time.Since(start).Seconds())
	})
}
