package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "staybook"

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry      *prometheus.Registry
	commands      *prometheus.HistogramVec
	conflicts     *prometheus.CounterVec
	statusChanges *prometheus.CounterVec
	httpRequests  *prometheus.HistogramVec
	outboxPending prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Latency of bus commands by outcome.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"command", "outcome"},
		),
		conflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "booking_conflicts_total",
				Help:      "Create requests refused because nights were taken.",
			},
			[]string{"listing_id"},
		),
		statusChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "booking_status_changes_total",
				Help:      "Applied lifecycle transitions.",
			},
			[]string{"from", "to"},
		),
		httpRequests: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		outboxPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "outbox_pending",
				Help:      "Events staged but not yet relayed.",
			},
		),
	}
	m.registry.MustRegister(
		m.commands,
		m.conflicts,
		m.statusChanges,
		m.httpRequests,
		m.outboxPending,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveCommand(name, outcome string, elapsed time.Duration) {
	m.commands.WithLabelValues(name, outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) BookingConflict(listingID string) {
	m.conflicts.WithLabelValues(listingID).Inc()
}

func (m *Metrics) StatusChanged(from, to string) {
	m.statusChanges.WithLabelValues(from, to).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func (m *Metrics) SetOutboxPending(n int) {
	m.outboxPending.Set(float64(n))
}

// Registry exposes the collectors for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) GinHandler() gin.HandlerFunc {
	return gin.WrapH(m.Handler())
}
