package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors shared by the three services.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	edgeDecisions   *prometheus.CounterVec
	tokenIssuance   *prometheus.CounterVec
	intentDecisions *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics registers the collectors on a fresh registry
func NewMetrics(service string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return NewMetricsWith(reg, reg, service)
}

// NewMetricsWith registers the collectors on reg and serves them from g
func NewMetricsWith(reg prometheus.Registerer, g prometheus.Gatherer, service string) *Metrics {
	factory := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"service": service}, reg))

	return &Metrics{
		gatherer: g,
		edgeDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edge_decisions_total",
				Help: "Gateway authorization decisions by outcome",
			},
			[]string{"decision"},
		),
		tokenIssuance: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_issuance_total",
				Help: "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		intentDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_intent_decisions_total",
				Help: "Chat intent authorization decisions",
			},
			[]string{"intent", "decision"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status"},
		),
	}
}

// RecordEdgeDecision counts one gateway decision (forward, public, unauthenticated, forbidden)
func (m *Metrics) RecordEdgeDecision(decision string) {
	if m == nil {
		return
	}
	m.edgeDecisions.WithLabelValues(decision).Inc()
}

// RecordTokenIssuance counts one login outcome (issued, rejected, unavailable, error)
func (m *Metrics) RecordTokenIssuance(outcome string) {
	if m == nil {
		return
	}
	m.tokenIssuance.WithLabelValues(outcome).Inc()
}

// RecordIntentDecision counts one chat authorization decision
func (m *Metrics) RecordIntentDecision(intent string, allowed bool) {
	if m == nil {
		return
	}
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	m.intentDecisions.WithLabelValues(intent, decision).Inc()
}

// ObserveRequest records the duration of one HTTP request
func (m *Metrics) ObserveRequest(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
