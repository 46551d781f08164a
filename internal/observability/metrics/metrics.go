package metrics

import "github.com/prometheus/client_golang/prometheus"

// ViewingMetrics exposes counters/histograms for the viewing-coordination flows.
type ViewingMetrics struct {
	bookingAttempts *prometheus.CounterVec
	resolverPath    *prometheus.CounterVec
	parserFallbacks *prometheus.CounterVec
	webhookLatency  *prometheus.HistogramVec
	staleCancelled  prometheus.Counter
}

func NewViewingMetrics(reg prometheus.Registerer) *ViewingMetrics {
	m := &ViewingMetrics{
		bookingAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "propchat",
			Subsystem: "viewings",
			Name:      "booking_attempts_total",
			Help:      "Viewing booking attempts by outcome",
		}, []string{"outcome"}),
		resolverPath: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "propchat",
			Subsystem: "viewings",
			Name:      "resolver_path_total",
			Help:      "Availability resolutions by path (rules or fallback)",
		}, []string{"path"}),
		parserFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "propchat",
			Subsystem: "conversation",
			Name:      "parser_fallback_total",
			Help:      "LLM parser calls that degraded to the regex fallback",
		}, []string{"parser"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "propchat",
			Subsystem: "messaging",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of inbound WhatsApp webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		staleCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "propchat",
			Subsystem: "viewings",
			Name:      "stale_cancelled_total",
			Help:      "Stale pending appointments cancelled by the sweeper",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingAttempts, m.resolverPath, m.parserFallbacks, m.webhookLatency, m.staleCancelled)
	return m
}

func (m *ViewingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingAttempts.WithLabelValues(outcome).Inc()
}

func (m *ViewingMetrics) ObserveResolverPath(path string) {
	if m == nil {
		return
	}
	m.resolverPath.WithLabelValues(path).Inc()
}

func (m *ViewingMetrics) ObserveParserFallback(parser string) {
	if m == nil {
		return
	}
	m.parserFallbacks.WithLabelValues(parser).Inc()
}

func (m *ViewingMetrics) ObserveWebhookLatency(route string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(route).Observe(seconds)
}

func (m *ViewingMetrics) AddStaleCancelled(n float64) {
	if m == nil || n <= 0 {
		return
	}
	m.staleCancelled.Add(n)
}
