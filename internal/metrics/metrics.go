// Package metrics holds the Prometheus collectors for the HTTP surface.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// HTTP counts webhook and retry requests by result. A nil *HTTP records nothing.
type HTTP struct {
	WebhooksTotal *prometheus.CounterVec
	RetriesTotal  *prometheus.CounterVec
	HandleSeconds *prometheus.HistogramVec
}

// NewHTTP creates the collectors and registers them with reg.
func NewHTTP(reg prometheus.Registerer) *HTTP {
	m := &HTTP{
		WebhooksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_events_total",
				Help: "Webhook notifications by routing outcome",
			},
			[]string{"outcome"},
		),
		RetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "manual_retries_total",
				Help: "Manual retry requests by result",
			},
			[]string{"result"},
		),
		HandleSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_handle_duration_seconds",
				Help:    "Duration of webhook and retry handling",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
	reg.MustRegister(m.WebhooksTotal, m.RetriesTotal, m.HandleSeconds)
	return m
}

func (m *HTTP) Webhook(outcome string) {
	if m == nil {
		return
	}
	m.WebhooksTotal.WithLabelValues(outcome).Inc()
}

func (m *HTTP) Retry(result string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(result).Inc()
}

func (m *HTTP) Observe(route string, seconds float64) {
	if m == nil {
		return
	}
	m.HandleSeconds.WithLabelValues(route).Observe(seconds)
}
