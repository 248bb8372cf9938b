// Package metrics exposes certificate issuance counters on a private
// Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	generated  prometheus.Counter
	failures   *prometheus.CounterVec
	emailsSent prometheus.Counter
	completion prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		generated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "certificates_generated_total",
			Help: "Certificates rendered and stored.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "certificate_failures_total",
			Help: "Per-student certificate failures by stage.",
		}, []string{"stage"}),
		emailsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "certificate_emails_sent_total",
			Help: "Certificate emails handed to the mail transport.",
		}),
		completion: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "course_completion_duration_seconds",
			Help:    "Wall time of a course completion run.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
	m.registry.MustRegister(
		m.generated,
		m.failures,
		m.emailsSent,
		m.completion,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) CertificateGenerated() { m.generated.Inc() }

func (m *Metrics) CertificateFailed(stage string) { m.failures.WithLabelValues(stage).Inc() }

func (m *Metrics) EmailSent() { m.emailsSent.Inc() }

func (m *Metrics) CompletionFinished(d time.Duration) { m.completion.Observe(d.Seconds()) }

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
