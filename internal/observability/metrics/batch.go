// Package metrics exposes Prometheus instrumentation for the batch
// pipeline on a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type BatchMetrics struct {
	registry *prometheus.Registry

	documentTotal    *prometheus.CounterVec
	documentDuration *prometheus.HistogramVec
	documentInFlight prometheus.Gauge
	providerCalls    *prometheus.CounterVec
}

func NewBatchMetrics(provider string) *BatchMetrics {
	registry := prometheus.NewRegistry()

	documentTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invoiceocr",
			Subsystem: "batch",
			Name:      "document_total",
			Help:      "Total processed documents by status.",
		},
		[]string{"provider", "status"},
	)
	documentDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "invoiceocr",
			Subsystem: "batch",
			Name:      "document_duration_seconds",
			Help:      "Per-document processing duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"provider", "status"},
	)
	documentInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "invoiceocr",
			Subsystem: "batch",
			Name:      "document_in_flight",
			Help:      "Number of documents currently being processed.",
			ConstLabels: prometheus.Labels{
				"provider": provider,
			},
		},
	)
	providerCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invoiceocr",
			Subsystem: "batch",
			Name:      "provider_calls_total",
			Help:      "Total vision backend invocations by outcome.",
		},
		[]string{"provider", "outcome"},
	)

	registry.MustRegister(documentTotal, documentDuration, documentInFlight, providerCalls)

	return &BatchMetrics{
		registry:         registry,
		documentTotal:    documentTotal,
		documentDuration: documentDuration,
		documentInFlight: documentInFlight,
		providerCalls:    providerCalls,
	}
}

func (m *BatchMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *BatchMetrics) StartDocument() {
	m.documentInFlight.Inc()
}

func (m *BatchMetrics) FinishDocument(provider string, duration time.Duration, failed bool) {
	m.documentInFlight.Dec()

	status := "success"
	if failed {
		status = "error"
	}

	m.documentTotal.WithLabelValues(provider, status).Inc()
	m.documentDuration.WithLabelValues(provider, status).Observe(duration.Seconds())
}

func (m *BatchMetrics) ObserveProviderCall(provider string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.providerCalls.WithLabelValues(provider, outcome).Inc()
}
