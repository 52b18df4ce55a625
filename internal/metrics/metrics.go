// Package metrics holds the engine's Prometheus collectors. Every method
// is safe on a nil *Metrics so library callers can leave metrics off.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors for one engine instance.
type Metrics struct {
	extractions *prometheus.CounterVec
	attempts    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	ocrPages    *prometheus.CounterVec
}

// New creates the collectors and registers them on reg when it is non-nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statement_extractions_total",
			Help: "Statements processed, by final status.",
		}, []string{"status"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statement_strategy_attempts_total",
			Help: "Strategy attempts, by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "statement_strategy_duration_seconds",
			Help:    "Wall time of each strategy attempt.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 45},
		}, []string{"strategy"}),
		ocrPages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statement_ocr_pages_total",
			Help: "Pages sent through OCR, by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.extractions, m.attempts, m.duration, m.ocrPages)
	}
	return m
}

// Extraction counts a finished extraction.
func (m *Metrics) Extraction(status string) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(status).Inc()
}

// Attempt records one strategy run.
func (m *Metrics) Attempt(strategy, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(strategy, outcome).Inc()
	m.duration.WithLabelValues(strategy).Observe(elapsed.Seconds())
}

// OCRPage counts one OCR'd page.
func (m *Metrics) OCRPage(outcome string) {
	if m == nil {
		return
	}
	m.ocrPages.WithLabelValues(outcome).Inc()
}

// WriteTextfile writes everything g gathers in the node-exporter textfile format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
