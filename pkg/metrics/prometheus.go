package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cyclesTotal     *prometheus.CounterVec
	signalsTotal    *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	decisionSlider  *prometheus.GaugeVec
	scoresObserved  *prometheus.HistogramVec
	latency         *prometheus.HistogramVec
	knowledgeWrites *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		cyclesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confluence_cycles_total",
				Help: "Total number of decision cycles run",
			},
			[]string{"symbol", "status"},
		),
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confluence_signals_total",
				Help: "Total number of strategy signals produced",
			},
			[]string{"strategy", "direction"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confluence_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		decisionSlider: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "confluence_decision_slider",
				Help: "Last synthesized slider value for a symbol",
			},
			[]string{"symbol"},
		),
		scoresObserved: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "confluence_outcome_score",
				Help:    "Distribution of outcome review scores",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			},
			[]string{"component"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "confluence_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		knowledgeWrites: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confluence_knowledge_writes_total",
				Help: "Total number of knowledge store section writes",
			},
			[]string{"section", "result"},
		),
	}
}

// RecordCycle records a completed decision cycle and its terminal status.
func (r *Recorder) RecordCycle(symbol, status string) {
	r.cyclesTotal.WithLabelValues(symbol, status).Inc()
}

// RecordSignal records one strategy signal by direction.
func (r *Recorder) RecordSignal(strategy, direction string) {
	r.signalsTotal.WithLabelValues(strategy, direction).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordSlider records the last synthesized slider for a symbol.
func (r *Recorder) RecordSlider(symbol string, slider float64) {
	r.decisionSlider.WithLabelValues(symbol).Set(slider)
}

// RecordScore records a review score component (skill, outcome, combined).
func (r *Recorder) RecordScore(component string, score float64) {
	r.scoresObserved.WithLabelValues(component).Observe(score)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordKnowledgeWrite records a knowledge store write attempt per section.
func (r *Recorder) RecordKnowledgeWrite(section, result string) {
	r.knowledgeWrites.WithLabelValues(section, result).Inc()
}
