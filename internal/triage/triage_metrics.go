package triage

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	TriagesTotal    *prometheus.CounterVec
	TriageDuration  *prometheus.HistogramVec
	StageLatency    *prometheus.HistogramVec
	FallbacksTotal  *prometheus.CounterVec
	DuplicatesTotal *prometheus.CounterVec
	Urgency         prometheus.Histogram
	SubmitsTotal    *prometheus.CounterVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TriagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "railtriage_triages_total",
			Help: "Total triage runs by outcome.",
		}, []string{"outcome"}),
		TriageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "railtriage_triage_duration_seconds",
			Help:    "Duration of triage runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 11), // 5ms .. ~5s
		}, []string{"category"}),
		StageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "railtriage_stage_latency_seconds",
			Help:    "Elapsed time from intake to the end of each pipeline stage.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 11), // 5ms .. ~5s
		}, []string{"stage"}),
		FallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "railtriage_classifier_fallbacks_total",
			Help: "Classifier fallbacks to the default category by reason.",
		}, []string{"reason"}),
		DuplicatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "railtriage_duplicates_total",
			Help: "Complaints matched to an existing cluster, by category.",
		}, []string{"category"}),
		Urgency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "railtriage_urgency",
			Help:    "Effective urgency of decided complaints.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11), // 0.0 .. 1.0
		}),
		SubmitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "railtriage_submits_total",
			Help: "Total complaint submissions by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.TriagesTotal,
		m.TriageDuration,
		m.StageLatency,
		m.FallbacksTotal,
		m.DuplicatesTotal,
		m.Urgency,
		m.SubmitsTotal,
	)

	return m
}

// Hooks returns an EngineHooks that increments the corresponding metrics.
func (m *Metrics) Hooks() EngineHooks {
	return EngineHooks{
		OnStage: func(stage Stage, dur time.Duration) {
			m.StageLatency.WithLabelValues(string(stage)).Observe(dur.Seconds())
		},
		OnFallback: func(reason string) {
			m.FallbacksTotal.WithLabelValues(reason).Inc()
		},
		OnComplete: func(e *CompleteEvent) {
			if e.Stage == StageError {
				m.TriagesTotal.WithLabelValues("error").Inc()
				return
			}
			m.TriagesTotal.WithLabelValues("decided").Inc()
			m.TriageDuration.WithLabelValues(string(e.Category)).Observe(e.Duration)
			m.Urgency.Observe(e.Urgency)
			if e.Duplicate {
				m.DuplicatesTotal.WithLabelValues(string(e.Category)).Inc()
			}
		},
	}
}
