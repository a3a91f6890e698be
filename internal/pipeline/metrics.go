package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// outcomeOK labels a successful answer; failures are labelled by stage.
const outcomeOK = "ok"

// Metrics holds the Prometheus collectors owned by the pipeline. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	// answersTotal counts Answer calls by outcome: "ok" or the failing stage.
	answersTotal *prometheus.CounterVec

	// stageSeconds records per-stage latency.
	stageSeconds *prometheus.HistogramVec

	// sourcesCount records how many chunks each successful answer used.
	sourcesCount prometheus.Histogram
}

// NewMetrics registers the pipeline metrics against reg. promauto.With(reg)
// keeps registrations out of the global default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		answersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragq",
			Subsystem: "pipeline",
			Name:      "answers_total",
			Help:      "Total number of questions processed, partitioned by outcome (ok or failing stage).",
		}, []string{"outcome"}),

		stageSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragq",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Latency of each pipeline stage.",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"stage"}),

		sourcesCount: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragq",
			Subsystem: "pipeline",
			Name:      "sources",
			Help:      "Number of chunks used as context per successful answer.",
			Buckets:   []float64{0, 1, 3, 5, 10, 15, 25, 50},
		}),
	}
}

func (m *Metrics) observeOutcome(outcome string) {
	if m == nil {
		return
	}
	m.answersTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.stageSeconds.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeResults(n int) {
	if m == nil {
		return
	}
	m.sourcesCount.Observe(float64(n))
}
