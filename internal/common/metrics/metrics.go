// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StageExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_executions_total",
			Help: "Total number of stage executions",
		},
		[]string{"stage"},
	)

	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_failures_total",
			Help: "Total number of stage failures",
		},
		[]string{"stage", "error_code"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_stage_duration_seconds",
			Help: "Duration of stage execution in seconds",
		},
		[]string{"stage"},
	)

	PipelineOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_outcomes_total",
			Help: "Total number of completed pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	DegradedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_degraded_events_total",
			Help: "Total number of fail-safe degradations (classifier down, text generation fallback, persistence warning)",
		},
		[]string{"component"},
	)

	PipelinesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_runs_active",
			Help: "Number of pipeline runs currently in flight",
		},
	)
)
