package decision

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics holds Prometheus metrics for the decision pipeline
type PipelineMetrics struct {
	DecisionsMade      prometheus.Counter
	DecisionsExecuted  prometheus.Counter
	ValidationFailures prometheus.Counter
	ExecutionFailures  prometheus.Counter
	FeedbackProcessed  prometheus.Counter
	DecisionDuration   prometheus.Histogram
	OfflineQueueSize   prometheus.Gauge
}

// Singleton to avoid Prometheus registration conflicts when multiple
// pipelines exist in one process (tests, embedded runtimes).
var (
	pipelineMetricsInstance *PipelineMetrics
	pipelineMetricsOnce     sync.Once
)

func getOrCreatePipelineMetrics() *PipelineMetrics {
	pipelineMetricsOnce.Do(func() {
		pipelineMetricsInstance = &PipelineMetrics{
			DecisionsMade: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pipeline_decisions_made_total",
				Help: "Total number of decisions produced by the maker",
			}),
			DecisionsExecuted: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pipeline_decisions_executed_total",
				Help: "Total number of decisions executed to completion",
			}),
			ValidationFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pipeline_validation_failures_total",
				Help: "Total number of decisions rejected by validation",
			}),
			ExecutionFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pipeline_execution_failures_total",
				Help: "Total number of decision executions that failed",
			}),
			FeedbackProcessed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pipeline_feedback_processed_total",
				Help: "Total number of feedback entries processed",
			}),
			DecisionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "pipeline_decision_duration_seconds",
				Help:    "Duration of decision making",
				Buckets: prometheus.DefBuckets,
			}),
			OfflineQueueSize: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "pipeline_offline_queue_size",
				Help: "Events buffered for offline drain",
			}),
		}
	})
	return pipelineMetricsInstance
}
