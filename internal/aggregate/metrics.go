package aggregate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// pipelineExecutions counts executions by result (ok, invalid, fetch_error).
	pipelineExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insights_pipeline_executions_total",
		Help: "Pipeline executions by result",
	}, []string{"result"})

	pipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "insights_pipeline_duration_seconds",
		Help:    "Wall-clock duration of pipeline executions in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	})

	pipelineRecords = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "insights_pipeline_records_processed",
		Help:    "Records fetched per pipeline execution",
		Buckets: []float64{0, 10, 100, 1000, 10000, 100000},
	})
)
