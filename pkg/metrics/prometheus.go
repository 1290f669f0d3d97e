package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bizflow_executions_total",
			Help: "Total number of workflow executions by type and terminal status",
		},
		[]string{"type", "status"},
	)

	ExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bizflow_execution_duration_seconds",
			Help:    "Workflow execution duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		},
		[]string{"type"},
	)

	LiveTriggers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bizflow_live_triggers",
			Help: "Number of workflows with a live scheduled trigger",
		},
	)

	OverlapSkipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bizflow_overlap_skips_total",
			Help: "Triggers skipped because a prior execution was still running",
		},
		[]string{"type"},
	)
)
