package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FailureEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clustereye_failure_events_total",
		Help: "Failure observations processed, by project, failure type and outcome (new or deduplicated)",
	}, []string{"project", "failure_type", "outcome"})

	CorrelationUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clustereye_correlation_updates_total",
		Help: "Correlation tally increments, by correlation type",
	}, []string{"correlation_type"})

	SolutionOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clustereye_solution_outcomes_total",
		Help: "Solution outcomes recorded, by failure type and result",
	}, []string{"failure_type", "result"})

	AlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clustereye_alerts_total",
		Help: "Alerts considered for delivery, by outcome (sent, suppressed or failed)",
	}, []string{"outcome"})

	TaskRunCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clustereye_task_run_count",
		Help: "Number of times a background task has run, by task name and status",
	}, []string{"task_name", "status"})

	TaskRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clustereye_task_run_duration_seconds",
		Help:    "Duration of background task runs in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"task_name"})

	SchedulerAPIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clustereye_scheduler_api_requests_total",
		Help: "Requests issued to the workload scheduler API, by endpoint and status",
	}, []string{"endpoint", "status"})

	AnalysisRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clustereye_analysis_runs_total",
		Help: "Pattern analysis runs, by trigger (api or task)",
	}, []string{"trigger"})
)
