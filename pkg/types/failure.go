package types

import (
	"time"
)

// FailureObservation is a single observed workload failure as reported by a
// monitor. JobName, Project, FailureType and Phase are required; everything
// else is best-effort enrichment and may be empty.
type FailureObservation struct {
	JobName        string `json:"job_name" binding:"required"`
	Project        string `json:"project" binding:"required"`
	FailureType    string `json:"failure_type" binding:"required"`
	Phase          string `json:"phase" binding:"required"`
	PodName        string `json:"pod_name,omitempty"`
	NodeName       string `json:"node_name,omitempty"`
	ContainerImage string `json:"container_image,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	LogsSnippet    string `json:"logs_snippet,omitempty"`
	EventsSnippet  string `json:"events_snippet,omitempty"`
	GPUCount       int    `json:"gpu_count,omitempty"`
	MemoryRequest  string `json:"memory_request,omitempty"`
	CPURequest     string `json:"cpu_request,omitempty"`
}

// FailureEvent is a persisted failure row. Repeat observations of the same
// (job, project, phase) within the dedup window refresh Timestamp instead of
// creating a new row.
type FailureEvent struct {
	ID             int64      `json:"id"`
	JobName        string     `json:"job_name"`
	Project        string     `json:"project"`
	FailureType    string     `json:"failure_type"`
	Phase          string     `json:"phase"`
	Timestamp      time.Time  `json:"timestamp"`
	PodName        string     `json:"pod_name,omitempty"`
	NodeName       string     `json:"node_name,omitempty"`
	ContainerImage string     `json:"container_image,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	LogsSnippet    string     `json:"logs_snippet,omitempty"`
	EventsSnippet  string     `json:"events_snippet,omitempty"`
	GPUCount       int        `json:"gpu_count,omitempty"`
	MemoryRequest  string     `json:"memory_request,omitempty"`
	CPURequest     string     `json:"cpu_request,omitempty"`
	Resolved       bool       `json:"resolved"`
	ResolutionType string     `json:"resolution_type,omitempty"`
	ResolvedAt     *time.Time `json:"resolution_timestamp,omitempty"`
	AutoRemediated bool       `json:"auto_remediated"`
}

// Correlation tallies how often an attribute value (node name, image) has
// co-occurred with failures.
type Correlation struct {
	CorrelationType  string    `json:"correlation_type"`
	CorrelationValue string    `json:"correlation_value"`
	FailureCount     int       `json:"failure_count"`
	FirstSeen        time.Time `json:"first_seen"`
	LastSeen         time.Time `json:"last_seen"`
}

// FrequencyCount is one entry of a descending-ordered frequency table.
type FrequencyCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// PatternStats holds the four windowed GROUP BY aggregations, each ordered by
// descending count.
type PatternStats struct {
	FailureTypes    []FrequencyCount `json:"failure_types"`
	ProjectFailures []FrequencyCount `json:"project_failures"`
	NodeFailures    []FrequencyCount `json:"node_failures"`
	ImageFailures   []FrequencyCount `json:"image_failures"`
}

// RankedSolution is one historical solution scored by its Laplace-smoothed
// success rate.
type RankedSolution struct {
	Solution     string  `json:"solution"`
	SuccessRate  float64 `json:"success_rate"`
	SuccessCount int     `json:"success_count"`
	FailureCount int     `json:"failure_count"`
}
