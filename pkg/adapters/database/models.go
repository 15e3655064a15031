package database

import (
	"time"
)

type FailureEvent struct {
	ID                  uint       `gorm:"column:id;primaryKey;autoIncrement"`
	JobName             string     `gorm:"column:job_name;not null;index:idx_dedup,priority:1"`
	Project             string     `gorm:"column:project;not null;index;index:idx_dedup,priority:2"`
	FailureType         string     `gorm:"column:failure_type;not null;index"`
	Phase               string     `gorm:"column:phase;not null;index:idx_dedup,priority:3"`
	Timestamp           time.Time  `gorm:"column:timestamp;index"`
	PodName             string     `gorm:"column:pod_name"`
	NodeName            string     `gorm:"column:node_name;index"`
	ContainerImage      string     `gorm:"column:container_image"`
	ErrorMessage        string     `gorm:"column:error_message;type:text"`
	LogsSnippet         string     `gorm:"column:logs_snippet;type:text"`
	EventsSnippet       string     `gorm:"column:events_snippet;type:text"`
	GPUCount            int        `gorm:"column:gpu_count"`
	MemoryRequest       string     `gorm:"column:memory_request"`
	CPURequest          string     `gorm:"column:cpu_request"`
	Resolved            bool       `gorm:"column:resolved;default:false"`
	ResolutionType      string     `gorm:"column:resolution_type"`
	ResolutionTimestamp *time.Time `gorm:"column:resolution_timestamp"`
	AutoRemediated      bool       `gorm:"column:auto_remediated;default:false"`
	CreatedAt           time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (FailureEvent) TableName() string {
	return "failure_events"
}

type FailureSolution struct {
	ID                  uint      `gorm:"column:id;primaryKey;autoIncrement"`
	FailureType         string    `gorm:"column:failure_type;not null;uniqueIndex:idx_solution_identity,priority:1"`
	SolutionDescription string    `gorm:"column:solution_description;not null;uniqueIndex:idx_solution_identity,priority:2"`
	SuccessCount        int       `gorm:"column:success_count;default:0"`
	FailureCount        int       `gorm:"column:failure_count;default:0"`
	LastUsed            time.Time `gorm:"column:last_used"`
	CreatedAt           time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (FailureSolution) TableName() string {
	return "failure_solutions"
}

type FailureCorrelation struct {
	ID               uint      `gorm:"column:id;primaryKey;autoIncrement"`
	CorrelationType  string    `gorm:"column:correlation_type;not null;uniqueIndex:idx_correlation_identity,priority:1"`
	CorrelationValue string    `gorm:"column:correlation_value;not null;uniqueIndex:idx_correlation_identity,priority:2"`
	FailureCount     int       `gorm:"column:failure_count;default:1"`
	FirstSeen        time.Time `gorm:"column:first_seen"`
	LastSeen         time.Time `gorm:"column:last_seen"`
}

func (FailureCorrelation) TableName() string {
	return "failure_correlations"
}
