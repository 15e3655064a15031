package types

const (
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

const (
	PatternTypeProject = "project_pattern"
	PatternTypeTime    = "time_pattern"
	PatternTypeImage   = "image_correlation"
)

type AnalysisSummary struct {
	TotalFailures      int `json:"total_failures"`
	TimePeriodDays     int `json:"time_period_days"`
	ProjectsAffected   int `json:"projects_affected"`
	UniqueFailureTypes int `json:"unique_failure_types"`
}

// Pattern is either a project_pattern or a time_pattern; Type discriminates
// which set of fields is populated.
type Pattern struct {
	Type            string           `json:"type"`
	Project         string           `json:"project,omitempty"`
	FailureCount    int              `json:"failure_count,omitempty"`
	TopFailureTypes []FrequencyCount `json:"top_failure_types,omitempty"`
	Severity        string           `json:"severity,omitempty"`
	Description     string           `json:"description,omitempty"`
	PeakHours       []int            `json:"peak_hours,omitempty"`
	Suggestion      string           `json:"suggestion,omitempty"`
}

type HotNode struct {
	Node         string `json:"node"`
	FailureCount int    `json:"failure_count"`
	JobsAffected int    `json:"jobs_affected"`
	FailureRate  string `json:"failure_rate"`
	Severity     string `json:"severity"`
}

type ImageCorrelation struct {
	Type         string   `json:"type"`
	Image        string   `json:"image"`
	FailureCount int      `json:"failure_count"`
	CommonErrors []string `json:"common_errors"`
}

// PatternAnalysis is the full analysis result. Message is set (and the rest
// left empty) when the window contains no failures at all, so callers can
// tell "nothing recorded" apart from "recorded but patternless".
type PatternAnalysis struct {
	Message         string             `json:"message,omitempty"`
	Summary         *AnalysisSummary   `json:"summary,omitempty"`
	Patterns        []Pattern          `json:"patterns"`
	Correlations    []ImageCorrelation `json:"correlations"`
	HotNodes        []HotNode          `json:"hot_nodes"`
	Recommendations []string           `json:"recommendations"`
}
