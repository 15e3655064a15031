package types

// SolutionStep is one static remediation step from the rule table.
type SolutionStep struct {
	Action      string         `json:"action"`
	Description string         `json:"description"`
	Params      map[string]any `json:"params,omitempty"`
}

// HistoricalSolution is a learned solution annotated with a formatted
// success-rate percentage for display.
type HistoricalSolution struct {
	Solution     string `json:"solution"`
	SuccessRate  string `json:"success_rate"`
	SuccessCount int    `json:"success_count"`
	FailureCount int    `json:"failure_count"`
}

// RemediationSuggestion keeps rule-based and historical solutions separate so
// callers can explain where each suggestion came from.
type RemediationSuggestion struct {
	FailureType         string               `json:"failure_type"`
	Description         string               `json:"description"`
	RuleBasedSolutions  []SolutionStep       `json:"rule_based_solutions"`
	HistoricalSolutions []HistoricalSolution `json:"historical_solutions"`
	Context             map[string]string    `json:"context"`
}
