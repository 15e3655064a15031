package remediation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/clustereye/clustereye/pkg/logging"
	"github.com/clustereye/clustereye/pkg/types"
)

// historicalLimit is how many ranked historical solutions a suggestion carries.
const historicalLimit = 3

// unknownDescription is used for failure kinds without a rule entry. Such
// suggestions still carry historical solutions if any exist.
const unknownDescription = "Unknown failure type"

// SolutionReader is the read surface the engine needs from the store.
type SolutionReader interface {
	GetBestSolutions(failureType string, limit int) ([]types.RankedSolution, error)
}

type rule struct {
	description string
	solutions   []types.SolutionStep
}

// Engine answers point queries of the form "given failure kind X, what fixes
// it?". It combines a static rule table with historically ranked solutions.
type Engine struct {
	store SolutionReader
	rules map[string]rule
}

func NewEngine(store SolutionReader) *Engine {
	return &Engine{store: store, rules: buildRules()}
}

func buildRules() map[string]rule {
	return map[string]rule{
		"OOMKilled": {
			description: "Out of Memory - Pod exceeded memory limit",
			solutions: []types.SolutionStep{
				{
					Action:      "increase_memory",
					Description: "Increase memory request/limit by 2x",
					Params:      map[string]any{"multiplier": 2.0},
				},
				{
					Action:      "optimize_code",
					Description: "Optimize application memory usage (manual)",
					Params:      map[string]any{},
				},
			},
		},
		"ImagePullBackOff": {
			description: "Cannot pull container image",
			solutions: []types.SolutionStep{
				{
					Action:      "verify_image",
					Description: "Verify image name, tag, and registry access",
					Params:      map[string]any{},
				},
				{
					Action:      "check_credentials",
					Description: "Check image pull secrets and registry credentials",
					Params:      map[string]any{},
				},
			},
		},
		"CrashLoopBackOff": {
			description: "Container crashes immediately after starting",
			solutions: []types.SolutionStep{
				{
					Action:      "check_command",
					Description: "Verify container command and entrypoint",
					Params:      map[string]any{},
				},
				{
					Action:      "check_dependencies",
					Description: "Check for missing dependencies or environment variables",
					Params:      map[string]any{},
				},
			},
		},
		"Pending": {
			description: "Job stuck in Pending state - insufficient resources",
			solutions: []types.SolutionStep{
				{
					Action:      "reduce_resources",
					Description: "Reduce GPU/CPU/Memory requests",
					Params:      map[string]any{"gpu_reduction": 0.5},
				},
				{
					Action:      "wait_for_resources",
					Description: "Wait for cluster resources to become available",
					Params:      map[string]any{"estimated_wait_minutes": 30},
				},
			},
		},
		"Error": {
			description: "Generic error - requires investigation",
			solutions: []types.SolutionStep{
				{
					Action:      "check_logs",
					Description: "Review pod logs for specific error messages",
					Params:      map[string]any{},
				},
				{
					Action:      "resubmit",
					Description: "Resubmit job (may be transient error)",
					Params:      map[string]any{},
				},
			},
		},
	}
}

// SuggestRemediation combines the static rule table with the three best
// historically recorded solutions for the failure kind. Unknown kinds yield
// an empty rule list, never an error.
func (e *Engine) SuggestRemediation(ctx context.Context, failureType string, failureContext map[string]string) (*types.RemediationSuggestion, error) {
	if failureType == "" {
		return nil, types.Validationf("failure type is required")
	}

	r, known := e.rules[failureType]
	if !known {
		r = rule{description: unknownDescription, solutions: []types.SolutionStep{}}
		logging.Infof(ctx, "No remediation rules for failure type %q, falling back to historical solutions", failureType)
	}

	ranked, err := e.store.GetBestSolutions(failureType, historicalLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest remediation: %w", err)
	}

	historical := make([]types.HistoricalSolution, 0, len(ranked))
	for _, sol := range ranked {
		historical = append(historical, types.HistoricalSolution{
			Solution:     sol.Solution,
			SuccessRate:  fmt.Sprintf("%.1f%%", sol.SuccessRate*100),
			SuccessCount: sol.SuccessCount,
			FailureCount: sol.FailureCount,
		})
	}

	return &types.RemediationSuggestion{
		FailureType:         failureType,
		Description:         r.description,
		RuleBasedSolutions:  r.solutions,
		HistoricalSolutions: historical,
		Context:             failureContext,
	}, nil
}

// FormatReport renders a suggestion as a markdown report suitable for chat
// delivery.
func FormatReport(s *types.RemediationSuggestion) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**Automated Remediation Suggestions**\n\n")
	fmt.Fprintf(&b, "**Failure Type:** %s\n", s.FailureType)
	fmt.Fprintf(&b, "**Description:** %s\n\n---\n\n", s.Description)
	b.WriteString("## Rule-Based Solutions\n\n")

	for i, sol := range s.RuleBasedSolutions {
		fmt.Fprintf(&b, "%d. **%s**\n", i+1, sol.Description)
		if len(sol.Params) > 0 {
			params, err := json.MarshalIndent(sol.Params, "   ", "  ")
			if err == nil {
				fmt.Fprintf(&b, "   Parameters: %s\n", params)
			}
		}
		b.WriteString("\n")
	}

	if len(s.HistoricalSolutions) > 0 {
		b.WriteString("## Historical Solutions\n\nThese solutions have been tried before:\n\n")
		for i, sol := range s.HistoricalSolutions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, sol.Solution)
			fmt.Fprintf(&b, "   Success Rate: %s (%d successes, %d failures)\n\n",
				sol.SuccessRate, sol.SuccessCount, sol.FailureCount)
		}
	}

	return b.String()
}
