package analysis

import (
	"context"
	"fmt"
	"sort"

	"github.com/clustereye/clustereye/pkg/logging"
	"github.com/clustereye/clustereye/pkg/types"
)

const (
	// DefaultThreshold is the minimum number of failures a project, node or
	// image needs inside the window before it counts as a pattern.
	DefaultThreshold = 3

	// highSeverityCount upgrades a project pattern from medium to high.
	highSeverityCount = 5

	// criticalNodeRate is the failures-per-job ratio above which a hot node
	// is critical rather than high.
	criticalNodeRate = 0.5

	// imageRecommendCount is the failure count at which an image correlation
	// earns its own recommendation line.
	imageRecommendCount = 5

	// Time-of-day spikes need at least peakHourMinimum failures in the
	// busiest hour, and any hour within peakFraction of that busiest hour
	// is reported as part of the peak.
	peakHourMinimum = 5
	peakFraction    = 0.8
)

// NoFailuresMessage is returned in PatternAnalysis.Message when the window
// holds no events at all.
const NoFailuresMessage = "No failures found in the specified time period"

// FailureReader is the read surface the analyzer needs from the store.
type FailureReader interface {
	GetRecentFailures(days int, project string) ([]types.FailureEvent, error)
}

// Analyzer derives failure patterns from recent events. It holds no state
// beyond its configuration; every call re-reads the store.
type Analyzer struct {
	store     FailureReader
	threshold int
}

func NewAnalyzer(store FailureReader, threshold int) *Analyzer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Analyzer{store: store, threshold: threshold}
}

// AnalyzePatterns reads the last N days of failures and reports project
// hotspots, problem nodes, image correlations and time-of-day spikes, plus
// recommendations derived from those findings.
func (a *Analyzer) AnalyzePatterns(ctx context.Context, days int) (*types.PatternAnalysis, error) {
	if days <= 0 {
		return nil, types.Validationf("days must be positive, got %d", days)
	}

	failures, err := a.store.GetRecentFailures(days, "")
	if err != nil {
		return nil, fmt.Errorf("failed to analyze patterns: %w", err)
	}

	if len(failures) == 0 {
		return &types.PatternAnalysis{Message: NoFailuresMessage}, nil
	}

	analysis := &types.PatternAnalysis{
		Summary: &types.AnalysisSummary{
			TotalFailures:      len(failures),
			TimePeriodDays:     days,
			ProjectsAffected:   countDistinct(failures, func(f types.FailureEvent) string { return f.Project }),
			UniqueFailureTypes: countDistinct(failures, func(f types.FailureEvent) string { return f.FailureType }),
		},
		Patterns:     []types.Pattern{},
		Correlations: []types.ImageCorrelation{},
		HotNodes:     []types.HotNode{},
	}

	analysis.Patterns = append(analysis.Patterns, a.projectPatterns(failures)...)
	analysis.HotNodes = a.hotNodes(failures)
	analysis.Correlations = a.imageCorrelations(failures)
	analysis.Patterns = append(analysis.Patterns, timePatterns(failures)...)
	analysis.Recommendations = GenerateRecommendations(analysis)

	logging.Infof(ctx, "Analyzed %d failures over %d days: %d patterns, %d hot nodes, %d image correlations",
		len(failures), days, len(analysis.Patterns), len(analysis.HotNodes), len(analysis.Correlations))

	return analysis, nil
}

func (a *Analyzer) projectPatterns(failures []types.FailureEvent) []types.Pattern {
	byProject := groupBy(failures, func(f types.FailureEvent) string { return f.Project })

	var patterns []types.Pattern
	for _, group := range byProject {
		if len(group.events) < a.threshold {
			continue
		}
		severity := types.SeverityMedium
		if len(group.events) >= highSeverityCount {
			severity = types.SeverityHigh
		}
		patterns = append(patterns, types.Pattern{
			Type:            types.PatternTypeProject,
			Project:         group.key,
			FailureCount:    len(group.events),
			TopFailureTypes: topCounts(group.events, func(f types.FailureEvent) string { return f.FailureType }, 3),
			Severity:        severity,
		})
	}
	return patterns
}

func (a *Analyzer) hotNodes(failures []types.FailureEvent) []types.HotNode {
	byNode := groupBy(failures, func(f types.FailureEvent) string { return f.NodeName })

	var nodes []types.HotNode
	for _, group := range byNode {
		if group.key == "" || len(group.events) < a.threshold {
			continue
		}
		jobs := countDistinct(group.events, func(f types.FailureEvent) string { return f.JobName })
		rate := float64(len(group.events)) / float64(jobs)
		severity := types.SeverityHigh
		if rate > criticalNodeRate {
			severity = types.SeverityCritical
		}
		nodes = append(nodes, types.HotNode{
			Node:         group.key,
			FailureCount: len(group.events),
			JobsAffected: jobs,
			FailureRate:  fmt.Sprintf("%.1f%%", rate*100),
			Severity:     severity,
		})
	}
	return nodes
}

func (a *Analyzer) imageCorrelations(failures []types.FailureEvent) []types.ImageCorrelation {
	byImage := groupBy(failures, func(f types.FailureEvent) string { return f.ContainerImage })

	var correlations []types.ImageCorrelation
	for _, group := range byImage {
		if group.key == "" || len(group.events) < a.threshold {
			continue
		}
		correlations = append(correlations, types.ImageCorrelation{
			Type:         types.PatternTypeImage,
			Image:        group.key,
			FailureCount: len(group.events),
			CommonErrors: commonErrors(group.events),
		})
	}
	return correlations
}

// commonErrors returns the up-to-three most frequent non-empty error
// messages in the group.
func commonErrors(failures []types.FailureEvent) []string {
	counts := topCounts(failures, func(f types.FailureEvent) string { return f.ErrorMessage }, 3)
	errs := make([]string, 0, len(counts))
	for _, c := range counts {
		errs = append(errs, c.Value)
	}
	return errs
}

// timePatterns buckets failures by UTC hour of day and reports a spike when
// the busiest hour holds at least peakHourMinimum failures. Every hour within
// peakFraction of the busiest is part of the peak.
func timePatterns(failures []types.FailureEvent) []types.Pattern {
	perHour := make(map[int]int)
	for _, f := range failures {
		perHour[f.Timestamp.UTC().Hour()]++
	}

	max := 0
	for _, count := range perHour {
		if count > max {
			max = count
		}
	}
	if max < peakHourMinimum {
		return nil
	}

	var peakHours []int
	for hour, count := range perHour {
		if float64(count) >= float64(max)*peakFraction {
			peakHours = append(peakHours, hour)
		}
	}
	sort.Ints(peakHours)

	return []types.Pattern{{
		Type:        types.PatternTypeTime,
		Description: fmt.Sprintf("Failures spike during hours %v", peakHours),
		PeakHours:   peakHours,
		Suggestion:  "May indicate resource contention or scheduled workloads",
	}}
}

// GenerateRecommendations derives advisory lines purely from an existing
// analysis result, without touching the store.
func GenerateRecommendations(analysis *types.PatternAnalysis) []string {
	var recommendations []string

	for _, p := range analysis.Patterns {
		if p.Type != types.PatternTypeProject {
			continue
		}
		if p.Severity == types.SeverityHigh || p.Severity == types.SeverityCritical {
			recommendations = append(recommendations, fmt.Sprintf(
				"[%s] Project %q has %d failures. Review project resources and job configurations.",
				p.Severity, p.Project, p.FailureCount))
		}
	}

	hotNodes := analysis.HotNodes
	if len(hotNodes) > 3 {
		hotNodes = hotNodes[:3]
	}
	for _, n := range hotNodes {
		if n.Severity == types.SeverityCritical {
			recommendations = append(recommendations, fmt.Sprintf(
				"[%s] Node %q has a %s failure rate (%d failures). Consider cordoning this node for maintenance.",
				n.Severity, n.Node, n.FailureRate, n.FailureCount))
		}
	}

	for _, c := range analysis.Correlations {
		if c.FailureCount >= imageRecommendCount {
			recommendations = append(recommendations, fmt.Sprintf(
				"[image] Image %q is associated with %d failures. Verify image compatibility and dependencies.",
				c.Image, c.FailureCount))
		}
	}

	if len(recommendations) == 0 {
		recommendations = append(recommendations, "No critical patterns detected. System appears healthy.")
	}
	return recommendations
}

type group struct {
	key    string
	events []types.FailureEvent
}

// groupBy buckets events by key and returns groups ordered by descending size,
// ties broken by key, so output is stable across runs.
func groupBy(failures []types.FailureEvent, key func(types.FailureEvent) string) []group {
	buckets := make(map[string][]types.FailureEvent)
	for _, f := range failures {
		k := key(f)
		buckets[k] = append(buckets[k], f)
	}
	groups := make([]group, 0, len(buckets))
	for k, events := range buckets {
		groups = append(groups, group{key: k, events: events})
	}
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i].events) != len(groups[j].events) {
			return len(groups[i].events) > len(groups[j].events)
		}
		return groups[i].key < groups[j].key
	})
	return groups
}

func countDistinct(failures []types.FailureEvent, key func(types.FailureEvent) string) int {
	seen := make(map[string]bool)
	for _, f := range failures {
		seen[key(f)] = true
	}
	return len(seen)
}

// topCounts returns the most frequent non-empty key values, descending by
// count with ties broken by value, truncated to limit.
func topCounts(failures []types.FailureEvent, key func(types.FailureEvent) string, limit int) []types.FrequencyCount {
	counts := make(map[string]int)
	for _, f := range failures {
		if k := key(f); k != "" {
			counts[k]++
		}
	}
	result := make([]types.FrequencyCount, 0, len(counts))
	for value, count := range counts {
		result = append(result, types.FrequencyCount{Value: value, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Value < result[j].Value
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result
}
