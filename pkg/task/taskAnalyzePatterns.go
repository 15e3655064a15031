package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/clustereye/clustereye/pkg/analysis"
	"github.com/clustereye/clustereye/pkg/config"
	"github.com/clustereye/clustereye/pkg/contextutils"
	"github.com/clustereye/clustereye/pkg/logging"
	"github.com/clustereye/clustereye/pkg/metrics"
)

type AnalyzePatternsMetadata struct {
	WindowDays int `yaml:"windowDays" json:"windowDays" mapstructure:"windowDays"`
}

type AnalyzePatternsTaskConfig struct {
	Name     string
	Enabled  bool
	Schedule string
	Metadata AnalyzePatternsMetadata
}

// AnalyzePatternsTask periodically runs pattern analysis and pushes the
// recommendations to chat when anything critical surfaced.
type AnalyzePatternsTask struct {
	analyzer *analysis.Analyzer
	alerter  Alerter
	config   *AnalyzePatternsTaskConfig
}

func NewAnalyzePatternsTask(
	analyzer *analysis.Analyzer,
	alerter Alerter,
	cfg *AnalyzePatternsTaskConfig,
	taskConfig *config.TaskConfig,
) (*AnalyzePatternsTask, error) {
	var metadata AnalyzePatternsMetadata
	if err := taskConfig.ConvertMetadataToStruct(&metadata); err != nil {
		return nil, fmt.Errorf("failed to convert task metadata: %w", err)
	}
	if metadata.WindowDays <= 0 {
		metadata.WindowDays = cfg.Metadata.WindowDays
	}
	if metadata.WindowDays <= 0 {
		metadata.WindowDays = 7
	}
	cfg.Metadata = metadata

	return &AnalyzePatternsTask{
		analyzer: analyzer,
		alerter:  alerter,
		config:   cfg,
	}, nil
}

func (t *AnalyzePatternsTask) GetCoreTask() any {
	return t
}

func (t *AnalyzePatternsTask) GetName() string {
	return t.config.Name
}

func (t *AnalyzePatternsTask) GetSchedule() string {
	return t.config.Schedule
}

func (t *AnalyzePatternsTask) IsEnabled() bool {
	return t.config.Enabled
}

func (t *AnalyzePatternsTask) Run(ctx context.Context) error {
	ctx = contextutils.WithTask(ctx, t.config.Name)

	startTime := time.Now().UTC()
	logging.Infof(ctx, "Running task: AnalyzePatterns")
	metrics.AnalysisRunsTotal.WithLabelValues("task").Inc()

	result, err := t.analyzer.AnalyzePatterns(ctx, t.config.Metadata.WindowDays)
	if err != nil {
		logging.Errorf(ctx, "Error analyzing patterns: %v", err)
		return err
	}

	if result.Message != "" {
		logging.Infof(ctx, "Analysis finished in %s: %s", time.Since(startTime).Round(time.Millisecond), result.Message)
		return nil
	}

	if t.alerter != nil && t.alerter.Enabled() && hasActionableFindings(result.Recommendations) {
		t.alerter.Notify(ctx, "Cluster Failure Pattern Report",
			strings.Join(result.Recommendations, "\n"))
	}

	logging.Infof(ctx, "Analysis finished in %s: %d recommendations",
		time.Since(startTime).Round(time.Millisecond), len(result.Recommendations))
	return nil
}

// hasActionableFindings is false when the only line is the healthy fallback.
func hasActionableFindings(recommendations []string) bool {
	for _, rec := range recommendations {
		if !strings.Contains(rec, "appears healthy") {
			return true
		}
	}
	return false
}
