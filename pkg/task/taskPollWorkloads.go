package task

import (
	"context"
	"fmt"
	"time"

	"github.com/clustereye/clustereye/pkg/config"
	"github.com/clustereye/clustereye/pkg/contextutils"
	"github.com/clustereye/clustereye/pkg/logging"
	"github.com/clustereye/clustereye/pkg/metrics"
	"github.com/clustereye/clustereye/pkg/remediation"
	"github.com/clustereye/clustereye/pkg/repository/storage"
	"github.com/clustereye/clustereye/pkg/types"
)

// alertReportLimit caps the remediation report embedded in a chat alert.
const alertReportLimit = 1000

type WorkloadLister interface {
	ListWorkloads(ctx context.Context, project string) ([]types.Workload, error)
}

type Enricher interface {
	Enrich(ctx context.Context, obs *types.FailureObservation)
}

type Alerter interface {
	Enabled() bool
	Notify(ctx context.Context, title, message string)
}

type AlertGate interface {
	ShouldAlert(jobKey string) bool
	Forget(jobKey string)
}

type PollWorkloadsMetadata struct {
	// ExtraFailurePhases extends the built-in failure phase set, for
	// scheduler versions that report additional terminal phases.
	ExtraFailurePhases []string `yaml:"extraFailurePhases" json:"extraFailurePhases" mapstructure:"extraFailurePhases"`
}

type PollWorkloadsTaskConfig struct {
	Name            string
	Enabled         bool
	Schedule        string
	Project         string
	AllowedProjects []string
	Metadata        PollWorkloadsMetadata
}

// projectAllowed applies the monitor allow-list. An empty list or a "*"
// entry admits every project.
func (c *PollWorkloadsTaskConfig) projectAllowed(project string) bool {
	if len(c.AllowedProjects) == 0 {
		return true
	}
	for _, p := range c.AllowedProjects {
		if p == "*" || p == project {
			return true
		}
	}
	return false
}

// PollWorkloadsTask polls the scheduler for workloads, records every failed
// one, and alerts on failures that created a new row.
type PollWorkloadsTask struct {
	lister     WorkloadLister
	enricher   Enricher
	storage    *storage.Storage
	engine     *remediation.Engine
	alerter    Alerter
	gate       AlertGate
	config     *PollWorkloadsTaskConfig
	failPhases map[string]bool
}

func NewPollWorkloadsTask(
	lister WorkloadLister,
	enricher Enricher,
	stg *storage.Storage,
	engine *remediation.Engine,
	alerter Alerter,
	gate AlertGate,
	cfg *PollWorkloadsTaskConfig,
	taskConfig *config.TaskConfig,
) (*PollWorkloadsTask, error) {
	var metadata PollWorkloadsMetadata
	if err := taskConfig.ConvertMetadataToStruct(&metadata); err != nil {
		return nil, fmt.Errorf("failed to convert task metadata: %w", err)
	}
	cfg.Metadata = metadata

	failPhases := make(map[string]bool, len(types.FailurePhases))
	for phase := range types.FailurePhases {
		failPhases[phase] = true
	}
	for _, phase := range metadata.ExtraFailurePhases {
		failPhases[phase] = true
	}

	return &PollWorkloadsTask{
		lister:     lister,
		enricher:   enricher,
		storage:    stg,
		engine:     engine,
		alerter:    alerter,
		gate:       gate,
		config:     cfg,
		failPhases: failPhases,
	}, nil
}

func (t *PollWorkloadsTask) GetCoreTask() any {
	return t
}

func (t *PollWorkloadsTask) GetName() string {
	return t.config.Name
}

func (t *PollWorkloadsTask) GetSchedule() string {
	return t.config.Schedule
}

func (t *PollWorkloadsTask) IsEnabled() bool {
	return t.config.Enabled
}

func (t *PollWorkloadsTask) Run(ctx context.Context) error {
	ctx = contextutils.WithTask(ctx, t.config.Name)

	startTime := time.Now().UTC()
	logging.Infof(ctx, "Running task: PollWorkloads")

	workloads, err := t.lister.ListWorkloads(ctx, t.config.Project)
	if err != nil {
		logging.Errorf(ctx, "Error fetching workloads: %v", err)
		return err
	}

	failed := 0
	recorded := 0
	for _, w := range workloads {
		if !t.config.projectAllowed(w.Project) {
			continue
		}
		if !t.failPhases[w.Phase] {
			// A healthy phase re-arms alerting, so a job that recovers
			// and fails again alerts again.
			t.gate.Forget(jobKey(w))
			continue
		}
		failed++
		if t.checkWorkload(ctx, w) {
			recorded++
		}
	}

	logging.Infof(ctx, "Polled %d workloads in %s: %d failed, %d newly recorded",
		len(workloads), time.Since(startTime).Round(time.Millisecond), failed, recorded)
	return nil
}

// checkWorkload records one failed workload and reports whether it was new.
func (t *PollWorkloadsTask) checkWorkload(ctx context.Context, w types.Workload) bool {
	obs := &types.FailureObservation{
		JobName:        w.Name,
		Project:        w.Project,
		FailureType:    w.Phase,
		Phase:          w.Phase,
		PodName:        w.PodName,
		NodeName:       w.NodeName,
		ContainerImage: w.Image,
		ErrorMessage:   w.Message,
		GPUCount:       w.GPUCount,
		MemoryRequest:  w.MemoryRequest,
		CPURequest:     w.CPURequest,
	}

	if t.enricher != nil {
		t.enricher.Enrich(ctx, obs)
	}

	_, isNew, err := t.storage.RecordObservation(ctx, obs)
	if err != nil {
		logging.Errorf(ctx, "Error recording failure for job %s: %v", w.Name, err)
		return false
	}
	if !isNew {
		return false
	}

	t.maybeAlert(ctx, w, obs)
	return true
}

func (t *PollWorkloadsTask) maybeAlert(ctx context.Context, w types.Workload, obs *types.FailureObservation) {
	if t.alerter == nil || !t.alerter.Enabled() {
		return
	}
	if !t.gate.ShouldAlert(jobKey(w)) {
		logging.Debugf(ctx, "Skipping alert for job %s (budget exhausted)", w.Name)
		metrics.AlertsTotal.WithLabelValues("suppressed").Inc()
		return
	}

	title := fmt.Sprintf("Job Failure: %s", w.Name)
	body := fmt.Sprintf("*Project:* %s\n*Phase:* %s", w.Project, w.Phase)
	if obs.NodeName != "" {
		body += fmt.Sprintf("\n*Node:* %s", obs.NodeName)
	}
	if obs.ErrorMessage != "" {
		body += fmt.Sprintf("\n*Error:* %s", obs.ErrorMessage)
	}

	if t.engine != nil {
		suggestion, err := t.engine.SuggestRemediation(ctx, w.Phase, map[string]string{
			"job_name": w.Name,
			"project":  w.Project,
		})
		if err != nil {
			logging.Warnf(ctx, "Failed to build remediation suggestion for %s: %v", w.Name, err)
		} else {
			report := remediation.FormatReport(suggestion)
			if len(report) > alertReportLimit {
				report = report[:alertReportLimit] + "..."
			}
			body += "\n\n" + report
		}
	}

	t.alerter.Notify(ctx, title, body)
}

// jobKey identifies a workload across polls. The scheduler's workload ID is
// stable across pod restarts; name+project is the fallback for API versions
// that omit it.
func jobKey(w types.Workload) string {
	if w.ID != "" {
		return w.ID
	}
	return w.Project + "/" + w.Name
}
