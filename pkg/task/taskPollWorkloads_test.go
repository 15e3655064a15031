package task

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/clustereye/clustereye/pkg/alerting"
	"github.com/clustereye/clustereye/pkg/config"
	"github.com/clustereye/clustereye/pkg/remediation"
	"github.com/clustereye/clustereye/pkg/repository/storage"
	"github.com/clustereye/clustereye/pkg/types"
)

type fakeDB struct {
	recorded     []*types.FailureObservation
	correlations map[string]int
	nextIsNew    bool
	recordErr    error
}

func newFakeDB() *fakeDB {
	return &fakeDB{correlations: make(map[string]int), nextIsNew: true}
}

func (f *fakeDB) Close() error { return nil }

func (f *fakeDB) RecordFailure(obs *types.FailureObservation) (int64, bool, error) {
	if f.recordErr != nil {
		return 0, false, f.recordErr
	}
	f.recorded = append(f.recorded, obs)
	return int64(len(f.recorded)), f.nextIsNew, nil
}

func (f *fakeDB) GetRecentFailures(days int, project string) ([]types.FailureEvent, error) {
	return nil, nil
}

func (f *fakeDB) GetPatternStats(days int) (*types.PatternStats, error) { return nil, nil }

func (f *fakeDB) UpdateCorrelation(correlationType, correlationValue string) error {
	f.correlations[correlationType+"/"+correlationValue]++
	return nil
}

func (f *fakeDB) GetCorrelation(correlationType, correlationValue string) (*types.Correlation, error) {
	return nil, nil
}

func (f *fakeDB) RecordSolution(failureType, solution string, success bool) error { return nil }

func (f *fakeDB) GetBestSolutions(failureType string, limit int) ([]types.RankedSolution, error) {
	return nil, nil
}

type fakeLister struct {
	workloads []types.Workload
	err       error
}

func (f *fakeLister) ListWorkloads(ctx context.Context, project string) ([]types.Workload, error) {
	return f.workloads, f.err
}

type fakeAlerter struct {
	titles   []string
	messages []string
}

func (f *fakeAlerter) Enabled() bool { return true }

func (f *fakeAlerter) Notify(ctx context.Context, title, message string) {
	f.titles = append(f.titles, title)
	f.messages = append(f.messages, message)
}

func newPollTask(t *testing.T, db *fakeDB, lister *fakeLister, alerter Alerter) *PollWorkloadsTask {
	t.Helper()
	stg, err := storage.NewStorageRepo(db)
	if err != nil {
		t.Fatalf("NewStorageRepo failed: %v", err)
	}
	task, err := NewPollWorkloadsTask(
		lister,
		nil,
		stg,
		remediation.NewEngine(db),
		alerter,
		alerting.NewDeduper(1),
		&PollWorkloadsTaskConfig{Name: "pollworkloads", Enabled: true, Schedule: "60s"},
		&config.TaskConfig{Enabled: true, Schedule: "60s"},
	)
	if err != nil {
		t.Fatalf("NewPollWorkloadsTask failed: %v", err)
	}
	return task
}

func TestPollRecordsOnlyFailedWorkloads(t *testing.T) {
	db := newFakeDB()
	lister := &fakeLister{workloads: []types.Workload{
		{ID: "1", Name: "train-1", Project: "ml-team", Phase: "Running"},
		{ID: "2", Name: "train-2", Project: "ml-team", Phase: "OOMKilled", NodeName: "gpu-node-03", Image: "pytorch:2.1"},
		{ID: "3", Name: "train-3", Project: "ml-team", Phase: "Completed"},
	}}
	alerter := &fakeAlerter{}
	task := newPollTask(t, db, lister, alerter)

	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(db.recorded) != 1 {
		t.Fatalf("Expected 1 recorded failure, got %d", len(db.recorded))
	}
	obs := db.recorded[0]
	if obs.JobName != "train-2" || obs.FailureType != "OOMKilled" || obs.Phase != "OOMKilled" {
		t.Errorf("Unexpected observation: %+v", obs)
	}
	if db.correlations["node/gpu-node-03"] != 1 || db.correlations["image/pytorch:2.1"] != 1 {
		t.Errorf("Expected correlation updates, got %v", db.correlations)
	}
}

func TestPollAlertsOnceOnNewFailure(t *testing.T) {
	db := newFakeDB()
	lister := &fakeLister{workloads: []types.Workload{
		{ID: "2", Name: "train-2", Project: "ml-team", Phase: "OOMKilled"},
	}}
	alerter := &fakeAlerter{}
	task := newPollTask(t, db, lister, alerter)

	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(alerter.titles) != 1 {
		t.Fatalf("Expected exactly 1 alert, got %d", len(alerter.titles))
	}
	if alerter.titles[0] != "Job Failure: train-2" {
		t.Errorf("Unexpected alert title: %q", alerter.titles[0])
	}
	if !strings.Contains(alerter.messages[0], "*Project:* ml-team") {
		t.Errorf("Alert missing project line:\n%s", alerter.messages[0])
	}
	if !strings.Contains(alerter.messages[0], "Increase memory request/limit by 2x") {
		t.Errorf("Alert missing remediation suggestion:\n%s", alerter.messages[0])
	}
}

func TestPollNoAlertOnDeduplicatedFailure(t *testing.T) {
	db := newFakeDB()
	db.nextIsNew = false
	lister := &fakeLister{workloads: []types.Workload{
		{ID: "2", Name: "train-2", Project: "ml-team", Phase: "Error", NodeName: "gpu-node-01"},
	}}
	alerter := &fakeAlerter{}
	task := newPollTask(t, db, lister, alerter)

	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(alerter.titles) != 0 {
		t.Errorf("Expected no alerts for deduplicated failure, got %v", alerter.titles)
	}
	if len(db.correlations) != 0 {
		t.Errorf("Deduplicated failures must not touch correlations, got %v", db.correlations)
	}
}

func TestPollRecoveryRearmsAlerting(t *testing.T) {
	db := newFakeDB()
	lister := &fakeLister{workloads: []types.Workload{
		{ID: "2", Name: "train-2", Project: "ml-team", Phase: "OOMKilled"},
	}}
	alerter := &fakeAlerter{}
	task := newPollTask(t, db, lister, alerter)

	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	lister.workloads[0].Phase = "Running"
	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	lister.workloads[0].Phase = "OOMKilled"
	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(alerter.titles) != 2 {
		t.Errorf("Expected 2 alerts across a recovery cycle, got %d", len(alerter.titles))
	}
}

func TestPollPropagatesListError(t *testing.T) {
	task := newPollTask(t, newFakeDB(), &fakeLister{err: errors.New("api down")}, &fakeAlerter{})
	if err := task.Run(context.Background()); err == nil {
		t.Error("Expected error when listing fails")
	}
}

func TestPollExtraFailurePhases(t *testing.T) {
	db := newFakeDB()
	lister := &fakeLister{workloads: []types.Workload{
		{ID: "4", Name: "train-4", Project: "ml-team", Phase: "Preempted"},
	}}
	stg, err := storage.NewStorageRepo(db)
	if err != nil {
		t.Fatalf("NewStorageRepo failed: %v", err)
	}
	task, err := NewPollWorkloadsTask(
		lister,
		nil,
		stg,
		nil,
		&fakeAlerter{},
		alerting.NewDeduper(1),
		&PollWorkloadsTaskConfig{Name: "pollworkloads", Enabled: true, Schedule: "60s"},
		&config.TaskConfig{
			Enabled:  true,
			Schedule: "60s",
			Metadata: map[string]interface{}{"extraFailurePhases": []string{"Preempted"}},
		},
	)
	if err != nil {
		t.Fatalf("NewPollWorkloadsTask failed: %v", err)
	}

	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(db.recorded) != 1 || db.recorded[0].FailureType != "Preempted" {
		t.Errorf("Expected Preempted failure to be recorded, got %+v", db.recorded)
	}
}

func TestPollProjectAllowList(t *testing.T) {
	db := newFakeDB()
	lister := &fakeLister{workloads: []types.Workload{
		{ID: "1", Name: "train-1", Project: "ml-team", Phase: "OOMKilled"},
		{ID: "2", Name: "infer-1", Project: "serving", Phase: "OOMKilled"},
	}}
	alerter := &fakeAlerter{}
	task := newPollTask(t, db, lister, alerter)
	task.config.AllowedProjects = []string{"ml-team"}

	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(db.recorded) != 1 || db.recorded[0].Project != "ml-team" {
		t.Errorf("Expected only ml-team failures to be recorded, got %+v", db.recorded)
	}
}

func TestPollProjectAllowListWildcard(t *testing.T) {
	db := newFakeDB()
	lister := &fakeLister{workloads: []types.Workload{
		{ID: "1", Name: "train-1", Project: "ml-team", Phase: "OOMKilled"},
		{ID: "2", Name: "infer-1", Project: "serving", Phase: "OOMKilled"},
	}}
	task := newPollTask(t, db, lister, &fakeAlerter{})
	task.config.AllowedProjects = []string{"*"}

	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(db.recorded) != 2 {
		t.Errorf("Expected both failures to be recorded, got %d", len(db.recorded))
	}
}

func TestNewPollWorkloadsTaskRejectsBadMetadata(t *testing.T) {
	db := newFakeDB()
	stg, err := storage.NewStorageRepo(db)
	if err != nil {
		t.Fatalf("NewStorageRepo failed: %v", err)
	}

	task, err := NewPollWorkloadsTask(
		&fakeLister{},
		nil,
		stg,
		nil,
		&fakeAlerter{},
		alerting.NewDeduper(1),
		&PollWorkloadsTaskConfig{Name: "pollworkloads", Enabled: true, Schedule: "60s"},
		&config.TaskConfig{
			Enabled:  true,
			Schedule: "60s",
			Metadata: map[string]interface{}{"extraFailurePhases": map[string]interface{}{"oops": true}},
		},
	)
	if err == nil {
		t.Fatal("Expected an error for undecodable metadata")
	}
	if task != nil {
		t.Errorf("Expected no task on metadata error, got %+v", task)
	}
}

func TestNewAnalyzePatternsTaskRejectsBadMetadata(t *testing.T) {
	task, err := NewAnalyzePatternsTask(
		nil,
		nil,
		&AnalyzePatternsTaskConfig{Name: "analyzepatterns", Enabled: true, Schedule: "1h"},
		&config.TaskConfig{
			Enabled:  true,
			Schedule: "1h",
			Metadata: map[string]interface{}{"windowDays": map[string]interface{}{"oops": true}},
		},
	)
	if err == nil {
		t.Fatal("Expected an error for undecodable metadata")
	}
	if task != nil {
		t.Errorf("Expected no task on metadata error, got %+v", task)
	}
}
