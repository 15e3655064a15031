package database

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/clustereye/clustereye/pkg/ports"
	"github.com/clustereye/clustereye/pkg/types"
	"github.com/jackc/pgx/v5/pgconn"
)

func newTestDB(t *testing.T) ports.Database {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test_clustereye.db")
	store, err := NewDatabase(DatabaseConfig{Type: "sqlite", Database: dbPath})
	if err != nil {
		t.Fatalf("Failed to create SQLite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func observation(job string) *types.FailureObservation {
	return &types.FailureObservation{
		JobName:        job,
		Project:        "ml-team",
		FailureType:    "OOMKilled",
		Phase:          "OOMKilled",
		NodeName:       "gpu-node-03",
		ContainerImage: "pytorch/pytorch:2.1",
		ErrorMessage:   "CUDA out of memory",
	}
}

// backdate moves a stored event's timestamp, to simulate the passage of time
// without sleeping in tests.
func backdate(t *testing.T, store ports.Database, id int64, to time.Time) {
	t.Helper()
	gdb, ok := store.(*GormDB)
	if !ok {
		t.Fatalf("Expected *GormDB, got %T", store)
	}
	if err := gdb.db.Model(&FailureEvent{}).Where("id = ?", id).Update("timestamp", to).Error; err != nil {
		t.Fatalf("Failed to backdate event %d: %v", id, err)
	}
}

func TestRecordFailureDedup(t *testing.T) {
	store := newTestDB(t)

	id1, isNew, err := store.RecordFailure(observation("train-1"))
	if err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if !isNew {
		t.Error("First observation must create a new row")
	}

	id2, isNew, err := store.RecordFailure(observation("train-1"))
	if err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if isNew {
		t.Error("Repeat observation within the window must not create a new row")
	}
	if id1 != id2 {
		t.Errorf("Expected same row id, got %d and %d", id1, id2)
	}

	events, err := store.GetRecentFailures(7, "")
	if err != nil {
		t.Fatalf("GetRecentFailures failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("Expected 1 stored event, got %d", len(events))
	}
}

func TestRecordFailureDedupWindowExpiry(t *testing.T) {
	store := newTestDB(t)

	id1, _, err := store.RecordFailure(observation("train-1"))
	if err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}

	backdate(t, store, id1, time.Now().UTC().Add(-DedupWindow-time.Minute))

	id2, isNew, err := store.RecordFailure(observation("train-1"))
	if err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if !isNew {
		t.Error("Observation outside the dedup window must create a new row")
	}
	if id1 == id2 {
		t.Errorf("Expected a distinct row, got the same id %d", id1)
	}
}

func TestRecordFailureDedupRefreshesTimestamp(t *testing.T) {
	store := newTestDB(t)

	id1, _, err := store.RecordFailure(observation("train-1"))
	if err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}

	// Halfway into the window. The repeat observation must refresh the
	// timestamp, sliding the window forward.
	backdate(t, store, id1, time.Now().UTC().Add(-DedupWindow/2))

	if _, isNew, err := store.RecordFailure(observation("train-1")); err != nil || isNew {
		t.Fatalf("Expected dedup hit, got isNew=%v err=%v", isNew, err)
	}

	events, err := store.GetRecentFailures(7, "")
	if err != nil {
		t.Fatalf("GetRecentFailures failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if time.Since(events[0].Timestamp) > time.Minute {
		t.Errorf("Expected refreshed timestamp, got %v", events[0].Timestamp)
	}
}

func TestRecordFailureDistinctPhases(t *testing.T) {
	store := newTestDB(t)

	obs := observation("train-1")
	if _, _, err := store.RecordFailure(obs); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}

	crashed := observation("train-1")
	crashed.FailureType = "CrashLoopBackOff"
	crashed.Phase = "CrashLoopBackOff"
	_, isNew, err := store.RecordFailure(crashed)
	if err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if !isNew {
		t.Error("Different phase for the same job must create a new row")
	}
}

func TestRecordFailureValidation(t *testing.T) {
	store := newTestDB(t)

	obs := observation("train-1")
	obs.JobName = ""
	if _, _, err := store.RecordFailure(obs); !errors.Is(err, types.ErrValidation) {
		t.Errorf("Expected validation error for missing job name, got %v", err)
	}

	if _, _, err := store.RecordFailure(nil); !errors.Is(err, types.ErrValidation) {
		t.Errorf("Expected validation error for nil observation, got %v", err)
	}
}

func TestGetRecentFailuresProjectFilter(t *testing.T) {
	store := newTestDB(t)

	if _, _, err := store.RecordFailure(observation("train-1")); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	other := observation("infer-1")
	other.Project = "serving"
	if _, _, err := store.RecordFailure(other); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}

	events, err := store.GetRecentFailures(7, "serving")
	if err != nil {
		t.Fatalf("GetRecentFailures failed: %v", err)
	}
	if len(events) != 1 || events[0].Project != "serving" {
		t.Errorf("Unexpected filtered events: %+v", events)
	}

	if _, err := store.GetRecentFailures(-1, ""); !errors.Is(err, types.ErrValidation) {
		t.Errorf("Expected validation error for negative days, got %v", err)
	}
}

func TestUpdateCorrelationIncrements(t *testing.T) {
	store := newTestDB(t)

	for i := 0; i < 5; i++ {
		if err := store.UpdateCorrelation("node", "gpu-node-03"); err != nil {
			t.Fatalf("UpdateCorrelation failed: %v", err)
		}
	}

	corr, err := store.GetCorrelation("node", "gpu-node-03")
	if err != nil {
		t.Fatalf("GetCorrelation failed: %v", err)
	}
	if corr == nil || corr.FailureCount != 5 {
		t.Errorf("Expected failure count 5, got %+v", corr)
	}
	if corr.LastSeen.Before(corr.FirstSeen) {
		t.Errorf("last_seen %v before first_seen %v", corr.LastSeen, corr.FirstSeen)
	}

	missing, err := store.GetCorrelation("node", "does-not-exist")
	if err != nil {
		t.Fatalf("GetCorrelation failed: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for unknown correlation, got %+v", missing)
	}
}

func TestGetBestSolutionsRanking(t *testing.T) {
	store := newTestDB(t)

	// Laplace smoothing: 3/(3+0+1)=0.75 beats 1/(1+0+1)=0.5 beats 1/(1+2+1)=0.25.
	for i := 0; i < 3; i++ {
		if err := store.RecordSolution("OOMKilled", "Increase memory to 32Gi", true); err != nil {
			t.Fatalf("RecordSolution failed: %v", err)
		}
	}
	if err := store.RecordSolution("OOMKilled", "Reduce batch size", true); err != nil {
		t.Fatalf("RecordSolution failed: %v", err)
	}
	if err := store.RecordSolution("OOMKilled", "Restart the job", true); err != nil {
		t.Fatalf("RecordSolution failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := store.RecordSolution("OOMKilled", "Restart the job", false); err != nil {
			t.Fatalf("RecordSolution failed: %v", err)
		}
	}
	if err := store.RecordSolution("Pending", "Reduce GPU request", true); err != nil {
		t.Fatalf("RecordSolution failed: %v", err)
	}

	solutions, err := store.GetBestSolutions("OOMKilled", 3)
	if err != nil {
		t.Fatalf("GetBestSolutions failed: %v", err)
	}
	if len(solutions) != 3 {
		t.Fatalf("Expected 3 solutions, got %d", len(solutions))
	}
	if solutions[0].Solution != "Increase memory to 32Gi" || solutions[0].SuccessRate != 0.75 {
		t.Errorf("Unexpected top solution: %+v", solutions[0])
	}
	if solutions[1].Solution != "Reduce batch size" || solutions[1].SuccessRate != 0.5 {
		t.Errorf("Unexpected second solution: %+v", solutions[1])
	}
	if solutions[2].SuccessCount != 1 || solutions[2].FailureCount != 2 {
		t.Errorf("Unexpected third solution counters: %+v", solutions[2])
	}

	limited, err := store.GetBestSolutions("OOMKilled", 1)
	if err != nil {
		t.Fatalf("GetBestSolutions failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("Expected limit to apply, got %d solutions", len(limited))
	}

	if _, err := store.GetBestSolutions("OOMKilled", 0); !errors.Is(err, types.ErrValidation) {
		t.Errorf("Expected validation error for limit 0, got %v", err)
	}
}

func TestGetBestSolutionsEmpty(t *testing.T) {
	store := newTestDB(t)

	solutions, err := store.GetBestSolutions("NeverSeen", 3)
	if err != nil {
		t.Fatalf("GetBestSolutions failed: %v", err)
	}
	if len(solutions) != 0 {
		t.Errorf("Expected no solutions, got %+v", solutions)
	}
}

func TestGetPatternStats(t *testing.T) {
	store := newTestDB(t)

	for i, job := range []string{"train-1", "train-2", "train-3"} {
		obs := observation(job)
		if i == 2 {
			obs.Project = "serving"
			obs.FailureType = "Error"
			obs.Phase = "Error"
			obs.NodeName = ""
			obs.ContainerImage = ""
		}
		if _, _, err := store.RecordFailure(obs); err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
	}

	stats, err := store.GetPatternStats(7)
	if err != nil {
		t.Fatalf("GetPatternStats failed: %v", err)
	}

	if len(stats.FailureTypes) != 2 || stats.FailureTypes[0].Value != "OOMKilled" || stats.FailureTypes[0].Count != 2 {
		t.Errorf("Unexpected failure type counts: %+v", stats.FailureTypes)
	}
	if len(stats.ProjectFailures) != 2 || stats.ProjectFailures[0].Value != "ml-team" {
		t.Errorf("Unexpected project counts: %+v", stats.ProjectFailures)
	}
	// Events without a node or image are excluded from those aggregations.
	if len(stats.NodeFailures) != 1 || stats.NodeFailures[0].Count != 2 {
		t.Errorf("Unexpected node counts: %+v", stats.NodeFailures)
	}
	if len(stats.ImageFailures) != 1 || stats.ImageFailures[0].Value != "pytorch/pytorch:2.1" {
		t.Errorf("Unexpected image counts: %+v", stats.ImageFailures)
	}
}

func TestSerializationFailureDetection(t *testing.T) {
	conflict := &pgconn.PgError{Code: "40001", Message: "could not serialize access due to concurrent update"}
	if !isSerializationFailure(fmt.Errorf("transaction failed: %w", conflict)) {
		t.Error("Expected a wrapped SQLSTATE 40001 to be retryable")
	}
	if isSerializationFailure(&pgconn.PgError{Code: "23505"}) {
		t.Error("Expected other postgres errors to not be retryable")
	}
	if isSerializationFailure(errors.New("connection refused")) {
		t.Error("Expected plain errors to not be retryable")
	}
	if isSerializationFailure(nil) {
		t.Error("Expected nil to not be retryable")
	}
}
