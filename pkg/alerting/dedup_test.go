package alerting

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDeduperBudget(t *testing.T) {
	d := NewDeduper(2)

	if !d.ShouldAlert("job-1") {
		t.Error("First alert should pass")
	}
	if !d.ShouldAlert("job-1") {
		t.Error("Second alert should pass with budget 2")
	}
	if d.ShouldAlert("job-1") {
		t.Error("Third alert should be suppressed")
	}
	if !d.ShouldAlert("job-2") {
		t.Error("Other jobs have their own budget")
	}
}

func TestDeduperDefaultBudgetIsOne(t *testing.T) {
	d := NewDeduper(0)
	if !d.ShouldAlert("job-1") {
		t.Error("First alert should pass")
	}
	if d.ShouldAlert("job-1") {
		t.Error("Second alert should be suppressed at default budget")
	}
}

func TestDeduperForgetRearms(t *testing.T) {
	d := NewDeduper(1)
	d.ShouldAlert("job-1")
	d.Forget("job-1")
	if !d.ShouldAlert("job-1") {
		t.Error("Forgotten job should alert again")
	}
	if d.Tracked() != 1 {
		t.Errorf("Expected 1 tracked job, got %d", d.Tracked())
	}
}

func TestDeduperEvictsOldestWhenFull(t *testing.T) {
	d := NewDeduper(1)
	d.maxTracked = 2

	d.ShouldAlert("job-1")
	d.ShouldAlert("job-2")
	d.ShouldAlert("job-3")

	if d.Tracked() != 2 {
		t.Errorf("Expected 2 tracked jobs after eviction, got %d", d.Tracked())
	}
	// job-1 was evicted, so its budget is fresh again.
	if !d.ShouldAlert("job-1") {
		t.Error("Evicted job should alert again")
	}
}

func TestNotifierPostsBlocks(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("Invalid payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNotifier(server.URL)
	n.Notify(context.Background(), "Job Failure: train-1", "*Project:* ml-team")

	if got["text"] != "Job Failure: train-1" {
		t.Errorf("Unexpected fallback text: %v", got["text"])
	}
	blocks, ok := got["blocks"].([]any)
	if !ok || len(blocks) != 2 {
		t.Fatalf("Expected 2 blocks, got %v", got["blocks"])
	}
}

func TestNotifierDisabledWithoutURL(t *testing.T) {
	n := NewNotifier("")
	if n.Enabled() {
		t.Error("Expected notifier to be disabled without a webhook URL")
	}
	// Must not panic or block.
	n.Notify(context.Background(), "title", "message")
}
