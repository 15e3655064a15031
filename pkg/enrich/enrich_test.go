package enrich

import (
	"context"
	"strings"
	"testing"

	"github.com/clustereye/clustereye/pkg/types"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func TestEnrichFillsPodDetails(t *testing.T) {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "train-1-0-0",
			Namespace: "runai-ml-team",
			Labels:    map[string]string{"workloadName": "train-1"},
		},
		Spec: corev1.PodSpec{
			NodeName:   "gpu-node-03",
			Containers: []corev1.Container{{Name: "main", Image: "pytorch/pytorch:2.1"}},
		},
	}
	client := fake.NewSimpleClientset(pod)
	e := NewEnricher(client)

	obs := &types.FailureObservation{
		JobName:     "train-1",
		Project:     "ml-team",
		FailureType: "OOMKilled",
		Phase:       "OOMKilled",
	}
	e.Enrich(context.Background(), obs)

	if obs.PodName != "train-1-0-0" {
		t.Errorf("Expected pod name to be filled, got %q", obs.PodName)
	}
	if obs.NodeName != "gpu-node-03" {
		t.Errorf("Expected node name to be filled, got %q", obs.NodeName)
	}
	if obs.ContainerImage != "pytorch/pytorch:2.1" {
		t.Errorf("Expected container image to be filled, got %q", obs.ContainerImage)
	}
	if obs.LogsSnippet == "" {
		t.Error("Expected logs snippet to be filled")
	}
}

func TestEnrichNoPodIsBestEffort(t *testing.T) {
	e := NewEnricher(fake.NewSimpleClientset())

	obs := &types.FailureObservation{
		JobName:     "gone-job",
		Project:     "ml-team",
		FailureType: "Error",
		Phase:       "Error",
		NodeName:    "gpu-node-01",
	}
	e.Enrich(context.Background(), obs)

	if obs.PodName != "" {
		t.Errorf("Expected no pod name, got %q", obs.PodName)
	}
	if obs.NodeName != "gpu-node-01" {
		t.Errorf("Node name from the scheduler must survive enrichment, got %q", obs.NodeName)
	}
}

func TestEnrichKeepsExistingNodeAndImage(t *testing.T) {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "train-2-0-0",
			Namespace: "runai-ml-team",
			Labels:    map[string]string{"workloadName": "train-2"},
		},
		Spec: corev1.PodSpec{
			NodeName:   "gpu-node-09",
			Containers: []corev1.Container{{Name: "main", Image: "other:latest"}},
		},
	}
	e := NewEnricher(fake.NewSimpleClientset(pod))

	obs := &types.FailureObservation{
		JobName:        "train-2",
		Project:        "ml-team",
		FailureType:    "Error",
		Phase:          "Error",
		NodeName:       "gpu-node-03",
		ContainerImage: "pytorch/pytorch:2.1",
	}
	e.Enrich(context.Background(), obs)

	if obs.NodeName != "gpu-node-03" || obs.ContainerImage != "pytorch/pytorch:2.1" {
		t.Errorf("Scheduler-reported node/image must win: node=%q image=%q", obs.NodeName, obs.ContainerImage)
	}
}

func TestExtractErrorLine(t *testing.T) {
	logs := strings.Join([]string{
		"loading dataset",
		"epoch 1 done",
		"RuntimeError: CUDA out of memory",
		"cleaning up",
	}, "\n")
	if got := ExtractErrorLine(logs); got != "RuntimeError: CUDA out of memory" {
		t.Errorf("Unexpected error line: %q", got)
	}
}

func TestExtractErrorLinePrefersNewest(t *testing.T) {
	logs := strings.Join([]string{
		"Error: first problem",
		"retrying",
		"FATAL: could not recover",
	}, "\n")
	if got := ExtractErrorLine(logs); got != "FATAL: could not recover" {
		t.Errorf("Expected newest error line, got %q", got)
	}
}

func TestExtractErrorLineOnlyScansTail(t *testing.T) {
	lines := []string{"Error: buried too deep"}
	for i := 0; i < 15; i++ {
		lines = append(lines, "all quiet")
	}
	if got := ExtractErrorLine(strings.Join(lines, "\n")); got != "" {
		t.Errorf("Expected no match outside the last ten lines, got %q", got)
	}
}

func TestExtractErrorLineTruncates(t *testing.T) {
	long := "error: " + strings.Repeat("x", 600)
	got := ExtractErrorLine(long)
	if len(got) != 500 {
		t.Errorf("Expected 500-byte error message, got %d bytes", len(got))
	}
}

func TestExtractErrorLineNoMatch(t *testing.T) {
	if got := ExtractErrorLine("all good\nstill fine"); got != "" {
		t.Errorf("Expected empty result, got %q", got)
	}
}
