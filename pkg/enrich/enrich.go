package enrich

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/clustereye/clustereye/pkg/logging"
	"github.com/clustereye/clustereye/pkg/types"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

const (
	logTailLines = 50

	// Snippets are stored in the failure row and relayed to chat, so they
	// are kept short.
	snippetLimit      = 2000
	errorMessageLimit = 500

	// namespacePrefix maps a scheduler project to its Kubernetes namespace.
	namespacePrefix = "runai-"

	// workloadLabel is the pod label carrying the owning workload's name.
	workloadLabel = "workloadName"
)

// errorKeywords mark a log line as a probable error message.
var errorKeywords = []string{"error", "failed", "exception", "fatal"}

// Enricher fills in the optional fields of a failure observation (pod, node,
// image, logs, events, error message) from the Kubernetes API. Enrichment is
// best effort: a workload whose pod is already gone still yields a valid,
// just sparser, observation.
type Enricher struct {
	client kubernetes.Interface
}

func NewEnricher(client kubernetes.Interface) *Enricher {
	return &Enricher{client: client}
}

// Enrich looks up the failing workload's pod and fills obs in place.
func (e *Enricher) Enrich(ctx context.Context, obs *types.FailureObservation) {
	namespace := namespacePrefix + obs.Project

	pods, err := e.client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("%s=%s", workloadLabel, obs.JobName),
	})
	if err != nil {
		logging.Warnf(ctx, "Failed to list pods for job %s in %s: %v", obs.JobName, namespace, err)
		return
	}
	if len(pods.Items) == 0 {
		logging.Debugf(ctx, "No pod found for job %s in %s", obs.JobName, namespace)
		return
	}

	pod := pods.Items[0]
	obs.PodName = pod.Name
	if obs.NodeName == "" {
		obs.NodeName = pod.Spec.NodeName
	}
	if obs.ContainerImage == "" && len(pod.Spec.Containers) > 0 {
		obs.ContainerImage = pod.Spec.Containers[0].Image
	}

	if logs := e.fetchLogs(ctx, namespace, pod.Name); logs != "" {
		obs.LogsSnippet = truncate(logs, snippetLimit)
		if obs.ErrorMessage == "" {
			obs.ErrorMessage = ExtractErrorLine(logs)
		}
	}
	if events := e.fetchEvents(ctx, namespace, pod.Name); events != "" {
		obs.EventsSnippet = truncate(events, snippetLimit)
	}
}

func (e *Enricher) fetchLogs(ctx context.Context, namespace, podName string) string {
	tail := int64(logTailLines)
	req := e.client.CoreV1().Pods(namespace).GetLogs(podName, &corev1.PodLogOptions{TailLines: &tail})
	stream, err := req.Stream(ctx)
	if err != nil {
		logging.Debugf(ctx, "Failed to stream logs for pod %s: %v", podName, err)
		return ""
	}
	defer stream.Close()

	data, err := io.ReadAll(io.LimitReader(stream, snippetLimit*4))
	if err != nil {
		logging.Debugf(ctx, "Failed to read logs for pod %s: %v", podName, err)
		return ""
	}
	return string(data)
}

func (e *Enricher) fetchEvents(ctx context.Context, namespace, podName string) string {
	events, err := e.client.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{
		FieldSelector: fmt.Sprintf("involvedObject.name=%s", podName),
	})
	if err != nil {
		logging.Debugf(ctx, "Failed to list events for pod %s: %v", podName, err)
		return ""
	}
	if len(events.Items) == 0 {
		return ""
	}

	sort.Slice(events.Items, func(i, j int) bool {
		return events.Items[i].LastTimestamp.Before(&events.Items[j].LastTimestamp)
	})

	var b strings.Builder
	for _, ev := range events.Items {
		fmt.Fprintf(&b, "%s %s %s: %s\n", ev.LastTimestamp.Format("2006-01-02T15:04:05Z"), ev.Type, ev.Reason, ev.Message)
	}
	return b.String()
}

// ExtractErrorLine scans the last ten log lines, newest first, for the first
// line mentioning an error keyword.
func ExtractErrorLine(logs string) string {
	lines := strings.Split(logs, "\n")
	if len(lines) > 10 {
		lines = lines[len(lines)-10:]
	}
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		lower := strings.ToLower(line)
		for _, keyword := range errorKeywords {
			if strings.Contains(lower, keyword) {
				return truncate(line, errorMessageLimit)
			}
		}
	}
	return ""
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
