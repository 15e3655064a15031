package contextutils

import "context"

type contextKey string

const (
	clusterKey contextKey = "cluster"
	taskKey    contextKey = "task"
	apiKey     contextKey = "api"
	projectKey contextKey = "project"
)

func WithCluster(ctx context.Context, clusterID string) context.Context {
	return context.WithValue(ctx, clusterKey, clusterID)
}

func GetCluster(ctx context.Context) (string, bool) {
	cluster, ok := ctx.Value(clusterKey).(string)
	return cluster, ok
}

func WithTask(ctx context.Context, taskName string) context.Context {
	return context.WithValue(ctx, taskKey, taskName)
}

func WithAPI(ctx context.Context, apiPath string) context.Context {
	return context.WithValue(ctx, apiKey, apiPath)
}

func WithProject(ctx context.Context, project string) context.Context {
	return context.WithValue(ctx, projectKey, project)
}

// GetAttributes returns all context-carried attributes as a flat map,
// used by the logging package to annotate every log line.
func GetAttributes(ctx context.Context) map[string]string {
	attrs := make(map[string]string)
	for _, key := range []contextKey{clusterKey, taskKey, apiKey, projectKey} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			attrs[string(key)] = v
		}
	}
	return attrs
}
