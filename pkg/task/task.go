package task

import (
	"context"
)

// Task is a schedulable unit of background work.
type Task interface {
	GetName() string
	GetSchedule() string
	IsEnabled() bool
	GetCoreTask() any
	Run(ctx context.Context) error
}
