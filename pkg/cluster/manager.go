package cluster

import (
	"context"
	"fmt"
	"sync"

	"github.com/clustereye/clustereye/pkg/task"
)

const (
	SingleClusterID = "default"
)

// Manager owns the background tasks for one cluster.
type Manager interface {
	AddTask(task task.Task)
	GetTask(taskName string) (task.Task, error)
	GetTaskNames() []string
	ScheduleAllTasks() error
	Wait(ctx context.Context)
	Stop(ctx context.Context)
}

type SingleClusterManager struct {
	mu              sync.RWMutex
	scheduler       *Scheduler
	registeredTasks map[string]task.Task
}

func NewSingleClusterManager(ctx context.Context) *SingleClusterManager {
	return &SingleClusterManager{
		scheduler:       NewScheduler(),
		registeredTasks: make(map[string]task.Task),
	}
}

func (m *SingleClusterManager) AddTask(task task.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if task == nil || !task.IsEnabled() {
		return
	}

	m.registeredTasks[task.GetName()] = task
}

func (m *SingleClusterManager) GetTask(taskName string) (task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	task, exists := m.registeredTasks[taskName]
	if !exists {
		return nil, fmt.Errorf("task %s not found", taskName)
	}

	return task, nil
}

func (m *SingleClusterManager) GetTaskNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.registeredTasks))
	for name := range m.registeredTasks {
		names = append(names, name)
	}
	return names
}

func (m *SingleClusterManager) ScheduleAllTasks() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for taskName, t := range m.registeredTasks {
		m.scheduler.ScheduleTask(context.Background(), taskName, t.GetSchedule(), t.Run)
	}

	return nil
}

func (m *SingleClusterManager) Wait(ctx context.Context) {
	m.scheduler.Wait(ctx)
}

func (m *SingleClusterManager) Stop(ctx context.Context) {
	m.scheduler.Stop(ctx)
}
