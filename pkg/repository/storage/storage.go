package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/clustereye/clustereye/pkg/logging"
	"github.com/clustereye/clustereye/pkg/metrics"
	"github.com/clustereye/clustereye/pkg/ports"
	"github.com/clustereye/clustereye/pkg/types"
)

// Storage is the sole writer of persisted failure state. Monitors and
// handlers both record through it so correlation bookkeeping cannot diverge.
type Storage struct {
	DB ports.Database
}

func NewStorageRepo(db ports.Database) (*Storage, error) {
	return &Storage{DB: db}, nil
}

// RecordObservation persists a failure observation and, only when it created
// a new row, updates the node and image correlation tallies. Deduplicated
// repeats must not inflate correlations.
func (s *Storage) RecordObservation(ctx context.Context, obs *types.FailureObservation) (int64, bool, error) {
	id, isNew, err := s.DB.RecordFailure(obs)
	if err != nil {
		if errors.Is(err, types.ErrValidation) {
			return 0, false, err
		}
		return 0, false, fmt.Errorf("failed to record failure: %w", err)
	}

	outcome := "deduplicated"
	if isNew {
		outcome = "new"
	}
	metrics.FailureEventsTotal.WithLabelValues(obs.Project, obs.FailureType, outcome).Inc()

	if !isNew {
		logging.Infof(ctx, "Updated existing failure #%d for job %s (still failing, within dedup window)", id, obs.JobName)
		return id, false, nil
	}

	logging.Infof(ctx, "Recorded new failure #%d for job %s (%s)", id, obs.JobName, obs.FailureType)

	if obs.NodeName != "" {
		if err := s.DB.UpdateCorrelation("node", obs.NodeName); err != nil {
			logging.Errorf(ctx, "Failed to update node correlation for %s: %v", obs.NodeName, err)
		} else {
			metrics.CorrelationUpdatesTotal.WithLabelValues("node").Inc()
		}
	}
	if obs.ContainerImage != "" {
		if err := s.DB.UpdateCorrelation("image", obs.ContainerImage); err != nil {
			logging.Errorf(ctx, "Failed to update image correlation for %s: %v", obs.ContainerImage, err)
		} else {
			metrics.CorrelationUpdatesTotal.WithLabelValues("image").Inc()
		}
	}

	return id, true, nil
}

func (s *Storage) GetRecentFailures(days int, project string) ([]types.FailureEvent, error) {
	events, err := s.DB.GetRecentFailures(days, project)
	if err != nil {
		if errors.Is(err, types.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read recent failures: %w", err)
	}
	return events, nil
}

func (s *Storage) GetPatternStats(days int) (*types.PatternStats, error) {
	stats, err := s.DB.GetPatternStats(days)
	if err != nil {
		if errors.Is(err, types.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read pattern stats: %w", err)
	}
	return stats, nil
}

func (s *Storage) UpdateCorrelation(correlationType, correlationValue string) error {
	if err := s.DB.UpdateCorrelation(correlationType, correlationValue); err != nil {
		if errors.Is(err, types.ErrValidation) {
			return err
		}
		return fmt.Errorf("failed to update correlation: %w", err)
	}
	metrics.CorrelationUpdatesTotal.WithLabelValues(correlationType).Inc()
	return nil
}

func (s *Storage) RecordSolution(failureType, solution string, success bool) error {
	if err := s.DB.RecordSolution(failureType, solution, success); err != nil {
		if errors.Is(err, types.ErrValidation) {
			return err
		}
		return fmt.Errorf("failed to record solution: %w", err)
	}
	return nil
}

func (s *Storage) GetBestSolutions(failureType string, limit int) ([]types.RankedSolution, error) {
	solutions, err := s.DB.GetBestSolutions(failureType, limit)
	if err != nil {
		if errors.Is(err, types.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read best solutions: %w", err)
	}
	return solutions, nil
}
