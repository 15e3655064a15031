package ports

import (
	"github.com/clustereye/clustereye/pkg/types"
)

type Database interface {
	Close() error

	// Failure events
	RecordFailure(obs *types.FailureObservation) (id int64, isNew bool, err error)
	GetRecentFailures(days int, project string) ([]types.FailureEvent, error)
	GetPatternStats(days int) (*types.PatternStats, error)

	// Correlations
	UpdateCorrelation(correlationType, correlationValue string) error
	GetCorrelation(correlationType, correlationValue string) (*types.Correlation, error)

	// Solutions
	RecordSolution(failureType, solution string, success bool) error
	GetBestSolutions(failureType string, limit int) ([]types.RankedSolution, error)
}
