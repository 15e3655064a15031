package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/clustereye/clustereye/pkg/adapters/database/clients"
	"github.com/clustereye/clustereye/pkg/ports"
	"github.com/clustereye/clustereye/pkg/types"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DedupWindow bounds event volume for a job stuck in a crash loop: a repeat
// observation of the same (job, project, phase) within this window refreshes
// the existing row instead of creating a new one.
const DedupWindow = time.Hour

// DatabaseConfig holds configuration for database connections
type DatabaseConfig struct {
	Type     string `yaml:"type" json:"type"`         // "sqlite" or "postgres"
	Host     string `yaml:"host" json:"host"`         // For postgres
	Port     int    `yaml:"port" json:"port"`         // For postgres
	Database string `yaml:"database" json:"database"` // Database name or file path
	Username string `yaml:"username" json:"username"` // For postgres
	Password string `yaml:"password" json:"password"` // For postgres
	SSLMode  string `yaml:"sslmode" json:"sslmode"`   // For postgres
}

// NewDatabase creates a new storage instance based on the configuration
func NewDatabase(config DatabaseConfig) (ports.Database, error) {
	clientFactory, err := clients.CreateClientFactory(clients.FactoryConfig{
		Type:     config.Type,
		Host:     config.Host,
		Port:     config.Port,
		Database: config.Database,
		Username: config.Username,
		Password: config.Password,
		SSLMode:  config.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client factory: %w", err)
	}

	db, err := clientFactory.CreateClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create database client: %w", err)
	}

	return NewGormDB(db)
}

// GormDB implements the failure store using GORM. It is the shared
// implementation that works with any GORM-supported database.
type GormDB struct {
	db *gorm.DB
}

func NewGormDB(db *gorm.DB) (*GormDB, error) {
	gormDB := &GormDB{db: db}

	if err := gormDB.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return gormDB, nil
}

func (s *GormDB) createTables() error {
	if err := s.db.AutoMigrate(&FailureEvent{}); err != nil {
		return fmt.Errorf("failed to auto-migrate FailureEvent: %w", err)
	}
	if err := s.db.AutoMigrate(&FailureSolution{}); err != nil {
		return fmt.Errorf("failed to auto-migrate FailureSolution: %w", err)
	}
	if err := s.db.AutoMigrate(&FailureCorrelation{}); err != nil {
		return fmt.Errorf("failed to auto-migrate FailureCorrelation: %w", err)
	}
	return nil
}

func (s *GormDB) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}

// dedupTxRetries bounds retries of the dedup transaction when postgres
// aborts it with a serialization failure.
const dedupTxRetries = 3

// RecordFailure persists an observation with deduplication. When the same
// (job_name, project, phase) was recorded within DedupWindow the existing
// row's timestamp is refreshed and isNew is false. The read-then-write check
// runs in a serializable transaction so two near-simultaneous observations
// of the same failure cannot both insert; on postgres the losing transaction
// aborts with SQLSTATE 40001 and is retried.
func (s *GormDB) RecordFailure(obs *types.FailureObservation) (int64, bool, error) {
	if err := validateObservation(obs); err != nil {
		return 0, false, err
	}

	var id int64
	var isNew bool
	var err error

	for attempt := 0; attempt < dedupTxRetries; attempt++ {
		id, isNew, err = s.recordFailureTx(obs)
		if err == nil || !isSerializationFailure(err) {
			break
		}
	}

	if err != nil {
		return 0, false, fmt.Errorf("failed to record failure: %w", err)
	}

	return id, isNew, nil
}

func (s *GormDB) recordFailureTx(obs *types.FailureObservation) (int64, bool, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-DedupWindow)

	var id int64
	var isNew bool

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing FailureEvent
		err := tx.Where("job_name = ? AND project = ? AND phase = ? AND timestamp > ?",
			obs.JobName, obs.Project, obs.Phase, cutoff).
			Order("timestamp DESC").
			First(&existing).Error

		if err == nil {
			if err := tx.Model(&FailureEvent{}).
				Where("id = ?", existing.ID).
				Update("timestamp", now).Error; err != nil {
				return err
			}
			id = int64(existing.ID)
			isNew = false
			return nil
		}

		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		row := FailureEvent{
			JobName:        obs.JobName,
			Project:        obs.Project,
			FailureType:    obs.FailureType,
			Phase:          obs.Phase,
			Timestamp:      now,
			PodName:        obs.PodName,
			NodeName:       obs.NodeName,
			ContainerImage: obs.ContainerImage,
			ErrorMessage:   obs.ErrorMessage,
			LogsSnippet:    obs.LogsSnippet,
			EventsSnippet:  obs.EventsSnippet,
			GPUCount:       obs.GPUCount,
			MemoryRequest:  obs.MemoryRequest,
			CPURequest:     obs.CPURequest,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		id = int64(row.ID)
		isNew = true
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})

	return id, isNew, err
}

// isSerializationFailure reports a serializable-transaction conflict
// (postgres SQLSTATE 40001). The sqlite backend never produces one; its
// single-connection pool already serializes writers.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001"
	}
	return false
}

func validateObservation(obs *types.FailureObservation) error {
	if obs == nil {
		return types.Validationf("failure observation is nil")
	}
	if obs.JobName == "" {
		return types.Validationf("job_name is required")
	}
	if obs.Project == "" {
		return types.Validationf("project is required")
	}
	if obs.FailureType == "" {
		return types.Validationf("failure_type is required")
	}
	if obs.Phase == "" {
		return types.Validationf("phase is required")
	}
	return nil
}

func (s *GormDB) GetRecentFailures(days int, project string) ([]types.FailureEvent, error) {
	if days < 0 {
		return nil, types.Validationf("days must be non-negative, got %d", days)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	query := s.db.Where("timestamp >= ?", cutoff)
	if project != "" {
		query = query.Where("project = ?", project)
	}

	var rows []FailureEvent
	if err := query.Order("timestamp DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query recent failures: %w", err)
	}

	events := make([]types.FailureEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, toFailureEvent(row))
	}
	return events, nil
}

func toFailureEvent(row FailureEvent) types.FailureEvent {
	return types.FailureEvent{
		ID:             int64(row.ID),
		JobName:        row.JobName,
		Project:        row.Project,
		FailureType:    row.FailureType,
		Phase:          row.Phase,
		Timestamp:      row.Timestamp,
		PodName:        row.PodName,
		NodeName:       row.NodeName,
		ContainerImage: row.ContainerImage,
		ErrorMessage:   row.ErrorMessage,
		LogsSnippet:    row.LogsSnippet,
		EventsSnippet:  row.EventsSnippet,
		GPUCount:       row.GPUCount,
		MemoryRequest:  row.MemoryRequest,
		CPURequest:     row.CPURequest,
		Resolved:       row.Resolved,
		ResolutionType: row.ResolutionType,
		ResolvedAt:     row.ResolutionTimestamp,
		AutoRemediated: row.AutoRemediated,
	}
}

// UpdateCorrelation is a single atomic upsert: insert with count 1, or on
// conflict increment the count and bump last_seen.
func (s *GormDB) UpdateCorrelation(correlationType, correlationValue string) error {
	if correlationType == "" || correlationValue == "" {
		return types.Validationf("correlation type and value are required")
	}

	now := time.Now().UTC()

	row := FailureCorrelation{
		CorrelationType:  correlationType,
		CorrelationValue: correlationValue,
		FailureCount:     1,
		FirstSeen:        now,
		LastSeen:         now,
	}

	result := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "correlation_type"}, {Name: "correlation_value"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"failure_count": gorm.Expr("failure_count + 1"),
			"last_seen":     now,
		}),
	}).Create(&row)

	if result.Error != nil {
		return fmt.Errorf("failed to update correlation: %w", result.Error)
	}

	return nil
}

func (s *GormDB) GetCorrelation(correlationType, correlationValue string) (*types.Correlation, error) {
	var row FailureCorrelation
	err := s.db.Where("correlation_type = ? AND correlation_value = ?", correlationType, correlationValue).
		First(&row).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query correlation: %w", err)
	}

	return &types.Correlation{
		CorrelationType:  row.CorrelationType,
		CorrelationValue: row.CorrelationValue,
		FailureCount:     row.FailureCount,
		FirstSeen:        row.FirstSeen,
		LastSeen:         row.LastSeen,
	}, nil
}

type frequencyRow struct {
	Value string
	Count int
}

func (s *GormDB) GetPatternStats(days int) (*types.PatternStats, error) {
	if days < 0 {
		return nil, types.Validationf("days must be non-negative, got %d", days)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	failureTypes, err := s.groupedCounts("failure_type", cutoff, "", 0)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate failure types: %w", err)
	}

	projectFailures, err := s.groupedCounts("project", cutoff, "", 0)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate project failures: %w", err)
	}

	nodeFailures, err := s.groupedCounts("node_name", cutoff, "node_name <> ''", 0)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate node failures: %w", err)
	}

	imageFailures, err := s.groupedCounts("container_image", cutoff, "container_image <> ''", 10)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate image failures: %w", err)
	}

	return &types.PatternStats{
		FailureTypes:    failureTypes,
		ProjectFailures: projectFailures,
		NodeFailures:    nodeFailures,
		ImageFailures:   imageFailures,
	}, nil
}

func (s *GormDB) groupedCounts(column string, cutoff time.Time, extraWhere string, limit int) ([]types.FrequencyCount, error) {
	query := s.db.Model(&FailureEvent{}).
		Select(column+" AS value, COUNT(*) AS count").
		Where("timestamp >= ?", cutoff)
	if extraWhere != "" {
		query = query.Where(extraWhere)
	}
	query = query.Group(column).Order("count DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []frequencyRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make([]types.FrequencyCount, 0, len(rows))
	for _, row := range rows {
		counts = append(counts, types.FrequencyCount{Value: row.Value, Count: row.Count})
	}
	return counts, nil
}

// RecordSolution upserts a solution outcome, incrementing exactly one of the
// two counters and always bumping last_used.
func (s *GormDB) RecordSolution(failureType, solution string, success bool) error {
	if failureType == "" || solution == "" {
		return types.Validationf("failure type and solution are required")
	}

	now := time.Now().UTC()

	successInc := 0
	failureInc := 0
	if success {
		successInc = 1
	} else {
		failureInc = 1
	}

	row := FailureSolution{
		FailureType:         failureType,
		SolutionDescription: solution,
		SuccessCount:        successInc,
		FailureCount:        failureInc,
		LastUsed:            now,
	}

	result := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "failure_type"}, {Name: "solution_description"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"success_count": gorm.Expr("success_count + ?", successInc),
			"failure_count": gorm.Expr("failure_count + ?", failureInc),
			"last_used":     now,
		}),
	}).Create(&row)

	if result.Error != nil {
		return fmt.Errorf("failed to record solution: %w", result.Error)
	}

	return nil
}

type solutionRow struct {
	SolutionDescription string
	SuccessCount        int
	FailureCount        int
	SuccessRate         float64
}

// GetBestSolutions ranks solutions by the Laplace-smoothed success rate
// success/(success+failure+1). The +1 keeps rarely-tried solutions from ever
// scoring 100% and guards the division.
func (s *GormDB) GetBestSolutions(failureType string, limit int) ([]types.RankedSolution, error) {
	if limit <= 0 {
		return nil, types.Validationf("limit must be positive, got %d", limit)
	}

	var rows []solutionRow
	err := s.db.Model(&FailureSolution{}).
		Select("solution_description, success_count, failure_count, " +
			"(success_count * 1.0 / (success_count + failure_count + 1)) AS success_rate").
		Where("failure_type = ?", failureType).
		Order("success_rate DESC, success_count DESC").
		Limit(limit).
		Scan(&rows).Error

	if err != nil {
		return nil, fmt.Errorf("failed to query best solutions: %w", err)
	}

	solutions := make([]types.RankedSolution, 0, len(rows))
	for _, row := range rows {
		solutions = append(solutions, types.RankedSolution{
			Solution:     row.SolutionDescription,
			SuccessRate:  row.SuccessRate,
			SuccessCount: row.SuccessCount,
			FailureCount: row.FailureCount,
		})
	}
	return solutions, nil
}
