package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ScheduleStorage implements the ScheduleStorage interface for Badger
type ScheduleStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewScheduleStorage creates a new ScheduleStorage instance
func NewScheduleStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ScheduleStorage {
	return &ScheduleStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ScheduleStorage) SaveScheduleConfig(ctx context.Context, config *models.ScheduleConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid schedule config: %w", err)
	}

	now := time.Now()
	if config.CreatedAt.IsZero() {
		config.CreatedAt = now
	}
	config.UpdatedAt = now

	if err := s.db.Store().Upsert(config.ID, config); err != nil {
		return fmt.Errorf("failed to save schedule config: %w", err)
	}
	return nil
}

func (s *ScheduleStorage) GetScheduleConfig(ctx context.Context, id string) (*models.ScheduleConfig, error) {
	var config models.ScheduleConfig
	if err := s.db.Store().Get(id, &config); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.NewPipelineError(models.ErrNotFound, "get_schedule", "", fmt.Sprintf("schedule not found: %s", id))
		}
		return nil, fmt.Errorf("failed to get schedule config: %w", err)
	}
	return &config, nil
}

func (s *ScheduleStorage) ListScheduleConfigs(ctx context.Context) ([]*models.ScheduleConfig, error) {
	var configs []models.ScheduleConfig
	query := badgerhold.Where("ID").Ne("").SortBy("CreatedAt")
	if err := s.db.Store().Find(&configs, query); err != nil {
		return nil, fmt.Errorf("failed to list schedule configs: %w", err)
	}
	result := make([]*models.ScheduleConfig, len(configs))
	for i := range configs {
		result[i] = &configs[i]
	}
	return result, nil
}

func (s *ScheduleStorage) ListEnabledScheduleConfigs(ctx context.Context) ([]*models.ScheduleConfig, error) {
	var configs []models.ScheduleConfig
	query := badgerhold.Where("Enabled").Eq(true).SortBy("CreatedAt")
	if err := s.db.Store().Find(&configs, query); err != nil {
		return nil, fmt.Errorf("failed to list enabled schedule configs: %w", err)
	}
	result := make([]*models.ScheduleConfig, len(configs))
	for i := range configs {
		result[i] = &configs[i]
	}
	return result, nil
}

func (s *ScheduleStorage) DeleteScheduleConfig(ctx context.Context, id string) error {
	// Drop execution history along with the config
	if err := s.db.Store().DeleteMatching(&models.ScheduleExecution{}, badgerhold.Where("ScheduleID").Eq(id)); err != nil {
		return fmt.Errorf("failed to delete executions for schedule %s: %w", id, err)
	}
	if err := s.db.Store().Delete(id, &models.ScheduleConfig{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete schedule config: %w", err)
	}
	return nil
}

func (s *ScheduleStorage) SaveExecution(ctx context.Context, execution *models.ScheduleExecution) error {
	if execution.ID == "" {
		return fmt.Errorf("execution ID is required")
	}
	if execution.ScheduleID == "" {
		return fmt.Errorf("execution schedule ID is required")
	}
	if err := s.db.Store().Upsert(execution.ID, execution); err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}
	return nil
}

func (s *ScheduleStorage) GetExecution(ctx context.Context, id string) (*models.ScheduleExecution, error) {
	var execution models.ScheduleExecution
	if err := s.db.Store().Get(id, &execution); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.NewPipelineError(models.ErrNotFound, "get_execution", "", fmt.Sprintf("execution not found: %s", id))
		}
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}
	return &execution, nil
}

// CountRunningExecutions returns the number of RUNNING executions for a
// schedule. The schedule manager checks this against the concurrency ceiling
// before beginning a run.
func (s *ScheduleStorage) CountRunningExecutions(ctx context.Context, scheduleID string) (int, error) {
	query := badgerhold.Where("ScheduleID").Eq(scheduleID).And("Status").Eq(models.ExecutionStatusRunning)
	count, err := s.db.Store().Count(&models.ScheduleExecution{}, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count running executions: %w", err)
	}
	return int(count), nil
}

func (s *ScheduleStorage) ListExecutions(ctx context.Context, scheduleID string, limit int) ([]*models.ScheduleExecution, error) {
	query := badgerhold.Where("ScheduleID").Eq(scheduleID).SortBy("StartedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}
	var executions []models.ScheduleExecution
	if err := s.db.Store().Find(&executions, query); err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	result := make([]*models.ScheduleExecution, len(executions))
	for i := range executions {
		result[i] = &executions[i]
	}
	return result, nil
}

// LastSuccessfulStart returns the start time of the most recent succeeded
// execution, or zero time when none exists.
func (s *ScheduleStorage) LastSuccessfulStart(ctx context.Context, scheduleID string) (time.Time, error) {
	var executions []models.ScheduleExecution
	query := badgerhold.Where("ScheduleID").Eq(scheduleID).
		And("Status").Eq(models.ExecutionStatusSucceeded).
		SortBy("StartedAt").Reverse().Limit(1)
	if err := s.db.Store().Find(&executions, query); err != nil {
		return time.Time{}, fmt.Errorf("failed to query last successful execution: %w", err)
	}
	if len(executions) == 0 {
		return time.Time{}, nil
	}
	return executions[0].StartedAt, nil
}

// PruneExecutions drops executions beyond the retained history window,
// oldest first. Terminal and running executions alike count against the
// window, but running executions are never pruned.
func (s *ScheduleStorage) PruneExecutions(ctx context.Context, scheduleID string, keep int) error {
	if keep <= 0 {
		return nil
	}

	var executions []models.ScheduleExecution
	query := badgerhold.Where("ScheduleID").Eq(scheduleID).SortBy("StartedAt").Reverse()
	if err := s.db.Store().Find(&executions, query); err != nil {
		return fmt.Errorf("failed to query executions for pruning: %w", err)
	}
	if len(executions) <= keep {
		return nil
	}

	pruned := 0
	for _, execution := range executions[keep:] {
		if execution.Status == models.ExecutionStatusRunning {
			continue
		}
		if err := s.db.Store().Delete(execution.ID, &models.ScheduleExecution{}); err != nil {
			s.logger.Warn().Err(err).Str("execution_id", execution.ID).Msg("Failed to prune execution")
			continue
		}
		pruned++
	}

	if pruned > 0 {
		s.logger.Debug().Str("schedule_id", scheduleID).Int("pruned", pruned).Msg("Execution history pruned")
	}
	return nil
}

// FailRunningExecutions marks all RUNNING executions as failed. Used on
// startup to clean executions orphaned by a previous process.
func (s *ScheduleStorage) FailRunningExecutions(ctx context.Context, reason string) (int, error) {
	var executions []models.ScheduleExecution
	query := badgerhold.Where("Status").Eq(models.ExecutionStatusRunning)
	if err := s.db.Store().Find(&executions, query); err != nil {
		return 0, fmt.Errorf("failed to query running executions: %w", err)
	}

	failed := 0
	now := time.Now()
	for i := range executions {
		execution := &executions[i]
		if err := execution.Complete(models.ExecutionStatusFailed, reason, now); err != nil {
			continue
		}
		if err := s.db.Store().Upsert(execution.ID, execution); err != nil {
			s.logger.Warn().Err(err).Str("execution_id", execution.ID).Msg("Failed to update orphaned execution")
			continue
		}
		failed++
	}

	if failed > 0 {
		s.logger.Info().Int("count", failed).Msg("Orphaned executions marked as failed")
	}
	return failed, nil
}
