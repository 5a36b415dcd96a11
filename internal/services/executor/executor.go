// Package executor runs prioritized scraping tasks strictly sequentially.
// The sequential order and the inter-task delay are a deliberate
// backpressure mechanism bounding load on the collection collaborator.
package executor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
)

// Service executes scraping tasks against the collection collaborator and
// persists successful snapshots. Each task gets at most one attempt per run;
// retries, if any, belong inside the collaborator.
type Service struct {
	config      common.ExecutorConfig
	collector   interfaces.Collector
	snapshots   interfaces.SnapshotStorage
	logger      arbor.ILogger
	taskDelay   time.Duration
	taskTimeout time.Duration
}

// NewService creates a new task executor
func NewService(config common.ExecutorConfig, collector interfaces.Collector, snapshots interfaces.SnapshotStorage, logger arbor.ILogger) *Service {
	return &Service{
		config:      config,
		collector:   collector,
		snapshots:   snapshots,
		logger:      logger,
		taskDelay:   common.ParseDurationOr(config.TaskDelay, 2*time.Second),
		taskTimeout: common.ParseDurationOr(config.TaskTimeout, 60*time.Second),
	}
}

// Execute runs the tasks in priority order (HIGH, MEDIUM, LOW; stable within
// equal priority) and returns one result per task in execution order. A task
// failure is recorded with its cause and never halts the remaining tasks.
func (s *Service) Execute(ctx context.Context, tasks []models.ScrapingTask, correlationID string) []models.ExecutionResult {
	log := s.logger.WithCorrelationId(correlationID)

	ordered := make([]models.ScrapingTask, len(tasks))
	copy(ordered, tasks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority.Weight() < ordered[j].Priority.Weight()
	})

	results := make([]models.ExecutionResult, 0, len(ordered))

	for i, task := range ordered {
		if i > 0 && s.taskDelay > 0 {
			select {
			case <-time.After(s.taskDelay):
			case <-ctx.Done():
				// Run cancelled: record remaining tasks as not attempted failures
				for _, remaining := range ordered[i:] {
					results = append(results, models.ExecutionResult{
						Task:    remaining,
						Success: false,
						Error:   fmt.Sprintf("run cancelled before task started: %v", ctx.Err()),
					})
				}
				return results
			}
		}

		results = append(results, s.executeTask(ctx, task, correlationID, log))
	}

	succeeded := 0
	for _, result := range results {
		if result.Success {
			succeeded++
		}
	}
	log.Info().
		Int("tasks", len(results)).
		Int("succeeded", succeeded).
		Int("failed", len(results)-succeeded).
		Msg("Task execution run completed")

	return results
}

// executeTask runs a single task in isolation. Panics and collaborator
// errors are captured into the result, never propagated.
func (s *Service) executeTask(ctx context.Context, task models.ScrapingTask, correlationID string, log arbor.ILogger) (result models.ExecutionResult) {
	result = models.ExecutionResult{Task: task}
	start := time.Now()

	defer func() {
		result.Duration = time.Since(start)
		if r := recover(); r != nil {
			result.Success = false
			result.Error = fmt.Sprintf("panic: %v", r)
			log.Error().
				Str("entity_id", task.EntityID).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in task execution")
		}
	}()

	log.Info().
		Str("entity_id", task.EntityID).
		Str("priority", string(task.Priority)).
		Str("url", task.URL).
		Msg("Task started")

	taskCtx := ctx
	if s.taskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, s.taskTimeout)
		defer cancel()
	}

	collected, err := s.collector.Collect(taskCtx, task.URL)
	if err != nil {
		result.Success = false
		result.Error = err.Error()
		log.Warn().
			Str("entity_id", task.EntityID).
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("Task failed")
		return result
	}

	snapshot := &models.Snapshot{
		ID:          common.NewSnapshotID(),
		EntityID:    task.EntityID,
		Content:     collected.Content,
		ContentType: collected.ContentType,
		Title:       collected.Title,
		StatusCode:  collected.StatusCode,
		SizeBytes:   collected.SizeBytes,
		CapturedAt:  collected.CapturedAt,
	}

	if err := s.snapshots.SaveSnapshot(ctx, snapshot); err != nil {
		result.Success = false
		result.Error = models.WrapPipelineError(models.ErrPersistence, "save_snapshot", correlationID, err).Error()
		log.Error().
			Str("entity_id", task.EntityID).
			Err(err).
			Msg("Failed to persist snapshot")
		return result
	}

	result.Success = true
	result.Snapshot = snapshot
	log.Info().
		Str("entity_id", task.EntityID).
		Str("snapshot_id", snapshot.ID).
		Dur("duration", time.Since(start)).
		Msg("Task completed")

	return result
}
