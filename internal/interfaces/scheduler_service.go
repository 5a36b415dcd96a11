package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/vantage/internal/models"
)

// ScheduleStatus describes the live state of one registered schedule
type ScheduleStatus struct {
	ID                  string           `json:"id"`
	ProjectID           string           `json:"project_id"`
	Frequency           models.Frequency `json:"frequency"`
	Enabled             bool             `json:"enabled"`
	NextRun             *time.Time       `json:"next_run,omitempty"`
	LastRun             *time.Time       `json:"last_run,omitempty"`
	RunningExecutions   int              `json:"running_executions"`
	SkippedFires        int              `json:"skipped_fires"`
	ConsecutiveFailures int              `json:"consecutive_failures"`
	Healthy             bool             `json:"healthy"`
}

// PipelineResult summarizes one downstream pipeline run triggered by a
// schedule fire or a manual request.
type PipelineResult struct {
	CorrelationID string                   `json:"correlation_id"`
	Triggered     bool                     `json:"triggered"`
	TasksExecuted int                      `json:"tasks_executed"`
	TasksFailed   int                      `json:"tasks_failed"`
	Results       []models.ExecutionResult `json:"results"`
	ReportID      string                   `json:"report_id,omitempty"`
}

// PipelineRunner runs the freshness check, task execution and optional
// report generation for a project. Implemented by the application layer and
// invoked by the schedule manager on each fire.
type PipelineRunner interface {
	RunPipeline(ctx context.Context, projectID, correlationID string) (*PipelineResult, error)
}

// SchedulerService owns recurring schedule definitions and their triggers
type SchedulerService interface {
	// Start registers triggers for all enabled persisted schedules and
	// starts the cron runner
	Start(ctx context.Context) error
	// Stop unregisters all triggers. In-flight executions run to completion.
	Stop() error
	IsRunning() bool

	// CreateSchedule validates and persists a schedule config and, when
	// enabled, registers its trigger
	CreateSchedule(ctx context.Context, config *models.ScheduleConfig) (string, error)
	// StartSchedule re-registers the trigger of a stopped schedule (idempotent)
	StartSchedule(ctx context.Context, id string) error
	// StopSchedule unregisters the trigger without deleting the config (idempotent)
	StopSchedule(ctx context.Context, id string) error
	// RemoveSchedule unregisters the trigger and deletes the config
	RemoveSchedule(ctx context.Context, id string) error
	// ExecuteNow runs a schedule out of band, subject to the same
	// concurrency ceiling as triggered fires
	ExecuteNow(ctx context.Context, id, correlationID string) (*models.ScheduleExecution, error)

	GetScheduleStatus(ctx context.Context, id string) (*ScheduleStatus, error)
}
