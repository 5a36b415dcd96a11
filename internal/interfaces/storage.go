package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/vantage/internal/models"
)

// ProjectStorage handles project and tracked entity persistence
type ProjectStorage interface {
	SaveProject(ctx context.Context, project *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]*models.Project, error)
	DeleteProject(ctx context.Context, id string) error

	SaveEntity(ctx context.Context, entity *models.TrackedEntity) error
	GetEntity(ctx context.Context, id string) (*models.TrackedEntity, error)
	ListEntities(ctx context.Context, projectID string) ([]*models.TrackedEntity, error)
	// GetProduct returns the single tracked product of a project
	GetProduct(ctx context.Context, projectID string) (*models.TrackedEntity, error)
	// ListCompetitors returns the competitors of a project
	ListCompetitors(ctx context.Context, projectID string) ([]*models.TrackedEntity, error)
	DeleteEntity(ctx context.Context, id string) error
}

// SnapshotStorage handles append-only snapshot persistence. Existing
// snapshots are never mutated.
type SnapshotStorage interface {
	// SaveSnapshot appends a new snapshot
	SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error
	// GetLatestSnapshot returns the snapshot with the maximum captured time
	// for the entity, or nil when none exists
	GetLatestSnapshot(ctx context.Context, entityID string) (*models.Snapshot, error)
	// ListSnapshots returns snapshots for an entity, newest first
	ListSnapshots(ctx context.Context, entityID string, limit int) ([]*models.Snapshot, error)
	// DeleteSnapshotsByEntity removes all snapshots of an entity (cascade)
	DeleteSnapshotsByEntity(ctx context.Context, entityID string) error
}

// ScheduleStorage handles schedule configs and execution history
type ScheduleStorage interface {
	SaveScheduleConfig(ctx context.Context, config *models.ScheduleConfig) error
	GetScheduleConfig(ctx context.Context, id string) (*models.ScheduleConfig, error)
	ListScheduleConfigs(ctx context.Context) ([]*models.ScheduleConfig, error)
	ListEnabledScheduleConfigs(ctx context.Context) ([]*models.ScheduleConfig, error)
	DeleteScheduleConfig(ctx context.Context, id string) error

	SaveExecution(ctx context.Context, execution *models.ScheduleExecution) error
	GetExecution(ctx context.Context, id string) (*models.ScheduleExecution, error)
	// CountRunningExecutions returns the number of RUNNING executions for a schedule
	CountRunningExecutions(ctx context.Context, scheduleID string) (int, error)
	// ListExecutions returns executions for a schedule, newest first
	ListExecutions(ctx context.Context, scheduleID string, limit int) ([]*models.ScheduleExecution, error)
	// LastSuccessfulStart returns the start time of the most recent succeeded
	// execution, or zero time when none exists
	LastSuccessfulStart(ctx context.Context, scheduleID string) (time.Time, error)
	// PruneExecutions drops executions beyond the retained history window
	PruneExecutions(ctx context.Context, scheduleID string, keep int) error
	// FailRunningExecutions marks all RUNNING executions as failed. Used on
	// startup to clean executions orphaned by a previous process.
	FailRunningExecutions(ctx context.Context, reason string) (int, error)
}

// ReportStorage handles analysis and report persistence
type ReportStorage interface {
	SaveAnalysis(ctx context.Context, analysis *models.ComparativeAnalysis) error
	GetAnalysis(ctx context.Context, id string) (*models.ComparativeAnalysis, error)
	SaveReport(ctx context.Context, report *models.ComparativeReport) error
	GetReport(ctx context.Context, id string) (*models.ComparativeReport, error)
	// ListReports returns reports for a project, newest first
	ListReports(ctx context.Context, projectID string, limit int) ([]*models.ComparativeReport, error)
}

// StorageManager aggregates all storage interfaces behind one owner
type StorageManager interface {
	ProjectStorage() ProjectStorage
	SnapshotStorage() SnapshotStorage
	ScheduleStorage() ScheduleStorage
	ReportStorage() ReportStorage
	Close() error
}
