package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
	"github.com/ternarybob/vantage/internal/services/collector"
	"github.com/ternarybob/vantage/internal/services/executor"
	"github.com/ternarybob/vantage/internal/services/freshness"
	"github.com/ternarybob/vantage/internal/services/llm"
	"github.com/ternarybob/vantage/internal/services/report"
	"github.com/ternarybob/vantage/internal/services/scheduler"
	"github.com/ternarybob/vantage/internal/storage/badger"
)

// FreshnessSummary is the result of a project freshness evaluation
type FreshnessSummary struct {
	CorrelationID string                 `json:"correlation_id"`
	ProjectID     string                 `json:"project_id"`
	Status        models.FreshnessStatus `json:"status"`
	Needs         []models.ScrapingNeed  `json:"needs"`
}

// App wires storage, services and the scheduler together. It implements
// interfaces.PipelineRunner so schedule fires flow back through the same
// pipeline as manual triggers.
type App struct {
	config       *common.Config
	logger       arbor.ILogger
	storage      interfaces.StorageManager
	evaluator    *freshness.Evaluator
	collector    interfaces.Collector
	executor     *executor.Service
	provider     interfaces.AIProvider
	orchestrator *report.Orchestrator
	scheduler    interfaces.SchedulerService
}

// New builds the application from configuration. Fails fast on storage or
// provider initialization errors.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	storage, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	provider, err := llm.NewProvider(config, logger)
	if err != nil {
		storage.Close()
		return nil, fmt.Errorf("failed to initialize AI provider: %w", err)
	}

	a := &App{
		config:  config,
		logger:  logger,
		storage: storage,
		evaluator: freshness.NewEvaluator(freshness.Thresholds{
			FreshnessDays:    config.Freshness.FreshnessDays,
			HighPriorityDays: config.Freshness.HighPriorityDays,
		}),
		collector: collector.NewService(config.Collector, logger),
		provider:  provider,
	}
	a.executor = executor.NewService(config.Executor, a.collector, storage.SnapshotStorage(), logger)
	a.orchestrator = report.NewOrchestrator(
		&config.Report,
		storage.ProjectStorage(),
		storage.SnapshotStorage(),
		storage.ReportStorage(),
		provider,
		logger,
	)
	a.scheduler = scheduler.NewManager(config.Scheduler, storage.ScheduleStorage(), a, logger)

	return a, nil
}

// Start brings up the scheduler with all persisted enabled schedules
func (a *App) Start(ctx context.Context) error {
	return a.scheduler.Start(ctx)
}

// Stop shuts down the scheduler. In-flight runs complete on their own
// contexts.
func (a *App) Stop() error {
	return a.scheduler.Stop()
}

// Close releases the AI provider and storage
func (a *App) Close() error {
	if err := a.provider.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to close AI provider")
	}
	return a.storage.Close()
}

// Storage exposes the storage manager for setup tooling
func (a *App) Storage() interfaces.StorageManager {
	return a.storage
}

// EvaluateProjectFreshness evaluates every tracked entity of a project
// against the configured thresholds without triggering collection.
func (a *App) EvaluateProjectFreshness(ctx context.Context, projectID, correlationID string) (*FreshnessSummary, error) {
	correlationID = orNewCorrelation(correlationID)
	log := a.logger.WithCorrelationId(correlationID)

	entities, err := a.loadEntities(ctx, projectID, correlationID, OpEvaluateFreshness)
	if err != nil {
		return nil, err
	}

	latest, err := a.latestSnapshots(ctx, entities, correlationID, OpEvaluateFreshness)
	if err != nil {
		return nil, err
	}

	needs, status := a.evaluator.EvaluateProject(entities, latest, time.Now().UTC())

	log.Info().
		Str("operation", OpEvaluateFreshness.String()).
		Str("project_id", projectID).
		Str("freshness", string(status)).
		Int("entities", len(entities)).
		Msg("Project freshness evaluated")

	return &FreshnessSummary{
		CorrelationID: correlationID,
		ProjectID:     projectID,
		Status:        status,
		Needs:         needs,
	}, nil
}

// TriggerScheduling runs the full pipeline for a project out of band:
// freshness evaluation, priority-ordered collection, then report generation
// when configured.
func (a *App) TriggerScheduling(ctx context.Context, projectID, correlationID string) (*interfaces.PipelineResult, error) {
	return a.RunPipeline(ctx, projectID, orNewCorrelation(correlationID))
}

// RunPipeline implements interfaces.PipelineRunner
func (a *App) RunPipeline(ctx context.Context, projectID, correlationID string) (*interfaces.PipelineResult, error) {
	correlationID = orNewCorrelation(correlationID)
	log := a.logger.WithCorrelationId(correlationID)

	entities, err := a.loadEntities(ctx, projectID, correlationID, OpRunPipeline)
	if err != nil {
		return nil, err
	}

	latest, err := a.latestSnapshots(ctx, entities, correlationID, OpRunPipeline)
	if err != nil {
		return nil, err
	}

	needs, status := a.evaluator.EvaluateProject(entities, latest, time.Now().UTC())
	tasks := freshness.TasksFromNeeds(needs, entities)

	result := &interfaces.PipelineResult{CorrelationID: correlationID}

	if len(tasks) == 0 {
		log.Info().
			Str("operation", OpRunPipeline.String()).
			Str("project_id", projectID).
			Str("freshness", string(status)).
			Msg("All entities fresh, no collection needed")
	} else {
		result.Triggered = true
		result.Results = a.executor.Execute(ctx, tasks, correlationID)
		for _, r := range result.Results {
			result.TasksExecuted++
			if !r.Success {
				result.TasksFailed++
			}
		}

		if result.TasksFailed == result.TasksExecuted {
			return result, models.NewPipelineError(models.ErrCollection, OpRunPipeline.String(), correlationID,
				fmt.Sprintf("all %d collection tasks failed", result.TasksFailed))
		}
	}

	if a.config.Scheduler.ReportAfterRun {
		reportResult, err := a.orchestrator.Generate(ctx, projectID, report.Options{CorrelationID: correlationID})
		if err != nil {
			// Collection output already exists; a report failure degrades
			// the run rather than failing it.
			log.Warn().
				Str("operation", OpRunPipeline.String()).
				Str("project_id", projectID).
				Err(err).
				Msg("Report generation failed after collection")
		} else {
			result.ReportID = reportResult.Report.ID
			for _, genErr := range reportResult.Errors {
				log.Warn().Err(genErr).Msg("Report generation degraded")
			}
		}
	}

	log.Info().
		Str("operation", OpRunPipeline.String()).
		Str("project_id", projectID).
		Int("tasks_executed", result.TasksExecuted).
		Int("tasks_failed", result.TasksFailed).
		Str("report_id", result.ReportID).
		Msg("Pipeline run finished")

	return result, nil
}

// CreateSchedule validates and persists a schedule, registering its trigger
// when enabled.
func (a *App) CreateSchedule(ctx context.Context, config *models.ScheduleConfig) (string, error) {
	return a.scheduler.CreateSchedule(ctx, config)
}

// StartSchedule re-enables a stopped schedule
func (a *App) StartSchedule(ctx context.Context, id string) error {
	return a.scheduler.StartSchedule(ctx, id)
}

// StopSchedule disables a schedule without deleting it
func (a *App) StopSchedule(ctx context.Context, id string) error {
	return a.scheduler.StopSchedule(ctx, id)
}

// RemoveSchedule deletes a schedule and its execution history
func (a *App) RemoveSchedule(ctx context.Context, id string) error {
	return a.scheduler.RemoveSchedule(ctx, id)
}

// ExecuteScheduleNow runs a schedule immediately, subject to its
// concurrency ceiling.
func (a *App) ExecuteScheduleNow(ctx context.Context, id, correlationID string) (*models.ScheduleExecution, error) {
	return a.scheduler.ExecuteNow(ctx, id, orNewCorrelation(correlationID))
}

// GetScheduleStatus reports the live state of a schedule
func (a *App) GetScheduleStatus(ctx context.Context, id string) (*interfaces.ScheduleStatus, error) {
	return a.scheduler.GetScheduleStatus(ctx, id)
}

// GenerateComparativeReport generates a comparative report for a project
// from the freshest stored snapshots.
func (a *App) GenerateComparativeReport(ctx context.Context, projectID string, opts report.Options) (*report.Result, error) {
	opts.CorrelationID = orNewCorrelation(opts.CorrelationID)
	return a.orchestrator.Generate(ctx, projectID, opts)
}

func (a *App) loadEntities(ctx context.Context, projectID, correlationID string, op Operation) ([]*models.TrackedEntity, error) {
	if projectID == "" {
		return nil, models.NewPipelineError(models.ErrValidation, op.String(), correlationID, "project id is required")
	}
	if _, err := a.storage.ProjectStorage().GetProject(ctx, projectID); err != nil {
		return nil, models.WrapPipelineError(models.ErrProjectNotFound, op.String(), correlationID, err)
	}
	entities, err := a.storage.ProjectStorage().ListEntities(ctx, projectID)
	if err != nil {
		return nil, models.WrapPipelineError(models.ErrPersistence, op.String(), correlationID, err)
	}
	if len(entities) == 0 {
		return nil, models.NewPipelineError(models.ErrNotFound, op.String(), correlationID,
			fmt.Sprintf("project %s has no tracked entities", projectID))
	}
	return entities, nil
}

func (a *App) latestSnapshots(ctx context.Context, entities []*models.TrackedEntity, correlationID string, op Operation) (map[string]*models.Snapshot, error) {
	latest := make(map[string]*models.Snapshot, len(entities))
	for _, entity := range entities {
		snapshot, err := a.storage.SnapshotStorage().GetLatestSnapshot(ctx, entity.ID)
		if err != nil {
			return nil, models.WrapPipelineError(models.ErrPersistence, op.String(), correlationID, err)
		}
		if snapshot != nil {
			latest[entity.ID] = snapshot
		}
	}
	return latest, nil
}

func orNewCorrelation(correlationID string) string {
	if correlationID == "" {
		return common.NewCorrelationID()
	}
	return correlationID
}
