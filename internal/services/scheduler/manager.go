// Package scheduler owns recurring schedule definitions and their cron
// trigger registrations. The registry of active triggers is owned by one
// Manager instance; the concurrency ceiling is enforced in-process per
// schedule id.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
)

// scheduleEntry tracks one registered schedule and its live counters
type scheduleEntry struct {
	config              *models.ScheduleConfig
	cronID              cron.EntryID
	registered          bool
	lastRun             *time.Time
	skippedFires        int
	consecutiveFailures int
}

// Manager implements the SchedulerService interface
type Manager struct {
	config     common.SchedulerConfig
	storage    interfaces.ScheduleStorage
	runner     interfaces.PipelineRunner
	cron       *cron.Cron
	logger     arbor.ILogger
	runTimeout time.Duration

	mu      sync.Mutex // Protects entries and fire admission
	entries map[string]*scheduleEntry
	running bool
}

// NewManager creates a new schedule manager
func NewManager(config common.SchedulerConfig, storage interfaces.ScheduleStorage, runner interfaces.PipelineRunner, logger arbor.ILogger) *Manager {
	return &Manager{
		config:     config,
		storage:    storage,
		runner:     runner,
		cron:       cron.New(),
		logger:     logger,
		runTimeout: common.ParseDurationOr(config.RunTimeout, 30*time.Minute),
		entries:    make(map[string]*scheduleEntry),
	}
}

// Start marks executions orphaned by a previous process as failed, registers
// triggers for all enabled persisted schedules and starts the cron runner.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("scheduler already running")
	}

	if count, err := m.storage.FailRunningExecutions(ctx, "service restarted while execution was running"); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to clean orphaned executions")
	} else if count > 0 {
		m.logger.Info().Int("count", count).Msg("Cleaned orphaned executions from previous run")
	}

	configs, err := m.storage.ListEnabledScheduleConfigs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load schedules: %w", err)
	}

	for _, config := range configs {
		if err := m.registerLocked(config); err != nil {
			m.logger.Error().Err(err).Str("schedule_id", config.ID).Msg("Failed to register schedule, skipping")
			continue
		}
	}

	m.cron.Start()
	m.running = true

	m.logger.Info().Int("schedules", len(m.entries)).Msg("Scheduler started")
	return nil
}

// Stop unregisters all triggers. In-flight executions run to completion or
// timeout; Stop only prevents future fires.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	m.cron.Stop()
	for _, entry := range m.entries {
		if entry.registered {
			m.cron.Remove(entry.cronID)
			entry.registered = false
		}
	}
	m.running = false

	m.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning returns true if the scheduler is active
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// CreateSchedule validates and persists a schedule config and, when enabled,
// registers its trigger. Returns the schedule id.
func (m *Manager) CreateSchedule(ctx context.Context, config *models.ScheduleConfig) (string, error) {
	if config.ID == "" {
		config.ID = common.NewScheduleID()
	}
	if config.MaxConcurrentJobs == 0 {
		config.MaxConcurrentJobs = m.config.MaxConcurrentJobs
	}

	if err := config.Validate(); err != nil {
		return "", models.WrapPipelineError(models.ErrValidation, "create_schedule", "", err)
	}

	if err := m.storage.SaveScheduleConfig(ctx, config); err != nil {
		return "", models.WrapPipelineError(models.ErrPersistence, "create_schedule", "", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[config.ID]; exists {
		return "", models.NewPipelineError(models.ErrValidation, "create_schedule", "",
			fmt.Sprintf("schedule %s already registered", config.ID))
	}

	if config.Enabled {
		if err := m.registerLocked(config); err != nil {
			return "", err
		}
	} else {
		m.entries[config.ID] = &scheduleEntry{config: config}
	}

	m.logger.Info().
		Str("schedule_id", config.ID).
		Str("project_id", config.ProjectID).
		Str("frequency", string(config.Frequency)).
		Bool("enabled", config.Enabled).
		Msg("Schedule created")

	return config.ID, nil
}

// registerLocked adds a cron trigger for the schedule. Caller holds m.mu.
// Invariant: at most one active trigger registration per schedule id.
func (m *Manager) registerLocked(config *models.ScheduleConfig) error {
	expr, err := CronExprFor(config, m.config.FireHour)
	if err != nil {
		return models.WrapPipelineError(models.ErrValidation, "register_schedule", "", err)
	}

	scheduleID := config.ID
	cronID, err := m.cron.AddFunc(expr, func() {
		m.fire(scheduleID, "")
	})
	if err != nil {
		return fmt.Errorf("failed to add schedule to cron: %w", err)
	}

	entry, exists := m.entries[scheduleID]
	if !exists {
		entry = &scheduleEntry{}
		m.entries[scheduleID] = entry
	} else if entry.registered {
		m.cron.Remove(entry.cronID)
	}
	entry.config = config
	entry.cronID = cronID
	entry.registered = true

	m.logger.Info().
		Str("schedule_id", scheduleID).
		Str("cron_expr", expr).
		Msg("Schedule trigger registered")
	return nil
}

// StartSchedule re-registers the trigger of a stopped schedule. Starting a
// started schedule is a no-op.
func (m *Manager) StartSchedule(ctx context.Context, id string) error {
	config, err := m.storage.GetScheduleConfig(ctx, id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, exists := m.entries[id]; exists && entry.registered {
		return nil
	}

	if err := m.registerLocked(config); err != nil {
		return err
	}

	config.Enabled = true
	if err := m.storage.SaveScheduleConfig(ctx, config); err != nil {
		m.logger.Warn().Err(err).Str("schedule_id", id).Msg("Failed to persist schedule enabled state")
	}
	return nil
}

// StopSchedule unregisters the trigger without deleting the config.
// Stopping a stopped schedule is a no-op, not an error. An already-running
// execution is not interrupted.
func (m *Manager) StopSchedule(ctx context.Context, id string) error {
	config, err := m.storage.GetScheduleConfig(ctx, id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	entry, exists := m.entries[id]
	if exists && entry.registered {
		m.cron.Remove(entry.cronID)
		entry.registered = false
	}
	m.mu.Unlock()

	if config.Enabled {
		config.Enabled = false
		if err := m.storage.SaveScheduleConfig(ctx, config); err != nil {
			m.logger.Warn().Err(err).Str("schedule_id", id).Msg("Failed to persist schedule disabled state")
		}
	}

	m.logger.Info().Str("schedule_id", id).Msg("Schedule stopped")
	return nil
}

// RemoveSchedule unregisters the trigger and deletes the config and its
// execution history. Terminal: a removed schedule cannot be restarted.
func (m *Manager) RemoveSchedule(ctx context.Context, id string) error {
	m.mu.Lock()
	if entry, exists := m.entries[id]; exists {
		if entry.registered {
			m.cron.Remove(entry.cronID)
		}
		delete(m.entries, id)
	}
	m.mu.Unlock()

	if err := m.storage.DeleteScheduleConfig(ctx, id); err != nil {
		return models.WrapPipelineError(models.ErrPersistence, "remove_schedule", "", err)
	}

	m.logger.Info().Str("schedule_id", id).Msg("Schedule removed")
	return nil
}

// ExecuteNow runs a schedule out of band, subject to the same concurrency
// ceiling as triggered fires. Returns the created execution, or a
// CONCURRENCY_REJECTED error when the ceiling was reached.
func (m *Manager) ExecuteNow(ctx context.Context, id, correlationID string) (*models.ScheduleExecution, error) {
	if correlationID == "" {
		correlationID = common.NewCorrelationID()
	}

	config, err := m.storage.GetScheduleConfig(ctx, id)
	if err != nil {
		return nil, err
	}

	execution, admitted, err := m.admit(ctx, config, correlationID, true)
	if err != nil {
		return nil, err
	}
	if !admitted {
		return nil, models.NewPipelineError(models.ErrConcurrencyRejected, "execute_now", correlationID,
			fmt.Sprintf("schedule %s already has %d running execution(s)", id, config.MaxConcurrentJobs))
	}

	m.run(config, execution)
	return execution, nil
}

// fire handles one trigger fire for a schedule
func (m *Manager) fire(scheduleID, correlationID string) {
	if correlationID == "" {
		correlationID = common.NewCorrelationID()
	}
	log := m.logger.WithCorrelationId(correlationID)

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("schedule_id", scheduleID).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in schedule fire")
		}
	}()

	ctx := context.Background()
	config, err := m.storage.GetScheduleConfig(ctx, scheduleID)
	if err != nil {
		log.Error().Err(err).Str("schedule_id", scheduleID).Msg("Schedule config not found on fire")
		return
	}

	execution, admitted, err := m.admit(ctx, config, correlationID, false)
	if err != nil {
		log.Error().Err(err).Str("schedule_id", scheduleID).Msg("Failed to admit schedule fire")
		return
	}
	if !admitted {
		return
	}

	m.run(config, execution)
}

// admit decides whether a fire may begin a run. It enforces the biweekly
// gate and the per-schedule concurrency ceiling, and creates the RUNNING
// execution when admitted. Admission is serialized under m.mu so two
// concurrent fires of the same schedule cannot both pass the ceiling.
func (m *Manager) admit(ctx context.Context, config *models.ScheduleConfig, correlationID string, manual bool) (*models.ScheduleExecution, bool, error) {
	log := m.logger.WithCorrelationId(correlationID)

	m.mu.Lock()
	defer m.mu.Unlock()

	// Biweekly gate applies only to cadence fires, not manual runs
	if !manual && config.Frequency == models.FrequencyBiweekly {
		lastSuccess, err := m.storage.LastSuccessfulStart(ctx, config.ID)
		if err != nil {
			return nil, false, err
		}
		if !biweeklyGateOpen(lastSuccess, time.Now()) {
			log.Info().
				Str("schedule_id", config.ID).
				Str("last_success", lastSuccess.Format(time.RFC3339)).
				Msg("Biweekly gate closed, skipping fire")
			return nil, false, nil
		}
	}

	running, err := m.storage.CountRunningExecutions(ctx, config.ID)
	if err != nil {
		return nil, false, err
	}
	if running >= config.MaxConcurrentJobs {
		// Skipped, never queued. Informational, not an error.
		if entry, exists := m.entries[config.ID]; exists {
			entry.skippedFires++
		}
		log.Info().
			Str("schedule_id", config.ID).
			Int("running", running).
			Int("ceiling", config.MaxConcurrentJobs).
			Msg("Concurrency ceiling reached, fire skipped")
		return nil, false, nil
	}

	execution := &models.ScheduleExecution{
		ID:            common.NewExecutionID(),
		ScheduleID:    config.ID,
		CorrelationID: correlationID,
		StartedAt:     time.Now(),
		Status:        models.ExecutionStatusRunning,
	}
	if err := m.storage.SaveExecution(ctx, execution); err != nil {
		return nil, false, models.WrapPipelineError(models.ErrPersistence, "admit_fire", correlationID, err)
	}

	return execution, true, nil
}

// run invokes the downstream pipeline and transitions the execution to a
// terminal status. A failed run never disables the schedule.
func (m *Manager) run(config *models.ScheduleConfig, execution *models.ScheduleExecution) {
	log := m.logger.WithCorrelationId(execution.CorrelationID)
	log.Info().
		Str("schedule_id", config.ID).
		Str("execution_id", execution.ID).
		Str("project_id", config.ProjectID).
		Msg("Schedule execution started")

	ctx := context.Background()
	runCtx := ctx
	if m.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, m.runTimeout)
		defer cancel()
	}

	result, runErr := m.runner.RunPipeline(runCtx, config.ProjectID, execution.CorrelationID)

	finishedAt := time.Now()
	status := models.ExecutionStatusSucceeded
	errMsg := ""
	if runErr != nil {
		status = models.ExecutionStatusFailed
		errMsg = runErr.Error()
	}
	if result != nil {
		execution.TasksExecuted = result.TasksExecuted
		execution.TasksFailed = result.TasksFailed
	}

	if err := execution.Complete(status, errMsg, finishedAt); err != nil {
		log.Error().Err(err).Str("execution_id", execution.ID).Msg("Invalid execution transition")
		return
	}
	if err := m.storage.SaveExecution(ctx, execution); err != nil {
		log.Error().Err(err).Str("execution_id", execution.ID).Msg("Failed to persist execution result")
	}

	m.mu.Lock()
	entry, exists := m.entries[config.ID]
	if exists {
		now := finishedAt
		entry.lastRun = &now
		if runErr != nil {
			entry.consecutiveFailures++
		} else {
			entry.consecutiveFailures = 0
		}
	}
	consecutive := 0
	if exists {
		consecutive = entry.consecutiveFailures
	}
	m.mu.Unlock()

	if runErr != nil {
		log.Error().
			Err(runErr).
			Str("schedule_id", config.ID).
			Str("execution_id", execution.ID).
			Dur("duration", execution.Duration()).
			Msg("Schedule execution failed")

		// Health signal only; the next scheduled fire proceeds normally
		if m.config.FailureThreshold > 0 && consecutive >= m.config.FailureThreshold {
			log.Warn().
				Str("schedule_id", config.ID).
				Int("consecutive_failures", consecutive).
				Msg("Schedule is unhealthy")
		}
	} else {
		log.Info().
			Str("schedule_id", config.ID).
			Str("execution_id", execution.ID).
			Int("tasks_executed", execution.TasksExecuted).
			Int("tasks_failed", execution.TasksFailed).
			Dur("duration", execution.Duration()).
			Msg("Schedule execution completed")
	}

	if err := m.storage.PruneExecutions(ctx, config.ID, m.config.HistoryLimit); err != nil {
		log.Warn().Err(err).Str("schedule_id", config.ID).Msg("Failed to prune execution history")
	}
}

// GetScheduleStatus returns the live status of a schedule
func (m *Manager) GetScheduleStatus(ctx context.Context, id string) (*interfaces.ScheduleStatus, error) {
	config, err := m.storage.GetScheduleConfig(ctx, id)
	if err != nil {
		return nil, err
	}

	running, err := m.storage.CountRunningExecutions(ctx, id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	entry, exists := m.entries[id]
	var nextRun, lastRun *time.Time
	skipped, consecutive := 0, 0
	if exists {
		lastRun = entry.lastRun
		skipped = entry.skippedFires
		consecutive = entry.consecutiveFailures
		if entry.registered {
			for _, cronEntry := range m.cron.Entries() {
				if cronEntry.ID == entry.cronID {
					next := cronEntry.Next
					nextRun = &next
					break
				}
			}
		}
	}
	m.mu.Unlock()

	healthy := m.config.FailureThreshold <= 0 || consecutive < m.config.FailureThreshold

	return &interfaces.ScheduleStatus{
		ID:                  config.ID,
		ProjectID:           config.ProjectID,
		Frequency:           config.Frequency,
		Enabled:             config.Enabled,
		NextRun:             nextRun,
		LastRun:             lastRun,
		RunningExecutions:   running,
		SkippedFires:        skipped,
		ConsecutiveFailures: consecutive,
		Healthy:             healthy,
	}, nil
}
