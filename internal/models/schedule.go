package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Frequency is the named cadence of a recurring schedule
type Frequency string

const (
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
	FrequencyCustom   Frequency = "custom"
)

// IsValidFrequency checks if a given Frequency is one of the valid constants
func IsValidFrequency(frequency Frequency) bool {
	switch frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly, FrequencyCustom:
		return true
	default:
		return false
	}
}

// ScheduleConfig defines a recurring collection schedule for a project.
// At most one active trigger registration exists per schedule ID.
type ScheduleConfig struct {
	ID                string    `json:"id"`
	ProjectID         string    `json:"project_id"`
	Frequency         Frequency `json:"frequency"`
	CronExpr          string    `json:"cron_expr,omitempty"` // Only for FrequencyCustom
	Enabled           bool      `json:"enabled"`
	MaxConcurrentJobs int       `json:"max_concurrent_jobs"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Validate validates the schedule configuration
func (s *ScheduleConfig) Validate() error {
	if s.ID == "" {
		return errors.New("schedule ID is required")
	}
	if s.ProjectID == "" {
		return errors.New("schedule project ID is required")
	}
	if !IsValidFrequency(s.Frequency) {
		return fmt.Errorf("invalid frequency: %s (must be one of: daily, weekly, biweekly, monthly, custom)", s.Frequency)
	}
	if s.Frequency == FrequencyCustom {
		if s.CronExpr == "" {
			return errors.New("custom frequency requires a cron expression")
		}
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(s.CronExpr); err != nil {
			return fmt.Errorf("invalid cron expression '%s': %w", s.CronExpr, err)
		}
	}
	if s.MaxConcurrentJobs < 1 {
		return fmt.Errorf("max concurrent jobs must be at least 1, got %d", s.MaxConcurrentJobs)
	}
	return nil
}

// ExecutionStatus is the lifecycle status of one schedule execution.
// Transitions are monotonic: running -> {succeeded, failed}, never backward.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusSucceeded ExecutionStatus = "succeeded"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// CanTransitionTo reports whether the status may move to the target status
func (s ExecutionStatus) CanTransitionTo(target ExecutionStatus) bool {
	switch s {
	case ExecutionStatusRunning:
		return target == ExecutionStatusSucceeded || target == ExecutionStatusFailed
	default:
		return false
	}
}

// IsTerminal reports whether the status is terminal
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusSucceeded || s == ExecutionStatusFailed
}

// ScheduleExecution records one run of a schedule, created when a trigger
// fires or a manual run is requested. Retained for a bounded history window.
type ScheduleExecution struct {
	ID            string          `json:"id"`
	ScheduleID    string          `json:"schedule_id"`
	CorrelationID string          `json:"correlation_id"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
	Status        ExecutionStatus `json:"status"`
	Error         string          `json:"error,omitempty"`
	TasksExecuted int             `json:"tasks_executed"`
	TasksFailed   int             `json:"tasks_failed"`
}

// Complete transitions the execution to a terminal status. Returns an error
// if the transition is not allowed.
func (e *ScheduleExecution) Complete(status ExecutionStatus, errMsg string, finishedAt time.Time) error {
	if !e.Status.CanTransitionTo(status) {
		return fmt.Errorf("invalid execution transition from %s to %s", e.Status, status)
	}
	e.Status = status
	e.Error = errMsg
	e.FinishedAt = &finishedAt
	return nil
}

// Duration returns the execution duration, or zero if still running
func (e *ScheduleExecution) Duration() time.Duration {
	if e.FinishedAt == nil {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}
