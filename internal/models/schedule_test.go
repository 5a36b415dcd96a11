package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionStatus_Transitions(t *testing.T) {
	tests := []struct {
		from    ExecutionStatus
		to      ExecutionStatus
		allowed bool
	}{
		{ExecutionStatusRunning, ExecutionStatusSucceeded, true},
		{ExecutionStatusRunning, ExecutionStatusFailed, true},
		{ExecutionStatusSucceeded, ExecutionStatusRunning, false},
		{ExecutionStatusSucceeded, ExecutionStatusFailed, false},
		{ExecutionStatusFailed, ExecutionStatusRunning, false},
		{ExecutionStatusFailed, ExecutionStatusSucceeded, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestScheduleExecution_CompleteIsMonotonic(t *testing.T) {
	execution := &ScheduleExecution{
		ID:         "exec_1",
		ScheduleID: "sched_1",
		StartedAt:  time.Now(),
		Status:     ExecutionStatusRunning,
	}

	finished := execution.StartedAt.Add(time.Minute)
	require.NoError(t, execution.Complete(ExecutionStatusSucceeded, "", finished))
	assert.Equal(t, time.Minute, execution.Duration())

	err := execution.Complete(ExecutionStatusFailed, "late failure", finished.Add(time.Second))
	require.Error(t, err)
	assert.Equal(t, ExecutionStatusSucceeded, execution.Status)
}

func TestScheduleConfig_ValidateCustomCron(t *testing.T) {
	config := &ScheduleConfig{
		ID:                "sched_1",
		ProjectID:         "proj_1",
		Frequency:         FrequencyCustom,
		CronExpr:          "not a cron line",
		MaxConcurrentJobs: 1,
	}

	require.Error(t, config.Validate())

	config.CronExpr = "*/15 * * * *"
	require.NoError(t, config.Validate())
}
