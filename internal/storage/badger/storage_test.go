package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
)

func newTestManager(t *testing.T) interfaces.StorageManager {
	t.Helper()
	manager, err := NewManager(arbor.NewLogger(), &common.BadgerConfig{
		Path: t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func TestSnapshotStorage_GetLatestSelectsMaxCapturedAt(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	store := manager.SnapshotStorage()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, offset := range []time.Duration{0, 48 * time.Hour, 24 * time.Hour} {
		require.NoError(t, store.SaveSnapshot(ctx, &models.Snapshot{
			ID:         common.NewSnapshotID(),
			EntityID:   "ent_a",
			Content:    "content",
			CapturedAt: base.Add(offset),
			SizeBytes:  int64(i + 1),
		}))
	}

	latest, err := store.GetLatestSnapshot(ctx, "ent_a")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, base.Add(48*time.Hour), latest.CapturedAt.UTC())
}

func TestSnapshotStorage_GetLatestReturnsNilWhenEmpty(t *testing.T) {
	manager := newTestManager(t)

	latest, err := manager.SnapshotStorage().GetLatestSnapshot(context.Background(), "ent_missing")

	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestSnapshotStorage_ListNewestFirstWithLimit(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	store := manager.SnapshotStorage()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.SaveSnapshot(ctx, &models.Snapshot{
			ID:         common.NewSnapshotID(),
			EntityID:   "ent_a",
			Content:    "content",
			CapturedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	snapshots, err := store.ListSnapshots(ctx, "ent_a", 3)
	require.NoError(t, err)
	require.Len(t, snapshots, 3)
	assert.True(t, snapshots[0].CapturedAt.After(snapshots[1].CapturedAt))
	assert.True(t, snapshots[1].CapturedAt.After(snapshots[2].CapturedAt))
}

func TestProjectStorage_CascadeDelete(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	projects := manager.ProjectStorage()
	snapshots := manager.SnapshotStorage()

	require.NoError(t, projects.SaveProject(ctx, &models.Project{ID: "proj_1", Name: "Acme", CreatedAt: time.Now()}))
	require.NoError(t, projects.SaveEntity(ctx, &models.TrackedEntity{
		ID: "ent_a", ProjectID: "proj_1", Kind: models.EntityKindCompetitor,
		Name: "Apex", URL: "https://apex.example.com",
	}))
	require.NoError(t, snapshots.SaveSnapshot(ctx, &models.Snapshot{
		ID: common.NewSnapshotID(), EntityID: "ent_a", Content: "content", CapturedAt: time.Now(),
	}))

	require.NoError(t, projects.DeleteProject(ctx, "proj_1"))

	entities, err := projects.ListEntities(ctx, "proj_1")
	require.NoError(t, err)
	assert.Empty(t, entities)

	latest, err := snapshots.GetLatestSnapshot(ctx, "ent_a")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestProjectStorage_GetProductRequiresExactlyOne(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	projects := manager.ProjectStorage()

	require.NoError(t, projects.SaveProject(ctx, &models.Project{ID: "proj_1", Name: "Acme", CreatedAt: time.Now()}))

	_, err := projects.GetProduct(ctx, "proj_1")
	assert.Equal(t, models.ErrNoProductAssigned, models.CodeOf(err))

	require.NoError(t, projects.SaveEntity(ctx, &models.TrackedEntity{
		ID: "ent_p", ProjectID: "proj_1", Kind: models.EntityKindProduct,
		Name: "Acme", URL: "https://acme.example.com",
	}))

	product, err := projects.GetProduct(ctx, "proj_1")
	require.NoError(t, err)
	assert.Equal(t, "ent_p", product.ID)
}

func TestScheduleStorage_PruneKeepsNewestAndRunning(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	store := manager.ScheduleStorage()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		status := models.ExecutionStatusSucceeded
		if i == 0 {
			// oldest execution still running; pruning must not drop it
			status = models.ExecutionStatusRunning
		}
		require.NoError(t, store.SaveExecution(ctx, &models.ScheduleExecution{
			ID:            common.NewExecutionID(),
			ScheduleID:    "sched_1",
			CorrelationID: common.NewCorrelationID(),
			StartedAt:     base.Add(time.Duration(i) * time.Hour),
			Status:        status,
		}))
	}

	require.NoError(t, store.PruneExecutions(ctx, "sched_1", 2))

	executions, err := store.ListExecutions(ctx, "sched_1", 10)
	require.NoError(t, err)

	running := 0
	for _, execution := range executions {
		if execution.Status == models.ExecutionStatusRunning {
			running++
		}
	}
	assert.Equal(t, 1, running)
	assert.LessOrEqual(t, len(executions), 3)
}

func TestScheduleStorage_CountRunningAndFailRunning(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	store := manager.ScheduleStorage()

	require.NoError(t, store.SaveExecution(ctx, &models.ScheduleExecution{
		ID: common.NewExecutionID(), ScheduleID: "sched_1",
		CorrelationID: common.NewCorrelationID(),
		StartedAt:     time.Now(), Status: models.ExecutionStatusRunning,
	}))
	require.NoError(t, store.SaveExecution(ctx, &models.ScheduleExecution{
		ID: common.NewExecutionID(), ScheduleID: "sched_1",
		CorrelationID: common.NewCorrelationID(),
		StartedAt:     time.Now(), Status: models.ExecutionStatusSucceeded,
	}))

	count, err := store.CountRunningExecutions(ctx, "sched_1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	failed, err := store.FailRunningExecutions(ctx, "process restarted")
	require.NoError(t, err)
	assert.Equal(t, 1, failed)

	count, err = store.CountRunningExecutions(ctx, "sched_1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestScheduleStorage_LastSuccessfulStart(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	store := manager.ScheduleStorage()

	last, err := store.LastSuccessfulStart(ctx, "sched_1")
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveExecution(ctx, &models.ScheduleExecution{
		ID: common.NewExecutionID(), ScheduleID: "sched_1",
		CorrelationID: common.NewCorrelationID(),
		StartedAt:     base, Status: models.ExecutionStatusSucceeded,
	}))
	require.NoError(t, store.SaveExecution(ctx, &models.ScheduleExecution{
		ID: common.NewExecutionID(), ScheduleID: "sched_1",
		CorrelationID: common.NewCorrelationID(),
		StartedAt:     base.Add(time.Hour), Status: models.ExecutionStatusFailed,
	}))

	last, err = store.LastSuccessfulStart(ctx, "sched_1")
	require.NoError(t, err)
	assert.Equal(t, base, last.UTC())
}
