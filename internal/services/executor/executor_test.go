package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
)

// fakeCollector records call order and fails for configured URLs
type fakeCollector struct {
	mu       sync.Mutex
	calls    []string
	failURLs map[string]error
	panicURL string
}

func (f *fakeCollector) Collect(ctx context.Context, url string) (*interfaces.CollectResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()

	if url == f.panicURL {
		panic("collector exploded")
	}
	if err, ok := f.failURLs[url]; ok {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &interfaces.CollectResult{
		Content:    "content for " + url,
		StatusCode: 200,
		SizeBytes:  int64(len(url)),
		CapturedAt: time.Now(),
	}, nil
}

// memSnapshots is an in-memory SnapshotStorage for executor tests
type memSnapshots struct {
	mu      sync.Mutex
	saved   []*models.Snapshot
	saveErr error
}

func (m *memSnapshots) SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, snapshot)
	return nil
}

func (m *memSnapshots) GetLatestSnapshot(ctx context.Context, entityID string) (*models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.Snapshot
	for _, s := range m.saved {
		if s.EntityID != entityID {
			continue
		}
		if latest == nil || s.CapturedAt.After(latest.CapturedAt) {
			latest = s
		}
	}
	return latest, nil
}

func (m *memSnapshots) ListSnapshots(ctx context.Context, entityID string, limit int) ([]*models.Snapshot, error) {
	return nil, nil
}

func (m *memSnapshots) DeleteSnapshotsByEntity(ctx context.Context, entityID string) error {
	return nil
}

func task(entityID string, priority models.Priority) models.ScrapingTask {
	return models.ScrapingTask{
		EntityID: entityID,
		Kind:     models.EntityKindCompetitor,
		URL:      "https://example.com/" + entityID,
		Priority: priority,
	}
}

func newTestService(collector interfaces.Collector, snapshots interfaces.SnapshotStorage) *Service {
	return NewService(common.ExecutorConfig{TaskDelay: "0s", TaskTimeout: "1s"}, collector, snapshots, arbor.NewLogger())
}

func TestExecute_PriorityOrdering(t *testing.T) {
	collector := &fakeCollector{}
	service := newTestService(collector, &memSnapshots{})

	tasks := []models.ScrapingTask{
		task("ent_low", models.PriorityLow),
		task("ent_high", models.PriorityHigh),
		task("ent_medium", models.PriorityMedium),
	}

	results := service.Execute(context.Background(), tasks, "corr-1")

	require.Len(t, results, 3)
	assert.Equal(t, "ent_high", results[0].Task.EntityID)
	assert.Equal(t, "ent_medium", results[1].Task.EntityID)
	assert.Equal(t, "ent_low", results[2].Task.EntityID)

	// Execution order matches result order
	assert.Equal(t, []string{
		"https://example.com/ent_high",
		"https://example.com/ent_medium",
		"https://example.com/ent_low",
	}, collector.calls)
}

func TestExecute_StableWithinEqualPriority(t *testing.T) {
	collector := &fakeCollector{}
	service := newTestService(collector, &memSnapshots{})

	tasks := []models.ScrapingTask{
		task("ent_b", models.PriorityMedium),
		task("ent_a", models.PriorityMedium),
	}

	results := service.Execute(context.Background(), tasks, "corr-1")
	require.Len(t, results, 2)
	assert.Equal(t, "ent_b", results[0].Task.EntityID)
	assert.Equal(t, "ent_a", results[1].Task.EntityID)
}

func TestExecute_FailureIsolation(t *testing.T) {
	// Middle task fails; all others still execute and report independently.
	collector := &fakeCollector{
		failURLs: map[string]error{
			"https://example.com/ent_b": errors.New("connection refused"),
		},
	}
	snapshots := &memSnapshots{}
	service := newTestService(collector, snapshots)

	tasks := []models.ScrapingTask{
		task("ent_a", models.PriorityHigh),
		task("ent_b", models.PriorityHigh),
		task("ent_c", models.PriorityHigh),
	}

	results := service.Execute(context.Background(), tasks, "corr-1")

	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "connection refused")
	assert.True(t, results[2].Success)
	assert.Len(t, collector.calls, 3)
	assert.Len(t, snapshots.saved, 2)
}

func TestExecute_PanicIsolation(t *testing.T) {
	collector := &fakeCollector{panicURL: "https://example.com/ent_boom"}
	service := newTestService(collector, &memSnapshots{})

	tasks := []models.ScrapingTask{
		task("ent_boom", models.PriorityHigh),
		task("ent_ok", models.PriorityLow),
	}

	results := service.Execute(context.Background(), tasks, "corr-1")

	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "panic")
	assert.True(t, results[1].Success)
}

func TestExecute_PersistenceFailureRecorded(t *testing.T) {
	collector := &fakeCollector{}
	snapshots := &memSnapshots{saveErr: errors.New("disk full")}
	service := newTestService(collector, snapshots)

	results := service.Execute(context.Background(), []models.ScrapingTask{task("ent_a", models.PriorityHigh)}, "corr-1")

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "PERSISTENCE_ERROR")
}

func TestExecute_SuccessfulSnapshotPersisted(t *testing.T) {
	collector := &fakeCollector{}
	snapshots := &memSnapshots{}
	service := newTestService(collector, snapshots)

	results := service.Execute(context.Background(), []models.ScrapingTask{task("ent_a", models.PriorityHigh)}, "corr-1")

	require.Len(t, results, 1)
	require.True(t, results[0].Success)
	require.NotNil(t, results[0].Snapshot)
	assert.Equal(t, "ent_a", results[0].Snapshot.EntityID)
	assert.NotEmpty(t, results[0].Snapshot.ID)
	require.Len(t, snapshots.saved, 1)
}

func TestExecute_ZeroTasks(t *testing.T) {
	collector := &fakeCollector{}
	service := newTestService(collector, &memSnapshots{})

	results := service.Execute(context.Background(), nil, "corr-1")

	assert.Empty(t, results)
	assert.Empty(t, collector.calls)
}

func TestExecute_InterTaskDelay(t *testing.T) {
	collector := &fakeCollector{}
	service := NewService(common.ExecutorConfig{TaskDelay: "50ms", TaskTimeout: "1s"}, collector, &memSnapshots{}, arbor.NewLogger())

	tasks := []models.ScrapingTask{
		task("ent_a", models.PriorityHigh),
		task("ent_b", models.PriorityHigh),
		task("ent_c", models.PriorityHigh),
	}

	start := time.Now()
	results := service.Execute(context.Background(), tasks, "corr-1")
	elapsed := time.Since(start)

	require.Len(t, results, 3)
	// Two gaps between three tasks
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
}

func TestExecute_CancelledRunRecordsRemaining(t *testing.T) {
	collector := &fakeCollector{}
	service := NewService(common.ExecutorConfig{TaskDelay: "200ms", TaskTimeout: "1s"}, collector, &memSnapshots{}, arbor.NewLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	tasks := []models.ScrapingTask{
		task("ent_a", models.PriorityHigh),
		task("ent_b", models.PriorityMedium),
	}

	results := service.Execute(ctx, tasks, "corr-1")

	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "cancelled")
	// Second task never reached the collector
	assert.Len(t, collector.calls, 1)
}
