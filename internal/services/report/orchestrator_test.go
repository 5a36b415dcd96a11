package report

import (
	"context"
	"errors"
	"fmt"
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

type memProjects struct {
	projects map[string]*models.Project
	entities map[string]*models.TrackedEntity
}

func newMemProjects() *memProjects {
	return &memProjects{
		projects: map[string]*models.Project{},
		entities: map[string]*models.TrackedEntity{},
	}
}

func (m *memProjects) SaveProject(_ context.Context, p *models.Project) error {
	m.projects[p.ID] = p
	return nil
}

func (m *memProjects) GetProject(_ context.Context, id string) (*models.Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s not found", id)
	}
	return p, nil
}

func (m *memProjects) ListProjects(_ context.Context) ([]*models.Project, error) { return nil, nil }

func (m *memProjects) DeleteProject(_ context.Context, id string) error {
	delete(m.projects, id)
	return nil
}

func (m *memProjects) SaveEntity(_ context.Context, e *models.TrackedEntity) error {
	m.entities[e.ID] = e
	return nil
}

func (m *memProjects) GetEntity(_ context.Context, id string) (*models.TrackedEntity, error) {
	e, ok := m.entities[id]
	if !ok {
		return nil, fmt.Errorf("entity %s not found", id)
	}
	return e, nil
}

func (m *memProjects) ListEntities(_ context.Context, projectID string) ([]*models.TrackedEntity, error) {
	var out []*models.TrackedEntity
	for _, e := range m.entities {
		if e.ProjectID == projectID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memProjects) GetProduct(_ context.Context, projectID string) (*models.TrackedEntity, error) {
	for _, e := range m.entities {
		if e.ProjectID == projectID && e.Kind == models.EntityKindProduct {
			return e, nil
		}
	}
	return nil, fmt.Errorf("project %s has no tracked product", projectID)
}

func (m *memProjects) ListCompetitors(_ context.Context, projectID string) ([]*models.TrackedEntity, error) {
	var out []*models.TrackedEntity
	for _, e := range m.entities {
		if e.ProjectID == projectID && e.Kind == models.EntityKindCompetitor {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memProjects) DeleteEntity(_ context.Context, id string) error {
	delete(m.entities, id)
	return nil
}

type memSnapshots struct {
	byEntity map[string]*models.Snapshot
}

func (m *memSnapshots) SaveSnapshot(_ context.Context, s *models.Snapshot) error {
	m.byEntity[s.EntityID] = s
	return nil
}

func (m *memSnapshots) GetLatestSnapshot(_ context.Context, entityID string) (*models.Snapshot, error) {
	return m.byEntity[entityID], nil
}

func (m *memSnapshots) ListSnapshots(_ context.Context, entityID string, _ int) ([]*models.Snapshot, error) {
	if s, ok := m.byEntity[entityID]; ok {
		return []*models.Snapshot{s}, nil
	}
	return nil, nil
}

func (m *memSnapshots) DeleteSnapshotsByEntity(_ context.Context, entityID string) error {
	delete(m.byEntity, entityID)
	return nil
}

type memReports struct {
	mu        sync.Mutex
	analyses  map[string]*models.ComparativeAnalysis
	reports   map[string]*models.ComparativeReport
	failSaves bool
}

func newMemReports() *memReports {
	return &memReports{
		analyses: map[string]*models.ComparativeAnalysis{},
		reports:  map[string]*models.ComparativeReport{},
	}
}

func (m *memReports) SaveAnalysis(_ context.Context, a *models.ComparativeAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSaves {
		return errors.New("disk full")
	}
	m.analyses[a.ID] = a
	return nil
}

func (m *memReports) GetAnalysis(_ context.Context, id string) (*models.ComparativeAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.analyses[id]
	if !ok {
		return nil, fmt.Errorf("analysis %s not found", id)
	}
	return a, nil
}

func (m *memReports) SaveReport(_ context.Context, r *models.ComparativeReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSaves {
		return errors.New("disk full")
	}
	m.reports[r.ID] = r
	return nil
}

func (m *memReports) GetReport(_ context.Context, id string) (*models.ComparativeReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, fmt.Errorf("report %s not found", id)
	}
	return r, nil
}

func (m *memReports) ListReports(_ context.Context, projectID string, _ int) ([]*models.ComparativeReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ComparativeReport
	for _, r := range m.reports {
		if r.ProjectID == projectID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeProvider struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (f *fakeProvider) GenerateContent(_ context.Context, _ *interfaces.ContentRequest) (*interfaces.ContentResponse, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &interfaces.ContentResponse{Text: f.text, Provider: "claude", Model: "test"}, nil
}

func (f *fakeProvider) GetProviderType() string { return "claude" }
func (f *fakeProvider) Close() error            { return nil }

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

const goodResponse = `{
	"summary": "Acme leads on integrations while competitors undercut on price.",
	"detailed_sections": {"pricing": "Competitors are cheaper.", "features": "Acme has more integrations."},
	"recommendations": ["Match the entry-level price point."],
	"confidence_score": 0.8
}`

type fixture struct {
	projects  *memProjects
	snapshots *memSnapshots
	reports   *memReports
	provider  *fakeProvider
}

func newFixture(t *testing.T) (*Orchestrator, *fixture) {
	t.Helper()
	f := &fixture{
		projects:  newMemProjects(),
		snapshots: &memSnapshots{byEntity: map[string]*models.Snapshot{}},
		reports:   newMemReports(),
		provider:  &fakeProvider{text: goodResponse},
	}
	cfg := &common.ReportConfig{DefaultTemplate: "comprehensive"}
	orch := NewOrchestrator(cfg, f.projects, f.snapshots, f.reports, f.provider, arbor.NewLogger())
	return orch, f
}

func seedProject(t *testing.T, f *fixture, competitorIDs ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.projects.SaveProject(ctx, &models.Project{ID: "proj_1", Name: "Acme", CreatedAt: time.Now()}))
	require.NoError(t, f.projects.SaveEntity(ctx, &models.TrackedEntity{
		ID: "ent_product", ProjectID: "proj_1", Kind: models.EntityKindProduct,
		Name: "Acme", URL: "https://acme.example.com",
	}))
	for _, id := range competitorIDs {
		require.NoError(t, f.projects.SaveEntity(ctx, &models.TrackedEntity{
			ID: id, ProjectID: "proj_1", Kind: models.EntityKindCompetitor,
			Name: "Competitor " + id, URL: "https://" + id + ".example.com",
		}))
	}
}

func seedSnapshot(t *testing.T, f *fixture, entityID string, size int) {
	t.Helper()
	content := make([]byte, size)
	for i := range content {
		content[i] = 'a'
	}
	require.NoError(t, f.snapshots.SaveSnapshot(context.Background(), &models.Snapshot{
		ID: "snap_" + entityID, EntityID: entityID, Content: string(content),
		SizeBytes: int64(size), CapturedAt: time.Now().Add(-time.Hour),
	}))
}

func TestGenerate_ProjectNotFound(t *testing.T) {
	orch, _ := newFixture(t)

	result, err := orch.Generate(context.Background(), "proj_missing", Options{})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, models.ErrProjectNotFound, models.CodeOf(err))
}

func TestGenerate_NoCompetitors_NoInferenceCall(t *testing.T) {
	orch, f := newFixture(t)
	seedProject(t, f)
	seedSnapshot(t, f, "ent_product", 6000)

	result, err := orch.Generate(context.Background(), "proj_1", Options{})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, models.ErrNoCompetitorsAssigned, models.CodeOf(err))
	assert.Equal(t, 0, f.provider.callCount())
}

func TestGenerate_NoCompetitorData_HardFailure(t *testing.T) {
	orch, f := newFixture(t)
	seedProject(t, f, "ent_comp_a", "ent_comp_b")
	seedSnapshot(t, f, "ent_product", 6000)

	result, err := orch.Generate(context.Background(), "proj_1", Options{})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, models.ErrNoCompetitorData, models.CodeOf(err))
	assert.Equal(t, 0, f.provider.callCount())
}

func TestGenerate_Completed(t *testing.T) {
	orch, f := newFixture(t)
	seedProject(t, f, "ent_comp_a")
	seedSnapshot(t, f, "ent_product", 6000)
	seedSnapshot(t, f, "ent_comp_a", 6000)

	result, err := orch.Generate(context.Background(), "proj_1", Options{})

	require.NoError(t, err)
	require.NotNil(t, result.Report)
	require.NotNil(t, result.Analysis)
	assert.Empty(t, result.Errors)
	assert.Equal(t, models.ReportStatusCompleted, result.Report.Status)
	assert.Equal(t, models.DataQualityHigh, result.Analysis.DataQuality)
	assert.False(t, result.Analysis.Fallback)
	assert.InDelta(t, 0.8, result.Analysis.ConfidenceScore, 0.001)

	stored, err := f.reports.GetReport(context.Background(), result.Report.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Report.AnalysisID, stored.AnalysisID)
}

func TestGenerate_InferenceError_FallbackPartial(t *testing.T) {
	orch, f := newFixture(t)
	f.provider.err = errors.New("rate limited")
	seedProject(t, f, "ent_comp_a")
	seedSnapshot(t, f, "ent_product", 6000)
	seedSnapshot(t, f, "ent_comp_a", 6000)

	result, err := orch.Generate(context.Background(), "proj_1", Options{})

	require.NoError(t, err)
	require.NotNil(t, result.Report)
	assert.Equal(t, models.ReportStatusPartial, result.Report.Status)
	assert.True(t, result.Analysis.Fallback)
	assert.NotEmpty(t, result.Analysis.Summary)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, models.ErrInference, models.CodeOf(result.Errors[0]))
}

func TestGenerate_MalformedResponse_Fallback(t *testing.T) {
	orch, f := newFixture(t)
	f.provider.text = "I cannot produce JSON today, sorry."
	seedProject(t, f, "ent_comp_a")
	seedSnapshot(t, f, "ent_product", 6000)
	seedSnapshot(t, f, "ent_comp_a", 6000)

	result, err := orch.Generate(context.Background(), "proj_1", Options{})

	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusPartial, result.Report.Status)
	assert.True(t, result.Analysis.Fallback)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, models.ErrInference, models.CodeOf(result.Errors[0]))
}

func TestGenerate_MissingCompetitorSnapshot_DegradesToPartial(t *testing.T) {
	orch, f := newFixture(t)
	seedProject(t, f, "ent_comp_a", "ent_comp_b")
	seedSnapshot(t, f, "ent_product", 6000)
	seedSnapshot(t, f, "ent_comp_a", 6000)

	result, err := orch.Generate(context.Background(), "proj_1", Options{})

	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusPartial, result.Report.Status)
	assert.Equal(t, []string{"ent_comp_b"}, result.Report.SkippedCompetitors)
	assert.Equal(t, []string{"ent_comp_a"}, result.Analysis.CompetitorIDs)
	assert.False(t, result.Analysis.Fallback)
}

func TestGenerate_PersistenceFailure_ReturnsInMemoryResult(t *testing.T) {
	orch, f := newFixture(t)
	f.reports.failSaves = true
	seedProject(t, f, "ent_comp_a")
	seedSnapshot(t, f, "ent_product", 6000)
	seedSnapshot(t, f, "ent_comp_a", 6000)

	result, err := orch.Generate(context.Background(), "proj_1", Options{})

	require.NoError(t, err)
	require.NotNil(t, result.Report)
	require.NotNil(t, result.Analysis)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, models.ErrPersistence, models.CodeOf(result.Errors[0]))
}

func TestGenerate_DataQualityIsMinAcrossEntities(t *testing.T) {
	orch, f := newFixture(t)
	seedProject(t, f, "ent_comp_a")
	seedSnapshot(t, f, "ent_product", 6000)
	seedSnapshot(t, f, "ent_comp_a", 300)

	result, err := orch.Generate(context.Background(), "proj_1", Options{})

	require.NoError(t, err)
	assert.Equal(t, models.DataQualityLow, result.Analysis.DataQuality)
}

func TestGenerate_DeterministicSections(t *testing.T) {
	orch, f := newFixture(t)
	seedProject(t, f, "ent_comp_a", "ent_comp_b")
	seedSnapshot(t, f, "ent_product", 6000)
	seedSnapshot(t, f, "ent_comp_a", 6000)
	seedSnapshot(t, f, "ent_comp_b", 6000)

	first, err := orch.Generate(context.Background(), "proj_1", Options{})
	require.NoError(t, err)
	second, err := orch.Generate(context.Background(), "proj_1", Options{})
	require.NoError(t, err)

	require.Equal(t, len(first.Report.Sections), len(second.Report.Sections))
	for i := range first.Report.Sections {
		assert.Equal(t, first.Report.Sections[i].Content, second.Report.Sections[i].Content)
		assert.Equal(t, first.Report.Sections[i].Order, second.Report.Sections[i].Order)
	}
}

func TestGenerate_InvalidTemplateRejected(t *testing.T) {
	orch, f := newFixture(t)
	seedProject(t, f, "ent_comp_a")

	_, err := orch.Generate(context.Background(), "proj_1", Options{Template: "glossy"})

	require.Error(t, err)
	assert.Equal(t, models.ErrValidation, models.CodeOf(err))
}

func TestGeneratePerCompetitor_IsolatesFailures(t *testing.T) {
	orch, f := newFixture(t)
	seedProject(t, f, "ent_comp_a", "ent_comp_b")
	seedSnapshot(t, f, "ent_product", 6000)
	seedSnapshot(t, f, "ent_comp_a", 6000)
	// ent_comp_b has no snapshot, so its isolated run fails hard

	batch, err := orch.GeneratePerCompetitor(context.Background(), "proj_1", Options{})

	require.NoError(t, err)
	assert.Equal(t, BatchPartial, batch.Status)
	require.Len(t, batch.Outcomes, 2)
	require.Len(t, batch.Errors, 1)
	assert.Equal(t, models.ErrNoCompetitorData, models.CodeOf(batch.Errors[0]))

	succeeded := 0
	for _, outcome := range batch.Outcomes {
		if outcome.Err == nil {
			succeeded++
			assert.NotNil(t, outcome.Result.Report)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestGeneratePerCompetitor_AllSucceeded(t *testing.T) {
	orch, f := newFixture(t)
	seedProject(t, f, "ent_comp_a", "ent_comp_b")
	seedSnapshot(t, f, "ent_product", 6000)
	seedSnapshot(t, f, "ent_comp_a", 6000)
	seedSnapshot(t, f, "ent_comp_b", 6000)

	batch, err := orch.GeneratePerCompetitor(context.Background(), "proj_1", Options{})

	require.NoError(t, err)
	assert.Equal(t, BatchAllSucceeded, batch.Status)
	assert.Empty(t, batch.Errors)
	assert.Equal(t, 2, f.provider.callCount())
}

func TestGeneratePerCompetitor_AllFailed(t *testing.T) {
	orch, f := newFixture(t)
	seedProject(t, f, "ent_comp_a", "ent_comp_b")
	seedSnapshot(t, f, "ent_product", 6000)

	batch, err := orch.GeneratePerCompetitor(context.Background(), "proj_1", Options{})

	require.NoError(t, err)
	assert.Equal(t, BatchAllFailed, batch.Status)
	assert.Len(t, batch.Errors, 2)
}
