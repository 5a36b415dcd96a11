package report

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
)

const opGenerateReport = "report.generate"

// Options controls a single report generation run
type Options struct {
	// Template selects the section layout; empty uses the configured default
	Template models.ReportTemplate
	// CorrelationID ties the run to its pipeline; generated when empty
	CorrelationID string
}

// Result is the outcome of one generation run. Report and Analysis are set
// whenever usable output was produced, even when Errors is non-empty.
type Result struct {
	Report             *models.ComparativeReport
	Analysis           *models.ComparativeAnalysis
	SkippedCompetitors []string
	Errors             []error
}

// BatchStatus classifies the outcome of a per-competitor batch run
type BatchStatus string

const (
	BatchAllSucceeded BatchStatus = "all_succeeded"
	BatchPartial      BatchStatus = "partial"
	BatchAllFailed    BatchStatus = "all_failed"
)

// CompetitorOutcome is the isolated result of one competitor's generation
// in per-competitor mode.
type CompetitorOutcome struct {
	CompetitorID string
	Result       *Result
	Err          error
}

// BatchResult aggregates per-competitor mode outcomes
type BatchResult struct {
	Status   BatchStatus
	Outcomes []CompetitorOutcome
	Errors   []error
}

// Orchestrator drives report generation through validation, data assembly,
// analysis invocation, section assembly and persistence.
type Orchestrator struct {
	config    *common.ReportConfig
	projects  interfaces.ProjectStorage
	snapshots interfaces.SnapshotStorage
	reports   interfaces.ReportStorage
	provider  interfaces.AIProvider
	logger    arbor.ILogger
}

// NewOrchestrator creates a report orchestrator
func NewOrchestrator(
	config *common.ReportConfig,
	projects interfaces.ProjectStorage,
	snapshots interfaces.SnapshotStorage,
	reports interfaces.ReportStorage,
	provider interfaces.AIProvider,
	logger arbor.ILogger,
) *Orchestrator {
	return &Orchestrator{
		config:    config,
		projects:  projects,
		snapshots: snapshots,
		reports:   reports,
		provider:  provider,
		logger:    logger,
	}
}

// Generate runs a full comparative report generation for a project. A nil
// error with non-empty Result.Errors means the run degraded (partial or a
// persistence failure) but still produced usable output.
func (o *Orchestrator) Generate(ctx context.Context, projectID string, opts Options) (*Result, error) {
	correlationID := opts.CorrelationID
	if correlationID == "" {
		correlationID = common.NewCorrelationID()
	}
	log := o.logger.WithCorrelationId(correlationID)

	template := opts.Template
	if template == "" {
		template = models.ReportTemplate(o.config.DefaultTemplate)
	}
	if !models.IsValidReportTemplate(template) {
		return nil, models.NewPipelineError(models.ErrValidation, opGenerateReport, correlationID,
			fmt.Sprintf("invalid report template '%s'", template))
	}

	// VALIDATING
	o.logStage(log, models.StateValidating, "started")
	product, competitors, err := o.validate(ctx, projectID, correlationID)
	if err != nil {
		o.logStage(log, models.StateValidating, "failed")
		return nil, err
	}
	o.logStage(log, models.StateValidating, "completed")

	return o.generateFor(ctx, log, correlationID, projectID, template, product, competitors)
}

// GeneratePerCompetitor runs an isolated generation per competitor. One
// competitor's failure is collected and does not stop the others. Each run
// writes its own analysis and report records.
func (o *Orchestrator) GeneratePerCompetitor(ctx context.Context, projectID string, opts Options) (*BatchResult, error) {
	correlationID := opts.CorrelationID
	if correlationID == "" {
		correlationID = common.NewCorrelationID()
	}
	log := o.logger.WithCorrelationId(correlationID)

	template := opts.Template
	if template == "" {
		template = models.ReportTemplate(o.config.DefaultTemplate)
	}

	o.logStage(log, models.StateValidating, "started")
	product, competitors, err := o.validate(ctx, projectID, correlationID)
	if err != nil {
		o.logStage(log, models.StateValidating, "failed")
		return nil, err
	}
	o.logStage(log, models.StateValidating, "completed")

	outcomes := make([]CompetitorOutcome, len(competitors))
	var wg sync.WaitGroup
	for i, competitor := range competitors {
		wg.Add(1)
		go func(idx int, comp *models.TrackedEntity) {
			defer wg.Done()
			result, genErr := o.generateFor(ctx, log, correlationID, projectID, template, product, []*models.TrackedEntity{comp})
			outcomes[idx] = CompetitorOutcome{CompetitorID: comp.ID, Result: result, Err: genErr}
		}(i, competitor)
	}
	wg.Wait()

	batch := &BatchResult{Outcomes: outcomes}
	succeeded := 0
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			batch.Errors = append(batch.Errors, outcome.Err)
			continue
		}
		succeeded++
	}
	switch {
	case succeeded == len(outcomes):
		batch.Status = BatchAllSucceeded
	case succeeded == 0:
		batch.Status = BatchAllFailed
	default:
		batch.Status = BatchPartial
	}

	log.Info().
		Str("project_id", projectID).
		Str("batch_status", string(batch.Status)).
		Int("succeeded", succeeded).
		Int("failed", len(outcomes)-succeeded).
		Msg("Per-competitor report batch finished")

	return batch, nil
}

// validate checks the project prerequisites without contacting the provider
func (o *Orchestrator) validate(ctx context.Context, projectID, correlationID string) (*models.TrackedEntity, []*models.TrackedEntity, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, nil, models.NewPipelineError(models.ErrValidation, opGenerateReport, correlationID, "project id is required")
	}

	project, err := o.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, nil, models.WrapPipelineError(models.ErrProjectNotFound, opGenerateReport, correlationID, err)
	}
	if project == nil {
		return nil, nil, models.NewPipelineError(models.ErrProjectNotFound, opGenerateReport, correlationID,
			fmt.Sprintf("project %s does not exist", projectID))
	}

	product, err := o.projects.GetProduct(ctx, projectID)
	if err != nil {
		return nil, nil, models.WrapPipelineError(models.ErrNoProductAssigned, opGenerateReport, correlationID, err)
	}

	competitors, err := o.projects.ListCompetitors(ctx, projectID)
	if err != nil {
		return nil, nil, models.WrapPipelineError(models.ErrPersistence, opGenerateReport, correlationID, err)
	}
	if len(competitors) == 0 {
		return nil, nil, models.NewPipelineError(models.ErrNoCompetitorsAssigned, opGenerateReport, correlationID,
			fmt.Sprintf("project %s has no competitors configured", projectID))
	}

	return product, competitors, nil
}

// generateFor runs assembly through persistence for an already validated
// product and competitor set.
func (o *Orchestrator) generateFor(
	ctx context.Context,
	log arbor.ILogger,
	correlationID string,
	projectID string,
	template models.ReportTemplate,
	product *models.TrackedEntity,
	competitors []*models.TrackedEntity,
) (*Result, error) {
	result := &Result{}

	// ASSEMBLING
	o.logStage(log, models.StateAssembling, "started")
	assembledProduct, assembledCompetitors, skipped, err := o.assemble(ctx, correlationID, product, competitors)
	if err != nil {
		o.logStage(log, models.StateAssembling, "failed")
		return nil, err
	}
	result.SkippedCompetitors = skipped
	o.logStage(log, models.StateAssembling, "completed")

	quality := assembledProduct.Quality
	for _, comp := range assembledCompetitors {
		quality = quality.Worse(comp.Quality)
	}

	// ANALYZING
	o.logStage(log, models.StateAnalyzing, "started")
	payload, fallback, inferErr := o.analyze(ctx, correlationID, assembledProduct, assembledCompetitors)
	if inferErr != nil {
		result.Errors = append(result.Errors, inferErr)
	}
	o.logStage(log, models.StateAnalyzing, "completed")

	competitorIDs := make([]string, 0, len(assembledCompetitors))
	for _, comp := range assembledCompetitors {
		competitorIDs = append(competitorIDs, comp.Entity.ID)
	}

	analysis := &models.ComparativeAnalysis{
		ID:               common.NewAnalysisID(),
		ProjectID:        projectID,
		ProductID:        product.ID,
		CompetitorIDs:    competitorIDs,
		Summary:          payload.Summary,
		DetailedSections: payload.DetailedSections,
		Recommendations:  payload.Recommendations,
		ConfidenceScore:  payload.ConfidenceScore,
		DataQuality:      quality,
		Fallback:         fallback,
		CreatedAt:        time.Now().UTC(),
	}
	result.Analysis = analysis

	// ASSEMBLING_REPORT
	o.logStage(log, models.StateAssemblingReport, "started")
	status := models.ReportStatusCompleted
	if fallback || len(skipped) > 0 {
		status = models.ReportStatusPartial
	}
	reportRecord := &models.ComparativeReport{
		ID:                 common.NewReportID(),
		AnalysisID:         analysis.ID,
		ProjectID:          projectID,
		CorrelationID:      correlationID,
		Template:           template,
		Sections:           buildSections(template, analysis, skipped),
		Status:             status,
		SkippedCompetitors: skipped,
		CreatedAt:          time.Now().UTC(),
	}
	result.Report = reportRecord
	o.logStage(log, models.StateAssemblingReport, "completed")

	// PERSISTING
	o.logStage(log, models.StatePersisting, "started")
	if err := o.persist(ctx, analysis, reportRecord); err != nil {
		o.logStage(log, models.StatePersisting, "failed")
		log.Warn().Err(err).Str("report_id", reportRecord.ID).Msg("Report persistence failed, returning in-memory result")
		result.Errors = append(result.Errors, models.WrapPipelineError(models.ErrPersistence, opGenerateReport, correlationID, err))
		return result, nil
	}
	o.logStage(log, models.StatePersisting, "completed")

	log.Info().
		Str("project_id", projectID).
		Str("report_id", reportRecord.ID).
		Str("status", string(status)).
		Str("data_quality", string(quality)).
		Int("competitors", len(competitorIDs)).
		Int("skipped", len(skipped)).
		Msg("Comparative report generated")

	return result, nil
}

// assemble fetches the latest snapshot per entity. Competitors without a
// snapshot are skipped; when none has data the run fails hard.
func (o *Orchestrator) assemble(
	ctx context.Context,
	correlationID string,
	product *models.TrackedEntity,
	competitors []*models.TrackedEntity,
) (assembledEntity, []assembledEntity, []string, error) {
	productSnapshot, err := o.snapshots.GetLatestSnapshot(ctx, product.ID)
	if err != nil {
		return assembledEntity{}, nil, nil, models.WrapPipelineError(models.ErrPersistence, opGenerateReport, correlationID, err)
	}
	assembledProduct := assembledEntity{
		Entity:   product,
		Snapshot: productSnapshot,
		Quality:  assessQuality(productSnapshot),
	}

	assembled := make([]assembledEntity, 0, len(competitors))
	var skipped []string
	for _, competitor := range competitors {
		snapshot, err := o.snapshots.GetLatestSnapshot(ctx, competitor.ID)
		if err != nil {
			return assembledEntity{}, nil, nil, models.WrapPipelineError(models.ErrPersistence, opGenerateReport, correlationID, err)
		}
		if snapshot == nil {
			skipped = append(skipped, competitor.ID)
			continue
		}
		assembled = append(assembled, assembledEntity{
			Entity:   competitor,
			Snapshot: snapshot,
			Quality:  assessQuality(snapshot),
		})
	}

	if len(assembled) == 0 {
		return assembledEntity{}, nil, nil, models.NewPipelineError(models.ErrNoCompetitorData, opGenerateReport, correlationID,
			"no competitor has snapshot data")
	}

	return assembledProduct, assembled, skipped, nil
}

// analyze makes the single inference call and parses its output. Any
// provider or parse failure degrades to the fallback payload; the run
// continues as partial rather than aborting.
func (o *Orchestrator) analyze(
	ctx context.Context,
	correlationID string,
	product assembledEntity,
	competitors []assembledEntity,
) (*analysisPayload, bool, error) {
	request := &interfaces.ContentRequest{
		Prompt:            buildPrompt(product, competitors),
		SystemInstruction: analysisSystemInstruction,
	}

	response, err := o.provider.GenerateContent(ctx, request)
	if err != nil {
		return fallbackPayload(product, competitors), true,
			models.WrapPipelineError(models.ErrInference, opGenerateReport, correlationID, err)
	}

	payload, err := parseAnalysisResponse(response.Text)
	if err != nil {
		return fallbackPayload(product, competitors), true,
			models.WrapPipelineError(models.ErrInference, opGenerateReport, correlationID,
				fmt.Errorf("unusable provider output: %w", err))
	}

	return payload, false, nil
}

// persist stores the analysis then the report
func (o *Orchestrator) persist(ctx context.Context, analysis *models.ComparativeAnalysis, reportRecord *models.ComparativeReport) error {
	if err := o.reports.SaveAnalysis(ctx, analysis); err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	if err := o.reports.SaveReport(ctx, reportRecord); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

func (o *Orchestrator) logStage(log arbor.ILogger, state models.GenerationState, status string) {
	log.Info().
		Str("stage", string(state)).
		Str("step_status", status).
		Msg("Report generation stage")
}
