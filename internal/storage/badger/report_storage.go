package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ReportStorage implements the ReportStorage interface for Badger. Analyses
// and reports are immutable once stored.
type ReportStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewReportStorage creates a new ReportStorage instance
func NewReportStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ReportStorage {
	return &ReportStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ReportStorage) SaveAnalysis(ctx context.Context, analysis *models.ComparativeAnalysis) error {
	if err := analysis.Validate(); err != nil {
		return fmt.Errorf("invalid analysis: %w", err)
	}
	if analysis.CreatedAt.IsZero() {
		analysis.CreatedAt = time.Now()
	}
	if err := s.db.Store().Insert(analysis.ID, analysis); err != nil {
		if err == badgerhold.ErrKeyExists {
			return fmt.Errorf("analysis %s already exists, analyses are immutable", analysis.ID)
		}
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

func (s *ReportStorage) GetAnalysis(ctx context.Context, id string) (*models.ComparativeAnalysis, error) {
	var analysis models.ComparativeAnalysis
	if err := s.db.Store().Get(id, &analysis); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.NewPipelineError(models.ErrNotFound, "get_analysis", "", fmt.Sprintf("analysis not found: %s", id))
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return &analysis, nil
}

func (s *ReportStorage) SaveReport(ctx context.Context, report *models.ComparativeReport) error {
	if err := report.Validate(); err != nil {
		return fmt.Errorf("invalid report: %w", err)
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}
	if err := s.db.Store().Insert(report.ID, report); err != nil {
		if err == badgerhold.ErrKeyExists {
			return fmt.Errorf("report %s already exists, reports are immutable", report.ID)
		}
		return fmt.Errorf("failed to save report: %w", err)
	}

	s.logger.Debug().
		Str("report_id", report.ID).
		Str("project_id", report.ProjectID).
		Str("status", string(report.Status)).
		Msg("Report saved")
	return nil
}

func (s *ReportStorage) GetReport(ctx context.Context, id string) (*models.ComparativeReport, error) {
	var report models.ComparativeReport
	if err := s.db.Store().Get(id, &report); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.NewPipelineError(models.ErrNotFound, "get_report", "", fmt.Sprintf("report not found: %s", id))
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return &report, nil
}

func (s *ReportStorage) ListReports(ctx context.Context, projectID string, limit int) ([]*models.ComparativeReport, error) {
	query := badgerhold.Where("ProjectID").Eq(projectID).SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}
	var reports []models.ComparativeReport
	if err := s.db.Store().Find(&reports, query); err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	result := make([]*models.ComparativeReport, len(reports))
	for i := range reports {
		result[i] = &reports[i]
	}
	return result, nil
}
