package models

import (
	"errors"
	"fmt"
	"time"
)

// DataQuality is a heuristic assessment of assembled snapshot content
type DataQuality string

const (
	DataQualityHigh   DataQuality = "high"
	DataQualityMedium DataQuality = "medium"
	DataQualityLow    DataQuality = "low"
)

// Worse returns the lower of two data quality levels
func (q DataQuality) Worse(other DataQuality) DataQuality {
	rank := map[DataQuality]int{DataQualityHigh: 0, DataQualityMedium: 1, DataQualityLow: 2}
	if rank[other] > rank[q] {
		return other
	}
	return q
}

// ComparativeAnalysis holds the parsed output of one AI analysis invocation.
// Immutable once stored.
type ComparativeAnalysis struct {
	ID               string            `json:"id"`
	ProjectID        string            `json:"project_id"`
	ProductID        string            `json:"product_id"`
	CompetitorIDs    []string          `json:"competitor_ids"`
	Summary          string            `json:"summary"`
	DetailedSections map[string]string `json:"detailed_sections"`
	Recommendations  []string          `json:"recommendations"`
	ConfidenceScore  float64           `json:"confidence_score"`
	DataQuality      DataQuality       `json:"data_quality"`
	Fallback         bool              `json:"fallback"` // True when built from raw content after unusable AI output
	CreatedAt        time.Time         `json:"created_at"`
}

// Validate validates the analysis
func (a *ComparativeAnalysis) Validate() error {
	if a.ID == "" {
		return errors.New("analysis ID is required")
	}
	if a.ProjectID == "" {
		return errors.New("analysis project ID is required")
	}
	if a.ProductID == "" {
		return errors.New("analysis product ID is required")
	}
	if len(a.CompetitorIDs) == 0 {
		return errors.New("analysis requires at least one competitor")
	}
	return nil
}

// ReportTemplate selects the section layout of a comparative report
type ReportTemplate string

const (
	TemplateComprehensive ReportTemplate = "comprehensive"
	TemplateExecutive     ReportTemplate = "executive"
	TemplateTechnical     ReportTemplate = "technical"
	TemplateStrategic     ReportTemplate = "strategic"
)

// IsValidReportTemplate checks if a given ReportTemplate is one of the valid constants
func IsValidReportTemplate(template ReportTemplate) bool {
	switch template {
	case TemplateComprehensive, TemplateExecutive, TemplateTechnical, TemplateStrategic:
		return true
	default:
		return false
	}
}

// SectionType classifies a report section's content
type SectionType string

const (
	SectionTypeSummary         SectionType = "summary"
	SectionTypeComparison      SectionType = "comparison"
	SectionTypeRecommendations SectionType = "recommendations"
	SectionTypeDataQuality     SectionType = "data_quality"
)

// ReportSection is one ordered section of a comparative report
type ReportSection struct {
	Title   string      `json:"title"`
	Content string      `json:"content"`
	Type    SectionType `json:"type"`
	Order   int         `json:"order"`
}

// ReportStatus is the outcome classification of a report generation run.
// The system never reports completed when zero usable output was produced,
// and never reports failed when some output was produced.
type ReportStatus string

const (
	ReportStatusCompleted ReportStatus = "completed"
	ReportStatusPartial   ReportStatus = "partial"
	ReportStatusFailed    ReportStatus = "failed"
)

// ComparativeReport is the assembled output of one orchestration run.
// Never mutated after creation; superseded by a new report, not edited.
type ComparativeReport struct {
	ID                 string          `json:"id"`
	AnalysisID         string          `json:"analysis_id"`
	ProjectID          string          `json:"project_id"`
	CorrelationID      string          `json:"correlation_id"`
	Template           ReportTemplate  `json:"template"`
	Sections           []ReportSection `json:"sections"`
	Status             ReportStatus    `json:"status"`
	SkippedCompetitors []string        `json:"skipped_competitors,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// Validate validates the report
func (r *ComparativeReport) Validate() error {
	if r.ID == "" {
		return errors.New("report ID is required")
	}
	if r.AnalysisID == "" {
		return errors.New("report analysis ID is required")
	}
	if r.ProjectID == "" {
		return errors.New("report project ID is required")
	}
	if !IsValidReportTemplate(r.Template) {
		return fmt.Errorf("invalid report template: %s", r.Template)
	}
	return nil
}

// GenerationState names the stages of a single report generation run
type GenerationState string

const (
	StateValidating       GenerationState = "validating"
	StateAssembling       GenerationState = "assembling"
	StateAnalyzing        GenerationState = "analyzing"
	StateAssemblingReport GenerationState = "assembling_report"
	StatePersisting       GenerationState = "persisting"
)
