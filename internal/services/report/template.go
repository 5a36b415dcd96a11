package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/vantage/internal/models"
)

// sectionSpec names one section slot of a template layout
type sectionSpec struct {
	Title string
	Type  models.SectionType
}

// templateLayouts maps each report template to its ordered section layout
var templateLayouts = map[models.ReportTemplate][]sectionSpec{
	models.TemplateComprehensive: {
		{Title: "Executive Summary", Type: models.SectionTypeSummary},
		{Title: "Competitive Comparison", Type: models.SectionTypeComparison},
		{Title: "Recommendations", Type: models.SectionTypeRecommendations},
		{Title: "Data Quality", Type: models.SectionTypeDataQuality},
	},
	models.TemplateExecutive: {
		{Title: "Executive Summary", Type: models.SectionTypeSummary},
		{Title: "Recommendations", Type: models.SectionTypeRecommendations},
	},
	models.TemplateTechnical: {
		{Title: "Competitive Comparison", Type: models.SectionTypeComparison},
		{Title: "Data Quality", Type: models.SectionTypeDataQuality},
	},
	models.TemplateStrategic: {
		{Title: "Executive Summary", Type: models.SectionTypeSummary},
		{Title: "Competitive Comparison", Type: models.SectionTypeComparison},
		{Title: "Recommendations", Type: models.SectionTypeRecommendations},
	},
}

// buildSections maps analysis fields into the ordered sections of the
// selected template. Output is deterministic for identical analysis input.
func buildSections(template models.ReportTemplate, analysis *models.ComparativeAnalysis, skipped []string) []models.ReportSection {
	layout, ok := templateLayouts[template]
	if !ok {
		layout = templateLayouts[models.TemplateComprehensive]
	}

	sections := make([]models.ReportSection, 0, len(layout))
	for i, spec := range layout {
		sections = append(sections, models.ReportSection{
			Title:   spec.Title,
			Content: sectionContent(spec.Type, analysis, skipped),
			Type:    spec.Type,
			Order:   i,
		})
	}
	return sections
}

func sectionContent(sectionType models.SectionType, analysis *models.ComparativeAnalysis, skipped []string) string {
	switch sectionType {
	case models.SectionTypeSummary:
		return analysis.Summary

	case models.SectionTypeComparison:
		keys := make([]string, 0, len(analysis.DetailedSections))
		for key := range analysis.DetailedSections {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var b strings.Builder
		for _, key := range keys {
			fmt.Fprintf(&b, "### %s\n\n%s\n\n", key, analysis.DetailedSections[key])
		}
		if b.Len() == 0 {
			return "No detailed comparison was produced for this run."
		}
		return strings.TrimSpace(b.String())

	case models.SectionTypeRecommendations:
		if len(analysis.Recommendations) == 0 {
			return "No recommendations were produced for this run."
		}
		var b strings.Builder
		for _, rec := range analysis.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
		return strings.TrimSpace(b.String())

	case models.SectionTypeDataQuality:
		var b strings.Builder
		fmt.Fprintf(&b, "Overall data quality: %s. Confidence score: %.2f.", analysis.DataQuality, analysis.ConfidenceScore)
		if analysis.Fallback {
			b.WriteString(" Structured analysis was unavailable; sections were assembled from raw collected content.")
		}
		if len(skipped) > 0 {
			ordered := make([]string, len(skipped))
			copy(ordered, skipped)
			sort.Strings(ordered)
			fmt.Fprintf(&b, " Competitors skipped for missing data: %s.", strings.Join(ordered, ", "))
		}
		return b.String()

	default:
		return ""
	}
}
