package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/vantage/internal/models"
)

const (
	lowQualityBytes    = 500
	mediumQualityBytes = 5000

	// maxContentChars bounds the per-entity content included in the prompt
	maxContentChars = 12000
)

const analysisSystemInstruction = `You are a competitive intelligence analyst. You compare a product against its competitors using only the page content provided. Respond with a single JSON object and nothing else, using this shape:
{
  "summary": "two to four paragraph comparative summary",
  "detailed_sections": {"positioning": "...", "features": "...", "pricing": "..."},
  "recommendations": ["actionable recommendation", "..."],
  "confidence_score": 0.0
}
confidence_score is between 0 and 1 and reflects how well the provided content supports the analysis. Do not invent facts that are not in the content.`

// assembledEntity pairs a tracked entity with its latest snapshot and the
// quality assessed from that snapshot.
type assembledEntity struct {
	Entity   *models.TrackedEntity
	Snapshot *models.Snapshot
	Quality  models.DataQuality
}

// assessQuality grades snapshot content by size. Nil or empty snapshots
// grade low.
func assessQuality(snapshot *models.Snapshot) models.DataQuality {
	if snapshot == nil {
		return models.DataQualityLow
	}
	size := snapshot.SizeBytes
	if size == 0 {
		size = int64(len(snapshot.Content))
	}
	switch {
	case size < lowQualityBytes:
		return models.DataQualityLow
	case size < mediumQualityBytes:
		return models.DataQualityMedium
	default:
		return models.DataQualityHigh
	}
}

// buildPrompt renders the product and competitor content into a single
// analysis prompt. Competitors are ordered by entity id so identical input
// always produces the identical prompt.
func buildPrompt(product assembledEntity, competitors []assembledEntity) string {
	ordered := make([]assembledEntity, len(competitors))
	copy(ordered, competitors)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Entity.ID < ordered[j].Entity.ID
	})

	var b strings.Builder
	b.WriteString("Compare the following product against its competitors.\n\n")
	b.WriteString("## PRODUCT\n")
	writeEntityBlock(&b, product)
	for i, comp := range ordered {
		fmt.Fprintf(&b, "\n## COMPETITOR %d\n", i+1)
		writeEntityBlock(&b, comp)
	}
	return b.String()
}

func writeEntityBlock(b *strings.Builder, ae assembledEntity) {
	fmt.Fprintf(b, "Name: %s\nURL: %s\nData quality: %s\n", ae.Entity.Name, ae.Entity.URL, ae.Quality)
	if ae.Snapshot == nil {
		b.WriteString("Content: (no snapshot available)\n")
		return
	}
	content := ae.Snapshot.Content
	if len(content) > maxContentChars {
		content = content[:maxContentChars]
	}
	fmt.Fprintf(b, "Captured: %s\nContent:\n%s\n", ae.Snapshot.CapturedAt.UTC().Format("2006-01-02"), content)
}

// analysisPayload is the JSON shape requested from the AI provider
type analysisPayload struct {
	Summary          string            `json:"summary"`
	DetailedSections map[string]string `json:"detailed_sections"`
	Recommendations  []string          `json:"recommendations"`
	ConfidenceScore  float64           `json:"confidence_score"`
}

// parseAnalysisResponse extracts the structured payload from a provider
// response, tolerating markdown code fences around the JSON object.
func parseAnalysisResponse(text string) (*analysisPayload, error) {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	if strings.TrimSpace(payload.Summary) == "" {
		return nil, fmt.Errorf("response JSON has no summary")
	}
	if payload.ConfidenceScore < 0 {
		payload.ConfidenceScore = 0
	}
	if payload.ConfidenceScore > 1 {
		payload.ConfidenceScore = 1
	}
	return &payload, nil
}

// fallbackPayload builds a minimal analysis from raw assembled content when
// the provider output was missing or unusable.
func fallbackPayload(product assembledEntity, competitors []assembledEntity) *analysisPayload {
	names := make([]string, 0, len(competitors))
	for _, comp := range competitors {
		names = append(names, comp.Entity.Name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "Automated comparison of %s against %d competitor(s): %s. ",
		product.Entity.Name, len(names), strings.Join(names, ", "))
	b.WriteString("Structured analysis was unavailable for this run; this report was assembled directly from collected page content.")

	sections := map[string]string{}
	for _, comp := range competitors {
		excerpt := "(no content)"
		if comp.Snapshot != nil {
			excerpt = comp.Snapshot.Content
			if len(excerpt) > 600 {
				excerpt = excerpt[:600]
			}
		}
		sections[comp.Entity.Name] = excerpt
	}

	return &analysisPayload{
		Summary:          b.String(),
		DetailedSections: sections,
		Recommendations:  []string{"Re-run the analysis once the inference provider is available."},
		ConfidenceScore:  0,
	}
}
