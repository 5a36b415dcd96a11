package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/vantage/internal/models"
)

func entityWithSnapshot(id, name string, size int) assembledEntity {
	snapshot := &models.Snapshot{
		ID:         "snap_" + id,
		EntityID:   id,
		Content:    strings.Repeat("x", size),
		SizeBytes:  int64(size),
		CapturedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	return assembledEntity{
		Entity:   &models.TrackedEntity{ID: id, Name: name, URL: "https://" + id + ".example.com"},
		Snapshot: snapshot,
		Quality:  assessQuality(snapshot),
	}
}

func TestAssessQuality_SizeBuckets(t *testing.T) {
	tests := []struct {
		name string
		size int
		want models.DataQuality
	}{
		{"empty", 0, models.DataQualityLow},
		{"just under low threshold", 499, models.DataQualityLow},
		{"at low threshold", 500, models.DataQualityMedium},
		{"just under medium threshold", 4999, models.DataQualityMedium},
		{"at medium threshold", 5000, models.DataQualityHigh},
		{"large", 50000, models.DataQualityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshot := &models.Snapshot{SizeBytes: int64(tt.size)}
			assert.Equal(t, tt.want, assessQuality(snapshot))
		})
	}
}

func TestAssessQuality_NilSnapshotIsLow(t *testing.T) {
	assert.Equal(t, models.DataQualityLow, assessQuality(nil))
}

func TestBuildPrompt_CompetitorsOrderedByID(t *testing.T) {
	product := entityWithSnapshot("ent_product", "Acme", 1000)
	competitors := []assembledEntity{
		entityWithSnapshot("ent_z", "Zenith", 1000),
		entityWithSnapshot("ent_a", "Apex", 1000),
	}

	prompt := buildPrompt(product, competitors)

	assert.Less(t, strings.Index(prompt, "Apex"), strings.Index(prompt, "Zenith"))
	assert.Contains(t, prompt, "## PRODUCT")
	assert.Contains(t, prompt, "## COMPETITOR 1")
	assert.Contains(t, prompt, "## COMPETITOR 2")
}

func TestBuildPrompt_TruncatesLongContent(t *testing.T) {
	product := entityWithSnapshot("ent_product", "Acme", maxContentChars*2)
	competitors := []assembledEntity{entityWithSnapshot("ent_a", "Apex", 100)}

	prompt := buildPrompt(product, competitors)

	assert.Less(t, len(prompt), maxContentChars*2)
}

func TestParseAnalysisResponse_PlainJSON(t *testing.T) {
	payload, err := parseAnalysisResponse(goodResponse)

	require.NoError(t, err)
	assert.Equal(t, "Acme leads on integrations while competitors undercut on price.", payload.Summary)
	assert.Len(t, payload.Recommendations, 1)
	assert.InDelta(t, 0.8, payload.ConfidenceScore, 0.001)
}

func TestParseAnalysisResponse_FencedJSON(t *testing.T) {
	fenced := "```json\n" + goodResponse + "\n```"

	payload, err := parseAnalysisResponse(fenced)

	require.NoError(t, err)
	assert.NotEmpty(t, payload.Summary)
}

func TestParseAnalysisResponse_NotJSON(t *testing.T) {
	_, err := parseAnalysisResponse("Here is my analysis in prose form.")

	require.Error(t, err)
}

func TestParseAnalysisResponse_MissingSummary(t *testing.T) {
	_, err := parseAnalysisResponse(`{"detailed_sections": {}, "confidence_score": 0.5}`)

	require.Error(t, err)
}

func TestParseAnalysisResponse_ClampsConfidence(t *testing.T) {
	payload, err := parseAnalysisResponse(`{"summary": "ok", "confidence_score": 3.5}`)

	require.NoError(t, err)
	assert.Equal(t, 1.0, payload.ConfidenceScore)
}

func TestFallbackPayload_UsesRawContent(t *testing.T) {
	product := entityWithSnapshot("ent_product", "Acme", 1000)
	competitors := []assembledEntity{entityWithSnapshot("ent_a", "Apex", 1000)}

	payload := fallbackPayload(product, competitors)

	assert.Contains(t, payload.Summary, "Acme")
	assert.Contains(t, payload.Summary, "Apex")
	assert.NotEmpty(t, payload.DetailedSections["Apex"])
	assert.Zero(t, payload.ConfidenceScore)
}
