// Package freshness computes staleness and collection priority for tracked
// entities. Evaluation is pure: no I/O, no side effects, deterministic for a
// given (entity, snapshot, now) triple.
package freshness

import (
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/vantage/internal/models"
)

// Thresholds are the staleness boundaries in days. They are configuration
// inputs, not constants, so tests can inject boundary values.
type Thresholds struct {
	// FreshnessDays is the age at or below which a snapshot is fresh
	FreshnessDays int
	// HighPriorityDays is the age beyond which collection is high priority
	HighPriorityDays int
}

// DefaultThresholds returns the production staleness boundaries
func DefaultThresholds() Thresholds {
	return Thresholds{
		FreshnessDays:    7,
		HighPriorityDays: 14,
	}
}

// Evaluator computes per-entity scraping needs from snapshot age
type Evaluator struct {
	thresholds Thresholds
}

// NewEvaluator creates an evaluator with the given thresholds
func NewEvaluator(thresholds Thresholds) *Evaluator {
	return &Evaluator{thresholds: thresholds}
}

// Evaluate computes the scraping need for one entity given its latest
// snapshot. A nil snapshot means no data has ever been collected.
//
// Age exactly equal to a threshold resolves to the lower bucket: an entity
// whose snapshot is exactly FreshnessDays old is still fresh, and one
// exactly HighPriorityDays old is still medium priority.
func (e *Evaluator) Evaluate(entity *models.TrackedEntity, latest *models.Snapshot, now time.Time) models.ScrapingNeed {
	if latest == nil {
		return models.ScrapingNeed{
			EntityID: entity.ID,
			Required: true,
			Priority: models.PriorityHigh,
			Reason:   "no snapshot exists",
		}
	}

	ageDays := latest.AgeDays(now)

	switch {
	case ageDays <= float64(e.thresholds.FreshnessDays):
		return models.ScrapingNeed{
			EntityID: entity.ID,
			Required: false,
			Priority: models.PriorityLow,
			Reason:   fmt.Sprintf("fresh data (%.1f days old, threshold %d days)", ageDays, e.thresholds.FreshnessDays),
			AgeDays:  ageDays,
		}
	case ageDays <= float64(e.thresholds.HighPriorityDays):
		return models.ScrapingNeed{
			EntityID: entity.ID,
			Required: true,
			Priority: models.PriorityMedium,
			Reason:   fmt.Sprintf("data is %.1f days old, past the %d day freshness window", ageDays, e.thresholds.FreshnessDays),
			AgeDays:  ageDays,
		}
	default:
		return models.ScrapingNeed{
			EntityID: entity.ID,
			Required: true,
			Priority: models.PriorityHigh,
			Reason:   fmt.Sprintf("data is %.1f days old, past the %d day high priority threshold", ageDays, e.thresholds.HighPriorityDays),
			AgeDays:  ageDays,
		}
	}
}

// EvaluateProject computes needs for every entity of a project and an
// overall freshness status. latestByEntity maps entity ID to its latest
// snapshot; missing keys mean no snapshot exists.
func (e *Evaluator) EvaluateProject(entities []*models.TrackedEntity, latestByEntity map[string]*models.Snapshot, now time.Time) ([]models.ScrapingNeed, models.FreshnessStatus) {
	needs := make([]models.ScrapingNeed, 0, len(entities))
	status := models.FreshnessStatusFresh

	for _, entity := range entities {
		need := e.Evaluate(entity, latestByEntity[entity.ID], now)
		needs = append(needs, need)

		if need.Required {
			if need.Priority == models.PriorityHigh {
				status = models.FreshnessStatusCritical
			} else if status != models.FreshnessStatusCritical {
				status = models.FreshnessStatusStale
			}
		}
	}

	return needs, status
}

// TasksFromNeeds derives scraping tasks from the required needs, ordered for
// execution: HIGH before MEDIUM before LOW, ties broken by entity ID so the
// ordering is total and deterministic.
func TasksFromNeeds(needs []models.ScrapingNeed, entities []*models.TrackedEntity) []models.ScrapingTask {
	byID := make(map[string]*models.TrackedEntity, len(entities))
	for _, entity := range entities {
		byID[entity.ID] = entity
	}

	tasks := make([]models.ScrapingTask, 0, len(needs))
	for _, need := range needs {
		if !need.Required {
			continue
		}
		entity, ok := byID[need.EntityID]
		if !ok {
			continue
		}
		tasks = append(tasks, models.ScrapingTask{
			EntityID: entity.ID,
			Kind:     entity.Kind,
			URL:      entity.URL,
			Priority: need.Priority,
		})
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Priority.Weight() != tasks[j].Priority.Weight() {
			return tasks[i].Priority.Weight() < tasks[j].Priority.Weight()
		}
		return tasks[i].EntityID < tasks[j].EntityID
	})

	return tasks
}
