package models

import (
	"time"
)

// Priority is the urgency ranking determining execution order, derived from
// staleness severity. Ordering HIGH > MEDIUM > LOW is total; ties are broken
// deterministically by entity ID.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Weight returns the sort weight of the priority (lower runs first)
func (p Priority) Weight() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// ScrapingNeed is the transient result of a freshness evaluation for one
// entity. Computed on each invocation, never persisted.
type ScrapingNeed struct {
	EntityID string   `json:"entity_id"`
	Required bool     `json:"required"`
	Reason   string   `json:"reason"`
	Priority Priority `json:"priority"`
	AgeDays  float64  `json:"age_days"`
}

// ScrapingTask is a unit of collection work derived 1:1 from a ScrapingNeed
// with Required=true. Consumed and discarded after the run.
type ScrapingTask struct {
	EntityID string     `json:"entity_id"`
	Kind     EntityKind `json:"kind"`
	URL      string     `json:"url"`
	Priority Priority   `json:"priority"`
}

// ExecutionResult records the outcome of a single scraping task attempt.
// One result per task, in execution order.
type ExecutionResult struct {
	Task     ScrapingTask  `json:"task"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
	Snapshot *Snapshot     `json:"snapshot,omitempty"`
	Duration time.Duration `json:"duration"`
}

// FreshnessStatus summarizes a project's overall freshness
type FreshnessStatus string

const (
	FreshnessStatusFresh    FreshnessStatus = "fresh"    // No entity needs collection
	FreshnessStatusStale    FreshnessStatus = "stale"    // At least one entity needs collection
	FreshnessStatusCritical FreshnessStatus = "critical" // At least one entity is high priority
)
