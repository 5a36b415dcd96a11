package models

import (
	"errors"
	"time"
)

// Snapshot is a captured, timestamped copy of a tracked entity's observable
// content. Snapshots are append-only; the latest snapshot per entity is the
// one with the maximum CapturedAt.
type Snapshot struct {
	ID          string    `json:"id"`
	EntityID    string    `json:"entity_id"`
	Content     string    `json:"content"`
	ContentType string    `json:"content_type"`
	Title       string    `json:"title,omitempty"`
	StatusCode  int       `json:"status_code"`
	SizeBytes   int64     `json:"size_bytes"`
	CapturedAt  time.Time `json:"captured_at"`
}

// Validate validates the snapshot
func (s *Snapshot) Validate() error {
	if s.ID == "" {
		return errors.New("snapshot ID is required")
	}
	if s.EntityID == "" {
		return errors.New("snapshot entity ID is required")
	}
	if s.CapturedAt.IsZero() {
		return errors.New("snapshot captured time is required")
	}
	return nil
}

// AgeDays returns the snapshot age in days relative to now
func (s *Snapshot) AgeDays(now time.Time) float64 {
	return now.Sub(s.CapturedAt).Hours() / 24
}
