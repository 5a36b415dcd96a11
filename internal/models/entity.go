package models

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// EntityKind distinguishes the tracked product from its competitors
type EntityKind string

const (
	EntityKindProduct    EntityKind = "product"
	EntityKindCompetitor EntityKind = "competitor"
)

// IsValidEntityKind checks if a given EntityKind is one of the valid constants
func IsValidEntityKind(kind EntityKind) bool {
	switch kind {
	case EntityKindProduct, EntityKindCompetitor:
		return true
	default:
		return false
	}
}

// Project groups one tracked product with its competitors
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate validates the project
func (p *Project) Validate() error {
	if p.ID == "" {
		return errors.New("project ID is required")
	}
	if p.Name == "" {
		return errors.New("project name is required")
	}
	return nil
}

// TrackedEntity is an externally observed entity whose public page is
// captured as snapshots. Immutable after creation except for deletion
// cascading from the project.
type TrackedEntity struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"project_id"`
	Kind      EntityKind `json:"kind"`
	Name      string     `json:"name"`
	URL       string     `json:"url"`
	CreatedAt time.Time  `json:"created_at"`
}

// Validate validates the tracked entity
func (e *TrackedEntity) Validate() error {
	if e.ID == "" {
		return errors.New("entity ID is required")
	}
	if e.ProjectID == "" {
		return errors.New("entity project ID is required")
	}
	if !IsValidEntityKind(e.Kind) {
		return fmt.Errorf("invalid entity kind: %s (must be one of: product, competitor)", e.Kind)
	}
	if e.URL == "" {
		return errors.New("entity URL is required")
	}
	parsed, err := url.Parse(e.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid entity URL: %s", e.URL)
	}
	return nil
}
