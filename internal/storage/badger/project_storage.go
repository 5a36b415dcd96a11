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

// ProjectStorage implements the ProjectStorage interface for Badger
type ProjectStorage struct {
	db       *BadgerDB
	snapshot interfaces.SnapshotStorage
	logger   arbor.ILogger
}

// NewProjectStorage creates a new ProjectStorage instance. The snapshot
// storage is used to cascade snapshot deletion when entities are removed.
func NewProjectStorage(db *BadgerDB, snapshot interfaces.SnapshotStorage, logger arbor.ILogger) interfaces.ProjectStorage {
	return &ProjectStorage{
		db:       db,
		snapshot: snapshot,
		logger:   logger,
	}
}

func (s *ProjectStorage) SaveProject(ctx context.Context, project *models.Project) error {
	if err := project.Validate(); err != nil {
		return fmt.Errorf("invalid project: %w", err)
	}
	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now()
	}
	if err := s.db.Store().Upsert(project.ID, project); err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

func (s *ProjectStorage) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var project models.Project
	if err := s.db.Store().Get(id, &project); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.NewPipelineError(models.ErrProjectNotFound, "get_project", "", fmt.Sprintf("project not found: %s", id))
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &project, nil
}

func (s *ProjectStorage) ListProjects(ctx context.Context) ([]*models.Project, error) {
	var projects []models.Project
	query := badgerhold.Where("ID").Ne("").SortBy("CreatedAt").Reverse()
	if err := s.db.Store().Find(&projects, query); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	result := make([]*models.Project, len(projects))
	for i := range projects {
		result[i] = &projects[i]
	}
	return result, nil
}

// DeleteProject removes a project and cascades to its tracked entities and
// their snapshots.
func (s *ProjectStorage) DeleteProject(ctx context.Context, id string) error {
	entities, err := s.ListEntities(ctx, id)
	if err != nil {
		return err
	}
	for _, entity := range entities {
		if err := s.DeleteEntity(ctx, entity.ID); err != nil {
			return err
		}
	}

	if err := s.db.Store().Delete(id, &models.Project{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	s.logger.Info().Str("project_id", id).Int("entities", len(entities)).Msg("Project deleted")
	return nil
}

func (s *ProjectStorage) SaveEntity(ctx context.Context, entity *models.TrackedEntity) error {
	if err := entity.Validate(); err != nil {
		return fmt.Errorf("invalid entity: %w", err)
	}
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = time.Now()
	}
	if err := s.db.Store().Upsert(entity.ID, entity); err != nil {
		return fmt.Errorf("failed to save entity: %w", err)
	}
	return nil
}

func (s *ProjectStorage) GetEntity(ctx context.Context, id string) (*models.TrackedEntity, error) {
	var entity models.TrackedEntity
	if err := s.db.Store().Get(id, &entity); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.NewPipelineError(models.ErrNotFound, "get_entity", "", fmt.Sprintf("entity not found: %s", id))
		}
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return &entity, nil
}

func (s *ProjectStorage) ListEntities(ctx context.Context, projectID string) ([]*models.TrackedEntity, error) {
	var entities []models.TrackedEntity
	query := badgerhold.Where("ProjectID").Eq(projectID).SortBy("CreatedAt")
	if err := s.db.Store().Find(&entities, query); err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	result := make([]*models.TrackedEntity, len(entities))
	for i := range entities {
		result[i] = &entities[i]
	}
	return result, nil
}

// GetProduct returns the single tracked product of a project
func (s *ProjectStorage) GetProduct(ctx context.Context, projectID string) (*models.TrackedEntity, error) {
	var entities []models.TrackedEntity
	query := badgerhold.Where("ProjectID").Eq(projectID).And("Kind").Eq(models.EntityKindProduct)
	if err := s.db.Store().Find(&entities, query); err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	if len(entities) == 0 {
		return nil, models.NewPipelineError(models.ErrNoProductAssigned, "get_product", "", fmt.Sprintf("project %s has no tracked product", projectID))
	}
	if len(entities) > 1 {
		return nil, models.NewPipelineError(models.ErrValidation, "get_product", "", fmt.Sprintf("project %s has %d tracked products, expected exactly one", projectID, len(entities)))
	}
	return &entities[0], nil
}

// ListCompetitors returns the competitors of a project
func (s *ProjectStorage) ListCompetitors(ctx context.Context, projectID string) ([]*models.TrackedEntity, error) {
	var entities []models.TrackedEntity
	query := badgerhold.Where("ProjectID").Eq(projectID).And("Kind").Eq(models.EntityKindCompetitor).SortBy("CreatedAt")
	if err := s.db.Store().Find(&entities, query); err != nil {
		return nil, fmt.Errorf("failed to list competitors: %w", err)
	}
	result := make([]*models.TrackedEntity, len(entities))
	for i := range entities {
		result[i] = &entities[i]
	}
	return result, nil
}

// DeleteEntity removes a tracked entity and cascades to its snapshots
func (s *ProjectStorage) DeleteEntity(ctx context.Context, id string) error {
	if s.snapshot != nil {
		if err := s.snapshot.DeleteSnapshotsByEntity(ctx, id); err != nil {
			return err
		}
	}
	if err := s.db.Store().Delete(id, &models.TrackedEntity{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	return nil
}
