package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// SnapshotStorage implements the SnapshotStorage interface for Badger.
// Snapshots are append-only; existing records are never mutated.
type SnapshotStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSnapshotStorage creates a new SnapshotStorage instance
func NewSnapshotStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SnapshotStorage {
	return &SnapshotStorage{
		db:     db,
		logger: logger,
	}
}

func (s *SnapshotStorage) SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}
	// Insert, not Upsert: snapshots are append-only
	if err := s.db.Store().Insert(snapshot.ID, snapshot); err != nil {
		if err == badgerhold.ErrKeyExists {
			return fmt.Errorf("snapshot %s already exists, snapshots are immutable", snapshot.ID)
		}
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	s.logger.Debug().
		Str("snapshot_id", snapshot.ID).
		Str("entity_id", snapshot.EntityID).
		Int64("size_bytes", snapshot.SizeBytes).
		Msg("Snapshot saved")
	return nil
}

// GetLatestSnapshot returns the snapshot with the maximum captured time for
// the entity, or nil when none exists.
func (s *SnapshotStorage) GetLatestSnapshot(ctx context.Context, entityID string) (*models.Snapshot, error) {
	var snapshots []models.Snapshot
	query := badgerhold.Where("EntityID").Eq(entityID).SortBy("CapturedAt").Reverse().Limit(1)
	if err := s.db.Store().Find(&snapshots, query); err != nil {
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}
	if len(snapshots) == 0 {
		return nil, nil
	}
	return &snapshots[0], nil
}

func (s *SnapshotStorage) ListSnapshots(ctx context.Context, entityID string, limit int) ([]*models.Snapshot, error) {
	query := badgerhold.Where("EntityID").Eq(entityID).SortBy("CapturedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}
	var snapshots []models.Snapshot
	if err := s.db.Store().Find(&snapshots, query); err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	result := make([]*models.Snapshot, len(snapshots))
	for i := range snapshots {
		result[i] = &snapshots[i]
	}
	return result, nil
}

func (s *SnapshotStorage) DeleteSnapshotsByEntity(ctx context.Context, entityID string) error {
	query := badgerhold.Where("EntityID").Eq(entityID)
	if err := s.db.Store().DeleteMatching(&models.Snapshot{}, query); err != nil {
		return fmt.Errorf("failed to delete snapshots for entity %s: %w", entityID, err)
	}
	return nil
}
