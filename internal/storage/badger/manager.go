package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db       *BadgerDB
	project  interfaces.ProjectStorage
	snapshot interfaces.SnapshotStorage
	schedule interfaces.ScheduleStorage
	report   interfaces.ReportStorage
	logger   arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	snapshot := NewSnapshotStorage(db, logger)
	manager := &Manager{
		db:       db,
		snapshot: snapshot,
		project:  NewProjectStorage(db, snapshot, logger),
		schedule: NewScheduleStorage(db, logger),
		report:   NewReportStorage(db, logger),
		logger:   logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// ProjectStorage returns the Project storage interface
func (m *Manager) ProjectStorage() interfaces.ProjectStorage {
	return m.project
}

// SnapshotStorage returns the Snapshot storage interface
func (m *Manager) SnapshotStorage() interfaces.SnapshotStorage {
	return m.snapshot
}

// ScheduleStorage returns the Schedule storage interface
func (m *Manager) ScheduleStorage() interfaces.ScheduleStorage {
	return m.schedule
}

// ReportStorage returns the Report storage interface
func (m *Manager) ReportStorage() interfaces.ReportStorage {
	return m.report
}

// Close closes the underlying database
func (m *Manager) Close() error {
	return m.db.Close()
}
