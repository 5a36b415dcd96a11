package common

import (
	"github.com/google/uuid"
)

// NewProjectID generates a unique project ID with the "proj_" prefix
func NewProjectID() string {
	return "proj_" + uuid.New().String()
}

// NewEntityID generates a unique tracked entity ID with the "ent_" prefix
func NewEntityID() string {
	return "ent_" + uuid.New().String()
}

// NewSnapshotID generates a unique snapshot ID with the "snap_" prefix
func NewSnapshotID() string {
	return "snap_" + uuid.New().String()
}

// NewScheduleID generates a unique schedule ID with the "sched_" prefix
func NewScheduleID() string {
	return "sched_" + uuid.New().String()
}

// NewExecutionID generates a unique schedule execution ID with the "exec_" prefix
func NewExecutionID() string {
	return "exec_" + uuid.New().String()
}

// NewAnalysisID generates a unique analysis ID with the "analysis_" prefix
func NewAnalysisID() string {
	return "analysis_" + uuid.New().String()
}

// NewReportID generates a unique report ID with the "report_" prefix
func NewReportID() string {
	return "report_" + uuid.New().String()
}

// NewCorrelationID generates an opaque correlation ID used to link all logs
// and results belonging to one run.
func NewCorrelationID() string {
	return uuid.New().String()
}
