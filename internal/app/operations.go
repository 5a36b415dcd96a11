package app

// Operation names the closed set of application entry points. Used for
// logging and error reporting instead of ad hoc strings.
type Operation string

const (
	OpEvaluateFreshness  Operation = "freshness.evaluate"
	OpRunPipeline        Operation = "pipeline.run"
	OpCreateSchedule     Operation = "schedule.create"
	OpStartSchedule      Operation = "schedule.start"
	OpStopSchedule       Operation = "schedule.stop"
	OpRemoveSchedule     Operation = "schedule.remove"
	OpExecuteScheduleNow Operation = "schedule.execute_now"
	OpGenerateReport     Operation = "report.generate"
)

func (o Operation) String() string {
	return string(o)
}
