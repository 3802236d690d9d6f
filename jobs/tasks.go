package jobs

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskConsolidationRun triggers a consolidation run for a group and period.
	TaskConsolidationRun = "consol:run"
)
