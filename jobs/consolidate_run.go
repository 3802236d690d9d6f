package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridianfin/meridian/internal/consol"
	jobmetrics "github.com/meridianfin/meridian/internal/jobs"
)

// ConsolidationRunPayload configures a scheduled or ad-hoc consolidation run.
type ConsolidationRunPayload struct {
	GroupID           string `json:"group_id"`
	Year              int    `json:"year"`
	Period            int    `json:"period"`
	ForceRegeneration bool   `json:"force_regeneration"`
}

// RunStarter is the slice of the orchestrator the job needs.
type RunStarter interface {
	StartRun(ctx context.Context, groupID string, period consol.Period, opts consol.RunOptions, initiatedBy string) (consol.ConsolidationRun, error)
}

// ConsolidationRunJob executes consolidation runs off the queue.
type ConsolidationRunJob struct {
	Starter RunStarter
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewConsolidationRunJob constructs the job handler.
func NewConsolidationRunJob(starter RunStarter, logger *slog.Logger, metrics *jobmetrics.Metrics) *ConsolidationRunJob {
	return &ConsolidationRunJob{
		Starter: starter,
		Logger:  logger,
		Metrics: metrics,
	}
}

// NewConsolidationRunTask creates an Asynq task for a consolidation run.
func NewConsolidationRunTask(payload ConsolidationRunPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskConsolidationRun, body, asynq.Queue(QueueDefault)), nil
}

// Handle executes one consolidation run. A conflicting concurrent run or a
// prior completed run is a no-op, not a retryable failure.
func (j *ConsolidationRunJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Starter == nil {
		return errors.New("consolidation run: dependencies not configured")
	}
	var payload ConsolidationRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	period := consol.Period{Year: payload.Year, Period: payload.Period}
	if err := period.Validate(); err != nil {
		j.log().Error("invalid period in payload", slog.Any("error", err))
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskConsolidationRun)
	run, err := j.Starter.StartRun(ctx, payload.GroupID, period, consol.RunOptions{
		ForceRegeneration: payload.ForceRegeneration,
	}, "scheduler")
	if err != nil {
		var conflict *consol.ConflictError
		if errors.As(err, &conflict) {
			j.log().Info("run skipped",
				slog.String("group_id", payload.GroupID),
				slog.String("period", period.Key()),
				slog.String("reason", conflict.Reason))
			return tracker.End(nil)
		}
		j.log().Error("start run",
			slog.String("group_id", payload.GroupID),
			slog.String("period", period.Key()),
			slog.Any("error", err))
		return tracker.End(err)
	}

	for _, step := range run.Steps {
		j.metrics().ObserveStep(string(step.Type), string(step.Status))
	}
	j.log().Info("run finished",
		slog.String("run_id", run.ID),
		slog.String("group_id", run.GroupID),
		slog.String("period", run.Period.Key()),
		slog.String("status", string(run.Status)),
		slog.Duration("duration", run.Duration))
	if run.Status == consol.RunFailed {
		// Surface the failure on the queue without retrying: the run record
		// already captures the failing step.
		return tracker.End(asynq.SkipRetry)
	}
	return tracker.End(nil)
}

func (j *ConsolidationRunJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

func (j *ConsolidationRunJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskConsolidationRun))
	}
	return slog.Default().With(slog.String("job", TaskConsolidationRun))
}
