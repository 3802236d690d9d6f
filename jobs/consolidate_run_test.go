package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/meridianfin/meridian/internal/consol"
)

type fakeStarter struct {
	calls []consol.Period
	run   consol.ConsolidationRun
	err   error
}

func (f *fakeStarter) StartRun(_ context.Context, groupID string, period consol.Period, opts consol.RunOptions, _ string) (consol.ConsolidationRun, error) {
	f.calls = append(f.calls, period)
	if f.err != nil {
		return consol.ConsolidationRun{}, f.err
	}
	run := f.run
	run.GroupID = groupID
	run.Period = period
	run.Options = opts
	return run, nil
}

func runTask(t *testing.T, payload ConsolidationRunPayload) *asynq.Task {
	t.Helper()
	task, err := NewConsolidationRunTask(payload)
	require.NoError(t, err)
	return task
}

func TestConsolidationRunJobHandle(t *testing.T) {
	starter := &fakeStarter{run: consol.ConsolidationRun{ID: "run-1", Status: consol.RunCompleted}}
	job := NewConsolidationRunJob(starter, nil, nil)

	task := runTask(t, ConsolidationRunPayload{GroupID: "grp-1", Year: 2026, Period: 3})
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, starter.calls, 1)
	require.Equal(t, consol.Period{Year: 2026, Period: 3}, starter.calls[0])
}

func TestConsolidationRunJobConflictIsNoOp(t *testing.T) {
	starter := &fakeStarter{err: &consol.ConflictError{GroupID: "grp-1", Reason: "completed run exists"}}
	job := NewConsolidationRunJob(starter, nil, nil)

	task := runTask(t, ConsolidationRunPayload{GroupID: "grp-1", Year: 2026, Period: 3})
	require.NoError(t, job.Handle(context.Background(), task))
}

func TestConsolidationRunJobInvalidPayloadSkipsRetry(t *testing.T) {
	starter := &fakeStarter{}
	job := NewConsolidationRunJob(starter, nil, nil)

	body, _ := json.Marshal(ConsolidationRunPayload{GroupID: "grp-1", Year: 2026, Period: 99})
	task := asynq.NewTask(TaskConsolidationRun, body)
	err := job.Handle(context.Background(), task)
	require.True(t, errors.Is(err, asynq.SkipRetry))
	require.Empty(t, starter.calls)
}

func TestConsolidationRunJobPropagatesStartErrors(t *testing.T) {
	boom := errors.New("store down")
	starter := &fakeStarter{err: boom}
	job := NewConsolidationRunJob(starter, nil, nil)

	task := runTask(t, ConsolidationRunPayload{GroupID: "grp-1", Year: 2026, Period: 3})
	require.ErrorIs(t, job.Handle(context.Background(), task), boom)
}
