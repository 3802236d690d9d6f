package consol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Orchestrator drives consolidation runs through the fixed seven-step
// pipeline, recording per-step status, timing, and errors.
type Orchestrator struct {
	groups     GroupCatalogProvider
	balances   BalanceProvider
	translator CurrencyTranslationService
	store      RunStore
	audit      AuditSink
	aggregator *Aggregator
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	cancels map[string]*atomic.Bool
}

// OrchestratorConfig wires the collaborators the orchestrator needs.
type OrchestratorConfig struct {
	Groups     GroupCatalogProvider
	Balances   BalanceProvider
	Translator CurrencyTranslationService
	Store      RunStore
	Audit      AuditSink
	Logger     *slog.Logger
}

// NewOrchestrator constructs the run orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		groups:     cfg.Groups,
		balances:   cfg.Balances,
		translator: cfg.Translator,
		store:      cfg.Store,
		audit:      cfg.Audit,
		aggregator: NewAggregator(cfg.Translator),
		logger:     cfg.Logger,
		now: func() time.Time {
			return time.Now().UTC()
		},
		cancels: make(map[string]*atomic.Bool),
	}
}

// WithClock overrides the clock for deterministic tests.
func (o *Orchestrator) WithClock(clock func() time.Time) {
	if clock != nil {
		o.now = clock
	}
}

// pipelineState carries intermediate artifacts between steps. It lives for
// one run only; nothing in it outlasts the run record.
type pipelineState struct {
	snap         *runSnapshot
	consolidated []ConsolidationMember
	agg          *aggregation
	pairs        map[string]decimal.Decimal
	match        MatchResult
}

// StartRun creates a run for the group and period and executes the pipeline
// to completion. A step failure is reported on the returned run record, not
// as an error; errors are reserved for refusals (conflicts, unknown group)
// and infrastructure faults that prevent a run record from existing.
func (o *Orchestrator) StartRun(ctx context.Context, groupID string, period Period, opts RunOptions, initiatedBy string) (ConsolidationRun, error) {
	if o == nil || o.store == nil {
		return ConsolidationRun{}, errors.New("consol: orchestrator not initialised")
	}
	if groupID == "" {
		return ConsolidationRun{}, errors.New("consol: group id is required")
	}
	if err := period.Validate(); err != nil {
		return ConsolidationRun{}, err
	}

	group, err := o.groups.GetGroup(ctx, groupID)
	if err != nil {
		return ConsolidationRun{}, err
	}
	if !group.IsActive {
		return ConsolidationRun{}, ErrGroupInactive
	}

	// Idempotence guard: a completed run for the period blocks re-running
	// unless the caller explicitly supersedes it.
	if !opts.ForceRegeneration {
		done, err := o.store.HasCompletedRun(ctx, groupID, period)
		if err != nil {
			return ConsolidationRun{}, err
		}
		if done {
			return ConsolidationRun{}, &ConflictError{GroupID: groupID, Period: period, Reason: "completed run exists; set force_regeneration to supersede"}
		}
	}

	handle, err := o.store.TryBeginRun(ctx, groupID, period)
	if err != nil {
		return ConsolidationRun{}, err
	}

	run := NewRun(groupID, period, o.now(), opts, initiatedBy, o.now())
	if err := o.store.Save(ctx, run); err != nil {
		_ = handle.Release(ctx)
		return ConsolidationRun{}, err
	}

	flag := &atomic.Bool{}
	o.mu.Lock()
	o.cancels[run.ID] = flag
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.cancels, run.ID)
		o.mu.Unlock()
	}()

	run = o.execute(ctx, run, flag)

	if err := o.store.Save(ctx, run); err != nil {
		_ = handle.Release(ctx)
		return run, err
	}
	if err := handle.Release(ctx); err != nil {
		o.log().Warn("release run handle", slog.String("run_id", run.ID), slog.Any("error", err))
	}
	o.notifyAudit(ctx, run)
	return run, nil
}

// execute drives the seven steps in order. Cancellation is cooperative:
// the flag is consulted between steps, never mid-step, so the last
// completed step's output remains the permanent record.
func (o *Orchestrator) execute(ctx context.Context, run ConsolidationRun, cancelled *atomic.Bool) ConsolidationRun {
	if err := run.Transition(RunInProgress, o.now()); err != nil {
		run.ErrorMessage = err.Error()
		return run
	}
	o.saveProgress(ctx, run)

	state := &pipelineState{pairs: make(map[string]decimal.Decimal)}
	for _, stepType := range StepOrder {
		if cancelled.Load() || ctx.Err() != nil {
			_ = run.Transition(RunCancelled, o.now())
			o.log().Info("run cancelled",
				slog.String("run_id", run.ID),
				slog.String("group_id", run.GroupID),
				slog.String("period", run.Period.Key()))
			return run
		}

		step, err := run.beginStep(stepType, o.now())
		if err != nil {
			run.ErrorMessage = err.Error()
			_ = run.Transition(RunFailed, o.now())
			return run
		}

		status, err := o.runStep(ctx, &run, state, stepType, step)
		if err != nil {
			step.Error = err.Error()
			step.finish(StepFailed, o.now())
			run.ErrorMessage = fmt.Sprintf("step %s: %v", stepType, err)
			_ = run.Transition(RunFailed, o.now())
			o.log().Error("step failed",
				slog.String("run_id", run.ID),
				slog.String("step", string(stepType)),
				slog.Any("error", err))
			return run
		}
		step.finish(status, o.now())
		o.saveProgress(ctx, run)
	}

	_ = run.Transition(RunCompleted, o.now())
	o.log().Info("run completed",
		slog.String("run_id", run.ID),
		slog.String("group_id", run.GroupID),
		slog.String("period", run.Period.Key()),
		slog.Duration("duration", run.Duration))
	return run
}

// saveProgress persists an intermediate run state. The final save in
// StartRun is the authoritative one; a failure here only loses per-step
// progress visibility, so it is logged rather than aborting the run.
func (o *Orchestrator) saveProgress(ctx context.Context, run ConsolidationRun) {
	if err := o.store.Save(ctx, run); err != nil {
		o.log().Warn("save run progress", slog.String("run_id", run.ID), slog.Any("error", err))
	}
}

func (o *Orchestrator) runStep(ctx context.Context, run *ConsolidationRun, state *pipelineState, stepType StepType, step *ConsolidationStep) (StepStatus, error) {
	switch stepType {
	case StepValidate:
		return o.stepValidate(ctx, run, state, step)
	case StepTranslate:
		return o.stepTranslate(ctx, run, state)
	case StepAggregate:
		return o.stepAggregate(run, state, step)
	case StepMatchIC:
		return o.stepMatchIC(state, step)
	case StepEliminate:
		return o.stepEliminate(run, state, step)
	case StepNCI:
		return o.stepNCI(state, step)
	case StepGenerateTB:
		return o.stepGenerateTB(run, state)
	default:
		return StepFailed, fmt.Errorf("unknown step %s", stepType)
	}
}

// stepValidate takes the run's read snapshot and checks configuration.
// The snapshot is taken here even when validation itself is skipped: later
// steps must see data frozen at this point.
func (o *Orchestrator) stepValidate(ctx context.Context, run *ConsolidationRun, state *pipelineState, step *ConsolidationStep) (StepStatus, error) {
	snap, err := takeSnapshot(ctx, o.groups, o.balances, run.GroupID, run.Period)
	if err != nil {
		return StepFailed, err
	}
	state.snap = snap
	for _, member := range snap.group.Members {
		if member.Consolidated() {
			state.consolidated = append(state.consolidated, member)
		}
	}

	if run.Options.SkipValidation {
		step.Details = "validation skipped by run options"
		return StepSkipped, nil
	}

	result := ValidateGroup(snap.group, snap.rules, snap.catalog)
	run.Validation = &result
	if result.HasErrors() {
		return StepFailed, result.FirstError()
	}
	if result.HasWarnings() && !run.Options.ContinueOnWarnings {
		return StepFailed, &ConfigurationError{
			Subject: "group " + run.GroupID,
			Detail:  fmt.Sprintf("%d validation warnings and continue_on_warnings is not set", len(result.Warnings)),
		}
	}
	step.Details = fmt.Sprintf("%d errors, %d warnings", len(result.Errors), len(result.Warnings))
	return StepCompleted, nil
}

func (o *Orchestrator) stepTranslate(ctx context.Context, run *ConsolidationRun, state *pipelineState) (StepStatus, error) {
	state.agg = newAggregation(state.snap.group.ReportingCurrency, state.snap.catalog)
	if err := o.aggregator.Translate(ctx, state.agg, state.consolidated, state.snap.balances, run.AsOf); err != nil {
		return StepFailed, err
	}
	return StepCompleted, nil
}

func (o *Orchestrator) stepAggregate(run *ConsolidationRun, state *pipelineState, step *ConsolidationStep) (StepStatus, error) {
	o.aggregator.Sum(state.agg)
	if run.Options.IncludeEquityInvestments {
		if err := o.aggregator.ApplyEquityPickup(state.agg, state.snap.group.Members, state.snap.balances); err != nil {
			return StepFailed, err
		}
	}
	step.Details = fmt.Sprintf("%d accounts aggregated across %d members", len(state.agg.aggregated), len(state.consolidated))
	return StepCompleted, nil
}

// stepMatchIC computes the two-sided exposure for paired rules. The amounts
// cap the candidates the Eliminate step produces.
func (o *Orchestrator) stepMatchIC(state *pipelineState, step *ConsolidationStep) (StepStatus, error) {
	balances := state.agg.SignedBalances()
	matched := 0
	for _, rule := range state.snap.rules {
		if !rule.IsActive || !rule.Type.Paired() {
			continue
		}
		amount, err := PairExposure(rule, balances, state.snap.catalog)
		if err != nil {
			// MatchRules skips the same rules with a warning at Eliminate.
			continue
		}
		if amount.IsPositive() {
			state.pairs[rule.ID] = amount
			matched++
		}
	}
	step.Details = fmt.Sprintf("%d intercompany pairs matched", matched)
	return StepCompleted, nil
}

func (o *Orchestrator) stepEliminate(run *ConsolidationRun, state *pipelineState, step *ConsolidationStep) (StepStatus, error) {
	state.match = MatchRules(state.snap.rules, state.agg.SignedBalances(), state.snap.catalog, state.pairs)
	o.aggregator.ApplyEliminations(state.agg, state.match.Candidates)
	for range state.match.Candidates {
		run.JournalIDs = append(run.JournalIDs, uuid.NewString())
	}
	details := fmt.Sprintf("%d eliminations applied", len(state.match.Candidates))
	if n := len(state.match.ManualReview); n > 0 {
		details += fmt.Sprintf(", %d rules held for manual review", n)
	}
	for _, w := range state.match.Warnings {
		details += "; " + w.String()
	}
	step.Details = details
	return StepCompleted, nil
}

func (o *Orchestrator) stepNCI(state *pipelineState, step *ConsolidationStep) (StepStatus, error) {
	needed := false
	for _, member := range state.consolidated {
		if member.RequiresNCI() {
			needed = true
			break
		}
	}
	if !needed {
		step.Details = "no member requires NCI allocation"
		return StepSkipped, nil
	}
	if err := o.aggregator.AllocateNCI(state.agg, state.consolidated); err != nil {
		return StepFailed, err
	}
	step.Details = fmt.Sprintf("NCI allocated across %d accounts", len(state.agg.nci))
	return StepCompleted, nil
}

func (o *Orchestrator) stepGenerateTB(run *ConsolidationRun, state *pipelineState) (StepStatus, error) {
	tb, err := o.aggregator.Finalize(state.agg, run.ID, run.GroupID, run.Period, run.AsOf, o.now())
	if err != nil {
		return StepFailed, err
	}
	run.TrialBalance = tb
	return StepCompleted, nil
}

// CancelRun requests cancellation of a pending or in-progress run. For a
// run executing in this process the flag is honoured at the next step
// boundary; a pending run is cancelled immediately.
func (o *Orchestrator) CancelRun(ctx context.Context, runID string) (ConsolidationRun, error) {
	run, err := o.store.Load(ctx, runID)
	if err != nil {
		return ConsolidationRun{}, err
	}
	if run.Status.Terminal() {
		return run, ErrRunNotCancellable
	}

	o.mu.Lock()
	flag, executing := o.cancels[runID]
	o.mu.Unlock()
	if executing {
		flag.Store(true)
		return run, nil
	}

	if err := run.Transition(RunCancelled, o.now()); err != nil {
		return run, err
	}
	if err := o.store.Save(ctx, run); err != nil {
		return run, err
	}
	o.notifyAudit(ctx, run)
	return run, nil
}

// GetRun loads a run by identifier.
func (o *Orchestrator) GetRun(ctx context.Context, runID string) (ConsolidationRun, error) {
	return o.store.Load(ctx, runID)
}

// ListRuns returns the run history for a group.
func (o *Orchestrator) ListRuns(ctx context.Context, groupID string) ([]ConsolidationRun, error) {
	return o.store.ListRuns(ctx, groupID)
}

// notifyAudit reports a terminal run to the audit sink. Best effort only.
func (o *Orchestrator) notifyAudit(ctx context.Context, run ConsolidationRun) {
	if o.audit == nil || !run.Status.Terminal() {
		return
	}
	o.audit.RunFinished(ctx, run)
}

func (o *Orchestrator) log() *slog.Logger {
	if o != nil && o.logger != nil {
		return o.logger.With(slog.String("component", "consol_orchestrator"))
	}
	return slog.Default().With(slog.String("component", "consol_orchestrator"))
}
