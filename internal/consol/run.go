package consol

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus captures the lifecycle of a consolidation run.
type RunStatus string

const (
	RunPending    RunStatus = "PENDING"
	RunInProgress RunStatus = "IN_PROGRESS"
	RunCompleted  RunStatus = "COMPLETED"
	RunFailed     RunStatus = "FAILED"
	RunCancelled  RunStatus = "CANCELLED"
)

// Terminal reports whether the status admits no further transitions.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunCancelled
}

// StepType names the seven fixed pipeline stages.
type StepType string

const (
	StepValidate   StepType = "VALIDATE"
	StepTranslate  StepType = "TRANSLATE"
	StepAggregate  StepType = "AGGREGATE"
	StepMatchIC    StepType = "MATCH_IC"
	StepEliminate  StepType = "ELIMINATE"
	StepNCI        StepType = "NCI"
	StepGenerateTB StepType = "GENERATE_TB"
)

// StepOrder is the fixed pipeline order. Step numbers are 1-based.
var StepOrder = []StepType{
	StepValidate,
	StepTranslate,
	StepAggregate,
	StepMatchIC,
	StepEliminate,
	StepNCI,
	StepGenerateTB,
}

// StepStatus captures one step's sub-state.
type StepStatus string

const (
	StepPending    StepStatus = "PENDING"
	StepInProgress StepStatus = "IN_PROGRESS"
	StepCompleted  StepStatus = "COMPLETED"
	StepFailed     StepStatus = "FAILED"
	StepSkipped    StepStatus = "SKIPPED"
)

// ConsolidationStep records one pipeline stage's execution.
type ConsolidationStep struct {
	Type        StepType      `json:"type"`
	Order       int           `json:"order"`
	Status      StepStatus    `json:"status"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
	Details     string        `json:"details,omitempty"`
}

// RunOptions tune a single consolidation run.
type RunOptions struct {
	SkipValidation           bool `json:"skip_validation"`
	ContinueOnWarnings       bool `json:"continue_on_warnings"`
	IncludeEquityInvestments bool `json:"include_equity_method_investments"`
	ForceRegeneration        bool `json:"force_regeneration"`
}

// ConsolidationRun is one execution attempt for a group and period. Once
// completed it is immutable; forceRegeneration starts a fresh run record
// rather than mutating history.
type ConsolidationRun struct {
	ID           string                    `json:"id"`
	GroupID      string                    `json:"group_id"`
	Period       Period                    `json:"period"`
	AsOf         time.Time                 `json:"as_of"`
	Status       RunStatus                 `json:"status"`
	Steps        []ConsolidationStep       `json:"steps"`
	Validation   *ValidationResult         `json:"validation,omitempty"`
	TrialBalance *ConsolidatedTrialBalance `json:"trial_balance,omitempty"`
	JournalIDs   []string                  `json:"journal_ids,omitempty"`
	Options      RunOptions                `json:"options"`
	InitiatedBy  string                    `json:"initiated_by"`
	InitiatedAt  time.Time                 `json:"initiated_at"`
	StartedAt    *time.Time                `json:"started_at,omitempty"`
	CompletedAt  *time.Time                `json:"completed_at,omitempty"`
	Duration     time.Duration             `json:"duration"`
	ErrorMessage string                    `json:"error_message,omitempty"`
}

// NewRun builds a pending run with all seven steps pending.
func NewRun(groupID string, period Period, asOf time.Time, opts RunOptions, initiatedBy string, now time.Time) ConsolidationRun {
	steps := make([]ConsolidationStep, len(StepOrder))
	for i, st := range StepOrder {
		steps[i] = ConsolidationStep{Type: st, Order: i + 1, Status: StepPending}
	}
	return ConsolidationRun{
		ID:          uuid.NewString(),
		GroupID:     groupID,
		Period:      period,
		AsOf:        asOf,
		Status:      RunPending,
		Steps:       steps,
		Options:     opts,
		InitiatedBy: initiatedBy,
		InitiatedAt: now,
	}
}

// Step returns a pointer to the step record of the given type.
func (r *ConsolidationRun) Step(t StepType) *ConsolidationStep {
	for i := range r.Steps {
		if r.Steps[i].Type == t {
			return &r.Steps[i]
		}
	}
	return nil
}

// Transition moves the run to a new status, enforcing the state machine:
// Pending -> InProgress -> {Completed, Failed, Cancelled}; Cancelled is also
// reachable straight from Pending. Terminal states admit nothing.
func (r *ConsolidationRun) Transition(to RunStatus, now time.Time) error {
	if r.Status == to {
		return nil
	}
	allowed := false
	switch r.Status {
	case RunPending:
		allowed = to == RunInProgress || to == RunCancelled
	case RunInProgress:
		allowed = to == RunCompleted || to == RunFailed || to == RunCancelled
	}
	if !allowed {
		return fmt.Errorf("consol: invalid run transition %s -> %s", r.Status, to)
	}
	r.Status = to
	switch to {
	case RunInProgress:
		t := now
		r.StartedAt = &t
	case RunCompleted, RunFailed, RunCancelled:
		t := now
		r.CompletedAt = &t
		if r.StartedAt != nil {
			r.Duration = now.Sub(*r.StartedAt)
		}
	}
	return nil
}

// beginStep marks a step in progress after verifying every earlier step is
// completed or skipped.
func (r *ConsolidationRun) beginStep(t StepType, now time.Time) (*ConsolidationStep, error) {
	step := r.Step(t)
	if step == nil {
		return nil, fmt.Errorf("consol: unknown step %s", t)
	}
	for i := range r.Steps {
		if r.Steps[i].Order >= step.Order {
			break
		}
		if r.Steps[i].Status != StepCompleted && r.Steps[i].Status != StepSkipped {
			return nil, fmt.Errorf("consol: step %s cannot start before %s finishes", t, r.Steps[i].Type)
		}
	}
	step.Status = StepInProgress
	started := now
	step.StartedAt = &started
	return step, nil
}

func (s *ConsolidationStep) finish(status StepStatus, now time.Time) {
	s.Status = status
	completed := now
	s.CompletedAt = &completed
	if s.StartedAt != nil {
		s.Duration = now.Sub(*s.StartedAt)
	}
}
