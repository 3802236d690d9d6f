package consol

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrGroupNotFound indicates the consolidation group is missing.
var ErrGroupNotFound = errors.New("consol: group not found")

// ErrRunNotFound indicates the run id does not exist.
var ErrRunNotFound = errors.New("consol: run not found")

// ErrGroupInactive indicates the group no longer accepts runs.
var ErrGroupInactive = errors.New("consol: group is inactive")

// ErrRunNotCancellable indicates the run already reached a terminal state.
var ErrRunNotCancellable = errors.New("consol: run is not cancellable")

// ConflictError signals that another run already occupies the (group, period)
// slot, or that a completed run exists and forceRegeneration was not set.
type ConflictError struct {
	GroupID string
	Period  Period
	Reason  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("consol: run conflict for group %s period %s: %s", e.GroupID, e.Period, e.Reason)
}

// ConfigurationError reports malformed group, member, or rule data detected
// during validation.
type ConfigurationError struct {
	Subject string
	Detail  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("consol: configuration error on %s: %s", e.Subject, e.Detail)
}

// TrialBalanceImbalanceError is fatal to the run: the consolidated trial
// balance did not balance after eliminations and NCI allocation. It is never
// auto-corrected with a balancing entry.
type TrialBalanceImbalanceError struct {
	Discrepancy decimal.Decimal
	Currency    string
}

func (e *TrialBalanceImbalanceError) Error() string {
	return fmt.Sprintf("consol: trial balance out of balance by %s %s", e.Discrepancy, e.Currency)
}

// UnknownAccountError reports a selector referencing an account that is not
// in the catalog snapshot. At rule-matching level it degrades to a warning.
type UnknownAccountError struct {
	AccountID string
}

func (e *UnknownAccountError) Error() string {
	return fmt.Sprintf("consol: unknown account %q", e.AccountID)
}

// DataCorruptionError reports stored structured data that fails to decode.
// Financial audit data is never silently substituted with defaults.
type DataCorruptionError struct {
	Field string
	Cause error
}

func (e *DataCorruptionError) Error() string {
	return fmt.Sprintf("consol: corrupt stored data in %s: %v", e.Field, e.Cause)
}

func (e *DataCorruptionError) Unwrap() error { return e.Cause }
