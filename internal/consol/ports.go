package consol

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// GroupCatalogProvider supplies group configuration and account catalogs.
// Implementations live outside the core (a SQL-backed store in production).
type GroupCatalogProvider interface {
	GetGroup(ctx context.Context, id string) (ConsolidationGroup, error)
	GetActiveRules(ctx context.Context, groupID string) ([]EliminationRule, error)
	GetAccountCatalog(ctx context.Context, companyID string) (*AccountCatalog, error)
}

// BalanceProvider supplies member trial balances for a period.
type BalanceProvider interface {
	GetMemberTrialBalance(ctx context.Context, companyID string, period Period) ([]AccountBalance, error)
}

// TranslationBasis selects the rate family an account translates with:
// closing rates for balance sheet positions, period averages for profit
// and loss flows.
type TranslationBasis string

const (
	BasisClosing TranslationBasis = "CLOSING"
	BasisAverage TranslationBasis = "AVERAGE"
)

// CurrencyTranslationService converts amounts between currencies as of a
// date. Rate lookup is external to the core; the caller names the basis.
type CurrencyTranslationService interface {
	Translate(ctx context.Context, amount decimal.Decimal, from, to string, basis TranslationBasis, asOf time.Time) (decimal.Decimal, error)
}

// RunHandle represents the slot claimed for an in-progress run. Releasing a
// handle without completing frees the (group, period) key.
type RunHandle interface {
	Release(ctx context.Context) error
}

// RunStore persists consolidation runs. TryBeginRun must be atomic: it
// either claims the (group, period) slot or returns ConflictError when a
// pending or in-progress run already holds it. HasCompletedRun backs the
// idempotence guard for forceRegeneration.
type RunStore interface {
	TryBeginRun(ctx context.Context, groupID string, period Period) (RunHandle, error)
	HasCompletedRun(ctx context.Context, groupID string, period Period) (bool, error)
	Save(ctx context.Context, run ConsolidationRun) error
	Load(ctx context.Context, runID string) (ConsolidationRun, error)
	ListRuns(ctx context.Context, groupID string) ([]ConsolidationRun, error)
}

// AuditSink is notified once per terminal run with the final snapshot.
// Fire-and-forget: audit failure never fails the run.
type AuditSink interface {
	RunFinished(ctx context.Context, run ConsolidationRun)
}
