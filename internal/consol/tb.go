package consol

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrialBalanceLine is one consolidated account line. Amounts are presented
// in the account's natural sign: a debit-normal account with a debit balance
// shows positive, as does a credit-normal account with a credit balance.
type TrialBalanceLine struct {
	AccountNumber       string           `json:"account_number"`
	AccountName         string           `json:"account_name"`
	AccountType         string           `json:"account_type"`
	Category            string           `json:"category"`
	AggregatedBalance   decimal.Decimal  `json:"aggregated_balance"`
	EliminationAmount   decimal.Decimal  `json:"elimination_amount"`
	NCIAmount           *decimal.Decimal `json:"nci_amount,omitempty"`
	ConsolidatedBalance decimal.Decimal  `json:"consolidated_balance"`
}

// TrialBalanceTotals summarises the consolidated trial balance.
type TrialBalanceTotals struct {
	TotalDebits       decimal.Decimal `json:"total_debits"`
	TotalCredits      decimal.Decimal `json:"total_credits"`
	TotalEliminations decimal.Decimal `json:"total_eliminations"`
	TotalNCI          decimal.Decimal `json:"total_nci"`
}

// ConsolidatedTrialBalance is the product of a completed run. Total debits
// equal total credits within one minor unit of the reporting currency.
type ConsolidatedTrialBalance struct {
	RunID       string             `json:"run_id"`
	GroupID     string             `json:"group_id"`
	Period      Period             `json:"period"`
	AsOf        time.Time          `json:"as_of"`
	Currency    string             `json:"currency"`
	Lines       []TrialBalanceLine `json:"lines"`
	Totals      TrialBalanceTotals `json:"totals"`
	GeneratedAt time.Time          `json:"generated_at"`
}
