package consol

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// EliminationType classifies the intercompany effect a rule removes.
type EliminationType string

const (
	ElimIntercompanyReceivablePayable EliminationType = "IC_RECEIVABLE_PAYABLE"
	ElimIntercompanyRevenueExpense    EliminationType = "IC_REVENUE_EXPENSE"
	ElimIntercompanyDividend          EliminationType = "IC_DIVIDEND"
	ElimIntercompanyInvestment        EliminationType = "IC_INVESTMENT"
	ElimUnrealizedProfitInventory     EliminationType = "UNREALIZED_PROFIT_INVENTORY"
	ElimUnrealizedProfitFixedAssets   EliminationType = "UNREALIZED_PROFIT_FIXED_ASSETS"
)

// Valid reports whether the elimination type is known.
func (t EliminationType) Valid() bool {
	switch t {
	case ElimIntercompanyReceivablePayable, ElimIntercompanyRevenueExpense,
		ElimIntercompanyDividend, ElimIntercompanyInvestment,
		ElimUnrealizedProfitInventory, ElimUnrealizedProfitFixedAssets:
		return true
	default:
		return false
	}
}

// Paired reports whether the type eliminates a two-sided exposure whose
// amount is capped by the smaller leg (the MatchIC step supplies it).
func (t EliminationType) Paired() bool {
	return t == ElimIntercompanyReceivablePayable || t == ElimIntercompanyRevenueExpense
}

// TriggerCondition is one matching criterion of a rule. All of a rule's
// conditions must match for the rule to fire.
type TriggerCondition struct {
	Description   string            `json:"description"`
	Sources       []AccountSelector `json:"-"`
	MinimumAmount *decimal.Decimal  `json:"minimum_amount,omitempty"`
}

// EliminationRule removes one class of intercompany effect for a group.
// Rules are read-only during a run.
type EliminationRule struct {
	ID            string             `json:"id"`
	GroupID       string             `json:"group_id"`
	Name          string             `json:"name"`
	Type          EliminationType    `json:"type"`
	Triggers      []TriggerCondition `json:"triggers"`
	Source        AccountSelector    `json:"-"`
	Target        AccountSelector    `json:"-"`
	DebitAccount  string             `json:"debit_account"`
	CreditAccount string             `json:"credit_account"`
	IsAutomatic   bool               `json:"is_automatic"`
	Priority      int                `json:"priority"`
	IsActive      bool               `json:"is_active"`
}

// EliminationCandidate is one debit/credit pair produced by a fired rule.
// Amounts are positive; the debit side increases the signed balance of the
// debit account and the credit side decreases the credit account's.
type EliminationCandidate struct {
	RuleID        string
	RuleName      string
	Type          EliminationType
	DebitAccount  string
	CreditAccount string
	Amount        decimal.Decimal
}

// RuleWarning records a rule that was skipped instead of aborting the match.
type RuleWarning struct {
	RuleID string
	Reason string
}

func (w RuleWarning) String() string {
	return fmt.Sprintf("rule %s skipped: %s", w.RuleID, w.Reason)
}

// MatchResult carries everything the Eliminate step needs: fired candidates
// in deterministic order, rules held back for manual review, and warnings
// for misconfigured rules.
type MatchResult struct {
	Candidates   []EliminationCandidate
	ManualReview []EliminationRule
	Warnings     []RuleWarning
}

// MatchRules evaluates elimination rules against signed account balances.
//
// Rules run in ascending priority order, ties broken by rule id so repeated
// runs on identical input produce identical output. Inactive rules are
// ignored; non-automatic rules never fire here and are surfaced for manual
// review instead. A rule referencing an unknown account is skipped with a
// warning rather than failing the whole match.
//
// pairAmounts carries the matched two-sided exposure per rule id computed by
// the MatchIC step; for paired elimination types it caps the candidate
// amount at the smaller leg.
func MatchRules(rules []EliminationRule, balances map[string]decimal.Decimal, catalog *AccountCatalog, pairAmounts map[string]decimal.Decimal) MatchResult {
	ordered := make([]EliminationRule, 0, len(rules))
	for _, r := range rules {
		if r.IsActive {
			ordered = append(ordered, r)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].ID < ordered[j].ID
	})

	result := MatchResult{}
	for _, rule := range ordered {
		amount, fired, err := evaluateRule(rule, balances, catalog)
		if err != nil {
			result.Warnings = append(result.Warnings, RuleWarning{RuleID: rule.ID, Reason: err.Error()})
			continue
		}
		if !fired {
			continue
		}
		if !rule.IsAutomatic {
			result.ManualReview = append(result.ManualReview, rule)
			continue
		}
		if rule.Type.Paired() {
			if pair, ok := pairAmounts[rule.ID]; ok && pair.LessThan(amount) {
				amount = pair
			}
		}
		if !amount.IsPositive() {
			continue
		}
		result.Candidates = append(result.Candidates, EliminationCandidate{
			RuleID:        rule.ID,
			RuleName:      rule.Name,
			Type:          rule.Type,
			DebitAccount:  rule.DebitAccount,
			CreditAccount: rule.CreditAccount,
			Amount:        amount,
		})
	}
	return result
}

// evaluateRule checks all trigger conditions (AND semantics) and returns the
// matched aggregate as a positive amount.
func evaluateRule(rule EliminationRule, balances map[string]decimal.Decimal, catalog *AccountCatalog) (decimal.Decimal, bool, error) {
	if len(rule.Triggers) == 0 {
		return decimal.Zero, false, fmt.Errorf("rule has no trigger conditions")
	}
	if _, ok := catalog.ByNumber(rule.DebitAccount); !ok {
		return decimal.Zero, false, &UnknownAccountError{AccountID: rule.DebitAccount}
	}
	if _, ok := catalog.ByNumber(rule.CreditAccount); !ok {
		return decimal.Zero, false, &UnknownAccountError{AccountID: rule.CreditAccount}
	}
	if rule.Type.Paired() && (rule.Source == nil || rule.Target == nil) {
		return decimal.Zero, false, fmt.Errorf("paired rule is missing source/target selectors")
	}
	for _, sel := range []AccountSelector{rule.Source, rule.Target} {
		if sel == nil {
			continue
		}
		if _, err := ResolveSelector(sel, catalog); err != nil {
			return decimal.Zero, false, err
		}
	}

	matched := decimal.Zero
	for _, trigger := range rule.Triggers {
		aggregate := decimal.Zero
		for _, sel := range trigger.Sources {
			numbers, err := ResolveSelector(sel, catalog)
			if err != nil {
				return decimal.Zero, false, err
			}
			for _, number := range numbers {
				aggregate = aggregate.Add(balances[number])
			}
		}
		magnitude := aggregate.Abs()
		if trigger.MinimumAmount != nil {
			if magnitude.LessThan(*trigger.MinimumAmount) {
				return decimal.Zero, false, nil
			}
		} else if magnitude.IsZero() {
			return decimal.Zero, false, nil
		}
		if magnitude.GreaterThan(matched) {
			matched = magnitude
		}
	}
	return matched, true, nil
}

// PairExposure computes the matched two-sided amount for a paired rule: the
// smaller of the absolute source and target aggregates. Zero on either side
// means there is nothing to pair.
func PairExposure(rule EliminationRule, balances map[string]decimal.Decimal, catalog *AccountCatalog) (decimal.Decimal, error) {
	if rule.Source == nil || rule.Target == nil {
		return decimal.Zero, fmt.Errorf("rule %s missing source/target selectors", rule.ID)
	}
	source, err := aggregateSelector(rule.Source, balances, catalog)
	if err != nil {
		return decimal.Zero, err
	}
	target, err := aggregateSelector(rule.Target, balances, catalog)
	if err != nil {
		return decimal.Zero, err
	}
	src, tgt := source.Abs(), target.Abs()
	if src.IsZero() || tgt.IsZero() {
		return decimal.Zero, nil
	}
	if src.LessThan(tgt) {
		return src, nil
	}
	return tgt, nil
}

func aggregateSelector(sel AccountSelector, balances map[string]decimal.Decimal, catalog *AccountCatalog) (decimal.Decimal, error) {
	numbers, err := ResolveSelector(sel, catalog)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, number := range numbers {
		total = total.Add(balances[number])
	}
	return total, nil
}
