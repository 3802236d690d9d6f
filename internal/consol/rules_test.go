package consol

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func icRule(id string, priority int) EliminationRule {
	return EliminationRule{
		ID:       id,
		GroupID:  "grp-1",
		Name:     "IC receivable vs payable",
		Type:     ElimIntercompanyReceivablePayable,
		Priority: priority,
		Triggers: []TriggerCondition{
			{Description: "IC receivables present", Sources: []AccountSelector{SelectByCategory{Category: "IC_AR"}}},
		},
		Source:        SelectByCategory{Category: "IC_AR"},
		Target:        SelectByCategory{Category: "IC_AP"},
		DebitAccount:  "2100",
		CreditAccount: "1200",
		IsAutomatic:   true,
		IsActive:      true,
	}
}

func TestMatchRulesFiresCandidate(t *testing.T) {
	balances := map[string]decimal.Decimal{
		"1200": dec("10000"),
		"2100": dec("-10000"),
	}
	rule := icRule("rule-1", 10)
	result := MatchRules([]EliminationRule{rule}, balances, testCatalog(), map[string]decimal.Decimal{
		"rule-1": dec("10000"),
	})

	if len(result.Candidates) != 1 {
		t.Fatalf("want 1 candidate, got %d", len(result.Candidates))
	}
	c := result.Candidates[0]
	if c.DebitAccount != "2100" || c.CreditAccount != "1200" {
		t.Fatalf("unexpected posting accounts %s/%s", c.DebitAccount, c.CreditAccount)
	}
	if !c.Amount.Equal(dec("10000")) {
		t.Fatalf("want amount 10000, got %s", c.Amount)
	}
}

func TestMatchRulesPairCapsAmount(t *testing.T) {
	// Receivable leg larger than the payable leg: only the matched portion
	// may be eliminated.
	balances := map[string]decimal.Decimal{
		"1200": dec("10000"),
		"2100": dec("-7500"),
	}
	rule := icRule("rule-1", 10)

	pair, err := PairExposure(rule, balances, testCatalog())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pair.Equal(dec("7500")) {
		t.Fatalf("want pair exposure 7500, got %s", pair)
	}

	result := MatchRules([]EliminationRule{rule}, balances, testCatalog(), map[string]decimal.Decimal{"rule-1": pair})
	if len(result.Candidates) != 1 {
		t.Fatalf("want 1 candidate, got %d", len(result.Candidates))
	}
	if !result.Candidates[0].Amount.Equal(dec("7500")) {
		t.Fatalf("want capped amount 7500, got %s", result.Candidates[0].Amount)
	}
}

func TestMatchRulesOrderingDeterministic(t *testing.T) {
	balances := map[string]decimal.Decimal{
		"1200": dec("5000"),
		"2100": dec("-5000"),
	}
	ruleB := icRule("rule-b", 10)
	ruleA := icRule("rule-a", 10)
	ruleFirst := icRule("rule-z", 1)

	result := MatchRules([]EliminationRule{ruleB, ruleA, ruleFirst}, balances, testCatalog(), nil)
	if len(result.Candidates) != 3 {
		t.Fatalf("want 3 candidates, got %d", len(result.Candidates))
	}
	gotOrder := []string{result.Candidates[0].RuleID, result.Candidates[1].RuleID, result.Candidates[2].RuleID}
	wantOrder := []string{"rule-z", "rule-a", "rule-b"}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Fatalf("order mismatch at %d: got %v, want %v", i, gotOrder, wantOrder)
		}
	}
}

func TestMatchRulesMinimumAmountThreshold(t *testing.T) {
	minimum := dec("6000")
	rule := icRule("rule-1", 10)
	rule.Triggers[0].MinimumAmount = &minimum

	balances := map[string]decimal.Decimal{"1200": dec("5000"), "2100": dec("-5000")}
	result := MatchRules([]EliminationRule{rule}, balances, testCatalog(), nil)
	if len(result.Candidates) != 0 {
		t.Fatalf("rule below threshold must not fire, got %d candidates", len(result.Candidates))
	}

	balances["1200"] = dec("6000")
	result = MatchRules([]EliminationRule{rule}, balances, testCatalog(), nil)
	if len(result.Candidates) != 1 {
		t.Fatalf("rule at threshold must fire, got %d candidates", len(result.Candidates))
	}
}

func TestMatchRulesAllTriggersMustMatch(t *testing.T) {
	rule := icRule("rule-1", 10)
	rule.Triggers = append(rule.Triggers, TriggerCondition{
		Description: "payables present",
		Sources:     []AccountSelector{SelectByCategory{Category: "IC_AP"}},
	})

	balances := map[string]decimal.Decimal{"1200": dec("5000")}
	result := MatchRules([]EliminationRule{rule}, balances, testCatalog(), nil)
	if len(result.Candidates) != 0 {
		t.Fatalf("rule with one unmatched trigger must not fire")
	}
}

func TestMatchRulesManualReview(t *testing.T) {
	rule := icRule("rule-1", 10)
	rule.IsAutomatic = false
	balances := map[string]decimal.Decimal{"1200": dec("5000"), "2100": dec("-5000")}

	result := MatchRules([]EliminationRule{rule}, balances, testCatalog(), nil)
	if len(result.Candidates) != 0 {
		t.Fatalf("non-automatic rule must not produce candidates")
	}
	if len(result.ManualReview) != 1 || result.ManualReview[0].ID != "rule-1" {
		t.Fatalf("non-automatic rule must be surfaced for manual review")
	}
}

func TestMatchRulesInactiveIgnored(t *testing.T) {
	rule := icRule("rule-1", 10)
	rule.IsActive = false
	balances := map[string]decimal.Decimal{"1200": dec("5000"), "2100": dec("-5000")}

	result := MatchRules([]EliminationRule{rule}, balances, testCatalog(), nil)
	if len(result.Candidates) != 0 || len(result.ManualReview) != 0 || len(result.Warnings) != 0 {
		t.Fatalf("inactive rule must be ignored entirely")
	}
}

func TestMatchRulesUnknownAccountWarns(t *testing.T) {
	rule := icRule("rule-1", 10)
	rule.DebitAccount = "8888"
	balances := map[string]decimal.Decimal{"1200": dec("5000")}

	result := MatchRules([]EliminationRule{rule}, balances, testCatalog(), nil)
	if len(result.Candidates) != 0 {
		t.Fatalf("rule with unknown posting account must not fire")
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("want 1 warning, got %d", len(result.Warnings))
	}
	if !strings.Contains(result.Warnings[0].Reason, "8888") {
		t.Fatalf("warning should name the unknown account: %s", result.Warnings[0].Reason)
	}
}

func TestMatchRulesUnresolvableSelectorWarns(t *testing.T) {
	rule := icRule("rule-1", 10)
	rule.Source = SelectByID{AccountID: "a-missing"}
	balances := map[string]decimal.Decimal{"1200": dec("5000"), "2100": dec("-5000")}

	result := MatchRules([]EliminationRule{rule}, balances, testCatalog(), map[string]decimal.Decimal{
		"rule-1": dec("5000"),
	})
	if len(result.Candidates) != 0 {
		t.Fatalf("rule with unresolvable source selector must not fire, got %d candidates", len(result.Candidates))
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("want 1 warning, got %d", len(result.Warnings))
	}
	if !strings.Contains(result.Warnings[0].Reason, "a-missing") {
		t.Fatalf("warning should name the unknown account: %s", result.Warnings[0].Reason)
	}
}

func TestMatchRulesPairedRuleMissingSelectorWarns(t *testing.T) {
	rule := icRule("rule-1", 10)
	rule.Source = nil
	balances := map[string]decimal.Decimal{"1200": dec("5000"), "2100": dec("-5000")}

	result := MatchRules([]EliminationRule{rule}, balances, testCatalog(), nil)
	if len(result.Candidates) != 0 {
		t.Fatalf("paired rule without a source selector must not fire")
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("want 1 warning, got %d", len(result.Warnings))
	}
}

func TestPairExposureZeroSide(t *testing.T) {
	rule := icRule("rule-1", 10)
	balances := map[string]decimal.Decimal{"1200": dec("5000")}

	pair, err := PairExposure(rule, balances, testCatalog())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pair.IsZero() {
		t.Fatalf("one-sided exposure must pair to zero, got %s", pair)
	}
}
