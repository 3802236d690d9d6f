package consol

import (
	"context"
	"fmt"
)

// runSnapshot freezes everything a run reads: group configuration, active
// rules, the account catalog, and member trial balances. It is taken during
// the Validate step and never refreshed, so a run stays reproducible even
// when rules or accounts are edited concurrently elsewhere.
type runSnapshot struct {
	group    ConsolidationGroup
	rules    []EliminationRule
	catalog  *AccountCatalog
	balances map[string][]AccountBalance
}

// takeSnapshot loads the run's read set from the collaborators. The group
// catalog is read through the parent company; member balances are loaded for
// every member so Validate can flag missing data up front.
func takeSnapshot(ctx context.Context, groups GroupCatalogProvider, balances BalanceProvider, groupID string, period Period) (*runSnapshot, error) {
	group, err := groups.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("load group: %w", err)
	}
	rules, err := groups.GetActiveRules(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	catalog, err := groups.GetAccountCatalog(ctx, group.ParentCompanyID)
	if err != nil {
		return nil, fmt.Errorf("load account catalog: %w", err)
	}

	snap := &runSnapshot{
		group:    group,
		rules:    rules,
		catalog:  catalog,
		balances: make(map[string][]AccountBalance, len(group.Members)),
	}
	for _, member := range group.Members {
		tb, err := balances.GetMemberTrialBalance(ctx, member.CompanyID, period)
		if err != nil {
			return nil, fmt.Errorf("load trial balance for member %s: %w", member.CompanyID, err)
		}
		snap.balances[member.CompanyID] = tb
	}
	return snap, nil
}
