package consol

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/meridianfin/meridian/internal/money"
)

// Catalog categories used when routing equity-method pickups and the NCI
// share of eliminated intercompany positions.
const (
	CategoryInvestmentAdjustment = "INVESTMENT_ADJ"
	CategoryEquityPickup         = "EQUITY_PICKUP"
	CategoryNCIEquity            = "NCI_EQUITY"
)

// aggregation is the working state threaded through the Translate,
// Aggregate, Eliminate, and NCI steps. All internal amounts are signed
// (debit positive) and unrounded; rounding happens once in Finalize.
type aggregation struct {
	currency string
	catalog  *AccountCatalog

	// translated member balances in the reporting currency
	translated map[string][]AccountBalance
	// account -> company -> signed contribution
	contributions map[string]map[string]decimal.Decimal
	// account -> signed aggregated balance before eliminations
	aggregated map[string]decimal.Decimal
	// account -> signed consolidated balance as steps apply
	signed map[string]decimal.Decimal
	// account -> signed elimination delta applied
	elim map[string]decimal.Decimal
	// account -> company -> elimination delta attributed to the member,
	// in proportion to its contribution on that account
	elimShare map[string]map[string]decimal.Decimal
	// account -> signed NCI portion removed
	nci map[string]decimal.Decimal

	applied []EliminationCandidate
}

func newAggregation(currency string, catalog *AccountCatalog) *aggregation {
	return &aggregation{
		currency:      currency,
		catalog:       catalog,
		translated:    make(map[string][]AccountBalance),
		contributions: make(map[string]map[string]decimal.Decimal),
		aggregated:    make(map[string]decimal.Decimal),
		signed:        make(map[string]decimal.Decimal),
		elim:          make(map[string]decimal.Decimal),
		elimShare:     make(map[string]map[string]decimal.Decimal),
		nci:           make(map[string]decimal.Decimal),
	}
}

// Aggregator builds the consolidated trial balance step by step.
type Aggregator struct {
	translator CurrencyTranslationService
}

// NewAggregator wires the external currency translation collaborator.
func NewAggregator(translator CurrencyTranslationService) *Aggregator {
	return &Aggregator{translator: translator}
}

// Translate converts each consolidated member's trial balance into the
// group reporting currency. Balance sheet accounts translate at the closing
// rate, profit and loss accounts at the period average. Members run
// concurrently: their balances are independent read-only inputs, and the
// merge back into the aggregation is serialised behind a mutex.
func (a *Aggregator) Translate(ctx context.Context, agg *aggregation, members []ConsolidationMember, memberBalances map[string][]AccountBalance, asOf time.Time) error {
	g, ctx := errgroup.WithContext(ctx)
	var mu sync.Mutex

	for _, member := range members {
		if !member.Consolidated() {
			continue
		}
		member := member
		balances := memberBalances[member.CompanyID]
		g.Go(func() error {
			out := make([]AccountBalance, 0, len(balances))
			for _, b := range balances {
				amount := b.Amount
				if b.Currency != agg.currency {
					basis := BasisClosing
					if acct, ok := agg.catalog.ByNumber(b.AccountNumber); ok && acct.ProfitLoss {
						basis = BasisAverage
					}
					converted, err := a.translator.Translate(ctx, b.Amount, b.Currency, agg.currency, basis, asOf)
					if err != nil {
						return fmt.Errorf("member %s account %s: %w", member.CompanyID, b.AccountNumber, err)
					}
					amount = converted
				}
				out = append(out, AccountBalance{AccountNumber: b.AccountNumber, Amount: amount, Currency: agg.currency})
			}
			mu.Lock()
			agg.translated[member.CompanyID] = out
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// Sum folds translated member balances into per-account aggregates,
// retaining per-member contributions for the NCI split.
func (a *Aggregator) Sum(agg *aggregation) {
	for companyID, balances := range agg.translated {
		for _, b := range balances {
			agg.aggregated[b.AccountNumber] = agg.aggregated[b.AccountNumber].Add(b.Amount)
			byCompany := agg.contributions[b.AccountNumber]
			if byCompany == nil {
				byCompany = make(map[string]decimal.Decimal)
				agg.contributions[b.AccountNumber] = byCompany
			}
			byCompany[companyID] = byCompany[companyID].Add(b.Amount)
		}
	}
	for number, amount := range agg.aggregated {
		agg.signed[number] = amount
	}
}

// SignedBalances exposes the current per-account signed balances, used by
// the MatchIC and Eliminate steps.
func (agg *aggregation) SignedBalances() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(agg.signed))
	for k, v := range agg.signed {
		out[k] = v
	}
	return out
}

// ApplyEliminations posts each candidate's debit/credit pair against the
// signed balances. A debit raises the account's signed balance, a credit
// lowers it, so every candidate nets to zero and the balance invariant is
// preserved by construction. Each leg is attributed back to the members who
// contributed to the affected account, in proportion to their contribution,
// so the NCI step can work from residual post-elimination contributions.
func (a *Aggregator) ApplyEliminations(agg *aggregation, candidates []EliminationCandidate) {
	for _, c := range candidates {
		a.postElimination(agg, c.DebitAccount, c.Amount)
		a.postElimination(agg, c.CreditAccount, c.Amount.Neg())
		agg.applied = append(agg.applied, c)
	}
}

func (a *Aggregator) postElimination(agg *aggregation, account string, delta decimal.Decimal) {
	agg.signed[account] = agg.signed[account].Add(delta)
	agg.elim[account] = agg.elim[account].Add(delta)

	contribs := agg.contributions[account]
	if len(contribs) == 0 {
		return
	}
	total := decimal.Zero
	for _, amount := range contribs {
		total = total.Add(amount.Abs())
	}
	if total.IsZero() {
		return
	}
	shares := agg.elimShare[account]
	if shares == nil {
		shares = make(map[string]decimal.Decimal, len(contribs))
		agg.elimShare[account] = shares
	}
	for companyID, amount := range contribs {
		shares[companyID] = shares[companyID].Add(delta.Mul(amount.Abs()).Div(total))
	}
}

// AllocateNCI splits each line's residual member contributions, after
// eliminations, between owners and the non-controlling interest. A fully
// eliminated line therefore stays at zero. The NCI shares removed across
// lines need not net out once eliminations have touched member accounts;
// the difference is the NCI's stake in the eliminated intercompany
// positions, and it is posted to the NCI equity routing line so the
// balance invariant holds exactly.
func (a *Aggregator) AllocateNCI(agg *aggregation, members []ConsolidationMember) error {
	byCompany := make(map[string]ConsolidationMember, len(members))
	for _, m := range members {
		byCompany[m.CompanyID] = m
	}
	removed := decimal.Zero
	for account, contribs := range agg.contributions {
		for companyID, contribution := range contribs {
			member, ok := byCompany[companyID]
			if !ok || !member.RequiresNCI() {
				continue
			}
			residual := contribution.Add(agg.elimShare[account][companyID])
			_, nciShare := ComputeNCI(member, residual)
			if nciShare.IsZero() {
				continue
			}
			agg.signed[account] = agg.signed[account].Sub(nciShare)
			agg.nci[account] = agg.nci[account].Add(nciShare)
			removed = removed.Add(nciShare)
		}
	}
	if !removed.IsZero() {
		route, ok := agg.catalog.FirstByCategory(CategoryNCIEquity)
		if !ok {
			return &ConfigurationError{Subject: "catalog", Detail: "no active account in category " + CategoryNCIEquity}
		}
		agg.signed[route.Number] = agg.signed[route.Number].Add(removed)
		agg.nci[route.Number] = agg.nci[route.Number].Sub(removed)
	}
	return nil
}

// ApplyEquityPickup posts the single investment adjustment for equity- and
// cost-method members: debit the investment account, credit the equity
// pickup account with the owner's share of the investee result.
func (a *Aggregator) ApplyEquityPickup(agg *aggregation, members []ConsolidationMember, memberBalances map[string][]AccountBalance) error {
	investment, ok := agg.catalog.FirstByCategory(CategoryInvestmentAdjustment)
	if !ok {
		return &ConfigurationError{Subject: "catalog", Detail: "no active account in category " + CategoryInvestmentAdjustment}
	}
	pickup, ok := agg.catalog.FirstByCategory(CategoryEquityPickup)
	if !ok {
		return &ConfigurationError{Subject: "catalog", Detail: "no active account in category " + CategoryEquityPickup}
	}
	for _, member := range members {
		if member.Method != MethodEquity && member.Method != MethodCost {
			continue
		}
		plNet := decimal.Zero
		for _, b := range memberBalances[member.CompanyID] {
			if acct, ok := agg.catalog.ByNumber(b.AccountNumber); ok && acct.ProfitLoss {
				plNet = plNet.Add(b.Amount)
			}
		}
		adj := EquityPickup(member, plNet)
		if adj.IsZero() {
			continue
		}
		agg.signed[investment.Number] = agg.signed[investment.Number].Add(adj)
		agg.signed[pickup.Number] = agg.signed[pickup.Number].Sub(adj)
	}
	return nil
}

// Finalize rounds each line once at the reporting currency's minor unit,
// rolls up totals, and enforces the balance invariant. An imbalance is
// surfaced as TrialBalanceImbalanceError, never papered over with a
// balancing entry.
func (a *Aggregator) Finalize(agg *aggregation, runID, groupID string, period Period, asOf, now time.Time) (*ConsolidatedTrialBalance, error) {
	numbers := make([]string, 0, len(agg.signed))
	for number := range agg.signed {
		numbers = append(numbers, number)
	}
	sort.Strings(numbers)

	var (
		lines        []TrialBalanceLine
		totalDebits  = decimal.Zero
		totalCredits = decimal.Zero
		totalNCI     = decimal.Zero
		checksum     = decimal.Zero
	)
	for _, number := range numbers {
		acct, ok := agg.catalog.ByNumber(number)
		if !ok {
			return nil, &UnknownAccountError{AccountID: number}
		}
		signed := money.Round(agg.signed[number], agg.currency)
		if signed.IsZero() && agg.aggregated[number].IsZero() && agg.elim[number].IsZero() {
			continue
		}
		checksum = checksum.Add(signed)
		if signed.IsPositive() {
			totalDebits = totalDebits.Add(signed)
		} else {
			totalCredits = totalCredits.Add(signed.Neg())
		}

		line := TrialBalanceLine{
			AccountNumber:       number,
			AccountName:         acct.Name,
			AccountType:         acct.Type,
			Category:            acct.Category,
			AggregatedBalance:   naturalize(acct, money.Round(agg.aggregated[number], agg.currency)),
			EliminationAmount:   naturalize(acct, money.Round(agg.elim[number], agg.currency)).Neg(),
			ConsolidatedBalance: naturalize(acct, signed),
		}
		if nci := agg.nci[number]; !nci.IsZero() {
			natural := naturalize(acct, money.Round(nci, agg.currency))
			line.NCIAmount = &natural
			totalNCI = totalNCI.Add(natural)
		}
		lines = append(lines, line)
	}

	if !money.WithinMinorUnit(totalDebits, totalCredits, agg.currency) {
		return nil, &TrialBalanceImbalanceError{Discrepancy: checksum, Currency: agg.currency}
	}

	totalElims := decimal.Zero
	for _, c := range agg.applied {
		totalElims = totalElims.Add(c.Amount)
	}

	return &ConsolidatedTrialBalance{
		RunID:    runID,
		GroupID:  groupID,
		Period:   period,
		AsOf:     asOf,
		Currency: agg.currency,
		Lines:    lines,
		Totals: TrialBalanceTotals{
			TotalDebits:       totalDebits,
			TotalCredits:      totalCredits,
			TotalEliminations: money.Round(totalElims, agg.currency),
			TotalNCI:          money.Round(totalNCI, agg.currency),
		},
		GeneratedAt: now,
	}, nil
}

// naturalize converts a signed (debit positive) amount into the account's
// natural-sign presentation.
func naturalize(acct Account, signed decimal.Decimal) decimal.Decimal {
	if acct.NormalBalance == NormalCredit {
		return signed.Neg()
	}
	return signed
}
