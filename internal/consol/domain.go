package consol

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ConsolidationMethod selects how a member is folded into the group.
type ConsolidationMethod string

const (
	MethodFullConsolidation      ConsolidationMethod = "FULL_CONSOLIDATION"
	MethodEquity                 ConsolidationMethod = "EQUITY_METHOD"
	MethodCost                   ConsolidationMethod = "COST_METHOD"
	MethodVariableInterestEntity ConsolidationMethod = "VARIABLE_INTEREST_ENTITY"
)

// Valid reports whether the method is one of the known variants.
func (m ConsolidationMethod) Valid() bool {
	switch m {
	case MethodFullConsolidation, MethodEquity, MethodCost, MethodVariableInterestEntity:
		return true
	default:
		return false
	}
}

// Period identifies a fiscal year plus period number (1-13; 13 is the
// adjustment period).
type Period struct {
	Year   int `json:"year"`
	Period int `json:"period"`
}

// Validate checks the period falls inside the supported fiscal calendar.
func (p Period) Validate() error {
	if p.Year < 1900 || p.Year > 9999 {
		return fmt.Errorf("consol: fiscal year %d out of range", p.Year)
	}
	if p.Period < 1 || p.Period > 13 {
		return fmt.Errorf("consol: period %d out of range 1-13", p.Period)
	}
	return nil
}

// Key renders the canonical period key used for locking and cache keys.
func (p Period) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Period)
}

func (p Period) String() string { return p.Key() }

// VIEDetermination records the control analysis for a variable interest entity.
type VIEDetermination struct {
	IsPrimaryBeneficiary bool      `json:"is_primary_beneficiary"`
	DeterminedAt         time.Time `json:"determined_at"`
	Rationale            string    `json:"rationale,omitempty"`
}

// Money pairs an exact amount with its ISO currency code.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// ConsolidationMember holds one subsidiary's consolidation parameters.
type ConsolidationMember struct {
	CompanyID          string              `json:"company_id"`
	CompanyName        string              `json:"company_name"`
	OwnershipPct       decimal.Decimal     `json:"ownership_pct"`
	NCIPct             decimal.Decimal     `json:"nci_pct"`
	Method             ConsolidationMethod `json:"method"`
	AcquisitionDate    time.Time           `json:"acquisition_date"`
	Goodwill           *Money              `json:"goodwill,omitempty"`
	VIE                *VIEDetermination   `json:"vie,omitempty"`
	FunctionalCurrency string              `json:"functional_currency"`
}

// RequiresNCI reports whether the member participates in per-line NCI
// allocation. Equity and cost method members are routed to a single
// investment adjustment instead; VIE members qualify only when determined
// to be the primary beneficiary.
func (m ConsolidationMember) RequiresNCI() bool {
	switch m.Method {
	case MethodFullConsolidation:
		return m.NCIPct.IsPositive()
	case MethodVariableInterestEntity:
		return m.VIE != nil && m.VIE.IsPrimaryBeneficiary && m.NCIPct.IsPositive()
	default:
		return false
	}
}

// Consolidated reports whether the member's balances are folded line by line
// into the group trial balance.
func (m ConsolidationMember) Consolidated() bool {
	switch m.Method {
	case MethodFullConsolidation:
		return true
	case MethodVariableInterestEntity:
		return m.VIE != nil && m.VIE.IsPrimaryBeneficiary
	default:
		return false
	}
}

// ConsolidationGroup is a parent company plus the subsidiaries consolidated
// under it.
type ConsolidationGroup struct {
	ID                string                `json:"id"`
	OrganizationID    string                `json:"organization_id"`
	Name              string                `json:"name"`
	ReportingCurrency string                `json:"reporting_currency"`
	Method            ConsolidationMethod   `json:"method"`
	ParentCompanyID   string                `json:"parent_company_id"`
	IsActive          bool                  `json:"is_active"`
	Members           []ConsolidationMember `json:"members"`
	RuleIDs           []string              `json:"rule_ids"`
}

// Member returns the member record for a company id, if present.
func (g ConsolidationGroup) Member(companyID string) (ConsolidationMember, bool) {
	for _, m := range g.Members {
		if m.CompanyID == companyID {
			return m, true
		}
	}
	return ConsolidationMember{}, false
}

// NormalBalance marks which side an account naturally carries.
type NormalBalance string

const (
	NormalDebit  NormalBalance = "DEBIT"
	NormalCredit NormalBalance = "CREDIT"
)

// Account describes one catalog entry.
type Account struct {
	ID            string        `json:"id"`
	Number        string        `json:"number"`
	Name          string        `json:"name"`
	Type          string        `json:"type"`
	Category      string        `json:"category"`
	NormalBalance NormalBalance `json:"normal_balance"`
	Active        bool          `json:"active"`
	// ProfitLoss distinguishes income-statement accounts for FX policy.
	ProfitLoss bool `json:"profit_loss"`
}

// AccountCatalog is an immutable snapshot of the chart of accounts used for
// one consolidation run.
type AccountCatalog struct {
	byID     map[string]Account
	byNumber map[string]Account
	ordered  []Account
}

// NewAccountCatalog builds a catalog snapshot from account records.
func NewAccountCatalog(accounts []Account) *AccountCatalog {
	c := &AccountCatalog{
		byID:     make(map[string]Account, len(accounts)),
		byNumber: make(map[string]Account, len(accounts)),
		ordered:  append([]Account(nil), accounts...),
	}
	for _, a := range accounts {
		c.byID[a.ID] = a
		c.byNumber[a.Number] = a
	}
	return c
}

// ByID looks up an account by identifier.
func (c *AccountCatalog) ByID(id string) (Account, bool) {
	a, ok := c.byID[id]
	return a, ok
}

// ByNumber looks up an account by account number.
func (c *AccountCatalog) ByNumber(number string) (Account, bool) {
	a, ok := c.byNumber[number]
	return a, ok
}

// Accounts returns the catalog entries in their original order.
func (c *AccountCatalog) Accounts() []Account {
	return c.ordered
}

// FirstByCategory returns the first active account in the given category.
func (c *AccountCatalog) FirstByCategory(category string) (Account, bool) {
	category = strings.TrimSpace(category)
	for _, a := range c.ordered {
		if a.Active && a.Category == category {
			return a, true
		}
	}
	return Account{}, false
}

// AccountBalance is one account's balance in a member trial balance.
// Amounts are signed: positive means the account's debit side exceeds its
// credit side.
type AccountBalance struct {
	AccountNumber string          `json:"account_number"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
}
