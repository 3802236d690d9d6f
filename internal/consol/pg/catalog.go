package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridianfin/meridian/internal/consol"
	"github.com/meridianfin/meridian/internal/platform/db"
)

// Catalog implements the group, rule, account, and balance lookups the
// orchestrator reads at snapshot time.
type Catalog struct {
	pool *pgxpool.Pool
}

// NewCatalog constructs the catalog provider.
func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

// GetGroup loads a consolidation group with its members. Both reads run in
// one repeatable-read transaction so the member list matches the group row.
func (c *Catalog) GetGroup(ctx context.Context, id string) (consol.ConsolidationGroup, error) {
	var group consol.ConsolidationGroup
	err := db.WithTx(ctx, c.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`SELECT id, name, parent_company_id, reporting_currency, is_active
			 FROM consolidation_groups WHERE id = $1`, id).
			Scan(&group.ID, &group.Name, &group.ParentCompanyID, &group.ReportingCurrency, &group.IsActive)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return consol.ErrGroupNotFound
			}
			return err
		}

		rows, err := tx.Query(ctx,
			`SELECT company_id, company_name, ownership_pct, nci_pct, method,
			        acquisition_date, goodwill_amount, goodwill_currency,
			        vie_primary_beneficiary, vie_determined_at, vie_rationale,
			        functional_currency
			 FROM consolidation_members WHERE group_id = $1 ORDER BY company_id`, id)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				member        consol.ConsolidationMember
				goodwillAmt   *decimal.Decimal
				goodwillCcy   *string
				viePrimary    *bool
				vieDetermined *time.Time
				vieRationale  *string
			)
			if err := rows.Scan(&member.CompanyID, &member.CompanyName, &member.OwnershipPct, &member.NCIPct,
				&member.Method, &member.AcquisitionDate, &goodwillAmt, &goodwillCcy,
				&viePrimary, &vieDetermined, &vieRationale, &member.FunctionalCurrency); err != nil {
				return err
			}
			if goodwillAmt != nil && goodwillCcy != nil {
				member.Goodwill = &consol.Money{Amount: *goodwillAmt, Currency: *goodwillCcy}
			}
			if viePrimary != nil && vieDetermined != nil {
				vie := consol.VIEDetermination{IsPrimaryBeneficiary: *viePrimary, DeterminedAt: *vieDetermined}
				if vieRationale != nil {
					vie.Rationale = *vieRationale
				}
				member.VIE = &vie
			}
			group.Members = append(group.Members, member)
		}
		return rows.Err()
	})
	if err != nil {
		return consol.ConsolidationGroup{}, err
	}
	return group, nil
}

// GetActiveRules loads the group's active elimination rules from their
// versioned JSON documents.
func (c *Catalog) GetActiveRules(ctx context.Context, groupID string) ([]consol.EliminationRule, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT doc FROM elimination_rules WHERE group_id = $1 AND is_active ORDER BY priority, id`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []consol.EliminationRule
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		rule, err := consol.DecodeRule(doc)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// GetAccountCatalog loads the parent company's chart of accounts.
func (c *Catalog) GetAccountCatalog(ctx context.Context, companyID string) (*consol.AccountCatalog, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT id, number, name, type, category, normal_balance, active, profit_loss
		 FROM accounts WHERE company_id = $1 ORDER BY number`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []consol.Account
	for rows.Next() {
		var acct consol.Account
		if err := rows.Scan(&acct.ID, &acct.Number, &acct.Name, &acct.Type,
			&acct.Category, &acct.NormalBalance, &acct.Active, &acct.ProfitLoss); err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return consol.NewAccountCatalog(accounts), nil
}

// GetMemberTrialBalance loads a member's trial balance lines for a period.
// Amounts are stored signed, debit positive.
func (c *Catalog) GetMemberTrialBalance(ctx context.Context, companyID string, period consol.Period) ([]consol.AccountBalance, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT account_number, amount, currency
		 FROM member_trial_balances
		 WHERE company_id = $1 AND period_key = $2 ORDER BY account_number`,
		companyID, period.Key())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []consol.AccountBalance
	for rows.Next() {
		var b consol.AccountBalance
		if err := rows.Scan(&b.AccountNumber, &b.Amount, &b.Currency); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}
