package consol

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ValidatePercentages checks the member's ownership numbers. Percentages
// must fall within [0, 100]; full-consolidation members must have ownership
// and NCI summing to 100 within half a basis point.
func ValidatePercentages(m ConsolidationMember) error {
	if m.OwnershipPct.IsNegative() || m.OwnershipPct.GreaterThan(hundred) {
		return &ConfigurationError{Subject: "member " + m.CompanyID, Detail: "ownership percentage outside [0, 100]"}
	}
	if m.NCIPct.IsNegative() || m.NCIPct.GreaterThan(hundred) {
		return &ConfigurationError{Subject: "member " + m.CompanyID, Detail: "non-controlling interest percentage outside [0, 100]"}
	}
	if m.Method == MethodFullConsolidation {
		sum := m.OwnershipPct.Add(m.NCIPct)
		if sum.Sub(hundred).Abs().GreaterThan(decimal.NewFromFloat(0.005)) {
			return &ConfigurationError{
				Subject: "member " + m.CompanyID,
				Detail:  "ownership and NCI percentages must sum to 100, got " + sum.String(),
			}
		}
	}
	return nil
}

// ComputeNCI splits a member's contribution to a consolidated line between
// the owners and the non-controlling interest.
//
// Full-consolidation members split by the configured NCI percentage. VIE
// members determined to be the primary beneficiary are treated as full
// consolidation regardless of nominal ownership. Equity- and cost-method
// members carry no per-line NCI; their entire contribution stays with the
// owners and the aggregator routes them to a single investment adjustment.
//
// Both returns are unrounded; rounding happens once at the final
// consolidated-line level.
func ComputeNCI(member ConsolidationMember, contribution decimal.Decimal) (ownerShare, nciAmount decimal.Decimal) {
	if !member.RequiresNCI() {
		return contribution, decimal.Zero
	}
	ratio := member.NCIPct.Div(hundred)
	nciAmount = contribution.Mul(ratio)
	ownerShare = contribution.Sub(nciAmount)
	return ownerShare, nciAmount
}

// EquityPickup computes the single investment-account adjustment for an
// equity- or cost-method member: the owner's share of the member's net
// result, derived from the signed profit-and-loss balances. Income carries a
// credit (negative signed) balance, so the pickup is the negated owner
// share: positive when the investee is profitable.
func EquityPickup(member ConsolidationMember, plNet decimal.Decimal) decimal.Decimal {
	if member.Method != MethodEquity && member.Method != MethodCost {
		return decimal.Zero
	}
	ratio := member.OwnershipPct.Div(hundred)
	return plNet.Neg().Mul(ratio)
}
