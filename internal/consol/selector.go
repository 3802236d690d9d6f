package consol

import "sort"

// AccountSelector is a closed sum over the three ways a rule can target
// accounts. The unexported marker keeps the set of variants sealed to this
// package.
type AccountSelector interface {
	isAccountSelector()
}

// SelectByID targets a single account by identifier.
type SelectByID struct {
	AccountID string
}

// SelectByRange targets every account whose number falls inside the
// inclusive [From, To] interval, compared lexicographically by the catalog's
// numbering convention.
type SelectByRange struct {
	From string
	To   string
}

// SelectByCategory targets all active accounts whose category matches
// exactly.
type SelectByCategory struct {
	Category string
}

func (SelectByID) isAccountSelector()       {}
func (SelectByRange) isAccountSelector()    {}
func (SelectByCategory) isAccountSelector() {}

// ResolveSelector expands a selector against a catalog snapshot into a
// sorted list of account numbers. Resolution is pure: no side effects, and
// the same inputs always produce the same output.
//
// SelectByID fails with UnknownAccountError when the account is absent. An
// empty range or category result is valid, not an error.
func ResolveSelector(sel AccountSelector, catalog *AccountCatalog) ([]string, error) {
	switch s := sel.(type) {
	case SelectByID:
		acct, ok := catalog.ByID(s.AccountID)
		if !ok {
			return nil, &UnknownAccountError{AccountID: s.AccountID}
		}
		return []string{acct.Number}, nil
	case SelectByRange:
		var numbers []string
		for _, acct := range catalog.Accounts() {
			if acct.Number >= s.From && acct.Number <= s.To {
				numbers = append(numbers, acct.Number)
			}
		}
		sort.Strings(numbers)
		return numbers, nil
	case SelectByCategory:
		var numbers []string
		for _, acct := range catalog.Accounts() {
			if acct.Active && acct.Category == s.Category {
				numbers = append(numbers, acct.Number)
			}
		}
		sort.Strings(numbers)
		return numbers, nil
	default:
		// The sum is sealed; a new variant without a resolver arm is a
		// programming error.
		panic("consol: unhandled account selector variant")
	}
}
