package consol

import (
	"errors"
	"fmt"
)

// IssueSeverity distinguishes blocking errors from advisory warnings.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "ERROR"
	SeverityWarning IssueSeverity = "WARNING"
)

// ValidationIssue is one finding from the Validate step.
type ValidationIssue struct {
	Severity IssueSeverity `json:"severity"`
	Subject  string        `json:"subject"`
	Detail   string        `json:"detail"`
}

// ValidationResult collects the findings of the Validate step. Errors block
// the run; warnings block only when the run options say so.
type ValidationResult struct {
	Errors   []ValidationIssue `json:"errors"`
	Warnings []ValidationIssue `json:"warnings"`
}

// HasErrors reports whether any blocking issue was found.
func (r ValidationResult) HasErrors() bool { return len(r.Errors) > 0 }

// HasWarnings reports whether any advisory issue was found.
func (r ValidationResult) HasWarnings() bool { return len(r.Warnings) > 0 }

func (r *ValidationResult) addError(subject, detail string) {
	r.Errors = append(r.Errors, ValidationIssue{Severity: SeverityError, Subject: subject, Detail: detail})
}

func (r *ValidationResult) addWarning(subject, detail string) {
	r.Warnings = append(r.Warnings, ValidationIssue{Severity: SeverityWarning, Subject: subject, Detail: detail})
}

// FirstError converts the first blocking issue into a ConfigurationError for
// run failure attribution.
func (r ValidationResult) FirstError() error {
	if len(r.Errors) == 0 {
		return nil
	}
	issue := r.Errors[0]
	return &ConfigurationError{Subject: issue.Subject, Detail: issue.Detail}
}

// ValidateGroup checks group and member configuration consistency plus rule
// resolvability against the catalog snapshot. Selector issues degrade to
// warnings: one misconfigured rule must not block consolidation.
func ValidateGroup(group ConsolidationGroup, rules []EliminationRule, catalog *AccountCatalog) ValidationResult {
	var result ValidationResult

	if !group.IsActive {
		result.addError("group "+group.ID, "group is inactive and must not accept new runs")
	}
	if group.ReportingCurrency == "" {
		result.addError("group "+group.ID, "reporting currency is required")
	}
	if len(group.Members) == 0 {
		result.addError("group "+group.ID, "group has no members")
	}

	seen := make(map[string]struct{}, len(group.Members))
	for _, member := range group.Members {
		subject := "member " + member.CompanyID
		if _, dup := seen[member.CompanyID]; dup {
			result.addError(subject, "duplicate company id within group")
			continue
		}
		seen[member.CompanyID] = struct{}{}

		if !member.Method.Valid() {
			result.addError(subject, fmt.Sprintf("unknown consolidation method %q", member.Method))
			continue
		}
		if err := ValidatePercentages(member); err != nil {
			var cfg *ConfigurationError
			if errors.As(err, &cfg) {
				result.addError(cfg.Subject, cfg.Detail)
			} else {
				result.addError(subject, err.Error())
			}
		}
		if member.Method == MethodVariableInterestEntity && member.VIE == nil {
			result.addWarning(subject, "VIE member has no determination record and will be excluded")
		}
		if member.FunctionalCurrency == "" {
			result.addError(subject, "functional currency is required")
		}
	}

	for _, rule := range rules {
		if !rule.IsActive {
			continue
		}
		subject := "rule " + rule.ID
		if !rule.Type.Valid() {
			result.addError(subject, fmt.Sprintf("unknown elimination type %q", rule.Type))
			continue
		}
		if len(rule.Triggers) == 0 {
			result.addWarning(subject, "rule has no trigger conditions and will never fire")
		}
		for _, account := range []string{rule.DebitAccount, rule.CreditAccount} {
			if _, ok := catalog.ByNumber(account); !ok {
				result.addWarning(subject, fmt.Sprintf("posting account %q not in catalog; rule will be skipped", account))
			}
		}
		for _, trigger := range rule.Triggers {
			for _, sel := range trigger.Sources {
				if _, err := ResolveSelector(sel, catalog); err != nil {
					result.addWarning(subject, fmt.Sprintf("orphaned account selector: %v", err))
				}
			}
		}
		for _, sel := range []AccountSelector{rule.Source, rule.Target} {
			if sel == nil {
				continue
			}
			if _, err := ResolveSelector(sel, catalog); err != nil {
				result.addWarning(subject, fmt.Sprintf("orphaned account selector: %v", err))
			}
		}
	}

	return result
}
