package consol

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Serialization contract for structured sub-objects persisted as JSON. Each
// document carries a version; decoding an unknown version or malformed
// payload fails loudly with DataCorruptionError — stored financial data is
// never substituted with defaults.

const selectorDocVersion = 1

const (
	selectorKindID       = "by_id"
	selectorKindRange    = "by_range"
	selectorKindCategory = "by_category"
)

type selectorDoc struct {
	Version   int    `json:"v"`
	Kind      string `json:"kind"`
	AccountID string `json:"account_id,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Category  string `json:"category,omitempty"`
}

// EncodeSelector serialises an account selector into its versioned document.
func EncodeSelector(sel AccountSelector) ([]byte, error) {
	doc := selectorDoc{Version: selectorDocVersion}
	switch s := sel.(type) {
	case SelectByID:
		doc.Kind = selectorKindID
		doc.AccountID = s.AccountID
	case SelectByRange:
		doc.Kind = selectorKindRange
		doc.From = s.From
		doc.To = s.To
	case SelectByCategory:
		doc.Kind = selectorKindCategory
		doc.Category = s.Category
	default:
		return nil, fmt.Errorf("consol: unhandled selector variant %T", sel)
	}
	return json.Marshal(doc)
}

// DecodeSelector parses a versioned selector document.
func DecodeSelector(data []byte) (AccountSelector, error) {
	var doc selectorDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &DataCorruptionError{Field: "account_selector", Cause: err}
	}
	if doc.Version != selectorDocVersion {
		return nil, &DataCorruptionError{Field: "account_selector", Cause: fmt.Errorf("unsupported version %d", doc.Version)}
	}
	switch doc.Kind {
	case selectorKindID:
		return SelectByID{AccountID: doc.AccountID}, nil
	case selectorKindRange:
		return SelectByRange{From: doc.From, To: doc.To}, nil
	case selectorKindCategory:
		return SelectByCategory{Category: doc.Category}, nil
	default:
		return nil, &DataCorruptionError{Field: "account_selector", Cause: fmt.Errorf("unknown kind %q", doc.Kind)}
	}
}

const ruleDocVersion = 1

type triggerDoc struct {
	Description   string            `json:"description"`
	Sources       []json.RawMessage `json:"sources"`
	MinimumAmount *decimal.Decimal  `json:"minimum_amount,omitempty"`
}

type ruleDoc struct {
	Version       int             `json:"v"`
	ID            string          `json:"id"`
	GroupID       string          `json:"group_id"`
	Name          string          `json:"name"`
	Type          EliminationType `json:"type"`
	Triggers      []triggerDoc    `json:"triggers"`
	Source        json.RawMessage `json:"source,omitempty"`
	Target        json.RawMessage `json:"target,omitempty"`
	DebitAccount  string          `json:"debit_account"`
	CreditAccount string          `json:"credit_account"`
	IsAutomatic   bool            `json:"is_automatic"`
	Priority      int             `json:"priority"`
	IsActive      bool            `json:"is_active"`
}

// EncodeRule serialises an elimination rule, selectors included.
func EncodeRule(rule EliminationRule) ([]byte, error) {
	doc := ruleDoc{
		Version:       ruleDocVersion,
		ID:            rule.ID,
		GroupID:       rule.GroupID,
		Name:          rule.Name,
		Type:          rule.Type,
		DebitAccount:  rule.DebitAccount,
		CreditAccount: rule.CreditAccount,
		IsAutomatic:   rule.IsAutomatic,
		Priority:      rule.Priority,
		IsActive:      rule.IsActive,
	}
	for _, trigger := range rule.Triggers {
		td := triggerDoc{Description: trigger.Description, MinimumAmount: trigger.MinimumAmount}
		for _, sel := range trigger.Sources {
			raw, err := EncodeSelector(sel)
			if err != nil {
				return nil, err
			}
			td.Sources = append(td.Sources, raw)
		}
		doc.Triggers = append(doc.Triggers, td)
	}
	if rule.Source != nil {
		raw, err := EncodeSelector(rule.Source)
		if err != nil {
			return nil, err
		}
		doc.Source = raw
	}
	if rule.Target != nil {
		raw, err := EncodeSelector(rule.Target)
		if err != nil {
			return nil, err
		}
		doc.Target = raw
	}
	return json.Marshal(doc)
}

// DecodeRule parses a versioned rule document.
func DecodeRule(data []byte) (EliminationRule, error) {
	var doc ruleDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return EliminationRule{}, &DataCorruptionError{Field: "elimination_rule", Cause: err}
	}
	if doc.Version != ruleDocVersion {
		return EliminationRule{}, &DataCorruptionError{Field: "elimination_rule", Cause: fmt.Errorf("unsupported version %d", doc.Version)}
	}
	rule := EliminationRule{
		ID:            doc.ID,
		GroupID:       doc.GroupID,
		Name:          doc.Name,
		Type:          doc.Type,
		DebitAccount:  doc.DebitAccount,
		CreditAccount: doc.CreditAccount,
		IsAutomatic:   doc.IsAutomatic,
		Priority:      doc.Priority,
		IsActive:      doc.IsActive,
	}
	for _, td := range doc.Triggers {
		trigger := TriggerCondition{Description: td.Description, MinimumAmount: td.MinimumAmount}
		for _, raw := range td.Sources {
			sel, err := DecodeSelector(raw)
			if err != nil {
				return EliminationRule{}, err
			}
			trigger.Sources = append(trigger.Sources, sel)
		}
		rule.Triggers = append(rule.Triggers, trigger)
	}
	if len(doc.Source) > 0 {
		sel, err := DecodeSelector(doc.Source)
		if err != nil {
			return EliminationRule{}, err
		}
		rule.Source = sel
	}
	if len(doc.Target) > 0 {
		sel, err := DecodeSelector(doc.Target)
		if err != nil {
			return EliminationRule{}, err
		}
		rule.Target = sel
	}
	return rule, nil
}

const runDocVersion = 1

type runDoc struct {
	Version int              `json:"v"`
	Run     ConsolidationRun `json:"run"`
}

// EncodeRun serialises a run, trial balance and validation result included.
func EncodeRun(run ConsolidationRun) ([]byte, error) {
	return json.Marshal(runDoc{Version: runDocVersion, Run: run})
}

// DecodeRun parses a versioned run document.
func DecodeRun(data []byte) (ConsolidationRun, error) {
	var doc runDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return ConsolidationRun{}, &DataCorruptionError{Field: "consolidation_run", Cause: err}
	}
	if doc.Version != runDocVersion {
		return ConsolidationRun{}, &DataCorruptionError{Field: "consolidation_run", Cause: fmt.Errorf("unsupported version %d", doc.Version)}
	}
	return doc.Run, nil
}
