package consol

import (
	"strings"
	"testing"
)

func testGroup(members ...ConsolidationMember) ConsolidationGroup {
	return ConsolidationGroup{
		ID:                "grp-1",
		Name:              "Test Group",
		ReportingCurrency: "USD",
		ParentCompanyID:   "P",
		IsActive:          true,
		Members:           members,
	}
}

func TestValidateGroupClean(t *testing.T) {
	group := testGroup(fullMember("S", "80", "20"))
	result := ValidateGroup(group, []EliminationRule{icRule("rule-1", 10)}, testCatalog())
	if result.HasErrors() {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}
	if result.HasWarnings() {
		t.Fatalf("unexpected warnings: %+v", result.Warnings)
	}
}

func TestValidateGroupPercentageError(t *testing.T) {
	group := testGroup(fullMember("C", "60", "30"))
	result := ValidateGroup(group, nil, testCatalog())
	if !result.HasErrors() {
		t.Fatal("want configuration error for 60/30 member")
	}
	if !strings.Contains(result.Errors[0].Detail, "sum to 100") {
		t.Fatalf("unexpected detail: %s", result.Errors[0].Detail)
	}
}

func TestValidateGroupInactive(t *testing.T) {
	group := testGroup(fullMember("S", "80", "20"))
	group.IsActive = false
	result := ValidateGroup(group, nil, testCatalog())
	if !result.HasErrors() {
		t.Fatal("inactive group must be an error")
	}
}

func TestValidateGroupNoMembers(t *testing.T) {
	result := ValidateGroup(testGroup(), nil, testCatalog())
	if !result.HasErrors() {
		t.Fatal("empty group must be an error")
	}
}

func TestValidateGroupDuplicateMembers(t *testing.T) {
	group := testGroup(fullMember("S", "80", "20"), fullMember("S", "80", "20"))
	result := ValidateGroup(group, nil, testCatalog())
	if !result.HasErrors() {
		t.Fatal("duplicate member ids must be an error")
	}
}

func TestValidateGroupVIEWithoutDetermination(t *testing.T) {
	vie := ConsolidationMember{
		CompanyID:          "V",
		OwnershipPct:       dec("40"),
		NCIPct:             dec("60"),
		Method:             MethodVariableInterestEntity,
		FunctionalCurrency: "USD",
	}
	result := ValidateGroup(testGroup(vie), nil, testCatalog())
	if result.HasErrors() {
		t.Fatalf("VIE without determination is a warning, not an error: %+v", result.Errors)
	}
	if !result.HasWarnings() {
		t.Fatal("want warning for VIE member without determination record")
	}
}

func TestValidateGroupOrphanedSelectorWarns(t *testing.T) {
	rule := icRule("rule-1", 10)
	rule.Triggers[0].Sources = []AccountSelector{SelectByID{AccountID: "a-gone"}}
	result := ValidateGroup(testGroup(fullMember("S", "80", "20")), []EliminationRule{rule}, testCatalog())
	if result.HasErrors() {
		t.Fatalf("orphaned selector must degrade to warning: %+v", result.Errors)
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w.Detail, "orphaned account selector") {
			found = true
		}
	}
	if !found {
		t.Fatalf("want orphaned selector warning, got %+v", result.Warnings)
	}
}

func TestValidateGroupOrphanedMatchSelectorWarns(t *testing.T) {
	rule := icRule("rule-1", 10)
	rule.Source = SelectByID{AccountID: "a-gone"}
	result := ValidateGroup(testGroup(fullMember("S", "80", "20")), []EliminationRule{rule}, testCatalog())
	if result.HasErrors() {
		t.Fatalf("orphaned match selector must degrade to warning: %+v", result.Errors)
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w.Detail, "orphaned account selector") && strings.Contains(w.Detail, "a-gone") {
			found = true
		}
	}
	if !found {
		t.Fatalf("want orphaned selector warning naming the account, got %+v", result.Warnings)
	}
}

func TestValidateGroupUnknownPostingAccountWarns(t *testing.T) {
	rule := icRule("rule-1", 10)
	rule.CreditAccount = "8888"
	result := ValidateGroup(testGroup(fullMember("S", "80", "20")), []EliminationRule{rule}, testCatalog())
	if result.HasErrors() {
		t.Fatalf("unknown posting account must degrade to warning: %+v", result.Errors)
	}
	if !result.HasWarnings() {
		t.Fatal("want warning for unknown posting account")
	}
}
