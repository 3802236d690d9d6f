package consol

import (
	"errors"
	"reflect"
	"testing"
)

func TestSelectorCodecRoundTrip(t *testing.T) {
	cases := []AccountSelector{
		SelectByID{AccountID: "a-1200"},
		SelectByRange{From: "1000", To: "1999"},
		SelectByCategory{Category: "IC_AR"},
	}
	for _, sel := range cases {
		raw, err := EncodeSelector(sel)
		if err != nil {
			t.Fatalf("encode %T: %v", sel, err)
		}
		got, err := DecodeSelector(raw)
		if err != nil {
			t.Fatalf("decode %T: %v", sel, err)
		}
		if !reflect.DeepEqual(sel, got) {
			t.Fatalf("round trip mismatch: %#v vs %#v", sel, got)
		}
	}
}

func TestDecodeSelectorCorruption(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"malformed json", `{"v":1,"kind":`},
		{"unknown version", `{"v":99,"kind":"by_id","account_id":"a-1"}`},
		{"unknown kind", `{"v":1,"kind":"by_magic"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeSelector([]byte(tc.data))
			var corrupt *DataCorruptionError
			if !errors.As(err, &corrupt) {
				t.Fatalf("want DataCorruptionError, got %v", err)
			}
		})
	}
}

func TestRuleCodecRoundTrip(t *testing.T) {
	minimum := dec("500")
	rule := icRule("rule-1", 10)
	rule.Triggers[0].MinimumAmount = &minimum

	raw, err := EncodeRule(rule)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeRule(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.ID != rule.ID || got.Type != rule.Type || got.Priority != rule.Priority {
		t.Fatalf("scalar fields mismatch: %#v", got)
	}
	if !reflect.DeepEqual(got.Source, rule.Source) || !reflect.DeepEqual(got.Target, rule.Target) {
		t.Fatalf("selectors mismatch: %#v vs %#v", got, rule)
	}
	if len(got.Triggers) != 1 || !reflect.DeepEqual(got.Triggers[0].Sources, rule.Triggers[0].Sources) {
		t.Fatalf("triggers mismatch: %#v", got.Triggers)
	}
	if got.Triggers[0].MinimumAmount == nil || !got.Triggers[0].MinimumAmount.Equal(minimum) {
		t.Fatalf("minimum amount lost in round trip")
	}
}

func TestDecodeRuleCorruption(t *testing.T) {
	_, err := DecodeRule([]byte(`{"v":7,"id":"rule-1"}`))
	var corrupt *DataCorruptionError
	if !errors.As(err, &corrupt) {
		t.Fatalf("want DataCorruptionError for unknown version, got %v", err)
	}

	// A corrupt nested selector must fail the whole rule.
	_, err = DecodeRule([]byte(`{"v":1,"id":"rule-1","source":{"v":1,"kind":"by_magic"}}`))
	if !errors.As(err, &corrupt) {
		t.Fatalf("want DataCorruptionError for corrupt selector, got %v", err)
	}
}

func TestRunCodecRoundTrip(t *testing.T) {
	run := pendingRun()
	run.ErrorMessage = "step ELIMINATE: boom"

	raw, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeRun(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != run.ID || got.Status != run.Status || got.ErrorMessage != run.ErrorMessage {
		t.Fatalf("round trip mismatch: %#v", got)
	}
	if len(got.Steps) != len(run.Steps) {
		t.Fatalf("steps lost in round trip")
	}
}

func TestDecodeRunCorruption(t *testing.T) {
	var corrupt *DataCorruptionError
	_, err := DecodeRun([]byte(`not json`))
	if !errors.As(err, &corrupt) {
		t.Fatalf("want DataCorruptionError, got %v", err)
	}
	_, err = DecodeRun([]byte(`{"v":42,"run":{}}`))
	if !errors.As(err, &corrupt) {
		t.Fatalf("want DataCorruptionError for unknown version, got %v", err)
	}
}
