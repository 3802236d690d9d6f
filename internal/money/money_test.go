package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestMinorUnitScale(t *testing.T) {
	cases := []struct {
		code string
		want int32
	}{
		{"USD", 2},
		{"EUR", 2},
		{"JPY", 0},
		{"KWD", 3},
		{"usd", 2},
		{"NOPE", DefaultScale},
	}
	for _, tc := range cases {
		if got := MinorUnitScale(tc.code); got != tc.want {
			t.Fatalf("%s: want scale %d, got %d", tc.code, tc.want, got)
		}
	}
}

func TestRoundBankers(t *testing.T) {
	cases := []struct {
		in   string
		ccy  string
		want string
	}{
		{"0.125", "USD", "0.12"},
		{"0.135", "USD", "0.14"},
		{"2.5", "JPY", "2"},
		{"3.5", "JPY", "4"},
		{"1.0005", "KWD", "1"},
	}
	for _, tc := range cases {
		got := Round(dec(tc.in), tc.ccy)
		if !got.Equal(dec(tc.want)) {
			t.Fatalf("round %s %s: want %s, got %s", tc.in, tc.ccy, tc.want, got)
		}
	}
}

func TestWithinMinorUnit(t *testing.T) {
	if !WithinMinorUnit(dec("100.00"), dec("100.01"), "USD") {
		t.Fatal("one cent apart must be within tolerance")
	}
	if WithinMinorUnit(dec("100.00"), dec("100.02"), "USD") {
		t.Fatal("two cents apart must be outside tolerance")
	}
	if !WithinMinorUnit(dec("100"), dec("101"), "JPY") {
		t.Fatal("one yen apart must be within tolerance")
	}
}

func TestPercent(t *testing.T) {
	if !Percent(dec("20")).Equal(dec("0.2")) {
		t.Fatalf("want 0.2, got %s", Percent(dec("20")))
	}
}
