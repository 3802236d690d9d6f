package fx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridianfin/meridian/internal/consol"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestTranslateIdentity(t *testing.T) {
	c := NewConverter()
	amount := decimal.RequireFromString("123.45")
	got, err := c.Translate(context.Background(), amount, "USD", "USD", consol.BasisClosing, date("2026-03-31"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(amount) {
		t.Fatalf("identity conversion changed amount: %s", got)
	}
}

func TestTranslateUsesLatestQuoteOnOrBefore(t *testing.T) {
	c := NewConverter()
	c.Add(
		Quote{From: "EUR", To: "USD", Rate: decimal.RequireFromString("1.05"), Type: RateClosing, AsOf: date("2026-02-28")},
		Quote{From: "EUR", To: "USD", Rate: decimal.RequireFromString("1.10"), Type: RateClosing, AsOf: date("2026-03-31")},
		Quote{From: "EUR", To: "USD", Rate: decimal.RequireFromString("1.20"), Type: RateClosing, AsOf: date("2026-04-30")},
	)

	got, err := c.Translate(context.Background(), decimal.RequireFromString("100"), "EUR", "USD", consol.BasisClosing, date("2026-03-31"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := decimal.RequireFromString("110"); !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestTranslateInversePair(t *testing.T) {
	c := NewConverter()
	c.Add(Quote{From: "USD", To: "EUR", Rate: decimal.RequireFromString("0.8"), Type: RateClosing, AsOf: date("2026-03-31")})

	got, err := c.Translate(context.Background(), decimal.RequireFromString("80"), "EUR", "USD", consol.BasisClosing, date("2026-03-31"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := decimal.RequireFromString("100"); !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestTranslateMissingRate(t *testing.T) {
	c := NewConverter()
	_, err := c.Translate(context.Background(), decimal.RequireFromString("100"), "GBP", "USD", consol.BasisClosing, date("2026-03-31"))
	if !errors.Is(err, ErrRateNotFound) {
		t.Fatalf("want ErrRateNotFound, got %v", err)
	}
}

func TestTranslateBasisSeparation(t *testing.T) {
	c := NewConverter()
	c.Add(
		Quote{From: "EUR", To: "USD", Rate: decimal.RequireFromString("1.10"), Type: RateClosing, AsOf: date("2026-03-31")},
		Quote{From: "EUR", To: "USD", Rate: decimal.RequireFromString("1.07"), Type: RateAverage, AsOf: date("2026-03-31")},
	)

	closing, err := c.Translate(context.Background(), decimal.RequireFromString("100"), "EUR", "USD", consol.BasisClosing, date("2026-03-31"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := decimal.RequireFromString("110"); !closing.Equal(want) {
		t.Fatalf("closing basis: got %s, want %s", closing, want)
	}

	average, err := c.Translate(context.Background(), decimal.RequireFromString("100"), "EUR", "USD", consol.BasisAverage, date("2026-03-31"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := decimal.RequireFromString("107"); !average.Equal(want) {
		t.Fatalf("average basis: got %s, want %s", average, want)
	}
}

func TestTranslateBasisWithoutQuotesFails(t *testing.T) {
	c := NewConverter()
	c.Add(Quote{From: "EUR", To: "USD", Rate: decimal.RequireFromString("1.07"), Type: RateClosing, AsOf: date("2026-03-31")})

	_, err := c.Translate(context.Background(), decimal.RequireFromString("100"), "EUR", "USD", consol.BasisAverage, date("2026-03-31"))
	if !errors.Is(err, ErrRateNotFound) {
		t.Fatalf("average basis must not fall back to closing quotes, got %v", err)
	}
}
