// Package fx provides currency translation over an in-memory quote table.
// It backs the consolidation Translate step; rate sourcing (treasury feed,
// rates table) is upstream of this package.
package fx

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridianfin/meridian/internal/consol"
)

// ErrRateNotFound is returned when no quote covers the requested pair on or
// before the as-of date.
var ErrRateNotFound = errors.New("fx: rate not found")

// RateType classifies a quote.
type RateType string

const (
	// RateClosing is the spot rate at period end, used for balance sheet
	// positions.
	RateClosing RateType = "CLOSING"
	// RateAverage is the period average, used for income statement flows.
	RateAverage RateType = "AVERAGE"
)

// Quote is one observed exchange rate.
type Quote struct {
	From string
	To   string
	Rate decimal.Decimal
	Type RateType
	AsOf time.Time
}

type pairKey struct {
	from string
	to   string
	typ  RateType
}

// Converter translates amounts using the most recent quote on or before the
// as-of date, picking closing or average quotes per the requested basis.
// Safe for concurrent use; the Translate step fans out per member.
type Converter struct {
	mu     sync.RWMutex
	quotes map[pairKey][]Quote
}

// NewConverter builds an empty converter; callers feed it with Add.
func NewConverter() *Converter {
	return &Converter{quotes: make(map[pairKey][]Quote)}
}

// Add registers quotes. Quotes for the same pair are kept sorted by date so
// lookup can binary-search for the latest applicable one.
func (c *Converter) Add(quotes ...Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, q := range quotes {
		key := pairKey{from: q.From, to: q.To, typ: q.Type}
		c.quotes[key] = append(c.quotes[key], q)
		sort.Slice(c.quotes[key], func(i, j int) bool {
			return c.quotes[key][i].AsOf.Before(c.quotes[key][j].AsOf)
		})
	}
}

// Rate returns the latest quote of the given type for the pair on or before
// asOf. The inverse pair is consulted when no direct quote exists.
func (c *Converter) Rate(from, to string, typ RateType, asOf time.Time) (decimal.Decimal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if rate, ok := c.lookup(from, to, typ, asOf); ok {
		return rate, nil
	}
	if rate, ok := c.lookup(to, from, typ, asOf); ok && !rate.IsZero() {
		return decimal.NewFromInt(1).DivRound(rate, 12), nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s/%s %s as of %s", ErrRateNotFound, from, to, typ, asOf.Format("2006-01-02"))
}

func (c *Converter) lookup(from, to string, typ RateType, asOf time.Time) (decimal.Decimal, bool) {
	series := c.quotes[pairKey{from: from, to: to, typ: typ}]
	if len(series) == 0 {
		return decimal.Zero, false
	}
	idx := sort.Search(len(series), func(i int) bool {
		return series[i].AsOf.After(asOf)
	})
	if idx == 0 {
		return decimal.Zero, false
	}
	return series[idx-1].Rate, true
}

// Translate converts an amount between currencies as of a date. Identity
// conversions return the amount untouched so same-currency members carry no
// rounding noise.
func (c *Converter) Translate(ctx context.Context, amount decimal.Decimal, from, to string, basis consol.TranslationBasis, asOf time.Time) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	if from == to {
		return amount, nil
	}
	typ := RateClosing
	if basis == consol.BasisAverage {
		typ = RateAverage
	}
	rate, err := c.Rate(from, to, typ, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate), nil
}
