package pg

import (
	"context"

	"github.com/meridianfin/meridian/internal/consol/fx"
)

// FXQuotes loads the exchange-rate quotes the converter translates with.
// Both closing and average quotes are returned; the converter separates
// them by type.
func (c *Catalog) FXQuotes(ctx context.Context) ([]fx.Quote, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT from_currency, to_currency, rate, rate_type, as_of
		 FROM fx_rates ORDER BY from_currency, to_currency, rate_type, as_of`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quotes []fx.Quote
	for rows.Next() {
		var q fx.Quote
		if err := rows.Scan(&q.From, &q.To, &q.Rate, &q.Type, &q.AsOf); err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}
