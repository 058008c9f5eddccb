package bitso

import (
	"context"
	"errors"
	"fmt"

	"pitrader/internal/model"
)

// LatestPrice returns the last traded price of pair, stamped with the
// local poll time in UTC.
func (c *Client) LatestPrice(ctx context.Context, pair string) (model.PriceSample, error) {
	t, err := c.Ticker(ctx, pair)
	if err != nil {
		return model.PriceSample{}, err
	}
	if !t.Last.IsPositive() {
		return model.PriceSample{}, errors.New("bitso: ticker has no last price")
	}
	price, _ := t.Last.Float64()
	return model.PriceSample{Pair: pair, TS: c.now().UTC(), Price: price}, nil
}

// Available returns the available balance of currency as a float,
// zero when the account holds none.
func (c *Client) Available(ctx context.Context, currency string) (float64, error) {
	balances, err := c.Balances(ctx)
	if err != nil {
		return 0, fmt.Errorf("bitso: balances: %w", err)
	}
	b, ok := balances[currency]
	if !ok {
		return 0, nil
	}
	f, _ := b.Available.Float64()
	return f, nil
}
