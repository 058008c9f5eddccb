package execution

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"pitrader/internal/model"
	"pitrader/pkg/bitso"
)

// Exchange is the part of the Bitso client the live executor uses.
type Exchange interface {
	PlaceOrder(ctx context.Context, req bitso.OrderRequest) (string, error)
	Available(ctx context.Context, currency string) (float64, error)
}

// LiveExecutor sends market orders to Bitso. Buys are sized in quote
// currency (minor), sells in base units (major) clipped to the balance
// the exchange reports.
type LiveExecutor struct {
	ex       Exchange
	minimums *Minimums
	feeRate  float64
	now      func() time.Time
	log      *slog.Logger
}

// NewLiveExecutor creates a live executor. feeRate only estimates fees in
// the returned fill; the exchange charges its own.
func NewLiveExecutor(ex Exchange, minimums *Minimums, feeRate float64) *LiveExecutor {
	if minimums == nil {
		minimums = NewMinimums()
	}
	return &LiveExecutor{
		ex:       ex,
		minimums: minimums,
		feeRate:  feeRate,
		now:      time.Now,
		log:      slog.Default().With("component", "live"),
	}
}

// Execute places order as a market order. The fill price is the decision
// price; the exchange's actual average price is not queried.
func (l *LiveExecutor) Execute(ctx context.Context, order model.Order) (model.Fill, error) {
	if err := validate(order); err != nil {
		return model.Fill{}, err
	}
	minSize := l.minimums.For(order.Pair)

	req := bitso.OrderRequest{Book: order.Pair, Type: "market"}
	fill := model.Fill{
		Pair:   order.Pair,
		Action: order.Action,
		Price:  order.Price,
		Reason: order.Reason,
	}

	switch order.Action {
	case model.ActionBuy:
		size := order.Notional / order.Price
		if size < minSize {
			return model.Fill{}, fmt.Errorf("%w: %s buy of %.8f < %.8f", ErrBelowMinimum, order.Pair, size, minSize)
		}
		req.Side = bitso.SideBuy
		req.Minor = decimal.NewFromFloat(order.Notional).Round(2)
		fill.Notional = order.Notional
		fill.Size = size

	case model.ActionSell:
		base := model.BaseAsset(order.Pair)
		avail, err := l.ex.Available(ctx, base)
		if err != nil {
			return model.Fill{}, fmt.Errorf("live: %s balance: %w", base, err)
		}
		size := math.Min(order.Size, avail)
		if size < minSize {
			return model.Fill{}, fmt.Errorf("%w: %s sell of %.8f (balance %.8f) < %.8f",
				ErrBelowMinimum, order.Pair, size, avail, minSize)
		}
		if size < order.Size {
			l.log.Warn("sell clipped to exchange balance",
				"pair", order.Pair, "requested", order.Size, "available", avail)
		}
		req.Side = bitso.SideSell
		req.Major = decimal.NewFromFloat(size).Truncate(8)
		fill.Size = size
		fill.Notional = size * order.Price
	}

	oid, err := l.ex.PlaceOrder(ctx, req)
	if err != nil {
		return model.Fill{}, fmt.Errorf("live: place %s %s: %w", order.Action, order.Pair, err)
	}
	fill.OrderID = oid
	fill.Fee = fill.Notional * l.feeRate
	fill.FilledAt = l.now().UTC()

	l.log.Info("order placed",
		"pair", fill.Pair, "action", fill.Action, "size", fill.Size,
		"price", fill.Price, "order_id", oid, "reason", fill.Reason)
	return fill, nil
}
