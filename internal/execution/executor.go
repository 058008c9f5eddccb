// Package execution turns gated decisions into fills, either simulated
// (paper) or as Bitso market orders (live).
package execution

import (
	"context"
	"errors"
	"fmt"
	"math"

	"pitrader/internal/model"
)

var (
	// ErrInvalidOrder is returned for orders with no usable price or amount.
	ErrInvalidOrder = errors.New("execution: invalid order")
	// ErrBelowMinimum is returned when an order is smaller than the book allows.
	ErrBelowMinimum = errors.New("execution: amount below minimum trade size")
)

// Executor places one order and reports how it filled.
type Executor interface {
	Execute(ctx context.Context, order model.Order) (model.Fill, error)
}

func validate(o model.Order) error {
	if !(o.Price > 0) || math.IsInf(o.Price, 0) {
		return fmt.Errorf("%w: %s price %v", ErrInvalidOrder, o.Pair, o.Price)
	}
	switch o.Action {
	case model.ActionBuy:
		if !(o.Notional > 0) || math.IsInf(o.Notional, 0) {
			return fmt.Errorf("%w: %s buy notional %v", ErrInvalidOrder, o.Pair, o.Notional)
		}
	case model.ActionSell:
		if !(o.Size > 0) || math.IsInf(o.Size, 0) {
			return fmt.Errorf("%w: %s sell size %v", ErrInvalidOrder, o.Pair, o.Size)
		}
	default:
		return fmt.Errorf("%w: %s action %q is not tradable", ErrInvalidOrder, o.Pair, o.Action)
	}
	return nil
}
