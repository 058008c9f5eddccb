package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pitrader/internal/model"
)

// PaperExecutor simulates market fills at the decision price, adjusted by
// slippage and charged the taker fee. No exchange calls are made.
type PaperExecutor struct {
	mu       sync.RWMutex
	fills    []model.Fill
	orderSeq int64

	slippageBps int64   // basis points, e.g. 5 = 0.05%
	feeRate     float64 // fraction of notional, e.g. 0.0065
	now         func() time.Time
	log         *slog.Logger
}

// NewPaperExecutor creates a paper trading executor.
func NewPaperExecutor(slippageBps int64, feeRate float64) *PaperExecutor {
	return &PaperExecutor{
		fills:       make([]model.Fill, 0, 256),
		slippageBps: slippageBps,
		feeRate:     feeRate,
		now:         time.Now,
		log:         slog.Default().With("component", "paper"),
	}
}

// Fills returns a snapshot of all simulated fills.
func (p *PaperExecutor) Fills() []model.Fill {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]model.Fill, len(p.fills))
	copy(cp, p.fills)
	return cp
}

// Execute fills order immediately. Buys spend order.Notional, sells
// dispose of order.Size.
func (p *PaperExecutor) Execute(ctx context.Context, order model.Order) (model.Fill, error) {
	if err := ctx.Err(); err != nil {
		return model.Fill{}, err
	}
	if err := validate(order); err != nil {
		return model.Fill{}, err
	}

	slip := order.Price * float64(p.slippageBps) / 10000
	fillPrice := order.Price
	if order.Action == model.ActionBuy {
		fillPrice += slip // buy higher
	} else {
		fillPrice -= slip // sell lower
	}
	if fillPrice <= 0 {
		return model.Fill{}, fmt.Errorf("%w: slippage leaves no price", ErrInvalidOrder)
	}

	fill := model.Fill{
		Pair:     order.Pair,
		Action:   order.Action,
		Price:    fillPrice,
		Slippage: slip,
		Reason:   order.Reason,
		DryRun:   true,
		FilledAt: p.now().UTC(),
	}
	if order.Action == model.ActionBuy {
		fill.Notional = order.Notional
		fill.Size = order.Notional / fillPrice
	} else {
		fill.Size = order.Size
		fill.Notional = order.Size * fillPrice
	}
	fill.Fee = fill.Notional * p.feeRate

	p.mu.Lock()
	p.orderSeq++
	fill.OrderID = fmt.Sprintf("PAPER-%d", p.orderSeq)
	p.fills = append(p.fills, fill)
	p.mu.Unlock()

	p.log.Info("paper fill",
		"pair", fill.Pair, "action", fill.Action,
		"size", fill.Size, "price", fill.Price, "slippage", slip,
		"fee", fill.Fee, "order_id", fill.OrderID, "reason", fill.Reason)
	return fill, nil
}
