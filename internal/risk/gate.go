// Package risk applies position-aware controls to a proposed signal before
// anything is allowed to trade.
package risk

import (
	"fmt"
	"math"

	"pitrader/config"
	"pitrader/internal/model"
	"pitrader/internal/strategy"
)

// Gate triggers appended to the signal's provenance.
const (
	TriggerStopLoss      strategy.Trigger = "stop_loss"
	TriggerTakeProfit    strategy.Trigger = "take_profit"
	TriggerNoPyramiding  strategy.Trigger = "no_pyramiding"
	TriggerNothingToSell strategy.Trigger = "nothing_to_sell"
	TriggerInvalidAmount strategy.Trigger = "invalid_trade_amount"
)

// levelTolerance absorbs float rounding of the percentage arithmetic so the
// stop-loss and take-profit boundaries stay inclusive (entry 100, tp 10%
// must fire at exactly 110).
const levelTolerance = 1e-9

// Levels returns the stop-loss and take-profit prices for an entry price.
func Levels(cfg config.StrategyConfig, entry float64) (stopLoss, takeProfit float64) {
	return entry * (1 - cfg.StopLossPct/100), entry * (1 + cfg.TakeProfitPct/100)
}

// ApplyRiskControls returns the final signal for price given the current
// position. It never mutates pos.
//
// With an open position, a stop-loss or take-profit breach forces SELL
// regardless of the proposal, and BUY is downgraded to HOLD. Without one,
// SELL is downgraded to HOLD and BUY needs a positive trade amount.
func ApplyRiskControls(cfg config.StrategyConfig, pos model.Position, price float64, proposed strategy.Signal) strategy.Signal {
	if pos.IsOpen {
		stop, take := Levels(cfg, pos.EntryPrice)
		tol := pos.EntryPrice * levelTolerance
		switch {
		case price <= stop+tol:
			return forced(proposed, TriggerStopLoss,
				fmt.Sprintf("stop loss: price %.4f <= %.4f (entry %.4f, -%.2f%%)", price, stop, pos.EntryPrice, cfg.StopLossPct))
		case price >= take-tol:
			return forced(proposed, TriggerTakeProfit,
				fmt.Sprintf("take profit: price %.4f >= %.4f (entry %.4f, +%.2f%%)", price, take, pos.EntryPrice, cfg.TakeProfitPct))
		}
		if proposed.Action == model.ActionBuy {
			return downgrade(proposed, TriggerNoPyramiding, "position already open")
		}
		return proposed
	}

	switch proposed.Action {
	case model.ActionSell:
		return downgrade(proposed, TriggerNothingToSell, "no open position")
	case model.ActionBuy:
		if !validAmount(cfg.TradeAmount) {
			return downgrade(proposed, TriggerInvalidAmount, fmt.Sprintf("trade amount %v", cfg.TradeAmount))
		}
	}
	return proposed
}

func validAmount(a float64) bool {
	return a > 0 && !math.IsInf(a, 0)
}

func forced(proposed strategy.Signal, t strategy.Trigger, reason string) strategy.Signal {
	return strategy.Signal{
		Action:   model.ActionSell,
		Triggers: withTrigger(proposed.Triggers, t),
		Reason:   reason,
	}
}

func downgrade(proposed strategy.Signal, t strategy.Trigger, reason string) strategy.Signal {
	return strategy.Signal{
		Action:   model.ActionHold,
		Triggers: withTrigger(proposed.Triggers, t),
		Reason:   reason,
	}
}

// withTrigger copies ts so the caller's slice is never aliased.
func withTrigger(ts []strategy.Trigger, t strategy.Trigger) []strategy.Trigger {
	out := make([]strategy.Trigger, 0, len(ts)+1)
	out = append(out, ts...)
	return append(out, t)
}
