// Package engine runs the decision cycle of one trading pair:
//
//	FETCH → UPDATE_HISTORY → EVALUATE → GATE → EMIT
//
// A cycle either completes (possibly with HOLD) or fails before the history
// is touched. Cycles of the same pair never overlap.
package engine

import (
	"pitrader/config"
	"pitrader/internal/indicator"
	"pitrader/internal/model"
	"pitrader/internal/risk"
	"pitrader/internal/strategy"
)

// Evaluation is the full result of evaluating one price series.
type Evaluation struct {
	Prior    indicator.Snapshot `json:"prior"`
	Current  indicator.Snapshot `json:"current"`
	Proposed strategy.Signal    `json:"proposed"`
	Final    strategy.Signal    `json:"final"`
}

// Evaluate computes the prior snapshot (every price but the newest) and the
// current snapshot (every price), runs the strategy, then the risk gate at
// the newest price. An empty series yields HOLD.
func Evaluate(cfg config.StrategyConfig, prices []float64, pos model.Position) Evaluation {
	if len(prices) == 0 {
		hold := strategy.Hold("no price history", strategy.TriggerInsufficient)
		return Evaluation{Proposed: hold, Final: hold}
	}

	ev := Evaluation{
		Prior:   indicator.Compute(cfg, prices[:len(prices)-1]),
		Current: indicator.Compute(cfg, prices),
	}
	ev.Proposed = strategy.Evaluate(cfg, ev.Prior, ev.Current)
	ev.Final = risk.ApplyRiskControls(cfg, pos, prices[len(prices)-1], ev.Proposed)
	return ev
}

// RunCycle returns the final gated signal for the history and position,
// with the indicator snapshot it was derived from.
func RunCycle(cfg config.StrategyConfig, prices []float64, pos model.Position) (strategy.Signal, indicator.Snapshot) {
	ev := Evaluate(cfg, prices, pos)
	return ev.Final, ev.Current
}
