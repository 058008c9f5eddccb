// Package strategy turns indicator snapshots into BUY/SELL/HOLD signals.
//
// Three strategies are supported: a moving-average crossover, RSI
// thresholds, and a combination that requires both to agree on entries
// while letting either one force an exit. Whenever buy and sell
// conditions hold at the same time, SELL wins.
package strategy

import (
	"fmt"
	"strings"

	"pitrader/config"
	"pitrader/internal/indicator"
	"pitrader/internal/model"
)

// Kind selects the evaluation rule.
type Kind string

const (
	KindMA       Kind = config.StrategyMA
	KindRSI      Kind = config.StrategyRSI
	KindCombined Kind = config.StrategyCombined
)

// ParseKind maps a configured strategy name onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindMA, KindRSI, KindCombined:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown strategy %q", config.ErrInvalidConfig, s)
	}
}

// Trigger names the condition behind a signal.
type Trigger string

const (
	TriggerMACrossUp     Trigger = "ma_cross_up"
	TriggerMACrossDown   Trigger = "ma_cross_down"
	TriggerRSIOversold   Trigger = "rsi_oversold"
	TriggerRSIOverbought Trigger = "rsi_overbought"
	TriggerInsufficient  Trigger = "insufficient_history"
)

// Signal is the outcome of an evaluation.
type Signal struct {
	Action   model.Action `json:"action"`
	Triggers []Trigger    `json:"triggers,omitempty"`
	Reason   string       `json:"reason,omitempty"`
}

// Hold returns a HOLD signal with an optional reason.
func Hold(reason string, triggers ...Trigger) Signal {
	return Signal{Action: model.ActionHold, Reason: reason, Triggers: triggers}
}

// Has reports whether t is among the signal's triggers.
func (s Signal) Has(t Trigger) bool {
	for _, x := range s.Triggers {
		if x == t {
			return true
		}
	}
	return false
}

// vote is one strategy's opinion before tie-breaking.
type vote struct {
	buy, sell bool
	triggers  []Trigger
	ready     bool
}

// Evaluate derives the proposed signal for the configured strategy from the
// previous and current snapshots. Indicators that are not ready yet
// produce HOLD.
func Evaluate(cfg config.StrategyConfig, prior, current indicator.Snapshot) Signal {
	kind, err := ParseKind(cfg.Kind)
	if err != nil {
		// Config is validated at startup; treat anything else as no opinion.
		return Hold(err.Error())
	}

	var v vote
	switch kind {
	case KindMA:
		v = maVote(prior, current)
	case KindRSI:
		v = rsiVote(cfg, current)
	case KindCombined:
		ma := maVote(prior, current)
		rsi := rsiVote(cfg, current)
		v = vote{
			buy:      ma.buy && rsi.buy,
			sell:     ma.sell || rsi.sell,
			ready:    ma.ready || rsi.ready,
			triggers: append(append([]Trigger{}, ma.triggers...), rsi.triggers...),
		}
		if !v.sell && !v.buy {
			// A lone buy trigger is not a reason to act
			v.triggers = nil
		}
	}

	switch {
	case !v.ready:
		return Hold("insufficient history", TriggerInsufficient)
	case v.sell:
		return Signal{Action: model.ActionSell, Triggers: sellTriggers(v.triggers), Reason: describe(current, kind)}
	case v.buy:
		return Signal{Action: model.ActionBuy, Triggers: v.triggers, Reason: describe(current, kind)}
	default:
		return Hold("")
	}
}

// sellTriggers keeps only the triggers that argue for selling.
func sellTriggers(ts []Trigger) []Trigger {
	var out []Trigger
	for _, t := range ts {
		if t == TriggerMACrossDown || t == TriggerRSIOverbought {
			out = append(out, t)
		}
	}
	return out
}

func describe(s indicator.Snapshot, kind Kind) string {
	switch kind {
	case KindMA:
		return fmt.Sprintf("ma short %.4f vs long %.4f", s.MAShort.Value, s.MALong.Value)
	case KindRSI:
		return fmt.Sprintf("rsi %.2f", s.RSI.Value)
	default:
		return fmt.Sprintf("ma short %.4f vs long %.4f, rsi %.2f", s.MAShort.Value, s.MALong.Value, s.RSI.Value)
	}
}
