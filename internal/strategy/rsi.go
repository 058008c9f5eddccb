package strategy

import (
	"pitrader/config"
	"pitrader/internal/indicator"
)

// rsiVote is level based: it fires on every evaluation the RSI stays
// beyond a threshold, not only on the crossing.
func rsiVote(cfg config.StrategyConfig, current indicator.Snapshot) vote {
	if !current.RSI.Ready {
		return vote{}
	}
	v := vote{ready: true}
	if current.RSI.Value < cfg.RSIOversold {
		v.buy = true
		v.triggers = append(v.triggers, TriggerRSIOversold)
	}
	if current.RSI.Value > cfg.RSIOverbought {
		v.sell = true
		v.triggers = append(v.triggers, TriggerRSIOverbought)
	}
	return v
}
