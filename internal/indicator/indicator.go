// Package indicator computes technical indicators over an ordered price
// series (oldest first).
//
// Every function is pure: it reads the slice and never retains or mutates
// it. A series too short for the requested period yields a Reading with
// Ready=false instead of an error.
package indicator

import "pitrader/config"

// Reading is one indicator value. Value is meaningless unless Ready.
type Reading struct {
	Value float64 `json:"value"`
	Ready bool    `json:"ready"`
}

func ready(v float64) Reading { return Reading{Value: v, Ready: true} }

// Snapshot holds the indicator readings the strategies consume,
// computed over the same series.
type Snapshot struct {
	MAShort Reading `json:"ma_short"`
	MALong  Reading `json:"ma_long"`
	RSI     Reading `json:"rsi"`
}

// Compute builds a Snapshot for prices using the configured periods.
func Compute(cfg config.StrategyConfig, prices []float64) Snapshot {
	var snap Snapshot
	if v, ok := MovingAverage(prices, cfg.MAShortPeriod); ok {
		snap.MAShort = ready(v)
	}
	if v, ok := MovingAverage(prices, cfg.MALongPeriod); ok {
		snap.MALong = ready(v)
	}
	if v, ok := RSI(prices, cfg.RSIPeriod); ok {
		snap.RSI = ready(v)
	}
	return snap
}
