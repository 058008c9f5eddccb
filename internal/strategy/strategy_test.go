package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pitrader/config"
	"pitrader/internal/indicator"
	"pitrader/internal/model"
)

func r(v float64) indicator.Reading { return indicator.Reading{Value: v, Ready: true} }

func snap(short, long, rsi float64) indicator.Snapshot {
	return indicator.Snapshot{MAShort: r(short), MALong: r(long), RSI: r(rsi)}
}

func cfgFor(kind string) config.StrategyConfig {
	c := config.DefaultStrategyConfig()
	c.Kind = kind
	return c
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"ma": KindMA, " RSI ": KindRSI, "Combined": KindCombined} {
		got, err := ParseKind(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseKind("macd")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestMA_Crossovers(t *testing.T) {
	cfg := cfgFor(config.StrategyMA)
	tests := []struct {
		name          string
		prior, curr   indicator.Snapshot
		want          model.Action
		wantTrigger   Trigger
		expectTrigger bool
	}{
		{"cross up", snap(9, 10, 50), snap(11, 10, 50), model.ActionBuy, TriggerMACrossUp, true},
		{"cross up from equal", snap(10, 10, 50), snap(10.5, 10, 50), model.ActionBuy, TriggerMACrossUp, true},
		{"cross down", snap(11, 10, 50), snap(9, 10, 50), model.ActionSell, TriggerMACrossDown, true},
		{"cross down from equal", snap(10, 10, 50), snap(9.5, 10, 50), model.ActionSell, TriggerMACrossDown, true},
		{"stays above", snap(11, 10, 50), snap(12, 10, 50), model.ActionHold, "", false},
		{"stays below", snap(8, 10, 50), snap(9, 10, 50), model.ActionHold, "", false},
		{"touches equal", snap(9, 10, 50), snap(10, 10, 50), model.ActionHold, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := Evaluate(cfg, tt.prior, tt.curr)
			assert.Equal(t, tt.want, sig.Action)
			if tt.expectTrigger {
				assert.True(t, sig.Has(tt.wantTrigger), "triggers=%v", sig.Triggers)
			}
		})
	}
}

func TestMA_AbsentCurrentHolds(t *testing.T) {
	cfg := cfgFor(config.StrategyMA)

	missingCurrent := snap(11, 10, 50)
	missingCurrent.MAShort = indicator.Reading{}
	sig := Evaluate(cfg, snap(9, 10, 50), missingCurrent)
	assert.Equal(t, model.ActionHold, sig.Action)
	assert.True(t, sig.Has(TriggerInsufficient))

	missingCurrent = snap(11, 10, 50)
	missingCurrent.MALong = indicator.Reading{}
	sig = Evaluate(cfg, indicator.Snapshot{}, missingCurrent)
	assert.Equal(t, model.ActionHold, sig.Action)
}

func TestMA_FirstReadyLongAverage(t *testing.T) {
	cfg := cfgFor(config.StrategyMA)
	noLong := snap(9, 10, 50)
	noLong.MALong = indicator.Reading{}

	sig := Evaluate(cfg, noLong, snap(11, 10, 50))
	assert.Equal(t, model.ActionBuy, sig.Action)
	assert.True(t, sig.Has(TriggerMACrossUp))

	// Below on the first ready tick is not a down-cross.
	sig = Evaluate(cfg, noLong, snap(9, 10, 50))
	assert.Equal(t, model.ActionHold, sig.Action)
	assert.False(t, sig.Has(TriggerInsufficient))
}

func TestRSI_Levels(t *testing.T) {
	cfg := cfgFor(config.StrategyRSI)
	prior := indicator.Snapshot{}

	assert.Equal(t, model.ActionBuy, Evaluate(cfg, prior, snap(0, 0, 25)).Action)
	assert.Equal(t, model.ActionSell, Evaluate(cfg, prior, snap(0, 0, 75)).Action)
	assert.Equal(t, model.ActionHold, Evaluate(cfg, prior, snap(0, 0, 30)).Action, "threshold is strict")
	assert.Equal(t, model.ActionHold, Evaluate(cfg, prior, snap(0, 0, 70)).Action, "threshold is strict")
	assert.Equal(t, model.ActionHold, Evaluate(cfg, prior, snap(0, 0, indicator.FlatRSI)).Action)

	// Level based: the same reading keeps firing.
	for i := 0; i < 3; i++ {
		assert.Equal(t, model.ActionBuy, Evaluate(cfg, prior, snap(0, 0, 10)).Action)
	}

	notReady := indicator.Snapshot{}
	assert.Equal(t, model.ActionHold, Evaluate(cfg, prior, notReady).Action)
}

func TestCombined_TruthTable(t *testing.T) {
	cfg := cfgFor(config.StrategyCombined)

	// MA votes: up / down / none. RSI votes: oversold / overbought / neutral.
	maStates := map[string][2]indicator.Snapshot{
		"up":   {snap(9, 10, 0), snap(11, 10, 0)},
		"down": {snap(11, 10, 0), snap(9, 10, 0)},
		"none": {snap(11, 10, 0), snap(12, 10, 0)},
	}
	rsiStates := map[string]float64{"oversold": 20, "overbought": 80, "neutral": 50}

	for maName, ma := range maStates {
		for rsiName, rsiVal := range rsiStates {
			prior := ma[0]
			curr := ma[1]
			curr.RSI = r(rsiVal)

			maBuy, maSell := maName == "up", maName == "down"
			rsiBuy, rsiSell := rsiName == "oversold", rsiName == "overbought"

			want := model.ActionHold
			switch {
			case maSell || rsiSell:
				want = model.ActionSell
			case maBuy && rsiBuy:
				want = model.ActionBuy
			}

			sig := Evaluate(cfg, prior, curr)
			assert.Equal(t, want, sig.Action, "ma=%s rsi=%s", maName, rsiName)
		}
	}
}

func TestCombined_SellWinsTie(t *testing.T) {
	cfg := cfgFor(config.StrategyCombined)
	// MA crosses up while RSI is overbought: buy and sell both hold.
	prior := snap(9, 10, 80)
	curr := snap(11, 10, 80)
	sig := Evaluate(cfg, prior, curr)
	assert.Equal(t, model.ActionSell, sig.Action)
	assert.Equal(t, []Trigger{TriggerRSIOverbought}, sig.Triggers)
}

func TestCombined_RSISellWithoutMAHistory(t *testing.T) {
	cfg := cfgFor(config.StrategyCombined)
	curr := indicator.Snapshot{RSI: r(90)}
	sig := Evaluate(cfg, indicator.Snapshot{}, curr)
	assert.Equal(t, model.ActionSell, sig.Action)
}

func TestCombined_NothingReady(t *testing.T) {
	sig := Evaluate(cfgFor(config.StrategyCombined), indicator.Snapshot{}, indicator.Snapshot{})
	assert.Equal(t, model.ActionHold, sig.Action)
	assert.True(t, sig.Has(TriggerInsufficient))
}

func TestEvaluate_UnknownKindHolds(t *testing.T) {
	sig := Evaluate(cfgFor("bogus"), snap(9, 10, 10), snap(11, 10, 10))
	assert.Equal(t, model.ActionHold, sig.Action)
}
