package risk

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pitrader/config"
	"pitrader/internal/model"
	"pitrader/internal/strategy"
)

var (
	buy  = strategy.Signal{Action: model.ActionBuy, Triggers: []strategy.Trigger{strategy.TriggerMACrossUp}}
	sell = strategy.Signal{Action: model.ActionSell, Triggers: []strategy.Trigger{strategy.TriggerRSIOverbought}}
	hold = strategy.Hold("")
)

func open(entry float64) model.Position {
	return model.Position{Pair: "eth_mxn", IsOpen: true, EntryPrice: entry, Size: 1, OpenedAt: time.Now()}
}

func TestApplyRiskControls_OpenPosition(t *testing.T) {
	cfg := config.DefaultStrategyConfig() // 5% / 10%
	pos := open(100)

	tests := []struct {
		name     string
		price    float64
		proposed strategy.Signal
		want     model.Action
		trigger  strategy.Trigger
	}{
		{"stop loss on hold", 94.9, hold, model.ActionSell, TriggerStopLoss},
		{"stop loss overrides buy", 90, buy, model.ActionSell, TriggerStopLoss},
		{"take profit on hold", 110.5, hold, model.ActionSell, TriggerTakeProfit},
		{"take profit overrides buy", 130, buy, model.ActionSell, TriggerTakeProfit},
		{"no pyramiding", 101, buy, model.ActionHold, TriggerNoPyramiding},
		{"sell passes", 101, sell, model.ActionSell, strategy.TriggerRSIOverbought},
		{"hold passes", 99, hold, model.ActionHold, ""},
		{"just above stop", 95.01, hold, model.ActionHold, ""},
		{"just below take", 109.99, hold, model.ActionHold, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyRiskControls(cfg, pos, tt.price, tt.proposed)
			assert.Equal(t, tt.want, got.Action)
			if tt.trigger != "" {
				assert.True(t, got.Has(tt.trigger), "triggers=%v", got.Triggers)
			}
		})
	}
}

func TestApplyRiskControls_NoPosition(t *testing.T) {
	cfg := config.DefaultStrategyConfig()
	flat := model.Position{Pair: "eth_mxn"}

	got := ApplyRiskControls(cfg, flat, 100, sell)
	assert.Equal(t, model.ActionHold, got.Action)
	assert.True(t, got.Has(TriggerNothingToSell))

	assert.Equal(t, model.ActionBuy, ApplyRiskControls(cfg, flat, 100, buy).Action)
	assert.Equal(t, model.ActionHold, ApplyRiskControls(cfg, flat, 100, hold).Action)

	// Stop-loss levels never apply to a closed position, even with stale entry data.
	stale := model.Position{Pair: "eth_mxn", EntryPrice: 1000}
	assert.Equal(t, model.ActionHold, ApplyRiskControls(cfg, stale, 1, hold).Action)
}

func TestApplyRiskControls_InvalidTradeAmount(t *testing.T) {
	flat := model.Position{}
	for _, amt := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		cfg := config.DefaultStrategyConfig()
		cfg.TradeAmount = amt
		got := ApplyRiskControls(cfg, flat, 100, buy)
		assert.Equal(t, model.ActionHold, got.Action, "amount %v", amt)
		assert.True(t, got.Has(TriggerInvalidAmount))
	}
}

func TestApplyRiskControls_DoesNotAliasTriggers(t *testing.T) {
	proposed := strategy.Signal{Action: model.ActionBuy, Triggers: make([]strategy.Trigger, 1, 4)}
	proposed.Triggers[0] = strategy.TriggerMACrossUp
	ApplyRiskControls(config.DefaultStrategyConfig(), open(100), 101, proposed)
	assert.Equal(t, []strategy.Trigger{strategy.TriggerMACrossUp}, proposed.Triggers)
	assert.Equal(t, strategy.Trigger(""), proposed.Triggers[:2][1], "backing array written")
}

func TestApplyRiskControls_BoundariesInclusive(t *testing.T) {
	cfg := config.DefaultStrategyConfig()
	cfg.StopLossPct, cfg.TakeProfitPct = 50, 50 // exact binary levels: 32 and 96

	got := ApplyRiskControls(cfg, open(64), 32, hold)
	assert.True(t, got.Has(TriggerStopLoss))

	got = ApplyRiskControls(cfg, open(64), 96, hold)
	assert.True(t, got.Has(TriggerTakeProfit))

	// Decimal percentages land exactly on the documented prices too.
	cfg = config.DefaultStrategyConfig()
	assert.Equal(t, model.ActionSell, ApplyRiskControls(cfg, open(100), 95, buy).Action)
	assert.Equal(t, model.ActionSell, ApplyRiskControls(cfg, open(100), 110, buy).Action)
	assert.Equal(t, model.ActionSell, ApplyRiskControls(cfg, open(200), 190, hold).Action)
}

func TestLevels(t *testing.T) {
	cfg := config.DefaultStrategyConfig()
	stop, take := Levels(cfg, 200)
	assert.InDelta(t, 190, stop, 1e-9)
	assert.InDelta(t, 220, take, 1e-9)
}
