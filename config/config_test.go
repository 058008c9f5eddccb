package config

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"eth_mxn"}, cfg.Pairs)
	assert.Equal(t, DefaultStrategyConfig(), cfg.Strategy)
	assert.True(t, cfg.DryRun)
	assert.True(t, cfg.BitsoUseStaging)
	assert.Equal(t, 5*time.Minute, cfg.CheckInterval)
	assert.Equal(t, 1000, cfg.MaxHistoryLength)
	assert.Equal(t, AllocFirstCome, cfg.FundAllocation)
	assert.InDelta(t, 0.0065, cfg.FeeTaker, 1e-12)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.BitsoBaseURL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TRADING_PAIRS", "ETH_MXN, sol_mxn,,eth_mxn")
	t.Setenv("STRATEGY", "RSI")
	t.Setenv("RSI_PERIOD", "7")
	t.Setenv("TRADE_AMOUNT", "250.5")
	t.Setenv("CHECK_INTERVAL_MINUTES", "1")
	t.Setenv("DRY_RUN", "false")
	t.Setenv("BITSO_API_KEY", "key")
	t.Setenv("BITSO_API_SECRET", "secret")
	t.Setenv("FUND_ALLOCATION_STRATEGY", "random")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"eth_mxn", "sol_mxn"}, cfg.Pairs)
	assert.Equal(t, StrategyRSI, cfg.Strategy.Kind)
	assert.Equal(t, 7, cfg.Strategy.RSIPeriod)
	assert.InDelta(t, 250.5, cfg.Strategy.TradeAmount, 1e-9)
	assert.Equal(t, time.Minute, cfg.CheckInterval)
	assert.False(t, cfg.DryRun)
	assert.Equal(t, AllocRandom, cfg.FundAllocation)
}

func TestLoad_TradingPairFallback(t *testing.T) {
	t.Setenv("TRADING_PAIR", "btc_mxn")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"btc_mxn"}, cfg.Pairs)
}

func TestLoad_InvalidNumber(t *testing.T) {
	t.Setenv("MA_SHORT_PERIOD", "ten")
	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestLoad_LiveNeedsCredentials(t *testing.T) {
	t.Setenv("DRY_RUN", "false")
	t.Setenv("BITSO_API_KEY", "")
	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestStrategyConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*StrategyConfig)
		ok     bool
	}{
		{"defaults", func(*StrategyConfig) {}, true},
		{"short equals long", func(s *StrategyConfig) { s.MAShortPeriod = 30 }, false},
		{"short above long", func(s *StrategyConfig) { s.MAShortPeriod = 40 }, false},
		{"zero rsi period", func(s *StrategyConfig) { s.RSIPeriod = 0 }, false},
		{"negative ma period", func(s *StrategyConfig) { s.MAShortPeriod = -1 }, false},
		{"oversold above overbought", func(s *StrategyConfig) { s.RSIOversold = 80 }, false},
		{"overbought above 100", func(s *StrategyConfig) { s.RSIOverbought = 101 }, false},
		{"zero stop loss", func(s *StrategyConfig) { s.StopLossPct = 0 }, false},
		{"negative take profit", func(s *StrategyConfig) { s.TakeProfitPct = -2 }, false},
		{"unknown kind", func(s *StrategyConfig) { s.Kind = "macd" }, false},
		{"edge thresholds", func(s *StrategyConfig) { s.RSIOversold, s.RSIOverbought = 0, 100 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultStrategyConfig()
			tt.mutate(&s)
			err := s.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestRequiredHistory(t *testing.T) {
	s := DefaultStrategyConfig()
	assert.Equal(t, 31, s.RequiredHistory())

	s.RSIPeriod = 40
	assert.Equal(t, 42, s.RequiredHistory())
}

func TestValidate_HistoryTooShort(t *testing.T) {
	t.Setenv("MAX_HISTORY_LENGTH", "20")
	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSlogLevel(t *testing.T) {
	c := &Config{LogLevel: "DEBUG"}
	assert.Equal(t, slog.LevelDebug, c.SlogLevel())
	c.LogLevel = "bogus"
	assert.Equal(t, slog.LevelInfo, c.SlogLevel())
}
