// Package config resolves all runtime settings once at startup from
// environment variables (optionally seeded from a .env file).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrInvalidConfig is returned when a setting violates its constraints.
// It is fatal at startup.
var ErrInvalidConfig = errors.New("invalid config")

// Strategy kinds accepted by STRATEGY.
const (
	StrategyMA       = "ma"
	StrategyRSI      = "rsi"
	StrategyCombined = "combined"
)

// Fund allocation policies accepted by FUND_ALLOCATION_STRATEGY.
const (
	AllocFirstCome = "first_come_first_served"
	AllocRandom    = "random"
)

// StrategyConfig is the parameter set of the decision engine.
type StrategyConfig struct {
	Kind          string  `json:"kind"`
	MAShortPeriod int     `json:"ma_short_period"`
	MALongPeriod  int     `json:"ma_long_period"`
	RSIPeriod     int     `json:"rsi_period"`
	RSIOversold   float64 `json:"rsi_oversold"`
	RSIOverbought float64 `json:"rsi_overbought"`
	StopLossPct   float64 `json:"stop_loss_pct"`
	TakeProfitPct float64 `json:"take_profit_pct"`
	TradeAmount   float64 `json:"trade_amount"` // quote currency per BUY
}

// DefaultStrategyConfig mirrors the defaults of the environment loader.
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		Kind:          StrategyCombined,
		MAShortPeriod: 10,
		MALongPeriod:  30,
		RSIPeriod:     14,
		RSIOversold:   30,
		RSIOverbought: 70,
		StopLossPct:   5,
		TakeProfitPct: 10,
		TradeAmount:   100,
	}
}

// Validate checks the invariants of the strategy parameters.
func (s StrategyConfig) Validate() error {
	switch s.Kind {
	case StrategyMA, StrategyRSI, StrategyCombined:
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, s.Kind)
	}
	if s.MAShortPeriod <= 0 || s.MALongPeriod <= 0 || s.RSIPeriod <= 0 {
		return fmt.Errorf("%w: periods must be positive (ma %d/%d, rsi %d)",
			ErrInvalidConfig, s.MAShortPeriod, s.MALongPeriod, s.RSIPeriod)
	}
	if s.MAShortPeriod >= s.MALongPeriod {
		return fmt.Errorf("%w: MA short period %d must be below long period %d",
			ErrInvalidConfig, s.MAShortPeriod, s.MALongPeriod)
	}
	if s.RSIOversold < 0 || s.RSIOverbought > 100 || s.RSIOversold >= s.RSIOverbought {
		return fmt.Errorf("%w: RSI thresholds need 0 <= oversold < overbought <= 100 (got %.2f/%.2f)",
			ErrInvalidConfig, s.RSIOversold, s.RSIOverbought)
	}
	if s.StopLossPct <= 0 || s.TakeProfitPct <= 0 {
		return fmt.Errorf("%w: stop loss and take profit must be positive (got %.2f/%.2f)",
			ErrInvalidConfig, s.StopLossPct, s.TakeProfitPct)
	}
	return nil
}

// RequiredHistory is the smallest window that yields both the current and
// the prior indicator snapshot.
func (s StrategyConfig) RequiredHistory() int {
	n := s.MALongPeriod
	if s.RSIPeriod+1 > n {
		n = s.RSIPeriod + 1
	}
	return n + 1
}

// Config holds all application configuration.
type Config struct {
	// Bitso credentials
	BitsoAPIKey     string
	BitsoAPISecret  string
	BitsoUseStaging bool
	BitsoBaseURL    string // overrides the staging/production URL, e.g. a local tickserver

	Pairs    []string
	Strategy StrategyConfig

	DryRun           bool
	CheckInterval    time.Duration
	MaxHistoryLength int
	FundAllocation   string
	FeeTaker         float64
	SlippageBps      int64
	PaperBalance     float64

	// Infrastructure
	LogLevel      string
	SQLitePath    string
	RedisAddr     string // empty disables decision publishing
	RedisPassword string
	MetricsAddr   string
	HTTPAddr      string

	// Alerts
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string
}

// Load reads configuration from the environment and validates it.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var errs []error
	num := func(key string, fallback float64) float64 {
		v, err := getFloat(key, fallback)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	integer := func(key string, fallback int) int {
		v, err := getInt(key, fallback)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := &Config{
		BitsoAPIKey:     os.Getenv("BITSO_API_KEY"),
		BitsoAPISecret:  os.Getenv("BITSO_API_SECRET"),
		BitsoUseStaging: getBool("BITSO_USE_STAGING", true),
		BitsoBaseURL:    getEnv("BITSO_BASE_URL", ""),

		Pairs: ParsePairs(getEnv("TRADING_PAIRS", getEnv("TRADING_PAIR", "eth_mxn"))),
		Strategy: StrategyConfig{
			Kind:          strings.ToLower(getEnv("STRATEGY", StrategyCombined)),
			MAShortPeriod: integer("MA_SHORT_PERIOD", 10),
			MALongPeriod:  integer("MA_LONG_PERIOD", 30),
			RSIPeriod:     integer("RSI_PERIOD", 14),
			RSIOversold:   num("RSI_OVERSOLD", 30),
			RSIOverbought: num("RSI_OVERBOUGHT", 70),
			StopLossPct:   num("STOP_LOSS_PERCENTAGE", 5),
			TakeProfitPct: num("TAKE_PROFIT_PERCENTAGE", 10),
			TradeAmount:   num("TRADE_AMOUNT", 100),
		},

		DryRun:           getBool("DRY_RUN", true),
		CheckInterval:    time.Duration(integer("CHECK_INTERVAL_MINUTES", 5)) * time.Minute,
		MaxHistoryLength: integer("MAX_HISTORY_LENGTH", 1000),
		FundAllocation:   strings.ToLower(getEnv("FUND_ALLOCATION_STRATEGY", AllocFirstCome)),
		FeeTaker:         num("FEE_TAKER", 0.0065),
		SlippageBps:      int64(integer("SLIPPAGE_BPS", 0)),
		PaperBalance:     num("PAPER_BALANCE", 10000),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		SQLitePath:    getEnv("SQLITE_PATH", "data/pitrader.db"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints of the whole configuration.
func (c *Config) Validate() error {
	if err := c.Strategy.Validate(); err != nil {
		return err
	}
	if len(c.Pairs) == 0 {
		return fmt.Errorf("%w: no trading pairs configured", ErrInvalidConfig)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("%w: check interval must be positive", ErrInvalidConfig)
	}
	if c.MaxHistoryLength < c.Strategy.RequiredHistory() {
		return fmt.Errorf("%w: MAX_HISTORY_LENGTH %d is below the %d samples the indicators need",
			ErrInvalidConfig, c.MaxHistoryLength, c.Strategy.RequiredHistory())
	}
	switch c.FundAllocation {
	case AllocFirstCome, AllocRandom:
	default:
		return fmt.Errorf("%w: unknown fund allocation strategy %q", ErrInvalidConfig, c.FundAllocation)
	}
	if c.FeeTaker < 0 || c.SlippageBps < 0 {
		return fmt.Errorf("%w: fee and slippage must not be negative", ErrInvalidConfig)
	}
	if !c.DryRun && (c.BitsoAPIKey == "" || c.BitsoAPISecret == "") {
		return fmt.Errorf("%w: BITSO_API_KEY and BITSO_API_SECRET are required when DRY_RUN=false", ErrInvalidConfig)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level. Unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParsePairs splits a comma-separated list of books, lowercasing and
// dropping blanks and duplicates.
func ParsePairs(s string) []string {
	seen := make(map[string]bool)
	var pairs []string
	for _, p := range strings.Split(s, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		pairs = append(pairs, p)
	}
	return pairs
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return fallback
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, v)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, key, v)
	}
	return f, nil
}
