// Package bot schedules the decision cycles of every configured pair and
// carries their decisions through execution, the portfolio, persistence,
// publishing and alerting.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"pitrader/config"
	"pitrader/internal/engine"
	"pitrader/internal/execution"
	"pitrader/internal/history"
	"pitrader/internal/logger"
	"pitrader/internal/metrics"
	"pitrader/internal/model"
	"pitrader/internal/notification"
	"pitrader/internal/portfolio"
	"pitrader/pkg/bitso"
)

// ErrAccountInactive is reported when the exchange account cannot trade.
var ErrAccountInactive = errors.New("bot: account is not active")

// Account is the live-mode view of the exchange account.
type Account interface {
	AccountStatus(ctx context.Context) (bitso.AccountStatus, error)
	Available(ctx context.Context, currency string) (float64, error)
}

// Publisher receives JSON-encoded decisions and fills, e.g. Redis.
type Publisher interface {
	PublishDecision(pair string, data []byte) error
	PublishFill(pair string, data []byte) error
}

// Broadcaster pushes events to live subscribers, e.g. the WebSocket hub.
type Broadcaster interface {
	Publish(kind, pair string, data []byte)
}

// Deps are the collaborators of a Bot. Feed, Executor and Portfolio are
// required; the rest are optional. Account must be set in live mode.
type Deps struct {
	Feed      engine.PriceFeed
	Executor  execution.Executor
	Portfolio *portfolio.Portfolio

	Account   Account
	Samples   model.SampleStore
	Journal   model.FillJournal
	Publisher Publisher
	Hub       Broadcaster
	Notifier  notification.Notifier
	Metrics   *metrics.Metrics
	Health    *metrics.HealthStatus
	Rand      *rand.Rand
}

// Report summarizes one tick across all pairs.
type Report struct {
	Skipped   bool              `json:"skipped"`
	Decisions []engine.Decision `json:"decisions"`
	Fills     []model.Fill      `json:"fills"`
	Ignored   []string          `json:"ignored_buys,omitempty"`
	Errors    []error           `json:"-"`
}

// Bot runs the trading loop.
type Bot struct {
	cfg    *config.Config
	deps   Deps
	cycles []*engine.Cycle
	log    *slog.Logger
	now    func() time.Time

	running atomic.Bool
	rngMu   sync.Mutex
}

// New builds one engine cycle per configured pair.
func New(cfg *config.Config, deps Deps) (*Bot, error) {
	if deps.Feed == nil || deps.Executor == nil || deps.Portfolio == nil {
		return nil, errors.New("bot: feed, executor and portfolio are required")
	}
	if !cfg.DryRun && deps.Account == nil {
		return nil, errors.New("bot: live trading needs an exchange account")
	}
	if deps.Notifier == nil {
		deps.Notifier = notification.NewLogNotifier()
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	b := &Bot{
		cfg:  cfg,
		deps: deps,
		log:  slog.Default().With("component", "bot"),
		now:  time.Now,
	}
	for _, pair := range cfg.Pairs {
		w := history.New(pair, cfg.MaxHistoryLength)
		b.cycles = append(b.cycles, engine.NewCycle(pair, cfg.Strategy, deps.Feed, deps.Portfolio, w))
	}
	return b, nil
}

// Restore reloads price history from the sample store and rebuilds the
// portfolio from journaled fills of the current mode (dry-run or live).
func (b *Bot) Restore(ctx context.Context) error {
	if b.deps.Samples != nil {
		for _, c := range b.cycles {
			samples, err := b.deps.Samples.LoadRecent(ctx, c.Pair(), b.cfg.MaxHistoryLength)
			if err != nil {
				return fmt.Errorf("bot: restore %s history: %w", c.Pair(), err)
			}
			kept := c.Window().Restore(samples)
			b.log.Info("restored price history",
				"pair", c.Pair(), "loaded", len(samples), "kept", kept,
				"required", b.cfg.Strategy.RequiredHistory())
		}
	}

	if b.deps.Journal != nil {
		fills, err := b.deps.Journal.Fills(time.Time{})
		if err != nil {
			return fmt.Errorf("bot: load journal: %w", err)
		}
		mode := fills[:0:0]
		for _, f := range fills {
			if f.DryRun == b.cfg.DryRun {
				mode = append(mode, f)
			}
		}
		applied, skipped := b.deps.Portfolio.Replay(mode)
		b.log.Info("replayed fill journal", "applied", applied, "skipped", skipped, "other_mode", len(fills)-len(mode))
	}
	b.updatePortfolioMetrics()
	return nil
}

// Run ticks once immediately and then every check interval until ctx is
// cancelled. A tick that overruns the interval delays the next one.
func (b *Bot) Run(ctx context.Context) error {
	b.log.Info("bot started",
		"pairs", b.cfg.Pairs, "strategy", b.cfg.Strategy.Kind,
		"interval", b.cfg.CheckInterval, "dry_run", b.cfg.DryRun)

	b.RunOnce(ctx)

	ticker := time.NewTicker(b.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			b.log.Info("bot stopped")
			return ctx.Err()
		case <-ticker.C:
			b.RunOnce(ctx)
		}
	}
}

type buyCandidate struct {
	decision engine.Decision
	quote    string
}

// RunOnce runs one tick across all pairs: account check, one decision
// cycle per pair, SELL execution, then fund allocation among the BUYs.
// A tick started while another is running is skipped.
func (b *Bot) RunOnce(ctx context.Context) Report {
	if !b.running.CompareAndSwap(false, true) {
		b.log.Warn("previous tick still running, skipping")
		return Report{Skipped: true}
	}
	defer b.running.Store(false)

	var rep Report
	if !b.accountReady(ctx) {
		rep.Skipped = true
		rep.Errors = append(rep.Errors, ErrAccountInactive)
		return rep
	}

	var buys []buyCandidate
	for _, c := range b.cycles {
		d, err := b.tickPair(ctx, c)
		if err != nil {
			rep.Errors = append(rep.Errors, err)
			continue
		}
		rep.Decisions = append(rep.Decisions, d)

		switch d.Action() {
		case model.ActionSell:
			if f, err := b.sell(ctx, d); err != nil {
				rep.Errors = append(rep.Errors, err)
			} else {
				rep.Fills = append(rep.Fills, f)
			}
		case model.ActionBuy:
			buys = append(buys, buyCandidate{decision: d, quote: model.QuoteAsset(d.Pair)})
		}
	}

	fills, ignored, errs := b.processBuys(ctx, buys)
	rep.Fills = append(rep.Fills, fills...)
	rep.Ignored = ignored
	rep.Errors = append(rep.Errors, errs...)

	b.updatePortfolioMetrics()
	if b.deps.Health != nil {
		b.deps.Health.SetLastTickTime(b.now())
	}
	b.log.Info("tick complete",
		"decisions", len(rep.Decisions), "fills", len(rep.Fills),
		"ignored_buys", len(rep.Ignored), "errors", len(rep.Errors))
	return rep
}

func (b *Bot) accountReady(ctx context.Context) bool {
	if b.cfg.DryRun {
		if b.deps.Health != nil {
			b.deps.Health.SetAccountActive(true)
		}
		return true
	}
	st, err := b.deps.Account.AccountStatus(ctx)
	active := err == nil && st.Active()
	if b.deps.Health != nil {
		b.deps.Health.SetAccountActive(active)
	}
	if active {
		return true
	}

	if err != nil {
		b.log.Error("account status check failed", "error", err)
	} else {
		b.log.Warn("account not ready for trading", "status", st.Status)
	}
	if b.deps.Metrics != nil {
		b.deps.Metrics.AccountChecksFailed.Inc()
	}
	return false
}

// tickPair runs one decision cycle and records its outcome.
func (b *Bot) tickPair(ctx context.Context, c *engine.Cycle) (engine.Decision, error) {
	pair := c.Pair()
	start := b.now()
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(pair, start))

	d, err := c.Tick(ctx)
	if b.deps.Metrics != nil {
		b.deps.Metrics.CycleDuration.Observe(b.now().Sub(start).Seconds())
	}
	if err != nil {
		result := metrics.ResultRejected
		switch {
		case errors.Is(err, engine.ErrCycleBusy):
			result = metrics.ResultBusy
			b.log.Warn("cycle busy, skipped", append(logger.LogWithTrace(ctx), "pair", pair)...)
		case engine.IsFetchError(err):
			result = metrics.ResultFetchError
			b.log.Warn("price fetch failed", append(logger.LogWithTrace(ctx), "pair", pair, "error", err)...)
			if b.deps.Health != nil {
				b.deps.Health.SetExchangeOK(false)
			}
			b.alert(ctx, notification.ErrorAlert(pair, "price fetch failed", err))
		default:
			b.log.Error("sample rejected", append(logger.LogWithTrace(ctx), "pair", pair, "error", err)...)
		}
		if b.deps.Metrics != nil {
			b.deps.Metrics.CyclesTotal.WithLabelValues(pair, result).Inc()
		}
		return engine.Decision{}, err
	}

	if b.deps.Health != nil {
		b.deps.Health.SetExchangeOK(true)
	}
	if b.deps.Samples != nil {
		if err := b.deps.Samples.SaveSample(ctx, d.Sample); err != nil {
			b.log.Error("persist sample failed", append(logger.LogWithTrace(ctx), "pair", pair, "error", err)...)
		}
	}
	b.deps.Portfolio.MarkPrice(pair, d.Sample.Price)
	b.recordDecision(d)

	b.log.Info("decision",
		append(logger.LogWithTrace(ctx),
			"pair", pair,
			"price", d.Sample.Price,
			"history", d.HistoryLen,
			"proposed", d.Proposed.Action,
			"action", d.Final.Action,
			"reason", d.Final.Reason,
		)...)
	return d, nil
}

func (b *Bot) recordDecision(d engine.Decision) {
	if m := b.deps.Metrics; m != nil {
		m.CyclesTotal.WithLabelValues(d.Pair, metrics.ResultOK).Inc()
		m.SignalsTotal.WithLabelValues(d.Pair, string(d.Final.Action)).Inc()
		m.HistoryLen.WithLabelValues(d.Pair).Set(float64(d.HistoryLen))
		m.LastPrice.WithLabelValues(d.Pair).Set(d.Sample.Price)
		if r := d.Snapshot.MAShort; r.Ready {
			m.Indicator.WithLabelValues(d.Pair, "ma_short").Set(r.Value)
		}
		if r := d.Snapshot.MALong; r.Ready {
			m.Indicator.WithLabelValues(d.Pair, "ma_long").Set(r.Value)
		}
		if r := d.Snapshot.RSI; r.Ready {
			m.Indicator.WithLabelValues(d.Pair, "rsi").Set(r.Value)
		}
	}
	b.publish("decision", d.Pair, d)
}

func (b *Bot) sell(ctx context.Context, d engine.Decision) (model.Fill, error) {
	pos := b.deps.Portfolio.Position(d.Pair)
	if !pos.IsOpen {
		return model.Fill{}, fmt.Errorf("bot: sell %s: %w", d.Pair, portfolio.ErrNoPosition)
	}
	return b.execute(ctx, model.Order{
		Pair:   d.Pair,
		Action: model.ActionSell,
		Price:  d.Sample.Price,
		Size:   pos.Size,
		Reason: d.Final.Reason,
		TS:     d.Sample.TS,
	})
}

// processBuys funds BUY candidates per quote currency: with available
// funds for k trades of TRADE_AMOUNT plus fee, at most k candidates execute
// and the rest are ignored.
func (b *Bot) processBuys(ctx context.Context, buys []buyCandidate) (fills []model.Fill, ignored []string, errs []error) {
	if len(buys) == 0 {
		return nil, nil, nil
	}

	byQuote := make(map[string][]buyCandidate)
	var quotes []string
	for _, c := range buys {
		if _, ok := byQuote[c.quote]; !ok {
			quotes = append(quotes, c.quote)
		}
		byQuote[c.quote] = append(byQuote[c.quote], c)
	}

	amount := b.cfg.Strategy.TradeAmount
	// Each buy spends the notional plus the taker fee.
	cost := amount * (1 + b.cfg.FeeTaker)
	for _, quote := range quotes {
		group := byQuote[quote]
		available, err := b.available(ctx, quote)
		if err != nil {
			errs = append(errs, err)
			b.log.Error("balance check failed, skipping buys", "quote", quote, "error", err)
			for _, c := range group {
				ignored = append(ignored, c.decision.Pair)
			}
			continue
		}

		b.rngMu.Lock()
		selected, skipped := allocate(len(group), available, cost, b.cfg.FundAllocation, b.deps.Rand)
		b.rngMu.Unlock()

		if len(skipped) > 0 {
			b.log.Warn("insufficient funds for every buy signal",
				"quote", quote, "available", available, "trade_amount", amount, "cost_per_buy", cost,
				"signals", len(group), "affordable", len(selected), "policy", b.cfg.FundAllocation)
		}
		for _, i := range skipped {
			pair := group[i].decision.Pair
			ignored = append(ignored, pair)
			b.log.Warn("buy signal ignored due to fund allocation limits", "pair", pair)
			if b.deps.Metrics != nil {
				b.deps.Metrics.IgnoredBuys.Inc()
			}
		}
		for _, i := range selected {
			d := group[i].decision
			f, err := b.execute(ctx, model.Order{
				Pair:     d.Pair,
				Action:   model.ActionBuy,
				Price:    d.Sample.Price,
				Notional: amount,
				Reason:   d.Final.Reason,
				TS:       d.Sample.TS,
			})
			if err != nil {
				errs = append(errs, err)
				continue
			}
			fills = append(fills, f)
		}
	}
	return fills, ignored, errs
}

// available returns the spendable balance of a quote currency: the
// exchange balance when live, the simulated cash when dry-running.
func (b *Bot) available(ctx context.Context, quote string) (float64, error) {
	if b.cfg.DryRun {
		return b.deps.Portfolio.Cash(), nil
	}
	v, err := b.deps.Account.Available(ctx, quote)
	if err != nil {
		return 0, fmt.Errorf("bot: %s balance: %w", quote, err)
	}
	return v, nil
}

// execute places order and, on success, applies, journals, publishes and
// announces the fill. A failed order leaves the portfolio untouched.
func (b *Bot) execute(ctx context.Context, order model.Order) (model.Fill, error) {
	fill, err := b.deps.Executor.Execute(ctx, order)
	if err != nil {
		status := "failed"
		if errors.Is(err, execution.ErrBelowMinimum) {
			status = "below_minimum"
		}
		if b.deps.Metrics != nil {
			b.deps.Metrics.OrdersTotal.WithLabelValues(order.Pair, string(order.Action), status).Inc()
		}
		b.log.Error("order failed", "pair", order.Pair, "action", order.Action, "error", err)
		b.alert(ctx, notification.ErrorAlert(order.Pair, fmt.Sprintf("%s order failed", order.Action), err))
		return model.Fill{}, err
	}

	if _, err := b.deps.Portfolio.ApplyFill(fill); err != nil {
		// The order went through; the journal still records it.
		b.log.Error("apply fill failed", "order_id", fill.OrderID, "error", err)
	}
	if b.deps.Journal != nil {
		if err := b.deps.Journal.RecordFill(fill); err != nil {
			b.log.Error("journal fill failed", "order_id", fill.OrderID, "error", err)
		}
	}
	if b.deps.Metrics != nil {
		b.deps.Metrics.OrdersTotal.WithLabelValues(fill.Pair, string(fill.Action), "filled").Inc()
	}
	b.publish("fill", fill.Pair, fill)
	b.alert(ctx, notification.FillAlert(fill))
	return fill, nil
}

func (b *Bot) publish(kind, pair string, v any) {
	if b.deps.Publisher == nil && b.deps.Hub == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		b.log.Error("encode event failed", "type", kind, "pair", pair, "error", err)
		return
	}
	if p := b.deps.Publisher; p != nil {
		var err error
		if kind == "fill" {
			err = p.PublishFill(pair, data)
		} else {
			err = p.PublishDecision(pair, data)
		}
		if err != nil {
			b.log.Warn("publish failed", "type", kind, "pair", pair, "error", err)
		}
	}
	if b.deps.Hub != nil {
		b.deps.Hub.Publish(kind, pair, data)
	}
}

func (b *Bot) alert(ctx context.Context, a notification.Alert) {
	if err := b.deps.Notifier.Send(ctx, a); err != nil {
		b.log.Warn("alert delivery failed", "title", a.Title, "error", err)
		if b.deps.Metrics != nil {
			b.deps.Metrics.NotificationsFailed.Inc()
		}
	}
}

func (b *Bot) updatePortfolioMetrics() {
	m := b.deps.Metrics
	if m == nil {
		return
	}
	s := b.deps.Portfolio.Summary()
	m.Equity.Set(s.Equity)
	m.RealizedPnL.Set(s.RealizedPnL - s.Fees)
	m.OpenPositions.Set(float64(s.OpenPositions))
}

// ── Read side, served by the HTTP API ──

// Decisions returns the latest decision of every pair that has one.
func (b *Bot) Decisions() []engine.Decision {
	out := make([]engine.Decision, 0, len(b.cycles))
	for _, c := range b.cycles {
		if d, ok := c.Last(); ok {
			out = append(out, d)
		}
	}
	return out
}

func (b *Bot) Positions() []model.Position       { return b.deps.Portfolio.Positions() }
func (b *Bot) Trades() []portfolio.Trade         { return b.deps.Portfolio.Trades() }
func (b *Bot) Stats() portfolio.PerformanceStats { return b.deps.Portfolio.Stats() }
func (b *Bot) Summary() portfolio.PnLSummary     { return b.deps.Portfolio.Summary() }
