package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"pitrader/config"
	"pitrader/internal/history"
	"pitrader/internal/indicator"
	"pitrader/internal/logger"
	"pitrader/internal/model"
	"pitrader/internal/strategy"
)

// PriceFeed supplies the latest traded price of a pair.
type PriceFeed interface {
	LatestPrice(ctx context.Context, pair string) (model.PriceSample, error)
}

// PositionReader exposes the current position of a pair. The engine only
// reads positions; they change when fills are applied elsewhere.
type PositionReader interface {
	Position(pair string) model.Position
}

// Decision is what one completed cycle emits.
type Decision struct {
	Pair       string             `json:"pair"`
	TraceID    string             `json:"trace_id,omitempty"`
	Sample     model.PriceSample  `json:"sample"`
	Snapshot   indicator.Snapshot `json:"snapshot"`
	Proposed   strategy.Signal    `json:"proposed"`
	Final      strategy.Signal    `json:"final"`
	Position   model.Position     `json:"position"`
	HistoryLen int                `json:"history_len"`
	Stage      Stage              `json:"stage"`
	At         time.Time          `json:"at"`
}

// Action is shorthand for the final action.
func (d Decision) Action() model.Action { return d.Final.Action }

// Cycle owns the price window of one pair and runs its decision cycle.
type Cycle struct {
	pair      string
	cfg       config.StrategyConfig
	feed      PriceFeed
	positions PositionReader
	window    *history.Window
	log       *slog.Logger
	now       func() time.Time

	busy  atomic.Bool
	stage atomic.Int32

	mu   sync.RWMutex
	last *Decision
}

// NewCycle creates the cycle for pair. window must track the same pair.
func NewCycle(pair string, cfg config.StrategyConfig, feed PriceFeed, positions PositionReader, window *history.Window) *Cycle {
	return &Cycle{
		pair:      pair,
		cfg:       cfg,
		feed:      feed,
		positions: positions,
		window:    window,
		log:       slog.Default().With("component", "engine", "pair", pair),
		now:       time.Now,
	}
}

// Pair returns the book this cycle trades.
func (c *Cycle) Pair() string { return c.pair }

// Window exposes the price history for read-only use.
func (c *Cycle) Window() *history.Window { return c.window }

// Stage returns the stage the cycle is in, or ended in.
func (c *Cycle) Stage() Stage { return Stage(c.stage.Load()) }

// Last returns the most recent emitted decision.
func (c *Cycle) Last() (Decision, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return Decision{}, false
	}
	return *c.last, true
}

// Tick runs one full cycle. It returns ErrCycleBusy if another tick of this
// cycle is still running, a *FetchError if the feed failed, and a wrapped
// history error if the fetched sample was rejected. In every error case the
// history is left untouched.
func (c *Cycle) Tick(ctx context.Context) (Decision, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return Decision{}, ErrCycleBusy
	}
	defer c.busy.Store(false)

	c.setStage(StageFetch)
	if err := ctx.Err(); err != nil {
		c.setStage(StageFailed)
		return Decision{}, &FetchError{Pair: c.pair, Err: err}
	}
	sample, err := c.feed.LatestPrice(ctx, c.pair)
	if err != nil {
		c.setStage(StageFailed)
		return Decision{}, &FetchError{Pair: c.pair, Err: err}
	}

	c.setStage(StageUpdateHistory)
	if err := c.window.Append(sample); err != nil {
		c.setStage(StageFailed)
		return Decision{}, fmt.Errorf("engine: update history %s: %w", c.pair, err)
	}

	c.setStage(StageEvaluate)
	prices := c.window.Prices()
	pos := c.positions.Position(c.pair)
	ev := Evaluate(c.cfg, prices, pos)
	// Evaluate gates at the newest price, which is sample.Price.
	c.setStage(StageGate)

	c.setStage(StageEmit)
	d := Decision{
		Pair:       c.pair,
		TraceID:    logger.TraceID(ctx),
		Sample:     sample,
		Snapshot:   ev.Current,
		Proposed:   ev.Proposed,
		Final:      ev.Final,
		Position:   pos,
		HistoryLen: len(prices),
		Stage:      StageEmit,
		At:         c.now(),
	}
	c.mu.Lock()
	c.last = &d
	c.mu.Unlock()

	c.log.Debug("cycle complete",
		append(logger.LogWithTrace(ctx),
			"price", sample.Price,
			"history", len(prices),
			"proposed", ev.Proposed.Action,
			"final", ev.Final.Action,
			"triggers", ev.Final.Triggers,
		)...)
	return d, nil
}

func (c *Cycle) setStage(s Stage) { c.stage.Store(int32(s)) }
