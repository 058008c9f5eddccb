// Package portfolio tracks positions, cash, P&L and trading performance.
//
// Positions are long-only and kept as FIFO lots per pair: every BUY fill
// opens a lot, every SELL fill consumes the oldest lots first. The
// portfolio is the only place positions change, and only through ApplyFill.
package portfolio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"pitrader/internal/model"
)

// dust is the base-asset size below which a position counts as closed.
const dust = 1e-9

var (
	ErrNoPosition  = errors.New("portfolio: no open position to sell")
	ErrInvalidFill = errors.New("portfolio: invalid fill")
)

type lot struct {
	size     float64
	price    float64
	openedAt time.Time
}

type book struct {
	lots      []lot
	lastPrice float64
}

func (b *book) size() float64 {
	var s float64
	for _, l := range b.lots {
		s += l.size
	}
	return s
}

// Portfolio is safe for concurrent use.
type Portfolio struct {
	mu       sync.RWMutex
	books    map[string]*book
	trades   []Trade
	cash     float64 // quote currency, tracked for paper trading
	realized float64 // gross of fees
	fees     float64
}

// New creates an empty portfolio holding startingCash of quote currency.
func New(startingCash float64) *Portfolio {
	return &Portfolio{
		books:  make(map[string]*book),
		trades: make([]Trade, 0, 256),
		cash:   startingCash,
	}
}

// ApplyFill updates the position of fill.Pair and returns the recorded trade.
// A SELL larger than the open size is clipped to it.
func (pf *Portfolio) ApplyFill(fill model.Fill) (Trade, error) {
	if !(fill.Price > 0) || !(fill.Size > 0) {
		return Trade{}, fmt.Errorf("%w: price %v size %v", ErrInvalidFill, fill.Price, fill.Size)
	}

	pf.mu.Lock()
	defer pf.mu.Unlock()

	b := pf.books[fill.Pair]
	if b == nil {
		b = &book{}
		pf.books[fill.Pair] = b
	}
	b.lastPrice = fill.Price

	tr := Trade{
		OrderID:  fill.OrderID,
		Pair:     fill.Pair,
		Action:   fill.Action,
		Size:     fill.Size,
		Price:    fill.Price,
		Fee:      fill.Fee,
		Reason:   fill.Reason,
		DryRun:   fill.DryRun,
		FilledAt: fill.FilledAt,
	}

	switch fill.Action {
	case model.ActionBuy:
		b.lots = append(b.lots, lot{size: fill.Size, price: fill.Price, openedAt: fill.FilledAt})
		tr.Notional = fill.Size * fill.Price
		pf.cash -= tr.Notional + fill.Fee

	case model.ActionSell:
		held := b.size()
		if held <= dust {
			return Trade{}, fmt.Errorf("%w: %s", ErrNoPosition, fill.Pair)
		}
		size := fill.Size
		if size > held {
			size = held
		}
		tr.Size = size
		tr.Notional = size * fill.Price
		tr.CostBasis = b.consume(size)
		tr.RealizedPnL = tr.Notional - tr.CostBasis - fill.Fee
		tr.Closed = b.size() <= dust
		if tr.Closed {
			b.lots = nil
		}
		pf.realized += tr.Notional - tr.CostBasis
		pf.cash += tr.Notional - fill.Fee

	default:
		return Trade{}, fmt.Errorf("%w: action %q", ErrInvalidFill, fill.Action)
	}

	pf.fees += fill.Fee
	pf.trades = append(pf.trades, tr)
	return tr, nil
}

// consume removes size units FIFO and returns their cost basis.
func (b *book) consume(size float64) float64 {
	var cost float64
	remaining := size
	for remaining > dust && len(b.lots) > 0 {
		l := &b.lots[0]
		take := l.size
		if take > remaining {
			take = remaining
		}
		cost += take * l.price
		l.size -= take
		remaining -= take
		if l.size <= dust {
			b.lots = b.lots[1:]
		}
	}
	return cost
}

// Replay rebuilds state from journaled fills, oldest first. Fills that no
// longer apply (e.g. a sell with nothing held) are skipped and counted.
func (pf *Portfolio) Replay(fills []model.Fill) (applied, skipped int) {
	for _, f := range fills {
		if _, err := pf.ApplyFill(f); err != nil {
			skipped++
			continue
		}
		applied++
	}
	return applied, skipped
}

// MarkPrice records the latest market price of pair for unrealized P&L.
func (pf *Portfolio) MarkPrice(pair string, price float64) {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	if b, ok := pf.books[pair]; ok {
		b.lastPrice = price
	}
}

// Position returns the current position of pair. The entry price is the
// size-weighted average of the open lots.
func (pf *Portfolio) Position(pair string) model.Position {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	return pf.positionLocked(pair)
}

func (pf *Portfolio) positionLocked(pair string) model.Position {
	pos := model.Position{Pair: pair}
	b, ok := pf.books[pair]
	if !ok {
		return pos
	}
	pos.LastPrice = b.lastPrice
	size := b.size()
	if size <= dust {
		return pos
	}
	var cost float64
	for _, l := range b.lots {
		cost += l.size * l.price
	}
	pos.IsOpen = true
	pos.Size = size
	pos.EntryPrice = cost / size
	pos.OpenedAt = b.lots[0].openedAt
	return pos
}

// Positions returns a snapshot of all open positions.
func (pf *Portfolio) Positions() []model.Position {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	result := make([]model.Position, 0, len(pf.books))
	for pair := range pf.books {
		if p := pf.positionLocked(pair); p.IsOpen {
			result = append(result, p)
		}
	}
	return result
}

// Cash returns the quote currency balance implied by the applied fills.
func (pf *Portfolio) Cash() float64 {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	return pf.cash
}

// TotalUnrealizedPnL returns the unrealized P&L across all positions.
func (pf *Portfolio) TotalUnrealizedPnL() float64 {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	var total float64
	for pair := range pf.books {
		p := pf.positionLocked(pair)
		total += p.UnrealizedPnL()
	}
	return total
}
