package portfolio

import (
	"time"

	"pitrader/internal/model"
)

// Trade is one applied fill with its P&L attribution.
type Trade struct {
	OrderID     string       `json:"order_id"`
	Pair        string       `json:"pair"`
	Action      model.Action `json:"action"`
	Size        float64      `json:"size"`
	Price       float64      `json:"price"`
	Notional    float64      `json:"notional"`
	Fee         float64      `json:"fee"`
	CostBasis   float64      `json:"cost_basis,omitempty"`   // sells only
	RealizedPnL float64      `json:"realized_pnl,omitempty"` // sells only, net of the sell fee
	Closed      bool         `json:"closed,omitempty"`       // sell closed the position
	Reason      string       `json:"reason,omitempty"`
	DryRun      bool         `json:"dry_run"`
	FilledAt    time.Time    `json:"filled_at"`
}

// PnLSummary is the portfolio-level P&L view.
type PnLSummary struct {
	RealizedPnL   float64 `json:"realized_pnl"` // gross of fees
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	Fees          float64 `json:"fees"`
	NetPnL        float64 `json:"net_pnl"`
	Cash          float64 `json:"cash"`
	Equity        float64 `json:"equity"` // cash plus open positions at last price
	TotalTrades   int     `json:"total_trades"`
	OpenPositions int     `json:"open_positions"`
}

// Summary returns the current P&L summary.
func (pf *Portfolio) Summary() PnLSummary {
	pf.mu.RLock()
	defer pf.mu.RUnlock()

	s := PnLSummary{
		RealizedPnL: pf.realized,
		Fees:        pf.fees,
		Cash:        pf.cash,
		TotalTrades: len(pf.trades),
	}
	var marked float64
	for pair := range pf.books {
		p := pf.positionLocked(pair)
		if !p.IsOpen {
			continue
		}
		s.OpenPositions++
		s.UnrealizedPnL += p.UnrealizedPnL()
		last := p.LastPrice
		if last == 0 {
			last = p.EntryPrice
		}
		marked += last * p.Size
	}
	s.NetPnL = s.RealizedPnL + s.UnrealizedPnL - s.Fees
	s.Equity = s.Cash + marked
	return s
}

// PerformanceStats summarizes completed (sell) trades.
type PerformanceStats struct {
	TotalTrades      int     `json:"total_trades"`
	CompletedTrades  int     `json:"completed_trades"`
	ProfitableTrades int     `json:"profitable_trades"`
	LosingTrades     int     `json:"losing_trades"`
	WinRate          float64 `json:"win_rate"` // percent of completed trades
	TotalRealized    float64 `json:"total_realized"`
	AverageProfit    float64 `json:"average_profit"`
	AverageLoss      float64 `json:"average_loss"`
	TotalFees        float64 `json:"total_fees"`
}

// Stats computes performance statistics over the trade history.
func (pf *Portfolio) Stats() PerformanceStats {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	return computeStats(pf.trades)
}

func computeStats(trades []Trade) PerformanceStats {
	st := PerformanceStats{TotalTrades: len(trades)}
	var profit, loss float64
	for _, t := range trades {
		st.TotalFees += t.Fee
		if t.Action != model.ActionSell {
			continue
		}
		st.CompletedTrades++
		st.TotalRealized += t.RealizedPnL
		switch {
		case t.RealizedPnL > 0:
			st.ProfitableTrades++
			profit += t.RealizedPnL
		case t.RealizedPnL < 0:
			st.LosingTrades++
			loss += t.RealizedPnL
		}
	}
	if st.CompletedTrades > 0 {
		st.WinRate = float64(st.ProfitableTrades) / float64(st.CompletedTrades) * 100
	}
	if st.ProfitableTrades > 0 {
		st.AverageProfit = profit / float64(st.ProfitableTrades)
	}
	if st.LosingTrades > 0 {
		st.AverageLoss = loss / float64(st.LosingTrades)
	}
	return st
}

// Trades returns a snapshot of all trades, oldest first.
func (pf *Portfolio) Trades() []Trade {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	cp := make([]Trade, len(pf.trades))
	copy(cp, pf.trades)
	return cp
}
