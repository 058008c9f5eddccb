package portfolio

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pitrader/internal/model"
)

var t0 = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func fill(action model.Action, size, price, fee float64, minute int) model.Fill {
	return model.Fill{
		OrderID:  "o",
		Pair:     "eth_mxn",
		Action:   action,
		Size:     size,
		Price:    price,
		Notional: size * price,
		Fee:      fee,
		FilledAt: t0.Add(time.Duration(minute) * time.Minute),
	}
}

func TestApplyFill_BuyOpensPosition(t *testing.T) {
	pf := New(1000)
	_, err := pf.ApplyFill(fill(model.ActionBuy, 2, 100, 1, 0))
	require.NoError(t, err)

	pos := pf.Position("eth_mxn")
	assert.True(t, pos.IsOpen)
	assert.InDelta(t, 2, pos.Size, 1e-12)
	assert.InDelta(t, 100, pos.EntryPrice, 1e-12)
	assert.Equal(t, t0, pos.OpenedAt)
	assert.InDelta(t, 799, pf.Cash(), 1e-9)

	assert.False(t, pf.Position("sol_mxn").IsOpen)
}

func TestApplyFill_FIFOAndRealizedPnL(t *testing.T) {
	pf := New(0)
	pf.ApplyFill(fill(model.ActionBuy, 1, 100, 0, 0))
	pf.ApplyFill(fill(model.ActionBuy, 1, 200, 0, 1))

	pos := pf.Position("eth_mxn")
	assert.InDelta(t, 150, pos.EntryPrice, 1e-12)
	assert.Equal(t, t0, pos.OpenedAt)

	// Selling 1.5 consumes the 100 lot fully and half the 200 lot.
	tr, err := pf.ApplyFill(fill(model.ActionSell, 1.5, 180, 2, 2))
	require.NoError(t, err)
	assert.InDelta(t, 200, tr.CostBasis, 1e-9)
	assert.InDelta(t, 270-200-2, tr.RealizedPnL, 1e-9)
	assert.False(t, tr.Closed)

	pos = pf.Position("eth_mxn")
	assert.InDelta(t, 0.5, pos.Size, 1e-12)
	assert.InDelta(t, 200, pos.EntryPrice, 1e-12)
	assert.Equal(t, t0.Add(time.Minute), pos.OpenedAt)
}

func TestApplyFill_SellClipsAndCloses(t *testing.T) {
	pf := New(0)
	pf.ApplyFill(fill(model.ActionBuy, 1, 100, 0, 0))

	tr, err := pf.ApplyFill(fill(model.ActionSell, 5, 110, 0, 1))
	require.NoError(t, err)
	assert.InDelta(t, 1, tr.Size, 1e-12)
	assert.True(t, tr.Closed)
	assert.False(t, pf.Position("eth_mxn").IsOpen)
	assert.Empty(t, pf.Positions())
}

func TestApplyFill_SellWithoutPosition(t *testing.T) {
	pf := New(0)
	_, err := pf.ApplyFill(fill(model.ActionSell, 1, 100, 0, 0))
	assert.ErrorIs(t, err, ErrNoPosition)
	assert.Empty(t, pf.Trades())
}

func TestApplyFill_Invalid(t *testing.T) {
	pf := New(0)
	for _, f := range []model.Fill{
		fill(model.ActionBuy, 0, 100, 0, 0),
		fill(model.ActionBuy, 1, -1, 0, 0),
		fill(model.ActionHold, 1, 100, 0, 0),
	} {
		_, err := pf.ApplyFill(f)
		assert.ErrorIs(t, err, ErrInvalidFill)
	}
}

func TestSummaryAndStats(t *testing.T) {
	pf := New(1000)
	pf.ApplyFill(fill(model.ActionBuy, 1, 100, 1, 0))
	pf.ApplyFill(fill(model.ActionSell, 1, 120, 1, 1)) // +19 net
	pf.ApplyFill(fill(model.ActionBuy, 1, 120, 1, 2))
	pf.ApplyFill(fill(model.ActionSell, 1, 110, 1, 3)) // -11 net
	pf.ApplyFill(fill(model.ActionBuy, 2, 100, 0, 4))
	pf.MarkPrice("eth_mxn", 105)

	sum := pf.Summary()
	assert.InDelta(t, 20-10, sum.RealizedPnL, 1e-9)
	assert.InDelta(t, 10, sum.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 4, sum.Fees, 1e-9)
	assert.InDelta(t, 16, sum.NetPnL, 1e-9)
	assert.Equal(t, 5, sum.TotalTrades)
	assert.Equal(t, 1, sum.OpenPositions)
	assert.InDelta(t, 1000-101+119-121+109-200, sum.Cash, 1e-9)
	assert.InDelta(t, sum.Cash+210, sum.Equity, 1e-9)

	st := pf.Stats()
	assert.Equal(t, 5, st.TotalTrades)
	assert.Equal(t, 2, st.CompletedTrades)
	assert.Equal(t, 1, st.ProfitableTrades)
	assert.Equal(t, 1, st.LosingTrades)
	assert.InDelta(t, 50, st.WinRate, 1e-9)
	assert.InDelta(t, 19, st.AverageProfit, 1e-9)
	assert.InDelta(t, -11, st.AverageLoss, 1e-9)
	assert.InDelta(t, 8, st.TotalRealized, 1e-9)
}

func TestStats_Empty(t *testing.T) {
	st := New(0).Stats()
	assert.Zero(t, st.WinRate)
	assert.Zero(t, st.AverageProfit)
}

func TestReplay(t *testing.T) {
	pf := New(0)
	applied, skipped := pf.Replay([]model.Fill{
		fill(model.ActionSell, 1, 100, 0, 0), // nothing held yet
		fill(model.ActionBuy, 1, 100, 0, 1),
		fill(model.ActionBuy, 1, 102, 0, 2),
	})
	assert.Equal(t, 2, applied)
	assert.Equal(t, 1, skipped)
	assert.InDelta(t, 101, pf.Position("eth_mxn").EntryPrice, 1e-12)
}

func TestConcurrentAccess(t *testing.T) {
	pf := New(1e6)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				pf.Summary()
				pf.Positions()
				pf.Position("eth_mxn")
			}
		}()
	}
	for j := 0; j < 100; j++ {
		pf.ApplyFill(fill(model.ActionBuy, 0.01, 100, 0, j))
	}
	wg.Wait()
	assert.InDelta(t, 1, pf.Position("eth_mxn").Size, 1e-9)
}
