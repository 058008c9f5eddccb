package execution

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pitrader/internal/model"
	"pitrader/pkg/bitso"
)

func buy(pair string, price, notional float64) model.Order {
	return model.Order{Pair: pair, Action: model.ActionBuy, Price: price, Notional: notional, Reason: "test"}
}

func sell(pair string, price, size float64) model.Order {
	return model.Order{Pair: pair, Action: model.ActionSell, Price: price, Size: size, Reason: "test"}
}

// ─── Paper ───────────────────────────────────────────────────

func TestPaper_BuySizedFromNotional(t *testing.T) {
	p := NewPaperExecutor(0, 0.0065)
	f, err := p.Execute(context.Background(), buy("eth_mxn", 50000, 100))
	require.NoError(t, err)

	assert.Equal(t, "PAPER-1", f.OrderID)
	assert.True(t, f.DryRun)
	assert.InDelta(t, 0.002, f.Size, 1e-12)
	assert.InDelta(t, 100, f.Notional, 1e-9)
	assert.InDelta(t, 0.65, f.Fee, 1e-9)
}

func TestPaper_SlippageDirection(t *testing.T) {
	p := NewPaperExecutor(10, 0) // 0.1%
	ctx := context.Background()

	b, err := p.Execute(ctx, buy("eth_mxn", 1000, 100))
	require.NoError(t, err)
	assert.InDelta(t, 1001, b.Price, 1e-9)
	assert.InDelta(t, 1, b.Slippage, 1e-9)

	s, err := p.Execute(ctx, sell("eth_mxn", 1000, 0.5))
	require.NoError(t, err)
	assert.InDelta(t, 999, s.Price, 1e-9)
	assert.InDelta(t, 499.5, s.Notional, 1e-9)

	assert.Len(t, p.Fills(), 2)
	assert.Equal(t, "PAPER-2", p.Fills()[1].OrderID)
}

func TestPaper_RejectsInvalid(t *testing.T) {
	p := NewPaperExecutor(0, 0)
	ctx := context.Background()
	for _, o := range []model.Order{
		buy("eth_mxn", 0, 100),
		buy("eth_mxn", 100, 0),
		sell("eth_mxn", 100, -1),
		{Pair: "eth_mxn", Action: model.ActionHold, Price: 100},
	} {
		_, err := p.Execute(ctx, o)
		assert.ErrorIs(t, err, ErrInvalidOrder, "%+v", o)
	}
	assert.Empty(t, p.Fills())
}

// ─── Live ────────────────────────────────────────────────────

type fakeExchange struct {
	balances map[string]float64
	placed   []bitso.OrderRequest
	err      error
}

func (f *fakeExchange) PlaceOrder(_ context.Context, req bitso.OrderRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.placed = append(f.placed, req)
	return "oid-1", nil
}

func (f *fakeExchange) Available(_ context.Context, currency string) (float64, error) {
	return f.balances[currency], nil
}

func TestLive_BuyUsesMinor(t *testing.T) {
	ex := &fakeExchange{}
	l := NewLiveExecutor(ex, nil, 0.0065)

	f, err := l.Execute(context.Background(), buy("eth_mxn", 40000, 100))
	require.NoError(t, err)
	require.Len(t, ex.placed, 1)

	req := ex.placed[0]
	assert.Equal(t, bitso.SideBuy, req.Side)
	assert.Equal(t, "market", req.Type)
	assert.True(t, req.Minor.Equal(decimal.NewFromInt(100)))
	assert.True(t, req.Major.IsZero())
	assert.Equal(t, "oid-1", f.OrderID)
	assert.False(t, f.DryRun)
	assert.InDelta(t, 0.0025, f.Size, 1e-12)
}

func TestLive_SellClippedToBalance(t *testing.T) {
	ex := &fakeExchange{balances: map[string]float64{"eth": 0.004}}
	l := NewLiveExecutor(ex, nil, 0)

	f, err := l.Execute(context.Background(), sell("eth_mxn", 40000, 0.005))
	require.NoError(t, err)
	assert.InDelta(t, 0.004, f.Size, 1e-12)
	assert.Equal(t, "0.004", ex.placed[0].Major.String())
	assert.Equal(t, bitso.SideSell, ex.placed[0].Side)
}

func TestLive_BelowMinimum(t *testing.T) {
	ex := &fakeExchange{balances: map[string]float64{"avax": 0.05}}
	l := NewLiveExecutor(ex, nil, 0)
	ctx := context.Background()

	_, err := l.Execute(ctx, sell("avax_mxn", 500, 1))
	assert.ErrorIs(t, err, ErrBelowMinimum)

	// 10 MXN of ETH at 50k is 0.0002 ETH.
	_, err = l.Execute(ctx, buy("eth_mxn", 50000, 10))
	assert.ErrorIs(t, err, ErrBelowMinimum)
	assert.Empty(t, ex.placed)
}

func TestLive_ExchangeError(t *testing.T) {
	boom := errors.New("boom")
	l := NewLiveExecutor(&fakeExchange{err: boom}, nil, 0)
	_, err := l.Execute(context.Background(), buy("eth_mxn", 100, 100))
	assert.ErrorIs(t, err, boom)
}

func TestMinimums(t *testing.T) {
	m := NewMinimums()
	assert.Equal(t, 0.1, m.For("AVAX_MXN"))
	assert.Equal(t, DefaultMinimum, m.For("doge_mxn"))

	n := m.Update([]bitso.Book{
		{Book: "doge_mxn", MinimumAmount: decimal.RequireFromString("5")},
		{Book: "bad_mxn"},
	})
	assert.Equal(t, 1, n)
	assert.Equal(t, 5.0, m.For("doge_mxn"))
	assert.Equal(t, DefaultMinimum, m.For("bad_mxn"))
}

// ─── Journal ─────────────────────────────────────────────────

func TestJournal_RoundTrip(t *testing.T) {
	j, err := NewJournal(filepath.Join(t.TempDir(), "fills.db"))
	require.NoError(t, err)
	defer j.Close()

	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fills := []model.Fill{
		{OrderID: "PAPER-1", Pair: "eth_mxn", Action: model.ActionBuy, Price: 100, Size: 1, Notional: 100, Fee: 0.65, Reason: "ma_cross_up", DryRun: true, FilledAt: t0},
		{OrderID: "PAPER-2", Pair: "eth_mxn", Action: model.ActionSell, Price: 110, Size: 1, Notional: 110, DryRun: true, FilledAt: t0.Add(time.Hour)},
	}
	for _, f := range fills {
		require.NoError(t, j.RecordFill(f))
	}

	all, err := j.Fills(time.Time{})
	require.NoError(t, err)
	assert.Equal(t, fills, all)

	later, err := j.Fills(t0.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, later, 1)
	assert.Equal(t, "PAPER-2", later[0].OrderID)

	recent, err := j.Recent(1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, model.ActionSell, recent[0].Action)
	assert.NoError(t, j.Ping())
}
