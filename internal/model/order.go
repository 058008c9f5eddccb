package model

import "time"

// Action is the trade direction of a decision.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Order is a market order derived from a gated decision.
// Buys are sized in quote currency (Notional), sells in base units (Size).
type Order struct {
	Pair     string    `json:"pair"`
	Action   Action    `json:"action"`
	Price    float64   `json:"price"` // decision price, used for paper fills and estimates
	Notional float64   `json:"notional,omitempty"`
	Size     float64   `json:"size,omitempty"`
	Reason   string    `json:"reason"`
	TS       time.Time `json:"ts"`
}

// Fill is an executed (or simulated) order.
type Fill struct {
	OrderID  string    `json:"order_id"`
	Pair     string    `json:"pair"`
	Action   Action    `json:"action"`
	Price    float64   `json:"price"`
	Size     float64   `json:"size"`     // base units
	Notional float64   `json:"notional"` // price * size in quote currency
	Fee      float64   `json:"fee"`      // quote currency
	Slippage float64   `json:"slippage"` // per-unit price adjustment applied
	Reason   string    `json:"reason"`
	DryRun   bool      `json:"dry_run"`
	FilledAt time.Time `json:"filled_at"`
}
