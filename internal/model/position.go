package model

import "time"

// Position is the open long exposure in one pair. At most one position is
// open per pair; EntryPrice and Size are meaningful only when IsOpen.
type Position struct {
	Pair       string    `json:"pair"`
	IsOpen     bool      `json:"is_open"`
	EntryPrice float64   `json:"entry_price"` // size-weighted average of the open lots
	Size       float64   `json:"size"`        // base asset units
	OpenedAt   time.Time `json:"opened_at"`
	LastPrice  float64   `json:"last_price"`
}

// UnrealizedPnL is the mark-to-market profit of the open position.
func (p *Position) UnrealizedPnL() float64 {
	if !p.IsOpen || p.LastPrice == 0 {
		return 0
	}
	return (p.LastPrice - p.EntryPrice) * p.Size
}
