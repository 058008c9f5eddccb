package model

import (
	"encoding/json"
	"time"
)

// PriceSample is one observed last-trade price for a pair.
// Immutable once recorded.
type PriceSample struct {
	Pair  string    `json:"pair"`
	TS    time.Time `json:"ts"` // UTC
	Price float64   `json:"price"`
}

// JSON returns the JSON-encoded sample (ignoring errors, the type always marshals).
func (s *PriceSample) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}
