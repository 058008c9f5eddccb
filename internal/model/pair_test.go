package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseQuoteAsset(t *testing.T) {
	tests := []struct {
		pair, base, quote string
	}{
		{"eth_mxn", "eth", "mxn"},
		{"SOL_MXN", "sol", "mxn"},
		{"btc", "btc", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.base, BaseAsset(tt.pair), "BaseAsset(%q)", tt.pair)
		assert.Equal(t, tt.quote, QuoteAsset(tt.pair), "QuoteAsset(%q)", tt.pair)
	}
}

func TestPosition_UnrealizedPnL(t *testing.T) {
	p := Position{IsOpen: true, EntryPrice: 100, Size: 2, LastPrice: 110}
	assert.Equal(t, 20.0, p.UnrealizedPnL())
	p.IsOpen = false
	assert.Zero(t, p.UnrealizedPnL(), "closed position")
}
