package execution

import (
	"strings"
	"sync"

	"pitrader/pkg/bitso"
)

// DefaultMinimum applies to books without a known minimum.
const DefaultMinimum = 0.001

// Minimums holds the smallest base-asset amount accepted per book.
type Minimums struct {
	mu sync.RWMutex
	m  map[string]float64
}

// NewMinimums returns the built-in table.
func NewMinimums() *Minimums {
	return &Minimums{m: map[string]float64{
		"eth_mxn":  0.001,
		"ltc_mxn":  0.01,
		"avax_mxn": 0.1,
		"sol_mxn":  0.01,
	}}
}

// For returns the minimum trade size of pair.
func (m *Minimums) For(pair string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.m[strings.ToLower(pair)]; ok {
		return v
	}
	return DefaultMinimum
}

// Update overrides entries with the limits the exchange reports.
// Books with a non-positive minimum are ignored.
func (m *Minimums) Update(books []bitso.Book) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range books {
		v, _ := b.MinimumAmount.Float64()
		if v <= 0 {
			continue
		}
		m.m[strings.ToLower(b.Book)] = v
		n++
	}
	return n
}
