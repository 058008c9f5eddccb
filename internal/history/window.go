// Package history keeps the bounded price window each trading pair is
// evaluated over.
//
// A Window is a fixed-capacity ring of PriceSamples in strictly increasing
// timestamp order. Appending to a full window evicts the oldest sample.
// Rejected appends leave the window untouched.
package history

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"pitrader/internal/model"
)

var (
	ErrInvalidPrice = errors.New("history: price must be positive and finite")
	ErrOutOfOrder   = errors.New("history: sample not after last timestamp")
	ErrPairMismatch = errors.New("history: sample belongs to another pair")
)

// Window is safe for one writer and any number of readers.
type Window struct {
	pair string

	mu    sync.RWMutex
	buf   []model.PriceSample
	head  int // index of the oldest sample
	count int

	evicted atomic.Uint64
}

// New creates a window for pair holding at most capacity samples.
// Minimum capacity is 1.
func New(pair string, capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{
		pair: pair,
		buf:  make([]model.PriceSample, capacity),
	}
}

// Pair returns the book this window tracks.
func (w *Window) Pair() string { return w.pair }

// Append adds s as the newest sample, evicting the oldest one when full.
func (w *Window) Append(s model.PriceSample) error {
	if s.Pair != "" && s.Pair != w.pair {
		return fmt.Errorf("%w: %s into %s", ErrPairMismatch, s.Pair, w.pair)
	}
	if !(s.Price > 0) || math.IsInf(s.Price, 1) {
		return fmt.Errorf("%w: %v", ErrInvalidPrice, s.Price)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.count > 0 {
		last := w.buf[(w.head+w.count-1)%len(w.buf)]
		if !s.TS.After(last.TS) {
			return fmt.Errorf("%w: %s <= %s", ErrOutOfOrder, s.TS.Format("2006-01-02T15:04:05.000Z07:00"),
				last.TS.Format("2006-01-02T15:04:05.000Z07:00"))
		}
	}

	s.Pair = w.pair
	if w.count == len(w.buf) {
		// Full: overwrite the oldest slot and advance head
		w.buf[w.head] = s
		w.head = (w.head + 1) % len(w.buf)
		w.evicted.Add(1)
		return nil
	}
	w.buf[(w.head+w.count)%len(w.buf)] = s
	w.count++
	return nil
}

// Restore bulk-loads samples (oldest first), skipping any that Append
// would reject, and returns how many were kept. Older samples may still be
// evicted when more than Cap are supplied.
func (w *Window) Restore(samples []model.PriceSample) int {
	kept := 0
	for _, s := range samples {
		if w.Append(s) == nil {
			kept++
		}
	}
	if kept > w.Cap() {
		kept = w.Cap()
	}
	return kept
}

// Len returns the number of samples held.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.count
}

// Cap returns the retention capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Evicted returns how many samples have been dropped to make room.
func (w *Window) Evicted() uint64 { return w.evicted.Load() }

// Last returns the newest sample.
func (w *Window) Last() (model.PriceSample, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.count == 0 {
		return model.PriceSample{}, false
	}
	return w.buf[(w.head+w.count-1)%len(w.buf)], true
}

// Samples returns a copy of the window, oldest first.
func (w *Window) Samples() []model.PriceSample {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]model.PriceSample, w.count)
	for i := 0; i < w.count; i++ {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return out
}

// Prices returns a copy of the window's prices, oldest first.
func (w *Window) Prices() []float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]float64, w.count)
	for i := 0; i < w.count; i++ {
		out[i] = w.buf[(w.head+i)%len(w.buf)].Price
	}
	return out
}
