package redis

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Sink is the write side of a Writer.
type Sink interface {
	WriteDecision(ctx context.Context, pair string, data []byte) error
	WriteFill(ctx context.Context, pair string, data []byte) error
}

type writeKind uint8

const (
	kindDecision writeKind = iota
	kindFill
)

// pendingWrite represents a write that was buffered during circuit-open state.
type pendingWrite struct {
	kind writeKind
	pair string
	data []byte
}

// BufferedWriter wraps a Sink with a circuit breaker.
// During circuit-open state, writes are buffered locally and flushed
// when the circuit closes again.
type BufferedWriter struct {
	sink    Sink
	cb      *CircuitBreaker
	timeout time.Duration

	mu     sync.Mutex
	buffer []pendingWrite
	maxBuf int // max buffered writes before dropping oldest (default: 1000)

	// Callbacks
	OnBuffer func()          // called when a write is buffered (for metrics)
	OnFlush  func(count int) // called after flushing buffered writes
}

// NewBufferedWriter creates a BufferedWriter wrapping sink.
func NewBufferedWriter(sink Sink, cb *CircuitBreaker, maxBufferSize int) *BufferedWriter {
	if maxBufferSize <= 0 {
		maxBufferSize = 1000
	}
	bw := &BufferedWriter{
		sink:    sink,
		cb:      cb,
		timeout: 5 * time.Second,
		buffer:  make([]pendingWrite, 0, 64),
		maxBuf:  maxBufferSize,
	}

	// Register flush on circuit close
	prevCallback := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prevCallback != nil {
			prevCallback(from, to)
		}
		if to == StateClosed {
			go bw.Flush()
		}
	}

	return bw
}

// PublishDecision writes a decision through the circuit breaker.
// If the circuit is open, the write is buffered and nil is returned.
func (bw *BufferedWriter) PublishDecision(pair string, data []byte) error {
	return bw.write(pendingWrite{kind: kindDecision, pair: pair, data: data})
}

// PublishFill writes a fill through the circuit breaker.
func (bw *BufferedWriter) PublishFill(pair string, data []byte) error {
	return bw.write(pendingWrite{kind: kindFill, pair: pair, data: data})
}

func (bw *BufferedWriter) write(pw pendingWrite) error {
	err := bw.cb.Execute(func() error { return bw.send(pw) })
	if errors.Is(err, ErrCircuitOpen) {
		bw.bufferWrite(pw)
		return nil // buffered, not lost
	}
	return err
}

func (bw *BufferedWriter) send(pw pendingWrite) error {
	ctx, cancel := context.WithTimeout(context.Background(), bw.timeout)
	defer cancel()
	if pw.kind == kindFill {
		return bw.sink.WriteFill(ctx, pw.pair, pw.data)
	}
	return bw.sink.WriteDecision(ctx, pw.pair, pw.data)
}

func (bw *BufferedWriter) bufferWrite(pw pendingWrite) {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	if len(bw.buffer) >= bw.maxBuf {
		// Buffer full: drop oldest
		bw.buffer = bw.buffer[1:]
	}
	bw.buffer = append(bw.buffer, pw)

	if bw.OnBuffer != nil {
		bw.OnBuffer()
	}
}

// Flush replays all buffered writes through the sink. Writes that fail
// again are dropped and logged.
func (bw *BufferedWriter) Flush() {
	bw.mu.Lock()
	if len(bw.buffer) == 0 {
		bw.mu.Unlock()
		return
	}
	// Take ownership of the buffer
	toFlush := bw.buffer
	bw.buffer = make([]pendingWrite, 0, 64)
	bw.mu.Unlock()

	flushed := 0
	for _, pw := range toFlush {
		if err := bw.send(pw); err != nil {
			slog.Warn("dropping buffered redis write", "pair", pw.pair, "error", err)
			continue
		}
		flushed++
	}

	slog.Info("flushed buffered redis writes", "count", flushed, "pending", len(toFlush))
	if bw.OnFlush != nil {
		bw.OnFlush(flushed)
	}
}

// PendingCount returns the number of buffered writes waiting to be flushed.
func (bw *BufferedWriter) PendingCount() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.buffer)
}

// Breaker returns the circuit breaker guarding the sink.
func (bw *BufferedWriter) Breaker() *CircuitBreaker { return bw.cb }
