package api

import "sync"

// replayEntry holds a single broadcasted envelope for replay.
type replayEntry struct {
	Seq  int64
	Data []byte // pre-built envelope JSON
}

// replayBuffer is a fixed-size circular buffer of recent envelopes so a
// reconnecting client can catch up from its last seen sequence number.
type replayBuffer struct {
	mu   sync.RWMutex
	buf  []replayEntry
	pos  int // next write position
	full bool
}

func newReplayBuffer(capacity int) *replayBuffer {
	if capacity <= 0 {
		capacity = 256
	}
	return &replayBuffer{buf: make([]replayEntry, capacity)}
}

// push appends an envelope, overwriting the oldest entry when full.
func (rb *replayBuffer) push(seq int64, data []byte) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.buf[rb.pos] = replayEntry{Seq: seq, Data: data}
	rb.pos = (rb.pos + 1) % len(rb.buf)
	if rb.pos == 0 {
		rb.full = true
	}
}

// after returns every entry with Seq > seq, oldest first.
func (rb *replayBuffer) after(seq int64) [][]byte {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	n, start := rb.pos, 0
	if rb.full {
		n, start = len(rb.buf), rb.pos
	}
	var out [][]byte
	for i := 0; i < n; i++ {
		e := rb.buf[(start+i)%len(rb.buf)]
		if e.Seq > seq {
			out = append(out, e.Data)
		}
	}
	return out
}
