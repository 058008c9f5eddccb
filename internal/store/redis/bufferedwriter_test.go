package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu        sync.Mutex
	fail      bool
	decisions []string
	fills     []string
}

func (s *recordingSink) WriteDecision(_ context.Context, pair string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("redis down")
	}
	s.decisions = append(s.decisions, pair+":"+string(data))
	return nil
}

func (s *recordingSink) WriteFill(_ context.Context, pair string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("redis down")
	}
	s.fills = append(s.fills, pair+":"+string(data))
	return nil
}

func (s *recordingSink) setFail(v bool) {
	s.mu.Lock()
	s.fail = v
	s.mu.Unlock()
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.decisions) + len(s.fills)
}

func TestBufferedWriter_PassThrough(t *testing.T) {
	sink := &recordingSink{}
	bw := NewBufferedWriter(sink, NewCircuitBreaker(2, time.Minute), 10)

	require.NoError(t, bw.PublishDecision("eth_mxn", []byte(`{"a":1}`)))
	require.NoError(t, bw.PublishFill("eth_mxn", []byte(`{"f":1}`)))

	assert.Equal(t, []string{`eth_mxn:{"a":1}`}, sink.decisions)
	assert.Equal(t, []string{`eth_mxn:{"f":1}`}, sink.fills)
	assert.Zero(t, bw.PendingCount())
}

func TestBufferedWriter_BuffersWhileOpenAndFlushesOnClose(t *testing.T) {
	sink := &recordingSink{fail: true}
	cb, clk := newTestBreaker(2)
	bw := NewBufferedWriter(sink, cb, 10)

	buffered := 0
	bw.OnBuffer = func() { buffered++ }

	assert.Error(t, bw.PublishDecision("eth_mxn", []byte("1")))
	assert.Error(t, bw.PublishDecision("eth_mxn", []byte("2")))
	require.Equal(t, StateOpen, cb.CurrentState())

	assert.NoError(t, bw.PublishDecision("eth_mxn", []byte("3")))
	assert.NoError(t, bw.PublishFill("sol_mxn", []byte("4")))
	assert.Equal(t, 2, bw.PendingCount())
	assert.Equal(t, 2, buffered)

	sink.setFail(false)
	clk.advance(time.Minute)
	require.NoError(t, bw.PublishDecision("eth_mxn", []byte("5")))

	require.Eventually(t, func() bool { return sink.count() == 3 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, bw.PendingCount())
}

func TestBufferedWriter_DropsOldestWhenFull(t *testing.T) {
	sink := &recordingSink{fail: true}
	cb, _ := newTestBreaker(1)
	bw := NewBufferedWriter(sink, cb, 2)

	_ = bw.PublishDecision("eth_mxn", []byte("trip"))
	for _, d := range []string{"a", "b", "c"} {
		require.NoError(t, bw.PublishDecision("eth_mxn", []byte(d)))
	}
	assert.Equal(t, 2, bw.PendingCount())

	sink.setFail(false)
	bw.Flush()
	assert.Equal(t, []string{"eth_mxn:b", "eth_mxn:c"}, sink.decisions)
}
