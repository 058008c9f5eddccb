package redis

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(maxFailures int) (*CircuitBreaker, *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(maxFailures, 30*time.Second)
	cb.now = clk.now
	return cb, clk
}

var errFail = errors.New("fail")

func fail() error { return errFail }
func ok() error   { return nil }

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb, _ := newTestBreaker(3)
	assert.Equal(t, StateClosed, cb.CurrentState())
	assert.Equal(t, "closed", cb.CurrentState().String())
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	cb, _ := newTestBreaker(3)

	for i := 0; i < 3; i++ {
		require.ErrorIs(t, cb.Execute(fail), errFail)
	}
	assert.Equal(t, StateOpen, cb.CurrentState())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "open breaker must not call through")
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb, clk := newTestBreaker(2)
	cb.Execute(fail)
	cb.Execute(fail)

	clk.advance(29 * time.Second)
	require.ErrorIs(t, cb.Execute(ok), ErrCircuitOpen, "before reset timeout")

	clk.advance(time.Second)
	require.NoError(t, cb.Execute(ok))
	assert.Equal(t, StateClosed, cb.CurrentState())
	assert.Zero(t, cb.Failures())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clk := newTestBreaker(2)
	cb.Execute(fail)
	cb.Execute(fail)

	clk.advance(time.Minute)
	cb.Execute(fail)
	require.Equal(t, StateOpen, cb.CurrentState())

	// The reset timeout restarts from the failed probe.
	clk.advance(10 * time.Second)
	assert.ErrorIs(t, cb.Execute(ok), ErrCircuitOpen)
}

func TestCircuitBreaker_SingleProbe(t *testing.T) {
	cb, clk := newTestBreaker(1)
	cb.Execute(fail)
	clk.advance(time.Minute)

	inner := errors.New("unset")
	err := cb.Execute(func() error {
		inner = cb.Execute(ok)
		return nil
	})
	require.NoError(t, err)
	assert.ErrorIs(t, inner, ErrCircuitOpen, "second call during probe")
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(3)

	cb.Execute(fail)
	cb.Execute(fail)
	cb.Execute(ok)
	cb.Execute(fail)
	cb.Execute(fail)

	assert.Equal(t, StateClosed, cb.CurrentState(), "counter should have reset")
	assert.Equal(t, 2, cb.Failures())
}

func TestCircuitBreaker_OnStateChangeCallback(t *testing.T) {
	cb, clk := newTestBreaker(1)
	var transitions []State
	cb.OnStateChange = func(from, to State) {
		transitions = append(transitions, to)
	}

	cb.Execute(fail)
	assert.Equal(t, []State{StateOpen}, transitions)

	clk.advance(time.Minute)
	cb.Execute(ok)
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
}
