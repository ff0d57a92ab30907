package resilience

import (
	"errors"
	"testing"
	"time"

	"talking-avatar/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errProvider = errors.New("provider down")

func newTestBreaker(cfg Config) (*CircuitBreaker, *time.Time) {
	cb := NewCircuitBreaker(cfg, logger.Discard())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }
	return cb, &now
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(Config{Name: "tts", FailureThreshold: 2, SuccessThreshold: 1, CoolDown: time.Minute})

	calls := 0
	fail := func() error { calls++; return errProvider }

	assert.ErrorIs(t, cb.Execute(fail), errProvider)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(fail), errProvider)
	assert.Equal(t, StateOpen, cb.State())

	assert.ErrorIs(t, cb.Execute(fail), ErrCircuitOpen)
	assert.Equal(t, 2, calls)
	assert.Equal(t, uint64(1), cb.Stats().Rejected)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	var transitions []State
	cb, now := newTestBreaker(Config{
		Name:             "llm",
		FailureThreshold: 1,
		SuccessThreshold: 1,
		CoolDown:         time.Minute,
		OnStateChange:    func(_ string, _, to State) { transitions = append(transitions, to) },
	})

	require.ErrorIs(t, cb.Execute(func() error { return errProvider }), errProvider)
	require.Equal(t, StateOpen, cb.State())

	*now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Execute(func() error { return nil }))

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb, now := newTestBreaker(Config{Name: "llm", FailureThreshold: 1, SuccessThreshold: 2, CoolDown: time.Minute})

	_ = cb.Execute(func() error { return errProvider })
	*now = now.Add(2 * time.Minute)
	_ = cb.Execute(func() error { return errProvider })

	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, uint64(2), cb.Stats().Opened)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(Config{Name: "x", FailureThreshold: 2, SuccessThreshold: 1, CoolDown: time.Minute})

	_ = cb.Execute(func() error { return errProvider })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return errProvider })

	assert.Equal(t, StateClosed, cb.State())
}

func TestCallReturnsValue(t *testing.T) {
	cb, _ := newTestBreaker(DefaultConfig("x"))

	out, err := Call(cb, func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	stats := cb.Stats()
	assert.Equal(t, uint64(1), stats.Requests)
	assert.Equal(t, uint64(1), stats.Successes)
}
