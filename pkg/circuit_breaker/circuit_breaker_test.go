package circuit_breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_Call(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	cb := New(Config{Window: 4, Timeout: time.Second, FailureRatio: 0.5, RecoveryCalls: 2}).(*circuitBreaker)
	cb.now = func() time.Time { return now }

	ok := func() error { return nil }
	errBroker := errors.New("broker down")
	fail := func() error { return errBroker }

	for i := 0; i < 8; i++ {
		require.NoError(t, cb.Call(ok))
	}
	require.Equal(t, Closed, cb.State())

	require.ErrorIs(t, cb.Call(fail), errBroker)
	require.Equal(t, Closed, cb.State())
	require.ErrorIs(t, cb.Call(fail), errBroker)
	require.Equal(t, Open, cb.State())

	called := false
	err := cb.Call(func() error { called = true; return nil })
	require.ErrorIs(t, err, ErrOpen)
	require.False(t, called)

	// timeout elapsed: one probe fails and the breaker opens again
	now = now.Add(2 * time.Second)
	require.ErrorIs(t, cb.Call(fail), errBroker)
	require.Equal(t, Open, cb.State())

	now = now.Add(2 * time.Second)
	require.NoError(t, cb.Call(ok))
	require.Equal(t, HalfOpen, cb.State())
	require.NoError(t, cb.Call(ok))
	require.Equal(t, Closed, cb.State())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	t.Parallel()
	cb := New(Config{Window: 2, Timeout: time.Hour, FailureRatio: 0.5, RecoveryCalls: 1})
	_ = cb.Call(func() error { return errors.New("x") })
	require.Equal(t, Open, cb.State())

	cb.Reset()
	require.Equal(t, Closed, cb.State())
	require.NoError(t, cb.Call(func() error { return nil }))
}
