package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream failure")

func failing(ctx context.Context) error { return errUpstream }
func succeeding(ctx context.Context) error { return nil }

func openBreaker(t *testing.T, cb *CircuitBreaker, failures int) {
	t.Helper()
	for i := 0; i < failures; i++ {
		_ = cb.Execute(context.Background(), failing)
	}
	require.Equal(t, StateOpen, cb.State())
}

func TestExecute_ClosedPassesThrough(t *testing.T) {
	cb := New("test")

	require.NoError(t, cb.Execute(context.Background(), succeeding))
	assert.Equal(t, StateClosed, cb.State())

	counts := cb.Counts()
	assert.Equal(t, 1, counts.Requests)
	assert.Equal(t, 1, counts.TotalSuccesses)
}

func TestExecute_OpensAfterThreshold(t *testing.T) {
	var transitions []string
	cb := New("test",
		WithFailureThreshold(3),
		WithOnStateChange(func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}),
	)

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, cb.Execute(context.Background(), failing), errUpstream)
		assert.Equal(t, StateClosed, cb.State())
	}

	assert.ErrorIs(t, cb.Execute(context.Background(), failing), errUpstream)
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, []string{"closed->open"}, transitions)

	// An open circuit rejects requests without invoking the function.
	called := false
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestExecute_HalfOpenRecovery(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(2),
		WithSuccessThreshold(2),
		WithTimeout(10*time.Millisecond),
		WithMaxHalfOpenRequests(5),
	)
	openBreaker(t, cb, 2)

	time.Sleep(15 * time.Millisecond)

	// First success moves to half-open, second closes the circuit.
	require.NoError(t, cb.Execute(context.Background(), succeeding))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(context.Background(), succeeding))
	assert.Equal(t, StateClosed, cb.State())
}

func TestExecute_HalfOpenFailureReopens(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(2),
		WithTimeout(10*time.Millisecond),
	)
	openBreaker(t, cb, 2)

	time.Sleep(15 * time.Millisecond)

	assert.ErrorIs(t, cb.Execute(context.Background(), failing), errUpstream)
	assert.Equal(t, StateOpen, cb.State())
}

func TestExecute_HalfOpenLimitsRequests(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(1),
		WithSuccessThreshold(10),
		WithTimeout(10*time.Millisecond),
		WithMaxHalfOpenRequests(1),
	)
	openBreaker(t, cb, 1)

	time.Sleep(15 * time.Millisecond)

	block := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(context.Background(), func(ctx context.Context) error {
			<-block
			return nil
		})
	}()

	// While the probe request is in flight, a second one is rejected.
	time.Sleep(5 * time.Millisecond)
	assert.ErrorIs(t, cb.Execute(context.Background(), succeeding), ErrTooManyRequests)

	close(block)
	require.NoError(t, <-done)
}

func TestExecuteWithFallback(t *testing.T) {
	cb := New("test", WithFailureThreshold(1), WithTimeout(time.Minute))
	openBreaker(t, cb, 1)

	fallbackUsed := false
	err := cb.ExecuteWithFallback(context.Background(), succeeding, func(err error) error {
		fallbackUsed = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, fallbackUsed)

	// Ordinary function errors do not go through the fallback.
	cb.Reset()
	fallbackUsed = false
	err = cb.ExecuteWithFallback(context.Background(), failing, func(err error) error {
		fallbackUsed = true
		return nil
	})
	assert.ErrorIs(t, err, errUpstream)
	assert.False(t, fallbackUsed)
}

func TestIsFailure_CustomClassifier(t *testing.T) {
	benign := errors.New("not found")
	cb := New("test",
		WithFailureThreshold(1),
		WithIsFailure(func(err error) bool { return !errors.Is(err, benign) }),
	)

	// Errors classified as benign do not open the circuit.
	assert.ErrorIs(t, cb.Execute(context.Background(), func(ctx context.Context) error {
		return benign
	}), benign)
	assert.Equal(t, StateClosed, cb.State())

	assert.ErrorIs(t, cb.Execute(context.Background(), failing), errUpstream)
	assert.Equal(t, StateOpen, cb.State())
}

func TestReset(t *testing.T) {
	cb := New("test", WithFailureThreshold(1))
	openBreaker(t, cb, 1)

	cb.Reset()

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, Counts{}, cb.Counts())
	require.NoError(t, cb.Execute(context.Background(), succeeding))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
}
