package messaging

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frightclub/movie-night-hub/internal/domain/shared"
)

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fastRetryDispatcher строит диспетчер с короткими ретраями поверх
// синхронной шины, чтобы тесты не зависели от таймингов.
func fastRetryDispatcher(t *testing.T) (*Dispatcher, *InMemoryEventBus) {
	t.Helper()

	bus := syncBus()
	t.Cleanup(func() { _ = bus.Close() })

	cfg := DefaultDispatcherConfig(bus)
	cfg.RetryConfig = RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
	d := NewDispatcher(cfg)
	t.Cleanup(func() { _ = d.Stop() })
	return d, bus
}

func TestDispatcher_RoutesEventsFromBus(t *testing.T) {
	d, bus := fastRetryDispatcher(t)

	var mu sync.Mutex
	var got []string
	require.NoError(t, d.RegisterSync(shared.EventBadgeEarned, "badge-announcer", func(e shared.Event) error {
		mu.Lock()
		got = append(got, e.AggregateID())
		mu.Unlock()
		return nil
	}))
	require.NoError(t, d.Start())

	require.NoError(t, bus.Publish(testEvent(shared.EventBadgeEarned)))
	require.NoError(t, bus.Publish(testEvent(shared.EventWatchFinished)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"7"}, got)
}

func TestDispatcher_RetriesUntilSuccess(t *testing.T) {
	d, _ := fastRetryDispatcher(t)

	attempts := 0
	require.NoError(t, d.RegisterSync(shared.EventWatchFinished, "flaky", func(e shared.Event) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporarily down")
		}
		return nil
	}))

	require.NoError(t, d.Dispatch(testEvent(shared.EventWatchFinished)))
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 0, d.DeadLetterQueue().Size())

	snap := d.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalRetries)
}

func TestDispatcher_DeadLetterAfterExhaustedRetries(t *testing.T) {
	d, _ := fastRetryDispatcher(t)

	attempts := 0
	require.NoError(t, d.RegisterSync(shared.EventWatchFinished, "always-broken", func(e shared.Event) error {
		attempts++
		return errors.New("boom")
	}))

	err := d.Dispatch(testEvent(shared.EventWatchFinished))

	require.Error(t, err)
	assert.Equal(t, 3, attempts) // первая попытка плюс два ретрая

	require.Equal(t, 1, d.DeadLetterQueue().Size())
	entry, ok := d.DeadLetterQueue().Pop()
	require.True(t, ok)
	assert.Equal(t, "always-broken", entry.HandlerName)
	assert.Equal(t, 3, entry.Attempts)
	assert.Equal(t, shared.EventWatchFinished, entry.Event.EventType())
	assert.Error(t, entry.Error)
}

func TestDispatcher_RecoveryMiddlewareCatchesPanics(t *testing.T) {
	d, _ := fastRetryDispatcher(t)
	d.Use(RecoveryMiddleware(nopLogger()))

	require.NoError(t, d.RegisterHandler(shared.EventWatchFinished, HandlerRegistration{
		Name:       "panicky",
		MaxRetries: 1,
		Handler: func(e shared.Event) error {
			panic("handler exploded")
		},
	}))

	err := d.Dispatch(testEvent(shared.EventWatchFinished))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler panic")
	assert.Equal(t, 1, d.DeadLetterQueue().Size())
}

func TestDispatcher_HandlerTimeout(t *testing.T) {
	d, _ := fastRetryDispatcher(t)

	require.NoError(t, d.RegisterHandler(shared.EventWatchFinished, HandlerRegistration{
		Name:       "sleepy",
		MaxRetries: 1,
		Timeout:    5 * time.Millisecond,
		Handler: func(e shared.Event) error {
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}))

	err := d.Dispatch(testEvent(shared.EventWatchFinished))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestDispatcher_AsyncHandlersDoNotBlockDispatch(t *testing.T) {
	d, _ := fastRetryDispatcher(t)

	var mu sync.Mutex
	done := 0
	require.NoError(t, d.Register(shared.EventWatchFinished, "async-one", func(e shared.Event) error {
		mu.Lock()
		done++
		mu.Unlock()
		return nil
	}))
	require.NoError(t, d.Register(shared.EventWatchFinished, "async-two", func(e shared.Event) error {
		mu.Lock()
		done++
		mu.Unlock()
		return nil
	}))

	// dispatch ждёт завершения асинхронных обработчиков этого события.
	require.NoError(t, d.Dispatch(testEvent(shared.EventWatchFinished)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, done)
}

func TestDispatcher_CalculateBackoff(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{
		EventBus:    syncBus(),
		RetryConfig: DefaultRetryConfig(),
	})
	defer d.Stop()

	assert.Equal(t, 100*time.Millisecond, d.calculateBackoff(1))
	assert.Equal(t, 200*time.Millisecond, d.calculateBackoff(2))
	assert.Equal(t, 400*time.Millisecond, d.calculateBackoff(3))
	// Экспонента упирается в потолок.
	assert.Equal(t, 5*time.Second, d.calculateBackoff(20))
}

func TestDeadLetterQueue_EvictsOldestAtCapacity(t *testing.T) {
	q := NewDeadLetterQueue(2)

	q.Add(DeadLetterEntry{HandlerName: "a"})
	q.Add(DeadLetterEntry{HandlerName: "b"})
	q.Add(DeadLetterEntry{HandlerName: "c"})

	entries := q.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].HandlerName)
	assert.Equal(t, "c", entries[1].HandlerName)

	q.Clear()
	assert.Equal(t, 0, q.Size())
	_, ok := q.Pop()
	assert.False(t, ok)
}
