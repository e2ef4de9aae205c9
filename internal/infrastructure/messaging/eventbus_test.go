package messaging

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frightclub/movie-night-hub/internal/domain/shared"
)

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:     false,
		EnableMetrics: true,
	})
}

func testEvent(eventType shared.EventType) shared.Event {
	return shared.NewBaseEvent(eventType, "7", map[string]interface{}{
		"movie_title": "Halloween",
	})
}

func TestInMemoryEventBus_SubscribeAndPublish(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var finished, badges int
	require.NoError(t, bus.Subscribe(shared.EventWatchFinished, func(e shared.Event) error {
		finished++
		return nil
	}))
	require.NoError(t, bus.Subscribe(shared.EventBadgeEarned, func(e shared.Event) error {
		badges++
		return nil
	}))

	require.NoError(t, bus.Publish(testEvent(shared.EventWatchFinished)))
	require.NoError(t, bus.Publish(testEvent(shared.EventWatchFinished)))
	require.NoError(t, bus.Publish(testEvent(shared.EventBadgeEarned)))

	assert.Equal(t, 2, finished)
	assert.Equal(t, 1, badges)
}

func TestInMemoryEventBus_SubscribeAllSeesEverything(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var seen []shared.EventType
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		seen = append(seen, e.EventType())
		return nil
	}))

	require.NoError(t, bus.Publish(testEvent(shared.EventSessionStarted)))
	require.NoError(t, bus.Publish(testEvent(shared.EventMovieRated)))

	assert.Equal(t, []shared.EventType{shared.EventSessionStarted, shared.EventMovieRated}, seen)
}

func TestInMemoryEventBus_HandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var second bool
	require.NoError(t, bus.Subscribe(shared.EventWatchFinished, func(e shared.Event) error {
		return errors.New("boom")
	}))
	require.NoError(t, bus.Subscribe(shared.EventWatchFinished, func(e shared.Event) error {
		second = true
		return nil
	}))

	require.NoError(t, bus.Publish(testEvent(shared.EventWatchFinished)))
	assert.True(t, second)
}

func TestInMemoryEventBus_AsyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 4,
		EnableMetrics:  true,
	})

	var mu sync.Mutex
	count := 0
	require.NoError(t, bus.Subscribe(shared.EventWatchFinished, func(e shared.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(testEvent(shared.EventWatchFinished)))
	}

	// Close дожидается всех запущенных обработчиков.
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 10, count)
}

func TestInMemoryEventBus_ClosedBusRejectsOperations(t *testing.T) {
	bus := syncBus()
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(testEvent(shared.EventWatchFinished)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventWatchFinished, func(shared.Event) error { return nil }), ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll(func(shared.Event) error { return nil }), ErrEventBusClosed)

	// Повторное закрытие безопасно.
	require.NoError(t, bus.Close())
}

func TestInMemoryEventBus_NilArguments(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	assert.Error(t, bus.Publish(nil))
	assert.Error(t, bus.Subscribe(shared.EventWatchFinished, nil))
	assert.Error(t, bus.SubscribeAll(nil))
}

func TestInMemoryEventBus_Metrics(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	require.NoError(t, bus.Subscribe(shared.EventWatchFinished, func(e shared.Event) error { return nil }))
	require.NoError(t, bus.Subscribe(shared.EventWatchFinished, func(e shared.Event) error { return errors.New("boom") }))

	require.NoError(t, bus.Publish(testEvent(shared.EventWatchFinished)))

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalPublished)
	assert.Equal(t, int64(2), snap.TotalHandlerExecs)
	assert.InDelta(t, 0.5, snap.HandlerSuccessRate, 0.001)
}

// ──────────────────────────────────────────────────────────────────────────────
// Envelope
// ──────────────────────────────────────────────────────────────────────────────

func TestEventEnvelope_Roundtrip(t *testing.T) {
	event := testEvent(shared.EventBadgeEarned)
	envelope := eventEnvelope{
		InstanceID:  "hub-1",
		EventType:   event.EventType(),
		AggregateID: event.AggregateID(),
		OccurredAt:  event.OccurredAt(),
		Payload:     event.Payload(),
	}

	raw, err := json.Marshal(envelope)
	require.NoError(t, err)

	var decoded eventEnvelope
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "hub-1", decoded.InstanceID)
	assert.Equal(t, shared.EventBadgeEarned, decoded.EventType)
	assert.Equal(t, "7", decoded.AggregateID)
	assert.Equal(t, "Halloween", decoded.Payload["movie_title"])
	assert.WithinDuration(t, event.OccurredAt(), decoded.OccurredAt, time.Second)
}

func TestRemoteEvent_ImplementsEvent(t *testing.T) {
	now := time.Now().UTC()
	var e shared.Event = &remoteEvent{
		eventType:   shared.EventWatchFinished,
		aggregateID: "9",
		occurredAt:  now,
		payload:     map[string]interface{}{"completion_pct": 87.5},
	}

	assert.Equal(t, shared.EventWatchFinished, e.EventType())
	assert.Equal(t, "9", e.AggregateID())
	assert.Equal(t, now, e.OccurredAt())
	assert.Equal(t, 87.5, e.Payload()["completion_pct"])
}
