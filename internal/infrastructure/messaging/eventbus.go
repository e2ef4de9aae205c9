// Package messaging implements the domain event bus for the watch hub.
// It provides an in-memory bus for single-instance deployments and a
// Redis Pub/Sub backed bus for running several hub instances side by side.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/frightclub/movie-night-hub/internal/domain/shared"
	"github.com/frightclub/movie-night-hub/internal/infrastructure/persistence/redis"
)

// DefaultEventChannel is the Redis Pub/Sub channel for domain events.
const DefaultEventChannel = "movie-night-hub:events"

// ErrEventBusClosed is returned for operations on a closed bus.
var ErrEventBusClosed = errors.New("event bus is closed")

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBus implements shared.EventBus inside one process. In async
// mode handlers run on a bounded worker pool and Close waits for them; in
// sync mode Publish runs handlers inline, logging rather than returning
// their errors so one broken subscriber does not starve the rest.
type InMemoryEventBus struct {
	mu      sync.RWMutex
	byType  map[shared.EventType][]shared.EventHandler
	globals []shared.EventHandler
	closed  bool

	async   bool
	sem     chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	logger  *slog.Logger
	metrics *EventBusMetrics
}

// InMemoryEventBusConfig configures an InMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode runs handlers on the worker pool instead of inline.
	AsyncMode bool

	// WorkerPoolSize bounds concurrent handlers in async mode.
	WorkerPoolSize int

	Logger *slog.Logger

	// EnableMetrics turns on per-bus counters.
	EnableMetrics bool
}

// DefaultInMemoryEventBusConfig returns production defaults.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 8,
		EnableMetrics:  true,
	}
}

// NewInMemoryEventBus creates an in-memory bus.
func NewInMemoryEventBus(cfg InMemoryEventBusConfig) *InMemoryEventBus {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 8
	}

	bus := &InMemoryEventBus{
		byType: make(map[shared.EventType][]shared.EventHandler),
		async:  cfg.AsyncMode,
		sem:    make(chan struct{}, cfg.WorkerPoolSize),
		done:   make(chan struct{}),
		logger: cfg.Logger,
	}
	if cfg.EnableMetrics {
		bus.metrics = NewEventBusMetrics()
	}
	return bus
}

// Subscribe registers a handler for one event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}
	b.byType[eventType] = append(b.byType[eventType], handler)
	b.logger.Debug("subscribed handler", "event_type", eventType)
	return nil
}

// SubscribeAll registers a handler that sees every event.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}
	b.globals = append(b.globals, handler)
	b.logger.Debug("subscribed global handler")
	return nil
}

// Publish delivers the event to typed and global subscribers.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	typed := b.byType[event.EventType()]
	handlers := make([]shared.EventHandler, 0, len(typed)+len(b.globals))
	handlers = append(handlers, typed...)
	handlers = append(handlers, b.globals...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.logger.Debug("no handlers for event", "event_type", event.EventType())
		return nil
	}
	if b.metrics != nil {
		b.metrics.published(event.EventType())
	}

	for _, handler := range handlers {
		if b.async {
			b.spawn(event, handler)
			continue
		}
		if err := b.invoke(event, handler); err != nil {
			b.logger.Error("handler error", "event_type", event.EventType(), "error", err)
		}
	}
	return nil
}

// invoke runs one handler and feeds the metrics.
func (b *InMemoryEventBus) invoke(event shared.Event, handler shared.EventHandler) error {
	start := time.Now()
	err := handler(event)
	if b.metrics != nil {
		b.metrics.handled(time.Since(start), err == nil)
	}
	return err
}

// spawn runs the handler on the worker pool. Handlers queued before Close
// still run, the pool slot wait aborts once the bus is closed.
func (b *InMemoryEventBus) spawn(event shared.Event, handler shared.EventHandler) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		select {
		case b.sem <- struct{}{}:
			defer func() { <-b.sem }()
		case <-b.done:
			return
		}

		if err := b.invoke(event, handler); err != nil {
			b.logger.Error("async handler error", "event_type", event.EventType(), "error", err)
		}
	}()
}

// Close waits for in-flight async handlers. Safe to call twice.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.wg.Wait()
	b.logger.Info("event bus closed")
	return nil
}

// Metrics returns the bus counters, nil when disabled.
func (b *InMemoryEventBus) Metrics() *EventBusMetrics { return b.metrics }

// ══════════════════════════════════════════════════════════════════════════════
// REDIS EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// RedisEventBus fans events out through Redis Pub/Sub so that several hub
// instances sharing one Redis see each other's watch and badge events.
// Local handlers are served by an embedded InMemoryEventBus; envelopes
// carry the publishing instance's ID so self-published messages coming
// back from Redis are dropped.
type RedisEventBus struct {
	cache      *redis.Cache
	localBus   *InMemoryEventBus
	channel    string
	instanceID string
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	sub    *goredis.PubSub
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// RedisEventBusConfig configures a RedisEventBus.
type RedisEventBusConfig struct {
	// Cache is the Redis connection to publish and subscribe through.
	Cache *redis.Cache

	// ChannelName overrides DefaultEventChannel.
	ChannelName string

	// InstanceID identifies this process; empty means autogenerated.
	InstanceID string

	// LocalBusConfig configures the embedded in-memory bus.
	LocalBusConfig InMemoryEventBusConfig

	Logger *slog.Logger
}

// NewRedisEventBus opens the subscription and starts the receive loop.
func NewRedisEventBus(cfg RedisEventBusConfig) (*RedisEventBus, error) {
	if cfg.Cache == nil {
		return nil, errors.New("redis cache is required")
	}
	if cfg.ChannelName == "" {
		cfg.ChannelName = DefaultEventChannel
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = fmt.Sprintf("hub-%d", time.Now().UnixNano())
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	bus := &RedisEventBus{
		cache:      cfg.Cache,
		localBus:   NewInMemoryEventBus(cfg.LocalBusConfig),
		channel:    cfg.ChannelName,
		instanceID: cfg.InstanceID,
		logger:     cfg.Logger,
		ctx:        ctx,
		cancel:     cancel,
		sub:        cfg.Cache.Subscribe(ctx, cfg.ChannelName),
	}

	bus.wg.Add(1)
	go func() {
		defer bus.wg.Done()
		bus.receive(bus.sub.Channel())
	}()
	return bus, nil
}

// Subscribe registers a handler for one event type.
func (b *RedisEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.localBus.Subscribe(eventType, handler)
}

// SubscribeAll registers a handler that sees every event.
func (b *RedisEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.localBus.SubscribeAll(handler)
}

// Publish sends the event to Redis and to local handlers. A Redis outage
// degrades to local-only delivery rather than failing the publish.
func (b *RedisEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrEventBusClosed
	}

	envelope := eventEnvelope{
		InstanceID:  b.instanceID,
		EventType:   event.EventType(),
		AggregateID: event.AggregateID(),
		OccurredAt:  event.OccurredAt(),
		Payload:     event.Payload(),
	}
	// Cache.Publish serializes the envelope before sending.
	if err := b.cache.Publish(b.ctx, b.channel, envelope); err != nil {
		b.logger.Error("failed to publish to redis", "error", err)
	}

	return b.localBus.Publish(event)
}

// receive replays messages from other instances onto the local bus.
func (b *RedisEventBus) receive(messages <-chan *goredis.Message) {
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			b.replay(msg.Payload)
		}
	}
}

func (b *RedisEventBus) replay(payload string) {
	var envelope eventEnvelope
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		b.logger.Error("failed to unmarshal event", "error", err)
		return
	}

	// Own events were already handled locally at publish time.
	if envelope.InstanceID == b.instanceID {
		return
	}

	err := b.localBus.Publish(&remoteEvent{
		eventType:   envelope.EventType,
		aggregateID: envelope.AggregateID,
		occurredAt:  envelope.OccurredAt,
		payload:     envelope.Payload,
	})
	if err != nil {
		b.logger.Error("failed to process remote event", "error", err)
	}
}

// Close stops the receive loop, then drains the local bus.
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	if err := b.sub.Close(); err != nil {
		b.logger.Error("failed to close redis subscription", "error", err)
	}
	b.wg.Wait()

	if err := b.localBus.Close(); err != nil {
		b.logger.Error("failed to close local bus", "error", err)
	}
	b.logger.Info("redis event bus closed")
	return nil
}

// Metrics returns the embedded local bus counters.
func (b *RedisEventBus) Metrics() *EventBusMetrics { return b.localBus.Metrics() }

// ══════════════════════════════════════════════════════════════════════════════
// WIRE FORMAT
// ══════════════════════════════════════════════════════════════════════════════

// eventEnvelope is the JSON shape events travel over Redis in.
type eventEnvelope struct {
	InstanceID  string                 `json:"instance_id"`
	EventType   shared.EventType       `json:"event_type"`
	AggregateID string                 `json:"aggregate_id"`
	OccurredAt  time.Time              `json:"occurred_at"`
	Payload     map[string]interface{} `json:"payload"`
}

// remoteEvent is a deserialized event from another instance.
type remoteEvent struct {
	eventType   shared.EventType
	aggregateID string
	occurredAt  time.Time
	payload     map[string]interface{}
}

func (e *remoteEvent) EventType() shared.EventType     { return e.eventType }
func (e *remoteEvent) AggregateID() string             { return e.aggregateID }
func (e *remoteEvent) OccurredAt() time.Time           { return e.occurredAt }
func (e *remoteEvent) Payload() map[string]interface{} { return e.payload }

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// EventBusMetrics counts publishes and handler outcomes for one bus.
type EventBusMetrics struct {
	mu sync.RWMutex

	publishedByType map[shared.EventType]int64
	execs           int64
	successes       int64
	totalDuration   time.Duration
	startedAt       time.Time
}

// NewEventBusMetrics creates zeroed counters.
func NewEventBusMetrics() *EventBusMetrics {
	return &EventBusMetrics{
		publishedByType: make(map[shared.EventType]int64),
		startedAt:       time.Now(),
	}
}

func (m *EventBusMetrics) published(eventType shared.EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishedByType[eventType]++
}

func (m *EventBusMetrics) handled(duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execs++
	m.totalDuration += duration
	if success {
		m.successes++
	}
}

// Snapshot returns a point-in-time copy of the counters.
func (m *EventBusMetrics) Snapshot() EventBusMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var published int64
	for _, n := range m.publishedByType {
		published += n
	}

	successRate := 1.0
	avg := time.Duration(0)
	if m.execs > 0 {
		successRate = float64(m.successes) / float64(m.execs)
		avg = m.totalDuration / time.Duration(m.execs)
	}

	return EventBusMetricsSnapshot{
		TotalPublished:         published,
		TotalHandlerExecs:      m.execs,
		HandlerSuccessRate:     successRate,
		AverageHandlerDuration: avg,
		StartedAt:              m.startedAt,
	}
}

// EventBusMetricsSnapshot is a point-in-time view of bus counters.
type EventBusMetricsSnapshot struct {
	TotalPublished         int64
	TotalHandlerExecs      int64
	HandlerSuccessRate     float64
	AverageHandlerDuration time.Duration
	StartedAt              time.Time
}
