package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/frightclub/movie-night-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// ══════════════════════════════════════════════════════════════════════════════

// Dispatcher routes domain events to named handlers. Handlers run through a
// middleware chain, failed deliveries are retried with exponential backoff,
// and events whose handlers keep failing land in a dead letter queue. The hub
// wires leaderboard invalidation and badge announcements through it so a
// flaky handler never breaks command processing.
type Dispatcher struct {
	bus     shared.EventBus
	retry   RetryConfig
	dlq     *DeadLetterQueue
	logger  *slog.Logger
	sem     chan struct{}
	metrics *DispatcherMetrics

	mu     sync.RWMutex
	routes map[shared.EventType][]HandlerRegistration
	chain  []Middleware

	ctx    context.Context
	cancel context.CancelFunc
}

// HandlerRegistration describes one handler subscription.
type HandlerRegistration struct {
	Name       string
	Handler    shared.EventHandler
	Async      bool
	MaxRetries int
	Timeout    time.Duration
}

// RetryConfig controls the backoff schedule for failed handlers.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the retry schedule used in production.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// EventBus is the bus the dispatcher subscribes to on Start.
	EventBus shared.EventBus

	// WorkerPoolSize caps concurrent handler executions.
	WorkerPoolSize int

	// RetryConfig sets the default backoff schedule.
	RetryConfig RetryConfig

	// EnableDeadLetterQueue keeps events whose handlers exhausted retries.
	EnableDeadLetterQueue bool

	// DeadLetterQueueSize caps the DLQ, oldest entries are evicted first.
	DeadLetterQueueSize int

	Logger *slog.Logger
}

// DefaultDispatcherConfig returns production defaults around the given bus.
func DefaultDispatcherConfig(bus shared.EventBus) DispatcherConfig {
	return DispatcherConfig{
		EventBus:              bus,
		WorkerPoolSize:        8,
		RetryConfig:           DefaultRetryConfig(),
		EnableDeadLetterQueue: true,
		DeadLetterQueueSize:   1000,
	}
}

// NewDispatcher builds a dispatcher. It does not touch the bus until Start.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 8
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		bus:     cfg.EventBus,
		retry:   cfg.RetryConfig,
		logger:  cfg.Logger,
		sem:     make(chan struct{}, cfg.WorkerPoolSize),
		metrics: NewDispatcherMetrics(),
		routes:  make(map[shared.EventType][]HandlerRegistration),
		ctx:     ctx,
		cancel:  cancel,
	}
	if cfg.EnableDeadLetterQueue {
		d.dlq = NewDeadLetterQueue(cfg.DeadLetterQueueSize)
	}
	return d
}

// ──────────────────────────────────────────────────────────────────────────────
// Registration
// ──────────────────────────────────────────────────────────────────────────────

// RegisterHandler subscribes a handler to an event type. Zero-valued fields
// of the registration fall back to dispatcher defaults.
func (d *Dispatcher) RegisterHandler(eventType shared.EventType, reg HandlerRegistration) error {
	if reg.Handler == nil {
		return errors.New("handler cannot be nil")
	}
	if reg.Name == "" {
		reg.Name = fmt.Sprintf("handler-%d", time.Now().UnixNano())
	}
	if reg.MaxRetries <= 0 {
		reg.MaxRetries = d.retry.MaxRetries
	}
	if reg.Timeout <= 0 {
		reg.Timeout = 30 * time.Second
	}

	d.mu.Lock()
	d.routes[eventType] = append(d.routes[eventType], reg)
	d.mu.Unlock()

	d.logger.Debug("registered handler",
		"event_type", eventType,
		"handler_name", reg.Name,
		"async", reg.Async,
	)
	return nil
}

// Register subscribes an async handler under the given name.
func (d *Dispatcher) Register(eventType shared.EventType, name string, handler shared.EventHandler) error {
	return d.RegisterHandler(eventType, HandlerRegistration{Name: name, Handler: handler, Async: true})
}

// RegisterSync subscribes a handler whose errors propagate to the publisher.
func (d *Dispatcher) RegisterSync(eventType shared.EventType, name string, handler shared.EventHandler) error {
	return d.RegisterHandler(eventType, HandlerRegistration{Name: name, Handler: handler})
}

// ──────────────────────────────────────────────────────────────────────────────
// Middleware
// ──────────────────────────────────────────────────────────────────────────────

// Middleware wraps handler execution.
type Middleware func(shared.EventHandler) shared.EventHandler

// Use appends a middleware. The first Use wraps outermost.
func (d *Dispatcher) Use(mw Middleware) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.chain = append(d.chain, mw)
}

// RecoveryMiddleware converts handler panics into errors.
func RecoveryMiddleware(logger *slog.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("handler panic recovered",
						"event_type", event.EventType(),
						"panic", r,
						"stack", string(debug.Stack()),
					)
					err = fmt.Errorf("handler panic: %v", r)
				}
			}()
			return next(event)
		}
	}
}

// LoggingMiddleware logs every handler execution with its duration.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) error {
			start := time.Now()
			err := next(event)

			if err != nil {
				logger.Error("handler failed",
					"event_type", event.EventType(),
					"aggregate_id", event.AggregateID(),
					"duration", time.Since(start),
					"error", err,
				)
				return err
			}
			logger.Debug("handler completed",
				"event_type", event.EventType(),
				"aggregate_id", event.AggregateID(),
				"duration", time.Since(start),
			)
			return nil
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Dispatching
// ──────────────────────────────────────────────────────────────────────────────

// Start subscribes the dispatcher to every event on the underlying bus.
func (d *Dispatcher) Start() error {
	return d.bus.SubscribeAll(d.dispatch)
}

// Dispatch routes a single event to its registered handlers. It returns after
// every handler for the event, async ones included, has finished; errors from
// sync handlers are aggregated into the returned error.
func (d *Dispatcher) Dispatch(event shared.Event) error {
	return d.dispatch(event)
}

func (d *Dispatcher) dispatch(event shared.Event) error {
	d.mu.RLock()
	regs := d.routes[event.EventType()]
	chain := d.chain
	d.mu.RUnlock()

	if len(regs) == 0 {
		return nil
	}
	d.metrics.dispatched(event.EventType())

	var wg sync.WaitGroup
	var errMu sync.Mutex
	var syncErrs []error

	for _, reg := range regs {
		if reg.Async {
			wg.Add(1)
			go func(r HandlerRegistration) {
				defer wg.Done()
				d.deliver(event, r, chain)
			}(reg)
			continue
		}
		if err := d.deliver(event, reg, chain); err != nil {
			errMu.Lock()
			syncErrs = append(syncErrs, err)
			errMu.Unlock()
		}
	}
	wg.Wait()

	if len(syncErrs) > 0 {
		return fmt.Errorf("sync handler errors: %v", syncErrs)
	}
	return nil
}

// deliver runs one handler through the middleware chain, retrying per the
// registration's schedule. Exhausted retries park the event in the DLQ.
func (d *Dispatcher) deliver(event shared.Event, reg HandlerRegistration, chain []Middleware) error {
	select {
	case d.sem <- struct{}{}:
		defer func() { <-d.sem }()
	case <-d.ctx.Done():
		return d.ctx.Err()
	}

	handler := reg.Handler
	for i := len(chain) - 1; i >= 0; i-- {
		handler = chain[i](handler)
	}

	var lastErr error
	for attempt := 0; attempt <= reg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := d.calculateBackoff(attempt)
			d.logger.Debug("retrying handler", "handler", reg.Name, "attempt", attempt, "backoff", wait)
			select {
			case <-d.ctx.Done():
				return d.ctx.Err()
			case <-time.After(wait):
			}
		}

		if lastErr = d.callWithTimeout(handler, event, reg.Timeout); lastErr == nil {
			if attempt > 0 {
				d.metrics.retried()
			}
			return nil
		}
		d.logger.Warn("handler attempt failed", "handler", reg.Name, "attempt", attempt, "error", lastErr)
	}

	if d.dlq != nil {
		d.dlq.Add(DeadLetterEntry{
			Event:       event,
			HandlerName: reg.Name,
			Error:       lastErr,
			Attempts:    reg.MaxRetries + 1,
			FailedAt:    time.Now(),
		})
	}
	d.metrics.failed()
	return fmt.Errorf("handler %s failed after %d attempts: %w", reg.Name, reg.MaxRetries+1, lastErr)
}

func (d *Dispatcher) callWithTimeout(handler shared.EventHandler, event shared.Event, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- handler(event) }()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("handler timeout after %v", timeout)
	case <-d.ctx.Done():
		return d.ctx.Err()
	}
}

// calculateBackoff returns initial * multiplier^(attempt-1), capped.
func (d *Dispatcher) calculateBackoff(attempt int) time.Duration {
	wait := float64(d.retry.InitialBackoff)
	for i := 1; i < attempt; i++ {
		wait *= d.retry.BackoffMultiplier
	}
	if max := float64(d.retry.MaxBackoff); wait > max {
		wait = max
	}
	return time.Duration(wait)
}

// ──────────────────────────────────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────────────────────────────────

// Stop cancels in-flight retries and waits for nothing: handlers already
// running finish on their own goroutines.
func (d *Dispatcher) Stop() error {
	d.cancel()
	d.logger.Info("dispatcher stopped")
	return nil
}

// Metrics returns the dispatcher's counters.
func (d *Dispatcher) Metrics() *DispatcherMetrics { return d.metrics }

// DeadLetterQueue returns the DLQ, nil when disabled.
func (d *Dispatcher) DeadLetterQueue() *DeadLetterQueue { return d.dlq }

// ══════════════════════════════════════════════════════════════════════════════
// DEAD LETTER QUEUE
// ══════════════════════════════════════════════════════════════════════════════

// DeadLetterEntry records an event that exhausted its handler's retries.
type DeadLetterEntry struct {
	Event       shared.Event
	HandlerName string
	Error       error
	Attempts    int
	FailedAt    time.Time
}

// DeadLetterQueue is a bounded FIFO of failed deliveries.
type DeadLetterQueue struct {
	mu      sync.RWMutex
	entries []DeadLetterEntry
	maxSize int
}

// NewDeadLetterQueue creates a queue holding at most maxSize entries.
func NewDeadLetterQueue(maxSize int) *DeadLetterQueue {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &DeadLetterQueue{maxSize: maxSize}
}

// Add appends an entry, evicting the oldest at capacity.
func (q *DeadLetterQueue) Add(entry DeadLetterEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) >= q.maxSize {
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, entry)
}

// Pop removes and returns the oldest entry.
func (q *DeadLetterQueue) Pop() (DeadLetterEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return DeadLetterEntry{}, false
	}
	entry := q.entries[0]
	q.entries = q.entries[1:]
	return entry, true
}

// Entries returns a copy of the queue contents, oldest first.
func (q *DeadLetterQueue) Entries() []DeadLetterEntry {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]DeadLetterEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Size returns the number of parked events.
func (q *DeadLetterQueue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}

// Clear drops all entries.
func (q *DeadLetterQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = nil
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// DispatcherMetrics counts dispatches, terminal failures, and recovered
// retries per dispatcher.
type DispatcherMetrics struct {
	mu sync.RWMutex

	dispatchedByType map[shared.EventType]int64
	totalFailures    int64
	totalRetries     int64
	startedAt        time.Time
}

// NewDispatcherMetrics creates zeroed counters.
func NewDispatcherMetrics() *DispatcherMetrics {
	return &DispatcherMetrics{
		dispatchedByType: make(map[shared.EventType]int64),
		startedAt:        time.Now(),
	}
}

func (m *DispatcherMetrics) dispatched(eventType shared.EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatchedByType[eventType]++
}

func (m *DispatcherMetrics) failed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalFailures++
}

func (m *DispatcherMetrics) retried() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalRetries++
}

// Snapshot returns a point-in-time copy of the counters.
func (m *DispatcherMetrics) Snapshot() DispatcherMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var dispatched int64
	for _, n := range m.dispatchedByType {
		dispatched += n
	}
	return DispatcherMetricsSnapshot{
		TotalDispatched: dispatched,
		TotalFailures:   m.totalFailures,
		TotalRetries:    m.totalRetries,
		StartedAt:       m.startedAt,
	}
}

// DispatcherMetricsSnapshot is a point-in-time view of dispatcher counters.
type DispatcherMetricsSnapshot struct {
	TotalDispatched int64
	TotalFailures   int64
	TotalRetries    int64
	StartedAt       time.Time
}
