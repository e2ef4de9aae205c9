package shared

import (
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN EVENTS
// ══════════════════════════════════════════════════════════════════════════════
// Events describe facts the watch engine has already recorded. Subscribers
// react to them (cache invalidation, announcements) but can never veto them.

// EventType identifies a kind of domain event.
type EventType string

const (
	// EventSessionStarted - зритель присоединился к просмотру (или возобновил его).
	EventSessionStarted EventType = "session.started"

	// EventWatchFinished - запись истории финализирована (уход или ручной ввод).
	EventWatchFinished EventType = "watch.finished"

	// EventBadgeEarned - зрителю выдано достижение.
	EventBadgeEarned EventType = "badge.earned"

	// EventMovieRated - зритель поставил фильму оценку.
	EventMovieRated EventType = "movie.rated"
)

// Event is a domain event.
type Event interface {
	// EventType returns the event kind.
	EventType() EventType

	// AggregateID identifies the entity the event belongs to (the viewer).
	AggregateID() string

	// OccurredAt returns when the event happened.
	OccurredAt() time.Time

	// Payload returns the event data for serialization.
	Payload() map[string]interface{}
}

// EventHandler processes a single event.
type EventHandler func(event Event) error

// EventBus distributes events to subscribers.
type EventBus interface {
	// Publish delivers the event to all matching subscribers.
	Publish(event Event) error

	// Subscribe registers a handler for one event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for every event type.
	SubscribeAll(handler EventHandler) error

	// Close shuts the bus down, waiting for in-flight handlers.
	Close() error
}

// ══════════════════════════════════════════════════════════════════════════════
// BASE EVENT
// ══════════════════════════════════════════════════════════════════════════════

// BaseEvent is the common implementation backing all concrete events.
type BaseEvent struct {
	eventType   EventType
	aggregateID string
	occurredAt  time.Time
	payload     map[string]interface{}
}

// NewBaseEvent creates an event with the current UTC timestamp.
func NewBaseEvent(eventType EventType, aggregateID string, payload map[string]interface{}) BaseEvent {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	return BaseEvent{
		eventType:   eventType,
		aggregateID: aggregateID,
		occurredAt:  time.Now().UTC(),
		payload:     payload,
	}
}

func (e BaseEvent) EventType() EventType             { return e.eventType }
func (e BaseEvent) AggregateID() string              { return e.aggregateID }
func (e BaseEvent) OccurredAt() time.Time            { return e.occurredAt }
func (e BaseEvent) Payload() map[string]interface{}  { return e.payload }
