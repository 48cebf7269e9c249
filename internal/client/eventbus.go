package client

import (
	"sync"

	"canvasboard/broker/internal/logging"
)

// Topic names one of the closed set of local events the renderer, the
// Store, and the Bridge exchange. Named after the renderer-facing event
// constants spec.md §4.7/§4.8 describe (SHAPE_CREATED, SHAPE_MODIFIED, ...)
// rather than reusing event.Kind's server wire-tag spelling, since a few
// topics (RESET_STATE, stateChanged) have no server-side analogue at all.
type Topic string

const (
	TopicShapeCreated    Topic = "SHAPE_CREATED"
	TopicShapeModified   Topic = "SHAPE_MODIFIED"
	TopicShapeDeleted    Topic = "SHAPE_DELETED"
	TopicShapeSelected   Topic = "SHAPE_SELECTED"
	TopicShapeUnselected Topic = "SHAPE_UNSELECTED"
	TopicPresence        Topic = "PRESENCE_CHANGED"
	// TopicResetState is published once at the start of a full replay,
	// before any of the replayed events, so the renderer can clear its
	// local state (spec.md §4.7 "full replay emits a local RESET_STATE").
	TopicResetState Topic = "RESET_STATE"
	// TopicStateChanged carries ConnectionState transitions (spec.md §4.7).
	TopicStateChanged Topic = "stateChanged"
)

// Handler receives one published event. payload's concrete type depends on
// topic and source: for server-originated events, a shape.Shape for
// creation, a ModifiedPayload for modification, a string shapeID for
// deletion, a SelectionPayload for select/unselect, a PresencePayload for
// presence, nil for RESET_STATE, and a ConnectionState for stateChanged;
// for local (SourceLocal) events on the five mutation topics, an Intent.
type Handler func(ctx EventContext, payload any)

// EventBus is a synchronous in-process publish/subscribe fabric (C8).
// Subscribers are invoked in registration order on the publishing
// goroutine; a panicking subscriber is recovered and logged so it never
// prevents delivery to the subscribers registered after it (spec.md §4.8).
type EventBus struct {
	logger *logging.Logger

	mu     sync.Mutex
	nextID uint64
	subs   map[Topic][]subscription
}

type subscription struct {
	id      uint64
	handler Handler
}

// NewEventBus constructs an empty bus. logger may be nil.
func NewEventBus(logger *logging.Logger) *EventBus {
	return &EventBus{
		logger: logger,
		subs:   make(map[Topic][]subscription),
	}
}

// Subscribe registers handler for topic and returns a function that removes
// it. Calling the returned function more than once is a no-op.
func (b *EventBus) Subscribe(topic Topic, handler Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: handler})
	b.mu.Unlock()

	removed := false
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if removed {
			return
		}
		removed = true
		list := b.subs[topic]
		for i, s := range list {
			if s.id == id {
				b.subs[topic] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers payload to every subscriber of topic, in registration
// order. A copy of the subscriber list is taken under the lock so a
// handler is free to Subscribe/unsubscribe without deadlocking the bus.
func (b *EventBus) Publish(topic Topic, ctx EventContext, payload any) {
	b.mu.Lock()
	list := b.subs[topic]
	subs := make([]subscription, len(list))
	copy(subs, list)
	b.mu.Unlock()

	for _, s := range subs {
		b.invoke(s.handler, topic, ctx, payload)
	}
}

func (b *EventBus) invoke(handler Handler, topic Topic, ctx EventContext, payload any) {
	defer func() {
		if r := recover(); r != nil {
			if b.logger != nil {
				b.logger.Warn("event bus subscriber panicked",
					logging.String("topic", string(topic)),
					logging.String("canvas", ctx.CanvasID))
			}
		}
	}()
	handler(ctx, payload)
}
