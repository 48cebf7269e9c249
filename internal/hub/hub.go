// Package hub implements C5, the Canvas Hub: one per-canvas fan-out point
// gluing the Event Codec, Canvas Log, Permission Gate, and Selection
// Registry together, and C3's canvas-state lookup via the metadata
// collaborator (A5).
//
// Grounded on the teacher's Broker: a mutex-protected subscriber set with a
// non-blocking broadcast that drops (and deregisters) any sink whose
// outbound buffer is full, reworked from one broker-wide client map into
// one Registry of sinks per canvas, and from raw `[]byte` broadcast into
// typed `event.Event` fan-out (wire encoding is the Router's job, C6).
package hub

import (
	"context"
	"fmt"
	"sync"

	"canvasboard/broker/internal/canvaslog"
	"canvasboard/broker/internal/event"
	"canvasboard/broker/internal/identity"
	"canvasboard/broker/internal/logging"
	"canvasboard/broker/internal/permission"
	"canvasboard/broker/internal/selection"
)

// Sink is a single network connection (one client tab) subscribed to a
// canvas. Enqueue must not block the Hub: a sink backed by a bounded queue
// reports false when it has no room, at which point the Hub treats the
// sink as dead and closes it. Grounded on the teacher's Client.send channel
// and the broadcast loop's `select { case c.send <- msg: default: ... }`.
type Sink interface {
	Enqueue(events []event.Event) bool
	Close()
}

// MetadataSource resolves canvas moderation state and an identity's
// permission level on a canvas, via the metadata collaborator (A5).
type MetadataSource interface {
	CanvasModerated(ctx context.Context, canvasID string) (bool, error)
	Permission(ctx context.Context, canvasID, identityID string) (permission.Value, error)
}

// RejectedError is returned by Publish when the Gate refuses an event.
type RejectedError struct {
	Code   permission.RejectCode
	HeldBy string
}

func (e *RejectedError) Error() string {
	if e.Code == permission.RejectSelectionHeld {
		return fmt.Sprintf("rejected: selection held by %q", e.HeldBy)
	}
	return fmt.Sprintf("rejected: %s", e.Code)
}

// Hub owns one canvas: its event log, selection locks, and subscriber set.
type Hub struct {
	canvasID string
	log      *canvaslog.Log
	registry *selection.Registry
	gate     *permission.Gate
	metadata MetadataSource
	logger   *logging.Logger

	mu           sync.Mutex
	moderated    bool
	moderatedSet bool
	permCache    map[string]permission.Value
	subscribers  map[string]map[Sink]bool // identityID -> sinks
	identities   map[string]identity.Identity
}

// Option customises Hub construction.
type Option func(*Hub)

// WithLogger attaches a structured logger for diagnostics.
func WithLogger(logger *logging.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// New constructs a Hub for one canvas.
func New(canvasID string, log *canvaslog.Log, metadata MetadataSource, opts ...Option) *Hub {
	h := &Hub{
		canvasID:    canvasID,
		log:         log,
		registry:    selection.New(),
		gate:        permission.NewGate(),
		metadata:    metadata,
		permCache:   make(map[string]permission.Value),
		subscribers: make(map[string]map[Sink]bool),
		identities:  make(map[string]identity.Identity),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// CanvasID returns the ID of the canvas this Hub owns.
func (h *Hub) CanvasID() string { return h.canvasID }

// Log exposes the canvas's backing log so an admin flush path can persist it
// without reaching into Hub internals.
func (h *Hub) Log() *canvaslog.Log { return h.log }

// Subscribe registers sink for id, replaying the compacted log snapshot
// plus current selection locks as a single batch, then announcing the
// identity's presence. A second sink for an identity already present
// triggers a userCountChanged refresh instead of another userJoined
// (spec.md §5: multi-tab presence).
func (h *Hub) Subscribe(ctx context.Context, id identity.Identity, sink Sink) error {
	h.mu.Lock()
	sinks, present := h.subscribers[id.ID]
	firstTab := !present || len(sinks) == 0
	if sinks == nil {
		sinks = make(map[Sink]bool)
		h.subscribers[id.ID] = sinks
	}
	sinks[sink] = true
	h.identities[id.ID] = id
	h.mu.Unlock()

	replay := h.log.Snapshot()
	replay = append(replay, h.lockEvents()...)
	sink.Enqueue(replay)

	if firstTab {
		h.broadcast([]event.Event{{
			Kind:          event.KindUserJoined,
			IdentityID:    id.ID,
			DisplayName:   id.DisplayName,
			IdentityColor: id.Color,
		}})
	} else {
		h.broadcast([]event.Event{{Kind: event.KindUserCountChanged, IdentityID: id.ID}})
	}
	return nil
}

// Unsubscribe removes sink from id's active connections. When id's last
// sink disconnects, every selection lock it held is released (emitting
// unselectShape for each) and userLeft is broadcast.
func (h *Hub) Unsubscribe(id identity.Identity, sink Sink) {
	h.mu.Lock()
	sinks := h.subscribers[id.ID]
	delete(sinks, sink)
	lastTab := len(sinks) == 0
	if lastTab {
		delete(h.subscribers, id.ID)
		delete(h.identities, id.ID)
	}
	h.mu.Unlock()

	if !lastTab {
		h.broadcast([]event.Event{{Kind: event.KindUserCountChanged, IdentityID: id.ID}})
		return
	}

	released := h.registry.ReleaseAllOwnedBy(id.ID)
	var unselects []event.Event
	for _, shapeID := range released {
		unselects = append(unselects, event.Event{
			Kind:       event.KindUnselectShape,
			ShapeID:    shapeID,
			IdentityID: id.ID,
		})
	}
	unselects = append(unselects, event.Event{
		Kind:        event.KindUserLeft,
		IdentityID:  id.ID,
		DisplayName: id.DisplayName,
	})
	h.broadcast(unselects)
}

// Publish processes one mutation/selection event authored by id: gates it
// on the identity's effective write right and selection-lock state,
// appends it to the log (for the four log-bearing kinds), updates the
// Selection Registry (for select/unselect), and fans the accepted event
// out to every subscriber of this canvas, including the author.
//
// selectShape on a shape the identity already owns is admitted but its
// broadcast is suppressed (spec.md §8: "accepted, broadcast is
// suppressed"), since no observable state changed.
func (h *Hub) Publish(ctx context.Context, id identity.Identity, e event.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	switch e.Kind {
	case event.KindUserJoined, event.KindUserLeft, event.KindUserCountChanged:
		return fmt.Errorf("%s is emitted by the Hub and cannot be published", e.Kind)
	}

	canvasState, err := h.canvasState(ctx, id.ID)
	if err != nil {
		return err
	}

	decision := h.gate.Evaluate(id.ID, canvasState, e, h.registry.Lookup)
	if !decision.Admitted {
		return &RejectedError{Code: decision.Code, HeldBy: decision.HeldBy}
	}

	suppress := false
	toBroadcast := []event.Event{e}
	switch e.Kind {
	case event.KindAddShape, event.KindRemoveShape, event.KindModifyShape, event.KindUnselectShape:
		if e.Kind == event.KindRemoveShape {
			// spec.md §8: removeShape on a shape locked by another identity is
			// accepted, but the Hub first emits a synthesized unselectShape so
			// every subscriber's lock state (and the client Store, which folds
			// removeShape/unselectShape independently) agrees the lock is gone
			// before the shape itself disappears.
			if previousOwner, released := h.registry.ReleaseAllOnShape(e.ShapeID); released {
				synthesized := event.Event{Kind: event.KindUnselectShape, ShapeID: e.ShapeID, IdentityID: previousOwner}
				if _, err := h.log.Append(synthesized, previousOwner); err != nil {
					return err
				}
				toBroadcast = []event.Event{synthesized, e}
			}
		}
		if _, err := h.log.Append(e, id.ID); err != nil {
			return err
		}
		if e.Kind == event.KindUnselectShape {
			h.registry.Release(e.ShapeID, id.ID)
		}
	case event.KindSelectShape:
		_, alreadyHeld := h.registry.Lookup(e.ShapeID)
		ok, owner := h.registry.Acquire(e.ShapeID, id.ID)
		if !ok {
			return &RejectedError{Code: permission.RejectSelectionHeld, HeldBy: owner}
		}
		if alreadyHeld && owner == id.ID {
			suppress = true
		}
	}

	if suppress {
		return nil
	}
	h.broadcast(toBroadcast)
	return nil
}

// canvasState resolves moderation + effective permission for id, caching
// both for the Hub's lifetime (DESIGN.md Open Question 2).
func (h *Hub) canvasState(ctx context.Context, identityID string) (permission.CanvasState, error) {
	h.mu.Lock()
	moderated, moderatedSet := h.moderated, h.moderatedSet
	perm, permCached := h.permCache[identityID]
	h.mu.Unlock()

	if !moderatedSet {
		var err error
		moderated, err = h.metadata.CanvasModerated(ctx, h.canvasID)
		if err != nil {
			return permission.CanvasState{}, err
		}
		h.mu.Lock()
		h.moderated, h.moderatedSet = moderated, true
		h.mu.Unlock()
	}

	if !permCached {
		var err error
		perm, err = h.metadata.Permission(ctx, h.canvasID, identityID)
		if err != nil {
			return permission.CanvasState{}, err
		}
		h.mu.Lock()
		h.permCache[identityID] = perm
		h.mu.Unlock()
	}

	return permission.CanvasState{Moderated: moderated, Permission: perm}, nil
}

// InvalidatePermission forgets the cached permission for identityID so the
// next Publish re-fetches it from the metadata collaborator. Also forgets
// the cached moderation flag, since the same collaborator call carries
// both.
func (h *Hub) InvalidatePermission(identityID string) {
	h.mu.Lock()
	delete(h.permCache, identityID)
	h.moderatedSet = false
	h.mu.Unlock()
}

// lockEvents renders the current Selection Registry as synthetic
// selectShape events, sent to a newly-subscribed sink so it starts with an
// accurate lock picture.
func (h *Hub) lockEvents() []event.Event {
	locks := h.registry.Snapshot()
	if len(locks) == 0 {
		return nil
	}
	out := make([]event.Event, 0, len(locks))
	h.mu.Lock()
	for shapeID, ownerID := range locks {
		owner := h.identities[ownerID]
		out = append(out, event.Event{
			Kind:          event.KindSelectShape,
			ShapeID:       shapeID,
			IdentityID:    ownerID,
			IdentityColor: owner.Color,
		})
	}
	h.mu.Unlock()
	return out
}

// broadcast fans events out to every active sink across every identity
// subscribed to this canvas, dropping (and closing) any sink that cannot
// keep up. Mirrors the teacher's Broker.broadcast non-blocking drop.
func (h *Hub) broadcast(events []event.Event) {
	if len(events) == 0 {
		return
	}
	h.mu.Lock()
	dead := make([]Sink, 0)
	for _, sinks := range h.subscribers {
		for sink := range sinks {
			if !sink.Enqueue(events) {
				dead = append(dead, sink)
			}
		}
	}
	for _, sink := range dead {
		for identityID, sinks := range h.subscribers {
			if sinks[sink] {
				delete(sinks, sink)
				if len(sinks) == 0 {
					delete(h.subscribers, identityID)
					delete(h.identities, identityID)
				}
			}
		}
	}
	h.mu.Unlock()
	for _, sink := range dead {
		sink.Close()
		if h.logger != nil {
			h.logger.Debug("dropped unresponsive sink", logging.String("canvas", h.canvasID))
		}
	}
}
