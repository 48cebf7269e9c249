package client

import (
	"sort"
	"sync"

	"canvasboard/broker/internal/event"
	"canvasboard/broker/internal/shape"
)

// ModifiedPayload describes one applied modifyShape, published on
// TopicShapeModified.
type ModifiedPayload struct {
	ShapeID  string
	Property event.ShapeProperty
	BgColor  shape.Color
	FgColor  shape.Color
	ZOrder   int64
}

// SelectionPayload describes one applied select/unselect, published on
// TopicShapeSelected/TopicShapeUnselected.
type SelectionPayload struct {
	ShapeID    string
	IdentityID string
	Color      string
}

// PresencePayload describes a userJoined/userLeft/userCountChanged event,
// published on TopicPresence.
type PresencePayload struct {
	Kind        event.Kind
	IdentityID  string
	DisplayName string
	Color       string
}

// canvasState is the cached view of one canvas: the Store's recovery point
// when an inbound batch is dropped and the Bridge re-registers for a fresh
// snapshot (spec.md §4.8).
type canvasState struct {
	shapes map[string]shape.Shape
	locks  map[string]SelectionPayload // shapeID -> holder
	users  map[string]PresencePayload  // identityID -> last known presence
}

func newCanvasState() *canvasState {
	return &canvasState{
		shapes: make(map[string]shape.Shape),
		locks:  make(map[string]SelectionPayload),
		users:  make(map[string]PresencePayload),
	}
}

// Store is C8's cache: the latest known state per canvas, built up by
// applying the same Event stream the renderer sees. It never talks to the
// network itself; the Bridge feeds it via Apply/Reset.
type Store struct {
	mu   sync.Mutex
	byID map[string]*canvasState
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{byID: make(map[string]*canvasState)}
}

func (s *Store) state(canvasID string) *canvasState {
	cs, ok := s.byID[canvasID]
	if !ok {
		cs = newCanvasState()
		s.byID[canvasID] = cs
	}
	return cs
}

// Reset discards all cached state for canvasID, matching a full replay's
// RESET_STATE.
func (s *Store) Reset(canvasID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[canvasID] = newCanvasState()
}

// Apply folds one server-originated event into the cached state for
// canvasID. It is the Store's half of what the renderer also does with the
// same event; the Bridge calls both.
func (s *Store) Apply(canvasID string, e event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs := s.state(canvasID)

	switch e.Kind {
	case event.KindAddShape:
		cs.shapes[e.ShapeID] = e.Shape.Clone()
	case event.KindRemoveShape:
		delete(cs.shapes, e.ShapeID)
		delete(cs.locks, e.ShapeID)
	case event.KindModifyShape:
		sh, ok := cs.shapes[e.ShapeID]
		if !ok {
			return
		}
		switch e.Property {
		case event.PropertyBgColor:
			sh.BgColor = e.BgColor
		case event.PropertyFgColor:
			sh.FgColor = e.FgColor
		case event.PropertyZOrder:
			sh.ZOrder = e.ZOrder
		}
		cs.shapes[e.ShapeID] = sh
	case event.KindSelectShape:
		cs.locks[e.ShapeID] = SelectionPayload{ShapeID: e.ShapeID, IdentityID: e.IdentityID, Color: e.IdentityColor}
	case event.KindUnselectShape:
		if held, ok := cs.locks[e.ShapeID]; ok && held.IdentityID == e.IdentityID {
			delete(cs.locks, e.ShapeID)
		}
	case event.KindUserJoined, event.KindUserCountChanged:
		cs.users[e.IdentityID] = PresencePayload{Kind: e.Kind, IdentityID: e.IdentityID, DisplayName: e.DisplayName, Color: e.IdentityColor}
	case event.KindUserLeft:
		delete(cs.users, e.IdentityID)
	}
}

// Shapes returns every cached shape for canvasID ordered by zOrder, ties
// broken by ShapeId (spec.md §3: "higher draws on top; ties broken by
// ShapeId").
func (s *Store) Shapes(canvasID string) []shape.Shape {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.byID[canvasID]
	if !ok {
		return nil
	}
	out := make([]shape.Shape, 0, len(cs.shapes))
	for _, sh := range cs.shapes {
		out = append(out, sh)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ZOrder != out[j].ZOrder {
			return out[i].ZOrder < out[j].ZOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Lock reports the current holder of shapeID on canvasID, if any.
func (s *Store) Lock(canvasID, shapeID string) (SelectionPayload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.byID[canvasID]
	if !ok {
		return SelectionPayload{}, false
	}
	held, ok := cs.locks[shapeID]
	return held, ok
}

// Users returns every known presence entry for canvasID.
func (s *Store) Users(canvasID string) []PresencePayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.byID[canvasID]
	if !ok {
		return nil
	}
	out := make([]PresencePayload, 0, len(cs.users))
	for _, u := range cs.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IdentityID < out[j].IdentityID })
	return out
}
