// Package permission implements C3, the Permission Gate: a pure decision
// function over (identity, canvas, event) that decides whether a mutation
// is admitted, and the canvas moderation model that underlies it.
// Grounded on the teacher's internal/input.Gate: a stateless Decision value
// returned from an Evaluate call, functional-option construction, and a
// metrics side-channel for diagnostics — reworked from sequence/rate-limit
// gating to write-right/selection-lock gating.
package permission

import (
	"sync"

	"canvasboard/broker/internal/event"
	"canvasboard/broker/internal/logging"
)

// Value is one of the five canvas permission levels.
type Value string

const (
	Owner     Value = "O"
	Moderator Value = "M"
	Voice     Value = "V"
	Write     Value = "W"
	Read      Value = "R"
)

// Valid reports whether v is one of the five defined permission values.
func (v Value) Valid() bool {
	switch v {
	case Owner, Moderator, Voice, Write, Read:
		return true
	default:
		return false
	}
}

// EffectiveWriteRight implements the function of spec.md §3: O/M/V always
// write; W writes iff the canvas is not moderated; R never writes.
func EffectiveWriteRight(v Value, moderated bool) bool {
	switch v {
	case Owner, Moderator, Voice:
		return true
	case Write:
		return !moderated
	default:
		return false
	}
}

// RejectCode names why Evaluate refused an event.
type RejectCode string

const (
	RejectPermissionDenied RejectCode = "PermissionDenied"
	RejectSelectionHeld    RejectCode = "SelectionHeld"
)

// Decision is the outcome of one Evaluate call.
type Decision struct {
	Admitted bool
	Code     RejectCode
	// HeldBy is populated only when Code == RejectSelectionHeld.
	HeldBy string
}

// CanvasState is the per-canvas context Evaluate needs: the identity's
// permission value on this canvas and whether the canvas is moderated.
// Populated by the Hub from the metadata collaborator (A5).
type CanvasState struct {
	Moderated  bool
	Permission Value
}

// LockLookup reports the current lock owner for a shape, if any. It is a
// narrow read of the Selection Registry (C4) passed in by the Hub so the
// Gate itself stays free of Registry state.
type LockLookup func(shapeID string) (owner string, held bool)

// Metrics aggregates per-identity rejection counts for diagnostics, mirrored
// on the teacher's input.Metrics.
type Metrics struct {
	mu      sync.RWMutex
	rejects map[string]map[RejectCode]uint64
}

func newMetrics() *Metrics {
	return &Metrics{rejects: make(map[string]map[RejectCode]uint64)}
}

func (m *Metrics) observe(identityID string, code RejectCode) {
	if m == nil || identityID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	counters, ok := m.rejects[identityID]
	if !ok {
		counters = make(map[RejectCode]uint64)
		m.rejects[identityID] = counters
	}
	counters[code]++
}

// Snapshot returns a defensive copy of the rejection counters.
func (m *Metrics) Snapshot() map[string]map[RejectCode]uint64 {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]map[RejectCode]uint64, len(m.rejects))
	for id, counters := range m.rejects {
		clone := make(map[RejectCode]uint64, len(counters))
		for code, n := range counters {
			clone[code] = n
		}
		out[id] = clone
	}
	return out
}

// Forget drops the counters for an identity that disconnected.
func (m *Metrics) Forget(identityID string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	delete(m.rejects, identityID)
	m.mu.Unlock()
}

// Gate evaluates mutation events against the effective write right and
// selection-lock state.
type Gate struct {
	logger  *logging.Logger
	metrics *Metrics
}

// Option customises Gate construction.
type Option func(*Gate)

// WithLogger attaches a structured logger used for rejection diagnostics.
func WithLogger(logger *logging.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics injects a pre-built metrics container, enabling shared
// aggregation across Gates (e.g. one process-wide dashboard).
func WithMetrics(metrics *Metrics) Option {
	return func(g *Gate) {
		if metrics != nil {
			g.metrics = metrics
		}
	}
}

// NewGate constructs a Gate.
func NewGate(opts ...Option) *Gate {
	g := &Gate{metrics: newMetrics()}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Evaluate decides whether e, authored by identityID on a canvas in the
// given state, is admitted. Presence events (userJoined/userLeft/
// userCountChanged) are emitted by the Hub; Hub.Publish rejects them before
// they reach the Gate.
func (g *Gate) Evaluate(identityID string, canvas CanvasState, e event.Event, locks LockLookup) Decision {
	decision := Decision{Admitted: true}

	switch e.Kind {
	case event.KindAddShape, event.KindRemoveShape, event.KindModifyShape, event.KindUnselectShape:
		if !EffectiveWriteRight(canvas.Permission, canvas.Moderated) {
			decision = Decision{Admitted: false, Code: RejectPermissionDenied}
		}
	case event.KindSelectShape:
		if !EffectiveWriteRight(canvas.Permission, canvas.Moderated) {
			decision = Decision{Admitted: false, Code: RejectPermissionDenied}
			break
		}
		if locks != nil {
			if owner, held := locks(e.ShapeID); held && owner != identityID {
				decision = Decision{Admitted: false, Code: RejectSelectionHeld, HeldBy: owner}
			}
		}
	default:
		// Unreached in practice: the Hub never routes presence events here.
	}

	if !decision.Admitted {
		g.metrics.observe(identityID, decision.Code)
		if g.logger != nil {
			g.logger.Debug("rejecting event",
				logging.String("identity", identityID),
				logging.String("event", string(e.Kind)),
				logging.String("reject_code", string(decision.Code)),
			)
		}
	}
	return decision
}

// Metrics exposes the rejection counters. Nothing in the broker calls it;
// the /metrics handler does not report these counters.
func (g *Gate) Metrics() *Metrics {
	if g == nil {
		return nil
	}
	return g.metrics
}
