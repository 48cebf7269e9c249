// Package selection implements C4, the Selection Registry: per-canvas
// tracking of which identity currently holds the edit lock on which shape.
// Grounded on the teacher's vehicleOccupantRegistry: a dual forward/reverse
// map guarded by one mutex, so both "who holds shape X" and "what does
// identity Y hold" resolve in O(1), and disconnect/removal cleanly evicts
// both sides.
package selection

import (
	"strings"
	"sync"
)

// Registry tracks shape locks for a single canvas. It is not safe to share
// across canvases; the Hub owns one Registry per canvas.
type Registry struct {
	mu         sync.Mutex
	byShape    map[string]string   // shapeID -> identityID
	byIdentity map[string][]string // identityID -> shapeIDs held, insertion order
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{
		byShape:    make(map[string]string),
		byIdentity: make(map[string][]string),
	}
}

// Acquire grants identityID the lock on shapeID. It is idempotent: acquiring
// a shape the same identity already holds succeeds and reports ok=true with
// heldBy set to that identity (no new lock is created, so no unselectShape
// needs to be synthesized for anyone else). Acquiring a shape held by a different
// identity fails and reports the current holder.
func (r *Registry) Acquire(shapeID, identityID string) (ok bool, heldBy string) {
	shapeID = strings.TrimSpace(shapeID)
	identityID = strings.TrimSpace(identityID)
	if shapeID == "" || identityID == "" {
		return false, ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, held := r.byShape[shapeID]; held {
		if owner == identityID {
			return true, owner
		}
		return false, owner
	}

	r.byShape[shapeID] = identityID
	r.byIdentity[identityID] = append(r.byIdentity[identityID], shapeID)
	return true, identityID
}

// Release drops identityID's lock on shapeID, if held by identityID. It
// reports whether a lock was actually released.
func (r *Registry) Release(shapeID, identityID string) bool {
	shapeID = strings.TrimSpace(shapeID)
	identityID = strings.TrimSpace(identityID)
	if shapeID == "" || identityID == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.releaseLocked(shapeID, identityID)
}

func (r *Registry) releaseLocked(shapeID, identityID string) bool {
	owner, held := r.byShape[shapeID]
	if !held || owner != identityID {
		return false
	}
	delete(r.byShape, shapeID)
	r.byIdentity[identityID] = removeString(r.byIdentity[identityID], shapeID)
	if len(r.byIdentity[identityID]) == 0 {
		delete(r.byIdentity, identityID)
	}
	return true
}

// ReleaseAllOwnedBy drops every lock held by identityID, in the order they
// were acquired, returning the shape IDs released. Called on disconnect.
func (r *Registry) ReleaseAllOwnedBy(identityID string) []string {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	held := r.byIdentity[identityID]
	if len(held) == 0 {
		return nil
	}
	released := append([]string(nil), held...)
	for _, shapeID := range released {
		delete(r.byShape, shapeID)
	}
	delete(r.byIdentity, identityID)
	return released
}

// ReleaseAllOnShape drops whatever lock shapeID carries, regardless of
// owner, returning the prior owner if any. Called when a shape is removed.
func (r *Registry) ReleaseAllOnShape(shapeID string) (previousOwner string, released bool) {
	shapeID = strings.TrimSpace(shapeID)
	if shapeID == "" {
		return "", false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, held := r.byShape[shapeID]
	if !held {
		return "", false
	}
	delete(r.byShape, shapeID)
	r.byIdentity[owner] = removeString(r.byIdentity[owner], shapeID)
	if len(r.byIdentity[owner]) == 0 {
		delete(r.byIdentity, owner)
	}
	return owner, true
}

// Lookup reports the current lock holder for a shape, matching the
// permission.LockLookup signature.
func (r *Registry) Lookup(shapeID string) (owner string, held bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, held = r.byShape[shapeID]
	return owner, held
}

// Snapshot returns a defensive copy of the full shapeID->identityID lock
// map, used when a newly-subscribed client needs the current lock state.
func (r *Registry) Snapshot() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := make(map[string]string, len(r.byShape))
	for shapeID, owner := range r.byShape {
		clone[shapeID] = owner
	}
	return clone
}

func removeString(list []string, value string) []string {
	for i, v := range list {
		if v == value {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
