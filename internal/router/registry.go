// Package router implements C6, the Subscription Router: the (identity,
// sink) <-> canvasId mapping, per-sink outbound dispatch, and the
// heartbeat ping/pong contract of spec.md §4.6/§5.
package router

import (
	"sync"

	"canvasboard/broker/internal/canvaslog"
	"canvasboard/broker/internal/hub"
)

// HubFactory builds a fresh Hub for a canvas ID the first time it is
// subscribed to. Grounded on the teacher's Broker, which is itself built
// once per process; here one Hub exists per canvas, lazily.
type HubFactory func(canvasID string, log *canvaslog.Log) *hub.Hub

// LogFactory builds (or loads) the Canvas Log backing a canvas ID.
type LogFactory func(canvasID string) *canvaslog.Log

// HubRegistry lazily creates and caches one Hub per canvas ID. Grounded on
// the teacher's Broker.clients map, generalized from one flat client set
// into a map keyed by canvas, each value itself fanning out to its own
// subscribers.
type HubRegistry struct {
	mu     sync.Mutex
	hubs   map[string]*hub.Hub
	newHub HubFactory
	newLog LogFactory
}

// NewHubRegistry constructs an empty registry.
func NewHubRegistry(newHub HubFactory, newLog LogFactory) *HubRegistry {
	return &HubRegistry{
		hubs:   make(map[string]*hub.Hub),
		newHub: newHub,
		newLog: newLog,
	}
}

// GetOrCreate returns the Hub for canvasID, constructing it on first use.
func (r *HubRegistry) GetOrCreate(canvasID string) *hub.Hub {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.hubs[canvasID]; ok {
		return h
	}
	log := r.newLog(canvasID)
	h := r.newHub(canvasID, log)
	r.hubs[canvasID] = h
	return h
}

// Lookup returns the existing Hub for canvasID without creating one.
func (r *HubRegistry) Lookup(canvasID string) (*hub.Hub, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hubs[canvasID]
	return h, ok
}

// Each invokes fn once per currently-known Hub, used by the admin canvas-log
// flush path to persist every open canvas without the caller needing to
// track canvas IDs itself.
func (r *HubRegistry) Each(fn func(canvasID string, h *hub.Hub)) {
	r.mu.Lock()
	snapshot := make(map[string]*hub.Hub, len(r.hubs))
	for id, h := range r.hubs {
		snapshot[id] = h
	}
	r.mu.Unlock()
	for id, h := range snapshot {
		fn(id, h)
	}
}

// Count returns the number of currently-known canvases.
func (r *HubRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hubs)
}
