// Package client implements C7 (the Client Bridge) and C8 (the Client Event
// Bus & Store): the Go-native half of the collaborative canvas's
// synchronization engine that runs inside a connected client, mirrored from
// the same wire vocabulary the server (internal/hub, internal/router)
// speaks. It ships both halves of the protocol, as spec.md's purpose
// section requires a "matching client-side synchronization engine."
package client

// Source identifies who originated an event flowing through the Event Bus.
// spec.md §9 flags the teacher-style ambient globals (window._isReplaying,
// window._replayingShapes, window._remoteSelections, window._isDragging) as
// a redesign target: this type, threaded explicitly through every Publish
// call as part of an EventContext, replaces all four. A subscriber that
// only cares about genuinely-local user action checks ctx.Source ==
// SourceLocal and ignores everything else; the Bridge itself does the
// mirror image, ignoring anything that isn't SourceLocal when deciding what
// to forward to the server.
type Source int

const (
	// SourceLocal marks an event the local renderer/toolbar produced.
	SourceLocal Source = iota
	// SourceServer marks an event the Bridge received from the network and
	// is replaying onto the local bus as an incremental update.
	SourceServer
	// SourceReplay marks an event the Bridge is replaying as part of a full
	// RESET_STATE replay (initial join, canvas switch, or a batch outside
	// the known-safe set). Replayed events are never echoed back to the
	// server.
	SourceReplay
)

// String renders Source for log fields and test failure messages.
func (s Source) String() string {
	switch s {
	case SourceLocal:
		return "local"
	case SourceServer:
		return "server"
	case SourceReplay:
		return "replay"
	default:
		return "unknown"
	}
}

// EventContext carries provenance through every Bus.Publish call: which
// canvas the event belongs to, who produced it, and whether the Bridge
// should treat it as something to forward to the server. Replacing ambient
// flags with an explicit, immutable value is spec.md §9's first redesign
// note.
type EventContext struct {
	Source     Source
	CanvasID   string
	Originator string
}

// IsReplay reports whether this context came from a full or incremental
// replay rather than a genuinely new local action, matching the wire
// protocol's isReplay flag (spec.md §4.7: "replays each event with
// isReplay=true ... so it is not echoed to the server").
func (c EventContext) IsReplay() bool {
	return c.Source == SourceServer || c.Source == SourceReplay
}
