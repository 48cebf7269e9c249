// Package canvaslog implements C2, the append-only ordered log of effective
// mutation/selection events for one canvas, with compaction rules that
// collapse it to a behaviorally equivalent shorter sequence for new
// subscribers. Grounded on the teacher's internal/events.Stream (ordered
// append with per-subscriber bookkeeping), reworked around seq/compaction
// semantics instead of ack/retention of ring-buffered telemetry: this log
// never drops history on its own, only on request via snapshot's
// compaction.
package canvaslog

import (
	"sync"
	"time"

	"canvasboard/broker/internal/event"
)

// Entry is one stored record: the canvas log entry shape of spec.md §3.
type Entry struct {
	Seq        uint64
	Timestamp  int64
	Event      event.Event
	Originator string
}

type shapeStatus int

const (
	shapeAbsent shapeStatus = iota
	shapeLive
	shapeRemoved
)

// Log is the per-canvas append-only event log. It is mutated only by its
// owning Hub; callers are expected to serialize access externally (the Hub
// actor), matching spec.md §5's "Canvas Log is mutated only by its Hub."
// The internal mutex exists only to make Snapshot/Since safe to call from a
// concurrent admin/debug path without going through the Hub mailbox.
type Log struct {
	mu      sync.Mutex
	nextSeq uint64
	entries []Entry
	status  map[string]shapeStatus
	now     func() time.Time
}

// New constructs an empty canvas log. clock defaults to time.Now when nil,
// overridable in tests.
func New(clock func() time.Time) *Log {
	if clock == nil {
		clock = time.Now
	}
	return &Log{
		status: make(map[string]shapeStatus),
		now:    clock,
	}
}

// persistable reports whether the log persists events of kind k. Presence events
// are broadcast live only (spec.md §3).
func persistable(k event.Kind) bool {
	switch k {
	case event.KindAddShape, event.KindRemoveShape, event.KindModifyShape,
		event.KindSelectShape, event.KindUnselectShape:
		return true
	default:
		return false
	}
}

// Append validates e against the current live state, assigns the next seq
// and a wall-clock timestamp, and stores it. On rejection the log is left
// unchanged and a *RejectedError is returned.
func (l *Log) Append(e event.Event, originator string) (uint64, error) {
	if !persistable(e.Kind) {
		return 0, reject(RejectInvariantViolation, "presence event %q is not persisted", e.Kind)
	}
	if err := e.Validate(); err != nil {
		return 0, reject(RejectMalformedEvent, "%v", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkInvariantsLocked(e); err != nil {
		return 0, err
	}

	l.nextSeq++
	seq := l.nextSeq
	entry := Entry{
		Seq:        seq,
		Timestamp:  l.now().UnixMilli(),
		Event:      e.Clone(),
		Originator: originator,
	}
	l.entries = append(l.entries, entry)
	l.applyStatusLocked(e)
	return seq, nil
}

func (l *Log) checkInvariantsLocked(e event.Event) error {
	current := l.status[e.ShapeID]
	switch e.Kind {
	case event.KindAddShape:
		if current == shapeLive {
			return reject(RejectDuplicateShapeId, "shape %q already live", e.ShapeID)
		}
		if current == shapeRemoved {
			return reject(RejectDuplicateShapeId, "shape %q id was previously used and removed", e.ShapeID)
		}
	case event.KindRemoveShape, event.KindModifyShape, event.KindSelectShape, event.KindUnselectShape:
		if current != shapeLive {
			return reject(RejectUnknownShapeId, "shape %q is not live", e.ShapeID)
		}
	}
	return nil
}

func (l *Log) applyStatusLocked(e event.Event) {
	switch e.Kind {
	case event.KindAddShape:
		l.status[e.ShapeID] = shapeLive
	case event.KindRemoveShape:
		l.status[e.ShapeID] = shapeRemoved
	}
}

// Since returns every entry's event strictly after seq, in log order,
// without compaction applied.
func (l *Log) Since(seq uint64) []event.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]event.Event, 0)
	for _, entry := range l.entries {
		if entry.Seq > seq {
			out = append(out, entry.Event.Clone())
		}
	}
	return out
}

// Entries returns every stored entry in log order, defensively copied so a
// caller (the admin canvas-log flush path) can persist the raw Seq/
// Timestamp/Originator metadata without racing concurrent Appends.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	for i, entry := range l.entries {
		entry.Event = entry.Event.Clone()
		out[i] = entry
	}
	return out
}

// Head returns the seq of the most recently appended entry, or 0 if the log
// is empty. A fresh subscriber's snapshot cutoff is this value.
func (l *Log) Head() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nextSeq
}

// Snapshot returns a compacted, replay-equivalent list of events ordered by
// seq, per the compaction rules of spec.md §4.2. It never mutates stored
// entries.
func (l *Log) Snapshot() []event.Event {
	l.mu.Lock()
	entries := make([]Entry, len(l.entries))
	copy(entries, l.entries)
	l.mu.Unlock()
	return compact(entries)
}

// compact implements the compaction rules of spec.md §4.2: drop matched
// addShape/removeShape pairs; fold every surviving modifyShape into the
// shape's own fields, so a shape's current state is represented by a single
// effective addShape (scenario 5: "addShape r1 with fillColor already
// merged"); drop every selectShape/unselectShape; preserve relative order
// of surviving shapes by their original addShape seq.
func compact(entries []Entry) []event.Event {
	removed := make(map[string]bool)
	for _, e := range entries {
		if e.Event.Kind == event.KindRemoveShape {
			removed[e.Event.ShapeID] = true
		}
	}

	order := make([]string, 0, len(entries))
	effective := make(map[string]event.Event)

	for _, e := range entries {
		if removed[e.Event.ShapeID] {
			continue
		}
		switch e.Event.Kind {
		case event.KindAddShape:
			if _, seen := effective[e.Event.ShapeID]; !seen {
				order = append(order, e.Event.ShapeID)
			}
			effective[e.Event.ShapeID] = e.Event.Clone()
		case event.KindModifyShape:
			current, ok := effective[e.Event.ShapeID]
			if !ok {
				continue
			}
			switch e.Event.Property {
			case event.PropertyBgColor:
				current.Shape.BgColor = e.Event.BgColor
			case event.PropertyFgColor:
				current.Shape.FgColor = e.Event.FgColor
			case event.PropertyZOrder:
				current.Shape.ZOrder = e.Event.ZOrder
			}
			effective[e.Event.ShapeID] = current
		case event.KindSelectShape, event.KindUnselectShape, event.KindRemoveShape:
			// dropped: ephemeral selection state, or already handled above
		}
	}

	out := make([]event.Event, 0, len(order))
	for _, id := range order {
		out = append(out, effective[id])
	}
	return out
}
