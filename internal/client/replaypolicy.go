package client

import (
	"time"

	"canvasboard/broker/internal/event"
)

// incrementalSafeKinds is the known-safe set spec.md §4.7 names: a batch
// containing anything outside it forces a full replay regardless of size.
var incrementalSafeKinds = map[event.Kind]bool{
	event.KindAddShape:      true,
	event.KindRemoveShape:   true,
	event.KindModifyShape:   true,
	event.KindSelectShape:   true,
	event.KindUnselectShape: true,
	event.KindUserJoined:    true,
	event.KindUserLeft:      true,
}

// incrementalThreshold is the batch-size cutoff named in spec.md §8's
// boundary behavior ("50-event batch: incremental; 51-event batch: full
// replay").
const incrementalThreshold = 50

// replayCycleWindow/replayCycleLimit implement the cycle detector of
// spec.md §4.7: 3 or more full replays within 10s for the same canvas
// forces subsequent batches to incremental until the window clears.
const (
	replayCycleWindow = 10 * time.Second
	replayCycleLimit  = 3
)

func batchNeedsFullReplay(batch []event.Event) bool {
	if len(batch) > incrementalThreshold {
		return true
	}
	for _, e := range batch {
		if !incrementalSafeKinds[e.Kind] {
			return true
		}
	}
	return false
}

// replayCycleDetector tracks, per canvas, how many full replays have
// happened recently, so a flapping connection can't be forced into an
// endless full-replay loop: spec.md §4.7's "forced to incremental until
// the window clears."
type replayCycleDetector struct {
	now      func() time.Time
	recent   map[string][]time.Time
	forcedBy map[string]time.Time // canvasID -> last replay that tripped the limit
}

func newReplayCycleDetector(now func() time.Time) *replayCycleDetector {
	if now == nil {
		now = time.Now
	}
	return &replayCycleDetector{
		now:      now,
		recent:   make(map[string][]time.Time),
		forcedBy: make(map[string]time.Time),
	}
}

// observeFullReplay records that a full replay happened for canvasID and,
// once replayCycleLimit replays fall inside the window, opens the forced-
// incremental window that forcedIncremental reports.
func (d *replayCycleDetector) observeFullReplay(canvasID string) {
	now := d.now()
	cutoff := now.Add(-replayCycleWindow)
	kept := d.recent[canvasID][:0]
	for _, t := range d.recent[canvasID] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	d.recent[canvasID] = kept
	if len(kept) >= replayCycleLimit {
		d.forcedBy[canvasID] = now
	}
}

// forcedIncremental reports whether canvasID is currently inside a forced-
// incremental window opened by observeFullReplay.
func (d *replayCycleDetector) forcedIncremental(canvasID string) bool {
	since, ok := d.forcedBy[canvasID]
	if !ok {
		return false
	}
	if d.now().Sub(since) >= replayCycleWindow {
		delete(d.forcedBy, canvasID)
		return false
	}
	return true
}

// dedupeKey identifies the slot a dedupable event occupies: addShape:
// {shapeId}, removeShape:{shapeId}, modifyShape:{shapeId}:{property}, and
// selectShape|unselectShape:{shapeId}:{clientId}, exactly as spec.md §4.7
// lists them. Presence events have no key and are never deduplicated.
type dedupeKey struct {
	kind    event.Kind
	shapeID string
	extra   string
}

func dedupeKeyFor(e event.Event) (dedupeKey, bool) {
	switch e.Kind {
	case event.KindAddShape, event.KindRemoveShape:
		return dedupeKey{kind: e.Kind, shapeID: e.ShapeID}, true
	case event.KindModifyShape:
		return dedupeKey{kind: e.Kind, shapeID: e.ShapeID, extra: string(e.Property)}, true
	case event.KindSelectShape, event.KindUnselectShape:
		return dedupeKey{kind: e.Kind, shapeID: e.ShapeID, extra: e.IdentityID}, true
	default:
		return dedupeKey{}, false
	}
}

// dedupeBatch applies spec.md §4.7's per-key deduplication: only the
// occurrence at each key's last index survives, so "keeps the latest"
// means the most recently received event for that key, matching arrival
// order within the batch. Order of the surviving events is preserved from
// the input. Running this twice on its own output is a no-op (spec.md
// §8's idempotence law): after one pass every key appears at most once, so
// every remaining event is already at its own key's last index.
func dedupeBatch(batch []event.Event) []event.Event {
	lastIndex := make(map[dedupeKey]int, len(batch))
	for i, e := range batch {
		if k, ok := dedupeKeyFor(e); ok {
			lastIndex[k] = i
		}
	}

	out := make([]event.Event, 0, len(batch))
	for i, e := range batch {
		if k, ok := dedupeKeyFor(e); ok && lastIndex[k] != i {
			continue
		}
		out = append(out, e)
	}
	return out
}
