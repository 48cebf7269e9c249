package client

import (
	"testing"
	"time"

	"canvasboard/broker/internal/event"
)

func TestBatchNeedsFullReplayAtSizeBoundary(t *testing.T) {
	fifty := make([]event.Event, incrementalThreshold)
	for i := range fifty {
		fifty[i] = event.Event{Kind: event.KindAddShape, ShapeID: "s"}
	}
	if batchNeedsFullReplay(fifty) {
		t.Fatal("a 50-event batch of safe kinds should stay incremental")
	}

	fiftyOne := append(fifty, event.Event{Kind: event.KindAddShape, ShapeID: "s2"})
	if !batchNeedsFullReplay(fiftyOne) {
		t.Fatal("a 51-event batch should force a full replay")
	}
}

func TestBatchNeedsFullReplayOnUnsafeKind(t *testing.T) {
	batch := []event.Event{{Kind: event.KindUserCountChanged}}
	if !batchNeedsFullReplay(batch) {
		t.Fatal("userCountChanged is outside the known-safe set and should force a full replay")
	}
}

func TestReplayCycleDetectorForcesIncrementalAfterThreeReplays(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	d := newReplayCycleDetector(clock)

	d.observeFullReplay("c1")
	if d.forcedIncremental("c1") {
		t.Fatal("one replay should not force incremental")
	}
	d.observeFullReplay("c1")
	if d.forcedIncremental("c1") {
		t.Fatal("two replays should not force incremental")
	}
	d.observeFullReplay("c1")
	if !d.forcedIncremental("c1") {
		t.Fatal("three replays within the window should force incremental")
	}
}

func TestReplayCycleDetectorWindowClears(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	d := newReplayCycleDetector(clock)

	d.observeFullReplay("c1")
	d.observeFullReplay("c1")
	d.observeFullReplay("c1")
	if !d.forcedIncremental("c1") {
		t.Fatal("expected forced incremental after three replays")
	}

	now = now.Add(replayCycleWindow + time.Second)
	if d.forcedIncremental("c1") {
		t.Fatal("expected forced-incremental window to clear after replayCycleWindow elapses")
	}
}

func TestReplayCycleDetectorIsolatedPerCanvas(t *testing.T) {
	now := time.Now()
	d := newReplayCycleDetector(func() time.Time { return now })

	d.observeFullReplay("c1")
	d.observeFullReplay("c1")
	d.observeFullReplay("c1")
	if d.forcedIncremental("c2") {
		t.Fatal("forced-incremental state must not leak across canvases")
	}
}

func TestDedupeBatchKeepsLatestPerKey(t *testing.T) {
	batch := []event.Event{
		{Kind: event.KindModifyShape, ShapeID: "s1", Property: event.PropertyZOrder, ZOrder: 1},
		{Kind: event.KindAddShape, ShapeID: "s2"},
		{Kind: event.KindModifyShape, ShapeID: "s1", Property: event.PropertyZOrder, ZOrder: 5},
	}
	out := dedupeBatch(batch)

	if len(out) != 2 {
		t.Fatalf("expected 2 surviving events, got %d: %+v", len(out), out)
	}
	if out[0].Kind != event.KindAddShape {
		t.Fatalf("expected non-dedupable addShape to survive untouched, got %+v", out[0])
	}
	if out[1].ZOrder != 5 {
		t.Fatalf("expected the latest modifyShape (zOrder=5) to survive, got %+v", out[1])
	}
}

func TestDedupeBatchIsIdempotent(t *testing.T) {
	batch := []event.Event{
		{Kind: event.KindSelectShape, ShapeID: "s1", IdentityID: "u1"},
		{Kind: event.KindSelectShape, ShapeID: "s1", IdentityID: "u2"},
		{Kind: event.KindUserJoined, IdentityID: "u3"},
	}
	once := dedupeBatch(batch)
	twice := dedupeBatch(once)

	if len(once) != len(twice) {
		t.Fatalf("expected dedupeBatch to be idempotent, got %d then %d", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("expected identical output on second pass, got %+v vs %+v", once, twice)
		}
	}
}

func TestDedupeBatchNeverDropsPresenceEvents(t *testing.T) {
	batch := []event.Event{
		{Kind: event.KindUserJoined, IdentityID: "u1"},
		{Kind: event.KindUserJoined, IdentityID: "u1"},
	}
	out := dedupeBatch(batch)
	if len(out) != 2 {
		t.Fatalf("presence events must never be deduplicated, got %d", len(out))
	}
}
