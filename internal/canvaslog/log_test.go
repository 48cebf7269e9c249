package canvaslog

import (
	"testing"
	"time"

	"canvasboard/broker/internal/event"
	"canvasboard/broker/internal/shape"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func addShapeEvent(id string) event.Event {
	return event.Event{
		Kind:    event.KindAddShape,
		ShapeID: id,
		Shape: shape.Shape{
			ID:   id,
			Kind: shape.KindRectangle,
			Geometry: shape.Geometry{
				From: shape.Point{X: 0, Y: 0},
				To:   shape.Point{X: 10, Y: 10},
			},
			BgColor: "#ff0000",
			FgColor: "#000000",
			ZOrder:  1,
		},
	}
}

func TestAppendAssignsMonotonicSeq(t *testing.T) {
	//1.- Construct a log and append two independent shapes.
	l := New(fixedClock(time.Unix(0, 0)))
	seq1, err := l.Append(addShapeEvent("r1"), "alice")
	if err != nil {
		t.Fatalf("append r1: %v", err)
	}
	seq2, err := l.Append(addShapeEvent("r2"), "alice")
	if err != nil {
		t.Fatalf("append r2: %v", err)
	}

	//2.- Assert seq increases strictly.
	if seq1 != 1 || seq2 != 2 {
		t.Fatalf("expected seqs 1,2 got %d,%d", seq1, seq2)
	}
}

func TestAppendRejectsDuplicateShapeId(t *testing.T) {
	//1.- Append the same shape id twice without removal in between.
	l := New(fixedClock(time.Unix(0, 0)))
	if _, err := l.Append(addShapeEvent("r1"), "alice"); err != nil {
		t.Fatalf("first append: %v", err)
	}
	_, err := l.Append(addShapeEvent("r1"), "bob")

	//2.- Assert the second append is rejected with DuplicateShapeId.
	if err == nil {
		t.Fatalf("expected rejection for duplicate shape id")
	}
	rejected, ok := err.(*RejectedError)
	if !ok || rejected.Code != RejectDuplicateShapeId {
		t.Fatalf("expected DuplicateShapeId, got %v", err)
	}
}

func TestAppendRejectsModifyOnUnknownShape(t *testing.T) {
	//1.- Attempt to modify a shape that was never added.
	l := New(fixedClock(time.Unix(0, 0)))
	modify := event.Event{Kind: event.KindModifyShape, ShapeID: "ghost", Property: event.PropertyZOrder, ZOrder: 3}
	_, err := l.Append(modify, "alice")

	//2.- Assert UnknownShapeId.
	rejected, ok := err.(*RejectedError)
	if !ok || rejected.Code != RejectUnknownShapeId {
		t.Fatalf("expected UnknownShapeId, got %v", err)
	}
}

func TestAppendRejectsPresenceEvents(t *testing.T) {
	//1.- Presence events must never enter the persisted log.
	l := New(fixedClock(time.Unix(0, 0)))
	_, err := l.Append(event.Event{Kind: event.KindUserJoined, IdentityID: "alice"}, "alice")

	//2.- Assert rejection.
	if err == nil {
		t.Fatalf("expected rejection for presence event")
	}
}

func TestSnapshotDropsMatchedAddRemovePair(t *testing.T) {
	//1.- Add then remove the same shape.
	l := New(fixedClock(time.Unix(0, 0)))
	if _, err := l.Append(addShapeEvent("r1"), "alice"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := l.Append(event.Event{Kind: event.KindRemoveShape, ShapeID: "r1"}, "alice"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	//2.- Snapshot must be empty.
	snap := l.Snapshot()
	if len(snap) != 0 {
		t.Fatalf("expected empty snapshot after matched add/remove, got %d entries", len(snap))
	}
}

func TestSnapshotMergesModifyIntoAddShape(t *testing.T) {
	//1.- Reproduce scenario 5 from spec.md: add r1, add r2, modify r1 fillColor,
	// remove r2.
	l := New(fixedClock(time.Unix(0, 0)))
	mustAppend(t, l, addShapeEvent("r1"), "alice")
	mustAppend(t, l, addShapeEvent("r2"), "alice")
	mustAppend(t, l, event.Event{
		Kind: event.KindModifyShape, ShapeID: "r1",
		Property: event.PropertyBgColor, BgColor: "#00ff00",
	}, "alice")
	mustAppend(t, l, event.Event{Kind: event.KindRemoveShape, ShapeID: "r2"}, "alice")

	//2.- Expect exactly one effective addShape for r1 with the merged color.
	snap := l.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected exactly one surviving shape, got %d", len(snap))
	}
	if snap[0].ShapeID != "r1" || snap[0].Shape.BgColor != "#00ff00" {
		t.Fatalf("expected r1 with merged bgColor #00ff00, got %+v", snap[0])
	}
}

func TestSnapshotDropsSelectAndUnselectEvents(t *testing.T) {
	//1.- Add a shape and select/unselect it.
	l := New(fixedClock(time.Unix(0, 0)))
	mustAppend(t, l, addShapeEvent("r1"), "alice")
	mustAppend(t, l, event.Event{Kind: event.KindSelectShape, ShapeID: "r1", IdentityID: "alice", IdentityColor: "#ff0000"}, "alice")
	mustAppend(t, l, event.Event{Kind: event.KindUnselectShape, ShapeID: "r1", IdentityID: "alice"}, "alice")

	//2.- Snapshot contains only the addShape.
	snap := l.Snapshot()
	if len(snap) != 1 || snap[0].Kind != event.KindAddShape {
		t.Fatalf("expected only addShape to survive, got %+v", snap)
	}
}

func TestSinceReturnsEntriesStrictlyAfterSeq(t *testing.T) {
	//1.- Append three shapes.
	l := New(fixedClock(time.Unix(0, 0)))
	mustAppend(t, l, addShapeEvent("r1"), "alice")
	seq2 := mustAppend(t, l, addShapeEvent("r2"), "alice")
	mustAppend(t, l, addShapeEvent("r3"), "alice")

	//2.- Since(seq2) should return only r3's addShape.
	got := l.Since(seq2)
	if len(got) != 1 || got[0].ShapeID != "r3" {
		t.Fatalf("expected only r3 after seq %d, got %+v", seq2, got)
	}
}

func mustAppend(t *testing.T, l *Log, e event.Event, originator string) uint64 {
	t.Helper()
	seq, err := l.Append(e, originator)
	if err != nil {
		t.Fatalf("append %+v: %v", e, err)
	}
	return seq
}
