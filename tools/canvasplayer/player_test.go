package canvasplayer

import (
	"testing"
	"time"

	"canvasboard/broker/internal/canvaslog"
	"canvasboard/broker/internal/event"
	"canvasboard/broker/internal/replay"
	"canvasboard/broker/internal/shape"
)

func TestLoadBundle(t *testing.T) {
	tmp := t.TempDir()
	base := time.Date(2024, 7, 10, 15, 0, 0, 0, time.UTC)
	clock := func() time.Time { return base }

	writer, manifest, err := replay.NewWriter(tmp, "canvas-int", clock)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	entries := []canvaslog.Entry{
		{
			Seq:        1,
			Timestamp:  500,
			Originator: "alice",
			Event: event.Event{
				Kind:    event.KindAddShape,
				ShapeID: "c1",
				Shape:   shape.Shape{ID: "c1", Kind: shape.KindCircle},
			},
		},
	}
	if err := writer.AppendEntries(entries); err != nil {
		t.Fatalf("append entries: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	bundle, err := Load(writer.Directory())
	if err != nil {
		t.Fatalf("load bundle: %v", err)
	}

	if bundle.Manifest.Version != manifest.Version {
		t.Fatalf("manifest mismatch: %v vs %v", bundle.Manifest.Version, manifest.Version)
	}
	if len(bundle.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(bundle.Entries))
	}
	if bundle.Entries[0].Originator != "alice" {
		t.Fatalf("unexpected originator: %q", bundle.Entries[0].Originator)
	}
}
