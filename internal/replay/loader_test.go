package replay

import (
	"encoding/json"
	"testing"
	"time"

	"canvasboard/broker/internal/event"
	"canvasboard/broker/internal/shape"
)

func TestLoaderReplayRoundTrip(t *testing.T) {
	dir := t.TempDir()
	current := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	writer, _, err := NewWriter(dir, "canvas-42", clock)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := writer.AppendEntries(sampleEntries()); err != nil {
		t.Fatalf("AppendEntries: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	loader, err := Load(writer.Directory())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loader.CanvasID() != "canvas-42" {
		t.Fatalf("expected canvas id canvas-42, got %q", loader.CanvasID())
	}

	var seqs []uint64
	err = loader.Replay(func(entry TimelineEntry) error {
		seqs = append(seqs, entry.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(seqs) != 2 || seqs[0] != 1 || seqs[1] != 2 {
		t.Fatalf("unexpected replay order: %v", seqs)
	}

	entries := loader.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries copy, got %d", len(entries))
	}
	if &entries[0] == &loader.entries[0] {
		t.Fatalf("Entries must return a defensive copy")
	}

	var decoded event.Event
	if err := json.Unmarshal(entries[0].Event, &decoded); err != nil {
		t.Fatalf("decode first event: %v", err)
	}
	if decoded.Kind != event.KindAddShape || decoded.Shape.Kind != shape.KindRectangle {
		t.Fatalf("unexpected decoded event: %+v", decoded)
	}
}
