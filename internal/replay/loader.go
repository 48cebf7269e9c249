package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
)

// TimelineEntry is one rehydrated canvas-log record ready for deterministic
// replay by catalogue/player tooling.
type TimelineEntry struct {
	Seq        uint64
	Timestamp  int64
	Originator string
	Event      json.RawMessage
}

// Loader rehydrates a persisted canvas-log dump for validation or playback.
type Loader struct {
	canvasID string
	entries  []TimelineEntry
}

// Load reads a canvas-log dump directory (as produced by Writer) back into
// memory. It reads header.json, checks that its fields are set, and then
// reads entries.jsonl.sz; the manifest named by the header is not read.
func Load(dir string) (*Loader, error) {
	if dir == "" {
		return nil, fmt.Errorf("canvas-log dump directory must be provided")
	}

	header, err := ReadHeader(filepath.Join(dir, "header.json"))
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	file, err := os.Open(filepath.Join(dir, "entries.jsonl.sz"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := snappy.NewReader(file)
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	entries := make([]TimelineEntry, 0)
	for scanner.Scan() {
		var record entryRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			return nil, fmt.Errorf("parse entry: %w", err)
		}
		entries = append(entries, TimelineEntry{
			Seq:        record.Seq,
			Timestamp:  record.Timestamp,
			Originator: record.Originator,
			Event:      append(json.RawMessage(nil), record.Event...),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan entries: %w", err)
	}

	return &Loader{canvasID: header.CanvasID, entries: entries}, nil
}

// CanvasID returns the canvas ID the loaded dump belongs to.
func (l *Loader) CanvasID() string {
	if l == nil {
		return ""
	}
	return l.canvasID
}

// Replay iterates over the loaded entries in stored (seq) order.
func (l *Loader) Replay(apply func(TimelineEntry) error) error {
	if l == nil {
		return fmt.Errorf("loader not initialised")
	}
	if apply == nil {
		return fmt.Errorf("replay callback must be provided")
	}
	for _, entry := range l.entries {
		if err := apply(entry); err != nil {
			return err
		}
	}
	return nil
}

// Entries exposes a defensive copy of the timeline for external assertions.
func (l *Loader) Entries() []TimelineEntry {
	if l == nil {
		return nil
	}
	out := make([]TimelineEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
