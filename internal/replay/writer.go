package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/golang/snappy"

	"canvasboard/broker/internal/canvaslog"
)

var writerMatchCleaner = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Manifest describes the canvas-log dump layout so tooling can locate artefacts.
type Manifest struct {
	Version     int    `json:"version"`
	CreatedAt   string `json:"created_at"`
	CanvasID    string `json:"canvas_id"`
	EntriesPath string `json:"entries_path"`
}

// Writer streams one canvas's log entries to disk in a single pass, using
// the teacher's snappy-streamed JSONL approach (internal/replay.Writer's
// AppendEvent) instead of its dual event/frame split — a canvas log has no
// separate high-frequency frame channel.
type Writer struct {
	mu       sync.Mutex
	dir      string
	now      func() time.Time
	file     *os.File
	stream   *snappy.Writer
	canvasID string
}

// NewWriter creates a fresh dump directory for canvasID and opens a
// compressed entry sink.
func NewWriter(root, canvasID string, clock func() time.Time) (*Writer, Manifest, error) {
	if root == "" {
		return nil, Manifest{}, fmt.Errorf("canvas-log dump root must be provided")
	}
	if clock == nil {
		clock = time.Now
	}

	cleaned := writerMatchCleaner.ReplaceAllString(canvasID, "")
	if cleaned == "" {
		cleaned = "canvas"
	}
	created := clock().UTC()
	folder := fmt.Sprintf("%s-%s", cleaned, created.Format("20060102T150405Z"))
	path := filepath.Join(root, folder)

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, Manifest{}, err
	}

	entriesPath := filepath.Join(path, "entries.jsonl.sz")
	manifestPath := filepath.Join(path, "manifest.json")

	file, err := os.Create(entriesPath)
	if err != nil {
		return nil, Manifest{}, err
	}
	stream := snappy.NewBufferedWriter(file)

	manifest := Manifest{
		Version:     1,
		CreatedAt:   created.Format(time.RFC3339Nano),
		CanvasID:    canvasID,
		EntriesPath: "entries.jsonl.sz",
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		stream.Close()
		file.Close()
		return nil, Manifest{}, err
	}
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		stream.Close()
		file.Close()
		return nil, Manifest{}, err
	}

	writer := &Writer{dir: path, now: clock, file: file, stream: stream, canvasID: canvasID}
	return writer, manifest, nil
}

// Directory exposes the directory backing the canvas-log dump.
func (w *Writer) Directory() string {
	if w == nil {
		return ""
	}
	return w.dir
}

// entryRecord is the on-disk shape of one canvaslog.Entry.
type entryRecord struct {
	Seq        uint64          `json:"seq"`
	Timestamp  int64           `json:"timestamp"`
	Originator string          `json:"originator"`
	Event      json.RawMessage `json:"event"`
}

// AppendEntries writes every entry's JSON encoding to the compressed stream,
// in the order supplied.
func (w *Writer) AppendEntries(entries []canvaslog.Entry) error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, entry := range entries {
		eventJSON, err := json.Marshal(entry.Event)
		if err != nil {
			return err
		}
		record := entryRecord{
			Seq:        entry.Seq,
			Timestamp:  entry.Timestamp,
			Originator: entry.Originator,
			Event:      eventJSON,
		}
		line, err := json.Marshal(record)
		if err != nil {
			return err
		}
		if _, err := w.stream.Write(line); err != nil {
			return err
		}
		if _, err := w.stream.Write([]byte("\n")); err != nil {
			return err
		}
	}
	return w.stream.Flush()
}

// Close flushes and releases the underlying file handles, writing the
// canvas-log header last so a reader can detect a fully-written dump.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	if err := w.stream.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.stream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr == nil {
		headerPath := filepath.Join(w.dir, "header.json")
		header := Header{SchemaVersion: HeaderSchemaVersion, CanvasID: w.canvasID, FilePointer: "manifest.json"}
		firstErr = WriteHeader(headerPath, header)
	}
	return firstErr
}
