// Package canvasplayer rehydrates a canvas-log dump directory for manual
// inspection or deterministic playback. Grounded on the teacher's
// tools/replay_player, trimmed to the canvas log's single entry stream (the
// teacher's second, zstd-compressed binary frame channel has no analogue).
package canvasplayer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"canvasboard/broker/internal/replay"
)

// Bundle is a loaded canvas-log dump ready for inspection.
type Bundle struct {
	Manifest replay.Manifest
	Entries  []replay.TimelineEntry
}

// Load reads a canvas-log dump directory (or its manifest path) and returns
// every persisted entry in stored order.
func Load(path string) (Bundle, error) {
	if path == "" {
		return Bundle{}, fmt.Errorf("path is required")
	}

	info, err := os.Stat(path)
	if err != nil {
		return Bundle{}, err
	}
	dir := path
	if !info.IsDir() {
		dir = filepath.Dir(path)
	}

	manifestBytes, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return Bundle{}, err
	}
	var manifest replay.Manifest
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		return Bundle{}, err
	}
	if manifest.Version != 1 {
		return Bundle{}, fmt.Errorf("unsupported manifest version %d", manifest.Version)
	}

	loader, err := replay.Load(dir)
	if err != nil {
		return Bundle{}, err
	}

	return Bundle{Manifest: manifest, Entries: loader.Entries()}, nil
}
