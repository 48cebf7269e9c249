package main

import (
	"flag"
	"fmt"
	"os"

	"canvasboard/broker/tools/canvascatalog"
)

func main() {
	root := flag.String("dir", ".", "directory containing canvas-log dump headers")
	jsonFlag := flag.Bool("json", false, "emit JSON instead of human-readable output")
	flag.Parse()

	entries, err := canvascatalog.List(*root)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *jsonFlag {
		payload, err := canvascatalog.MarshalEntries(entries)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(string(payload))
		return
	}

	for _, entry := range entries {
		fmt.Printf("%s (schema %d)\n", entry.ManifestPath, entry.Header.SchemaVersion)
		if entry.Header.CanvasID != "" {
			fmt.Printf("  canvas: %s\n", entry.Header.CanvasID)
		}
		fmt.Printf("  header: %s\n", entry.HeaderPath)
	}
}
