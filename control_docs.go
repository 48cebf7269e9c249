package main

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
)

// ToolDoc describes a single drawing tool or keyboard shortcut the canvas
// client exposes. The structure is deliberately generic so future clients
// can attach extra metadata without breaking the API.
type ToolDoc struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Shortcut    string `json:"shortcut,omitempty"`
}

// defaultToolDocs mirrors the toolbar buttons rendered by the canvas client.
// Hosting the canonical description on the broker keeps tooling and
// documentation in sync with the shape kinds the Event Codec accepts.
var defaultToolDocs = []ToolDoc{
	{
		ID:          "select",
		Label:       "Select",
		Description: "Pick up a shape's selection lock so it can be moved or edited.",
		Shortcut:    "Keyboard V",
	},
	{
		ID:          "line",
		Label:       "Line",
		Description: "Draw a straight segment between two points.",
		Shortcut:    "Keyboard L",
	},
	{
		ID:          "rectangle",
		Label:       "Rectangle",
		Description: "Draw an axis-aligned rectangle from corner to corner.",
		Shortcut:    "Keyboard R",
	},
	{
		ID:          "circle",
		Label:       "Circle",
		Description: "Draw a circle from a center point and radius.",
		Shortcut:    "Keyboard C",
	},
	{
		ID:          "triangle",
		Label:       "Triangle",
		Description: "Draw a triangle from three points.",
		Shortcut:    "Keyboard T",
	},
	{
		ID:          "fill-color",
		Label:       "Fill Color",
		Description: "Set the background color applied to newly drawn shapes.",
		Shortcut:    "Keyboard F",
	},
	{
		ID:          "stroke-color",
		Label:       "Stroke Color",
		Description: "Set the outline color applied to newly drawn shapes.",
		Shortcut:    "Keyboard S",
	},
	{
		ID:          "delete",
		Label:       "Delete Shape",
		Description: "Remove the currently selected shape from the canvas.",
		Shortcut:    "Delete / Backspace",
	},
}

// registerControlDocEndpoints registers the HTTP handler used by the canvas
// client to fetch toolbar documentation, served as JSON so other tooling can
// reuse it without additional parsing work.
func registerControlDocEndpoints(mux *http.ServeMux) {
	mux.HandleFunc("/api/tools", func(w http.ResponseWriter, r *http.Request) {
		// Always work on a copy so concurrent requests cannot mutate the
		// global slice by accident.
		docs := append([]ToolDoc(nil), defaultToolDocs...)
		sort.SliceStable(docs, func(i, j int) bool {
			if docs[i].Label == docs[j].Label {
				return strings.Compare(docs[i].ID, docs[j].ID) < 0
			}
			return strings.Compare(docs[i].Label, docs[j].Label) < 0
		})

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(docs); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
