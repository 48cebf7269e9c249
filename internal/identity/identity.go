// Package identity models the stable, authenticated participant of a
// canvas session: an opaque ID, a display name, and a deterministically
// derived color used for selection highlights and presence events.
package identity

import (
	"hash/fnv"
	"strings"

	"canvasboard/broker/internal/auth"
)

// Identity is the record carried from authentication through the Hub and
// Router, and surfaced on selectShape/userJoined/userLeft events.
type Identity struct {
	ID          string
	DisplayName string
	Color       string
}

// FromClaims builds an Identity from verified HMAC token claims. DisplayName
// falls back to the subject when the token carries no separate display
// name (the teacher's token shape has no display-name claim, so the
// subject doubles as both ID and name unless the caller overrides it).
// Color is always derived deterministically from the subject so two
// sessions for the same identity never disagree on their selection color.
func FromClaims(claims *auth.TokenClaims, displayName string) Identity {
	id := strings.TrimSpace(claims.Subject)
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = id
	}
	return Identity{
		ID:          id,
		DisplayName: name,
		Color:       DeriveColor(id),
	}
}

// hueRing holds twenty hand-picked, visually distinct hex colors. They are
// not evenly spaced around the hue wheel, and the list includes gray, pale
// and dark entries. DeriveColor indexes into it.
var hueRing = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#fabebe",
	"#008080", "#e6beff", "#9a6324", "#fffac8", "#800000",
	"#aaffc3", "#808000", "#ffd8b1", "#000075", "#808080",
}

// DeriveColor deterministically maps an identity ID to a hex color from
// hueRing using FNV-1a, so the same ID always derives the same color across
// reconnects without any server-side storage.
func DeriveColor(id string) string {
	if id == "" {
		return hueRing[0]
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return hueRing[h.Sum32()%uint32(len(hueRing))]
}
