package client

import (
	"canvasboard/broker/internal/shape"
)

// IntentProperty names the field a local SHAPE_MODIFIED intent targets.
// position/x/y are a purely client-local rendering concept: the wire
// protocol's modifyShape only ever carries fillColor/strokeColor/zIndex
// (spec.md §3/§6, unchanged by SPEC_FULL.md). The Bridge still runs
// position/x/y through the same coalescing pipeline described in spec.md
// §4.7 and exercised by scenario 6 ("the server receives ≤1 batch of ≤8
// events"): the batch reaches the transport, where the server-side codec
// is free to reject an unrecognized property as MalformedEvent per the
// error taxonomy in spec.md §7 without closing the connection. This
// package does not invent a new wire vocabulary entry to make position
// changes "succeed" server-side; that would extend a closed enum spec.md
// states plainly.
type IntentProperty string

const (
	PropertyPosition    IntentProperty = "position"
	PropertyX           IntentProperty = "x"
	PropertyY           IntentProperty = "y"
	PropertyFillColor   IntentProperty = "fillColor"
	PropertyStrokeColor IntentProperty = "strokeColor"
	PropertyZIndex      IntentProperty = "zIndex"
)

// isDrag reports whether p is one of the position/x/y properties spec.md
// §4.7 names as drag-batchable.
func (p IntentProperty) isDrag() bool {
	switch p {
	case PropertyPosition, PropertyX, PropertyY:
		return true
	default:
		return false
	}
}

// Intent is a local mutation the renderer/toolbar wants applied. The
// Bridge subscribes to the five mutation topics and translates whichever
// of these arrives into a server-bound codec.WireEvent.
type Intent struct {
	CanvasID string
	ShapeID  string

	// SHAPE_CREATED
	Shape shape.Shape

	// SHAPE_MODIFIED
	Property IntentProperty
	BgColor  shape.Color
	FgColor  shape.Color
	ZOrder   int64
	Geometry shape.Geometry
	// Kind is only needed for PropertyPosition/X/Y, to know which of
	// Geometry's fields to encode onto the wire.
	Kind shape.Kind

	// SHAPE_SELECTED / SHAPE_UNSELECTED
	IdentityID string
	UserColor  string
}
