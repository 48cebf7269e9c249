// Package event defines the canvas mutation and presence events carried on
// the wire, in the canvas log, and across the client event bus. Event is a
// tagged union keyed by Kind; callers switch on Kind rather than sniff which
// payload fields are set.
package event

import (
	"fmt"

	"canvasboard/broker/internal/shape"
)

// Kind enumerates the closed set of canvas events.
type Kind string

const (
	KindAddShape      Kind = "addShape"
	KindRemoveShape   Kind = "removeShape"
	KindModifyShape   Kind = "modifyShape"
	KindSelectShape   Kind = "selectShape"
	KindUnselectShape Kind = "unselectShape"
	KindUserJoined    Kind = "userJoined"
	KindUserLeft      Kind = "userLeft"

	// KindUserCountChanged is a Hub-synthesized presence refresh sent when
	// an identity already present opens another tab on the same canvas
	// (spec.md §5: multi-tab presence). It carries no shape state and is
	// never persisted to the Canvas Log.
	KindUserCountChanged Kind = "userCountChanged"
)

// Valid reports whether the kind is one of the eight supported events.
func (k Kind) Valid() bool {
	switch k {
	case KindAddShape, KindRemoveShape, KindModifyShape, KindSelectShape,
		KindUnselectShape, KindUserJoined, KindUserLeft, KindUserCountChanged:
		return true
	default:
		return false
	}
}

// ShapeProperty names a single mutable field on a shape, used by
// modifyShape events and by compaction coalescing. Internal names mirror
// Shape's field names; the codec maps the wire names fillColor/
// strokeColor/zIndex onto these.
type ShapeProperty string

const (
	PropertyBgColor ShapeProperty = "bgColor"
	PropertyFgColor ShapeProperty = "fgColor"
	PropertyZOrder  ShapeProperty = "zOrder"
)

// Event is the tagged record appended to a Canvas Log and delivered to
// subscribers. Exactly the fields relevant to Kind are populated.
type Event struct {
	Kind Kind

	// addShape / removeShape / selectShape / unselectShape / modifyShape
	ShapeID string

	// addShape
	Shape shape.Shape

	// modifyShape: exactly one of BgColor/FgColor/ZOrder is meaningful,
	// selected by Property.
	Property ShapeProperty
	BgColor  shape.Color
	FgColor  shape.Color
	ZOrder   int64

	// selectShape / unselectShape / userJoined / userLeft
	IdentityID   string
	DisplayName  string
	IdentityColor string
}

// Validate checks the event is internally consistent for its Kind.
func (e Event) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	switch e.Kind {
	case KindAddShape:
		if e.ShapeID == "" {
			return fmt.Errorf("addShape requires a shape id")
		}
		return e.Shape.Validate()
	case KindRemoveShape:
		if e.ShapeID == "" {
			return fmt.Errorf("removeShape requires a shape id")
		}
	case KindModifyShape:
		if e.ShapeID == "" {
			return fmt.Errorf("modifyShape requires a shape id")
		}
		switch e.Property {
		case PropertyBgColor, PropertyFgColor:
			if color := e.colorForProperty(); color != "" {
				if err := color.Validate(e.Property == PropertyBgColor); err != nil {
					return fmt.Errorf("modifyShape %s: %w", e.Property, err)
				}
			}
		case PropertyZOrder:
		default:
			return fmt.Errorf("modifyShape has unknown property %q", e.Property)
		}
	case KindSelectShape, KindUnselectShape:
		if e.ShapeID == "" {
			return fmt.Errorf("%s requires a shape id", e.Kind)
		}
		if e.IdentityID == "" {
			return fmt.Errorf("%s requires an identity id", e.Kind)
		}
	case KindUserJoined, KindUserLeft, KindUserCountChanged:
		if e.IdentityID == "" {
			return fmt.Errorf("%s requires an identity id", e.Kind)
		}
	}
	return nil
}

// colorForProperty returns the color value relevant to a modifyShape event,
// or the empty string if Property does not select a color field.
func (e Event) colorForProperty() shape.Color {
	switch e.Property {
	case PropertyBgColor:
		return e.BgColor
	case PropertyFgColor:
		return e.FgColor
	default:
		return ""
	}
}

// Clone returns a deep copy so stored/delivered events are never mutated
// through an alias.
func (e Event) Clone() Event {
	clone := e
	clone.Shape = e.Shape.Clone()
	return clone
}
