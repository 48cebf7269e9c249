// Package codec implements C1, the bidirectional translation between the
// wire JSON protocol (spec §6) and the internal tagged event representation
// (internal/event). It owns color-name normalization and never lets an
// unrecognized field reach the internal model.
package codec

import (
	"encoding/json"
	"fmt"

	"canvasboard/broker/internal/event"
	"canvasboard/broker/internal/shape"
)

// DecodeEvent converts one wire event into its internal form. It rejects
// malformed geometry, missing points, negative radii, non-finite numbers,
// and unrecognized colors or properties with a *MalformedEventError.
func DecodeEvent(w WireEvent) (event.Event, error) {
	switch w.Event {
	case string(event.KindAddShape):
		return decodeAddShape(w)
	case string(event.KindRemoveShape):
		return decodeRemoveShape(w)
	case string(event.KindModifyShape):
		return decodeModifyShape(w)
	case string(event.KindSelectShape):
		return decodeSelectShape(w)
	case string(event.KindUnselectShape):
		return decodeUnselectShape(w)
	case string(event.KindUserJoined), string(event.KindUserLeft), string(event.KindUserCountChanged):
		return decodePresence(w)
	default:
		return event.Event{}, malformed("unrecognized event tag %q", w.Event)
	}
}

func decodeAddShape(w WireEvent) (event.Event, error) {
	if w.Shape == nil {
		return event.Event{}, malformed("addShape requires a shape")
	}
	kind := shape.Kind(w.Shape.Type)
	if !kind.Valid() {
		return event.Event{}, malformed("addShape has unknown shape type %q", w.Shape.Type)
	}
	if w.Shape.ID == "" {
		return event.Event{}, malformed("addShape requires a shape id")
	}
	geometry, err := decodeGeometry(kind, w.Shape.Data)
	if err != nil {
		return event.Event{}, err
	}
	bg, err := shape.NormalizeColorValue(w.Shape.Data.BgColor)
	if err != nil {
		return event.Event{}, malformed("addShape bgColor: %v", err)
	}
	fg, err := shape.NormalizeColorValue(w.Shape.Data.FgColor)
	if err != nil {
		return event.Event{}, malformed("addShape fgColor: %v", err)
	}
	s := shape.Shape{
		ID:       w.Shape.ID,
		Kind:     kind,
		Geometry: geometry,
		BgColor:  bg,
		FgColor:  fg,
		ZOrder:   w.Shape.Data.ZOrder,
	}
	if err := s.Validate(); err != nil {
		return event.Event{}, malformed("addShape: %v", err)
	}
	return event.Event{Kind: event.KindAddShape, ShapeID: s.ID, Shape: s}, nil
}

func decodeGeometry(kind shape.Kind, data WireShapeData) (shape.Geometry, error) {
	point := func(p *WirePoint, field string) (shape.Point, error) {
		if p == nil {
			return shape.Point{}, malformed("%s geometry missing %s point", kind, field)
		}
		return shape.Point{X: p.X, Y: p.Y}, nil
	}
	var g shape.Geometry
	var err error
	switch kind {
	case shape.KindLine, shape.KindRectangle:
		if g.From, err = point(data.From, "from"); err != nil {
			return g, err
		}
		if g.To, err = point(data.To, "to"); err != nil {
			return g, err
		}
	case shape.KindCircle:
		if g.Center, err = point(data.Center, "center"); err != nil {
			return g, err
		}
		if data.Radius == nil {
			return g, malformed("circle geometry missing radius")
		}
		g.Radius = *data.Radius
	case shape.KindTriangle:
		if g.P1, err = point(data.P1, "p1"); err != nil {
			return g, err
		}
		if g.P2, err = point(data.P2, "p2"); err != nil {
			return g, err
		}
		if g.P3, err = point(data.P3, "p3"); err != nil {
			return g, err
		}
	}
	if err := g.Validate(kind); err != nil {
		return g, malformed("%v", err)
	}
	return g, nil
}

func decodeRemoveShape(w WireEvent) (event.Event, error) {
	if w.ShapeID == "" {
		return event.Event{}, malformed("removeShape requires a shapeId")
	}
	return event.Event{Kind: event.KindRemoveShape, ShapeID: w.ShapeID}, nil
}

func decodeModifyShape(w WireEvent) (event.Event, error) {
	if w.ShapeID == "" {
		return event.Event{}, malformed("modifyShape requires a shapeId")
	}
	e := event.Event{Kind: event.KindModifyShape, ShapeID: w.ShapeID}
	switch w.Property {
	case "fillColor":
		color, err := decodeColorValue(w.Value)
		if err != nil {
			return event.Event{}, malformed("modifyShape fillColor: %v", err)
		}
		if err := color.Validate(true); err != nil {
			return event.Event{}, malformed("modifyShape fillColor: %v", err)
		}
		e.Property = event.PropertyBgColor
		e.BgColor = color
	case "strokeColor":
		color, err := decodeColorValue(w.Value)
		if err != nil {
			return event.Event{}, malformed("modifyShape strokeColor: %v", err)
		}
		if err := color.Validate(false); err != nil {
			return event.Event{}, malformed("modifyShape strokeColor: %v", err)
		}
		e.Property = event.PropertyFgColor
		e.FgColor = color
	case "zIndex":
		var z int64
		if err := json.Unmarshal(w.Value, &z); err != nil {
			return event.Event{}, malformed("modifyShape zIndex: value must be an integer")
		}
		e.Property = event.PropertyZOrder
		e.ZOrder = z
	default:
		return event.Event{}, malformed("modifyShape has unknown property %q", w.Property)
	}
	return e, nil
}

func decodeColorValue(raw json.RawMessage) (shape.Color, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("color value must be a string")
	}
	return shape.NormalizeColorValue(s)
}

func decodeSelectShape(w WireEvent) (event.Event, error) {
	if w.ShapeID == "" || w.ClientID == "" {
		return event.Event{}, malformed("selectShape requires shapeId and clientId")
	}
	color, err := shape.NormalizeColorValue(w.UserColor)
	if err != nil {
		return event.Event{}, malformed("selectShape userColor: %v", err)
	}
	return event.Event{
		Kind:          event.KindSelectShape,
		ShapeID:       w.ShapeID,
		IdentityID:    w.ClientID,
		IdentityColor: string(color),
	}, nil
}

func decodeUnselectShape(w WireEvent) (event.Event, error) {
	if w.ShapeID == "" || w.ClientID == "" {
		return event.Event{}, malformed("unselectShape requires shapeId and clientId")
	}
	return event.Event{Kind: event.KindUnselectShape, ShapeID: w.ShapeID, IdentityID: w.ClientID}, nil
}

func decodePresence(w WireEvent) (event.Event, error) {
	if w.Event == string(event.KindUserCountChanged) {
		if w.UserID == "" {
			return event.Event{}, malformed("userCountChanged requires userId")
		}
		return event.Event{Kind: event.KindUserCountChanged, IdentityID: w.UserID}, nil
	}
	if w.UserID == "" {
		return event.Event{}, malformed("%s requires userId", w.Event)
	}
	var color string
	if w.UserColor != "" {
		c, err := shape.NormalizeColorValue(w.UserColor)
		if err != nil {
			return event.Event{}, malformed("%s userColor: %v", w.Event, err)
		}
		color = string(c)
	}
	return event.Event{
		Kind:          event.Kind(w.Event),
		IdentityID:    w.UserID,
		DisplayName:   w.DisplayName,
		IdentityColor: color,
	}, nil
}

// EncodeEvent converts an internal event back into its wire form.
// preferNames requests German color names where an exact match exists;
// otherwise hex is passed through.
func EncodeEvent(e event.Event, preferNames bool) (WireEvent, error) {
	present := func(c shape.Color) string {
		if preferNames {
			return shape.PreferredName(c)
		}
		return string(c)
	}
	switch e.Kind {
	case event.KindAddShape:
		return encodeAddShape(e, present)
	case event.KindRemoveShape:
		return WireEvent{Event: string(event.KindRemoveShape), ShapeID: e.ShapeID}, nil
	case event.KindModifyShape:
		return encodeModifyShape(e, present)
	case event.KindSelectShape:
		return WireEvent{
			Event:     string(event.KindSelectShape),
			ShapeID:   e.ShapeID,
			ClientID:  e.IdentityID,
			UserColor: present(shape.Color(e.IdentityColor)),
		}, nil
	case event.KindUnselectShape:
		return WireEvent{Event: string(event.KindUnselectShape), ShapeID: e.ShapeID, ClientID: e.IdentityID}, nil
	case event.KindUserJoined, event.KindUserLeft:
		we := WireEvent{Event: string(e.Kind), UserID: e.IdentityID, DisplayName: e.DisplayName}
		if e.IdentityColor != "" {
			we.UserColor = present(shape.Color(e.IdentityColor))
		}
		return we, nil
	case event.KindUserCountChanged:
		return WireEvent{Event: string(event.KindUserCountChanged), UserID: e.IdentityID}, nil
	default:
		return WireEvent{}, fmt.Errorf("cannot encode unknown event kind %q", e.Kind)
	}
}

func encodeAddShape(e event.Event, present func(shape.Color) string) (WireEvent, error) {
	data := WireShapeData{
		BgColor: present(e.Shape.BgColor),
		FgColor: present(e.Shape.FgColor),
		ZOrder:  e.Shape.ZOrder,
	}
	g := e.Shape.Geometry
	switch e.Shape.Kind {
	case shape.KindLine, shape.KindRectangle:
		data.From = &WirePoint{X: g.From.X, Y: g.From.Y}
		data.To = &WirePoint{X: g.To.X, Y: g.To.Y}
	case shape.KindCircle:
		data.Center = &WirePoint{X: g.Center.X, Y: g.Center.Y}
		radius := g.Radius
		data.Radius = &radius
	case shape.KindTriangle:
		data.P1 = &WirePoint{X: g.P1.X, Y: g.P1.Y}
		data.P2 = &WirePoint{X: g.P2.X, Y: g.P2.Y}
		data.P3 = &WirePoint{X: g.P3.X, Y: g.P3.Y}
	default:
		return WireEvent{}, fmt.Errorf("cannot encode shape of unknown kind %q", e.Shape.Kind)
	}
	return WireEvent{
		Event: string(event.KindAddShape),
		Shape: &WireShape{Type: string(e.Shape.Kind), ID: e.Shape.ID, Data: data},
	}, nil
}

func encodeModifyShape(e event.Event, present func(shape.Color) string) (WireEvent, error) {
	we := WireEvent{Event: string(event.KindModifyShape), ShapeID: e.ShapeID}
	switch e.Property {
	case event.PropertyBgColor:
		we.Property = "fillColor"
		raw, err := json.Marshal(present(e.BgColor))
		if err != nil {
			return WireEvent{}, err
		}
		we.Value = raw
	case event.PropertyFgColor:
		we.Property = "strokeColor"
		raw, err := json.Marshal(present(e.FgColor))
		if err != nil {
			return WireEvent{}, err
		}
		we.Value = raw
	case event.PropertyZOrder:
		we.Property = "zIndex"
		raw, err := json.Marshal(e.ZOrder)
		if err != nil {
			return WireEvent{}, err
		}
		we.Value = raw
	default:
		return WireEvent{}, fmt.Errorf("cannot encode modifyShape with unknown property %q", e.Property)
	}
	return we, nil
}
