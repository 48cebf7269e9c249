package router

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"canvasboard/broker/internal/codec"
	"canvasboard/broker/internal/hub"
	"canvasboard/broker/internal/identity"
	"canvasboard/broker/internal/logging"
	"canvasboard/broker/internal/networking"
)

// Reader abstracts the transport a Connection reads frames from.
// *websocket.Conn satisfies it; tests supply a fake.
type Reader interface {
	ReadMessage() (messageType int, payload []byte, err error)
	SetReadDeadline(t time.Time) error
	SetReadLimit(limit int64)
}

// Conn is the full duplex transport a Connection drives: Reader for the
// inbound half, Writer (see sink.go) for the outbound half passed
// separately to NewDispatcher.
type Conn interface {
	Reader
	Writer
}

// Config bounds one connection's behavior. main.go fills it field by field
// from config.Config.
type Config struct {
	MaxPayloadBytes   int64
	WriteDeadline     time.Duration
	HeartbeatDeadline time.Duration
	DispatchQueueLen  int

	// BandwidthBytesPerSecond bounds this connection's outbound throughput.
	// Zero disables throttling. Mirrors the teacher's
	// DefaultBandwidthLimitBytesPerSecond, applied here per connection
	// instead of per client ID since one Dispatcher already scopes to one
	// connection.
	BandwidthBytesPerSecond float64

	// OnEventPublished, when set, is invoked once for every event this
	// connection successfully publishes to a Hub, letting main.go track a
	// process-wide published-event counter for /metrics without this
	// package needing to know about Broker.
	OnEventPublished func()
}

// Connection drives one authenticated WebSocket connection: the read loop
// dispatching registerForCanvas/unregisterForCanvas/canvasEvent/ping
// frames, and the Dispatcher (shared across every canvas this connection
// subscribes to) for the outbound half. Grounded on the teacher's
// serveWS's reader goroutine: JSON-envelope peek, dispatch, and
// read-deadline extension on every frame.
type Connection struct {
	id       identity.Identity
	conn     Conn
	hubs     *HubRegistry
	cfg      Config
	logger   *logging.Logger
	dispatch *Dispatcher

	subscribed map[string]*CanvasSink
}

// NewConnection wires a Connection around an authenticated identity and an
// already-upgraded transport.
func NewConnection(id identity.Identity, conn Conn, hubs *HubRegistry, cfg Config, logger *logging.Logger) *Connection {
	c := &Connection{
		id:         id,
		conn:       conn,
		hubs:       hubs,
		cfg:        cfg,
		logger:     logger,
		subscribed: make(map[string]*CanvasSink),
	}
	c.dispatch = NewDispatcher(conn, cfg.WriteDeadline, cfg.DispatchQueueLen, logger, c.teardown)
	if cfg.BandwidthBytesPerSecond > 0 {
		c.dispatch.WithBandwidth(networking.NewBandwidthRegulator(cfg.BandwidthBytesPerSecond, nil))
	}
	return c
}

// Serve runs the read loop until the connection closes. It always returns
// after unsubscribing from every canvas this connection held.
func (c *Connection) Serve(ctx context.Context) {
	defer c.teardown()

	if c.cfg.MaxPayloadBytes > 0 {
		c.conn.SetReadLimit(c.cfg.MaxPayloadBytes)
	}
	c.extendDeadline()

	for {
		messageType, msg, err := c.conn.ReadMessage()
		if err != nil {
			if c.logger != nil {
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					c.logger.Warn("heartbeat deadline exceeded", logging.String("identity", c.id.ID))
				} else {
					c.logger.Debug("read error, closing connection", logging.Error(err))
				}
			}
			return
		}
		c.extendDeadline()

		if messageType != textMessage {
			continue
		}
		c.handleFrame(ctx, msg)
	}
}

func (c *Connection) extendDeadline() {
	if c.cfg.HeartbeatDeadline <= 0 {
		return
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.HeartbeatDeadline))
}

func (c *Connection) handleFrame(ctx context.Context, msg []byte) {
	var peek codec.InboundPeek
	if err := json.Unmarshal(msg, &peek); err != nil {
		if c.logger != nil {
			c.logger.Debug("dropping invalid JSON frame", logging.Error(err))
		}
		return
	}

	switch peek.Type {
	case "registerForCanvas":
		var frame codec.RegisterForCanvas
		if err := json.Unmarshal(msg, &frame); err != nil || frame.CanvasID == "" {
			return
		}
		c.register(ctx, frame.CanvasID)
	case "unregisterForCanvas":
		var frame codec.UnregisterForCanvas
		if err := json.Unmarshal(msg, &frame); err != nil || frame.CanvasID == "" {
			return
		}
		c.unregister(frame.CanvasID)
	case "canvasEvent":
		var frame codec.CanvasEventFrame
		if err := json.Unmarshal(msg, &frame); err != nil || frame.CanvasID == "" {
			return
		}
		c.handleCanvasEvent(ctx, frame)
	case "ping":
		var frame codec.PingFrame
		_ = json.Unmarshal(msg, &frame)
		c.sendPong(frame.Timestamp)
	default:
		if c.logger != nil {
			c.logger.Debug("dropping frame with unknown type", logging.String("type", peek.Type))
		}
	}
}

func (c *Connection) register(ctx context.Context, canvasID string) {
	if _, ok := c.subscribed[canvasID]; ok {
		return
	}
	h := c.hubs.GetOrCreate(canvasID)
	sink := c.dispatch.ForCanvas(canvasID)
	if err := h.Subscribe(ctx, c.id, sink); err != nil {
		if c.logger != nil {
			c.logger.Warn("subscribe failed", logging.String("canvas", canvasID), logging.Error(err))
		}
		return
	}
	c.subscribed[canvasID] = sink
}

func (c *Connection) unregister(canvasID string) {
	sink, ok := c.subscribed[canvasID]
	if !ok {
		return
	}
	if h, ok := c.hubs.Lookup(canvasID); ok {
		h.Unsubscribe(c.id, sink)
	}
	delete(c.subscribed, canvasID)
}

// handleCanvasEvent decodes and publishes each event in the batch. An event
// rejected as MalformedEvent/DuplicateShapeId/UnknownShapeId/
// PermissionDenied/SelectionHeld is logged at debug level and dropped: no
// broadcast happens, no error frame is sent back to the originator, and
// processing of the remaining events in the batch continues independently.
func (c *Connection) handleCanvasEvent(ctx context.Context, frame codec.CanvasEventFrame) {
	h, ok := c.hubs.Lookup(frame.CanvasID)
	if !ok {
		return
	}
	for _, we := range frame.EventsForCanvas {
		e, err := codec.DecodeEvent(we)
		if err != nil {
			if c.logger != nil {
				c.logger.Debug("rejecting malformed event", logging.Error(err))
			}
			continue
		}
		if err := h.Publish(ctx, c.id, e); err != nil {
			if c.logger != nil {
				c.logger.Debug("rejecting event",
					logging.String("canvas", frame.CanvasID),
					logging.String("event", string(e.Kind)),
					logging.Error(err))
			}
			continue
		}
		if c.cfg.OnEventPublished != nil {
			c.cfg.OnEventPublished()
		}
	}
}

func (c *Connection) sendPong(timestamp int64) {
	pong := codec.PongFrame{Type: "pong", Timestamp: timestamp}
	payload, err := json.Marshal(pong)
	if err != nil {
		return
	}
	_ = c.dispatch.WriteRaw(payload)
}

func (c *Connection) teardown() {
	for canvasID, sink := range c.subscribed {
		if h, ok := c.hubs.Lookup(canvasID); ok {
			h.Unsubscribe(c.id, sink)
		}
	}
	c.subscribed = make(map[string]*CanvasSink)
	c.dispatch.Close()
}

var _ hub.Sink = (*CanvasSink)(nil)
