package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"canvasboard/broker/internal/codec"
	"canvasboard/broker/internal/event"
	"canvasboard/broker/internal/logging"
	"canvasboard/broker/internal/shape"
)

// ConnectionState is the Bridge's connection state machine (spec.md §4.7):
// Disconnected -> Connecting -> Connected -> (Reconnecting -> Connecting ->
// ...). StateReconnectFailed is the terminal state reached once the
// configured maximum reconnect attempts is exhausted (spec.md §7's
// ReconnectFailed error kind); it is delivered through the same
// TopicStateChanged channel as the other three states rather than a
// separate error callback, since observers already watch that topic.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateReconnectFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateReconnectFailed:
		return "reconnectFailed"
	default:
		return "unknown"
	}
}

// Config bounds the Bridge's timing behavior; see DefaultConfig for the
// spec-derived defaults.
type Config struct {
	// PingInterval is how often a ping frame is sent once connected
	// (spec.md §5: "client heartbeat ping interval 15 s").
	PingInterval time.Duration
	// MaxReconnectAttempts bounds reconnect attempts before
	// StateReconnectFailed (spec.md §4.7: "a configured maximum").
	MaxReconnectAttempts int
	// UnregisterGrace is the pause between sending unregisterForCanvas for
	// the previous canvas and registerForCanvas for the next one when
	// switching canvases (spec.md §5: "a 1 s client-side grace period").
	UnregisterGrace time.Duration
}

// DefaultConfig returns the spec-derived defaults.
func DefaultConfig() Config {
	return Config{
		PingInterval:         15 * time.Second,
		MaxReconnectAttempts: defaultMaxReconnectAttempts,
		UnregisterGrace:      time.Second,
	}
}

// Option customizes Bridge construction.
type Option func(*Bridge)

// WithConfig overrides the default timing configuration.
func WithConfig(cfg Config) Option {
	return func(b *Bridge) { b.cfg = cfg }
}

// WithClock overrides the Bridge's clock, enabling deterministic tests of
// the reconnect cycle detector and ping timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) {
		if now != nil {
			b.now = now
		}
	}
}

var errNotConnected = errors.New("client: not connected")

// Bridge implements C7: the single point binding one local Event Bus/Store
// to one server channel. It subscribes to the five local mutation topics
// on the Bus, translates genuinely-local intents (ctx.Source ==
// SourceLocal; spec.md §9's redesign note) into wire events, and runs the
// inbound read loop that decides full-replay-vs-incremental, deduplicates,
// and folds server events back into the Store and Bus.
type Bridge struct {
	cfg      Config
	dialer   Dialer
	bus      *EventBus
	store    *Store
	logger   *logging.Logger
	identity string
	now      func() time.Time

	mu                    sync.Mutex
	state                 ConnectionState
	conn                  Conn
	connGen               uint64
	desiredCanvas         string
	activeCanvas          string
	awaitingInitialReplay map[string]bool
	cycles                *replayCycleDetector
	pendingOutbound       map[string][]codec.WireEvent
	dragBatchers          map[string]*dragBatcher

	writeMu sync.Mutex

	unsubLocal []func()
	stopCh     chan struct{}
	stopped    bool
}

// NewBridge constructs a Bridge for one authenticated identity. dialer
// establishes (and re-establishes, on reconnect) the transport; bus/store
// are the local C8 halves this Bridge feeds.
func NewBridge(dialer Dialer, bus *EventBus, store *Store, identityID string, logger *logging.Logger, opts ...Option) *Bridge {
	b := &Bridge{
		cfg:                   DefaultConfig(),
		dialer:                dialer,
		bus:                   bus,
		store:                 store,
		identity:              identityID,
		logger:                logger,
		now:                   time.Now,
		awaitingInitialReplay: make(map[string]bool),
		pendingOutbound:       make(map[string][]codec.WireEvent),
		dragBatchers:          make(map[string]*dragBatcher),
		stopCh:                make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	b.cycles = newReplayCycleDetector(b.now)
	return b
}

// State reports the current connection state.
func (b *Bridge) State() ConnectionState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Start wires the Bridge's local-topic subscriptions and begins the
// connect/reconnect loop in the background. It returns immediately.
func (b *Bridge) Start(ctx context.Context) {
	b.wireLocalSubscriptions()
	go b.run(ctx)
}

// Stop tears the Bridge down: the connect loop exits, local subscriptions
// are removed, and the current transport (if any) is closed. Safe to call
// more than once.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	close(b.stopCh)
	conn := b.conn
	b.mu.Unlock()

	for _, unsub := range b.unsubLocal {
		unsub()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

func (b *Bridge) wireLocalSubscriptions() {
	b.unsubLocal = append(b.unsubLocal,
		b.bus.Subscribe(TopicShapeCreated, b.onLocalCreate),
		b.bus.Subscribe(TopicShapeDeleted, b.onLocalDelete),
		b.bus.Subscribe(TopicShapeModified, b.onLocalModify),
		b.bus.Subscribe(TopicShapeSelected, b.onLocalSelect),
		b.bus.Subscribe(TopicShapeUnselected, b.onLocalUnselect),
	)
}

// --- connect / reconnect loop -------------------------------------------

func (b *Bridge) run(ctx context.Context) {
	attempt := 0
	for {
		if b.stoppedOrDone(ctx) {
			return
		}
		b.setState(StateConnecting)
		conn, err := b.dialer.Dial(ctx)
		if err != nil {
			if b.logger != nil {
				b.logger.Debug("bridge dial failed", logging.Error(err))
			}
			if !b.backoffOrFail(&attempt) {
				return
			}
			continue
		}
		attempt = 0
		b.mu.Lock()
		b.conn = conn
		b.connGen++
		b.mu.Unlock()

		b.setState(StateConnected)
		b.onConnected()
		b.readLoop(conn)

		b.mu.Lock()
		b.conn = nil
		b.activeCanvas = ""
		b.mu.Unlock()

		if b.stoppedOrDone(ctx) {
			return
		}
		if !b.backoffOrFail(&attempt) {
			return
		}
	}
}

func (b *Bridge) stoppedOrDone(ctx context.Context) bool {
	select {
	case <-b.stopCh:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// backoffOrFail increments attempt, sleeps the exponential backoff delay
// (spec.md §4.7: 1s doubling to a 30s cap), and reports whether the caller
// should keep retrying. Once attempt exceeds MaxReconnectAttempts it
// transitions to StateReconnectFailed and reports false.
func (b *Bridge) backoffOrFail(attempt *int) bool {
	*attempt++
	if *attempt > b.cfg.MaxReconnectAttempts {
		b.setState(StateReconnectFailed)
		return false
	}
	b.setState(StateReconnecting)
	return b.sleepOrStop(reconnectDelay(*attempt))
}

func (b *Bridge) sleepOrStop(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-b.stopCh:
		return false
	case <-timer.C:
		return true
	}
}

func (b *Bridge) onConnected() {
	b.mu.Lock()
	canvasID := b.desiredCanvas
	b.mu.Unlock()
	if canvasID != "" {
		b.sendRegister(canvasID)
	}
	go b.pingLoop()
}

func (b *Bridge) pingLoop() {
	b.mu.Lock()
	gen := b.connGen
	b.mu.Unlock()

	ticker := time.NewTicker(b.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.mu.Lock()
			live := b.connGen == gen && b.state == StateConnected
			b.mu.Unlock()
			if !live {
				return
			}
			_ = b.writeFrame(codec.PingFrame{Type: "ping", Timestamp: b.now().UnixMilli()})
		}
	}
}

func (b *Bridge) setState(s ConnectionState) {
	b.mu.Lock()
	b.state = s
	canvasID := b.desiredCanvas
	b.mu.Unlock()
	b.bus.Publish(TopicStateChanged, EventContext{Source: SourceServer, CanvasID: canvasID}, s)
}

// --- canvas registration --------------------------------------------------

// RegisterForCanvas requests a subscription to canvasID. It is idempotent:
// calling it again with the canvas already registered is a no-op (spec.md
// §8). When not yet Connected, the request is remembered and replayed the
// moment the connection transitions to Connected. Switching from a
// different canvas first sends an explicit unregisterForCanvas for the old
// one and waits UnregisterGrace before registering the new one, so the two
// subscriptions never overlap (spec.md §4.7).
func (b *Bridge) RegisterForCanvas(canvasID string) {
	if canvasID == "" {
		return
	}
	b.mu.Lock()
	if b.desiredCanvas == canvasID {
		b.mu.Unlock()
		return
	}
	activePrev := b.activeCanvas
	connected := b.state == StateConnected
	b.desiredCanvas = canvasID
	b.mu.Unlock()

	go b.switchCanvas(activePrev, canvasID, connected)
}

func (b *Bridge) switchCanvas(activePrev, next string, connected bool) {
	if activePrev != "" && connected {
		b.sendUnregister(activePrev)
		b.mu.Lock()
		if b.activeCanvas == activePrev {
			b.activeCanvas = ""
		}
		b.mu.Unlock()
		if !b.sleepOrStop(b.cfg.UnregisterGrace) {
			return
		}
	}
	if !connected {
		return // replayed by onConnected from desiredCanvas once Connected
	}
	b.mu.Lock()
	stillDesired := b.desiredCanvas == next
	b.mu.Unlock()
	if stillDesired {
		b.sendRegister(next)
	}
}

// UnregisterForCanvas explicitly drops a canvas subscription without
// registering a replacement (e.g. a tab closing its canvas view).
func (b *Bridge) UnregisterForCanvas(canvasID string) {
	b.mu.Lock()
	if b.desiredCanvas == canvasID {
		b.desiredCanvas = ""
	}
	wasActive := b.activeCanvas == canvasID
	connected := b.state == StateConnected
	if wasActive {
		b.activeCanvas = ""
	}
	b.mu.Unlock()
	if wasActive && connected {
		b.sendUnregister(canvasID)
	}
}

func (b *Bridge) sendRegister(canvasID string) {
	b.mu.Lock()
	b.awaitingInitialReplay[canvasID] = true
	b.activeCanvas = canvasID
	b.mu.Unlock()
	_ = b.writeFrame(codec.RegisterForCanvas{Type: "registerForCanvas", CanvasID: canvasID})
	b.flushPendingOutbound(canvasID)
}

func (b *Bridge) sendUnregister(canvasID string) {
	_ = b.writeFrame(codec.UnregisterForCanvas{Type: "unregisterForCanvas", CanvasID: canvasID})
}

// --- inbound -------------------------------------------------------------

func (b *Bridge) readLoop(conn Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if b.logger != nil {
				b.logger.Debug("bridge read error, connection closing", logging.Error(err))
			}
			return
		}
		b.handleInbound(payload)
	}
}

func (b *Bridge) handleInbound(payload []byte) {
	var peek codec.InboundPeek
	if err := json.Unmarshal(payload, &peek); err != nil {
		return
	}
	if peek.Type == "pong" {
		return // client-side liveness has nothing further to do with it
	}
	var batch codec.OutboundBatch
	if err := json.Unmarshal(payload, &batch); err != nil {
		return
	}
	b.processBatch(batch)
}

// processBatch implements spec.md §4.7's inbound decision: deduplicate,
// then choose full replay vs incremental, subject to the cycle detector
// forcing incremental when replays are happening too often.
func (b *Bridge) processBatch(batch codec.OutboundBatch) {
	decoded := make([]event.Event, 0, len(batch.EventsForCanvas))
	for _, we := range batch.EventsForCanvas {
		e, err := codec.DecodeEvent(we)
		if err != nil {
			if b.logger != nil {
				b.logger.Debug("dropping malformed inbound event", logging.Error(err))
			}
			continue
		}
		decoded = append(decoded, e)
	}
	deduped := dedupeBatch(decoded)

	b.mu.Lock()
	awaitingInitial := b.awaitingInitialReplay[batch.CanvasID]
	delete(b.awaitingInitialReplay, batch.CanvasID)
	forced := b.cycles.forcedIncremental(batch.CanvasID)
	b.mu.Unlock()

	full := !forced && (awaitingInitial || batchNeedsFullReplay(deduped))

	if full {
		b.mu.Lock()
		b.cycles.observeFullReplay(batch.CanvasID)
		b.mu.Unlock()
		b.store.Reset(batch.CanvasID)
		b.bus.Publish(TopicResetState, EventContext{Source: SourceReplay, CanvasID: batch.CanvasID}, nil)
		for _, e := range deduped {
			b.applyAndPublish(batch.CanvasID, e, SourceReplay)
		}
		return
	}
	for _, e := range deduped {
		b.applyAndPublish(batch.CanvasID, e, SourceServer)
	}
}

func (b *Bridge) applyAndPublish(canvasID string, e event.Event, source Source) {
	b.store.Apply(canvasID, e)
	ctx := EventContext{Source: source, CanvasID: canvasID, Originator: e.IdentityID}
	switch e.Kind {
	case event.KindAddShape:
		b.bus.Publish(TopicShapeCreated, ctx, e.Shape)
	case event.KindRemoveShape:
		b.bus.Publish(TopicShapeDeleted, ctx, e.ShapeID)
	case event.KindModifyShape:
		b.bus.Publish(TopicShapeModified, ctx, ModifiedPayload{
			ShapeID: e.ShapeID, Property: e.Property, BgColor: e.BgColor, FgColor: e.FgColor, ZOrder: e.ZOrder,
		})
	case event.KindSelectShape:
		b.bus.Publish(TopicShapeSelected, ctx, SelectionPayload{ShapeID: e.ShapeID, IdentityID: e.IdentityID, Color: e.IdentityColor})
	case event.KindUnselectShape:
		b.bus.Publish(TopicShapeUnselected, ctx, SelectionPayload{ShapeID: e.ShapeID, IdentityID: e.IdentityID})
	case event.KindUserJoined, event.KindUserLeft, event.KindUserCountChanged:
		b.bus.Publish(TopicPresence, ctx, PresencePayload{
			Kind: e.Kind, IdentityID: e.IdentityID, DisplayName: e.DisplayName, Color: e.IdentityColor,
		})
	}
}

// --- outbound: local intents ----------------------------------------------

func (b *Bridge) localCtx(canvasID string) EventContext {
	return EventContext{Source: SourceLocal, CanvasID: canvasID, Originator: b.identity}
}

// CreateShape publishes a local shape-creation intent. Creation is
// critical (spec.md Glossary) and is sent immediately, never batched.
func (b *Bridge) CreateShape(canvasID string, s shape.Shape) {
	b.bus.Publish(TopicShapeCreated, b.localCtx(canvasID), Intent{CanvasID: canvasID, ShapeID: s.ID, Shape: s})
}

// DeleteShape publishes a local shape-deletion intent. Deletion is
// critical and is sent immediately, never batched.
func (b *Bridge) DeleteShape(canvasID, shapeID string) {
	b.bus.Publish(TopicShapeDeleted, b.localCtx(canvasID), Intent{CanvasID: canvasID, ShapeID: shapeID})
}

// ModifyFillColor/ModifyStrokeColor/ModifyZIndex publish critical
// modifyShape intents, sent immediately (color/z-order changes bypass
// batching, spec.md §4.7).
func (b *Bridge) ModifyFillColor(canvasID, shapeID string, color shape.Color) {
	b.bus.Publish(TopicShapeModified, b.localCtx(canvasID), Intent{CanvasID: canvasID, ShapeID: shapeID, Property: PropertyFillColor, BgColor: color})
}

func (b *Bridge) ModifyStrokeColor(canvasID, shapeID string, color shape.Color) {
	b.bus.Publish(TopicShapeModified, b.localCtx(canvasID), Intent{CanvasID: canvasID, ShapeID: shapeID, Property: PropertyStrokeColor, FgColor: color})
}

func (b *Bridge) ModifyZIndex(canvasID, shapeID string, zOrder int64) {
	b.bus.Publish(TopicShapeModified, b.localCtx(canvasID), Intent{CanvasID: canvasID, ShapeID: shapeID, Property: PropertyZIndex, ZOrder: zOrder})
}

// MoveShape publishes a local drag/geometry-change intent. These are
// coalesced into the drag batch (max 10 events / 200ms, spec.md §4.7)
// rather than sent immediately.
func (b *Bridge) MoveShape(canvasID, shapeID string, kind shape.Kind, g shape.Geometry) {
	b.bus.Publish(TopicShapeModified, b.localCtx(canvasID), Intent{CanvasID: canvasID, ShapeID: shapeID, Property: PropertyPosition, Kind: kind, Geometry: g})
}

// SelectShape publishes a local selection intent for this Bridge's own
// identity. If the Store's cached state shows the shape currently locked
// by a different identity, the attempt is dropped silently (spec.md
// §4.7: "a selection lock held by a remote user blocks the local
// selection attempt silently").
func (b *Bridge) SelectShape(canvasID, shapeID, userColor string) {
	b.bus.Publish(TopicShapeSelected, b.localCtx(canvasID), Intent{CanvasID: canvasID, ShapeID: shapeID, IdentityID: b.identity, UserColor: userColor})
}

// UnselectShape publishes a local deselection intent for this Bridge's own
// identity.
func (b *Bridge) UnselectShape(canvasID, shapeID string) {
	b.bus.Publish(TopicShapeUnselected, b.localCtx(canvasID), Intent{CanvasID: canvasID, ShapeID: shapeID, IdentityID: b.identity})
}

func (b *Bridge) onLocalCreate(ctx EventContext, payload any) {
	if ctx.Source != SourceLocal {
		return
	}
	intent, ok := payload.(Intent)
	if !ok {
		return
	}
	we, err := translateCreate(intent)
	if err != nil {
		return
	}
	b.sendCritical(intent.CanvasID, we)
}

func (b *Bridge) onLocalDelete(ctx EventContext, payload any) {
	if ctx.Source != SourceLocal {
		return
	}
	intent, ok := payload.(Intent)
	if !ok {
		return
	}
	we, err := translateDelete(intent)
	if err != nil {
		return
	}
	b.sendCritical(intent.CanvasID, we)
}

func (b *Bridge) onLocalModify(ctx EventContext, payload any) {
	if ctx.Source != SourceLocal {
		return
	}
	intent, ok := payload.(Intent)
	if !ok {
		return
	}
	if intent.Property.isDrag() {
		b.dragOffer(intent)
		return
	}
	we, err := translateModify(intent)
	if err != nil {
		return
	}
	b.sendCritical(intent.CanvasID, we)
}

func (b *Bridge) onLocalSelect(ctx EventContext, payload any) {
	if ctx.Source != SourceLocal {
		return
	}
	intent, ok := payload.(Intent)
	if !ok {
		return
	}
	if held, locked := b.store.Lock(intent.CanvasID, intent.ShapeID); locked && held.IdentityID != intent.IdentityID {
		return
	}
	we, err := translateSelect(intent)
	if err != nil {
		return
	}
	b.sendCritical(intent.CanvasID, we)
}

func (b *Bridge) onLocalUnselect(ctx EventContext, payload any) {
	if ctx.Source != SourceLocal {
		return
	}
	intent, ok := payload.(Intent)
	if !ok {
		return
	}
	if held, locked := b.store.Lock(intent.CanvasID, intent.ShapeID); locked && held.IdentityID != intent.IdentityID {
		return
	}
	we, err := translateUnselect(intent)
	if err != nil {
		return
	}
	b.sendCritical(intent.CanvasID, we)
}

// --- drag batching ---------------------------------------------------------

func (b *Bridge) dragOffer(intent Intent) {
	key := intent.CanvasID + "\x00" + intent.ShapeID
	b.mu.Lock()
	batcher, ok := b.dragBatchers[key]
	if !ok {
		canvasID := intent.CanvasID
		batcher = newDragBatcher(func(items []Intent) { b.flushDrag(canvasID, key, items) })
		b.dragBatchers[key] = batcher
	}
	b.mu.Unlock()
	batcher.offer(intent)
}

func (b *Bridge) flushDrag(canvasID, key string, items []Intent) {
	b.mu.Lock()
	delete(b.dragBatchers, key)
	b.mu.Unlock()

	wireEvents := make([]codec.WireEvent, 0, len(items))
	for _, it := range items {
		we, err := translateModify(it)
		if err != nil {
			continue
		}
		wireEvents = append(wireEvents, we)
	}
	if len(wireEvents) > 0 {
		b.sendBatch(canvasID, wireEvents)
	}
}

// --- wire send / outbound queueing ------------------------------------------

func (b *Bridge) sendCritical(canvasID string, we codec.WireEvent) {
	b.sendEvents(canvasID, []codec.WireEvent{we})
}

func (b *Bridge) sendBatch(canvasID string, wes []codec.WireEvent) {
	b.sendEvents(canvasID, wes)
}

func (b *Bridge) sendEvents(canvasID string, wes []codec.WireEvent) {
	b.mu.Lock()
	connected := b.state == StateConnected
	b.mu.Unlock()

	if !connected {
		b.queueOutbound(canvasID, wes)
		return
	}
	frame := codec.CanvasEventFrame{Type: "canvasEvent", CanvasID: canvasID, EventsForCanvas: wes}
	if err := b.writeFrame(frame); err != nil {
		b.queueOutbound(canvasID, wes)
	}
}

func (b *Bridge) queueOutbound(canvasID string, wes []codec.WireEvent) {
	b.mu.Lock()
	b.pendingOutbound[canvasID] = append(b.pendingOutbound[canvasID], wes...)
	b.mu.Unlock()
}

// flushPendingOutbound sends every event queued for canvasID while
// disconnected as a single grouped batch (spec.md §4.7: "queued events
// during disconnection are sent after reconnection, grouped by canvas"),
// preserving original order.
func (b *Bridge) flushPendingOutbound(canvasID string) {
	b.mu.Lock()
	queued := b.pendingOutbound[canvasID]
	delete(b.pendingOutbound, canvasID)
	b.mu.Unlock()
	if len(queued) == 0 {
		return
	}
	frame := codec.CanvasEventFrame{Type: "canvasEvent", CanvasID: canvasID, EventsForCanvas: queued}
	_ = b.writeFrame(frame)
}

func (b *Bridge) currentConn() Conn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn
}

func (b *Bridge) writeFrame(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	conn := b.currentConn()
	if conn == nil {
		return errNotConnected
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	_ = conn.SetWriteDeadline(b.now().Add(10 * time.Second))
	return conn.WriteMessage(textMessage, payload)
}

// --- local intent -> wire translation ---------------------------------------

func translateCreate(intent Intent) (codec.WireEvent, error) {
	return codec.EncodeEvent(event.Event{Kind: event.KindAddShape, ShapeID: intent.Shape.ID, Shape: intent.Shape}, false)
}

func translateDelete(intent Intent) (codec.WireEvent, error) {
	return codec.EncodeEvent(event.Event{Kind: event.KindRemoveShape, ShapeID: intent.ShapeID}, false)
}

func translateSelect(intent Intent) (codec.WireEvent, error) {
	return codec.EncodeEvent(event.Event{
		Kind: event.KindSelectShape, ShapeID: intent.ShapeID,
		IdentityID: intent.IdentityID, IdentityColor: intent.UserColor,
	}, false)
}

func translateUnselect(intent Intent) (codec.WireEvent, error) {
	return codec.EncodeEvent(event.Event{
		Kind: event.KindUnselectShape, ShapeID: intent.ShapeID, IdentityID: intent.IdentityID,
	}, false)
}

func translateModify(intent Intent) (codec.WireEvent, error) {
	switch intent.Property {
	case PropertyFillColor:
		return codec.EncodeEvent(event.Event{
			Kind: event.KindModifyShape, ShapeID: intent.ShapeID, Property: event.PropertyBgColor, BgColor: intent.BgColor,
		}, false)
	case PropertyStrokeColor:
		return codec.EncodeEvent(event.Event{
			Kind: event.KindModifyShape, ShapeID: intent.ShapeID, Property: event.PropertyFgColor, FgColor: intent.FgColor,
		}, false)
	case PropertyZIndex:
		return codec.EncodeEvent(event.Event{
			Kind: event.KindModifyShape, ShapeID: intent.ShapeID, Property: event.PropertyZOrder, ZOrder: intent.ZOrder,
		}, false)
	case PropertyPosition, PropertyX, PropertyY:
		return wirePositionEvent(intent)
	default:
		return codec.WireEvent{}, fmt.Errorf("client: unknown modify property %q", intent.Property)
	}
}

// wirePositionEvent builds a modifyShape frame carrying the shape's
// updated geometry directly (bypassing event.Event/codec.EncodeEvent,
// whose Property enum is frozen to the wire protocol's documented
// fillColor/strokeColor/zIndex set). See the IntentProperty doc comment
// for why this does not extend the server's accepted vocabulary.
func wirePositionEvent(intent Intent) (codec.WireEvent, error) {
	data := codec.WireShapeData{}
	switch intent.Kind {
	case shape.KindLine, shape.KindRectangle:
		from, to := intent.Geometry.From, intent.Geometry.To
		data.From = &codec.WirePoint{X: from.X, Y: from.Y}
		data.To = &codec.WirePoint{X: to.X, Y: to.Y}
	case shape.KindCircle:
		center := intent.Geometry.Center
		radius := intent.Geometry.Radius
		data.Center = &codec.WirePoint{X: center.X, Y: center.Y}
		data.Radius = &radius
	case shape.KindTriangle:
		p1, p2, p3 := intent.Geometry.P1, intent.Geometry.P2, intent.Geometry.P3
		data.P1 = &codec.WirePoint{X: p1.X, Y: p1.Y}
		data.P2 = &codec.WirePoint{X: p2.X, Y: p2.Y}
		data.P3 = &codec.WirePoint{X: p3.X, Y: p3.Y}
	default:
		return codec.WireEvent{}, fmt.Errorf("client: cannot encode position for unknown shape kind %q", intent.Kind)
	}
	value, err := json.Marshal(data)
	if err != nil {
		return codec.WireEvent{}, err
	}
	return codec.WireEvent{Event: string(event.KindModifyShape), ShapeID: intent.ShapeID, Property: string(PropertyPosition), Value: value}, nil
}
