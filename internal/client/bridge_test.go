package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"canvasboard/broker/internal/codec"
	"canvasboard/broker/internal/event"
	"canvasboard/broker/internal/logging"
	"canvasboard/broker/internal/shape"
)

// fakeConn mirrors internal/router's connection_test.go fakeConn: a
// channel-backed Conn double good enough to drive the Bridge's read/write
// loops deterministically from a test goroutine.
type fakeConn struct {
	mu       sync.Mutex
	inbound  chan []byte
	outbound [][]byte
	closed   bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 16)}
}

func (c *fakeConn) push(frame any) {
	payload, err := json.Marshal(frame)
	if err != nil {
		panic(err)
	}
	c.inbound <- payload
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	payload, ok := <-c.inbound
	if !ok {
		return 0, nil, errors.New("connection closed")
	}
	return textMessage, payload, nil
}

func (c *fakeConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	c.outbound = append(c.outbound, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.inbound)
	}
	return nil
}

func (c *fakeConn) writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.outbound))
	copy(out, c.outbound)
	return out
}

func singleConnDialer(conn *fakeConn) Dialer {
	return DialerFunc(func(ctx context.Context) (Conn, error) { return conn, nil })
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func testRectShape(id string) shape.Shape {
	return shape.Shape{
		ID:       id,
		Kind:     shape.KindRectangle,
		Geometry: shape.Geometry{From: shape.Point{X: 0, Y: 0}, To: shape.Point{X: 1, Y: 1}},
		BgColor:  shape.Color("#ffffff"),
		FgColor:  shape.Color("#000000"),
	}
}

func anyWriteIsType(conn *fakeConn, frameType string) bool {
	for _, w := range conn.writes() {
		var peek codec.InboundPeek
		if json.Unmarshal(w, &peek) == nil && peek.Type == frameType {
			return true
		}
	}
	return false
}

func TestBridgeInitialRegistrationAppliesFullReplay(t *testing.T) {
	conn := newFakeConn()
	bus := NewEventBus(logging.NewTestLogger())
	store := NewStore()
	bridge := NewBridge(singleConnDialer(conn), bus, store, "me", logging.NewTestLogger())

	var mu sync.Mutex
	resetCount := 0
	var created []string
	bus.Subscribe(TopicResetState, func(ctx EventContext, payload any) {
		mu.Lock()
		resetCount++
		mu.Unlock()
	})
	bus.Subscribe(TopicShapeCreated, func(ctx EventContext, payload any) {
		mu.Lock()
		created = append(created, ctx.CanvasID)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bridge.Start(ctx)
	defer bridge.Stop()

	bridge.RegisterForCanvas("c1")
	waitFor(t, time.Second, func() bool { return anyWriteIsType(conn, "registerForCanvas") })

	we, err := codec.EncodeEvent(event.Event{Kind: event.KindAddShape, ShapeID: "a", Shape: testRectShape("a")}, false)
	if err != nil {
		t.Fatalf("encode test event: %v", err)
	}
	conn.push(codec.OutboundBatch{CanvasID: "c1", EventsForCanvas: []codec.WireEvent{we}})

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return resetCount == 1 && len(created) == 1
	})

	if got := store.Shapes("c1"); len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected store to hold shape %q after full replay, got %+v", "a", got)
	}
}

func TestBridgeSubsequentSmallBatchIsIncremental(t *testing.T) {
	conn := newFakeConn()
	bus := NewEventBus(logging.NewTestLogger())
	store := NewStore()
	bridge := NewBridge(singleConnDialer(conn), bus, store, "me", logging.NewTestLogger())

	var mu sync.Mutex
	resetCount := 0
	bus.Subscribe(TopicResetState, func(ctx EventContext, payload any) {
		mu.Lock()
		resetCount++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bridge.Start(ctx)
	defer bridge.Stop()

	bridge.RegisterForCanvas("c1")
	waitFor(t, time.Second, func() bool { return anyWriteIsType(conn, "registerForCanvas") })

	we, _ := codec.EncodeEvent(event.Event{Kind: event.KindAddShape, ShapeID: "a", Shape: testRectShape("a")}, false)
	conn.push(codec.OutboundBatch{CanvasID: "c1", EventsForCanvas: []codec.WireEvent{we}})
	waitFor(t, time.Second, func() bool { return len(store.Shapes("c1")) == 1 })

	we2, _ := codec.EncodeEvent(event.Event{Kind: event.KindAddShape, ShapeID: "b", Shape: testRectShape("b")}, false)
	conn.push(codec.OutboundBatch{CanvasID: "c1", EventsForCanvas: []codec.WireEvent{we2}})
	waitFor(t, time.Second, func() bool { return len(store.Shapes("c1")) == 2 })

	mu.Lock()
	defer mu.Unlock()
	if resetCount != 1 {
		t.Fatalf("expected exactly one full replay (initial registration only), got %d", resetCount)
	}
}

func TestBridgeLocalCreateShapeSentImmediately(t *testing.T) {
	conn := newFakeConn()
	bus := NewEventBus(logging.NewTestLogger())
	store := NewStore()
	bridge := NewBridge(singleConnDialer(conn), bus, store, "me", logging.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bridge.Start(ctx)
	defer bridge.Stop()

	bridge.RegisterForCanvas("c1")
	waitFor(t, time.Second, func() bool { return anyWriteIsType(conn, "registerForCanvas") })

	bridge.CreateShape("c1", testRectShape("a"))

	waitFor(t, time.Second, func() bool {
		for _, w := range conn.writes() {
			var frame codec.CanvasEventFrame
			if json.Unmarshal(w, &frame) == nil && frame.Type == "canvasEvent" && len(frame.EventsForCanvas) == 1 {
				return true
			}
		}
		return false
	})
}

func TestBridgeLocalDragIntentsAreBatchedNotImmediate(t *testing.T) {
	conn := newFakeConn()
	bus := NewEventBus(logging.NewTestLogger())
	store := NewStore()
	bridge := NewBridge(singleConnDialer(conn), bus, store, "me", logging.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bridge.Start(ctx)
	defer bridge.Stop()

	bridge.RegisterForCanvas("c1")
	waitFor(t, time.Second, func() bool { return anyWriteIsType(conn, "registerForCanvas") })
	writesAtRegister := len(conn.writes())

	bridge.MoveShape("c1", "a", shape.KindRectangle, shape.Geometry{From: shape.Point{X: 1, Y: 1}, To: shape.Point{X: 2, Y: 2}})

	time.Sleep(dragBatchMaxDelay / 2)
	if got := len(conn.writes()); got != writesAtRegister {
		t.Fatalf("expected drag intent to stay batched before the delay elapses, write count grew from %d to %d", writesAtRegister, got)
	}

	waitFor(t, dragBatchMaxDelay*3, func() bool { return len(conn.writes()) > writesAtRegister })
}

func TestBridgeReconnectFailedAfterMaxAttempts(t *testing.T) {
	bus := NewEventBus(logging.NewTestLogger())
	store := NewStore()
	dialer := DialerFunc(func(ctx context.Context) (Conn, error) {
		return nil, errors.New("dial always fails")
	})
	bridge := NewBridge(dialer, bus, store, "me", logging.NewTestLogger(), WithConfig(Config{
		PingInterval:         time.Minute,
		MaxReconnectAttempts: 0,
		UnregisterGrace:      time.Millisecond,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bridge.Start(ctx)
	defer bridge.Stop()

	waitFor(t, time.Second, func() bool { return bridge.State() == StateReconnectFailed })
}

func TestBridgeRemoteLockBlocksLocalSelectionSilently(t *testing.T) {
	conn := newFakeConn()
	bus := NewEventBus(logging.NewTestLogger())
	store := NewStore()
	bridge := NewBridge(singleConnDialer(conn), bus, store, "me", logging.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bridge.Start(ctx)
	defer bridge.Stop()

	bridge.RegisterForCanvas("c1")
	waitFor(t, time.Second, func() bool { return anyWriteIsType(conn, "registerForCanvas") })

	we, _ := codec.EncodeEvent(event.Event{Kind: event.KindAddShape, ShapeID: "a", Shape: testRectShape("a")}, false)
	conn.push(codec.OutboundBatch{CanvasID: "c1", EventsForCanvas: []codec.WireEvent{we}})
	waitFor(t, time.Second, func() bool { return len(store.Shapes("c1")) == 1 })

	selectWe, _ := codec.EncodeEvent(event.Event{Kind: event.KindSelectShape, ShapeID: "a", IdentityID: "other", IdentityColor: "#ff0000"}, false)
	conn.push(codec.OutboundBatch{CanvasID: "c1", EventsForCanvas: []codec.WireEvent{selectWe}})
	waitFor(t, time.Second, func() bool {
		held, ok := store.Lock("c1", "a")
		return ok && held.IdentityID == "other"
	})

	writesBefore := len(conn.writes())
	bridge.SelectShape("c1", "a", "#00ff00")

	time.Sleep(30 * time.Millisecond)
	if got := len(conn.writes()); got != writesBefore {
		t.Fatalf("expected the local selection attempt on a remotely-locked shape to be dropped silently, write count grew from %d to %d", writesBefore, got)
	}
}
