package router

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"canvasboard/broker/internal/codec"
	"canvasboard/broker/internal/event"
	"canvasboard/broker/internal/logging"
	"canvasboard/broker/internal/networking"
)

// bandwidthKey is the single bucket key used against a Dispatcher's
// BandwidthRegulator. Each Dispatcher already scopes to one connection, so
// unlike the teacher's Broker (one regulator shared across every client,
// keyed by client ID) there is exactly one bucket to key here.
const bandwidthKey = "conn"

// Writer abstracts the transport a Dispatcher writes frames to.
// *websocket.Conn satisfies it for the TextMessage case; tests supply a
// fake.
type Writer interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// textMessage mirrors gorilla/websocket.TextMessage without importing the
// package here, so this file has no compile-time dependency on gorilla.
const textMessage = 1

// dispatchJob is one outbound batch destined for a single canvas,
// multiplexed over one connection's shared transport (a connection may be
// registered to several canvases at once, each tagged by canvasId on the
// wire per spec.md §6).
type dispatchJob struct {
	canvasID string
	events   []event.Event
}

// Dispatcher is one network connection's outbound half: a bounded FIFO
// queue drained by a single writer goroutine, satisfying C6's "per-sink
// FIFO dispatch." Grounded on the teacher's Client.send buffered channel
// plus the write pump goroutine spawned per connection in serveWS.
type Dispatcher struct {
	writer        Writer
	writeDeadline time.Duration
	logger        *logging.Logger
	queue         chan dispatchJob
	done          chan struct{}
	onDead        func()
	bandwidth     *networking.BandwidthRegulator

	// writeMu serializes every call into writer.WriteMessage: the write
	// pump's batched frames and WriteRaw's out-of-band frames (pong
	// replies) share one transport and gorilla/websocket forbids
	// concurrent writers on the same connection.
	writeMu sync.Mutex
}

// NewDispatcher constructs a Dispatcher bound to one transport. queueLen
// bounds how many pending batches may be outstanding before Enqueue starts
// reporting failure (the teacher's Client.send is similarly bounded at
// 256). onDead is invoked exactly once, from the writer goroutine, when a
// write fails — the caller is expected to tear the connection down and
// unsubscribe every canvas it held. A full queue only makes Enqueue report
// false; it does not invoke onDead.
func NewDispatcher(writer Writer, writeDeadline time.Duration, queueLen int, logger *logging.Logger, onDead func()) *Dispatcher {
	if queueLen <= 0 {
		queueLen = 256
	}
	d := &Dispatcher{
		writer:        writer,
		writeDeadline: writeDeadline,
		logger:        logger,
		queue:         make(chan dispatchJob, queueLen),
		done:          make(chan struct{}),
		onDead:        onDead,
	}
	go d.writePump()
	return d
}

// enqueue is a non-blocking send into the FIFO queue.
func (d *Dispatcher) enqueue(canvasID string, events []event.Event) bool {
	select {
	case d.queue <- dispatchJob{canvasID: canvasID, events: events}:
		return true
	default:
		return false
	}
}

// Close stops the writer goroutine and closes the transport. Safe to call
// more than once.
func (d *Dispatcher) Close() {
	select {
	case <-d.done:
		return
	default:
		close(d.done)
	}
	_ = d.writer.Close()
}

// WithBandwidth attaches a per-connection token-bucket regulator: a batch
// exceeding the remaining budget is dropped (logged, not fatal) rather
// than written, mirroring the teacher's publishWorldSnapshot skipping a
// client whose bandwidth.Allow call fails instead of closing it.
func (d *Dispatcher) WithBandwidth(regulator *networking.BandwidthRegulator) *Dispatcher {
	d.bandwidth = regulator
	return d
}

// ForCanvas returns a hub.Sink that tags every enqueued batch with
// canvasID and multiplexes it onto this connection's shared queue.
func (d *Dispatcher) ForCanvas(canvasID string) *CanvasSink {
	return &CanvasSink{dispatcher: d, canvasID: canvasID}
}

func (d *Dispatcher) writePump() {
	for {
		select {
		case <-d.done:
			return
		case job, ok := <-d.queue:
			if !ok {
				return
			}
			if err := d.write(job); err != nil {
				if d.logger != nil {
					d.logger.Debug("dispatcher write failed", logging.String("canvas", job.canvasID), logging.Error(err))
				}
				d.Close()
				if d.onDead != nil {
					d.onDead()
				}
				return
			}
		}
	}
}

func (d *Dispatcher) write(job dispatchJob) error {
	wireEvents := make([]codec.WireEvent, 0, len(job.events))
	for _, e := range job.events {
		we, err := codec.EncodeEvent(e, false)
		if err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		wireEvents = append(wireEvents, we)
	}
	batch := codec.OutboundBatch{CanvasID: job.canvasID, EventsForCanvas: wireEvents}
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}
	if d.bandwidth != nil && !d.bandwidth.Allow(bandwidthKey, len(payload)) {
		if d.logger != nil {
			d.logger.Debug("dropping batch over bandwidth budget", logging.String("canvas", job.canvasID), logging.Int("bytes", len(payload)))
		}
		return nil
	}
	return d.rawWrite(payload)
}

// WriteRaw writes an out-of-band frame (a pong reply) directly to the
// transport, serialized against the write pump's batched writes via the
// same mutex so the two never race on the underlying connection.
func (d *Dispatcher) WriteRaw(payload []byte) error {
	return d.rawWrite(payload)
}

func (d *Dispatcher) rawWrite(payload []byte) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	if d.writeDeadline > 0 {
		if err := d.writer.SetWriteDeadline(time.Now().Add(d.writeDeadline)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	return d.writer.WriteMessage(textMessage, payload)
}

// CanvasSink adapts one canvas subscription on a shared Dispatcher to
// hub.Sink. Close tears down the entire connection (every other canvas
// subscription on it included), matching the teacher's one-bad-write
// closes the whole client connection behavior.
type CanvasSink struct {
	dispatcher *Dispatcher
	canvasID   string
}

// Enqueue implements hub.Sink.
func (s *CanvasSink) Enqueue(events []event.Event) bool {
	return s.dispatcher.enqueue(s.canvasID, events)
}

// Close implements hub.Sink.
func (s *CanvasSink) Close() {
	s.dispatcher.Close()
}
