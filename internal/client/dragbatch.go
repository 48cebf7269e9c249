package client

import (
	"sync"
	"time"
)

// dragBatchMaxSize/dragBatchMaxDelay are spec.md §4.7's drag-coalescing
// bounds: "max size 10 and max delay 200 ms."
const (
	dragBatchMaxSize  = 10
	dragBatchMaxDelay = 200 * time.Millisecond
)

// dragBatcher coalesces position/x/y modifyShape intents for a single
// (canvasId, shapeId) pair, flushing whenever it fills up or its delay
// timer fires, whichever comes first. One batcher exists per shape
// currently being dragged; the Bridge discards it once flushed.
type dragBatcher struct {
	maxSize int
	delay   time.Duration
	flush   func([]Intent)

	mu      sync.Mutex
	pending []Intent
	timer   *time.Timer
}

func newDragBatcher(flush func([]Intent)) *dragBatcher {
	return &dragBatcher{maxSize: dragBatchMaxSize, delay: dragBatchMaxDelay, flush: flush}
}

// offer adds intent to the pending batch, flushing immediately if it now
// reaches maxSize, otherwise arming the delay timer if it is not already
// running.
func (b *dragBatcher) offer(intent Intent) {
	b.mu.Lock()
	b.pending = append(b.pending, intent)
	full := len(b.pending) >= b.maxSize
	if full {
		b.stopTimerLocked()
	} else if b.timer == nil {
		b.timer = time.AfterFunc(b.delay, b.flushOnTimer)
	}
	var toFlush []Intent
	if full {
		toFlush = b.pending
		b.pending = nil
	}
	b.mu.Unlock()

	if toFlush != nil {
		b.flush(toFlush)
	}
}

func (b *dragBatcher) flushOnTimer() {
	b.mu.Lock()
	toFlush := b.pending
	b.pending = nil
	b.timer = nil
	b.mu.Unlock()

	if len(toFlush) > 0 {
		b.flush(toFlush)
	}
}

func (b *dragBatcher) stopTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// stop cancels any pending timer and discards pending intents without
// flushing them. The Bridge does not call it.
func (b *dragBatcher) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopTimerLocked()
	b.pending = nil
}
