package storage

import (
	"fmt"
	"time"
)

func (e *Engine) startFlusher() {
	e.wake = make(chan struct{}, 1)
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	go e.runFlusher()
}

// signalFlusher wakes the flusher without blocking. One pending wake-up is
// enough since a cycle always picks up the latest document.
func (e *Engine) signalFlusher() {
	if e.wake == nil {
		return
	}
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// runFlusher is the only writer of the file while the Engine is open. It
// sleeps until woken by a write or told to stop, and on stop performs one
// last drain before exiting.
func (e *Engine) runFlusher() {
	defer close(e.done)
	e.log.traceCb("[%s] flusher started", e.id)

	for {
		select {
		case <-e.wake:
			for e.flushOnce() {
			}
		case <-e.stop:
			for e.flushOnce() {
			}
			e.log.traceCb("[%s] flusher stopped", e.id)
			return
		}
	}
}

// flushOnce persists the current document if it is dirty and returns whether
// it did anything. The dirty flag is cleared before encoding, so a Write that
// lands during the encode raises it again and is picked up by the next cycle.
func (e *Engine) flushOnce() bool {
	e.ioMu.Lock()
	defer e.ioMu.Unlock()

	e.mu.Lock()
	if !e.dirty {
		e.mu.Unlock()
		return false
	}
	doc := e.doc
	e.dirty = false
	e.flushing = true
	e.mu.Unlock()

	// doc is never mutated after Write stores it; only replaced.
	data, err := e.pipeline.Encode(doc)
	if err != nil {
		err = fmt.Errorf("%w: encode %s: %v", ErrIO, e.path, err)
	} else if err = e.handle.WriteDurable(data); err != nil {
		err = fmt.Errorf("%w: write %s: %v", ErrIO, e.path, err)
	}

	e.mu.Lock()
	e.flushing = false
	if err != nil {
		e.flushErr = err
	} else {
		e.flushes++
		e.lastFlush = time.Now()
	}
	e.settled.Broadcast()
	e.mu.Unlock()

	if err != nil {
		e.log.errorCb(err, "[%s] background flush failed: %v", e.id, err)
	} else {
		e.log.traceCb("[%s] flushed %d bytes to %s", e.id, len(data), e.path)
	}
	return true
}
