// Package storage is a write-behind store for a single document. An Engine
// keeps the document in memory and hands persistence to a background flusher,
// so Write never waits on serialization, encryption, or disk I/O; Read always
// returns the in-memory copy.
//
// Engines are opened through a Manager, which owns the table of open paths
// and refuses to open the same file twice. Open and CloseAll use a
// process-wide default Manager that is created on first use.
//
// Failures of the background flusher are never dropped: they are returned by
// the next call to Write, Sync, or Close, and can be checked at any time with
// Err.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dekarrin/sealdoc/internal/codec"
	"dekarrin/sealdoc/internal/persist"
)

// Storage is the shape a host document database expects from its storage
// layer.
type Storage interface {
	// Read returns the current document, or nil if there is none.
	Read() codec.Document

	// Write replaces the current document.
	Write(doc codec.Document) error

	// Close releases the storage after persisting pending writes.
	Close() error
}

var _ Storage = (*Engine)(nil)

// Status is a snapshot of an Engine's state.
type Status struct {
	ID          string
	Path        string
	Mode        persist.AllowedOperations
	Encrypted   bool
	Compressed  bool
	Dirty       bool
	Flushing    bool
	Closed      bool
	Flushes     int
	LastFlush   time.Time
	PendingErr  error
	HasDocument bool
}

// Engine is an open store. It is safe for concurrent use, except that Close
// must not race with other calls made without synchronization by the caller.
type Engine struct {
	id      string
	path    string
	mode    persist.AllowedOperations
	log     LoggingCallbacks
	release func()

	// compression is fixed for the life of the Engine.
	compressed bool

	// ioMu serializes all use of handle and pipeline. The flusher holds it for
	// a whole cycle, from taking the snapshot through the durable write.
	ioMu     sync.Mutex
	handle   persist.Document
	pipeline codec.Pipeline

	mu        sync.Mutex
	settled   *sync.Cond // broadcast whenever dirty or flushing change
	encrypted bool       // mirrors pipeline.Encrypted() for Status
	doc       codec.Document
	dirty     bool
	flushing  bool
	closed    bool
	flushErr  error
	flushes   int
	lastFlush time.Time

	// nil in ReadOnly mode.
	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// Path returns the path the Engine was opened with.
func (e *Engine) Path() string {
	return e.path
}

// Mode returns the access mode the Engine was opened with.
func (e *Engine) Mode() persist.AllowedOperations {
	return e.mode
}

// Read returns a copy of the in-memory document. It never blocks on I/O and
// reflects the most recent Write or Load, which may not be on disk yet.
func (e *Engine) Read() codec.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.Clone()
}

// Write replaces the in-memory document with a copy of doc and schedules it to
// be persisted. It returns without waiting for the disk. Writing a nil doc
// empties the file.
//
// If a background flush failed since the last call that reported one, Write
// still accepts doc and then returns that failure.
func (e *Engine) Write(doc codec.Document) error {
	if e.mode == persist.ReadOnly {
		return fmt.Errorf("write %s: %w", e.path, ErrReadOnly)
	}
	c := doc.Clone()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return fmt.Errorf("write %s: %w", e.path, ErrClosed)
	}
	e.doc = c
	e.dirty = true
	pending := e.flushErr
	e.flushErr = nil
	e.mu.Unlock()

	e.signalFlusher()
	return pending
}

// Load synchronously reads the file and replaces the in-memory document with
// its contents. Unpersisted writes are discarded. It is used when the file is
// suspected to have been changed from outside.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return fmt.Errorf("load %s: %w", e.path, ErrClosed)
	}
	return e.load(ctx)
}

func (e *Engine) load(ctx context.Context) error {
	type result struct {
		doc codec.Document
		n   int
		err error
	}
	resCh := make(chan result, 1)

	go func() {
		e.ioMu.Lock()
		defer e.ioMu.Unlock()

		if err := ctx.Err(); err != nil {
			resCh <- result{err: fmt.Errorf("%w: load %s: %v", ErrIO, e.path, err)}
			return
		}
		data, err := e.handle.ReadAll()
		if err != nil {
			resCh <- result{err: fmt.Errorf("%w: read %s: %v", ErrIO, e.path, err)}
			return
		}
		doc, err := e.pipeline.Decode(data)
		if err != nil {
			resCh <- result{err: fmt.Errorf("decode %s: %w", e.path, err)}
			return
		}

		// swapped while still holding ioMu so that no flush cycle can slip in
		// between the read and the replace. A caller that already gave up on
		// the load may have written since, so an expired ctx leaves the
		// document alone.
		e.mu.Lock()
		if err := ctx.Err(); err != nil {
			e.mu.Unlock()
			resCh <- result{err: fmt.Errorf("%w: load %s: %v", ErrIO, e.path, err)}
			return
		}
		e.doc = doc
		e.dirty = false
		e.settled.Broadcast()
		e.mu.Unlock()

		resCh <- result{doc: doc, n: len(data)}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: load %s: %v", ErrIO, e.path, ctx.Err())
	case res := <-resCh:
		if res.err != nil {
			return res.err
		}
		if res.doc == nil {
			e.log.debugCb("[%s] loaded %s: no document", e.id, e.path)
		} else {
			e.log.debugCb("[%s] loaded %s: %d bytes, %d top-level keys", e.id, e.path, res.n, len(res.doc))
		}
		return nil
	}
}

// Sync blocks until every write made before the call has been persisted or
// has failed, or until ctx is done. It returns the pending flusher failure, if
// any, without clearing it.
func (e *Engine) Sync(ctx context.Context) error {
	if e.mode == persist.ReadOnly {
		return nil
	}

	stopWaking := context.AfterFunc(ctx, func() {
		e.mu.Lock()
		e.settled.Broadcast()
		e.mu.Unlock()
	})
	defer stopWaking()

	e.mu.Lock()
	defer e.mu.Unlock()
	for (e.dirty || e.flushing) && !e.closed && ctx.Err() == nil {
		e.settled.Wait()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.flushErr
}

// Err returns the failure of the most recent background flush that has not
// yet been reported by Write or Close. It does not clear it.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushErr
}

// Status returns a snapshot of the Engine's state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		ID:          e.id,
		Path:        e.path,
		Mode:        e.mode,
		Encrypted:   e.encrypted,
		Compressed:  e.compressed,
		Dirty:       e.dirty,
		Flushing:    e.flushing,
		Closed:      e.closed,
		Flushes:     e.flushes,
		LastFlush:   e.lastFlush,
		PendingErr:  e.flushErr,
		HasDocument: e.doc != nil,
	}
}

// Close waits for the last write to be persisted, stops the flusher, closes
// the file, and releases the path so it can be opened again. It returns any
// flusher failure not yet reported.
//
// Every call to Close after the first has no effect and returns nil.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	for e.dirty {
		e.settled.Wait()
	}
	e.closed = true
	e.mu.Unlock()

	if e.stop != nil {
		close(e.stop)
		<-e.done
	}

	e.ioMu.Lock()
	closeErr := e.handle.Close()
	e.ioMu.Unlock()
	e.release()

	e.mu.Lock()
	flushErr := e.flushErr
	e.flushErr = nil
	flushes := e.flushes
	e.settled.Broadcast()
	e.mu.Unlock()

	e.log.debugCb("[%s] closed %s after %d flushes", e.id, e.path, flushes)

	if closeErr != nil {
		closeErr = fmt.Errorf("%w: close %s: %v", ErrIO, e.path, closeErr)
	}
	return errors.Join(flushErr, closeErr)
}
