package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"dekarrin/sealdoc/internal/codec"
	"dekarrin/sealdoc/internal/persist"

	"github.com/google/uuid"
)

// Manager opens Engines and owns the table of paths they hold. No two live
// Engines from the same Manager can have the same file open. A Manager is
// safe for concurrent use; the zero value is not usable, create one with
// NewManager.
type Manager struct {
	registry *persist.Registry

	mu      sync.Mutex
	engines map[*Engine]struct{}
}

// NewManager creates a Manager with nothing open.
func NewManager() *Manager {
	return &Manager{
		registry: persist.NewRegistry(),
		engines:  map[*Engine]struct{}{},
	}
}

var (
	defaultMu      sync.Mutex
	defaultManager *Manager
)

// Default returns the process-wide Manager used by Open and CloseAll,
// creating it on first use.
func Default() *Manager {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultManager == nil {
		defaultManager = NewManager()
	}
	return defaultManager
}

// Open opens path with the default Manager.
func Open(path string, opts Options) (*Engine, error) {
	return Default().Open(path, opts)
}

// CloseAll closes every Engine opened with the default Manager and discards
// it; the next call to Default creates a fresh one.
func CloseAll() error {
	defaultMu.Lock()
	m := defaultManager
	defaultManager = nil
	defaultMu.Unlock()

	if m == nil {
		return nil
	}
	return m.CloseAll()
}

// IsOpen returns whether path is currently held by an Engine from this
// Manager.
func (m *Manager) IsOpen(path string) bool {
	id, err := persist.Identity(path)
	if err != nil {
		return false
	}
	return m.registry.Held(id)
}

// Len returns the number of Engines currently open.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.engines)
}

// CloseAll closes every open Engine and returns all of their errors joined.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	open := make([]*Engine, 0, len(m.engines))
	for e := range m.engines {
		open = append(open, e)
	}
	m.mu.Unlock()

	var errs []error
	for _, e := range open {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open opens the store file at path. The configuration is validated and the
// path is claimed before any file I/O; then the file is opened (and created,
// in ReadWrite mode), loaded, and, in ReadWrite mode, the background flusher
// is started. On error nothing is left open.
func (m *Manager) Open(path string, opts Options) (*Engine, error) {
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("open %s: %w: unknown access mode %v", path, ErrConfig, opts.Mode)
	}
	if opts.Encryption && len(opts.Key) == 0 {
		return nil, fmt.Errorf("open %s: %w: encryption requested without a key", path, ErrConfig)
	}
	log := opts.Log.withDefaults()
	if !opts.Encryption && len(opts.Key) > 0 {
		log.warnCb("key given for %s but encryption is not enabled; ignoring key", path)
	}

	pipeline := codec.Pipeline{
		Serializer:  opts.Serializer,
		Compression: opts.Compression,
	}
	if opts.Encryption {
		sealer, err := codec.NewSealer(opts.Key)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w: %v", path, ErrConfig, err)
		}
		pipeline.Sealer = sealer
	}

	id, err := persist.Identity(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	release, err := m.registry.Acquire(id)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	mode := persist.DocumentMode{AllowedOperations: opts.Mode, CreateDirs: opts.CreateDirs}
	handle, err := persist.OpenFile(path, mode)
	if err != nil {
		release()
		return nil, err
	}

	e := &Engine{
		id:         uuid.NewString()[:8],
		path:       path,
		mode:       opts.Mode,
		log:        log,
		compressed: opts.Compression,
		handle:     handle,
		pipeline:   pipeline,
		encrypted:  pipeline.Encrypted(),
	}
	e.settled = sync.NewCond(&e.mu)
	e.release = func() {
		m.mu.Lock()
		delete(m.engines, e)
		m.mu.Unlock()
		release()
	}

	timeout := opts.LoadTimeout
	if timeout <= 0 {
		timeout = DefaultLoadTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := e.load(ctx); err != nil {
		if ctx.Err() != nil {
			// the read may still be running; the path stays claimed until it
			// returns and the file is closed.
			go e.discard()
		} else {
			e.discard()
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	m.mu.Lock()
	m.engines[e] = struct{}{}
	m.mu.Unlock()

	if opts.Mode == persist.ReadAndWrite {
		e.startFlusher()
	}
	log.debugCb("[%s] opened %s (%s, encryption=%t, compression=%t)", e.id, path, opts.Mode, opts.Encryption, opts.Compression)
	return e, nil
}

// discard closes the handle of an Engine that never finished opening.
func (e *Engine) discard() {
	e.ioMu.Lock()
	e.handle.Close()
	e.ioMu.Unlock()
	e.release()
}
