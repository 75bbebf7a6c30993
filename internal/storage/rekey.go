package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"dekarrin/sealdoc/internal/codec"
	"dekarrin/sealdoc/internal/persist"

	"github.com/google/uuid"
)

// ChangeEncryptionKey re-encrypts the store under a key derived from newKey.
// The current in-memory document is written to a temporary clone under the
// new key, the clone atomically replaces the original file, and the Engine
// continues with the new key. Calling it on an unencrypted Engine turns
// encryption on.
//
// The flusher is paused for the duration. If anything fails before the clone
// replaces the original, the original file and key are left untouched.
func (e *Engine) ChangeEncryptionKey(newKey []byte) error {
	if e.mode == persist.ReadOnly {
		return fmt.Errorf("change key of %s: %w", e.path, ErrReadOnly)
	}
	sealer, err := codec.NewSealer(newKey)
	if err != nil {
		if errors.Is(err, codec.ErrNoKey) {
			return fmt.Errorf("change key of %s: %w: %v", e.path, ErrConfig, err)
		}
		return fmt.Errorf("change key of %s: %w", e.path, err)
	}

	// holding ioMu keeps the flusher between cycles until we are done.
	e.ioMu.Lock()
	defer e.ioMu.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return fmt.Errorf("change key of %s: %w", e.path, ErrClosed)
	}
	doc := e.doc
	wasDirty := e.dirty
	e.dirty = false
	e.mu.Unlock()

	rekeyed := e.pipeline
	rekeyed.Sealer = sealer

	replaced, err := e.replaceWithClone(rekeyed, doc)
	if replaced {
		// the file on disk is now under the new key no matter what happened
		// after the rename.
		e.pipeline = rekeyed
	}

	e.mu.Lock()
	if replaced {
		e.encrypted = true
	}
	if err != nil && !replaced && wasDirty {
		e.dirty = true
	}
	if err == nil {
		e.flushes++
	}
	e.settled.Broadcast()
	e.mu.Unlock()

	if err != nil {
		e.signalFlusher()
		return err
	}
	e.log.debugCb("[%s] changed encryption key of %s", e.id, e.path)
	return nil
}

// replaceWithClone writes doc under p to a temporary file next to the store
// file and renames it over the store file, then reopens the handle. replaced
// reports whether the rename happened. Must be called with ioMu held.
func (e *Engine) replaceWithClone(p codec.Pipeline, doc codec.Document) (replaced bool, err error) {
	data, err := p.Encode(doc)
	if err != nil {
		return false, fmt.Errorf("%w: encode clone of %s: %v", ErrIO, e.path, err)
	}

	mode := persist.DocumentMode{AllowedOperations: persist.ReadAndWrite}
	if info, err := os.Stat(e.path); err == nil {
		mode.Perm = uint32(info.Mode().Perm())
	}

	clonePath := fmt.Sprintf("%s.rekey-%s", e.path, uuid.NewString())
	clone, err := persist.OpenFile(clonePath, mode)
	if err != nil {
		return false, fmt.Errorf("%w: create clone of %s: %v", ErrIO, e.path, err)
	}
	defer func() {
		if !replaced {
			clone.Close()
			os.Remove(clonePath)
		}
	}()

	if err := clone.WriteDurable(data); err != nil {
		return false, fmt.Errorf("%w: write clone of %s: %v", ErrIO, e.path, err)
	}
	if err := clone.Close(); err != nil {
		return false, fmt.Errorf("%w: close clone of %s: %v", ErrIO, e.path, err)
	}

	// the old handle has to go first on platforms that refuse to rename over
	// an open file. If the rename fails it is reopened as it was.
	oldMode := e.handle.Mode()
	if err := e.handle.Close(); err != nil {
		e.log.warnCb("[%s] closing %s before replace: %v", e.id, e.path, err)
	}
	if err := os.Rename(clonePath, e.path); err != nil {
		reopened, reopenErr := persist.OpenFile(e.path, oldMode)
		if reopenErr == nil {
			e.handle = reopened
		}
		return false, errors.Join(
			fmt.Errorf("%w: replace %s with clone: %v", ErrIO, e.path, err),
			reopenErr,
		)
	}
	syncDir(filepath.Dir(e.path))

	reopened, err := persist.OpenFile(e.path, oldMode)
	if err != nil {
		return true, fmt.Errorf("%w: reopen %s after key change: %v", ErrIO, e.path, err)
	}
	e.handle = reopened
	return true, nil
}

// syncDir makes a rename inside dir durable where the platform supports it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}
