package storage

import (
	"time"

	"dekarrin/sealdoc/internal/codec"
	"dekarrin/sealdoc/internal/persist"
)

// DefaultLoadTimeout bounds the initial load done by Open when
// Options.LoadTimeout is zero.
const DefaultLoadTimeout = 30 * time.Second

// Access modes an Engine can be opened with.
const (
	ReadWrite = persist.ReadAndWrite
	ReadOnly  = persist.ReadOnly
)

// Options is options to Open.
type Options struct {
	// Mode is ReadOnly or ReadWrite. The zero value is ReadWrite.
	Mode persist.AllowedOperations

	// CreateDirs creates missing parent directories when a new store file is
	// created. Ignored in ReadOnly mode.
	CreateDirs bool

	// Encryption seals the document with a key derived from Key.
	Encryption bool

	// Key is the key material used when Encryption is set. It may be any
	// length greater than zero.
	Key []byte

	// Compression compresses the serialized document before sealing.
	Compression bool

	// Serializer is passed through to the transform pipeline.
	Serializer codec.JSONSerializer

	// LoadTimeout bounds the initial load. Zero means DefaultLoadTimeout.
	LoadTimeout time.Duration

	// Log receives the Engine's log output. The zero value discards it.
	Log LoggingCallbacks
}

// LogFormatter is a string format function that is used in
// LoggingCallbacks.
type LogFormatter func(string, ...interface{})

// LogErrorFormatter is a string format function that is used in
// LoggingCallbacks.
type LogErrorFormatter func(error, string, ...interface{})

// LoggingCallbacks is used to store callbacks that are called when debug,
// trace, error, or warn events occur. Any callback being set to its zero
// value means that this package will produce no output for that event.
//
// Create one with NewLoggingCallbacks().
type LoggingCallbacks struct {

	// Called for very low-level events, such as the size of every write.
	traceCb LogFormatter

	// Called for lifecycle events, such as open, load, and close.
	debugCb LogFormatter

	// Called for events that may indicate a future problem.
	warnCb LogFormatter

	// Called when a background flush fails.
	errorCb LogErrorFormatter
}

// NewLoggingCallbacks accepts a series of format functions for logging and
// returns them packaged together in a LoggingCallbacks object.
//
// Arguments that are set to nil are converted to no-op functions in the
// returned struct.
func NewLoggingCallbacks(traceCb LogFormatter, debugCb LogFormatter, warnCb LogFormatter, errorCb LogErrorFormatter) LoggingCallbacks {
	return LoggingCallbacks{traceCb: traceCb, debugCb: debugCb, warnCb: warnCb, errorCb: errorCb}.withDefaults()
}

func (lc LoggingCallbacks) withDefaults() LoggingCallbacks {
	emptyFunc := func(_ string, _ ...interface{}) {}
	if lc.traceCb == nil {
		lc.traceCb = emptyFunc
	}
	if lc.debugCb == nil {
		lc.debugCb = emptyFunc
	}
	if lc.warnCb == nil {
		lc.warnCb = emptyFunc
	}
	if lc.errorCb == nil {
		lc.errorCb = func(_ error, _ string, _ ...interface{}) {}
	}
	return lc
}
