package store

import (
	"sync"
	"sync/atomic"
)

// Handle is the process-wide lazy accessor for the shared Store.
//
// The first caller of Open performs schema setup; concurrent first callers
// block on the same single-flight initialization and receive the same
// *Store (or the same error). Schema setup never runs twice.
type Handle struct {
	path  string
	once  sync.Once
	st    *Store
	err   error
	ready atomic.Bool
}

// NewHandle creates a handle for the database at path.
// The database is not opened until the first Open call.
func NewHandle(path string) *Handle {
	return &Handle{path: path}
}

// Open returns the shared store, opening it on first use.
// Safe to call concurrently from any goroutine.
func (h *Handle) Open() (*Store, error) {
	h.once.Do(func() {
		h.st, h.err = Open(h.path)
		if h.err == nil {
			h.ready.Store(true)
		}
	})
	return h.st, h.err
}

// Ready reports whether the store has completed initialization.
// Used by the control channel's sync-status response; never blocks.
func (h *Handle) Ready() bool {
	return h.ready.Load()
}

// Close closes the shared store if it was ever opened.
func (h *Handle) Close() error {
	if !h.ready.Load() {
		return nil
	}
	return h.st.Close()
}
