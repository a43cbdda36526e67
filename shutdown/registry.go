package shutdown

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"go_kunquant/core"
)

// Priorities for the resources a factor run holds. Lower runs first, so
// value writers flush before streams close and the library is unloaded
// only after every stream and buffer map referencing it is gone.
const (
	PriorityWriters  = 10
	PriorityStreams  = 20
	PriorityRuntime  = 30
	PriorityDatabase = 40
	PriorityFiles    = 45
	PriorityLogger   = 50
)

type registryEntry struct {
	name     string
	fn       core.ShutdownFunc
	priority int
	seq      int
}

// Registry holds the cleanup functions run during shutdown. Entries with
// equal priority run in reverse registration order, like deferred calls.
//
//	reg := NewRegistry()
//	reg.Register("runtime", PriorityRuntime, func(ctx context.Context) error {
//	    return rt.Close()
//	})
//	err := reg.Shutdown(ctx)
type Registry struct {
	mu      sync.Mutex
	entries []registryEntry
	seq     int
	closed  bool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds fn under name. Registration after Shutdown is ignored.
func (r *Registry) Register(name string, priority int, fn core.ShutdownFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || fn == nil {
		return
	}
	r.seq++
	r.entries = append(r.entries, registryEntry{name: name, fn: fn, priority: priority, seq: r.seq})
}

// RegisterCloser registers c.Close. Closers ignore the shutdown context.
func (r *Registry) RegisterCloser(name string, priority int, c io.Closer) {
	if c == nil {
		return
	}
	r.Register(name, priority, func(context.Context) error {
		return c.Close()
	})
}

// Shutdown runs every entry in order and joins their errors, each wrapped
// with its entry's name. All entries run even when some fail. Only the
// first call does anything.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	ordered := r.orderedLocked()
	r.mu.Unlock()

	var errs []error
	for _, e := range ordered {
		if err := e.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
		}
	}
	return errors.Join(errs...)
}

// Names returns entry names in execution order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ordered := r.orderedLocked()
	names := make([]string, len(ordered))
	for i, e := range ordered {
		names[i] = e.name
	}
	return names
}

// Count returns the number of registered entries.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// IsClosed reports whether Shutdown has been called.
func (r *Registry) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Registry) orderedLocked() []registryEntry {
	ordered := make([]registryEntry, len(r.entries))
	copy(ordered, r.entries)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].priority != ordered[j].priority {
			return ordered[i].priority < ordered[j].priority
		}
		return ordered[i].seq > ordered[j].seq
	})
	return ordered
}
