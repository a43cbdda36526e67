package kunruntime

import (
	"errors"
	"fmt"
	"sync"
)

// Runtime pairs one Executor with one Library, which is how most programs
// use the engine. It tracks the streams and buffer maps it hands out and
// closes them before the library and executor.
type Runtime struct {
	exec *Executor
	lib  *Library

	mu      sync.Mutex
	streams []*StreamContext
	maps    []*BufferMap
	closed  bool
}

// OpenRuntime creates the executor and loads the library described by cfg.
func OpenRuntime(cfg RuntimeConfig) (*Runtime, error) {
	path := cfg.ResolvedPath()
	if cfg.ValidateHeader {
		if err := ValidateLibraryPath(path); err != nil {
			return nil, &KunError{Op: "OpenRuntime", Path: path, Message: err.Error(), Err: ErrLibraryLoadFailed}
		}
	}

	var (
		exec *Executor
		err  error
	)
	if cfg.Threads > 1 {
		exec, err = NewMultiThreadExecutor(cfg.Threads)
	} else {
		exec, err = NewSingleThreadExecutor()
	}
	if err != nil {
		return nil, err
	}

	lib, err := LoadLibrary(path)
	if err != nil {
		exec.Close()
		return nil, err
	}

	return &Runtime{exec: exec, lib: lib}, nil
}

// Executor returns the runtime's executor.
func (r *Runtime) Executor() *Executor {
	return r.exec
}

// Library returns the runtime's library.
func (r *Runtime) Library() *Library {
	return r.lib
}

// Module looks up a module in the runtime's library.
func (r *Runtime) Module(name string) (*Module, error) {
	return r.lib.Module(name)
}

// NewBufferMap creates a buffer map closed together with the runtime.
func (r *Runtime) NewBufferMap() (*BufferMap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, &KunError{Op: "Runtime.NewBufferMap", Err: ErrClosed}
	}
	m, err := NewBufferMap()
	if err != nil {
		return nil, err
	}
	r.maps = append(pruneClosed(r.maps), m)
	return m, nil
}

// RunBatch runs the named module over buffers.
func (r *Runtime) RunBatch(module string, buffers *BufferMap, params WindowParams) error {
	mod, err := r.lib.Module(module)
	if err != nil {
		return err
	}
	return RunBatch(r.exec, mod, buffers, params)
}

// NewStream opens a streaming session on the named module.
func (r *Runtime) NewStream(module string, stocks int) (*StreamContext, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, &KunError{Op: "Runtime.NewStream", Name: module, Err: ErrClosed}
	}
	mod, err := r.lib.Module(module)
	if err != nil {
		return nil, err
	}
	s, err := NewStream(r.exec, mod, stocks)
	if err != nil {
		return nil, err
	}
	r.streams = append(pruneClosed(r.streams), s)
	return s, nil
}

// Close closes streams, then buffer maps, then the library, then the
// executor. Safe to call more than once.
func (r *Runtime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	streams, maps := r.streams, r.maps
	r.streams, r.maps = nil, nil
	r.mu.Unlock()

	var errs []error
	for _, s := range pruneClosed(streams) {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close stream: %w", err))
		}
	}
	for _, m := range pruneClosed(maps) {
		if err := m.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close buffer map: %w", err))
		}
	}
	if err := r.lib.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close library: %w", err))
	}
	if err := r.exec.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close executor: %w", err))
	}
	return errors.Join(errs...)
}

// pruneClosed drops entries the caller already closed, reusing items.
func pruneClosed[T interface{ IsClosed() bool }](items []T) []T {
	kept := items[:0]
	for _, it := range items {
		if !it.IsClosed() {
			kept = append(kept, it)
		}
	}
	clear(items[len(kept):])
	return kept
}
