package kunruntime

import (
	"runtime"
	"sort"
	"sync"
)

// BufferMap associates buffer names with caller-owned float32 slices for a
// batch run. It never copies the numbers: the engine reads inputs from and
// writes outputs into the registered slices directly.
//
// Aliasing contract. While a slice is registered, and for the whole of any
// RunBatch call using the map:
//   - the slice must stay alive (the map keeps a reference and pins it, so
//     the Go runtime will not move or collect it);
//   - nothing else may write to it (outputs are overwritten in place);
//   - it must be long enough for the window the engine is asked to compute,
//     Stocks*TotalTime values. This is not checked except in kundebug builds.
//
// A BufferMap is not meant for concurrent mutation. Its methods are
// serialized internally, but callers sharing one map between goroutines
// still race on which slices the engine sees.
type BufferMap struct {
	api    Engine
	handle BufferMapHandle

	mu      sync.RWMutex
	entries map[string]*bufferEntry
	closed  bool
}

// bufferEntry is one registered slice and the engine-owned copy of its name.
type bufferEntry struct {
	name   NameHandle
	data   []float32
	pinner runtime.Pinner
}

func (b *bufferEntry) release(api Engine) {
	b.pinner.Unpin()
	api.FreeName(b.name)
	b.data = nil
}

// NewBufferMap creates an empty buffer map.
func NewBufferMap() (*BufferMap, error) {
	api := currentEngine()

	h := api.CreateBufferNameMap()
	if h == nil {
		return nil, &KunError{
			Op:      "NewBufferMap",
			Message: "engine returned a null buffer map",
			Err:     ErrBufferMapCreationFailed,
		}
	}

	m := &BufferMap{
		api:     api,
		handle:  h,
		entries: make(map[string]*bufferEntry),
	}

	runtime.SetFinalizer(m, func(m *BufferMap) {
		m.Close()
	})

	return m, nil
}

// MustNewBufferMap is NewBufferMap for setup code that cannot continue
// without one. It panics if the engine fails to allocate the map; prefer
// NewBufferMap everywhere else.
func MustNewBufferMap() *BufferMap {
	m, err := NewBufferMap()
	if err != nil {
		panic(err)
	}
	return m
}

// Set registers buf under name, replacing any previous registration.
// Names containing NUL bytes are rejected before reaching the engine.
func (m *BufferMap) Set(name string, buf []float32) error {
	if err := validateName("BufferMap.Set", name); err != nil {
		return err
	}
	if len(buf) == 0 {
		return &KunError{Op: "BufferMap.Set", Name: name, Err: ErrEmptyBuffer}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return &KunError{Op: "BufferMap.Set", Name: name, Message: "buffer map is closed", Err: ErrClosed}
	}

	entry := &bufferEntry{
		name: m.api.NewName(name),
		data: buf,
	}
	entry.pinner.Pin(&buf[0])

	m.api.SetBuffer(m.handle, entry.name, &buf[0])

	// The engine now points at the new name and slice; the old ones can go.
	if prev, ok := m.entries[name]; ok {
		prev.release(m.api)
	}
	m.entries[name] = entry

	return nil
}

// Erase removes the registration for name. Unknown names are ignored.
func (m *BufferMap) Erase(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	entry, ok := m.entries[name]
	if !ok {
		return
	}

	m.api.EraseBuffer(m.handle, entry.name)
	entry.release(m.api)
	delete(m.entries, name)
}

// Has reports whether name is registered.
func (m *BufferMap) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[name]
	return ok
}

// Len returns the number of registered buffers.
func (m *BufferMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Names returns the registered names in sorted order.
func (m *BufferMap) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Buffer returns the slice registered under name.
func (m *BufferMap) Buffer(name string) ([]float32, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[name]
	if !ok {
		return nil, false
	}
	return entry.data, true
}

// IsClosed reports whether Close has been called.
func (m *BufferMap) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// Close destroys the native map, unpins every slice and frees the name
// copies. Caller memory is left alone. Safe to call more than once.
func (m *BufferMap) Close() error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	m.api.DestroyBufferNameMap(m.handle)
	for name, entry := range m.entries {
		entry.release(m.api)
		delete(m.entries, name)
	}
	m.handle = nil

	runtime.SetFinalizer(m, nil)
	return nil
}
