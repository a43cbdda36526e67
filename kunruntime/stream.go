package kunruntime

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"
)

// StreamContext is a native streaming session: values are pushed one tick
// at a time and the module's running state lives inside the engine.
//
// A typical tick is one Push per input, one Run, then Read per output.
// Slices returned by Read point into engine memory and stay valid only until
// the next Push, Run or Close on the same context.
//
// The context keeps its Executor and its Module's Library from being torn
// down natively until it is closed.
type StreamContext struct {
	api    Engine
	handle StreamHandle
	exec   *Executor
	mod    *Module
	stocks int

	mu      sync.Mutex
	handles map[string]BufferHandle
	ticks   uint64
	closed  bool
}

// NewStream opens a streaming session for mod over stocks entities.
//
// Creation fails with ErrStreamCreationFailed when stocks is not positive or
// the engine refuses the session, for example because the module was not
// compiled for streaming or stocks is not a multiple the engine accepts.
func NewStream(exec *Executor, mod *Module, stocks int) (*StreamContext, error) {
	const op = "NewStream"

	if stocks < 1 {
		return nil, &KunError{
			Op:      op,
			Message: fmt.Sprintf("stocks=%d must be positive", stocks),
			Err:     ErrStreamCreationFailed,
		}
	}
	if err := exec.borrow(op); err != nil {
		return nil, err
	}
	if err := mod.borrow(op); err != nil {
		exec.unborrow()
		return nil, err
	}

	h := exec.api.CreateStream(exec.handle, mod.handle, uintptr(stocks))
	if h == nil {
		mod.unborrow()
		exec.unborrow()
		return nil, &KunError{
			Op:      op,
			Name:    mod.name,
			Message: fmt.Sprintf("engine refused a session for %d stocks", stocks),
			Err:     ErrStreamCreationFailed,
		}
	}

	s := &StreamContext{
		api:     exec.api,
		handle:  h,
		exec:    exec,
		mod:     mod,
		stocks:  stocks,
		handles: make(map[string]BufferHandle),
	}

	runtime.SetFinalizer(s, func(s *StreamContext) {
		s.Close()
	})

	return s, nil
}

// NumStocks returns the number of values per tick.
func (s *StreamContext) NumStocks() int {
	return s.stocks
}

// Module returns the module the session runs.
func (s *StreamContext) Module() *Module {
	return s.mod
}

// Ticks returns how many times Run has been called.
func (s *StreamContext) Ticks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

// BufferHandle resolves the engine's handle for a named buffer.
// The first lookup queries the engine; later lookups come from a cache
// held for the life of the context.
func (s *StreamContext) BufferHandle(name string) (BufferHandle, error) {
	if err := validateName("BufferHandle", name); err != nil {
		return invalidBufferHandle, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("BufferHandle"); err != nil {
		return invalidBufferHandle, err
	}
	return s.resolve("BufferHandle", name)
}

// resolve looks name up in the cache, querying the engine on a miss.
// Caller holds s.mu.
func (s *StreamContext) resolve(op, name string) (BufferHandle, error) {
	if h, ok := s.handles[name]; ok {
		return h, nil
	}

	var h BufferHandle
	withName(s.api, name, func(n NameHandle) {
		h = s.api.QueryBufferHandle(s.handle, n)
	})
	if h == invalidBufferHandle {
		return invalidBufferHandle, &KunError{
			Op:      op,
			Name:    name,
			Message: fmt.Sprintf("module %q has no such buffer", s.mod.name),
			Err:     ErrBufferHandleNotFound,
		}
	}

	s.handles[name] = h
	return h, nil
}

// Push hands one tick of values for an input buffer to the engine.
// data must hold exactly NumStocks values; the engine copies them, so data
// may be reused as soon as Push returns. Pushing the same name twice before
// Run replaces the earlier values.
func (s *StreamContext) Push(name string, data []float32) error {
	const op = "Push"

	if err := validateName(op, name); err != nil {
		return err
	}
	if len(data) != s.stocks {
		return &SizeMismatchError{Name: name, Expected: s.stocks, Actual: len(data)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(op); err != nil {
		return err
	}
	h, err := s.resolve(op, name)
	if err != nil {
		return err
	}

	s.api.StreamPushData(s.handle, h, &data[0])
	return nil
}

// Run advances the session by one tick using everything pushed since the
// previous Run.
func (s *StreamContext) Run() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("Run"); err != nil {
		return err
	}

	s.api.StreamRun(s.handle)
	s.ticks++
	return nil
}

// Read returns the engine's current values for a buffer.
//
// The returned slice aliases engine memory. Do not keep it past the next
// Push, Run or Close; use ReadCopy or ReadInto to retain values.
func (s *StreamContext) Read(name string) ([]float32, error) {
	const op = "Read"

	if err := validateName(op, name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(op); err != nil {
		return nil, err
	}
	return s.current(op, name)
}

// current returns a view of the engine buffer for name. Caller holds s.mu.
func (s *StreamContext) current(op, name string) ([]float32, error) {
	h, err := s.resolve(op, name)
	if err != nil {
		return nil, err
	}

	p := s.api.StreamGetCurrentBuffer(s.handle, h)
	if p == nil {
		return nil, &KunError{
			Op:      op,
			Name:    name,
			Message: "engine returned no data for buffer",
			Err:     ErrNullPointer,
		}
	}
	return unsafe.Slice(p, s.stocks), nil
}

// ReadInto copies the current values for name into dst, which must hold
// exactly NumStocks values.
func (s *StreamContext) ReadInto(name string, dst []float32) error {
	const op = "ReadInto"

	if err := validateName(op, name); err != nil {
		return err
	}
	if len(dst) != s.stocks {
		return &SizeMismatchError{Name: name, Expected: s.stocks, Actual: len(dst)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(op); err != nil {
		return err
	}
	view, err := s.current(op, name)
	if err != nil {
		return err
	}
	copy(dst, view)
	return nil
}

// ReadCopy returns a freshly allocated copy of the current values for name.
func (s *StreamContext) ReadCopy(name string) ([]float32, error) {
	out := make([]float32, s.stocks)
	if err := s.ReadInto(name, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Step pushes every input in inputs and then runs one tick.
// Inputs are pushed in no particular order; the first failing push stops
// the step before Run.
func (s *StreamContext) Step(inputs map[string][]float32) error {
	for name, data := range inputs {
		if err := s.Push(name, data); err != nil {
			return err
		}
	}
	return s.Run()
}

// IsClosed reports whether Close has been called.
func (s *StreamContext) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close destroys the session and releases the executor and library it held.
// Views returned by Read become invalid. Safe to call more than once.
func (s *StreamContext) Close() error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.api.DestroyStream(s.handle)
	s.handle = nil
	s.handles = nil
	s.mu.Unlock()

	s.mod.unborrow()
	s.exec.unborrow()

	runtime.SetFinalizer(s, nil)
	return nil
}

func (s *StreamContext) checkOpen(op string) error {
	if s.closed || s.handle == nil {
		return &KunError{Op: op, Message: "stream context is closed", Err: ErrNullPointer}
	}
	return nil
}
