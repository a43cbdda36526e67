// Package kuntest provides an in-process kunruntime.Engine for tests.
//
// The fake engine runs modules written in Go against the same handles,
// name copies and caller buffers the real engine would see, and counts
// every entry-point call so tests can assert what did (or did not) reach
// the native boundary.
//
//	eng := kuntest.New()
//	eng.Register("testdata/simple.so", kuntest.SimpleTest())
//	restore := kunruntime.SetEngine(eng)
//	defer restore()
package kuntest

import (
	"sort"
	"sync"
	"unsafe"

	"go_kunquant/kunruntime"
)

// Module is a factor graph implemented in Go.
type Module struct {
	Name    string
	Inputs  []string
	Outputs []string

	// Streaming marks the module as compiled for stream contexts.
	Streaming bool

	// Compute fills out for one time row. Both maps hold one slice of
	// stocks values per buffer name; missing inputs are absent from in.
	Compute func(in, out map[string][]float32)
}

// Failure selects a creation call the engine should refuse.
type Failure int

const (
	FailExecutor Failure = iota
	FailBufferMap
	FailStream
)

type executor struct {
	threads int
}

type library struct {
	path    string
	modules map[string]*Module
}

type bufferMap struct {
	buffers map[string]*float32
}

type stream struct {
	mod     *Module
	stocks  int
	names   []string
	data    [][]float32
	outputs map[int]bool
	ran     bool
}

// Engine is a kunruntime.Engine backed by Go modules.
type Engine struct {
	mu sync.Mutex

	registry map[string][]Module
	failures map[Failure]bool

	executors map[unsafe.Pointer]*executor
	libraries map[unsafe.Pointer]*library
	maps      map[unsafe.Pointer]*bufferMap
	streams   map[unsafe.Pointer]*stream
	names     map[unsafe.Pointer]string

	calls       map[string]int
	doubleFrees int
	faults      []string
}

// New returns an empty engine. Register libraries before loading them.
func New() *Engine {
	return &Engine{
		registry:  make(map[string][]Module),
		failures:  make(map[Failure]bool),
		executors: make(map[unsafe.Pointer]*executor),
		libraries: make(map[unsafe.Pointer]*library),
		maps:      make(map[unsafe.Pointer]*bufferMap),
		streams:   make(map[unsafe.Pointer]*stream),
		names:     make(map[unsafe.Pointer]string),
		calls:     make(map[string]int),
	}
}

// Register makes LoadLibrary(path) succeed and expose mods.
func (e *Engine) Register(path string, mods ...Module) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registry[path] = append(e.registry[path], mods...)
}

// Fail makes the given creation call return nil until cleared.
func (e *Engine) Fail(f Failure, on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[f] = on
}

// =============================================================================
// Instrumentation
// =============================================================================

// Calls returns how many times the named entry point was called,
// e.g. Calls("QueryBufferHandle").
func (e *Engine) Calls(method string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[method]
}

// TotalCalls returns the number of entry-point calls of any kind.
func (e *Engine) TotalCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		n += c
	}
	return n
}

// ResetCalls zeroes every call counter.
func (e *Engine) ResetCalls() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = make(map[string]int)
}

// Live reports the number of handles of each kind not yet destroyed.
type Live struct {
	Executors  int
	Libraries  int
	BufferMaps int
	Streams    int
	Names      int
}

// Live returns the handles currently allocated.
func (e *Engine) Live() Live {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Live{
		Executors:  len(e.executors),
		Libraries:  len(e.libraries),
		BufferMaps: len(e.maps),
		Streams:    len(e.streams),
		Names:      len(e.names),
	}
}

// DoubleFrees counts destroy calls on handles that were not live.
func (e *Engine) DoubleFrees() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doubleFrees
}

// Faults lists calls the real engine would have crashed or misbehaved on,
// such as running a graph whose buffers were never registered.
func (e *Engine) Faults() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.faults...)
}

func (e *Engine) record(method string) {
	e.calls[method]++
}

func (e *Engine) fault(msg string) {
	e.faults = append(e.faults, msg)
}

// =============================================================================
// Executors
// =============================================================================

func (e *Engine) CreateSingleThreadExecutor() kunruntime.ExecutorHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("CreateSingleThreadExecutor")
	return e.newExecutor(1)
}

func (e *Engine) CreateMultiThreadExecutor(threads int) kunruntime.ExecutorHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("CreateMultiThreadExecutor")
	if threads < 1 {
		return nil
	}
	return e.newExecutor(threads)
}

func (e *Engine) newExecutor(threads int) kunruntime.ExecutorHandle {
	if e.failures[FailExecutor] {
		return nil
	}
	x := &executor{threads: threads}
	p := unsafe.Pointer(x)
	e.executors[p] = x
	return kunruntime.ExecutorHandle(p)
}

func (e *Engine) DestroyExecutor(h kunruntime.ExecutorHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("DestroyExecutor")
	if _, ok := e.executors[unsafe.Pointer(h)]; !ok {
		e.doubleFrees++
		return
	}
	delete(e.executors, unsafe.Pointer(h))
}

// =============================================================================
// Libraries
// =============================================================================

func (e *Engine) LoadLibrary(path kunruntime.NameHandle) kunruntime.LibraryHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("LoadLibrary")

	p, ok := e.lookupName(path)
	if !ok {
		return nil
	}
	mods, ok := e.registry[p]
	if !ok {
		return nil
	}

	lib := &library{path: p, modules: make(map[string]*Module, len(mods))}
	for i := range mods {
		m := mods[i]
		lib.modules[m.Name] = &m
	}
	ptr := unsafe.Pointer(lib)
	e.libraries[ptr] = lib
	return kunruntime.LibraryHandle(ptr)
}

func (e *Engine) GetModule(h kunruntime.LibraryHandle, name kunruntime.NameHandle) kunruntime.ModuleHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("GetModule")

	lib, ok := e.libraries[unsafe.Pointer(h)]
	if !ok {
		e.fault("GetModule on unloaded library")
		return nil
	}
	n, ok := e.lookupName(name)
	if !ok {
		return nil
	}
	m, ok := lib.modules[n]
	if !ok {
		return nil
	}
	return kunruntime.ModuleHandle(unsafe.Pointer(m))
}

func (e *Engine) UnloadLibrary(h kunruntime.LibraryHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("UnloadLibrary")
	if _, ok := e.libraries[unsafe.Pointer(h)]; !ok {
		e.doubleFrees++
		return
	}
	delete(e.libraries, unsafe.Pointer(h))
}

// moduleLoaded reports whether m belongs to a library that is still loaded.
func (e *Engine) moduleLoaded(m *Module) bool {
	for _, lib := range e.libraries {
		for _, lm := range lib.modules {
			if lm == m {
				return true
			}
		}
	}
	return false
}

// =============================================================================
// Buffer name maps
// =============================================================================

func (e *Engine) CreateBufferNameMap() kunruntime.BufferMapHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("CreateBufferNameMap")
	if e.failures[FailBufferMap] {
		return nil
	}
	m := &bufferMap{buffers: make(map[string]*float32)}
	p := unsafe.Pointer(m)
	e.maps[p] = m
	return kunruntime.BufferMapHandle(p)
}

func (e *Engine) DestroyBufferNameMap(h kunruntime.BufferMapHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("DestroyBufferNameMap")
	if _, ok := e.maps[unsafe.Pointer(h)]; !ok {
		e.doubleFrees++
		return
	}
	delete(e.maps, unsafe.Pointer(h))
}

func (e *Engine) SetBuffer(h kunruntime.BufferMapHandle, name kunruntime.NameHandle, buf *float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("SetBuffer")

	m, ok := e.maps[unsafe.Pointer(h)]
	if !ok {
		e.fault("SetBuffer on destroyed map")
		return
	}
	n, ok := e.lookupName(name)
	if !ok {
		e.fault("SetBuffer with freed name")
		return
	}
	m.buffers[n] = buf
}

func (e *Engine) EraseBuffer(h kunruntime.BufferMapHandle, name kunruntime.NameHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("EraseBuffer")

	m, ok := e.maps[unsafe.Pointer(h)]
	if !ok {
		e.fault("EraseBuffer on destroyed map")
		return
	}
	if n, ok := e.lookupName(name); ok {
		delete(m.buffers, n)
	}
}

// =============================================================================
// Batch
// =============================================================================

func (e *Engine) RunGraph(exec kunruntime.ExecutorHandle, mod kunruntime.ModuleHandle,
	buffers kunruntime.BufferMapHandle, numStocks, totalTime, curTime, length uintptr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("RunGraph")

	if _, ok := e.executors[unsafe.Pointer(exec)]; !ok {
		e.fault("RunGraph on destroyed executor")
		return
	}
	m := (*Module)(unsafe.Pointer(mod))
	if !e.moduleLoaded(m) {
		e.fault("RunGraph on module of unloaded library")
		return
	}
	bm, ok := e.maps[unsafe.Pointer(buffers)]
	if !ok {
		e.fault("RunGraph on destroyed buffer map")
		return
	}

	stocks, total, start, n := int(numStocks), int(totalTime), int(curTime), int(length)
	view := func(name string, rows int) ([]float32, bool) {
		p, ok := bm.buffers[name]
		if !ok {
			e.fault("RunGraph: buffer " + name + " not registered")
			return nil, false
		}
		return unsafe.Slice(p, stocks*rows), true
	}

	// Inputs span the whole series; outputs hold only the window.
	inputs := make(map[string][]float32, len(m.Inputs))
	for _, name := range m.Inputs {
		v, ok := view(name, total)
		if !ok {
			return
		}
		inputs[name] = v
	}
	outputs := make(map[string][]float32, len(m.Outputs))
	for _, name := range m.Outputs {
		v, ok := view(name, n)
		if !ok {
			return
		}
		outputs[name] = v
	}

	for t := start; t < start+n; t++ {
		in := make(map[string][]float32, len(inputs))
		out := make(map[string][]float32, len(outputs))
		for name, v := range inputs {
			in[name] = v[t*stocks : (t+1)*stocks]
		}
		row := t - start
		for name, v := range outputs {
			out[name] = v[row*stocks : (row+1)*stocks]
		}
		m.Compute(in, out)
	}
}

// =============================================================================
// Streams
// =============================================================================

func (e *Engine) CreateStream(exec kunruntime.ExecutorHandle, mod kunruntime.ModuleHandle, numStocks uintptr) kunruntime.StreamHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("CreateStream")

	if e.failures[FailStream] {
		return nil
	}
	if _, ok := e.executors[unsafe.Pointer(exec)]; !ok {
		e.fault("CreateStream on destroyed executor")
		return nil
	}
	m := (*Module)(unsafe.Pointer(mod))
	if !m.Streaming || numStocks == 0 || numStocks%kunruntime.StockAlignment != 0 {
		return nil
	}

	s := &stream{mod: m, stocks: int(numStocks), outputs: make(map[int]bool)}
	for _, name := range m.Inputs {
		s.names = append(s.names, name)
		s.data = append(s.data, make([]float32, s.stocks))
	}
	for _, name := range m.Outputs {
		s.outputs[len(s.names)] = true
		s.names = append(s.names, name)
		s.data = append(s.data, make([]float32, s.stocks))
	}

	p := unsafe.Pointer(s)
	e.streams[p] = s
	return kunruntime.StreamHandle(p)
}

func (e *Engine) QueryBufferHandle(h kunruntime.StreamHandle, name kunruntime.NameHandle) kunruntime.BufferHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("QueryBufferHandle")

	notFound := ^kunruntime.BufferHandle(0)
	s, ok := e.streams[unsafe.Pointer(h)]
	if !ok {
		e.fault("QueryBufferHandle on destroyed stream")
		return notFound
	}
	n, ok := e.lookupName(name)
	if !ok {
		return notFound
	}
	for i, sn := range s.names {
		if sn == n {
			return kunruntime.BufferHandle(i)
		}
	}
	return notFound
}

func (e *Engine) StreamGetCurrentBuffer(h kunruntime.StreamHandle, handle kunruntime.BufferHandle) *float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("StreamGetCurrentBuffer")

	s, ok := e.streams[unsafe.Pointer(h)]
	if !ok || int(handle) >= len(s.data) {
		return nil
	}
	if s.outputs[int(handle)] && !s.ran {
		return nil
	}
	return &s.data[handle][0]
}

func (e *Engine) StreamPushData(h kunruntime.StreamHandle, handle kunruntime.BufferHandle, buf *float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("StreamPushData")

	s, ok := e.streams[unsafe.Pointer(h)]
	if !ok {
		e.fault("StreamPushData on destroyed stream")
		return
	}
	if int(handle) >= len(s.data) {
		e.fault("StreamPushData with bad handle")
		return
	}
	copy(s.data[handle], unsafe.Slice(buf, s.stocks))
}

func (e *Engine) StreamRun(h kunruntime.StreamHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("StreamRun")

	s, ok := e.streams[unsafe.Pointer(h)]
	if !ok {
		e.fault("StreamRun on destroyed stream")
		return
	}
	if !e.moduleLoaded(s.mod) {
		e.fault("StreamRun on module of unloaded library")
		return
	}

	in := make(map[string][]float32, len(s.mod.Inputs))
	out := make(map[string][]float32, len(s.mod.Outputs))
	for i, name := range s.names {
		if s.outputs[i] {
			out[name] = s.data[i]
		} else {
			in[name] = s.data[i]
		}
	}
	s.mod.Compute(in, out)
	s.ran = true
}

func (e *Engine) DestroyStream(h kunruntime.StreamHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("DestroyStream")
	if _, ok := e.streams[unsafe.Pointer(h)]; !ok {
		e.doubleFrees++
		return
	}
	delete(e.streams, unsafe.Pointer(h))
}

// =============================================================================
// Names
// =============================================================================

func (e *Engine) NewName(s string) kunruntime.NameHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("NewName")

	b := make([]byte, len(s)+1)
	copy(b, s)
	p := unsafe.Pointer(&b[0])
	e.names[p] = s
	return kunruntime.NameHandle(p)
}

func (e *Engine) FreeName(n kunruntime.NameHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("FreeName")
	if _, ok := e.names[unsafe.Pointer(n)]; !ok {
		e.doubleFrees++
		return
	}
	delete(e.names, unsafe.Pointer(n))
}

func (e *Engine) lookupName(n kunruntime.NameHandle) (string, bool) {
	s, ok := e.names[unsafe.Pointer(n)]
	return s, ok
}

// LiveNames returns the strings of name copies not yet freed, sorted.
func (e *Engine) LiveNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.names))
	for _, s := range e.names {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

var _ kunruntime.Engine = (*Engine)(nil)
