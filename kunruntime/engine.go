// This file declares the native entry-point table and its handle types.

package kunruntime

import (
	"sync"
	"unsafe"
)

// Opaque native handles. The C API uses void* for all of them; giving each
// resource kind its own type keeps an executor handle from being passed
// where a module handle is expected.
type (
	ExecutorHandle  unsafe.Pointer
	LibraryHandle   unsafe.Pointer
	ModuleHandle    unsafe.Pointer
	BufferMapHandle unsafe.Pointer
	StreamHandle    unsafe.Pointer

	// NameHandle is a NUL-terminated string owned by the engine's allocator.
	// It stays valid until passed to FreeName.
	NameHandle unsafe.Pointer
)

// BufferHandle is the integer the streaming engine uses for a named buffer.
type BufferHandle uintptr

// invalidBufferHandle is returned by QueryBufferHandle for unknown names
// (SIZE_MAX on the C side).
const invalidBufferHandle = ^BufferHandle(0)

// Engine is the native entry-point table. Every method maps one-to-one onto
// a KunRuntime C function and follows its conventions: creators return nil
// on failure and compute calls have no status.
//
// Implementations:
//   - the cgo binding (build tag "kunquant")
//   - a stub that fails every creation (default build)
//   - kuntest.Engine, an in-process test double
type Engine interface {
	CreateSingleThreadExecutor() ExecutorHandle
	CreateMultiThreadExecutor(threads int) ExecutorHandle
	DestroyExecutor(h ExecutorHandle)

	LoadLibrary(path NameHandle) LibraryHandle
	GetModule(lib LibraryHandle, name NameHandle) ModuleHandle
	UnloadLibrary(h LibraryHandle)

	CreateBufferNameMap() BufferMapHandle
	DestroyBufferNameMap(h BufferMapHandle)
	SetBuffer(m BufferMapHandle, name NameHandle, buf *float32)
	EraseBuffer(m BufferMapHandle, name NameHandle)

	RunGraph(exec ExecutorHandle, mod ModuleHandle, buffers BufferMapHandle,
		numStocks, totalTime, curTime, length uintptr)

	CreateStream(exec ExecutorHandle, mod ModuleHandle, numStocks uintptr) StreamHandle
	QueryBufferHandle(s StreamHandle, name NameHandle) BufferHandle
	StreamGetCurrentBuffer(s StreamHandle, h BufferHandle) *float32
	StreamPushData(s StreamHandle, h BufferHandle, buf *float32)
	StreamRun(s StreamHandle)
	DestroyStream(s StreamHandle)

	// NewName copies s into engine-owned memory with a trailing NUL.
	// s has already been checked for embedded NULs.
	NewName(s string) NameHandle
	FreeName(n NameHandle)
}

var (
	engineMu     sync.RWMutex
	activeEngine Engine = newNativeEngine()
)

// SetEngine replaces the engine used by resources created afterwards and
// returns a function restoring the previous one. Resources keep the engine
// they were created with.
//
// This exists for tests and for embedding alternative runtimes:
//
//	restore := kunruntime.SetEngine(kuntest.New())
//	defer restore()
func SetEngine(e Engine) (restore func()) {
	engineMu.Lock()
	prev := activeEngine
	activeEngine = e
	engineMu.Unlock()

	return func() {
		engineMu.Lock()
		activeEngine = prev
		engineMu.Unlock()
	}
}

// currentEngine returns the engine new resources should bind to.
func currentEngine() Engine {
	engineMu.RLock()
	defer engineMu.RUnlock()
	return activeEngine
}

// BackendInfo describes which engine this binary was built against.
func BackendInfo() string {
	return backendName
}
