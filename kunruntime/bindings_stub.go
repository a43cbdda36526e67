//go:build !kunquant || !cgo || stub

// Stub engine for builds without libKunRuntime.
// Build with: go build            (default)
// Or force it with: go build -tags stub
//
// Every creator reports failure, so constructors return their typed
// creation errors. Tests install kuntest.Engine instead.

package kunruntime

// stubEngine is the Engine used when the native library is not linked.
type stubEngine struct{}

func newNativeEngine() Engine {
	return stubEngine{}
}

// backendName identifies the linked engine in logs and CLI output.
const backendName = "stub (no KunRuntime library linked)"

func (stubEngine) CreateSingleThreadExecutor() ExecutorHandle   { return nil }
func (stubEngine) CreateMultiThreadExecutor(int) ExecutorHandle { return nil }
func (stubEngine) DestroyExecutor(ExecutorHandle)               {}

func (stubEngine) LoadLibrary(NameHandle) LibraryHandle             { return nil }
func (stubEngine) GetModule(LibraryHandle, NameHandle) ModuleHandle { return nil }
func (stubEngine) UnloadLibrary(LibraryHandle)                      {}

func (stubEngine) CreateBufferNameMap() BufferMapHandle            { return nil }
func (stubEngine) DestroyBufferNameMap(BufferMapHandle)            {}
func (stubEngine) SetBuffer(BufferMapHandle, NameHandle, *float32) {}
func (stubEngine) EraseBuffer(BufferMapHandle, NameHandle)         {}

func (stubEngine) RunGraph(ExecutorHandle, ModuleHandle, BufferMapHandle, uintptr, uintptr, uintptr, uintptr) {
}

func (stubEngine) CreateStream(ExecutorHandle, ModuleHandle, uintptr) StreamHandle {
	return nil
}

func (stubEngine) QueryBufferHandle(StreamHandle, NameHandle) BufferHandle {
	return invalidBufferHandle
}

func (stubEngine) StreamGetCurrentBuffer(StreamHandle, BufferHandle) *float32 {
	return nil
}

func (stubEngine) StreamPushData(StreamHandle, BufferHandle, *float32) {}
func (stubEngine) StreamRun(StreamHandle)                              {}
func (stubEngine) DestroyStream(StreamHandle)                          {}

func (stubEngine) NewName(string) NameHandle { return nil }
func (stubEngine) FreeName(NameHandle)       {}
