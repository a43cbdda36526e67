// Package kunruntime binds the KunQuant factor runtime (libKunRuntime).
//
// KunQuant compiles factor expressions into shared libraries. This package
// loads those libraries and runs their modules, either over a historical
// window (batch) or one tick at a time (streaming). The numerics all happen
// in the engine; this package owns handle lifetimes and the rules for
// lending Go memory to C.
//
//   - Atoms: WindowParams, ToTimeMajor/FromTimeMajor, ResolveLibraryPath,
//     ValidateLibraryPath, RuntimeConfig
//   - Molecules: Executor, Library/Module, BufferMap, StreamContext, RunBatch
//   - Organism: Runtime
//
// # Building
//
// The cgo binding is compiled with the kunquant build tag:
//
//	CGO_LDFLAGS="-L/path/to/KunQuant/build -lKunRuntime" go build -tags kunquant ./...
//
// Without the tag (or with CGO_ENABLED=0, or the stub tag) a stub engine is
// linked in and every constructor fails with its creation error. BackendInfo
// reports which one is active. The kundebug tag turns on precondition checks
// in RunBatch.
//
// # Batch
//
//	exec, err := kunruntime.NewMultiThreadExecutor(4)
//	lib, err := kunruntime.LoadLibrary("factors/alpha101.so")
//	mod, err := lib.Module("alpha101")
//
//	buffers, err := kunruntime.NewBufferMap()
//	buffers.Set("close", closeData) // time-major, stocks*times values
//	buffers.Set("alpha001", out)    // stocks*length values for the window
//	err = kunruntime.RunBatch(exec, mod, buffers, kunruntime.FullRange(stocks, times))
//
// Buffers are lent, not copied. See BufferMap for the aliasing rules.
//
// # Streaming
//
//	s, err := kunruntime.NewStream(exec, mod, stocks)
//	defer s.Close()
//	s.Push("close", tick)
//	s.Run()
//	view, err := s.Read("alpha001") // valid until the next Push or Run
//
// # Lifetimes
//
// Close on Executor, Library, BufferMap and StreamContext is idempotent, and
// finalizers back up a forgotten Close. A Library or Executor closed while a
// stream still uses it stays loaded natively until that stream is closed.
// Modules do not own anything; once their Library is closed they return
// ErrLibraryClosed.
//
// # Engine
//
// Every native call goes through the Engine interface. SetEngine installs
// another implementation; package kuntest provides an in-process one for
// tests.
package kunruntime
