//go:build kunquant && cgo && !stub

// Package kunruntime provides Go bindings to the KunQuant factor runtime.
// This file contains the CGo wrappers for the KunRuntime C API.
//
// Build Requirements:
// - KunQuant built with its C API (libKunRuntime.so / KunRuntime.dll)
// - Header Kun/CApi.h in deps/KunQuant/cpp or on the include path
// - Library in lib/ or on the system library path
//
// Build with:
//
//	CGO_ENABLED=1 go build -tags kunquant
package kunruntime

/*
#cgo CFLAGS: -I${SRCDIR}/../deps/KunQuant/cpp
#cgo LDFLAGS: -L${SRCDIR}/../lib -lKunRuntime
#cgo linux LDFLAGS: -Wl,-rpath,${SRCDIR}/../lib
#cgo darwin LDFLAGS: -Wl,-rpath,${SRCDIR}/../lib

#include <stdlib.h>
#include <stddef.h>

// These must match Kun/CApi.h.
typedef void *KunExecutorHandle;
typedef void *KunLibraryHandle;
typedef void *KunModuleHandle;
typedef void *KunBufferNameMapHandle;
typedef void *KunStreamContextHandle;

extern KunExecutorHandle kunCreateSingleThreadExecutor(void);
extern KunExecutorHandle kunCreateMultiThreadExecutor(int numthreads);
extern void kunDestoryExecutor(KunExecutorHandle ptr);

extern KunLibraryHandle kunLoadLibrary(const char *path_or_name);
extern KunModuleHandle kunGetModuleFromLibrary(KunLibraryHandle lib, const char *name);
extern void kunUnloadLibrary(KunLibraryHandle ptr);

extern KunBufferNameMapHandle kunCreateBufferNameMap(void);
extern void kunDestoryBufferNameMap(KunBufferNameMapHandle ptr);
extern void kunSetBufferNameMap(KunBufferNameMapHandle ptr, const char *name, float *buffer);
extern void kunEraseBufferNameMap(KunBufferNameMapHandle ptr, const char *name);

extern void kunRunGraph(KunExecutorHandle exec, KunModuleHandle m,
                        KunBufferNameMapHandle buffers, size_t num_stocks,
                        size_t total_time, size_t cur_time, size_t length);

extern KunStreamContextHandle kunCreateStream(KunExecutorHandle exec, KunModuleHandle m, size_t num_stocks);
extern size_t kunQueryBufferHandle(KunStreamContextHandle context, const char *name);
extern const float *kunStreamGetCurrentBuffer(KunStreamContextHandle context, size_t handle);
extern void kunStreamPushData(KunStreamContextHandle context, size_t handle, const float *buffer);
extern void kunStreamRun(KunStreamContextHandle context);
extern void kunDestoryStream(KunStreamContextHandle context);
*/
import "C"

import "unsafe"

// cgoEngine calls straight into libKunRuntime.
type cgoEngine struct{}

func newNativeEngine() Engine {
	return cgoEngine{}
}

// backendName identifies the linked engine in logs and CLI output.
const backendName = "KunRuntime (cgo)"

func (cgoEngine) CreateSingleThreadExecutor() ExecutorHandle {
	return ExecutorHandle(unsafe.Pointer(C.kunCreateSingleThreadExecutor()))
}

func (cgoEngine) CreateMultiThreadExecutor(threads int) ExecutorHandle {
	return ExecutorHandle(unsafe.Pointer(C.kunCreateMultiThreadExecutor(C.int(threads))))
}

func (cgoEngine) DestroyExecutor(h ExecutorHandle) {
	C.kunDestoryExecutor(C.KunExecutorHandle(unsafe.Pointer(h)))
}

func (cgoEngine) LoadLibrary(path NameHandle) LibraryHandle {
	return LibraryHandle(unsafe.Pointer(C.kunLoadLibrary((*C.char)(unsafe.Pointer(path)))))
}

func (cgoEngine) GetModule(lib LibraryHandle, name NameHandle) ModuleHandle {
	m := C.kunGetModuleFromLibrary(
		C.KunLibraryHandle(unsafe.Pointer(lib)),
		(*C.char)(unsafe.Pointer(name)),
	)
	return ModuleHandle(unsafe.Pointer(m))
}

func (cgoEngine) UnloadLibrary(h LibraryHandle) {
	C.kunUnloadLibrary(C.KunLibraryHandle(unsafe.Pointer(h)))
}

func (cgoEngine) CreateBufferNameMap() BufferMapHandle {
	return BufferMapHandle(unsafe.Pointer(C.kunCreateBufferNameMap()))
}

func (cgoEngine) DestroyBufferNameMap(h BufferMapHandle) {
	C.kunDestoryBufferNameMap(C.KunBufferNameMapHandle(unsafe.Pointer(h)))
}

// SetBuffer hands the engine a pointer it keeps after the call returns.
// The caller (BufferMap) pins buf for as long as it stays registered.
func (cgoEngine) SetBuffer(m BufferMapHandle, name NameHandle, buf *float32) {
	C.kunSetBufferNameMap(
		C.KunBufferNameMapHandle(unsafe.Pointer(m)),
		(*C.char)(unsafe.Pointer(name)),
		(*C.float)(unsafe.Pointer(buf)),
	)
}

func (cgoEngine) EraseBuffer(m BufferMapHandle, name NameHandle) {
	C.kunEraseBufferNameMap(
		C.KunBufferNameMapHandle(unsafe.Pointer(m)),
		(*C.char)(unsafe.Pointer(name)),
	)
}

func (cgoEngine) RunGraph(exec ExecutorHandle, mod ModuleHandle, buffers BufferMapHandle,
	numStocks, totalTime, curTime, length uintptr) {
	C.kunRunGraph(
		C.KunExecutorHandle(unsafe.Pointer(exec)),
		C.KunModuleHandle(unsafe.Pointer(mod)),
		C.KunBufferNameMapHandle(unsafe.Pointer(buffers)),
		C.size_t(numStocks),
		C.size_t(totalTime),
		C.size_t(curTime),
		C.size_t(length),
	)
}

func (cgoEngine) CreateStream(exec ExecutorHandle, mod ModuleHandle, numStocks uintptr) StreamHandle {
	s := C.kunCreateStream(
		C.KunExecutorHandle(unsafe.Pointer(exec)),
		C.KunModuleHandle(unsafe.Pointer(mod)),
		C.size_t(numStocks),
	)
	return StreamHandle(unsafe.Pointer(s))
}

func (cgoEngine) QueryBufferHandle(s StreamHandle, name NameHandle) BufferHandle {
	h := C.kunQueryBufferHandle(
		C.KunStreamContextHandle(unsafe.Pointer(s)),
		(*C.char)(unsafe.Pointer(name)),
	)
	return BufferHandle(h)
}

func (cgoEngine) StreamGetCurrentBuffer(s StreamHandle, h BufferHandle) *float32 {
	p := C.kunStreamGetCurrentBuffer(C.KunStreamContextHandle(unsafe.Pointer(s)), C.size_t(h))
	return (*float32)(unsafe.Pointer(p))
}

// StreamPushData copies numStocks floats out of buf before returning, so buf
// only has to stay valid for the call.
func (cgoEngine) StreamPushData(s StreamHandle, h BufferHandle, buf *float32) {
	C.kunStreamPushData(
		C.KunStreamContextHandle(unsafe.Pointer(s)),
		C.size_t(h),
		(*C.float)(unsafe.Pointer(buf)),
	)
}

func (cgoEngine) StreamRun(s StreamHandle) {
	C.kunStreamRun(C.KunStreamContextHandle(unsafe.Pointer(s)))
}

func (cgoEngine) DestroyStream(s StreamHandle) {
	C.kunDestoryStream(C.KunStreamContextHandle(unsafe.Pointer(s)))
}

func (cgoEngine) NewName(s string) NameHandle {
	return NameHandle(unsafe.Pointer(C.CString(s)))
}

func (cgoEngine) FreeName(n NameHandle) {
	C.free(unsafe.Pointer(n))
}
