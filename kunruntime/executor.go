package kunruntime

import (
	"runtime"
)

// Executor owns a native worker pool.
//
// An Executor is safe for concurrent use: batch runs and streams on
// different goroutines may share one. Close destroys the pool exactly once;
// if streams or batch runs still hold it, destruction waits for the last one.
type Executor struct {
	api     Engine
	handle  ExecutorHandle
	threads int
	multi   bool
	life    *lifetime
}

// NewSingleThreadExecutor creates an executor that runs on the calling thread.
func NewSingleThreadExecutor() (*Executor, error) {
	api := currentEngine()
	return newExecutor(api, api.CreateSingleThreadExecutor(), 1, false, "NewSingleThreadExecutor")
}

// NewMultiThreadExecutor creates an executor backed by threads workers.
// The thread count is passed through; the engine rejects values below 1.
func NewMultiThreadExecutor(threads int) (*Executor, error) {
	api := currentEngine()
	return newExecutor(api, api.CreateMultiThreadExecutor(threads), threads, true, "NewMultiThreadExecutor")
}

func newExecutor(api Engine, h ExecutorHandle, threads int, multi bool, op string) (*Executor, error) {
	if h == nil {
		return nil, &KunError{
			Op:      op,
			Message: "engine returned a null executor",
			Err:     ErrExecutorCreationFailed,
		}
	}

	e := &Executor{api: api, handle: h, threads: threads, multi: multi}
	e.life = newLifetime(func() { api.DestroyExecutor(h) })

	// Set finalizer for automatic cleanup if Close() isn't called
	runtime.SetFinalizer(e, func(e *Executor) {
		e.Close()
	})

	return e, nil
}

// Threads returns the number of worker threads requested at creation.
func (e *Executor) Threads() int {
	return e.threads
}

// IsMultiThreaded reports whether the executor was built with a worker pool.
func (e *Executor) IsMultiThreaded() bool {
	return e.multi
}

// Close releases the executor. It is safe to call more than once.
func (e *Executor) Close() error {
	if e == nil {
		return nil
	}
	if e.life.close() {
		runtime.SetFinalizer(e, nil)
	}
	return nil
}

// borrow takes a reference for a native call or a dependent stream.
func (e *Executor) borrow(op string) error {
	if e == nil {
		return &KunError{Op: op, Message: "executor is nil", Err: ErrNullPointer}
	}
	if !e.life.acquire() {
		return &KunError{Op: op, Message: "executor is closed", Err: ErrClosed}
	}
	return nil
}

func (e *Executor) unborrow() {
	e.life.drop()
}
