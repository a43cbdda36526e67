package kunruntime

import (
	"errors"
	"fmt"
)

// KunError represents a failure at the native boundary.
// It records the operation that failed and the name or path it was
// operating on, and wraps one of the sentinel errors below.
type KunError struct {
	Op      string // Operation that failed (e.g., "LoadLibrary", "Push")
	Name    string // Module or buffer name involved, if any
	Path    string // Library path involved, if any
	Message string // Human-readable detail
	Err     error  // Wrapped sentinel error
}

// Error implements the error interface.
func (e *KunError) Error() string {
	msg := fmt.Sprintf("kunruntime %s", e.Op)
	if e.Name != "" {
		msg += fmt.Sprintf(" %q", e.Name)
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" [%s]", e.Path)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the wrapped sentinel so errors.Is works.
func (e *KunError) Unwrap() error {
	return e.Err
}

// SizeMismatchError reports a pushed or registered buffer whose length does
// not match what the stream or window requires.
type SizeMismatchError struct {
	Name     string
	Expected int
	Actual   int
}

// Error implements the error interface.
func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("kunruntime: buffer size mismatch for %q: expected %d, got %d",
		e.Name, e.Expected, e.Actual)
}

// Unwrap lets errors.Is(err, ErrBufferSizeMismatch) match.
func (e *SizeMismatchError) Unwrap() error {
	return ErrBufferSizeMismatch
}

// Sentinel errors for native-boundary failures.
// Use errors.Is() to check for them.
var (
	// Creation failures
	ErrExecutorCreationFailed  = errors.New("failed to create executor")
	ErrLibraryLoadFailed       = errors.New("failed to load library")
	ErrBufferMapCreationFailed = errors.New("failed to create buffer name map")
	ErrStreamCreationFailed    = errors.New("failed to create stream context")

	// Lookups
	ErrModuleNotFound       = errors.New("module not found")
	ErrBufferHandleNotFound = errors.New("buffer handle not found")

	// Validation
	ErrInvalidName        = errors.New("invalid buffer name")
	ErrBufferSizeMismatch = errors.New("buffer size mismatch")
	ErrEmptyBuffer        = errors.New("buffer is empty")
	ErrInvalidWindow      = errors.New("invalid batch window")
	ErrInvalidStockCount  = errors.New("invalid number of stocks, must be a multiple of 8")

	// String encoding
	ErrInvalidText = errors.New("string is not valid UTF-8")

	// Lifetime
	ErrNullPointer   = errors.New("null pointer encountered")
	ErrClosed        = errors.New("resource is closed")
	ErrLibraryClosed = errors.New("library has been unloaded")
)
