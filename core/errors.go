package core

import (
	"errors"
	"fmt"
)

// ConfigError is a configuration problem with a hint on how to fix it.
type ConfigError struct {
	Code    string // stable code for programmatic handling
	Message string
	Action  string // what the user should change
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Configuration error codes
const (
	ErrCodeMissingConfig  = "MISSING_CONFIG"
	ErrCodeInvalidThreads = "INVALID_THREADS"
	ErrCodeLibraryMissing = "LIBRARY_MISSING"
	ErrCodeManifestNotSet = "MANIFEST_NOT_SET"
)

// ErrMissingConfig reports a required variable that is not set.
func ErrMissingConfig(varName string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required configuration: %s", varName),
		Action:  fmt.Sprintf("Set %s in the environment or in .env", varName),
	}
}

// ErrInvalidThreads reports a negative KUN_THREADS.
func ErrInvalidThreads(n int) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidThreads,
		Message: fmt.Sprintf("Invalid KUN_THREADS value %d", n),
		Action:  "Use 0 or 1 for a single-threaded executor, or the worker count",
	}
}

// ErrLibraryMissing reports a factor library that cannot be found.
func ErrLibraryMissing(path string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeLibraryMissing,
		Message: fmt.Sprintf("Factor library not found: %s", path),
		Action:  "Build it with the KunQuant compiler or point KUN_LIBRARY_DIR at its directory",
	}
}

// ErrManifestNotSet reports a run command given no manifest.
func ErrManifestNotSet() *ConfigError {
	return &ConfigError{
		Code:    ErrCodeManifestNotSet,
		Message: "No factor manifest given",
		Action:  "Pass the manifest path as an argument or set KUN_MANIFEST",
	}
}

// GetErrorCode returns the code of a ConfigError anywhere in err's chain.
func GetErrorCode(err error) string {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
