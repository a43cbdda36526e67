package cli

import (
	"context"
	"errors"
	"fmt"

	"go_kunquant/core"
	"go_kunquant/kunruntime"
	"go_kunquant/manifest"
)

// ExitError carries the process exit code for a command failure.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// ExitCode picks the exit code for an error returned by a command.
func ExitCode(err error) int {
	if err == nil {
		return core.ExitCodeSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	var fieldErr *manifest.FieldError
	switch {
	case core.GetErrorCode(err) != "", errors.As(err, &fieldErr):
		return core.ExitCodeConfig
	case errors.Is(err, context.Canceled):
		return core.ExitCodeSIGINT
	case errors.Is(err, kunruntime.ErrLibraryLoadFailed),
		errors.Is(err, kunruntime.ErrExecutorCreationFailed),
		errors.Is(err, kunruntime.ErrModuleNotFound),
		errors.Is(err, kunruntime.ErrStreamCreationFailed):
		return core.ExitCodeRuntime
	}
	return core.ExitCodeError
}
