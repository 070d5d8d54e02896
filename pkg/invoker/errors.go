package invoker

import (
	"errors"
	"fmt"
)

// Failure signals wrapped by ExecError.
var (
	// ErrBinaryMissing is returned when the tool cannot be found or executed.
	ErrBinaryMissing = errors.New("tool binary missing")

	// ErrTimeout is returned when the invocation exceeded its deadline or was killed.
	ErrTimeout = errors.New("tool invocation timed out")

	// ErrOutputTooLarge is returned when stdout exceeded the configured bound.
	ErrOutputTooLarge = errors.New("tool output exceeds limit")
)

// ErrInvalidConfig indicates an empty binary or a non-positive bound.
var ErrInvalidConfig = errors.New("invalid invoker config")

// ExecError describes a failed tool invocation.
type ExecError struct {
	// Args are the arguments the tool was invoked with
	Args []string

	// ExitCode is the process exit code (-1 if not started or killed)
	ExitCode int

	// Stderr is the captured (bounded) standard error
	Stderr string

	// Err is the underlying error
	Err error
}

// Error implements the error interface.
func (e *ExecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("recht %v failed with exit code %d: %v", e.Args, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("recht %v failed with exit code %d", e.Args, e.ExitCode)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ExecError) Unwrap() error {
	return e.Err
}
