// Package sandbox executes a processor's optional post-processing code in
// an isolated interpreter process. Every invocation gets a fresh process;
// no interpreter state is ever shared across calls.
package sandbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/cognivers/pipeline/internal/domain"
)

// Common sandbox errors
var (
	// ErrUnsupportedInterpreter is returned when a processor selects an
	// interpreter this sandbox cannot run.
	ErrUnsupportedInterpreter = errors.New("unsupported interpreter")

	// ErrTimeout is returned when the child process exceeded its time
	// budget and was killed.
	ErrTimeout = errors.New("post-processing timed out")

	// ErrInvalidOutput is returned when the child process did not produce
	// a single JSON object on stdout.
	ErrInvalidOutput = errors.New("post-processing output is not a JSON object")
)

// Error carries the diagnostics of a failed sandbox run: the child's exit
// code (-1 when it never ran or was killed) and its captured stderr.
type Error struct {
	ExitCode int
	Stderr   string
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("sandbox execution failed: %v: %s", e.Err, e.Stderr)
	}
	return fmt.Sprintf("sandbox execution failed: %v", e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Sandbox runs vetted post-processing code against a JSON input document
// and returns the JSON object the code printed on stdout.
type Sandbox interface {
	// Run executes the code under the given interpreter with input on
	// stdin. The returned bytes are a validated JSON object. Failures are
	// *Error values except for unsupported interpreters, which return
	// ErrUnsupportedInterpreter directly.
	Run(ctx context.Context, interpreter domain.InterpreterType, code string, input []byte) ([]byte, error)
}
