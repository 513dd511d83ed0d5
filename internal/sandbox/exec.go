package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/cognivers/pipeline/internal/config"
	"github.com/cognivers/pipeline/internal/domain"
)

// killGrace is how long after the deadline the child gets before the
// runtime escalates to SIGKILL.
const killGrace = 2 * time.Second

// ExecSandbox implements Sandbox by spawning one interpreter process per
// invocation via os/exec. The script is written to a private temp file,
// the input document is fed on stdin, and the process is hard-killed when
// the configured timeout elapses.
type ExecSandbox struct {
	cfg    config.SandboxConfig
	logger *slog.Logger
}

// Ensure ExecSandbox implements Sandbox
var _ Sandbox = (*ExecSandbox)(nil)

// NewExecSandbox creates a new ExecSandbox with the given configuration.
// If logger is nil, the default logger is used.
func NewExecSandbox(cfg config.SandboxConfig, logger *slog.Logger) *ExecSandbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecSandbox{
		cfg:    cfg,
		logger: logger.With("component", "exec_sandbox"),
	}
}

// Run implements Sandbox.Run.
func (s *ExecSandbox) Run(
	ctx context.Context,
	interpreter domain.InterpreterType,
	code string,
	input []byte,
) ([]byte, error) {
	binary, suffix, err := s.command(interpreter)
	if err != nil {
		return nil, err
	}

	scriptPath, err := writeScript(code, suffix)
	if err != nil {
		return nil, &Error{ExitCode: -1, Err: fmt.Errorf("failed to stage script: %w", err)}
	}
	defer func() {
		if removeErr := os.Remove(scriptPath); removeErr != nil {
			s.logger.Warn("failed to remove sandbox script", "path", scriptPath, "error", removeErr)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, binary, scriptPath)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = killGrace
	// A minimal environment: post-processing code gets no ambient secrets.
	cmd.Env = []string{"PATH=" + os.Getenv("PATH")}

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	s.logger.Debug("sandbox process finished",
		"interpreter", interpreter,
		"elapsed", elapsed,
		"stdout_bytes", stdout.Len(),
		"stderr_bytes", stderr.Len(),
		"error", runErr)

	if runErr != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, &Error{
				ExitCode: -1,
				Stderr:   truncate(stderr.String(), 1024),
				Err:      fmt.Errorf("%w after %s", ErrTimeout, s.cfg.Timeout),
			}
		}

		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return nil, &Error{
			ExitCode: exitCode,
			Stderr:   truncate(stderr.String(), 1024),
			Err:      runErr,
		}
	}

	if stdout.Len() > s.cfg.MaxOutputBytes {
		return nil, &Error{
			ExitCode: 0,
			Err: fmt.Errorf("%w: output exceeds %d bytes",
				ErrInvalidOutput, s.cfg.MaxOutputBytes),
		}
	}

	output, err := parseOutput(stdout.Bytes())
	if err != nil {
		return nil, &Error{
			ExitCode: 0,
			Stderr:   truncate(stderr.String(), 1024),
			Err:      err,
		}
	}

	return output, nil
}

// command resolves the interpreter binary and script suffix.
func (s *ExecSandbox) command(interpreter domain.InterpreterType) (binary, suffix string, err error) {
	switch interpreter {
	case domain.InterpreterPython:
		return s.cfg.PythonBinary, ".py", nil
	case domain.InterpreterJavaScript:
		return s.cfg.NodeBinary, ".js", nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedInterpreter, interpreter)
	}
}

// writeScript stages the code in a private temp file and returns its path.
func writeScript(code, suffix string) (string, error) {
	f, err := os.CreateTemp("", "postproc-*"+suffix)
	if err != nil {
		return "", err
	}

	if _, err := f.WriteString(code); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}

	return f.Name(), nil
}

// parseOutput validates that stdout carries exactly one JSON object and
// returns it in compact form.
func parseOutput(raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty stdout", ErrInvalidOutput)
	}

	// "null" decodes into a map without error, so check the shape first.
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidOutput, firstToken(trimmed))
	}

	var object map[string]json.RawMessage
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	if err := decoder.Decode(&object); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}

	// Anything after the object means stdout was not a single document.
	if decoder.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON object", ErrInvalidOutput)
	}

	compact := &bytes.Buffer{}
	if err := json.Compact(compact, trimmed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}

	return compact.Bytes(), nil
}

// firstToken returns a short prefix of the output for error messages.
func firstToken(raw []byte) string {
	return truncate(string(raw), 32)
}

// truncate bounds captured stderr so failure messages stay storable.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
