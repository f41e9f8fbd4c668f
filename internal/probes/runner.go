// Package probes provides network probing via external diagnostic tools.
//
// Every capability (device scan, traceroute, DNS lookup, speed test) is an
// ordered list of candidate tools tried until one yields a usable result, so
// the agent degrades to lower-fidelity data instead of failing outright when
// a tool is missing from the host image.
package probes

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

var (
	// ErrToolUnavailable means the external binary could not be located.
	ErrToolUnavailable = errors.New("tool unavailable")
	// ErrToolTimeout means the tool exceeded its wall-clock budget.
	ErrToolTimeout = errors.New("tool timed out")
)

// ExecResult holds the captured output of one tool invocation.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes external diagnostic tools. A non-zero exit code is not an
// error: the raw output is handed back regardless so the parsers can decide
// what to make of it.
type Runner interface {
	Run(ctx context.Context, name string, args []string, timeout time.Duration) (*ExecResult, error)
	Available(name string) bool
}

type execRunner struct{}

// NewRunner returns a Runner backed by os/exec.
func NewRunner() Runner {
	return execRunner{}
}

func (execRunner) Available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func (execRunner) Run(ctx context.Context, name string, args []string, timeout time.Duration) (*ExecResult, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrToolUnavailable, name)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	// Partial output from a killed process is discarded. Callers that want
	// degraded data use a fallback tool, not timeout salvage.
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%w: %s after %s", ErrToolTimeout, name, timeout)
	}

	result := &ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("running %s: %w", name, err)
	}

	return result, nil
}
