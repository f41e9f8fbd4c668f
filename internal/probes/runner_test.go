package probes

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeRunner serves canned tool output keyed by binary name.
type fakeRunner struct {
	mu        sync.Mutex
	responses map[string]fakeResponse
	calls     []string
}

type fakeResponse struct {
	result *ExecResult
	err    error
}

func (f *fakeRunner) Available(name string) bool {
	_, ok := f.responses[name]
	return ok
}

func (f *fakeRunner) Run(_ context.Context, name string, _ []string, _ time.Duration) (*ExecResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
	resp, ok := f.responses[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolUnavailable, name)
	}
	if resp.err != nil {
		return nil, resp.err
	}
	return resp.result, nil
}

func stdout(s string) fakeResponse {
	return fakeResponse{result: &ExecResult{Stdout: s}}
}
