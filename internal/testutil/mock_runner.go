// Package testutil provides testing utilities for the recht proxy.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/Sternrassler/recht-proxy/pkg/invoker"
)

// MockResponse defines what the mock tool returns for one invocation.
type MockResponse struct {
	Output string
	Err    error
	Delay  time.Duration
}

// MockRunner is a configurable stand-in for the recht tool.
type MockRunner struct {
	mu        sync.RWMutex
	responses map[string]MockResponse
	fallback  MockResponse

	// Tracking
	CallCount int
	LastArgs  []string
}

// NewMockRunner creates a mock runner that answers every lookup with
// a generic norm text.
func NewMockRunner() *MockRunner {
	return &MockRunner{
		responses: make(map[string]MockResponse),
		fallback:  NewFoundResponse("https://example.test/norm", "§ 1\nAbs. 1"),
	}
}

// Run implements the lookup runner contract.
func (m *MockRunner) Run(ctx context.Context, args []string) ([]byte, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastArgs = append([]string(nil), args...)
	resp, ok := m.responses[fmt.Sprint(args)]
	if !ok {
		resp = m.fallback
	}
	m.mu.Unlock()

	if resp.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, &invoker.ExecError{Args: args, ExitCode: -1, Err: fmt.Errorf("%w: %w", invoker.ErrTimeout, ctx.Err())}
		case <-time.After(resp.Delay):
		}
	}

	if resp.Err != nil {
		return nil, resp.Err
	}
	return []byte(resp.Output), nil
}

// SetResponse configures the response for an exact argument list.
func (m *MockRunner) SetResponse(args []string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[fmt.Sprint(args)] = resp
}

// SetDefault configures the response for argument lists without a specific response.
func (m *MockRunner) SetDefault(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = resp
}

// Reset clears tracking counters.
func (m *MockRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount = 0
	m.LastArgs = nil
}

// GetCallCount returns the number of invocations.
func (m *MockRunner) GetCallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.CallCount
}

// GetLastArgs returns the arguments of the latest invocation.
func (m *MockRunner) GetLastArgs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.LastArgs...)
}

// NewFoundResponse creates tool output with a link line followed by the norm text.
func NewFoundResponse(url, text string) MockResponse {
	return MockResponse{Output: url + "\n" + text + "\n"}
}

// NewTextResponse creates tool output without a link line.
func NewTextResponse(text string) MockResponse {
	return MockResponse{Output: text}
}

// NewBinaryMissingResponse simulates a tool that is not installed.
func NewBinaryMissingResponse() MockResponse {
	return MockResponse{Err: &invoker.ExecError{
		Args:     []string{"get"},
		ExitCode: -1,
		Err:      fmt.Errorf("%w: %w", invoker.ErrBinaryMissing, fs.ErrNotExist),
	}}
}

// NewTimeoutResponse simulates an invocation killed at its deadline.
func NewTimeoutResponse() MockResponse {
	return MockResponse{Err: &invoker.ExecError{
		Args:     []string{"get"},
		ExitCode: -1,
		Err:      fmt.Errorf("%w: %w", invoker.ErrTimeout, context.DeadlineExceeded),
	}}
}

// NewFailedResponse simulates a non-zero exit with the given stderr.
func NewFailedResponse(exitCode int, stderr string) MockResponse {
	return MockResponse{Err: &invoker.ExecError{
		Args:     []string{"get"},
		ExitCode: exitCode,
		Stderr:   stderr,
		Err:      errors.New("exit status " + fmt.Sprint(exitCode)),
	}}
}
