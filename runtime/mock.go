package runtime

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmrun/runner"
)

// MockContext returns canned results instead of running anything. It is
// meant for testing code that accepts a Runtime.
type MockContext struct {
	mu      sync.Mutex
	results map[string]mockReply
	sudo    map[string]mockReply
	calls   []string
}

type mockReply struct {
	result *runner.Result
	err    error
}

func NewMockContext() *MockContext {
	return &MockContext{
		results: make(map[string]mockReply),
		sudo:    make(map[string]mockReply),
	}
}

// SetResult registers what Run(command) returns. A failing result without
// an explicit error is still returned as a plain result.
func (m *MockContext) SetResult(command string, result *runner.Result, err error) *MockContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[command] = mockReply{result: result, err: err}
	return m
}

// SetSudoResult registers what Sudo(command) returns.
func (m *MockContext) SetSudoResult(command string, result *runner.Result, err error) *MockContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sudo[command] = mockReply{result: result, err: err}
	return m
}

// Calls lists the commands run so far; sudo calls are prefixed "sudo: ".
func (m *MockContext) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockContext) Run(_ context.Context, command string, _ ...runner.Option) (*runner.Result, error) {
	return m.reply(m.results, command, command)
}

func (m *MockContext) Sudo(_ context.Context, command string, _ SudoOptions, _ ...runner.Option) (*runner.Result, error) {
	return m.reply(m.sudo, command, "sudo: "+command)
}

func (m *MockContext) reply(replies map[string]mockReply, command, call string) (*runner.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	r, ok := replies[command]
	if !ok {
		return nil, errors.Errorf("mock context has no result for %q", command)
	}
	if r.result != nil && r.result.Command == "" {
		r.result.Command = command
	}
	return r.result, r.err
}
