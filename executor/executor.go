// Package executor offers a tuple-returning, non-interactive view of the
// runtime for callers that only want output and an exit code.
package executor

import (
	"context"

	"github.com/mensylisir/xmrun/runner"
	"github.com/mensylisir/xmrun/runtime"
)

// Executor runs commands and reports their outcome as plain values.
type Executor interface {
	// Execute runs a command. A non-zero exit is reported through exitCode
	// only; err is set when the command could not run to completion.
	Execute(ctx context.Context, command string) (stdout string, stderr string, exitCode int, err error)

	// SudoExecute runs a command through sudo.
	SudoExecute(ctx context.Context, command string) (stdout string, stderr string, exitCode int, err error)
}

// localExecutor implements the Executor interface on top of a Runtime.
type localExecutor struct {
	rt   runtime.Runtime
	sudo runtime.SudoOptions
}

// NewLocalExecutor creates an Executor. sudo supplies the password and user
// for SudoExecute; empty fields fall back to the runtime's configuration.
func NewLocalExecutor(rt runtime.Runtime, sudo runtime.SudoOptions) Executor {
	return &localExecutor{rt: rt, sudo: sudo}
}

// quiet captures without echoing and never reads the terminal.
var quiet = []runner.Option{
	runner.WithWarn(true),
	runner.WithHide(runner.HideBoth),
	runner.WithEcho(false),
	runner.WithoutStdin(),
}

func (l *localExecutor) Execute(ctx context.Context, command string) (string, string, int, error) {
	return unpack(l.rt.Run(ctx, command, quiet...))
}

func (l *localExecutor) SudoExecute(ctx context.Context, command string) (string, string, int, error) {
	return unpack(l.rt.Sudo(ctx, command, l.sudo, quiet...))
}

func unpack(res *runner.Result, err error) (string, string, int, error) {
	if res == nil {
		// Default when the command never produced a result.
		return "", "", 1, err
	}
	return res.Stdout, res.Stderr, res.Exited, err
}
