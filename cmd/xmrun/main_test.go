package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	goruntime "runtime"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/xmrun/runner"
)

func TestExitStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"tolerated", &statusError{code: 3}, 3},
		{"failure", &runner.Failure{Result: &runner.Result{Exited: 2}}, 2},
		{"signal", &runner.Failure{Result: &runner.Result{Exited: -int(syscall.SIGTERM)}}, 128 + int(syscall.SIGTERM)},
		{"unknown exit", &runner.Failure{Result: &runner.Result{Exited: runner.ExitUnknown}}, 1},
		{"auth", &runner.AuthFailure{Failure: runner.Failure{Result: &runner.Result{Exited: 1}}}, 1},
		{"interrupted", &runner.Interrupted{Result: &runner.Result{}, Err: context.Canceled}, 130},
		{"threads", &runner.ThreadError{Errors: []error{errors.New("boom")}}, 1},
		{"plain", errors.New("bad flag"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitStatus(tt.err))
		})
	}
}

func TestQuietExit(t *testing.T) {
	assert.True(t, quietExit(&statusError{code: 1}))
	assert.True(t, quietExit(&runner.Failure{Result: &runner.Result{Exited: 1}}))
	assert.False(t, quietExit(&runner.Failure{Result: &runner.Result{Exited: 1, Hide: runner.HideBoth}}))
	assert.False(t, quietExit(&runner.Failure{Result: &runner.Result{}, Reason: errors.New("watcher")}))
	assert.False(t, quietExit(&runner.AuthFailure{Failure: runner.Failure{Result: &runner.Result{Exited: 1}}}))
	assert.False(t, quietExit(errors.New("bad flag")))
}

func TestFinish(t *testing.T) {
	assert.NoError(t, finish(&runner.Result{}, nil))
	assert.NoError(t, finish(nil, nil))

	var status *statusError
	require.ErrorAs(t, finish(&runner.Result{Exited: 4}, nil), &status)
	assert.Equal(t, 4, status.code)

	boom := errors.New("boom")
	assert.Same(t, boom, finish(&runner.Result{Exited: 4}, boom))
}

func TestCommandLine(t *testing.T) {
	assert.Equal(t, "ls -la /tmp", commandLine([]string{"ls", "-la", "/tmp"}))
	assert.Equal(t, "echo $HOME", commandLine([]string{"echo $HOME"}))
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xmrun.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestExecute_ExitCodeMirrorsCommand(t *testing.T) {
	if goruntime.GOOS == "windows" {
		t.Skip("uses a POSIX shell")
	}
	cfg := writeConfig(t, "run:\n  shell: /bin/sh\n")
	ctx := context.Background()

	assert.Equal(t, 0, execute(ctx, []string{"run", "--config", cfg, "--hide", "both", "--no-stdin", "--", "true"}))
	assert.Equal(t, 3, execute(ctx, []string{"run", "--config", cfg, "--hide", "both", "--no-stdin", "--", "exit 3"}))
	assert.Equal(t, 3, execute(ctx, []string{"run", "--config", cfg, "--hide", "both", "--no-stdin", "--warn", "--", "exit 3"}))
	assert.Equal(t, 0, execute(ctx, []string{"run", "--config", cfg, "--hide", "both", "--no-stdin", "--env", "XMRUN_CLI=ok", "--", `test "$XMRUN_CLI" = ok`}))
	assert.Equal(t, 0, execute(ctx, []string{"run", "--config", cfg, "--hide", "both", "--dry", "--", "exit 3"}))
}

func TestExecute_BadInput(t *testing.T) {
	cfg := writeConfig(t, "run:\n  hide: both\n")
	ctx := context.Background()

	assert.Equal(t, 1, execute(ctx, []string{"run", "--config", cfg, "--hide", "sideways", "--", "true"}))
	assert.Equal(t, 1, execute(ctx, []string{"run", "--config", cfg, "--log-level", "loud", "--", "true"}))
	assert.Equal(t, 1, execute(ctx, []string{"run", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "--", "true"}))
	assert.Equal(t, 1, execute(ctx, []string{"run"}))
}
