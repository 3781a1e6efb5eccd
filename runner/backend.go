package runner

import (
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
)

// Backend is one spawned subprocess as seen by the Runner. The Runner owns
// all concurrency; a Backend only has to tolerate one reader per stream,
// serialized writes to stdin and signal delivery from any goroutine.
type Backend interface {
	// Start spawns shell running command with env ("K=V" pairs).
	Start(command, shell string, env []string) error
	ReadStdout(p []byte) (int, error)
	// ReadStderr returns io.EOF immediately on backends that merge stderr
	// into stdout.
	ReadStderr(p []byte) (int, error)
	WriteStdin(p []byte) (int, error)
	CloseStdin() error
	// Wait blocks until the subprocess exits and returns its decoded exit
	// code: the status for a normal exit, -N for death by signal N.
	Wait() (int, error)
	SendInterrupt() error
	Kill() error
	// Close releases the parent side of every stream. Blocked reads return.
	Close() error
	UsingPty() bool
	Pid() int
}

// BackendFactory builds the Backend for one run.
type BackendFactory func(usePty bool) (Backend, error)

// NewLocalBackend returns a pty backend when usePty is set, a pipe backend
// otherwise. Asking for a pty where none exist yields a *PlatformError.
func NewLocalBackend(usePty bool) (Backend, error) {
	if usePty {
		return newPtyBackend()
	}
	return &pipeBackend{}, nil
}

func shellCommand(shell, command string) *exec.Cmd {
	name := strings.ToLower(filepath.Base(shell))
	if name == "cmd" || name == "cmd.exe" {
		return exec.Command(shell, "/C", command)
	}
	return exec.Command(shell, "-c", command)
}

func exitCode(cmd *exec.Cmd) int {
	if cmd.ProcessState == nil {
		return ExitUnknown
	}
	if status, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok {
		if status.Signaled() {
			return -int(status.Signal())
		}
		if status.Exited() {
			return status.ExitStatus()
		}
	}
	return cmd.ProcessState.ExitCode()
}

// waitCmd waits for cmd and treats a non-zero exit as data, not an error.
func waitCmd(cmd *exec.Cmd) (int, error) {
	err := cmd.Wait()
	if _, ok := err.(*exec.ExitError); ok {
		err = nil
	}
	return exitCode(cmd), err
}
