package runner

import (
	"os"
	"os/exec"
	"sync"

	"github.com/pkg/errors"
)

// pipeBackend runs the command with three anonymous pipes. The pipes are
// created here rather than through exec.Cmd so that Wait never closes a
// stream a pump is still draining. On unix the shell leads its own process
// group and signals go to the whole group.
type pipeBackend struct {
	cmd *exec.Cmd

	stdout *os.File
	stderr *os.File
	stdin  *os.File

	stdinOnce sync.Once
	closeOnce sync.Once
}

func (b *pipeBackend) Start(command, shell string, env []string) error {
	b.cmd = shellCommand(shell, command)
	b.cmd.Env = env
	ownProcessGroup(b.cmd)

	var childEnds []*os.File
	closeAll := func(files ...*os.File) {
		for _, f := range files {
			if f != nil {
				f.Close()
			}
		}
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return errors.Wrap(err, "failed to create stdout pipe")
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdoutR, stdoutW)
		return errors.Wrap(err, "failed to create stderr pipe")
	}
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		closeAll(stdoutR, stdoutW, stderrR, stderrW)
		return errors.Wrap(err, "failed to create stdin pipe")
	}
	childEnds = append(childEnds, stdoutW, stderrW, stdinR)

	b.cmd.Stdout = stdoutW
	b.cmd.Stderr = stderrW
	b.cmd.Stdin = stdinR
	if err := b.cmd.Start(); err != nil {
		closeAll(append(childEnds, stdoutR, stderrR, stdinW)...)
		return errors.Wrapf(err, "failed to start %s", shell)
	}
	closeAll(childEnds...)

	b.stdout, b.stderr, b.stdin = stdoutR, stderrR, stdinW
	return nil
}

func (b *pipeBackend) ReadStdout(p []byte) (int, error) {
	return b.stdout.Read(p)
}

func (b *pipeBackend) ReadStderr(p []byte) (int, error) {
	return b.stderr.Read(p)
}

func (b *pipeBackend) WriteStdin(p []byte) (int, error) {
	return b.stdin.Write(p)
}

func (b *pipeBackend) CloseStdin() error {
	var err error
	b.stdinOnce.Do(func() {
		err = b.stdin.Close()
	})
	return err
}

func (b *pipeBackend) Wait() (int, error) {
	return waitCmd(b.cmd)
}

func (b *pipeBackend) SendInterrupt() error {
	if b.cmd == nil || b.cmd.Process == nil {
		return nil
	}
	if err := interruptProcess(b.cmd.Process); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return b.Kill()
	}
	return nil
}

func (b *pipeBackend) Kill() error {
	if b.cmd == nil || b.cmd.Process == nil {
		return nil
	}
	return killProcess(b.cmd.Process)
}

func (b *pipeBackend) Close() error {
	b.closeOnce.Do(func() {
		b.CloseStdin()
		b.stdout.Close()
		b.stderr.Close()
	})
	return nil
}

func (b *pipeBackend) UsingPty() bool {
	return false
}

func (b *pipeBackend) Pid() int {
	if b.cmd == nil || b.cmd.Process == nil {
		return 0
	}
	return b.cmd.Process.Pid
}
