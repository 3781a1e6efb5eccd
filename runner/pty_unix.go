//go:build !windows

package runner

import (
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const ptySupported = true

// ptyBackend runs the command on the slave side of a new pseudo-terminal.
// The child is a session leader, so signals go to its whole process group
// the way a terminal would deliver them.
type ptyBackend struct {
	cmd    *exec.Cmd
	master *os.File

	closeOnce sync.Once
}

func newPtyBackend() (Backend, error) {
	return &ptyBackend{}, nil
}

func (b *ptyBackend) Start(command, shell string, env []string) error {
	cols, rows := PtySize()
	b.cmd = shellCommand(shell, command)
	b.cmd.Env = env
	master, err := pty.StartWithSize(b.cmd, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
	if err != nil {
		return errors.Wrapf(err, "failed to start %s on a pty", shell)
	}
	b.master = master
	return nil
}

func (b *ptyBackend) ReadStdout(p []byte) (int, error) {
	return b.master.Read(p)
}

func (b *ptyBackend) ReadStderr([]byte) (int, error) {
	return 0, io.EOF
}

func (b *ptyBackend) WriteStdin(p []byte) (int, error) {
	return b.master.Write(p)
}

func (b *ptyBackend) CloseStdin() error {
	return errors.New("cannot close stdin of a pty-backed process")
}

func (b *ptyBackend) Wait() (int, error) {
	return waitCmd(b.cmd)
}

func (b *ptyBackend) SendInterrupt() error {
	return signalGroup(b.Pid(), interruptSignal)
}

func (b *ptyBackend) Kill() error {
	return signalGroup(b.Pid(), unix.SIGKILL)
}

func (b *ptyBackend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if b.master != nil {
			err = b.master.Close()
		}
	})
	return err
}

func (b *ptyBackend) UsingPty() bool {
	return true
}

func (b *ptyBackend) Pid() int {
	if b.cmd == nil || b.cmd.Process == nil {
		return 0
	}
	return b.cmd.Process.Pid
}

// isBenignReadError reports the EIO Linux returns from a pty master once
// the slave side has been closed.
func isBenignReadError(err error) bool {
	return errors.Is(err, unix.EIO)
}
