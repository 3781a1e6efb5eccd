//go:build !windows

package runner

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

var interruptSignal = unix.SIGINT

// ownProcessGroup makes the child lead a new process group so a signal
// reaches everything it spawned.
func ownProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// signalGroup delivers sig to the process group led by pid, or to pid alone
// when it leads none. A process that is already gone is not an error.
func signalGroup(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return nil
	}
	err := unix.Kill(-pid, sig)
	if err != nil {
		err = unix.Kill(pid, sig)
	}
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

func interruptProcess(p *os.Process) error {
	return signalGroup(p.Pid, interruptSignal)
}

func killProcess(p *os.Process) error {
	return signalGroup(p.Pid, unix.SIGKILL)
}
