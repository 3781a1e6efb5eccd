//go:build windows

package runner

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/pkg/errors"
)

// Windows has no SIGINT delivery to other processes.
var interruptSignal = syscall.SIGTERM

func ownProcessGroup(*exec.Cmd) {}

func interruptProcess(p *os.Process) error {
	return p.Signal(interruptSignal)
}

func killProcess(p *os.Process) error {
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
