//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package runner

import (
	"time"

	"golang.org/x/sys/unix"
)

// readyForReading polls fd for input for at most timeout.
func readyForReading(fd int, timeout time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout/time.Millisecond))
	if err == unix.EINTR {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n > 0 && fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0, nil
}

const canPoll = true

// characterBuffered switches the terminal on fd to cbreak mode: no line
// buffering and no local echo, signals still generated. It is a no-op when
// this process is not in the terminal's foreground process group. The
// returned func restores the previous mode.
func characterBuffered(fd int) (func(), error) {
	pgrp, err := unix.IoctlGetInt(fd, unix.TIOCGPGRP)
	if err != nil || pgrp != unix.Getpgrp() {
		return func() {}, nil
	}
	old, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return func() {}, err
	}
	cbreak := *old
	cbreak.Lflag &^= unix.ICANON | unix.ECHO
	cbreak.Cc[unix.VMIN] = 1
	cbreak.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, &cbreak); err != nil {
		return func() {}, err
	}
	return func() {
		unix.IoctlSetTermios(fd, ioctlSetTermios, old)
	}, nil
}
