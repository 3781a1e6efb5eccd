//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

package runner

import "time"

const canPoll = false

func readyForReading(int, time.Duration) (bool, error) {
	return true, nil
}

func characterBuffered(int) (func(), error) {
	return func() {}, nil
}
