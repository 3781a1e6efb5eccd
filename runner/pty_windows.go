//go:build windows

package runner

const ptySupported = false

func newPtyBackend() (Backend, error) {
	return nil, &PlatformError{Message: "pseudo-terminals are not supported on Windows; set Fallback to run without one"}
}

func isBenignReadError(error) bool {
	return false
}
