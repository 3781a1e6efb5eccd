package runner

import (
	"fmt"
	"strings"
	"time"

	"github.com/mensylisir/xmrun/common"
	xmtime "github.com/mensylisir/xmrun/time"
)

const failureTailLines = 10

// Failure is returned when a command ran but did not succeed: it exited
// non-zero without Warn, or a watcher aborted it (Reason is then set).
type Failure struct {
	Result *Result
	Reason error
}

func (f *Failure) Error() string {
	if f.Reason != nil {
		return fmt.Sprintf("Command %q was stopped: %v", f.Result.Command, f.Reason)
	}
	return f.summary("Encountered a bad command exit code!")
}

func (f *Failure) Unwrap() error {
	return f.Reason
}

func (f *Failure) summary(header string) string {
	r := f.Result
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nCommand: %q\n\nExit code: %d\n\n", header, r.Command, r.Exited)
	for _, stream := range []string{common.StdoutStream, common.StderrStream} {
		label := strings.ToUpper(stream[:1]) + stream[1:]
		switch {
		case stream == common.StderrStream && r.Pty:
			fmt.Fprintf(&b, "%s: n/a (PTYs have no stderr)\n\n", label)
		case !r.Hide.Hides(stream):
			fmt.Fprintf(&b, "%s: already printed\n\n", label)
		default:
			fmt.Fprintf(&b, "%s:%s\n\n", label, r.Tail(stream, failureTailLines))
		}
	}
	return b.String()
}

// AuthFailure is a Failure caused by a rejected sudo password.
type AuthFailure struct {
	Failure
	Prompt string
}

func (e *AuthFailure) Error() string {
	return fmt.Sprintf("The password submitted to prompt %q was rejected.", e.Prompt)
}

func (e *AuthFailure) Unwrap() error {
	return &e.Failure
}

// CommandTimedOut is a Failure caused by exceeding Options.Timeout.
type CommandTimedOut struct {
	Failure
	Timeout time.Duration
}

func (e *CommandTimedOut) Error() string {
	return fmt.Sprintf("Command did not complete within %s!\n\nCommand: %q\n\nStdout:%s\n\nStderr:%s\n",
		xmtime.ShortDur(e.Timeout), e.Result.Command,
		e.Result.Tail(common.StdoutStream, failureTailLines),
		e.Result.Tail(common.StderrStream, failureTailLines))
}

func (e *CommandTimedOut) Unwrap() error {
	return &e.Failure
}

// Interrupted is returned when the run's context is cancelled. The interrupt
// has already been forwarded to the subprocess and Result holds whatever was
// captured before it went away.
type Interrupted struct {
	Result *Result
	Err    error
}

func (e *Interrupted) Error() string {
	return fmt.Sprintf("command %q interrupted: %v", e.Result.Command, e.Err)
}

func (e *Interrupted) Unwrap() error {
	return e.Err
}

// PlatformError means a requested feature does not exist on this OS.
type PlatformError struct {
	Message string
}

func (e *PlatformError) Error() string {
	return e.Message
}

// ThreadError aggregates unexpected failures inside the stream pumps.
type ThreadError struct {
	Errors []error
}

func (e *ThreadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Saw %d errors within pump workers:", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&b, "\n\n%v", err)
	}
	return b.String()
}

func (e *ThreadError) Unwrap() []error {
	return e.Errors
}
