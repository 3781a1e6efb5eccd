package runner

import (
	"fmt"
	"math"
	"strings"

	"github.com/mensylisir/xmrun/common"
)

// ExitUnknown is stored in Result.Exited when the subprocess never reported
// an exit status.
const ExitUnknown = math.MinInt32

// Result describes one finished (or abandoned) command execution.
type Result struct {
	Command  string
	Shell    string
	Env      map[string]string
	Encoding string

	// Stdout and Stderr always hold the full captured output, hidden or not.
	Stdout string
	Stderr string

	// Exited is the process exit code. Death by signal N is reported as -N.
	Exited int
	Pty    bool
	Hide   Hide

	// Exception records a benign error swallowed during teardown, such as the
	// trailing EIO some kernels return from a pty master after the child exits.
	Exception error
}

// OK reports whether the command exited 0.
func (r *Result) OK() bool {
	return r.Exited == 0
}

// Failed is !OK.
func (r *Result) Failed() bool {
	return !r.OK()
}

// ReturnCode is an alias for Exited.
func (r *Result) ReturnCode() int {
	return r.Exited
}

// Tail returns the last count lines of the named stream ("stdout" or
// "stderr"), prefixed with a blank line so it reads well inside messages.
func (r *Result) Tail(stream string, count int) string {
	text := r.Stdout
	if stream == common.StderrStream {
		text = r.Stderr
	}
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) > count {
		lines = lines[len(lines)-count:]
	}
	return "\n\n" + strings.Join(lines, "\n")
}

func (r *Result) String() string {
	exited := fmt.Sprintf("%d", r.Exited)
	if r.Exited == ExitUnknown {
		exited = "unknown"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Command exited with status %s.\n", exited)
	for _, s := range []struct{ name, text string }{
		{common.StdoutStream, r.Stdout},
		{common.StderrStream, r.Stderr},
	} {
		if s.text == "" {
			fmt.Fprintf(&b, "(no %s)\n", s.name)
			continue
		}
		fmt.Fprintf(&b, "=== %s ===\n%s", s.name, s.text)
		if !strings.HasSuffix(s.text, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}
