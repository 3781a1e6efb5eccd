package common

const (
	AppName = "xmrun"

	// EnvPrefix prefixes every environment variable read by the config overlay.
	EnvPrefix = "XMRUN_"

	// DefaultConfigFile is looked up in the user's home directory.
	DefaultConfigFile = ".xmrun.yaml"
)

// Log field keys used by the logger's ordered field display.
const (
	RunID      = "RunID"
	Command    = "Command"
	StreamName = "Stream"
	Backend    = "Backend"
	Pid        = "Pid"
)

const (
	StdoutStream = "stdout"
	StderrStream = "stderr"
	StdinStream  = "stdin"
)

const (
	DefaultShell        = "/bin/bash"
	DefaultWindowsShell = "cmd.exe"
	DefaultEncoding     = "utf-8"
	DefaultSudoPrompt   = "[sudo] password: "
	// SudoRetrySentinel is what sudo prints after rejecting a password, up to
	// the line ending, which is CRLF on a pty.
	SudoRetrySentinel = "Sorry, try again."
	// DefaultEchoFormat renders echoed commands in bold white.
	DefaultEchoFormat = "\x1b[1;37m{{.Command}}\x1b[0m"
)

const (
	DefaultPtyColumns = 80
	DefaultPtyRows    = 24
)

// RunState tracks one command execution from creation to result.
type RunState int

const (
	StateNotStarted RunState = iota // 0
	StateRunning                    // 1
	StateDraining                   // 2
	StateExited                     // 3
	StateResultBuilt                // 4
)

func (s RunState) String() string {
	switch s {
	case StateNotStarted:
		return "NotStarted"
	case StateRunning:
		return "Running"
	case StateDraining:
		return "Draining"
	case StateExited:
		return "Exited"
	case StateResultBuilt:
		return "ResultBuilt"
	default:
		return "Unknown"
	}
}
