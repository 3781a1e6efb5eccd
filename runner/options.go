package runner

import (
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmrun/common"
	"github.com/mensylisir/xmrun/watcher"
)

// Hide selects which subprocess streams are kept off the local terminal.
// Hiding never affects capture.
type Hide int

const (
	HideNone Hide = iota
	HideStdout
	HideStderr
	HideBoth
)

// ParseHide accepts the aliases used in config files and on the command line.
func ParseHide(value string) (Hide, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "none", "false", "null":
		return HideNone, nil
	case "out", "stdout":
		return HideStdout, nil
	case "err", "stderr":
		return HideStderr, nil
	case "both", "true":
		return HideBoth, nil
	default:
		return HideNone, errors.Errorf("'hide' got %q which is not in {none, out, stdout, err, stderr, both}", value)
	}
}

// Hides reports whether stream ("stdout" or "stderr") is hidden.
func (h Hide) Hides(stream string) bool {
	switch stream {
	case common.StdoutStream:
		return h == HideStdout || h == HideBoth
	case common.StderrStream:
		return h == HideStderr || h == HideBoth
	}
	return false
}

func (h Hide) String() string {
	switch h {
	case HideStdout:
		return "stdout"
	case HideStderr:
		return "stderr"
	case HideBoth:
		return "both"
	default:
		return "none"
	}
}

// Options controls a single Run.
type Options struct {
	// Warn returns a failing Result instead of a *Failure error.
	Warn bool
	Hide Hide
	// Pty runs the command inside a pseudo-terminal.
	Pty bool
	// Fallback downgrades Pty to plain pipes when stdin is not a terminal.
	Fallback bool
	// Echo prints the command, rendered through EchoFormat, before running it.
	Echo       bool
	EchoFormat string
	// EchoStdin echoes mirrored keyboard input locally. nil means automatic.
	EchoStdin *bool
	Encoding  string
	Shell     string
	Env       map[string]string
	// ReplaceEnv runs the command with only Env instead of the inherited
	// environment plus Env.
	ReplaceEnv bool
	Watchers   []watcher.StreamWatcher

	InStream  io.Reader
	OutStream io.Writer
	ErrStream io.Writer
	// DisableStdin turns off mirroring of InStream into the subprocess.
	DisableStdin bool

	Timeout time.Duration
	// Dry echoes the command and returns a successful empty Result.
	Dry bool
}

// DefaultOptions mirrors the defaults of the configuration layer.
func DefaultOptions() Options {
	return Options{
		Fallback:   true,
		EchoFormat: common.DefaultEchoFormat,
		Encoding:   common.DefaultEncoding,
		Shell:      DefaultShell(),
	}
}

// DefaultShell is /bin/bash, or cmd.exe on Windows.
func DefaultShell() string {
	if runtime.GOOS == "windows" {
		return common.DefaultWindowsShell
	}
	return common.DefaultShell
}

// Option mutates Options; used to layer call-site overrides over defaults.
type Option func(*Options)

// Apply returns a copy of o with opts applied in order.
func (o Options) Apply(opts ...Option) Options {
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func WithWarn(warn bool) Option { return func(o *Options) { o.Warn = warn } }

func WithHide(h Hide) Option { return func(o *Options) { o.Hide = h } }

func WithPty(pty bool) Option { return func(o *Options) { o.Pty = pty } }

func WithFallback(fallback bool) Option { return func(o *Options) { o.Fallback = fallback } }

func WithEcho(echo bool) Option { return func(o *Options) { o.Echo = echo } }

func WithEchoStdin(echo bool) Option { return func(o *Options) { o.EchoStdin = &echo } }

func WithEncoding(enc string) Option { return func(o *Options) { o.Encoding = enc } }

func WithShell(shell string) Option { return func(o *Options) { o.Shell = shell } }

// WithEnv merges env over any variables already set on the options.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		merged := make(map[string]string, len(o.Env)+len(env))
		for k, v := range o.Env {
			merged[k] = v
		}
		for k, v := range env {
			merged[k] = v
		}
		o.Env = merged
	}
}

func WithReplaceEnv(replace bool) Option { return func(o *Options) { o.ReplaceEnv = replace } }

// WithWatchers replaces the watcher list with a copy of ws.
func WithWatchers(ws ...watcher.StreamWatcher) Option {
	return func(o *Options) { o.Watchers = append([]watcher.StreamWatcher(nil), ws...) }
}

func WithInStream(r io.Reader) Option { return func(o *Options) { o.InStream = r } }

func WithOutStream(w io.Writer) Option { return func(o *Options) { o.OutStream = w } }

func WithErrStream(w io.Writer) Option { return func(o *Options) { o.ErrStream = w } }

func WithoutStdin() Option { return func(o *Options) { o.DisableStdin = true } }

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }

func WithDry(dry bool) Option { return func(o *Options) { o.Dry = dry } }
