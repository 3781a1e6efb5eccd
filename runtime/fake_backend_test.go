package runtime

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/mensylisir/xmrun/logger"
	"github.com/mensylisir/xmrun/runner"
)

// scriptedBackend plays a subprocess whose behaviour is a Go function.
type scriptedBackend struct {
	script func(p *scriptedBackend)

	mu       sync.Mutex
	commands []string
	stdin    bytes.Buffer

	outR, errR *io.PipeReader
	outW, errW *io.PipeWriter
	exitCh     chan int
	exitOnce   sync.Once
}

func (b *scriptedBackend) Start(command, shell string, env []string) error {
	b.mu.Lock()
	b.commands = append(b.commands, command)
	b.stdin.Reset()
	b.mu.Unlock()
	b.outR, b.outW = io.Pipe()
	b.errR, b.errW = io.Pipe()
	b.exitCh = make(chan int, 1)
	b.exitOnce = sync.Once{}
	if b.script != nil {
		go b.script(b)
	}
	return nil
}

func (b *scriptedBackend) print(s string) { b.outW.Write([]byte(s)) }

func (b *scriptedBackend) exit(code int) {
	b.exitOnce.Do(func() {
		b.outW.Close()
		b.errW.Close()
		b.exitCh <- code
	})
}

func (b *scriptedBackend) awaitStdin(want string) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		b.mu.Lock()
		got := b.stdin.String()
		b.mu.Unlock()
		if strings.Contains(got, want) {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func (b *scriptedBackend) lastCommand() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.commands) == 0 {
		return ""
	}
	return b.commands[len(b.commands)-1]
}

func (b *scriptedBackend) ReadStdout(p []byte) (int, error) { return b.outR.Read(p) }
func (b *scriptedBackend) ReadStderr(p []byte) (int, error) { return b.errR.Read(p) }
func (b *scriptedBackend) WriteStdin(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stdin.Write(p)
}
func (b *scriptedBackend) CloseStdin() error    { return nil }
func (b *scriptedBackend) Wait() (int, error)   { return <-b.exitCh, nil }
func (b *scriptedBackend) SendInterrupt() error { b.exit(-2); return nil }
func (b *scriptedBackend) Kill() error          { b.exit(-9); return nil }
func (b *scriptedBackend) Close() error         { return nil }
func (b *scriptedBackend) UsingPty() bool       { return false }
func (b *scriptedBackend) Pid() int             { return 1 }

func (b *scriptedBackend) runnerFactory() func() *runner.Runner {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return func() *runner.Runner {
		return runner.New(
			runner.WithBackendFactory(func(bool) (runner.Backend, error) { return b, nil }),
			runner.WithLogger(logrus.NewEntry(log)),
			runner.WithTerminalCheck(func(io.Reader) bool { return false }),
		)
	}
}

// quiet keeps test output off the terminal.
func quiet() []runner.Option {
	return []runner.Option{
		runner.WithInStream(strings.NewReader("")),
		runner.WithOutStream(io.Discard),
		runner.WithErrStream(io.Discard),
	}
}

// captureLog points the global logger at a test hook for the rest of t.
func captureLog(t *testing.T) *test.Hook {
	prev := logger.Log
	l, hook := test.NewNullLogger()
	l.SetLevel(logrus.DebugLevel)
	logger.Log = &logger.XMLog{Logger: l}
	t.Cleanup(func() { logger.Log = prev })
	return hook
}
