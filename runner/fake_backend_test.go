package runner

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a scripted subprocess. The script runs on its own goroutine
// after Start and drives output and exit through a fakeProcess.
type fakeBackend struct {
	script func(p *fakeProcess)
	// onInterrupt replaces the default reaction to SIGINT, which is to exit -2.
	onInterrupt func(p *fakeProcess)
	// stdoutEOF is returned in place of io.EOF once stdout is drained.
	stdoutEOF error
	stderrErr error

	mu          sync.Mutex
	pty         bool
	requested   []bool
	command     string
	shell       string
	env         []string
	stdin       bytes.Buffer
	stdinClosed bool
	interrupts  int
	kills       int

	proc *fakeProcess
	outR *io.PipeReader
	errR *io.PipeReader
}

type fakeProcess struct {
	b        *fakeBackend
	out      *io.PipeWriter
	err      *io.PipeWriter
	exitCh   chan int
	exitOnce sync.Once
}

func (p *fakeProcess) Stdout(s string) { p.out.Write([]byte(s)) }

func (p *fakeProcess) Stderr(s string) { p.err.Write([]byte(s)) }

func (p *fakeProcess) Exit(code int) {
	p.exitOnce.Do(func() {
		p.out.Close()
		p.err.Close()
		p.exitCh <- code
	})
}

// AwaitStdin blocks until the subprocess has been sent want.
func (p *fakeProcess) AwaitStdin(want string) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(p.b.Stdin(), want) {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func (b *fakeBackend) factory(usePty bool) (Backend, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requested = append(b.requested, usePty)
	b.pty = usePty
	return b, nil
}

func (b *fakeBackend) Start(command, shell string, env []string) error {
	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	b.mu.Lock()
	b.command, b.shell, b.env = command, shell, env
	b.outR, b.errR = outR, errR
	b.proc = &fakeProcess{b: b, out: outW, err: errW, exitCh: make(chan int, 1)}
	b.mu.Unlock()
	if b.script != nil {
		go b.script(b.proc)
	}
	return nil
}

func (b *fakeBackend) ReadStdout(p []byte) (int, error) {
	n, err := b.outR.Read(p)
	if err == io.EOF && b.stdoutEOF != nil {
		return n, b.stdoutEOF
	}
	return n, err
}

func (b *fakeBackend) ReadStderr(p []byte) (int, error) {
	if b.stderrErr != nil {
		return 0, b.stderrErr
	}
	if b.UsingPty() {
		return 0, io.EOF
	}
	return b.errR.Read(p)
}

func (b *fakeBackend) WriteStdin(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stdin.Write(p)
}

func (b *fakeBackend) CloseStdin() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stdinClosed = true
	return nil
}

func (b *fakeBackend) Wait() (int, error) {
	return <-b.proc.exitCh, nil
}

func (b *fakeBackend) SendInterrupt() error {
	b.mu.Lock()
	b.interrupts++
	b.mu.Unlock()
	if b.onInterrupt != nil {
		b.onInterrupt(b.proc)
		return nil
	}
	b.proc.Exit(-2)
	return nil
}

func (b *fakeBackend) Kill() error {
	b.mu.Lock()
	b.kills++
	b.mu.Unlock()
	b.proc.Exit(-9)
	return nil
}

func (b *fakeBackend) Close() error { return nil }

func (b *fakeBackend) UsingPty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pty
}

func (b *fakeBackend) Pid() int { return 4242 }

func (b *fakeBackend) Stdin() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stdin.String()
}

func (b *fakeBackend) counts() (interrupts, kills int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.interrupts, b.kills
}

// exits returns a script that prints stdout/stderr and exits with code.
func exits(stdout, stderr string, code int) func(p *fakeProcess) {
	return func(p *fakeProcess) {
		if stdout != "" {
			p.Stdout(stdout)
		}
		if stderr != "" {
			p.Stderr(stderr)
		}
		p.Exit(code)
	}
}

type testHook struct {
	mu      sync.Mutex
	Entries []*logrus.Entry
}

func (h *testHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *testHook) Fire(entry *logrus.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Entries = append(h.Entries, entry)
	return nil
}

func (h *testHook) count(level logrus.Level, substr string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.Entries {
		if e.Level == level && strings.Contains(e.Message, substr) {
			n++
		}
	}
	return n
}

type harness struct {
	backend *fakeBackend
	runner  *Runner
	hook    *testHook
	out     *bytes.Buffer
	err     *bytes.Buffer
	opts    Options
}

func newHarness(t *testing.T, b *fakeBackend, ropts ...RunnerOption) *harness {
	t.Helper()
	h := &harness{backend: b, hook: &testHook{}, out: &bytes.Buffer{}, err: &bytes.Buffer{}}
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.TraceLevel)
	log.AddHook(h.hook)
	ropts = append([]RunnerOption{
		WithBackendFactory(b.factory),
		WithLogger(logrus.NewEntry(log)),
		WithTerminalCheck(func(io.Reader) bool { return false }),
	}, ropts...)
	h.runner = New(ropts...)
	require.NotEmpty(t, h.runner.ID())

	h.opts = DefaultOptions()
	h.opts.InStream = strings.NewReader("")
	h.opts.OutStream = h.out
	h.opts.ErrStream = h.err
	return h
}

func shortTimers(t *testing.T) {
	t.Helper()
	kill, drain := killGracePeriod, drainTimeout
	killGracePeriod, drainTimeout = 20*time.Millisecond, 200*time.Millisecond
	t.Cleanup(func() { killGracePeriod, drainTimeout = kill, drain })
}
