// Package runner executes one shell command locally, streaming its output to
// the terminal while capturing it, mirroring keyboard input into it, and
// answering prompts through watchers.
package runner

import (
	"context"
	"io"
	"os"
	goruntime "runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"

	"github.com/mensylisir/xmrun/common"
	"github.com/mensylisir/xmrun/hook"
	"github.com/mensylisir/xmrun/logger"
	xmtime "github.com/mensylisir/xmrun/time"
	"github.com/mensylisir/xmrun/util"
	"github.com/mensylisir/xmrun/watcher"
)

const readChunkSize = 1000

var (
	stdinPollInterval = 50 * time.Millisecond
	// killGracePeriod separates the interrupt from the SIGKILL when a run
	// has to be stopped.
	killGracePeriod = 2 * time.Second
	// drainTimeout bounds how long output may keep flowing after the process
	// exited, e.g. from a background grandchild holding the pipe open.
	drainTimeout = 2 * time.Second
)

// ErrRunnerReused is returned by a second call to Run on the same Runner.
var ErrRunnerReused = errors.New("runner already used; create a new Runner for each command")

type stopCause int

const (
	stopNone stopCause = iota
	stopInterrupted
	stopTimedOut
	stopPumpFailed
)

type readFunc func([]byte) (int, error)

func (f readFunc) Read(p []byte) (int, error) { return f(p) }

type waitResult struct {
	code int
	err  error
}

// Runner executes a single command. Create one per command.
type Runner struct {
	newBackend BackendFactory
	isTerminal func(io.Reader) bool
	log        *logrus.Entry

	id             string
	used           atomic.Bool
	state          atomic.Int32
	warnedFallback bool

	opts    Options
	enc     encoding.Encoding
	backend Backend

	// stdout and stderr are owned by their pump until the pumps are joined.
	stdout strings.Builder
	stderr strings.Builder

	writeMu sync.Mutex
	stdinMu sync.Mutex

	finished chan struct{}
	failed   chan struct{}
	failOnce sync.Once

	mu         sync.Mutex
	exception  error
	pumpErrs   []error
	watcherErr error
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithBackendFactory swaps the process backend, mostly for tests.
func WithBackendFactory(f BackendFactory) RunnerOption {
	return func(r *Runner) { r.newBackend = f }
}

// WithTerminalCheck replaces the "is this reader a terminal" probe.
func WithTerminalCheck(f func(io.Reader) bool) RunnerOption {
	return func(r *Runner) { r.isTerminal = f }
}

func WithLogger(entry *logrus.Entry) RunnerOption {
	return func(r *Runner) { r.log = entry }
}

func New(opts ...RunnerOption) *Runner {
	r := &Runner{
		newBackend: NewLocalBackend,
		isTerminal: IsTerminal,
		id:         uuid.NewString(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Log.WithRun(r.id)
	} else {
		r.log = r.log.WithField(common.RunID, r.id)
	}
	return r
}

// ID identifies this run; watcher stream IDs are derived from it.
func (r *Runner) ID() string {
	return r.id
}

func (r *Runner) State() common.RunState {
	return common.RunState(r.state.Load())
}

func (r *Runner) setState(s common.RunState) {
	r.state.Store(int32(s))
	r.log.Tracef("run state -> %s", s)
}

// StreamID is the identifier watchers see for the given stream of this run.
func (r *Runner) StreamID(stream string) string {
	return r.id + "/" + stream
}

// Run executes command and blocks until it has exited and all of its output
// has been consumed.
//
// Errors: *Failure for a non-zero exit without Warn or a watcher abort,
// *CommandTimedOut, *Interrupted when ctx is cancelled, *ThreadError when a
// stream pump broke, *PlatformError when a pty is required but unavailable.
// Whenever a Result was built it is returned alongside the error.
func (r *Runner) Run(ctx context.Context, command string, opts Options) (*Result, error) {
	if !r.used.CompareAndSwap(false, true) {
		return nil, ErrRunnerReused
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.opts = normalize(opts)
	enc, err := lookupEncoding(r.opts.Encoding)
	if err != nil {
		return nil, err
	}
	r.enc = enc
	log := r.log.WithField(common.Command, command)

	usePty := r.shouldUsePty()
	if r.opts.Echo || r.opts.Dry {
		if err := r.echo(command); err != nil {
			return nil, err
		}
	}

	result := &Result{
		Command:  command,
		Shell:    r.opts.Shell,
		Env:      r.opts.Env,
		Encoding: r.opts.Encoding,
		Pty:      usePty,
		Hide:     r.opts.Hide,
		Exited:   ExitUnknown,
	}
	if r.opts.Dry {
		result.Exited = 0
		r.setState(common.StateResultBuilt)
		return result, nil
	}

	backend, err := r.newBackend(usePty)
	if err != nil {
		return nil, err
	}
	r.backend = backend
	start := time.Now()
	if err := backend.Start(command, r.opts.Shell, r.environment()); err != nil {
		return nil, err
	}
	r.setState(common.StateRunning)
	log = log.WithFields(logrus.Fields{common.Pid: backend.Pid(), common.Backend: backendName(backend)})
	log.Debug("command started")

	r.finished = make(chan struct{})
	r.failed = make(chan struct{})

	var pumps sync.WaitGroup
	pumps.Add(2)
	go func() {
		defer pumps.Done()
		r.guard(common.StdoutStream, func() error {
			return r.pump(common.StdoutStream, backend.ReadStdout, r.opts.OutStream, &r.stdout)
		})
	}()
	go func() {
		defer pumps.Done()
		r.guard(common.StderrStream, func() error {
			return r.pump(common.StderrStream, backend.ReadStderr, r.opts.ErrStream, &r.stderr)
		})
	}()
	stdinDone := make(chan struct{})
	go func() {
		defer close(stdinDone)
		r.guard(common.StdinStream, r.pumpStdin)
	}()

	waitCh := make(chan waitResult, 1)
	go func() {
		code, err := backend.Wait()
		waitCh <- waitResult{code: code, err: err}
	}()

	cause, waited := r.supervise(ctx, log, waitCh)

	r.setState(common.StateDraining)
	close(r.finished)
	if !waitTimeout(&pumps, drainTimeout) {
		log.Warnf("output still open %s after exit, closing streams", xmtime.ShortDur(drainTimeout))
		backend.Close()
		pumps.Wait()
	}
	<-stdinDone
	backend.Close()
	r.setState(common.StateExited)

	result.Stdout = normalizeNewlines(r.stdout.String())
	result.Stderr = normalizeNewlines(r.stderr.String())
	result.Exited = waited.code
	r.mu.Lock()
	result.Exception = r.exception
	pumpErrs := r.pumpErrs
	watcherErr := r.watcherErr
	r.mu.Unlock()
	if waited.err != nil {
		pumpErrs = append(pumpErrs, errors.Wrap(waited.err, "failed to wait for command"))
	}
	r.setState(common.StateResultBuilt)
	log.WithField("exited", result.Exited).Debugf("command finished in %s", xmtime.Since(start))

	if len(pumpErrs) > 0 {
		return result, &ThreadError{Errors: pumpErrs}
	}
	switch cause {
	case stopInterrupted:
		return result, &Interrupted{Result: result, Err: ctx.Err()}
	case stopTimedOut:
		return result, &CommandTimedOut{Failure: Failure{Result: result}, Timeout: r.opts.Timeout}
	}
	if watcherErr != nil {
		return result, &Failure{Result: result, Reason: watcherErr}
	}
	if result.Failed() && !r.opts.Warn {
		return result, &Failure{Result: result}
	}
	return result, nil
}

// supervise waits for the process to exit, stopping it early on context
// cancellation, timeout or a broken pump. The first cause wins.
func (r *Runner) supervise(ctx context.Context, log *logrus.Entry, waitCh <-chan waitResult) (stopCause, waitResult) {
	var (
		cause    = stopNone
		timeoutC <-chan time.Time
		killC    <-chan time.Time
		done     = ctx.Done()
		failed   = r.failed
	)
	if r.opts.Timeout > 0 {
		timer := time.NewTimer(r.opts.Timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	terminate := func(c stopCause, why string) {
		if cause == stopNone {
			cause = c
		}
		log.Debugf("%s, interrupting command", why)
		if err := r.backend.SendInterrupt(); err != nil {
			log.WithError(err).Warn("failed to interrupt command")
		}
		if killC == nil {
			killC = time.After(killGracePeriod)
		}
	}

	for {
		select {
		case waited := <-waitCh:
			return cause, waited
		case <-done:
			done = nil
			terminate(stopInterrupted, "context cancelled")
		case <-timeoutC:
			timeoutC = nil
			terminate(stopTimedOut, "timed out after "+xmtime.ShortDur(r.opts.Timeout))
		case <-failed:
			failed = nil
			terminate(stopPumpFailed, "stream pump failed")
		case <-killC:
			killC = nil
			log.Warnf("command ignored interrupt for %s, killing it", xmtime.ShortDur(killGracePeriod))
			if err := r.backend.Kill(); err != nil {
				log.WithError(err).Error("failed to kill command")
			}
		}
	}
}

// guard runs a pump with panic recovery and records what it returned.
func (r *Runner) guard(stream string, fn func() error) {
	err := hook.Call(hook.Funcs{TryFunc: fn})
	if err == nil {
		return
	}
	var werr *watcher.WatcherError
	r.mu.Lock()
	if errors.As(err, &werr) {
		if r.watcherErr == nil {
			r.watcherErr = err
		}
	} else {
		r.pumpErrs = append(r.pumpErrs, errors.Wrapf(err, "%s pump", stream))
	}
	r.mu.Unlock()
	r.log.WithField(common.StreamName, stream).WithError(err).Debug("pump stopped")
	r.failOnce.Do(func() { close(r.failed) })
}

func (r *Runner) pump(stream string, read readFunc, out io.Writer, buf *strings.Builder) error {
	src := transform.NewReader(read, r.enc.NewDecoder())
	chunk := make([]byte, readChunkSize)
	hidden := r.opts.Hide.Hides(stream)
	streamID := r.StreamID(stream)

	for {
		n, err := src.Read(chunk)
		if n > 0 {
			data := string(chunk[:n])
			if !hidden {
				if werr := r.writeLocal(out, data); werr != nil {
					return errors.Wrapf(werr, "failed to write %s locally", stream)
				}
			}
			buf.WriteString(data)
			if len(r.opts.Watchers) > 0 {
				if werr := r.respond(streamID, buf.String()); werr != nil {
					return werr
				}
			}
		}
		if err != nil {
			switch {
			case err == io.EOF:
				return nil
			case errors.Is(err, os.ErrClosed) && r.isFinished():
				return nil
			case r.backend.UsingPty() && isBenignReadError(err):
				r.mu.Lock()
				r.exception = err
				r.mu.Unlock()
				return nil
			default:
				return errors.Wrapf(err, "failed to read %s", stream)
			}
		}
	}
}

func (r *Runner) respond(streamID, stream string) error {
	for _, w := range r.opts.Watchers {
		responses, err := w.Submit(streamID, stream)
		if err != nil {
			return err
		}
		for _, response := range responses {
			encoded, err := r.enc.NewEncoder().String(response)
			if err != nil {
				return errors.Wrap(err, "failed to encode watcher response")
			}
			if err := r.writeStdin([]byte(encoded)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Runner) pumpStdin() error {
	in := r.opts.InStream
	if r.opts.DisableStdin || in == nil {
		return nil
	}
	echo := r.shouldEchoStdin(in)

	if f, ok := in.(fdReader); ok && canPoll {
		fd := int(f.Fd())
		if r.isTerminal(in) {
			restore, err := characterBuffered(fd)
			if err != nil {
				r.log.WithError(err).Debug("stdin left in line-buffered mode")
			}
			defer restore()
		}
		buf := make([]byte, readChunkSize)
		for !r.isFinished() {
			ready, err := readyForReading(fd, stdinPollInterval)
			if err != nil {
				return errors.Wrap(err, "failed to poll stdin")
			}
			if !ready {
				continue
			}
			n, err := f.Read(buf)
			if done, err := r.forwardStdin(buf[:n], err, echo); done {
				return err
			}
		}
		return nil
	}

	// Plain readers cannot be polled; a helper goroutine blocks on them
	// instead and is abandoned if the command finishes first.
	type chunk struct {
		data []byte
		err  error
	}
	chunks := make(chan chunk)
	go func() {
		buf := make([]byte, readChunkSize)
		for {
			n, err := in.Read(buf)
			select {
			case chunks <- chunk{data: append([]byte(nil), buf[:n]...), err: err}:
			case <-r.finished:
				return
			}
			if err != nil {
				return
			}
		}
	}()
	for {
		select {
		case <-r.finished:
			return nil
		case c := <-chunks:
			if done, err := r.forwardStdin(c.data, c.err, echo); done {
				return err
			}
		}
	}
}

// forwardStdin passes keyboard input to the subprocess and reports whether
// the stdin pump should stop.
func (r *Runner) forwardStdin(data []byte, readErr error, echo bool) (bool, error) {
	if len(data) > 0 {
		if err := r.writeStdin(data); err != nil {
			return true, err
		}
		if echo {
			if err := r.writeLocal(r.opts.OutStream, string(data)); err != nil {
				return true, errors.Wrap(err, "failed to echo stdin")
			}
		}
	}
	if readErr == io.EOF {
		// Watchers may still need to answer prompts after local input ends.
		if !r.backend.UsingPty() && len(r.opts.Watchers) == 0 {
			r.stdinMu.Lock()
			err := r.backend.CloseStdin()
			r.stdinMu.Unlock()
			if err != nil && !util.IsErrPipeClosed(err) {
				return true, errors.Wrap(err, "failed to close subprocess stdin")
			}
		}
		return true, nil
	}
	if readErr != nil {
		return true, errors.Wrap(readErr, "failed to read stdin")
	}
	return false, nil
}

func (r *Runner) writeStdin(data []byte) error {
	r.stdinMu.Lock()
	defer r.stdinMu.Unlock()
	if _, err := r.backend.WriteStdin(data); err != nil {
		if util.IsErrPipeClosed(err) || (r.backend.UsingPty() && isBenignReadError(err)) {
			return nil
		}
		return errors.Wrap(err, "failed to write to subprocess stdin")
	}
	return nil
}

func (r *Runner) writeLocal(out io.Writer, data string) error {
	if out == nil {
		return nil
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	_, err := io.WriteString(out, data)
	return err
}

func (r *Runner) echo(command string) error {
	line, err := util.RenderString(r.opts.EchoFormat, util.Data{"Command": command})
	if err != nil {
		return errors.Wrap(err, "failed to render echo format")
	}
	return r.writeLocal(r.opts.OutStream, line+"\n")
}

func (r *Runner) isFinished() bool {
	select {
	case <-r.finished:
		return true
	default:
		return false
	}
}

// shouldUsePty decides the backend, downgrading to pipes when fallback is
// allowed and there is no terminal to mirror.
func (r *Runner) shouldUsePty() bool {
	if !r.opts.Pty {
		return false
	}
	if !r.opts.Fallback {
		return true
	}
	if ptySupported && r.isTerminal(r.opts.InStream) {
		return true
	}
	if !r.warnedFallback {
		r.warnedFallback = true
		r.log.Warn("pty requested but no terminal is available for input, falling back to pipes")
	}
	return false
}

func (r *Runner) shouldEchoStdin(in io.Reader) bool {
	if r.opts.EchoStdin != nil {
		return *r.opts.EchoStdin
	}
	return !r.backend.UsingPty() && r.isTerminal(in)
}

func (r *Runner) environment() []string {
	if r.opts.ReplaceEnv {
		return util.EnvSlice(r.opts.Env)
	}
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	for k, v := range r.opts.Env {
		env[k] = v
	}
	return util.EnvSlice(env)
}

func normalize(opts Options) Options {
	if opts.Shell == "" {
		opts.Shell = DefaultShell()
	}
	if opts.Encoding == "" {
		opts.Encoding = common.DefaultEncoding
	}
	if opts.EchoFormat == "" {
		opts.EchoFormat = common.DefaultEchoFormat
	}
	if opts.InStream == nil {
		opts.InStream = os.Stdin
	}
	if opts.OutStream == nil {
		opts.OutStream = os.Stdout
	}
	if opts.ErrStream == nil {
		opts.ErrStream = os.Stderr
	}
	return opts
}

func normalizeNewlines(s string) string {
	if goruntime.GOOS == "windows" {
		return s
	}
	return strings.ReplaceAll(s, "\r\n", "\n")
}

func backendName(b Backend) string {
	if b.UsingPty() {
		return "pty"
	}
	return "pipe"
}

func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

// Promise is a command running in the background.
type Promise struct {
	done   chan struct{}
	result *Result
	err    error
}

// Start runs command on a new goroutine.
func (r *Runner) Start(ctx context.Context, command string, opts Options) *Promise {
	p := &Promise{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.result, p.err = r.Run(ctx, command, opts)
	}()
	return p
}

// Done is closed once the command has finished.
func (p *Promise) Done() <-chan struct{} {
	return p.done
}

// Join waits for the command and returns what Run would have.
func (p *Promise) Join() (*Result, error) {
	<-p.done
	return p.result, p.err
}
