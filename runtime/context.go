// Package runtime binds configuration defaults to command execution and
// provides the sudo wrapper.
package runtime

import (
	"context"
	"path"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmrun/config"
	"github.com/mensylisir/xmrun/logger"
	"github.com/mensylisir/xmrun/runner"
)

// Context runs commands with configuration defaults, a working directory
// stack and command prefixes. Derived contexts never modify their parent.
type Context struct {
	config    *config.Config
	newRunner func() *runner.Runner
	cwds      []string
	prefixes  []string
}

// Option configures a Context.
type Option func(*Context)

// WithRunnerFactory sets how each command's Runner is created.
func WithRunnerFactory(f func() *runner.Runner) Option {
	return func(c *Context) { c.newRunner = f }
}

// New creates a Context. A nil cfg means built-in defaults.
func New(cfg *config.Config, opts ...Option) *Context {
	if cfg == nil {
		cfg = config.SetDefaults(nil)
	}
	c := &Context{
		config:    cfg,
		newRunner: func() *runner.Runner { return runner.New() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Context) Config() *config.Config {
	return c.config
}

func (c *Context) derive() *Context {
	d := *c
	d.cwds = append([]string(nil), c.cwds...)
	d.prefixes = append([]string(nil), c.prefixes...)
	return &d
}

// WithCd returns a Context whose commands run in dir. Relative dirs stack
// onto the current one.
func (c *Context) WithCd(dir string) *Context {
	d := c.derive()
	d.cwds = append(d.cwds, dir)
	return d
}

// WithPrefix returns a Context whose commands are preceded by
// "<prefix> &&".
func (c *Context) WithPrefix(prefix string) *Context {
	d := c.derive()
	d.prefixes = append(d.prefixes, prefix)
	return d
}

// Cwd is the effective working directory from the WithCd stack, or "".
func (c *Context) Cwd() string {
	if len(c.cwds) == 0 {
		return ""
	}
	start := 0
	for i := len(c.cwds) - 1; i >= 0; i-- {
		if strings.HasPrefix(c.cwds[i], "/") || strings.HasPrefix(c.cwds[i], "~") {
			start = i
			break
		}
	}
	return path.Join(c.cwds[start:]...)
}

// PrefixCommand renders "cd <dir> && <prefix> && ... && <command>".
func (c *Context) PrefixCommand(command string) string {
	parts := make([]string, 0, len(c.prefixes)+2)
	if cwd := c.Cwd(); cwd != "" {
		parts = append(parts, "cd "+strings.ReplaceAll(cwd, " ", `\ `))
	}
	parts = append(parts, c.prefixes...)
	parts = append(parts, command)
	return strings.Join(parts, " && ")
}

// Run executes command with the configured defaults overridden by opts.
func (c *Context) Run(ctx context.Context, command string, opts ...runner.Option) (*runner.Result, error) {
	options, err := c.options(opts...)
	if err != nil {
		return nil, err
	}
	full := c.PrefixCommand(command)
	logger.Log.DebugCommand(full, "running command")
	res, err := c.newRunner().Run(ctx, full, options)
	report(full, res, err)
	return res, err
}

// report logs how a rendered command ended.
func report(command string, res *runner.Result, err error) {
	var (
		auth    *runner.AuthFailure
		failure *runner.Failure
	)
	switch {
	case err == nil:
		logger.Log.DebugCommand(command, "command finished", logrus.Fields{"exited": res.Exited})
	case errors.As(err, &auth):
		logger.Log.WarnCommand(command, "sudo rejected the password", logrus.Fields{"prompt": auth.Prompt})
	case errors.As(err, &failure) && failure.Result != nil:
		logger.Log.InfoCommand(command, "command failed", logrus.Fields{"exited": failure.Result.Exited})
	default:
		logger.Log.ErrorCommand(command, err, "command did not complete")
	}
}

func (c *Context) options(opts ...runner.Option) (runner.Options, error) {
	base, err := c.config.RunOptions()
	if err != nil {
		return runner.Options{}, err
	}
	return base.Apply(opts...), nil
}
