package config

import (
	"time"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmrun/runner"
	"github.com/mensylisir/xmrun/watcher"
)

// Config is the top-level configuration file structure.
type Config struct {
	Run  RunSpec  `yaml:"run"`
	Sudo SudoSpec `yaml:"sudo"`
}

// RunSpec holds the defaults every Run starts from.
type RunSpec struct {
	Warn       bool              `yaml:"warn,omitempty"`
	Hide       string            `yaml:"hide,omitempty"` // none, out, err, both
	Pty        bool              `yaml:"pty,omitempty"`
	Fallback   *bool             `yaml:"fallback,omitempty"` // Defaults to true
	Echo       bool              `yaml:"echo,omitempty"`
	EchoFormat string            `yaml:"echoFormat,omitempty"`
	EchoStdin  *bool             `yaml:"echoStdin,omitempty"` // Unset means automatic
	Encoding   string            `yaml:"encoding,omitempty"`
	Shell      string            `yaml:"shell,omitempty"`
	Env        map[string]string `yaml:"env,omitempty"`
	ReplaceEnv bool              `yaml:"replaceEnv,omitempty"`
	Timeout    time.Duration     `yaml:"timeout,omitempty"` // e.g. "30s"
	Dry        bool              `yaml:"dry,omitempty"`
	Watchers   []WatcherSpec     `yaml:"watchers,omitempty"`
}

// WatcherSpec declares a prompt responder. Setting Sentinel makes it a
// failing responder.
type WatcherSpec struct {
	Pattern  string `yaml:"pattern"`
	Response string `yaml:"response"`
	Sentinel string `yaml:"sentinel,omitempty"`
}

// SudoSpec holds the sudo wrapper defaults.
type SudoSpec struct {
	Password string `yaml:"password,omitempty"`
	User     string `yaml:"user,omitempty"`
	Prompt   string `yaml:"prompt,omitempty"`
}

// Validate checks values that cannot be repaired by defaulting.
func (c *Config) Validate() error {
	if _, err := runner.ParseHide(c.Run.Hide); err != nil {
		return errors.Wrap(err, "config validation failed: run.hide")
	}
	if c.Run.Timeout < 0 {
		return errors.Errorf("config validation failed: run.timeout must not be negative, got %s", c.Run.Timeout)
	}
	for i, w := range c.Run.Watchers {
		if w.Pattern == "" {
			return errors.Errorf("config validation failed: run.watchers[%d].pattern is required", i)
		}
	}
	return nil
}

// RunOptions converts the run section into runner options. Watchers are
// freshly built on every call, so no two runs share cursor state through
// the configuration.
func (c *Config) RunOptions() (runner.Options, error) {
	hide, err := runner.ParseHide(c.Run.Hide)
	if err != nil {
		return runner.Options{}, err
	}
	opts := runner.DefaultOptions()
	opts.Warn = c.Run.Warn
	opts.Hide = hide
	opts.Pty = c.Run.Pty
	if c.Run.Fallback != nil {
		opts.Fallback = *c.Run.Fallback
	}
	opts.Echo = c.Run.Echo
	if c.Run.EchoFormat != "" {
		opts.EchoFormat = c.Run.EchoFormat
	}
	opts.EchoStdin = c.Run.EchoStdin
	if c.Run.Encoding != "" {
		opts.Encoding = c.Run.Encoding
	}
	if c.Run.Shell != "" {
		opts.Shell = c.Run.Shell
	}
	if len(c.Run.Env) > 0 {
		opts.Env = make(map[string]string, len(c.Run.Env))
		for k, v := range c.Run.Env {
			opts.Env[k] = v
		}
	}
	opts.ReplaceEnv = c.Run.ReplaceEnv
	opts.Timeout = c.Run.Timeout
	opts.Dry = c.Run.Dry

	for i, spec := range c.Run.Watchers {
		w, err := spec.build()
		if err != nil {
			return runner.Options{}, errors.Wrapf(err, "run.watchers[%d]", i)
		}
		opts.Watchers = append(opts.Watchers, w)
	}
	return opts, nil
}

func (w WatcherSpec) build() (watcher.StreamWatcher, error) {
	if w.Sentinel != "" {
		return watcher.NewFailingResponder(w.Pattern, w.Response, w.Sentinel)
	}
	return watcher.NewResponder(w.Pattern, w.Response)
}
