package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmrun/common"
	"github.com/mensylisir/xmrun/util"
)

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

type envBinding struct {
	key string
	set func(cfg *Config, value string) error
}

func boolSetter(field func(*Config) *bool) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		*field(cfg) = b
		return nil
	}
}

func boolPtrSetter(field func(*Config) **bool) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		*field(cfg) = util.BoolPtr(b)
		return nil
	}
}

func stringSetter(field func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		*field(cfg) = value
		return nil
	}
}

var envBindings = []envBinding{
	{"RUN_WARN", boolSetter(func(c *Config) *bool { return &c.Run.Warn })},
	{"RUN_HIDE", stringSetter(func(c *Config) *string { return &c.Run.Hide })},
	{"RUN_PTY", boolSetter(func(c *Config) *bool { return &c.Run.Pty })},
	{"RUN_FALLBACK", boolPtrSetter(func(c *Config) **bool { return &c.Run.Fallback })},
	{"RUN_ECHO", boolSetter(func(c *Config) *bool { return &c.Run.Echo })},
	{"RUN_ECHO_FORMAT", stringSetter(func(c *Config) *string { return &c.Run.EchoFormat })},
	{"RUN_ECHO_STDIN", boolPtrSetter(func(c *Config) **bool { return &c.Run.EchoStdin })},
	{"RUN_ENCODING", stringSetter(func(c *Config) *string { return &c.Run.Encoding })},
	{"RUN_SHELL", stringSetter(func(c *Config) *string { return &c.Run.Shell })},
	{"RUN_REPLACE_ENV", boolSetter(func(c *Config) *bool { return &c.Run.ReplaceEnv })},
	{"RUN_DRY", boolSetter(func(c *Config) *bool { return &c.Run.Dry })},
	{"RUN_TIMEOUT", func(c *Config, value string) error {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		c.Run.Timeout = d
		return nil
	}},
	{"SUDO_PASSWORD", stringSetter(func(c *Config) *string { return &c.Sudo.Password })},
	{"SUDO_USER", stringSetter(func(c *Config) *string { return &c.Sudo.User })},
	{"SUDO_PROMPT", stringSetter(func(c *Config) *string { return &c.Sudo.Prompt })},
}

// ApplyEnv overlays XMRUN_* environment variables onto cfg, e.g.
// XMRUN_RUN_WARN=true or XMRUN_SUDO_PASSWORD=secret.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	for _, b := range envBindings {
		key := common.EnvPrefix + b.key
		value, ok := lookup(key)
		if !ok {
			continue
		}
		if err := b.set(cfg, strings.TrimSpace(value)); err != nil {
			return errors.Wrapf(err, "invalid value for %s", key)
		}
	}
	return nil
}
