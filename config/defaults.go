package config

import (
	"github.com/mensylisir/xmrun/common"
	"github.com/mensylisir/xmrun/runner"
	"github.com/mensylisir/xmrun/util"
)

// SetDefaults fills every unset field that has a non-zero default.
func SetDefaults(cfg *Config) *Config {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Run.Hide == "" {
		cfg.Run.Hide = runner.HideNone.String()
	}
	if cfg.Run.Fallback == nil {
		cfg.Run.Fallback = util.BoolPtr(true)
	}
	if cfg.Run.EchoFormat == "" {
		cfg.Run.EchoFormat = common.DefaultEchoFormat
	}
	if cfg.Run.Encoding == "" {
		cfg.Run.Encoding = common.DefaultEncoding
	}
	if cfg.Run.Shell == "" {
		cfg.Run.Shell = runner.DefaultShell()
	}
	if cfg.Sudo.Prompt == "" {
		cfg.Sudo.Prompt = common.DefaultSudoPrompt
	}
	return cfg
}
