package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mensylisir/xmrun/common"
	"github.com/mensylisir/xmrun/util"
)

// Loader reads a Config from a YAML file.
type Loader struct {
	filePath string
	lookup   LookupFunc
}

// NewLoader creates a loader for filePath. An empty path means
// ~/.xmrun.yaml, which may be absent.
func NewLoader(filePath string) *Loader {
	return &Loader{filePath: filePath, lookup: os.LookupEnv}
}

// WithLookup replaces the environment source, mostly for tests.
func (l *Loader) WithLookup(lookup LookupFunc) *Loader {
	l.lookup = lookup
	return l
}

// DefaultPath is ~/.xmrun.yaml.
func DefaultPath() (string, error) {
	home, err := util.Home()
	if err != nil {
		return "", errors.Wrap(err, "failed to locate home directory")
	}
	return filepath.Join(home, common.DefaultConfigFile), nil
}

// Load reads the file, applies defaults and the environment overlay, then
// validates. Precedence, lowest first: defaults, file, environment.
func (l *Loader) Load() (*Config, error) {
	path := l.filePath
	optional := false
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path, optional = p, true
	}

	cfg := &Config{}
	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal config YAML from '%s'", path)
		}
	case optional && errors.Is(err, os.ErrNotExist):
	default:
		return nil, errors.Wrapf(err, "failed to read config file '%s'", path)
	}

	if err := ApplyEnv(cfg, l.lookup); err != nil {
		return nil, err
	}
	SetDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config '%s'", path)
	}
	return cfg, nil
}
