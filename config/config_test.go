package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/xmrun/common"
	"github.com/mensylisir/xmrun/runner"
	"github.com/mensylisir/xmrun/watcher"
)

const sampleConfigYAML = `
run:
  warn: true
  hide: err
  pty: true
  fallback: false
  echo: true
  encoding: latin1
  shell: /bin/sh
  timeout: 30s
  env:
    LANG: C
  watchers:
    - pattern: "Continue\\? \\[y/N\\]"
      response: "y\n"
    - pattern: "Passphrase: "
      response: "hunter2\n"
      sentinel: "Bad passphrase"
sudo:
  user: deploy
  prompt: "pw: "
`

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xmrun.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoader_Load(t *testing.T) {
	cfg, err := NewLoader(writeConfig(t, sampleConfigYAML)).WithLookup(noEnv).Load()
	require.NoError(t, err)

	assert.True(t, cfg.Run.Warn)
	assert.Equal(t, "err", cfg.Run.Hide)
	assert.True(t, cfg.Run.Pty)
	require.NotNil(t, cfg.Run.Fallback)
	assert.False(t, *cfg.Run.Fallback)
	assert.Equal(t, "latin1", cfg.Run.Encoding)
	assert.Equal(t, "/bin/sh", cfg.Run.Shell)
	assert.Equal(t, 30*time.Second, cfg.Run.Timeout)
	assert.Equal(t, map[string]string{"LANG": "C"}, cfg.Run.Env)
	assert.Len(t, cfg.Run.Watchers, 2)
	assert.Equal(t, "deploy", cfg.Sudo.User)
	assert.Equal(t, "pw: ", cfg.Sudo.Prompt)
	assert.Equal(t, common.DefaultEchoFormat, cfg.Run.EchoFormat, "unset fields are defaulted")
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "absent.yaml")).WithLookup(noEnv).Load()
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestLoader_MissingDefaultFileIsOptional(t *testing.T) {
	path, err := DefaultPath()
	require.NoError(t, err)
	if _, statErr := os.Stat(path); statErr == nil {
		t.Skipf("%s exists on this machine", path)
	}

	cfg, err := NewLoader("").WithLookup(noEnv).Load()
	require.NoError(t, err)
	assert.Equal(t, common.DefaultSudoPrompt, cfg.Sudo.Prompt)
	assert.True(t, *cfg.Run.Fallback)
}

func TestLoader_BadYAML(t *testing.T) {
	_, err := NewLoader(writeConfig(t, "run: [")).WithLookup(noEnv).Load()
	assert.ErrorContains(t, err, "failed to unmarshal config YAML")
}

func TestLoader_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad hide", "run:\n  hide: sideways\n", "run.hide"},
		{"watcher without pattern", "run:\n  watchers:\n    - response: x\n", "run.watchers[0].pattern"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(writeConfig(t, tt.yaml)).WithLookup(noEnv).Load()
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	path := writeConfig(t, "run:\n  warn: false\nsudo:\n  password: fromfile\n")
	cfg, err := NewLoader(path).WithLookup(envMap(map[string]string{
		"XMRUN_RUN_WARN":      "true",
		"XMRUN_RUN_FALLBACK":  "false",
		"XMRUN_RUN_TIMEOUT":   "1m30s",
		"XMRUN_RUN_HIDE":      "both",
		"XMRUN_SUDO_PASSWORD": "fromenv",
	})).Load()
	require.NoError(t, err)

	assert.True(t, cfg.Run.Warn)
	assert.False(t, *cfg.Run.Fallback)
	assert.Equal(t, 90*time.Second, cfg.Run.Timeout)
	assert.Equal(t, "both", cfg.Run.Hide)
	assert.Equal(t, "fromenv", cfg.Sudo.Password, "environment beats the file")

	err = ApplyEnv(&Config{}, envMap(map[string]string{"XMRUN_RUN_PTY": "maybe"}))
	assert.ErrorContains(t, err, "XMRUN_RUN_PTY")
}

func TestConfig_RunOptions(t *testing.T) {
	cfg, err := NewLoader(writeConfig(t, sampleConfigYAML)).WithLookup(noEnv).Load()
	require.NoError(t, err)

	opts, err := cfg.RunOptions()
	require.NoError(t, err)
	assert.True(t, opts.Warn)
	assert.Equal(t, runner.HideStderr, opts.Hide)
	assert.True(t, opts.Pty)
	assert.False(t, opts.Fallback)
	assert.True(t, opts.Echo)
	assert.Equal(t, "/bin/sh", opts.Shell)
	assert.Equal(t, 30*time.Second, opts.Timeout)
	require.Len(t, opts.Watchers, 2)
	assert.IsType(t, &watcher.Responder{}, opts.Watchers[0])
	assert.IsType(t, &watcher.FailingResponder{}, opts.Watchers[1])

	// Each call yields independent watchers and env maps.
	again, err := cfg.RunOptions()
	require.NoError(t, err)
	assert.NotSame(t, opts.Watchers[0], again.Watchers[0])
	opts.Env["LANG"] = "changed"
	assert.Equal(t, "C", cfg.Run.Env["LANG"])
}

func TestSetDefaults(t *testing.T) {
	cfg := SetDefaults(nil)
	assert.Equal(t, "none", cfg.Run.Hide)
	assert.True(t, *cfg.Run.Fallback)
	assert.Equal(t, common.DefaultEncoding, cfg.Run.Encoding)
	assert.Equal(t, runner.DefaultShell(), cfg.Run.Shell)
	assert.Equal(t, common.DefaultSudoPrompt, cfg.Sudo.Prompt)
	assert.Nil(t, cfg.Run.EchoStdin)
}
