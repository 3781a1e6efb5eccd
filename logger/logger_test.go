package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/xmrun/common"
)

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
func (h *testHook) LastEntry() *logrus.Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.Entries) == 0 {
		return nil
	}
	return h.Entries[len(h.Entries)-1]
}

func TestDefaultLoggerIsUsable(t *testing.T) {
	require.NotNil(t, Log)
	assert.Equal(t, logrus.WarnLevel, Log.GetLevel())
}

func TestNewXMLog_Console(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewXMLog(Options{Level: logrus.InfoLevel, Console: &buf})
	require.NoError(t, err)

	l.WithRun("abc").WithField(common.Command, "ls").Info("started")
	l.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "[RunID:abc | Command:ls] started")
	assert.NotContains(t, out, "hidden")
	assert.NotContains(t, out, "[INFO]", "console shows level names only from WARN up")
}

func TestNewXMLog_Verbose(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewXMLog(Options{Level: logrus.WarnLevel, Verbose: true, Console: &buf})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())

	l.Debug("details")
	assert.Contains(t, buf.String(), "[DEBU]")
	assert.Contains(t, buf.String(), "details")
}

func TestNewXMLog_File(t *testing.T) {
	dir := t.TempDir()
	l, err := NewXMLog(Options{Dir: dir, Level: logrus.DebugLevel})
	require.NoError(t, err)

	l.WarnCommand("make", "slow build", logrus.Fields{"attempt": 2})

	path := filepath.Join(dir, common.AppName+".log")
	var content []byte
	require.Eventually(t, func() bool {
		content, err = os.ReadFile(path)
		return err == nil && len(content) > 0
	}, 2*time.Second, 20*time.Millisecond)

	line := string(content)
	assert.Contains(t, line, "[WARN]")
	assert.Contains(t, line, "[Command:make | attempt:2] slow build")
	assert.Contains(t, line, "[logger.go:")
}

func TestInitGlobalLogger(t *testing.T) {
	prev := Log
	defer func() { Log = prev }()

	var buf bytes.Buffer
	require.NoError(t, InitGlobalLogger(Options{Level: logrus.InfoLevel, Console: &buf}))
	assert.NotSame(t, prev, Log)
	Log.InfoCommand("uptime", "ran")
	assert.Contains(t, buf.String(), "[Command:uptime] ran")
}

func TestCommandHelpers(t *testing.T) {
	l, err := NewXMLog(Options{Level: logrus.TraceLevel, Console: &bytes.Buffer{}})
	require.NoError(t, err)
	hook := &testHook{}
	l.AddHook(hook)

	tests := []struct {
		name  string
		log   func()
		level logrus.Level
	}{
		{"debug", func() { l.DebugCommand("c", "m") }, logrus.DebugLevel},
		{"info", func() { l.InfoCommand("c", "m") }, logrus.InfoLevel},
		{"warn", func() { l.WarnCommand("c", "m") }, logrus.WarnLevel},
		{"error", func() { l.ErrorCommand("c", errors.New("boom"), "m") }, logrus.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.log()
			entry := hook.LastEntry()
			require.NotNil(t, entry)
			assert.Equal(t, tt.level, entry.Level)
			assert.Equal(t, "c", entry.Data[common.Command])
			assert.Equal(t, "m", entry.Message)
		})
	}
	assert.EqualError(t, hook.LastEntry().Data[logrus.ErrorKey].(error), "boom")
}

func TestFormatter(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	entry := &logrus.Entry{
		Time:    ts,
		Level:   logrus.ErrorLevel,
		Message: "failed",
		Data: logrus.Fields{
			"zeta":         1,
			common.Pid:     77,
			common.RunID:   "r1",
			common.Command: strings.Repeat("x", 12),
		},
	}

	tests := []struct {
		name string
		f    *Formatter
		want string
	}{
		{
			name: "ordered fields",
			f: &Formatter{TimestampFormat: "15:04", NoColors: true, FieldsDisplayWithOrder: defaultFieldsOrder},
			want: "12:30 [ERRO] [RunID:r1 | Command:xxxxxxxxxxxx | Pid:77 | zeta:1] failed\n",
		},
		{
			name: "alphabetical, truncated, keys hidden",
			f:    &Formatter{DisableTimestamp: true, NoColors: true, HideKeys: true, MaxFieldValueLength: 4, FieldSeparator: ","},
			want: "[ERRO] [xxxx...,77,r1,1] failed\n",
		},
		{
			name: "level hidden",
			f:    &Formatter{DisableTimestamp: true, DisplayLevelName: HideAll, FieldsDisplayWithOrder: []string{common.RunID}},
			want: "[RunID:r1 | Command:xxxxxxxxxxxx | Pid:77 | zeta:1] failed\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.f.Format(entry)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))
		})
	}
}
