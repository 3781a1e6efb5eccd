package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmrun/common"
)

// Log is the global logger. It starts as a warn-level console logger on
// stderr and is replaced by InitGlobalLogger.
var Log *XMLog

func init() {
	Log = newConsole(os.Stderr, logrus.WarnLevel, false)
}

// XMLog wraps *logrus.Logger with run-scoped helpers.
type XMLog struct {
	*logrus.Logger
}

// Options configures a logger.
type Options struct {
	// Dir enables daily-rotated file logging into Dir/xmrun.log instead of
	// console output.
	Dir     string
	Level   logrus.Level
	Verbose bool
	// Console receives console output. Defaults to os.Stderr so that logs
	// never mix with the command output on stdout.
	Console io.Writer
}

var defaultFieldsOrder = []string{
	common.RunID, common.Command, common.StreamName, common.Backend, common.Pid,
}

// InitGlobalLogger replaces Log.
func InitGlobalLogger(opts Options) error {
	l, err := NewXMLog(opts)
	if err != nil {
		return err
	}
	Log = l
	return nil
}

// NewXMLog builds a logger from opts.
func NewXMLog(opts Options) (*XMLog, error) {
	level := opts.Level
	if opts.Verbose {
		level = logrus.DebugLevel
	}
	if opts.Dir == "" {
		console := opts.Console
		if console == nil {
			console = os.Stderr
		}
		return newConsole(console, level, opts.Verbose), nil
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log output directory %s: %w", opts.Dir, err)
	}
	logFilePath := filepath.Join(opts.Dir, common.AppName+".log")
	writer, err := rotatelogs.New(
		logFilePath+".%Y%m%d",
		rotatelogs.WithLinkName(logFilePath),
		rotatelogs.WithMaxAge(7*24*time.Hour),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rotatelogs for %s: %w", logFilePath, err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetReportCaller(true)
	fileFormatter := &Formatter{
		TimestampFormat:        "2006-01-02 15:04:05.000 MST",
		NoColors:               true,
		DisplayLevelName:       ShowAll,
		FieldsDisplayWithOrder: defaultFieldsOrder,
		CustomCallerFormatter: func(frame *runtime.Frame) string {
			return fmt.Sprintf("[%s:%d]", filepath.Base(frame.File), frame.Line)
		},
	}
	logger.SetFormatter(fileFormatter)

	logWriters := lfshook.WriterMap{}
	for _, l := range logrus.AllLevels {
		if logger.IsLevelEnabled(l) {
			logWriters[l] = writer
		}
	}
	logger.AddHook(lfshook.NewHook(logWriters, fileFormatter))
	logger.SetOutput(io.Discard)
	return &XMLog{Logger: logger}, nil
}

func newConsole(w io.Writer, level logrus.Level, verbose bool) *XMLog {
	display := ShowAboveWarn
	if verbose {
		display = ShowAll
	}
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(w)
	logger.SetFormatter(&Formatter{
		TimestampFormat:        "15:04:05",
		DisplayLevelName:       display,
		DisableCaller:          true,
		FieldsDisplayWithOrder: defaultFieldsOrder,
		MaxFieldValueLength:    80,
	})
	return &XMLog{Logger: logger}
}

// WithRun scopes an entry to one command execution.
func (xl *XMLog) WithRun(runID string) *logrus.Entry {
	return xl.Logger.WithField(common.RunID, runID)
}

// WithCommand scopes an entry to a command line.
func (xl *XMLog) WithCommand(command string) *logrus.Entry {
	return xl.Logger.WithField(common.Command, command)
}

func (xl *XMLog) logCommand(level logrus.Level, command string, err error, message string, dynamicFields ...logrus.Fields) {
	entry := xl.WithCommand(command)
	if err != nil {
		entry = entry.WithError(err)
	}
	if len(dynamicFields) > 0 && dynamicFields[0] != nil {
		entry = entry.WithFields(dynamicFields[0])
	}
	entry.Log(level, message)
}

func (xl *XMLog) DebugCommand(command, message string, dynamicFields ...logrus.Fields) {
	xl.logCommand(logrus.DebugLevel, command, nil, message, dynamicFields...)
}

func (xl *XMLog) InfoCommand(command, message string, dynamicFields ...logrus.Fields) {
	xl.logCommand(logrus.InfoLevel, command, nil, message, dynamicFields...)
}

func (xl *XMLog) WarnCommand(command, message string, dynamicFields ...logrus.Fields) {
	xl.logCommand(logrus.WarnLevel, command, nil, message, dynamicFields...)
}

func (xl *XMLog) ErrorCommand(command string, err error, message string, dynamicFields ...logrus.Fields) {
	xl.logCommand(logrus.ErrorLevel, command, err, message, dynamicFields...)
}
