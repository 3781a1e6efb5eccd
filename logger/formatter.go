package logger

import (
	"bytes"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	resetColorCode         = 0
	defaultFieldSeparator  = " | "
	defaultTimestampFormat = time.RFC3339
)

// LevelNameDisplayMode defines how log level names are displayed.
type LevelNameDisplayMode int

const (
	// ShowAll shows all level names.
	ShowAll LevelNameDisplayMode = iota
	// ShowAboveWarn shows level names for WARN and worse.
	ShowAboveWarn
	// ShowAboveError shows level names for ERROR and worse.
	ShowAboveError
	// HideAll hides all level names.
	HideAll
)

// Formatter renders entries as
// "<time> [LEVL] [Key:value | Key:value] message (file:line func)".
type Formatter struct {
	TimestampFormat  string
	DisableTimestamp bool
	NoColors         bool
	DisplayLevelName LevelNameDisplayMode
	// FieldsDisplayWithOrder lists field keys shown first, in this order.
	// Remaining fields follow alphabetically.
	FieldsDisplayWithOrder []string
	FieldSeparator         string
	HideKeys               bool
	// MaxFieldValueLength truncates long values such as commands. 0 disables.
	MaxFieldValueLength   int
	DisableCaller         bool
	CustomCallerFormatter func(*runtime.Frame) string
}

// Format implements logrus.Formatter.
func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	b := &bytes.Buffer{}

	if !f.DisableTimestamp {
		format := f.TimestampFormat
		if format == "" {
			format = defaultTimestampFormat
		}
		b.WriteString(entry.Time.Format(format))
		b.WriteByte(' ')
	}

	if f.showLevel(entry.Level) {
		level := strings.ToUpper(entry.Level.String())
		if len(level) > 4 {
			level = level[:4]
		}
		if f.NoColors {
			fmt.Fprintf(b, "[%s] ", level)
		} else {
			fmt.Fprintf(b, "\x1b[%dm[%s]\x1b[%dm ", colorByLevel(entry.Level), level, resetColorCode)
		}
	}

	if len(entry.Data) > 0 {
		separator := f.FieldSeparator
		if separator == "" {
			separator = defaultFieldSeparator
		}
		b.WriteByte('[')
		for i, key := range f.orderedKeys(entry.Data) {
			if i > 0 {
				b.WriteString(separator)
			}
			f.writeField(b, key, entry.Data[key])
		}
		b.WriteString("] ")
	}

	b.WriteString(entry.Message)

	if !f.DisableCaller && entry.HasCaller() {
		b.WriteByte(' ')
		if f.CustomCallerFormatter != nil {
			b.WriteString(f.CustomCallerFormatter(entry.Caller))
		} else {
			fn := filepath.Base(entry.Caller.Function)
			if i := strings.LastIndex(fn, "."); i >= 0 {
				fn = fn[i+1:]
			}
			fmt.Fprintf(b, "(%s:%d %s)", filepath.Base(entry.Caller.File), entry.Caller.Line, fn)
		}
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

func (f *Formatter) showLevel(level logrus.Level) bool {
	switch f.DisplayLevelName {
	case ShowAll:
		return true
	case ShowAboveWarn:
		return level <= logrus.WarnLevel
	case ShowAboveError:
		return level <= logrus.ErrorLevel
	default:
		return false
	}
}

func (f *Formatter) orderedKeys(data logrus.Fields) []string {
	keys := make([]string, 0, len(data))
	seen := make(map[string]bool, len(f.FieldsDisplayWithOrder))
	for _, key := range f.FieldsDisplayWithOrder {
		if _, ok := data[key]; ok && !seen[key] {
			keys = append(keys, key)
			seen[key] = true
		}
	}
	rest := make([]string, 0, len(data)-len(keys))
	for key := range data {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func (f *Formatter) writeField(b *bytes.Buffer, key string, value interface{}) {
	s := fmt.Sprintf("%v", value)
	if err, ok := value.(error); ok {
		s = err.Error()
	}
	if f.MaxFieldValueLength > 0 && len(s) > f.MaxFieldValueLength {
		s = s[:f.MaxFieldValueLength] + "..."
	}
	if f.HideKeys {
		b.WriteString(s)
		return
	}
	fmt.Fprintf(b, "%s:%s", key, s)
}

func colorByLevel(level logrus.Level) int {
	switch level {
	case logrus.DebugLevel:
		return colorBlue
	case logrus.WarnLevel:
		return colorYellow
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return colorRed
	default:
		return colorGray
	}
}

const (
	colorRed    = 31
	colorYellow = 33
	colorBlue   = 36
	colorGray   = 37
)
