package util

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"sort"
	"strings"
	"sync"
	"syscall"
	"text/template"

	"github.com/pkg/errors"
)

// Data is a generic map type for template rendering context.
type Data map[string]interface{}

// Render executes the given template with the provided variables.
func Render(tmpl *template.Template, variables Data) (string, error) {
	var buf strings.Builder
	if err := tmpl.Execute(&buf, variables); err != nil {
		return "", errors.Wrap(err, "failed to render template")
	}
	return buf.String(), nil
}

// RenderString parses and executes the given template string with the provided variables.
func RenderString(tmplStr string, variables Data) (string, error) {
	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse template string")
	}
	return Render(tmpl, variables)
}

var (
	homeDir     string
	homeDirErr  error
	homeDirOnce sync.Once
)

// Home returns the current user's home directory, preferring the
// environment over the account database. The answer is cached.
func Home() (string, error) {
	homeDirOnce.Do(func() {
		if home, err := os.UserHomeDir(); err == nil {
			homeDir = home
			return
		}
		u, err := user.Current()
		if err != nil {
			homeDirErr = errors.Wrap(err, "failed to look up current user")
			return
		}
		if u.HomeDir == "" {
			homeDirErr = errors.Errorf("user %s has no home directory", u.Username)
			return
		}
		homeDir = u.HomeDir
	})
	return homeDir, homeDirErr
}

// NormalizeArgs merges a base map of arguments with a list of override arguments (in "key=value" format).
// It returns a sorted slice of "key=value" strings representing the final merged arguments,
// and the final merged map.
// Arguments in overrideArgsList take precedence over baseArgs.
func NormalizeArgs(baseArgs map[string]string, overrideArgsList []string) ([]string, map[string]string) {
	finalArgsMap := make(map[string]string)
	for k, v := range baseArgs {
		finalArgsMap[k] = v
	}

	for _, arg := range overrideArgsList {
		parts := strings.SplitN(arg, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			if key == "" {
				continue
			}
			finalArgsMap[key] = parts[1]
		}
	}

	return EnvSlice(finalArgsMap), finalArgsMap
}

// EnvSlice renders a map as sorted "key=value" pairs, the form os/exec expects.
func EnvSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(out)
	return out
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ShellQuote wraps arg in single quotes so a POSIX shell treats it literally.
func ShellQuote(arg string) string {
	return "'" + strings.ReplaceAll(arg, "'", "'\\''") + "'"
}

// GetenvOrDefault retrieves the value of the environment variable named by the key.
// If the variable is not present or empty, it returns the defaultValue.
func GetenvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// BoolPtr returns a pointer to the bool value.
func BoolPtr(b bool) *bool {
	return &b
}

// IsErrPipeClosed reports whether err only says the other end of a pipe went away.
func IsErrPipeClosed(err error) bool {
	return errors.Is(err, os.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.EPIPE) ||
		(err != nil && strings.Contains(err.Error(), "file already closed")) ||
		(err != nil && strings.Contains(err.Error(), "pipe already closed"))
}
