package runtime

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmrun/common"
	"github.com/mensylisir/xmrun/logger"
	"github.com/mensylisir/xmrun/runner"
	"github.com/mensylisir/xmrun/util"
	"github.com/mensylisir/xmrun/watcher"
)

// SudoOptions override the sudo section of the configuration. Empty fields
// use the configured values.
type SudoOptions struct {
	Password string
	User     string
	Prompt   string
}

func (c *Context) sudoDefaults(o SudoOptions) SudoOptions {
	if o.Password == "" {
		o.Password = c.config.Sudo.Password
	}
	if o.User == "" {
		o.User = c.config.Sudo.User
	}
	if o.Prompt == "" {
		o.Prompt = c.config.Sudo.Prompt
	}
	if o.Prompt == "" {
		o.Prompt = common.DefaultSudoPrompt
	}
	return o
}

var shellSafe = regexp.MustCompile(`^[A-Za-z0-9_.,:@%+=/-]+$`)

// shellWord quotes s unless a shell would read it as one literal word.
func shellWord(s string) string {
	if shellSafe.MatchString(s) {
		return s
	}
	return util.ShellQuote(s)
}

// SudoCommand renders
// "sudo -S -p '<prompt>' [--preserve-env=K1,K2 ][-H -u <user> ]<command>".
// The prompt is always single-quoted; the user and env keys only when needed.
func SudoCommand(command, prompt, user string, env map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "sudo -S -p %s ", util.ShellQuote(prompt))
	if len(env) > 0 {
		fmt.Fprintf(&b, "--preserve-env=%s ", shellWord(strings.Join(util.SortedKeys(env), ",")))
	}
	if user != "" {
		fmt.Fprintf(&b, "-H -u %s ", shellWord(user))
	}
	b.WriteString(command)
	return b.String()
}

// Sudo runs command through sudo, answering its password prompt. A rejected
// password is reported as *runner.AuthFailure; every other failure is
// returned as Run would.
func (c *Context) Sudo(ctx context.Context, command string, sudo SudoOptions, opts ...runner.Option) (*runner.Result, error) {
	sudo = c.sudoDefaults(sudo)
	options, err := c.options(opts...)
	if err != nil {
		return nil, err
	}

	responder, err := watcher.NewFailingResponder(
		regexp.QuoteMeta(sudo.Prompt),
		sudo.Password+"\n",
		regexp.QuoteMeta(common.SudoRetrySentinel)+`\r?\n`,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build sudo prompt responder")
	}
	watchers := make([]watcher.StreamWatcher, 0, len(options.Watchers)+1)
	watchers = append(watchers, options.Watchers...)
	options.Watchers = append(watchers, responder)

	// cd and prefixes are shell syntax, so they wrap sudo rather than run under it.
	full := c.PrefixCommand(SudoCommand(command, sudo.Prompt, sudo.User, options.Env))
	logger.Log.DebugCommand(full, "running command through sudo", logrus.Fields{"user": sudo.User})
	result, err := c.newRunner().Run(ctx, full, options)
	err = asAuthFailure(err, responder, sudo.Prompt)
	report(full, result, err)
	return result, err
}

// asAuthFailure turns a rejection seen by responder into *runner.AuthFailure.
func asAuthFailure(err error, responder *watcher.FailingResponder, prompt string) error {
	if err == nil {
		return nil
	}

	var failure *runner.Failure
	var rejected *watcher.ResponseNotAccepted
	if errors.As(err, &failure) && errors.As(failure.Reason, &rejected) &&
		rejected.Pattern == responder.Pattern() {
		return &runner.AuthFailure{
			Failure: runner.Failure{Result: failure.Result, Reason: failure.Reason},
			Prompt:  prompt,
		}
	}
	return err
}
