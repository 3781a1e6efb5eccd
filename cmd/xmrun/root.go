package main

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mensylisir/xmrun/common"
	"github.com/mensylisir/xmrun/config"
	"github.com/mensylisir/xmrun/logger"
	"github.com/mensylisir/xmrun/runner"
	"github.com/mensylisir/xmrun/runtime"
	"github.com/mensylisir/xmrun/util"
)

type globalFlags struct {
	configPath string
	logLevel   string
	logDir     string
	verbose    bool
}

type runFlags struct {
	warn       bool
	hide       string
	pty        bool
	noFallback bool
	echo       bool
	echoStdin  bool
	encoding   string
	shell      string
	env        []string
	replaceEnv bool
	noStdin    bool
	timeout    time.Duration
	dry        bool
	cd         []string
	prefix     []string
}

type sudoFlags struct {
	user     string
	password string
	prompt   string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           common.AppName,
		Short:         "Run local shell commands with live output, prompt responders and sudo",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initLogger(g)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default ~/"+common.DefaultConfigFile+")")
	pf.StringVar(&g.logLevel, "log-level", util.GetenvOrDefault(common.EnvPrefix+"LOG_LEVEL", "warn"), "log level (trace, debug, info, warn, error)")
	pf.StringVar(&g.logDir, "log-dir", "", "write rotated log files into this directory instead of stderr")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newRunCmd(g), newSudoCmd(g))
	return root
}

func initLogger(g *globalFlags) error {
	level, err := logrus.ParseLevel(g.logLevel)
	if err != nil {
		return errors.Wrapf(err, "invalid --log-level %q", g.logLevel)
	}
	return logger.InitGlobalLogger(logger.Options{Dir: g.logDir, Level: level, Verbose: g.verbose})
}

func newRunCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run [flags] -- <command>",
		Short: "Run a command",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, opts, err := prepare(cmd, g, f)
			if err != nil {
				return err
			}
			return finish(rt.Run(cmd.Context(), commandLine(args), opts...))
		},
	}
	bindRunFlags(cmd, f)
	return cmd
}

func newSudoCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	s := &sudoFlags{}
	cmd := &cobra.Command{
		Use:   "sudo [flags] -- <command>",
		Short: "Run a command through sudo, answering its password prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, opts, err := prepare(cmd, g, f)
			if err != nil {
				return err
			}
			sudo := runtime.SudoOptions{User: s.user, Password: s.password, Prompt: s.prompt}
			return finish(rt.Sudo(cmd.Context(), commandLine(args), sudo, opts...))
		},
	}
	bindRunFlags(cmd, f)
	fs := cmd.Flags()
	fs.StringVarP(&s.user, "user", "u", "", "run as this user")
	fs.StringVar(&s.password, "password", "", "sudo password (prefer "+common.EnvPrefix+"SUDO_PASSWORD)")
	fs.StringVar(&s.prompt, "prompt", "", "prompt sudo is told to print")
	return cmd
}

func bindRunFlags(cmd *cobra.Command, f *runFlags) {
	fs := cmd.Flags()
	fs.BoolVarP(&f.warn, "warn", "w", false, "do not fail on a non-zero exit")
	fs.StringVar(&f.hide, "hide", "", "hide output: none, out, err, both")
	fs.BoolVarP(&f.pty, "pty", "p", false, "run in a pseudo-terminal")
	fs.BoolVar(&f.noFallback, "no-fallback", false, "use a pty even when stdin is not a terminal")
	fs.BoolVarP(&f.echo, "echo", "e", false, "print the command before running it")
	fs.BoolVar(&f.echoStdin, "echo-stdin", false, "echo local stdin back to the terminal")
	fs.StringVar(&f.encoding, "encoding", "", "output encoding")
	fs.StringVar(&f.shell, "shell", "", "shell used to run the command")
	fs.StringArrayVar(&f.env, "env", nil, "environment variable K=V, repeatable")
	fs.BoolVar(&f.replaceEnv, "replace-env", false, "start from an empty environment")
	fs.BoolVar(&f.noStdin, "no-stdin", false, "do not forward local stdin")
	fs.DurationVar(&f.timeout, "timeout", 0, "stop the command after this long")
	fs.BoolVar(&f.dry, "dry", false, "print the command without running it")
	fs.StringArrayVar(&f.cd, "cd", nil, "working directory, repeatable; relative entries stack")
	fs.StringArrayVar(&f.prefix, "prefix", nil, "command to run first, repeatable")
}

// prepare loads configuration and turns the flags the user actually set
// into runner options layered over it.
func prepare(cmd *cobra.Command, g *globalFlags, f *runFlags) (*runtime.Context, []runner.Option, error) {
	cfg, err := config.NewLoader(g.configPath).Load()
	if err != nil {
		return nil, nil, err
	}
	rt := runtime.New(cfg)
	for _, dir := range f.cd {
		rt = rt.WithCd(dir)
	}
	for _, p := range f.prefix {
		rt = rt.WithPrefix(p)
	}

	fs := cmd.Flags()
	var opts []runner.Option
	if fs.Changed("warn") {
		opts = append(opts, runner.WithWarn(f.warn))
	}
	if fs.Changed("hide") {
		hide, err := runner.ParseHide(f.hide)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, runner.WithHide(hide))
	}
	if fs.Changed("pty") {
		opts = append(opts, runner.WithPty(f.pty))
	}
	if fs.Changed("no-fallback") {
		opts = append(opts, runner.WithFallback(!f.noFallback))
	}
	if fs.Changed("echo") {
		opts = append(opts, runner.WithEcho(f.echo))
	}
	if fs.Changed("echo-stdin") {
		opts = append(opts, runner.WithEchoStdin(f.echoStdin))
	}
	if fs.Changed("encoding") {
		opts = append(opts, runner.WithEncoding(f.encoding))
	}
	if fs.Changed("shell") {
		opts = append(opts, runner.WithShell(f.shell))
	}
	if len(f.env) > 0 {
		_, env := util.NormalizeArgs(nil, f.env)
		opts = append(opts, runner.WithEnv(env))
	}
	if fs.Changed("replace-env") {
		opts = append(opts, runner.WithReplaceEnv(f.replaceEnv))
	}
	if f.noStdin {
		opts = append(opts, runner.WithoutStdin())
	}
	if fs.Changed("timeout") {
		opts = append(opts, runner.WithTimeout(f.timeout))
	}
	if fs.Changed("dry") {
		opts = append(opts, runner.WithDry(f.dry))
	}
	return rt, opts, nil
}

// commandLine joins the arguments after "--" with single spaces; quoting is
// left to the caller's shell.
func commandLine(args []string) string {
	return strings.Join(args, " ")
}
