// Completion: 100% - Entry point complete
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const versionString = "dawnc 1.0.0"

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], afero.NewOsFs(), os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// options holds the parsed command line.
type options struct {
	debug         bool
	quiet         bool
	showHelp      bool
	showVersion   bool
	configPath    string
	cc            string
	intermediate  string
	clean         bool
	maxLines      int
	maxLineLength int
	maxTokens     int
}

func newFlagSet(o *options, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("dawnc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVarP(&o.debug, "debug", "d", false, "Print the tokens and verbose logs")
	fs.BoolVarP(&o.quiet, "quiet", "q", false, "Only log errors; incompatible with \"debug\"")
	fs.BoolVarP(&o.showHelp, "help", "h", false, "Print usage information and quit")
	fs.BoolVarP(&o.showVersion, "version", "V", false, "Print version information and quit")
	fs.StringVarP(&o.configPath, "config", "c", defaultConfigFile, "Configuration file")
	fs.StringVar(&o.cc, "cc", "", "C compiler command")
	fs.StringVar(&o.intermediate, "intermediate", "", "Generated C file")
	fs.BoolVar(&o.clean, "clean", false, "Remove the generated C file after building")
	fs.IntVar(&o.maxLines, "max-lines", 0, "Maximum number of source lines")
	fs.IntVar(&o.maxLineLength, "max-line-length", 0, "Maximum bytes kept per line")
	fs.IntVar(&o.maxTokens, "max-tokens", 0, "Maximum number of tokens")
	return fs
}

// legacyArgs rewrites the original "-b in out" and "-br in out" switches
// into the build and run commands.
func legacyArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i, arg := range args {
		if arg == "--" {
			return append(out, args[i:]...)
		}
		switch arg {
		case "-b":
			out = append(out, "build")
		case "-br":
			out = append(out, "run")
		default:
			out = append(out, arg)
		}
	}
	return out
}

// newLogger returns a console logger writing to w and the level controlling
// it.
func newLogger(w io.Writer) (*zap.Logger, zap.AtomicLevel) {
	al := zap.NewAtomicLevelAt(zap.InfoLevel)
	ec := zap.NewDevelopmentEncoderConfig()
	return zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(ec), zapcore.Lock(zapcore.AddSync(w)), al)), al
}

// buildConfig layers dawn.yml, the environment and the flags over the
// defaults.
func buildConfig(fsys afero.Fs, flags *flag.FlagSet, o *options) (Config, error) {
	cfg := DefaultConfig()
	if err := LoadConfigFile(fsys, o.configPath, flags.Changed("config"), &cfg); err != nil {
		return cfg, err
	}
	cfg.ApplyEnv()

	if flags.Changed("debug") {
		cfg.Debug = o.debug
	}
	if flags.Changed("cc") {
		cfg.Compiler = o.cc
	}
	if flags.Changed("intermediate") {
		cfg.Intermediate = o.intermediate
	}
	if flags.Changed("clean") {
		cfg.Clean = o.clean
	}
	if flags.Changed("max-lines") {
		cfg.Limits.Lines = o.maxLines
	}
	if flags.Changed("max-line-length") {
		cfg.Limits.LineLength = o.maxLineLength
	}
	if flags.Changed("max-tokens") {
		cfg.Limits.Tokens = o.maxTokens
	}
	return cfg, cfg.validate("")
}

// run executes one invocation and returns the process exit status.
func run(ctx context.Context, args []string, fsys afero.Fs, stdout, stderr io.Writer) int {
	var o options
	flags := newFlagSet(&o, stderr)
	if err := flags.Parse(legacyArgs(args)); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	if o.debug && o.quiet {
		fmt.Fprintln(stderr, "Error: --debug and --quiet cannot be combined")
		return exitUsage
	}

	cc := &CommandContext{
		Ctx:    ctx,
		Args:   flags.Args(),
		Fs:     fsys,
		Stdout: stdout,
		Stderr: stderr,
		Quiet:  o.quiet,
	}
	if o.showHelp {
		cc.Args = []string{"help"}
	}
	if o.showVersion {
		cc.Args = []string{"version"}
	}

	logger, al := newLogger(stderr)
	defer logger.Sync()
	cc.Log = logger
	if o.quiet {
		al.SetLevel(zap.ErrorLevel)
	}

	cfg, err := buildConfig(fsys, flags, &o)
	if err != nil {
		logger.Error("configuration", zap.Error(err))
		return exitUsage
	}
	if cfg.Debug && !o.quiet {
		al.SetLevel(zap.DebugLevel)
	}
	cc.Config = cfg

	return exitCode(logger, stderr, RunCLI(cc))
}

func exitCode(logger *zap.Logger, stderr io.Writer, err error) int {
	if err == nil {
		return exitOK
	}
	var usage *usageError
	if errors.As(err, &usage) {
		fmt.Fprintf(stderr, "Error: %v\n", usage)
		return exitUsage
	}
	var status *exitStatusError
	if errors.As(err, &status) {
		return status.code
	}
	logger.Error("failed", zap.Error(err))
	return exitFailure
}
