// Completion: 100% - CLI subcommands complete
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/xyproto/dawnc/internal/build"
	"github.com/xyproto/dawnc/internal/engine"
	"github.com/xyproto/dawnc/internal/translate"
	"github.com/xyproto/dawnc/internal/watch"
)

// cli.go - Subcommands of dawnc
//
// - dawnc build <input> <output>   translate and compile
// - dawnc run <input> <output>     build, then execute the result
// - dawnc emit <input>             print the generated C
// - dawnc tokens <input>           print the token sequence
// - dawnc watch <input> <output>   rebuild on every change
// - dawnc modules | version | help

// CommandContext holds the execution context for a CLI command
type CommandContext struct {
	Ctx    context.Context
	Args   []string
	Config Config
	Fs     afero.Fs
	// Backend overrides the configured toolchain.
	Backend build.Backend
	Log     *zap.Logger
	Stdout  io.Writer
	Stderr  io.Writer
	Quiet   bool
}

// usageError marks errors caused by wrong command-line usage.
type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// exitStatusError carries the exit status of a program started by `run`.
type exitStatusError struct {
	code int
}

func (e *exitStatusError) Error() string {
	return fmt.Sprintf("program exited with status %d", e.code)
}

var commands = []string{"build", "run", "emit", "tokens", "watch", "modules", "version", "help"}

// RunCLI dispatches to the subcommand named by the first argument
func RunCLI(cc *CommandContext) error {
	args := cc.Args
	if len(args) == 0 {
		return cmdHelp(cc)
	}

	subcmd, rest := args[0], args[1:]
	switch subcmd {
	case "build":
		if len(rest) != 2 {
			return usagef("usage: dawnc build <input> <output>")
		}
		return cmdBuild(cc, rest[0], rest[1])

	case "run":
		if len(rest) < 2 {
			return usagef("usage: dawnc run <input> <output> [args...]")
		}
		return cmdRun(cc, rest[0], rest[1], rest[2:])

	case "emit":
		if len(rest) != 1 {
			return usagef("usage: dawnc emit <input>")
		}
		return cmdEmit(cc, rest[0])

	case "tokens":
		if len(rest) != 1 {
			return usagef("usage: dawnc tokens <input>")
		}
		return cmdTokens(cc, rest[0])

	case "watch":
		if len(rest) != 2 {
			return usagef("usage: dawnc watch <input> <output>")
		}
		return cmdWatch(cc, rest[0], rest[1])

	case "modules":
		return cmdModules(cc)

	case "help", "--help", "-h":
		return cmdHelp(cc)

	case "version", "--version", "-V":
		fmt.Fprintln(cc.Stdout, versionString)
		return nil

	default:
		msg := fmt.Sprintf("unknown command: %s", subcmd)
		if s := translate.Suggest(subcmd, commands, 1); len(s) > 0 {
			msg += fmt.Sprintf(" (did you mean '%s'?)", s[0])
		}
		return usagef("%s\n\nRun 'dawnc help' for usage information", msg)
	}
}

// engineOptions builds the pipeline options shared by every command.
func (cc *CommandContext) engineOptions(input, output string) (engine.Options, error) {
	modules, err := cc.Config.Modules()
	if err != nil {
		return engine.Options{}, err
	}
	backend := cc.Backend
	if backend == nil {
		tc := cc.Config.Toolchain()
		tc.Stdout = cc.Stdout
		tc.Stderr = cc.Stderr
		tc.Log = cc.Log
		backend = tc
	}
	return engine.Options{
		Fs:           cc.Fs,
		Input:        input,
		Output:       output,
		Limits:       cc.Config.EngineLimits(),
		Modules:      modules,
		Backend:      backend,
		Intermediate: cc.Config.Intermediate,
		Clean:        cc.Config.Clean,
		Debug:        cc.Config.Debug,
		DebugOut:     cc.Stdout,
		Log:          cc.Log,
	}, nil
}

// reportDiagnostics prints translator warnings in debug mode.
func (cc *CommandContext) reportDiagnostics(res *engine.Result) {
	if !cc.Config.Debug || cc.Quiet || res == nil || res.Translation == nil {
		return
	}
	tokens := res.Tokens.Items()
	for _, d := range res.Translation.Diagnostics {
		fmt.Fprint(cc.Stderr, engine.FormatDiagnostic(d, tokens, false))
	}
}

// cmdBuild translates input and compiles it to output
func cmdBuild(cc *CommandContext, input, output string) error {
	opts, err := cc.engineOptions(input, output)
	if err != nil {
		return err
	}
	res, err := engine.Run(cc.Ctx, opts)
	cc.reportDiagnostics(res)
	return err
}

// cmdRun builds input and executes the result with args
func cmdRun(cc *CommandContext, input, output string, args []string) error {
	if err := cmdBuild(cc, input, output); err != nil {
		return err
	}

	absPath, err := filepath.Abs(output)
	if err != nil {
		return err
	}
	cc.Log.Debug("running", zap.String("executable", absPath), zap.Strings("args", args))

	cmd := exec.CommandContext(cc.Ctx, absPath, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = cc.Stdout
	cmd.Stderr = cc.Stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &exitStatusError{code: exitErr.ExitCode()}
		}
		return errors.Wrap(err, "execution failed")
	}
	return nil
}

// cmdEmit prints the C text generated for input
func cmdEmit(cc *CommandContext, input string) error {
	opts, err := cc.engineOptions(input, "")
	if err != nil {
		return err
	}
	res, err := engine.Translate(cc.Ctx, opts)
	if err != nil {
		return err
	}
	cc.reportDiagnostics(res)
	fmt.Fprintln(cc.Stdout, res.Text())
	return nil
}

// cmdTokens prints one token per line
func cmdTokens(cc *CommandContext, input string) error {
	opts, err := cc.engineOptions(input, "")
	if err != nil {
		return err
	}
	opts.Debug = false
	res, err := engine.Translate(cc.Ctx, opts)
	if err != nil {
		return err
	}
	for _, tok := range res.Tokens.Items() {
		fmt.Fprintln(cc.Stdout, tok)
	}
	return nil
}

// cmdModules lists the #include table in lookup order
func cmdModules(cc *CommandContext) error {
	modules, err := cc.Config.Modules()
	if err != nil {
		return err
	}
	for _, m := range modules.Modules() {
		origin := "config"
		if m.BuiltIn {
			origin = "built-in"
		}
		fmt.Fprintf(cc.Stdout, "%-24s %-16s %s\n", m.Name, m.Header, origin)
	}
	return nil
}

// cmdWatch builds once, then rebuilds whenever the content of input changes
// until the context is cancelled. A failed rebuild is logged and watching
// goes on. SIGUSR1 forces a rebuild.
func cmdWatch(cc *CommandContext, input, output string) error {
	absPath, err := filepath.Abs(input)
	if err != nil {
		return err
	}

	var (
		mu      sync.Mutex
		lastSum uint64
	)
	// changed reports whether the source differs from the last build. An
	// unreadable file counts as changed so the build reports the error.
	changed := func() bool {
		data, err := afero.ReadFile(cc.Fs, input)
		if err != nil {
			return true
		}
		sum := xxhash.Sum64(data)
		if sum == lastSum {
			return false
		}
		lastSum = sum
		return true
	}
	rebuild := func(trigger string, force bool) {
		mu.Lock()
		defer mu.Unlock()

		if !changed() && !force {
			cc.Log.Debug("source unchanged, not rebuilding", zap.String("trigger", trigger))
			return
		}
		cc.Log.Info("rebuilding", zap.String("trigger", trigger))
		if err := cmdBuild(cc, input, output); err != nil {
			cc.Log.Error("build failed", zap.Error(err))
			return
		}
		cc.Log.Info("rebuilt", zap.String("output", output))
	}

	changed()
	if err := cmdBuild(cc, input, output); err != nil {
		return errors.Wrap(err, "initial build failed")
	}
	cc.Log.Info("watching for changes", zap.String("path", absPath), zap.Int("pid", os.Getpid()))

	w, err := watch.New(watch.Options{
		OnChange: func(path string) {
			rebuild("file changed: "+filepath.Base(path), false)
		},
	}, cc.Log)
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer w.Close()

	if err := w.AddFile(absPath); err != nil {
		return errors.Wrap(err, "failed to watch file")
	}

	stopSignal := setupReloadSignal(cc.Ctx, func(trigger string) {
		rebuild(trigger, true)
	})
	defer stopSignal()

	return w.Watch(cc.Ctx)
}

// cmdHelp displays usage information
func cmdHelp(cc *CommandContext) error {
	fmt.Fprintf(cc.Stdout, `%s - DawnLang to C translator

USAGE:
    dawnc [flags] <command> [arguments]

COMMANDS:
    build <input> <output>          Translate and compile to an executable
    run <input> <output> [args]     Build, then run the executable
    emit <input>                    Print the generated C
    tokens <input>                  Print the token sequence, one per line
    watch <input> <output>          Rebuild whenever the input changes
    modules                         List the #include modules
    version                         Show version information
    help                            Show this help message

LEGACY FORM:
    dawnc [-d] -b <input> <output>  Same as build
    dawnc [-d] -br <input> <output> Same as run

FLAGS:
    -d, --debug                  Print the tokens and verbose logs
    -q, --quiet                  Only log errors
    -c, --config <file>          Configuration file (default: dawn.yml if present)
        --cc <compiler>          C compiler command (default: gcc)
        --intermediate <file>    Generated C file (default: Main.cpp)
        --clean                  Remove the generated C file after building
        --max-lines <n>          Maximum number of source lines
        --max-line-length <n>    Maximum bytes kept per line
        --max-tokens <n>         Maximum number of tokens

ENVIRONMENT:
    DAWN_CC, DAWN_CFLAGS, DAWN_INTERMEDIATE, DAWN_DEBUG, DAWN_CLEAN,
    DAWN_MAX_LINES, DAWN_MAX_LINE_LENGTH, DAWN_MAX_TOKENS

Arguments after -- are passed to the program started by run.

`, versionString)
	return nil
}
