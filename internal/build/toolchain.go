package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Backend compiles an intermediate C file into a native executable.
type Backend interface {
	// Compile builds intermediate and returns the path of the produced
	// executable. A failed build returns an error and no artifact.
	Compile(ctx context.Context, intermediate string) (artifact string, err error)
	// Artifact is the path where Compile leaves its output.
	Artifact() string
}

// ToolchainError reports a failed external toolchain invocation.
type ToolchainError struct {
	Command  string
	Args     []string
	ExitCode int
	Err      error
}

func (e *ToolchainError) Error() string {
	cmdline := strings.TrimSpace(e.Command + " " + strings.Join(e.Args, " "))
	if e.ExitCode >= 0 {
		return fmt.Sprintf("%s exited with status %d", cmdline, e.ExitCode)
	}
	return fmt.Sprintf("%s: %v", cmdline, e.Err)
}

func (e *ToolchainError) Unwrap() error {
	return e.Err
}

// Toolchain runs an external compiler as `Command <intermediate> Args...`
// inside Dir and expects the executable under its default name.
type Toolchain struct {
	Command string
	Args    []string
	// DefaultOutput is the file name the compiler writes when no -o is given.
	DefaultOutput string
	Dir           string
	Stdout        io.Writer
	Stderr        io.Writer
	Log           *zap.Logger
}

// NewToolchain returns the gcc invocation used by the original tooling.
func NewToolchain(defaultOutput string) *Toolchain {
	return &Toolchain{
		Command:       "gcc",
		Args:          []string{"-w", "-lstdc++"},
		DefaultOutput: defaultOutput,
		Stdout:        os.Stdout,
		Stderr:        os.Stderr,
	}
}

// Artifact returns the path of the compiler's default output.
func (tc *Toolchain) Artifact() string {
	if tc.Dir == "" {
		return tc.DefaultOutput
	}
	return filepath.Join(tc.Dir, tc.DefaultOutput)
}

// Compile runs the toolchain. Output of the compiler goes to Stdout/Stderr.
func (tc *Toolchain) Compile(ctx context.Context, intermediate string) (string, error) {
	args := append([]string{intermediate}, tc.Args...)
	cmd := exec.CommandContext(ctx, tc.Command, args...)
	cmd.Dir = tc.Dir
	cmd.Stdout = tc.Stdout
	cmd.Stderr = tc.Stderr

	if tc.Log != nil {
		tc.Log.Debug("running toolchain", zap.String("command", tc.Command),
			zap.Strings("args", args), zap.String("dir", tc.Dir))
	}

	if err := cmd.Run(); err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return "", &ToolchainError{Command: tc.Command, Args: args, ExitCode: exitCode, Err: err}
	}
	return tc.Artifact(), nil
}
