// Package build writes translated C text to disk, drives the external
// toolchain and moves the produced executable into place.
package build

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xyproto/dawnc/internal/lexer"
)

// DefaultIntermediate is the fixed name of the generated C file. It lives in
// the working directory and is overwritten by every run, so two builds in
// the same directory at the same time will clobber each other's file.
const DefaultIntermediate = "Main.cpp"

// Step is one part of Build.
type Step int

const (
	StepEmit Step = iota
	StepCompile
	StepRelocate
	StepCleanup
)

func (s Step) String() string {
	switch s {
	case StepEmit:
		return "emit"
	case StepCompile:
		return "compile"
	case StepRelocate:
		return "relocate"
	case StepCleanup:
		return "cleanup"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// StepError records the Build step an error came from.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Options configures a Driver.
type Options struct {
	Fs           afero.Fs
	Intermediate string
	Backend      Backend
	// OnStep runs before every Build step. A non-nil error aborts the build
	// and is reported for that step.
	OnStep func(Step) error
	Log    *zap.Logger
}

// Driver performs the emit, compile, relocate and cleanup steps.
type Driver struct {
	fs           afero.Fs
	intermediate string
	backend      Backend
	onStep       func(Step) error
	log          *zap.Logger
}

// NewDriver creates a Driver. Fs defaults to the OS filesystem and Backend to
// gcc producing the host's default artifact.
func NewDriver(opts Options) *Driver {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Intermediate == "" {
		opts.Intermediate = DefaultIntermediate
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Backend == nil {
		tc := NewToolchain(HostOS().DefaultArtifact())
		tc.Log = opts.Log
		opts.Backend = tc
	}
	return &Driver{
		fs:           opts.Fs,
		intermediate: opts.Intermediate,
		backend:      opts.Backend,
		onStep:       opts.OnStep,
		log:          opts.Log,
	}
}

// Intermediate returns the path of the generated C file.
func (d *Driver) Intermediate() string {
	return d.intermediate
}

// Concat joins the output fragments verbatim.
func Concat(out *lexer.Sequence) string {
	return out.String()
}

// WriteIntermediate writes text to the intermediate file, replacing it.
func (d *Driver) WriteIntermediate(text string) error {
	if err := afero.WriteFile(d.fs, d.intermediate, []byte(text), 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", d.intermediate)
	}
	d.log.Debug("wrote intermediate file", zap.String("path", d.intermediate), zap.Int("bytes", len(text)))
	return nil
}

// RemoveStale deletes a previous executable at output and any leftover
// toolchain output, so a failed build cannot leave an old binary behind.
func (d *Driver) RemoveStale(output string) error {
	var errs error
	for _, path := range []string{output, d.backend.Artifact()} {
		if path == "" {
			continue
		}
		if err := d.fs.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = multierr.Append(errs, errors.Wrapf(err, "removing stale %s", path))
		}
	}
	return errs
}

// Compile invokes the backend on the intermediate file.
func (d *Driver) Compile(ctx context.Context) (string, error) {
	artifact, err := d.backend.Compile(ctx, d.intermediate)
	if err != nil {
		return "", errors.Wrapf(err, "compiling %s", d.intermediate)
	}
	return artifact, nil
}

// Relocate moves artifact to output. When a rename is impossible, for example
// across filesystems, the file is copied and the original removed.
func (d *Driver) Relocate(artifact, output string) error {
	if artifact == output {
		return nil
	}
	if err := d.fs.Rename(artifact, output); err == nil {
		d.log.Debug("moved executable", zap.String("from", artifact), zap.String("to", output))
		return nil
	}
	if err := d.copyFile(artifact, output); err != nil {
		return errors.Wrapf(err, "moving %s to %s", artifact, output)
	}
	if err := d.fs.Remove(artifact); err != nil {
		return errors.Wrapf(err, "removing %s", artifact)
	}
	d.log.Debug("copied executable", zap.String("from", artifact), zap.String("to", output))
	return nil
}

func (d *Driver) copyFile(src, dst string) error {
	in, err := d.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	mode := os.FileMode(0o755)
	if info, err := in.Stat(); err == nil {
		mode = info.Mode().Perm()
	}
	out, err := d.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		return multierr.Append(err, out.Close())
	}
	return out.Close()
}

// Cleanup removes the intermediate file.
func (d *Driver) Cleanup() error {
	if err := d.fs.Remove(d.intermediate); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing %s", d.intermediate)
	}
	return nil
}

// Build runs every step for the translated output: write the concatenated
// fragments, remove stale outputs and compile, relocate, and optionally clean
// up. Errors are *StepError values; a cleanup failure is combined with the
// build error.
func (d *Driver) Build(ctx context.Context, out *lexer.Sequence, output string, clean bool) (err error) {
	if clean {
		defer func() {
			err = multierr.Append(err, d.step(StepCleanup, d.Cleanup))
		}()
	}
	if err := d.step(StepEmit, func() error {
		return d.WriteIntermediate(Concat(out))
	}); err != nil {
		return err
	}

	var artifact string
	if err := d.step(StepCompile, func() error {
		if err := d.RemoveStale(output); err != nil {
			return err
		}
		var err error
		artifact, err = d.Compile(ctx)
		return err
	}); err != nil {
		return err
	}

	return d.step(StepRelocate, func() error {
		return d.Relocate(artifact, output)
	})
}

func (d *Driver) step(s Step, fn func() error) error {
	if d.onStep != nil {
		if err := d.onStep(s); err != nil {
			return &StepError{Step: s, Err: err}
		}
	}
	if err := fn(); err != nil {
		return &StepError{Step: s, Err: err}
	}
	return nil
}
