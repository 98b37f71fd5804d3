// Completion: 100% - Pipeline driver complete
package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xyproto/dawnc/internal/build"
	"github.com/xyproto/dawnc/internal/lexer"
	"github.com/xyproto/dawnc/internal/source"
	"github.com/xyproto/dawnc/internal/translate"
)

// DefaultMaxTokens is the default capacity of the token sequence.
const DefaultMaxTokens = 5000

// Limits bounds every stage. Zero selects the default of that stage; a
// negative Tokens or Output removes the bound.
type Limits struct {
	Lines      int
	LineLength int
	Tokens     int
	Output     int
}

func (l Limits) tokens() int {
	switch {
	case l.Tokens == 0:
		return DefaultMaxTokens
	case l.Tokens < 0:
		return lexer.Unbounded
	}
	return l.Tokens
}

func (l Limits) output() int {
	switch {
	case l.Output == 0:
		return translate.DefaultMaxOutput
	case l.Output < 0:
		return lexer.Unbounded
	}
	return l.Output
}

// Options configures a single run of the pipeline.
type Options struct {
	Fs     afero.Fs
	Input  string
	Output string
	Limits Limits
	// Modules is the #include table. Nil selects the built-in modules.
	Modules *translate.Registry
	// Backend compiles the intermediate file. Nil selects gcc.
	Backend      build.Backend
	Intermediate string
	// Clean removes the intermediate file after the build.
	Clean bool
	// Debug writes the tokenization notice, the tokens and the compile
	// notice to DebugOut.
	Debug    bool
	DebugOut io.Writer
	Log      *zap.Logger
}

func (o *Options) setDefaults() {
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	if o.DebugOut == nil {
		o.DebugOut = io.Discard
	}
}

// Result is what a run produced, up to the last stage it reached.
type Result struct {
	Source      *source.Buffer
	Tokens      *lexer.Sequence
	Translation *translate.Result
	// Executable is the output path after a successful build.
	Executable string
	Stages     []Stage
}

// Text returns the generated C text.
func (r *Result) Text() string {
	if r.Translation == nil {
		return ""
	}
	return r.Translation.Text()
}

// Translate runs the load, tokenize and translate stages.
func Translate(ctx context.Context, opts Options) (*Result, error) {
	opts.setDefaults()
	p := NewPipeline(opts.Log)
	res, err := translateStages(ctx, p, opts)
	if err != nil {
		return res, err
	}
	p.AdvanceTo(StageComplete)
	res.Stages = p.History()
	return res, nil
}

func translateStages(ctx context.Context, p *Pipeline, opts Options) (*Result, error) {
	log := opts.Log
	res := &Result{}

	p.AdvanceTo(StageLoad)
	if err := ctx.Err(); err != nil {
		return res, p.Fail(err)
	}
	buf, err := source.Load(opts.Fs, opts.Input, source.Limits{
		MaxLines:      opts.Limits.Lines,
		MaxLineLength: opts.Limits.LineLength,
	})
	if err != nil {
		return res, p.Fail(err)
	}
	res.Source = buf
	log.Debug("loaded source", zap.String("path", opts.Input), zap.Int("lines", buf.Len()),
		zap.Int("dropped", buf.Dropped()), zap.Int("truncated", buf.Truncated()))

	p.AdvanceTo(StageTokenize)
	if err := ctx.Err(); err != nil {
		return res, p.Fail(err)
	}
	res.Tokens = lexer.New(opts.Limits.tokens(), log).Tokenize(buf.Lines())

	if opts.Debug {
		fmt.Fprintln(opts.DebugOut, "Tokenization complete")
		for _, tok := range res.Tokens.Items() {
			fmt.Fprintln(opts.DebugOut, tok)
		}
		fmt.Fprintln(opts.DebugOut, "Compiling")
	}

	p.AdvanceTo(StageTranslate)
	if err := ctx.Err(); err != nil {
		return res, p.Fail(err)
	}
	res.Translation = translate.New(translate.Options{
		MaxOutput: opts.Limits.output(),
		Modules:   opts.Modules,
		Log:       log,
	}).Translate(res.Tokens)
	return res, nil
}

// buildStages maps the build steps onto pipeline stages.
var buildStages = map[build.Step]Stage{
	build.StepEmit:     StageEmit,
	build.StepCompile:  StageCompile,
	build.StepRelocate: StageRelocate,
	build.StepCleanup:  StageCleanup,
}

// Run translates opts.Input and builds the executable opts.Output.
func Run(ctx context.Context, opts Options) (res *Result, err error) {
	opts.setDefaults()
	log := opts.Log
	p := NewPipeline(log)
	defer func() {
		if res != nil {
			res.Stages = p.History()
		}
	}()

	res, err = translateStages(ctx, p, opts)
	if err != nil {
		return res, err
	}

	var driver *build.Driver
	driver = build.NewDriver(build.Options{
		Fs:           opts.Fs,
		Intermediate: opts.Intermediate,
		Backend:      opts.Backend,
		Log:          log,
		OnStep: func(step build.Step) error {
			// Cleanup after a failed step is not a stage of its own.
			if step == build.StepCleanup && p.Current() != StageRelocate {
				return nil
			}
			p.AdvanceTo(buildStages[step])
			switch step {
			case build.StepCleanup:
				return nil
			case build.StepCompile:
				log.Info("compiling", zap.String("intermediate", driver.Intermediate()))
			}
			return ctx.Err()
		},
	})
	if err := driver.Build(ctx, res.Translation.Output, opts.Output, opts.Clean); err != nil {
		return res, stageErrors(err)
	}
	res.Executable = opts.Output
	log.Info("built", zap.String("input", opts.Input), zap.String("output", opts.Output))

	p.AdvanceTo(StageComplete)
	return res, nil
}

// stageErrors turns every *build.StepError in err into a *StageError.
func stageErrors(err error) error {
	var out error
	for _, e := range multierr.Errors(err) {
		var se *build.StepError
		if errors.As(e, &se) {
			e = &StageError{Stage: buildStages[se.Step], Err: se.Err}
		}
		out = multierr.Append(out, e)
	}
	return out
}
