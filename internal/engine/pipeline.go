// pipeline.go - Explicit translation stages with validation
package engine

import (
	"fmt"

	"go.uber.org/zap"
)

// Stage represents a stage in the translation pipeline
type Stage int

const (
	StageInit Stage = iota
	StageLoad
	StageTokenize
	StageTranslate
	StageEmit
	StageCompile
	StageRelocate
	StageCleanup
	StageComplete
)

func (s Stage) String() string {
	switch s {
	case StageInit:
		return "Initialization"
	case StageLoad:
		return "Load Source"
	case StageTokenize:
		return "Tokenize"
	case StageTranslate:
		return "Translate"
	case StageEmit:
		return "Emit Intermediate"
	case StageCompile:
		return "Compile"
	case StageRelocate:
		return "Relocate Executable"
	case StageCleanup:
		return "Cleanup"
	case StageComplete:
		return "Complete"
	default:
		return fmt.Sprintf("Unknown Stage %d", s)
	}
}

// Code is the short error code of a stage: a letter prefix naming the
// activity and a number for the spot within it.
func (s Stage) Code() string {
	switch s {
	case StageLoad:
		return "r100"
	case StageTokenize:
		return "p100"
	case StageTranslate:
		return "c100"
	case StageEmit:
		return "wc100"
	case StageCompile:
		return "cf200"
	case StageRelocate:
		return "cf300"
	case StageCleanup:
		return "cl100"
	default:
		return "a000"
	}
}

// next lists the stages reachable from each stage. Cleanup may be skipped.
var next = map[Stage][]Stage{
	StageInit:      {StageLoad},
	StageLoad:      {StageTokenize},
	StageTokenize:  {StageTranslate},
	StageTranslate: {StageEmit, StageComplete},
	StageEmit:      {StageCompile},
	StageCompile:   {StageRelocate},
	StageRelocate:  {StageCleanup, StageComplete},
	StageCleanup:   {StageComplete},
}

// Pipeline tracks the current stage and validates state transitions
type Pipeline struct {
	current Stage
	history []Stage
	log     *zap.Logger
}

func NewPipeline(log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		current: StageInit,
		history: []Stage{StageInit},
		log:     log,
	}
}

// AdvanceTo moves to stage. An invalid transition is a bug in the caller and
// panics.
func (p *Pipeline) AdvanceTo(stage Stage) {
	valid := false
	for _, s := range next[p.current] {
		if s == stage {
			valid = true
			break
		}
	}
	if !valid {
		p.log.Error("invalid stage transition",
			zap.Stringer("from", p.current), zap.Stringer("to", stage),
			zap.Stringers("history", p.history))
		panic(fmt.Sprintf("invalid pipeline stage transition: %s -> %s", p.current, stage))
	}

	p.current = stage
	p.history = append(p.history, stage)
	p.log.Debug("pipeline stage", zap.Stringer("stage", stage))
}

func (p *Pipeline) Current() Stage {
	return p.current
}

// History returns every stage visited so far, in order.
func (p *Pipeline) History() []Stage {
	out := make([]Stage, len(p.history))
	copy(out, p.history)
	return out
}

// Fail wraps err with the current stage.
func (p *Pipeline) Fail(err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: p.current, Err: err}
}
