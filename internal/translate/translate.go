// Package translate rewrites a DawnLang token sequence into C text fragments.
//
// The translator is a positional macro expander, not a parser. A cursor
// walks the tokens one index at a time; at every index the first rule whose
// keyword equals the current token may fire, reading further tokens at fixed
// offsets. The cursor then advances by one, so tokens already read through
// lookahead are visited again.
//
// Lookahead past the end of the sequence reads the empty token. Keywords
// whose surroundings do not have the expected shape produce no output, or
// partial output, and a Diagnostic; translation never fails.
package translate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xyproto/dawnc/internal/lexer"
)

// DefaultMaxOutput is the default capacity of the output sequence.
const DefaultMaxOutput = 5000

// Diagnostic describes a construct the translator could not expand as
// written. Diagnostics never change the output.
type Diagnostic struct {
	Index   int
	Keyword string
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("token %d (%s): %s", d.Index, d.Keyword, d.Message)
}

// Options configures an Engine.
type Options struct {
	// MaxOutput bounds the output sequence; lexer.Unbounded, or any negative
	// value, disables the limit. Zero selects DefaultMaxOutput.
	MaxOutput int
	// Modules is the #include table. Nil selects the built-in registry.
	Modules *Registry
	Log     *zap.Logger
}

// Result is everything one translation produced.
type Result struct {
	Output          *lexer.Sequence
	DeclaredInts    []int
	DeclaredStrings []string
	Diagnostics     []Diagnostic
}

// Text concatenates the output fragments.
func (r *Result) Text() string {
	return r.Output.String()
}

// Engine holds the rule table configuration. It keeps no state between
// calls to Translate.
type Engine struct {
	maxOutput int
	modules   *Registry
	log       *zap.Logger
}

// New creates an Engine.
func New(opts Options) *Engine {
	if opts.MaxOutput == 0 {
		opts.MaxOutput = DefaultMaxOutput
	}
	if opts.Modules == nil {
		opts.Modules = NewRegistry()
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return &Engine{maxOutput: opts.MaxOutput, modules: opts.Modules, log: opts.Log}
}

// Modules returns the include registry used by the engine.
func (e *Engine) Modules() *Registry {
	return e.modules
}

// Translate runs the rule table over tokens and returns the sealed output.
func (e *Engine) Translate(tokens *lexer.Sequence) *Result {
	t := &translation{
		engine: e,
		tokens: tokens,
		result: &Result{Output: lexer.NewSequence("output", e.maxOutput)},
	}
	for t.cursor = 0; t.cursor < tokens.Len(); t.cursor++ {
		t.step()
	}
	t.result.Output.Seal()

	if dropped := t.result.Output.Dropped(); dropped > 0 {
		e.log.Debug("output capacity reached, excess fragments dropped",
			zap.Int("capacity", t.result.Output.Cap()), zap.Int("dropped", dropped))
	}
	for _, d := range t.result.Diagnostics {
		e.log.Debug("unmatched construct", zap.Int("index", d.Index),
			zap.String("keyword", d.Keyword), zap.String("detail", d.Message))
	}
	e.log.Debug("translated", zap.Int("tokens", tokens.Len()),
		zap.Int("fragments", t.result.Output.Len()), zap.Int("diagnostics", len(t.result.Diagnostics)))
	return t.result
}

// Translate is a shorthand for New(Options{}).Translate(tokens).
func Translate(tokens *lexer.Sequence) *Result {
	return New(Options{}).Translate(tokens)
}

// translation is the state of a single run.
type translation struct {
	engine  *Engine
	tokens  *lexer.Sequence
	result  *Result
	cursor  int
	keyword string
}

func (t *translation) step() {
	current := t.tokens.At(t.cursor)
	for _, r := range rules {
		if r.keyword != current {
			continue
		}
		t.keyword = r.keyword
		if r.apply(t, t.cursor) {
			return
		}
	}
}

// peek reads the token at index i. Positions past the end read as "".
func (t *translation) peek(i int) string {
	tok, ok := t.tokens.Peek(i)
	if !ok {
		t.diagnose(fmt.Sprintf("lookahead to token %d is past the end of the program", i))
	}
	return tok
}

func (t *translation) emit(fragments ...string) {
	for _, f := range fragments {
		t.result.Output.Append(f)
	}
}

func (t *translation) diagnose(msg string) {
	t.result.Diagnostics = append(t.result.Diagnostics, Diagnostic{
		Index:   t.cursor,
		Keyword: t.keyword,
		Message: msg,
	})
}

// Keywords lists the rule keywords in priority order.
func Keywords() []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.keyword
	}
	return out
}

// atoi parses the leading integer of s the way C's atoi does: optional
// leading whitespace and sign, then digits up to the first non-digit.
// Anything unparsable yields 0; out-of-range values saturate.
func atoi(s string) int {
	s = strings.TrimLeft(s, " \t\n\v\f\r")
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	const limit = int64(1) << 31
	var n int64
	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int64(s[i]-'0')
		if n > limit {
			n = limit
		}
	}
	if neg {
		n = -n
	}
	if n > limit-1 {
		n = limit - 1
	}
	return int(n)
}

// dropLast removes the final character of s.
func dropLast(s string) string {
	if s == "" {
		return s
	}
	_, size := utf8.DecodeLastRuneInString(s)
	return s[:len(s)-size]
}
