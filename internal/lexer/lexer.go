// Package lexer splits DawnLang source lines into a flat token sequence.
//
// Tokens are maximal runs of non-delimiter characters, or single delimiter
// characters. Spaces separate tokens but are never emitted themselves.
// Line boundaries leave no trace in the output.
package lexer

import (
	"strings"

	"go.uber.org/zap"
)

// Delimiters are the characters that end a token and are emitted as
// single-character tokens of their own.
const Delimiters = ";{}()\"=+-<>[]"

// IsDelimiter reports whether c ends a token. Space is a delimiter that is not
// emitted as a token.
func IsDelimiter(c byte) bool {
	return c == ' ' || strings.IndexByte(Delimiters, c) >= 0
}

// Tokenizer turns lines into a token sequence.
type Tokenizer struct {
	maxTokens int
	log       *zap.Logger
}

// New returns a tokenizer whose output holds at most maxTokens tokens
// (Unbounded for no limit).
func New(maxTokens int, log *zap.Logger) *Tokenizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tokenizer{maxTokens: maxTokens, log: log}
}

// Tokenize scans every line in order and returns the sealed token sequence.
func (t *Tokenizer) Tokenize(lines []string) *Sequence {
	tokens := NewSequence("tokens", t.maxTokens)
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens.Append(current.String())
			current.Reset()
		}
	}

	for _, line := range lines {
		hasNonDelimiter := false
		for j := 0; j < len(line); j++ {
			c := line[j]
			if !IsDelimiter(c) {
				current.WriteByte(c)
				hasNonDelimiter = true
				continue
			}
			flush()
			if c != ' ' {
				tokens.Append(string(c))
			}
		}
		if hasNonDelimiter {
			flush()
		}
		current.Reset()
	}
	tokens.Seal()

	if tokens.Dropped() > 0 {
		t.log.Debug("token capacity reached, excess tokens dropped",
			zap.Int("capacity", tokens.Cap()), zap.Int("dropped", tokens.Dropped()))
	}
	t.log.Debug("tokenized", zap.Int("lines", len(lines)), zap.Int("tokens", tokens.Len()))
	return tokens
}

// Tokenize is a shorthand for New(maxTokens, nil).Tokenize(lines).
func Tokenize(lines []string, maxTokens int) *Sequence {
	return New(maxTokens, nil).Tokenize(lines)
}
