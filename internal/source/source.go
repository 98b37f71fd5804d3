// Package source loads a DawnLang program into a bounded list of lines.
package source

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const (
	// DefaultMaxLines is the number of lines a buffer keeps by default.
	DefaultMaxLines = 5000
	// DefaultMaxLineLength is the maximum number of bytes kept per line.
	DefaultMaxLineLength = 255
)

// Limits bounds a Buffer. Zero values fall back to the defaults.
type Limits struct {
	MaxLines      int
	MaxLineLength int
}

func (l Limits) withDefaults() Limits {
	if l.MaxLines <= 0 {
		l.MaxLines = DefaultMaxLines
	}
	if l.MaxLineLength <= 0 {
		l.MaxLineLength = DefaultMaxLineLength
	}
	return l
}

// Buffer holds the lines of one program in input order.
type Buffer struct {
	Path      string
	lines     []string
	limits    Limits
	dropped   int
	truncated int
}

// Load reads path from fs. Lines longer than the limit are truncated and lines
// past the capacity are dropped; neither is an error.
func Load(fs afero.Fs, path string, limits Limits) (*Buffer, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", path)
	}
	defer f.Close()

	b, err := Read(f, limits)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	b.Path = path
	return b, nil
}

// Read fills a buffer from r.
func Read(r io.Reader, limits Limits) (*Buffer, error) {
	b := &Buffer{limits: limits.withDefaults()}
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			b.add(strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r"))
		}
		if err == io.EOF {
			return b, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// FromString builds a buffer from in-memory source text.
func FromString(text string, limits Limits) *Buffer {
	b, _ := Read(strings.NewReader(text), limits)
	return b
}

// FromLines builds a buffer from already split lines.
func FromLines(lines []string, limits Limits) *Buffer {
	b := &Buffer{limits: limits.withDefaults()}
	for _, line := range lines {
		b.add(line)
	}
	return b
}

func (b *Buffer) add(line string) {
	if len(b.lines) >= b.limits.MaxLines {
		b.dropped++
		return
	}
	if len(line) > b.limits.MaxLineLength {
		line = Truncate(line, b.limits.MaxLineLength)
		b.truncated++
	}
	b.lines = append(b.lines, line)
}

// Truncate shortens s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Lines returns the stored lines.
func (b *Buffer) Lines() []string {
	return b.lines
}

// Len returns the number of stored lines.
func (b *Buffer) Len() int {
	return len(b.lines)
}

// Dropped returns how many lines were discarded because the buffer was full.
func (b *Buffer) Dropped() int {
	return b.dropped
}

// Truncated returns how many stored lines were shortened.
func (b *Buffer) Truncated() int {
	return b.truncated
}

// Limits returns the effective limits.
func (b *Buffer) Limits() Limits {
	return b.limits
}
