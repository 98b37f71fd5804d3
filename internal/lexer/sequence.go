package lexer

import (
	"fmt"
	"strings"
)

// Unbounded disables the capacity check of a Sequence. Any negative
// capacity has the same effect.
const Unbounded = -1

// Sequence is a capacity-bounded, ordered list of strings with an explicit
// lifecycle: it is filled once by the stage that owns it, then sealed.
// Appends beyond the capacity are dropped and counted, appends after Seal panic.
//
// The same container holds both the surface-language tokens and the
// target-language fragments produced by the translator.
type Sequence struct {
	name     string
	items    []string
	capacity int
	dropped  int
	sealed   bool
}

// NewSequence creates an empty sequence. A capacity of Unbounded means no limit.
func NewSequence(name string, capacity int) *Sequence {
	if capacity < 0 {
		capacity = Unbounded
	}
	return &Sequence{
		name:     name,
		items:    make([]string, 0, initialSize(capacity)),
		capacity: capacity,
	}
}

func initialSize(capacity int) int {
	if capacity == Unbounded {
		return 1024
	}
	return min(capacity, 1024)
}

// FromStrings builds a sealed, unbounded sequence, mostly useful for tests
// and for feeding hand-made token lists to the translator.
func FromStrings(name string, items ...string) *Sequence {
	s := NewSequence(name, Unbounded)
	s.items = append(s.items, items...)
	s.Seal()
	return s
}

// Append adds an item. It returns false when the item was dropped because the
// sequence is full.
func (s *Sequence) Append(item string) bool {
	if s.sealed {
		panic(fmt.Sprintf("Sequence(%s): cannot append to sealed sequence", s.name))
	}
	if s.capacity != Unbounded && len(s.items) >= s.capacity {
		s.dropped++
		return false
	}
	s.items = append(s.items, item)
	return true
}

// Seal marks the sequence as complete.
func (s *Sequence) Seal() {
	s.sealed = true
}

// Sealed reports whether Seal has been called.
func (s *Sequence) Sealed() bool {
	return s.sealed
}

// Name returns the debugging name given at construction.
func (s *Sequence) Name() string {
	return s.name
}

// Len returns the number of stored items.
func (s *Sequence) Len() int {
	return len(s.items)
}

// Cap returns the configured capacity, or Unbounded.
func (s *Sequence) Cap() int {
	return s.capacity
}

// Dropped returns how many appends were refused because of the capacity.
func (s *Sequence) Dropped() int {
	return s.dropped
}

// At returns the item at index i. It panics when i is out of range, use Peek
// for lookahead.
func (s *Sequence) At(i int) string {
	return s.items[i]
}

// Peek returns the item at index i and whether i is inside the sequence.
func (s *Sequence) Peek(i int) (string, bool) {
	if i < 0 || i >= len(s.items) {
		return "", false
	}
	return s.items[i], true
}

// Items returns a copy of the stored items.
func (s *Sequence) Items() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// String concatenates all items without separators.
func (s *Sequence) String() string {
	var sb strings.Builder
	for _, item := range s.items {
		sb.WriteString(item)
	}
	return sb.String()
}
