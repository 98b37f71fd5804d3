// Completion: 100% - Stage errors and diagnostic reports
package engine

import (
	"fmt"
	"strings"

	"github.com/xyproto/dawnc/internal/translate"
)

// StageError is the error returned by Run and Translate. It names the
// pipeline stage that failed.
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface
func (e *StageError) Error() string {
	return fmt.Sprintf("ERROR CODE: %s (%s): %v", e.Stage.Code(), strings.ToLower(e.Stage.String()), e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Code returns the stage code, for example "r100".
func (e *StageError) Code() string {
	return e.Stage.Code()
}

// FormatDiagnostic renders a translator diagnostic as a warning, with the
// token it was raised at and the tokens around it.
func FormatDiagnostic(d translate.Diagnostic, tokens []string, useColor bool) string {
	var sb strings.Builder

	if useColor {
		sb.WriteString("\033[1;33m") // Bold yellow
	}
	sb.WriteString("warning: ")
	if useColor {
		sb.WriteString("\033[0m")
	}
	sb.WriteString(d.Message)
	sb.WriteString("\n")

	if useColor {
		sb.WriteString("\033[1;34m") // Bold blue
	}
	fmt.Fprintf(&sb, "  --> token %d", d.Index)
	if useColor {
		sb.WriteString("\033[0m")
	}
	sb.WriteString("\n")

	if d.Index >= 0 && d.Index < len(tokens) {
		from := max(d.Index-2, 0)
		to := min(d.Index+5, len(tokens))
		var line, marker strings.Builder
		for i := from; i < to; i++ {
			if i > from {
				line.WriteByte(' ')
				marker.WriteByte(' ')
			}
			line.WriteString(tokens[i])
			ch := " "
			if i == d.Index {
				ch = "^"
			}
			marker.WriteString(strings.Repeat(ch, max(len(tokens[i]), 1)))
		}
		sb.WriteString("   | ")
		sb.WriteString(line.String())
		sb.WriteString("\n   | ")
		sb.WriteString(strings.TrimRight(marker.String(), " "))
		sb.WriteString("\n")
	}
	return sb.String()
}
