// Package cerr implements the compiler's error taxonomy (spec §7) and the
// diagnostic report format (spec §6): message, row, column, filename, and
// three lines of source context before/after with a caret.
package cerr

import (
	"fmt"
	"strings"

	"github.com/cheetahc/cheetahc/internal/sourcereader"
)

// Kind classifies a compile error per spec §7. These are taxonomy tags,
// not distinct Go types, so callers can switch on Kind without a type
// assertion per error class.
type Kind string

const (
	Lexical            Kind = "LexicalError"
	UnknownDirective    Kind = "UnknownDirective"
	MismatchedEnd       Kind = "MismatchedEnd"
	InvalidSyntax       Kind = "InvalidSyntax"
	InvariantViolation  Kind = "InvariantViolation"
)

// Error is the fatal, non-recoverable error returned by a failed compile
// (spec §7: "a failed compile produces no module text").
type Error struct {
	Kind     Kind
	Filename string
	Line     int
	Column   int
	Message  string

	// Context holds spec §6's three-lines-before/after-plus-caret report,
	// pre-rendered so callers don't need a second pass over the source.
	Context string
}

func (e *Error) Error() string {
	loc := ""
	if e.Filename != "" {
		loc = fmt.Sprintf(" in %s", e.Filename)
	}
	if e.Line > 0 {
		loc += fmt.Sprintf(" | Line %d Col %d", e.Line, e.Column)
	}
	s := fmt.Sprintf("[%s%s] %s", e.Kind, loc, e.Message)
	if e.Context != "" {
		s += "\n" + e.Context
	}
	return s
}

// New builds an Error anchored at pos within r's source, with the
// message built from format/args, and a rendered three-line context
// block.
func New(kind Kind, r *sourcereader.Reader, pos int, format string, args ...interface{}) *Error {
	row, col := r.RowCol(pos)
	before, line, after, caret := r.Context(pos, 3)

	var sb strings.Builder
	for _, l := range before {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	sb.WriteString(line)
	sb.WriteByte('\n')
	sb.WriteString(caret)
	for _, l := range after {
		sb.WriteByte('\n')
		sb.WriteString(l)
	}

	return &Error{
		Kind:     kind,
		Filename: r.Name(),
		Line:     row,
		Column:   col,
		Message:  fmt.Sprintf(format, args...),
		Context:  sb.String(),
	}
}

// Internal raises an InvariantViolation for a condition that should be
// unreachable if the rest of the compiler is correct (spec §7:
// "InvariantViolation (internal): dedent below zero, finalize with
// non-empty active-method stack, return+yield in same method").
func Internal(format string, args ...interface{}) *Error {
	return &Error{
		Kind:    InvariantViolation,
		Message: fmt.Sprintf(format, args...),
	}
}
