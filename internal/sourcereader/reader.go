// Package sourcereader implements a byte-indexed cursor over a template
// source string, with line/column bookkeeping and a movable break point
// used by the parser to bound recursive sub-parses (the bodies of
// single-line short-form directives).
package sourcereader

import (
	"fmt"
	"strings"
)

// Reader is a cursor over src. All navigation is bounds-checked against
// the current break point, never against len(src) directly, so a
// recursive sub-parse can temporarily shorten the visible input without
// copying it.
type Reader struct {
	name string
	src  string

	pos        int
	breakPoint int

	// lineStarts[i] is the byte offset of the first character of line i+1.
	lineStarts []int
}

// New creates a Reader over src. name is used only for diagnostics.
func New(name, src string) *Reader {
	r := &Reader{
		name:       name,
		src:        src,
		breakPoint: len(src),
	}
	r.indexLines()
	return r
}

func (r *Reader) indexLines() {
	r.lineStarts = []int{0}
	for i := 0; i < len(r.src); i++ {
		if r.src[i] == '\n' {
			r.lineStarts = append(r.lineStarts, i+1)
		}
	}
}

// Name returns the reader's diagnostic name.
func (r *Reader) Name() string { return r.name }

// Len returns the length of the full underlying source, ignoring the
// break point.
func (r *Reader) Len() int { return len(r.src) }

// Pos returns the current cursor position.
func (r *Reader) Pos() int { return r.pos }

// SetPos moves the cursor to an arbitrary position at or before the break
// point. Used to back up to a saved position after a lookahead.
func (r *Reader) SetPos(pos int) {
	if pos < 0 || pos > r.breakPoint {
		panic(fmt.Sprintf("sourcereader: SetPos %d out of bounds [0,%d]", pos, r.breakPoint))
	}
	r.pos = pos
}

// BreakPoint returns the current break point.
func (r *Reader) BreakPoint() int { return r.breakPoint }

// SetBreakPoint installs a temporary upper bound on the cursor, used when
// the parser recursively parses a bounded slice (a single-line
// short-form directive body). Callers must
// save the previous break point and restore it when the bounded parse
// finishes.
func (r *Reader) SetBreakPoint(pos int) {
	if pos < r.pos || pos > len(r.src) {
		panic(fmt.Sprintf("sourcereader: SetBreakPoint %d out of bounds [%d,%d]", pos, r.pos, len(r.src)))
	}
	r.breakPoint = pos
}

// AtEnd reports whether the cursor has reached the break point.
func (r *Reader) AtEnd() bool { return r.pos >= r.breakPoint }

// Peek returns the byte at pos+offset without consuming it. Fails if out
// of bounds, per spec: reads past the break point are a programmer error,
// not a soft EOF signal — callers must check AtEnd()/remaining length
// first.
func (r *Reader) Peek(offset int) byte {
	i := r.pos + offset
	if i < 0 || i >= r.breakPoint {
		panic(fmt.Sprintf("sourcereader: Peek(%d) out of bounds at pos=%d breakPoint=%d", offset, r.pos, r.breakPoint))
	}
	return r.src[i]
}

// PeekSafe is Peek without the panic: returns (0, false) out of bounds.
// Used by lookahead code that legitimately probes near the break point.
func (r *Reader) PeekSafe(offset int) (byte, bool) {
	i := r.pos + offset
	if i < 0 || i >= r.breakPoint {
		return 0, false
	}
	return r.src[i], true
}

// Getc consumes and returns the next byte, advancing the cursor by one.
func (r *Reader) Getc() byte {
	c := r.Peek(0)
	r.pos++
	return c
}

// Advance moves the cursor forward n bytes. Panics if this would cross
// the break point.
func (r *Reader) Advance(n int) {
	if r.pos+n > r.breakPoint || r.pos+n < 0 {
		panic(fmt.Sprintf("sourcereader: Advance(%d) out of bounds at pos=%d breakPoint=%d", n, r.pos, r.breakPoint))
	}
	r.pos += n
}

// Rev moves the cursor backward n bytes.
func (r *Reader) Rev(n int) {
	if r.pos-n < 0 {
		panic(fmt.Sprintf("sourcereader: Rev(%d) out of bounds at pos=%d", n, r.pos))
	}
	r.pos -= n
}

// Remaining returns the number of bytes left before the break point.
func (r *Reader) Remaining() int {
	return r.breakPoint - r.pos
}

// StartsWith reports whether the unread input (up to the break point)
// begins with substr.
func (r *Reader) StartsWith(substr string) bool {
	return r.StartsWithAt(0, substr)
}

// StartsWithAt reports whether the input at pos+offset (up to the break
// point) begins with substr.
func (r *Reader) StartsWithAt(offset int, substr string) bool {
	start := r.pos + offset
	end := start + len(substr)
	if start < 0 || end > r.breakPoint {
		return false
	}
	return r.src[start:end] == substr
}

// Find returns the index (relative to the start of src, not to pos) of
// the next occurrence of substr at or after from, bounded by the break
// point. Returns -1 if not found.
func (r *Reader) Find(substr string, from int) int {
	if from > r.breakPoint {
		from = r.breakPoint
	}
	visible := r.src[from:r.breakPoint]
	idx := strings.Index(visible, substr)
	if idx < 0 {
		return -1
	}
	return from + idx
}

// ReadTo returns the slice [start, end) and advances the cursor to end.
func (r *Reader) ReadTo(start, end int) string {
	if end > r.breakPoint {
		panic(fmt.Sprintf("sourcereader: ReadTo end %d beyond breakPoint %d", end, r.breakPoint))
	}
	s := r.src[start:end]
	r.pos = end
	return s
}

// FindBOL returns the offset of the first character of the line
// containing pos.
func (r *Reader) FindBOL(pos int) int {
	for i := len(r.lineStarts) - 1; i >= 0; i-- {
		if r.lineStarts[i] <= pos {
			return r.lineStarts[i]
		}
	}
	return 0
}

// FindEOL returns the offset of the line terminator (or end of source)
// for the line containing the current cursor. If gobble is true and the
// terminator is a "\n", the returned offset is past the "\n"; otherwise
// it points at the "\n" itself (or at len(src) if there is none).
func (r *Reader) FindEOL(gobble bool) int {
	idx := strings.IndexByte(r.src[r.pos:], '\n')
	if idx < 0 {
		return len(r.src)
	}
	eol := r.pos + idx
	if gobble {
		return eol + 1
	}
	return eol
}

// ReadToEOL reads from the current position to the end of the current
// line (see FindEOL) and advances the cursor past it.
func (r *Reader) ReadToEOL(gobble bool) string {
	end := r.FindEOL(gobble)
	if end > r.breakPoint {
		end = r.breakPoint
	}
	return r.ReadTo(r.pos, end)
}

// RowCol converts a byte offset into 1-based (row, col) diagnostic
// coordinates.
func (r *Reader) RowCol(pos int) (row, col int) {
	row = 1
	lineStart := 0
	for i, ls := range r.lineStarts {
		if ls > pos {
			break
		}
		row = i + 1
		lineStart = ls
	}
	col = pos - lineStart + 1
	return row, col
}

// LineNum returns the 1-based line number containing pos.
func (r *Reader) LineNum(pos int) int {
	row, _ := r.RowCol(pos)
	return row
}

// IsLineClearTo reports whether every character from the start of the
// line containing pos, up to (but not including) pos, is whitespace.
// Used by the parser to decide whether a directive occupies its entire
// line (spec §4.3 line-clear rule).
func (r *Reader) IsLineClearTo(pos int) bool {
	bol := r.FindBOL(pos)
	for i := bol; i < pos; i++ {
		switch r.src[i] {
		case ' ', '\t':
			continue
		default:
			return false
		}
	}
	return true
}

// Context returns numContext lines of source before and after the line
// containing pos, plus that line itself and a caret string pointing at
// the column — used to build diagnostics (spec §6).
func (r *Reader) Context(pos, numContext int) (before []string, line string, after []string, caret string) {
	row, col := r.RowCol(pos)
	lines := strings.Split(r.src, "\n")

	lo := row - 1 - numContext
	if lo < 0 {
		lo = 0
	}
	hi := row - 1 + numContext
	if hi >= len(lines) {
		hi = len(lines) - 1
	}

	if row-1 >= 0 && row-1 < len(lines) {
		line = lines[row-1]
	}
	for i := lo; i < row-1; i++ {
		before = append(before, lines[i])
	}
	for i := row; i <= hi; i++ {
		after = append(after, lines[i])
	}

	if col < 1 {
		col = 1
	}
	caret = strings.Repeat(" ", col-1) + "^"
	return before, line, after, caret
}
