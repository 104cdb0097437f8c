// Package namemapper implements the NameChunk grammar and the rewriting
// rules (spec §3 NameChunk, §4.2 NameMapper rewriting) that turn a parsed
// placeholder's dotted identifier chain into a runtime resolver call
// (VFFSL/VFN) or a direct attribute access, depending on settings.
package namemapper

import (
	"fmt"
	"strings"

	"github.com/cheetahc/cheetahc/internal/settings"
	"github.com/cheetahc/cheetahc/internal/sourcereader"
)

// Chunk is one segment of a parsed placeholder, per spec §3:
// (dotted_name, may_autocall, tail).
type Chunk struct {
	DottedName  string
	MayAutocall bool
	Tail        string
}

const identChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_"
const identCharsWithDigits = identChars + "0123456789"

func isIdentStart(c byte) bool { return strings.IndexByte(identChars, c) >= 0 }
func isIdentCont(c byte) bool  { return strings.IndexByte(identCharsWithDigits, c) >= 0 }

// ScanChunks reads an ordered sequence of NameChunks from r starting at
// the current cursor position (which must be positioned right after any
// enclosure has been stripped, at the first identifier character). It
// advances r past the whole chain and stops at the first character that
// cannot extend the chain (anything other than an identifier-continuing
// dot).
func ScanChunks(r *sourcereader.Reader) ([]Chunk, error) {
	var chunks []Chunk
	for {
		name, err := scanDottedName(r)
		if err != nil {
			return nil, err
		}
		if name == "" {
			return nil, fmt.Errorf("namemapper: expected identifier at line %d", lineOf(r))
		}
		tail, err := scanTail(r)
		if err != nil {
			return nil, err
		}
		mayAutocall := !strings.HasPrefix(tail, "(")
		chunks = append(chunks, Chunk{DottedName: name, MayAutocall: mayAutocall, Tail: tail})

		if !r.AtEnd() && r.Peek(0) == '.' {
			// Only continue the chain if a dot is followed by an
			// identifier-start character; otherwise this dot belongs to
			// whatever comes after the placeholder (e.g. end of a
			// sentence).
			if next, ok := r.PeekSafe(1); ok && isIdentStart(next) {
				r.Advance(1)
				continue
			}
		}
		break
	}
	return chunks, nil
}

func lineOf(r *sourcereader.Reader) int {
	return r.LineNum(r.Pos())
}

// scanDottedName reads the longest run of dot-separated identifiers,
// stopping before a dot that is not followed by an identifier character.
func scanDottedName(r *sourcereader.Reader) (string, error) {
	var sb strings.Builder
	if r.AtEnd() || !isIdentStart(r.Peek(0)) {
		return "", nil
	}
	for !r.AtEnd() && isIdentCont(r.Peek(0)) {
		sb.WriteByte(r.Peek(0))
		r.Advance(1)
	}
	for !r.AtEnd() && r.Peek(0) == '.' {
		if next, ok := r.PeekSafe(1); !ok || !isIdentStart(next) {
			break
		}
		sb.WriteByte('.')
		r.Advance(1)
		for !r.AtEnd() && isIdentCont(r.Peek(0)) {
			sb.WriteByte(r.Peek(0))
			r.Advance(1)
		}
	}
	return sb.String(), nil
}

// scanTail consumes zero or more immediately-adjacent bracketed groups
// ("(...)" call args or "[...]" subscript/slice), tracking nested
// brackets, and returns their concatenated verbatim text. Consumption
// stops at the first character that is not an opening bracket.
func scanTail(r *sourcereader.Reader) (string, error) {
	var sb strings.Builder
	for !r.AtEnd() {
		c := r.Peek(0)
		if c != '(' && c != '[' {
			break
		}
		group, err := scanBalancedGroup(r, c)
		if err != nil {
			return "", err
		}
		sb.WriteString(group)
	}
	return sb.String(), nil
}

var closerFor = map[byte]byte{'(': ')', '[': ']', '{': '}'}

// scanBalancedGroup consumes a bracketed group starting with opener,
// tracking a stack of {([ opens, including any string literals inside so
// that a bracket character inside a quoted string doesn't unbalance the
// count.
func scanBalancedGroup(r *sourcereader.Reader, opener byte) (string, error) {
	start := r.Pos()
	stack := []byte{opener}
	r.Advance(1)
	for len(stack) > 0 {
		if r.AtEnd() {
			return "", fmt.Errorf("namemapper: unbalanced %q starting at line %d", string(opener), r.LineNum(start))
		}
		c := r.Peek(0)
		switch c {
		case '"', '\'':
			if err := skipStringLiteral(r, c); err != nil {
				return "", err
			}
			continue
		case '(', '[', '{':
			stack = append(stack, c)
		case ')', ']', '}':
			want := closerFor[stack[len(stack)-1]]
			if c != want {
				return "", fmt.Errorf("namemapper: mismatched bracket %q at line %d", string(c), r.LineNum(r.Pos()))
			}
			stack = stack[:len(stack)-1]
		}
		r.Advance(1)
	}
	return r.ReadTo(start, r.Pos()), nil
}

func skipStringLiteral(r *sourcereader.Reader, quote byte) error {
	r.Advance(1)
	for {
		if r.AtEnd() {
			return fmt.Errorf("namemapper: unterminated string literal")
		}
		c := r.Peek(0)
		if c == '\\' {
			r.Advance(1)
			if r.AtEnd() {
				return fmt.Errorf("namemapper: unterminated string literal")
			}
			r.Advance(1)
			continue
		}
		if c == quote {
			r.Advance(1)
			return nil
		}
		r.Advance(1)
	}
}

// Rewrite turns a parsed chunk chain into the host-language expression
// text, per spec §4.2's NameMapper rewriting rules. plain forces the
// direct-attribute-access form regardless of settings (used for the
// $(expr) enclosure form, which always bypasses the name mapper).
func Rewrite(chunks []Chunk, s *settings.Settings, plain bool) string {
	if len(chunks) == 0 {
		return ""
	}

	if !s.UseNameMapper || plain {
		parts := make([]string, len(chunks))
		for i, c := range chunks {
			parts[i] = c.DottedName + c.Tail
		}
		return strings.Join(parts, ".")
	}

	dottedLookup := boolLit(s.UseDottedNotation)
	autocallOf := func(c Chunk) string {
		return boolLit(s.UseAutocalling && c.MayAutocall)
	}

	first := chunks[0]
	var acc string
	if s.UseSearchList {
		acc = fmt.Sprintf(`VFFSL(SL, "%s", %s, %s)%s`, first.DottedName, autocallOf(first), dottedLookup, first.Tail)
	} else if idx := strings.IndexByte(first.DottedName, '.'); idx >= 0 {
		head := first.DottedName[:idx]
		rest := first.DottedName[idx+1:]
		acc = fmt.Sprintf(`VFN(%s, "%s", %s, %s)%s`, head, rest, autocallOf(first), dottedLookup, first.Tail)
	} else {
		acc = first.DottedName + first.Tail
	}

	for _, c := range chunks[1:] {
		acc = fmt.Sprintf(`VFN(%s, "%s", %s, %s)%s`, acc, c.DottedName, autocallOf(c), dottedLookup, c.Tail)
	}
	return acc
}

func boolLit(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
