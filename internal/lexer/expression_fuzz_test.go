package lexer

import (
	"strings"
	"testing"

	"github.com/cheetahc/cheetahc/internal/settings"
	"github.com/cheetahc/cheetahc/internal/sourcereader"
)

// FuzzGetExpression fuzzes the bracket-depth/break-token expression
// scanner (spec §4.2 getExpression), grounded on the teacher's
// expression_fuzz_test.go: GetExpression must never panic, and it must
// either return a bracket-balanced prefix of the input or a LexicalError
// naming the unbalanced opener — never silently desync the cursor past
// the end of the source.
func FuzzGetExpression(f *testing.F) {
	f.Add("1 + 1")
	f.Add("$a.b.c")
	f.Add("$a.b.c[1].d().x")
	f.Add("(1 + 2) * 3")
	f.Add("foo(1, 2, 3)")
	f.Add("for x in $items")
	f.Add(`"unterminated`)
	f.Add(`"""triple`)
	f.Add("$a(")
	f.Add("$a)")
	f.Add("[[[[[")
	f.Add("]]]]]")
	f.Add("a \\\nb")
	f.Add(strings.Repeat("(", 200) + strings.Repeat(")", 200))
	f.Add("")

	f.Fuzz(func(t *testing.T, src string) {
		r := sourcereader.New("<fuzz>", src)
		l := New(r, settings.New())
		_, _ = l.GetExpression(":")
		if r.Pos() < 0 || r.Pos() > len(src) {
			t.Fatalf("cursor escaped source bounds: pos=%d len=%d", r.Pos(), len(src))
		}
	})
}

// FuzzScanStringLiteral fuzzes the single- and triple-quoted string
// scanners (spec §4.2's triple-quote callout): a malformed triple-quote
// must return an error, never panic or loop forever.
func FuzzScanStringLiteral(f *testing.F) {
	f.Add(`"hello"`)
	f.Add(`'hello'`)
	f.Add(`"""hello\nworld"""`)
	f.Add(`'''hello'''`)
	f.Add(`"unterminated`)
	f.Add(`"""unterminated`)
	f.Add(`""`)
	f.Add(`""""""`)
	f.Add(`"a\`)
	f.Add(`"""a\`)

	f.Fuzz(func(t *testing.T, src string) {
		r := sourcereader.New("<fuzz>", src)
		l := New(r, settings.New())
		if r.AtEnd() {
			return
		}
		c := r.Peek(0)
		if c != '"' && c != '\'' {
			return
		}
		_, _ = l.scanStringLiteral(r.Pos())
		if r.Pos() < 0 || r.Pos() > len(src) {
			t.Fatalf("cursor escaped source bounds: pos=%d len=%d", r.Pos(), len(src))
		}
	})
}
