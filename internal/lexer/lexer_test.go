package lexer

import (
	"testing"

	"github.com/cheetahc/cheetahc/internal/settings"
	"github.com/cheetahc/cheetahc/internal/sourcereader"
)

func newLexer(t *testing.T, src string) *Lexer {
	t.Helper()
	r := sourcereader.New("<string>", src)
	return New(r, settings.New())
}

func TestReadPlainTextRunStopsAtTokenStarts(t *testing.T) {
	l := newLexer(t, "hello $name world")
	text := l.ReadPlainTextRun()
	if text != "hello " {
		t.Fatalf("got %q", text)
	}
	if !l.AtPlaceholderStart() {
		t.Fatalf("expected cursor at placeholder start")
	}
}

func TestReadPlainTextRunEscapes(t *testing.T) {
	l := newLexer(t, `a \$b \#c d`)
	text := l.ReadPlainTextRun()
	if text != "a $b #c d" {
		t.Fatalf("got %q", text)
	}
}

func TestAtCommentVsDirectiveStart(t *testing.T) {
	l := newLexer(t, "## a comment\n")
	if !l.AtCommentStart() {
		t.Fatalf("expected comment start")
	}
	if l.AtDirectiveStart() {
		t.Fatalf("## must not also read as a directive start")
	}

	l2 := newLexer(t, "#if $x\n")
	if l2.AtCommentStart() {
		t.Fatalf("single # must not read as comment start")
	}
	if !l2.AtDirectiveStart() {
		t.Fatalf("expected directive start")
	}
}

func TestSkipComment(t *testing.T) {
	l := newLexer(t, "## note\nrest")
	l.SkipComment()
	if l.R.Pos() != len("## note") {
		t.Fatalf("pos = %d", l.R.Pos())
	}
}

func TestAtScriptletStart(t *testing.T) {
	l := newLexer(t, "<% x = 1 %>")
	if !l.AtScriptletStart() {
		t.Fatalf("expected scriptlet start")
	}
}

func TestReadScriptlet(t *testing.T) {
	l := newLexer(t, "<% x = 1 %>rest")
	content, err := l.ReadScriptlet()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if content != " x = 1 " {
		t.Fatalf("got %q", content)
	}
	if l.R.ReadToEOL(false) != "rest" {
		t.Fatalf("cursor not left after closing %%>")
	}
}

func TestReadScriptletUnclosed(t *testing.T) {
	l := newLexer(t, "<% x = 1")
	if _, err := l.ReadScriptlet(); err == nil {
		t.Fatalf("expected error for unclosed scriptlet")
	}
}

func TestReadPlaceholderBare(t *testing.T) {
	l := newLexer(t, "$name")
	got, err := l.ReadPlaceholder()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	want := `VFFSL(SL, "name", True, True)`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestReadPlaceholderBraced(t *testing.T) {
	l := newLexer(t, "${name}")
	got, err := l.ReadPlaceholder()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	want := `VFFSL(SL, "name", True, True)`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestReadPlaceholderPlainParens(t *testing.T) {
	l := newLexer(t, "$(name.attr)")
	got, err := l.ReadPlaceholder()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	want := "name.attr"
	if got != want {
		t.Fatalf("$(...) bypasses the name mapper and joins chunks with '.', got %q want %q", got, want)
	}
}

func TestReadPlaceholderUnclosedEnclosure(t *testing.T) {
	l := newLexer(t, "${name")
	if _, err := l.ReadPlaceholder(); err == nil {
		t.Fatalf("expected error for unclosed placeholder enclosure")
	}
}

func TestNextHostTokenOperatorsLongestMatchFirst(t *testing.T) {
	l := newLexer(t, "**==")
	tok, err := l.NextHostToken()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if tok.Text != "**" {
		t.Fatalf("got %q, want **", tok.Text)
	}
	tok2, err := l.NextHostToken()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if tok2.Text != "==" {
		t.Fatalf("got %q, want ==", tok2.Text)
	}
}

func TestNextHostTokenIdentifierAndNumber(t *testing.T) {
	l := newLexer(t, "foo_bar 12.5")
	tok, _ := l.NextHostToken()
	if tok.Kind != TokIdent || tok.Text != "foo_bar" {
		t.Fatalf("got %+v", tok)
	}
	l.SkipInlineSpaceAndContinuations()
	tok2, err := l.NextHostToken()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if tok2.Kind != TokNumber || tok2.Text != "12.5" {
		t.Fatalf("got %+v", tok2)
	}
}

func TestScanStringLiteralSingleLine(t *testing.T) {
	l := newLexer(t, `"a\"b" rest`)
	tok, err := l.NextHostToken()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if tok.Kind != TokString || tok.Text != `"a\"b"` {
		t.Fatalf("got %+v", tok)
	}
}

func TestScanStringLiteralUnterminated(t *testing.T) {
	l := newLexer(t, `"abc`)
	if _, err := l.NextHostToken(); err == nil {
		t.Fatalf("expected error for unterminated string")
	}
}

func TestScanStringLiteralNewlineInSingleQuoted(t *testing.T) {
	l := newLexer(t, "\"abc\ndef\"")
	if _, err := l.NextHostToken(); err == nil {
		t.Fatalf("expected error for embedded newline")
	}
}

func TestScanTripleQuotedStringAcrossLines(t *testing.T) {
	l := newLexer(t, "\"\"\"line one\nline two\"\"\" rest")
	tok, err := l.NextHostToken()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	want := "\"\"\"line one\nline two\"\"\""
	if tok.Kind != TokString || tok.Text != want {
		t.Fatalf("got %+v", tok)
	}
}

func TestScanTripleQuotedStringUnclosed(t *testing.T) {
	l := newLexer(t, "'''abc\ndef")
	if _, err := l.NextHostToken(); err == nil {
		t.Fatalf("expected error for unclosed triple-quoted string")
	}
}

func TestSkipInlineSpaceAndContinuations(t *testing.T) {
	l := newLexer(t, "  \\\n  x")
	l.SkipInlineSpaceAndContinuations()
	if l.R.Peek(0) != 'x' {
		t.Fatalf("expected cursor at 'x', got %q", string(l.R.Peek(0)))
	}
}

func TestGetExpressionStopsAtBreakToken(t *testing.T) {
	l := newLexer(t, "x + 1 then rest")
	expr, err := l.GetExpression("then", "else")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if expr != "x + 1" {
		t.Fatalf("got %q", expr)
	}
	if !l.matchBreakToken([]string{"then"}, false) {
		t.Fatalf("expected cursor positioned at 'then'")
	}
}

func TestGetExpressionStopsAtNewline(t *testing.T) {
	l := newLexer(t, "x + 1\nnext line")
	expr, err := l.GetExpression()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if expr != "x + 1" {
		t.Fatalf("got %q", expr)
	}
}

func TestGetExpressionForInDoesNotBreakOnIn(t *testing.T) {
	l := newLexer(t, "x for x in $items:")
	expr, err := l.GetExpression(":")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	want := `x for x in VFFSL(SL, "items", True, True)`
	if expr != want {
		t.Fatalf("got %q want %q", expr, want)
	}
}

func TestGetExpressionWithPlaceholder(t *testing.T) {
	l := newLexer(t, "$a + $b")
	expr, err := l.GetExpression()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	want := `VFFSL(SL, "a", True, True) + VFFSL(SL, "b", True, True)`
	if expr != want {
		t.Fatalf("got %q want %q", expr, want)
	}
}

func TestGetExpressionLeavesCallersCloseBracket(t *testing.T) {
	l := newLexer(t, "x)")
	expr, err := l.GetExpression()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if expr != "x" {
		t.Fatalf("got %q", expr)
	}
	if l.R.Peek(0) != ')' {
		t.Fatalf("expected ')' left unconsumed, cursor at %q", string(l.R.Peek(0)))
	}
}

func TestGetExpressionUnbalancedBrackets(t *testing.T) {
	l := newLexer(t, "(1 + 2\n")
	if _, err := l.GetExpression(); err == nil {
		t.Fatalf("expected error for unbalanced brackets")
	}
}

func TestGetCallArgString(t *testing.T) {
	l := newLexer(t, `(1, $name, key=2)rest`)
	got, err := l.GetCallArgString()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	want := `(1, VFFSL(SL, "name", True, True), key=2)`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if l.R.ReadToEOL(false) != "rest" {
		t.Fatalf("cursor not left after closing paren")
	}
}

func TestGetCallArgStringNested(t *testing.T) {
	l := newLexer(t, `(f(1, 2), [3, 4])`)
	got, err := l.GetCallArgString()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if got != `(f(1, 2), [3, 4])` {
		t.Fatalf("got %q", got)
	}
}

func TestGetCallArgStringUnclosed(t *testing.T) {
	l := newLexer(t, `(1, 2`)
	if _, err := l.GetCallArgString(); err == nil {
		t.Fatalf("expected error for unclosed call-arg list")
	}
}

func TestGetDefArgList(t *testing.T) {
	l := newLexer(t, "(a, b=1, *args, **kwargs)")
	args, err := l.GetDefArgList()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %d: %+v", len(args), args)
	}
	if args[0].Name != "a" || args[0].HasDefault {
		t.Fatalf("arg0 = %+v", args[0])
	}
	if args[1].Name != "b" || !args[1].HasDefault || args[1].Default != "1" {
		t.Fatalf("arg1 = %+v", args[1])
	}
	if args[2].Name != "*args" {
		t.Fatalf("arg2 = %+v", args[2])
	}
	if args[3].Name != "**kwargs" {
		t.Fatalf("arg3 = %+v", args[3])
	}
}

func TestGetDefArgListEmpty(t *testing.T) {
	l := newLexer(t, "()")
	args, err := l.GetDefArgList()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(args) != 0 {
		t.Fatalf("expected 0 args, got %+v", args)
	}
}

func TestGetDefArgListDefaultExpression(t *testing.T) {
	l := newLexer(t, "(x=$a + 1, y=2)")
	args, err := l.GetDefArgList()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	want := `VFFSL(SL, "a", True, True) + 1`
	if args[0].Default != want {
		t.Fatalf("got %q want %q", args[0].Default, want)
	}
	if args[1].Default != "2" {
		t.Fatalf("got %q", args[1].Default)
	}
}
