// Package lexer implements the character-level scanner described in spec
// §4.2: it recognizes template-grammar tokens (placeholder/directive/
// comment/scriptlet starts) and, when the parser asks it to scan an
// expression, host-language tokens (identifiers, numbers, strings
// including triple-quoted, operators, balanced brackets). It never builds
// an AST; it hands the parser raw or already-namemapper-rewritten text.
package lexer

import (
	"strings"

	"github.com/cheetahc/cheetahc/internal/cerr"
	"github.com/cheetahc/cheetahc/internal/namemapper"
	"github.com/cheetahc/cheetahc/internal/settings"
	"github.com/cheetahc/cheetahc/internal/sourcereader"
)

// Lexer wraps a Reader and a Tables snapshot; the tables are rebuilt from
// the settings only when RebuildTables is called.
type Lexer struct {
	R        *sourcereader.Reader
	settings *settings.Settings
	tables   *Tables
}

// New creates a Lexer over r, bound to s (settings are consulted live, so
// mutating s — e.g. via #compiler-settings — takes effect on the next
// table rebuild).
func New(r *sourcereader.Reader, s *settings.Settings) *Lexer {
	l := &Lexer{R: r, settings: s}
	l.RebuildTables()
	return l
}

// RebuildTables regenerates the token tables from the current settings,
// unconditionally (the settings generation is not consulted). The parser
// calls it after each #compiler-settings application (spec §4.2).
func (l *Lexer) RebuildTables() {
	l.tables = BuildTables(l.settings)
}

// Tables returns the lexer's current table snapshot.
func (l *Lexer) Tables() *Tables { return l.tables }

// --- template-grammar token starts -----------------------------------

// AtCommentStart reports whether the cursor sits at a "##" comment
// start. Checked before AtDirectiveStart since "#" is a prefix of "##".
func (l *Lexer) AtCommentStart() bool {
	return l.unescaped() && l.R.StartsWith(l.tables.CommentStart)
}

// AtDirectiveStart reports whether the cursor sits at a "#" directive
// start that is not actually a "##" comment start.
func (l *Lexer) AtDirectiveStart() bool {
	if l.AtCommentStart() {
		return false
	}
	return l.unescaped() && l.R.StartsWith(l.tables.DirectiveStart)
}

// AtScriptletStart reports whether the cursor sits at "<%".
func (l *Lexer) AtScriptletStart() bool {
	return l.unescaped() && l.R.StartsWith(l.tables.ScriptletStart)
}

// AtPlaceholderStart reports whether the cursor sits at a variable
// placeholder start: the var token followed by an optional enclosure
// ("{", "(", "[" plus inline whitespace) and then either an identifier
// or another enclosure character.
func (l *Lexer) AtPlaceholderStart() bool {
	if !l.unescaped() || !l.R.StartsWith(l.tables.VarStart) {
		return false
	}
	offset := len(l.tables.VarStart)
	// Skip an optional enclosure + inline whitespace to look at what
	// follows; this is lookahead only, it does not consume.
	if c, ok := l.R.PeekSafe(offset); ok && (c == '{' || c == '(' || c == '[') {
		offset++
		for {
			c, ok := l.R.PeekSafe(offset)
			if !ok || (c != ' ' && c != '\t') {
				break
			}
			offset++
		}
	}
	c, ok := l.R.PeekSafe(offset)
	if !ok {
		return false
	}
	return isIdentStart(c) || c == '{' || c == '(' || c == '['
}

// unescaped reports whether the character immediately before the cursor
// is NOT a backslash — i.e. whatever token the cursor is sitting on is a
// real token start, not an escaped literal. Start-of-input counts as
// unescaped.
func (l *Lexer) unescaped() bool {
	if l.R.Pos() == 0 {
		return true
	}
	before, ok := l.R.PeekSafe(-1)
	return !ok || before != '\\'
}

const identChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_"
const identCharsDigits = identChars + "0123456789"
const digits = "0123456789"

func isIdentStart(c byte) bool { return strings.IndexByte(identChars, c) >= 0 }
func isIdentCont(c byte) bool  { return strings.IndexByte(identCharsDigits, c) >= 0 }
func isDigit(c byte) bool      { return strings.IndexByte(digits, c) >= 0 }

// --- plain text --------------------------------------------------------

// ReadPlainTextRun consumes raw template text up to (but not including)
// the next unescaped comment/directive/placeholder/scriptlet start, or
// end of input. Escaped token characters (\$, \#) are reduced to their
// bare form in the returned text, per spec §4.2's escape rule.
func (l *Lexer) ReadPlainTextRun() string {
	var sb strings.Builder
	for !l.R.AtEnd() {
		if l.AtCommentStart() || l.AtDirectiveStart() || l.AtPlaceholderStart() || l.AtScriptletStart() {
			break
		}
		c := l.R.Peek(0)
		if c == '\\' {
			if next, ok := l.R.PeekSafe(1); ok && l.isEscapableTokenChar(next) {
				l.R.Advance(2)
				sb.WriteByte(next)
				continue
			}
		}
		sb.WriteByte(c)
		l.R.Advance(1)
	}
	return sb.String()
}

func (l *Lexer) isEscapableTokenChar(c byte) bool {
	return string(c) == l.tables.VarStart || string(c) == l.tables.DirectiveStart
}

// --- comments -----------------------------------------------------------

// SkipComment consumes a "## ... \n" line comment (not including the
// trailing newline) and discards it.
func (l *Lexer) SkipComment() {
	l.R.Advance(len(l.tables.CommentStart))
	l.R.ReadToEOL(false)
}

// --- scriptlets ----------------------------------------------------------

// ReadScriptlet consumes "<% ... %>" and returns the verbatim content
// between the delimiters.
func (l *Lexer) ReadScriptlet() (string, error) {
	start := l.R.Pos()
	l.R.Advance(len(l.tables.ScriptletStart))
	end := l.R.Find(l.tables.ScriptletEnd, l.R.Pos())
	if end < 0 {
		return "", cerr.New(cerr.Lexical, l.R, start, "scriptlet not closed, expected %q", l.tables.ScriptletEnd)
	}
	content := l.R.ReadTo(l.R.Pos(), end)
	l.R.Advance(len(l.tables.ScriptletEnd))
	return content, nil
}

// --- placeholders --------------------------------------------------------

// Enclosure identifies which bracket (if any) wraps a placeholder body:
// "" for bare $name, "{" for ${...}, "(" for $(...), "[" for $[...].
type Enclosure byte

// ReadPlaceholder consumes a full "$..." placeholder (including its var
// start token and any enclosure) and returns the rewritten host-language
// expression text for it, using namemapper.Rewrite under the active
// settings.
func (l *Lexer) ReadPlaceholder() (string, error) { return l.readPlaceholder(false) }

// ReadPlaceholderPlain is ReadPlaceholder with the namemapper rewrite
// forced to its plain (direct attribute/item access) form regardless of
// settings — grounded on the original compiler's "getExpression(...,
// useNameMapper=False)" call when scanning a "#set" LVALUE
// (original_source/Cheetah/Parser.py: eatSet), so an assignment target
// like "$x.y" becomes the plain "x.y" rather than a VFFSL/VFN call.
func (l *Lexer) ReadPlaceholderPlain() (string, error) { return l.readPlaceholder(true) }

func (l *Lexer) readPlaceholder(forcePlain bool) (string, error) {
	start := l.R.Pos()
	l.R.Advance(len(l.tables.VarStart))

	var closer byte
	plain := forcePlain
	if !l.R.AtEnd() {
		switch l.R.Peek(0) {
		case '{':
			closer = '}'
			l.R.Advance(1)
		case '(':
			closer = ')'
			plain = true
			l.R.Advance(1)
		case '[':
			closer = ']'
			l.R.Advance(1)
		}
	}
	l.skipInlineWhitespace()

	if closer != 0 {
		chunks, err := namemapper.ScanChunks(l.R)
		if err != nil {
			return "", cerr.New(cerr.Lexical, l.R, start, "%s", err)
		}
		l.skipInlineWhitespace()
		if l.R.AtEnd() || l.R.Peek(0) != closer {
			return "", cerr.New(cerr.Lexical, l.R, start, "expected closing %q for placeholder", string(closer))
		}
		l.R.Advance(1)
		return namemapper.Rewrite(chunks, l.settings, plain), nil
	}

	chunks, err := namemapper.ScanChunks(l.R)
	if err != nil {
		return "", cerr.New(cerr.Lexical, l.R, start, "%s", err)
	}
	return namemapper.Rewrite(chunks, l.settings, plain), nil
}

func (l *Lexer) skipInlineWhitespace() {
	for !l.R.AtEnd() {
		c := l.R.Peek(0)
		if c != ' ' && c != '\t' {
			break
		}
		l.R.Advance(1)
	}
}

// --- host-language token primitives --------------------------------------

// TokenKind classifies a host-language token produced while scanning an
// expression or call-arg string.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokIdent
	TokNumber
	TokString
	TokOperator
)

// HostToken is one host-language lexeme.
type HostToken struct {
	Kind TokenKind
	Text string
	Pos  int
}

// operators, longest-match first (mirrors the teacher's TokenSymbols
// greedy-match table in lexer.go).
var operators = []string{
	"**", "//", "==", "!=", "<=", ">=", "->", "+=", "-=", "*=", "/=",
	"(", ")", "[", "]", "{", "}", ",", ".", ":", "=", "+", "-", "*", "/",
	"%", "<", ">", "|", "&", "^", "~", "@", ";",
}

// NextHostToken scans one host-language token at the current cursor
// position. Callers are expected to have skipped whitespace beforehand
// (see SkipInlineSpaceAndContinuations).
func (l *Lexer) NextHostToken() (HostToken, error) {
	if l.R.AtEnd() {
		return HostToken{Kind: TokEOF, Pos: l.R.Pos()}, nil
	}
	pos := l.R.Pos()
	c := l.R.Peek(0)

	switch {
	case isIdentStart(c):
		return l.scanIdentifier(pos), nil
	case isDigit(c):
		return l.scanNumber(pos)
	case c == '"' || c == '\'':
		return l.scanStringLiteral(pos)
	}

	for _, op := range operators {
		if l.R.StartsWith(op) {
			l.R.Advance(len(op))
			return HostToken{Kind: TokOperator, Text: op, Pos: pos}, nil
		}
	}
	return HostToken{}, cerr.New(cerr.Lexical, l.R, pos, "unrecognized character %q", string(c))
}

func (l *Lexer) scanIdentifier(pos int) HostToken {
	var sb strings.Builder
	for !l.R.AtEnd() && isIdentCont(l.R.Peek(0)) {
		sb.WriteByte(l.R.Peek(0))
		l.R.Advance(1)
	}
	return HostToken{Kind: TokIdent, Text: sb.String(), Pos: pos}
}

func (l *Lexer) scanNumber(pos int) (HostToken, error) {
	var sb strings.Builder
	for !l.R.AtEnd() && isDigit(l.R.Peek(0)) {
		sb.WriteByte(l.R.Peek(0))
		l.R.Advance(1)
	}
	if !l.R.AtEnd() && l.R.Peek(0) == '.' {
		if next, ok := l.R.PeekSafe(1); ok && isDigit(next) {
			sb.WriteByte('.')
			l.R.Advance(1)
			for !l.R.AtEnd() && isDigit(l.R.Peek(0)) {
				sb.WriteByte(l.R.Peek(0))
				l.R.Advance(1)
			}
		}
	}
	return HostToken{Kind: TokNumber, Text: sb.String(), Pos: pos}, nil
}

// tripleQuotes are recognized by their opening trigraph; content is
// consumed to the matching closing trigraph, across lines. A malformed
// triple-quote is a parse error (spec §4.2).
var tripleQuotes = []string{`"""`, `'''`}

func (l *Lexer) scanStringLiteral(pos int) (HostToken, error) {
	quote := l.R.Peek(0)
	tq := string(quote) + string(quote) + string(quote)
	if l.R.StartsWith(tq) {
		return l.scanTripleQuotedString(pos, tq)
	}
	return l.scanSingleLineString(pos, quote)
}

func (l *Lexer) scanSingleLineString(pos int, quote byte) (HostToken, error) {
	var sb strings.Builder
	sb.WriteByte(quote)
	l.R.Advance(1)
	for {
		if l.R.AtEnd() {
			return HostToken{}, cerr.New(cerr.Lexical, l.R, pos, "unterminated string literal")
		}
		c := l.R.Peek(0)
		if c == '\n' {
			return HostToken{}, cerr.New(cerr.Lexical, l.R, pos, "newline in single-quoted string literal")
		}
		if c == '\\' {
			sb.WriteByte(c)
			l.R.Advance(1)
			if l.R.AtEnd() {
				return HostToken{}, cerr.New(cerr.Lexical, l.R, pos, "unterminated string literal")
			}
			sb.WriteByte(l.R.Peek(0))
			l.R.Advance(1)
			continue
		}
		sb.WriteByte(c)
		l.R.Advance(1)
		if c == quote {
			break
		}
	}
	return HostToken{Kind: TokString, Text: sb.String(), Pos: pos}, nil
}

func (l *Lexer) scanTripleQuotedString(pos int, tq string) (HostToken, error) {
	var sb strings.Builder
	sb.WriteString(tq)
	l.R.Advance(3)
	for {
		if l.R.AtEnd() {
			return HostToken{}, cerr.New(cerr.Lexical, l.R, pos, "triple-quoted string not closed, expected %s", tq)
		}
		if l.R.StartsWith(tq) {
			sb.WriteString(tq)
			l.R.Advance(3)
			break
		}
		c := l.R.Peek(0)
		if c == '\\' {
			sb.WriteByte(c)
			l.R.Advance(1)
			if l.R.AtEnd() {
				return HostToken{}, cerr.New(cerr.Lexical, l.R, pos, "triple-quoted string not closed, expected %s", tq)
			}
			sb.WriteByte(l.R.Peek(0))
			l.R.Advance(1)
			continue
		}
		sb.WriteByte(c)
		l.R.Advance(1)
	}
	return HostToken{Kind: TokString, Text: sb.String(), Pos: pos}, nil
}

// SkipInlineSpaceAndContinuations skips spaces/tabs, and escaped
// line-continuations ("\" immediately followed by a newline), which are
// consumed without ending an in-progress expression (spec §4.2).
func (l *Lexer) SkipInlineSpaceAndContinuations() {
	for !l.R.AtEnd() {
		c := l.R.Peek(0)
		if c == ' ' || c == '\t' {
			l.R.Advance(1)
			continue
		}
		if c == '\\' {
			if next, ok := l.R.PeekSafe(1); ok && next == '\n' {
				l.R.Advance(2)
				continue
			}
		}
		break
	}
}
