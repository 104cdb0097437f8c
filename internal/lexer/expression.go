package lexer

import (
	"strings"

	"github.com/cheetahc/cheetahc/internal/cerr"
)

// ArgPair is one entry of a def/macro argument list: a name and an
// optional default expression (spec §3 ArgList). Name may begin with "*"
// or "**" for *args/**kwargs entries.
type ArgPair struct {
	Name       string
	Default    string
	HasDefault bool
}

// ArgList is an ordered list of ArgPair, preserving declaration order
// (spec §3).
type ArgList []ArgPair

// peekIdentifierAhead looks ahead at the run of identifier characters
// starting at the current cursor position without consuming them.
// Returns "" if the cursor isn't at an identifier-start character.
func (l *Lexer) peekIdentifierAhead() string {
	var sb strings.Builder
	for i := 0; ; i++ {
		c, ok := l.R.PeekSafe(i)
		if !ok {
			break
		}
		if i == 0 {
			if !isIdentStart(c) {
				return ""
			}
		} else if !isIdentCont(c) {
			break
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

func lastByte(s string) byte {
	if s == "" {
		return 0
	}
	return s[len(s)-1]
}

// needsSpaceBefore decides whether to insert a separating space before
// appending next to a buffer currently ending in prev. Keeps generated
// expression text legible without implementing a full pretty-printer.
func needsSpaceBefore(prev byte, next string) bool {
	if prev == 0 || next == "" {
		return false
	}
	switch next {
	case ")", "]", "}", ",", ".", ":", "=":
		return false
	case "(", "[":
		// A call or subscript binds to the operand before it; anywhere
		// else the bracket starts a new operand.
		if isIdentCont(prev) || prev == ')' || prev == ']' || prev == '}' || prev == '"' || prev == '\'' {
			return false
		}
	}
	switch prev {
	case '(', '[', '.', '{', '=':
		return false
	}
	return true
}

func isWordToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdentCont(s[i]) {
			return false
		}
	}
	return true
}

// matchBreakToken reports whether one of breakTokens matches at the
// current cursor position (without consuming), honoring pendingForIn so
// that "in" inside a "for x in expr" comprehension doesn't terminate the
// enclosing expression (spec §4.2).
func (l *Lexer) matchBreakToken(breakTokens []string, pendingForIn bool) bool {
	for _, bt := range breakTokens {
		if bt == "in" && pendingForIn {
			continue
		}
		if isWordToken(bt) {
			if l.peekIdentifierAhead() == bt {
				return true
			}
			continue
		}
		if l.R.StartsWith(bt) {
			return true
		}
	}
	return false
}

// GetExpression consumes host-language tokens, rewriting any embedded
// "$name" placeholder, until one of (spec §4.2):
//
//	(a) a directive end-token in breakTokens is found at bracket depth 0
//	(b) end-of-line at depth 0 (escaped line continuations don't end it)
//	(c) a close bracket is found that would take depth negative — this
//	    means it belongs to an enclosure the caller already opened, so
//	    the cursor is left positioned at that close bracket
//	(d) end of input
//
// "for <x> in <expr>" is recognized specifically so the "in" inside a
// comprehension does not terminate the scan even if "in" is a break
// token.
func (l *Lexer) GetExpression(breakTokens ...string) (string, error) {
	return l.getExpression(breakTokens, false)
}

// GetExpressionPlain is GetExpression with embedded placeholders rewritten
// in their plain (direct-access) form regardless of settings — used for
// scanning a "#set" LVALUE, which must never resolve through the search
// list (spec §4.3 "#set", grounded on original_source/Cheetah/Parser.py's
// eatSet: "getExpression(pyTokensToBreakAt=assignmentOps,
// useNameMapper=False)").
func (l *Lexer) GetExpressionPlain(breakTokens ...string) (string, error) {
	return l.getExpression(breakTokens, true)
}

func (l *Lexer) getExpression(breakTokens []string, plain bool) (string, error) {
	var sb strings.Builder
	depth := 0
	var openers []int
	pendingForIn := false

	for {
		l.SkipInlineSpaceAndContinuations()
		if l.R.AtEnd() {
			break
		}
		if l.R.Peek(0) == '\n' {
			if depth == 0 {
				break
			}
			l.R.Advance(1)
			continue
		}
		if depth == 0 && l.matchBreakToken(breakTokens, pendingForIn) {
			break
		}

		if l.AtPlaceholderStart() {
			var expr string
			var err error
			if plain {
				expr, err = l.ReadPlaceholderPlain()
			} else {
				expr, err = l.ReadPlaceholder()
			}
			if err != nil {
				return "", err
			}
			if needsSpaceBefore(lastByte(sb.String()), expr) {
				sb.WriteByte(' ')
			}
			sb.WriteString(expr)
			continue
		}

		startPos := l.R.Pos()
		tok, err := l.NextHostToken()
		if err != nil {
			return "", err
		}
		if tok.Kind == TokEOF {
			break
		}
		if tok.Kind == TokOperator {
			switch tok.Text {
			case "(", "[", "{":
				depth++
				openers = append(openers, startPos)
			case ")", "]", "}":
				if depth == 0 {
					l.R.SetPos(startPos)
					return sb.String(), nil
				}
				depth--
				openers = openers[:len(openers)-1]
			}
		}
		if tok.Kind == TokIdent {
			if tok.Text == "for" {
				pendingForIn = true
			} else if tok.Text == "in" && pendingForIn {
				pendingForIn = false
			}
		}
		if needsSpaceBefore(lastByte(sb.String()), tok.Text) {
			sb.WriteByte(' ')
		}
		sb.WriteString(tok.Text)
	}

	if depth != 0 {
		return "", cerr.New(cerr.Lexical, l.R, openers[len(openers)-1], "unbalanced brackets in expression")
	}
	return sb.String(), nil
}

// GetCallArgString reads from "(" to the matching ")", tracking a stack
// of bracket opens and recognizing placeholders within (spec §4.2
// getCallArgString). A bare "name = value" where name is the left-hand
// side of a keyword argument emits the keyword name verbatim, without
// namemapper rewriting.
func (l *Lexer) GetCallArgString() (string, error) {
	startPos := l.R.Pos()
	if l.R.AtEnd() || l.R.Peek(0) != '(' {
		return "", cerr.New(cerr.Lexical, l.R, startPos, "expected '(' to start call-arg list")
	}

	var sb strings.Builder
	sb.WriteByte('(')
	l.R.Advance(1)
	depth := 1

	for depth > 0 {
		l.SkipInlineSpaceAndContinuations()
		if l.R.AtEnd() {
			return "", cerr.New(cerr.Lexical, l.R, startPos, "call-arg list not closed")
		}
		if l.R.Peek(0) == '\n' {
			l.R.Advance(1)
			sb.WriteByte(' ')
			continue
		}

		if isIdentStart(l.R.Peek(0)) {
			name := l.peekIdentifierAhead()
			after := len(name)
			if c, ok := l.R.PeekSafe(after); ok && c == '=' {
				if c2, ok2 := l.R.PeekSafe(after + 1); !ok2 || c2 != '=' {
					l.R.Advance(after + 1)
					if needsSpaceBefore(lastByte(sb.String()), name) {
						sb.WriteByte(' ')
					}
					sb.WriteString(name)
					sb.WriteByte('=')
					continue
				}
			}
		}

		if l.AtPlaceholderStart() {
			expr, err := l.ReadPlaceholder()
			if err != nil {
				return "", err
			}
			if needsSpaceBefore(lastByte(sb.String()), expr) {
				sb.WriteByte(' ')
			}
			sb.WriteString(expr)
			continue
		}

		tok, err := l.NextHostToken()
		if err != nil {
			return "", err
		}
		if tok.Kind == TokEOF {
			return "", cerr.New(cerr.Lexical, l.R, startPos, "call-arg list not closed")
		}
		switch tok.Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		}
		if needsSpaceBefore(lastByte(sb.String()), tok.Text) {
			sb.WriteByte(' ')
		}
		sb.WriteString(tok.Text)
	}
	return sb.String(), nil
}

// GetDefArgList parses "(name[=default], …, *rest, **kw)" for a #def or
// #block signature; a plain name may carry a leading var-start token
// ("$x"), which is dropped. Defaults are host-language expressions
// scanned with GetExpression; names and defaults are stored as verbatim
// strings (spec §4.2).
func (l *Lexer) GetDefArgList() (ArgList, error) {
	startPos := l.R.Pos()
	if l.R.AtEnd() || l.R.Peek(0) != '(' {
		return nil, cerr.New(cerr.Lexical, l.R, startPos, "expected '(' to start argument list")
	}
	l.R.Advance(1)

	var args ArgList
	for {
		l.SkipInlineSpaceAndContinuations()
		if l.R.AtEnd() {
			return nil, cerr.New(cerr.Lexical, l.R, startPos, "argument list not closed")
		}
		if l.R.Peek(0) == ')' {
			l.R.Advance(1)
			break
		}

		var name string
		switch {
		case l.R.StartsWith("**"):
			l.R.Advance(2)
			ident := l.peekIdentifierAhead()
			if ident == "" {
				return nil, cerr.New(cerr.Lexical, l.R, l.R.Pos(), "expected identifier after '**'")
			}
			l.R.Advance(len(ident))
			name = "**" + ident
		case l.R.Peek(0) == '*':
			l.R.Advance(1)
			ident := l.peekIdentifierAhead()
			if ident == "" {
				return nil, cerr.New(cerr.Lexical, l.R, l.R.Pos(), "expected identifier after '*'")
			}
			l.R.Advance(len(ident))
			name = "*" + ident
		default:
			if l.R.StartsWith(l.tables.VarStart) {
				l.R.Advance(len(l.tables.VarStart))
			}
			ident := l.peekIdentifierAhead()
			if ident == "" {
				return nil, cerr.New(cerr.Lexical, l.R, l.R.Pos(), "expected argument name")
			}
			l.R.Advance(len(ident))
			name = ident
		}

		l.SkipInlineSpaceAndContinuations()
		pair := ArgPair{Name: name}
		if !l.R.AtEnd() && l.R.Peek(0) == '=' {
			l.R.Advance(1)
			l.SkipInlineSpaceAndContinuations()
			def, err := l.GetExpression(",", ")")
			if err != nil {
				return nil, err
			}
			pair.Default = def
			pair.HasDefault = true
		}
		args = append(args, pair)

		l.SkipInlineSpaceAndContinuations()
		if !l.R.AtEnd() && l.R.Peek(0) == ',' {
			l.R.Advance(1)
			continue
		}
		if !l.R.AtEnd() && l.R.Peek(0) == ')' {
			l.R.Advance(1)
			break
		}
		return nil, cerr.New(cerr.Lexical, l.R, l.R.Pos(), "expected ',' or ')' in argument list")
	}
	return args, nil
}
