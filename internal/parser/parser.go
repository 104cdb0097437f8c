// Package parser implements the directive state machine described in
// spec §4.3: it drives the lexer, maintains the stack of open closeable
// directives (#def/#block/#call/#filter/#if/#for/#while/#try), dispatches
// each directive to a handler, and emits the resulting code into the
// codegen builders. It never builds an intermediate tree — each handler
// either reads an expression/arg-list from the lexer and calls straight
// into a MethodBuilder/ClassBuilder/ModuleBuilder method, or opens/closes
// a method or class.
//
// Directive handlers are split across files by dispatch class (spec
// §4.3's table), mirroring the teacher's one-file-per-tag convention
// (tags_for.go, tags_if.go, …): this file owns the scanning engine, the
// open-directives stack, and the directives with no closer
// (#extends/#implements/#super/#attr/#encoding/#compiler-settings/#raw/
// the "@" decorator); directives_closeable.go owns #call/#filter/#def/
// #block/#if/#for/#while/#try/#else/#elif/#except/#finally/#end;
// directives_simple.go owns the bare-expression-statement directives;
// directives_set.go owns #set; directives_macro.go owns the user macro
// registry.
package parser

import (
	"fmt"
	"strings"

	"github.com/juju/errors"

	"github.com/cheetahc/cheetahc/internal/cerr"
	"github.com/cheetahc/cheetahc/internal/codegen"
	"github.com/cheetahc/cheetahc/internal/lexer"
	"github.com/cheetahc/cheetahc/internal/settings"
	"github.com/cheetahc/cheetahc/internal/sourcereader"
)

// frameKind tags one entry of the open-directives stack (spec §3
// DirectiveFrame).
type frameKind string

const (
	frameDef    frameKind = "def"
	frameBlock  frameKind = "block"
	frameCall   frameKind = "call"
	frameFilter frameKind = "filter"
	frameIf     frameKind = "if"
	frameFor    frameKind = "for"
	frameWhile  frameKind = "while"
	frameTry    frameKind = "try"
)

type frame struct {
	kind     frameKind
	row, col int
}

// Parser drives one compilation. It owns the lexer and the top-level
// ModuleBuilder; ClassBuilder and MethodBuilder are never referenced
// from outside it (spec §9: "strict owners, never back-referencing
// upward").
type Parser struct {
	lex      *lexer.Lexer
	settings *settings.Settings
	module   *codegen.ModuleBuilder

	openStack       []frame
	searchListStack []bool

	macros map[string]MacroFunc

	pendingClassMethod  bool
	pendingStaticMethod bool
}

// New creates a Parser over r, with a module builder seeded for a single
// class named mainClassName (spec §6: "exactly one primary class").
// srcPath is recorded as __CHEETAH_src__ (empty for anonymous sources,
// e.g. macro expansions or REPL input).
func New(r *sourcereader.Reader, s *settings.Settings, mainClassName, srcPath string) *Parser {
	mb := codegen.NewModule(mainClassName, srcPath, s)
	mb.StartClass(mainClassName)
	return &Parser{
		lex:      lexer.New(r, s),
		settings: s,
		module:   mb,
		macros:   map[string]MacroFunc{},
	}
}

func (p *Parser) currentMethod() *codegen.MethodBuilder { return p.module.Current().Current() }

// Parse consumes the entire input and returns the finished ModuleBuilder,
// ready for Finalize. It is an error for any closeable directive to be
// left open at end of input (spec §4.3 "at EOF the stack must be
// empty").
func (p *Parser) Parse() (*codegen.ModuleBuilder, error) {
	if err := p.parseBody(); err != nil {
		return nil, err
	}
	if n := len(p.openStack); n > 0 {
		f := p.openStack[n-1]
		return nil, cerr.New(cerr.MismatchedEnd, p.lex.R, p.lex.R.Pos(), "unclosed #%s opened at line %d, col %d", f.kind, f.row, f.col)
	}
	if err := p.module.Current().CloseMethod(); err != nil {
		return nil, err
	}
	if err := p.module.CloseClass(); err != nil {
		return nil, err
	}
	return p.module, nil
}

// parseBody runs the top-level matcher loop (spec §4.3 step 1/2) until
// the lexer's current break point is reached. It is re-entered
// recursively for short-form bodies (via a temporary break point) and
// macro expansions (via a swapped reader); #compiler-settings blocks are
// not parsed through it.
func (p *Parser) parseBody() error {
	for !p.lex.R.AtEnd() {
		switch {
		case p.lex.AtCommentStart():
			p.lex.SkipComment()
		case p.lex.AtScriptletStart():
			if err := p.handleScriptlet(); err != nil {
				return err
			}
		case p.lex.AtDirectiveStart():
			if err := p.handleDirective(); err != nil {
				return err
			}
		case p.lex.AtPlaceholderStart():
			if err := p.handlePlaceholder(); err != nil {
				return err
			}
		default:
			text := p.lex.ReadPlainTextRun()
			if text == "" {
				return cerr.Internal("parser made no progress at position %d", p.lex.R.Pos())
			}
			p.currentMethod().AddStrConst(text)
		}
	}
	return nil
}

func (p *Parser) handlePlaceholder() error {
	expr, err := p.lex.ReadPlaceholder()
	if err != nil {
		return err
	}
	p.currentMethod().AddFilteredChunk(expr)
	return nil
}

func (p *Parser) handleScriptlet() error {
	content, err := p.lex.ReadScriptlet()
	if err != nil {
		return err
	}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			p.currentMethod().AddChunk(line)
		}
	}
	return nil
}

// --- directive dispatch -------------------------------------------------

func isNameStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}
func isNameCont(c byte) bool { return isNameStart(c) || (c >= '0' && c <= '9') }

func (p *Parser) readBareWord() string {
	var sb strings.Builder
	for !p.lex.R.AtEnd() && isNameCont(p.lex.R.Peek(0)) {
		sb.WriteByte(p.lex.R.Peek(0))
		p.lex.R.Advance(1)
	}
	return sb.String()
}

func (p *Parser) readDirectiveName() string {
	if !p.lex.R.AtEnd() && p.lex.R.Peek(0) == '@' {
		p.lex.R.Advance(1)
		return "@"
	}
	var sb strings.Builder
	for !p.lex.R.AtEnd() {
		c := p.lex.R.Peek(0)
		if isNameCont(c) || c == '-' {
			sb.WriteByte(c)
			p.lex.R.Advance(1)
			continue
		}
		break
	}
	return sb.String()
}

func (p *Parser) atChar(c byte) bool { return !p.lex.R.AtEnd() && p.lex.R.Peek(0) == c }

func (p *Parser) atWord(w string) bool {
	if !p.lex.R.StartsWith(w) {
		return false
	}
	c, ok := p.lex.R.PeekSafe(len(w))
	if !ok {
		return true
	}
	return !isNameCont(c)
}

// finishLine implements the line-clear rule (spec §4.3): if the
// directive occupied its whole line, its trailing newline is gobbled and
// the pending string literal is truncated back to the start of its own
// last line, so the directive contributes no stray whitespace to the
// rendered output.
func (p *Parser) finishLine(lineClear bool) {
	p.lex.SkipInlineSpaceAndContinuations()
	if lineClear {
		if !p.lex.R.AtEnd() && p.lex.R.Peek(0) == '\n' {
			p.lex.R.Advance(1)
		}
		p.currentMethod().HandleWSBeforeDirective()
	}
}

func (p *Parser) pushFrame(kind frameKind, row, col int) {
	p.openStack = append(p.openStack, frame{kind: kind, row: row, col: col})
}

func (p *Parser) popFrame(kind frameKind) error {
	n := len(p.openStack) - 1
	if n < 0 {
		return cerr.New(cerr.MismatchedEnd, p.lex.R, p.lex.R.Pos(), "#end %s with no open directive", kind)
	}
	top := p.openStack[n]
	if top.kind != kind {
		return cerr.New(cerr.MismatchedEnd, p.lex.R, p.lex.R.Pos(), "#end %s does not match open #%s opened at line %d, col %d", kind, top.kind, top.row, top.col)
	}
	p.openStack = p.openStack[:n]
	return nil
}

// maybeShortForm reports (without consuming) whether the current line
// carries non-whitespace, non-comment content after a directive's
// opening clause — the single-line short form (spec §4.3).
func (p *Parser) maybeShortForm() bool {
	save := p.lex.R.Pos()
	p.lex.SkipInlineSpaceAndContinuations()
	ok := !p.lex.R.AtEnd() && p.lex.R.Peek(0) != '\n' && !p.lex.AtCommentStart()
	p.lex.R.SetPos(save)
	return ok
}

// parseShortFormBody recursively parses the rest of the current line as
// a directive body, bounded by a temporary break point at end-of-line
// (spec §4.3 "recursively parses with a break point at end-of-line").
func (p *Parser) parseShortFormBody() error {
	saved := p.lex.R.BreakPoint()
	eol := p.lex.R.FindEOL(false)
	p.lex.R.SetBreakPoint(eol)
	err := p.parseBody()
	p.lex.R.SetBreakPoint(saved)
	return err
}

func (p *Parser) handleDirective() error {
	lineClear := p.lex.R.IsLineClearTo(p.lex.R.Pos())
	startPos := p.lex.R.Pos()
	p.lex.R.Advance(len(p.lex.Tables().DirectiveStart))
	name := p.readDirectiveName()
	if name == "" {
		return cerr.New(cerr.UnknownDirective, p.lex.R, startPos, "empty directive name (escape with \\# if literal)")
	}
	p.lex.SkipInlineSpaceAndContinuations()
	if lineClear {
		p.currentMethod().HandleWSBeforeDirective()
	}

	switch name {
	case "slurp":
		p.lex.R.ReadToEOL(true)
		return nil
	case "compiler-settings":
		if err := p.handleCompilerSettings(); err != nil {
			return errors.Annotatef(err, "parsing #compiler-settings block")
		}
		p.finishLine(lineClear)
		return nil
	case "raw":
		if err := p.handleRaw(); err != nil {
			return err
		}
		return nil
	}

	var err error
	switch name {
	case "@":
		err = p.handleDecorator()
	case "extends":
		err = p.handleExtends()
	case "implements":
		err = p.handleImplements()
	case "super":
		err = p.handleSuper()
	case "set":
		err = p.handleSet()
	case "call":
		err = p.handleCall()
	case "filter":
		err = p.handleFilter()
	case "def":
		err = p.handleDef()
	case "block":
		err = p.handleBlock()
	case "encoding":
		err = p.handleEncoding()
	case "end":
		err = p.handleEnd()
	case "attr":
		err = p.handleAttr()
	case "if":
		err = p.handleIf()
	case "else", "elif", "for", "while", "try", "except", "finally":
		err = p.handleSimpleIndenting(name)
	case "pass", "continue", "break", "del", "assert", "raise", "silent", "return", "yield", "import", "from":
		err = p.handleSimpleExpression(name)
	default:
		if fn, ok := p.macros[name]; ok {
			return p.handleMacro(name, fn)
		}
		return cerr.New(cerr.UnknownDirective, p.lex.R, startPos, "unknown directive #%s (escape with \\# if literal)", name)
	}
	if err != nil {
		return err
	}
	p.finishLine(lineClear)
	return nil
}

// --- directives with no closer ------------------------------------------

func (p *Parser) handleDecorator() error {
	expr, err := p.lex.GetExpression()
	if err != nil {
		return err
	}
	trimmed := strings.TrimSpace(expr)
	switch trimmed {
	case "classmethod":
		p.pendingClassMethod = true
	case "staticmethod":
		p.pendingStaticMethod = true
	}
	p.module.Current().AddDecorator("@" + trimmed)
	return nil
}

func (p *Parser) handleExtends() error {
	expr, err := p.lex.GetExpression()
	if err != nil {
		return err
	}
	name := strings.TrimSpace(expr)
	if strings.Contains(name, ",") {
		return cerr.New(cerr.InvalidSyntax, p.lex.R, p.lex.R.Pos(), "#extends does not support multi-inheritance: %q", name)
	}
	p.module.SetExtends(name, "")
	return nil
}

func (p *Parser) handleImplements() error {
	p.lex.SkipInlineSpaceAndContinuations()
	name := p.readBareWord()
	if name == "" {
		return cerr.New(cerr.InvalidSyntax, p.lex.R, p.lex.R.Pos(), "expected a method name after #implements")
	}
	if p.atChar('(') {
		return cerr.New(cerr.InvalidSyntax, p.lex.R, p.lex.R.Pos(), "#implements %s(args) is not supported; #implements takes a bare name", name)
	}
	p.module.Current().SetMainMethodName(name)
	return nil
}

func (p *Parser) handleSuper() error {
	extra := ""
	if p.atChar('(') {
		args, err := p.lex.GetCallArgString()
		if err != nil {
			return err
		}
		inner := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(args, "("), ")"))
		if inner != "" {
			extra = ", " + inner
		}
	}
	cb := p.module.Current()
	expr := fmt.Sprintf("super(%s, self).%s(trans=trans%s)", cb.Name, cb.MainMethodName(), extra)
	p.currentMethod().AddFilteredChunk(expr)
	return nil
}

func (p *Parser) handleCompilerSettings() error {
	p.lex.R.ReadToEOL(true)
	marker := p.lex.Tables().DirectiveStart + "end compiler-settings"
	end := p.lex.R.Find(marker, p.lex.R.Pos())
	if end < 0 {
		return cerr.New(cerr.MismatchedEnd, p.lex.R, p.lex.R.Pos(), "#compiler-settings block not closed")
	}
	body := p.lex.R.ReadTo(p.lex.R.Pos(), end)
	if err := p.settings.ApplyKeyValueBlock(body); err != nil {
		return cerr.New(cerr.InvalidSyntax, p.lex.R, p.lex.R.Pos(), "%s", err)
	}
	p.lex.RebuildTables()
	p.lex.R.Advance(len(marker))
	p.lex.R.ReadToEOL(true)
	return nil
}

// handleRaw implements "#raw" (SPEC_FULL §C.7, from
// original_source/Cheetah's eatRawDirective): its content is emitted as a
// literal, bypassing placeholder/directive/comment scanning entirely,
// until the matching "#end raw" marker. Unlike the other closeable
// directives it never touches the open-directives stack — it finds and
// consumes its own end marker directly, the way handleCompilerSettings
// does, since nothing inside it is dispatched through the main loop.
func (p *Parser) handleRaw() error {
	startPos := p.lex.R.Pos()
	p.lex.R.ReadToEOL(true)
	marker := p.lex.Tables().DirectiveStart + "end raw"
	end := p.lex.R.Find(marker, p.lex.R.Pos())
	if end < 0 {
		return cerr.New(cerr.MismatchedEnd, p.lex.R, startPos, "#raw block not closed, expected %q", marker)
	}
	content := p.lex.R.ReadTo(p.lex.R.Pos(), end)
	p.currentMethod().AddStrConst(content)
	p.lex.R.Advance(len(marker))
	p.lex.R.ReadToEOL(true)
	return nil
}

func (p *Parser) handleEncoding() error {
	line := strings.TrimSpace(p.lex.R.ReadToEOL(true))
	p.module.SetEncoding(line)
	return nil
}

func (p *Parser) handleAttr() error {
	p.lex.SkipInlineSpaceAndContinuations()
	name := p.readBareWord()
	if name == "" {
		return cerr.New(cerr.InvalidSyntax, p.lex.R, p.lex.R.Pos(), "expected a name after #attr")
	}
	p.lex.SkipInlineSpaceAndContinuations()
	if !p.atChar('=') {
		return cerr.New(cerr.InvalidSyntax, p.lex.R, p.lex.R.Pos(), "expected '=' after #attr %s", name)
	}
	p.lex.R.Advance(1)
	expr, err := p.lex.GetExpression()
	if err != nil {
		return err
	}
	return p.module.Current().AddAttribute(name, expr)
}
