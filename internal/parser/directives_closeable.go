package parser

import (
	"strings"

	"github.com/cheetahc/cheetahc/internal/cerr"
	"github.com/cheetahc/cheetahc/internal/lexer"
)

// handleCall implements "#call F(args): body ... #end call" (spec §4.3):
// it opens a CallRegion that redirects output to a buffered transaction.
func (p *Parser) handleCall() error {
	row, col := p.lex.R.RowCol(p.lex.R.Pos())
	funcExpr, err := p.lex.GetExpression(":", "(")
	if err != nil {
		return err
	}
	extraArgs := ""
	if p.atChar('(') {
		args, err := p.lex.GetCallArgString()
		if err != nil {
			return err
		}
		inner := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(args, "("), ")"))
		if inner != "" {
			extraArgs = ", " + inner
		}
	}
	p.lex.SkipInlineSpaceAndContinuations()
	if p.atChar(':') {
		p.lex.R.Advance(1)
	}
	p.currentMethod().StartCallRegion(strings.TrimSpace(funcExpr), extraArgs, row, col)
	p.pushFrame(frameCall, row, col)
	return nil
}

// handleFilter implements "#filter expr: body ... #end filter" (spec
// §4.3): swaps the active output filter within its scope.
func (p *Parser) handleFilter() error {
	row, col := p.lex.R.RowCol(p.lex.R.Pos())
	expr, err := p.lex.GetExpression(":")
	if err != nil {
		return err
	}
	p.lex.SkipInlineSpaceAndContinuations()
	if !p.atChar(':') {
		return cerr.New(cerr.InvalidSyntax, p.lex.R, p.lex.R.Pos(), "expected ':' after #filter")
	}
	p.lex.R.Advance(1)
	trimmed := strings.TrimSpace(expr)
	isClass := trimmed != "" && !strings.Contains(trimmed, "(") && !strings.EqualFold(trimmed, "none") &&
		trimmed[0] >= 'A' && trimmed[0] <= 'Z'
	p.currentMethod().StartFilterRegion(trimmed, isClass)
	p.pushFrame(frameFilter, row, col)
	return nil
}

// handleDef implements "#def name(args): body ... #end def" (spec
// §4.3/§4.5). A #def body is a closure taking its own explicit args; it
// does not see the enclosing template's search list.
func (p *Parser) handleDef() error {
	p.lex.SkipInlineSpaceAndContinuations()
	name := p.readBareWord()
	if name == "" {
		return cerr.New(cerr.InvalidSyntax, p.lex.R, p.lex.R.Pos(), "expected a method name after #def")
	}
	var args lexer.ArgList
	if p.atChar('(') {
		var err error
		args, err = p.lex.GetDefArgList()
		if err != nil {
			return err
		}
	}
	p.lex.SkipInlineSpaceAndContinuations()
	if p.atChar(':') {
		p.lex.R.Advance(1)
	}
	row, col := p.lex.R.RowCol(p.lex.R.Pos())

	m := p.module.Current().StartMethod(name, p.pendingClassMethod, p.pendingStaticMethod)
	p.pendingClassMethod, p.pendingStaticMethod = false, false
	for _, a := range args {
		m.AddArg(a.Name, a.Default, a.HasDefault)
	}

	p.searchListStack = append(p.searchListStack, p.settings.UseSearchList)
	p.settings.UseSearchList = false
	p.pushFrame(frameDef, row, col)
	return nil
}

// handleBlock implements "#block name(args): body ... #end block" (spec
// §4.3/§4.5): a block is both a method and, on close, a call site in its
// enclosing scope (see ClassBuilder.CloseBlock).
func (p *Parser) handleBlock() error {
	p.lex.SkipInlineSpaceAndContinuations()
	name := p.readBareWord()
	if name == "" {
		return cerr.New(cerr.InvalidSyntax, p.lex.R, p.lex.R.Pos(), "expected a block name after #block")
	}
	var args lexer.ArgList
	if p.atChar('(') {
		var err error
		args, err = p.lex.GetDefArgList()
		if err != nil {
			return err
		}
	}
	p.lex.SkipInlineSpaceAndContinuations()
	if p.atChar(':') {
		p.lex.R.Advance(1)
	}
	row, col := p.lex.R.RowCol(p.lex.R.Pos())

	m := p.module.Current().StartMethod(name, false, false)
	for _, a := range args {
		m.AddArg(a.Name, a.Default, a.HasDefault)
	}
	p.pushFrame(frameBlock, row, col)
	return nil
}

// handleIf implements "#if cond: body [#else: body] #end if" and the
// short-form "#if cond then a else b" ternary (spec §4.3).
func (p *Parser) handleIf() error {
	cond, err := p.lex.GetExpression(":", "then")
	if err != nil {
		return err
	}
	if p.atWord("then") {
		p.lex.R.Advance(len("then"))
		thenExpr, err := p.lex.GetExpression("else")
		if err != nil {
			return err
		}
		if !p.atWord("else") {
			return cerr.New(cerr.InvalidSyntax, p.lex.R, p.lex.R.Pos(), "expected 'else' in #if ... then ... else ternary")
		}
		p.lex.R.Advance(len("else"))
		elseExpr, err := p.lex.GetExpression()
		if err != nil {
			return err
		}
		m := p.currentMethod()
		m.AddIndentingDirective("if " + strings.TrimSpace(cond))
		m.AddFilteredChunk(thenExpr)
		if err := m.Dedent(); err != nil {
			return err
		}
		m.AddChunk("else:")
		m.Indent()
		m.AddFilteredChunk(elseExpr)
		return m.Dedent()
	}

	if p.atChar(':') {
		p.lex.R.Advance(1)
	}
	m := p.currentMethod()
	m.AddIndentingDirective("if " + strings.TrimSpace(cond))
	if p.maybeShortForm() {
		if err := p.parseShortFormBody(); err != nil {
			return err
		}
		return m.Dedent()
	}
	row, col := p.lex.R.RowCol(p.lex.R.Pos())
	p.pushFrame(frameIf, row, col)
	return nil
}

// handleSimpleIndenting implements spec §4.3's "Simple indenting"
// directive class (#else/#elif/#for/#while/#try/#except/#finally): read
// an expression where needed, emit an indenting or re-indenting
// host-language line, and push a closeable frame for the openers.
func (p *Parser) handleSimpleIndenting(name string) error {
	needsExpr := name == "elif" || name == "for" || name == "while" || name == "except"
	var expr string
	var err error
	if name == "for" {
		// The loop target is a plain binding, never a search-list lookup.
		target, err := p.lex.GetExpressionPlain("in")
		if err != nil {
			return err
		}
		if !p.atWord("in") {
			return cerr.New(cerr.InvalidSyntax, p.lex.R, p.lex.R.Pos(), "expected 'in' in #for")
		}
		p.lex.R.Advance(len("in"))
		iter, err := p.lex.GetExpression(":")
		if err != nil {
			return err
		}
		expr = strings.TrimSpace(target) + " in " + strings.TrimSpace(iter)
	} else if needsExpr {
		expr, err = p.lex.GetExpression(":")
		if err != nil {
			return err
		}
	} else {
		p.lex.SkipInlineSpaceAndContinuations()
	}
	if p.atChar(':') {
		p.lex.R.Advance(1)
	}

	hostLine := name
	if trimmed := strings.TrimSpace(expr); trimmed != "" {
		hostLine = name + " " + trimmed
	}

	m := p.currentMethod()
	isContinuation := name == "else" || name == "elif" || name == "except" || name == "finally"
	if isContinuation {
		if err := m.AddReIndentingDirective(hostLine, true); err != nil {
			return err
		}
	} else {
		m.AddIndentingDirective(hostLine)
	}

	if p.maybeShortForm() {
		if err := p.parseShortFormBody(); err != nil {
			return err
		}
		return m.Dedent()
	}
	if !isContinuation {
		row, col := p.lex.R.RowCol(p.lex.R.Pos())
		p.pushFrame(frameKind(name), row, col)
	}
	return nil
}

// handleEnd implements "#end X" (spec §4.3): pop the open-directives
// stack and dispatch the matching close action per frame kind.
func (p *Parser) handleEnd() error {
	p.lex.SkipInlineSpaceAndContinuations()
	kindName := p.readBareWord()
	if kindName == "" {
		return cerr.New(cerr.InvalidSyntax, p.lex.R, p.lex.R.Pos(), "expected a directive kind after #end")
	}
	kind := frameKind(kindName)
	if err := p.popFrame(kind); err != nil {
		return err
	}
	switch kind {
	case frameDef:
		if n := len(p.searchListStack) - 1; n >= 0 {
			p.settings.UseSearchList = p.searchListStack[n]
			p.searchListStack = p.searchListStack[:n]
		}
		return p.module.Current().CloseMethod()
	case frameBlock:
		return p.module.Current().CloseBlock()
	case frameCall:
		return p.currentMethod().EndCallRegion()
	case frameFilter:
		return p.currentMethod().EndFilterRegion()
	case frameIf, frameFor, frameWhile, frameTry:
		return p.currentMethod().Dedent()
	default:
		return cerr.New(cerr.MismatchedEnd, p.lex.R, p.lex.R.Pos(), "unknown #end kind %q", kindName)
	}
}
