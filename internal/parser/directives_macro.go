package parser

import (
	"strings"

	"github.com/juju/errors"

	"github.com/cheetahc/cheetahc/internal/sourcereader"
)

// MacroFunc is a user-registered directive handler: it receives the raw
// argument string (and, for closeable macros, the raw body text — always
// "" here, see handleMacro) and returns expanded template source, which
// is recursively parsed at the call site (spec §4.3 "Macro" dispatch
// class).
type MacroFunc func(argStr, bodyStr string) (string, error)

// RegisterMacro adds a user directive handler under name (spec §4.3
// macro registry).
func (p *Parser) RegisterMacro(name string, fn MacroFunc) {
	p.macros[name] = fn
	p.settings.MacroDirectives[name] = true
}

// handleMacro invokes a registered macro with its raw argument string,
// then recursively parses the returned source text at the current
// position in the current method, by temporarily swapping the lexer
// onto a fresh reader over the expansion (spec §4.3: "recursively parse
// the macro's output").
func (p *Parser) handleMacro(name string, fn MacroFunc) error {
	var argStr string
	if p.atChar('(') {
		raw, err := p.lex.GetCallArgString()
		if err != nil {
			return err
		}
		argStr = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(raw, "("), ")"))
	} else {
		raw, err := p.lex.GetExpression()
		if err != nil {
			return err
		}
		argStr = strings.TrimSpace(raw)
	}

	expanded, err := fn(argStr, "")
	if err != nil {
		return errors.Annotatef(err, "invoking macro %q", name)
	}

	savedReader := p.lex.R
	p.lex.R = sourcereader.New(savedReader.Name()+"#macro:"+name, expanded)
	err = p.parseBody()
	p.lex.R = savedReader
	if err != nil {
		return errors.Annotatef(err, "parsing output of macro %q", name)
	}
	return nil
}
