package parser

import (
	"strings"

	"github.com/cheetahc/cheetahc/internal/cerr"
)

func (p *Parser) setOpAssignment() (op string, ok bool) {
	for _, o := range []string{"+=", "-=", "*=", "/=", "="} {
		if p.lex.R.StartsWith(o) {
			p.lex.R.Advance(len(o))
			return o, true
		}
	}
	return "", false
}

// handleSet implements "#set [global|module] LVALUE OP RVALUE" (spec
// §4.3). The LVALUE scan uses GetExpressionPlain, not GetExpression: a
// #set target must never resolve through the search list, since
// MethodBuilder.AddSet's global-scope rewriting needs the raw
// dotted/bracketed name to split on, not a VFFSL call (grounded on
// original_source/Cheetah/Parser.py's eatSet:
// "getExpression(pyTokensToBreakAt=assignmentOps, useNameMapper=False)").
func (p *Parser) handleSet() error {
	p.lex.SkipInlineSpaceAndContinuations()
	scope := "local"
	if p.atWord("global") {
		p.lex.R.Advance(len("global"))
		scope = "global"
	} else if p.atWord("module") {
		p.lex.R.Advance(len("module"))
		scope = "module"
	}
	lvalue, err := p.lex.GetExpressionPlain("=", "+=", "-=", "*=", "/=")
	if err != nil {
		return err
	}
	p.lex.SkipInlineSpaceAndContinuations()
	op, ok := p.setOpAssignment()
	if !ok {
		return cerr.New(cerr.InvalidSyntax, p.lex.R, p.lex.R.Pos(), "expected an assignment operator in #set")
	}
	rvalue, err := p.lex.GetExpression()
	if err != nil {
		return err
	}
	lvalue = strings.TrimSpace(lvalue)
	switch scope {
	case "module":
		p.module.AddModuleGlobal(lvalue + " " + op + " " + strings.TrimSpace(rvalue))
	case "global":
		p.currentMethod().AddSet(lvalue, op, rvalue, true)
	default:
		p.currentMethod().AddSet(lvalue, op, rvalue, false)
	}
	return nil
}
