package parser

import (
	"strings"

	"github.com/cheetahc/cheetahc/internal/cerr"
)

// handleSimpleExpression implements spec §4.3's "Simple expression"
// directive class: read an expression, emit it as a host-language
// statement ("silent" strips the keyword itself).
func (p *Parser) handleSimpleExpression(name string) error {
	switch name {
	case "pass", "continue", "break":
		p.currentMethod().AddChunk(name)
		return nil
	case "silent":
		expr, err := p.lex.GetExpression()
		if err != nil {
			return err
		}
		if trimmed := strings.TrimSpace(expr); trimmed != "" {
			p.currentMethod().AddChunk(trimmed)
		}
		return nil
	case "del", "assert", "raise":
		expr, err := p.lex.GetExpression()
		if err != nil {
			return err
		}
		p.currentMethod().AddChunk(name + " " + strings.TrimSpace(expr))
		return nil
	case "return":
		expr, err := p.lex.GetExpression()
		if err != nil {
			return err
		}
		line := "return"
		if trimmed := strings.TrimSpace(expr); trimmed != "" {
			line = "return " + trimmed
		}
		return p.currentMethod().SetReturn(line)
	case "yield":
		expr, err := p.lex.GetExpression()
		if err != nil {
			return err
		}
		line := ""
		if trimmed := strings.TrimSpace(expr); trimmed != "" {
			line = "yield " + trimmed
		}
		return p.currentMethod().SetYield(line)
	case "import":
		expr, err := p.lex.GetExpression()
		if err != nil {
			return err
		}
		return p.emitImport("import " + strings.TrimSpace(expr))
	case "from":
		expr, err := p.lex.GetExpression()
		if err != nil {
			return err
		}
		return p.emitImport("from " + strings.TrimSpace(expr))
	}
	return cerr.Internal("unhandled simple-expression directive %q", name)
}

// emitImport implements the legacyImportMode open question (spec §9):
// by default the statement joins the top-of-module import block;
// in legacy mode it is emitted inline, at the point of use.
func (p *Parser) emitImport(stmt string) error {
	if p.settings.LegacyImportMode {
		p.currentMethod().AddChunk(stmt)
		p.module.RegisterImportedNames(importedNamesOf(stmt))
		return nil
	}
	p.module.AddImportStatement(stmt)
	return nil
}

func importedNamesOf(stmt string) []string {
	idx := strings.Index(stmt, "import")
	if idx < 0 {
		return nil
	}
	rest := stmt[idx+len("import"):]
	parts := strings.Split(rest, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		name := fields[len(fields)-1]
		if name != "*" {
			names = append(names, name)
		}
	}
	return names
}
