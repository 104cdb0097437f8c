package codegen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cheetahc/cheetahc/internal/cerr"
	"github.com/cheetahc/cheetahc/internal/settings"
)

// ModuleBuilder accumulates the top-level compiled module: header
// comments, the import-statement list, module-level constants and
// special variables, a stack of classes currently open, and the
// finished classes in declaration order (spec §4.6).
type ModuleBuilder struct {
	MainClassName string
	Encoding      string
	HeaderLines   []string

	ImportStatements []string
	importedNames    map[string]bool

	ModuleConstants []string
	SpecialVars     map[string]string

	activeClasses   []*ClassBuilder
	finishedClasses []*ClassBuilder
	lastMainMethod  string

	srcPath  string
	settings *settings.Settings
}

// NewModule creates a module builder seeded with the runtime's default
// imports and NameMapper shorthand constants (spec §4.6, grounded on the
// original compiler's moduleHeader/moduleImports).
func NewModule(mainClassName, srcPath string, s *settings.Settings) *ModuleBuilder {
	return &ModuleBuilder{
		MainClassName:    mainClassName,
		Encoding:         "ascii",
		srcPath:          srcPath,
		settings:         s,
		ImportStatements: defaultImportStatements(),
		importedNames:    defaultImportedNames(),
		ModuleConstants: []string{
			"VFFSL = valueFromFrameOrSearchList",
			"VFSL = valueFromSearchList",
			"VFN = valueForName",
		},
		SpecialVars: map[string]string{},
	}
}

func defaultImportStatements() []string {
	return []string{
		"import sys",
		"import os",
		"import os.path",
		"from os.path import getmtime, exists",
		"from Cheetah.Template import NO_CONTENT",
		"from Cheetah.Template import Template",
		"from Cheetah.DummyTransaction import DummyTransaction",
		"from Cheetah.NameMapper import NotFound, valueForName, valueFromSearchList, valueFromFrameOrSearchList",
		"import Cheetah.Filters as Filters",
	}
}

func defaultImportedNames() map[string]bool {
	return map[string]bool{
		"sys": true, "os": true, "os.path": true,
		"NO_CONTENT": true, "Template": true, "DummyTransaction": true,
		"NotFound": true, "valueForName": true, "valueFromSearchList": true,
		"valueFromFrameOrSearchList": true, "Filters": true,
	}
}

// StartClass opens a new class named name (the parser passes the main
// class name it was created with).
func (mb *ModuleBuilder) StartClass(name string) *ClassBuilder {
	cb := NewClass(name, mb.settings.MainMethodName, mb.settings)
	mb.activeClasses = append(mb.activeClasses, cb)
	return cb
}

// Current returns the innermost open class.
func (mb *ModuleBuilder) Current() *ClassBuilder {
	return mb.activeClasses[len(mb.activeClasses)-1]
}

// CloseClass closes the innermost open class and moves it to the
// finished list in declaration order.
func (mb *ModuleBuilder) CloseClass() error {
	n := len(mb.activeClasses) - 1
	if n < 0 {
		return cerr.Internal("module: #end class with no open class")
	}
	cb := mb.activeClasses[n]
	mb.activeClasses = mb.activeClasses[:n]
	mb.finishedClasses = append(mb.finishedClasses, cb)
	mb.lastMainMethod = cb.MainMethodName()
	return nil
}

// AddModuleHeader appends one line to the module's header comment block
// (spec §4.6, e.g. the "#compiler-settings"-preceding file docstring).
func (mb *ModuleBuilder) AddModuleHeader(line string) { mb.HeaderLines = append(mb.HeaderLines, line) }

// AddModuleGlobal implements "#set module ..." (spec §4.3's "module"
// scope) and also carries the __CHEETAH_src__ line added by Finalize:
// the assignment is emitted verbatim among the module-level constants.
func (mb *ModuleBuilder) AddModuleGlobal(line string) { mb.ModuleConstants = append(mb.ModuleConstants, line) }

// AddSpecialVar records a module-level special variable, rendered as
// "__name__ = "contents"" (a double-quoted Go-style literal). "#encoding"
// does not go through here; it uses SetEncoding.
func (mb *ModuleBuilder) AddSpecialVar(name, contents string) {
	mb.SpecialVars["__"+name+"__"] = strings.TrimSpace(contents)
}

// SetEncoding implements "#encoding enc" (spec §4.3).
func (mb *ModuleBuilder) SetEncoding(e string) { mb.Encoding = strings.TrimSpace(e) }

// IsImported reports whether name has already been bound by some import
// statement, so #extends can skip adding a redundant one.
func (mb *ModuleBuilder) IsImported(name string) bool { return mb.importedNames[name] }

// RegisterImportedNames records names as already bound, independent of
// whether the corresponding import statement was placed top-of-module or
// inline (legacyImportMode, spec §9/SPEC_FULL §C.4).
func (mb *ModuleBuilder) RegisterImportedNames(names []string) {
	for _, n := range names {
		if n != "" && n != "*" {
			mb.importedNames[n] = true
		}
	}
}

// AddImportStatement records stmt among the top-of-module import block
// and registers the names it binds. Call sites honoring legacyImportMode
// should instead emit stmt inline via MethodBuilder.AddChunk and call
// RegisterImportedNames directly.
func (mb *ModuleBuilder) AddImportStatement(stmt string) {
	mb.ImportStatements = append(mb.ImportStatements, stmt)
	mb.RegisterImportedNames(parseImportVarNames(stmt))
}

func parseImportVarNames(stmt string) []string {
	idx := strings.Index(stmt, "import")
	if idx < 0 {
		return nil
	}
	rest := stmt[idx+len("import"):]
	parts := strings.Split(rest, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		fields := strings.Fields(p)
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

// SetExtends implements "#extends BaseClass" (spec §4.5/§4.6): it
// renames the current class's main method (since an inherited template
// must not shadow its ancestor's entry point under the same name), sets
// the base class, and — unless the base is already bound by some import
// — adds the "from <pkg> import <Name>" statement needed to reach it
// (grounded on the original compiler's setBaseClass dotted-name
// splitting).
func (mb *ModuleBuilder) SetExtends(baseClassName, explicitMainMethodName string) {
	cb := mb.Current()
	if explicitMainMethodName != "" {
		cb.SetMainMethodName(explicitMainMethodName)
	} else {
		cb.SetMainMethodName(mb.settings.MainMethodNameForSubclasses)
	}

	if baseClassName == "object" || mb.IsImported(baseClassName) {
		cb.SetBaseClass(baseClassName)
		return
	}
	chunks := strings.Split(baseClassName, ".")
	if len(chunks) == 1 {
		cb.SetBaseClass(baseClassName)
		mb.AddImportStatement(fmt.Sprintf("from %s import %s", baseClassName, baseClassName))
		return
	}
	modName := strings.Join(chunks[:len(chunks)-1], ".")
	finalName := chunks[len(chunks)-1]
	cb.SetBaseClass(finalName)
	mb.AddImportStatement(fmt.Sprintf("from %s import %s", modName, finalName))
}

// Finalize renders the complete module: header, imports, constants and
// special vars, class definitions, and the "__main__" footer (spec
// §4.6, grounded on the original compiler's wrapModuleDef).
func (mb *ModuleBuilder) Finalize() (string, error) {
	if len(mb.activeClasses) != 0 {
		return "", cerr.Internal("module finalized with %d open class(es)", len(mb.activeClasses))
	}
	if mb.srcPath != "" {
		mb.AddModuleGlobal(fmt.Sprintf("__CHEETAH_src__ = %q", mb.srcPath))
	} else {
		mb.AddModuleGlobal("__CHEETAH_src__ = None")
	}

	classDefs := make([]string, 0, len(mb.finishedClasses))
	for _, cb := range mb.finishedClasses {
		def, err := cb.Finalize()
		if err != nil {
			return "", err
		}
		classDefs = append(classDefs, def)
	}

	var sb strings.Builder
	if header := mb.moduleHeader(); header != "" {
		sb.WriteString(header)
		sb.WriteString("\n\n")
	}
	sb.WriteString(strings.Join(mb.ImportStatements, "\n"))
	sb.WriteString("\n\n")
	sb.WriteString(strings.Join(mb.ModuleConstants, "\n"))
	if len(mb.SpecialVars) > 0 {
		sb.WriteString("\n")
		sb.WriteString(mb.specialVarsText())
	}
	sb.WriteString("\n\n")
	sb.WriteString(strings.Join(classDefs, "\n\n"))
	sb.WriteString("\n\n")
	sb.WriteString(mb.moduleFooter())
	return sb.String(), nil
}

func (mb *ModuleBuilder) moduleHeader() string {
	var sb strings.Builder
	if mb.Encoding != "" {
		sb.WriteString(fmt.Sprintf("# -*- coding: %s -*-", mb.Encoding))
	}
	offset := strings.Repeat(" ", mb.settings.CommentOffset)
	for _, l := range mb.HeaderLines {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("#" + offset + l)
	}
	return sb.String()
}

func (mb *ModuleBuilder) specialVarsText() string {
	keys := make([]string, 0, len(mb.SpecialVars))
	for k := range mb.SpecialVars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s = %q", k, mb.SpecialVars[k]))
	}
	return strings.Join(lines, "\n")
}

func (mb *ModuleBuilder) moduleFooter() string {
	mainMethod := mb.lastMainMethod
	if mainMethod == "" {
		mainMethod = mb.settings.MainMethodName
	}
	return fmt.Sprintf(
		"if __name__ == '__main__':\n%sfrom os import environ\n%sfrom sys import stdout\n%sstdout.write(%s(searchList=[environ]).%s())\n",
		mb.settings.Indent(1), mb.settings.Indent(1), mb.settings.Indent(1), mb.MainClassName, mainMethod,
	)
}
