package codegen

import (
	"fmt"
	"strings"

	"github.com/cheetahc/cheetahc/internal/cerr"
	"github.com/cheetahc/cheetahc/internal/settings"
)

// ClassBuilder accumulates one generated class: a stack of methods
// currently open (spec §4.5 "#def/#block push a new MethodBuilder"), the
// ones already closed in the order they were closed (a nested #def before
// the method enclosing it), and the class-level
// attributes set by "#attr" (spec §4.5).
type ClassBuilder struct {
	Name      string
	BaseClass string

	activeMethods   []*MethodBuilder
	finishedMethods []*MethodBuilder
	methodsByName   map[string]*MethodBuilder
	attributes      []string
	pendingDecorators []string
	mainMethodName  string

	settings *settings.Settings
}

// NewClass creates a class builder and immediately opens its main method
// (the template's entry point, spec §4.5) under mainMethodName.
func NewClass(name, mainMethodName string, s *settings.Settings) *ClassBuilder {
	cb := &ClassBuilder{
		Name:           name,
		BaseClass:      "Template",
		methodsByName:  map[string]*MethodBuilder{},
		mainMethodName: mainMethodName,
		settings:       s,
	}
	m := NewMethod(mainMethodName, nil, s)
	m.SetInitialComment("## CHEETAH: main method generated for this template")
	cb.activeMethods = append(cb.activeMethods, m)
	cb.methodsByName[mainMethodName] = m
	return cb
}

// Current returns the innermost open method — the one the parser's
// directive dispatch currently emits chunks into.
func (cb *ClassBuilder) Current() *MethodBuilder {
	return cb.activeMethods[len(cb.activeMethods)-1]
}

// MainMethodName returns the name the template's entry-point method was
// last set to (after any #extends-triggered rename, see
// SetMainMethodName).
func (cb *ClassBuilder) MainMethodName() string { return cb.mainMethodName }

// AddDecorator queues a decorator line to be attached to the next method
// opened by StartMethod (spec §4.3 "#@decorator" preceding a "#def").
func (cb *ClassBuilder) AddDecorator(d string) { cb.pendingDecorators = append(cb.pendingDecorators, d) }

func (cb *ClassBuilder) takePendingDecorators() []string {
	d := cb.pendingDecorators
	cb.pendingDecorators = nil
	return d
}

// StartMethod opens a new method (spec §4.5: "#def"/"#block" push a new
// MethodBuilder") and makes it the current one.
func (cb *ClassBuilder) StartMethod(name string, isClassMethod, isStaticMethod bool) *MethodBuilder {
	m := NewMethod(name, cb.takePendingDecorators(), cb.settings)
	m.IsClassMethod = isClassMethod
	m.IsStaticMethod = isStaticMethod
	cb.activeMethods = append(cb.activeMethods, m)
	cb.methodsByName[name] = m
	return m
}

// CloseMethod closes the innermost open method (spec §4.5 "#end def")
// and appends it to the finished list, so methods end up in close order.
func (cb *ClassBuilder) CloseMethod() error {
	n := len(cb.activeMethods) - 1
	if n < 0 {
		return cerr.Internal("class %q: #end def with no open method", cb.Name)
	}
	m := cb.activeMethods[n]
	cb.activeMethods = cb.activeMethods[:n]
	if err := m.Close(); err != nil {
		return err
	}
	cb.finishedMethods = append(cb.finishedMethods, m)
	return nil
}

// CloseBlock implements "#end block": it closes the innermost method
// exactly like CloseMethod, then — since a block is also a call site —
// patches the now-current method with a direct (unfiltered, unwritten)
// invocation of the closed block, per spec §4.5 ("#block call sites are
// not wrapped in write()").
func (cb *ClassBuilder) CloseBlock() error {
	if err := cb.CloseMethod(); err != nil {
		return err
	}
	closed := cb.finishedMethods[len(cb.finishedMethods)-1]
	cb.Current().AddChunk("self." + closed.Name + "(trans=trans)")
	return nil
}

// AddAttribute implements "#attr name = expr" (spec §4.5). Attribute
// expressions may not reference the name mapper rewrite functions — they
// execute at class-body evaluation time, before any instance (and hence
// any search list) exists.
func (cb *ClassBuilder) AddAttribute(name, expr string) error {
	if strings.Contains(expr, "VFN(") || strings.Contains(expr, "VFFSL(") || strings.Contains(expr, "VFSL(") {
		return &cerr.Error{Kind: cerr.InvalidSyntax, Message: fmt.Sprintf("class %q: #attr %q may not reference the search list", cb.Name, name)}
	}
	cb.attributes = append(cb.attributes, name+" = "+strings.TrimSpace(expr))
	return nil
}

// SetBaseClass implements "#extends" (spec §4.5/§4.6); the module-level
// import bookkeeping lives in ModuleBuilder.SetExtends.
func (cb *ClassBuilder) SetBaseClass(name string) { cb.BaseClass = name }

// SetMainMethodName implements the rename half of "#extends" when a
// subclass's entry point must not collide with its ancestor's (spec
// §4.5/§4.6): it renames the main method and patches any
// "write(self.<old>(trans=trans))" call-site chunk already emitted into
// the body to call the new name instead.
func (cb *ClassBuilder) SetMainMethodName(newName string) {
	old := cb.mainMethodName
	if old == "" || old == newName {
		cb.mainMethodName = newName
		return
	}
	m, ok := cb.methodsByName[old]
	if ok {
		oldCall := "write(self." + old + "(trans=trans))"
		newCall := "write(self." + newName + "(trans=trans))"
		m.Name = newName
		delete(cb.methodsByName, old)
		cb.methodsByName[newName] = m
		for i, chunk := range m.bodyChunks {
			if strings.Contains(chunk, oldCall) {
				m.bodyChunks[i] = strings.ReplaceAll(chunk, oldCall, newCall)
			}
		}
	}
	cb.mainMethodName = newName
}

// Finalize renders the class body: an auto __init__ that forwards to
// super(), the generated methods in the order they were closed, and the
// generated attributes (spec §4.5 class layout, grounded on the
// original compiler's wrapClassDef).
func (cb *ClassBuilder) Finalize() (string, error) {
	if len(cb.activeMethods) != 0 {
		return "", cerr.Internal("class %q finalized with %d open method(s)", cb.Name, len(cb.activeMethods))
	}

	init := NewMethod("__init__", nil, cb.settings)
	init.IsAuto = false
	init.AddArg("*args", "", false)
	init.AddArg("**KWs", "", false)
	init.AddChunk("super(" + cb.Name + ", self).__init__(*args, **KWs)")
	if err := init.Close(); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("class " + cb.Name + "(" + cb.BaseClass + "):")
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("#", 50))
	sb.WriteString("\n## CHEETAH GENERATED METHODS\n")
	sb.WriteString(init.MethodDef())
	sb.WriteString("\n\n")
	for i, m := range cb.finishedMethods {
		sb.WriteString(m.MethodDef())
		if i != len(cb.finishedMethods)-1 {
			sb.WriteString("\n\n")
		}
	}
	sb.WriteString("\n\n")
	sb.WriteString(strings.Repeat("#", 50))
	sb.WriteString("\n## CHEETAH GENERATED ATTRIBUTES\n")
	sb.WriteString(cb.settings.Indent(1) + "_CHEETAH_src = __CHEETAH_src__\n")
	for _, a := range cb.attributes {
		sb.WriteString(cb.settings.Indent(1) + a + "\n")
	}
	return sb.String(), nil
}
