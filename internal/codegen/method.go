// Package codegen implements the three nested accumulators described in
// spec §4.4-4.6 — MethodBuilder, ClassBuilder, and ModuleBuilder — which
// turn parser events into host-language source text. None of them touch
// the SourceReader or Lexer directly; the parser drives them purely
// through their Go API, mirroring the teacher's addChunk/addIndentingDirective
// method-compiler surface generalized from an interpreted INode tree to
// emitted source text.
package codegen

import (
	"fmt"
	"strings"

	"github.com/cheetahc/cheetahc/internal/cerr"
	"github.com/cheetahc/cheetahc/internal/lexer"
	"github.com/cheetahc/cheetahc/internal/settings"
)

// CallRegion is pushed when "#call F(args)" opens a buffered-output
// region (spec §3).
type CallRegion struct {
	ID           string
	FunctionName string
	ExtraArgs    string
	Row, Col     int
}

// FilterRegion is pushed when "#filter" swaps the active output filter
// (spec §3).
type FilterRegion struct {
	ID         string
	FilterExpr string
	IsClass    bool
}

// MethodBuilder accumulates the body of one generated method: a coalesced
// pending string literal, indentation-tracked body chunks, nested
// call/filter regions, and the generator/return exclusivity flag (spec
// §3 MethodBuilder state, §4.4).
type MethodBuilder struct {
	Name          string
	Decorators    []string
	Args          lexer.ArgList
	IsAuto        bool
	IsClassMethod bool
	IsStaticMethod bool

	initialComment string
	indentLev      int
	pendingStrConst strings.Builder
	bodyChunks     []string

	callStack   []CallRegion
	filterStack []FilterRegion
	isGenerator bool
	hasReturn   bool

	// nextIDCounter backs CallRegion/FilterRegion ids (spec §3
	// MethodBuilder state: "next_id_counter") — an incrementing counter
	// scoped to this method, not a random id, so two compiles of
	// byte-identical source always emit byte-identical region ids (spec
	// §8 "Idempotent compile").
	nextIDCounter int

	settings *settings.Settings
}

// nextID returns the next region id for this method, as a decimal string,
// and advances the counter.
func (m *MethodBuilder) nextID() string {
	m.nextIDCounter++
	return fmt.Sprintf("%d", m.nextIDCounter)
}

// NewMethod creates a method builder. IsAuto defaults to true — the
// ordinary case for a #def/#block-spawned method, which gets the
// auto-transaction prelude/cleanup on Close (spec §4.4's "auto-method
// wrapping"). __init__ clears IsAuto (see ClassBuilder.Finalize).
func NewMethod(name string, decorators []string, s *settings.Settings) *MethodBuilder {
	return &MethodBuilder{
		Name:       name,
		Decorators: decorators,
		IsAuto:     true,
		settings:   s,
		indentLev:  s.InitialMethIndentLevel,
	}
}

// SetInitialComment records a comment emitted first thing in the
// method's body (e.g. "## CHEETAH: main method generated for this
// template").
func (m *MethodBuilder) SetInitialComment(c string) { m.initialComment = c }

// AddArg appends one argument to the method's declared signature
// (excluding the implicit "self" and the auto-added "trans").
func (m *MethodBuilder) AddArg(name, def string, hasDefault bool) {
	m.Args = append(m.Args, lexer.ArgPair{Name: name, Default: def, HasDefault: hasDefault})
}

func (m *MethodBuilder) indentation() string { return m.settings.Indent(m.indentLev) }

// Indent increases the body's indentation level by one unit.
func (m *MethodBuilder) Indent() { m.indentLev++ }

// Dedent decreases the indentation level by one unit; dedenting below
// zero is an InvariantViolation (spec §4.4).
func (m *MethodBuilder) Dedent() error {
	if m.indentLev == 0 {
		return cerr.Internal("dedent below zero in method %q", m.Name)
	}
	m.indentLev--
	return nil
}

// AddChunk flushes any pending string literal, then appends one
// already-complete host-language statement at the current indentation.
func (m *MethodBuilder) AddChunk(chunk string) {
	m.commitStrConst()
	m.bodyChunks = append(m.bodyChunks, "\n"+m.indentation()+chunk)
}

// AppendToPrevChunk appends text to the most recently added chunk
// in-place (used to attach trailing "# from line N, col C" annotations).
func (m *MethodBuilder) AppendToPrevChunk(suffix string) {
	if n := len(m.bodyChunks); n > 0 {
		m.bodyChunks[n-1] += suffix
	}
}

// AddWriteChunk emits "write(<expr>)".
func (m *MethodBuilder) AddWriteChunk(expr string) { m.AddChunk("write(" + expr + ")") }

// AddFilteredChunk emits a placeholder's value through the active output
// filter, honoring alwaysFilterNone (spec §4.7, teacher's addFilteredChunk).
func (m *MethodBuilder) AddFilteredChunk(expr string) {
	if m.settings.AlwaysFilterNone {
		m.AddChunk(fmt.Sprintf("_v = %s", expr))
		m.AddChunk("if _v is not NO_CONTENT: write(_filter(_v))")
	} else {
		m.AddChunk(fmt.Sprintf("write(_filter(%s))", expr))
	}
}

// AddStrConst appends raw literal text to the pending string-literal
// buffer; adjacent AddStrConst calls coalesce into one write() call on
// the next AddChunk or on Close (spec §4.4).
func (m *MethodBuilder) AddStrConst(s string) { m.pendingStrConst.WriteString(s) }

// HandleWSBeforeDirective truncates the pending string literal back to
// the start of its last line — used by the parser's line-clear rule
// (spec §4.3) so a directive occupying its own line leaves no stray
// leading whitespace in the rendered output.
func (m *MethodBuilder) HandleWSBeforeDirective() {
	s := m.pendingStrConst.String()
	if s == "" {
		return
	}
	bol := strings.LastIndexAny(s, "\n\r") + 1
	if bol < len(s) && strings.TrimLeft(s[bol:], " \t") == "" {
		m.pendingStrConst.Reset()
		m.pendingStrConst.WriteString(s[:bol])
	}
}

func (m *MethodBuilder) commitStrConst() {
	if m.pendingStrConst.Len() == 0 {
		return
	}
	text := m.pendingStrConst.String()
	m.pendingStrConst.Reset()
	m.AddWriteChunk(quotePythonLiteral(text))
}

// AddMethComment emits a '#'-prefixed comment line at commentOffset.
func (m *MethodBuilder) AddMethComment(c string) {
	m.AddChunk("#" + strings.Repeat(" ", m.settings.CommentOffset) + c)
}

// AddIndentingDirective emits expr (appending ":" if missing) and
// increases indentation — used for #if/#for/#while/#try openers.
func (m *MethodBuilder) AddIndentingDirective(expr string) {
	if expr != "" && !strings.HasSuffix(expr, ":") {
		expr += ":"
	}
	m.AddChunk(expr)
	m.Indent()
}

// AddReIndentingDirective dedents (unless dedent is false), emits expr,
// then re-indents — used for #else/#elif/#except/#finally.
func (m *MethodBuilder) AddReIndentingDirective(expr string, dedent bool) error {
	m.commitStrConst()
	if dedent {
		if err := m.Dedent(); err != nil {
			return err
		}
	}
	if !strings.HasSuffix(expr, ":") {
		expr += ":"
	}
	m.AddChunk(expr)
	m.Indent()
	return nil
}

// AddSet implements "#set [global] LVALUE OP RVALUE" (spec §4.3). Module
// scope ("#set module ...") is handled by the caller against
// ModuleBuilder directly, since it never touches a method body.
func (m *MethodBuilder) AddSet(lvalue, op, rvalue string, global bool) {
	if !global {
		m.AddChunk(lvalue + " " + op + " " + strings.TrimSpace(rvalue))
		return
	}
	dot := strings.IndexByte(lvalue, '.')
	bracket := strings.IndexByte(lvalue, '[')
	splitPos := -1
	switch {
	case dot > 0 && bracket == -1:
		splitPos = dot
	case dot > 0 && bracket >= 0 && dot < bracket:
		splitPos = dot
	default:
		splitPos = bracket
	}
	primary, secondary := lvalue, ""
	if splitPos > 0 {
		primary, secondary = lvalue[:splitPos], lvalue[splitPos:]
	}
	newLValue := fmt.Sprintf(`self._CHEETAH__globalSetVars["%s"]%s`, primary, secondary)
	m.AddChunk(newLValue + " " + op + " " + strings.TrimSpace(rvalue))
}

// SetReturn implements "#return expr" — forbidden once the method has
// yielded (spec §3 invariant: is_generator and has_return are mutually
// exclusive).
func (m *MethodBuilder) SetReturn(expr string) error {
	if m.isGenerator {
		return cerr.Internal("method %q: #return after #yield", m.Name)
	}
	m.AddChunk(expr)
	m.hasReturn = true
	return nil
}

// SetYield implements "#yield [expr]" (spec §4.4): a bare "#yield" emits
// the canonical reset-trans/yield-buffered/reject-trans-arg block;
// "#yield expr" emits a plain yield statement.
func (m *MethodBuilder) SetYield(expr string) error {
	if m.hasReturn {
		return cerr.Internal("method %q: #yield after #return", m.Name)
	}
	m.isGenerator = true
	if strings.TrimSpace(strings.Replace(expr, "yield", "", 1)) != "" {
		m.AddChunk(expr)
		return nil
	}
	m.AddChunk("if _dummyTrans:")
	m.Indent()
	m.AddChunk("yield trans.response().getvalue()")
	m.AddChunk("trans = DummyTransaction()")
	m.AddChunk("write = trans.response().write")
	if err := m.Dedent(); err != nil {
		return err
	}
	m.AddChunk("else:")
	m.Indent()
	m.AddChunk(`raise TypeError("This method cannot be called with a trans arg")`)
	return m.Dedent()
}

// StartCallRegion opens a CallRegion (spec §4.3 "#call F(args): body"):
// output is redirected to a buffered transaction until EndCallRegion.
func (m *MethodBuilder) StartCallRegion(functionName, extraArgs string, row, col int) {
	id := m.nextID()
	m.callStack = append(m.callStack, CallRegion{ID: id, FunctionName: functionName, ExtraArgs: extraArgs, Row: row, Col: col})
	m.AddChunk(fmt.Sprintf("## START CALL REGION: %s of %s at line %d, col %d in the source.", id, functionName, row, col))
	m.AddChunk(fmt.Sprintf("_orig_trans_%s = trans", id))
	m.AddChunk(fmt.Sprintf("trans = _call_collector_%s = DummyTransaction()", id))
	m.AddChunk("self._CHEETAH__isBuffering = True")
	m.AddChunk(fmt.Sprintf("write = _call_collector_%s.response().write", id))
}

// EndCallRegion closes the innermost CallRegion: restores trans/write,
// invokes the target function with the buffered value as its first
// positional argument, and writes the (filtered) result.
func (m *MethodBuilder) EndCallRegion() error {
	if len(m.callStack) == 0 {
		return cerr.Internal("method %q: #end call with no open call region", m.Name)
	}
	n := len(m.callStack) - 1
	cr := m.callStack[n]
	m.callStack = m.callStack[:n]

	m.AddChunk(fmt.Sprintf("trans = _orig_trans_%s", cr.ID))
	m.AddChunk("write = trans.response().write")
	m.AddChunk("self._CHEETAH__isBuffering = False")
	m.AddChunk(fmt.Sprintf("del _orig_trans_%s", cr.ID))
	m.AddChunk(fmt.Sprintf("_call_arg_val_%s = _call_collector_%s.response().getvalue()", cr.ID, cr.ID))
	m.AddChunk(fmt.Sprintf("del _call_collector_%s", cr.ID))
	m.AddFilteredChunk(fmt.Sprintf("%s(_call_arg_val_%s%s)", cr.FunctionName, cr.ID, cr.ExtraArgs))
	m.AddChunk(fmt.Sprintf("del _call_arg_val_%s", cr.ID))
	m.AddChunk(fmt.Sprintf("## END CALL REGION: %s of %s at line %d, col %d in the source.", cr.ID, cr.FunctionName, cr.Row, cr.Col))
	return nil
}

// StartFilterRegion implements "#filter" (spec §4.3): swaps the active
// output filter within its scope; "none" restores the initial filter, a
// class-valued filter constructs an instance and uses its .filter method.
func (m *MethodBuilder) StartFilterRegion(filterExpr string, isClass bool) {
	id := m.nextID()
	m.filterStack = append(m.filterStack, FilterRegion{ID: id, FilterExpr: filterExpr, IsClass: isClass})
	m.AddChunk(fmt.Sprintf("_orig_filter_%s = _filter", id))
	trimmed := strings.TrimSpace(filterExpr)
	switch {
	case isClass:
		m.AddChunk(fmt.Sprintf("_filter = self._CHEETAH__currentFilter = %s(self).filter", trimmed))
	case strings.EqualFold(trimmed, "none"):
		m.AddChunk("_filter = self._CHEETAH__initialFilter")
	default:
		m.AddChunk(fmt.Sprintf("_filter = self._CHEETAH__currentFilter = self._CHEETAH__filters[%q]", trimmed))
	}
}

// EndFilterRegion restores the filter active before the innermost
// #filter.
func (m *MethodBuilder) EndFilterRegion() error {
	if len(m.filterStack) == 0 {
		return cerr.Internal("method %q: #end filter with no open filter region", m.Name)
	}
	n := len(m.filterStack) - 1
	fr := m.filterStack[n]
	m.filterStack = m.filterStack[:n]
	m.AddChunk(fmt.Sprintf("_filter = self._CHEETAH__currentFilter = _orig_filter_%s", fr.ID))
	return nil
}

// Close finalizes the method: flushes pending text, verifies the
// call/filter stacks drained (spec §3 invariant), and — for auto methods
// — prepends the transaction/SL/_filter setup and appends the return/
// stop cleanup (spec §4.4).
func (m *MethodBuilder) Close() error {
	m.commitStrConst()
	if len(m.callStack) != 0 {
		return cerr.Internal("method %q finalized with %d open call region(s)", m.Name, len(m.callStack))
	}
	if len(m.filterStack) != 0 {
		return cerr.Internal("method %q finalized with %d open filter region(s)", m.Name, len(m.filterStack))
	}
	if !m.IsAuto {
		return nil
	}

	hasVarArgs, hasKwArgs := false, false
	for _, a := range m.Args {
		switch {
		case strings.HasPrefix(a.Name, "**"):
			hasKwArgs = true
		case strings.HasPrefix(a.Name, "*"):
			hasVarArgs = true
		}
	}
	streaming := !hasVarArgs && !hasKwArgs
	if streaming {
		m.Args = append(m.Args, lexer.ArgPair{Name: "trans", Default: "None", HasDefault: true})
	}

	m.indentLev = m.settings.InitialMethIndentLevel
	mainBody := m.bodyChunks
	m.bodyChunks = nil
	m.addAutoSetupCode(streaming)
	m.bodyChunks = append(m.bodyChunks, mainBody...)
	m.addAutoCleanupCode()
	return nil
}

func (m *MethodBuilder) addAutoSetupCode(streaming bool) {
	if m.initialComment != "" {
		m.AddChunk(m.initialComment)
	}
	if streaming && !m.IsClassMethod && !m.IsStaticMethod {
		m.AddChunk("if not trans and not self._CHEETAH__isBuffering and not callable(self.transaction):")
		m.Indent()
		m.AddChunk("trans = self.transaction")
		_ = m.Dedent()
		m.AddChunk("if not trans:")
		m.Indent()
		m.AddChunk("trans = DummyTransaction()")
		m.AddChunk("_dummyTrans = True")
		_ = m.Dedent()
		m.AddChunk("else: _dummyTrans = False")
	} else {
		m.AddChunk("trans = DummyTransaction()")
		m.AddChunk("_dummyTrans = True")
	}
	m.AddChunk("write = trans.response().write")
	if m.settings.UseNameMapper {
		if m.IsClassMethod || m.IsStaticMethod {
			m.AddChunk("SL = [KWS]")
		} else {
			m.AddChunk("SL = self._CHEETAH__searchList")
		}
	}
	if m.IsClassMethod || m.IsStaticMethod {
		m.AddChunk("_filter = lambda x, **kwargs: unicode(x)")
	} else {
		m.AddChunk("_filter = self._CHEETAH__currentFilter")
	}
	m.AddChunk("")
	m.AddChunk(strings.Repeat("#", 40))
	m.AddChunk("## START - generated method body")
	m.AddChunk("")
}

func (m *MethodBuilder) addAutoCleanupCode() {
	m.AddChunk("")
	m.AddChunk(strings.Repeat("#", 40))
	m.AddChunk("## END - generated method body")
	m.AddChunk("")
	if !m.isGenerator {
		m.addStop()
	}
	m.AddChunk("")
}

func (m *MethodBuilder) addStop() {
	m.AddChunk("if _dummyTrans:")
	m.Indent()
	m.AddChunk("self.transaction = None")
	m.AddChunk("return trans.response().getvalue()")
	_ = m.Dedent()
	m.AddChunk("else:")
	m.Indent()
	m.AddChunk("return NO_CONTENT")
	_ = m.Dedent()
}

// MethodDef renders the finished "def name(args):\n<body>" text. Call
// only after Close.
func (m *MethodBuilder) MethodDef() string {
	return m.signature() + strings.Join(m.bodyChunks, "")
}

func (m *MethodBuilder) signature() string {
	ind := m.settings.Indent(1)
	var parts []string
	if !m.IsClassMethod && !m.IsStaticMethod {
		parts = append(parts, "self")
	}
	for _, a := range m.Args {
		if a.HasDefault {
			parts = append(parts, a.Name+"="+a.Default)
		} else {
			parts = append(parts, a.Name)
		}
	}
	var sb strings.Builder
	for _, d := range m.Decorators {
		sb.WriteString(ind + d + "\n")
	}
	sb.WriteString(ind + "def " + m.Name + "(" + strings.Join(parts, ", ") + "):")
	return sb.String()
}

// quotePythonLiteral renders s as a triple-quoted host-language string
// literal, preserving embedded newlines verbatim (spec §4.4: "preserve
// the original line structure").
func quotePythonLiteral(s string) string {
	quote := `"""`
	if strings.Contains(s, `"`) && !strings.Contains(s, "'") {
		quote = "'''"
	}
	escaped := strings.ReplaceAll(s, `\`, `\\`)
	return quote + escaped + quote
}
