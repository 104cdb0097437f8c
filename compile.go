// Package cheetahc is the pure compile() entry point required by spec §6:
// it turns a Cheetah template source string into a host-language module
// definition, without executing anything. It wires the SourceReader,
// Lexer, Parser, and codegen builders together in the dependency order
// described in spec §2, mirroring the teacher's template.go
// tokenize-then-parse top-level orchestration (truncated after codegen,
// since the "execute" step is out of this module's scope).
package cheetahc

import (
	"github.com/cheetahc/cheetahc/internal/cerr"
	"github.com/cheetahc/cheetahc/internal/parser"
	"github.com/cheetahc/cheetahc/internal/settings"
	"github.com/cheetahc/cheetahc/internal/sourcereader"
)

// Error is re-exported so callers need not import internal/cerr directly.
// Kind carries the closed taxonomy of spec §7; Filename/Line/Column/
// Context are the spec §6 diagnostic report fields.
type Error = cerr.Error

// Macro is a user-registered directive handler (spec §4.3 "Macro"
// dispatch class): it receives the raw argument string and returns
// expanded template source, recursively parsed at the call site.
type Macro = parser.MacroFunc

// Options mirrors the key table in spec §4.7. Zero-valued fields are
// replaced by the documented defaults (settings.New()); set only the
// fields you need to override. MainClassName and Filename are compile-
// level inputs rather than Settings fields (spec §6: "Options: a mapping
// with the keys enumerated in §4.7", plus "filename used only for
// diagnostics").
type Options struct {
	// MainClassName names the single primary class in the generated
	// module (spec §6). Defaults to "DynamicallyCompiledCheetahTemplate"
	// if empty, matching the original compiler's anonymous-template name.
	MainClassName string

	// Filename is recorded as __CHEETAH_src__ and used in diagnostics
	// only (spec §6). Leave empty for anonymous sources.
	Filename string

	CheetahVarStartToken string
	DirectiveStartToken  string
	CommentStartToken    string
	ScriptletStartToken  string
	ScriptletEndToken    string

	UseNameMapper     *bool
	UseSearchList     *bool
	UseAutocalling    *bool
	UseDottedNotation *bool

	AlwaysFilterNone            *bool
	AllowNestedDefScopes        *bool
	MainMethodName              string
	MainMethodNameForSubclasses string
	IndentationStep             int
	LegacyImportMode            *bool

	// Macros registers user directive handlers by name (spec §4.3 macro
	// registry), available to #name(args) / #name args directives not
	// otherwise recognized.
	Macros map[string]Macro
}

const defaultMainClassName = "DynamicallyCompiledCheetahTemplate"

// buildSettings turns an Options overlay into a Settings value seeded
// from the documented defaults (spec §4.7).
func buildSettings(opts Options) *settings.Settings {
	s := settings.New()
	if opts.CheetahVarStartToken != "" {
		s.CheetahVarStartToken = opts.CheetahVarStartToken
	}
	if opts.DirectiveStartToken != "" {
		s.DirectiveStartToken = opts.DirectiveStartToken
	}
	if opts.CommentStartToken != "" {
		s.CommentStartToken = opts.CommentStartToken
	}
	if opts.ScriptletStartToken != "" {
		s.ScriptletStartToken = opts.ScriptletStartToken
	}
	if opts.ScriptletEndToken != "" {
		s.ScriptletEndToken = opts.ScriptletEndToken
	}
	if opts.UseNameMapper != nil {
		s.UseNameMapper = *opts.UseNameMapper
	}
	if opts.UseSearchList != nil {
		s.UseSearchList = *opts.UseSearchList
	}
	if opts.UseAutocalling != nil {
		s.UseAutocalling = *opts.UseAutocalling
	}
	if opts.UseDottedNotation != nil {
		s.UseDottedNotation = *opts.UseDottedNotation
	}
	if opts.AlwaysFilterNone != nil {
		s.AlwaysFilterNone = *opts.AlwaysFilterNone
	}
	if opts.AllowNestedDefScopes != nil {
		s.AllowNestedDefScopes = *opts.AllowNestedDefScopes
	}
	if opts.MainMethodName != "" {
		s.MainMethodName = opts.MainMethodName
	}
	if opts.MainMethodNameForSubclasses != "" {
		s.MainMethodNameForSubclasses = opts.MainMethodNameForSubclasses
	}
	if opts.IndentationStep > 0 {
		s.IndentationStep = opts.IndentationStep
	}
	if opts.LegacyImportMode != nil {
		s.LegacyImportMode = *opts.LegacyImportMode
	}
	return s
}

// Compile implements spec §6's required pure function: compile(source,
// options) -> generated_source_text. It never executes the template;
// it only produces the host-language module text described in spec §4.6.
// A failed compile returns a non-nil error and no module text, per spec
// §7 ("a failed compile produces no module text"). Most failures are a
// *Error; a failure inside a #compiler-settings block or a macro
// expansion comes back wrapped in a juju/errors annotation instead.
func Compile(source string, opts Options) (string, error) {
	mainClassName := opts.MainClassName
	if mainClassName == "" {
		mainClassName = defaultMainClassName
	}

	s := buildSettings(opts)
	r := sourcereader.New(opts.Filename, source)
	p := parser.New(r, s, mainClassName, opts.Filename)
	for name, fn := range opts.Macros {
		p.RegisterMacro(name, fn)
	}

	mb, err := p.Parse()
	if err != nil {
		return "", err
	}
	return mb.Finalize()
}
