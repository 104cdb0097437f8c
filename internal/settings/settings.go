// Package settings implements the compiler's key->value configuration
// store (spec §4.7). Settings are read by the lexer (to rebuild its token
// tables), by the parser (directive dispatch, #compiler-settings), and by
// codegen (indentation, method naming, import partitioning).
package settings

import (
	"fmt"
	"strconv"
	"strings"
)

// Settings holds every documented compiler option, with the package
// defaults pre-populated by New(). Mutation happens either through a
// constructor-supplied Options overlay, or at compile time via
// #compiler-settings (see ApplyKeyValueBlock).
type Settings struct {
	// Token strings (lexer table inputs).
	CheetahVarStartToken  string
	DirectiveStartToken   string
	CommentStartToken     string
	ScriptletStartToken   string
	ScriptletEndToken     string

	// NameMapper behavior.
	UseNameMapper   bool
	UseSearchList   bool
	UseAutocalling  bool
	UseDottedNotation bool

	// Output shaping.
	AlwaysFilterNone      bool
	AllowNestedDefScopes  bool
	MainMethodName        string
	MainMethodNameForSubclasses string
	IndentationStep       int
	InitialMethIndentLevel int
	CommentOffset         int

	// Import placement (spec §9 open question, resolved in SPEC_FULL §C.4).
	LegacyImportMode bool

	// MacroDirectives maps a user-registered macro name to true. The
	// parser's RegisterMacro records names here, but the parser tells a
	// macro from an unknown directive with its own macro registry (which
	// also holds the macro callables), not with this map.
	MacroDirectives map[string]bool

	// generation is bumped each time ApplyKeyValueBlock applies a block;
	// lexer.Tables records the value it was built from.
	generation int
}

// New returns a Settings populated with the documented defaults.
func New() *Settings {
	return &Settings{
		CheetahVarStartToken: "$",
		DirectiveStartToken:  "#",
		CommentStartToken:    "##",
		ScriptletStartToken:  "<%",
		ScriptletEndToken:    "%>",

		UseNameMapper:     true,
		UseSearchList:     true,
		UseAutocalling:    true,
		UseDottedNotation: true,

		AlwaysFilterNone:            true,
		AllowNestedDefScopes:        true,
		MainMethodName:              "respond",
		MainMethodNameForSubclasses: "writeBody",
		IndentationStep:             4,
		InitialMethIndentLevel:      2,
		CommentOffset:               1,

		LegacyImportMode: false,

		MacroDirectives: map[string]bool{},
	}
}

// Generation returns the current settings generation counter, which
// lexer.BuildTables stores in Tables.Generation. Nothing compares it; the
// lexer rebuilds its tables whenever RebuildTables is called.
func (s *Settings) Generation() int { return s.generation }

func (s *Settings) bump() { s.generation++ }

// Clone returns a deep-enough copy for a nested #def scope to locally
// force UseSearchList=false without disturbing the enclosing scope
// (spec §4.3: "while inside a closure, useSearchList is forced false").
func (s *Settings) Clone() *Settings {
	clone := *s
	clone.MacroDirectives = make(map[string]bool, len(s.MacroDirectives))
	for k, v := range s.MacroDirectives {
		clone.MacroDirectives[k] = v
	}
	return &clone
}

// ApplyKeyValueBlock parses the body of a #compiler-settings ... #end
// compiler-settings block: one "key = value" assignment per line (blank
// lines and lines starting with "#" are ignored). Recognized keys are
// cheetahVarStartToken, directiveStartToken, commentStartToken,
// useNameMapper, useSearchList, useAutocalling, useDottedNotation,
// alwaysFilterNone, allowNestedDefScopes, mainMethodName,
// mainMethodNameForSubclasses, indentationStep and legacyImportMode; the
// scriptlet tokens, InitialMethIndentLevel, CommentOffset and
// MacroDirectives cannot be set here. Unrecognized keys are rejected, per
// spec §6 ("Unknown keys are ignored or rejected (implementer's choice;
// document it)") — this implementation rejects them, so a typo'd setting
// name surfaces immediately rather than silently doing nothing.
func (s *Settings) ApplyKeyValueBlock(body string) error {
	for _, rawLine := range strings.Split(body, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		eq := strings.Index(line, "=")
		if eq < 0 {
			return fmt.Errorf("compiler-settings: malformed line %q (expected key = value)", rawLine)
		}
		key := strings.TrimSpace(line[:eq])
		val := strings.TrimSpace(line[eq+1:])
		val = strings.Trim(val, `"'`)
		if err := s.set(key, val); err != nil {
			return err
		}
	}
	s.bump()
	return nil
}

func (s *Settings) set(key, val string) error {
	switch key {
	case "cheetahVarStartToken":
		s.CheetahVarStartToken = val
	case "directiveStartToken":
		s.DirectiveStartToken = val
	case "commentStartToken":
		s.CommentStartToken = val
	case "useNameMapper":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("compiler-settings: useNameMapper: %w", err)
		}
		s.UseNameMapper = b
	case "useSearchList":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("compiler-settings: useSearchList: %w", err)
		}
		s.UseSearchList = b
	case "useAutocalling":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("compiler-settings: useAutocalling: %w", err)
		}
		s.UseAutocalling = b
	case "useDottedNotation":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("compiler-settings: useDottedNotation: %w", err)
		}
		s.UseDottedNotation = b
	case "alwaysFilterNone":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("compiler-settings: alwaysFilterNone: %w", err)
		}
		s.AlwaysFilterNone = b
	case "allowNestedDefScopes":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("compiler-settings: allowNestedDefScopes: %w", err)
		}
		s.AllowNestedDefScopes = b
	case "mainMethodName":
		s.MainMethodName = val
	case "mainMethodNameForSubclasses":
		s.MainMethodNameForSubclasses = val
	case "indentationStep":
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("compiler-settings: indentationStep: %w", err)
		}
		s.IndentationStep = n
	case "legacyImportMode":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("compiler-settings: legacyImportMode: %w", err)
		}
		s.LegacyImportMode = b
	default:
		return fmt.Errorf("compiler-settings: unknown setting %q", key)
	}
	return nil
}

// Indent returns the whitespace for indentLevel units.
func (s *Settings) Indent(indentLevel int) string {
	if indentLevel <= 0 {
		return ""
	}
	return strings.Repeat(" ", indentLevel*s.IndentationStep)
}
