package lexer

import "github.com/cheetahc/cheetahc/internal/settings"

// Tables holds the token-start strings currently in effect, rebuilt
// whenever settings change (spec §9: "Build a LexerTables value from the
// active Settings at compile start and pass it through the parser;
// rebuild on #compiler-settings").
type Tables struct {
	VarStart       string
	DirectiveStart string
	CommentStart   string
	ScriptletStart string
	ScriptletEnd   string
	Generation     int
}

// BuildTables constructs a Tables snapshot from s.
func BuildTables(s *settings.Settings) *Tables {
	return &Tables{
		VarStart:       s.CheetahVarStartToken,
		DirectiveStart: s.DirectiveStartToken,
		CommentStart:   s.CommentStartToken,
		ScriptletStart: s.ScriptletStartToken,
		ScriptletEnd:   s.ScriptletEndToken,
		Generation:     s.Generation(),
	}
}
