package cheetahc

import (
	"strings"
	"testing"

	. "gopkg.in/check.v1"
)

// Hook up gocheck into the "go test" runner (grounded on the teacher's
// pongo2_issues_test.go pattern).
func TestCompileSuite(t *testing.T) { TestingT(t) }

type CompileSuite struct{}

var _ = Suite(&CompileSuite{})

// --- spec §8 end-to-end scenarios ---------------------------------------

func (s *CompileSuite) TestHelloWorld(c *C) {
	out, err := Compile("Hello, $who!\n", Options{MainClassName: "Hello"})
	c.Assert(err, IsNil)
	c.Check(out, Matches, `(?s).*class Hello\(Template\):.*`)
	c.Check(out, Matches, `(?s).*_v = VFFSL\(SL, "who", True, True\).*`)
	c.Check(out, Matches, `(?s).*if _v is not NO_CONTENT: write\(_filter\(_v\)\).*`)
	c.Check(out, Matches, `(?s).*Hello, .*`)
}

func (s *CompileSuite) TestIfElseBlock(c *C) {
	src := "#if $n > 1\nmany\n#else\none\n#end if\n"
	out, err := Compile(src, Options{MainClassName: "IfElse"})
	c.Assert(err, IsNil)
	c.Check(out, Matches, `(?s).*if VFFSL\(SL, "n", True, True\) > 1:.*`)
	c.Check(out, Matches, `(?s).*many.*`)
	c.Check(out, Matches, `(?s).*else:.*`)
	c.Check(out, Matches, `(?s).*one.*`)
}

func (s *CompileSuite) TestNestedDef(c *C) {
	src := "#def outer\n  #def inner($x)\n    $x\n  #end def\n  $self.inner(1)\n#end def\n"
	out, err := Compile(src, Options{MainClassName: "Nested"})
	c.Assert(err, IsNil)
	c.Check(out, Matches, `(?s).*def inner\(self, x, trans=None\):.*`)
	// Inside inner's body, useSearchList is forced off: $x becomes a
	// direct reference, not a VFFSL(SL, ...) call.
	innerIdx := strings.Index(out, "def inner(")
	c.Assert(innerIdx, Not(Equals), -1)
	innerBody := out[innerIdx:]
	endIdx := strings.Index(innerBody, "def outer")
	if endIdx == -1 {
		endIdx = len(innerBody)
	}
	innerBody = innerBody[:endIdx]
	c.Check(strings.Contains(innerBody, "VFFSL(SL,"), Equals, false)
	c.Check(innerBody, Matches, `(?s).*_v = x.*`)
}

func (s *CompileSuite) TestCallRegion(c *C) {
	src := "#call $wrap\nhi\n#end call\n"
	out, err := Compile(src, Options{MainClassName: "CallDemo"})
	c.Assert(err, IsNil)
	c.Check(out, Matches, `(?s).*DummyTransaction\(\).*`)
	c.Check(out, Matches, `(?s).*_v = VFFSL\(SL, "wrap", True, True\)\(_call_arg_val_.*\).*`)
}

func (s *CompileSuite) TestExtendsAutoImport(c *C) {
	src := "#extends Base\n$x\n"
	out, err := Compile(src, Options{MainClassName: "Sub"})
	c.Assert(err, IsNil)
	c.Check(out, Matches, `(?s).*from Base import Base.*`)
	c.Check(out, Matches, `(?s).*class Sub\(Base\):.*`)
	c.Check(out, Matches, `(?s).*def writeBody\(self, trans=None\):.*`)
}

func (s *CompileSuite) TestShortFormTernary(c *C) {
	src := "#if $a then $b else $c\n"
	out, err := Compile(src, Options{MainClassName: "Ternary"})
	c.Assert(err, IsNil)
	c.Check(out, Matches, `(?s).*if VFFSL\(SL, "a", True, True\):.*`)
	c.Check(out, Matches, `(?s).*_v = VFFSL\(SL, "b", True, True\).*`)
	c.Check(out, Matches, `(?s).*_v = VFFSL\(SL, "c", True, True\).*`)
}

// --- spec §8 testable properties -----------------------------------------

func (s *CompileSuite) TestPlainTextIdentityOfEscapes(c *C) {
	out, err := Compile(`\$not_a_var \#not_a_directive`, Options{MainClassName: "Escaped"})
	c.Assert(err, IsNil)
	c.Check(out, Matches, `(?s).*\$not_a_var #not_a_directive.*`)
}

func (s *CompileSuite) TestBracketImbalanceIsLexicalError(c *C) {
	_, err := Compile("$foo(", Options{MainClassName: "Unbalanced"})
	c.Assert(err, NotNil)
}

func (s *CompileSuite) TestMismatchedEndIsReported(c *C) {
	_, err := Compile("#if $x\nbody\n#end for\n", Options{MainClassName: "Bad"})
	c.Assert(err, NotNil)
	ce, ok := err.(*Error)
	c.Assert(ok, Equals, true)
	c.Check(string(ce.Kind), Equals, "MismatchedEnd")
}

func (s *CompileSuite) TestUnknownDirectiveIsReported(c *C) {
	_, err := Compile("#bogus\n", Options{MainClassName: "Bad2"})
	c.Assert(err, NotNil)
	ce, ok := err.(*Error)
	c.Assert(ok, Equals, true)
	c.Check(string(ce.Kind), Equals, "UnknownDirective")
}

func (s *CompileSuite) TestIdempotentCompile(c *C) {
	src := "#if $n\n$n squared is $n\n#end if\n"
	out1, err1 := Compile(src, Options{MainClassName: "Idem", Filename: "t.tmpl"})
	c.Assert(err1, IsNil)
	out2, err2 := Compile(src, Options{MainClassName: "Idem", Filename: "t.tmpl"})
	c.Assert(err2, IsNil)
	c.Check(out1, Equals, out2)
}

func (s *CompileSuite) TestMacroExpansionIsParsedRecursively(c *C) {
	macros := map[string]Macro{
		"shout": func(argStr, bodyStr string) (string, error) {
			return "$" + strings.TrimSpace(argStr) + ".upper()\n", nil
		},
	}
	out, err := Compile("#shout(name)\n", Options{MainClassName: "Macro", Macros: macros})
	c.Assert(err, IsNil)
	c.Check(out, Matches, `(?s).*_v = VFFSL\(SL, "name\.upper", False, True\)\(\).*`)
}
