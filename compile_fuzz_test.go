package cheetahc

import (
	"strings"
	"testing"
)

// FuzzCompile fuzzes the whole compile() pure function (spec §6): it must
// never panic on arbitrary input, and a successful compile must always
// emit the main class header. Directive-stack balance (spec §8) is not
// checked here beyond that: Parse itself rejects input whose open stack
// is not empty at EOF.
func FuzzCompile(f *testing.F) {
	f.Add("Hello, $who!\n")
	f.Add("#if $n > 1\nmany\n#else\none\n#end if\n")
	f.Add("#def outer\n  #def inner($x)\n    $x\n  #end def\n#end def\n")
	f.Add("#call $wrap\nhi\n#end call\n")
	f.Add("#extends Base\n$x\n")
	f.Add("#if $a then $b else $c\n")
	f.Add("#for $x in $items\n$x\n#end for\n")
	f.Add("#set $x = 1\n")
	f.Add(`$foo(`)
	f.Add(`#end if`)
	f.Add("#bogus\n")
	f.Add("<% print 1 %>")
	f.Add(`$"""unterminated`)
	f.Add(strings.Repeat("#def a\n", 50))

	f.Fuzz(func(t *testing.T, src string) {
		out, err := Compile(src, Options{MainClassName: "Fuzz"})
		if err != nil {
			return
		}
		if !strings.Contains(out, "class Fuzz(") {
			t.Fatalf("successful compile missing expected class header:\n%s", out)
		}
	})
}
