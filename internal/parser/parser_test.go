package parser

import (
	"strings"
	"testing"

	"github.com/cheetahc/cheetahc/internal/settings"
	"github.com/cheetahc/cheetahc/internal/sourcereader"
)

func mustCompile(t *testing.T, src string) string {
	t.Helper()
	s := settings.New()
	r := sourcereader.New("t", src)
	p := New(r, s, "T", "")
	mb, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	out, err := mb.Finalize()
	if err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}
	return out
}

func TestRawDirectiveBypassesScanning(t *testing.T) {
	src := "#raw\nthis $is.not #scanned <% at all %>\n#end raw\n"
	out := mustCompile(t, src)
	if !strings.Contains(out, "this $is.not #scanned <% at all %>") {
		t.Fatalf("expected raw content verbatim, got:\n%s", out)
	}
}

func TestRawDirectiveUnclosedIsError(t *testing.T) {
	s := settings.New()
	r := sourcereader.New("t", "#raw\nopen forever\n")
	p := New(r, s, "T", "")
	if _, err := p.Parse(); err == nil {
		t.Fatalf("expected error for unclosed #raw block")
	}
}

func TestDirectiveStackBalance(t *testing.T) {
	src := "#if $a\n#for $x in $y\nbody\n#end for\n#end if\n"
	out := mustCompile(t, src)
	if !strings.Contains(out, "for x in") {
		t.Fatalf("expected generated for-loop, got:\n%s", out)
	}
}

func TestMismatchedEndSurfaces(t *testing.T) {
	s := settings.New()
	r := sourcereader.New("t", "#if $a\nbody\n#end for\n")
	p := New(r, s, "T", "")
	if _, err := p.Parse(); err == nil {
		t.Fatalf("expected MismatchedEnd error")
	}
}

func TestUnclosedDirectiveAtEOF(t *testing.T) {
	s := settings.New()
	r := sourcereader.New("t", "#if $a\nbody\n")
	p := New(r, s, "T", "")
	if _, err := p.Parse(); err == nil {
		t.Fatalf("expected unclosed-directive error at EOF")
	}
}

func TestSilentStripsKeyword(t *testing.T) {
	out := mustCompile(t, "#silent $obj.method()\n")
	if strings.Contains(out, "silent") {
		t.Fatalf("expected 'silent' keyword stripped, got:\n%s", out)
	}
}

func TestAttrRejectsNameMapperSigil(t *testing.T) {
	s := settings.New()
	r := sourcereader.New("t", "#attr x = $y\n")
	p := New(r, s, "T", "")
	if _, err := p.Parse(); err == nil {
		t.Fatalf("expected #attr with namemapper syntax to fail")
	}
}

func TestExtendsMultiInheritanceRejected(t *testing.T) {
	s := settings.New()
	r := sourcereader.New("t", "#extends A, B\n")
	p := New(r, s, "T", "")
	if _, err := p.Parse(); err == nil {
		t.Fatalf("expected multi-inheritance #extends to fail")
	}
}

func TestSetGlobalRewritesLValue(t *testing.T) {
	out := mustCompile(t, "#set global $counter = 1\n")
	if !strings.Contains(out, `self._CHEETAH__globalSetVars["counter"]`) {
		t.Fatalf("expected global set rewrite, got:\n%s", out)
	}
}
