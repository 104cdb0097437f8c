package codegen

import (
	"strings"
	"testing"

	"github.com/cheetahc/cheetahc/internal/settings"
)

func TestAddChunkAndStrConstCoalesce(t *testing.T) {
	s := settings.New()
	m := NewMethod("test", nil, s)
	m.IsAuto = false

	m.AddStrConst("hello ")
	m.AddStrConst("world")
	m.AddChunk("pass")
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want := "    def test(self):" +
		"\n        write(\"\"\"hello world\"\"\")" +
		"\n        pass"
	if got := m.MethodDef(); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestCloseAutoWrapsPrelude(t *testing.T) {
	s := settings.New()
	m := NewMethod("respond", nil, s)
	m.AddChunk("write('body')")
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if len(m.Args) != 1 || m.Args[0].Name != "trans" || m.Args[0].Default != "None" || !m.Args[0].HasDefault {
		t.Fatalf("expected trans=None appended to args, got %+v", m.Args)
	}
	def := m.MethodDef()
	for _, want := range []string{
		"if not trans and not self._CHEETAH__isBuffering and not callable(self.transaction):",
		"## START - generated method body",
		"## END - generated method body",
		"return trans.response().getvalue()",
		"write('body')",
	} {
		if !strings.Contains(def, want) {
			t.Fatalf("method def missing %q:\n%s", want, def)
		}
	}
}

func TestCloseAutoClassMethodSkipsStreamingPrelude(t *testing.T) {
	s := settings.New()
	m := NewMethod("helper", nil, s)
	m.IsClassMethod = true
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	def := m.MethodDef()
	if strings.Contains(def, "callable(self.transaction)") {
		t.Fatalf("classmethod should not get the streaming prelude:\n%s", def)
	}
	if !strings.Contains(def, "SL = [KWS]") {
		t.Fatalf("expected classmethod search list binding:\n%s", def)
	}
}

func TestSetReturnAfterYieldErrors(t *testing.T) {
	s := settings.New()
	m := NewMethod("gen", nil, s)
	if err := m.SetYield(""); err != nil {
		t.Fatalf("SetYield: %v", err)
	}
	if err := m.SetReturn("x"); err == nil {
		t.Fatalf("expected error returning from a generator method")
	}
}

func TestSetYieldAfterReturnErrors(t *testing.T) {
	s := settings.New()
	m := NewMethod("gen", nil, s)
	if err := m.SetReturn("x"); err != nil {
		t.Fatalf("SetReturn: %v", err)
	}
	if err := m.SetYield("x"); err == nil {
		t.Fatalf("expected error yielding from a method that already returned")
	}
}

func TestDedentBelowZeroErrors(t *testing.T) {
	s := settings.New()
	m := NewMethod("m", nil, s) // indentLev starts at s.InitialMethIndentLevel == 2
	if err := m.Dedent(); err != nil {
		t.Fatalf("Dedent 1: %v", err)
	}
	if err := m.Dedent(); err != nil {
		t.Fatalf("Dedent 2: %v", err)
	}
	if err := m.Dedent(); err == nil {
		t.Fatalf("expected error dedenting below zero")
	}
}

func TestCallRegionRoundTrip(t *testing.T) {
	s := settings.New()
	m := NewMethod("m", nil, s)
	m.IsAuto = false
	m.StartCallRegion("myFunc", ", x=1", 5, 3)
	if err := m.EndCallRegion(); err != nil {
		t.Fatalf("EndCallRegion: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	def := m.MethodDef()
	for _, want := range []string{
		"## START CALL REGION:",
		"## END CALL REGION:",
		"myFunc(_call_arg_val_",
		", x=1)",
		"self._CHEETAH__isBuffering = True",
		"self._CHEETAH__isBuffering = False",
	} {
		if !strings.Contains(def, want) {
			t.Fatalf("missing %q in:\n%s", want, def)
		}
	}
}

func TestEndCallRegionWithoutStartErrors(t *testing.T) {
	s := settings.New()
	m := NewMethod("m", nil, s)
	if err := m.EndCallRegion(); err == nil {
		t.Fatalf("expected error ending a call region that was never started")
	}
}

func TestFilterRegionRoundTrip(t *testing.T) {
	s := settings.New()
	m := NewMethod("m", nil, s)
	m.IsAuto = false
	m.StartFilterRegion("MyFilter", true)
	if err := m.EndFilterRegion(); err != nil {
		t.Fatalf("EndFilterRegion: %v", err)
	}
	def := m.MethodDef()
	if !strings.Contains(def, "MyFilter(self).filter") {
		t.Fatalf("expected class-valued filter construction, got:\n%s", def)
	}
}

func TestFilterRegionNoneRestoresInitialFilter(t *testing.T) {
	s := settings.New()
	m := NewMethod("m", nil, s)
	m.IsAuto = false
	m.StartFilterRegion("None", false)
	def := m.MethodDef()
	if !strings.Contains(def, "_filter = self._CHEETAH__initialFilter") {
		t.Fatalf("expected #filter None to restore the initial filter, got:\n%s", def)
	}
}

func TestEndFilterRegionWithoutStartErrors(t *testing.T) {
	s := settings.New()
	m := NewMethod("m", nil, s)
	if err := m.EndFilterRegion(); err == nil {
		t.Fatalf("expected error ending a filter region that was never started")
	}
}

func TestAddSetGlobalWithDotAndBracket(t *testing.T) {
	s := settings.New()
	m := NewMethod("m", nil, s)
	m.IsAuto = false
	m.AddSet("x.y[0]", "=", "1", true)
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	want := `self._CHEETAH__globalSetVars["x"].y[0] = 1`
	if !strings.Contains(m.MethodDef(), want) {
		t.Fatalf("want %q in:\n%s", want, m.MethodDef())
	}
}

func TestAddSetGlobalPlainName(t *testing.T) {
	s := settings.New()
	m := NewMethod("m", nil, s)
	m.IsAuto = false
	m.AddSet("x", "=", "1", true)
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	want := `self._CHEETAH__globalSetVars["x"] = 1`
	if !strings.Contains(m.MethodDef(), want) {
		t.Fatalf("want %q in:\n%s", want, m.MethodDef())
	}
}

func TestAddSetLocal(t *testing.T) {
	s := settings.New()
	m := NewMethod("m", nil, s)
	m.IsAuto = false
	m.AddSet("x", "=", "1", false)
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !strings.Contains(m.MethodDef(), "x = 1") {
		t.Fatalf("got:\n%s", m.MethodDef())
	}
}

func TestQuotePythonLiteralPicksQuoteStyle(t *testing.T) {
	if got := quotePythonLiteral("hello"); got != `"""hello"""` {
		t.Fatalf("got %q", got)
	}
	if got := quotePythonLiteral(`it's here`); got != `"""it's here"""` {
		t.Fatalf("got %q", got)
	}
	if got := quotePythonLiteral(`say "hi"`); got != `'''say "hi"'''` {
		t.Fatalf("got %q", got)
	}
	if got := quotePythonLiteral(`a\b`); got != `"""a\\b"""` {
		t.Fatalf("got %q", got)
	}
}

func TestAddIndentingAndReIndentingDirectives(t *testing.T) {
	s := settings.New()
	m := NewMethod("m", nil, s)
	m.IsAuto = false
	m.AddIndentingDirective("if x")
	m.AddChunk("pass")
	if err := m.AddReIndentingDirective("else", true); err != nil {
		t.Fatalf("AddReIndentingDirective: %v", err)
	}
	m.AddChunk("pass")
	if err := m.Dedent(); err != nil {
		t.Fatalf("Dedent: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	def := m.MethodDef()
	for _, want := range []string{"if x:", "else:"} {
		if !strings.Contains(def, want) {
			t.Fatalf("missing %q in:\n%s", want, def)
		}
	}
}
