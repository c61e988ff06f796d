package render

import (
	"testing"

	"vex/anchors"
	"vex/highlight"

	"github.com/gdamore/tcell/v2"
)

type fakeProvider struct {
	lines []LineData
}

func (p *fakeProvider) RenderLine(i int) (LineData, bool) {
	if i < 0 || i >= len(p.lines) {
		return LineData{}, false
	}
	return p.lines[i], true
}

func provider(texts ...string) *fakeProvider {
	p := &fakeProvider{}
	for _, t := range texts {
		p.lines = append(p.lines, LineData{Text: t})
	}
	return p
}

func TestSteadyViewportCostsZeroRecomputes(t *testing.T) {
	p := provider("one", "two", "three", "four")
	c := NewCache()

	c.Viewport(p, 0, 4, 1)
	first := c.Recomputes()
	if first != 4 {
		t.Fatalf("expected 4 recomputes on cold cache, got %d", first)
	}

	c.Viewport(p, 0, 4, 1)
	if c.Recomputes() != first {
		t.Fatalf("steady frame must not recompute, got %d extra", c.Recomputes()-first)
	}
}

func TestSingleLineEditRecomputesOnlyThatLine(t *testing.T) {
	p := provider("aaa", "bbb", "ccc")
	c := NewCache()
	c.Viewport(p, 0, 3, 0)
	before := c.Recomputes()

	p.lines[1].Text = "bXb"
	c.ApplyEdit(1, 1, 0)

	c.Viewport(p, 0, 3, 0)
	if got := c.Recomputes() - before; got != 1 {
		t.Fatalf("expected exactly 1 recompute, got %d", got)
	}
}

func TestLineInsertShiftsEntriesBelow(t *testing.T) {
	p := provider("aaa", "bbb", "ccc")
	c := NewCache()
	c.Viewport(p, 0, 3, 0)
	before := c.Recomputes()

	// Newline split on line 0: line 0 becomes two lines, rest shift down.
	p.lines = []LineData{{Text: "a"}, {Text: "aa"}, {Text: "bbb"}, {Text: "ccc"}}
	c.ApplyEdit(0, 0, 1)

	c.Viewport(p, 0, 4, 0)
	// Lines 2 and 3 moved but kept their segments; only the two halves of
	// the split line cost a recompute.
	if got := c.Recomputes() - before; got != 2 {
		t.Fatalf("expected 2 recomputes after split, got %d", got)
	}
}

func TestCursorMoveRecomputesTwoLines(t *testing.T) {
	p := provider("aaa", "bbb", "ccc")
	c := NewCache()
	c.Viewport(p, 0, 3, 0)
	before := c.Recomputes()

	c.Viewport(p, 0, 3, 2)
	if got := c.Recomputes() - before; got != 2 {
		t.Fatalf("cursor move must recompute exactly the two lines involved, got %d", got)
	}
}

func TestSemanticTokensOverrideLexicalStyles(t *testing.T) {
	data := LineData{
		Text: "let name",
		Lexical: []highlight.Token{
			{Text: "let", Style: tcell.StyleDefault.Foreground(tcell.ColorBlue)},
			{Text: " name", Style: tcell.StyleDefault},
		},
		Semantic: []anchors.Token{
			{Anchor: anchors.Anchor{Line: 0, Col: 4, Len: 4}, Type: "variable"},
		},
	}
	segs := compose(data, false)

	wantVar, _ := highlight.SemanticStyle("variable")
	found := false
	for _, s := range segs {
		if s.Text == "name" && s.Style == wantVar {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected semantic style on name, got %+v", segs)
	}
}

func TestUnknownSemanticTypeLeavesLexicalStyle(t *testing.T) {
	lex := tcell.StyleDefault.Foreground(tcell.ColorGreen)
	data := LineData{
		Text:    "text",
		Lexical: []highlight.Token{{Text: "text", Style: lex}},
		Semantic: []anchors.Token{
			{Anchor: anchors.Anchor{Col: 0, Len: 4}, Type: "somethingNovel"},
		},
	}
	segs := compose(data, false)
	if len(segs) != 1 || segs[0].Style != lex {
		t.Fatalf("unknown semantic type must not repaint the line, got %+v", segs)
	}
}

func TestDiagnosticUnderlinesSpan(t *testing.T) {
	data := LineData{
		Text: "oops here",
		Diagnostics: []anchors.Diagnostic{
			{Anchor: anchors.Anchor{Col: 0, Len: 4}, Severity: anchors.SeverityError},
		},
	}
	segs := compose(data, false)
	if len(segs) < 2 {
		t.Fatalf("expected underlined prefix segment, got %+v", segs)
	}
	_, _, attrs := segs[0].Style.Decompose()
	if attrs&tcell.AttrUnderline == 0 {
		t.Fatal("expected underline on diagnostic span")
	}
	_, _, attrs = segs[len(segs)-1].Style.Decompose()
	if attrs&tcell.AttrUnderline != 0 {
		t.Fatal("underline must not bleed past the diagnostic span")
	}
}
