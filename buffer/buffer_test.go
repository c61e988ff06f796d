package buffer

import (
	"testing"
)

func bufferWith(lines ...string) *Buffer {
	b := NewBuffer(4)
	b.Lines = make([]Line, len(lines))
	for i, s := range lines {
		b.Lines[i] = NewLine(s)
	}
	return b
}

func TestInsertSingleLine(t *testing.T) {
	b := bufferWith("hello world")
	op, err := b.Insert(Position{Line: 0, Col: 5}, ",")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got := b.Lines[0].Text(); got != "hello, world" {
		t.Fatalf("expected %q, got %q", "hello, world", got)
	}
	if op.NewEnd != (Position{Line: 0, Col: 6}) {
		t.Fatalf("unexpected new end %+v", op.NewEnd)
	}
}

func TestInsertMultiLineSplitsLines(t *testing.T) {
	b := bufferWith("abcdef")
	op, err := b.Insert(Position{Line: 0, Col: 3}, "x\ny")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if b.LineCount() != 2 {
		t.Fatalf("expected 2 lines, got %d", b.LineCount())
	}
	if b.Lines[0].Text() != "abcx" || b.Lines[1].Text() != "ydef" {
		t.Fatalf("unexpected lines %q %q", b.Lines[0].Text(), b.Lines[1].Text())
	}
	if op.NewEnd != (Position{Line: 1, Col: 1}) {
		t.Fatalf("unexpected new end %+v", op.NewEnd)
	}
	if op.LineDelta() != 1 {
		t.Fatalf("expected line delta 1, got %d", op.LineDelta())
	}
}

func TestDeleteAcrossLines(t *testing.T) {
	b := bufferWith("first", "second", "third")
	op, err := b.Delete(NewRange(Position{Line: 0, Col: 3}, Position{Line: 2, Col: 2}))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if b.LineCount() != 1 {
		t.Fatalf("expected 1 line, got %d", b.LineCount())
	}
	if got := b.Lines[0].Text(); got != "firird" {
		t.Fatalf("expected %q, got %q", "firird", got)
	}
	if op.Removed != "st\nsecond\nth" {
		t.Fatalf("unexpected removed text %q", op.Removed)
	}
	if op.LineDelta() != -2 {
		t.Fatalf("expected line delta -2, got %d", op.LineDelta())
	}
}

func TestReplaceRoundTrip(t *testing.T) {
	b := bufferWith("let value = old")
	original := b.Text()
	op, err := b.Replace(NewRange(Position{Line: 0, Col: 12}, Position{Line: 0, Col: 15}), "updated")
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if got := b.Text(); got != "let value = updated" {
		t.Fatalf("unexpected content %q", got)
	}
	// Reverse the op against post-edit content.
	if _, err := b.ApplyRaw(OpReplace, Range{Start: op.Range.Start, End: op.NewEnd}, op.Removed); err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if got := b.Text(); got != original {
		t.Fatalf("round trip mismatch: %q vs %q", got, original)
	}
}

func TestEditBeyondContentFails(t *testing.T) {
	b := bufferWith("short")
	if _, err := b.Insert(Position{Line: 0, Col: 6}, "x"); err == nil {
		t.Fatal("expected bounds error for column past end")
	}
	if _, err := b.Insert(Position{Line: 2, Col: 0}, "x"); err == nil {
		t.Fatal("expected bounds error for line past end")
	}
	if _, err := b.Delete(Range{Start: Position{Line: 0, Col: 3}, End: Position{Line: 0, Col: 1}}); err == nil {
		t.Fatal("expected bounds error for inverted range")
	}
	if got := b.Text(); got != "short" {
		t.Fatalf("failed edit must not change content, got %q", got)
	}
}

func TestWireCoordinatesSurrogatePairs(t *testing.T) {
	// U+1F600 occupies two UTF-16 code units but one rune column.
	b := bufferWith("a\U0001F600b")
	op, err := b.Insert(Position{Line: 0, Col: 2}, "x")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if op.Wire.Start.Character != 3 {
		t.Fatalf("expected wire character 3, got %d", op.Wire.Start.Character)
	}
	if op.WireNewEnd.Character != 4 {
		t.Fatalf("expected wire new end 4, got %d", op.WireNewEnd.Character)
	}
	if got := b.Lines[0].Text(); got != "a\U0001F600xb" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestWireToPosClamps(t *testing.T) {
	b := bufferWith("ab")
	p := b.WireToPos(WirePosition{Line: 9, Character: 4})
	if p != (Position{Line: 0, Col: 2}) {
		t.Fatalf("expected clamp to end of content, got %+v", p)
	}
}

func TestAutoClosePairAndSwallow(t *testing.T) {
	b := NewBuffer(4)
	b.Language = "Go"
	b.InsertChar('(')
	if got := b.Lines[0].Text(); got != "()" {
		t.Fatalf("expected auto-closed pair, got %q", got)
	}
	ops := b.InsertChar(')')
	if len(ops) != 0 {
		t.Fatalf("expected closer to be swallowed, got %d ops", len(ops))
	}
	if got := b.Lines[0].Text(); got != "()" {
		t.Fatalf("expected %q after swallow, got %q", "()", got)
	}
	if b.Cursor.Col != 2 {
		t.Fatalf("expected cursor at 2, got %d", b.Cursor.Col)
	}
}

func TestBackspaceRemovesAutoClosedPair(t *testing.T) {
	b := NewBuffer(4)
	b.Language = "Go"
	b.InsertChar('[')
	b.Backspace()
	if got := b.Lines[0].Text(); got != "" {
		t.Fatalf("expected empty line, got %q", got)
	}
}

func TestBackspaceJoinsLines(t *testing.T) {
	b := bufferWith("abc", "def")
	b.Cursor = Position{Line: 1, Col: 0}
	ops := b.Backspace()
	if len(ops) != 1 {
		t.Fatalf("expected 1 op, got %d", len(ops))
	}
	if b.LineCount() != 1 || b.Lines[0].Text() != "abcdef" {
		t.Fatalf("unexpected join result %q", b.Text())
	}
	if b.Cursor != (Position{Line: 0, Col: 3}) {
		t.Fatalf("unexpected cursor %+v", b.Cursor)
	}
}

func TestInsertNewlineAutoIndents(t *testing.T) {
	b := bufferWith("    body")
	b.Cursor = Position{Line: 0, Col: 8}
	b.InsertNewline()
	if b.LineCount() != 2 {
		t.Fatalf("expected 2 lines, got %d", b.LineCount())
	}
	if got := b.Lines[1].Text(); got != "    " {
		t.Fatalf("expected indent copied, got %q", got)
	}
	if b.Cursor != (Position{Line: 1, Col: 4}) {
		t.Fatalf("unexpected cursor %+v", b.Cursor)
	}
}

func TestDeleteSelectionPlacesCursorAtStart(t *testing.T) {
	b := bufferWith("one", "two", "three")
	sel := NewRange(Position{Line: 0, Col: 1}, Position{Line: 2, Col: 2})
	b.Selection = &sel
	ops := b.DeleteSelection()
	if len(ops) != 1 {
		t.Fatalf("expected 1 op, got %d", len(ops))
	}
	if got := b.Text(); got != "oree" {
		t.Fatalf("unexpected content %q", got)
	}
	if b.Cursor != (Position{Line: 0, Col: 1}) {
		t.Fatalf("unexpected cursor %+v", b.Cursor)
	}
}

func TestReplaceAllEmitsOpsBottomUp(t *testing.T) {
	b := bufferWith("foo bar foo", "foo")
	count, ops := b.ReplaceAll("foo", "qux")
	if count != 3 {
		t.Fatalf("expected 3 replacements, got %d", count)
	}
	if got := b.Text(); got != "qux bar qux\nqux" {
		t.Fatalf("unexpected content %q", got)
	}
	if len(ops) != 3 {
		t.Fatalf("expected 3 ops, got %d", len(ops))
	}
	// Later positions replaced first.
	if ops[0].Range.Start.Line != 1 {
		t.Fatalf("expected first op on line 1, got %d", ops[0].Range.Start.Line)
	}
}

func TestReplaceAllSelfReferencingReplacement(t *testing.T) {
	// The replacement contains the search text; each match must be
	// visited exactly once.
	b := bufferWith("a b a")
	count, _ := b.ReplaceAll("a", "xa")
	if count != 2 {
		t.Fatalf("expected 2 replacements, got %d", count)
	}
	if got := b.Text(); got != "xa b xa" {
		t.Fatalf("unexpected content %q", got)
	}

	b = bufferWith("aa")
	count, _ = b.ReplaceAll("a", "aa")
	if count != 2 {
		t.Fatalf("expected 2 replacements, got %d", count)
	}
	if got := b.Text(); got != "aaaa" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestLineDirtyMarks(t *testing.T) {
	b := bufferWith("aaa", "bbb", "ccc")
	for i := range b.Lines {
		b.Lines[i].MarkClean()
	}
	if _, err := b.Insert(Position{Line: 1, Col: 1}, "x"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if b.Lines[0].Dirty() {
		t.Fatal("line 0 must stay clean")
	}
	if !b.Lines[1].Dirty() {
		t.Fatal("edited line must be dirty")
	}
	if b.Lines[2].Dirty() {
		t.Fatal("line 2 must stay clean")
	}
}

func TestDisplayColumnsWideRunes(t *testing.T) {
	l := NewLine("日本\tx")
	// Two double-width runes then a tab: tab stops at multiples of 4.
	if got := l.ColToDisplay(2, 4); got != 4 {
		t.Fatalf("expected display col 4, got %d", got)
	}
	if got := l.ColToDisplay(3, 4); got != 8 {
		t.Fatalf("expected display col 8 after tab, got %d", got)
	}
	if got := l.DisplayToCol(5, 4); got != 2 {
		t.Fatalf("expected rune col 2 inside tab, got %d", got)
	}
}

func TestWordNavigation(t *testing.T) {
	b := bufferWith("foo  bar_baz(qux)")
	b.Cursor = Position{Line: 0, Col: 0}
	b.MoveWordRight()
	if b.Cursor.Col != 5 {
		t.Fatalf("expected col 5, got %d", b.Cursor.Col)
	}
	b.MoveWordRight()
	if b.Cursor.Col != 12 {
		t.Fatalf("expected col 12, got %d", b.Cursor.Col)
	}
	b.MoveWordLeft()
	if b.Cursor.Col != 5 {
		t.Fatalf("expected col 5 after move left, got %d", b.Cursor.Col)
	}
}

func TestDetectIndentationTabs(t *testing.T) {
	lines := make([]string, 20)
	for i := range lines {
		lines[i] = "\tcode"
	}
	_, useTabs := DetectIndentation(lines)
	if !useTabs {
		t.Fatal("expected tab indentation detected")
	}
}
