package anchors

import (
	"testing"

	"vex/buffer"
	"vex/journal"
)

// editEnv couples a buffer, journal and tracker the way a synced document
// does: every committed edit bumps the version, lands in the journal and
// is applied to the tracker.
type editEnv struct {
	t       *testing.T
	buf     *buffer.Buffer
	j       *journal.Journal
	tracker *Tracker
	version int
}

func newEnv(t *testing.T, lines ...string) *editEnv {
	b := buffer.NewBuffer(4)
	b.Lines = make([]buffer.Line, len(lines))
	for i, s := range lines {
		b.Lines[i] = buffer.NewLine(s)
	}
	return &editEnv{t: t, buf: b, j: journal.New(0), tracker: NewTracker(0)}
}

func (e *editEnv) insert(line, col int, text string) {
	op, err := e.buf.Insert(buffer.Position{Line: line, Col: col}, text)
	if err != nil {
		e.t.Fatalf("insert: %v", err)
	}
	e.commit(op)
}

func (e *editEnv) delete(r buffer.Range) {
	op, err := e.buf.Delete(r)
	if err != nil {
		e.t.Fatalf("delete: %v", err)
	}
	e.commit(op)
}

func (e *editEnv) commit(op buffer.EditOp) {
	e.version++
	e.j.Append(op, e.version)
	entries, _ := e.j.Since(e.version - 1)
	if err := e.tracker.Apply(entries); err != nil {
		e.t.Fatalf("apply: %v", err)
	}
}

func rng(line, col, endCol int) buffer.Range {
	return buffer.Range{
		Start: buffer.Position{Line: line, Col: col},
		End:   buffer.Position{Line: line, Col: endCol},
	}
}

func TestInsertBeforeDiagnosticShiftsIt(t *testing.T) {
	e := newEnv(t, "cnsole.log(x)")
	e.tracker.SetDiagnostics([]Diagnostic{
		{Anchor: Anchor{Line: 0, Col: 5, Len: 3}, Severity: SeverityError, Message: "unknown name"},
	}, 0, e.j)

	e.insert(0, 1, "o")

	ds := e.tracker.DiagnosticsOn(0)
	if len(ds) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(ds))
	}
	if ds[0].Col != 6 {
		t.Fatalf("expected diagnostic shifted to col 6, got %d", ds[0].Col)
	}
}

func TestDeleteBeforeTokenShiftsItBack(t *testing.T) {
	e := newEnv(t, "abc defg")
	e.tracker.ReplaceTokens([]Token{
		{Anchor: Anchor{Line: 0, Col: 4, Len: 4}, Type: "variable"},
	}, 0, e.j)

	e.delete(rng(0, 0, 3))

	toks := e.tracker.TokensOn(0)
	if len(toks) != 1 {
		t.Fatalf("expected 1 token, got %d", len(toks))
	}
	if toks[0].Col != 1 || toks[0].Len != 4 {
		t.Fatalf("expected token at col 1 len 4, got col %d len %d", toks[0].Col, toks[0].Len)
	}
}

func TestInsertInsideTokenExtendsIt(t *testing.T) {
	e := newEnv(t, "name = 1")
	e.tracker.ReplaceTokens([]Token{
		{Anchor: Anchor{Line: 0, Col: 0, Len: 4}, Type: "variable"},
	}, 0, e.j)

	e.insert(0, 2, "xx")

	toks := e.tracker.TokensOn(0)
	if len(toks) != 1 {
		t.Fatalf("expected 1 token, got %d", len(toks))
	}
	if toks[0].Col != 0 || toks[0].Len != 6 {
		t.Fatalf("expected token extended to len 6, got col %d len %d", toks[0].Col, toks[0].Len)
	}
}

func TestDeleteOverlappingTokenInvalidatesIt(t *testing.T) {
	e := newEnv(t, "abcdef ghi")
	e.tracker.ReplaceTokens([]Token{
		{Anchor: Anchor{Line: 0, Col: 2, Len: 3}, Type: "keyword"},
		{Anchor: Anchor{Line: 0, Col: 7, Len: 3}, Type: "variable"},
	}, 0, e.j)

	// Deletion clips one rune off the first token.
	e.delete(rng(0, 4, 6))

	if toks := e.tracker.TokensOn(0); len(toks) != 1 {
		t.Fatalf("expected overlapped token dropped, got %d tokens", len(toks))
	} else if toks[0].Type != "variable" {
		t.Fatalf("wrong survivor %q", toks[0].Type)
	}
}

func TestDeletionStrictlyInsideAnchorInvalidates(t *testing.T) {
	e := newEnv(t, "abcdefgh")
	e.tracker.ReplaceTokens([]Token{
		{Anchor: Anchor{Line: 0, Col: 1, Len: 6}, Type: "string"},
	}, 0, e.j)

	// Both endpoints survive the deletion, but the covered text changed.
	e.delete(rng(0, 3, 5))

	if toks := e.tracker.TokensOn(0); len(toks) != 0 {
		t.Fatalf("expected token invalidated, got %d", len(toks))
	}
}

func TestNewlineInsertShiftsFollowingLines(t *testing.T) {
	e := newEnv(t, "top", "middle", "bottom")
	e.tracker.SetDiagnostics([]Diagnostic{
		{Anchor: Anchor{Line: 2, Col: 0, Len: 6}, Severity: SeverityWarning},
	}, 0, e.j)

	e.insert(0, 3, "\nnew")

	if len(e.tracker.DiagnosticsOn(2)) != 0 {
		t.Fatal("diagnostic must have left line 2")
	}
	ds := e.tracker.DiagnosticsOn(3)
	if len(ds) != 1 || ds[0].Col != 0 || ds[0].Len != 6 {
		t.Fatalf("expected diagnostic at line 3 col 0 len 6, got %+v", ds)
	}
}

func TestCompositionMatchesSequentialApplication(t *testing.T) {
	// Applying edits one at a time must land anchors where applying the
	// whole sequence does.
	build := func() *editEnv {
		e := newEnv(t, "alpha beta gamma")
		e.tracker.ReplaceTokens([]Token{
			{Anchor: Anchor{Line: 0, Col: 11, Len: 5}, Type: "type"},
		}, 0, e.j)
		return e
	}

	stepwise := build()
	stepwise.insert(0, 0, "x")
	stepwise.delete(rng(0, 2, 6))
	stepwise.insert(0, 5, "yy")

	batch := newEnv(t, "alpha beta gamma")
	batch.tracker = NewTracker(0)
	batch.insert(0, 0, "x")
	batch.delete(rng(0, 2, 6))
	batch.insert(0, 5, "yy")
	// Install the stale token set afterwards and let the journal replay.
	if !batch.tracker.ReplaceTokens([]Token{
		{Anchor: Anchor{Line: 0, Col: 11, Len: 5}, Type: "type"},
	}, 0, batch.j) {
		t.Fatal("journal must reach back to version 0")
	}

	a := stepwise.tracker.TokensOn(0)
	b := batch.tracker.TokensOn(0)
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("expected one token each, got %d and %d", len(a), len(b))
	}
	if a[0].Anchor != b[0].Anchor {
		t.Fatalf("composition mismatch: %+v vs %+v", a[0].Anchor, b[0].Anchor)
	}
}

func TestApplyRejectsVersionGap(t *testing.T) {
	e := newEnv(t, "text")
	op, err := e.buf.Insert(buffer.Position{Line: 0, Col: 0}, "x")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	e.j.Append(op, 3) // versions 1 and 2 never happened
	entries, _ := e.j.Since(2)
	if err := e.tracker.Apply(entries); err == nil {
		t.Fatal("expected out-of-order apply to fail")
	}
}

func TestReplaceTokensFailsPastPrunedHistory(t *testing.T) {
	e := newEnv(t, "0123456789")
	e.j = journal.New(2)
	for i := 0; i < 5; i++ {
		op, err := e.buf.Insert(buffer.Position{Line: 0, Col: 0}, "x")
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		e.version++
		e.j.Append(op, e.version)
	}
	e.tracker = NewTracker(e.version)

	if e.tracker.ReplaceTokens([]Token{{Anchor: Anchor{Line: 0, Col: 0, Len: 1}}}, 1, e.j) {
		t.Fatal("expected stale token set to be rejected after pruning")
	}
}

func TestWholeLineDiagnosticSurvivesEditsOnLine(t *testing.T) {
	e := newEnv(t, "func broken(", "}")
	e.tracker.SetDiagnostics([]Diagnostic{
		{Anchor: Anchor{Line: 0}, WholeLine: true, Severity: SeverityError, Message: "syntax error"},
	}, 0, e.j)

	e.insert(0, 4, "x") // single-line edit on the pinned line keeps the pin
	if len(e.tracker.DiagnosticsOn(0)) != 1 {
		t.Fatal("whole-line diagnostic must survive single-line edit")
	}

	e.insert(0, 0, "\n") // line splits, pin is gone
	errs, _ := e.tracker.DiagnosticCounts()
	if errs != 0 {
		t.Fatalf("expected whole-line diagnostic dropped, still have %d errors", errs)
	}
}
