package journal

import (
	"testing"

	"vex/buffer"
)

func insertOp(b *buffer.Buffer, line, col int, text string) buffer.EditOp {
	op, err := b.Insert(buffer.Position{Line: line, Col: col}, text)
	if err != nil {
		panic(err)
	}
	return op
}

func TestSinceReturnsEntriesAfterVersion(t *testing.T) {
	b := buffer.NewBuffer(4)
	j := New(0)
	for i := 0; i < 5; i++ {
		op := insertOp(b, 0, i, "x")
		j.Append(op, i+1)
	}

	entries, ok := j.Since(2)
	if !ok {
		t.Fatal("history must reach back to version 2")
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Version != 3 {
		t.Fatalf("expected first entry version 3, got %d", entries[0].Version)
	}

	entries, ok = j.Since(5)
	if !ok || len(entries) != 0 {
		t.Fatalf("expected no entries past latest version, got %d ok=%v", len(entries), ok)
	}
}

func TestSinceDetectsPrunedHistory(t *testing.T) {
	b := buffer.NewBuffer(4)
	j := New(3)
	for i := 0; i < 10; i++ {
		op := insertOp(b, 0, i, "x")
		j.Append(op, i+1)
	}
	// Capacity 3: only versions 8..10 remain.
	if j.Oldest() != 8 {
		t.Fatalf("expected oldest 8, got %d", j.Oldest())
	}
	if _, ok := j.Since(4); ok {
		t.Fatal("expected history gap for version 4")
	}
	if _, ok := j.Since(7); !ok {
		t.Fatal("version 7 is exactly at the history edge and must succeed")
	}
}

func TestPruneKeepsNewerEntries(t *testing.T) {
	b := buffer.NewBuffer(4)
	j := New(0)
	for i := 0; i < 6; i++ {
		op := insertOp(b, 0, i, "x")
		j.Append(op, i+1)
	}
	j.Prune(4)
	if j.Len() != 2 {
		t.Fatalf("expected 2 entries after prune, got %d", j.Len())
	}
	if j.Oldest() != 5 {
		t.Fatalf("expected oldest 5, got %d", j.Oldest())
	}
}

func TestWireSpanSurrogates(t *testing.T) {
	b := buffer.NewBuffer(4)
	// One emoji occupies one rune column but two UTF-16 units.
	insertOp(b, 0, 0, "\U0001F600")
	op := insertOp(b, 0, 1, "x")
	j := New(0)
	j.Append(op, 2)

	entries, _ := j.Since(1)
	rs := entries[0].RuneSpan()
	ws := entries[0].WireSpan()
	if rs.Start.Col != 1 {
		t.Fatalf("expected rune start 1, got %d", rs.Start.Col)
	}
	if ws.Start.Col != 2 {
		t.Fatalf("expected wire start 2, got %d", ws.Start.Col)
	}
	if ws.NewEnd.Col != 3 {
		t.Fatalf("expected wire new end 3, got %d", ws.NewEnd.Col)
	}
}

func TestCoalesceTypingRun(t *testing.T) {
	b := buffer.NewBuffer(4)
	a := insertOp(b, 0, 0, "he")
	c := insertOp(b, 0, 2, "llo")

	merged, ok := Coalesce(a, c)
	if !ok {
		t.Fatal("adjacent inserts must coalesce")
	}
	if merged.Text != "hello" {
		t.Fatalf("expected merged text hello, got %q", merged.Text)
	}
	if merged.NewEnd != (buffer.Position{Line: 0, Col: 5}) {
		t.Fatalf("unexpected merged end %+v", merged.NewEnd)
	}
	// Applying the merged op to a fresh buffer yields the same content.
	fresh := buffer.NewBuffer(4)
	if _, err := fresh.ApplyRaw(merged.Kind, merged.Range, merged.Text); err != nil {
		t.Fatalf("apply merged: %v", err)
	}
	if fresh.Text() != b.Text() {
		t.Fatalf("coalesced op not equivalent: %q vs %q", fresh.Text(), b.Text())
	}
}

func TestCoalesceRejectsNonAdjacent(t *testing.T) {
	b := buffer.NewBuffer(4)
	a := insertOp(b, 0, 0, "ab")
	c := insertOp(b, 0, 1, "x") // inserted inside, not at the end

	if _, ok := Coalesce(a, c); ok {
		t.Fatal("non-adjacent inserts must not coalesce")
	}
	d := insertOp(b, 0, 3, "\n")
	if _, ok := Coalesce(a, d); ok {
		t.Fatal("newline insert must not coalesce")
	}
}
