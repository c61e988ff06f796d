package buffer

import (
	"testing"
	"time"
)

func TestUndoGroupedInsertPasteLikeSequence(t *testing.T) {
	b := NewBuffer(4)
	for _, ch := range "block" {
		b.InsertChar(ch)
	}

	// Force a group boundary before the next rapid insert burst.
	if len(b.Undo.undos) == 0 {
		t.Fatalf("expected undo ops after initial insert")
	}
	b.Undo.undos[len(b.Undo.undos)-1].time = time.Now().Add(-undoGroupInterval - time.Millisecond)

	for _, ch := range "ock" {
		b.InsertChar(ch)
	}
	if got := b.Lines[0].Text(); got != "blockock" {
		t.Fatalf("expected blockock before undo, got %q", got)
	}

	b.ApplyUndo()
	if got := b.Lines[0].Text(); got != "block" {
		t.Fatalf("expected block after undo, got %q", got)
	}

	b.ApplyRedo()
	if got := b.Lines[0].Text(); got != "blockock" {
		t.Fatalf("expected blockock after redo, got %q", got)
	}
}

func TestUndoRedoSingleGroupedWordInsert(t *testing.T) {
	b := NewBuffer(4)
	for _, ch := range "block" {
		b.InsertChar(ch)
	}
	if got := b.Lines[0].Text(); got != "block" {
		t.Fatalf("expected block before undo, got %q", got)
	}

	b.ApplyUndo()
	if got := b.Lines[0].Text(); got != "" {
		t.Fatalf("expected empty line after undo, got %q", got)
	}

	b.ApplyRedo()
	if got := b.Lines[0].Text(); got != "block" {
		t.Fatalf("expected block after redo, got %q", got)
	}
}

func TestUndoEmitsOpsWithWireCoordinates(t *testing.T) {
	b := NewBuffer(4)
	if _, err := b.Insert(Position{}, "héllo"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	ops := b.ApplyUndo()
	if len(ops) != 1 {
		t.Fatalf("expected 1 undo op, got %d", len(ops))
	}
	op := ops[0]
	if op.Kind != OpDelete {
		t.Fatalf("expected delete, got %v", op.Kind)
	}
	if op.Wire.End.Character != 5 {
		t.Fatalf("expected wire end character 5, got %d", op.Wire.End.Character)
	}
	if got := b.Lines[0].Text(); got != "" {
		t.Fatalf("expected empty buffer after undo, got %q", got)
	}
}
