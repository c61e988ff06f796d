package buffer

import (
	"strings"
	"time"
)

// undoRecord captures one committed edit plus the cursor position it was
// typed from, so undo can restore both content and cursor.
type undoRecord struct {
	op     EditOp
	before Position
	time   time.Time
	group  int // group ID for batched undo (0 = ungrouped)
}

type UndoStack struct {
	undos     []undoRecord
	redos     []undoRecord
	nextGroup int
}

const undoGroupInterval = 300 * time.Millisecond

func NewUndoStack() *UndoStack {
	return &UndoStack{nextGroup: 1}
}

func (u *UndoStack) Push(rec undoRecord) {
	rec.time = time.Now()

	// Auto-group sequential single-character typing within the time window.
	if len(u.undos) > 0 {
		prev := &u.undos[len(u.undos)-1]
		if prev.op.Kind == rec.op.Kind && singleRune(rec.op) && singleRune(prev.op) &&
			rec.time.Sub(prev.time) < undoGroupInterval &&
			!isGroupBreak(prev, &rec) {
			if prev.group == 0 {
				prev.group = u.nextGroup
				u.nextGroup++
			}
			rec.group = prev.group
		}
	}

	u.undos = append(u.undos, rec)
	u.redos = u.redos[:0]
}

// singleRune reports whether rec is a one-rune insert or delete.
func singleRune(op EditOp) bool {
	switch op.Kind {
	case OpInsert:
		return RuneLen(op.Text) == 1
	case OpDelete:
		return RuneLen(op.Removed) == 1
	default:
		return false
	}
}

// PushGrouped records an edit under a specific group ID (atomic ops like
// paste or indent).
func (u *UndoStack) PushGrouped(op EditOp, before Position, groupID int) {
	u.undos = append(u.undos, undoRecord{op: op, before: before, time: time.Now(), group: groupID})
	u.redos = u.redos[:0]
}

// NewGroup returns a fresh group ID for batching multiple edits as one undo.
func (u *UndoStack) NewGroup() int {
	id := u.nextGroup
	u.nextGroup++
	return id
}

// isGroupBreak reports whether consecutive edits must not be grouped
// (whitespace breaks a word group, non-adjacent positions break runs).
func isGroupBreak(prev, cur *undoRecord) bool {
	if breakRune(cur.op) || breakRune(prev.op) {
		return true
	}
	if cur.op.Kind == OpInsert {
		if cur.op.Range.Start.Line != prev.op.Range.Start.Line ||
			cur.op.Range.Start.Col != prev.op.Range.Start.Col+1 {
			return true
		}
	}
	return false
}

func breakRune(op EditOp) bool {
	text := op.Text
	if op.Kind == OpDelete {
		text = op.Removed
	}
	return strings.ContainsAny(text, " \n\t")
}

func (u *UndoStack) CanUndo() bool { return len(u.undos) > 0 }
func (u *UndoStack) CanRedo() bool { return len(u.redos) > 0 }

// popUndo pops the top record and all others in the same group, in
// reverse commit order.
func (u *UndoStack) popUndo() []undoRecord {
	if len(u.undos) == 0 {
		return nil
	}
	rec := u.undos[len(u.undos)-1]
	u.undos = u.undos[:len(u.undos)-1]
	u.redos = append(u.redos, rec)
	batch := []undoRecord{rec}

	if rec.group != 0 {
		for len(u.undos) > 0 && u.undos[len(u.undos)-1].group == rec.group {
			grouped := u.undos[len(u.undos)-1]
			u.undos = u.undos[:len(u.undos)-1]
			u.redos = append(u.redos, grouped)
			batch = append(batch, grouped)
		}
	}
	return batch
}

// popRedo pops the top redo record and all others in the same group, in
// commit order.
func (u *UndoStack) popRedo() []undoRecord {
	if len(u.redos) == 0 {
		return nil
	}
	rec := u.redos[len(u.redos)-1]
	u.redos = u.redos[:len(u.redos)-1]
	u.undos = append(u.undos, rec)
	batch := []undoRecord{rec}

	if rec.group != 0 {
		for len(u.redos) > 0 && u.redos[len(u.redos)-1].group == rec.group {
			grouped := u.redos[len(u.redos)-1]
			u.redos = u.redos[:len(u.redos)-1]
			u.undos = append(u.undos, grouped)
			batch = append(batch, grouped)
		}
	}
	return batch
}

// ApplyUndo reverts the most recent edit group. Each reverted record
// produces a fresh EditOp with wire coordinates captured against current
// content, so undo flows through the sync layer the same way typing does.
func (b *Buffer) ApplyUndo() []EditOp {
	batch := b.Undo.popUndo()
	if len(batch) == 0 {
		return nil
	}
	b.autoClosePending = nil
	b.Selection = nil

	var ops []EditOp
	for _, rec := range batch {
		// Inverse: replace the post-edit span with the removed text.
		span := Range{Start: rec.op.Range.Start, End: rec.op.NewEnd}
		op, err := b.apply(inverseKind(rec.op.Kind), span, rec.op.Removed)
		if err != nil {
			continue
		}
		ops = append(ops, op)
		b.Cursor = rec.before
	}
	b.clampCursor()
	b.RecomputeModified()
	return ops
}

// ApplyRedo re-applies the most recently undone edit group.
func (b *Buffer) ApplyRedo() []EditOp {
	batch := b.Undo.popRedo()
	if len(batch) == 0 {
		return nil
	}
	b.autoClosePending = nil
	b.Selection = nil

	var ops []EditOp
	for _, rec := range batch {
		op, err := b.apply(rec.op.Kind, rec.op.Range, rec.op.Text)
		if err != nil {
			continue
		}
		ops = append(ops, op)
		b.Cursor = op.NewEnd
	}
	b.clampCursor()
	b.RecomputeModified()
	return ops
}

func inverseKind(k OpKind) OpKind {
	switch k {
	case OpInsert:
		return OpDelete
	case OpDelete:
		return OpInsert
	default:
		return OpReplace
	}
}
