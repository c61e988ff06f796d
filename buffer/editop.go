package buffer

import (
	"fmt"
	"strings"
)

type OpKind int

const (
	OpInsert OpKind = iota
	OpDelete
	OpReplace
)

func (k OpKind) String() string {
	switch k {
	case OpInsert:
		return "insert"
	case OpDelete:
		return "delete"
	case OpReplace:
		return "replace"
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

// EditOp is one committed edit. Range addresses the replaced span in
// pre-edit coordinates (empty for an insert), Text is the replacement
// ("" for a delete) and Removed the text that was there before. Wire
// carries the same range in UTF-16 coordinates, captured against pre-edit
// content so the op can be shipped to a language server without consulting
// the buffer again. NewEnd/WireNewEnd give the post-edit end of the
// replacement, used to transform positions forward through the edit.
type EditOp struct {
	Kind       OpKind
	Range      Range
	Text       string
	Removed    string
	Wire       WireRange
	NewEnd     Position
	WireNewEnd WirePosition
}

// endAfter computes the post-edit end position of replacement text placed
// at start. For single-line text the column advances; for multi-line text
// the end lands on the last inserted line.
func endAfter(start Position, text string) Position {
	if text == "" {
		return start
	}
	lines := strings.Split(text, "\n")
	if len(lines) == 1 {
		n := 0
		for range text {
			n++
		}
		return Position{Line: start.Line, Col: start.Col + n}
	}
	last := NewLine(lines[len(lines)-1])
	return Position{Line: start.Line + len(lines) - 1, Col: last.Len()}
}

func wireEndAfter(start WirePosition, text string) WirePosition {
	if text == "" {
		return start
	}
	lines := strings.Split(text, "\n")
	if len(lines) == 1 {
		l := NewLine(text)
		return WirePosition{Line: start.Line, Character: start.Character + l.UTF16Len()}
	}
	last := NewLine(lines[len(lines)-1])
	return WirePosition{Line: start.Line + len(lines) - 1, Character: last.UTF16Len()}
}

// LineDelta returns how many lines the op added (positive) or removed
// (negative).
func (op EditOp) LineDelta() int {
	return op.NewEnd.Line - op.Range.End.Line
}
