package anchors

import (
	"vex/buffer"
	"vex/journal"
)

// Anchor pins a span of styled or annotated text to content. Line and Col
// are rune coordinates, Len a rune count; anchors never cross lines.
type Anchor struct {
	Line, Col, Len int
}

func (a Anchor) Start() buffer.Position {
	return buffer.Position{Line: a.Line, Col: a.Col}
}

func (a Anchor) End() buffer.Position {
	return buffer.Position{Line: a.Line, Col: a.Col + a.Len}
}

// Token is one semantic token reported by a language server, resolved to
// rune coordinates.
type Token struct {
	Anchor
	Type      string
	Modifiers uint32
}

type Severity int

const (
	SeverityError Severity = iota + 1
	SeverityWarning
	SeverityInfo
	SeverityHint
)

// Diagnostic is one server diagnostic. WholeLine marks diagnostics whose
// reported range spans lines; those are pinned to their start line without
// column tracking.
type Diagnostic struct {
	Anchor
	WholeLine bool
	Severity  Severity
	Message   string
	Source    string
	Code      string
}

// shiftAfter maps a position at or after the edit's replaced region
// forward through the edit.
func shiftAfter(p buffer.Position, sp journal.Span) buffer.Position {
	if p.Line == sp.End.Line {
		return buffer.Position{Line: sp.NewEnd.Line, Col: sp.NewEnd.Col + (p.Col - sp.End.Col)}
	}
	return buffer.Position{Line: p.Line + sp.NewEnd.Line - sp.End.Line, Col: p.Col}
}

// TransformPoint maps a position forward through one edit. The second
// return is false when the edit replaced the text the position sat inside,
// which makes the position meaningless afterwards.
func TransformPoint(p buffer.Position, sp journal.Span) (buffer.Position, bool) {
	if p.Before(sp.Start) {
		return p, true
	}
	if p.Equal(sp.Start) {
		if sp.Start.Equal(sp.End) {
			// Insertion at the position pushes it right.
			return shiftAfter(p, sp), true
		}
		return p, true
	}
	if p.Before(sp.End) {
		return buffer.Position{}, false
	}
	return shiftAfter(p, sp), true
}

// TransformRange maps a half-open range forward through one edit.
// Insertions at the start shift the range, insertions inside (up to and
// including the end) extend it. A deletion or replacement overlapping any
// part of the range invalidates it, even when both endpoints would survive:
// the covered text changed, so whatever the range annotated is stale.
func TransformRange(start, end buffer.Position, sp journal.Span) (buffer.Position, buffer.Position, bool) {
	if sp.Start.Equal(sp.End) {
		ns, _ := TransformPoint(start, sp)
		ne, _ := TransformPoint(end, sp)
		return ns, ne, true
	}
	if sp.Start.Before(end) && start.Before(sp.End) {
		return buffer.Position{}, buffer.Position{}, false
	}
	if start.Before(sp.End) {
		// Entirely before the edit.
		return start, end, true
	}
	return shiftAfter(start, sp), shiftAfter(end, sp), true
}

// transformAnchor maps a single-line anchor through one edit. An anchor
// split across lines by a multi-line insertion no longer has a single-line
// home and is dropped.
func transformAnchor(a Anchor, sp journal.Span) (Anchor, bool) {
	ns, ne, ok := TransformRange(a.Start(), a.End(), sp)
	if !ok || ns.Line != ne.Line {
		return Anchor{}, false
	}
	return Anchor{Line: ns.Line, Col: ns.Col, Len: ne.Col - ns.Col}, true
}

// transformLine maps a whole-line pin through one edit. Single-line edits
// on the pinned line keep it; a multi-line edit spanning the line removes
// the content the pin referred to.
func transformLine(line int, sp journal.Span) (int, bool) {
	if line < sp.Start.Line {
		return line, true
	}
	delta := sp.NewEnd.Line - sp.End.Line
	if line > sp.End.Line {
		return line + delta, true
	}
	if sp.Start.Line == sp.End.Line && sp.NewEnd.Line == sp.Start.Line {
		return line, true
	}
	return 0, false
}
