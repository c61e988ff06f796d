package buffer

// Position addresses a point in the document. Line is a zero-based line
// index, Col a zero-based rune offset within the line. A Col equal to the
// line's rune count addresses the end of the line.
type Position struct {
	Line, Col int
}

func (p Position) Before(other Position) bool {
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Col < other.Col
}

func (p Position) Equal(other Position) bool {
	return p.Line == other.Line && p.Col == other.Col
}

// Range is a half-open span [Start, End) in rune coordinates.
type Range struct {
	Start, End Position
}

// NewRange orders a and b so that Start never follows End.
func NewRange(a, b Position) Range {
	if b.Before(a) {
		return Range{Start: b, End: a}
	}
	return Range{Start: a, End: b}
}

func (r Range) Empty() bool {
	return r.Start.Equal(r.End)
}

func (r Range) Contains(p Position) bool {
	if p.Before(r.Start) || r.End.Before(p) {
		return false
	}
	return true
}

// WirePosition is a position in LSP wire coordinates: line plus UTF-16
// code-unit offset. Conversion between Position and WirePosition happens
// only at the protocol boundary.
type WirePosition struct {
	Line, Character int
}

type WireRange struct {
	Start, End WirePosition
}
