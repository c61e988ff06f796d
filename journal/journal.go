package journal

import (
	"vex/buffer"
)

// Entry records one committed edit and the document version it produced.
type Entry struct {
	Version int
	Op      buffer.EditOp
}

// Span describes an edit as a position triple: text in [Start, End) was
// replaced and the replacement now ends at NewEnd. Rune and wire variants
// share the shape so one transform routine serves both coordinate spaces.
type Span struct {
	Start, End, NewEnd buffer.Position
}

// RuneSpan returns the entry's edit span in rune coordinates.
func (e Entry) RuneSpan() Span {
	return Span{Start: e.Op.Range.Start, End: e.Op.Range.End, NewEnd: e.Op.NewEnd}
}

// WireSpan returns the entry's edit span in UTF-16 wire coordinates,
// folded into Position values (Col holds the code-unit offset).
func (e Entry) WireSpan() Span {
	return Span{
		Start:  buffer.Position{Line: e.Op.Wire.Start.Line, Col: e.Op.Wire.Start.Character},
		End:    buffer.Position{Line: e.Op.Wire.End.Line, Col: e.Op.Wire.End.Character},
		NewEnd: buffer.Position{Line: e.Op.WireNewEnd.Line, Col: e.Op.WireNewEnd.Character},
	}
}

// Journal keeps a bounded history of committed edits in version order.
// Consumers working against an older snapshot replay the entries after
// their version to catch up; when the history no longer reaches back far
// enough they must resynchronize from scratch instead.
type Journal struct {
	entries []Entry
	max     int
}

const DefaultCapacity = 512

func New(max int) *Journal {
	if max <= 0 {
		max = DefaultCapacity
	}
	return &Journal{max: max}
}

// Append records the edit that produced version. Versions must arrive in
// strictly increasing order; the caller owns the version counter.
func (j *Journal) Append(op buffer.EditOp, version int) {
	j.entries = append(j.entries, Entry{Version: version, Op: op})
	if len(j.entries) > j.max {
		j.entries = j.entries[len(j.entries)-j.max:]
	}
}

// Len returns the number of retained entries.
func (j *Journal) Len() int { return len(j.entries) }

// Latest returns the newest recorded version, or 0 when empty.
func (j *Journal) Latest() int {
	if len(j.entries) == 0 {
		return 0
	}
	return j.entries[len(j.entries)-1].Version
}

// Oldest returns the oldest retained version, or 0 when empty.
func (j *Journal) Oldest() int {
	if len(j.entries) == 0 {
		return 0
	}
	return j.entries[0].Version
}

// Since returns the entries with Version > version, in order. The second
// return is false when the history has been pruned past that point, in
// which case results anchored at that version cannot be transformed and
// must be discarded.
func (j *Journal) Since(version int) ([]Entry, bool) {
	if len(j.entries) == 0 {
		return nil, true
	}
	if version < j.entries[0].Version-1 {
		return nil, false
	}
	for i, e := range j.entries {
		if e.Version > version {
			return j.entries[i:], true
		}
	}
	return nil, true
}

// Prune drops entries at or below version. Keep the floor at the oldest
// version any in-flight request may still reference.
func (j *Journal) Prune(version int) {
	i := 0
	for i < len(j.entries) && j.entries[i].Version <= version {
		i++
	}
	if i > 0 {
		j.entries = append(j.entries[:0], j.entries[i:]...)
	}
}

// Coalesce merges b into a when b is a pure insertion continuing exactly
// where a's replacement ended on the same line. Typing runs collapse into
// one op without changing the edit's effect; anything else returns false.
func Coalesce(a, b buffer.EditOp) (buffer.EditOp, bool) {
	if b.Kind != buffer.OpInsert || a.Text == "" {
		return buffer.EditOp{}, false
	}
	if !b.Range.Start.Equal(a.NewEnd) || b.Range.Start.Line != a.Range.Start.Line {
		return buffer.EditOp{}, false
	}
	if b.LineDelta() != 0 || a.LineDelta() != 0 {
		return buffer.EditOp{}, false
	}
	merged := a
	merged.Text = a.Text + b.Text
	merged.NewEnd = b.NewEnd
	merged.WireNewEnd = b.WireNewEnd
	if a.Kind == buffer.OpInsert {
		merged.Kind = buffer.OpInsert
	} else {
		merged.Kind = buffer.OpReplace
	}
	return merged, true
}
