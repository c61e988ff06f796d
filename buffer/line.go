package buffer

import (
	"unicode/utf16"

	"github.com/mattn/go-runewidth"
)

// Line holds one line of document text together with cached measurements.
// Width and UTF-16 length are computed lazily and invalidated on mutation;
// the dirty flag marks the line for render-cache recomputation.
type Line struct {
	text  string
	width int // cached display width, -1 when stale
	u16   int // cached UTF-16 code-unit count, -1 when stale
	dirty bool
}

func NewLine(text string) Line {
	return Line{text: text, width: -1, u16: -1, dirty: true}
}

func (l *Line) Text() string { return l.text }

func (l *Line) Runes() []rune { return []rune(l.text) }

// Len returns the rune count of the line.
func (l *Line) Len() int {
	n := 0
	for range l.text {
		n++
	}
	return n
}

func (l *Line) SetText(text string) {
	l.text = text
	l.width = -1
	l.u16 = -1
	l.dirty = true
}

func (l *Line) Dirty() bool { return l.dirty }

func (l *Line) MarkDirty() { l.dirty = true }

func (l *Line) MarkClean() { l.dirty = false }

// Width returns the display width of the whole line with tabs expanded.
// The result is cached until the line text changes. Tab expansion depends
// on tabSize, so the cache is only reused while tabSize stays stable,
// which holds for the lifetime of a buffer.
func (l *Line) Width(tabSize int) int {
	if l.width >= 0 {
		return l.width
	}
	l.width = l.ColToDisplay(l.Len(), tabSize)
	return l.width
}

// UTF16Len returns the UTF-16 code-unit count of the line.
func (l *Line) UTF16Len() int {
	if l.u16 >= 0 {
		return l.u16
	}
	n := 0
	for _, r := range l.text {
		n += utf16.RuneLen(r)
	}
	l.u16 = n
	return n
}

// ColToUTF16 converts a rune column to a UTF-16 code-unit offset.
func (l *Line) ColToUTF16(col int) int {
	n := 0
	i := 0
	for _, r := range l.text {
		if i >= col {
			break
		}
		n += utf16.RuneLen(r)
		i++
	}
	return n
}

// UTF16ToCol converts a UTF-16 code-unit offset to a rune column. Offsets
// past the end of the line clamp to the line's rune count; an offset that
// lands inside a surrogate pair resolves to the rune containing it.
func (l *Line) UTF16ToCol(offset int) int {
	n := 0
	col := 0
	for _, r := range l.text {
		if n >= offset {
			return col
		}
		n += utf16.RuneLen(r)
		if n > offset {
			return col
		}
		col++
	}
	return col
}

// ColToDisplay converts a rune column to a display column, expanding tabs
// and accounting for wide and zero-width runes.
func (l *Line) ColToDisplay(col, tabSize int) int {
	disp := 0
	i := 0
	for _, r := range l.text {
		if i >= col {
			break
		}
		if r == '\t' {
			disp += tabSize - (disp % tabSize)
		} else {
			disp += runewidth.RuneWidth(r)
		}
		i++
	}
	return disp
}

// DisplayToCol converts a display column back to a rune column. The rune
// spanning the target display cell wins, so clicking the right half of a
// double-width rune still addresses that rune.
func (l *Line) DisplayToCol(target, tabSize int) int {
	if target <= 0 {
		return 0
	}
	disp := 0
	col := 0
	for _, r := range l.text {
		if disp >= target {
			return col
		}
		if r == '\t' {
			disp += tabSize - (disp % tabSize)
		} else {
			disp += runewidth.RuneWidth(r)
		}
		if disp > target {
			return col
		}
		col++
	}
	return col
}
