package render

import (
	"github.com/gdamore/tcell/v2"

	"vex/anchors"
	"vex/highlight"
)

// Segment is a run of text drawn with one style.
type Segment struct {
	Text  string
	Style tcell.Style
}

// LineData is everything needed to render one line: content, lexical
// tokens from the highlighter and the anchored annotations.
type LineData struct {
	Text        string
	Lexical     []highlight.Token
	Semantic    []anchors.Token
	Diagnostics []anchors.Diagnostic
}

// Provider supplies line data on cache misses. ok is false past the end
// of the document.
type Provider interface {
	RenderLine(i int) (LineData, bool)
}

type cachedLine struct {
	segments []Segment
}

// Cache memoizes composed line segments. Entries are invalidated
// precisely: by the edits that touch them, by annotation updates on their
// line, and by cursor-line movement. A steady viewport costs zero
// recomputations per frame; the counter exists so tests can hold the
// cache to that.
type Cache struct {
	lines      map[int]cachedLine
	recomputes int
	cursorLine int
}

func NewCache() *Cache {
	return &Cache{lines: make(map[int]cachedLine), cursorLine: -1}
}

// Recomputes returns the total number of line compositions performed.
func (c *Cache) Recomputes() int { return c.recomputes }

// InvalidateAll drops every entry, e.g. after a full semantic token
// replacement or a theme change.
func (c *Cache) InvalidateAll() {
	c.lines = make(map[int]cachedLine)
}

// InvalidateLine drops one line's entry.
func (c *Cache) InvalidateLine(i int) {
	delete(c.lines, i)
}

// InvalidateLines drops a set of lines, e.g. the lines whose diagnostics
// changed in a publish.
func (c *Cache) InvalidateLines(lines []int) {
	for _, i := range lines {
		delete(c.lines, i)
	}
}

// ApplyEdit adjusts the cache for an edit touching [startLine, endLine]
// pre-edit lines with the given line delta. Edited lines are dropped;
// entries below the edit keep their segments but move to their new index.
func (c *Cache) ApplyEdit(startLine, endLine, lineDelta int) {
	if lineDelta == 0 {
		for i := startLine; i <= endLine; i++ {
			delete(c.lines, i)
		}
		return
	}
	moved := make(map[int]cachedLine, len(c.lines))
	for i, entry := range c.lines {
		switch {
		case i < startLine:
			moved[i] = entry
		case i <= endLine:
			// dropped
		default:
			moved[i+lineDelta] = entry
		}
	}
	c.lines = moved
}

// Viewport returns composed segments for height lines starting at top.
// Cached entries are reused as-is; cursor-line movement invalidates only
// the lines it left and entered.
func (c *Cache) Viewport(p Provider, top, height, cursorLine int) [][]Segment {
	if cursorLine != c.cursorLine {
		delete(c.lines, c.cursorLine)
		delete(c.lines, cursorLine)
		c.cursorLine = cursorLine
	}

	out := make([][]Segment, 0, height)
	for i := top; i < top+height; i++ {
		if entry, ok := c.lines[i]; ok {
			out = append(out, entry.segments)
			continue
		}
		data, ok := p.RenderLine(i)
		if !ok {
			break
		}
		segs := compose(data, i == cursorLine)
		c.lines[i] = cachedLine{segments: segs}
		c.recomputes++
		out = append(out, segs)
	}
	return out
}

// compose flattens lexical tokens, semantic overlays, diagnostic
// underlines and the cursor-line background into styled segments.
func compose(data LineData, isCursorLine bool) []Segment {
	runes := []rune(data.Text)
	styles := make([]tcell.Style, len(runes))
	for i := range styles {
		styles[i] = tcell.StyleDefault
	}

	// Lexical base layer.
	col := 0
	for _, tok := range data.Lexical {
		for range tok.Text {
			if col >= len(runes) {
				break
			}
			styles[col] = tok.Style
			col++
		}
	}

	// Semantic tokens override where the server gave us better knowledge.
	for _, tok := range data.Semantic {
		style, known := highlight.SemanticStyle(tok.Type)
		if !known {
			continue
		}
		for i := tok.Col; i < tok.Col+tok.Len && i < len(runes); i++ {
			styles[i] = style
		}
	}

	// Diagnostics underline their span, whole-line ones the entire line.
	for _, d := range data.Diagnostics {
		start, end := d.Col, d.Col+d.Len
		if d.WholeLine || d.Len == 0 {
			start, end = 0, len(runes)
		}
		deco := diagnosticDecoration(d.Severity)
		for i := start; i < end && i < len(runes); i++ {
			styles[i] = deco(styles[i])
		}
	}

	if isCursorLine {
		for i := range styles {
			styles[i] = styles[i].Background(tcell.ColorDarkSlateGray)
		}
	}

	return compress(runes, styles, isCursorLine)
}

func diagnosticDecoration(sev anchors.Severity) func(tcell.Style) tcell.Style {
	switch sev {
	case anchors.SeverityError:
		return func(s tcell.Style) tcell.Style {
			return s.Underline(true).Foreground(tcell.ColorRed)
		}
	case anchors.SeverityWarning:
		return func(s tcell.Style) tcell.Style {
			return s.Underline(true).Foreground(tcell.ColorYellow)
		}
	default:
		return func(s tcell.Style) tcell.Style {
			return s.Underline(true)
		}
	}
}

// compress collapses per-rune styles into segments of equal style.
func compress(runes []rune, styles []tcell.Style, cursorLine bool) []Segment {
	if len(runes) == 0 {
		if cursorLine {
			return []Segment{{Text: "", Style: tcell.StyleDefault.Background(tcell.ColorDarkSlateGray)}}
		}
		return nil
	}
	var segs []Segment
	start := 0
	for i := 1; i <= len(runes); i++ {
		if i == len(runes) || styles[i] != styles[start] {
			segs = append(segs, Segment{Text: string(runes[start:i]), Style: styles[start]})
			start = i
		}
	}
	return segs
}
