package editor

import (
	"fmt"

	"vex/anchors"
	"vex/buffer"
	"vex/config"
	"vex/ui"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

func (e *Editor) render() {
	// Get theme first so we can set the screen style
	theme := e.cfg.GetTheme()

	defaultStyle := tcell.StyleDefault.Background(theme.Background).Foreground(theme.Foreground)
	e.screen.SetStyle(defaultStyle)
	e.screen.Clear()

	screenW, screenH := e.screen.Size()

	// Update themes in components
	e.statusBar.Theme = theme
	e.tabBar.Theme = theme
	if e.fileTree != nil {
		e.fileTree.Theme = theme
	}
	if e.terminal != nil {
		e.terminal.Theme = theme
	}

	// File tree
	if e.treeOpen {
		e.fileTree.Render(e.screen, 0, 0, e.treeWidth, screenH-1)
	}

	// Tab bar
	left := e.treeLeft()
	e.tabBar.Render(e.screen, left, 0, screenW-left, 1)

	// Editor area
	ex, ey, ew, eh := e.editorLayout()
	e.renderEditor(ex, ey, ew, eh)

	// Terminal
	if e.termOpen && e.terminal != nil {
		tx, ty, tw, th := e.termLayout()
		e.terminal.Render(e.screen, tx, ty, tw, th)
	}

	// Status bar
	e.statusBar.Render(e.screen, 0, screenH-1, screenW, 1)

	// Dialog overlay
	if e.dialog != nil {
		e.dialog.Theme = theme

		switch e.dialog.Type {
		case ui.DialogFind:
			h := 1
			if e.dialog.ReplaceMode {
				h = 2
			}
			e.dialog.Render(e.screen, ex, ey, ew, h)
		case ui.DialogGotoLine, ui.DialogSaveAs, ui.DialogInput:
			e.dialog.Render(e.screen, ex, ey, ew, 1)
		case ui.DialogSaveConfirm, ui.DialogReloadConfirm:
			e.dialog.Render(e.screen, 0, screenH-2, screenW, 1)
		case ui.DialogHelp, ui.DialogSettings:
			e.dialog.Render(e.screen, 0, 0, screenW, screenH)
		default:
			e.dialog.Render(e.screen, ex, ey, ew, 1)
		}
	}

	// Autocomplete popup overlay
	if e.autocomplete != nil && e.autocomplete.Visible {
		e.autocomplete.Theme = theme
		e.autocomplete.Render(e.screen, 0, 0, screenW, screenH)
	}

	// Show cursor in editor when focused (with blinking)
	if e.focusTarget == "editor" && e.dialog == nil {
		d := e.activeDoc()
		view := e.activeView()
		cursorShown := false
		if d != nil && view != nil && e.cursorVisible {
			buf := d.Buf
			gutterW := e.gutterWidth()
			if ln, err := buf.Line(buf.Cursor.Line); err == nil {
				cursorDisplayCol := ln.ColToDisplay(buf.Cursor.Col, buf.TabSize)
				cursorScreenX := ex + gutterW + cursorDisplayCol - view.scrollX
				cursorScreenY := ey + buf.Cursor.Line - view.scrollY
				if buf.Cursor.Line >= view.scrollY &&
					cursorScreenX >= ex+gutterW && cursorScreenX < ex+ew &&
					cursorScreenY >= ey && cursorScreenY < ey+eh {
					e.screen.ShowCursor(cursorScreenX, cursorScreenY)
					cursorShown = true
				}
			}
		}
		if !cursorShown {
			e.screen.HideCursor()
		}
	} else if e.focusTarget != "terminal" {
		e.screen.HideCursor()
	}

	e.screen.Show()
}

func (e *Editor) renderEditor(x, y, w, h int) {
	d := e.activeDoc()
	view := e.activeView()
	if d == nil || view == nil {
		return
	}
	buf := d.Buf

	gutterW := e.gutterWidth()
	textW := w - gutterW
	if textW <= 0 {
		return
	}

	// Ensure cursor is visible (skip if user is scrolling with mouse wheel)
	if !e.mouseScrolling {
		e.ensureCursorVisible(view, buf, textW, h)
	}

	theme := e.cfg.GetTheme()

	gutterStyle := tcell.StyleDefault.Background(theme.Background).Foreground(theme.LineNumber)
	activeGutterStyle := tcell.StyleDefault.Background(theme.Background).Foreground(theme.LineNumberActive)
	lineStyle := tcell.StyleDefault.Background(theme.Background).Foreground(theme.Foreground)
	selStyle := tcell.StyleDefault.Background(theme.Selection).Foreground(theme.Foreground)
	matchStyle := tcell.StyleDefault.Background(tcell.ColorYellow).Foreground(tcell.ColorBlack)
	emptyLineStyle := tcell.StyleDefault.Background(theme.Background).Foreground(theme.LineNumber)
	bracketStyle := tcell.StyleDefault.Background(theme.Background).Foreground(theme.Foreground).Bold(true).Underline(true)

	// Compute matching bracket positions
	bracketLine1, bracketCol1 := -1, -1
	bracketLine2, bracketCol2 := -1, -1
	if e.focusTarget == "editor" {
		bracketLine1, bracketCol1 = e.bracketAtCursor(buf, buf.Cursor.Line, buf.Cursor.Col)
		if bracketLine1 >= 0 {
			bracketLine2, bracketCol2 = e.findMatchingBracket(buf, buf.Cursor.Line, buf.Cursor.Col)
		}
	}

	// Composed segments for the visible window. The cache reuses entries
	// for untouched lines, so a steady viewport costs no recompositions.
	rows := d.Viewport(view.scrollY, h)

	for row := 0; row < h; row++ {
		screenY := y + row

		if row >= len(rows) {
			for col := x; col < x+w; col++ {
				if col == x {
					e.screen.SetContent(col, screenY, '~', nil, emptyLineStyle)
				} else {
					e.screen.SetContent(col, screenY, ' ', nil, lineStyle)
				}
			}
			continue
		}

		lineIdx := view.scrollY + row
		cursorLine := lineIdx == buf.Cursor.Line

		// Git gutter indicator (first column when available)
		gitOffset := 0
		if e.gitGutter.available {
			gitOffset = 1
			gitCh := ' '
			gitStyle := gutterStyle
			switch e.gitGutter.StatusAt(lineIdx) {
			case GitAdded:
				gitCh = '│'
				gitStyle = tcell.StyleDefault.Background(theme.Background).Foreground(tcell.ColorGreen)
			case GitModified:
				gitCh = '│'
				gitStyle = tcell.StyleDefault.Background(theme.Background).Foreground(tcell.ColorDarkCyan)
			case GitDeleted:
				gitCh = '▸'
				gitStyle = tcell.StyleDefault.Background(theme.Background).Foreground(tcell.ColorRed)
			}
			e.screen.SetContent(x, screenY, gitCh, nil, gitStyle)
		}

		// Line number
		lineNum := fmt.Sprintf("%*d", gutterW-1-gitOffset, lineIdx+1)
		currentGutterStyle := gutterStyle
		if cursorLine {
			currentGutterStyle = activeGutterStyle
		}
		for i, ch := range lineNum {
			if x+gitOffset+i < x+gutterW-1 {
				e.screen.SetContent(x+gitOffset+i, screenY, ch, nil, currentGutterStyle)
			}
		}

		// Diagnostic icon in the last gutter column
		diagCh := ' '
		diagGutterStyle := currentGutterStyle
		if worst, ok := d.Tracker.WorstOn(lineIdx); ok {
			switch worst.Severity {
			case anchors.SeverityError:
				diagCh = '●'
				diagGutterStyle = tcell.StyleDefault.Background(theme.Background).Foreground(tcell.ColorRed)
			case anchors.SeverityWarning:
				diagCh = '▲'
				diagGutterStyle = tcell.StyleDefault.Background(theme.Background).Foreground(tcell.ColorYellow)
			default:
				diagCh = '»'
				diagGutterStyle = tcell.StyleDefault.Background(theme.Background).Foreground(tcell.ColorBlue)
			}
		}
		e.screen.SetContent(x+gutterW-1, screenY, diagCh, nil, diagGutterStyle)

		// Text content. Segments carry raw runes; tabs expand here, at
		// the blit, so the cache stays independent of tab width.
		col := 0        // buffer column (rune index)
		displayCol := 0 // visual column, tabs expanded
		screenCol := x + gutterW

		for _, seg := range rows[row] {
			for _, ch := range seg.Text {
				style := seg.Style
				if _, bg, _ := style.Decompose(); bg == tcell.ColorDefault {
					style = style.Background(theme.Background)
				}
				if e.isSelected(buf, lineIdx, col) {
					style = selStyle
				}
				if e.isSearchMatch(lineIdx, col) {
					style = matchStyle
				}
				if (lineIdx == bracketLine1 && col == bracketCol1) || (lineIdx == bracketLine2 && col == bracketCol2) {
					style = bracketStyle
				}

				if ch == '\t' {
					tabWidth := buf.TabSize - (displayCol % buf.TabSize)
					for i := 0; i < tabWidth; i++ {
						sc := displayCol - view.scrollX
						if sc >= 0 && sc < textW {
							e.screen.SetContent(screenCol+sc, screenY, ' ', nil, style)
						}
						displayCol++
					}
				} else {
					sc := displayCol - view.scrollX
					if sc >= 0 && sc < textW {
						e.screen.SetContent(screenCol+sc, screenY, ch, nil, style)
					}
					displayCol += runewidth.RuneWidth(ch)
				}
				col++
			}
		}

		// Clear rest of line, keeping the cursor-line background
		tailStyle := lineStyle
		if cursorLine {
			tailStyle = tailStyle.Background(tcell.ColorDarkSlateGray)
		}
		startClear := displayCol - view.scrollX
		if startClear < 0 {
			startClear = 0
		}
		for c := startClear; c < textW; c++ {
			style := tailStyle
			if e.isSelected(buf, lineIdx, col) {
				style = selStyle
			}
			e.screen.SetContent(screenCol+c, screenY, ' ', nil, style)
		}
	}

	e.renderScrollbar(x, y, w, h, buf, view, theme)
}

// renderScrollbar draws a scrollbar on the rightmost column of the editor area.
func (e *Editor) renderScrollbar(x, y, w, h int, buf *buffer.Buffer, view *EditorView, theme *config.ColorScheme) {
	if h <= 0 || w <= 0 {
		return
	}

	totalLines := buf.LineCount()
	if totalLines <= 0 {
		totalLines = 1
	}

	scrollCol := x + w - 1

	trackStyle := tcell.StyleDefault.Background(theme.Background).Foreground(theme.LineNumber)
	thumbStyle := tcell.StyleDefault.Background(theme.Selection).Foreground(theme.Foreground)

	thumbSize := h * h / totalLines
	if thumbSize < 1 {
		thumbSize = 1
	}
	if thumbSize > h {
		thumbSize = h
	}

	thumbStart := 0
	if totalLines > h {
		thumbStart = view.scrollY * (h - thumbSize) / (totalLines - h)
	}
	if thumbStart < 0 {
		thumbStart = 0
	}
	if thumbStart+thumbSize > h {
		thumbStart = h - thumbSize
	}

	// Collect search match lines
	matchLines := map[int]bool{}
	if e.dialog != nil && e.dialog.Type == ui.DialogFind {
		for _, m := range e.dialog.Matches {
			matchLines[m.Line] = true
		}
	}

	matchStyle := tcell.StyleDefault.Background(tcell.ColorYellow).Foreground(tcell.ColorYellow)

	for row := 0; row < h; row++ {
		screenY := y + row

		// Map this scrollbar row to a line range in the buffer
		lineStart := row * totalLines / h
		lineEnd := (row + 1) * totalLines / h

		hasMatch := false
		for line := lineStart; line < lineEnd; line++ {
			if matchLines[line] {
				hasMatch = true
				break
			}
		}

		if hasMatch {
			e.screen.SetContent(scrollCol, screenY, '┃', nil, matchStyle)
		} else if row >= thumbStart && row < thumbStart+thumbSize {
			e.screen.SetContent(scrollCol, screenY, '┃', nil, thumbStyle)
		} else {
			e.screen.SetContent(scrollCol, screenY, ' ', nil, trackStyle)
		}
	}
}

func (e *Editor) gutterWidth() int {
	d := e.activeDoc()
	if d == nil {
		return 2
	}

	digits := 1
	for lines := d.Buf.LineCount(); lines >= 10; lines /= 10 {
		digits++
	}
	w := digits + 1 // digits + indicator column
	if e.gitGutter.available {
		w++ // extra column for git indicators
	}
	return w
}

func (e *Editor) ensureCursorVisible(view *EditorView, buf *buffer.Buffer, textW, textH int) {
	const scrollMargin = 5 // keep cursor this many lines from edge

	if buf.Cursor.Line >= buf.LineCount() {
		buf.Cursor.Line = buf.LineCount() - 1
	}
	if buf.Cursor.Line < 0 {
		buf.Cursor.Line = 0
	}

	margin := scrollMargin
	if margin > textH/2 {
		margin = textH / 2
	}

	if buf.Cursor.Line-view.scrollY < margin {
		view.scrollY = buf.Cursor.Line - margin
		if view.scrollY < 0 {
			view.scrollY = 0
		}
	}
	if buf.Cursor.Line-view.scrollY > textH-1-margin {
		view.scrollY = buf.Cursor.Line - (textH - 1 - margin)
	}

	// Horizontal: scrollX is in display columns
	ln, err := buf.Line(buf.Cursor.Line)
	if err != nil {
		return
	}
	cursorDisplayCol := ln.ColToDisplay(buf.Cursor.Col, buf.TabSize)
	if cursorDisplayCol < view.scrollX {
		view.scrollX = cursorDisplayCol
	}
	rightLimit := (textW * 7) / 10
	if rightLimit < 1 {
		rightLimit = 1
	}
	if rightLimit >= textW {
		rightLimit = textW - 1
	}
	if cursorDisplayCol > view.scrollX+rightLimit {
		view.scrollX = cursorDisplayCol - rightLimit
	}
}

func (e *Editor) isSelected(buf *buffer.Buffer, line, col int) bool {
	if buf.Selection == nil {
		return false
	}
	sel := *buf.Selection
	pos := buffer.Position{Line: line, Col: col}
	return sel.Contains(pos) && !pos.Equal(sel.End)
}

// findMatchingBracket finds the matching bracket for the character at or just
// before the cursor. It returns the position of the matching bracket or (-1,-1).
func (e *Editor) findMatchingBracket(buf *buffer.Buffer, line, col int) (int, int) {
	openers := map[rune]rune{'(': ')', '[': ']', '{': '}'}
	closers := map[rune]rune{')': '(', ']': '[', '}': '{'}

	lineRunes := func(l int) []rune {
		ln, err := buf.Line(l)
		if err != nil {
			return nil
		}
		return ln.Runes()
	}
	getRune := func(l, c int) rune {
		runes := lineRunes(l)
		if c < 0 || c >= len(runes) {
			return 0
		}
		return runes[c]
	}

	// Check character at cursor, then one before cursor
	positions := []int{col, col - 1}
	for _, pos := range positions {
		ch := getRune(line, pos)
		if ch == 0 {
			continue
		}
		if closer, ok := openers[ch]; ok {
			// Scan forward for matching closer
			depth := 1
			l, c := line, pos+1
			for l < buf.LineCount() {
				runes := lineRunes(l)
				for c < len(runes) {
					if runes[c] == ch {
						depth++
					} else if runes[c] == closer {
						depth--
						if depth == 0 {
							return l, c
						}
					}
					c++
				}
				l++
				c = 0
			}
			return -1, -1
		}
		if opener, ok := closers[ch]; ok {
			// Scan backward for matching opener
			depth := 1
			l, c := line, pos-1
			for l >= 0 {
				runes := lineRunes(l)
				if c < 0 {
					c = len(runes) - 1
				}
				for c >= 0 {
					if runes[c] == ch {
						depth++
					} else if runes[c] == opener {
						depth--
						if depth == 0 {
							return l, c
						}
					}
					c--
				}
				l--
				if l >= 0 {
					c = len(lineRunes(l)) - 1
				}
			}
			return -1, -1
		}
	}
	return -1, -1
}

// bracketAtCursor returns the position of the bracket under/before the cursor
// so both ends can be highlighted.
func (e *Editor) bracketAtCursor(buf *buffer.Buffer, line, col int) (int, int) {
	brackets := map[rune]bool{'(': true, ')': true, '[': true, ']': true, '{': true, '}': true}
	getRune := func(l, c int) rune {
		ln, err := buf.Line(l)
		if err != nil {
			return 0
		}
		runes := ln.Runes()
		if c < 0 || c >= len(runes) {
			return 0
		}
		return runes[c]
	}
	if brackets[getRune(line, col)] {
		return line, col
	}
	if brackets[getRune(line, col-1)] {
		return line, col - 1
	}
	return -1, -1
}

func (e *Editor) isSearchMatch(line, col int) bool {
	if e.dialog == nil || e.dialog.Type != ui.DialogFind {
		return false
	}
	for _, m := range e.dialog.Matches {
		if m.Line == line && col >= m.Col && col < m.Col+m.Length {
			return true
		}
	}
	return false
}
