package editor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"vex/buffer"
	"vex/clipboardx"
	"vex/doc"
	"vex/highlight"
	"vex/ui"

	"github.com/gdamore/tcell/v2"
)

func (e *Editor) handleKey(ev *tcell.EventKey) {
	// Reset cursor blink on any keypress
	e.cursorVisible = true
	e.lastBlinkTime = time.Now()

	// Reset force-quit state on any key except Ctrl+Q
	if ev.Key() != tcell.KeyCtrlQ {
		e.quitPending = false
	}

	// Check for Alt+, FIRST - it toggles settings dialog
	if ev.Key() == tcell.KeyRune && ev.Rune() == ',' && ev.Modifiers()&tcell.ModAlt != 0 {
		e.toggleSettingsDialog()
		return
	}

	// Dialog gets priority for other keys
	if e.dialog != nil {
		if e.dialog.HandleKey(ev) {
			// After typing in find dialog, update matches
			if e.dialog != nil && e.dialog.Type == ui.DialogFind {
				if d := e.activeDoc(); d != nil {
					e.dialog.FindMatches(d.Buf.LineStrings())
				}
			}
			return
		}
	}

	// Autocomplete gets priority when visible
	if e.autocomplete != nil && e.autocomplete.Visible {
		if e.autocomplete.HandleKey(ev) {
			return
		}
		// Any other key closes autocomplete
		e.autocomplete = nil
	}

	// Global keybindings (always active)
	switch ev.Key() {
	case tcell.KeyCtrlQ:
		e.handleQuit()
		return
	case tcell.KeyCtrlS:
		e.saveCurrentFile()
		return
	case tcell.KeyCtrlH, tcell.KeyF1:
		e.toggleHelpDialog()
		return
	case tcell.KeyF5:
		e.reloadFile()
		return
	case tcell.KeyCtrlT:
		e.toggleTerminal()
		return
	case tcell.KeyCtrlE:
		e.toggleTreeFocus()
		return
	case tcell.KeyF12:
		e.gotoDefinition()
		return
	case tcell.KeyF2:
		e.renameSymbol()
		return
	case tcell.KeyCtrlK:
		e.showHoverInfo()
		return
	}

	// Alt+Up/Down for terminal resizing OR moving lines (depends on focus)
	if ev.Modifiers()&tcell.ModAlt != 0 {
		switch ev.Key() {
		case tcell.KeyUp:
			if e.focusTarget == "terminal" || e.termOpen {
				e.adjustTerminalHeight(0.05)
			} else if d := e.activeDoc(); d != nil {
				e.commitEdits(d, d.Buf.MoveLineUp())
			}
			return
		case tcell.KeyDown:
			if e.focusTarget == "terminal" || e.termOpen {
				e.adjustTerminalHeight(-0.05)
			} else if d := e.activeDoc(); d != nil {
				e.commitEdits(d, d.Buf.MoveLineDown())
			}
			return
		case tcell.KeyLeft:
			e.adjustTreeWidth(-4)
			return
		case tcell.KeyRight:
			e.adjustTreeWidth(4)
			return
		}
	}

	// Alt+F formats the document through the language server
	if ev.Key() == tcell.KeyRune && (ev.Rune() == 'f' || ev.Rune() == 'F') && ev.Modifiers()&tcell.ModAlt != 0 {
		e.formatDocument()
		return
	}

	// Alt+Number for tab switching (1-9, 0 for tab 10)
	if ev.Key() == tcell.KeyRune && ev.Modifiers()&tcell.ModAlt != 0 {
		switch ev.Rune() {
		case '1', '2', '3', '4', '5', '6', '7', '8', '9':
			tabIdx := int(ev.Rune() - '1')
			if tabIdx < len(e.docs) {
				e.switchTab(tabIdx)
			}
			return
		case '0':
			if len(e.docs) >= 10 {
				e.switchTab(9)
			}
			return
		}
	}

	// Terminal gets all other keys when focused
	if e.focusTarget == "terminal" && e.terminal != nil {
		if ev.Key() == tcell.KeyCtrlC && e.terminal.CopySelection() {
			e.setTemporaryMessage("Copied")
			return
		}
		e.terminal.HandleKey(ev)
		return
	}

	// File tree gets keys when focused
	if e.focusTarget == "tree" && e.fileTree != nil {
		if ev.Key() == tcell.KeyEscape {
			e.focusTarget = "editor"
			e.updateFocus()
			return
		}
		if e.fileTree.HandleKey(ev) {
			return
		}
	}

	// Editor keybindings
	switch ev.Key() {
	case tcell.KeyCtrlB:
		e.toggleTree()
		return
	case tcell.KeyCtrlN:
		e.openEmptyBuffer()
		return
	case tcell.KeyCtrlW:
		e.closeTab(e.activeTab)
		return
	case tcell.KeyCtrlF:
		e.openFindDialog()
		return
	case tcell.KeyCtrlR:
		e.openFindReplaceDialog()
		return
	case tcell.KeyCtrlG:
		e.openGotoLineDialog()
		return
	case tcell.KeyCtrlZ:
		d := e.activeDoc()
		if d != nil {
			// Ctrl+Shift+Z = Redo, Ctrl+Z = Undo
			if ev.Modifiers()&tcell.ModShift != 0 {
				e.commitEdits(d, d.Buf.ApplyRedo())
			} else {
				e.commitEdits(d, d.Buf.ApplyUndo())
			}
			e.updateStatus()
		}
		return
	case tcell.KeyCtrlC:
		e.copySelection()
		return
	case tcell.KeyCtrlX:
		e.cutSelection()
		return
	case tcell.KeyCtrlV:
		e.pasteClipboard()
		return
	case tcell.KeyCtrlA:
		if d := e.activeDoc(); d != nil {
			d.Buf.SelectAll()
		}
		return
	case tcell.KeyCtrlD:
		if d := e.activeDoc(); d != nil {
			e.commitEdits(d, d.Buf.DuplicateLine())
		}
		return
	case tcell.KeyEscape:
		if d := e.activeDoc(); d != nil {
			d.Buf.Selection = nil
		}
		e.dialog = nil
		return
	case tcell.KeyTab:
		d := e.activeDoc()
		if d == nil {
			return
		}
		if ev.Modifiers()&tcell.ModShift != 0 {
			e.commitEdits(d, d.Buf.DedentSelection())
		} else {
			e.commitEdits(d, d.Buf.InsertTab())
		}
		return
	case tcell.KeyBacktab:
		if d := e.activeDoc(); d != nil {
			e.commitEdits(d, d.Buf.DedentSelection())
		}
		return
	}

	// Ctrl+Tab / Ctrl+Shift+Tab for tab switching
	if ev.Key() == tcell.KeyTab && ev.Modifiers()&tcell.ModCtrl != 0 {
		if ev.Modifiers()&tcell.ModShift != 0 {
			e.prevTab()
		} else {
			e.nextTab()
		}
		return
	}

	// Ctrl+/ for comment toggle
	if ev.Key() == tcell.KeyRune && ev.Rune() == '/' && ev.Modifiers()&tcell.ModCtrl != 0 {
		if d := e.activeDoc(); d != nil {
			e.commitEdits(d, d.Buf.ToggleLineComment(e.commentString()))
		}
		return
	}

	// Ctrl+Space asks the language server for completions
	if ev.Key() == tcell.KeyRune && ev.Rune() == ' ' && ev.Modifiers()&tcell.ModCtrl != 0 {
		e.triggerAutocomplete()
		return
	}

	// Ctrl+] for jump to matching bracket
	if ev.Key() == tcell.KeyCtrlRightSq {
		d := e.activeDoc()
		if d != nil {
			buf := d.Buf
			matchLine, matchCol := e.findMatchingBracket(buf, buf.Cursor.Line, buf.Cursor.Col)
			if matchLine >= 0 {
				buf.Cursor = buffer.Position{Line: matchLine, Col: matchCol}
				buf.Selection = nil
			}
		}
		return
	}

	// Arrow keys and movement
	d := e.activeDoc()
	if d == nil {
		return
	}
	buf := d.Buf

	// Reset mouseScrolling on keyboard input so view snaps back to cursor
	e.mouseScrolling = false

	shift := ev.Modifiers()&tcell.ModShift != 0
	ctrl := ev.Modifiers()&tcell.ModCtrl != 0
	alt := ev.Modifiers()&tcell.ModAlt != 0
	wordMod := ctrl || alt // both Ctrl+Arrow and Alt+Arrow do word movement

	switch ev.Key() {
	case tcell.KeyUp:
		buf.ClearAutoClose()
		if shift {
			e.startOrExtendSelection(buf)
		} else {
			buf.Selection = nil
		}
		if buf.Cursor.Line > 0 {
			buf.Cursor.Line--
			e.clampCol(buf)
		}
		if shift {
			e.extendSelection(buf)
		}

	case tcell.KeyDown:
		buf.ClearAutoClose()
		if shift {
			e.startOrExtendSelection(buf)
		} else {
			buf.Selection = nil
		}
		if buf.Cursor.Line < buf.LineCount()-1 {
			buf.Cursor.Line++
			e.clampCol(buf)
		}
		if shift {
			e.extendSelection(buf)
		}

	case tcell.KeyLeft:
		buf.ClearAutoClose()
		if shift {
			e.startOrExtendSelection(buf)
		} else {
			buf.Selection = nil
		}
		if wordMod {
			buf.MoveWordLeft()
		} else if buf.Cursor.Col > 0 {
			buf.Cursor.Col--
		} else if buf.Cursor.Line > 0 {
			buf.Cursor.Line--
			buf.Cursor.Col = lineLen(buf, buf.Cursor.Line)
		}
		if shift {
			e.extendSelection(buf)
		}

	case tcell.KeyRight:
		buf.ClearAutoClose()
		if shift {
			e.startOrExtendSelection(buf)
		} else {
			buf.Selection = nil
		}
		if wordMod {
			buf.MoveWordRight()
		} else if buf.Cursor.Col < lineLen(buf, buf.Cursor.Line) {
			buf.Cursor.Col++
		} else if buf.Cursor.Line < buf.LineCount()-1 {
			buf.Cursor.Line++
			buf.Cursor.Col = 0
		}
		if shift {
			e.extendSelection(buf)
		}

	case tcell.KeyHome:
		buf.ClearAutoClose()
		if shift {
			e.startOrExtendSelection(buf)
		} else {
			buf.Selection = nil
		}
		if ctrl {
			buf.Cursor = buffer.Position{}
		} else {
			buf.Cursor.Col = 0
		}
		if shift {
			e.extendSelection(buf)
		}

	case tcell.KeyEnd:
		buf.ClearAutoClose()
		if shift {
			e.startOrExtendSelection(buf)
		} else {
			buf.Selection = nil
		}
		if ctrl {
			buf.Cursor.Line = buf.LineCount() - 1
		}
		buf.Cursor.Col = lineLen(buf, buf.Cursor.Line)
		if shift {
			e.extendSelection(buf)
		}

	case tcell.KeyPgUp:
		buf.ClearAutoClose()
		_, _, _, h := e.editorLayout()
		buf.Cursor.Line -= h
		if buf.Cursor.Line < 0 {
			buf.Cursor.Line = 0
		}
		e.clampCol(buf)
		buf.Selection = nil

	case tcell.KeyPgDn:
		buf.ClearAutoClose()
		_, _, _, h := e.editorLayout()
		buf.Cursor.Line += h
		if buf.Cursor.Line >= buf.LineCount() {
			buf.Cursor.Line = buf.LineCount() - 1
		}
		e.clampCol(buf)
		buf.Selection = nil

	case tcell.KeyEnter:
		buf.ClearAutoClose()
		e.commitEdits(d, buf.InsertNewline())

	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if ctrl {
			buf.ClearAutoClose()
			e.commitEdits(d, buf.DeleteWordBackward())
		} else {
			e.commitEdits(d, buf.Backspace())
		}

	case tcell.KeyDelete:
		if ctrl {
			buf.ClearAutoClose()
			e.commitEdits(d, buf.DeleteWordForward())
		} else {
			e.commitEdits(d, buf.DeleteForward())
		}

	case tcell.KeyRune:
		if (ev.Rune() == '"' || ev.Rune() == '\'') && e.cfg.QuoteWrapSelection {
			if ops := buf.WrapSelectionWith(ev.Rune()); ops != nil {
				e.commitEdits(d, ops)
				break
			}
		}
		e.commitEdits(d, buf.InsertChar(ev.Rune()))
	}

	e.updateStatus()
}

// commitEdits feeds buffer edits through the document so the journal,
// anchors, render cache, and the pending didChange batch all observe them.
func (e *Editor) commitEdits(d *doc.Document, ops []buffer.EditOp) {
	if len(ops) == 0 {
		return
	}
	d.Commit(ops)
	e.markModified()
}

func lineLen(buf *buffer.Buffer, i int) int {
	ln, err := buf.Line(i)
	if err != nil {
		return 0
	}
	return ln.Len()
}

func (e *Editor) handleMouse(ev *tcell.EventMouse) {
	// Reset cursor blink on mouse activity
	e.cursorVisible = true
	e.lastBlinkTime = time.Now()

	mx, my := ev.Position()
	btn := ev.Buttons()
	_, screenH := e.screen.Size()

	// Always update tab bar hover state - reset if mouse is not on tab bar row
	if my != 0 {
		e.tabBar.HandleMouse(ev)
	}

	// Status bar click has no action.
	if my == screenH-1 {
		return
	}

	// File tree area
	if e.treeOpen {
		treeHandled := e.fileTree.HandleMouse(ev)
		if mx < e.treeWidth {
			if treeHandled && btn == tcell.Button1 {
				e.focusTarget = "tree"
				e.updateFocus()
			}
			return
		}
	}

	// Tab bar
	if my == 0 {
		e.tabBar.HandleMouse(ev)
		return
	}

	// Terminal area
	if e.termOpen && e.terminal != nil {
		_, termY, _, termH := e.termLayout()
		if my >= termY && my < termY+termH {
			if btn == tcell.Button1 {
				e.focusTarget = "terminal"
				e.updateFocus()
			}
			e.terminal.HandleMouse(ev)
			return
		}
	}

	// Editor area
	e.focusTarget = "editor"
	e.updateFocus()
	e.handleEditorMouse(ev)
}

func (e *Editor) handleEditorMouse(ev *tcell.EventMouse) {
	d := e.activeDoc()
	view := e.activeView()
	if d == nil || view == nil {
		return
	}
	buf := d.Buf

	mx, my := ev.Position()
	btn := ev.Buttons()
	ex, ey, _, eh := e.editorLayout()
	gutterW := e.gutterWidth()
	modifiers := ev.Modifiers()

	switch {
	case btn == tcell.WheelUp:
		if modifiers&tcell.ModShift != 0 {
			view.scrollX -= 3
			if view.scrollX < 0 {
				view.scrollX = 0
			}
		} else {
			view.scrollY -= 3
			if view.scrollY < 0 {
				view.scrollY = 0
			}
		}
		e.mouseScrolling = true
	case btn == tcell.WheelDown:
		if modifiers&tcell.ModShift != 0 {
			view.scrollX += 3
		} else {
			view.scrollY += 3
			maxScroll := buf.LineCount() - eh + 1
			if maxScroll < 0 {
				maxScroll = 0
			}
			if view.scrollY > maxScroll {
				view.scrollY = maxScroll
			}
		}
		e.mouseScrolling = true
	case btn == tcell.WheelLeft:
		view.scrollX -= 3
		if view.scrollX < 0 {
			view.scrollX = 0
		}
		e.mouseScrolling = true
	case btn == tcell.WheelRight:
		view.scrollX += 3
		e.mouseScrolling = true
	case btn == tcell.Button1:
		buf.ClearAutoClose()
		if !e.mouseDown {
			e.mousePressX, e.mousePressY = mx, my
		}

		// Convert screen coordinates to buffer coordinates
		line := view.scrollY + my - ey
		if line < 0 {
			line = 0
		}
		if line >= buf.LineCount() {
			line = buf.LineCount() - 1
		}
		displayCol := mx - ex - gutterW + view.scrollX
		if displayCol < 0 {
			displayCol = 0
		}
		col := 0
		if ln, err := buf.Line(line); err == nil {
			col = ln.DisplayToCol(displayCol, buf.TabSize)
		}
		pos := buffer.Position{Line: line, Col: col}

		if modifiers&tcell.ModShift != 0 {
			// Shift+click: extend selection
			e.startOrExtendSelection(buf)
			buf.Cursor = pos
			e.extendSelection(buf)
		} else if e.mouseDown {
			// Dragging with button held: extend selection from anchor
			if !pos.Equal(e.mouseAnchor) {
				sel := buffer.NewRange(e.mouseAnchor, pos)
				buf.Selection = &sel
				buf.Cursor = pos
			}
		} else {
			// Regular click: place cursor, start drag tracking
			buf.Selection = nil
			buf.Cursor = pos
			e.mouseDown = true
			e.mouseAnchor = pos
			e.mouseScrolling = false
		}
		e.updateStatus()

	case btn == tcell.ButtonNone:
		e.mouseDown = false
		e.mouseScrolling = true
	}
}

func (e *Editor) handleQuit() {
	for _, d := range e.docs {
		if d.Buf.Modified {
			if e.quitPending {
				e.quit = true // Second Ctrl+Q forces quit
				return
			}
			e.statusBar.Message = "Unsaved changes! Press Ctrl+Q again to force quit."
			e.quitPending = true
			return
		}
	}
	e.quit = true
}

// Selection helpers

func (e *Editor) startOrExtendSelection(buf *buffer.Buffer) {
	if buf.Selection == nil {
		e.selectionAnchor = &buffer.Position{Line: buf.Cursor.Line, Col: buf.Cursor.Col}
	}
}

func (e *Editor) extendSelection(buf *buffer.Buffer) {
	if e.selectionAnchor != nil {
		sel := buffer.NewRange(*e.selectionAnchor, buf.Cursor)
		buf.Selection = &sel
	}
}

func (e *Editor) clampCol(buf *buffer.Buffer) {
	if l := lineLen(buf, buf.Cursor.Line); buf.Cursor.Col > l {
		buf.Cursor.Col = l
	}
}

// Clipboard operations

func (e *Editor) copySelection() {
	d := e.activeDoc()
	if d == nil {
		return
	}
	buf := d.Buf

	var text string
	if buf.Selection != nil && !buf.Selection.Empty() {
		text = buf.SelectedText()
	} else if ln, err := buf.Line(buf.Cursor.Line); err == nil {
		// No selection - copy entire current line including newline
		text = ln.Text() + "\n"
	}

	if text != "" {
		clipboardx.Write(text)
		e.setTemporaryMessage("Copied")
	}
}

func (e *Editor) cutSelection() {
	d := e.activeDoc()
	if d == nil {
		return
	}
	buf := d.Buf

	var text string
	if buf.Selection != nil && !buf.Selection.Empty() {
		text = buf.SelectedText()
		clipboardx.Write(text)
		e.commitEdits(d, buf.DeleteSelection())
	} else if ln, err := buf.Line(buf.Cursor.Line); err == nil {
		// No selection - cut the whole current line
		text = ln.Text() + "\n"
		clipboardx.Write(text)
		r := buffer.Range{
			Start: buffer.Position{Line: buf.Cursor.Line, Col: 0},
			End:   buffer.Position{Line: buf.Cursor.Line + 1, Col: 0},
		}
		if buf.Cursor.Line == buf.LineCount()-1 {
			r.End = buffer.Position{Line: buf.Cursor.Line, Col: ln.Len()}
			if buf.Cursor.Line > 0 {
				r.Start = buffer.Position{Line: buf.Cursor.Line - 1, Col: lineLen(buf, buf.Cursor.Line-1)}
			}
		}
		if op, err := buf.Replace(r, ""); err == nil {
			buf.Cursor = buf.Clamp(buffer.Position{Line: r.Start.Line, Col: 0})
			e.commitEdits(d, []buffer.EditOp{op})
		}
	}

	if text != "" {
		e.setTemporaryMessage("Cut")
	}
}

func (e *Editor) pasteClipboard() {
	text := clipboardx.Read()
	if text == "" {
		return
	}
	d := e.activeDoc()
	if d == nil {
		return
	}
	e.commitEdits(d, d.Buf.InsertText(text))
}

func (e *Editor) markModified() {
	d := e.activeDoc()
	if d == nil {
		return
	}
	d.Buf.RecomputeModified()
	e.tabBar.SetModified(e.activeTab, d.Buf.Modified)
	e.highlight.Invalidate(d.Buf.Path)
	// Pin preview tab on edit
	if e.previewTab == e.activeTab {
		e.tabBar.Tabs[e.activeTab].Preview = false
		e.previewTab = -1
	}
}

// Tab navigation

func (e *Editor) nextTab() {
	if len(e.docs) > 1 {
		e.switchTab((e.activeTab + 1) % len(e.docs))
	}
}

func (e *Editor) prevTab() {
	if len(e.docs) > 1 {
		idx := e.activeTab - 1
		if idx < 0 {
			idx = len(e.docs) - 1
		}
		e.switchTab(idx)
	}
}

// Dialogs

func (e *Editor) openFindDialog() {
	d := ui.NewFindDialog()
	doc := e.activeDoc()

	d.OnSubmit = func(value string) {
		if len(d.Matches) > 0 {
			d.NextMatch()
			m := d.Matches[d.MatchIndex]
			if doc != nil {
				doc.Buf.Cursor = buffer.Position{Line: m.Line, Col: m.Col}
			}
		}
	}
	d.OnNavigate = func(line, col int) {
		if doc != nil {
			doc.Buf.Cursor = buffer.Position{Line: line, Col: col}
		}
	}
	d.OnCancel = func() {
		e.dialog = nil
	}
	e.dialog = d
}

func (e *Editor) openFindReplaceDialog() {
	d := ui.NewFindReplaceDialog()
	doc := e.activeDoc()

	d.OnSubmit = func(value string) {
		if len(d.Matches) > 0 {
			d.NextMatch()
			m := d.Matches[d.MatchIndex]
			if doc != nil {
				doc.Buf.Cursor = buffer.Position{Line: m.Line, Col: m.Col}
			}
		}
	}
	d.OnNavigate = func(line, col int) {
		if doc != nil {
			doc.Buf.Cursor = buffer.Position{Line: line, Col: col}
		}
	}
	d.OnReplace = func(matchIdx int, replacement string) {
		if doc == nil || matchIdx < 0 || matchIdx >= len(d.Matches) {
			return
		}
		m := d.Matches[matchIdx]
		r := buffer.Range{
			Start: buffer.Position{Line: m.Line, Col: m.Col},
			End:   buffer.Position{Line: m.Line, Col: m.Col + m.Length},
		}
		op, err := doc.Buf.Replace(r, replacement)
		if err != nil {
			return
		}
		e.commitEdits(doc, []buffer.EditOp{op})
		// Re-search to update matches
		d.FindMatches(doc.Buf.LineStrings())
		if len(d.Matches) > 0 {
			if matchIdx >= len(d.Matches) {
				d.MatchIndex = 0
			} else {
				d.MatchIndex = matchIdx
			}
			m := d.Matches[d.MatchIndex]
			doc.Buf.Cursor = buffer.Position{Line: m.Line, Col: m.Col}
		}
		e.setTemporaryMessage("Replaced")
	}
	d.OnReplaceAll = func(find, replacement string) int {
		if doc == nil {
			return 0
		}
		count, ops := doc.Buf.ReplaceAll(find, replacement)
		e.commitEdits(doc, ops)
		d.FindMatches(doc.Buf.LineStrings())
		e.statusBar.Message = fmt.Sprintf("Replaced %d occurrences", count)
		return count
	}
	d.OnCancel = func() {
		e.dialog = nil
	}
	e.dialog = d
}

func (e *Editor) openSaveAsDialog() {
	d := ui.NewSaveAsDialog()
	cwd, _ := os.Getwd()
	d.Input = cwd + string(os.PathSeparator)
	d.Cursor = len([]rune(d.Input))
	d.OnSubmit = func(value string) {
		if value == "" {
			e.dialog = nil
			return
		}
		absPath, _ := filepath.Abs(value)
		doc := e.activeDoc()
		if doc != nil {
			buf := doc.Buf
			buf.Path = absPath
			buf.Language = highlight.DetectLanguage(absPath)
			err := buf.SaveWithOptions(e.cfg.TrimTrailingSpace, e.cfg.InsertFinalNewline)
			if err != nil {
				if os.IsPermission(err) {
					e.promptSudoSave(doc, absPath, func() {
						e.tabBar.Tabs[e.activeTab].Title = filepath.Base(absPath)
						e.tabBar.Tabs[e.activeTab].Path = absPath
						e.updateStatus()
					})
					return
				}
				e.setTemporaryError("Error saving: " + err.Error())
			} else {
				e.onSaveSuccess(doc, "Saved "+filepath.Base(absPath))
				e.tabBar.Tabs[e.activeTab].Title = filepath.Base(absPath)
				e.tabBar.Tabs[e.activeTab].Path = absPath
				e.updateStatus()
			}
		}
		e.dialog = nil
	}
	d.OnCancel = func() {
		e.dialog = nil
	}
	e.dialog = d
}

func (e *Editor) openGotoLineDialog() {
	d := ui.NewGotoLineDialog()
	d.OnSubmit = func(value string) {
		lineNum, err := strconv.Atoi(value)
		if err != nil {
			e.setTemporaryError("Invalid line number")
			e.dialog = nil
			return
		}
		if lineNum <= 0 {
			e.setTemporaryError("Line number must be positive")
			e.dialog = nil
			return
		}
		doc := e.activeDoc()
		if doc != nil {
			buf := doc.Buf
			lineNum-- // convert to 0-indexed
			if lineNum >= buf.LineCount() {
				e.setTemporaryError(fmt.Sprintf("Line %d exceeds file length (%d lines)", lineNum+1, buf.LineCount()))
				lineNum = buf.LineCount() - 1
			}
			buf.Cursor = buffer.Position{Line: lineNum, Col: 0}
			buf.Selection = nil
		}
		e.dialog = nil
	}
	d.OnCancel = func() {
		e.dialog = nil
	}
	e.dialog = d
}

func (e *Editor) toggleHelpDialog() {
	if e.dialog != nil && e.dialog.Type == ui.DialogHelp {
		e.dialog = nil
		return
	}

	d := ui.NewHelpDialog()
	d.OnCancel = func() {
		e.dialog = nil
	}
	e.dialog = d
}

func (e *Editor) toggleSettingsDialog() {
	if e.dialog != nil && e.dialog.Type == ui.DialogSettings {
		e.cfg.Save() // Save settings before closing
		e.dialog = nil
		return
	}

	e.openSettingsDialog()
}

func (e *Editor) openSettingsDialog() {
	options := []string{
		"Theme",
		"Space Size",
		"Tree Width",
		"Terminal Ratio",
		"Auto Close",
		"Quote Wrap Selection",
		"Trim Trailing Whitespace",
		"Insert Final Newline",
	}
	values := []string{
		e.cfg.Theme,
		strconv.Itoa(e.cfg.TabSize),
		strconv.Itoa(e.cfg.TreeWidth),
		fmt.Sprintf("%.2f", e.cfg.TermRatio),
		boolSettingValue(e.cfg.AutoClose),
		boolSettingValue(e.cfg.QuoteWrapSelection),
		boolSettingValue(e.cfg.TrimTrailingSpace),
		boolSettingValue(e.cfg.InsertFinalNewline),
	}

	d := ui.NewSettingsDialog(options, values)
	d.SettingsSections = []ui.SettingsSection{
		{Name: "Appearance", Options: options[:1], Indices: []int{0}},
		{Name: "Layout", Options: options[2:4], Indices: []int{2, 3}},
		{Name: "Editing", Options: []string{options[1], options[4], options[5]}, Indices: []int{1, 4, 5}},
		{Name: "On Save", Options: options[6:], Indices: []int{6, 7}},
	}
	d.OnCancel = func() {
		e.cfg.Save() // Save settings when closing with ESC
		e.dialog = nil
	}
	d.OnSettingChange = func(index int, currentValue string) {
		e.applySettingByDirection(index, 1, d)
	}
	d.OnSettingChangeReverse = func(index int, currentValue string) {
		e.applySettingByDirection(index, -1, d)
	}
	e.dialog = d
}

func boolSettingValue(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}

func (e *Editor) applySettingByDirection(index int, direction int, d *ui.Dialog) {
	switch index {
	case 0: // Theme
		themeList := []string{"dark", "light", "monokai", "nord", "solarized-dark", "gruvbox", "gruvbox-light", "dracula", "one-dark", "tokyo-night", "catppuccin"}
		e.cfg.Theme = cycleString(themeList, e.cfg.Theme, direction)
		d.SettingsValues[0] = e.cfg.Theme
	case 1: // Space Size
		sizes := []int{2, 4, 8}
		e.cfg.TabSize = cycleInt(sizes, e.cfg.TabSize, direction)
		d.SettingsValues[1] = strconv.Itoa(e.cfg.TabSize)
	case 2: // Tree Width
		widths := []int{20, 24, 30, 40}
		e.cfg.TreeWidth = cycleInt(widths, e.cfg.TreeWidth, direction)
		e.treeWidth = e.cfg.TreeWidth
		d.SettingsValues[2] = strconv.Itoa(e.cfg.TreeWidth)
	case 3: // Terminal Ratio
		ratios := []float64{0.20, 0.30, 0.40, 0.50}
		e.cfg.TermRatio = cycleFloat(ratios, e.cfg.TermRatio, direction)
		e.termRatio = e.cfg.TermRatio
		d.SettingsValues[3] = fmt.Sprintf("%.2f", e.cfg.TermRatio)

		// Resize terminal if it's open
		if e.termOpen && e.terminal != nil {
			_, _, termW, termH := e.termLayout()
			if termW > 0 && termH > 1 {
				e.terminal.Resize(termH-1, termW)
			}
		}
	case 4: // Auto Close
		e.cfg.AutoClose = !e.cfg.AutoClose
		for _, doc := range e.docs {
			doc.Buf.AutoCloseEnabled = e.cfg.AutoClose
			if !e.cfg.AutoClose {
				doc.Buf.ClearAutoClose()
			}
		}
		d.SettingsValues[4] = boolSettingValue(e.cfg.AutoClose)
	case 5: // Quote Wrap Selection
		e.cfg.QuoteWrapSelection = !e.cfg.QuoteWrapSelection
		d.SettingsValues[5] = boolSettingValue(e.cfg.QuoteWrapSelection)
	case 6: // Trim Trailing Whitespace
		e.cfg.TrimTrailingSpace = !e.cfg.TrimTrailingSpace
		d.SettingsValues[6] = boolSettingValue(e.cfg.TrimTrailingSpace)
	case 7: // Insert Final Newline
		e.cfg.InsertFinalNewline = !e.cfg.InsertFinalNewline
		d.SettingsValues[7] = boolSettingValue(e.cfg.InsertFinalNewline)
	}
	e.cfg.Save()
}

func cycleString(values []string, current string, direction int) string {
	currentIdx := 0
	for i, value := range values {
		if value == current {
			currentIdx = i
			break
		}
	}
	next := (currentIdx + direction + len(values)) % len(values)
	return values[next]
}

func cycleInt(values []int, current int, direction int) int {
	currentIdx := 0
	for i, value := range values {
		if value == current {
			currentIdx = i
			break
		}
	}
	next := (currentIdx + direction + len(values)) % len(values)
	return values[next]
}

func cycleFloat(values []float64, current float64, direction int) float64 {
	currentIdx := 0
	for i, value := range values {
		if fmt.Sprintf("%.2f", value) == fmt.Sprintf("%.2f", current) {
			currentIdx = i
			break
		}
	}
	next := (currentIdx + direction + len(values)) % len(values)
	return values[next]
}
