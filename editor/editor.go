package editor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"

	"vex/buffer"
	"vex/config"
	"vex/doc"
	"vex/highlight"
	"vex/lsp"
	"vex/ui"
)

type Component interface {
	Render(screen tcell.Screen, x, y, width, height int)
	HandleKey(ev *tcell.EventKey) bool
	HandleMouse(ev *tcell.EventMouse) bool
	IsFocused() bool
	SetFocused(bool)
}

type Editor struct {
	screen tcell.Screen
	cfg    *config.Config
	log    *slog.Logger

	docs      []*doc.Document
	activeTab int
	views     map[*doc.Document]*EditorView

	fileTree     *ui.FileTree
	tabBar       *ui.TabBar
	terminal     *ui.Terminal
	statusBar    *ui.StatusBar
	dialog       *ui.Dialog
	autocomplete *ui.Autocomplete

	highlight *highlight.Highlighter

	// Language server plumbing. All inbound traffic funnels through one
	// bounded inbox drained on the UI goroutine.
	inbox  *lsp.Inbox
	lspMgr *lsp.Manager

	termOpen  bool
	treeOpen  bool
	treeWidth int
	termRatio float64

	quit        bool
	quitPending bool   // true after first Ctrl+Q with unsaved changes
	focusTarget string // "editor", "tree", "terminal"

	// Mouse drag tracking
	mouseDown                bool
	mouseAnchor              buffer.Position
	mousePressX, mousePressY int
	mouseScrolling           bool

	// Preview tab support (single-click opens preview, editing pins it)
	previewTab int

	selectionAnchor *buffer.Position

	gitGutter *GitGutter

	fileWatcher *watcher
	watchedRoot string

	cursorVisible bool
	lastBlinkTime time.Time
	lastExpire    time.Time

	statusMessageTime    time.Time
	statusMessageIsError bool
}

type EditorView struct {
	scrollY int
	scrollX int
}

// LspWakeEvent is posted by transport goroutines when the inbox receives a
// message, so the UI loop wakes up and drains it.
type LspWakeEvent struct {
	tcell.EventTime
}

const requestTimeout = 5 * time.Second

func New(cfg *config.Config, log *slog.Logger) *Editor {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Editor{
		cfg:         cfg,
		log:         log,
		highlight:   highlight.New(),
		gitGutter:   NewGitGutter(),
		treeOpen:    true,
		treeWidth:   cfg.TreeWidth,
		termRatio:   cfg.TermRatio,
		focusTarget: "editor",
		views:       make(map[*doc.Document]*EditorView),
		previewTab:  -1,
	}
}

func (e *Editor) Run(files []string, isDirOpen bool) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}

	screen.EnableMouse()
	screen.EnablePaste()
	screen.SetStyle(tcell.StyleDefault)
	screen.Clear()

	e.screen = screen

	cwd, _ := os.Getwd()

	e.inbox = lsp.NewInbox(lsp.DefaultInboxCapacity, func() {
		ev := &LspWakeEvent{}
		ev.SetEventNow()
		screen.PostEvent(ev)
	})
	e.lspMgr = lsp.NewManager(cwd, e.inbox, e.log, e.cfg.Servers)

	e.setupComponents(cwd)

	e.watchedRoot = cwd
	e.fileWatcher = newWatcher(screen, e.log)
	if e.fileWatcher != nil {
		e.fileWatcher.watchRecursive(cwd)
	}

	e.startBackupTimer()

	backups := e.checkForBackups()
	if len(backups) > 0 {
		for _, info := range backups {
			e.recoverBackup(info)
		}
		e.statusBar.Message = fmt.Sprintf("Recovered %d backup(s) from previous session", len(backups))
	}

	if len(files) > 0 {
		for _, f := range files {
			absPath, _ := filepath.Abs(f)
			e.openFile(absPath)
		}
	} else if !e.RestoreSession() {
		if !isDirOpen {
			e.openEmptyBuffer()
		} else {
			e.focusTarget = "tree"
		}
	}

	e.updateFocus()

	e.cursorVisible = true
	e.lastBlinkTime = time.Now()
	blinkInterval := 500 * time.Millisecond

	for !e.quit {
		e.clearExpiredMessages()
		e.expireStaleRequests()

		// One didChange per frame per document, carrying every edit queued
		// since the last flush.
		for _, d := range e.docs {
			d.FlushChanges()
		}

		e.render()

		ev := screen.PollEvent()

		if time.Since(e.lastBlinkTime) >= blinkInterval {
			e.cursorVisible = !e.cursorVisible
			e.lastBlinkTime = time.Now()
		}

		switch ev := ev.(type) {
		case *tcell.EventResize:
			screen.Sync()
			if e.terminal != nil {
				_, _, termW, termH := e.termLayout()
				if termW > 0 && termH > 1 {
					e.terminal.Resize(termH-1, termW)
				}
			}
		case *tcell.EventKey:
			e.handleKey(ev)
		case *tcell.EventMouse:
			e.handleMouse(ev)
		case *ui.TermOutputEvent:
			if e.terminal != nil {
				e.terminal.ProcessOutput(ev.Data)
			}
		case *LspWakeEvent:
			e.drainInbox()
		case *FileWatchEvent:
			e.handleFileWatchEvent(ev)
		}
	}

	e.SaveSession()

	if e.fileWatcher != nil {
		e.fileWatcher.close()
	}

	e.cleanAllBackups()

	if e.terminal != nil {
		e.terminal.Close()
	}

	for _, d := range e.docs {
		d.Close()
	}
	if e.lspMgr != nil {
		e.lspMgr.Close()
	}

	screen.Clear()
	screen.Fini()

	return nil
}

func (e *Editor) setupComponents(cwd string) {
	e.tabBar = ui.NewTabBar()
	e.tabBar.OnSwitch = func(idx int) { e.switchTab(idx) }
	e.tabBar.OnClose = func(idx int) { e.closeTab(idx) }

	e.fileTree = ui.NewFileTree(cwd)
	e.fileTree.OnFileOpen = func(path string) {
		e.openFilePreview(path)
		e.focusTarget = "editor"
		e.updateFocus()
	}
	e.fileTree.OnNewFile = func(dirPath string) {
		d := ui.NewInputDialog("New file: ")
		d.OnSubmit = func(name string) {
			if name == "" {
				e.dialog = nil
				return
			}
			path := filepath.Join(dirPath, name)
			f, err := os.Create(path)
			if err != nil {
				e.setTemporaryError("Error: " + err.Error())
			} else {
				f.Close()
				e.fileTree.Refresh()
				e.openFile(path)
				e.setTemporaryMessage("Created " + name)
			}
			e.dialog = nil
		}
		d.OnCancel = func() { e.dialog = nil }
		e.dialog = d
	}
	e.fileTree.OnNewDir = func(dirPath string) {
		d := ui.NewInputDialog("New directory: ")
		d.OnSubmit = func(name string) {
			if name == "" {
				e.dialog = nil
				return
			}
			path := filepath.Join(dirPath, name)
			if err := os.MkdirAll(path, 0755); err != nil {
				e.setTemporaryError("Error: " + err.Error())
			} else {
				e.fileTree.Refresh()
				e.setTemporaryMessage("Created " + name + "/")
			}
			e.dialog = nil
		}
		d.OnCancel = func() { e.dialog = nil }
		e.dialog = d
	}
	e.fileTree.OnDeleteFile = func(path string) {
		name := filepath.Base(path)
		d := ui.NewDeleteConfirmDialog(name)
		d.OnConfirm = func(answer rune) {
			if answer == 'y' {
				if err := os.RemoveAll(path); err != nil {
					e.setTemporaryError("Error: " + err.Error())
				} else {
					for i, dc := range e.docs {
						if dc.Buf.Path == path {
							e.removeTab(i)
							break
						}
					}
					e.fileTree.Refresh()
					e.setTemporaryMessage("Deleted " + name)
				}
			}
			e.dialog = nil
		}
		e.dialog = d
	}
	e.fileTree.OnRenameFile = func(oldPath string) {
		d := ui.NewInputDialog("Rename: ")
		d.Input = filepath.Base(oldPath)
		d.Cursor = len([]rune(d.Input))
		d.OnSubmit = func(newName string) {
			if newName == "" || newName == filepath.Base(oldPath) {
				e.dialog = nil
				return
			}
			newPath := filepath.Join(filepath.Dir(oldPath), newName)
			if err := os.Rename(oldPath, newPath); err != nil {
				e.setTemporaryError("Error: " + err.Error())
			} else {
				for i, dc := range e.docs {
					if dc.Buf.Path == oldPath {
						e.renameDocument(i, newPath)
						break
					}
				}
				e.fileTree.Refresh()
				e.setTemporaryMessage("Renamed to " + newName)
			}
			e.dialog = nil
		}
		d.OnCancel = func() { e.dialog = nil }
		e.dialog = d
	}

	e.statusBar = ui.NewStatusBar()
}

// renameDocument reopens the document under its new path so the server's
// view follows the file: a rename is a close of the old URI and an open of
// the new one, not a mutation.
func (e *Editor) renameDocument(idx int, newPath string) {
	old := e.docs[idx]
	view := e.views[old]
	old.Close()

	buf := old.Buf
	buf.Path = newPath
	buf.Language = highlight.DetectLanguage(newPath)

	nd := doc.New(buf, e.highlight, e.log)
	nd.Attach(e.lspMgr.EnsureSession(buf.Language))
	e.docs[idx] = nd
	delete(e.views, old)
	e.views[nd] = view
	e.tabBar.Tabs[idx].Title = filepath.Base(newPath)
	e.tabBar.Tabs[idx].Path = newPath
}

// --- inbox dispatch ---

func (e *Editor) drainInbox() {
	for _, msg := range e.inbox.Drain() {
		e.dispatch(msg)
	}
	if n := e.inbox.Dropped(); n > 0 {
		e.log.Debug("inbox dropped messages", "count", n)
	}
	e.updateStatus()
}

func (e *Editor) dispatch(msg lsp.Message) {
	switch msg.Kind {
	case lsp.MsgDiagnostics:
		if d := e.docByURI(msg.Diagnostics.URI); d != nil {
			d.IntegrateDiagnostics(msg.Diagnostics)
		}
	case lsp.MsgServerDown:
		for _, d := range e.docs {
			if d.Buf.Language == msg.Language {
				d.ServerDown()
			}
		}
		e.setTemporaryError(msg.Language + " language server stopped; editing locally")
	case lsp.MsgResponse:
		e.dispatchResponse(msg)
	}
}

func (e *Editor) dispatchResponse(msg lsp.Message) {
	d := e.docByURI(msg.URI)
	if d == nil {
		return
	}
	if msg.Err != nil {
		e.log.Debug("request failed",
			"kind", msg.ReqKind.String(), "code", msg.Err.Code, "msg", msg.Err.Message)
		if msg.ReqKind == lsp.KindRename || msg.ReqKind == lsp.KindFormatting {
			e.setTemporaryError(msg.ReqKind.String() + " failed: " + msg.Err.Message)
		}
		return
	}

	switch msg.ReqKind {
	case lsp.KindSemanticTokens:
		var st lsp.SemanticTokens
		if err := unmarshalResult(msg.Result, &st); err != nil {
			e.log.Debug("bad semantic tokens payload", "err", err)
			return
		}
		d.IntegrateSemanticTokens(st, msg.Version, d.Legend())

	case lsp.KindCompletion:
		// Completions describe a cursor position, not a text span; anything
		// typed since makes them wrong, so stale ones are dropped.
		if msg.Version != d.Buf.Version || d != e.activeDoc() {
			return
		}
		e.showCompletions(d, lsp.DecodeCompletions(msg.Result))

	case lsp.KindHover:
		if msg.Version != d.Buf.Version || d != e.activeDoc() {
			return
		}
		e.showHoverText(lsp.HoverText(msg.Result))

	case lsp.KindDefinition:
		e.jumpToDefinition(d, msg.Version, lsp.DecodeLocations(msg.Result))

	case lsp.KindRename:
		var we lsp.WorkspaceEdit
		if err := unmarshalResult(msg.Result, &we); err != nil || len(we.Changes) == 0 {
			e.setTemporaryError("Rename produced no changes")
			return
		}
		e.applyWorkspaceEdit(d, &we, msg.Version)

	case lsp.KindFormatting:
		var edits []lsp.TextEdit
		if err := unmarshalResult(msg.Result, &edits); err != nil || len(edits) == 0 {
			e.setTemporaryMessage("Already formatted")
			return
		}
		if e.applyTextEdits(d, edits, msg.Version) {
			e.setTemporaryMessage("Formatted")
		} else {
			e.setTemporaryError("Formatting result was stale; try again")
		}
	}
}

func unmarshalResult(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return errors.New("empty result")
	}
	return json.Unmarshal(raw, v)
}

func (e *Editor) showHoverText(info string) {
	if info == "" {
		e.setTemporaryMessage("No hover info")
		return
	}
	info = strings.Join(strings.Fields(info), " ")
	if len(info) > 120 {
		info = info[:120] + "…"
	}
	e.setTemporaryMessage(info)
}

func (e *Editor) jumpToDefinition(from *doc.Document, atVersion int, locs []lsp.Location) {
	if len(locs) == 0 {
		e.setTemporaryError("No definition found")
		return
	}
	loc := locs[0]
	path := lsp.URIToPath(loc.URI)

	if target := e.docByURI(loc.URI); target == from && target != nil {
		r, ok := from.TransformWireRange(loc.Range, atVersion)
		if !ok {
			e.setTemporaryError("Definition target was edited away")
			return
		}
		from.Buf.Cursor = r.Start
		from.Buf.Selection = nil
		return
	}

	e.openFile(path)
	if nd := e.activeDoc(); nd != nil && nd.Buf.Path == path {
		nd.Buf.Cursor = nd.Buf.WireToPos(buffer.WirePosition{
			Line:      loc.Range.Start.Line,
			Character: loc.Range.Start.Character,
		})
		nd.Buf.Selection = nil
	}
}

// applyWorkspaceEdit applies a rename result across every affected file.
// Ranges are re-based through each open document's journal; an edit whose
// span was touched since the request aborts the whole operation. atVersion
// is the version the request was issued at, which only means anything for
// the document it was issued on; other documents re-base from their own
// current version.
func (e *Editor) applyWorkspaceEdit(origin *doc.Document, we *lsp.WorkspaceEdit, atVersion int) {
	applied := 0
	for uri, edits := range we.Changes {
		d := e.docByURI(uri)
		if d == nil {
			e.openFile(lsp.URIToPath(uri))
			d = e.docByURI(uri)
		}
		if d == nil {
			continue
		}

		fromVersion := d.Buf.Version
		if d == origin {
			fromVersion = atVersion
		}

		resolved := make([]buffer.Range, len(edits))
		for i, te := range edits {
			r, ok := d.TransformWireRange(te.Range, fromVersion)
			if !ok {
				e.setTemporaryError("Rename overlapped local edits; aborted")
				return
			}
			resolved[i] = r
		}
		if !e.commitResolvedEdits(d, resolved, edits) {
			e.setTemporaryError("Rename overlapped local edits; aborted")
			return
		}
		applied += len(edits)
	}
	e.setTemporaryMessage(fmt.Sprintf("Renamed: %d edits applied", applied))
	e.markModified()
}

// applyTextEdits applies formatting edits to one document.
func (e *Editor) applyTextEdits(d *doc.Document, edits []lsp.TextEdit, atVersion int) bool {
	resolved := make([]buffer.Range, len(edits))
	for i, te := range edits {
		r, ok := d.TransformWireRange(te.Range, atVersion)
		if !ok {
			return false
		}
		resolved[i] = r
	}
	if !e.commitResolvedEdits(d, resolved, edits) {
		return false
	}
	e.markModified()
	return true
}

// commitResolvedEdits applies server edits bottom-to-top so earlier ranges
// stay valid, committing each through the document so the journal, anchors
// and render cache follow.
func (e *Editor) commitResolvedEdits(d *doc.Document, ranges []buffer.Range, edits []lsp.TextEdit) bool {
	order := make([]int, len(ranges))
	for i := range order {
		order[i] = i
	}
	for i := 0; i < len(order); i++ {
		for j := i + 1; j < len(order); j++ {
			if ranges[order[i]].Start.Before(ranges[order[j]].Start) {
				order[i], order[j] = order[j], order[i]
			}
		}
	}
	for _, idx := range order {
		op, err := d.Buf.ApplyRaw(buffer.OpReplace, ranges[idx], edits[idx].NewText)
		if err != nil {
			e.log.Debug("workspace edit rejected", "err", err)
			return false
		}
		d.Commit([]buffer.EditOp{op})
	}
	d.Buf.Cursor = d.Buf.Clamp(d.Buf.Cursor)
	d.Buf.Selection = nil
	return true
}

func (e *Editor) showCompletions(d *doc.Document, lspItems []lsp.CompletionItem) {
	if len(lspItems) == 0 {
		e.setTemporaryMessage("No completions")
		return
	}
	items := make([]ui.CompletionItem, len(lspItems))
	for i, li := range lspItems {
		items[i] = ui.CompletionItem{
			Label:      li.Label,
			Detail:     li.Detail,
			InsertText: li.InsertText,
			Kind:       li.Kind,
		}
	}

	view := e.views[d]
	if view == nil {
		return
	}
	ex, ey, _, _ := e.editorLayout()
	gutterW := e.gutterWidth()

	line, err := d.Buf.Line(d.Buf.Cursor.Line)
	if err != nil {
		return
	}
	screenX := ex + gutterW + line.ColToDisplay(d.Buf.Cursor.Col, d.Buf.TabSize) - view.scrollX
	screenY := ey + d.Buf.Cursor.Line - view.scrollY

	theme := e.cfg.GetTheme()
	ac := ui.NewAutocomplete(items, screenX, screenY, theme)
	ac.OnSelect = func(item ui.CompletionItem) {
		text := item.InsertText
		if text == "" {
			text = item.Label
		}
		// Replace the partially typed word with the completion.
		start, _ := d.Buf.WordAt(d.Buf.Cursor.Line, d.Buf.Cursor.Col)
		if start < d.Buf.Cursor.Col {
			r := buffer.Range{
				Start: buffer.Position{Line: d.Buf.Cursor.Line, Col: start},
				End:   d.Buf.Cursor,
			}
			if op, err := d.Buf.Replace(r, text); err == nil {
				d.Buf.Cursor = op.NewEnd
				d.Commit([]buffer.EditOp{op})
			}
		} else {
			d.Commit(d.Buf.InsertText(text))
		}
		e.markModified()
		e.autocomplete = nil
	}
	ac.OnClose = func() {
		e.autocomplete = nil
	}
	e.autocomplete = ac
}

func (e *Editor) expireStaleRequests() {
	if time.Since(e.lastExpire) < time.Second {
		return
	}
	e.lastExpire = time.Now()
	e.lspMgr.ExpireStale(requestTimeout)
}

// --- document/tab management ---

func (e *Editor) docByURI(uri string) *doc.Document {
	for _, d := range e.docs {
		if d.URI == uri {
			return d
		}
	}
	return nil
}

func (e *Editor) docByPath(path string) (int, *doc.Document) {
	for i, d := range e.docs {
		if d.Buf.Path == path {
			return i, d
		}
	}
	return -1, nil
}

func (e *Editor) newDocument(buf *buffer.Buffer) *doc.Document {
	d := doc.New(buf, e.highlight, e.log)
	if buf.Path != "" && !buf.ReadOnly {
		d.Attach(e.lspMgr.EnsureSession(buf.Language))
	}
	return d
}

func (e *Editor) openFile(path string) {
	if i, _ := e.docByPath(path); i >= 0 {
		e.switchTab(i)
		return
	}

	fileExists := true
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fileExists = false
	}

	buf, err := buffer.NewBufferFromFile(path, e.cfg.TabSize)
	if err != nil {
		e.setTemporaryError("Error: " + err.Error())
		return
	}
	buf.Language = highlight.DetectLanguage(path)
	e.applyFileSettings(buf)

	d := e.newDocument(buf)
	e.docs = append(e.docs, d)
	e.views[d] = &EditorView{}
	e.tabBar.AddTab(path, false)
	e.activeTab = len(e.docs) - 1
	e.gitGutter.Update(path)

	if e.treeOpen && e.fileTree != nil {
		e.fileTree.SelectPath(path)
	}

	if !fileExists {
		e.statusBar.Message = fmt.Sprintf("New file: %s", filepath.Base(path))
	} else if buf.ReadOnly {
		e.statusBar.Message = "⚠ Binary file opened as read-only"
	} else if buf.FileSize > 10*1024*1024 {
		e.statusBar.Message = fmt.Sprintf("⚠ Large file (%d MB)", buf.FileSize/(1024*1024))
	} else {
		e.statusBar.Message = ""
	}
	e.updateStatus()
}

// openFilePreview opens a file in preview mode. An existing unmodified
// preview tab is replaced; editing pins the tab.
func (e *Editor) openFilePreview(path string) {
	if i, _ := e.docByPath(path); i >= 0 {
		e.switchTab(i)
		return
	}

	fileExists := true
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fileExists = false
	}

	if e.previewTab >= 0 && e.previewTab < len(e.docs) && !e.docs[e.previewTab].Buf.Modified {
		old := e.docs[e.previewTab]
		buf, err := buffer.NewBufferFromFile(path, e.cfg.TabSize)
		if err != nil {
			e.setTemporaryError("Error: " + err.Error())
			return
		}
		buf.Language = highlight.DetectLanguage(path)
		e.applyFileSettings(buf)

		old.Close()
		delete(e.views, old)
		e.highlight.Invalidate(old.Buf.Path)

		nd := e.newDocument(buf)
		e.docs[e.previewTab] = nd
		e.views[nd] = &EditorView{}
		e.tabBar.Tabs[e.previewTab].Title = filepath.Base(path)
		e.tabBar.Tabs[e.previewTab].Path = path
		e.tabBar.Tabs[e.previewTab].Preview = true
		e.switchTab(e.previewTab)

		if !fileExists {
			e.statusBar.Message = fmt.Sprintf("New file: %s", filepath.Base(path))
		} else {
			e.statusBar.Message = ""
		}
		return
	}

	e.openFile(path)
	if e.activeTab >= 0 && e.activeTab < len(e.tabBar.Tabs) {
		e.tabBar.Tabs[e.activeTab].Preview = true
		e.previewTab = e.activeTab
	}
}

func (e *Editor) openEmptyBuffer() {
	buf := buffer.NewBuffer(e.cfg.TabSize)
	buf.AutoCloseEnabled = e.cfg.AutoClose
	d := doc.New(buf, e.highlight, e.log)
	e.docs = append(e.docs, d)
	e.views[d] = &EditorView{}
	e.tabBar.AddTab("", false)
	e.activeTab = len(e.docs) - 1
}

func (e *Editor) switchTab(idx int) {
	if idx < 0 || idx >= len(e.docs) {
		return
	}
	e.activeTab = idx
	e.tabBar.Active = idx
	e.gitGutter.Update(e.docs[idx].Buf.Path)
	e.updateStatus()

	if e.treeOpen && e.fileTree != nil {
		e.fileTree.SelectPath(e.docs[idx].Buf.Path)
	}
}

func (e *Editor) closeTab(idx int) {
	if idx < 0 || idx >= len(e.docs) {
		return
	}
	d := e.docs[idx]
	if d.Buf.Modified {
		name := filepath.Base(d.Buf.Path)
		if name == "." || name == "" {
			name = "untitled"
		}
		e.dialog = ui.NewSaveConfirmDialog(name)
		e.dialog.OnConfirm = func(answer rune) {
			switch answer {
			case 'y':
				d.Buf.SaveWithOptions(e.cfg.TrimTrailingSpace, e.cfg.InsertFinalNewline)
				d.Buf.ExternallyModified = false
				e.removeTab(idx)
			case 'n':
				e.removeTab(idx)
			case 'c':
				// keep the tab
			}
			e.dialog = nil
		}
		return
	}
	e.removeTab(idx)
}

func (e *Editor) removeTab(idx int) {
	if idx < 0 || idx >= len(e.docs) {
		return
	}
	d := e.docs[idx]
	d.Close()
	delete(e.views, d)
	e.highlight.Invalidate(d.Buf.Path)
	e.docs = append(e.docs[:idx], e.docs[idx+1:]...)
	e.tabBar.RemoveTab(idx)

	if e.previewTab == idx {
		e.previewTab = -1
	} else if e.previewTab > idx {
		e.previewTab--
	}

	if len(e.docs) == 0 {
		e.quit = true
		return
	}
	if e.activeTab >= len(e.docs) {
		e.activeTab = len(e.docs) - 1
	}
	e.tabBar.Active = e.activeTab
	e.updateStatus()
}

func (e *Editor) activeDoc() *doc.Document {
	if e.activeTab >= 0 && e.activeTab < len(e.docs) {
		return e.docs[e.activeTab]
	}
	return nil
}

func (e *Editor) activeView() *EditorView {
	d := e.activeDoc()
	if d == nil {
		return nil
	}
	return e.views[d]
}

// --- saving ---

func (e *Editor) saveCurrentFile() {
	d := e.activeDoc()
	if d == nil {
		return
	}
	if d.Buf.Path == "" {
		e.openSaveAsDialog()
		return
	}
	err := d.Buf.SaveWithOptions(e.cfg.TrimTrailingSpace, e.cfg.InsertFinalNewline)
	if err != nil {
		if os.IsPermission(err) {
			e.promptSudoSave(d, d.Buf.Path, nil)
			return
		}
		e.setTemporaryError("Error saving: " + err.Error())
	} else {
		e.onSaveSuccess(d, "Saved "+filepath.Base(d.Buf.Path))
	}
}

func (e *Editor) onSaveSuccess(d *doc.Document, message string) {
	e.setTemporaryMessage(message)
	d.Buf.ExternallyModified = false
	d.DidSave()
	e.tabBar.SetModified(e.activeTab, false)
	e.tabBar.SetExternallyModified(e.activeTab, false)
	e.cleanBackup(d.Buf.Path)
	e.gitGutter.Update(d.Buf.Path)
}

func (e *Editor) promptSudoSave(d *doc.Document, path string, onSuccess func()) {
	dlg := ui.NewInputDialog("sudo password: ")
	dlg.MaskInput = true
	dlg.OnSubmit = func(password string) {
		e.dialog = nil
		if password == "" {
			e.setTemporaryError("Save cancelled")
			return
		}
		if err := e.saveWithSudo(d.Buf, path, password); err != nil {
			e.setTemporaryError("Error saving with sudo: " + err.Error())
			return
		}
		e.onSaveSuccess(d, "Saved "+filepath.Base(path)+" (sudo)")
		if onSuccess != nil {
			onSuccess()
		}
	}
	dlg.OnCancel = func() { e.dialog = nil }
	e.dialog = dlg
}

func (e *Editor) saveWithSudo(buf *buffer.Buffer, path, password string) error {
	content := buf.BuildSaveContent(e.cfg.TrimTrailingSpace, e.cfg.InsertFinalNewline)

	cmd := exec.Command("sudo", "-S", "tee", path)
	cmd.Stdin = bytes.NewBufferString(password + "\n" + content)
	cmd.Stdout = io.Discard
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return err
		}
		return errors.New(msg)
	}

	buf.MarkSaved()
	buf.LastSaveTime = time.Now()
	return nil
}

// reloadDocument rebuilds the document from disk. The old document is
// closed and a fresh one opened: reload restarts synchronization from
// version 1 rather than pretending the disk content was an edit.
func (e *Editor) reloadDocument(idx int) {
	if idx < 0 || idx >= len(e.docs) {
		return
	}
	old := e.docs[idx]
	path := old.Buf.Path
	if path == "" {
		return
	}

	newBuf, err := buffer.NewBufferFromFile(path, e.cfg.TabSize)
	if err != nil {
		e.setTemporaryError("Error reloading: " + err.Error())
		return
	}
	newBuf.Language = old.Buf.Language
	e.applyFileSettings(newBuf)
	newBuf.Cursor = newBuf.Clamp(old.Buf.Cursor)

	view := e.views[old]
	old.Close()
	delete(e.views, old)
	e.highlight.Invalidate(path)

	nd := e.newDocument(newBuf)
	e.docs[idx] = nd
	e.views[nd] = view

	e.tabBar.SetModified(idx, false)
	e.tabBar.SetExternallyModified(idx, false)
	e.gitGutter.Update(path)
	e.setTemporaryMessage("Reloaded " + filepath.Base(path))
}

func (e *Editor) reloadFile() {
	d := e.activeDoc()
	if d == nil {
		return
	}
	if d.Buf.Path == "" {
		e.setTemporaryError("Cannot reload: no file path")
		return
	}
	if _, err := os.Stat(d.Buf.Path); os.IsNotExist(err) {
		e.setTemporaryError("Cannot reload: file doesn't exist on disk")
		return
	}

	if d.Buf.Modified {
		dlg := ui.NewReloadConfirmDialog(filepath.Base(d.Buf.Path))
		dlg.OnConfirm = func(answer rune) {
			e.dialog = nil
			if answer == 'y' {
				e.reloadDocument(e.activeTab)
			}
		}
		e.dialog = dlg
	} else {
		e.reloadDocument(e.activeTab)
	}
}

// --- language server actions ---

func (e *Editor) gotoDefinition() {
	d := e.activeDoc()
	if d == nil || d.Buf.Path == "" {
		return
	}
	if !d.RequestDefinition() {
		e.setTemporaryError("No language server for " + d.Buf.Language)
	}
}

func (e *Editor) showHoverInfo() {
	d := e.activeDoc()
	if d == nil || d.Buf.Path == "" {
		return
	}
	d.RequestHover()
}

func (e *Editor) triggerAutocomplete() {
	d := e.activeDoc()
	if d == nil || d.Buf.Path == "" {
		return
	}
	if !d.RequestCompletion() {
		e.setTemporaryMessage("No completions")
	}
}

func (e *Editor) formatDocument() {
	d := e.activeDoc()
	if d == nil || d.Buf.Path == "" {
		return
	}
	if !d.RequestFormatting() {
		e.setTemporaryError("No formatter for " + d.Buf.Language)
	}
}

func (e *Editor) renameSymbol() {
	d := e.activeDoc()
	if d == nil || d.Buf.Path == "" {
		return
	}
	word := d.Buf.WordAtCursor()
	if word == "" {
		e.setTemporaryError("No symbol under cursor")
		return
	}
	dlg := ui.NewInputDialog("Rename: ")
	dlg.Input = word
	dlg.Cursor = len([]rune(word))
	dlg.OnSubmit = func(newName string) {
		e.dialog = nil
		if newName == "" || newName == word {
			return
		}
		if !d.RequestRename(newName) {
			e.setTemporaryError("Rename not supported here")
		}
	}
	dlg.OnCancel = func() { e.dialog = nil }
	e.dialog = dlg
}

// --- layout and panels ---

func (e *Editor) toggleTerminal() {
	e.termOpen = !e.termOpen
	if e.termOpen && e.terminal == nil {
		_, _, w, h := e.termLayout()
		if h < 3 {
			h = 3
		}
		if w < 10 {
			w = 10
		}
		e.terminal = ui.NewTerminal(e.screen, e.cfg.Shell, h-1, w)
	}
	if e.termOpen {
		e.focusTarget = "terminal"
	} else {
		e.focusTarget = "editor"
	}
	e.updateFocus()
}

func (e *Editor) toggleTree() {
	e.treeOpen = !e.treeOpen
	if !e.treeOpen && e.focusTarget == "tree" {
		e.focusTarget = "editor"
	}
	e.updateFocus()
}

func (e *Editor) toggleTreeFocus() {
	if !e.treeOpen {
		e.treeOpen = true
		e.focusTarget = "tree"
	} else if e.focusTarget == "tree" {
		e.focusTarget = "editor"
	} else {
		e.focusTarget = "tree"
	}
	e.updateFocus()
}

func (e *Editor) adjustTerminalHeight(delta float64) {
	newRatio := e.termRatio + delta
	if newRatio < 0.10 {
		newRatio = 0.10
	} else if newRatio > 1.0 {
		newRatio = 1.0
	}
	e.termRatio = newRatio
	e.cfg.TermRatio = newRatio

	if e.terminal != nil {
		_, _, termW, termH := e.termLayout()
		if termW > 0 && termH > 1 {
			e.terminal.Resize(termH-1, termW)
		}
	}

	e.cfg.Save()
}

func (e *Editor) adjustTreeWidth(delta int) {
	newWidth := e.treeWidth + delta
	w, _ := e.screen.Size()
	maxWidth := w / 2

	if newWidth < 16 {
		newWidth = 16
	} else if newWidth > maxWidth {
		newWidth = maxWidth
	}

	e.treeWidth = newWidth
	e.cfg.TreeWidth = newWidth
	e.cfg.Save()
}

func (e *Editor) updateFocus() {
	if e.fileTree != nil {
		e.fileTree.SetFocused(e.focusTarget == "tree")
	}
	if e.terminal != nil {
		e.terminal.SetFocused(e.focusTarget == "terminal")
	}
}

// applyFileSettings applies per-language defaults and .editorconfig to a buffer.
func (e *Editor) applyFileSettings(buf *buffer.Buffer) {
	buf.TabSize = e.cfg.LanguageTabSize(buf.Language)
	buf.UseTabs = e.cfg.LanguageUseTabs(buf.Language)
	buf.AutoCloseEnabled = e.cfg.AutoClose

	if buf.Path != "" {
		if ec := config.FindEditorConfig(buf.Path); ec != nil {
			if ec.IndentSize > 0 {
				buf.TabSize = ec.IndentSize
			}
			if ec.TabWidth > 0 {
				buf.TabSize = ec.TabWidth
			}
			if ec.IndentStyle == "tab" {
				buf.UseTabs = true
			} else if ec.IndentStyle == "space" {
				buf.UseTabs = false
			}
			if ec.EndOfLine == "crlf" {
				buf.LineEnding = "CRLF"
			} else if ec.EndOfLine == "lf" {
				buf.LineEnding = "LF"
			}
		}
	}
}

func (e *Editor) updateStatus() {
	d := e.activeDoc()
	if d == nil {
		return
	}
	buf := d.Buf
	e.statusBar.Filename = filepath.Base(buf.Path)
	if e.statusBar.Filename == "." {
		e.statusBar.Filename = "untitled"
	}
	e.statusBar.Line = buf.Cursor.Line
	e.statusBar.Col = buf.Cursor.Col
	e.statusBar.Language = buf.Language
	e.statusBar.LineEnd = buf.LineEnding
	e.statusBar.Encoding = buf.Encoding
	if e.statusBar.Encoding == "" {
		e.statusBar.Encoding = "UTF-8"
	}
	if e.focusTarget == "terminal" {
		e.statusBar.Mode = "TERM"
	} else {
		e.statusBar.Mode = "EDIT"
	}
	e.statusBar.Sync = d.Status().String()

	if buf.Selection != nil && !buf.Selection.Empty() {
		text := buf.SelectedText()
		e.statusBar.SelChars = len([]rune(text))
		e.statusBar.SelLines = buf.Selection.End.Line - buf.Selection.Start.Line + 1
	} else {
		e.statusBar.SelChars = 0
		e.statusBar.SelLines = 0
	}

	e.statusBar.DiagErrors, e.statusBar.DiagWarnings = d.Tracker.DiagnosticCounts()

	// Surface the worst diagnostic on the cursor line when no message is up.
	if e.statusBar.Message == "" {
		if diag, ok := d.Tracker.WorstOn(buf.Cursor.Line); ok {
			prefix := "ⓘ"
			switch diag.Severity {
			case 1:
				prefix = "● Error"
			case 2:
				prefix = "▲ Warning"
			}
			src := ""
			if diag.Source != "" {
				src = " [" + diag.Source + "]"
			}
			e.statusBar.Message = prefix + ": " + diag.Message + src
		}
	}

	if buf.UseTabs {
		e.statusBar.TabInfo = "Tabs"
	} else {
		e.statusBar.TabInfo = fmt.Sprintf("Spaces: %d", buf.TabSize)
	}
}

// Layout helpers

func (e *Editor) treeLeft() int {
	if e.treeOpen {
		return e.treeWidth
	}
	return 0
}

func (e *Editor) termLayout() (x, y, w, h int) {
	screenW, screenH := e.screen.Size()
	left := e.treeLeft()
	w = screenW - left
	h = int(float64(screenH-2) * e.termRatio)
	if h < 3 {
		h = 3
	}
	x = left
	y = screenH - 1 - h
	return
}

func (e *Editor) editorLayout() (x, y, w, h int) {
	screenW, screenH := e.screen.Size()
	left := e.treeLeft()
	x = left
	y = 1
	w = screenW - left
	h = screenH - 2
	if e.termOpen {
		_, termY, _, _ := e.termLayout()
		h = termY - y
	}
	return
}

// setTemporaryMessage sets a message that auto-clears after 5 seconds.
func (e *Editor) setTemporaryMessage(msg string) {
	e.statusBar.Message = msg
	e.statusMessageTime = time.Now()
	e.statusMessageIsError = false
}

func (e *Editor) setTemporaryError(msg string) {
	e.statusBar.Message = msg
	e.statusMessageTime = time.Now()
	e.statusMessageIsError = true
}

func (e *Editor) clearExpiredMessages() {
	if !e.statusMessageTime.IsZero() && time.Since(e.statusMessageTime) > 5*time.Second {
		e.statusBar.Message = ""
		e.statusMessageTime = time.Time{}
		e.statusMessageIsError = false
	}
}

func (e *Editor) commentString() string {
	d := e.activeDoc()
	if d == nil {
		return "//"
	}
	lang := strings.ToLower(d.Buf.Language)
	switch lang {
	case "python", "ruby", "perl", "bash", "shell", "sh", "zsh", "fish",
		"yaml", "toml", "r", "julia", "elixir", "nim", "tcl", "conf", "cfg",
		"ini", "dockerfile", "makefile", "cmake":
		return "#"
	case "lua", "haskell", "sql", "ada", "applescript", "vhdl", "verilog":
		return "--"
	case "lisp", "scheme", "clojure", "racket", "elisp":
		return ";"
	case "vim":
		return "\""
	case "html", "xml", "svg":
		return "<!--"
	case "css", "scss", "sass", "less":
		return "/*"
	default:
		return "//"
	}
}
