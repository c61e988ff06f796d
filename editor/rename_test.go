package editor

import (
	"testing"

	"vex/buffer"
	"vex/config"
	"vex/doc"
	"vex/lsp"
	"vex/ui"
)

func renameTestDoc(t *testing.T, e *Editor, path, content string) *doc.Document {
	t.Helper()
	b := buffer.NewBuffer(4)
	b.Path = path
	b.Language = "Go"
	b.Lines = []buffer.Line{buffer.NewLine(content)}
	d := doc.New(b, e.highlight, e.log)
	e.docs = append(e.docs, d)
	e.views[d] = &EditorView{}
	return d
}

func commitInsertAt(t *testing.T, d *doc.Document, col int, text string) {
	t.Helper()
	op, err := d.Buf.Insert(buffer.Position{Line: 0, Col: col}, text)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	d.Commit([]buffer.EditOp{op})
}

func TestWorkspaceEditRebasesEachDocumentFromItsOwnHistory(t *testing.T) {
	e := New(config.Default(), nil)
	e.statusBar = ui.NewStatusBar()
	e.tabBar = ui.NewTabBar()
	origin := renameTestDoc(t, e, "/tmp/origin.go", "old := 1")
	sibling := renameTestDoc(t, e, "/tmp/sibling.go", "use(old)")
	e.activeTab = 0

	// The sibling was edited before the rename ever went out; its version
	// counter runs ahead of the origin's.
	commitInsertAt(t, sibling, 0, "//") // sibling version 2: "//use(old)"

	atVersion := origin.Buf.Version // rename issued here, version 1

	// Origin keeps typing while the request is in flight.
	commitInsertAt(t, origin, 0, "xx") // origin version 2: "xxold := 1"

	// Server edits: origin range against version 1 content, sibling range
	// against its current content.
	we := &lsp.WorkspaceEdit{Changes: map[string][]lsp.TextEdit{
		origin.URI: {{
			Range:   lsp.Range{Start: lsp.Position{Line: 0, Character: 0}, End: lsp.Position{Line: 0, Character: 3}},
			NewText: "count",
		}},
		sibling.URI: {{
			Range:   lsp.Range{Start: lsp.Position{Line: 0, Character: 6}, End: lsp.Position{Line: 0, Character: 9}},
			NewText: "count",
		}},
	}}

	e.applyWorkspaceEdit(origin, we, atVersion)

	if got := origin.Buf.Text(); got != "xxcount := 1" {
		t.Fatalf("origin edit must re-base through its journal, got %q", got)
	}
	// Transforming the sibling's range through the origin's version window
	// would shift it onto the wrong text.
	if got := sibling.Buf.Text(); got != "//use(count)" {
		t.Fatalf("sibling edit must apply against its own version, got %q", got)
	}
}
