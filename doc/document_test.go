package doc

import (
	"bufio"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"testing"
	"time"

	"vex/buffer"
	"vex/highlight"
	"vex/lsp"
)

func newDoc(t *testing.T, lines ...string) *Document {
	t.Helper()
	b := buffer.NewBuffer(4)
	b.Path = "/tmp/example.go"
	b.Language = "Go"
	b.Lines = make([]buffer.Line, len(lines))
	for i, s := range lines {
		b.Lines[i] = buffer.NewLine(s)
	}
	return New(b, highlight.New(), nil)
}

func commitInsert(t *testing.T, d *Document, line, col int, text string) {
	t.Helper()
	op, err := d.Buf.Insert(buffer.Position{Line: line, Col: col}, text)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	d.Commit([]buffer.EditOp{op})
}

func commitDelete(t *testing.T, d *Document, r buffer.Range) {
	t.Helper()
	op, err := d.Buf.Delete(r)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	d.Commit([]buffer.EditOp{op})
}

func versionPtr(v int) *int { return &v }

func TestCommitBumpsVersionPerEdit(t *testing.T) {
	d := newDoc(t, "hello")
	if d.Buf.Version != 1 {
		t.Fatalf("fresh document must be version 1, got %d", d.Buf.Version)
	}
	commitInsert(t, d, 0, 0, "a")
	commitInsert(t, d, 0, 1, "b")
	if d.Buf.Version != 3 {
		t.Fatalf("expected version 3 after two edits, got %d", d.Buf.Version)
	}
	if d.Journal.Latest() != 3 {
		t.Fatalf("journal must track versions, got %d", d.Journal.Latest())
	}
	if d.Tracker.Version() != 3 {
		t.Fatalf("tracker must follow commits, got %d", d.Tracker.Version())
	}
}

func TestCommitBeforeAttachQueuesNoWireChanges(t *testing.T) {
	d := newDoc(t, "hello")
	for i := 0; i < 200; i++ {
		commitInsert(t, d, 0, 0, "x")
	}
	// didOpen ships full content on attach, so edits made before a
	// server holds the document must not accumulate a wire queue.
	if d.PendingEdits() != 0 {
		t.Fatalf("unattached document queued %d wire changes", d.PendingEdits())
	}
	if d.Status() != StatusUnsynced {
		t.Fatalf("expected unsynced, got %v", d.Status())
	}
	if d.Buf.Version != 201 {
		t.Fatalf("local history must still advance, got version %d", d.Buf.Version)
	}
}

func TestStaleDiagnosticsTransformForward(t *testing.T) {
	d := newDoc(t, "cnsole.log(x)")

	// Server computed against version 1; user typed before it arrived.
	commitInsert(t, d, 0, 1, "o") // version 2

	d.IntegrateDiagnostics(lsp.PublishDiagnosticsParams{
		URI:     d.URI,
		Version: versionPtr(1),
		Diagnostics: []lsp.Diagnostic{{
			Range: lsp.Range{
				Start: lsp.Position{Line: 0, Character: 5},
				End:   lsp.Position{Line: 0, Character: 8},
			},
			Severity: 1,
			Message:  "unknown name",
		}},
	})

	ds := d.Tracker.DiagnosticsOn(0)
	if len(ds) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(ds))
	}
	if ds[0].Col != 6 || ds[0].Len != 3 {
		t.Fatalf("expected diagnostic at col 6 len 3, got col %d len %d", ds[0].Col, ds[0].Len)
	}
}

func TestStaleDiagnosticOnEditedSpanIsDropped(t *testing.T) {
	d := newDoc(t, "abcdefgh")

	commitDelete(t, d, buffer.Range{
		Start: buffer.Position{Line: 0, Col: 2},
		End:   buffer.Position{Line: 0, Col: 6},
	}) // version 2

	d.IntegrateDiagnostics(lsp.PublishDiagnosticsParams{
		URI:     d.URI,
		Version: versionPtr(1),
		Diagnostics: []lsp.Diagnostic{{
			Range: lsp.Range{
				Start: lsp.Position{Line: 0, Character: 3},
				End:   lsp.Position{Line: 0, Character: 5},
			},
			Severity: 1,
			Message:  "inside deleted text",
		}},
	})

	if errs, _ := d.Tracker.DiagnosticCounts(); errs != 0 {
		t.Fatalf("diagnostic inside deleted span must be dropped, have %d", errs)
	}
}

func TestDiagnosticsWithSurrogatePairsResolveToRuneCols(t *testing.T) {
	// One emoji before the flagged identifier: wire char 3, rune col 2.
	d := newDoc(t, "\U0001F600 name")

	d.IntegrateDiagnostics(lsp.PublishDiagnosticsParams{
		URI: d.URI,
		Diagnostics: []lsp.Diagnostic{{
			Range: lsp.Range{
				Start: lsp.Position{Line: 0, Character: 3},
				End:   lsp.Position{Line: 0, Character: 7},
			},
			Severity: 2,
			Message:  "unused",
		}},
	})

	ds := d.Tracker.DiagnosticsOn(0)
	if len(ds) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(ds))
	}
	if ds[0].Col != 2 || ds[0].Len != 4 {
		t.Fatalf("expected rune col 2 len 4, got col %d len %d", ds[0].Col, ds[0].Len)
	}
}

func TestMultiLineDiagnosticPinsToStartLine(t *testing.T) {
	d := newDoc(t, "func broken(", "", "}")

	d.IntegrateDiagnostics(lsp.PublishDiagnosticsParams{
		URI: d.URI,
		Diagnostics: []lsp.Diagnostic{{
			Range: lsp.Range{
				Start: lsp.Position{Line: 0, Character: 0},
				End:   lsp.Position{Line: 2, Character: 1},
			},
			Severity: 1,
			Message:  "syntax error",
		}},
	})

	ds := d.Tracker.DiagnosticsOn(0)
	if len(ds) != 1 || !ds[0].WholeLine {
		t.Fatalf("expected whole-line diagnostic on start line, got %+v", ds)
	}
}

func TestSemanticTokensTransformAcrossConcurrentEdit(t *testing.T) {
	d := newDoc(t, "let name = value")

	legend := lsp.SemanticTokensLegend{TokenTypes: []string{"variable"}}
	// Tokens computed against version 1: "name" at char 4, "value" at 11.
	data := []uint32{
		0, 4, 4, 0, 0,
		0, 7, 5, 0, 0,
	}

	commitInsert(t, d, 0, 0, "xx") // version 2, shifts everything right

	d.IntegrateSemanticTokens(lsp.SemanticTokens{Data: data}, 1, legend)

	toks := d.Tracker.TokensOn(0)
	if len(toks) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(toks))
	}
	if toks[0].Col != 6 && toks[1].Col != 6 {
		t.Fatalf("expected a token shifted to col 6, got %+v", toks)
	}
}

func TestEmptyTokenRefreshKeepsCacheWarm(t *testing.T) {
	d := newDoc(t, "let x = 1")
	legend := lsp.SemanticTokensLegend{TokenTypes: []string{"variable"}}

	d.Viewport(0, 1)
	warm := d.Cache.Recomputes()

	d.IntegrateSemanticTokens(lsp.SemanticTokens{}, 1, legend)
	d.Viewport(0, 1)
	if got := d.Cache.Recomputes(); got != warm {
		t.Fatalf("empty set over empty tracker must not recompose, recomputes %d -> %d", warm, got)
	}

	d.IntegrateSemanticTokens(lsp.SemanticTokens{Data: []uint32{0, 4, 1, 0, 0}}, 1, legend)
	d.Viewport(0, 1)
	if d.Cache.Recomputes() == warm {
		t.Fatal("installing real tokens must recompose the viewport")
	}
}

func TestLocalOnlyClearsServerState(t *testing.T) {
	d := newDoc(t, "content")
	d.status = StatusSynced

	d.IntegrateDiagnostics(lsp.PublishDiagnosticsParams{
		URI: d.URI,
		Diagnostics: []lsp.Diagnostic{{
			Range:    lsp.Range{Start: lsp.Position{Line: 0, Character: 0}, End: lsp.Position{Line: 0, Character: 3}},
			Severity: 1, Message: "x",
		}},
	})
	if errs, _ := d.Tracker.DiagnosticCounts(); errs != 1 {
		t.Fatalf("setup: expected 1 error, got %d", errs)
	}

	d.ServerDown()

	if d.Status() != StatusLocalOnly {
		t.Fatalf("expected local-only, got %v", d.Status())
	}
	if errs, _ := d.Tracker.DiagnosticCounts(); errs != 0 {
		t.Fatal("local-only must clear diagnostics")
	}
	if d.RequestCompletion() || d.RequestHover() {
		t.Fatal("local-only document must not issue requests")
	}

	// Late-arriving messages are ignored.
	d.IntegrateDiagnostics(lsp.PublishDiagnosticsParams{
		URI: d.URI,
		Diagnostics: []lsp.Diagnostic{{
			Range:    lsp.Range{Start: lsp.Position{Line: 0, Character: 0}, End: lsp.Position{Line: 0, Character: 3}},
			Severity: 1, Message: "late",
		}},
	})
	if errs, _ := d.Tracker.DiagnosticCounts(); errs != 0 {
		t.Fatal("local-only must ignore late diagnostics")
	}
}

func TestTransformWireRangeDiscardsPrunedHistory(t *testing.T) {
	d := newDoc(t, "text")
	d.Journal.Prune(0)
	commitInsert(t, d, 0, 0, "a") // 2

	if _, ok := d.TransformWireRange(lsp.Range{}, 1); !ok {
		t.Fatal("reachable history must transform")
	}
	// Far older than anything retained.
	d.Journal.Prune(2)
	commitInsert(t, d, 0, 0, "b") // 3
	if _, ok := d.TransformWireRange(lsp.Range{}, 1); ok {
		t.Fatal("results older than retained history must be discarded")
	}
}

// --- Flush behavior against a scripted server ---

type frameReader struct {
	in *bufio.Reader
}

func (f *frameReader) next(t *testing.T) map[string]interface{} {
	t.Helper()
	var length int
	for {
		header, err := f.in.ReadString('\n')
		if err != nil {
			t.Fatalf("read header: %v", err)
		}
		header = strings.TrimSpace(header)
		if strings.HasPrefix(header, "Content-Length:") {
			length, _ = strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(header, "Content-Length:")))
		}
		if header == "" {
			break
		}
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(f.in, body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	var msg map[string]interface{}
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return msg
}

func attachedDoc(t *testing.T, caps lsp.ServerCapabilities, lines ...string) (*Document, *frameReader, *lsp.Inbox) {
	t.Helper()
	clientIn, serverOut := io.Pipe()
	serverIn, clientOut := io.Pipe()
	t.Cleanup(func() {
		serverOut.Close()
		serverIn.Close()
	})

	inbox := lsp.NewInbox(0, nil)
	session := lsp.NewSessionFromTransport("Go", caps, inbox, nil, clientIn, clientOut)

	d := newDoc(t, lines...)
	reader := &frameReader{in: bufio.NewReader(serverIn)}
	done := make(chan struct{})
	go func() {
		// Attach sends didOpen and a token request; consume both.
		for i := 0; i < 2; i++ {
			reader.next(t)
		}
		close(done)
	}()
	d.Attach(session)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("attach handshake not consumed")
	}
	return d, reader, inbox
}

func fullCaps() lsp.ServerCapabilities {
	return lsp.ServerCapabilities{
		TextDocumentSync: json.RawMessage(`2`),
		SemanticTokensProvider: &lsp.SemanticTokensOptions{
			Legend: lsp.SemanticTokensLegend{TokenTypes: []string{"variable"}},
		},
	}
}

func TestFlushBatchesFrameEditsIntoOneDidChange(t *testing.T) {
	d, reader, _ := attachedDoc(t, fullCaps(), "hello")

	commitInsert(t, d, 0, 5, "!")
	commitInsert(t, d, 0, 0, "x")
	if d.Status() != StatusDirtyPending {
		t.Fatalf("expected pending after commits, got %v", d.Status())
	}
	if d.PendingEdits() != 2 {
		t.Fatalf("expected 2 pending edits, got %d", d.PendingEdits())
	}

	// Flush writes the didChange, cancels the attach-time token request,
	// then issues a fresh one: three frames.
	msgs := make(chan map[string]interface{}, 3)
	go func() {
		for i := 0; i < 3; i++ {
			msgs <- reader.next(t)
		}
	}()

	d.FlushChanges()

	var didChange map[string]interface{}
	select {
	case didChange = <-msgs:
	case <-time.After(2 * time.Second):
		t.Fatal("didChange never sent")
	}
	if didChange["method"] != "textDocument/didChange" {
		t.Fatalf("expected didChange, got %v", didChange["method"])
	}
	params := didChange["params"].(map[string]interface{})
	changes := params["contentChanges"].([]interface{})
	if len(changes) != 2 {
		t.Fatalf("both edits must ride one notification, got %d", len(changes))
	}
	version := params["textDocument"].(map[string]interface{})["version"]
	if version != float64(3) {
		t.Fatalf("didChange must carry the latest version, got %v", version)
	}
	if d.Status() != StatusSynced {
		t.Fatalf("expected synced after flush, got %v", d.Status())
	}

	sawCancel, sawRefresh := false, false
	for i := 0; i < 2; i++ {
		select {
		case msg := <-msgs:
			switch msg["method"] {
			case "$/cancelRequest":
				sawCancel = true
			case "textDocument/semanticTokens/full":
				sawRefresh = true
			default:
				t.Fatalf("unexpected frame after flush: %v", msg["method"])
			}
		case <-time.After(2 * time.Second):
			t.Fatal("token refresh never sent")
		}
	}
	if !sawCancel || !sawRefresh {
		t.Fatalf("expected superseding cancel and token refresh, got cancel=%v refresh=%v", sawCancel, sawRefresh)
	}
}

func TestTypingRunCoalescesIntoOneContentChange(t *testing.T) {
	d, reader, _ := attachedDoc(t, fullCaps(), "hello")

	// Consecutive same-line insertions, each continuing where the
	// previous one ended.
	commitInsert(t, d, 0, 5, " ")
	commitInsert(t, d, 0, 6, "w")
	commitInsert(t, d, 0, 7, "o")
	if d.PendingEdits() != 3 {
		t.Fatalf("expected 3 pending edits, got %d", d.PendingEdits())
	}

	msgs := make(chan map[string]interface{}, 1)
	go func() { msgs <- reader.next(t) }()
	d.FlushChanges()

	var didChange map[string]interface{}
	select {
	case didChange = <-msgs:
	case <-time.After(2 * time.Second):
		t.Fatal("didChange never sent")
	}
	params := didChange["params"].(map[string]interface{})
	changes := params["contentChanges"].([]interface{})
	if len(changes) != 1 {
		t.Fatalf("typing run must collapse to one change, got %d", len(changes))
	}
	if text := changes[0].(map[string]interface{})["text"]; text != " wo" {
		t.Fatalf("expected merged text %q, got %q", " wo", text)
	}
	version := params["textDocument"].(map[string]interface{})["version"]
	if version != float64(4) {
		t.Fatalf("merged change must still carry the latest version, got %v", version)
	}
}

// wireOffset converts a UTF-16 line/character position to a byte offset
// in text, the way a server addressing the document would.
func wireOffset(t *testing.T, text string, p buffer.WirePosition) int {
	t.Helper()
	lines := strings.Split(text, "\n")
	if p.Line >= len(lines) {
		t.Fatalf("wire line %d beyond %d lines", p.Line, len(lines))
	}
	off := 0
	for i := 0; i < p.Line; i++ {
		off += len(lines[i]) + 1
	}
	u := 0
	for i, r := range lines[p.Line] {
		if u == p.Character {
			return off + i
		}
		u++
		if r > 0xFFFF {
			u++
		}
	}
	if u < p.Character {
		t.Fatalf("wire character %d beyond end of line %d", p.Character, p.Line)
	}
	return off + len(lines[p.Line])
}

func TestJournalWireChangesReplayToBufferText(t *testing.T) {
	d := newDoc(t, "héllo 😀 world", "second line")
	shadow := d.Buf.Text()

	commitInsert(t, d, 0, 0, "naïve ")
	commitDelete(t, d, buffer.Range{
		Start: buffer.Position{Line: 0, Col: 8},
		End:   buffer.Position{Line: 0, Col: 10},
	})
	commitInsert(t, d, 1, 0, "x\ny ")
	op, err := d.Buf.Replace(buffer.Range{
		Start: buffer.Position{Line: 0, Col: 10},
		End:   buffer.Position{Line: 0, Col: 11},
	}, "☺")
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	d.Commit([]buffer.EditOp{op})

	// Replay the journal's wire descriptions against an untouched copy
	// of the original text; the copy must land on the buffer's content.
	entries, ok := d.Journal.Since(1)
	if !ok {
		t.Fatal("history must reach back to version 1")
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	for _, e := range entries {
		start := wireOffset(t, shadow, e.Op.Wire.Start)
		end := wireOffset(t, shadow, e.Op.Wire.End)
		shadow = shadow[:start] + e.Op.Text + shadow[end:]
	}
	if shadow != d.Buf.Text() {
		t.Fatalf("wire replay diverged:\nreplayed: %q\nbuffer:   %q", shadow, d.Buf.Text())
	}
}

func TestFlushWithoutEditsSendsNothing(t *testing.T) {
	d, reader, _ := attachedDoc(t, fullCaps(), "hello")

	d.FlushChanges()

	// Prove silence by making noise afterwards and seeing it first.
	go func() {
		commitInsert(t, d, 0, 0, "x")
		d.FlushChanges()
	}()

	msg := reader.next(t)
	if msg["method"] != "textDocument/didChange" {
		t.Fatalf("empty flush must not write, first message was %v", msg["method"])
	}
}
