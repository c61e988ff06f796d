package doc

import (
	"encoding/json"
	"log/slog"

	"vex/anchors"
	"vex/buffer"
	"vex/highlight"
	"vex/journal"
	"vex/lsp"
	"vex/render"
)

// SyncStatus describes how far a document's server view lags its buffer.
type SyncStatus int

const (
	// StatusUnsynced: no language server is attached.
	StatusUnsynced SyncStatus = iota
	// StatusAwaitingFullSync: didOpen is out, nothing heard back yet.
	StatusAwaitingFullSync
	// StatusSynced: every committed edit has been shipped.
	StatusSynced
	// StatusDirtyPending: edits are queued for the next flush.
	StatusDirtyPending
	// StatusLocalOnly: the server died. Terminal until the file is reopened.
	StatusLocalOnly
)

func (s SyncStatus) String() string {
	switch s {
	case StatusUnsynced:
		return "no server"
	case StatusAwaitingFullSync:
		return "syncing"
	case StatusSynced:
		return "synced"
	case StatusDirtyPending:
		return "pending"
	case StatusLocalOnly:
		return "local only"
	}
	return "unknown"
}

// Document couples one buffer with everything that must stay consistent
// with it: the edit journal, the anchored annotations, the render cache
// and the language server's view of the content. All methods run on the
// UI goroutine; inbound server traffic arrives pre-serialized through
// Integrate.
type Document struct {
	Buf     *buffer.Buffer
	Journal *journal.Journal
	Tracker *anchors.Tracker
	Cache   *render.Cache
	URI     string

	hi      *highlight.Highlighter
	session *lsp.Session
	log     *slog.Logger

	status     SyncStatus
	pending    []lsp.ContentChange
	lastQueued buffer.EditOp // tail of pending, for coalescing
	dirty      int           // committed edits not yet flushed
}

func wireChange(op buffer.EditOp) lsp.ContentChange {
	return lsp.ContentChange{
		Range: &lsp.Range{
			Start: lsp.Position{Line: op.Wire.Start.Line, Character: op.Wire.Start.Character},
			End:   lsp.Position{Line: op.Wire.End.Line, Character: op.Wire.End.Character},
		},
		Text: op.Text,
	}
}

func New(buf *buffer.Buffer, hi *highlight.Highlighter, log *slog.Logger) *Document {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	buf.Version = 1
	return &Document{
		Buf:     buf,
		Journal: journal.New(0),
		Tracker: anchors.NewTracker(buf.Version),
		Cache:   render.NewCache(),
		URI:     lsp.FileURI(buf.Path),
		hi:      hi,
		log:     log,
		status:  StatusUnsynced,
	}
}

func (d *Document) Status() SyncStatus { return d.status }

// PendingEdits returns how many committed edits await the next flush.
func (d *Document) PendingEdits() int { return d.dirty }

// Attach opens the document on a language server session.
func (d *Document) Attach(s *lsp.Session) {
	if s == nil || d.status == StatusLocalOnly {
		return
	}
	d.session = s
	if err := s.DidOpen(d.URI, lsp.LanguageID(d.Buf.Language), d.Buf.Version, d.Buf.Text()); err != nil {
		d.setLocalOnly()
		return
	}
	d.status = StatusAwaitingFullSync
	s.SemanticTokens(d.URI, d.Buf.Version)
}

// Commit records edits that were already applied to the buffer: one
// version per edit, a journal entry each, anchors transformed, the render
// cache adjusted, and the wire-format change queued for the next flush.
func (d *Document) Commit(ops []buffer.EditOp) {
	for _, op := range ops {
		d.Buf.Version++
		d.Journal.Append(op, d.Buf.Version)
		entries, _ := d.Journal.Since(d.Buf.Version - 1)
		if err := d.Tracker.Apply(entries); err != nil {
			// Should be unreachable; resynchronize rather than render skew.
			d.log.Error("anchor replay failed", "uri", d.URI, "err", err)
			d.Tracker = anchors.NewTracker(d.Buf.Version)
			d.Cache.InvalidateAll()
		}
		d.Cache.ApplyEdit(op.Range.Start.Line, op.Range.End.Line, op.LineDelta())

		// Queue the wire change only while a server holds a view of the
		// document; didOpen ships full content on attach, so anything
		// queued before that would be both wrong and unbounded. Typing
		// runs collapse into the previous queued change.
		if d.live() {
			if merged, ok := journal.Coalesce(d.lastQueued, op); ok && len(d.pending) > 0 {
				d.pending[len(d.pending)-1] = wireChange(merged)
				d.lastQueued = merged
			} else {
				d.pending = append(d.pending, wireChange(op))
				d.lastQueued = op
			}
			d.dirty++
		}
	}
	if len(ops) > 0 && d.live() {
		d.status = StatusDirtyPending
	}
}

// FlushChanges ships all queued edits as one didChange carrying the
// latest version, then refreshes semantic tokens. Called once per frame;
// a typing burst inside a frame costs a single notification.
func (d *Document) FlushChanges() {
	if len(d.pending) == 0 || !d.live() {
		return
	}
	changes := d.pending
	d.pending = nil
	d.lastQueued = buffer.EditOp{}
	d.dirty = 0

	if err := d.session.DidChange(d.URI, d.Buf.Version, changes, d.Buf.Text); err != nil {
		d.setLocalOnly()
		return
	}
	d.status = StatusSynced
	d.session.SemanticTokens(d.URI, d.Buf.Version)
	d.Journal.Prune(d.Buf.Version - journal.DefaultCapacity)
}

func (d *Document) live() bool {
	return d.session != nil && d.status != StatusLocalOnly && d.status != StatusUnsynced
}

// setLocalOnly drops the document out of synchronization permanently.
// Server-derived state is cleared so nothing stale lingers on screen.
func (d *Document) setLocalOnly() {
	d.status = StatusLocalOnly
	d.session = nil
	d.pending = nil
	d.lastQueued = buffer.EditOp{}
	d.dirty = 0
	d.Tracker.Clear()
	d.Cache.InvalidateAll()
}

// ServerDown is called when the transport for this document's language
// failed.
func (d *Document) ServerDown() {
	if d.status != StatusUnsynced {
		d.setLocalOnly()
	}
}

// Close tells the server the document went away.
func (d *Document) Close() {
	if d.live() {
		d.session.DidClose(d.URI)
	}
	d.session = nil
}

// DidSave forwards a save notification.
func (d *Document) DidSave() {
	if d.live() {
		d.session.DidSave(d.URI)
	}
}

// --- Inbound integration ---

// IntegrateDiagnostics installs a published diagnostic set. Sets computed
// against an older version are transformed forward in wire space through
// the journal; when history no longer reaches back, the set is discarded
// and the previous one stays.
func (d *Document) IntegrateDiagnostics(p lsp.PublishDiagnosticsParams) {
	if d.status == StatusLocalOnly {
		return
	}
	if d.status == StatusAwaitingFullSync {
		d.status = StatusSynced
		if d.dirty > 0 {
			d.status = StatusDirtyPending
		}
	}

	atVersion := d.Buf.Version
	if p.Version != nil {
		atVersion = *p.Version
	}
	entries, ok := d.Journal.Since(atVersion)
	if !ok {
		d.log.Warn("diagnostics too old to transform", "uri", d.URI, "version", atVersion)
		return
	}

	touched := make(map[int]bool)
	for _, ds := range d.Tracker.Diagnostics() {
		for _, old := range ds {
			touched[old.Line] = true
		}
	}

	var fresh []anchors.Diagnostic
	for _, wd := range p.Diagnostics {
		diag, ok := d.resolveDiagnostic(wd, entries)
		if !ok {
			continue
		}
		fresh = append(fresh, diag)
		touched[diag.Line] = true
	}

	d.Tracker.SetDiagnostics(fresh, d.Buf.Version, d.Journal)
	lines := make([]int, 0, len(touched))
	for line := range touched {
		lines = append(lines, line)
	}
	d.Cache.InvalidateLines(lines)
}

// resolveDiagnostic transforms one wire diagnostic forward through the
// journal and converts it to rune coordinates against current content.
func (d *Document) resolveDiagnostic(wd lsp.Diagnostic, entries []journal.Entry) (anchors.Diagnostic, bool) {
	start := buffer.Position{Line: wd.Range.Start.Line, Col: wd.Range.Start.Character}
	end := buffer.Position{Line: wd.Range.End.Line, Col: wd.Range.End.Character}

	for _, e := range entries {
		var ok bool
		start, end, ok = anchors.TransformRange(start, end, e.WireSpan())
		if !ok {
			return anchors.Diagnostic{}, false
		}
	}

	diag := anchors.Diagnostic{
		Severity: anchors.Severity(wd.Severity),
		Message:  wd.Message,
		Source:   wd.Source,
		Code:     codeString(wd.Code),
	}
	if start.Line != end.Line {
		diag.WholeLine = true
		diag.Anchor = anchors.Anchor{Line: start.Line}
		return diag, start.Line < d.Buf.LineCount()
	}

	rs := d.Buf.WireToPos(buffer.WirePosition{Line: start.Line, Character: start.Col})
	re := d.Buf.WireToPos(buffer.WirePosition{Line: end.Line, Character: end.Col})
	if rs.Line != start.Line {
		return anchors.Diagnostic{}, false
	}
	diag.Anchor = anchors.Anchor{Line: rs.Line, Col: rs.Col, Len: re.Col - rs.Col}
	return diag, true
}

// codeString renders a diagnostic code, which servers send as either a
// string or a number.
func codeString(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// IntegrateSemanticTokens installs a full token set from a response tagged
// with the version it was requested at.
func (d *Document) IntegrateSemanticTokens(result lsp.SemanticTokens, atVersion int, legend lsp.SemanticTokensLegend) {
	if d.status == StatusLocalOnly {
		return
	}
	if d.status == StatusAwaitingFullSync {
		d.status = StatusSynced
		if d.dirty > 0 {
			d.status = StatusDirtyPending
		}
	}

	entries, ok := d.Journal.Since(atVersion)
	if !ok {
		// Too stale to reconcile; ask again against current content.
		if d.live() {
			d.session.SemanticTokens(d.URI, d.Buf.Version)
		}
		return
	}

	spans := lsp.DecodeSemanticTokens(result.Data, legend)
	tokens := make([]anchors.Token, 0, len(spans))
	for _, span := range spans {
		start := buffer.Position{Line: span.Line, Col: span.StartChar}
		end := buffer.Position{Line: span.Line, Col: span.StartChar + span.Length}
		survived := true
		for _, e := range entries {
			start, end, survived = anchors.TransformRange(start, end, e.WireSpan())
			if !survived {
				break
			}
		}
		if !survived || start.Line != end.Line {
			continue
		}
		rs := d.Buf.WireToPos(buffer.WirePosition{Line: start.Line, Character: start.Col})
		re := d.Buf.WireToPos(buffer.WirePosition{Line: end.Line, Character: end.Col})
		if rs.Line != start.Line || re.Col <= rs.Col {
			continue
		}
		tokens = append(tokens, anchors.Token{
			Anchor:    anchors.Anchor{Line: rs.Line, Col: rs.Col, Len: re.Col - rs.Col},
			Type:      span.Type,
			Modifiers: span.Modifiers,
		})
	}

	// An empty set replacing an empty set changes nothing on screen;
	// servers that answer every refresh with no tokens must not cost a
	// full recompose each time.
	hadTokens := d.Tracker.HasTokens()
	if d.Tracker.ReplaceTokens(tokens, d.Buf.Version, d.Journal) && (hadTokens || d.Tracker.HasTokens()) {
		d.Cache.InvalidateAll()
	}
}

// TransformWireRange maps a range from a response computed at fromVersion
// onto current content. Returns false when the span was edited away or the
// journal cannot reach back that far.
func (d *Document) TransformWireRange(r lsp.Range, fromVersion int) (buffer.Range, bool) {
	entries, ok := d.Journal.Since(fromVersion)
	if !ok {
		return buffer.Range{}, false
	}
	start := buffer.Position{Line: r.Start.Line, Col: r.Start.Character}
	end := buffer.Position{Line: r.End.Line, Col: r.End.Character}
	for _, e := range entries {
		start, end, ok = anchors.TransformRange(start, end, e.WireSpan())
		if !ok {
			return buffer.Range{}, false
		}
	}
	rs := d.Buf.WireToPos(buffer.WirePosition{Line: start.Line, Character: start.Col})
	re := d.Buf.WireToPos(buffer.WirePosition{Line: end.Line, Character: end.Col})
	return buffer.Range{Start: rs, End: re}, true
}

// --- Outbound requests ---

// CursorWire returns the cursor position in wire coordinates.
func (d *Document) CursorWire() lsp.Position {
	w := d.Buf.PosToWire(d.Buf.Cursor)
	return lsp.Position{Line: w.Line, Character: w.Character}
}

func (d *Document) RequestCompletion() bool {
	return d.live() && d.session.Completion(d.URI, d.Buf.Version, d.CursorWire())
}

func (d *Document) RequestHover() bool {
	return d.live() && d.session.Hover(d.URI, d.Buf.Version, d.CursorWire())
}

func (d *Document) RequestDefinition() bool {
	return d.live() && d.session.Definition(d.URI, d.Buf.Version, d.CursorWire())
}

func (d *Document) RequestRename(newName string) bool {
	return d.live() && d.session.Rename(d.URI, d.Buf.Version, d.CursorWire(), newName)
}

func (d *Document) RequestFormatting() bool {
	return d.live() && d.session.Formatting(d.URI, d.Buf.Version, d.Buf.TabSize, !d.Buf.UseTabs)
}

// Legend returns the attached server's semantic token legend.
func (d *Document) Legend() lsp.SemanticTokensLegend {
	if d.session == nil {
		return lsp.SemanticTokensLegend{}
	}
	return d.session.Legend()
}

// --- Rendering ---

// RenderLine supplies one line's content and annotations to the cache.
func (d *Document) RenderLine(i int) (render.LineData, bool) {
	line, err := d.Buf.Line(i)
	if err != nil {
		return render.LineData{}, false
	}
	return render.LineData{
		Text:        line.Text(),
		Lexical:     d.hi.LineTokens(d.Buf.Path, d.Buf.Language, d.Buf.Version, i, d.Buf.Text),
		Semantic:    d.Tracker.TokensOn(i),
		Diagnostics: d.Tracker.DiagnosticsOn(i),
	}, true
}

// Viewport returns composed segments for the visible lines. Lines whose
// content changed outside the commit path (file reload, raw SetText) carry
// a dirty mark and are recomposed here.
func (d *Document) Viewport(top, height int) [][]render.Segment {
	for i := top; i < top+height && i < d.Buf.LineCount(); i++ {
		if line, err := d.Buf.Line(i); err == nil && line.Dirty() {
			d.Cache.InvalidateLine(i)
			line.MarkClean()
		}
	}
	return d.Cache.Viewport(d, top, height, d.Buf.Cursor.Line)
}
