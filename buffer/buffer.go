package buffer

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"
)

// BoundsError reports a position outside document content. Callers clamp
// and retry; the error is never surfaced to the user.
type BoundsError struct {
	Pos Position
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("position %d:%d out of bounds", e.Pos.Line, e.Pos.Col)
}

// Buffer owns one document's content as an ordered sequence of lines.
// Version increases by exactly one per committed edit; the sync layer
// owns the increment so undo replay and server-driven edits version the
// same way as keystrokes.
type Buffer struct {
	Lines              []Line
	Path               string
	Language           string
	Version            int
	Cursor             Position
	Selection          *Range
	Modified           bool
	ExternallyModified bool // changed on disk while the buffer holds unsaved edits
	ReadOnly           bool
	TabSize            int
	UseTabs            bool
	AutoCloseEnabled   bool
	LineEnding         string // "LF" or "CRLF", detected from file, preserved on save
	Encoding           string
	FileSize           int64
	LastSaveTime       time.Time
	Undo               *UndoStack

	// Auto-close swallowing state: closers inserted automatically that a
	// following keystroke may consume instead of duplicating.
	autoClosePending []rune
	autoClosePos     Position

	savedSnapshot string
}

func NewBuffer(tabSize int) *Buffer {
	return &Buffer{
		Lines:            []Line{NewLine("")},
		Undo:             NewUndoStack(),
		TabSize:          tabSize,
		LineEnding:       "LF",
		AutoCloseEnabled: true,
	}
}

func NewBufferFromFile(path string, tabSize int) (*Buffer, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			b := NewBuffer(tabSize)
			b.Path = path
			b.Encoding = "UTF-8"
			return b, nil
		}
		return nil, err
	}

	if info.Size() > 100*1024*1024 { // 100MB
		return nil, fmt.Errorf("file too large (%d MB), max supported is 100 MB", info.Size()/(1024*1024))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Binary file detection: check first 8KB for null bytes
	checkLen := len(data)
	if checkLen > 8192 {
		checkLen = 8192
	}
	isBinary := false
	for i := 0; i < checkLen; i++ {
		if data[i] == 0 {
			isBinary = true
			break
		}
	}

	encoding := detectEncoding(data)

	lineEnding := "LF"
	if strings.Contains(string(data), "\r\n") {
		lineEnding = "CRLF"
	}

	content := string(data)
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimRight(content, "\n")
	raw := strings.Split(content, "\n")
	if len(raw) == 0 {
		raw = []string{""}
	}

	detectedTabSize, detectedUseTabs := DetectIndentation(raw)

	lines := make([]Line, len(raw))
	for i, s := range raw {
		lines[i] = NewLine(s)
	}

	return &Buffer{
		Lines:            lines,
		Path:             path,
		Undo:             NewUndoStack(),
		TabSize:          detectedTabSize,
		UseTabs:          detectedUseTabs,
		ReadOnly:         isBinary,
		FileSize:         info.Size(),
		LineEnding:       lineEnding,
		AutoCloseEnabled: true,
		Encoding:         encoding,
		savedSnapshot:    content,
	}, nil
}

// detectEncoding checks BOM and validates UTF-8 to determine file encoding.
func detectEncoding(data []byte) string {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return "UTF-8 BOM"
	}
	if len(data) >= 2 {
		if data[0] == 0xFF && data[1] == 0xFE {
			return "UTF-16 LE"
		}
		if data[0] == 0xFE && data[1] == 0xFF {
			return "UTF-16 BE"
		}
	}
	if isValidUTF8(data) {
		return "UTF-8"
	}
	return "Latin-1"
}

func isValidUTF8(data []byte) bool {
	i := 0
	for i < len(data) {
		if data[i] < 0x80 {
			i++
			continue
		}
		var size int
		switch {
		case data[i]&0xE0 == 0xC0:
			size = 2
		case data[i]&0xF0 == 0xE0:
			size = 3
		case data[i]&0xF8 == 0xF0:
			size = 4
		default:
			return false
		}
		if i+size > len(data) {
			return false
		}
		for j := 1; j < size; j++ {
			if data[i+j]&0xC0 != 0x80 {
				return false
			}
		}
		i += size
	}
	return true
}

// DetectIndentation analyzes file content to detect indentation style.
// Returns (tabSize, useTabs) based on the most common indentation pattern.
func DetectIndentation(lines []string) (int, bool) {
	if len(lines) == 0 {
		return 4, false
	}

	tabCount := 0
	spaceIndents := make(map[int]int)

	for _, line := range lines {
		if len(line) == 0 {
			continue
		}

		spaces := 0
		tabs := 0
		for _, ch := range line {
			if ch == '\t' {
				tabs++
			} else if ch == ' ' {
				spaces++
			} else {
				break
			}
		}

		if tabs > 0 {
			tabCount++
		}
		if spaces > 0 && tabs == 0 {
			if spaces%2 == 0 {
				spaceIndents[2]++
			}
			if spaces%4 == 0 {
				spaceIndents[4]++
			}
			if spaces%8 == 0 {
				spaceIndents[8]++
			}
		}
	}

	if tabCount > 10 {
		return 4, true
	}

	maxCount := 0
	detectedSize := 4
	for size, count := range spaceIndents {
		if count > maxCount {
			maxCount = count
			detectedSize = size
		}
	}
	if maxCount > 5 {
		return detectedSize, false
	}
	return 4, false
}

// LineCount returns the number of lines in the buffer.
func (b *Buffer) LineCount() int { return len(b.Lines) }

// Line returns the line at index i, or a bounds error.
func (b *Buffer) Line(i int) (*Line, error) {
	if i < 0 || i >= len(b.Lines) {
		return nil, &BoundsError{Pos: Position{Line: i}}
	}
	return &b.Lines[i], nil
}

// Text serializes the buffer content with LF line endings.
func (b *Buffer) Text() string {
	var sb strings.Builder
	for i := range b.Lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(b.Lines[i].Text())
	}
	return sb.String()
}

// LineStrings returns a snapshot of every line's text, for callers that
// search or display content without mutating it.
func (b *Buffer) LineStrings() []string {
	out := make([]string, len(b.Lines))
	for i := range b.Lines {
		out[i] = b.Lines[i].Text()
	}
	return out
}

func (b *Buffer) validatePos(p Position) error {
	if p.Line < 0 || p.Line >= len(b.Lines) {
		return &BoundsError{Pos: p}
	}
	if p.Col < 0 || p.Col > b.Lines[p.Line].Len() {
		return &BoundsError{Pos: p}
	}
	return nil
}

func (b *Buffer) validateRange(r Range) error {
	if err := b.validatePos(r.Start); err != nil {
		return err
	}
	if err := b.validatePos(r.End); err != nil {
		return err
	}
	if r.End.Before(r.Start) {
		return &BoundsError{Pos: r.End}
	}
	return nil
}

// Clamp snaps a position onto document content. Callers recover from
// bounds errors with this; out-of-range input is never silently treated
// as valid by the edit operations themselves.
func (b *Buffer) Clamp(p Position) Position {
	if len(b.Lines) == 0 {
		b.Lines = []Line{NewLine("")}
	}
	if p.Line < 0 {
		p.Line = 0
	}
	if p.Line >= len(b.Lines) {
		p.Line = len(b.Lines) - 1
	}
	if p.Col < 0 {
		p.Col = 0
	}
	if max := b.Lines[p.Line].Len(); p.Col > max {
		p.Col = max
	}
	return p
}

func (b *Buffer) clampCursor() {
	b.Cursor = b.Clamp(b.Cursor)
}

// wirePos converts a rune position to UTF-16 wire coordinates against
// current content.
func (b *Buffer) wirePos(p Position) WirePosition {
	return WirePosition{Line: p.Line, Character: b.Lines[p.Line].ColToUTF16(p.Col)}
}

// PosToWire converts a rune position to UTF-16 wire coordinates, clamping
// the position onto content first.
func (b *Buffer) PosToWire(p Position) WirePosition {
	return b.wirePos(b.Clamp(p))
}

// WireToPos converts UTF-16 wire coordinates to a rune position, clamped
// onto current content.
func (b *Buffer) WireToPos(w WirePosition) Position {
	p := Position{Line: w.Line}
	if p.Line < 0 {
		p.Line = 0
	}
	if p.Line >= len(b.Lines) {
		p.Line = len(b.Lines) - 1
		p.Col = b.Lines[p.Line].Len()
		return p
	}
	p.Col = b.Lines[p.Line].UTF16ToCol(w.Character)
	return p
}

// TextInRange returns the text covered by r. The range must be valid.
func (b *Buffer) TextInRange(r Range) string {
	if r.Start.Line == r.End.Line {
		runes := b.Lines[r.Start.Line].Runes()
		return string(runes[r.Start.Col:r.End.Col])
	}
	var sb strings.Builder
	first := b.Lines[r.Start.Line].Runes()
	sb.WriteString(string(first[r.Start.Col:]))
	for i := r.Start.Line + 1; i < r.End.Line; i++ {
		sb.WriteByte('\n')
		sb.WriteString(b.Lines[i].Text())
	}
	sb.WriteByte('\n')
	last := b.Lines[r.End.Line].Runes()
	sb.WriteString(string(last[:r.End.Col]))
	return sb.String()
}

// splice replaces the text in r with replacement, adjusting the line
// slice. Touched lines are marked dirty; untouched lines keep their
// cached state.
func (b *Buffer) splice(r Range, replacement string) {
	startRunes := b.Lines[r.Start.Line].Runes()
	endRunes := b.Lines[r.End.Line].Runes()
	prefix := string(startRunes[:r.Start.Col])
	suffix := string(endRunes[r.End.Col:])

	parts := strings.Split(replacement, "\n")
	parts[0] = prefix + parts[0]
	parts[len(parts)-1] += suffix

	newLines := make([]Line, len(parts))
	for i, s := range parts {
		newLines[i] = NewLine(s)
	}

	tail := b.Lines[r.End.Line+1:]
	merged := make([]Line, 0, r.Start.Line+len(newLines)+len(tail))
	merged = append(merged, b.Lines[:r.Start.Line]...)
	merged = append(merged, newLines...)
	merged = append(merged, tail...)
	b.Lines = merged
}

// apply performs the edit and builds the EditOp, capturing wire
// coordinates against pre-edit content. It does not touch undo state;
// Insert/Delete/Replace layer that on top so undo replay can reuse apply.
func (b *Buffer) apply(kind OpKind, r Range, text string) (EditOp, error) {
	if err := b.validateRange(r); err != nil {
		return EditOp{}, err
	}
	wire := WireRange{Start: b.wirePos(r.Start), End: b.wirePos(r.End)}
	removed := b.TextInRange(r)
	b.splice(r, text)
	b.Modified = true
	return EditOp{
		Kind:       kind,
		Range:      r,
		Text:       text,
		Removed:    removed,
		Wire:       wire,
		NewEnd:     endAfter(r.Start, text),
		WireNewEnd: wireEndAfter(wire.Start, text),
	}, nil
}

// Insert places text at pos. Fails with a bounds error for positions
// beyond content.
func (b *Buffer) Insert(pos Position, text string) (EditOp, error) {
	op, err := b.apply(OpInsert, Range{Start: pos, End: pos}, text)
	if err != nil {
		return EditOp{}, err
	}
	b.Undo.Push(undoRecord{op: op, before: b.Cursor})
	return op, nil
}

// Delete removes the text in r.
func (b *Buffer) Delete(r Range) (EditOp, error) {
	op, err := b.apply(OpDelete, r, "")
	if err != nil {
		return EditOp{}, err
	}
	b.Undo.Push(undoRecord{op: op, before: b.Cursor})
	return op, nil
}

// Replace swaps the text in r for text as a single operation.
func (b *Buffer) Replace(r Range, text string) (EditOp, error) {
	op, err := b.apply(OpReplace, r, text)
	if err != nil {
		return EditOp{}, err
	}
	b.Undo.Push(undoRecord{op: op, before: b.Cursor})
	return op, nil
}

// ApplyRaw performs an edit without recording undo history. Undo/redo
// replay and workspace edits from the language server use it; callers own
// history bookkeeping.
func (b *Buffer) ApplyRaw(kind OpKind, r Range, text string) (EditOp, error) {
	return b.apply(kind, r, text)
}

// BuildSaveContent serializes the buffer content for writing to disk.
// When insertFinalNewline is enabled, output is normalized to exactly one
// trailing newline on disk.
func (b *Buffer) BuildSaveContent(trimTrailing, insertFinalNewline bool) string {
	raw := make([]string, len(b.Lines))
	for i := range b.Lines {
		raw[i] = b.Lines[i].Text()
	}

	if trimTrailing {
		for i, line := range raw {
			raw[i] = strings.TrimRight(line, " \t")
		}
	}

	if insertFinalNewline {
		for len(raw) > 0 && raw[len(raw)-1] == "" {
			raw = raw[:len(raw)-1]
		}
		raw = append(raw, "")
	}

	eol := "\n"
	if b.LineEnding == "CRLF" {
		eol = "\r\n"
	}

	content := strings.Join(raw, eol)
	if insertFinalNewline && len(raw) == 1 && raw[0] == "" {
		content = eol
	}

	lines := make([]Line, len(raw))
	for i, s := range raw {
		lines[i] = NewLine(s)
	}
	b.Lines = lines
	return content
}

func (b *Buffer) Save() error {
	return b.SaveWithOptions(true, true)
}

// SaveWithOptions saves with configurable trim and final newline behavior.
func (b *Buffer) SaveWithOptions(trimTrailing, insertFinalNewline bool) error {
	if b.Path == "" || b.ReadOnly {
		return nil
	}

	content := b.BuildSaveContent(trimTrailing, insertFinalNewline)

	err := os.WriteFile(b.Path, []byte(content), 0644)
	if err == nil {
		b.MarkSaved()
		b.LastSaveTime = time.Now()
	}
	return err
}

func (b *Buffer) MarkSaved() {
	b.savedSnapshot = b.Text()
	b.Modified = false
}

func (b *Buffer) RecomputeModified() {
	b.Modified = b.Text() != b.savedSnapshot
}

// ClearAutoClose clears the auto-close swallowing state. Call when the
// cursor moves by navigation rather than by typing.
func (b *Buffer) ClearAutoClose() {
	b.autoClosePending = nil
}

// InsertChar inserts a typed character at the cursor, handling auto-close
// pairs and closer swallowing. Returns the committed ops, possibly none
// when a pending closer was consumed in place.
func (b *Buffer) InsertChar(ch rune) []EditOp {
	ops := b.DeleteSelection()
	b.clampCursor()
	line := b.Lines[b.Cursor.Line]
	before := b.Cursor
	inAutoCloseContext := len(b.autoClosePending) > 0 && b.Cursor.Equal(b.autoClosePos)

	// Swallow the expected pending closer instead of inserting a duplicate.
	if inAutoCloseContext && ch == b.autoClosePending[0] {
		runes := line.Runes()
		if b.Cursor.Col < len(runes) && runes[b.Cursor.Col] == ch {
			b.Cursor.Col++
			b.autoClosePending = b.autoClosePending[1:]
			b.autoClosePos = b.Cursor
			return ops
		}
	}
	if !inAutoCloseContext {
		b.autoClosePending = nil
	}

	pairs := map[rune]rune{'(': ')', '[': ']', '{': '}'}
	quotePairs := map[rune]bool{'"': true, '\'': true, '`': true}

	if b.AutoCloseEnabled && b.Language != "" && b.Language != "Text" {
		if closeCh, ok := pairs[ch]; ok {
			op := b.mustInsertAt(before, string(ch)+string(closeCh))
			b.Cursor.Col = before.Col + 1
			if inAutoCloseContext && len(b.autoClosePending) > 0 {
				b.autoClosePending = append([]rune{closeCh}, b.autoClosePending...)
			} else {
				b.autoClosePending = []rune{closeCh}
			}
			b.autoClosePos = b.Cursor
			return append(ops, op)
		}
		if quotePairs[ch] && !b.wordCharAfterCursor() {
			op := b.mustInsertAt(before, string(ch)+string(ch))
			b.Cursor.Col = before.Col + 1
			if inAutoCloseContext && len(b.autoClosePending) > 0 {
				b.autoClosePending = append([]rune{ch}, b.autoClosePending...)
			} else {
				b.autoClosePending = []rune{ch}
			}
			b.autoClosePos = b.Cursor
			return append(ops, op)
		}
	}

	op := b.mustInsertAt(before, string(ch))
	b.Cursor.Col = before.Col + 1
	if inAutoCloseContext && len(b.autoClosePending) > 0 {
		b.autoClosePos = b.Cursor
	}
	return append(ops, op)
}

func (b *Buffer) wordCharAfterCursor() bool {
	runes := b.Lines[b.Cursor.Line].Runes()
	if b.Cursor.Col >= len(runes) {
		return false
	}
	next := runes[b.Cursor.Col]
	return unicode.IsLetter(next) || unicode.IsDigit(next) || next == '_'
}

// mustInsertAt inserts at a position already known to be valid.
func (b *Buffer) mustInsertAt(pos Position, text string) EditOp {
	op, err := b.Insert(pos, text)
	if err != nil {
		op, _ = b.Insert(b.Clamp(pos), text)
	}
	return op
}

func (b *Buffer) InsertTab() []EditOp {
	if b.Selection != nil && !b.Selection.Empty() {
		return b.IndentSelection()
	}

	var tabString string
	if b.UseTabs {
		tabString = "\t"
	} else {
		tabString = strings.Repeat(" ", b.TabSize)
	}

	ops := b.DeleteSelection()
	b.clampCursor()
	before := b.Cursor
	op := b.mustInsertAt(before, tabString)
	b.Cursor = op.NewEnd
	return append(ops, op)
}

func (b *Buffer) InsertNewline() []EditOp {
	ops := b.DeleteSelection()
	b.autoClosePending = nil
	b.clampCursor()
	line := b.Lines[b.Cursor.Line].Text()
	before := b.Cursor

	// Auto-indent: copy leading whitespace from the current line.
	indent := ""
	for _, ch := range line {
		if ch == ' ' || ch == '\t' {
			indent += string(ch)
		} else {
			break
		}
	}

	// Extra indent after a trailing ':' (python-style blocks).
	extraIndent := ""
	lineRunes := []rune(line)
	cut := before.Col
	if cut > len(lineRunes) {
		cut = len(lineRunes)
	}
	trimmed := strings.TrimSpace(string(lineRunes[:cut]))
	if strings.HasSuffix(trimmed, ":") {
		extraIndent = strings.Repeat(" ", b.TabSize)
	}

	op := b.mustInsertAt(before, "\n"+indent+extraIndent)
	b.Cursor = op.NewEnd
	return append(ops, op)
}

func (b *Buffer) Backspace() []EditOp {
	if ops := b.DeleteSelection(); len(ops) > 0 {
		b.autoClosePending = nil
		return ops
	}
	b.clampCursor()
	if b.Cursor.Col > 0 {
		runes := b.Lines[b.Cursor.Line].Runes()
		before := b.Cursor
		inAutoCloseContext := len(b.autoClosePending) > 0 && b.Cursor.Equal(b.autoClosePos)
		if inAutoCloseContext && b.Cursor.Col < len(runes) {
			closeCh := b.autoClosePending[0]
			openCh, ok := openingFor(closeCh)
			if ok && runes[b.Cursor.Col-1] == openCh && runes[b.Cursor.Col] == closeCh {
				// Remove the whole auto-inserted pair.
				r := Range{
					Start: Position{Line: before.Line, Col: before.Col - 1},
					End:   Position{Line: before.Line, Col: before.Col + 1},
				}
				op, err := b.Delete(r)
				if err != nil {
					return nil
				}
				b.Cursor.Col--
				b.autoClosePending = b.autoClosePending[1:]
				b.autoClosePos = b.Cursor
				return []EditOp{op}
			}
		}
		r := Range{
			Start: Position{Line: before.Line, Col: before.Col - 1},
			End:   before,
		}
		op, err := b.Delete(r)
		if err != nil {
			return nil
		}
		b.Cursor.Col--
		if inAutoCloseContext && len(b.autoClosePending) > 0 {
			b.autoClosePos = b.Cursor
		}
		return []EditOp{op}
	}
	if b.Cursor.Line > 0 {
		prevLen := b.Lines[b.Cursor.Line-1].Len()
		r := Range{
			Start: Position{Line: b.Cursor.Line - 1, Col: prevLen},
			End:   Position{Line: b.Cursor.Line, Col: 0},
		}
		op, err := b.Delete(r)
		if err != nil {
			return nil
		}
		b.Cursor = Position{Line: r.Start.Line, Col: prevLen}
		b.autoClosePending = nil
		return []EditOp{op}
	}
	return nil
}

func (b *Buffer) DeleteForward() []EditOp {
	if ops := b.DeleteSelection(); len(ops) > 0 {
		b.autoClosePending = nil
		return ops
	}
	b.clampCursor()
	lineLen := b.Lines[b.Cursor.Line].Len()
	if b.Cursor.Col < lineLen {
		inAutoCloseContext := len(b.autoClosePending) > 0 && b.Cursor.Equal(b.autoClosePos)
		deleted := b.Lines[b.Cursor.Line].Runes()[b.Cursor.Col]
		r := Range{
			Start: b.Cursor,
			End:   Position{Line: b.Cursor.Line, Col: b.Cursor.Col + 1},
		}
		op, err := b.Delete(r)
		if err != nil {
			return nil
		}
		if inAutoCloseContext && deleted == b.autoClosePending[0] {
			b.autoClosePending = b.autoClosePending[1:]
		}
		return []EditOp{op}
	}
	if b.Cursor.Line < len(b.Lines)-1 {
		r := Range{
			Start: Position{Line: b.Cursor.Line, Col: lineLen},
			End:   Position{Line: b.Cursor.Line + 1, Col: 0},
		}
		op, err := b.Delete(r)
		if err != nil {
			return nil
		}
		b.autoClosePending = nil
		return []EditOp{op}
	}
	return nil
}

// InsertText inserts (possibly multi-line) text at the cursor, e.g. paste
// or a completion insert.
func (b *Buffer) InsertText(text string) []EditOp {
	ops := b.DeleteSelection()
	b.clampCursor()
	before := b.Cursor
	op := b.mustInsertAt(before, text)
	b.Cursor = op.NewEnd
	if strings.Contains(text, "\n") {
		b.autoClosePending = nil
	} else if len(b.autoClosePending) > 0 && before.Equal(b.autoClosePos) {
		b.autoClosePos = b.Cursor
	}
	return append(ops, op)
}

// DeleteSelection removes the selected text, if any, placing the cursor
// at the selection start.
func (b *Buffer) DeleteSelection() []EditOp {
	if b.Selection == nil || b.Selection.Empty() {
		b.Selection = nil
		return nil
	}
	sel := NewRange(b.Clamp(b.Selection.Start), b.Clamp(b.Selection.End))
	b.Selection = nil
	if sel.Empty() {
		return nil
	}
	op, err := b.Delete(sel)
	if err != nil {
		return nil
	}
	b.Cursor = sel.Start
	b.clampCursor()
	return []EditOp{op}
}

// SelectedText returns the text covered by the selection.
func (b *Buffer) SelectedText() string {
	if b.Selection == nil {
		return ""
	}
	sel := NewRange(b.Clamp(b.Selection.Start), b.Clamp(b.Selection.End))
	if sel.Empty() {
		return ""
	}
	return b.TextInRange(sel)
}

func (b *Buffer) SelectAll() {
	if len(b.Lines) == 0 {
		return
	}
	last := len(b.Lines) - 1
	sel := NewRange(
		Position{Line: 0, Col: 0},
		Position{Line: last, Col: b.Lines[last].Len()},
	)
	b.Selection = &sel
	b.Cursor = sel.End
}

func (b *Buffer) indentString() string {
	if b.UseTabs {
		return "\t"
	}
	return strings.Repeat(" ", b.TabSize)
}

func (b *Buffer) IndentSelection() []EditOp {
	indent := b.indentString()
	shift := len([]rune(indent))

	if b.Selection == nil {
		b.clampCursor()
		op := b.mustInsertAt(Position{Line: b.Cursor.Line}, indent)
		b.Cursor.Col += shift
		return []EditOp{op}
	}

	sel := *b.Selection
	var ops []EditOp
	for i := sel.Start.Line; i <= sel.End.Line && i < len(b.Lines); i++ {
		ops = append(ops, b.mustInsertAt(Position{Line: i}, indent))
	}
	b.Selection.Start.Col += shift
	b.Selection.End.Col += shift
	b.Cursor.Col += shift
	return ops
}

func (b *Buffer) DedentSelection() []EditOp {
	startLine := b.Cursor.Line
	endLine := b.Cursor.Line
	if b.Selection != nil {
		startLine = b.Selection.Start.Line
		endLine = b.Selection.End.Line
	}

	var ops []EditOp
	for i := startLine; i <= endLine && i < len(b.Lines); i++ {
		runes := b.Lines[i].Runes()
		removed := 0
		if len(runes) > 0 && runes[0] == '\t' {
			removed = 1
		} else {
			for removed < b.TabSize && removed < len(runes) && runes[removed] == ' ' {
				removed++
			}
		}
		if removed == 0 {
			continue
		}
		r := Range{Start: Position{Line: i}, End: Position{Line: i, Col: removed}}
		op, err := b.Delete(r)
		if err != nil {
			continue
		}
		ops = append(ops, op)
		if b.Selection != nil {
			if i == b.Selection.Start.Line {
				b.Selection.Start.Col = maxInt(0, b.Selection.Start.Col-removed)
			}
			if i == b.Selection.End.Line {
				b.Selection.End.Col = maxInt(0, b.Selection.End.Col-removed)
			}
		}
		if i == b.Cursor.Line {
			b.Cursor.Col = maxInt(0, b.Cursor.Col-removed)
		}
	}
	return ops
}

func (b *Buffer) DuplicateLine() []EditOp {
	b.clampCursor()
	line := b.Lines[b.Cursor.Line].Text()
	pos := Position{Line: b.Cursor.Line, Col: b.Lines[b.Cursor.Line].Len()}
	op := b.mustInsertAt(pos, "\n"+line)
	b.Cursor.Line++
	return []EditOp{op}
}

// MoveLineUp swaps the cursor line with the one above it.
func (b *Buffer) MoveLineUp() []EditOp {
	b.clampCursor()
	i := b.Cursor.Line
	if i <= 0 {
		return nil
	}
	above := b.Lines[i-1].Text()
	cur := b.Lines[i].Text()
	r := Range{Start: Position{Line: i - 1}, End: Position{Line: i, Col: b.Lines[i].Len()}}
	op, err := b.Replace(r, cur+"\n"+above)
	if err != nil {
		return nil
	}
	b.Cursor.Line = i - 1
	b.clampCursor()
	return []EditOp{op}
}

// MoveLineDown swaps the cursor line with the one below it.
func (b *Buffer) MoveLineDown() []EditOp {
	b.clampCursor()
	i := b.Cursor.Line
	if i >= len(b.Lines)-1 {
		return nil
	}
	below := b.Lines[i+1].Text()
	cur := b.Lines[i].Text()
	r := Range{Start: Position{Line: i}, End: Position{Line: i + 1, Col: b.Lines[i+1].Len()}}
	op, err := b.Replace(r, below+"\n"+cur)
	if err != nil {
		return nil
	}
	b.Cursor.Line = i + 1
	b.clampCursor()
	return []EditOp{op}
}

// WrapSelectionWith surrounds the selection with a quote character instead
// of replacing it. Returns nil when there is no selection to wrap.
func (b *Buffer) WrapSelectionWith(ch rune) []EditOp {
	if b.Selection == nil || b.Selection.Empty() {
		return nil
	}
	sel := *b.Selection
	inner := b.TextInRange(sel)
	op, err := b.Replace(sel, string(ch)+inner+string(ch))
	if err != nil {
		return nil
	}
	b.Selection = nil
	b.Cursor = op.NewEnd
	return []EditOp{op}
}

// ToggleLineComment comments or uncomments the cursor line or all selected
// lines with the given comment leader.
func (b *Buffer) ToggleLineComment(commentStr string) []EditOp {
	b.clampCursor()
	startLine := b.Cursor.Line
	endLine := b.Cursor.Line
	if b.Selection != nil {
		startLine = b.Selection.Start.Line
		endLine = b.Selection.End.Line
	}

	allCommented := true
	for i := startLine; i <= endLine && i < len(b.Lines); i++ {
		trimmed := strings.TrimLeft(b.Lines[i].Text(), " \t")
		if trimmed != "" && !strings.HasPrefix(trimmed, commentStr) {
			allCommented = false
			break
		}
	}

	var ops []EditOp
	for i := startLine; i <= endLine && i < len(b.Lines); i++ {
		text := b.Lines[i].Text()
		if allCommented {
			idx := strings.Index(text, commentStr)
			if idx < 0 {
				continue
			}
			end := idx + len(commentStr)
			if end < len(text) && text[end] == ' ' {
				end++
			}
			startCol := len([]rune(text[:idx]))
			endCol := len([]rune(text[:end]))
			r := Range{Start: Position{Line: i, Col: startCol}, End: Position{Line: i, Col: endCol}}
			if op, err := b.Delete(r); err == nil {
				ops = append(ops, op)
			}
		} else {
			if strings.TrimSpace(text) == "" {
				continue
			}
			ops = append(ops, b.mustInsertAt(Position{Line: i}, commentStr+" "))
		}
	}
	b.clampCursor()
	return ops
}

// ReplaceAll replaces all occurrences of find with replacement
// (case-insensitive). Returns the match count and the committed ops.
func (b *Buffer) ReplaceAll(find, replacement string) (int, []EditOp) {
	if find == "" {
		return 0, nil
	}
	count := 0
	var ops []EditOp
	findLower := strings.ToLower(find)
	findLen := len([]rune(find))
	// Bottom-to-top, right-to-left, so earlier positions stay valid.
	// The scan bound shrinks past each match so a replacement that
	// contains the search text is never rescanned.
	for i := len(b.Lines) - 1; i >= 0; i-- {
		bound := len(b.Lines[i].Text())
		for {
			lower := strings.ToLower(b.Lines[i].Text())
			if bound > len(lower) {
				bound = len(lower)
			}
			idx := strings.LastIndex(lower[:bound], findLower)
			if idx < 0 {
				break
			}
			startCol := len([]rune(lower[:idx]))
			r := Range{Start: Position{Line: i, Col: startCol}, End: Position{Line: i, Col: startCol + findLen}}
			op, err := b.Replace(r, replacement)
			if err != nil {
				break
			}
			ops = append(ops, op)
			count++
			bound = idx
		}
	}
	b.clampCursor()
	return count, ops
}

// WordAt returns the rune-column bounds of the word containing (line, col).
func (b *Buffer) WordAt(line, col int) (start, end int) {
	if line < 0 || line >= len(b.Lines) {
		return col, col
	}
	runes := b.Lines[line].Runes()
	if col >= len(runes) {
		return len(runes), len(runes)
	}

	r := runes[col]
	isWord := unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'

	start = col
	end = col
	if isWord {
		for start > 0 {
			r := runes[start-1]
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
				start--
			} else {
				break
			}
		}
		for end < len(runes) {
			r := runes[end]
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
				end++
			} else {
				break
			}
		}
	} else {
		end = col + 1
	}
	return
}

// WordAtCursor returns the word under the cursor.
func (b *Buffer) WordAtCursor() string {
	if b.Cursor.Line < 0 || b.Cursor.Line >= len(b.Lines) {
		return ""
	}
	runes := b.Lines[b.Cursor.Line].Runes()
	if b.Cursor.Col > len(runes) {
		return ""
	}
	start, end := b.WordAt(b.Cursor.Line, b.Cursor.Col)
	if start == end {
		return ""
	}
	return string(runes[start:end])
}

// charClass returns 0 for whitespace, 1 for word chars (letter/digit/_),
// 2 for symbols.
func charClass(r rune) int {
	if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
		return 0
	}
	if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
		return 1
	}
	return 2
}

func openingFor(closeCh rune) (rune, bool) {
	switch closeCh {
	case ')':
		return '(', true
	case ']':
		return '[', true
	case '}':
		return '{', true
	case '"', '\'', '`':
		return closeCh, true
	default:
		return 0, false
	}
}

func (b *Buffer) MoveWordLeft() {
	b.clampCursor()
	if b.Cursor.Col == 0 {
		if b.Cursor.Line > 0 {
			b.Cursor.Line--
			b.Cursor.Col = b.Lines[b.Cursor.Line].Len()
		}
		return
	}
	runes := b.Lines[b.Cursor.Line].Runes()
	col := b.Cursor.Col - 1
	for col > 0 && charClass(runes[col]) == 0 {
		col--
	}
	if col >= 0 && col < len(runes) {
		cls := charClass(runes[col])
		for col > 0 && charClass(runes[col-1]) == cls {
			col--
		}
	}
	b.Cursor.Col = col
}

func (b *Buffer) MoveWordRight() {
	b.clampCursor()
	runes := b.Lines[b.Cursor.Line].Runes()
	if b.Cursor.Col >= len(runes) {
		if b.Cursor.Line < len(b.Lines)-1 {
			b.Cursor.Line++
			b.Cursor.Col = 0
		}
		return
	}
	col := b.Cursor.Col
	cls := charClass(runes[col])
	if cls == 0 {
		for col < len(runes) && charClass(runes[col]) == 0 {
			col++
		}
		if col < len(runes) {
			nextCls := charClass(runes[col])
			for col < len(runes) && charClass(runes[col]) == nextCls {
				col++
			}
		}
	} else {
		for col < len(runes) && charClass(runes[col]) == cls {
			col++
		}
		for col < len(runes) && charClass(runes[col]) == 0 {
			col++
		}
	}
	b.Cursor.Col = col
}

// DeleteWordBackward deletes from the cursor back to the start of the
// current word.
func (b *Buffer) DeleteWordBackward() []EditOp {
	if ops := b.DeleteSelection(); len(ops) > 0 {
		return ops
	}
	b.clampCursor()
	if b.Cursor.Col == 0 {
		if b.Cursor.Line > 0 {
			return b.Backspace()
		}
		return nil
	}

	runes := b.Lines[b.Cursor.Line].Runes()
	startCol := b.Cursor.Col
	col := b.Cursor.Col - 1
	for col > 0 && charClass(runes[col]) == 0 {
		col--
	}
	if col >= 0 && col < len(runes) {
		cls := charClass(runes[col])
		if cls != 0 {
			for col > 0 && charClass(runes[col-1]) == cls {
				col--
			}
		}
	}
	if col >= startCol {
		return nil
	}
	r := Range{Start: Position{Line: b.Cursor.Line, Col: col}, End: Position{Line: b.Cursor.Line, Col: startCol}}
	op, err := b.Delete(r)
	if err != nil {
		return nil
	}
	b.Cursor.Col = col
	return []EditOp{op}
}

// DeleteWordForward deletes from the cursor to the end of the current word.
func (b *Buffer) DeleteWordForward() []EditOp {
	if ops := b.DeleteSelection(); len(ops) > 0 {
		return ops
	}
	b.clampCursor()
	runes := b.Lines[b.Cursor.Line].Runes()
	if b.Cursor.Col >= len(runes) {
		return b.DeleteForward()
	}

	startCol := b.Cursor.Col
	col := b.Cursor.Col
	cls := charClass(runes[col])
	if cls == 0 {
		for col < len(runes) && charClass(runes[col]) == 0 {
			col++
		}
	} else {
		for col < len(runes) && charClass(runes[col]) == cls {
			col++
		}
		for col < len(runes) && charClass(runes[col]) == 0 {
			col++
		}
	}
	if col <= startCol {
		return nil
	}
	r := Range{Start: b.Cursor, End: Position{Line: b.Cursor.Line, Col: col}}
	op, err := b.Delete(r)
	if err != nil {
		return nil
	}
	return []EditOp{op}
}

// RuneLen returns the rune count of s.
func RuneLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
