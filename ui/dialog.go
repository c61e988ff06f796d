package ui

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"vex/config"

	"github.com/gdamore/tcell/v2"
)

type DialogType int

const (
	DialogNone DialogType = iota
	DialogFind
	DialogGotoLine
	DialogSaveConfirm
	DialogSaveAs
	DialogHelp
	DialogSettings
	DialogInput // generic prompt
	DialogReloadConfirm
)

// Dialog is the single modal surface: one-line input bars, yes/no
// confirms, the help overlay and the settings sidebar all share it. The
// editor keeps at most one alive and routes keys to it first.
type Dialog struct {
	Type    DialogType
	Input   string
	Cursor  int
	focused bool

	// find state
	Matches    []Match
	MatchIndex int
	UseRegex   bool

	// replace state
	ReplaceInput  string
	ReplaceCursor int
	ReplaceActive bool // cursor sits in the replace field
	ReplaceMode   bool // find+replace variant

	// settings state
	SettingsOptions  []string
	SettingsValues   []string
	SettingsIndex    int
	SettingsSections []SettingsSection
	SettingsScroll   int
	SettingsMaxVis   int

	Theme *config.ColorScheme

	OnSubmit               func(value string)
	OnCancel               func()
	OnNavigate             func(line, col int)
	OnConfirm              func(answer rune) // 'y', 'n', 'c'
	OnSettingChange        func(index int, value string)
	OnSettingChangeReverse func(index int, value string)
	OnReplace              func(matchIdx int, replacement string)
	OnReplaceAll           func(find, replacement string) int

	Prompt    string
	MaskInput bool
}

type SettingsSection struct {
	Name    string
	Options []string
	Indices []int
}

type Match struct {
	Line, Col int
	Length    int
}

func NewFindDialog() *Dialog {
	return &Dialog{Type: DialogFind, focused: true}
}

func NewFindReplaceDialog() *Dialog {
	return &Dialog{Type: DialogFind, ReplaceMode: true, focused: true}
}

func NewGotoLineDialog() *Dialog {
	return &Dialog{Type: DialogGotoLine, focused: true}
}

func NewSaveAsDialog() *Dialog {
	return &Dialog{Type: DialogSaveAs, focused: true}
}

func NewSaveConfirmDialog(filename string) *Dialog {
	return &Dialog{Type: DialogSaveConfirm, Input: filename, focused: true}
}

func NewHelpDialog() *Dialog {
	return &Dialog{Type: DialogHelp, focused: true}
}

func NewSettingsDialog(options, values []string) *Dialog {
	indices := make([]int, len(options))
	for i := range indices {
		indices[i] = i
	}
	return &Dialog{
		Type:             DialogSettings,
		SettingsOptions:  options,
		SettingsValues:   values,
		SettingsSections: []SettingsSection{{Name: "General", Options: options, Indices: indices}},
		focused:          true,
	}
}

func NewInputDialog(prompt string) *Dialog {
	return &Dialog{Type: DialogInput, Prompt: prompt, focused: true}
}

func NewReloadConfirmDialog(filename string) *Dialog {
	return &Dialog{Type: DialogReloadConfirm, Input: filename, focused: true}
}

func NewDeleteConfirmDialog(filename string) *Dialog {
	return &Dialog{Type: DialogSaveConfirm, Input: filename, Prompt: "delete", focused: true}
}

// --- shared text-field editing ---

// field returns the input the cursor currently lives in: the replace
// field when it is active, the main input otherwise.
func (d *Dialog) field() (*string, *int) {
	if d.ReplaceMode && d.ReplaceActive {
		return &d.ReplaceInput, &d.ReplaceCursor
	}
	return &d.Input, &d.Cursor
}

func fieldInsert(s *string, cur *int, ch rune) {
	runes := []rune(*s)
	*s = string(runes[:*cur]) + string(ch) + string(runes[*cur:])
	*cur++
}

func fieldBackspace(s *string, cur *int) {
	if *cur > 0 {
		runes := []rune(*s)
		*s = string(runes[:*cur-1]) + string(runes[*cur:])
		*cur--
	}
}

func fieldDelete(s *string, cur *int) {
	runes := []rune(*s)
	if *cur < len(runes) {
		*s = string(runes[:*cur]) + string(runes[*cur+1:])
	}
}

// --- rendering ---

// putText writes text from col on one row, stopping at limit. Returns
// the column after the last written cell.
func putText(screen tcell.Screen, col, row, limit int, text string, style tcell.Style) int {
	for _, ch := range text {
		if col >= limit {
			break
		}
		screen.SetContent(col, row, ch, nil, style)
		col++
	}
	return col
}

func fillRow(screen tcell.Screen, x, y, width int, style tcell.Style) {
	for cx := x; cx < x+width; cx++ {
		screen.SetContent(cx, y, ' ', nil, style)
	}
}

// drawFrame paints a bordered box with a centered title on the top edge.
func drawFrame(screen tcell.Screen, x, y, w, h int, title string, border, bg, titleStyle tcell.Style) {
	for dy := 0; dy < h; dy++ {
		fillRow(screen, x, y+dy, w, bg)
	}
	for dx := 0; dx < w; dx++ {
		screen.SetContent(x+dx, y, '─', nil, border)
		screen.SetContent(x+dx, y+h-1, '─', nil, border)
	}
	for dy := 0; dy < h; dy++ {
		screen.SetContent(x, y+dy, '│', nil, border)
		screen.SetContent(x+w-1, y+dy, '│', nil, border)
	}
	screen.SetContent(x, y, '┌', nil, border)
	screen.SetContent(x+w-1, y, '┐', nil, border)
	screen.SetContent(x, y+h-1, '└', nil, border)
	screen.SetContent(x+w-1, y+h-1, '┘', nil, border)
	if title != "" {
		putText(screen, x+(w-len(title))/2, y, x+w-1, title, titleStyle)
	}
}

func (d *Dialog) Render(screen tcell.Screen, x, y, width, height int) {
	switch d.Type {
	case DialogFind:
		d.renderFindBar(screen, x, y, width)
		if d.ReplaceMode {
			d.renderReplaceBar(screen, x, y+1, width)
		}
	case DialogInput:
		d.renderInputBar(screen, x, y, width, d.Prompt)
	case DialogGotoLine:
		d.renderInputBar(screen, x, y, width, "Go to line: ")
	case DialogSaveAs:
		d.renderInputBar(screen, x, y, width, "Save as: ")
	case DialogSaveConfirm:
		msg := " Save changes to " + d.Input + "? [Y]es [N]o [C]ancel "
		if d.Prompt == "delete" {
			msg = " Delete " + d.Input + "? [Y]es [N]o "
		}
		style := tcell.StyleDefault.Background(tcell.ColorDarkRed).Foreground(tcell.ColorWhite)
		fillRow(screen, x, y, width, style)
		putText(screen, x, y, x+width, msg, style)
	case DialogReloadConfirm:
		style := tcell.StyleDefault.Background(tcell.ColorOrange).Foreground(tcell.ColorBlack)
		fillRow(screen, x, y, width, style)
		putText(screen, x, y, x+width, " Reload "+d.Input+" from disk? [Y]es [C]ancel ", style)
	case DialogHelp:
		d.renderHelp(screen, x, y, width, height)
	case DialogSettings:
		d.renderSettings(screen, x, y, width, height)
	}
}

var (
	barStyle       = tcell.StyleDefault.Background(tcell.ColorDarkGray).Foreground(tcell.ColorWhite)
	barPromptStyle = tcell.StyleDefault.Background(tcell.ColorDarkGray).Foreground(tcell.ColorYellow).Bold(true)
	barDimPrompt   = tcell.StyleDefault.Background(tcell.ColorDarkGray).Foreground(tcell.ColorOlive)
	barHintStyle   = barStyle.Foreground(tcell.ColorGray)
)

// renderField draws one input bar: prompt, text with an inverse-video
// cursor when the field owns it, and optional right-aligned info text.
func (d *Dialog) renderField(screen tcell.Screen, x, y, width int, prompt, text string, cursor int, active bool, info string) {
	promptStyle := barPromptStyle
	if !active {
		promptStyle = barDimPrompt
	}
	fillRow(screen, x, y, width, barStyle)
	col := putText(screen, x, y, x+width, prompt, promptStyle)

	for i, ch := range []rune(text) {
		if col >= x+width {
			break
		}
		style := barStyle
		if active && i == cursor {
			style = style.Reverse(true)
		}
		screen.SetContent(col, y, ch, nil, style)
		col++
	}
	if active && cursor >= utf8.RuneCountInString(text) && col < x+width {
		screen.SetContent(col, y, ' ', nil, barStyle.Reverse(true))
		col++
	}

	if info != "" {
		start := x + width - len(info)
		if start > col {
			putText(screen, start, y, x+width, info, barHintStyle)
		}
	}
}

func (d *Dialog) renderInputBar(screen tcell.Screen, x, y, width int, prompt string) {
	text := d.Input
	if d.MaskInput {
		text = strings.Repeat("*", utf8.RuneCountInString(d.Input))
	}
	d.renderField(screen, x, y, width, prompt, text, d.Cursor, true, "")
}

func (d *Dialog) renderFindBar(screen tcell.Screen, x, y, width int) {
	var info string
	if d.UseRegex {
		info = " [.*]"
	}
	if len(d.Matches) > 0 {
		info += " (" + strconv.Itoa(d.MatchIndex+1) + "/" + strconv.Itoa(len(d.Matches)) + ")"
	} else if d.Input != "" {
		info += " (0)"
	}
	d.renderField(screen, x, y, width, "Find: ", d.Input, d.Cursor, !d.ReplaceActive, info)
}

func (d *Dialog) renderReplaceBar(screen tcell.Screen, x, y, width int) {
	d.renderField(screen, x, y, width, "Replace: ", d.ReplaceInput, d.ReplaceCursor,
		d.ReplaceActive, " Enter=Replace  Ctrl+A=All")
}

// helpEntries drive the help overlay. An entry with a category opens a
// section; an empty key is a blank spacer line.
var helpEntries = []struct {
	category, key, desc string
}{
	{"FILE OPERATIONS", "", ""},
	{"", "Ctrl+S", "Save file"},
	{"", "Ctrl+N", "New file"},
	{"", "Ctrl+W", "Close tab"},
	{"", "F5", "Reload file from disk"},
	{"", "Ctrl+Q", "Quit editor"},
	{"", "Alt+1-9, 0", "Switch to tab 1-9, 10"},
	{"", "Ctrl+Tab", "Next tab"},
	{"", "Ctrl+Shift+Tab", "Previous tab"},
	{"", "", ""},
	{"EDITING", "", ""},
	{"", "Ctrl+Z", "Undo"},
	{"", "Ctrl+Shift+Z", "Redo"},
	{"", "Ctrl+C", "Copy (line if no sel.)"},
	{"", "Ctrl+X", "Cut (line if no sel.)"},
	{"", "Ctrl+V", "Paste"},
	{"", "Ctrl+A", "Select all"},
	{"", "Ctrl+D", "Duplicate line"},
	{"", "Ctrl+/", "Toggle line comment"},
	{"", "Alt+Up/Down", "Move line up/down"},
	{"", "Ctrl+Backspace", "Delete word backward"},
	{"", "Ctrl+Delete", "Delete word forward"},
	{"", "Tab / Shift+Tab", "Indent / Dedent"},
	{"", "", ""},
	{"NAVIGATION", "", ""},
	{"", "Ctrl+F", "Find text"},
	{"", "Ctrl+R", "Find and replace"},
	{"", "F3 / Shift+F3", "Next / Previous match"},
	{"", "Ctrl+G", "Go to line"},
	{"", "F12", "Go to definition"},
	{"", "F2", "Rename symbol"},
	{"", "Ctrl+]", "Jump to matching bracket"},
	{"", "Ctrl/Alt+Left/Right", "Word skip"},
	{"", "Shift+Arrow", "Character selection"},
	{"", "Ctrl+Shift+Arrow", "Word selection"},
	{"", "", ""},
	{"LANGUAGE SERVER", "", ""},
	{"", "Ctrl+Space", "Completion popup"},
	{"", "Ctrl+K", "Hover info"},
	{"", "Alt+F", "Format document"},
	{"", "", ""},
	{"UI & DISPLAY", "", ""},
	{"", "Ctrl+B", "Toggle file tree"},
	{"", "Ctrl+E", "Toggle tree focus"},
	{"", "Ctrl+T", "Toggle terminal"},
	{"", "Alt+,", "Settings dialog"},
	{"", "Shift+Wheel", "Horizontal scroll"},
	{"", "Shift+Click", "Extend selection"},
	{"", "Ctrl+H / F1", "Toggle help"},
	{"", "Esc", "Close dialog / Clear sel."},
}

func (d *Dialog) renderHelp(screen tcell.Screen, x, y, width, height int) {
	overlay := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorBlack)
	border := tcell.StyleDefault.Background(tcell.ColorDarkSlateGray).Foreground(tcell.ColorWhite)
	bg := border
	titleStyle := tcell.StyleDefault.Background(tcell.ColorTeal).Foreground(tcell.ColorBlack).Bold(true)
	catStyle := tcell.StyleDefault.Background(tcell.ColorDarkSlateGray).Foreground(tcell.ColorLightCyan).Bold(true)
	keyStyle := tcell.StyleDefault.Background(tcell.ColorDarkSlateGray).Foreground(tcell.ColorYellow)
	descStyle := tcell.StyleDefault.Background(tcell.ColorDarkSlateGray).Foreground(tcell.ColorSilver)
	footStyle := tcell.StyleDefault.Background(tcell.ColorDarkSlateGray).Foreground(tcell.ColorGray).Italic(true)

	w := 66
	h := len(helpEntries) + 4
	if w > width-4 {
		w = width - 4
	}
	if h > height-4 {
		h = height - 4
	}
	bx := x + (width-w)/2
	by := y + (height-h)/2

	for dy := 0; dy < height; dy++ {
		for dx := 0; dx < width; dx++ {
			screen.SetContent(x+dx, y+dy, '░', nil, overlay)
		}
	}

	drawFrame(screen, bx, by, w, h, "", border, bg, titleStyle)
	// the title bar spans the full top edge
	for dx := 1; dx < w-1; dx++ {
		screen.SetContent(bx+dx, by, '─', nil, titleStyle)
	}
	title := " ⌨  Keyboard Shortcuts "
	putText(screen, bx+(w-len(title))/2, by, bx+w-1, title, titleStyle)

	row := by + 2
	for _, e := range helpEntries {
		if row >= by+h-2 {
			break
		}
		switch {
		case e.category != "":
			putText(screen, bx+3, row, bx+w-3, e.category, catStyle)
		case e.key != "":
			putText(screen, bx+5, row, bx+w-3, e.key, keyStyle)
			putText(screen, bx+28, row, bx+w-3, e.desc, descStyle)
		}
		row++
	}

	footer := "Press ESC or F1 to close"
	putText(screen, bx+(w-len(footer))/2, by+h-1, bx+w, footer, footStyle)
}

// --- key handling ---

func (d *Dialog) HandleKey(ev *tcell.EventKey) bool {
	switch d.Type {
	case DialogSaveConfirm:
		return d.confirmKey(ev, d.Prompt != "delete")
	case DialogReloadConfirm:
		return d.confirmKey(ev, false)
	case DialogHelp:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyF1 || ev.Key() == tcell.KeyCtrlH {
			if d.OnCancel != nil {
				d.OnCancel()
			}
		}
		return true
	case DialogSettings:
		return d.handleSettingsKey(ev)
	}
	return d.handleInputKey(ev)
}

// confirmKey answers a yes/no(/cancel) bar. Escape always cancels;
// 'n' is accepted only when the dialog has a No choice.
func (d *Dialog) confirmKey(ev *tcell.EventKey, hasNo bool) bool {
	if d.OnConfirm == nil {
		return true
	}
	switch ch := ev.Rune(); {
	case ch == 'y' || ch == 'Y':
		d.OnConfirm('y')
	case hasNo && (ch == 'n' || ch == 'N'):
		d.OnConfirm('n')
	case ch == 'c' || ch == 'C' || ev.Key() == tcell.KeyEscape:
		d.OnConfirm('c')
	}
	return true
}

func (d *Dialog) handleInputKey(ev *tcell.EventKey) bool {
	if d.Type == DialogFind {
		switch ev.Key() {
		case tcell.KeyF3:
			if ev.Modifiers()&tcell.ModShift != 0 {
				d.PrevMatch()
			} else {
				d.NextMatch()
			}
			if d.OnNavigate != nil && len(d.Matches) > 0 {
				m := d.Matches[d.MatchIndex]
				d.OnNavigate(m.Line, m.Col)
			}
			return true
		case tcell.KeyTab, tcell.KeyBacktab:
			if d.ReplaceMode {
				d.ReplaceActive = !d.ReplaceActive
			}
			return true
		case tcell.KeyRune:
			if ev.Modifiers()&tcell.ModAlt != 0 && (ev.Rune() == 'r' || ev.Rune() == 'R') {
				d.UseRegex = !d.UseRegex
				return true
			}
		}
	}

	text, cursor := d.field()
	switch ev.Key() {
	case tcell.KeyEscape:
		if d.OnCancel != nil {
			d.OnCancel()
		}
		return true
	case tcell.KeyEnter:
		if d.ReplaceMode && d.ReplaceActive {
			if d.OnReplace != nil && len(d.Matches) > 0 {
				d.OnReplace(d.MatchIndex, d.ReplaceInput)
			}
			return true
		}
		if d.OnSubmit != nil {
			d.OnSubmit(d.Input)
		}
		return true
	case tcell.KeyCtrlA:
		if d.ReplaceMode && d.ReplaceActive {
			if d.OnReplaceAll != nil {
				d.OnReplaceAll(d.Input, d.ReplaceInput)
			}
			return true
		}
		return false // select-all belongs to the editor
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		fieldBackspace(text, cursor)
		return true
	case tcell.KeyDelete:
		fieldDelete(text, cursor)
		return true
	case tcell.KeyLeft:
		if *cursor > 0 {
			*cursor--
		}
		return true
	case tcell.KeyRight:
		if *cursor < utf8.RuneCountInString(*text) {
			*cursor++
		}
		return true
	case tcell.KeyHome:
		*cursor = 0
		return true
	case tcell.KeyEnd:
		*cursor = utf8.RuneCountInString(*text)
		return true
	case tcell.KeyRune:
		ch := ev.Rune()
		if d.Type == DialogGotoLine && (ch < '0' || ch > '9') {
			return true
		}
		fieldInsert(text, cursor, ch)
		return true
	}
	return false
}

// --- find matching ---

// FindMatches scans the lines for the current query, case-insensitive,
// as a literal or as a regular expression. Columns are rune indices.
func (d *Dialog) FindMatches(lines []string) {
	d.Matches = nil
	d.MatchIndex = 0
	if d.Input == "" {
		return
	}

	if d.UseRegex {
		re, err := regexp.Compile("(?i)" + d.Input)
		if err != nil {
			return
		}
		for i, line := range lines {
			for _, loc := range re.FindAllStringIndex(line, -1) {
				d.Matches = append(d.Matches, Match{
					Line:   i,
					Col:    utf8.RuneCountInString(line[:loc[0]]),
					Length: utf8.RuneCountInString(line[loc[0]:loc[1]]),
				})
			}
		}
		return
	}

	query := strings.ToLower(d.Input)
	queryLen := utf8.RuneCountInString(d.Input)
	for i, line := range lines {
		lower := strings.ToLower(line)
		from := 0
		for {
			pos := strings.Index(lower[from:], query)
			if pos < 0 {
				break
			}
			at := from + pos
			d.Matches = append(d.Matches, Match{
				Line:   i,
				Col:    utf8.RuneCountInString(line[:at]),
				Length: queryLen,
			})
			from = at + len(query)
		}
	}
}

func (d *Dialog) NextMatch() {
	if len(d.Matches) > 0 {
		d.MatchIndex = (d.MatchIndex + 1) % len(d.Matches)
	}
}

func (d *Dialog) PrevMatch() {
	if len(d.Matches) > 0 {
		d.MatchIndex = (d.MatchIndex + len(d.Matches) - 1) % len(d.Matches)
	}
}

// --- settings sidebar ---

func trimToWidth(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// settingsLines is the total row count of the rendered settings list:
// each section costs a spacer, a header and its options.
func (d *Dialog) settingsLines() int {
	n := 0
	for _, sec := range d.SettingsSections {
		n += 2 + len(sec.Indices)
	}
	return n
}

func (d *Dialog) renderSettings(screen tcell.Screen, x, y, width, height int) {
	theme := d.Theme
	if theme == nil {
		theme = config.Themes["monokai"]
	}

	titleStyle := tcell.StyleDefault.Background(theme.StatusBarModeBg).Foreground(tcell.ColorWhite).Bold(true)
	borderStyle := tcell.StyleDefault.Foreground(theme.TreeBorder).Background(theme.StatusBarBg)
	bgStyle := tcell.StyleDefault.Background(theme.StatusBarBg).Foreground(theme.StatusBarFg)
	selStyle := tcell.StyleDefault.Background(theme.Selection).Foreground(theme.Foreground).Bold(true)
	labelStyle := tcell.StyleDefault.Background(theme.StatusBarBg).Foreground(theme.TreeHeaderFg)
	valueStyle := tcell.StyleDefault.Background(theme.StatusBarBg).Foreground(theme.Foreground).Bold(true)
	footStyle := tcell.StyleDefault.Background(theme.StatusBarBg).Foreground(theme.LineNumber)
	sectionStyle := tcell.StyleDefault.Background(theme.StatusBarBg).Foreground(theme.StatusBarFg).Bold(true)

	w := width / 3
	if w < 38 {
		w = 38
	}
	if w > 56 {
		w = 56
	}
	if w > width-1 {
		w = width - 1
	}
	if w < 3 {
		return
	}
	by, h := y, height
	if height > 2 {
		// sidebar sits between the tab bar and the status bar
		by, h = y+1, height-2
	}
	if h < 3 {
		return
	}
	bx := x + width - w

	drawFrame(screen, bx, by, w, h, " Settings ", borderStyle, bgStyle, titleStyle)

	total := d.settingsLines()
	maxVis := h - 4
	if maxVis < 1 {
		maxVis = 1
	}
	d.SettingsMaxVis = maxVis

	if d.SettingsScroll < 0 {
		d.SettingsScroll = 0
	}
	if total > maxVis {
		if d.SettingsScroll > total-maxVis {
			d.SettingsScroll = total - maxVis
		}
	} else {
		d.SettingsScroll = 0
	}

	// Scroll indicator rows replace the first/last visible line when
	// content continues past them.
	topArrow, botArrow := -1, -1
	if total > maxVis {
		if d.SettingsScroll > 0 {
			topArrow = d.SettingsScroll
		}
		if d.SettingsScroll+maxVis < total {
			botArrow = d.SettingsScroll + maxVis - 1
		}
	}

	row := by + 2
	line := 0
	visible := func() bool { return line >= d.SettingsScroll && line < d.SettingsScroll+maxVis }

	for _, sec := range d.SettingsSections {
		if row >= by+h-2 {
			break
		}

		if line == topArrow {
			fillRow(screen, bx+2, row, w-4, bgStyle)
			screen.SetContent(bx+w/2, row, '▲', nil, footStyle)
			row++
			line++
		}

		// section spacer
		if visible() {
			row++
		}
		line++

		if visible() {
			putText(screen, bx+2, row, bx+w-3, trimToWidth("["+strings.ToUpper(sec.Name)+"]", w-4), sectionStyle)
			row++
		}
		line++

		for idx, optIdx := range sec.Indices {
			if row >= by+h-2 {
				break
			}
			if line == botArrow {
				fillRow(screen, bx+2, row, w-4, bgStyle)
				screen.SetContent(bx+w/2, row, '▼', nil, footStyle)
				row++
				line++
				continue
			}
			if visible() {
				style, optStyle, valStyle := bgStyle, labelStyle, valueStyle
				if optIdx == d.SettingsIndex {
					style, optStyle, valStyle = selStyle, selStyle, selStyle.Bold(true)
				}
				fillRow(screen, bx+2, row, w-4, style)
				if optIdx == d.SettingsIndex {
					screen.SetContent(bx+2, row, '>', nil, selStyle)
				}

				value := d.SettingsValues[optIdx]
				valueX := bx + w - len(value) - 2
				col := bx + 4
				if valueX <= col {
					valueX = col + 1
				}
				putText(screen, col, row, valueX-1, trimToWidth(sec.Options[idx], valueX-col-1), optStyle)
				putText(screen, valueX, row, bx+w, value, valStyle)
				row++
			}
			line++
		}
	}

	footY := by + h - 1
	if total > maxVis {
		putText(screen, bx+2, footY, bx+w, fmt.Sprintf("%d/%d", d.SettingsScroll+1, total), footStyle)
	}
	help := "< > change | ESC close"
	putText(screen, bx+(w-len(help))/2, footY, bx+w, help, footStyle)
}

func (d *Dialog) handleSettingsKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape:
		if d.OnCancel != nil {
			d.OnCancel()
		}
		return true
	case tcell.KeyUp:
		if d.SettingsIndex > 0 {
			d.SettingsIndex--
			d.scrollSettingsUp()
		}
		return true
	case tcell.KeyDown:
		if d.SettingsIndex < len(d.SettingsOptions)-1 {
			d.SettingsIndex++
			d.scrollSettingsDown()
		}
		return true
	case tcell.KeyRight, tcell.KeyEnter:
		if d.OnSettingChange != nil {
			d.OnSettingChange(d.SettingsIndex, d.SettingsValues[d.SettingsIndex])
		}
		return true
	case tcell.KeyLeft:
		if d.OnSettingChangeReverse != nil {
			d.OnSettingChangeReverse(d.SettingsIndex, d.SettingsValues[d.SettingsIndex])
		}
		return true
	}
	return false
}

// settingLine maps an option index to its row in the rendered list.
func (d *Dialog) settingLine(index int) int {
	line := 0
	for _, sec := range d.SettingsSections {
		for i, idx := range sec.Indices {
			if idx == index {
				return line + 2 + i
			}
		}
		line += 2 + len(sec.Indices)
	}
	return line
}

func (d *Dialog) scrollSettingsDown() {
	if d.SettingsMaxVis <= 0 {
		return
	}
	line := d.settingLine(d.SettingsIndex)
	if line >= d.SettingsScroll+d.SettingsMaxVis {
		d.SettingsScroll = line - d.SettingsMaxVis + 1
	}
	if total := d.settingsLines(); total > d.SettingsMaxVis && d.SettingsScroll > total-d.SettingsMaxVis {
		d.SettingsScroll = total - d.SettingsMaxVis
	}
}

func (d *Dialog) scrollSettingsUp() {
	if d.SettingsMaxVis <= 0 {
		return
	}
	if line := d.settingLine(d.SettingsIndex); line < d.SettingsScroll {
		d.SettingsScroll = line
	} else if d.SettingsIndex == 0 {
		d.SettingsScroll = 0
	}
	if d.SettingsScroll < 0 {
		d.SettingsScroll = 0
	}
}

func (d *Dialog) HandleMouse(ev *tcell.EventMouse) bool { return false }
func (d *Dialog) IsFocused() bool                       { return d.focused }
func (d *Dialog) SetFocused(f bool)                     { d.focused = f }
