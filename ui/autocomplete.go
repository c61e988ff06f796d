package ui

import (
	"vex/config"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

// CompletionItem is one server-provided completion, already decoded.
// InsertText falls back to Label at accept time when empty.
type CompletionItem struct {
	Label      string
	Detail     string
	InsertText string
	Kind       int
}

// completionKinds maps the protocol's CompletionItemKind numbers to a
// glyph shown in the popup's first column. Unknown kinds get a dot.
var completionKinds = map[int]rune{
	1:  '◆', // text
	2:  'ƒ', // method
	3:  'ƒ', // function
	4:  '⊕', // constructor
	5:  '◇', // field
	6:  '▸', // variable
	7:  '◻', // class
	8:  '◻', // interface
	9:  '▪', // module
	10: '◇', // property
	11: '#', // unit
	12: '=', // value
	13: 'E', // enum
	14: 'K', // keyword
	15: '⋯', // snippet
	16: '◉', // color
	17: '□', // file
	18: '→', // reference
	19: '▤', // folder
	20: 'E', // enum member
	21: 'π', // constant
	22: '◻', // struct
	23: '!', // event
	24: '±', // operator
	25: 'T', // type parameter
}

func kindGlyph(kind int) rune {
	if g, ok := completionKinds[kind]; ok {
		return g
	}
	return '·'
}

// Autocomplete is the completion popup anchored at the cursor cell. It is
// created fresh for every accepted response and discarded on accept,
// dismiss or any edit, so it carries no document state of its own.
type Autocomplete struct {
	Items    []CompletionItem
	Selected int
	Visible  bool
	X, Y     int // anchor cell in screen coordinates
	OnSelect func(item CompletionItem)
	OnClose  func()
	Theme    *config.ColorScheme

	scroll int
}

func NewAutocomplete(items []CompletionItem, x, y int, theme *config.ColorScheme) *Autocomplete {
	return &Autocomplete{
		Items:   items,
		Visible: len(items) > 0,
		X:       x,
		Y:       y,
		Theme:   theme,
	}
}

const (
	popupMinWidth = 40
	popupMaxWidth = 60
	popupMaxRows  = 10
)

// geometry sizes the popup to its widest row and flips it above the
// anchor when there is no room below.
func (a *Autocomplete) geometry(screenW, screenH int) (x, y, w, rows int) {
	w = popupMinWidth
	for _, item := range a.Items {
		rw := 2 + runewidth.StringWidth(item.Label)
		if item.Detail != "" {
			rw += 1 + runewidth.StringWidth(item.Detail)
		}
		if rw+2 > w {
			w = rw + 2
		}
	}
	if w > popupMaxWidth {
		w = popupMaxWidth
	}

	rows = len(a.Items)
	if rows > popupMaxRows {
		rows = popupMaxRows
	}

	x, y = a.X, a.Y+1
	if y+rows > screenH {
		y = a.Y - rows
	}
	if x+w > screenW {
		x = screenW - w
	}
	if x < 0 {
		x = 0
	}
	return x, y, w, rows
}

func (a *Autocomplete) Render(screen tcell.Screen, _, _, width, height int) {
	if !a.Visible || len(a.Items) == 0 {
		return
	}
	x, y, w, rows := a.geometry(width, height)

	theme := a.Theme
	if theme == nil {
		theme = config.Themes["monokai"]
	}
	rowStyle := tcell.StyleDefault.Background(theme.DialogBg).Foreground(theme.DialogFg)
	selStyle := tcell.StyleDefault.Background(theme.Selection).Foreground(theme.Foreground)
	dimStyle := tcell.StyleDefault.Background(theme.DialogBg).Foreground(theme.LineNumber)

	// Keep the selection inside the visible window.
	if a.Selected >= a.scroll+rows {
		a.scroll = a.Selected - rows + 1
	}
	if a.Selected < a.scroll {
		a.scroll = a.Selected
	}

	for row := 0; row < rows; row++ {
		idx := a.scroll + row
		if idx >= len(a.Items) {
			break
		}
		item := a.Items[idx]
		style, detail := rowStyle, dimStyle
		if idx == a.Selected {
			style, detail = selStyle, selStyle
		}

		for cx := x; cx < x+w && cx < width; cx++ {
			screen.SetContent(cx, y+row, ' ', nil, style)
		}

		screen.SetContent(x, y+row, kindGlyph(item.Kind), nil, style)
		col := drawClipped(screen, x+2, y+row, x+w, width, item.Label, style)
		if item.Detail != "" {
			drawClipped(screen, col+1, y+row, x+w, width, item.Detail, detail)
		}
	}
}

// drawClipped writes text left-to-right until limit or the screen edge,
// advancing by display width. Returns the column after the last cell.
func drawClipped(screen tcell.Screen, col, row, limit, screenW int, text string, style tcell.Style) int {
	for _, ch := range text {
		cw := runewidth.RuneWidth(ch)
		if col+cw > limit || col+cw > screenW {
			break
		}
		screen.SetContent(col, row, ch, nil, style)
		col += cw
	}
	return col
}

func (a *Autocomplete) HandleKey(ev *tcell.EventKey) bool {
	if !a.Visible {
		return false
	}

	switch ev.Key() {
	case tcell.KeyUp:
		a.move(-1)
		return true
	case tcell.KeyDown:
		a.move(1)
		return true
	case tcell.KeyPgUp:
		a.move(-popupMaxRows)
		return true
	case tcell.KeyPgDn:
		a.move(popupMaxRows)
		return true
	case tcell.KeyEnter, tcell.KeyTab:
		if a.Selected >= 0 && a.Selected < len(a.Items) && a.OnSelect != nil {
			a.OnSelect(a.Items[a.Selected])
		}
		a.Visible = false
		return true
	case tcell.KeyEscape:
		a.Visible = false
		if a.OnClose != nil {
			a.OnClose()
		}
		return true
	}
	return false
}

func (a *Autocomplete) move(delta int) {
	a.Selected += delta
	if a.Selected < 0 {
		a.Selected = 0
	}
	if a.Selected > len(a.Items)-1 {
		a.Selected = len(a.Items) - 1
	}
}

func (a *Autocomplete) HandleMouse(ev *tcell.EventMouse) bool { return false }
func (a *Autocomplete) IsFocused() bool                       { return a.Visible }
func (a *Autocomplete) SetFocused(f bool)                     { a.Visible = f }
