package ui

import (
	"path/filepath"

	"vex/config"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

// Tab is one open document. The Modified and ExternallyModified flags are
// pushed in by the editor after every commit and watcher event; Preview
// tabs are replaced by the next file opened from the tree.
type Tab struct {
	Title              string
	Path               string
	Modified           bool
	ExternallyModified bool
	Preview            bool
}

// tabCell is the on-screen geometry of one rendered tab, recomputed from
// the scroll offset. Render paints from it and HandleMouse hit-tests
// against it, so the two can never disagree about where a tab is.
type tabCell struct {
	index    int
	start    int // first column, relative to the bar origin
	width    int
	closeCol int // column of the close glyph
}

type TabBar struct {
	Tabs      []Tab
	Active    int
	scrollOff int
	focused   bool

	x, y, w        int // set on render
	mouseX, mouseY int // hover tracking
	pressX, pressY int
	pressed        bool

	Theme *config.ColorScheme

	OnSwitch func(index int)
	OnClose  func(index int)
}

func NewTabBar() *TabBar {
	return &TabBar{mouseX: -1, mouseY: -1}
}

// tabTitle prefixes the dirty markers: '!' for a file changed on disk
// under local edits, '*' for plain unsaved changes.
func (tb *TabBar) tabTitle(tab Tab) string {
	switch {
	case tab.ExternallyModified:
		return "!" + tab.Title
	case tab.Modified:
		return "*" + tab.Title
	}
	return tab.Title
}

// cellWidth is the full footprint of one tab: padding, title, close
// glyph and the separator toward the next tab.
func (tb *TabBar) cellWidth(index int) int {
	if index < 0 || index >= len(tb.Tabs) {
		return 0
	}
	w := 1 + runewidth.StringWidth(tb.tabTitle(tb.Tabs[index])) + 1 + 1 + 1
	if index < len(tb.Tabs)-1 {
		w++ // separator column
	}
	return w
}

// layout places tabs left to right from the scroll offset until the bar
// runs out of columns.
func (tb *TabBar) layout(width int) []tabCell {
	var cells []tabCell
	col := 0
	for i := tb.scrollOff; i < len(tb.Tabs) && col < width; i++ {
		w := tb.cellWidth(i)
		titleW := runewidth.StringWidth(tb.tabTitle(tb.Tabs[i]))
		cells = append(cells, tabCell{
			index:    i,
			start:    col,
			width:    w,
			closeCol: col + 1 + titleW + 1,
		})
		col += w
	}
	return cells
}

func (tb *TabBar) clampScroll() {
	if len(tb.Tabs) == 0 {
		tb.scrollOff = 0
		return
	}
	if tb.scrollOff < 0 {
		tb.scrollOff = 0
	}
	if max := len(tb.Tabs) - 1; tb.scrollOff > max {
		tb.scrollOff = max
	}
}

// ensureActiveVisible nudges the scroll offset until the active tab fits
// fully inside the bar.
func (tb *TabBar) ensureActiveVisible(width int) {
	tb.clampScroll()
	if len(tb.Tabs) == 0 || width <= 0 {
		return
	}
	if tb.Active < 0 {
		tb.Active = 0
	}
	if tb.Active >= len(tb.Tabs) {
		tb.Active = len(tb.Tabs) - 1
	}
	if tb.Active < tb.scrollOff {
		tb.scrollOff = tb.Active
	}
	for tb.scrollOff < tb.Active && !tb.activeFits(width) {
		tb.scrollOff++
	}
	tb.clampScroll()
}

func (tb *TabBar) activeFits(width int) bool {
	for _, c := range tb.layout(width) {
		if c.index == tb.Active {
			return c.start+c.width <= width
		}
	}
	return false
}

func (tb *TabBar) scrollBy(delta int) {
	tb.scrollOff += delta
	tb.clampScroll()
}

// AddTab opens a tab for path, or activates the existing one.
func (tb *TabBar) AddTab(path string, modified bool) {
	for i, tab := range tb.Tabs {
		if tab.Path == path {
			tb.Active = i
			return
		}
	}
	title := filepath.Base(path)
	if title == "." || title == "" {
		title = "untitled"
	}
	tb.Tabs = append(tb.Tabs, Tab{Title: title, Path: path, Modified: modified})
	tb.Active = len(tb.Tabs) - 1
	tb.ensureActiveVisible(tb.w)
}

func (tb *TabBar) RemoveTab(index int) {
	if index < 0 || index >= len(tb.Tabs) {
		return
	}
	tb.Tabs = append(tb.Tabs[:index], tb.Tabs[index+1:]...)
	if index < tb.scrollOff {
		tb.scrollOff--
	}
	if tb.Active >= len(tb.Tabs) {
		tb.Active = len(tb.Tabs) - 1
	}
	if tb.Active < 0 {
		tb.Active = 0
	}
	tb.clampScroll()
}

func (tb *TabBar) SetModified(index int, modified bool) {
	if index >= 0 && index < len(tb.Tabs) {
		tb.Tabs[index].Modified = modified
	}
}

func (tb *TabBar) SetExternallyModified(index int, externallyModified bool) {
	if index >= 0 && index < len(tb.Tabs) {
		tb.Tabs[index].ExternallyModified = externallyModified
	}
}

func (tb *TabBar) Render(screen tcell.Screen, x, y, width, height int) {
	tb.x, tb.y, tb.w = x, y, width
	tb.ensureActiveVisible(width)

	theme := tb.Theme
	if theme == nil {
		theme = config.Themes["monokai"]
	}
	barStyle := tcell.StyleDefault.Background(theme.TabBarBg).Foreground(theme.TabBarFg)
	activeStyle := tcell.StyleDefault.Background(theme.TabBarActiveBg).Foreground(theme.TabBarActiveFg).Bold(true)

	for cx := x; cx < x+width; cx++ {
		screen.SetContent(cx, y, ' ', nil, barStyle)
	}

	for _, cell := range tb.layout(width) {
		tab := tb.Tabs[cell.index]
		style := barStyle
		if cell.index == tb.Active {
			style = activeStyle
		} else if tb.hovering(x+cell.start, x+cell.start+cell.width) {
			lighter := theme.StatusBarBg.TrueColor().Hex() + 0x101010
			style = style.Background(tcell.NewHexColor(int32(lighter)))
		}
		if tab.Preview {
			style = style.Italic(true)
		}

		closeStyle := style
		if tb.mouseY == y && tb.mouseX == x+cell.closeCol {
			_, bg, _ := style.Decompose()
			closeStyle = tcell.StyleDefault.Background(bg).Foreground(tcell.ColorRed).Bold(true)
		}

		col := x + cell.start
		put := func(ch rune, st tcell.Style) {
			if col < x+width {
				screen.SetContent(col, y, ch, nil, st)
			}
			col += runewidth.RuneWidth(ch)
		}

		put(' ', style)
		for _, ch := range tb.tabTitle(tab) {
			put(ch, style)
		}
		put(' ', style)
		put('x', closeStyle)
		put(' ', style)
		if cell.index < len(tb.Tabs)-1 {
			put('│', barStyle)
		}
	}
}

func (tb *TabBar) hovering(from, to int) bool {
	return tb.mouseY == tb.y && tb.mouseX >= from && tb.mouseX < to
}

func (tb *TabBar) HandleKey(ev *tcell.EventKey) bool {
	return false
}

func (tb *TabBar) HandleMouse(ev *tcell.EventMouse) bool {
	mx, my := ev.Position()
	btn := ev.Buttons()

	if my != tb.y || mx < tb.x || mx >= tb.x+tb.w {
		tb.mouseX, tb.mouseY = -1, -1
		tb.pressed = false
		return false
	}
	tb.mouseX, tb.mouseY = mx, my

	switch btn {
	case tcell.WheelUp, tcell.WheelLeft:
		tb.scrollBy(-1)
		return true
	case tcell.WheelDown, tcell.WheelRight:
		tb.scrollBy(1)
		return true
	}

	if btn == tcell.Button1 {
		if !tb.pressed {
			tb.pressX, tb.pressY = mx, my
			tb.pressed = true
		}
		return true
	}

	// A click is press and release on the same cell.
	if btn == tcell.ButtonNone && tb.pressed {
		tb.pressed = false
		if mx != tb.pressX || my != tb.pressY {
			return true
		}
		for _, cell := range tb.layout(tb.w) {
			if mx < tb.x+cell.start || mx >= tb.x+cell.start+cell.width {
				continue
			}
			if mx == tb.x+cell.closeCol {
				if tb.OnClose != nil {
					tb.OnClose(cell.index)
				}
			} else if tb.OnSwitch != nil {
				tb.OnSwitch(cell.index)
			}
			return true
		}
		return true
	}
	return true
}

func (tb *TabBar) IsFocused() bool   { return tb.focused }
func (tb *TabBar) SetFocused(f bool) { tb.focused = f }
