package ui

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"vex/config"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

// treeIgnore names entries never shown in the tree. Hidden files stay
// visible; only bulk noise is dropped.
var treeIgnore = map[string]bool{
	".git":         true,
	"node_modules": true,
	"__pycache__":  true,
	"target":       true,
	".DS_Store":    true,
}

// FileNode is one directory entry. Children of collapsed directories are
// loaded lazily on first expansion.
type FileNode struct {
	Name     string
	Path     string
	IsDir    bool
	Children []*FileNode
	Expanded bool
	Depth    int
}

// FileTree is the sidebar. rows is the flattened projection of every
// visible node, rebuilt whenever expansion state changes; all navigation
// and hit-testing runs against it.
type FileTree struct {
	root       *FileNode
	rows       []*FileNode
	selected   int
	scrollOff  int
	focused    bool
	x, y, w, h int

	mouseX, mouseY int
	pressX, pressY int
	pressed        bool

	Theme *config.ColorScheme

	OnFileOpen   func(path string)
	OnNewFile    func(dirPath string)
	OnNewDir     func(dirPath string)
	OnDeleteFile func(path string)
	OnRenameFile func(oldPath string)
}

func NewFileTree(rootPath string) *FileTree {
	ft := &FileTree{
		root: &FileNode{
			Name:     filepath.Base(rootPath),
			Path:     rootPath,
			IsDir:    true,
			Expanded: true,
		},
		mouseX: -1,
		mouseY: -1,
	}
	ft.readDir(ft.root)
	ft.rebuild()
	return ft
}

// readDir fills a directory node's children, directories first, each
// group alphabetical.
func (ft *FileTree) readDir(node *FileNode) {
	entries, err := os.ReadDir(node.Path)
	if err != nil {
		return
	}

	var dirs, files []*FileNode
	for _, e := range entries {
		if treeIgnore[e.Name()] {
			continue
		}
		child := &FileNode{
			Name:  e.Name(),
			Path:  filepath.Join(node.Path, e.Name()),
			IsDir: e.IsDir(),
			Depth: node.Depth + 1,
		}
		if child.IsDir {
			dirs = append(dirs, child)
		} else {
			files = append(files, child)
		}
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Name < dirs[j].Name })
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	node.Children = append(dirs, files...)
}

// rebuild re-flattens the visible rows after any expansion change.
func (ft *FileTree) rebuild() {
	ft.rows = ft.rows[:0]
	var walk func(*FileNode)
	walk = func(n *FileNode) {
		ft.rows = append(ft.rows, n)
		if n.IsDir && n.Expanded {
			for _, c := range n.Children {
				walk(c)
			}
		}
	}
	walk(ft.root)
}

func (ft *FileTree) toggle(node *FileNode) {
	if !node.IsDir {
		return
	}
	node.Expanded = !node.Expanded
	if node.Expanded && node.Children == nil {
		ft.readDir(node)
	}
	ft.rebuild()
}

// current returns the selected row, or nil when the tree is empty.
func (ft *FileTree) current() *FileNode {
	if ft.selected >= 0 && ft.selected < len(ft.rows) {
		return ft.rows[ft.selected]
	}
	return nil
}

func (ft *FileTree) Render(screen tcell.Screen, x, y, width, height int) {
	ft.x, ft.y, ft.w, ft.h = x, y, width, height

	theme := ft.Theme
	if theme == nil {
		theme = config.Themes["monokai"]
	}
	bgStyle := tcell.StyleDefault.Background(theme.Background).Foreground(theme.TreeFileFg)
	headerStyle := tcell.StyleDefault.Background(theme.Background).Foreground(theme.TreeHeaderFg).Bold(true)

	for cy := y; cy < y+height; cy++ {
		for cx := x; cx < x+width; cx++ {
			screen.SetContent(cx, cy, ' ', nil, bgStyle)
		}
	}
	for i, ch := range "EXPLORER" {
		if x+i < x+width {
			screen.SetContent(x+i, y, ch, nil, headerStyle)
		}
	}

	// Body rows start under the header.
	body := height - 1
	if ft.selected < ft.scrollOff {
		ft.scrollOff = ft.selected
	}
	if ft.selected >= ft.scrollOff+body {
		ft.scrollOff = ft.selected - body + 1
	}

	for i := 0; i < body && ft.scrollOff+i < len(ft.rows); i++ {
		ft.drawRow(screen, theme, ft.rows[ft.scrollOff+i], ft.scrollOff+i, y+1+i)
	}

	borderStyle := tcell.StyleDefault.Foreground(theme.TreeBorder).Background(theme.Background)
	for cy := y; cy < y+height; cy++ {
		screen.SetContent(x+width-1, cy, '│', nil, borderStyle)
	}
}

func (ft *FileTree) drawRow(screen tcell.Screen, theme *config.ColorScheme, node *FileNode, idx, row int) {
	style := tcell.StyleDefault.Background(theme.Background).Foreground(theme.TreeFileFg)
	if node.IsDir {
		style = tcell.StyleDefault.Background(theme.Background).Foreground(theme.TreeDirFg).Bold(true)
	}
	switch {
	case idx == ft.selected && ft.focused:
		style = tcell.StyleDefault.Background(theme.TreeSelectionBg).Foreground(theme.TreeFileFg)
	case idx == ft.selected:
		style = tcell.StyleDefault.Background(theme.Selection).Foreground(theme.Foreground).Dim(true)
	case ft.mouseY == row && ft.mouseX >= ft.x && ft.mouseX < ft.x+ft.w:
		lighter := theme.Background.TrueColor().Hex() + 0x101010
		style = style.Background(tcell.NewHexColor(int32(lighter)))
	}

	limit := ft.x + ft.w - 1 // right border column stays untouched
	for cx := ft.x; cx < limit; cx++ {
		screen.SetContent(cx, row, ' ', nil, style)
	}

	col := ft.x + node.Depth*2
	if node.IsDir {
		chevron := '▶'
		if node.Expanded {
			chevron = '▼'
		}
		if col < limit {
			screen.SetContent(col, row, chevron, nil, style)
		}
	}
	col += 2
	for _, ch := range node.Name {
		cw := runewidth.RuneWidth(ch)
		if col+cw > limit {
			break
		}
		screen.SetContent(col, row, ch, nil, style)
		col += cw
	}
}

func (ft *FileTree) HandleKey(ev *tcell.EventKey) bool {
	if !ft.focused {
		return false
	}
	node := ft.current()

	switch ev.Key() {
	case tcell.KeyUp:
		if ft.selected > 0 {
			ft.selected--
		}
		return true
	case tcell.KeyDown:
		if ft.selected < len(ft.rows)-1 {
			ft.selected++
		}
		return true
	case tcell.KeyEnter:
		if node == nil {
			return true
		}
		if node.IsDir {
			ft.toggle(node)
		} else if ft.OnFileOpen != nil {
			ft.OnFileOpen(node.Path)
		}
		return true
	case tcell.KeyRight:
		if node != nil && node.IsDir && !node.Expanded {
			ft.toggle(node)
		}
		return true
	case tcell.KeyLeft:
		if node != nil && node.IsDir && node.Expanded {
			ft.toggle(node)
		}
		return true
	case tcell.KeyDelete:
		if node != nil && node != ft.root && ft.OnDeleteFile != nil {
			ft.OnDeleteFile(node.Path)
		}
		return true
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'n':
			if ft.OnNewFile != nil {
				ft.OnNewFile(ft.selectedDir())
			}
			return true
		case 'N':
			if ft.OnNewDir != nil {
				ft.OnNewDir(ft.selectedDir())
			}
			return true
		case 'd':
			if node != nil && node != ft.root && ft.OnDeleteFile != nil {
				ft.OnDeleteFile(node.Path)
			}
			return true
		case 'r':
			if node != nil && node != ft.root && ft.OnRenameFile != nil {
				ft.OnRenameFile(node.Path)
			}
			return true
		}
	}
	return false
}

// selectedDir is where tree-initiated creation lands: the selected
// directory, or the parent of the selected file.
func (ft *FileTree) selectedDir() string {
	node := ft.current()
	if node == nil {
		return ft.root.Path
	}
	if node.IsDir {
		return node.Path
	}
	return filepath.Dir(node.Path)
}

func (ft *FileTree) HandleMouse(ev *tcell.EventMouse) bool {
	mx, my := ev.Position()
	ft.mouseX, ft.mouseY = mx, my

	if mx < ft.x || mx >= ft.x+ft.w || my < ft.y || my >= ft.y+ft.h {
		return false
	}

	switch btn := ev.Buttons(); {
	case btn == tcell.WheelUp:
		if ft.scrollOff > 0 {
			ft.scrollOff--
		}
		return true
	case btn == tcell.WheelDown:
		if ft.scrollOff < len(ft.rows)-1 {
			ft.scrollOff++
		}
		return true
	case btn == tcell.Button1:
		if !ft.pressed {
			ft.pressX, ft.pressY = mx, my
			ft.pressed = true
		}
		return true
	case btn == tcell.ButtonNone && ft.pressed:
		ft.pressed = false
		if mx != ft.pressX || my != ft.pressY {
			return true
		}
		idx := (my - ft.y - 1) + ft.scrollOff
		if idx < 0 || idx >= len(ft.rows) {
			return true
		}
		ft.selected = idx
		ft.focused = true
		node := ft.rows[idx]
		if node.IsDir {
			ft.toggle(node)
		} else if ft.OnFileOpen != nil {
			ft.OnFileOpen(node.Path)
		}
		return true
	}
	return false
}

// SelectPath expands every directory on the way to targetPath and selects
// it, scrolling it into view when the tree has been rendered at least once.
func (ft *FileTree) SelectPath(targetPath string) {
	rel, err := filepath.Rel(ft.root.Path, targetPath)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return
	}

	node := ft.root
	parts := strings.Split(rel, string(os.PathSeparator))
	for i, part := range parts {
		node.Expanded = true
		if node.Children == nil {
			ft.readDir(node)
		}
		var next *FileNode
		for _, c := range node.Children {
			if c.Name == part {
				next = c
				break
			}
		}
		if next == nil {
			return
		}
		node = next
		if !node.IsDir && i < len(parts)-1 {
			return
		}
	}
	ft.rebuild()

	for i, row := range ft.rows {
		if row.Path == targetPath {
			ft.selected = i
			if ft.h > 0 {
				if ft.selected < ft.scrollOff {
					ft.scrollOff = ft.selected
				} else if ft.selected >= ft.scrollOff+ft.h {
					ft.scrollOff = ft.selected - ft.h + 1
				}
			}
			return
		}
	}
}

// Refresh rescans the filesystem, keeping expansion state and selection
// for paths that still exist.
func (ft *FileTree) Refresh() {
	expanded := make(map[string]bool)
	for _, node := range ft.rows {
		if node.IsDir && node.Expanded {
			expanded[node.Path] = true
		}
	}
	var selectedPath string
	if node := ft.current(); node != nil {
		selectedPath = node.Path
	}

	ft.readDir(ft.root)
	ft.reexpand(ft.root, expanded)
	ft.rebuild()

	for i, node := range ft.rows {
		if node.Path == selectedPath {
			ft.selected = i
			break
		}
	}
}

func (ft *FileTree) reexpand(node *FileNode, expanded map[string]bool) {
	if !node.IsDir || (!expanded[node.Path] && node != ft.root) {
		return
	}
	node.Expanded = true
	if node.Children == nil {
		ft.readDir(node)
	}
	for _, child := range node.Children {
		ft.reexpand(child, expanded)
	}
}

func (ft *FileTree) IsFocused() bool   { return ft.focused }
func (ft *FileTree) SetFocused(f bool) { ft.focused = f }
