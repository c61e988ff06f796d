package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/gdamore/tcell/v2"
)

type Config struct {
	TabSize            int     `json:"tab_size"`
	Shell              string  `json:"shell"`
	TreeWidth          int     `json:"tree_width"`
	TermRatio          float64 `json:"terminal_ratio"`
	Theme              string  `json:"theme"`
	AutoClose          bool    `json:"auto_close"`
	QuoteWrapSelection bool    `json:"quote_wrap_selection"`
	TrimTrailingSpace  bool    `json:"trim_trailing_whitespace"`
	InsertFinalNewline bool    `json:"insert_final_newline"`

	// Servers maps a language name to the command line that starts its
	// LSP server, overriding the built-in defaults. Parsed with
	// shell-style word splitting, e.g. "gopls -remote=auto".
	Servers map[string]string `json:"language_servers,omitempty"`
}

// LanguageTabSize returns the appropriate tab size for a given language.
// Returns the per-language default or the user's configured tab size.
func (c *Config) LanguageTabSize(language string) int {
	switch language {
	case "JavaScript", "TypeScript", "JSON", "HTML", "CSS", "SCSS",
		"YAML", "Vue", "Svelte", "JSX", "TSX", "TOML":
		return 2
	case "Go", "Python", "Java", "C", "C++", "Rust", "C#", "PHP":
		return 4
	case "Makefile":
		return 8 // Makefiles use real tabs, but this sets the visual width
	default:
		return c.TabSize
	}
}

// LanguageUseTabs returns whether a language should use real tabs vs spaces.
func (c *Config) LanguageUseTabs(language string) bool {
	switch language {
	case "Go", "Makefile":
		return true
	default:
		return false
	}
}

type ColorScheme struct {
	Name             string
	Background       tcell.Color
	Foreground       tcell.Color
	Selection        tcell.Color
	LineNumber       tcell.Color
	LineNumberActive tcell.Color
	StatusBarBg      tcell.Color
	StatusBarFg      tcell.Color
	StatusBarModeBg  tcell.Color
	TabBarBg         tcell.Color
	TabBarFg         tcell.Color
	TabBarActiveBg   tcell.Color
	TabBarActiveFg   tcell.Color
	TreeHeaderFg     tcell.Color
	TreeDirFg        tcell.Color
	TreeFileFg       tcell.Color
	TreeSelectionBg  tcell.Color
	TreeBorder       tcell.Color
	DialogBg         tcell.Color
	DialogFg         tcell.Color
	DialogInputBg    tcell.Color
	IndentGuide      tcell.Color
}

// palette is the minimal color set a theme defines. scheme expands it
// into a full ColorScheme: most slots derive from bg/fg/panel/dim, and
// the handful of themes that deviate patch the result afterwards.
type palette struct {
	bg     tcell.Color // editor and tab bar background
	fg     tcell.Color // primary text
	panel  tcell.Color // selections, status bar, active tab
	dim    tcell.Color // line numbers, inactive tabs, borders
	accent tcell.Color // status bar mode indicator
	header tcell.Color // file tree header
	dir    tcell.Color // directory names
	guide  tcell.Color // indent guides
}

func (p palette) scheme(name string, tweaks ...func(*ColorScheme)) *ColorScheme {
	s := &ColorScheme{
		Name:             name,
		Background:       p.bg,
		Foreground:       p.fg,
		Selection:        p.panel,
		LineNumber:       p.dim,
		LineNumberActive: p.fg,
		StatusBarBg:      p.panel,
		StatusBarFg:      p.fg,
		StatusBarModeBg:  p.accent,
		TabBarBg:         p.bg,
		TabBarFg:         p.dim,
		TabBarActiveBg:   p.panel,
		TabBarActiveFg:   p.fg,
		TreeHeaderFg:     p.header,
		TreeDirFg:        p.dir,
		TreeFileFg:       p.fg,
		TreeSelectionBg:  p.panel,
		TreeBorder:       p.dim,
		DialogBg:         p.bg,
		DialogFg:         p.fg,
		DialogInputBg:    p.panel,
		IndentGuide:      p.guide,
	}
	for _, t := range tweaks {
		t(s)
	}
	return s
}

func hex(v int32) tcell.Color { return tcell.NewHexColor(v) }

var Themes = map[string]*ColorScheme{
	"dark": palette{
		bg: tcell.ColorBlack, fg: tcell.ColorWhite,
		panel: tcell.ColorDarkBlue, dim: tcell.ColorGray,
		accent: tcell.ColorBlue, header: tcell.ColorYellow,
		dir: tcell.ColorBlue, guide: tcell.ColorDimGray,
	}.scheme("Dark"),
	"light": palette{
		bg: tcell.ColorWhite, fg: tcell.ColorBlack,
		panel: tcell.ColorLightBlue, dim: tcell.ColorGray,
		accent: tcell.ColorBlue, header: tcell.ColorBlue,
		dir: tcell.ColorBlue, guide: tcell.ColorLightGray,
	}.scheme("Light", func(s *ColorScheme) {
		s.DialogInputBg = tcell.ColorLightGray
	}),
	"monokai": palette{
		bg: hex(0x272822), fg: hex(0xF8F8F2),
		panel: hex(0x49483E), dim: hex(0x909080),
		accent: hex(0x66D9EF), header: hex(0xF92672),
		dir: hex(0x66D9EF), guide: hex(0x46473C),
	}.scheme("Monokai"),
	"nord": palette{
		bg: hex(0x2E3440), fg: hex(0xECEFF4),
		panel: hex(0x434C5E), dim: hex(0x4C566A),
		accent: hex(0x88C0D0), header: hex(0x88C0D0),
		dir: hex(0x88C0D0), guide: hex(0x3B4252),
	}.scheme("Nord"),
	"solarized-dark": palette{
		bg: hex(0x002B36), fg: hex(0x839496),
		panel: hex(0x073642), dim: hex(0x586E75),
		accent: hex(0x268BD2), header: hex(0xCB4B16),
		dir: hex(0x268BD2), guide: hex(0x1E4149),
	}.scheme("Solarized Dark", func(s *ColorScheme) {
		// base1 for emphasized text
		s.LineNumberActive = hex(0x93A1A1)
		s.StatusBarFg = hex(0x93A1A1)
		s.TabBarActiveFg = hex(0x93A1A1)
	}),
	"gruvbox": palette{
		bg: hex(0x282828), fg: hex(0xEBDBB2),
		panel: hex(0x3C3836), dim: hex(0x928374),
		accent: hex(0xB8BB26), header: hex(0xFE8019),
		dir: hex(0x83A598), guide: hex(0x504945),
	}.scheme("Gruvbox Dark", func(s *ColorScheme) {
		s.LineNumberActive = hex(0xFBF1C7)
		s.TreeBorder = hex(0x665C54)
	}),
	"gruvbox-light": palette{
		bg: hex(0xFBF1C7), fg: hex(0x3C3836),
		panel: hex(0xD5C4A1), dim: hex(0xBDAE93),
		accent: hex(0x79740E), header: hex(0xAF3A03),
		dir: hex(0x458588), guide: hex(0xD5C4A1),
	}.scheme("Gruvbox Light", func(s *ColorScheme) {
		s.TabBarFg = hex(0x928374)
	}),
	"dracula": palette{
		bg: hex(0x282A36), fg: hex(0xF8F8F2),
		panel: hex(0x44475A), dim: hex(0x6272A4),
		accent: hex(0xBD93F9), header: hex(0xFF79C6),
		dir: hex(0x8BE9FD), guide: hex(0x373A4B),
	}.scheme("Dracula"),
	"one-dark": palette{
		bg: hex(0x282C34), fg: hex(0xABB2BF),
		panel: hex(0x3D424D), dim: hex(0x5C6370),
		accent: hex(0x61AFEF), header: hex(0xC678DD),
		dir: hex(0x61AFEF), guide: hex(0x343843),
	}.scheme("One Dark"),
	"tokyo-night": palette{
		bg: hex(0x1A1B26), fg: hex(0xA9B1D6),
		panel: hex(0x2F3449), dim: hex(0x565F89),
		accent: hex(0x7DCFFF), header: hex(0xBB9AF7),
		dir: hex(0x7DCFFF), guide: hex(0x282C3C),
	}.scheme("Tokyo Night"),
	"catppuccin": palette{
		bg: hex(0x1E1E2E), fg: hex(0xCDD6F4),
		panel: hex(0x45475A), dim: hex(0x6C7086),
		accent: hex(0xB4BEFE), header: hex(0xF5C2E7),
		dir: hex(0x89DCEB), guide: hex(0x343541),
	}.scheme("Catppuccin Mocha"),
	"high-contrast": palette{
		bg: hex(0x000000), fg: hex(0xFFFFFF),
		panel: hex(0x0000C8), dim: hex(0xB4B4B4),
		accent: hex(0xC8C800), header: hex(0xFFFF00),
		dir: hex(0x64C8FF), guide: hex(0x3C3C3C),
	}.scheme("High Contrast", func(s *ColorScheme) {
		s.Selection = hex(0x0050A0)
		s.TreeSelectionBg = hex(0x0050A0)
		s.LineNumberActive = hex(0xFFFF00)
		s.TreeBorder = hex(0xFFFFFF)
		s.DialogInputBg = hex(0x282828)
	}),
}

func Default() *Config {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}
	return &Config{
		TabSize:            4,
		Shell:              shell,
		TreeWidth:          24,
		TermRatio:          0.30,
		Theme:              "monokai",
		AutoClose:          true,
		QuoteWrapSelection: true,
		TrimTrailingSpace:  false,
		InsertFinalNewline: true,
	}
}

func (c *Config) GetTheme() *ColorScheme {
	theme, ok := Themes[c.Theme]
	if !ok {
		return Themes["monokai"]
	}
	return theme
}

func ConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "vex", "settings.json")
}

// DataDir is where runtime artifacts live: debug logs, crash backups and
// session state.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "vex")
}

// LogPath returns the protocol/transport debug log location. A full-screen
// TUI cannot write to stdout, so slog output goes here.
func LogPath() string {
	return filepath.Join(DataDir(), "lsp.log")
}

func Load() (*Config, error) {
	path := ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		// If file doesn't exist, return default config
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Save() error {
	path := ConfigPath()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
