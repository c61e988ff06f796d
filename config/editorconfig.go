package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type EditorConfigSettings struct {
	IndentStyle            string // "tab" or "space"
	IndentSize             int    // 0 means unset
	TabWidth               int    // 0 means unset
	EndOfLine              string // "lf" or "crlf"
	TrimTrailingWhitespace bool
	InsertFinalNewline     bool
	Charset                string // "utf-8", "latin1", etc.
}

// ecFile is one parsed .editorconfig: its sections in file order plus
// whether it declared root = true.
type ecFile struct {
	sections []ecSection
	root     bool
}

type ecSection struct {
	pattern string
	props   [][2]string
}

// FindEditorConfig walks from the file's directory toward the filesystem
// root collecting .editorconfig files, stopping at the first one marked
// root = true. Matching sections are applied farthest-first so the file
// closest to the edited path wins. Returns nil when nothing matched.
func FindEditorConfig(filePath string) *EditorConfigSettings {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil
	}
	fileName := filepath.Base(absPath)

	var files []ecFile
	for dir := filepath.Dir(absPath); ; {
		if ec, ok := loadEditorConfig(filepath.Join(dir, ".editorconfig")); ok {
			files = append(files, ec)
			if ec.root {
				break
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	var s EditorConfigSettings
	applied := false
	for i := len(files) - 1; i >= 0; i-- {
		for _, sec := range files[i].sections {
			if !matchPattern(sec.pattern, fileName) {
				continue
			}
			for _, kv := range sec.props {
				if s.apply(kv[0], kv[1]) {
					applied = true
				}
			}
		}
	}
	if !applied {
		return nil
	}
	return &s
}

func loadEditorConfig(path string) (ecFile, bool) {
	f, err := os.Open(path)
	if err != nil {
		return ecFile{}, false
	}
	defer f.Close()

	var ec ecFile
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}
		if line[0] == '[' && line[len(line)-1] == ']' {
			ec.sections = append(ec.sections, ecSection{pattern: line[1 : len(line)-1]})
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:eq]))
		value := strings.ToLower(strings.TrimSpace(line[eq+1:]))
		if len(ec.sections) == 0 {
			// preamble: only "root" is meaningful there
			if key == "root" && value == "true" {
				ec.root = true
			}
			continue
		}
		last := &ec.sections[len(ec.sections)-1]
		last.props = append(last.props, [2]string{key, value})
	}
	return ec, true
}

// apply sets one property, reporting whether the key was recognized.
func (s *EditorConfigSettings) apply(key, value string) bool {
	switch key {
	case "indent_style":
		s.IndentStyle = value
	case "indent_size":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return false
		}
		s.IndentSize = n
	case "tab_width":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return false
		}
		s.TabWidth = n
	case "end_of_line":
		s.EndOfLine = value
	case "trim_trailing_whitespace":
		s.TrimTrailingWhitespace = value == "true"
	case "insert_final_newline":
		s.InsertFinalNewline = value == "true"
	case "charset":
		s.Charset = value
	default:
		return false
	}
	return true
}

// matchPattern checks fileName against an editorconfig glob. Brace
// alternatives ({js,ts}) are expanded into plain patterns first, then
// each is tried with filepath.Match.
func matchPattern(pattern, fileName string) bool {
	for _, p := range expandBraces(pattern) {
		if matched, _ := filepath.Match(p, fileName); matched {
			return true
		}
	}
	return false
}

func expandBraces(pattern string) []string {
	start := strings.IndexByte(pattern, '{')
	if start < 0 {
		return []string{pattern}
	}

	end, depth := -1, 0
	for i := start; i < len(pattern) && end < 0; i++ {
		switch pattern[i] {
		case '{':
			depth++
		case '}':
			if depth--; depth == 0 {
				end = i
			}
		}
	}
	if end < 0 {
		return []string{pattern}
	}

	var out []string
	for _, alt := range splitAlternatives(pattern[start+1 : end]) {
		out = append(out, expandBraces(pattern[:start]+alt+pattern[end+1:])...)
	}
	return out
}

// splitAlternatives splits "a,b,c" on commas outside nested braces.
func splitAlternatives(s string) []string {
	var parts []string
	depth, from := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[from:i])
				from = i + 1
			}
		}
	}
	return append(parts, s[from:])
}
