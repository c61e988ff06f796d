package lsp

import (
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
)

// Built-in language server commands, overridable from config.
var defaultServers = map[string][]string{
	"Go":         {"gopls"},
	"Python":     {"pyright-langserver", "--stdio"},
	"TypeScript": {"typescript-language-server", "--stdio"},
	"JavaScript": {"typescript-language-server", "--stdio"},
	"Rust":       {"rust-analyzer"},
	"C":          {"clangd"},
	"C++":        {"clangd"},
}

// languageIDs maps editor language names to LSP language identifiers.
var languageIDs = map[string]string{
	"Go":         "go",
	"Python":     "python",
	"TypeScript": "typescript",
	"JavaScript": "javascript",
	"Rust":       "rust",
	"C":          "c",
	"C++":        "cpp",
	"Java":       "java",
	"HTML":       "html",
	"CSS":        "css",
	"JSON":       "json",
	"YAML":       "yaml",
}

// LanguageID returns the wire identifier for an editor language name.
func LanguageID(language string) string {
	if id, ok := languageIDs[language]; ok {
		return id
	}
	return strings.ToLower(language)
}

// Manager starts and owns one session per language. All sessions share the
// editor's inbox; the manager never reads responses itself.
type Manager struct {
	sessions map[string]*Session
	failed   map[string]bool
	commands map[string][]string
	inbox    *Inbox
	log      *slog.Logger
	rootURI  string
}

// NewManager builds a manager rooted at workDir. serverCommands maps
// language names to full command lines from config; they take precedence
// over the built-in table and are parsed with shell quoting rules.
func NewManager(workDir string, inbox *Inbox, log *slog.Logger, serverCommands map[string]string) *Manager {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	commands := make(map[string][]string, len(defaultServers)+len(serverCommands))
	for lang, cmd := range defaultServers {
		commands[lang] = cmd
	}
	for lang, line := range serverCommands {
		parts, err := shellwords.Parse(line)
		if err != nil || len(parts) == 0 {
			log.Warn("unparseable server command in config", "language", lang, "command", line, "err", err)
			continue
		}
		commands[lang] = parts
	}
	return &Manager{
		sessions: make(map[string]*Session),
		failed:   make(map[string]bool),
		commands: commands,
		inbox:    inbox,
		log:      log,
		rootURI:  FileURI(workDir),
	}
}

// FileURI converts a file path to a file:// URI.
func FileURI(path string) string {
	absPath, _ := filepath.Abs(path)
	return "file://" + absPath
}

// URIToPath converts a file:// URI back to a file path.
func URIToPath(uri string) string {
	if strings.HasPrefix(uri, "file://") {
		return strings.TrimPrefix(uri, "file://")
	}
	return uri
}

// Session returns the running session for a language, or nil when none
// exists or it failed.
func (m *Manager) Session(language string) *Session {
	s := m.sessions[language]
	if s == nil || s.Down() {
		return nil
	}
	return s
}

// EnsureSession starts a server for the language if one is configured and
// not already running. A language whose server failed to start or died is
// not retried; documents in it stay local-only until the editor restarts.
func (m *Manager) EnsureSession(language string) *Session {
	if s, ok := m.sessions[language]; ok {
		if s.Down() {
			return nil
		}
		return s
	}
	if m.failed[language] {
		return nil
	}

	command, ok := m.commands[language]
	if !ok {
		return nil
	}
	if _, err := exec.LookPath(command[0]); err != nil {
		m.failed[language] = true
		return nil
	}

	s, err := NewSession(language, m.rootURI, m.inbox, m.log, command)
	if err != nil {
		m.log.Warn("language server failed to start", "language", language, "err", err)
		m.failed[language] = true
		return nil
	}
	m.sessions[language] = s
	return s
}

// ExpireStale retires over-age requests on every session.
func (m *Manager) ExpireStale(maxAge time.Duration) {
	for _, s := range m.sessions {
		if !s.Down() {
			s.ExpireStale(maxAge)
		}
	}
}

// Close shuts down all language servers.
func (m *Manager) Close() {
	for _, s := range m.sessions {
		s.Close()
	}
	m.sessions = make(map[string]*Session)
}
