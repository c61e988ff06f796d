package lsp

import (
	"encoding/json"
	"io"
	"log/slog"
	"time"
)

// semanticTokenTypes is the client-side legend offered during initialize.
var semanticTokenTypes = []string{
	"namespace", "type", "class", "enum", "interface", "struct",
	"typeParameter", "parameter", "variable", "property", "enumMember",
	"event", "function", "method", "macro", "keyword", "modifier",
	"comment", "string", "number", "regexp", "operator", "decorator",
}

var semanticTokenModifiers = []string{
	"declaration", "definition", "readonly", "static", "deprecated",
	"abstract", "async", "modification", "documentation", "defaultLibrary",
}

// Session is one initialized language server. It layers request policy on
// the raw client: per-document, per-kind superseding so a burst of
// keystrokes holds at most one completion and one token request in flight,
// and capability gating so unsupported requests are never sent.
type Session struct {
	Language string
	Caps     ServerCapabilities

	client *Client
	log    *slog.Logger
}

const initializeTimeout = 10 * time.Second

// NewSession spawns the server and runs the initialize handshake. This is
// the only blocking exchange with a server; everything after flows through
// the inbox.
func NewSession(language, rootURI string, inbox *Inbox, log *slog.Logger, command []string) (*Session, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	client, err := NewClient(language, inbox, log, command[0], command[1:]...)
	if err != nil {
		return nil, err
	}

	initParams := map[string]interface{}{
		"processId": nil,
		"rootUri":   rootURI,
		"capabilities": map[string]interface{}{
			"general": map[string]interface{}{
				"positionEncodings": []string{"utf-16"},
			},
			"textDocument": map[string]interface{}{
				"synchronization": map[string]interface{}{
					"didSave": true,
				},
				"completion": map[string]interface{}{
					"completionItem": map[string]interface{}{
						"snippetSupport": false,
					},
				},
				"hover": map[string]interface{}{
					"contentFormat": []string{"plaintext"},
				},
				"publishDiagnostics": map[string]interface{}{
					"versionSupport": true,
				},
				"semanticTokens": map[string]interface{}{
					"requests":       map[string]interface{}{"full": true},
					"tokenTypes":     semanticTokenTypes,
					"tokenModifiers": semanticTokenModifiers,
					"formats":        []string{"relative"},
				},
			},
		},
	}

	raw, err := client.RequestBlocking("initialize", initParams, initializeTimeout)
	if err != nil {
		client.Close()
		return nil, err
	}
	var result InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		client.Close()
		return nil, err
	}
	client.Notify("initialized", map[string]interface{}{})

	log.Info("language server ready", "language", language,
		"sync", result.Capabilities.SyncKind(),
		"semanticTokens", result.Capabilities.SupportsSemanticTokens())

	return &Session{
		Language: language,
		Caps:     result.Capabilities,
		client:   client,
		log:      log,
	}, nil
}

// NewSessionFromTransport wires a session over pre-established streams and
// already-known capabilities, skipping process spawn and handshake. Used
// for servers reached over sockets and for tests.
func NewSessionFromTransport(language string, caps ServerCapabilities, inbox *Inbox, log *slog.Logger, r io.Reader, w io.WriteCloser) *Session {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Session{
		Language: language,
		Caps:     caps,
		client:   newClientFromPipes(language, inbox, log, r, w),
		log:      log,
	}
}

// Down reports whether the server transport has failed. A down session
// never recovers; affected documents stay local-only until reopened.
func (s *Session) Down() bool { return s.client.Down() }

// Legend returns the server's semantic token legend.
func (s *Session) Legend() SemanticTokensLegend {
	if s.Caps.SemanticTokensProvider == nil {
		return SemanticTokensLegend{}
	}
	return s.Caps.SemanticTokensProvider.Legend
}

func (s *Session) DidOpen(uri, languageID string, version int, text string) error {
	return s.client.Notify("textDocument/didOpen", DidOpenParams{
		TextDocument: TextDocumentItem{URI: uri, LanguageID: languageID, Version: version, Text: text},
	})
}

// DidChange ships committed edits. When the server negotiated full sync,
// fullText is consulted and a single whole-content change goes out instead
// of the incremental ranges.
func (s *Session) DidChange(uri string, version int, changes []ContentChange, fullText func() string) error {
	if s.Caps.SyncKind() == SyncNone {
		return nil
	}
	if s.Caps.SyncKind() != SyncIncremental {
		changes = []ContentChange{{Text: fullText()}}
	}
	return s.client.Notify("textDocument/didChange", DidChangeParams{
		TextDocument:   VersionedTextDocumentIdentifier{URI: uri, Version: version},
		ContentChanges: changes,
	})
}

func (s *Session) DidSave(uri string) error {
	return s.client.Notify("textDocument/didSave", DidSaveParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	})
}

func (s *Session) DidClose(uri string) error {
	// A closed document cannot consume answers anymore.
	for kind := KindCompletion; kind <= KindSemanticTokens; kind++ {
		for _, id := range s.client.PendingFor(uri, kind) {
			s.client.Cancel(id)
		}
	}
	return s.client.Notify("textDocument/didClose", DidCloseParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	})
}

// request sends with superseding: a newer request of the same kind for the
// same document cancels anything still in flight.
func (s *Session) request(kind RequestKind, uri string, version int, method string, params interface{}) bool {
	for _, id := range s.client.PendingFor(uri, kind) {
		s.client.Cancel(id)
	}
	_, ok := s.client.Request(kind, uri, version, method, params)
	return ok
}

func (s *Session) Completion(uri string, version int, pos Position) bool {
	if !s.Caps.SupportsCompletion() {
		return false
	}
	return s.request(KindCompletion, uri, version, "textDocument/completion", TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Position:     pos,
	})
}

func (s *Session) Hover(uri string, version int, pos Position) bool {
	if !s.Caps.SupportsHover() {
		return false
	}
	return s.request(KindHover, uri, version, "textDocument/hover", TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Position:     pos,
	})
}

func (s *Session) Definition(uri string, version int, pos Position) bool {
	if !s.Caps.SupportsDefinition() {
		return false
	}
	return s.request(KindDefinition, uri, version, "textDocument/definition", TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Position:     pos,
	})
}

func (s *Session) SemanticTokens(uri string, version int) bool {
	if !s.Caps.SupportsSemanticTokens() {
		return false
	}
	return s.request(KindSemanticTokens, uri, version, "textDocument/semanticTokens/full", SemanticTokensParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	})
}

func (s *Session) Rename(uri string, version int, pos Position, newName string) bool {
	if !s.Caps.SupportsRename() {
		return false
	}
	return s.request(KindRename, uri, version, "textDocument/rename", RenameParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Position:     pos,
		NewName:      newName,
	})
}

func (s *Session) Formatting(uri string, version, tabSize int, insertSpaces bool) bool {
	if !s.Caps.SupportsFormatting() {
		return false
	}
	return s.request(KindFormatting, uri, version, "textDocument/formatting", DocumentFormattingParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Options:      FormattingOptions{TabSize: tabSize, InsertSpaces: insertSpaces},
	})
}

// ExpireStale retires requests the server has sat on longer than maxAge.
func (s *Session) ExpireStale(maxAge time.Duration) int {
	return s.client.ExpireStale(maxAge)
}

func (s *Session) Close() {
	s.client.Close()
}
