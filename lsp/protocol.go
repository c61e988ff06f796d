package lsp

import "encoding/json"

// JSON-RPC 2.0 types
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int            `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type CancelParams struct {
	ID int `json:"id"`
}

// LSP Position and Range. Character offsets count UTF-16 code units.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

type VersionedTextDocumentIdentifier struct {
	URI     string `json:"uri"`
	Version int    `json:"version"`
}

type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

// ContentChange is one incremental change inside a didChange notification.
// A nil Range means full-content replacement.
type ContentChange struct {
	Range *Range `json:"range,omitempty"`
	Text  string `json:"text"`
}

type DidChangeParams struct {
	TextDocument   VersionedTextDocumentIdentifier `json:"textDocument"`
	ContentChanges []ContentChange                 `json:"contentChanges"`
}

type DidOpenParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

type DidCloseParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

type DidSaveParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// Diagnostic represents an LSP diagnostic (error, warning, etc.)
type Diagnostic struct {
	Range    Range           `json:"range"`
	Severity int             `json:"severity"` // 1=Error, 2=Warning, 3=Info, 4=Hint
	Code     json.RawMessage `json:"code,omitempty"`
	Source   string          `json:"source,omitempty"`
	Message  string          `json:"message"`
}

// PublishDiagnosticsParams replaces the full diagnostic set for a URI.
// Version, when the server sends it, names the document version the set
// was computed against.
type PublishDiagnosticsParams struct {
	URI         string       `json:"uri"`
	Version     *int         `json:"version,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// CompletionItem represents a completion suggestion
type CompletionItem struct {
	Label         string `json:"label"`
	Kind          int    `json:"kind,omitempty"`
	Detail        string `json:"detail,omitempty"`
	Documentation string `json:"documentation,omitempty"`
	InsertText    string `json:"insertText,omitempty"`
}

type CompletionList struct {
	IsIncomplete bool             `json:"isIncomplete"`
	Items        []CompletionItem `json:"items"`
}

// Hover represents hover information
type Hover struct {
	Contents interface{} `json:"contents"`
	Range    *Range      `json:"range,omitempty"`
}

type MarkupContent struct {
	Kind  string `json:"kind"` // "plaintext" or "markdown"
	Value string `json:"value"`
}

// WorkspaceEdit represents changes to apply across files
type WorkspaceEdit struct {
	Changes map[string][]TextEdit `json:"changes"`
}

type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

type RenameParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
	NewName      string                 `json:"newName"`
}

type FormattingOptions struct {
	TabSize      int  `json:"tabSize"`
	InsertSpaces bool `json:"insertSpaces"`
}

type DocumentFormattingParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Options      FormattingOptions      `json:"options"`
}

// Semantic tokens. Data is the delta-encoded quintuple stream defined by
// the protocol: deltaLine, deltaStartChar, length, tokenType, modifiers.
type SemanticTokensParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

type SemanticTokens struct {
	ResultID string   `json:"resultId,omitempty"`
	Data     []uint32 `json:"data"`
}

type SemanticTokensLegend struct {
	TokenTypes     []string `json:"tokenTypes"`
	TokenModifiers []string `json:"tokenModifiers"`
}

// Server capability surface, only the parts the editor acts on.
type SemanticTokensOptions struct {
	Legend SemanticTokensLegend `json:"legend"`
	Full   json.RawMessage      `json:"full,omitempty"`
	Range  json.RawMessage      `json:"range,omitempty"`
}

type ServerCapabilities struct {
	TextDocumentSync       json.RawMessage        `json:"textDocumentSync,omitempty"`
	CompletionProvider     json.RawMessage        `json:"completionProvider,omitempty"`
	HoverProvider          json.RawMessage        `json:"hoverProvider,omitempty"`
	DefinitionProvider     json.RawMessage        `json:"definitionProvider,omitempty"`
	RenameProvider         json.RawMessage        `json:"renameProvider,omitempty"`
	DocumentFormatting     json.RawMessage        `json:"documentFormattingProvider,omitempty"`
	SemanticTokensProvider *SemanticTokensOptions `json:"semanticTokensProvider,omitempty"`
}

type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
}

// Text document sync kinds.
const (
	SyncNone        = 0
	SyncFull        = 1
	SyncIncremental = 2
)

// SyncKind extracts the negotiated sync kind. Servers answer with either
// a bare number or an options object holding a change field.
func (c ServerCapabilities) SyncKind() int {
	if len(c.TextDocumentSync) == 0 {
		return SyncNone
	}
	var kind int
	if err := json.Unmarshal(c.TextDocumentSync, &kind); err == nil {
		return kind
	}
	var opts struct {
		Change *int `json:"change"`
	}
	if err := json.Unmarshal(c.TextDocumentSync, &opts); err == nil && opts.Change != nil {
		return *opts.Change
	}
	return SyncNone
}

func (c ServerCapabilities) SupportsCompletion() bool { return len(c.CompletionProvider) > 0 }
func (c ServerCapabilities) SupportsHover() bool      { return boolish(c.HoverProvider) }
func (c ServerCapabilities) SupportsDefinition() bool { return boolish(c.DefinitionProvider) }
func (c ServerCapabilities) SupportsRename() bool     { return boolish(c.RenameProvider) }
func (c ServerCapabilities) SupportsFormatting() bool { return boolish(c.DocumentFormatting) }
func (c ServerCapabilities) SupportsSemanticTokens() bool {
	return c.SemanticTokensProvider != nil && len(c.SemanticTokensProvider.Legend.TokenTypes) > 0
}

// boolish treats any non-false, non-empty capability value as enabled.
func boolish(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	return true
}
