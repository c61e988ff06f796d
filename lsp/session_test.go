package lsp

import (
	"encoding/json"
	"testing"
)

func testSession(t *testing.T, caps ServerCapabilities) (*Session, *fakeServer) {
	t.Helper()
	srv := newFakeServer(t, nil)
	s := &Session{
		Language: "Go",
		Caps:     caps,
		client:   srv.client,
	}
	return s, srv
}

func incrementalCaps() ServerCapabilities {
	return ServerCapabilities{
		TextDocumentSync:   json.RawMessage(`2`),
		CompletionProvider: json.RawMessage(`{}`),
		HoverProvider:      json.RawMessage(`true`),
		SemanticTokensProvider: &SemanticTokensOptions{
			Legend: SemanticTokensLegend{TokenTypes: []string{"function", "variable"}},
		},
	}
}

func TestNewRequestSupersedesInFlightOne(t *testing.T) {
	s, srv := testSession(t, incrementalCaps())

	if !s.Completion("file:///a.go", 1, Position{Line: 0, Character: 1}) {
		t.Fatal("first completion rejected")
	}
	first := srv.read(t)

	if !s.Completion("file:///a.go", 2, Position{Line: 0, Character: 2}) {
		t.Fatal("second completion rejected")
	}
	cancel := srv.read(t)
	if cancel["method"] != "$/cancelRequest" {
		t.Fatalf("expected cancel before new request, got %v", cancel["method"])
	}
	canceledID := int(cancel["params"].(map[string]interface{})["id"].(float64))
	if canceledID != int(first["id"].(float64)) {
		t.Fatalf("canceled wrong request: %d", canceledID)
	}

	second := srv.read(t)
	srv.respond(t, int(first["id"].(float64)), `[]`)
	srv.respond(t, int(second["id"].(float64)), `[{"label":"item"}]`)

	waitFor(t, func() bool { return srv.inbox.Len() > 0 })
	msgs := srv.inbox.Drain()
	if len(msgs) != 1 || msgs[0].Version != 2 {
		t.Fatalf("only the superseding request's response may surface, got %+v", msgs)
	}
}

func TestSupersedingIsPerDocumentAndKind(t *testing.T) {
	s, srv := testSession(t, incrementalCaps())

	s.Completion("file:///a.go", 1, Position{})
	srv.read(t)
	s.Hover("file:///a.go", 1, Position{})
	msg := srv.read(t)
	// Different kind on the same document must not cancel the completion.
	if msg["method"] != "textDocument/hover" {
		t.Fatalf("expected hover without a cancel first, got %v", msg["method"])
	}

	s.Completion("file:///b.go", 1, Position{})
	msg = srv.read(t)
	if msg["method"] != "textDocument/completion" {
		t.Fatalf("expected completion for other document without cancel, got %v", msg["method"])
	}
}

func TestDidCloseCancelsInFlightRequests(t *testing.T) {
	s, srv := testSession(t, incrementalCaps())

	s.Completion("file:///a.go", 1, Position{})
	srv.read(t)
	s.Hover("file:///a.go", 1, Position{})
	srv.read(t)

	if err := s.DidClose("file:///a.go"); err != nil {
		t.Fatalf("didClose: %v", err)
	}
	cancels := 0
	for {
		msg := srv.read(t)
		if msg["method"] == "$/cancelRequest" {
			cancels++
			continue
		}
		if msg["method"] != "textDocument/didClose" {
			t.Fatalf("unexpected frame %v", msg["method"])
		}
		break
	}
	if cancels != 2 {
		t.Fatalf("expected both in-flight requests canceled before didClose, got %d", cancels)
	}
}

func TestCapabilityGatingBlocksUnsupportedRequests(t *testing.T) {
	s, srv := testSession(t, ServerCapabilities{TextDocumentSync: json.RawMessage(`1`)})

	if s.Completion("file:///a.go", 1, Position{}) {
		t.Fatal("completion must be gated off")
	}
	if s.SemanticTokens("file:///a.go", 1) {
		t.Fatal("semantic tokens must be gated off")
	}
	if s.Rename("file:///a.go", 1, Position{}, "x") {
		t.Fatal("rename must be gated off")
	}
	_ = srv
}

func TestDidChangeFallsBackToFullSync(t *testing.T) {
	s, srv := testSession(t, ServerCapabilities{TextDocumentSync: json.RawMessage(`1`)})

	changes := []ContentChange{{
		Range: &Range{Start: Position{Line: 0, Character: 1}, End: Position{Line: 0, Character: 1}},
		Text:  "x",
	}}
	if err := s.DidChange("file:///a.go", 5, changes, func() string { return "full content" }); err != nil {
		t.Fatalf("didChange: %v", err)
	}

	msg := srv.read(t)
	params := msg["params"].(map[string]interface{})
	sent := params["contentChanges"].([]interface{})
	if len(sent) != 1 {
		t.Fatalf("expected one full change, got %d", len(sent))
	}
	change := sent[0].(map[string]interface{})
	if change["range"] != nil {
		t.Fatal("full sync change must omit the range")
	}
	if change["text"] != "full content" {
		t.Fatalf("expected full content, got %v", change["text"])
	}
	doc := params["textDocument"].(map[string]interface{})
	if doc["version"] != float64(5) {
		t.Fatalf("expected version 5, got %v", doc["version"])
	}
}

func TestSyncKindParsing(t *testing.T) {
	if got := (ServerCapabilities{TextDocumentSync: json.RawMessage(`2`)}).SyncKind(); got != SyncIncremental {
		t.Fatalf("bare number: got %d", got)
	}
	if got := (ServerCapabilities{TextDocumentSync: json.RawMessage(`{"openClose":true,"change":1}`)}).SyncKind(); got != SyncFull {
		t.Fatalf("options object: got %d", got)
	}
	if got := (ServerCapabilities{}).SyncKind(); got != SyncNone {
		t.Fatalf("absent: got %d", got)
	}
}

func TestDecodeSemanticTokens(t *testing.T) {
	legend := SemanticTokensLegend{TokenTypes: []string{"function", "variable"}}
	// Two tokens on line 2 then one on line 5.
	data := []uint32{
		2, 4, 3, 0, 0, // line 2 char 4 len 3 function
		0, 6, 2, 1, 1, // line 2 char 10 len 2 variable
		3, 0, 7, 0, 0, // line 5 char 0 len 7 function
	}
	spans := DecodeSemanticTokens(data, legend)
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}
	if spans[0] != (SemanticSpan{Line: 2, StartChar: 4, Length: 3, Type: "function"}) {
		t.Fatalf("span 0: %+v", spans[0])
	}
	if spans[1].Line != 2 || spans[1].StartChar != 10 || spans[1].Type != "variable" || spans[1].Modifiers != 1 {
		t.Fatalf("span 1: %+v", spans[1])
	}
	if spans[2].Line != 5 || spans[2].StartChar != 0 {
		t.Fatalf("span 2: %+v", spans[2])
	}
}

func TestDecodeSemanticTokensSkipsUnknownTypesAndTruncation(t *testing.T) {
	legend := SemanticTokensLegend{TokenTypes: []string{"function"}}
	data := []uint32{
		0, 0, 3, 5, 0, // type index 5 out of legend
		0, 4, 2, 0, 0, // valid
		1, 1, 1, // truncated tail
	}
	spans := DecodeSemanticTokens(data, legend)
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].StartChar != 4 {
		t.Fatalf("delta accumulation must include skipped tokens, got %d", spans[0].StartChar)
	}
}
