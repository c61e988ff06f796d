package lsp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"testing"
	"time"
)

// fakeServer speaks framed JSON-RPC over pipes so client behavior can be
// tested without a real language server process.
type fakeServer struct {
	in     *bufio.Reader
	out    io.Writer
	client *Client
	inbox  *Inbox
}

func newFakeServer(t *testing.T, wake func()) *fakeServer {
	t.Helper()
	clientIn, serverOut := io.Pipe()
	serverIn, clientOut := io.Pipe()

	inbox := NewInbox(0, wake)
	client := newClientFromPipes("Go", inbox, nil, clientIn, clientOut)
	t.Cleanup(func() {
		serverOut.Close()
		serverIn.Close()
	})
	return &fakeServer{
		in:     bufio.NewReader(serverIn),
		out:    serverOut,
		client: client,
		inbox:  inbox,
	}
}

func (s *fakeServer) read(t *testing.T) map[string]interface{} {
	t.Helper()
	var length int
	for {
		header, err := s.in.ReadString('\n')
		if err != nil {
			t.Fatalf("read header: %v", err)
		}
		header = strings.TrimSpace(header)
		if strings.HasPrefix(header, "Content-Length:") {
			length, _ = strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(header, "Content-Length:")))
		}
		if header == "" {
			break
		}
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(s.in, body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	var msg map[string]interface{}
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return msg
}

func (s *fakeServer) write(t *testing.T, msg string) {
	t.Helper()
	if _, err := fmt.Fprintf(s.out, "Content-Length: %d\r\n\r\n%s", len(msg), msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func (s *fakeServer) respond(t *testing.T, id int, result string) {
	s.write(t, fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":%s}`, id, result))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestResponseCarriesRequestMetadata(t *testing.T) {
	s := newFakeServer(t, nil)

	id, ok := s.client.Request(KindHover, "file:///a.go", 7, "textDocument/hover", nil)
	if !ok {
		t.Fatal("request rejected")
	}

	req := s.read(t)
	if req["method"] != "textDocument/hover" {
		t.Fatalf("unexpected method %v", req["method"])
	}
	s.respond(t, id, `{"contents":"doc"}`)

	waitFor(t, func() bool { return s.inbox.Len() > 0 })
	msgs := s.inbox.Drain()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	m := msgs[0]
	if m.Kind != MsgResponse || m.ReqKind != KindHover || m.URI != "file:///a.go" || m.Version != 7 {
		t.Fatalf("metadata mismatch: %+v", m)
	}
}

func TestCanceledResponseIsDropped(t *testing.T) {
	s := newFakeServer(t, nil)

	id, _ := s.client.Request(KindCompletion, "file:///a.go", 1, "textDocument/completion", nil)
	s.read(t) // the request

	s.client.Cancel(id)
	cancel := s.read(t)
	if cancel["method"] != "$/cancelRequest" {
		t.Fatalf("expected cancel notification, got %v", cancel["method"])
	}

	s.respond(t, id, `[]`)

	// Follow with a second request to prove the dropped response never
	// reached the inbox.
	id2, _ := s.client.Request(KindCompletion, "file:///a.go", 2, "textDocument/completion", nil)
	s.read(t)
	s.respond(t, id2, `[]`)

	waitFor(t, func() bool { return s.inbox.Len() > 0 })
	msgs := s.inbox.Drain()
	if len(msgs) != 1 || msgs[0].Version != 2 {
		t.Fatalf("expected only the live response, got %+v", msgs)
	}
}

func TestDiagnosticsNotificationReachesInbox(t *testing.T) {
	woken := make(chan struct{}, 8)
	s := newFakeServer(t, func() { woken <- struct{}{} })

	s.write(t, `{"jsonrpc":"2.0","method":"textDocument/publishDiagnostics",`+
		`"params":{"uri":"file:///a.go","version":4,"diagnostics":[`+
		`{"range":{"start":{"line":0,"character":5},"end":{"line":0,"character":8}},"severity":1,"message":"bad"}]}}`)

	select {
	case <-woken:
	case <-time.After(2 * time.Second):
		t.Fatal("wake callback never fired")
	}

	msgs := s.inbox.Drain()
	if len(msgs) != 1 || msgs[0].Kind != MsgDiagnostics {
		t.Fatalf("expected diagnostics message, got %+v", msgs)
	}
	p := msgs[0].Diagnostics
	if p.Version == nil || *p.Version != 4 || len(p.Diagnostics) != 1 {
		t.Fatalf("bad payload %+v", p)
	}
}

func TestTransportFailurePushesServerDown(t *testing.T) {
	clientIn, serverOut := io.Pipe()
	_, clientOut := io.Pipe()
	inbox := NewInbox(0, nil)
	newClientFromPipes("Rust", inbox, nil, clientIn, clientOut)

	serverOut.Close() // server died

	waitFor(t, func() bool { return inbox.Len() > 0 })
	msgs := inbox.Drain()
	if len(msgs) != 1 || msgs[0].Kind != MsgServerDown || msgs[0].Language != "Rust" {
		t.Fatalf("expected single server-down message, got %+v", msgs)
	}
}

func TestExpireStaleCancelsOldRequests(t *testing.T) {
	s := newFakeServer(t, nil)

	s.client.Request(KindSemanticTokens, "file:///a.go", 3, "textDocument/semanticTokens/full", nil)
	s.read(t)

	if n := s.client.ExpireStale(time.Hour); n != 0 {
		t.Fatalf("fresh request must not expire, retired %d", n)
	}
	if n := s.client.ExpireStale(0); n != 1 {
		t.Fatalf("expected 1 expired request, got %d", n)
	}
	cancel := s.read(t)
	if cancel["method"] != "$/cancelRequest" {
		t.Fatalf("expected cancel after expiry, got %v", cancel["method"])
	}
}

func TestExpireStalePurgesCanceledEntries(t *testing.T) {
	s := newFakeServer(t, nil)

	id, _ := s.client.Request(KindCompletion, "file:///a.go", 1, "textDocument/completion", nil)
	s.read(t)
	s.client.Cancel(id)
	s.read(t) // the cancel notification

	// The server never answers the canceled request; a sweep must not
	// count it as newly retired but must drop it from the table.
	if n := s.client.ExpireStale(0); n != 0 {
		t.Fatalf("already-canceled entry retired again, got %d", n)
	}
	s.client.mu.Lock()
	left := len(s.client.pending)
	s.client.mu.Unlock()
	if left != 0 {
		t.Fatalf("canceled entry must be purged on sweep, %d left", left)
	}
}

func TestCloseDrainsWriterAndPending(t *testing.T) {
	s := newFakeServer(t, nil)

	s.client.Request(KindHover, "file:///a.go", 1, "textDocument/hover", nil)
	s.read(t)
	if ids := s.client.PendingFor("file:///a.go", KindHover); len(ids) != 1 {
		t.Fatalf("expected one live request, got %v", ids)
	}

	done := make(chan struct{})
	go func() {
		// shutdown and exit ride the outbox out before the writer stops
		for i := 0; i < 2; i++ {
			s.read(t)
		}
		close(done)
	}()
	s.client.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("farewell frames never written")
	}

	if ids := s.client.PendingFor("file:///a.go", KindHover); len(ids) != 0 {
		t.Fatalf("pending table must drain on close, got %v", ids)
	}
	if err := s.client.Notify("textDocument/didSave", nil); err == nil {
		t.Fatal("writes after close must be rejected")
	}
}

func TestInboxDropsOldestOnOverflow(t *testing.T) {
	q := NewInbox(2, nil)
	q.Push(Message{Version: 1})
	q.Push(Message{Version: 2})
	q.Push(Message{Version: 3})

	msgs := q.Drain()
	if len(msgs) != 2 || msgs[0].Version != 2 || msgs[1].Version != 3 {
		t.Fatalf("expected newest two messages, got %+v", msgs)
	}
	if q.Dropped() != 1 {
		t.Fatalf("expected 1 dropped, got %d", q.Dropped())
	}
}

func TestServerToClientRequestGetsErrorReply(t *testing.T) {
	s := newFakeServer(t, nil)
	s.write(t, `{"jsonrpc":"2.0","id":99,"method":"workspace/configuration","params":{}}`)

	reply := s.read(t)
	if reply["id"] != float64(99) {
		t.Fatalf("expected reply to id 99, got %v", reply["id"])
	}
	if reply["error"] == nil {
		t.Fatal("expected error reply for unsupported server request")
	}
}
