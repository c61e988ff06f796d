package lsp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

type pendingReq struct {
	kind     RequestKind
	uri      string
	version  int
	method   string
	sentAt   time.Time
	canceled bool
	waiter   chan Response // non-nil only for the blocking initialize
}

// Client is the transport to one language server process. Requests never
// block the caller: responses are matched against the pending table by the
// read goroutine and delivered through the inbox. A failed read or a stuck
// write marks the transport down exactly once.
type Client struct {
	language string
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   *bufio.Reader
	inbox    *Inbox
	log      *slog.Logger

	outbox chan []byte

	mu      sync.Mutex
	nextID  int
	pending map[int]pendingReq
	down    bool
	closed  bool
}

const outboxCapacity = 256

func NewClient(language string, inbox *Inbox, log *slog.Logger, command string, args ...string) (*Client, error) {
	cmd := exec.Command(command, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = nil // discard stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	c := newClientFromPipes(language, inbox, log, stdout, stdin)
	c.cmd = cmd
	return c, nil
}

// newClientFromPipes wires a client over raw streams. Tests drive the
// protocol through io.Pipe with this.
func newClientFromPipes(language string, inbox *Inbox, log *slog.Logger, r io.Reader, w io.WriteCloser) *Client {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	c := &Client{
		language: language,
		stdin:    w,
		stdout:   bufio.NewReader(r),
		inbox:    inbox,
		log:      log,
		outbox:   make(chan []byte, outboxCapacity),
		nextID:   1,
		pending:  make(map[int]pendingReq),
	}
	go c.readLoop()
	go c.writeLoop()
	return c
}

func (c *Client) readLoop() {
	for {
		header, err := c.stdout.ReadString('\n')
		if err != nil {
			c.markDown(fmt.Errorf("read header: %w", err))
			return
		}
		header = strings.TrimSpace(header)
		if !strings.HasPrefix(header, "Content-Length:") {
			continue
		}
		length, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(header, "Content-Length:")))
		if err != nil {
			continue
		}

		// Consume remaining headers up to the blank separator.
		for {
			line, err := c.stdout.ReadString('\n')
			if err != nil {
				c.markDown(fmt.Errorf("read separator: %w", err))
				return
			}
			if strings.TrimSpace(line) == "" {
				break
			}
		}

		body := make([]byte, length)
		if _, err := io.ReadFull(c.stdout, body); err != nil {
			c.markDown(fmt.Errorf("read body: %w", err))
			return
		}

		var msg Response
		if err := json.Unmarshal(body, &msg); err != nil {
			c.log.Error("malformed message from server", "language", c.language, "err", err)
			continue
		}

		switch {
		case msg.ID != nil && msg.Method == "":
			c.handleResponse(msg)
		case msg.ID != nil:
			// Server-to-client request we do not implement.
			c.reply(*msg.ID, nil, &ResponseError{Code: -32601, Message: "method not supported"})
		case msg.Method != "":
			c.handleNotification(msg.Method, msg.Params)
		}
	}
}

func (c *Client) handleResponse(msg Response) {
	c.mu.Lock()
	req, ok := c.pending[*msg.ID]
	if ok {
		delete(c.pending, *msg.ID)
	}
	c.mu.Unlock()
	if !ok || req.canceled {
		return
	}
	if req.waiter != nil {
		req.waiter <- msg
		return
	}
	if msg.Error != nil {
		c.log.Warn("request failed", "language", c.language, "method", req.method,
			"code", msg.Error.Code, "err", msg.Error.Message)
	}
	c.inbox.Push(Message{
		Kind:     MsgResponse,
		Language: c.language,
		ReqKind:  req.kind,
		URI:      req.uri,
		Version:  req.version,
		SentAt:   req.sentAt,
		Result:   msg.Result,
		Err:      msg.Error,
	})
}

func (c *Client) handleNotification(method string, params json.RawMessage) {
	switch method {
	case "textDocument/publishDiagnostics":
		var p PublishDiagnosticsParams
		if err := json.Unmarshal(params, &p); err != nil {
			c.log.Error("bad publishDiagnostics payload", "language", c.language, "err", err)
			return
		}
		c.inbox.Push(Message{Kind: MsgDiagnostics, Language: c.language, Diagnostics: p})
	case "window/logMessage", "window/showMessage":
		var p struct {
			Type    int    `json:"type"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(params, &p); err == nil {
			c.log.Debug("server message", "language", c.language, "type", p.Type, "msg", p.Message)
		}
	}
}

// Request sends an asynchronous request. The response arrives through the
// inbox tagged with kind, uri and version. Returns the request ID, or
// false when the transport is down or saturated.
func (c *Client) Request(kind RequestKind, uri string, version int, method string, params interface{}) (int, bool) {
	c.mu.Lock()
	if c.down {
		c.mu.Unlock()
		return 0, false
	}
	id := c.nextID
	c.nextID++
	c.pending[id] = pendingReq{
		kind:    kind,
		uri:     uri,
		version: version,
		method:  method,
		sentAt:  time.Now(),
	}
	c.mu.Unlock()

	if !c.enqueue(Request{JSONRPC: "2.0", ID: id, Method: method, Params: params}) {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return 0, false
	}
	return id, true
}

// RequestBlocking sends a request and waits for its response. Only the
// initialize handshake uses it; everything after goes through Request.
func (c *Client) RequestBlocking(method string, params interface{}, timeout time.Duration) (json.RawMessage, error) {
	waiter := make(chan Response, 1)
	c.mu.Lock()
	if c.down {
		c.mu.Unlock()
		return nil, fmt.Errorf("%s: server transport down", c.language)
	}
	id := c.nextID
	c.nextID++
	c.pending[id] = pendingReq{method: method, sentAt: time.Now(), waiter: waiter}
	c.mu.Unlock()

	if !c.enqueue(Request{JSONRPC: "2.0", ID: id, Method: method, Params: params}) {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("%s: server not accepting writes", c.language)
	}

	select {
	case resp := <-waiter:
		if resp.Error != nil {
			return nil, fmt.Errorf("%s %s: %s", c.language, method, resp.Error.Message)
		}
		return resp.Result, nil
	case <-time.After(timeout):
		c.Cancel(id)
		return nil, fmt.Errorf("%s %s: no response within %s", c.language, method, timeout)
	}
}

// Cancel retires a pending request. Its eventual response is dropped and
// the server is told to stop working on it.
func (c *Client) Cancel(id int) {
	c.mu.Lock()
	req, ok := c.pending[id]
	if ok {
		req.canceled = true
		c.pending[id] = req
	}
	c.mu.Unlock()
	if ok {
		c.Notify("$/cancelRequest", CancelParams{ID: id})
	}
}

// ExpireStale cancels pending requests older than maxAge and returns how
// many were retired. Entries canceled earlier whose responses never came
// are dropped from the table on the same sweep; servers are not obliged
// to answer a canceled request.
func (c *Client) ExpireStale(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	var stale []int
	c.mu.Lock()
	for id, req := range c.pending {
		if req.waiter != nil || !req.sentAt.Before(cutoff) {
			continue
		}
		if req.canceled {
			delete(c.pending, id)
			continue
		}
		req.canceled = true
		c.pending[id] = req
		stale = append(stale, id)
	}
	c.mu.Unlock()
	for _, id := range stale {
		c.Notify("$/cancelRequest", CancelParams{ID: id})
	}
	return len(stale)
}

// PendingFor returns the IDs of live pending requests matching uri and kind.
func (c *Client) PendingFor(uri string, kind RequestKind) []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []int
	for id, req := range c.pending {
		if !req.canceled && req.waiter == nil && req.uri == uri && req.kind == kind {
			ids = append(ids, id)
		}
	}
	return ids
}

func (c *Client) Notify(method string, params interface{}) error {
	msg := struct {
		JSONRPC string      `json:"jsonrpc"`
		Method  string      `json:"method"`
		Params  interface{} `json:"params,omitempty"`
	}{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	}
	if !c.enqueueAny(msg) {
		return fmt.Errorf("%s: server not accepting writes", c.language)
	}
	return nil
}

func (c *Client) reply(id int, result interface{}, respErr *ResponseError) {
	msg := struct {
		JSONRPC string         `json:"jsonrpc"`
		ID      int            `json:"id"`
		Result  interface{}    `json:"result"`
		Error   *ResponseError `json:"error,omitempty"`
	}{JSONRPC: "2.0", ID: id, Result: result, Error: respErr}
	c.enqueueAny(msg)
}

func (c *Client) enqueue(req Request) bool { return c.enqueueAny(req) }

// enqueueAny frames the message and hands it to the writer goroutine. A
// full outbox means the server stopped consuming its stdin; that counts as
// transport failure rather than something to block the UI on.
func (c *Client) enqueueAny(msg interface{}) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("marshal outbound message", "language", c.language, "err", err)
		return false
	}
	framed := append([]byte(fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))), data...)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	select {
	case c.outbox <- framed:
		c.mu.Unlock()
		return true
	default:
		c.mu.Unlock()
		c.markDown(fmt.Errorf("outbox full"))
		return false
	}
}

func (c *Client) writeLoop() {
	for data := range c.outbox {
		if _, err := c.stdin.Write(data); err != nil {
			c.markDown(fmt.Errorf("write: %w", err))
			return
		}
	}
}

// markDown transitions the transport to its terminal failed state and
// tells the UI loop once.
func (c *Client) markDown(cause error) {
	c.mu.Lock()
	if c.down {
		c.mu.Unlock()
		return
	}
	c.down = true
	closed := c.closed
	c.mu.Unlock()

	if !closed {
		c.log.Error("server transport down", "language", c.language, "cause", cause)
		c.inbox.Push(Message{Kind: MsgServerDown, Language: c.language})
	}
}

// Down reports whether the transport has failed.
func (c *Client) Down() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.down
}

func (c *Client) Close() {
	c.Notify("shutdown", nil)
	c.Notify("exit", nil)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	// No response can arrive once the transport goes away.
	c.pending = make(map[int]pendingReq)
	c.mu.Unlock()

	// Closing the outbox lets the writer drain the farewell and exit.
	close(c.outbox)
	time.Sleep(50 * time.Millisecond)
	c.stdin.Close()
	if c.cmd != nil {
		c.cmd.Wait()
	}
}
