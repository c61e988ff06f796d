package lsp

import (
	"encoding/json"
	"sync"
	"time"
)

// RequestKind classifies outbound requests so at most one of each kind is
// in flight per document.
type RequestKind int

const (
	KindCompletion RequestKind = iota
	KindHover
	KindDefinition
	KindRename
	KindFormatting
	KindSemanticTokens
)

func (k RequestKind) String() string {
	switch k {
	case KindCompletion:
		return "completion"
	case KindHover:
		return "hover"
	case KindDefinition:
		return "definition"
	case KindRename:
		return "rename"
	case KindFormatting:
		return "formatting"
	case KindSemanticTokens:
		return "semanticTokens"
	}
	return "unknown"
}

type MessageKind int

const (
	MsgResponse MessageKind = iota
	MsgDiagnostics
	MsgServerDown
)

// Message is one event crossing from a transport goroutine into the UI
// loop. Responses carry the request metadata recorded at send time, so the
// consumer knows which document version the result speaks about.
type Message struct {
	Kind     MessageKind
	Language string

	// MsgResponse
	ReqKind RequestKind
	URI     string
	Version int
	SentAt  time.Time
	Result  json.RawMessage
	Err     *ResponseError

	// MsgDiagnostics
	Diagnostics PublishDiagnosticsParams
}

// Inbox is a bounded queue between transport goroutines and the UI loop.
// When full, the oldest message is dropped: every inbound payload either
// replaces prior state wholesale (diagnostics, token sets) or belongs to a
// request the session will retire by timeout, so newest-wins is safe.
type Inbox struct {
	mu      sync.Mutex
	items   []Message
	max     int
	dropped int
	wake    func()
}

const DefaultInboxCapacity = 1024

// NewInbox creates a queue holding at most max messages. wake, if set, is
// called outside the lock after every push; the editor uses it to post a
// screen event so the UI loop drains promptly.
func NewInbox(max int, wake func()) *Inbox {
	if max <= 0 {
		max = DefaultInboxCapacity
	}
	return &Inbox{max: max, wake: wake}
}

func (q *Inbox) Push(m Message) {
	q.mu.Lock()
	if len(q.items) >= q.max {
		q.items = q.items[1:]
		q.dropped++
	}
	q.items = append(q.items, m)
	wake := q.wake
	q.mu.Unlock()
	if wake != nil {
		wake()
	}
}

// Drain removes and returns all queued messages.
func (q *Inbox) Drain() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	return out
}

// Dropped returns how many messages were discarded to overflow.
func (q *Inbox) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

func (q *Inbox) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
