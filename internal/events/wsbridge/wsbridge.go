// Package wsbridge is an optional remote event bridge: it re-broadcasts the
// typed events a running iteration emits (terminal:output, terminal:closed,
// backend-diagnostic) to any number of connected websocket clients, so a
// remote dashboard can watch a session without tailing events.jsonl off
// disk. The hub/client broadcast shape is grounded on CLIAIMONITOR's
// internal/server/hub.go.
package wsbridge

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/veighnsche/ralph/internal/events"
)

// ProtocolVersion is the current frontend-facing RPC version. Remote
// clients must hard-fail on mismatch against ProtocolVersionInfo (spec.md §6).
const ProtocolVersion uint32 = 1

// ProtocolVersionInfo is sent to a client immediately after it connects.
type ProtocolVersionInfo struct {
	ProtocolVersion uint32 `json:"protocol_version"`
}

// wireMessage is the camelCase envelope every typed event is sent in.
type wireMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type terminalOutput struct {
	SessionID string `json:"sessionId"`
	Seq       uint64 `json:"seq"`
	Data      string `json:"data"`
}

type terminalClosed struct {
	SessionID string `json:"sessionId"`
	ExitCode  int    `json:"exitCode"`
}

type backendDiagnostic struct {
	Level   string `json:"level"`
	Source  string `json:"source"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// clientSendBuffer bounds how many pending messages a slow client can queue
// before the bridge starts dropping rather than blocking the broadcaster.
const clientSendBuffer = 256

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Bridge is a websocket broadcast hub that also implements events.Sink, so
// it can be passed directly as an iteration.Config.Sink — or combined with
// a FileSink through events.Tee to get both a local log and a live feed.
type Bridge struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	upgrader websocket.Upgrader
}

// New creates an empty Bridge. allowedOrigin, if non-empty, is the only
// Origin header accepted on upgrade; an empty string allows any origin,
// appropriate for a bridge bound to localhost only.
func New(allowedOrigin string) *Bridge {
	b := &Bridge{clients: map[*client]bool{}}
	b.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}
	return b
}

// Handler upgrades an incoming request to a websocket connection and
// registers it as a broadcast target.
func (b *Bridge) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		c := &client{conn: conn, send: make(chan []byte, clientSendBuffer)}
		b.mu.Lock()
		b.clients[c] = true
		b.mu.Unlock()

		versionInfo, _ := json.Marshal(ProtocolVersionInfo{ProtocolVersion: ProtocolVersion})
		c.send <- versionInfo

		go b.writePump(c)
		b.readPump(c)
	}
}

func (b *Bridge) readPump(c *client) {
	defer b.unregister(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *Bridge) writePump(c *client) {
	defer func() { _ = c.conn.Close() }()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (b *Bridge) unregister(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
}

// ClientCount reports the number of connected remote clients.
func (b *Bridge) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *Bridge) broadcast(msgType string, data any) {
	payload, err := json.Marshal(wireMessage{Type: msgType, Data: data})
	if err != nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for c := range b.clients {
		select {
		case c.send <- payload:
		default: // slow client, drop rather than block the broadcaster
		}
	}
}

// EmitOutput implements events.Sink.
func (b *Bridge) EmitOutput(sessionID string, seq uint64, data string) {
	b.broadcast("terminal:output", terminalOutput{SessionID: sessionID, Seq: seq, Data: data})
}

// EmitClosed implements events.Sink.
func (b *Bridge) EmitClosed(sessionID string, exitCode int) {
	b.broadcast("terminal:closed", terminalClosed{SessionID: sessionID, ExitCode: exitCode})
}

// EmitDiagnostic implements events.Sink.
func (b *Bridge) EmitDiagnostic(sessionID string, level events.DiagnosticLevel, source, code, message string) {
	b.broadcast("backend-diagnostic", backendDiagnostic{Level: string(level), Source: source, Code: code, Message: message})
}

var _ events.Sink = (*Bridge)(nil)
