package iteration

import (
	"bytes"
	"encoding/base64"
	"strings"
	"sync"

	"github.com/veighnsche/ralph/internal/events"
)

// CompletionMarker is the literal substring that, once seen anywhere in a
// session's captured output, signals task completion per spec.md §6.
const CompletionMarker = "<promise>COMPLETE</promise>"

// trackedSession accumulates one pty session's decoded output so the
// controller can scan for the completion marker and recover the full
// transcript once the session closes.
type trackedSession struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	exitCode int

	markerCh   chan struct{}
	markerOnce sync.Once
	doneCh     chan struct{}
	doneOnce   sync.Once
}

func newTrackedSession() *trackedSession {
	return &trackedSession{
		markerCh: make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Output returns everything decoded so far.
func (t *trackedSession) Output() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}

// streamTracker is an events.Sink that demultiplexes output by session id so
// a single pty.Manager can serve many sequential iterations. inner, if
// non-nil, additionally receives every event (e.g. for a GUI or file sink).
type streamTracker struct {
	mu       sync.Mutex
	sessions map[string]*trackedSession
	inner    events.Sink
}

func newStreamTracker(inner events.Sink) *streamTracker {
	return &streamTracker{sessions: map[string]*trackedSession{}, inner: inner}
}

func (t *streamTracker) track(sessionID string) *trackedSession {
	ts := newTrackedSession()
	t.mu.Lock()
	t.sessions[sessionID] = ts
	t.mu.Unlock()
	return ts
}

func (t *streamTracker) untrack(sessionID string) {
	t.mu.Lock()
	delete(t.sessions, sessionID)
	t.mu.Unlock()
}

func (t *streamTracker) get(sessionID string) *trackedSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessions[sessionID]
}

func (t *streamTracker) EmitOutput(sessionID string, seq uint64, data string) {
	if t.inner != nil {
		t.inner.EmitOutput(sessionID, seq, data)
	}
	ts := t.get(sessionID)
	if ts == nil {
		return
	}
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return
	}
	ts.mu.Lock()
	ts.buf.Write(decoded)
	found := strings.Contains(ts.buf.String(), CompletionMarker)
	ts.mu.Unlock()
	if found {
		ts.markerOnce.Do(func() { close(ts.markerCh) })
	}
}

func (t *streamTracker) EmitClosed(sessionID string, exitCode int) {
	if t.inner != nil {
		t.inner.EmitClosed(sessionID, exitCode)
	}
	ts := t.get(sessionID)
	if ts == nil {
		return
	}
	ts.mu.Lock()
	ts.exitCode = exitCode
	ts.mu.Unlock()
	ts.doneOnce.Do(func() { close(ts.doneCh) })
}

func (t *streamTracker) EmitDiagnostic(sessionID string, level events.DiagnosticLevel, source, code, message string) {
	if t.inner != nil {
		t.inner.EmitDiagnostic(sessionID, level, source, code, message)
	}
}
