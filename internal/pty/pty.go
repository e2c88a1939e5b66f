// Package pty manages interactive pseudo-terminal sessions for spawned agent
// CLIs, streaming their output through an events.Sink with strictly
// increasing per-session sequence numbers.
package pty

import (
	"encoding/base64"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/creack/pty"

	"github.com/veighnsche/ralph/internal/events"
	"github.com/veighnsche/ralph/internal/rerr"
)

// Size is the terminal's row/column geometry.
type Size struct {
	Rows uint16
	Cols uint16
}

type session struct {
	id   string
	cmd  *exec.Cmd
	file *os.File

	writeMu sync.Mutex
	seq     uint64
}

// Manager owns the set of live pty sessions, keyed by session id.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*session
	sink     events.Sink
}

// NewManager builds a Manager that emits all session output/close events to
// sink.
func NewManager(sink events.Sink) *Manager {
	return &Manager{sessions: map[string]*session{}, sink: sink}
}

// CreateSession starts cmd attached to a new pty of the given size,
// registers it under id, and launches the reader goroutine that streams its
// output to the Manager's Sink. Callers must not reuse an id already in use.
func (m *Manager) CreateSession(id string, cmd *exec.Cmd, size Size) error {
	m.mu.Lock()
	if _, exists := m.sessions[id]; exists {
		m.mu.Unlock()
		return rerr.New(rerr.CodePTYExists, "pty session %q already exists", id)
	}
	m.mu.Unlock()

	f, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: size.Rows, Cols: size.Cols})
	if err != nil {
		return rerr.New(rerr.CodePTYCreate, "start pty for session %q: %v", id, err)
	}

	sess := &session{id: id, cmd: cmd, file: f}
	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	go m.readLoop(sess)
	return nil
}

func (m *Manager) readLoop(sess *session) {
	buf := make([]byte, 32*1024)
	for {
		n, err := sess.file.Read(buf)
		if n > 0 {
			seq := atomic.AddUint64(&sess.seq, 1)
			encoded := base64.StdEncoding.EncodeToString(buf[:n])
			m.sink.EmitOutput(sess.id, seq, encoded)
		}
		if err != nil {
			break
		}
	}

	exitErr := sess.cmd.Wait()
	exitCode := 0
	if exitErr != nil {
		if ee, ok := exitErr.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		} else {
			exitCode = -1
		}
	}
	m.sink.EmitClosed(sess.id, exitCode)

	m.mu.Lock()
	delete(m.sessions, sess.id)
	m.mu.Unlock()
}

// Write sends data to the session's stdin.
func (m *Manager) Write(id string, data []byte) error {
	sess, err := m.get(id)
	if err != nil {
		return err
	}
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	if _, err := sess.file.Write(data); err != nil {
		return rerr.New(rerr.CodePTYWrite, "write to pty session %q: %v", id, err)
	}
	return nil
}

// Resize changes a live session's terminal geometry.
func (m *Manager) Resize(id string, size Size) error {
	sess, err := m.get(id)
	if err != nil {
		return err
	}
	if err := pty.Setsize(sess.file, &pty.Winsize{Rows: size.Rows, Cols: size.Cols}); err != nil {
		return rerr.New(rerr.CodePTYWrite, "resize pty session %q: %v", id, err)
	}
	return nil
}

// Close terminates a session's process and releases its pty.
func (m *Manager) Close(id string) error {
	sess, err := m.get(id)
	if err != nil {
		return err
	}
	if sess.cmd.Process != nil {
		_ = sess.cmd.Process.Kill()
	}
	return sess.file.Close()
}

// Active reports whether id names a currently running session.
func (m *Manager) Active(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[id]
	return ok
}

func (m *Manager) get(id string) (*session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, rerr.New(rerr.CodePTYMissing, "pty session %q not found", id)
	}
	return sess, nil
}
