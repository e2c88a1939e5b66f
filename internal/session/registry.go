// Package session tracks live AgentSession rows: an in-memory index over
// the Store's persisted table, distinguishing sessions a human started
// (freely mutable through this package's public API) from sessions the
// Iteration Controller started (only the controller may write those).
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/veighnsche/ralph/internal/rerr"
	"github.com/veighnsche/ralph/internal/store"
)

// Registry is a thin, store-backed cache of which session ids are
// currently live, keyed by id.
type Registry struct {
	store *store.Store
	live  map[string]store.StartedBy
}

// New builds a Registry over s.
func New(s *store.Store) *Registry {
	return &Registry{store: s, live: map[string]store.StartedBy{}}
}

// StartHuman records a new human-initiated session and returns its id.
func (r *Registry) StartHuman(agent, model, launchCommand, prePrompt string, taskID *int) (string, error) {
	return r.start(store.StartedByHuman, agent, model, launchCommand, prePrompt, taskID)
}

// StartControllerSession records a new controller-initiated session. Only
// the Iteration Controller should call this.
func (r *Registry) StartControllerSession(agent, model, launchCommand, prePrompt string, taskID int) (string, error) {
	return r.start(store.StartedByController, agent, model, launchCommand, prePrompt, &taskID)
}

func (r *Registry) start(by store.StartedBy, agent, model, launchCommand, prePrompt string, taskID *int) (string, error) {
	id := uuid.NewString()
	err := r.store.CreateAgentSession(store.AgentSession{
		ID:            id,
		StartedBy:     by,
		TaskID:        taskID,
		Agent:         agent,
		Model:         model,
		LaunchCommand: launchCommand,
		PrePrompt:     prePrompt,
		Started:       time.Now(),
		Status:        "running",
	})
	if err != nil {
		return "", err
	}
	r.live[id] = by
	return id, nil
}

// Close records a session's exit. A human-started session can be closed by
// anyone; a controller-started session may only be closed by the
// controller itself (asController true).
func (r *Registry) Close(id string, asController bool, exitCode int, closingVerb, status, outputHash string, outputSize int, outputErr string) error {
	by, ok := r.live[id]
	if ok && by == store.StartedByController && !asController {
		return rerr.New(rerr.CodeTaskValidation, "session %q is controller-owned; only the controller may close it", id)
	}
	if err := r.store.CloseAgentSession(id, exitCode, closingVerb, status, outputHash, outputSize, outputErr); err != nil {
		return err
	}
	delete(r.live, id)
	return nil
}

// Get fetches a session's persisted record.
func (r *Registry) Get(id string) (store.AgentSession, error) {
	return r.store.GetAgentSession(id)
}

// List returns sessions, optionally scoped to a task.
func (r *Registry) List(taskID *int) ([]store.AgentSession, error) {
	return r.store.ListAgentSessions(taskID)
}

// IsLive reports whether id is a session this Registry believes is still
// running.
func (r *Registry) IsLive(id string) bool {
	_, ok := r.live[id]
	return ok
}
