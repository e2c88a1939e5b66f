package store

import (
	"database/sql"

	"github.com/veighnsche/ralph/internal/rerr"
)

// CreateAgentSession records the start of an external-agent process
// invocation, human- or controller-initiated.
func (s *Store) CreateAgentSession(a AgentSession) error {
	if a.ID == "" {
		return rerr.New(rerr.CodeTaskValidation, "agent session id is required")
	}
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO agent_sessions
				(id, kind, started_by, task_id, agent, model, launch_command, pre_prompt,
				 started_at, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.Kind, string(a.StartedBy), nullInt(a.TaskID), a.Agent, nullString(a.Model),
			a.LaunchCommand, nullString(a.PrePrompt), a.Started, "running")
		if err != nil {
			return wrapDBErr("insert agent session", err)
		}
		return nil
	})
}

// CloseAgentSession records the outcome of a finished agent session.
func (s *Store) CloseAgentSession(id string, exitCode int, closingVerb, status, outputHash string, outputSize int, outputErr string) error {
	return s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE agent_sessions SET
				ended_at = CURRENT_TIMESTAMP, exit_code = ?, closing_verb = ?, status = ?,
				output_hash = ?, output_size = ?, output_error = ?
			WHERE id = ?`,
			exitCode, nullString(closingVerb), status, nullString(outputHash), outputSize, nullString(outputErr), id)
		if err != nil {
			return wrapDBErr("close agent session", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return rerr.New(rerr.CodeTaskNotFound, "agent session %q not found", id)
		}
		return nil
	})
}

// GetAgentSession fetches a single AgentSession by id.
func (s *Store) GetAgentSession(id string) (AgentSession, error) {
	var a AgentSession
	var taskID, exitCode, outputSize sql.NullInt64
	var model, prePrompt, closingVerb, outputHash, outputErr sql.NullString
	var ended sql.NullTime
	var startedBy string

	err := s.db.QueryRow(`
		SELECT id, kind, started_by, task_id, agent, model, launch_command, pre_prompt,
		       started_at, ended_at, exit_code, closing_verb, status, output_hash, output_size, output_error
		FROM agent_sessions WHERE id = ?`, id).Scan(
		&a.ID, &a.Kind, &startedBy, &taskID, &a.Agent, &model, &a.LaunchCommand, &prePrompt,
		&a.Started, &ended, &exitCode, &closingVerb, &a.Status, &outputHash, &outputSize, &outputErr)
	if err == sql.ErrNoRows {
		return AgentSession{}, rerr.New(rerr.CodeTaskNotFound, "agent session %q not found", id)
	}
	if err != nil {
		return AgentSession{}, wrapDBErr("get agent session", err)
	}
	a.StartedBy = StartedBy(startedBy)
	a.TaskID = intPtr(taskID)
	a.Model, a.PrePrompt, a.ClosingVerb = model.String, prePrompt.String, closingVerb.String
	a.OutputHash, a.OutputError = outputHash.String, outputErr.String
	a.ExitCode = intPtr(exitCode)
	a.OutputSize = intPtr(outputSize)
	if ended.Valid {
		t := ended.Time
		a.Ended = &t
	}
	return a, nil
}

// ListAgentSessions returns AgentSessions ordered newest-first, optionally
// filtered to a single Task.
func (s *Store) ListAgentSessions(taskID *int) ([]AgentSession, error) {
	query := `SELECT id FROM agent_sessions`
	var args []any
	if taskID != nil {
		query += ` WHERE task_id = ?`
		args = append(args, *taskID)
	}
	query += ` ORDER BY started_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrapDBErr("list agent sessions", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, wrapDBErr("scan agent session id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]AgentSession, 0, len(ids))
	for _, id := range ids {
		a, err := s.GetAgentSession(id)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
