package store

import (
	"database/sql"

	"github.com/veighnsche/ralph/internal/rerr"
)

// permittedTransitions enumerates the Task status state machine. A status
// may always transition to itself (no-op update).
var permittedTransitions = map[TaskStatus][]TaskStatus{
	TaskPending:    {TaskPending, TaskInProgress, TaskSkipped, TaskBlocked},
	TaskInProgress: {TaskInProgress, TaskDone, TaskBlocked, TaskSkipped, TaskPending},
	TaskBlocked:    {TaskBlocked, TaskPending, TaskInProgress, TaskSkipped},
	TaskDone:       {TaskDone},
	TaskSkipped:    {TaskSkipped, TaskPending},
}

func transitionAllowed(from, to TaskStatus) bool {
	for _, s := range permittedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CreateTask validates and inserts a new Task, assigning it the next free
// monotone id (max existing id + 1, starting at 1).
func (s *Store) CreateTask(t Task) (Task, error) {
	if t.Title == "" {
		return Task{}, rerr.New(rerr.CodeTaskValidation, "task title is required")
	}
	if t.Status == "" {
		t.Status = TaskPending
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Provenance == "" {
		t.Provenance = ProvenanceHuman
	}

	err := s.withTx(func(tx *sql.Tx) error {
		var subExists int
		if err := tx.QueryRow(`SELECT 1 FROM subsystems WHERE name = ?`, t.Subsystem).Scan(&subExists); err != nil {
			if err == sql.ErrNoRows {
				return rerr.New(rerr.CodeSubsystemNotFound, "subsystem %q not found", t.Subsystem)
			}
			return wrapDBErr("check subsystem", err)
		}
		var discExists int
		if err := tx.QueryRow(`SELECT 1 FROM disciplines WHERE name = ?`, t.Discipline).Scan(&discExists); err != nil {
			if err == sql.ErrNoRows {
				return rerr.New(rerr.CodeDisciplineNotFound, "discipline %q not found", t.Discipline)
			}
			return wrapDBErr("check discipline", err)
		}

		for _, dep := range t.DependsOn {
			var exists int
			if err := tx.QueryRow(`SELECT 1 FROM tasks WHERE id = ?`, dep).Scan(&exists); err != nil {
				if err == sql.ErrNoRows {
					return rerr.New(rerr.CodeTaskDependency, "dependency %d does not exist", dep)
				}
				return wrapDBErr("check dependency", err)
			}
		}

		var maxID sql.NullInt64
		if err := tx.QueryRow(`SELECT MAX(id) FROM tasks`).Scan(&maxID); err != nil {
			return wrapDBErr("read max task id", err)
		}
		t.ID = int(maxID.Int64) + 1
		for _, dep := range t.DependsOn {
			if dep == t.ID {
				return rerr.New(rerr.CodeTaskDependency, "task %d cannot depend on itself", t.ID)
			}
		}

		_, err := tx.Exec(`
			INSERT INTO tasks
				(id, subsystem, discipline, title, description, status, priority,
				 hints, pseudocode, estimated_turns, provenance,
				 agent_override, model_override, effort_override, thinking_override)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Subsystem, t.Discipline, t.Title, nullString(t.Description),
			string(t.Status), string(t.Priority), nullString(t.Hints), nullString(t.Pseudocode),
			nullInt(t.EstimatedTurns), string(t.Provenance),
			nullString(t.AgentOverride), nullString(t.ModelOverride), nullString(t.EffortOverride),
			nullBool(t.ThinkingOverride))
		if err != nil {
			return wrapDBErr("insert task", err)
		}

		if err := insertTaskChildren(tx, t); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return Task{}, err
	}
	return s.GetTask(t.ID)
}

func insertTaskChildren(tx *sql.Tx, t Task) error {
	for _, tag := range t.Tags {
		if _, err := tx.Exec(`INSERT INTO task_tags (task_id, tag) VALUES (?, ?)`, t.ID, tag); err != nil {
			return wrapDBErr("insert task tag", err)
		}
	}
	for _, dep := range t.DependsOn {
		if _, err := tx.Exec(`INSERT INTO task_depends_on (task_id, depends_on_id) VALUES (?, ?)`, t.ID, dep); err != nil {
			return wrapDBErr("insert task dependency", err)
		}
	}
	for i, c := range t.AcceptanceCriteria {
		if _, err := tx.Exec(`INSERT INTO task_acceptance_criteria (task_id, position, criterion) VALUES (?, ?, ?)`, t.ID, i, c); err != nil {
			return wrapDBErr("insert acceptance criterion", err)
		}
	}
	for i, f := range t.ContextFiles {
		if _, err := tx.Exec(`INSERT INTO task_context_files (task_id, position, path) VALUES (?, ?, ?)`, t.ID, i, f); err != nil {
			return wrapDBErr("insert context file", err)
		}
	}
	for i, a := range t.OutputArtifacts {
		if _, err := tx.Exec(`INSERT INTO task_output_artifacts (task_id, position, path) VALUES (?, ?, ?)`, t.ID, i, a); err != nil {
			return wrapDBErr("insert output artifact", err)
		}
	}
	return nil
}

// UpdateTask rewrites a Task's mutable fields and child lists, enforcing the
// status transition state machine and the done-requires-all-deps-done
// invariant.
func (s *Store) UpdateTask(t Task) error {
	return s.withTx(func(tx *sql.Tx) error {
		var currentStatus string
		if err := tx.QueryRow(`SELECT status FROM tasks WHERE id = ?`, t.ID).Scan(&currentStatus); err != nil {
			if err == sql.ErrNoRows {
				return rerr.New(rerr.CodeTaskNotFound, "task %d not found", t.ID)
			}
			return wrapDBErr("read task status", err)
		}
		if !transitionAllowed(TaskStatus(currentStatus), t.Status) {
			return rerr.New(rerr.CodeTaskStatus, "task %d cannot transition %s -> %s", t.ID, currentStatus, t.Status)
		}
		if t.Status == TaskDone {
			if err := assertDepsDone(tx, t.ID); err != nil {
				return err
			}
		}

		res, err := tx.Exec(`
			UPDATE tasks SET
				title = ?, description = ?, status = ?, priority = ?, hints = ?, pseudocode = ?,
				estimated_turns = ?, agent_override = ?, model_override = ?, effort_override = ?,
				thinking_override = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			t.Title, nullString(t.Description), string(t.Status), string(t.Priority),
			nullString(t.Hints), nullString(t.Pseudocode), nullInt(t.EstimatedTurns),
			nullString(t.AgentOverride), nullString(t.ModelOverride), nullString(t.EffortOverride),
			nullBool(t.ThinkingOverride), t.ID)
		if err != nil {
			return wrapDBErr("update task", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return rerr.New(rerr.CodeTaskNotFound, "task %d not found", t.ID)
		}

		for _, table := range []string{"task_tags", "task_depends_on", "task_acceptance_criteria", "task_context_files", "task_output_artifacts"} {
			if _, err := tx.Exec(`DELETE FROM `+table+` WHERE task_id = ?`, t.ID); err != nil {
				return wrapDBErr("clear "+table, err)
			}
		}
		for _, dep := range t.DependsOn {
			if dep == t.ID {
				return rerr.New(rerr.CodeTaskDependency, "task %d cannot depend on itself", t.ID)
			}
			var exists int
			if err := tx.QueryRow(`SELECT 1 FROM tasks WHERE id = ?`, dep).Scan(&exists); err != nil {
				if err == sql.ErrNoRows {
					return rerr.New(rerr.CodeTaskDependency, "dependency %d does not exist", dep)
				}
				return wrapDBErr("check dependency", err)
			}
		}
		if err := insertTaskChildren(tx, t); err != nil {
			return err
		}
		return nil
	})
}

// SetTaskStatus transitions a single Task's status, enforcing the same
// state machine and dependency invariant as UpdateTask without touching any
// other field.
func (s *Store) SetTaskStatus(id int, status TaskStatus) error {
	return s.withTx(func(tx *sql.Tx) error {
		var currentStatus string
		if err := tx.QueryRow(`SELECT status FROM tasks WHERE id = ?`, id).Scan(&currentStatus); err != nil {
			if err == sql.ErrNoRows {
				return rerr.New(rerr.CodeTaskNotFound, "task %d not found", id)
			}
			return wrapDBErr("read task status", err)
		}
		if !transitionAllowed(TaskStatus(currentStatus), status) {
			return rerr.New(rerr.CodeTaskStatus, "task %d cannot transition %s -> %s", id, currentStatus, status)
		}
		if status == TaskDone {
			if err := assertDepsDone(tx, id); err != nil {
				return err
			}
		}
		_, err := tx.Exec(`UPDATE tasks SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, string(status), id)
		if err != nil {
			return wrapDBErr("set task status", err)
		}
		return nil
	})
}

func assertDepsDone(tx *sql.Tx, id int) error {
	rows, err := tx.Query(`
		SELECT t.id, t.status FROM task_depends_on d
		JOIN tasks t ON t.id = d.depends_on_id
		WHERE d.task_id = ?`, id)
	if err != nil {
		return wrapDBErr("read dependencies", err)
	}
	defer rows.Close()
	for rows.Next() {
		var depID int
		var depStatus string
		if err := rows.Scan(&depID, &depStatus); err != nil {
			return wrapDBErr("scan dependency", err)
		}
		if TaskStatus(depStatus) != TaskDone {
			return rerr.New(rerr.CodeTaskDependency, "task %d depends on incomplete task %d", id, depID)
		}
	}
	return rows.Err()
}

// GetTask fetches a single Task, including its child lists.
func (s *Store) GetTask(id int) (Task, error) {
	var t Task
	var desc, hints, pseudo, agent, model, effort sql.NullString
	var status, priority, provenance string
	var estTurns sql.NullInt64
	var thinking sql.NullBool

	err := s.db.QueryRow(`
		SELECT id, subsystem, discipline, title, description, status, priority,
		       hints, pseudocode, estimated_turns, provenance,
		       agent_override, model_override, effort_override, thinking_override,
		       created_at, updated_at
		FROM tasks WHERE id = ?`, id).Scan(
		&t.ID, &t.Subsystem, &t.Discipline, &t.Title, &desc, &status, &priority,
		&hints, &pseudo, &estTurns, &provenance,
		&agent, &model, &effort, &thinking,
		&t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return Task{}, rerr.New(rerr.CodeTaskNotFound, "task %d not found", id)
	}
	if err != nil {
		return Task{}, wrapDBErr("get task", err)
	}
	t.Description, t.Hints, t.Pseudocode = desc.String, hints.String, pseudo.String
	t.Status, t.Priority, t.Provenance = TaskStatus(status), TaskPriority(priority), Provenance(provenance)
	t.EstimatedTurns = intPtr(estTurns)
	t.AgentOverride, t.ModelOverride, t.EffortOverride = agent.String, model.String, effort.String
	t.ThinkingOverride = boolPtr(thinking)

	if t.Tags, err = s.taskStrings("SELECT tag FROM task_tags WHERE task_id = ? ORDER BY tag", id); err != nil {
		return Task{}, err
	}
	if t.DependsOn, err = s.taskDeps(id); err != nil {
		return Task{}, err
	}
	if t.AcceptanceCriteria, err = s.taskStrings("SELECT criterion FROM task_acceptance_criteria WHERE task_id = ? ORDER BY position", id); err != nil {
		return Task{}, err
	}
	if t.ContextFiles, err = s.taskStrings("SELECT path FROM task_context_files WHERE task_id = ? ORDER BY position", id); err != nil {
		return Task{}, err
	}
	if t.OutputArtifacts, err = s.taskStrings("SELECT path FROM task_output_artifacts WHERE task_id = ? ORDER BY position", id); err != nil {
		return Task{}, err
	}
	return t, nil
}

func (s *Store) taskStrings(query string, id int) ([]string, error) {
	rows, err := s.db.Query(query, id)
	if err != nil {
		return nil, wrapDBErr("list task strings", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, wrapDBErr("scan task string", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) taskDeps(id int) ([]int, error) {
	rows, err := s.db.Query(`SELECT depends_on_id FROM task_depends_on WHERE task_id = ? ORDER BY depends_on_id`, id)
	if err != nil {
		return nil, wrapDBErr("list task dependencies", err)
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var dep int
		if err := rows.Scan(&dep); err != nil {
			return nil, wrapDBErr("scan task dependency", err)
		}
		out = append(out, dep)
	}
	return out, rows.Err()
}

// TaskFilter narrows ListTasks to a subset of Tasks.
type TaskFilter struct {
	Subsystem  string
	Discipline string
	Status     TaskStatus
}

// ListTasks returns Tasks matching filter, ordered by id.
func (s *Store) ListTasks(filter TaskFilter) ([]Task, error) {
	query := `SELECT id FROM tasks WHERE 1=1`
	var args []any
	if filter.Subsystem != "" {
		query += ` AND subsystem = ?`
		args = append(args, filter.Subsystem)
	}
	if filter.Discipline != "" {
		query += ` AND discipline = ?`
		args = append(args, filter.Discipline)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrapDBErr("list tasks", err)
	}
	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, wrapDBErr("scan task id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Task, 0, len(ids))
	for _, id := range ids {
		t, err := s.GetTask(id)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// NextPendingTask returns the lowest-id Task in a subsystem whose status is
// pending and whose dependencies are all done, or ErrNoRows-equivalent
// (CodeTaskNotFound) if none qualifies.
func (s *Store) NextPendingTask(subsystem string) (Task, error) {
	rows, err := s.db.Query(`SELECT id FROM tasks WHERE subsystem = ? AND status = ? ORDER BY id`, subsystem, string(TaskPending))
	if err != nil {
		return Task{}, wrapDBErr("list pending tasks", err)
	}
	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return Task{}, wrapDBErr("scan pending task id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Task{}, err
	}

	for _, id := range ids {
		ready, err := s.depsReady(id)
		if err != nil {
			return Task{}, err
		}
		if ready {
			return s.GetTask(id)
		}
	}
	return Task{}, rerr.New(rerr.CodeTaskNotFound, "no ready pending task in subsystem %q", subsystem)
}

func (s *Store) depsReady(id int) (bool, error) {
	var incomplete int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM task_depends_on d
		JOIN tasks t ON t.id = d.depends_on_id
		WHERE d.task_id = ? AND t.status != ?`, id, string(TaskDone)).Scan(&incomplete)
	if err != nil {
		return false, wrapDBErr("check dependency readiness", err)
	}
	return incomplete == 0, nil
}
