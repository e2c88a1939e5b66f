package store

import (
	"database/sql"

	"github.com/veighnsche/ralph/internal/rerr"
)

// AddSubsystemComment records a piece of knowledge against a Subsystem,
// optionally tied to the Task the agent was working when it surfaced.
func (s *Store) AddSubsystemComment(c Comment) (Comment, error) {
	if c.Body == "" {
		return Comment{}, rerr.New(rerr.CodeCommentBody, "comment body is required")
	}
	if c.Subsystem == "" {
		return Comment{}, rerr.New(rerr.CodeCommentBody, "comment subsystem is required")
	}
	if c.AuthoredBy == "" {
		c.AuthoredBy = AuthorAgent
	}
	if c.HitCount == 0 {
		c.HitCount = 1
	}

	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO comments
				(task_id, subsystem, category, discipline, agent_task_id, body, summary, reason,
				 source_iteration, authored_by, hit_count, reviewed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			nullInt(c.TaskID), c.Subsystem, c.Category, nullString(c.Discipline), nullInt(c.AgentTaskID),
			c.Body, nullString(c.Summary), nullString(c.Reason), nullInt(c.SourceIteration),
			string(c.AuthoredBy), c.HitCount, c.Reviewed)
		if err != nil {
			return wrapDBErr("insert comment", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return wrapDBErr("read comment id", err)
		}
		c.ID = int(id)
		return nil
	})
	if err != nil {
		return Comment{}, err
	}
	return s.GetComment(c.ID)
}

// AddSignal is an alias for AddSubsystemComment kept for the vocabulary used
// by the knowledge layer: a signal is a comment the agent writes about
// something it learned mid-task.
func (s *Store) AddSignal(c Comment) (Comment, error) {
	return s.AddSubsystemComment(c)
}

// MarkCommentReviewed flips a Comment's reviewed flag, protecting it from
// pruning eviction.
func (s *Store) MarkCommentReviewed(id int, reviewed bool) error {
	return s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE comments SET reviewed = ? WHERE id = ?`, reviewed, id)
		if err != nil {
			return wrapDBErr("update comment reviewed", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return rerr.New(rerr.CodeTaskNotFound, "comment %d not found", id)
		}
		return nil
	})
}

// BumpCommentHitCount increments a Comment's hit_count, called each time it
// is surfaced into a prompt.
func (s *Store) BumpCommentHitCount(id int) error {
	return s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE comments SET hit_count = hit_count + 1 WHERE id = ?`, id)
		if err != nil {
			return wrapDBErr("bump comment hit count", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return rerr.New(rerr.CodeTaskNotFound, "comment %d not found", id)
		}
		return nil
	})
}

// DeleteComment removes a Comment and its embedding.
func (s *Store) DeleteComment(id int) error {
	return s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM comments WHERE id = ?`, id)
		if err != nil {
			return wrapDBErr("delete comment", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return rerr.New(rerr.CodeTaskNotFound, "comment %d not found", id)
		}
		return nil
	})
}

// GetComment fetches a single Comment by id.
func (s *Store) GetComment(id int) (Comment, error) {
	c, err := scanComment(s.db.QueryRow(`
		SELECT id, task_id, subsystem, category, discipline, agent_task_id, body, summary, reason,
		       source_iteration, authored_by, hit_count, reviewed, created_at
		FROM comments WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return Comment{}, rerr.New(rerr.CodeTaskNotFound, "comment %d not found", id)
	}
	if err != nil {
		return Comment{}, wrapDBErr("get comment", err)
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComment(row rowScanner) (Comment, error) {
	var c Comment
	var taskID, agentTaskID, sourceIteration sql.NullInt64
	var discipline, summary, reason sql.NullString
	var authoredBy string

	err := row.Scan(&c.ID, &taskID, &c.Subsystem, &c.Category, &discipline, &agentTaskID,
		&c.Body, &summary, &reason, &sourceIteration, &authoredBy, &c.HitCount, &c.Reviewed, &c.CreatedAt)
	if err != nil {
		return Comment{}, err
	}
	c.TaskID = intPtr(taskID)
	c.AgentTaskID = intPtr(agentTaskID)
	c.SourceIteration = intPtr(sourceIteration)
	c.Discipline, c.Summary, c.Reason = discipline.String, summary.String, reason.String
	c.AuthoredBy = CommentAuthor(authoredBy)
	return c, nil
}

// ListSubsystemComments returns every Comment attached to a Subsystem,
// newest first.
func (s *Store) ListSubsystemComments(subsystem string) ([]Comment, error) {
	rows, err := s.db.Query(`
		SELECT id, task_id, subsystem, category, discipline, agent_task_id, body, summary, reason,
		       source_iteration, authored_by, hit_count, reviewed, created_at
		FROM comments WHERE subsystem = ? ORDER BY created_at DESC, id DESC`, subsystem)
	if err != nil {
		return nil, wrapDBErr("list subsystem comments", err)
	}
	defer rows.Close()
	var out []Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, wrapDBErr("scan comment", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListAllComments returns every Comment in the project, ordered by id.
func (s *Store) ListAllComments() ([]Comment, error) {
	rows, err := s.db.Query(`
		SELECT id, task_id, subsystem, category, discipline, agent_task_id, body, summary, reason,
		       source_iteration, authored_by, hit_count, reviewed, created_at
		FROM comments ORDER BY id`)
	if err != nil {
		return nil, wrapDBErr("list comments", err)
	}
	defer rows.Close()
	var out []Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, wrapDBErr("scan comment", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetAllTags returns the distinct set of Task tags used across the project,
// sorted alphabetically.
func (s *Store) GetAllTags() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT tag FROM task_tags ORDER BY tag`)
	if err != nil {
		return nil, wrapDBErr("list tags", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, wrapDBErr("scan tag", err)
		}
		out = append(out, tag)
	}
	return out, rows.Err()
}
