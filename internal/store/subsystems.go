package store

import (
	"database/sql"
	"regexp"

	"github.com/veighnsche/ralph/internal/rerr"
)

var acronymPattern = regexp.MustCompile(`^[A-Z0-9]{4}$`)

// CreateSubsystem validates and inserts a new Subsystem.
func (s *Store) CreateSubsystem(sub Subsystem) error {
	if sub.Name == "" {
		return rerr.New(rerr.CodeSubsystemValidation, "subsystem name is required")
	}
	if sub.DisplayName == "" {
		return rerr.New(rerr.CodeSubsystemValidation, "subsystem display name is required")
	}
	if !acronymPattern.MatchString(sub.Acronym) {
		return rerr.New(rerr.CodeSubsystemValidation, "acronym %q must match %s", sub.Acronym, acronymPattern.String())
	}
	if sub.Status == "" {
		sub.Status = SubsystemActive
	}

	return s.withTx(func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRow(`SELECT 1 FROM subsystems WHERE acronym = ?`, sub.Acronym).Scan(&exists); err == nil {
			return rerr.New(rerr.CodeAcronymTaken, "acronym %q already used", sub.Acronym)
		} else if err != sql.ErrNoRows {
			return wrapDBErr("check acronym uniqueness", err)
		}

		_, err := tx.Exec(`
			INSERT INTO subsystems (name, display_name, acronym, description, status)
			VALUES (?, ?, ?, ?, ?)`,
			sub.Name, sub.DisplayName, sub.Acronym, nullString(sub.Description), string(sub.Status))
		if err != nil {
			return wrapDBErr("insert subsystem", err)
		}
		return nil
	})
}

// UpdateSubsystem rewrites the mutable fields of an existing Subsystem.
func (s *Store) UpdateSubsystem(sub Subsystem) error {
	if sub.DisplayName == "" {
		return rerr.New(rerr.CodeSubsystemValidation, "subsystem display name is required")
	}
	return s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE subsystems SET display_name = ?, description = ?, status = ?
			WHERE name = ?`,
			sub.DisplayName, nullString(sub.Description), string(sub.Status), sub.Name)
		if err != nil {
			return wrapDBErr("update subsystem", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return rerr.New(rerr.CodeSubsystemNotFound, "subsystem %q not found", sub.Name)
		}
		return nil
	})
}

// DeleteSubsystem removes a Subsystem, refusing if any Task still
// references it.
func (s *Store) DeleteSubsystem(name string) error {
	return s.withTx(func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM tasks WHERE subsystem = ?`, name).Scan(&count); err != nil {
			return wrapDBErr("count referencing tasks", err)
		}
		if count > 0 {
			return rerr.New(rerr.CodeSubsystemReferenced, "subsystem %q has %d task(s)", name, count)
		}
		res, err := tx.Exec(`DELETE FROM subsystems WHERE name = ?`, name)
		if err != nil {
			return wrapDBErr("delete subsystem", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return rerr.New(rerr.CodeSubsystemNotFound, "subsystem %q not found", name)
		}
		return nil
	})
}

// GetSubsystem fetches a single Subsystem by name.
func (s *Store) GetSubsystem(name string) (Subsystem, error) {
	var sub Subsystem
	var desc sql.NullString
	var status string
	err := s.db.QueryRow(`
		SELECT name, display_name, acronym, description, status, created_at
		FROM subsystems WHERE name = ?`, name).
		Scan(&sub.Name, &sub.DisplayName, &sub.Acronym, &desc, &status, &sub.CreatedAt)
	if err == sql.ErrNoRows {
		return Subsystem{}, rerr.New(rerr.CodeSubsystemNotFound, "subsystem %q not found", name)
	}
	if err != nil {
		return Subsystem{}, wrapDBErr("get subsystem", err)
	}
	sub.Description = desc.String
	sub.Status = SubsystemStatus(status)
	return sub, nil
}

// ListSubsystems returns every Subsystem ordered by name.
func (s *Store) ListSubsystems() ([]Subsystem, error) {
	rows, err := s.db.Query(`
		SELECT name, display_name, acronym, description, status, created_at
		FROM subsystems ORDER BY name`)
	if err != nil {
		return nil, wrapDBErr("list subsystems", err)
	}
	defer rows.Close()

	var out []Subsystem
	for rows.Next() {
		var sub Subsystem
		var desc sql.NullString
		var status string
		if err := rows.Scan(&sub.Name, &sub.DisplayName, &sub.Acronym, &desc, &status, &sub.CreatedAt); err != nil {
			return nil, wrapDBErr("scan subsystem", err)
		}
		sub.Description = desc.String
		sub.Status = SubsystemStatus(status)
		out = append(out, sub)
	}
	return out, rows.Err()
}
