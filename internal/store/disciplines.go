package store

import (
	"database/sql"

	"github.com/veighnsche/ralph/internal/rerr"
)

// CreateDiscipline validates and inserts a new Discipline along with its
// skill list and MCP server wiring.
func (s *Store) CreateDiscipline(d Discipline) error {
	if d.Name == "" {
		return rerr.New(rerr.CodeDisciplineValidation, "discipline name is required")
	}
	if d.DisplayName == "" {
		return rerr.New(rerr.CodeDisciplineValidation, "discipline display name is required")
	}
	if !acronymPattern.MatchString(d.Acronym) {
		return rerr.New(rerr.CodeDisciplineValidation, "acronym %q must match %s", d.Acronym, acronymPattern.String())
	}

	return s.withTx(func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRow(`SELECT 1 FROM disciplines WHERE acronym = ?`, d.Acronym).Scan(&exists); err == nil {
			return rerr.New(rerr.CodeAcronymTaken, "acronym %q already used", d.Acronym)
		} else if err != sql.ErrNoRows {
			return wrapDBErr("check acronym uniqueness", err)
		}

		_, err := tx.Exec(`
			INSERT INTO disciplines
				(name, display_name, acronym, icon, color, system_prompt, conventions,
				 default_agent, default_model, default_effort, default_thinking)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.Name, d.DisplayName, d.Acronym, nullString(d.Icon), nullString(d.Color),
			nullString(d.SystemPrompt), nullString(d.Conventions),
			nullString(d.DefaultAgent), nullString(d.DefaultModel), nullString(d.DefaultEffort),
			nullBool(d.DefaultThinking))
		if err != nil {
			return wrapDBErr("insert discipline", err)
		}

		if err := insertSkills(tx, d.Name, d.Skills); err != nil {
			return err
		}
		if err := insertMcpServers(tx, d.Name, d.McpServers); err != nil {
			return err
		}
		return nil
	})
}

func insertSkills(tx *sql.Tx, discipline string, skills []string) error {
	stmt, err := tx.Prepare(`INSERT INTO discipline_skills (discipline_name, position, skill) VALUES (?, ?, ?)`)
	if err != nil {
		return wrapDBErr("prepare skill insert", err)
	}
	defer stmt.Close()
	for i, skill := range skills {
		if _, err := stmt.Exec(discipline, i, skill); err != nil {
			return wrapDBErr("insert skill", err)
		}
	}
	return nil
}

func insertMcpServers(tx *sql.Tx, discipline string, servers []McpServerConfig) error {
	for _, srv := range servers {
		res, err := tx.Exec(`
			INSERT INTO discipline_mcp_servers (discipline_name, name, command)
			VALUES (?, ?, ?)`, discipline, srv.Name, srv.Command)
		if err != nil {
			return wrapDBErr("insert mcp server", err)
		}
		serverID, err := res.LastInsertId()
		if err != nil {
			return wrapDBErr("read mcp server id", err)
		}
		for i, arg := range srv.Args {
			if _, err := tx.Exec(`
				INSERT INTO discipline_mcp_server_args (server_id, position, arg)
				VALUES (?, ?, ?)`, serverID, i, arg); err != nil {
				return wrapDBErr("insert mcp server arg", err)
			}
		}
		for k, v := range srv.Env {
			if _, err := tx.Exec(`
				INSERT INTO discipline_mcp_server_env (server_id, key, value)
				VALUES (?, ?, ?)`, serverID, k, v); err != nil {
				return wrapDBErr("insert mcp server env", err)
			}
		}
	}
	return nil
}

// UpdateDiscipline rewrites a Discipline's fields, skills, and MCP wiring.
func (s *Store) UpdateDiscipline(d Discipline) error {
	if d.DisplayName == "" {
		return rerr.New(rerr.CodeDisciplineValidation, "discipline display name is required")
	}
	return s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE disciplines SET
				display_name = ?, icon = ?, color = ?, system_prompt = ?, conventions = ?,
				default_agent = ?, default_model = ?, default_effort = ?, default_thinking = ?
			WHERE name = ?`,
			d.DisplayName, nullString(d.Icon), nullString(d.Color), nullString(d.SystemPrompt),
			nullString(d.Conventions), nullString(d.DefaultAgent), nullString(d.DefaultModel),
			nullString(d.DefaultEffort), nullBool(d.DefaultThinking), d.Name)
		if err != nil {
			return wrapDBErr("update discipline", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return rerr.New(rerr.CodeDisciplineNotFound, "discipline %q not found", d.Name)
		}

		if _, err := tx.Exec(`DELETE FROM discipline_skills WHERE discipline_name = ?`, d.Name); err != nil {
			return wrapDBErr("clear skills", err)
		}
		if err := insertSkills(tx, d.Name, d.Skills); err != nil {
			return err
		}

		if _, err := tx.Exec(`DELETE FROM discipline_mcp_servers WHERE discipline_name = ?`, d.Name); err != nil {
			return wrapDBErr("clear mcp servers", err)
		}
		if err := insertMcpServers(tx, d.Name, d.McpServers); err != nil {
			return err
		}
		return nil
	})
}

// DeleteDiscipline removes a Discipline, refusing if any Task still
// references it.
func (s *Store) DeleteDiscipline(name string) error {
	return s.withTx(func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM tasks WHERE discipline = ?`, name).Scan(&count); err != nil {
			return wrapDBErr("count referencing tasks", err)
		}
		if count > 0 {
			return rerr.New(rerr.CodeSubsystemReferenced, "discipline %q has %d task(s)", name, count)
		}
		res, err := tx.Exec(`DELETE FROM disciplines WHERE name = ?`, name)
		if err != nil {
			return wrapDBErr("delete discipline", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return rerr.New(rerr.CodeDisciplineNotFound, "discipline %q not found", name)
		}
		return nil
	})
}

// GetDiscipline fetches a single Discipline, including its skills and MCP
// server wiring.
func (s *Store) GetDiscipline(name string) (Discipline, error) {
	var d Discipline
	var icon, color, prompt, conventions, agent, model, effort sql.NullString
	var thinking sql.NullBool
	err := s.db.QueryRow(`
		SELECT name, display_name, acronym, icon, color, system_prompt, conventions,
		       default_agent, default_model, default_effort, default_thinking, created_at
		FROM disciplines WHERE name = ?`, name).
		Scan(&d.Name, &d.DisplayName, &d.Acronym, &icon, &color, &prompt, &conventions,
			&agent, &model, &effort, &thinking, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return Discipline{}, rerr.New(rerr.CodeDisciplineNotFound, "discipline %q not found", name)
	}
	if err != nil {
		return Discipline{}, wrapDBErr("get discipline", err)
	}
	d.Icon, d.Color, d.SystemPrompt, d.Conventions = icon.String, color.String, prompt.String, conventions.String
	d.DefaultAgent, d.DefaultModel, d.DefaultEffort = agent.String, model.String, effort.String
	d.DefaultThinking = boolPtr(thinking)

	d.Skills, err = s.disciplineSkills(name)
	if err != nil {
		return Discipline{}, err
	}
	d.McpServers, err = s.disciplineMcpServers(name)
	if err != nil {
		return Discipline{}, err
	}
	return d, nil
}

func (s *Store) disciplineSkills(name string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT skill FROM discipline_skills WHERE discipline_name = ? ORDER BY position`, name)
	if err != nil {
		return nil, wrapDBErr("list skills", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var skill string
		if err := rows.Scan(&skill); err != nil {
			return nil, wrapDBErr("scan skill", err)
		}
		out = append(out, skill)
	}
	return out, rows.Err()
}

func (s *Store) disciplineMcpServers(name string) ([]McpServerConfig, error) {
	rows, err := s.db.Query(`
		SELECT id, name, command FROM discipline_mcp_servers WHERE discipline_name = ? ORDER BY id`, name)
	if err != nil {
		return nil, wrapDBErr("list mcp servers", err)
	}
	defer rows.Close()

	type idSrv struct {
		id  int64
		srv McpServerConfig
	}
	var servers []idSrv
	for rows.Next() {
		var rec idSrv
		if err := rows.Scan(&rec.id, &rec.srv.Name, &rec.srv.Command); err != nil {
			return nil, wrapDBErr("scan mcp server", err)
		}
		servers = append(servers, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]McpServerConfig, 0, len(servers))
	for _, rec := range servers {
		srv := rec.srv
		argRows, err := s.db.Query(`
			SELECT arg FROM discipline_mcp_server_args WHERE server_id = ? ORDER BY position`, rec.id)
		if err != nil {
			return nil, wrapDBErr("list mcp server args", err)
		}
		for argRows.Next() {
			var arg string
			if err := argRows.Scan(&arg); err != nil {
				argRows.Close()
				return nil, wrapDBErr("scan mcp server arg", err)
			}
			srv.Args = append(srv.Args, arg)
		}
		argRows.Close()

		envRows, err := s.db.Query(`
			SELECT key, value FROM discipline_mcp_server_env WHERE server_id = ?`, rec.id)
		if err != nil {
			return nil, wrapDBErr("list mcp server env", err)
		}
		srv.Env = map[string]string{}
		for envRows.Next() {
			var k, v string
			if err := envRows.Scan(&k, &v); err != nil {
				envRows.Close()
				return nil, wrapDBErr("scan mcp server env", err)
			}
			srv.Env[k] = v
		}
		envRows.Close()

		out = append(out, srv)
	}
	return out, nil
}

// ListDisciplines returns every Discipline ordered by name, with skills and
// MCP wiring populated.
func (s *Store) ListDisciplines() ([]Discipline, error) {
	rows, err := s.db.Query(`SELECT name FROM disciplines ORDER BY name`)
	if err != nil {
		return nil, wrapDBErr("list disciplines", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, wrapDBErr("scan discipline name", err)
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Discipline, 0, len(names))
	for _, name := range names {
		d, err := s.GetDiscipline(name)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
