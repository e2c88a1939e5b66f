package store

import (
	"database/sql"

	"github.com/veighnsche/ralph/internal/rerr"
)

// SaveRecipeConfig inserts or replaces a named, saved prompt-assembly
// preset.
func (s *Store) SaveRecipeConfig(rc RecipeConfig) error {
	if rc.Name == "" {
		return rerr.New(rerr.CodeTaskValidation, "recipe config name is required")
	}
	return s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			INSERT INTO recipe_configs (name, base_recipe) VALUES (?, ?)
			ON CONFLICT(name) DO UPDATE SET base_recipe = excluded.base_recipe`,
			rc.Name, rc.BaseRecipe); err != nil {
			return wrapDBErr("upsert recipe config", err)
		}
		if _, err := tx.Exec(`DELETE FROM recipe_config_sections WHERE recipe_config_name = ?`, rc.Name); err != nil {
			return wrapDBErr("clear recipe config sections", err)
		}
		for i, sec := range rc.Sections {
			if _, err := tx.Exec(`
				INSERT INTO recipe_config_sections
					(recipe_config_name, position, section_name, enabled, instruction_override)
				VALUES (?, ?, ?, ?, ?)`,
				rc.Name, i, sec.SectionName, sec.Enabled, nullString(sec.InstructionOverride)); err != nil {
				return wrapDBErr("insert recipe config section", err)
			}
		}
		return nil
	})
}

// GetRecipeConfig fetches a saved RecipeConfig by name.
func (s *Store) GetRecipeConfig(name string) (RecipeConfig, error) {
	var rc RecipeConfig
	rc.Name = name
	err := s.db.QueryRow(`SELECT base_recipe, created_at FROM recipe_configs WHERE name = ?`, name).
		Scan(&rc.BaseRecipe, &rc.CreatedAt)
	if err == sql.ErrNoRows {
		return RecipeConfig{}, rerr.New(rerr.CodeTaskNotFound, "recipe config %q not found", name)
	}
	if err != nil {
		return RecipeConfig{}, wrapDBErr("get recipe config", err)
	}

	rows, err := s.db.Query(`
		SELECT section_name, enabled, instruction_override
		FROM recipe_config_sections WHERE recipe_config_name = ? ORDER BY position`, name)
	if err != nil {
		return RecipeConfig{}, wrapDBErr("list recipe config sections", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sec RecipeSectionOverride
		var override sql.NullString
		if err := rows.Scan(&sec.SectionName, &sec.Enabled, &override); err != nil {
			return RecipeConfig{}, wrapDBErr("scan recipe config section", err)
		}
		sec.InstructionOverride = override.String
		rc.Sections = append(rc.Sections, sec)
	}
	return rc, rows.Err()
}

// ListRecipeConfigs returns every saved RecipeConfig name.
func (s *Store) ListRecipeConfigs() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM recipe_configs ORDER BY name`)
	if err != nil {
		return nil, wrapDBErr("list recipe configs", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, wrapDBErr("scan recipe config name", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// DeleteRecipeConfig removes a saved RecipeConfig.
func (s *Store) DeleteRecipeConfig(name string) error {
	return s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM recipe_configs WHERE name = ?`, name)
		if err != nil {
			return wrapDBErr("delete recipe config", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return rerr.New(rerr.CodeTaskNotFound, "recipe config %q not found", name)
		}
		return nil
	})
}

// SetProjectMetadata upserts the single project-wide metadata row.
func (s *Store) SetProjectMetadata(m ProjectMetadata) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO project_metadata (id, title, description) VALUES (1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET title = excluded.title, description = excluded.description`,
			m.Title, nullString(m.Description))
		if err != nil {
			return wrapDBErr("upsert project metadata", err)
		}
		return nil
	})
}

// GetProjectMetadata fetches the project-wide metadata row.
func (s *Store) GetProjectMetadata() (ProjectMetadata, error) {
	var m ProjectMetadata
	var desc sql.NullString
	err := s.db.QueryRow(`SELECT title, description, created_at FROM project_metadata WHERE id = 1`).
		Scan(&m.Title, &desc, &m.Created)
	if err == sql.ErrNoRows {
		return ProjectMetadata{}, rerr.New(rerr.CodeProjectMissing, "project metadata not set")
	}
	if err != nil {
		return ProjectMetadata{}, wrapDBErr("get project metadata", err)
	}
	m.Description = desc.String
	return m, nil
}
