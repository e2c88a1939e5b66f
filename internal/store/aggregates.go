package store

// GetFeatureStats returns a per-subsystem roll-up of Task counts by status,
// one row per Subsystem that has at least one Task, ordered by subsystem
// name.
func (s *Store) GetFeatureStats() ([]FeatureStats, error) {
	rows, err := s.db.Query(`
		SELECT subsystem,
		       COUNT(*),
		       SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN status = 'in_progress' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN status = 'done' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN status = 'blocked' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN status = 'skipped' THEN 1 ELSE 0 END)
		FROM tasks GROUP BY subsystem ORDER BY subsystem`)
	if err != nil {
		return nil, wrapDBErr("get feature stats", err)
	}
	defer rows.Close()
	var out []FeatureStats
	for rows.Next() {
		var f FeatureStats
		if err := rows.Scan(&f.Subsystem, &f.Total, &f.Pending, &f.InProgress, &f.Done, &f.Blocked, &f.Skipped); err != nil {
			return nil, wrapDBErr("scan feature stats", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// GetDisciplineStats returns a per-discipline roll-up of Task counts,
// ordered by discipline name.
func (s *Store) GetDisciplineStats() ([]DisciplineStats, error) {
	rows, err := s.db.Query(`
		SELECT discipline, COUNT(*), SUM(CASE WHEN status = 'done' THEN 1 ELSE 0 END)
		FROM tasks GROUP BY discipline ORDER BY discipline`)
	if err != nil {
		return nil, wrapDBErr("get discipline stats", err)
	}
	defer rows.Close()
	var out []DisciplineStats
	for rows.Next() {
		var d DisciplineStats
		if err := rows.Scan(&d.Discipline, &d.Total, &d.Done); err != nil {
			return nil, wrapDBErr("scan discipline stats", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetProjectProgress returns the whole-project Task completion roll-up.
func (s *Store) GetProjectProgress() (ProjectProgress, error) {
	var p ProjectProgress
	if err := s.db.QueryRow(`SELECT COUNT(*), SUM(CASE WHEN status = 'done' THEN 1 ELSE 0 END) FROM tasks`).
		Scan(&p.TotalTasks, &p.DoneTasks); err != nil {
		return ProjectProgress{}, wrapDBErr("get project progress", err)
	}
	if p.TotalTasks > 0 {
		p.PercentDone = float64(p.DoneTasks) / float64(p.TotalTasks) * 100
	}
	return p, nil
}
