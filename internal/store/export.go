package store

import (
	"gopkg.in/yaml.v3"

	"github.com/veighnsche/ralph/internal/rerr"
)

// prdSnapshot is the deterministic, field-ordered shape written by
// ExportPRDYAML. Field order here is the field order in the emitted YAML.
type prdSnapshot struct {
	Project     prdMetadata     `yaml:"project"`
	Subsystems  []prdSubsystem  `yaml:"subsystems"`
	Disciplines []prdDiscipline `yaml:"disciplines"`
	Tasks       []prdTask       `yaml:"tasks"`
}

type prdMetadata struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
}

type prdSubsystem struct {
	Name        string `yaml:"name"`
	DisplayName string `yaml:"display_name"`
	Acronym     string `yaml:"acronym"`
	Description string `yaml:"description,omitempty"`
	Status      string `yaml:"status"`
}

type prdDiscipline struct {
	Name        string   `yaml:"name"`
	DisplayName string   `yaml:"display_name"`
	Acronym     string   `yaml:"acronym"`
	Skills      []string `yaml:"skills,omitempty"`
}

type prdTask struct {
	ID                 int      `yaml:"id"`
	Subsystem          string   `yaml:"subsystem"`
	Discipline         string   `yaml:"discipline"`
	Title              string   `yaml:"title"`
	Description        string   `yaml:"description,omitempty"`
	Status             string   `yaml:"status"`
	Priority           string   `yaml:"priority"`
	Tags               []string `yaml:"tags,omitempty"`
	DependsOn          []int    `yaml:"depends_on,omitempty"`
	AcceptanceCriteria []string `yaml:"acceptance_criteria,omitempty"`
}

// ExportPRDYAML renders the full project state — metadata, subsystems,
// disciplines, and tasks — as a deterministic YAML document suitable for
// diffing in version control. Field order and list order (subsystems by
// name, disciplines by name, tasks by id) are fixed so repeated exports of
// an unchanged project are byte-identical.
func (s *Store) ExportPRDYAML() ([]byte, error) {
	meta, err := s.GetProjectMetadata()
	if err != nil {
		return nil, err
	}
	subs, err := s.ListSubsystems()
	if err != nil {
		return nil, err
	}
	discs, err := s.ListDisciplines()
	if err != nil {
		return nil, err
	}
	tasks, err := s.ListTasks(TaskFilter{})
	if err != nil {
		return nil, err
	}

	snap := prdSnapshot{
		Project: prdMetadata{Title: meta.Title, Description: meta.Description},
	}
	for _, sub := range subs {
		snap.Subsystems = append(snap.Subsystems, prdSubsystem{
			Name: sub.Name, DisplayName: sub.DisplayName, Acronym: sub.Acronym,
			Description: sub.Description, Status: string(sub.Status),
		})
	}
	for _, d := range discs {
		snap.Disciplines = append(snap.Disciplines, prdDiscipline{
			Name: d.Name, DisplayName: d.DisplayName, Acronym: d.Acronym, Skills: d.Skills,
		})
	}
	for _, t := range tasks {
		snap.Tasks = append(snap.Tasks, prdTask{
			ID: t.ID, Subsystem: t.Subsystem, Discipline: t.Discipline, Title: t.Title,
			Description: t.Description, Status: string(t.Status), Priority: string(t.Priority),
			Tags: t.Tags, DependsOn: t.DependsOn, AcceptanceCriteria: t.AcceptanceCriteria,
		})
	}

	out, err := yaml.Marshal(snap)
	if err != nil {
		return nil, rerr.New(rerr.CodeInternal, "marshal prd yaml: %v", err)
	}
	return out, nil
}
