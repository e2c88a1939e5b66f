package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/veighnsche/ralph/internal/store"
)

// ProjectContext renders the project-level markdown file (.ralph/CLAUDE.RALPH.md)
// when present.
func ProjectContext(ctx *PromptContext) (string, bool) {
	if strings.TrimSpace(ctx.ProjectContextMD) == "" {
		return "", false
	}
	return "## Project Context\n\n" + strings.TrimRight(ctx.ProjectContextMD, "\n"), true
}

// ProjectMetadata renders the project's title and description.
func ProjectMetadata(ctx *PromptContext) (string, bool) {
	if ctx.ProjectTitle == "" {
		return "", false
	}
	var b strings.Builder
	b.WriteString("## Project\n\n")
	fmt.Fprintf(&b, "**%s**", ctx.ProjectTitle)
	if ctx.ProjectDesc != "" {
		fmt.Fprintf(&b, " — %s", ctx.ProjectDesc)
	}
	return b.String(), true
}

// CodebaseSnapshot renders the scanned directory tree and per-language file
// counts.
func CodebaseSnapshot(ctx *PromptContext) (string, bool) {
	if ctx.CodebaseTree == "" && len(ctx.LanguageCounts) == 0 {
		return "", false
	}
	var b strings.Builder
	b.WriteString("## Codebase Snapshot\n\n")
	if ctx.CodebaseTree != "" {
		b.WriteString("```\n")
		b.WriteString(strings.TrimRight(ctx.CodebaseTree, "\n"))
		b.WriteString("\n```\n")
	}
	if len(ctx.LanguageCounts) > 0 {
		langs := make([]string, 0, len(ctx.LanguageCounts))
		for lang := range ctx.LanguageCounts {
			langs = append(langs, lang)
		}
		sort.Strings(langs)
		b.WriteString("\nFiles by language: ")
		parts := make([]string, 0, len(langs))
		for _, lang := range langs {
			parts = append(parts, fmt.Sprintf("%s: %d", lang, ctx.LanguageCounts[lang]))
		}
		b.WriteString(strings.Join(parts, ", "))
	}
	return strings.TrimRight(b.String(), "\n"), true
}

// FeatureListing renders every Subsystem with its acronym and task roll-up.
func FeatureListing(ctx *PromptContext) (string, bool) {
	if len(ctx.Subsystems) == 0 {
		return "", false
	}
	statsByName := map[string]store.FeatureStats{}
	for _, fs := range ctx.FeatureStats {
		statsByName[fs.Subsystem] = fs
	}
	var b strings.Builder
	b.WriteString("## Subsystems\n\n")
	for _, sub := range ctx.Subsystems {
		fmt.Fprintf(&b, "- **%s** (%s)", sub.DisplayName, sub.Acronym)
		if fs, ok := statsByName[sub.Name]; ok {
			fmt.Fprintf(&b, " — %d/%d done", fs.Done, fs.Total)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), true
}

// SubsystemContext renders the target Subsystem's description.
func SubsystemContext(ctx *PromptContext) (string, bool) {
	if ctx.Subsystem == nil {
		return "", false
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## Subsystem: %s (%s)\n", ctx.Subsystem.DisplayName, ctx.Subsystem.Acronym)
	if ctx.Subsystem.Description != "" {
		b.WriteString("\n" + ctx.Subsystem.Description)
	}
	return strings.TrimRight(b.String(), "\n"), true
}

// SubsystemFiles inlines the contents of files relevant to the target
// Subsystem.
func SubsystemFiles(ctx *PromptContext) (string, bool) {
	if len(ctx.SubsystemFiles) == 0 {
		return "", false
	}
	paths := sortedKeys(ctx.SubsystemFiles)
	var b strings.Builder
	b.WriteString("## Subsystem Files\n")
	for _, path := range paths {
		fmt.Fprintf(&b, "\n### %s\n\n```\n%s\n```\n", path, strings.TrimRight(ctx.SubsystemFiles[path], "\n"))
	}
	return strings.TrimRight(b.String(), "\n"), true
}

// SubsystemState renders the task status roll-up for the target Subsystem.
func SubsystemState(ctx *PromptContext) (string, bool) {
	if ctx.Subsystem == nil {
		return "", false
	}
	var match *store.FeatureStats
	for i := range ctx.FeatureStats {
		if ctx.FeatureStats[i].Subsystem == ctx.Subsystem.Name {
			match = &ctx.FeatureStats[i]
			break
		}
	}
	if match == nil {
		return "", false
	}
	return fmt.Sprintf("## Subsystem State\n\n%d total, %d pending, %d in progress, %d done, %d blocked, %d skipped",
		match.Total, match.Pending, match.InProgress, match.Done, match.Blocked, match.Skipped), true
}

// TaskListing renders every in-scope Task with id, title, and status.
func TaskListing(ctx *PromptContext) (string, bool) {
	if len(ctx.Tasks) == 0 {
		return "", false
	}
	var b strings.Builder
	b.WriteString("## Tasks\n\n")
	for _, t := range ctx.Tasks {
		fmt.Fprintf(&b, "- [%d] %s (%s, %s)\n", t.ID, t.Title, t.Status, t.Priority)
	}
	return strings.TrimRight(b.String(), "\n"), true
}

// TaskDetails renders the full detail of the task currently being worked.
func TaskDetails(ctx *PromptContext) (string, bool) {
	if ctx.Task == nil {
		return "", false
	}
	t := ctx.Task
	var b strings.Builder
	fmt.Fprintf(&b, "## Task %d: %s\n\n", t.ID, t.Title)
	if t.Description != "" {
		b.WriteString(t.Description + "\n\n")
	}
	if len(t.AcceptanceCriteria) > 0 {
		b.WriteString("Acceptance criteria:\n")
		for _, c := range t.AcceptanceCriteria {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	if t.Hints != "" {
		b.WriteString("\nHints: " + t.Hints)
	}
	return strings.TrimRight(b.String(), "\n"), true
}

// TaskFilesSection inlines the contents of the current task's context
// files.
func TaskFilesSection(ctx *PromptContext) (string, bool) {
	if len(ctx.TaskFiles) == 0 {
		return "", false
	}
	paths := sortedKeys(ctx.TaskFiles)
	var b strings.Builder
	b.WriteString("## Task Files\n")
	for _, path := range paths {
		fmt.Fprintf(&b, "\n### %s\n\n```\n%s\n```\n", path, strings.TrimRight(ctx.TaskFiles[path], "\n"))
	}
	return strings.TrimRight(b.String(), "\n"), true
}

// DependencyContext renders the completed prerequisite tasks the current
// task depends on.
func DependencyContext(ctx *PromptContext) (string, bool) {
	if len(ctx.CompletedDependencies) == 0 {
		return "", false
	}
	var b strings.Builder
	b.WriteString("## Completed Prerequisites\n\n")
	for _, t := range ctx.CompletedDependencies {
		fmt.Fprintf(&b, "- [%d] %s\n", t.ID, t.Title)
	}
	return strings.TrimRight(b.String(), "\n"), true
}

// PreviousAttempts renders a summary of prior agent sessions against the
// current task.
func PreviousAttempts(ctx *PromptContext) (string, bool) {
	if len(ctx.PreviousAttempts) == 0 {
		return "", false
	}
	var b strings.Builder
	b.WriteString("## Previous Attempts\n\n")
	for _, a := range ctx.PreviousAttempts {
		fmt.Fprintf(&b, "- %s via %s: %s\n", a.Started.Format("2006-01-02 15:04"), a.Agent, a.Status)
	}
	return strings.TrimRight(b.String(), "\n"), true
}

// DisciplineListing renders every Discipline with its acronym.
func DisciplineListing(ctx *PromptContext) (string, bool) {
	if len(ctx.Disciplines) == 0 {
		return "", false
	}
	var b strings.Builder
	b.WriteString("## Disciplines\n\n")
	for _, d := range ctx.Disciplines {
		fmt.Fprintf(&b, "- **%s** (%s)\n", d.DisplayName, d.Acronym)
	}
	return strings.TrimRight(b.String(), "\n"), true
}

// DisciplinePersona renders the assigned Discipline's system prompt,
// conventions, and skill list.
func DisciplinePersona(ctx *PromptContext) (string, bool) {
	if ctx.Discipline == nil {
		return "", false
	}
	d := ctx.Discipline
	var b strings.Builder
	fmt.Fprintf(&b, "## Persona: %s\n\n", d.DisplayName)
	if d.SystemPrompt != "" {
		b.WriteString(d.SystemPrompt + "\n")
	}
	if len(d.Skills) > 0 {
		b.WriteString("\nSkills: " + strings.Join(d.Skills, ", ") + "\n")
	}
	if d.Conventions != "" {
		b.WriteString("\nConventions:\n" + d.Conventions)
	}
	return strings.TrimRight(b.String(), "\n"), true
}

// StateFiles renders accumulated progress and learnings notes.
func StateFiles(ctx *PromptContext) (string, bool) {
	if ctx.ProgressNotes == "" && ctx.LearningsNotes == "" {
		return "", false
	}
	var b strings.Builder
	b.WriteString("## State\n")
	if ctx.ProgressNotes != "" {
		b.WriteString("\n### Progress\n\n" + strings.TrimRight(ctx.ProgressNotes, "\n") + "\n")
	}
	if ctx.LearningsNotes != "" {
		b.WriteString("\n### Learnings\n\n" + strings.TrimRight(ctx.LearningsNotes, "\n") + "\n")
	}
	return strings.TrimRight(b.String(), "\n"), true
}

// UserInput renders the operator-supplied free-text input for the
// iteration, when present.
func UserInput(ctx *PromptContext) (string, bool) {
	if strings.TrimSpace(ctx.UserInput) == "" {
		return "", false
	}
	return "## User Input\n\n" + strings.TrimRight(ctx.UserInput, "\n"), true
}

// RelevantLearnings renders the RAG search results surfaced for this
// iteration, highest-scoring first.
func RelevantLearnings(ctx *PromptContext) (string, bool) {
	if len(ctx.RelevantComments) == 0 {
		return "", false
	}
	var b strings.Builder
	b.WriteString("## Relevant Learnings\n\n")
	for _, sc := range ctx.RelevantComments {
		fmt.Fprintf(&b, "- (%s) %s\n", sc.Comment.Category, sc.Comment.Body)
	}
	return strings.TrimRight(b.String(), "\n"), true
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
