// Package prompt is the Prompt Composer: a recipe-driven, side-effect-free
// builder that assembles a prompt from named Sections, plus a generated
// MCP tool-server bundle the spawned agent calls back into the Store
// through. Sections and Recipes are data — ordered lists and pure
// functions — never a class hierarchy.
package prompt

import "github.com/veighnsche/ralph/internal/store"

// Section is a named, total function from PromptContext to an optional
// rendered string. Returning ok=false means the section is elided entirely
// — no header, no separator. Sections are pure: no I/O, no clock reads, no
// randomness: everything a section needs is already in PromptContext.
type Section func(ctx *PromptContext) (text string, ok bool)

// McpTool names one callback tool the spawned agent may invoke against the
// Store via the generated MCP bundle.
type McpTool string

const (
	ToolCreateTask       McpTool = "create_task"
	ToolUpdateTask       McpTool = "update_task"
	ToolSetTaskStatus    McpTool = "set_task_status"
	ToolAddSignal        McpTool = "add_signal"
	ToolSearchComments   McpTool = "search_comments"
	ToolGetTaskDetails   McpTool = "get_task_details"
	ToolListTasks        McpTool = "list_tasks"
	ToolMarkReviewed     McpTool = "mark_comment_reviewed"
)

// Recipe is a named, ordered list of section identifiers plus the set of
// MCP tools the iteration should have access to while it runs. Ordering
// matters: later sections exploit recency bias, so recipes that end in an
// execution step place that section last.
type Recipe struct {
	Name     string
	Sections []string
	Tools    []McpTool
}

// SectionOverride swaps in operator-supplied replacement text for one named
// section, or disables it outright.
type SectionOverride struct {
	Enabled             bool
	InstructionOverride string
}

// PromptContext carries every value a Section might render. It is built
// once per iteration by the caller (the Iteration Controller) and never
// mutated by a Section.
type PromptContext struct {
	ProjectContextMD string // contents of .ralph/CLAUDE.RALPH.md, if present
	ProjectTitle     string
	ProjectDesc      string

	CodebaseTree      string
	LanguageCounts    map[string]int

	Subsystems []store.Subsystem
	Subsystem  *store.Subsystem

	SubsystemFiles map[string]string // path -> contents, for SubsystemFiles section
	FeatureStats   []store.FeatureStats

	Tasks      []store.Task
	Task       *store.Task
	TaskFiles  map[string]string

	CompletedDependencies []store.Task
	PreviousAttempts      []store.AgentSession

	Disciplines []store.Discipline
	Discipline  *store.Discipline

	ProgressNotes  string
	LearningsNotes string

	UserInput string

	RelevantComments []store.ScoredComment

	Overrides map[string]SectionOverride
}

// resolveOverride reports whether a named section has been explicitly
// disabled, and whether operator-supplied text should replace its default
// rendering.
func (c *PromptContext) resolveOverride(name string) (disabled bool, overrideText string, hasOverrideText bool) {
	if c.Overrides == nil {
		return false, "", false
	}
	ov, ok := c.Overrides[name]
	if !ok {
		return false, "", false
	}
	if !ov.Enabled {
		return true, "", false
	}
	return false, ov.InstructionOverride, ov.InstructionOverride != ""
}
