// Package store is the Project Store: a transactional, file-backed catalog
// of Subsystems, Disciplines, Tasks, Signals (Comments), Embeddings, and
// Agent-Session records. It is the single source of truth for what the
// agent is asked to do and what it has learned.
package store

import "time"

// SubsystemStatus is the lifecycle state of a Subsystem.
type SubsystemStatus string

const (
	SubsystemActive   SubsystemStatus = "active"
	SubsystemArchived SubsystemStatus = "archived"
)

// Subsystem is a named area of the user's project.
type Subsystem struct {
	Name        string
	DisplayName string
	Acronym     string
	Description string
	Status      SubsystemStatus
	CreatedAt   time.Time
}

// McpServerConfig describes one MCP server a Discipline wires into its
// sessions (distinct from the Composer's generated tool-bundle servers).
type McpServerConfig struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
}

// Discipline is a persona the agent assumes for a task.
type Discipline struct {
	Name            string
	DisplayName     string
	Acronym         string
	Icon            string
	Color           string
	SystemPrompt    string
	Skills          []string
	Conventions     string
	DefaultAgent    string
	DefaultModel    string
	DefaultEffort   string
	DefaultThinking *bool
	McpServers      []McpServerConfig
	CreatedAt       time.Time
}

// TaskStatus is the lifecycle state of a Task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
	TaskBlocked    TaskStatus = "blocked"
	TaskSkipped    TaskStatus = "skipped"
)

// TaskPriority ranks how urgent a Task is.
type TaskPriority string

const (
	PriorityLow      TaskPriority = "low"
	PriorityMedium   TaskPriority = "medium"
	PriorityHigh     TaskPriority = "high"
	PriorityCritical TaskPriority = "critical"
)

// Provenance records who created a Task.
type Provenance string

const (
	ProvenanceHuman  Provenance = "human"
	ProvenanceAgent  Provenance = "agent"
	ProvenanceSystem Provenance = "system"
)

// Task is a unit of work scoped to one Subsystem and assigned one Discipline.
type Task struct {
	ID                 int
	Subsystem          string
	Discipline         string
	Title              string
	Description        string
	Status             TaskStatus
	Priority           TaskPriority
	Tags               []string
	DependsOn          []int
	AcceptanceCriteria []string
	ContextFiles       []string
	OutputArtifacts    []string
	Hints              string
	Pseudocode         string
	EstimatedTurns     *int
	Provenance         Provenance

	AgentOverride    string
	ModelOverride    string
	EffortOverride   string
	ThinkingOverride *bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CommentAuthor distinguishes human- from agent-authored Comments.
type CommentAuthor string

const (
	AuthorHuman CommentAuthor = "human"
	AuthorAgent CommentAuthor = "agent"
)

// Comment (a.k.a. Signal) is a piece of knowledge attached to a Task or
// Subsystem.
type Comment struct {
	ID              int
	TaskID          *int
	Subsystem       string
	Category        string
	Discipline      string
	AgentTaskID     *int
	Body            string
	Summary         string
	Reason          string
	SourceIteration *int
	AuthoredBy      CommentAuthor
	HitCount        int
	Reviewed        bool
	CreatedAt       time.Time
}

// Embedding is the vector representation of one Comment's embedding text.
type Embedding struct {
	CommentID   int
	Model       string
	Dims        int
	ContentHash string
	Vector      []float32
	UpdatedAt   time.Time
}

// AgentSessionKind distinguishes sessions started interactively by a human
// from those spawned by the Iteration Controller.
type StartedBy string

const (
	StartedByHuman      StartedBy = "human"
	StartedByController StartedBy = "controller"
)

// AgentSession is one external-agent process invocation, human- or
// controller-initiated.
type AgentSession struct {
	ID            string
	Kind          string
	StartedBy     StartedBy
	TaskID        *int
	Agent         string
	Model         string
	LaunchCommand string
	PrePrompt     string
	Started       time.Time
	Ended         *time.Time
	ExitCode      *int
	ClosingVerb   string
	Status        string
	OutputHash    string
	OutputSize    *int
	OutputError   string
}

// RecipeSectionOverride customizes one section within a saved RecipeConfig.
type RecipeSectionOverride struct {
	SectionName         string
	Enabled             bool
	InstructionOverride string
}

// RecipeConfig is a named, saved prompt-assembly preset.
type RecipeConfig struct {
	Name       string
	BaseRecipe string
	Sections   []RecipeSectionOverride
	CreatedAt  time.Time
}

// ProjectMetadata is the single project-wide metadata row.
type ProjectMetadata struct {
	Title       string
	Description string
	Created     time.Time
}

// FeatureStats is a per-subsystem roll-up of task counts by status.
type FeatureStats struct {
	Subsystem string
	Total     int
	Pending   int
	InProgress int
	Done      int
	Blocked   int
	Skipped   int
}

// DisciplineStats is a per-discipline roll-up of task counts.
type DisciplineStats struct {
	Discipline string
	Total      int
	Done       int
}

// ProjectProgress is the whole-project roll-up.
type ProjectProgress struct {
	TotalTasks   int
	DoneTasks    int
	PercentDone  float64
}

// ScoredComment is a Comment with its cosine-similarity score from a
// semantic search.
type ScoredComment struct {
	Comment Comment
	Score   float64
}
