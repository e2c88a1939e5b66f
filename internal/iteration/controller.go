// Package iteration drives one Task through a single agent iteration: it
// snapshots Store state, composes a prompt and MCP bundle, spawns the
// external coding-agent CLI under a PTY, classifies how the child exited,
// extracts Signals from its output, and persists the result — the ten
// steps of spec.md §4.7.
package iteration

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/veighnsche/ralph/internal/agent"
	"github.com/veighnsche/ralph/internal/audit"
	"github.com/veighnsche/ralph/internal/events"
	"github.com/veighnsche/ralph/internal/journal"
	"github.com/veighnsche/ralph/internal/obslog"
	"github.com/veighnsche/ralph/internal/prompt"
	"github.com/veighnsche/ralph/internal/pty"
	"github.com/veighnsche/ralph/internal/rag"
	"github.com/veighnsche/ralph/internal/rerr"
	"github.com/veighnsche/ralph/internal/session"
	"github.com/veighnsche/ralph/internal/store"
)

// DefaultTimeout bounds how long RunOnce waits for the child to exit or the
// completion marker to appear before forcing the session closed.
const DefaultTimeout = 30 * time.Minute

// DefaultRAGTopK is how many comments the RAG indexer is asked for, per
// spec.md §4.7 step 3.
const DefaultRAGTopK = 5

// DefaultRAGMinScore is the similarity floor below which a RAG result is
// dropped rather than enriching the prompt with a barely-relevant comment.
const DefaultRAGMinScore = 0.5

// Controller owns everything one RunOnce call needs: the Store, the RAG
// indexer, the Prompt Composer, the Session Registry, and a single shared
// PTY Manager (its sink demultiplexes by session id via streamTracker).
type Controller struct {
	store    *store.Store
	rag      *rag.Index
	prompts  *prompt.Registry
	sessions *session.Registry
	pty      *pty.Manager

	tracker *streamTracker

	projectRoot string
	journalDir  string
	toolBinary  string
	dbPath      string

	logger      *obslog.Logger
	timeout     time.Duration
	ragTopK     int
	ragMinScore float64

	mu             sync.Mutex
	journalWriters map[string]*journal.Writer
}

// Config bundles the dependencies New needs. Sink may be nil.
type Config struct {
	Store       *store.Store
	RAG         *rag.Index
	Prompts     *prompt.Registry
	Sessions    *session.Registry
	Sink        events.Sink
	ProjectRoot string
	JournalDir  string
	ToolBinary  string
	DBPath      string
	Logger      *obslog.Logger
	Timeout     time.Duration
	RAGTopK     int
	RAGMinScore float64
}

// New builds a Controller and the shared PTY Manager it drives sessions
// through.
func New(cfg Config) *Controller {
	tracker := newStreamTracker(cfg.Sink)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	topK := cfg.RAGTopK
	if topK <= 0 {
		topK = DefaultRAGTopK
	}
	minScore := cfg.RAGMinScore
	if minScore <= 0 {
		minScore = DefaultRAGMinScore
	}
	return &Controller{
		store:          cfg.Store,
		rag:            cfg.RAG,
		prompts:        cfg.Prompts,
		sessions:       cfg.Sessions,
		pty:            pty.NewManager(tracker),
		tracker:        tracker,
		projectRoot:    cfg.ProjectRoot,
		journalDir:     cfg.JournalDir,
		toolBinary:     cfg.ToolBinary,
		dbPath:         cfg.DBPath,
		logger:         cfg.Logger,
		timeout:        timeout,
		ragTopK:        topK,
		ragMinScore:    minScore,
		journalWriters: map[string]*journal.Writer{},
	}
}

// RunOptions selects the recipe and the agent session configuration for one
// RunOnce call.
type RunOptions struct {
	Recipe        string // defaults to "TaskExecution"
	SessionConfig agent.SessionConfig
}

// Result is what RunOnce returns once the iteration has been fully
// persisted.
type Result struct {
	Record     IterationRecordData
	Extraction audit.ExtractionResult
}

func (c *Controller) journalWriter(subsystem string) (*journal.Writer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if w, ok := c.journalWriters[subsystem]; ok {
		return w, nil
	}
	w, err := journal.OpenWriter(c.journalDir, subsystem)
	if err != nil {
		return nil, err
	}
	c.journalWriters[subsystem] = w
	return w, nil
}

func (c *Controller) logWarn(msg string) {
	if c.logger != nil {
		c.logger.Warn(msg)
	}
}

func (c *Controller) logInfo(msg string) {
	if c.logger != nil {
		c.logger.Info(msg)
	}
}

// RunOnce drives one iteration of the given Task to completion, per
// spec.md §4.7.
func (c *Controller) RunOnce(ctx context.Context, taskID int, opts RunOptions) (*Result, error) {
	// Step 1: snapshot Store state.
	task, err := c.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	subsystem, err := c.store.GetSubsystem(task.Subsystem)
	if err != nil {
		return nil, err
	}

	if task.Status == store.TaskPending {
		if err := c.store.SetTaskStatus(taskID, store.TaskInProgress); err != nil {
			return nil, err
		}
	}

	// Step 2: select recipe.
	recipeName := opts.Recipe
	if recipeName == "" {
		recipeName = "TaskExecution"
	}
	recipe, ok := c.prompts.Recipe(recipeName)
	if !ok {
		return nil, rerr.New(rerr.CodeIterationConfig, "unknown recipe %q", recipeName)
	}

	// Steps 1 and 3: pre-read context files, RAG enrichment.
	promptCtx := c.buildPromptContext(ctx, task, subsystem, recipeName)

	// Step 4: compose prompt + MCP bundle.
	promptText := c.prompts.Compose(recipe, promptCtx)
	bundle, err := prompt.BuildBundle(c.toolBinary, c.dbPath, recipe.Tools)
	if err != nil {
		return nil, rerr.New(rerr.CodeIterationCompose, "build mcp bundle: %v", err)
	}
	defer bundle.Cleanup()

	// Step 5: ask the adapter for a command, create the PTY session.
	adapter, err := agent.Get(opts.SessionConfig.Agent)
	if err != nil {
		return nil, err
	}
	cmdSpec, err := adapter.Build(c.projectRoot, bundle.ConfigPath, opts.SessionConfig)
	if err != nil {
		return nil, err
	}
	if len(cmdSpec.Argv) == 0 {
		return nil, rerr.New(rerr.CodeIterationCompose, "adapter %q built an empty command", opts.SessionConfig.Agent)
	}

	sessionID, err := c.sessions.StartControllerSession(opts.SessionConfig.Agent, opts.SessionConfig.Model, joinArgv(cmdSpec.Argv), promptText, taskID)
	if err != nil {
		return nil, err
	}

	ts := c.tracker.track(sessionID)
	defer c.tracker.untrack(sessionID)

	osCmd := exec.Command(cmdSpec.Argv[0], cmdSpec.Argv[1:]...)
	osCmd.Dir = c.projectRoot
	osCmd.Env = buildEnv(cmdSpec.Env)

	if err := c.pty.CreateSession(sessionID, osCmd, pty.Size{Rows: 40, Cols: 120}); err != nil {
		_ = c.sessions.Close(sessionID, true, -1, "spawn-failed", "error", "", 0, err.Error())
		return nil, rerr.New(rerr.CodeIterationSpawn, "create pty session %q: %v", sessionID, err)
	}

	if cmdSpec.Preamble != "" {
		_ = c.pty.Write(sessionID, []byte(cmdSpec.Preamble+"\n"))
	}

	// Steps 6-7: observe output, classify the outcome once the child ends
	// or the completion marker fires.
	outcome, exitCode := c.awaitOutcome(ctx, sessionID, ts)
	output := ts.Output()

	if outcome != OutcomeCancelled && isRateLimited(output) {
		outcome = OutcomeRateLimited
	}

	closingVerb := "exited"
	if outcome == OutcomeCancelled {
		closingVerb = "cancelled"
	}
	_ = c.sessions.Close(sessionID, true, exitCode, closingVerb, string(outcome), hashText(output), len(output), "")

	// Step 8: extract signals from the captured output.
	extraction := audit.Extract(output, opts.SessionConfig.Agent, fmt.Sprintf("task:%d", taskID))

	// Step 9: persist the IterationRecord, upsert signals, re-embed,
	// advance the task.
	iteration, err := c.nextIterationNumber(subsystem.Name)
	if err != nil {
		return nil, err
	}

	promptHash := hashText(promptText)
	outputHash := hashText(output)
	prev, havePrev := previousIterationRecord(c.journalDir, subsystem.Name, taskID)
	stagnant := isStagnant(prev, havePrev, promptHash, outputHash)

	record := IterationRecordData{
		TaskID:     taskID,
		SessionID:  sessionID,
		Subsystem:  subsystem.Name,
		Recipe:     recipeName,
		Outcome:    outcome,
		ExitCode:   exitCode,
		PromptHash: promptHash,
		OutputHash: outputHash,
		Stagnant:   stagnant,
	}

	jw, err := c.journalWriter(subsystem.Name)
	if err != nil {
		return nil, err
	}
	if err := jw.Append("iteration", iteration, record); err != nil {
		return nil, err
	}

	c.persistSignals(ctx, extraction, task, iteration)
	c.advanceTaskStatus(taskID, recipeName, outcome, stagnant)

	return &Result{Record: record, Extraction: extraction}, nil
}

// awaitOutcome blocks until the session ends, the completion marker fires,
// or the caller's context is cancelled, then returns the classified
// outcome and the raw exit code.
func (c *Controller) awaitOutcome(ctx context.Context, sessionID string, ts *trackedSession) (Outcome, int) {
	select {
	case <-ctx.Done():
		_ = c.pty.Close(sessionID)
		c.waitBriefly(ts)
		return OutcomeCancelled, ts.exitCode

	case <-ts.markerCh:
		if c.pty.Active(sessionID) {
			_ = c.pty.Close(sessionID)
			c.waitBriefly(ts)
		}
		return OutcomeSuccess, ts.exitCode

	case <-time.After(c.timeout):
		_ = c.pty.Close(sessionID)
		c.waitBriefly(ts)
		return OutcomeTimeout, ts.exitCode

	case <-ts.doneCh:
		return classifyExit(ts.exitCode), ts.exitCode
	}
}

// waitBriefly gives the pty manager's reader goroutine a short window to
// observe the child's exit and populate ts.exitCode after Close forces it.
func (c *Controller) waitBriefly(ts *trackedSession) {
	select {
	case <-ts.doneCh:
	case <-time.After(5 * time.Second):
	}
}

func (c *Controller) persistSignals(ctx context.Context, extraction audit.ExtractionResult, task store.Task, iteration int) {
	for _, draft := range extraction.ToComments() {
		taskID := task.ID
		comment := store.Comment{
			TaskID:          &taskID,
			Subsystem:       task.Subsystem,
			Category:        draft.Category,
			Discipline:      task.Discipline,
			Body:            draft.Body,
			SourceIteration: &iteration,
			AuthoredBy:      store.AuthorAgent,
		}
		saved, err := c.store.AddSignal(comment)
		if err != nil {
			c.logWarn("persist signal: " + err.Error())
			continue
		}
		if c.rag == nil {
			continue
		}
		if err := c.rag.IndexComment(ctx, saved); err != nil {
			c.logWarn("index signal: " + err.Error())
		}
	}
}

// advanceTaskStatus implements the second half of spec.md §4.7 step 9 and
// all of step 10.
func (c *Controller) advanceTaskStatus(taskID int, recipeName string, outcome Outcome, stagnant bool) {
	if stagnant {
		_ = c.store.SetTaskStatus(taskID, store.TaskBlocked)
		return
	}
	if outcome != OutcomeSuccess {
		return
	}
	if recipeName != "TaskExecution" {
		return
	}
	// Acceptance criteria are reported via the agent's own set_task_status
	// tool call during the session, not derivable from the raw transcript;
	// the task stays in_progress unless that call already promoted it.
}

func (c *Controller) nextIterationNumber(subsystem string) (int, error) {
	records, err := journal.ReadRecords(c.journalDir, subsystem)
	if err != nil {
		return 1, nil
	}
	return len(journal.FilterByKind(records, "iteration")) + 1, nil
}

func joinArgv(argv []string) string {
	out := ""
	for i, a := range argv {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}

func buildEnv(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}
