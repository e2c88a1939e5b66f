package iteration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/veighnsche/ralph/internal/events"
	"github.com/veighnsche/ralph/internal/prompt"
	"github.com/veighnsche/ralph/internal/rerr"
	"github.com/veighnsche/ralph/internal/store"
)

// maxContextFileBytes caps how much of each declared context file is read
// into the prompt, per spec.md §4.7 step 1 ("pre-read declared context
// files (capped in size)").
const maxContextFileBytes = 32 * 1024

func (c *Controller) readContextFiles(task store.Task) map[string]string {
	files := make(map[string]string, len(task.ContextFiles))
	for _, rel := range task.ContextFiles {
		full := filepath.Join(c.projectRoot, rel)
		data, err := os.ReadFile(full)
		if err != nil {
			continue
		}
		if len(data) > maxContextFileBytes {
			data = data[:maxContextFileBytes]
		}
		files[rel] = string(data)
	}
	return files
}

func (c *Controller) completedDependencies(task store.Task) []store.Task {
	var deps []store.Task
	for _, depID := range task.DependsOn {
		dep, err := c.store.GetTask(depID)
		if err != nil || dep.Status != store.TaskDone {
			continue
		}
		deps = append(deps, dep)
	}
	return deps
}

// buildPromptContext assembles the PromptContext for one iteration, per
// spec.md §4.7 steps 1-3. Missing optional pieces (project metadata,
// discipline, RAG results) are elided rather than treated as errors — the
// Composer never fails on absence.
func (c *Controller) buildPromptContext(ctx context.Context, task store.Task, subsystem store.Subsystem, recipeName string) *prompt.PromptContext {
	pc := &prompt.PromptContext{
		Subsystem:             &subsystem,
		Task:                  &task,
		TaskFiles:             c.readContextFiles(task),
		CompletedDependencies: c.completedDependencies(task),
	}

	if meta, err := c.store.GetProjectMetadata(); err == nil {
		pc.ProjectTitle = meta.Title
		pc.ProjectDesc = meta.Description
	}

	if task.Discipline != "" {
		if d, err := c.store.GetDiscipline(task.Discipline); err == nil {
			pc.Discipline = &d
		}
	}

	if taskID := task.ID; true {
		if attempts, err := c.sessions.List(&taskID); err == nil {
			pc.PreviousAttempts = attempts
		}
	}

	if c.rag != nil {
		query := task.Title + " " + task.Description
		if scored, err := c.rag.Search(ctx, task.Subsystem, query, c.ragTopK, c.ragMinScore); err == nil {
			pc.RelevantComments = scored
		} else {
			msg := "rag search failed, continuing without enrichment: " + err.Error()
			if c.logger != nil {
				c.logger.Warn(msg)
			}
			code := fmt.Sprintf("R-%04d", int(rerr.CodeIterationRAG))
			c.tracker.EmitDiagnostic(fmt.Sprintf("task-%d", task.ID), events.DiagnosticWarning, "rag", code, msg)
		}
	}

	return pc
}
