package iteration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/veighnsche/ralph/internal/agent"
	"github.com/veighnsche/ralph/internal/prompt"
	"github.com/veighnsche/ralph/internal/session"
	"github.com/veighnsche/ralph/internal/store"
)

// shellAgent is a test-only agent.Agent that runs an arbitrary shell
// script in place of a real coding-agent CLI.
type shellAgent struct{ script string }

func (a shellAgent) Name() string { return "shellagent" }
func (a shellAgent) Validate(agent.SessionConfig) error { return nil }
func (a shellAgent) Build(workDir, mcpConfigPath string, cfg agent.SessionConfig) (agent.Command, error) {
	return agent.Command{Argv: []string{"/bin/sh", "-c", a.script}}, nil
}

func registerShellAgent(t *testing.T, script string) {
	t.Helper()
	agent.Register("shellagent", func() agent.Agent { return shellAgent{script: script} })
}

func newTestController(t *testing.T, timeout time.Duration) (*Controller, store.Task) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "project.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.CreateSubsystem(store.Subsystem{Name: "core", Acronym: "COR"}))
	require.NoError(t, s.CreateDiscipline(store.Discipline{Name: "backend", Acronym: "BAK"}))

	task, err := s.CreateTask(store.Task{
		Subsystem:   "core",
		Discipline:  "backend",
		Title:       "Add widget",
		Description: "Implement the widget endpoint",
	})
	require.NoError(t, err)

	ctrl := New(Config{
		Store:       s,
		Prompts:     prompt.NewRegistry(),
		Sessions:    session.New(s),
		ProjectRoot: dir,
		JournalDir:  filepath.Join(dir, "memory"),
		ToolBinary:  "/bin/true",
		DBPath:      filepath.Join(dir, "project.db"),
		Timeout:     timeout,
	})
	return ctrl, task
}

func runOpts() RunOptions {
	return RunOptions{SessionConfig: agent.SessionConfig{Agent: "shellagent"}}
}

func TestRunOnce_SuccessViaCompletionMarker(t *testing.T) {
	registerShellAgent(t, `echo '<promise>COMPLETE</promise>'; sleep 30`)
	ctrl, task := newTestController(t, 10*time.Second)

	result, err := ctrl.RunOnce(context.Background(), task.ID, runOpts())
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, result.Record.Outcome)
}

func TestRunOnce_SuccessViaExitZero(t *testing.T) {
	registerShellAgent(t, `echo done`)
	ctrl, task := newTestController(t, 10*time.Second)

	result, err := ctrl.RunOnce(context.Background(), task.ID, runOpts())
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, result.Record.Outcome)
	require.Equal(t, 0, result.Record.ExitCode)
}

func TestRunOnce_ErrorExitCode(t *testing.T) {
	registerShellAgent(t, `exit 7`)
	ctrl, task := newTestController(t, 10*time.Second)

	result, err := ctrl.RunOnce(context.Background(), task.ID, runOpts())
	require.NoError(t, err)
	require.Equal(t, OutcomeError, result.Record.Outcome)
	require.Equal(t, 7, result.Record.ExitCode)
}

func TestRunOnce_Cancelled(t *testing.T) {
	registerShellAgent(t, `sleep 30`)
	ctrl, task := newTestController(t, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	result, err := ctrl.RunOnce(ctx, task.ID, runOpts())
	require.NoError(t, err)
	require.Equal(t, OutcomeCancelled, result.Record.Outcome)
}

func TestRunOnce_RateLimitedOverridesError(t *testing.T) {
	registerShellAgent(t, `echo "429 Too Many Requests"; exit 1`)
	ctrl, task := newTestController(t, 10*time.Second)

	result, err := ctrl.RunOnce(context.Background(), task.ID, runOpts())
	require.NoError(t, err)
	require.Equal(t, OutcomeRateLimited, result.Record.Outcome)
}

func TestRunOnce_StagnationDetection(t *testing.T) {
	registerShellAgent(t, `echo same-output`)
	ctrl, task := newTestController(t, 10*time.Second)

	first, err := ctrl.RunOnce(context.Background(), task.ID, runOpts())
	require.NoError(t, err)
	require.False(t, first.Record.Stagnant)

	second, err := ctrl.RunOnce(context.Background(), task.ID, runOpts())
	require.NoError(t, err)
	require.True(t, second.Record.Stagnant)

	got, err := ctrl.store.GetTask(task.ID)
	require.NoError(t, err)
	require.Equal(t, store.TaskBlocked, got.Status)
}

func TestRunOnce_ExtractsSignalsFromOutput(t *testing.T) {
	registerShellAgent(t, `echo "ERROR: connection refused"`)
	ctrl, task := newTestController(t, 10*time.Second)

	result, err := ctrl.RunOnce(context.Background(), task.ID, runOpts())
	require.NoError(t, err)
	require.NotEmpty(t, result.Extraction.Errors)

	comments, err := ctrl.store.ListSubsystemComments(task.Subsystem)
	require.NoError(t, err)
	require.NotEmpty(t, comments)
}

func TestRunOnce_MarksInProgressOnStart(t *testing.T) {
	registerShellAgent(t, `exit 1`)
	ctrl, task := newTestController(t, 10*time.Second)
	require.Equal(t, store.TaskPending, task.Status)

	_, err := ctrl.RunOnce(context.Background(), task.ID, runOpts())
	require.NoError(t, err)

	got, err := ctrl.store.GetTask(task.ID)
	require.NoError(t, err)
	require.Equal(t, store.TaskInProgress, got.Status)
}
