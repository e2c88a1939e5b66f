package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/veighnsche/ralph/internal/agent"
	_ "github.com/veighnsche/ralph/internal/agent/chatcoder"
	_ "github.com/veighnsche/ralph/internal/agent/reasoningcoder"
	"github.com/veighnsche/ralph/internal/agentmd"
	"github.com/veighnsche/ralph/internal/config"
	"github.com/veighnsche/ralph/internal/embedder"
	"github.com/veighnsche/ralph/internal/events"
	"github.com/veighnsche/ralph/internal/events/wsbridge"
	"github.com/veighnsche/ralph/internal/iteration"
	"github.com/veighnsche/ralph/internal/obslog"
	"github.com/veighnsche/ralph/internal/prompt"
	"github.com/veighnsche/ralph/internal/rag"
	"github.com/veighnsche/ralph/internal/rerr"
	"github.com/veighnsche/ralph/internal/routing"
	"github.com/veighnsche/ralph/internal/session"
	"github.com/veighnsche/ralph/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open a project and iterate its pending tasks",
	Long: `run opens a project initialized with 'ralph init', then repeatedly
drives the Iteration Controller over pending Tasks: one spawned agent CLI
invocation per iteration, until the subsystem has no ready pending task
left, --max-iterations is reached, or the operator interrupts.

Example:
  ralph run --project ./myproject --subsystem COR
  ralph run --project ./myproject --subsystem COR --task 42 --recipe TaskExecution`,
	RunE: runProject,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("project", "", "path to a project initialized with 'ralph init' (required)")
	runCmd.Flags().String("subsystem", "", "subsystem acronym to pull pending tasks from (required unless --task is set)")
	runCmd.Flags().Int("task", 0, "run a single specific task id instead of draining the subsystem's pending queue")
	runCmd.Flags().String("recipe", "TaskExecution", "recipe to compose for each iteration")
	runCmd.Flags().String("agent", "chatcoder", "agent adapter to spawn (chatcoder, reasoningcoder)")
	runCmd.Flags().String("model", "", "model override for every phase (format: adapter:model)")
	runCmd.Flags().StringSlice("phase-model", nil, "per-phase model override (format: PHASE=adapter:model)")
	runCmd.Flags().String("effort", "", "reasoning effort override: low|medium|high")
	runCmd.Flags().Int("max-iterations", 30, "maximum number of iterations to run before stopping")
	runCmd.Flags().Duration("timeout", iteration.DefaultTimeout, "per-iteration timeout before forcing the session closed")
	runCmd.Flags().String("tool-binary", "", "path to the ralph-mcp-tool binary (defaults to the one next to this executable, or PATH)")
	runCmd.Flags().String("remote-bridge-addr", "", "if set, serve a websocket event bridge on this address (e.g. 127.0.0.1:8787) so a remote dashboard can watch the run live")
	runCmd.Flags().String("remote-bridge-origin", "", "Origin header required of remote-bridge websocket clients (empty allows any origin)")
}

func runProject(cmd *cobra.Command, args []string) error {
	projectRoot, _ := cmd.Flags().GetString("project")
	if projectRoot == "" {
		return rerr.New(rerr.CodeProjectPath, "--project is required")
	}
	projectRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return fmt.Errorf("resolve project path: %w", err)
	}

	subsystemAcronym, _ := cmd.Flags().GetString("subsystem")
	taskID, _ := cmd.Flags().GetInt("task")
	if subsystemAcronym == "" && taskID == 0 {
		return rerr.New(rerr.CodeProjectPath, "--subsystem or --task is required")
	}

	recipeName, _ := cmd.Flags().GetString("recipe")
	maxIterations, _ := cmd.Flags().GetInt("max-iterations")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	sessCfg, err := buildSessionConfig(cmd)
	if err != nil {
		return err
	}

	toolBinary, _ := cmd.Flags().GetString("tool-binary")
	bridgeAddr, _ := cmd.Flags().GetString("remote-bridge-addr")
	bridgeOrigin, _ := cmd.Flags().GetString("remote-bridge-origin")

	ctrl, st, cleanup, err := openProject(projectRoot, timeout, toolBinary, bridgeAddr, bridgeOrigin)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nreceived interrupt, finishing the in-flight iteration then stopping...")
		cancel()
	}()

	opts := iteration.RunOptions{Recipe: recipeName, SessionConfig: sessCfg}

	if taskID != 0 {
		fmt.Printf("Running task %d (%s)\n", taskID, recipeName)
		result, err := ctrl.RunOnce(ctx, taskID, opts)
		if err != nil {
			return err
		}
		printIterationResult(*result)
		return nil
	}

	for i := 0; i < maxIterations; i++ {
		if ctx.Err() != nil {
			fmt.Println("stopped: operator interrupt")
			return nil
		}

		task, err := st.NextPendingTask(subsystemAcronym)
		if err != nil {
			if rerr.Is(err, rerr.CodeTaskNotFound) {
				fmt.Printf("no ready pending task left in subsystem %s\n", subsystemAcronym)
				return nil
			}
			return err
		}

		fmt.Printf("[%d/%d] task %d: %s\n", i+1, maxIterations, task.ID, task.Title)
		result, err := ctrl.RunOnce(ctx, task.ID, opts)
		if err != nil {
			return err
		}
		printIterationResult(*result)

		if result.Record.Stagnant {
			fmt.Printf("task %d marked blocked: stagnation\n", task.ID)
		}
	}

	fmt.Printf("stopped: reached --max-iterations (%d)\n", maxIterations)
	return nil
}

func printIterationResult(result iteration.Result) {
	fmt.Printf("  outcome=%s exit=%d signals=%d\n",
		result.Record.Outcome, result.Record.ExitCode, len(result.Extraction.ToComments()))
}

// openProject wires a Controller against an already-initialized .ralph
// layout: the Store, the RAG index over its configured embedder, the
// Prompt Registry, the Session Registry, and an event sink. When
// bridgeAddr is set, a websocket bridge is started alongside the file
// sink (via events.Tee) so a remote dashboard can watch the run live.
func openProject(projectRoot string, timeout time.Duration, toolBinaryOverride, bridgeAddr, bridgeOrigin string) (*iteration.Controller, *store.Store, func(), error) {
	ralphDir := filepath.Join(projectRoot, agentmd.RalphDir)
	dbPath := filepath.Join(ralphDir, "db", "ralph.db")
	journalDir := filepath.Join(ralphDir, "db", "memory")

	if _, err := os.Stat(dbPath); err != nil {
		return nil, nil, nil, rerr.New(rerr.CodeProjectMissing, "project not initialized: %s (run 'ralph init' first)", projectRoot)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, nil, err
	}

	svcPath := filepath.Join(projectRoot, "external_services.json")
	svc, err := config.Load(svcPath)
	if err != nil {
		st.Close()
		return nil, nil, nil, err
	}

	emb := embedder.New(svc.Embedder.APIURL, svc.Embedder.EmbeddingModel, os.Getenv("RALPH_EMBEDDER_API_KEY"))
	ragIndex := rag.New(st, emb, rag.Config{})
	if err := ragIndex.Rebuild(context.Background()); err != nil {
		st.Close()
		return nil, nil, nil, fmt.Errorf("rebuild rag index: %w", err)
	}

	fileSink, err := events.NewFileSink(ralphDir)
	if err != nil {
		st.Close()
		return nil, nil, nil, err
	}

	var sink events.Sink = fileSink
	var bridgeServer *http.Server
	if bridgeAddr != "" {
		bridge := wsbridge.New(bridgeOrigin)
		mux := http.NewServeMux()
		mux.HandleFunc("/events", bridge.Handler())
		bridgeServer = &http.Server{Addr: bridgeAddr, Handler: mux}
		go func() {
			_ = bridgeServer.ListenAndServe()
		}()
		sink = events.NewTee(fileSink, bridge)
	}

	logger := obslog.New("ralph-run", obslog.WithWriter(os.Stderr))

	toolBinary := toolBinaryOverride
	if toolBinary == "" {
		toolBinary = resolveToolBinary()
	}

	ctrl := iteration.New(iteration.Config{
		Store:       st,
		RAG:         ragIndex,
		Prompts:     prompt.NewRegistry(),
		Sessions:    session.New(st),
		Sink:        sink,
		ProjectRoot: projectRoot,
		JournalDir:  journalDir,
		ToolBinary:  toolBinary,
		DBPath:      dbPath,
		Logger:      logger,
		Timeout:     timeout,
	})

	cleanup := func() {
		if bridgeServer != nil {
			_ = bridgeServer.Close()
		}
		_ = fileSink.Close()
		_ = st.Close()
	}
	return ctrl, st, cleanup, nil
}

// resolveToolBinary finds the ralph-mcp-tool executable next to the
// running binary, falling back to PATH lookup at spawn time if absent.
func resolveToolBinary() string {
	exe, err := os.Executable()
	if err != nil {
		return "ralph-mcp-tool"
	}
	candidate := filepath.Join(filepath.Dir(exe), "ralph-mcp-tool")
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return "ralph-mcp-tool"
}

func buildSessionConfig(cmd *cobra.Command) (agent.SessionConfig, error) {
	agentName, _ := cmd.Flags().GetString("agent")
	modelFlag, _ := cmd.Flags().GetString("model")
	phaseModels, _ := cmd.Flags().GetStringSlice("phase-model")
	effort, _ := cmd.Flags().GetString("effort")
	recipeName, _ := cmd.Flags().GetString("recipe")

	model := modelFlag
	if modelSpec := routing.ParseModelSpec(modelFlag); modelFlag != "" && modelSpec.Adapter != "" {
		agentName = modelSpec.Adapter
		model = modelSpec.Model
	}

	if len(phaseModels) > 0 {
		phaseRouting, err := parsePhaseModelFlags(phaseModels)
		if err != nil {
			return agent.SessionConfig{}, fmt.Errorf("invalid --phase-model: %w", err)
		}
		router := routing.NewRouter(&phaseRouting)
		if router.IsConfigured() {
			mc := router.ModelForPhase(recipeName)
			if mc.Model != "" {
				model = mc.Model
			}
			if mc.Adapter != "" {
				agentName = mc.Adapter
			}
		}
	}

	if effort != "" {
		if err := routing.ValidateEffort(agentName, model, effort); err != nil {
			return agent.SessionConfig{}, err
		}
	}

	if !agent.Exists(agentName) {
		return agent.SessionConfig{}, rerr.New(rerr.CodeIterationConfig, "unknown agent adapter %q (available: %v)", agentName, agent.List())
	}

	return agent.SessionConfig{
		Agent:           agentName,
		Model:           model,
		Effort:          effort,
		PermissionLevel: agent.PermissionAuto,
	}, nil
}

// parsePhaseModelFlags parses "PHASE=adapter:model" entries into a
// PhaseRouting whose Overrides key on the phase (recipe) name.
func parsePhaseModelFlags(specs []string) (routing.PhaseRouting, error) {
	pr := routing.PhaseRouting{Overrides: map[string]routing.ModelConfig{}}
	for _, spec := range specs {
		parts := strings.SplitN(spec, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return routing.PhaseRouting{}, fmt.Errorf("expected PHASE=adapter:model, got %q", spec)
		}
		pr.Overrides[parts[0]] = routing.ParseModelSpec(parts[1])
	}
	return pr, nil
}
