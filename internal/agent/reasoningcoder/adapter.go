// Package reasoningcoder adapts a subcommand-style reasoning-model CLI:
// "exec" plus sandbox/approval flags, a --model flag, and effort encoded as
// a nested config override (model_reasoning_effort=<level>). Generalized
// from the teacher's codex adapter.
package reasoningcoder

import (
	"fmt"

	"github.com/veighnsche/ralph/internal/agent"
	"github.com/veighnsche/ralph/internal/routing"
)

// Name is the adapter identifier.
const Name = "reasoningcoder"

// Adapter implements agent.Agent for a subcommand-style reasoning CLI.
type Adapter struct{}

// New creates a reasoningcoder Adapter.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Validate(cfg agent.SessionConfig) error {
	return routing.ValidateEffort(Name, cfg.Model, cfg.Effort)
}

func (a *Adapter) Build(workDir, mcpConfigPath string, cfg agent.SessionConfig) (agent.Command, error) {
	if err := a.Validate(cfg); err != nil {
		return agent.Command{}, err
	}

	sandbox, approval := "workspace-write", "never"
	switch cfg.PermissionLevel {
	case agent.PermissionSafe:
		sandbox, approval = "read-only", "untrusted"
	case agent.PermissionFullAuto:
		sandbox, approval = "danger-full-access", "never"
	}

	argv := []string{
		"exec",
		"--sandbox", sandbox,
		"--ask-for-approval", approval,
		"--skip-git-repo-check",
		"--cd", workDir,
	}
	if cfg.Model != "" {
		argv = append(argv, "--model", cfg.Model)
	}
	if cfg.Effort != "" {
		argv = append(argv, "-c", fmt.Sprintf("model_reasoning_effort=%s", cfg.Effort))
	}
	if mcpConfigPath != "" {
		argv = append(argv, "-c", fmt.Sprintf("mcp_config_path=%s", mcpConfigPath))
	}

	return agent.Command{
		Argv:     argv,
		Env:      map[string]string{"RALPH_WORKDIR": workDir},
		Preamble: cfg.UserPreamble,
	}, nil
}

func init() {
	agent.Register(Name, func() agent.Agent { return New() })
}
