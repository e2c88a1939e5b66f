// Package chatcoder adapts a chat-style coding-agent CLI: one that takes a
// permission mode, a model name, a JSON settings blob, and an MCP config
// path as flags. Generalized from the teacher's claudecode adapter.
package chatcoder

import (
	"encoding/json"

	"github.com/veighnsche/ralph/internal/agent"
	"github.com/veighnsche/ralph/internal/rerr"
	"github.com/veighnsche/ralph/internal/routing"
)

// Name is the adapter identifier used in go.mod-less routing/session config.
const Name = "chatcoder"

// Adapter implements agent.Agent for a chat-style coding CLI.
type Adapter struct{}

// New creates a chatcoder Adapter.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Validate(cfg agent.SessionConfig) error {
	return routing.ValidateEffort(Name, cfg.Model, cfg.Effort)
}

func (a *Adapter) Build(workDir, mcpConfigPath string, cfg agent.SessionConfig) (agent.Command, error) {
	if err := a.Validate(cfg); err != nil {
		return agent.Command{}, err
	}

	permissionMode := "safe"
	switch cfg.PermissionLevel {
	case agent.PermissionAuto:
		permissionMode = "auto"
	case agent.PermissionFullAuto:
		permissionMode = "full-auto"
	}

	settings, err := json.Marshal(cfg.SessionInit)
	if err != nil {
		return agent.Command{}, rerr.New(rerr.CodeIterationConfig, "marshal settings: %v", err)
	}

	argv := []string{
		"--permission-mode", permissionMode,
	}
	if cfg.Model != "" {
		argv = append(argv, "--model", cfg.Model)
	}
	argv = append(argv, "--settings", string(settings))
	if mcpConfigPath != "" {
		argv = append(argv, "--mcp-config", mcpConfigPath)
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
