package chatcoder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veighnsche/ralph/internal/agent"
)

func TestBuild_DefaultsToSafePermissionMode(t *testing.T) {
	a := New()
	cmd, err := a.Build("/work", "", agent.SessionConfig{})
	require.NoError(t, err)
	require.Contains(t, cmd.Argv, "--permission-mode")
	idx := indexOf(cmd.Argv, "--permission-mode")
	require.Equal(t, "safe", cmd.Argv[idx+1])
}

func TestBuild_IncludesModelAndMCPConfig(t *testing.T) {
	a := New()
	cmd, err := a.Build("/work", "/tmp/mcp.json", agent.SessionConfig{Model: "gpt-5"})
	require.NoError(t, err)
	require.Contains(t, cmd.Argv, "--model")
	require.Contains(t, cmd.Argv, "gpt-5")
	require.Contains(t, cmd.Argv, "--mcp-config")
	require.Contains(t, cmd.Argv, "/tmp/mcp.json")
}

func TestBuild_MarshalsSettingsAsJSON(t *testing.T) {
	a := New()
	cmd, err := a.Build("/work", "", agent.SessionConfig{SessionInit: map[string]bool{"auto_commit": true}})
	require.NoError(t, err)
	idx := indexOf(cmd.Argv, "--settings")
	require.NotEqual(t, -1, idx)
	require.JSONEq(t, `{"auto_commit": true}`, cmd.Argv[idx+1])
}

func TestBuild_RejectsEffortOverride(t *testing.T) {
	a := New()
	_, err := a.Build("/work", "", agent.SessionConfig{Effort: "high"})
	require.Error(t, err)
}

func indexOf(s []string, v string) int {
	for i, e := range s {
		if e == v {
			return i
		}
	}
	return -1
}
