package reasoningcoder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veighnsche/ralph/internal/agent"
)

func TestBuild_DefaultsToWorkspaceWriteSandbox(t *testing.T) {
	a := New()
	cmd, err := a.Build("/work", "", agent.SessionConfig{})
	require.NoError(t, err)
	require.Contains(t, cmd.Argv, "--sandbox")
	require.Contains(t, cmd.Argv, "workspace-write")
}

func TestBuild_EncodesEffortAsNestedConfig(t *testing.T) {
	a := New()
	cmd, err := a.Build("/work", "", agent.SessionConfig{Model: "o-reasoning-mini", Effort: "high"})
	require.NoError(t, err)
	require.Contains(t, cmd.Argv, "model_reasoning_effort=high")
}

func TestBuild_RejectsUnlistedEffort(t *testing.T) {
	a := New()
	_, err := a.Build("/work", "", agent.SessionConfig{Model: "o-reasoning-mini", Effort: "extreme"})
	require.Error(t, err)
}

func TestBuild_RejectsEffortForUnsupportedModel(t *testing.T) {
	a := New()
	_, err := a.Build("/work", "", agent.SessionConfig{Model: "some-other-model", Effort: "high"})
	require.Error(t, err)
}

func TestBuild_SafePermissionUsesReadOnlySandbox(t *testing.T) {
	a := New()
	cmd, err := a.Build("/work", "", agent.SessionConfig{PermissionLevel: agent.PermissionSafe})
	require.NoError(t, err)
	require.Contains(t, cmd.Argv, "read-only")
	require.Contains(t, cmd.Argv, "untrusted")
}
