package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veighnsche/ralph/internal/store"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "project.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s)
}

func TestStartHuman_IsLiveAndPersisted(t *testing.T) {
	r := newTestRegistry(t)

	id, err := r.StartHuman("chatcoder", "gpt-5", "chatcoder --model gpt-5", "fix the bug", nil)
	require.NoError(t, err)
	require.True(t, r.IsLive(id))

	got, err := r.Get(id)
	require.NoError(t, err)
	require.Equal(t, store.StartedByHuman, got.StartedBy)
	require.Equal(t, "running", got.Status)
}

func TestClose_HumanSessionClosableByAnyone(t *testing.T) {
	r := newTestRegistry(t)
	id, err := r.StartHuman("chatcoder", "gpt-5", "chatcoder", "", nil)
	require.NoError(t, err)

	require.NoError(t, r.Close(id, false, 0, "completed", "success", "abc123", 42, ""))
	require.False(t, r.IsLive(id))

	got, err := r.Get(id)
	require.NoError(t, err)
	require.Equal(t, "success", got.Status)
}

func TestClose_ControllerSessionRejectsNonControllerCaller(t *testing.T) {
	r := newTestRegistry(t)
	id, err := r.StartControllerSession("chatcoder", "gpt-5", "chatcoder", "", 1)
	require.NoError(t, err)

	err = r.Close(id, false, 0, "completed", "success", "abc123", 1, "")
	require.Error(t, err)
	require.True(t, r.IsLive(id))

	require.NoError(t, r.Close(id, true, 0, "completed", "success", "abc123", 1, ""))
	require.False(t, r.IsLive(id))
}

func TestList_ScopesByTask(t *testing.T) {
	r := newTestRegistry(t)
	taskID := 3
	_, err := r.StartHuman("chatcoder", "gpt-5", "chatcoder", "", &taskID)
	require.NoError(t, err)
	_, err = r.StartHuman("chatcoder", "gpt-5", "chatcoder", "", nil)
	require.NoError(t, err)

	scoped, err := r.List(&taskID)
	require.NoError(t, err)
	require.Len(t, scoped, 1)

	all, err := r.List(nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
}
