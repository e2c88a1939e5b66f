package rag

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veighnsche/ralph/internal/store"
)

// fakeEmbedder produces a deterministic bag-of-words vector over a fixed
// small vocabulary so tests can assert on relative similarity without a
// network call.
type fakeEmbedder struct{ vocab []string }

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vocab: []string{"timeout", "retry", "auth", "token", "database", "lock"}}
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, len(f.vocab))
	for i, w := range f.vocab {
		if contains(text, w) {
			vec[i] = 1
		}
	}
	return vec, nil
}

func (f *fakeEmbedder) Model() string { return "fake-bow-v1" }

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "project.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.CreateSubsystem(store.Subsystem{Name: "auth", DisplayName: "Auth", Acronym: "AUTH"}))
	return s
}

func TestIndexComment_SkipsReembedWhenUnchanged(t *testing.T) {
	s := newTestStore(t)
	fe := newFakeEmbedder()
	idx := New(s, fe, Config{})

	c, err := s.AddSubsystemComment(store.Comment{Subsystem: "auth", Category: "gotcha", Body: "retry on timeout"})
	require.NoError(t, err)

	require.NoError(t, idx.IndexComment(context.Background(), c))
	hash1, err := s.GetEmbeddingHash(c.ID)
	require.NoError(t, err)
	require.NotEmpty(t, hash1)

	require.NoError(t, idx.IndexComment(context.Background(), c))
	hash2, err := s.GetEmbeddingHash(c.ID)
	require.NoError(t, err)
	require.Equal(t, hash1, hash2)
}

func TestSearch_ReturnsMostSimilarFirst(t *testing.T) {
	s := newTestStore(t)
	fe := newFakeEmbedder()
	idx := New(s, fe, Config{})
	ctx := context.Background()

	authComment, err := s.AddSubsystemComment(store.Comment{Subsystem: "auth", Category: "gotcha", Body: "auth token expires fast"})
	require.NoError(t, err)
	dbComment, err := s.AddSubsystemComment(store.Comment{Subsystem: "auth", Category: "gotcha", Body: "database lock contention"})
	require.NoError(t, err)

	require.NoError(t, idx.IndexComment(ctx, authComment))
	require.NoError(t, idx.IndexComment(ctx, dbComment))

	results, err := idx.Search(ctx, "auth", "auth token", 2, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, authComment.ID, results[0].Comment.ID)
}

func TestSearch_FiltersBelowMinScore(t *testing.T) {
	s := newTestStore(t)
	fe := newFakeEmbedder()
	idx := New(s, fe, Config{})
	ctx := context.Background()

	authComment, err := s.AddSubsystemComment(store.Comment{Subsystem: "auth", Category: "gotcha", Body: "auth token expires fast"})
	require.NoError(t, err)
	dbComment, err := s.AddSubsystemComment(store.Comment{Subsystem: "auth", Category: "gotcha", Body: "database lock contention"})
	require.NoError(t, err)

	require.NoError(t, idx.IndexComment(ctx, authComment))
	require.NoError(t, idx.IndexComment(ctx, dbComment))

	results, err := idx.Search(ctx, "auth", "auth token", 2, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, authComment.ID, results[0].Comment.ID)
}

func TestSearch_TiesBreakByDescendingCommentID(t *testing.T) {
	s := newTestStore(t)
	fe := newFakeEmbedder()
	idx := New(s, fe, Config{})
	ctx := context.Background()

	first, err := s.AddSubsystemComment(store.Comment{Subsystem: "auth", Category: "gotcha", Body: "auth token"})
	require.NoError(t, err)
	second, err := s.AddSubsystemComment(store.Comment{Subsystem: "auth", Category: "gotcha", Body: "auth token"})
	require.NoError(t, err)

	require.NoError(t, idx.IndexComment(ctx, first))
	require.NoError(t, idx.IndexComment(ctx, second))

	results, err := idx.Search(ctx, "auth", "auth token", 2, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, second.ID, results[0].Comment.ID)
	require.Equal(t, first.ID, results[1].Comment.ID)
}

func TestPrune_EvictsLowestHitCountFirst(t *testing.T) {
	s := newTestStore(t)
	idx := New(s, newFakeEmbedder(), Config{MaxPerSubsystem: 2})

	for i := 0; i < 4; i++ {
		_, err := s.AddSubsystemComment(store.Comment{Subsystem: "auth", Category: "gotcha", Body: "entry"})
		require.NoError(t, err)
	}

	evicted, err := idx.Prune("auth")
	require.NoError(t, err)
	require.Equal(t, 2, evicted)

	remaining, err := s.ListSubsystemComments("auth")
	require.NoError(t, err)
	require.Len(t, remaining, 2)
}

func TestPrune_NeverEvictsReviewed(t *testing.T) {
	s := newTestStore(t)
	idx := New(s, newFakeEmbedder(), Config{MaxPerSubsystem: 1})

	reviewed, err := s.AddSubsystemComment(store.Comment{Subsystem: "auth", Category: "gotcha", Body: "keep me"})
	require.NoError(t, err)
	require.NoError(t, s.MarkCommentReviewed(reviewed.ID, true))
	_, err = s.AddSubsystemComment(store.Comment{Subsystem: "auth", Category: "gotcha", Body: "prune me"})
	require.NoError(t, err)

	_, err = idx.Prune("auth")
	require.NoError(t, err)

	remaining, err := s.ListSubsystemComments("auth")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, reviewed.ID, remaining[0].ID)
}

func TestFoldDuplicates_MergesNearIdenticalBodies(t *testing.T) {
	s := newTestStore(t)
	idx := New(s, newFakeEmbedder(), Config{DedupThreshold: 0.7})

	_, err := s.AddSubsystemComment(store.Comment{Subsystem: "auth", Category: "gotcha", Body: "the token refresh endpoint needs a retry wrapper"})
	require.NoError(t, err)
	_, err = s.AddSubsystemComment(store.Comment{Subsystem: "auth", Category: "gotcha", Body: "the token refresh endpoint needs a retry wrapper added"})
	require.NoError(t, err)

	folded, err := idx.FoldDuplicates("auth")
	require.NoError(t, err)
	require.Equal(t, 1, folded)

	remaining, err := s.ListSubsystemComments("auth")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}
