// Package rag is the Knowledge/RAG layer: one chromem-go vector collection
// per subsystem, backing semantic search over the Comments the Store holds.
// Embeddings themselves are computed out-of-process by an Embedder and
// persisted in the Store; this package's collections are an in-memory index
// rebuilt from that persisted state at startup, plus the pruning and
// near-duplicate-folding policy that keeps the Store's comment table from
// growing without bound.
package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/veighnsche/ralph/internal/rerr"
	"github.com/veighnsche/ralph/internal/sanitize"
	"github.com/veighnsche/ralph/internal/store"
)

// Embedder computes a vector for a piece of embedding text. The concrete
// implementation (internal/embedder) calls the project's configured
// external embedding API; tests substitute a deterministic fake.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// Config tunes the pruning policy. Zero values fall back to the documented
// defaults.
type Config struct {
	MaxPerSubsystem    int
	DedupThreshold     float64
	MaxAge             time.Duration
	MinHitCountToKeep  int
}

const (
	DefaultMaxPerSubsystem   = 50
	DefaultDedupThreshold    = 0.7
	DefaultMinHitCountToKeep = 2
)

// Index holds one chromem-go collection per subsystem, created lazily.
type Index struct {
	db          *chromem.DB
	store       *store.Store
	embedder    Embedder
	cfg         Config
	collections map[string]*chromem.Collection
}

// New builds an in-memory Index over s, using embedder to compute and
// re-embed comments on demand.
func New(s *store.Store, embedder Embedder, cfg Config) *Index {
	if cfg.MaxPerSubsystem <= 0 {
		cfg.MaxPerSubsystem = DefaultMaxPerSubsystem
	}
	if cfg.DedupThreshold <= 0 {
		cfg.DedupThreshold = DefaultDedupThreshold
	}
	if cfg.MinHitCountToKeep <= 0 {
		cfg.MinHitCountToKeep = DefaultMinHitCountToKeep
	}
	return &Index{
		db:          chromem.NewDB(),
		store:       s,
		embedder:    embedder,
		cfg:         cfg,
		collections: map[string]*chromem.Collection{},
	}
}

func (idx *Index) collection(subsystem string) (*chromem.Collection, error) {
	if c, ok := idx.collections[subsystem]; ok {
		return c, nil
	}
	c, err := idx.db.CreateCollection(subsystem, nil, nil)
	if err != nil {
		return nil, rerr.New(rerr.CodeInternal, "create rag collection %q: %v", subsystem, err)
	}
	idx.collections[subsystem] = c
	return c, nil
}

// Rebuild loads every persisted Embedding from the Store and repopulates
// the in-memory collections, called once at startup.
func (idx *Index) Rebuild(ctx context.Context) error {
	embeddings, err := idx.store.AllEmbeddings()
	if err != nil {
		return err
	}
	for _, e := range embeddings {
		comment, err := idx.store.GetComment(e.CommentID)
		if err != nil {
			continue // comment was deleted after the embedding was written; skip it
		}
		c, err := idx.collection(comment.Subsystem)
		if err != nil {
			return err
		}
		doc := chromem.Document{
			ID:        commentDocID(e.CommentID),
			Content:   comment.Body,
			Embedding: e.Vector,
			Metadata:  map[string]string{"comment_id": commentDocID(e.CommentID)},
		}
		if err := c.AddDocument(ctx, doc); err != nil {
			return rerr.New(rerr.CodeInternal, "rebuild rag index for subsystem %q: %v", comment.Subsystem, err)
		}
	}
	return nil
}

var sanitizer = sanitize.New()

// EmbeddingText is the canonical text embedded for a Comment:
// "{category}: {body}", plus a trailing "(why: {reason})" when Reason is
// set. This is the exact string hashed for the content-hash staleness check
// (P7), so a Reason-only edit must change it. Body and Reason are run
// through sanitize.Sanitizer first so a leaked token an agent pasted into a
// signal never reaches the embedder or re-enters a future prompt.
func EmbeddingText(c store.Comment) string {
	var b strings.Builder
	b.WriteString(c.Category)
	b.WriteString(": ")
	b.WriteString(sanitizer.Sanitize(c.Body))
	if c.Reason != "" {
		b.WriteString(" (why: ")
		b.WriteString(sanitizer.Sanitize(c.Reason))
		b.WriteString(")")
	}
	return b.String()
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// IndexComment embeds (if the content changed since last embedded) and
// upserts a Comment's vector into both the Store and the in-memory
// collection.
func (idx *Index) IndexComment(ctx context.Context, c store.Comment) error {
	text := EmbeddingText(c)
	hash := contentHash(text)

	existing, err := idx.store.GetEmbeddingHash(c.ID)
	if err != nil {
		return err
	}
	if existing == hash {
		return nil // unchanged since last embed, skip the round trip
	}

	vector, err := idx.embedder.Embed(ctx, text)
	if err != nil {
		return rerr.New(rerr.CodeInternal, "embed comment %d: %v", c.ID, err)
	}
	if err := idx.store.UpsertCommentEmbedding(store.Embedding{
		CommentID: c.ID, Model: idx.embedder.Model(), Dims: len(vector), ContentHash: hash, Vector: vector,
	}); err != nil {
		return err
	}

	col, err := idx.collection(c.Subsystem)
	if err != nil {
		return err
	}
	doc := chromem.Document{
		ID:        commentDocID(c.ID),
		Content:   c.Body,
		Embedding: vector,
		Metadata:  map[string]string{"comment_id": commentDocID(c.ID)},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return rerr.New(rerr.CodeInternal, "index comment %d: %v", c.ID, err)
	}
	return nil
}

// Search returns the top-k Comments in a subsystem most semantically
// similar to query with score >= minScore, bumping each result's hit_count.
// Results are ordered by descending score; ties break by descending comment
// id (the most recently created comment wins) so result order is
// deterministic regardless of chromem-go's internal iteration order.
func (idx *Index) Search(ctx context.Context, subsystem, query string, k int, minScore float64) ([]store.ScoredComment, error) {
	col, ok := idx.collections[subsystem]
	if !ok || col.Count() == 0 {
		return nil, nil
	}
	vector, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, rerr.New(rerr.CodeInternal, "embed query: %v", err)
	}

	queryK := col.Count()
	results, err := col.QueryEmbedding(ctx, vector, queryK, nil, nil)
	if err != nil {
		return nil, rerr.New(rerr.CodeInternal, "query rag collection %q: %v", subsystem, err)
	}

	out := make([]store.ScoredComment, 0, len(results))
	for _, r := range results {
		if float64(r.Similarity) < minScore {
			continue
		}
		commentID, ok := parseCommentDocID(r.ID)
		if !ok {
			continue
		}
		c, err := idx.store.GetComment(commentID)
		if err != nil {
			continue
		}
		out = append(out, store.ScoredComment{Comment: c, Score: float64(r.Similarity)})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Comment.ID > out[j].Comment.ID
	})

	if k < len(out) {
		out = out[:k]
	}
	for _, sc := range out {
		_ = idx.store.BumpCommentHitCount(sc.Comment.ID)
	}
	return out, nil
}

func commentDocID(commentID int) string {
	return strconv.Itoa(commentID)
}

func parseCommentDocID(id string) (int, bool) {
	n, err := strconv.Atoi(id)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Prune evicts excess Comments from a subsystem once it exceeds
// MaxPerSubsystem, preferring to drop the lowest hit_count, oldest,
// not-yet-reviewed comments first. Reviewed comments are never evicted.
func (idx *Index) Prune(subsystem string) (int, error) {
	comments, err := idx.store.ListSubsystemComments(subsystem)
	if err != nil {
		return 0, err
	}
	if len(comments) <= idx.cfg.MaxPerSubsystem {
		return 0, nil
	}

	candidates := make([]store.Comment, 0, len(comments))
	for _, c := range comments {
		if c.Reviewed {
			continue
		}
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].HitCount != candidates[j].HitCount {
			return candidates[i].HitCount < candidates[j].HitCount
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	excess := len(comments) - idx.cfg.MaxPerSubsystem
	if excess > len(candidates) {
		excess = len(candidates)
	}
	evicted := 0
	for i := 0; i < excess; i++ {
		if err := idx.store.DeleteComment(candidates[i].ID); err != nil {
			return evicted, err
		}
		evicted++
	}
	return evicted, nil
}

// FoldDuplicates merges Comments within a subsystem whose bodies are
// near-duplicates (Jaccard similarity over whitespace-tokenized words at or
// above DedupThreshold), keeping the higher-hit-count comment and summing
// hit counts into it.
func (idx *Index) FoldDuplicates(subsystem string) (int, error) {
	comments, err := idx.store.ListSubsystemComments(subsystem)
	if err != nil {
		return 0, err
	}

	folded := 0
	kept := make([]store.Comment, 0, len(comments))
	for _, c := range comments {
		merged := false
		for i := range kept {
			if jaccard(kept[i].Body, c.Body) >= idx.cfg.DedupThreshold {
				if c.HitCount > kept[i].HitCount {
					kept[i], c = c, kept[i]
				}
				if err := idx.store.DeleteComment(c.ID); err != nil {
					return folded, err
				}
				for j := 0; j < c.HitCount; j++ {
					_ = idx.store.BumpCommentHitCount(kept[i].ID)
				}
				folded++
				merged = true
				break
			}
		}
		if !merged {
			kept = append(kept, c)
		}
	}
	return folded, nil
}

func jaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
