package store

import (
	"database/sql"
	"encoding/binary"
	"math"

	"github.com/veighnsche/ralph/internal/rerr"
)

// UpsertCommentEmbedding stores or replaces the vector for a Comment. The
// caller is responsible for deciding (via GetEmbeddingHash) whether
// recomputation was actually necessary.
func (s *Store) UpsertCommentEmbedding(e Embedding) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO embeddings (comment_id, model, dims, content_hash, vector, updated_at)
			VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(comment_id) DO UPDATE SET
				model = excluded.model, dims = excluded.dims, content_hash = excluded.content_hash,
				vector = excluded.vector, updated_at = CURRENT_TIMESTAMP`,
			e.CommentID, e.Model, e.Dims, e.ContentHash, encodeVector(e.Vector))
		if err != nil {
			return wrapDBErr("upsert embedding", err)
		}
		return nil
	})
}

// GetEmbeddingHash returns the content hash stored for a Comment's
// embedding, used to skip recomputation when the embedding text hasn't
// changed. Returns "" if no embedding is stored yet.
func (s *Store) GetEmbeddingHash(commentID int) (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT content_hash FROM embeddings WHERE comment_id = ?`, commentID).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", wrapDBErr("get embedding hash", err)
	}
	return hash, nil
}

// GetEmbedding fetches the stored Embedding for a Comment.
func (s *Store) GetEmbedding(commentID int) (Embedding, error) {
	var e Embedding
	var raw []byte
	e.CommentID = commentID
	err := s.db.QueryRow(`
		SELECT model, dims, content_hash, vector, updated_at FROM embeddings WHERE comment_id = ?`, commentID).
		Scan(&e.Model, &e.Dims, &e.ContentHash, &raw, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return Embedding{}, rerr.New(rerr.CodeTaskNotFound, "no embedding stored for comment %d", commentID)
	}
	if err != nil {
		return Embedding{}, wrapDBErr("get embedding", err)
	}
	e.Vector = decodeVector(raw)
	return e, nil
}

// AllEmbeddings returns every stored Embedding, used to rebuild the
// in-memory vector index at startup.
func (s *Store) AllEmbeddings() ([]Embedding, error) {
	rows, err := s.db.Query(`SELECT comment_id, model, dims, content_hash, vector, updated_at FROM embeddings`)
	if err != nil {
		return nil, wrapDBErr("list embeddings", err)
	}
	defer rows.Close()
	var out []Embedding
	for rows.Next() {
		var e Embedding
		var raw []byte
		if err := rows.Scan(&e.CommentID, &e.Model, &e.Dims, &e.ContentHash, &raw, &e.UpdatedAt); err != nil {
			return nil, wrapDBErr("scan embedding", err)
		}
		e.Vector = decodeVector(raw)
		out = append(out, e)
	}
	return out, rows.Err()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(raw []byte) []float32 {
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}
