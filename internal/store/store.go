package store

import (
	"database/sql"
	_ "embed"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/veighnsche/ralph/internal/rerr"
)

//go:embed migrations/001_init.sql
var migration001 string

// Store wraps the project's SQLite-backed catalog. All mutations are
// serialized through a single in-process mutex so the on-disk single-writer
// model holds even though database/sql pools connections; reads are not
// held behind the lock and may run concurrently with each other.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens (creating if necessary) the SQLite database at path and brings
// its schema up to date.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, rerr.New(rerr.CodeFilesystem, "create project directory %s: %v", dir, err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, rerr.New(rerr.CodeDBOpen, "open %s: %v", path, err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version ORDER BY version DESC LIMIT 1`).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		if _, execErr := s.db.Exec(migration001); execErr != nil {
			return rerr.New(rerr.CodeDBMigrate, "apply initial schema: %v", execErr)
		}
		return nil
	}
	if err == sql.ErrNoRows || version < 1 {
		if _, execErr := s.db.Exec(migration001); execErr != nil {
			return rerr.New(rerr.CodeDBMigrate, "apply initial schema: %v", execErr)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the filesystem path the Store was opened from.
func (s *Store) Path() string { return s.path }

// withTx serializes a mutation through the Store's write lock and commits
// or rolls back the wrapped transaction. No I/O beyond the database itself
// may happen inside fn.
func (s *Store) withTx(fn func(*sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return rerr.New(rerr.CodeDBWrite, "begin transaction: %v", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return rerr.New(rerr.CodeDBWrite, "commit transaction: %v", err)
	}
	return nil
}

// nullString converts an empty string to a NULL column value.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullInt converts a pointer to an int column value.
func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

// nullBool converts a pointer to a bool column value, stored as 0/1.
func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func boolPtr(b sql.NullBool) *bool {
	if !b.Valid {
		return nil
	}
	v := b.Bool
	return &v
}

// wrapDBErr classifies a raw sqlite error into the [R-XXXX] family most
// callers want to branch on: a unique/foreign-key constraint failure versus
// any other read/write failure.
func wrapDBErr(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, marker := range []string{"UNIQUE constraint", "FOREIGN KEY constraint", "CHECK constraint"} {
		if contains(msg, marker) {
			return rerr.New(rerr.CodeDBConstraint, "%s: %v", op, err)
		}
	}
	return rerr.New(rerr.CodeDBWrite, "%s: %v", op, err)
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}
