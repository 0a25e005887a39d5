// Package store persists tasks, the ticket counter, transcript chunks,
// and the processed-transcript ledger in a single SQLite database.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite database holding all persistent state.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dbPath and applies
// the schema. "~" is expanded to the user home directory.
func Open(dbPath string) (*Store, error) {
	if strings.HasPrefix(dbPath, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tasks (
			ticket_id      TEXT PRIMARY KEY,
			title          TEXT NOT NULL DEFAULT '',
			description    TEXT NOT NULL,
			assignee       TEXT NOT NULL DEFAULT 'TBD',
			work_type      TEXT NOT NULL,
			status         TEXT NOT NULL,
			estimated_time REAL NOT NULL DEFAULT 0,
			time_spent     REAL NOT NULL DEFAULT 0,
			priority       TEXT,
			story_points   INTEGER,
			is_future_plan INTEGER NOT NULL DEFAULT 0,
			created_at     DATETIME NOT NULL,
			last_modified  DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS counters (
			key   TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS task_vectors (
			ticket_id     TEXT PRIMARY KEY,
			embedding     BLOB NOT NULL,
			dimensions    INTEGER NOT NULL,
			last_embedded DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS chunks (
			id            TEXT PRIMARY KEY,
			transcript_id TEXT NOT NULL,
			seq           INTEGER NOT NULL,
			content       TEXT NOT NULL,
			embedding     BLOB NOT NULL,
			dimensions    INTEGER NOT NULL,
			created_at    DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS processed_transcripts (
			content_hash  TEXT PRIMARY KEY,
			transcript_id TEXT NOT NULL,
			processed_at  DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
		CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee);
		CREATE INDEX IF NOT EXISTS idx_chunks_transcript ON chunks(transcript_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// DB exposes the underlying connection so the similarity index and
// context retriever can share it.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
