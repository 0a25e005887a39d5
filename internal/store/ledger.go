package store

import (
	"database/sql"
	"errors"
	"time"
)

// WasProcessed reports whether a transcript with this content hash has
// already been reconciled against the store.
func (s *Store) WasProcessed(contentHash string) (bool, error) {
	var id string
	err := s.db.QueryRow(
		"SELECT transcript_id FROM processed_transcripts WHERE content_hash = ?",
		contentHash).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// MarkProcessed records that a transcript's content has been applied.
// Re-marking the same hash is a no-op.
func (s *Store) MarkProcessed(contentHash, transcriptID string) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO processed_transcripts (content_hash, transcript_id, processed_at)
		VALUES (?, ?, ?)
	`, contentHash, transcriptID, time.Now().UTC())
	return err
}
