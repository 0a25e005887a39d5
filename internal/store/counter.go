package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// AtomicIncrement increments the named counter and returns the new
// value in one statement. This is the only correct way to advance the
// ticket counter: read-then-write as two steps would let overlapping
// runs allocate the same identifier.
func (s *Store) AtomicIncrement(key string) (int, error) {
	row := s.db.QueryRow(`
		INSERT INTO counters (key, value) VALUES (?, 1)
		ON CONFLICT(key) DO UPDATE SET value = value + 1
		RETURNING value
	`, key)

	var value int
	if err := row.Scan(&value); err != nil {
		return 0, fmt.Errorf("increment counter %s: %w", key, err)
	}
	return value, nil
}

// InitializeCounter seeds the counter if it does not exist and leaves
// it untouched if it does.
func (s *Store) InitializeCounter(key string, seed int) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO counters (key, value) VALUES (?, ?)
	`, key, seed)
	if err != nil {
		return fmt.Errorf("initialize counter %s: %w", key, err)
	}
	return nil
}

// CounterValue returns the current counter value, or zero if the
// counter has not been initialized.
func (s *Store) CounterValue(key string) (int, error) {
	var value int
	err := s.db.QueryRow("SELECT value FROM counters WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return value, nil
}
