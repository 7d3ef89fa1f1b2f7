// Package store persists terminal session results so the elimination
// flow and the dashboard can consult past targeting attempts.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fablab-bergamo/squid-game-doll/pkg/targeting"
)

// Store is a sqlite-backed session history.
type Store struct {
	db *sql.DB
}

// Record is one persisted session outcome.
type Record struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	FinalError float64   `json:"final_error"`
	Detections int       `json:"detections"`
	Writes     int       `json:"writes"`
	ElapsedMs  int64     `json:"elapsed_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Open opens (or creates) the database at path. Use ":memory:" in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			final_error DOUBLE NOT NULL,
			detections INTEGER NOT NULL,
			writes INTEGER NOT NULL,
			elapsed_ms INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}

	return &Store{db: db}, nil
}

// Record inserts a terminal session result.
func (s *Store) Record(res targeting.SessionResult) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, status, final_error, detections, writes, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		res.ID.String(), res.Status.String(), res.FinalError,
		res.Detections, res.Writes, res.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record session %s: %w", res.ID, err)
	}
	return nil
}

// Recent returns the newest n session records.
func (s *Store) Recent(n int) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT id, status, final_error, detections, writes, elapsed_ms, created_at
		 FROM sessions ORDER BY created_at DESC, id LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Status, &r.FinalError,
			&r.Detections, &r.Writes, &r.ElapsedMs, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
