// Package session provides SQLite-backed persistence for continuation
// channels, letting a role's next dispatch recall a previous one's context.
package session

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Record describes one continuation channel: the conversation file a
// child is started against when the channel is continued.
type Record struct {
	// Channel is the continuation channel name.
	Channel string
	// Role is the role name the channel belongs to.
	Role string
	// Path is the persistent conversation record on disk.
	Path string
	// UpdatedAt is when the channel was last written.
	UpdatedAt time.Time
}

// Store wraps an SQLite database holding continuation channel records.
type Store struct {
	conn *sql.DB
	// recordsDir is where new conversation record files are placed.
	recordsDir string
	mu         sync.Mutex
}

// DefaultPath returns the store location under the user data directory.
func DefaultPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "foreman", "sessions.db")
}

// Open opens the store at the given path, creating parent directories and
// the schema as needed. WAL mode is enabled for concurrent reads.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS channels (
		channel TEXT PRIMARY KEY,
		role TEXT NOT NULL,
		path TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{
		conn:       conn,
		recordsDir: filepath.Join(dir, "conversations"),
	}, nil
}

// Lookup returns the record for a channel, if one exists.
func (s *Store) Lookup(channel string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.conn.QueryRow(
		"SELECT channel, role, path, updated_at FROM channels WHERE channel = ?",
		channel,
	)

	var rec Record
	err := row.Scan(&rec.Channel, &rec.Role, &rec.Path, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("lookup channel %s: %w", channel, err)
	}
	return rec, true, nil
}

// Ensure returns the channel's record, creating one with a fresh
// conversation file path on first use. The second return value reports
// whether a prior record existed, which decides continue mode.
func (s *Store) Ensure(channel, role string) (Record, bool, error) {
	rec, existed, err := s.Lookup(channel)
	if err != nil {
		return Record{}, false, err
	}
	if existed {
		if err := s.touch(channel); err != nil {
			return Record{}, false, err
		}
		return rec, true, nil
	}

	if err := os.MkdirAll(s.recordsDir, 0755); err != nil {
		return Record{}, false, fmt.Errorf("create conversations directory: %w", err)
	}

	rec = Record{
		Channel:   channel,
		Role:      role,
		Path:      filepath.Join(s.recordsDir, channel+".jsonl"),
		UpdatedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.conn.Exec(
		"INSERT INTO channels (channel, role, path, updated_at) VALUES (?, ?, ?, ?)",
		rec.Channel, rec.Role, rec.Path, rec.UpdatedAt,
	)
	if err != nil {
		return Record{}, false, fmt.Errorf("create channel %s: %w", channel, err)
	}
	return rec, false, nil
}

// Forget removes a channel record. The conversation file itself is left in
// place for inspection.
func (s *Store) Forget(channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec("DELETE FROM channels WHERE channel = ?", channel)
	if err != nil {
		return fmt.Errorf("forget channel %s: %w", channel, err)
	}
	return nil
}

func (s *Store) touch(channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(
		"UPDATE channels SET updated_at = ? WHERE channel = ?",
		time.Now(), channel,
	)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.conn.Close()
}
