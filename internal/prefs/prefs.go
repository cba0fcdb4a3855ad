// Package prefs persists viewer preferences in SQLite.
package prefs

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/abelbrown/cineswipe/internal/media"
)

// Memory keeps preferences for the life of the process only.
const Memory = ":memory:"

const (
	keyMuted       = "muted"
	keyContentType = "content_type"
)

// Store is a small key-value table of preferences. Safe for concurrent use.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (creating if needed) the preferences database at path. An
// empty path or Memory opens a private in-memory database.
func Open(path string) (*Store, error) {
	if path == "" {
		path = Memory
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every connection to :memory: is a different database.
	if path == Memory {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if path != Memory {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS prefs (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var v string
	err := s.db.QueryRow(`SELECT value FROM prefs WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

// Set stores value under key.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO prefs (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Muted reports whether trailers start muted. Defaults to true.
func (s *Store) Muted() (bool, error) {
	v, ok, err := s.Get(keyMuted)
	if err != nil || !ok {
		return true, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return true, nil
	}
	return b, nil
}

// SetMuted stores the mute preference.
func (s *Store) SetMuted(muted bool) error {
	return s.Set(keyMuted, strconv.FormatBool(muted))
}

// ContentType returns the last chosen content type, or fallback.
func (s *Store) ContentType(fallback media.ContentType) (media.ContentType, error) {
	v, ok, err := s.Get(keyContentType)
	if err != nil || !ok {
		return fallback, err
	}
	ct, err := media.ParseContentType(v)
	if err != nil {
		return fallback, nil
	}
	return ct, nil
}

// SetContentType stores the content type.
func (s *Store) SetContentType(ct media.ContentType) error {
	return s.Set(keyContentType, string(ct))
}
