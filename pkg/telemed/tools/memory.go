package tools

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Memory is one saved note.
type Memory struct {
	ID        string
	Content   string
	Category  string
	Timestamp time.Time
}

// MemoryStore is the SQLite-backed long-term memory behind /recordar,
// /memorias and /olvidar, and the retrieval context for chat.
type MemoryStore struct {
	db *sql.DB
}

// OpenMemory opens (or creates) the memory database at path.
func OpenMemory(path string) (*MemoryStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("memory: opening database: %w", err)
	}
	// Single writer: the main loop is the only user.
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id         TEXT PRIMARY KEY,
		content    TEXT NOT NULL,
		category   TEXT NOT NULL DEFAULT 'general',
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at DESC);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("memory: initializing schema: %w", err)
	}
	return &MemoryStore{db: db}, nil
}

// Close releases the database.
func (s *MemoryStore) Close() error {
	return s.db.Close()
}

// Save stores a note and returns its generated ID.
func (s *MemoryStore) Save(content, category string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("memory: content is required")
	}
	if category == "" {
		category = "general"
	}
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO memories (id, content, category, created_at) VALUES (?, ?, ?, ?)`,
		id, content, category, time.Now())
	if err != nil {
		return "", fmt.Errorf("memory: saving: %w", err)
	}
	return id, nil
}

// Query returns up to limit notes whose content matches the query terms.
func (s *MemoryStore) Query(query string, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.Query(
		`SELECT id, content, category, created_at FROM memories
		 WHERE content LIKE ? ORDER BY created_at DESC LIMIT ?`,
		"%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("memory: querying: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// List returns the most recent limit notes.
func (s *MemoryStore) List(limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.Query(
		`SELECT id, content, category, created_at FROM memories
		 ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("memory: listing: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// Delete removes the note with the given ID and reports whether it existed.
func (s *MemoryStore) Delete(id string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("memory: deleting: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("memory: deleting: %w", err)
	}
	return n > 0, nil
}

func scanMemories(rows *sql.Rows) ([]Memory, error) {
	var out []Memory
	for rows.Next() {
		var m Memory
		if err := rows.Scan(&m.ID, &m.Content, &m.Category, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("memory: scanning row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
